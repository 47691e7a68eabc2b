package buildsys

import (
	"fmt"
	"strings"
)

// ConfigurationError reports an invalid option. It's always returned before
// any process is spawned or any directory is touched.
type ConfigurationError struct {
	Field   string
	Value   string
	Allowed []string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	switch {
	case len(e.Allowed) > 0:
		return fmt.Sprintf("invalid %s %q: expected one of %s", e.Field, e.Value, strings.Join(e.Allowed, ", "))
	case e.Reason != "":
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	default:
		return fmt.Sprintf("missing value for %s", e.Field)
	}
}

// ProcessError is returned when a spawned process exits with a nonzero status.
type ProcessError struct {
	Args     []string
	Dir      string
	ExitCode int
}

func (e *ProcessError) Error() string {
	name := "<empty>"
	if len(e.Args) > 0 {
		name = e.Args[0]
	}
	return fmt.Sprintf("%s exited with status %d (in %s)", name, e.ExitCode, e.Dir)
}
