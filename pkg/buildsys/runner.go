package buildsys

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Command is a single external process invocation
type Command struct {
	Args []string
	Dir  string
	Env  map[string]string
}

// String renders the command the way a shell would need it quoted.
func (c Command) String() string {
	call := c.callExpr()

	buffer := strings.Builder{}
	printer := syntax.NewPrinter(syntax.Minify(true))
	if err := printer.Print(&buffer, call); err != nil {
		return strings.Join(c.Args, " ")
	}
	return buffer.String()
}

func (c Command) callExpr() *syntax.CallExpr {
	call := new(syntax.CallExpr)
	call.Args = make([]*syntax.Word, len(c.Args))
	for idx, arg := range c.Args {
		call.Args[idx] = &syntax.Word{Parts: []syntax.WordPart{wordPart(arg)}}
	}
	return call
}

// wordPart turns an argument into a word the interpreter won't split, glob or expand.
func wordPart(arg string) syntax.WordPart {
	if arg != "" && strings.Trim(arg, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-+./,:=@%") == "" {
		return &syntax.Lit{Value: arg}
	}

	if !strings.Contains(arg, "'") {
		return &syntax.SglQuoted{Value: arg}
	}

	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`").Replace(arg)
	return &syntax.DblQuoted{Parts: []syntax.WordPart{&syntax.Lit{Value: escaped}}}
}

// Runner executes commands synchronously.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

type dryRunner interface {
	IsDryRun() bool
}

// isDryRun reports whether runner only logs commands. Callers must then leave
// the filesystem alone as well.
func isDryRun(runner Runner) bool {
	dr, ok := runner.(dryRunner)
	return ok && dr.IsDryRun()
}

// ShellRunner runs commands through the mvdan.cc/sh interpreter.
type ShellRunner struct {
	Stdout io.Writer
	Stderr io.Writer

	// DryRun only logs the commands
	DryRun bool

	// ExecHandler replaces the default handler that spawns processes
	ExecHandler interp.ExecHandlerFunc
}

// NewShellRunner returns a runner attached to the process' stdout and stderr.
func NewShellRunner(dryRun bool) *ShellRunner {
	return &ShellRunner{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		DryRun: dryRun,
	}
}

// IsDryRun reports whether commands are only logged.
func (r *ShellRunner) IsDryRun() bool {
	return r.DryRun
}

var defaultExecHandler = interp.DefaultExecHandler(2 * time.Second)

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

func commandEnv(cmd Command) expand.Environ {
	envVars := os.Environ()

	names := make([]string, 0, len(cmd.Env))
	for name := range cmd.Env {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		envVars = append(envVars, fmt.Sprintf("%s=%s", name, cmd.Env[name]))
	}

	return expand.ListEnviron(envVars...)
}

// Run logs the command and executes it in cmd.Dir. A nonzero exit status is
// returned as *ProcessError.
func (r *ShellRunner) Run(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(cmd.Args) == 0 {
		return eris.New("empty command")
	}

	log(ctx).Info().
		Str("dir", cmd.Dir).
		Bool("command", true).
		Msg(cmd.String())

	if r.DryRun {
		return nil
	}

	handler := r.ExecHandler
	if handler == nil {
		handler = defaultExecHandler
	}

	runner, err := interp.New(
		interp.Dir(cmd.Dir),
		interp.Env(commandEnv(cmd)),
		interp.ExecHandler(handler),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, r.Stdout, r.Stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrapf(err, "failed to initialize runner for %s", cmd.Dir)
	}

	err = runner.Run(ctx, cmd.callExpr())
	if err == nil {
		return nil
	}

	if status, ok := interp.IsExitStatus(err); ok {
		if status == 0 {
			return nil
		}

		return &ProcessError{
			Args:     cmd.Args,
			Dir:      cmd.Dir,
			ExitCode: int(status),
		}
	}

	return eris.Wrapf(err, "failed to run %s", cmd.Args[0])
}
