package buildsys

import (
	"fmt"
	"path/filepath"
)

// Variant selects between a shared and a statically linked build.
type Variant int

const (
	Static Variant = iota
	Shared
)

// VariantFor maps the --shared switch to a Variant
func VariantFor(shared bool) Variant {
	if shared {
		return Shared
	}
	return Static
}

func (v Variant) String() string {
	if v == Shared {
		return "shared"
	}
	return "static"
}

// BuildType is the CMAKE_BUILD_TYPE passed to the generator.
type BuildType string

const (
	Release BuildType = "Release"
	Debug   BuildType = "Debug"
)

// BuildTypes lists the accepted build types in the order they're reported in errors.
var BuildTypes = []BuildType{Release, Debug}

// ParseBuildType returns a ConfigurationError for anything but Release or Debug.
func ParseBuildType(value string) (BuildType, error) {
	for _, bt := range BuildTypes {
		if string(bt) == value {
			return bt, nil
		}
	}

	allowed := make([]string, len(BuildTypes))
	for idx, bt := range BuildTypes {
		allowed[idx] = string(bt)
	}
	return "", &ConfigurationError{Field: "build", Value: value, Allowed: allowed}
}

// NoSanitiser is the sanitiser value that disables instrumentation.
const NoSanitiser = "None"

// DefaultTestTarget is built by Sanitise when no target is given.
const DefaultTestTarget = "faabric_tests"

// Configuration contains the options for a single configure run
type Configuration struct {
	Variant   Variant
	BuildType string
	Sanitiser string
	Profiling bool
	Tracing   bool
	TargetCPU string
	Clean     bool

	// ExportCompileCommands asks CMake to write compile_commands.json
	ExportCompileCommands bool
}

// DefaultConfiguration mirrors the defaults of the configure command.
func DefaultConfiguration() Configuration {
	return Configuration{
		Variant:   Static,
		BuildType: string(Debug),
		Sanitiser: NoSanitiser,
	}
}

// Layout holds the project paths and toolchain settings resolved from build.star.
type Layout struct {
	ProjectRoot    string
	StaticBuildDir string
	SharedBuildDir string
	InstallPrefix  string
	CCompiler      string
	CXXCompiler    string
	Generator      string
	ImageRepo      string
	Version        string

	// Env is added to the environment of every spawned process
	Env map[string]string
}

// Defaults used when build.star doesn't override them.
const (
	DefaultStaticBuildDir = "/build/faabric/static"
	DefaultSharedBuildDir = "/build/faabric/shared"
	DefaultInstallPrefix  = "/build/faabric/install"
	DefaultCCompiler      = "/usr/bin/clang-13"
	DefaultCXXCompiler    = "/usr/bin/clang++-13"
	DefaultGenerator      = "Ninja"
	DefaultImageRepo      = "kubasz51/faasm"
)

// DefaultLayout returns the stock layout for the given project root.
func DefaultLayout(projectRoot string) Layout {
	return Layout{
		ProjectRoot:    projectRoot,
		StaticBuildDir: DefaultStaticBuildDir,
		SharedBuildDir: DefaultSharedBuildDir,
		InstallPrefix:  DefaultInstallPrefix,
		CCompiler:      DefaultCCompiler,
		CXXCompiler:    DefaultCXXCompiler,
		Generator:      DefaultGenerator,
		ImageRepo:      DefaultImageRepo,
		Env:            map[string]string{},
	}
}

// BuildDir picks the build directory for the variant. The two are never mixed.
func (l Layout) BuildDir(v Variant) string {
	if v == Shared {
		return l.SharedBuildDir
	}
	return l.StaticBuildDir
}

// Validate checks that every path the invoker relies on is set.
func (l Layout) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"PROJ_ROOT", l.ProjectRoot},
		{"STATIC_BUILD_DIR", l.StaticBuildDir},
		{"SHARED_BUILD_DIR", l.SharedBuildDir},
		{"INSTALL_PREFIX", l.InstallPrefix},
	}

	for _, f := range fields {
		if f.value == "" {
			return &ConfigurationError{Field: f.name, Value: f.value}
		}
	}

	if filepath.Clean(l.StaticBuildDir) == filepath.Clean(l.SharedBuildDir) {
		return &ConfigurationError{
			Field:  "SHARED_BUILD_DIR",
			Value:  l.SharedBuildDir,
			Reason: fmt.Sprintf("must differ from STATIC_BUILD_DIR (%s)", l.StaticBuildDir),
		}
	}
	return nil
}
