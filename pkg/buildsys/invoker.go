package buildsys

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
)

// Invoker translates build options into cmake and ninja invocations.
type Invoker struct {
	layout Layout
	runner Runner
}

// NewInvoker returns an Invoker for the given layout.
func NewInvoker(layout Layout, runner Runner) *Invoker {
	return &Invoker{
		layout: layout,
		runner: runner,
	}
}

// Layout returns the layout the invoker was created with.
func (i *Invoker) Layout() Layout {
	return i.layout
}

func onOff(value bool) string {
	if value {
		return "ON"
	}
	return "OFF"
}

// ConfigureArgs returns the cmake command line for cfg without touching the filesystem.
func (i *Invoker) ConfigureArgs(cfg Configuration) ([]string, error) {
	buildType, err := ParseBuildType(cfg.BuildType)
	if err != nil {
		return nil, err
	}

	sanitiser := cfg.Sanitiser
	if sanitiser == "" {
		sanitiser = NoSanitiser
	}

	generator := i.layout.Generator
	if generator == "" {
		generator = DefaultGenerator
	}

	args := []string{
		"cmake",
		"-G" + generator,
		"-DCMAKE_INSTALL_PREFIX=" + i.layout.InstallPrefix,
		"-DCMAKE_BUILD_TYPE=" + string(buildType),
		"-DBUILD_SHARED_LIBS=" + onOff(cfg.Variant == Shared),
	}

	if i.layout.CXXCompiler != "" {
		args = append(args, "-DCMAKE_CXX_COMPILER="+i.layout.CXXCompiler)
	}
	if i.layout.CCompiler != "" {
		args = append(args, "-DCMAKE_C_COMPILER="+i.layout.CCompiler)
	}

	args = append(args,
		"-DFAABRIC_USE_SANITISER="+sanitiser,
		"-DFAABRIC_SELF_TRACING="+onOff(cfg.Profiling),
		"-DFAABRIC_TRACY_TRACING="+onOff(cfg.Tracing),
	)

	if cfg.TargetCPU != "" {
		args = append(args, "-DFAABRIC_TARGET_CPU="+cfg.TargetCPU)
	}

	if cfg.ExportCompileCommands {
		args = append(args, "-DCMAKE_EXPORT_COMPILE_COMMANDS=ON")
	}

	return append(args, i.layout.ProjectRoot), nil
}

// prepareBuildDir creates dir, removing it first if clean is set. A dry run
// only logs what would happen.
func prepareBuildDir(ctx context.Context, dir string, clean, dryRun bool) error {
	info, err := os.Stat(dir)
	if err != nil && !eris.Is(err, os.ErrNotExist) {
		return eris.Wrapf(err, "failed to check build directory %s", dir)
	}

	exists := err == nil
	if exists && !info.IsDir() {
		return eris.Errorf("%s exists but is not a directory", dir)
	}

	if clean && exists {
		if dryRun {
			log(ctx).Info().Str("path", dir).Msgf("Would remove %s", dir)
		} else {
			log(ctx).Info().Str("path", dir).Msgf("Removing %s", dir)
			if err := os.RemoveAll(dir); err != nil {
				return eris.Wrapf(err, "failed to remove %s", dir)
			}
		}
		exists = false
	}

	if !exists {
		if dryRun {
			log(ctx).Info().Str("path", dir).Msgf("Would create %s", dir)
			return nil
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "failed to create %s", dir)
		}
	}
	return nil
}

// Configure prepares the build directory for cfg.Variant and runs cmake in it.
func (i *Invoker) Configure(ctx context.Context, cfg Configuration) error {
	args, err := i.ConfigureArgs(cfg)
	if err != nil {
		return err
	}

	buildDir := i.layout.BuildDir(cfg.Variant)
	if buildDir == "" {
		return &ConfigurationError{Field: fmt.Sprintf("%s build directory", cfg.Variant)}
	}

	if err := prepareBuildDir(ctx, buildDir, cfg.Clean, isDryRun(i.runner)); err != nil {
		return err
	}

	return i.runner.Run(ctx, Command{
		Args: args,
		Dir:  buildDir,
		Env:  i.layout.Env,
	})
}

// CompileArgs returns the cmake --build command line.
func CompileArgs(target string, parallel int) ([]string, error) {
	if target == "" {
		return nil, &ConfigurationError{Field: "target"}
	}

	if parallel < 0 {
		return nil, &ConfigurationError{
			Field:  "parallel",
			Value:  strconv.Itoa(parallel),
			Reason: "must not be negative",
		}
	}

	args := []string{"cmake", "--build", ".", "--target", target}
	if parallel > 0 {
		args = append(args, "--parallel", strconv.Itoa(parallel))
	}
	return args, nil
}

// Compile builds target in the previously configured directory for variant.
// A parallel value of 0 leaves the job count to the build tool.
func (i *Invoker) Compile(ctx context.Context, target string, variant Variant, parallel int) error {
	args, err := CompileArgs(target, parallel)
	if err != nil {
		return err
	}

	return i.runner.Run(ctx, Command{
		Args: args,
		Dir:  i.layout.BuildDir(variant),
		Env:  i.layout.Env,
	})
}

// Install runs the install step for target. Partial installs aren't rolled back.
func (i *Invoker) Install(ctx context.Context, target string, variant Variant) error {
	if target == "" {
		return &ConfigurationError{Field: "target"}
	}

	return i.runner.Run(ctx, Command{
		Args: []string{"ninja", "install", target},
		Dir:  i.layout.BuildDir(variant),
		Env:  i.layout.Env,
	})
}

// Sanitise configures a Debug build with the given sanitiser and compiles target.
// Nothing is compiled if the configure step fails.
func (i *Invoker) Sanitise(ctx context.Context, mode, target string, variant Variant, noClean bool) error {
	if mode == "" {
		return &ConfigurationError{Field: "mode"}
	}

	if target == "" {
		target = DefaultTestTarget
	}

	cfg := DefaultConfiguration()
	cfg.Variant = variant
	cfg.BuildType = string(Debug)
	cfg.Sanitiser = mode
	cfg.Clean = !noClean

	if err := i.Configure(ctx, cfg); err != nil {
		return err
	}

	return i.Compile(ctx, target, variant, 0)
}
