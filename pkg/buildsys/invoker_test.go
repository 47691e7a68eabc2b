package buildsys

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type recordingRunner struct {
	cmds []Command
	fail func(cmd Command) error
}

func (r *recordingRunner) Run(ctx context.Context, cmd Command) error {
	r.cmds = append(r.cmds, cmd)
	if r.fail != nil {
		return r.fail(cmd)
	}
	return nil
}

func testLayout(t *testing.T) Layout {
	root := t.TempDir()
	layout := DefaultLayout(filepath.Join(root, "src"))
	layout.StaticBuildDir = filepath.Join(root, "build", "static")
	layout.SharedBuildDir = filepath.Join(root, "build", "shared")
	layout.InstallPrefix = filepath.Join(root, "install")
	layout.Env = map[string]string{"CCACHE_DIR": "/tmp/ccache"}
	return layout
}

func TestConfigureArgs(t *testing.T) {
	layout := testLayout(t)
	invoker := NewInvoker(layout, &recordingRunner{})

	cfg := DefaultConfiguration()
	cfg.BuildType = "Release"
	cfg.TargetCPU = "skylake"

	args, err := invoker.ConfigureArgs(cfg)
	require.NoError(t, err)

	want := []string{
		"cmake",
		"-GNinja",
		"-DCMAKE_INSTALL_PREFIX=" + layout.InstallPrefix,
		"-DCMAKE_BUILD_TYPE=Release",
		"-DBUILD_SHARED_LIBS=OFF",
		"-DCMAKE_CXX_COMPILER=/usr/bin/clang++-13",
		"-DCMAKE_C_COMPILER=/usr/bin/clang-13",
		"-DFAABRIC_USE_SANITISER=None",
		"-DFAABRIC_SELF_TRACING=OFF",
		"-DFAABRIC_TRACY_TRACING=OFF",
		"-DFAABRIC_TARGET_CPU=skylake",
		layout.ProjectRoot,
	}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Errorf("ConfigureArgs() mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigureArgsToggles(t *testing.T) {
	layout := testLayout(t)
	invoker := NewInvoker(layout, &recordingRunner{})

	cfg := Configuration{
		Variant:               Shared,
		BuildType:             "Debug",
		Sanitiser:             "Thread",
		Profiling:             true,
		Tracing:               true,
		ExportCompileCommands: true,
	}

	args, err := invoker.ConfigureArgs(cfg)
	require.NoError(t, err)

	assert.Contains(t, args, "-DBUILD_SHARED_LIBS=ON")
	assert.Contains(t, args, "-DCMAKE_BUILD_TYPE=Debug")
	assert.Contains(t, args, "-DFAABRIC_USE_SANITISER=Thread")
	assert.Contains(t, args, "-DFAABRIC_SELF_TRACING=ON")
	assert.Contains(t, args, "-DFAABRIC_TRACY_TRACING=ON")
	assert.Contains(t, args, "-DCMAKE_EXPORT_COMPILE_COMMANDS=ON")
	assert.Equal(t, layout.ProjectRoot, args[len(args)-1])
}

func TestConfigureArgsOmitsUnsetValues(t *testing.T) {
	invoker := NewInvoker(testLayout(t), &recordingRunner{})

	cfg := DefaultConfiguration()
	cfg.Sanitiser = ""

	args, err := invoker.ConfigureArgs(cfg)
	require.NoError(t, err)

	for _, arg := range args {
		assert.NotEmpty(t, arg)
		assert.NotContains(t, arg, "FAABRIC_TARGET_CPU")
		assert.NotContains(t, arg, "CMAKE_EXPORT_COMPILE_COMMANDS")
	}
	assert.Contains(t, args, "-DFAABRIC_USE_SANITISER=None")
}

func TestConfigureRejectsUnknownBuildType(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		buildType := rapid.String().Filter(func(s string) bool {
			return s != "Release" && s != "Debug"
		}).Draw(t, "buildType")
		shared := rapid.Bool().Draw(t, "shared")
		clean := rapid.Bool().Draw(t, "clean")

		root, err := os.MkdirTemp("", "buildsys-")
		require.NoError(t, err)
		defer os.RemoveAll(root)

		layout := DefaultLayout(root)
		layout.StaticBuildDir = filepath.Join(root, "static")
		layout.SharedBuildDir = filepath.Join(root, "shared")

		runner := &recordingRunner{}
		cfg := DefaultConfiguration()
		cfg.Variant = VariantFor(shared)
		cfg.BuildType = buildType
		cfg.Clean = clean

		err = NewInvoker(layout, runner).Configure(context.Background(), cfg)

		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, "build", cfgErr.Field)
		require.Empty(t, runner.cmds)

		_, statErr := os.Stat(layout.BuildDir(cfg.Variant))
		require.True(t, errors.Is(statErr, os.ErrNotExist), "build directory was created")
	})
}

func TestConfigureBogusLeavesExistingDirectory(t *testing.T) {
	layout := testLayout(t)
	marker := filepath.Join(layout.StaticBuildDir, "CMakeCache.txt")
	require.NoError(t, os.MkdirAll(layout.StaticBuildDir, 0o755))
	require.NoError(t, os.WriteFile(marker, []byte("cache"), 0o644))

	runner := &recordingRunner{}
	cfg := DefaultConfiguration()
	cfg.BuildType = "bogus"
	cfg.Clean = true

	err := NewInvoker(layout, runner).Configure(context.Background(), cfg)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Empty(t, runner.cmds)
	assert.FileExists(t, marker)
}

func TestConfigureCreatesBuildDirectory(t *testing.T) {
	layout := testLayout(t)
	runner := &recordingRunner{}

	err := NewInvoker(layout, runner).Configure(context.Background(), DefaultConfiguration())
	require.NoError(t, err)

	assert.DirExists(t, layout.StaticBuildDir)
	assert.NoDirExists(t, layout.SharedBuildDir)
	require.Len(t, runner.cmds, 1)
	assert.Equal(t, layout.StaticBuildDir, runner.cmds[0].Dir)
	assert.Equal(t, layout.Env, runner.cmds[0].Env)
}

func TestConfigureClean(t *testing.T) {
	for _, clean := range []bool{true, false} {
		t.Run("clean="+strconv.FormatBool(clean), func(t *testing.T) {
			layout := testLayout(t)
			marker := filepath.Join(layout.SharedBuildDir, "build.ninja")
			require.NoError(t, os.MkdirAll(layout.SharedBuildDir, 0o755))
			require.NoError(t, os.WriteFile(marker, []byte("rule cc"), 0o644))

			cfg := DefaultConfiguration()
			cfg.Variant = Shared
			cfg.Clean = clean

			err := NewInvoker(layout, &recordingRunner{}).Configure(context.Background(), cfg)
			require.NoError(t, err)

			assert.DirExists(t, layout.SharedBuildDir)
			if clean {
				assert.NoFileExists(t, marker)
			} else {
				assert.FileExists(t, marker)
			}
		})
	}
}

func TestConfigureSelectsDirectoryByVariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		shared := rapid.Bool().Draw(t, "shared")

		root, err := os.MkdirTemp("", "buildsys-")
		require.NoError(t, err)
		defer os.RemoveAll(root)

		layout := DefaultLayout(root)
		layout.StaticBuildDir = filepath.Join(root, "static")
		layout.SharedBuildDir = filepath.Join(root, "shared")

		runner := &recordingRunner{}
		cfg := DefaultConfiguration()
		cfg.Variant = VariantFor(shared)

		require.NoError(t, NewInvoker(layout, runner).Configure(context.Background(), cfg))
		require.Len(t, runner.cmds, 1)

		want, other := layout.StaticBuildDir, layout.SharedBuildDir
		if shared {
			want, other = other, want
		}
		require.Equal(t, want, runner.cmds[0].Dir)
		require.NoDirExists(t, other)
	})
}

func TestConfigureProcessFailure(t *testing.T) {
	layout := testLayout(t)
	runner := &recordingRunner{fail: func(cmd Command) error {
		return &ProcessError{Args: cmd.Args, Dir: cmd.Dir, ExitCode: 1}
	}}

	err := NewInvoker(layout, runner).Configure(context.Background(), DefaultConfiguration())
	var procErr *ProcessError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, 1, procErr.ExitCode)
}

func TestCompileArgs(t *testing.T) {
	args, err := CompileArgs("faabric", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"cmake", "--build", ".", "--target", "faabric"}, args)
	assert.NotContains(t, args, "--parallel")

	rapid.Check(t, func(t *rapid.T) {
		parallel := rapid.IntRange(1, 1024).Draw(t, "parallel")

		args, err := CompileArgs("faabric_tests", parallel)
		require.NoError(t, err)
		require.Equal(t, []string{"--parallel", strconv.Itoa(parallel)}, args[len(args)-2:])
	})
}

func TestCompileArgsInvalid(t *testing.T) {
	var cfgErr *ConfigurationError

	_, err := CompileArgs("", 0)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "target", cfgErr.Field)

	_, err = CompileArgs("faabric", -1)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "parallel", cfgErr.Field)
}

func TestCompile(t *testing.T) {
	layout := testLayout(t)
	runner := &recordingRunner{}
	invoker := NewInvoker(layout, runner)

	require.NoError(t, invoker.Compile(context.Background(), "faabric", Shared, 8))
	require.Len(t, runner.cmds, 1)
	assert.Equal(t, layout.SharedBuildDir, runner.cmds[0].Dir)
	assert.Equal(t, []string{"cmake", "--build", ".", "--target", "faabric", "--parallel", "8"}, runner.cmds[0].Args)

	err := invoker.Compile(context.Background(), "", Static, 0)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Len(t, runner.cmds, 1)
}

func TestInstall(t *testing.T) {
	layout := testLayout(t)
	runner := &recordingRunner{}
	invoker := NewInvoker(layout, runner)

	require.NoError(t, invoker.Install(context.Background(), "faabric", Static))
	require.Len(t, runner.cmds, 1)
	assert.Equal(t, []string{"ninja", "install", "faabric"}, runner.cmds[0].Args)
	assert.Equal(t, layout.StaticBuildDir, runner.cmds[0].Dir)

	runner.fail = func(cmd Command) error {
		return &ProcessError{Args: cmd.Args, Dir: cmd.Dir, ExitCode: 2}
	}
	err := invoker.Install(context.Background(), "faabric", Shared)
	var procErr *ProcessError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, 2, procErr.ExitCode)
	assert.Equal(t, layout.SharedBuildDir, procErr.Dir)
}

func TestSanitise(t *testing.T) {
	layout := testLayout(t)
	marker := filepath.Join(layout.StaticBuildDir, "stale")
	require.NoError(t, os.MkdirAll(layout.StaticBuildDir, 0o755))
	require.NoError(t, os.WriteFile(marker, nil, 0o644))

	runner := &recordingRunner{}
	err := NewInvoker(layout, runner).Sanitise(context.Background(), "Address", "", Static, false)
	require.NoError(t, err)

	require.Len(t, runner.cmds, 2)
	assert.Contains(t, runner.cmds[0].Args, "-DCMAKE_BUILD_TYPE=Debug")
	assert.Contains(t, runner.cmds[0].Args, "-DFAABRIC_USE_SANITISER=Address")
	assert.Equal(t, []string{"cmake", "--build", ".", "--target", DefaultTestTarget}, runner.cmds[1].Args)
	assert.Equal(t, layout.StaticBuildDir, runner.cmds[1].Dir)
	assert.NoFileExists(t, marker)
}

func TestSanitiseNoClean(t *testing.T) {
	layout := testLayout(t)
	marker := filepath.Join(layout.SharedBuildDir, "keep")
	require.NoError(t, os.MkdirAll(layout.SharedBuildDir, 0o755))
	require.NoError(t, os.WriteFile(marker, nil, 0o644))

	runner := &recordingRunner{}
	err := NewInvoker(layout, runner).Sanitise(context.Background(), "Thread", "faabric", Shared, true)
	require.NoError(t, err)

	require.Len(t, runner.cmds, 2)
	assert.Equal(t, "faabric", runner.cmds[1].Args[4])
	assert.Equal(t, layout.SharedBuildDir, runner.cmds[1].Dir)
	assert.FileExists(t, marker)
}

func TestSanitiseStopsAfterFailedConfigure(t *testing.T) {
	layout := testLayout(t)
	runner := &recordingRunner{fail: func(cmd Command) error {
		if cmd.Args[0] == "cmake" && cmd.Args[1] != "--build" {
			return &ProcessError{Args: cmd.Args, Dir: cmd.Dir, ExitCode: 1}
		}
		return nil
	}}

	err := NewInvoker(layout, runner).Sanitise(context.Background(), "Address", "", Static, false)

	var procErr *ProcessError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, 1, procErr.ExitCode)
	require.Len(t, runner.cmds, 1, "compile must not run after a failed configure")
}

func TestSanitiseRequiresMode(t *testing.T) {
	runner := &recordingRunner{}
	err := NewInvoker(testLayout(t), runner).Sanitise(context.Background(), "", "", Static, false)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Empty(t, runner.cmds)
}

func TestConfigureDryRunLeavesFilesystemAlone(t *testing.T) {
	layout := testLayout(t)
	cache := filepath.Join(layout.StaticBuildDir, "CMakeCache.txt")
	require.NoError(t, os.MkdirAll(layout.StaticBuildDir, 0o755))
	require.NoError(t, os.WriteFile(cache, []byte("cache"), 0o644))

	var calls []execCall
	runner := testRunner(&calls, 0)
	runner.DryRun = true
	invoker := NewInvoker(layout, runner)

	cfg := DefaultConfiguration()
	cfg.Clean = true
	require.NoError(t, invoker.Configure(context.Background(), cfg))
	assert.FileExists(t, cache)

	cfg.Variant = Shared
	require.NoError(t, invoker.Configure(context.Background(), cfg))
	assert.NoDirExists(t, layout.SharedBuildDir)

	require.NoError(t, invoker.Sanitise(context.Background(), "Address", "", Static, false))
	assert.FileExists(t, cache)
	assert.Empty(t, calls)
}

func TestIsDryRun(t *testing.T) {
	assert.False(t, isDryRun(&recordingRunner{}))
	assert.False(t, isDryRun(NewShellRunner(false)))
	assert.True(t, isDryRun(NewShellRunner(true)))
	assert.True(t, isDryRun(&ShellRunner{Stdout: &bytes.Buffer{}, DryRun: true}))
}
