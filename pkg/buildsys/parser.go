package buildsys

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
)

const (
	// SettingsFile is evaluated from the project root to build the Layout
	SettingsFile = "build.star"
	// EnvFile holds environment overrides for the settings script and every spawned process
	EnvFile = ".env"
	// VersionFile contains the project version used for image tags
	VersionFile = "VERSION"
)

func init() {
	// settings scripts need top-level ifs and may refine a value after setting it
	resolve.AllowGlobalReassign = true
}

type parserCtx struct {
	ctx          context.Context
	envOverrides map[string]string
	yamlCache    map[string]interface{}
	filepath     string
	projectRoot  string
}

func getCtx(thread *starlark.Thread) *parserCtx {
	return thread.Local("parserCtx").(*parserCtx)
}

func readEnvFile(projectRoot string) (map[string]string, error) {
	path := filepath.Join(projectRoot, EnvFile)
	_, err := os.Stat(path)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, eris.Wrapf(err, "failed to check %s", path)
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", path)
	}
	return values, nil
}

func readVersion(projectRoot string) (string, error) {
	data, err := os.ReadFile(filepath.Join(projectRoot, VersionFile))
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", eris.Wrap(err, "failed to read version")
	}
	return strings.TrimSpace(string(data)), nil
}

// LoadLayout resolves the Layout for the project at projectRoot from its
// build.star and .env files. Both files are optional.
func LoadLayout(ctx context.Context, projectRoot string) (Layout, error) {
	return LoadLayoutFile(ctx, filepath.Join(projectRoot, SettingsFile), projectRoot)
}

// LoadLayoutFile is LoadLayout with an explicit settings script.
func LoadLayoutFile(ctx context.Context, filename, projectRoot string) (Layout, error) {
	projectRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return Layout{}, err
	}

	filename, err = filepath.Abs(filename)
	if err != nil {
		return Layout{}, err
	}

	layout := DefaultLayout(projectRoot)
	layout.Env, err = readEnvFile(projectRoot)
	if err != nil {
		return Layout{}, err
	}

	threadCtx := parserCtx{
		ctx:          ctx,
		filepath:     filename,
		projectRoot:  projectRoot,
		envOverrides: layout.Env,
		yamlCache:    make(map[string]interface{}),
	}

	script, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := applyScript(&threadCtx, script, &layout); err != nil {
			return Layout{}, err
		}
	case eris.Is(err, os.ErrNotExist):
		log(ctx).Debug().Str("path", filename).Msg("no settings script, using defaults")
	default:
		return Layout{}, eris.Wrapf(err, "failed to read %s", filename)
	}

	if layout.Version == "" {
		layout.Version, err = readVersion(layout.ProjectRoot)
		if err != nil {
			return Layout{}, err
		}
	}

	if err := layout.Validate(); err != nil {
		return Layout{}, err
	}
	return layout, nil
}

func applyScript(threadCtx *parserCtx, script []byte, layout *Layout) error {
	builtins := starlark.StringDict{
		"OS":           starlark.String(runtime.GOOS),
		"ARCH":         starlark.String(runtime.GOARCH),
		"info":         starlark.NewBuiltin("info", starInfo),
		"warn":         starlark.NewBuiltin("warn", starWarn),
		"error":        starlark.NewBuiltin("error", starError),
		"resolve_path": starlark.NewBuiltin("resolve_path", resolvePath),
		"getenv":       starlark.NewBuiltin("getenv", getenv),
		"setenv":       starlark.NewBuiltin("setenv", setenv),
		"prepend_path": starlark.NewBuiltin("prepend_path", prependPathDir),
		"read_yaml":    starlark.NewBuiltin("read_yaml", readYaml),
		"read_file":    starlark.NewBuiltin("read_file", readFile),
		"isdir":        starlark.NewBuiltin("isdir", starIsdir),
		"isfile":       starlark.NewBuiltin("isfile", starIsfile),
	}

	thread := &starlark.Thread{
		Name: "settings",
		Print: func(thread *starlark.Thread, msg string) {
			log(threadCtx.ctx).Info().Str("thread", thread.Name).Msg(msg)
		},
	}
	thread.SetLocal("parserCtx", threadCtx)

	displayName := simplifyPath(threadCtx, threadCtx.filepath)
	globals, err := starlark.ExecFile(thread, displayName, script, builtins)
	if err != nil {
		if evalError, ok := err.(*starlark.EvalError); ok {
			return eris.Errorf("failed to execute %s:\n%s", displayName, evalError.Backtrace())
		}
		return eris.Wrapf(err, "failed to execute %s", displayName)
	}

	// PROJ_ROOT goes first since relative paths below may start with //
	if value, ok, err := globalString(globals, "PROJ_ROOT"); err != nil {
		return err
	} else if ok {
		threadCtx.projectRoot = normalizePath(threadCtx, value)
		layout.ProjectRoot = threadCtx.projectRoot
	}

	paths := []struct {
		name   string
		target *string
	}{
		{"STATIC_BUILD_DIR", &layout.StaticBuildDir},
		{"SHARED_BUILD_DIR", &layout.SharedBuildDir},
		{"INSTALL_PREFIX", &layout.InstallPrefix},
	}
	for _, item := range paths {
		value, ok, err := globalString(globals, item.name)
		if err != nil {
			return err
		}
		if ok {
			// empty stays empty so that Validate can report it
			if value != "" {
				value = normalizePath(threadCtx, value)
			}
			*item.target = value
		}
	}

	values := []struct {
		name   string
		target *string
	}{
		{"C_COMPILER", &layout.CCompiler},
		{"CXX_COMPILER", &layout.CXXCompiler},
		{"GENERATOR", &layout.Generator},
		{"IMAGE_REPO", &layout.ImageRepo},
		{"VERSION", &layout.Version},
	}
	for _, item := range values {
		value, ok, err := globalString(globals, item.name)
		if err != nil {
			return err
		}
		if ok {
			*item.target = value
		}
	}

	layout.Env = threadCtx.envOverrides
	return nil
}

func globalString(globals starlark.StringDict, name string) (string, bool, error) {
	value, ok := globals[name]
	if !ok {
		return "", false, nil
	}

	return starlarkToString(value, name)
}
