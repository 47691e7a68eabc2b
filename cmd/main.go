package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/aidarkhanov/nanoid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/faasm/faabric/build-tools/pkg"
	"github.com/faasm/faabric/build-tools/pkg/buildsys"
)

// Exit codes returned by Execute
const (
	ExitSuccess     = 0
	ExitFailure     = 1
	ExitConfigError = 2
)

var (
	baseLogger = zerolog.New(NewConsoleWriter())
	logger     = baseLogger.Level(zerolog.InfoLevel)
)

// newRunner is replaced in tests
var newRunner = func(dryRun bool) buildsys.Runner {
	return buildsys.NewShellRunner(dryRun)
}

var rootCmd = &cobra.Command{
	Use:   "tool",
	Short: "Development tasks for Faabric",
	Long: `This command bundles the tasks used to build Faabric: configuring, compiling
and installing the CMake project, sanitiser builds and container images.
Paths are read from the build.star file in the project root.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, err := cmd.Flags().GetBool("verbose")
		if err != nil {
			return err
		}

		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		logger = baseLogger.Level(level).With().Str("run", nanoid.New()).Logger()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	rootCmd.PersistentFlags().String("project-root", "", "project root (default: the closest parent containing build.star or .git)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug output")
}

// taskEnv holds everything a command needs to run
type taskEnv struct {
	ctx    context.Context
	layout buildsys.Layout
	runner buildsys.Runner
}

func loadTaskEnv(cmd *cobra.Command) (*taskEnv, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = buildsys.WithLogger(ctx, &logger)

	dryRun, err := cmd.Flags().GetBool("dry")
	if err != nil {
		return nil, err
	}

	root, err := cmd.Flags().GetString("project-root")
	if err != nil {
		return nil, err
	}

	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}

		root, err = pkg.GetProjectRoot(wd)
		if err != nil {
			return nil, err
		}
	}

	layout, err := buildsys.LoadLayout(ctx, root)
	if err != nil {
		return nil, err
	}

	return &taskEnv{
		ctx:    ctx,
		layout: layout,
		runner: newRunner(dryRun),
	}, nil
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var procErr *buildsys.ProcessError
	if errors.As(err, &procErr) && procErr.ExitCode > 0 {
		return procErr.ExitCode
	}

	var cfgErr *buildsys.ConfigurationError
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}
	return ExitFailure
}

func Execute() {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		logger.Error().Err(err).Msg("task failed")
	}
	os.Exit(exitCode(err))
}
