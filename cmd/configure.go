package cmd

import (
	"github.com/spf13/cobra"

	"github.com/faasm/faabric/build-tools/pkg/buildsys"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configures the build",
	Long: `Runs cmake in the static (or, with --shared, the shared) build directory.
The directory is created if it doesn't exist yet and recreated when --clean is passed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		cfg := buildsys.DefaultConfiguration()

		shared, err := flags.GetBool("shared")
		if err != nil {
			return err
		}
		cfg.Variant = buildsys.VariantFor(shared)

		if cfg.Clean, err = flags.GetBool("clean"); err != nil {
			return err
		}
		if cfg.BuildType, err = flags.GetString("build"); err != nil {
			return err
		}
		if cfg.Sanitiser, err = flags.GetString("sanitiser"); err != nil {
			return err
		}
		if cfg.Profiling, err = flags.GetBool("prof"); err != nil {
			return err
		}
		if cfg.Tracing, err = flags.GetBool("tracy"); err != nil {
			return err
		}
		if cfg.TargetCPU, err = flags.GetString("cpu"); err != nil {
			return err
		}
		if cfg.ExportCompileCommands, err = flags.GetBool("compile-commands"); err != nil {
			return err
		}

		// reject bad values before the settings script or the filesystem are touched
		if _, err := buildsys.ParseBuildType(cfg.BuildType); err != nil {
			return err
		}

		env, err := loadTaskEnv(cmd)
		if err != nil {
			return err
		}

		return buildsys.NewInvoker(env.layout, env.runner).Configure(env.ctx, cfg)
	},
}

func init() {
	flags := configureCmd.Flags()
	flags.Bool("clean", false, "remove the build directory first")
	flags.Bool("shared", false, "build shared libraries")
	flags.String("build", string(buildsys.Debug), "build type (Release or Debug)")
	flags.String("sanitiser", buildsys.NoSanitiser, "sanitiser passed to FAABRIC_USE_SANITISER")
	flags.Bool("prof", false, "enable self tracing")
	flags.String("cpu", "", "target CPU passed to FAABRIC_TARGET_CPU")
	flags.Bool("tracy", false, "enable Tracy tracing")
	flags.Bool("compile-commands", false, "export compile_commands.json")

	rootCmd.AddCommand(configureCmd)
}
