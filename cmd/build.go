package cmd

import (
	"github.com/spf13/cobra"

	"github.com/faasm/faabric/build-tools/pkg/buildsys"
)

var compileCmd = &cobra.Command{
	Use:     "compile <target>",
	Aliases: []string{"cc"},
	Short:   "Compile the given target",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		shared, err := cmd.Flags().GetBool("shared")
		if err != nil {
			return err
		}

		parallel, err := cmd.Flags().GetInt("parallel")
		if err != nil {
			return err
		}

		if _, err := buildsys.CompileArgs(args[0], parallel); err != nil {
			return err
		}

		env, err := loadTaskEnv(cmd)
		if err != nil {
			return err
		}

		invoker := buildsys.NewInvoker(env.layout, env.runner)
		return invoker.Compile(env.ctx, args[0], buildsys.VariantFor(shared), parallel)
	},
}

var installCmd = &cobra.Command{
	Use:   "install <target>",
	Short: "Install the given target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		shared, err := cmd.Flags().GetBool("shared")
		if err != nil {
			return err
		}

		env, err := loadTaskEnv(cmd)
		if err != nil {
			return err
		}

		invoker := buildsys.NewInvoker(env.layout, env.runner)
		return invoker.Install(env.ctx, args[0], buildsys.VariantFor(shared))
	},
}

var sanitiseCmd = &cobra.Command{
	Use:   "sanitise <mode>",
	Short: "Build the tests with a sanitiser",
	Long: `Configures a Debug build with the given sanitiser (e.g. Address, Thread, Undefined, Leak, Memory)
and compiles the target. The build directory is recreated unless --noclean is passed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		target, err := flags.GetString("target")
		if err != nil {
			return err
		}

		noClean, err := flags.GetBool("noclean")
		if err != nil {
			return err
		}

		shared, err := flags.GetBool("shared")
		if err != nil {
			return err
		}

		env, err := loadTaskEnv(cmd)
		if err != nil {
			return err
		}

		invoker := buildsys.NewInvoker(env.layout, env.runner)
		return invoker.Sanitise(env.ctx, args[0], target, buildsys.VariantFor(shared), noClean)
	},
}

func init() {
	compileCmd.Flags().Bool("shared", false, "use the shared build directory")
	compileCmd.Flags().IntP("parallel", "j", 0, "number of parallel jobs (0 lets the build tool decide)")

	installCmd.Flags().Bool("shared", false, "use the shared build directory")

	sanitiseCmd.Flags().String("target", buildsys.DefaultTestTarget, "target to compile")
	sanitiseCmd.Flags().Bool("noclean", false, "keep the existing build directory")
	sanitiseCmd.Flags().Bool("shared", false, "use the shared build directory")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(sanitiseCmd)
}
