package cmd

import (
	"github.com/spf13/cobra"

	"github.com/faasm/faabric/build-tools/pkg/buildsys"
)

var containerCmd = &cobra.Command{
	Use:   "container",
	Short: "Build and push the Faabric container images",
}

var containerBuildCmd = &cobra.Command{
	Use:   "build <image>...",
	Short: "Build container images",
	Long: `Builds the given images with docker buildx for linux/amd64 and linux/arm64.
Valid images are faabric, faabric-base and faabric-base-runtime.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts buildsys.ImageBuildOptions
		var err error

		if opts.NoCache, err = cmd.Flags().GetBool("nocache"); err != nil {
			return err
		}
		if opts.Push, err = cmd.Flags().GetBool("push"); err != nil {
			return err
		}

		env, err := loadTaskEnv(cmd)
		if err != nil {
			return err
		}

		return buildsys.NewContainerBuilder(env.layout, env.runner).Build(env.ctx, args, opts)
	},
}

var containerPushCmd = &cobra.Command{
	Use:   "push <image>...",
	Short: "Push container images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadTaskEnv(cmd)
		if err != nil {
			return err
		}

		return buildsys.NewContainerBuilder(env.layout, env.runner).Push(env.ctx, args)
	},
}

func init() {
	containerBuildCmd.Flags().Bool("nocache", false, "build without the docker cache")
	containerBuildCmd.Flags().Bool("push", false, "push the images after building them")

	containerCmd.AddCommand(containerBuildCmd)
	containerCmd.AddCommand(containerPushCmd)
	rootCmd.AddCommand(containerCmd)
}
