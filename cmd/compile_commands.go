package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/faasm/faabric/build-tools/pkg/buildsys"
)

var mergeCompileCommandsCmd = &cobra.Command{
	Use:   "merge-compile-commands [input files...]",
	Short: "Merges the compile_commands.json files of the build directories",
	Long: `Merges several compile_commands.json files into one. Without arguments, the
files found in the static and shared build directories are used. Assumes that
only absolute paths are used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadTaskEnv(cmd)
		if err != nil {
			return err
		}

		output, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}
		if output == "" {
			output = filepath.Join(env.layout.ProjectRoot, buildsys.CompileCommandsFile)
		}

		inputs := args
		if len(inputs) == 0 {
			inputs, err = buildsys.FindCompileCommands(env.layout)
			if err != nil {
				return err
			}
		}

		return buildsys.MergeCompileCommands(env.ctx, output, inputs...)
	},
}

func init() {
	mergeCompileCommandsCmd.Flags().StringP("output", "o", "", "output file (default: compile_commands.json in the project root)")
	rootCmd.AddCommand(mergeCompileCommandsCmd)
}
