package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/faasm/faabric/build-tools/pkg"
	"github.com/faasm/faabric/build-tools/pkg/buildsys"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Prints the paths and toolchain settings read from build.star",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadTaskEnv(cmd)
		if err != nil {
			return err
		}

		layout := env.layout
		pkg.PrintTask("Project")
		pkg.PrintSubtask("root: " + layout.ProjectRoot)
		pkg.PrintSubtask("version: " + layout.Version)

		pkg.PrintTask("Build directories")
		for _, variant := range []buildsys.Variant{buildsys.Static, buildsys.Shared} {
			dir := layout.BuildDir(variant)
			if _, err := os.Stat(dir); err != nil {
				pkg.PrintError(fmt.Sprintf("%s: %s (not configured)", variant, dir))
			} else {
				pkg.PrintSubtask(fmt.Sprintf("%s: %s", variant, dir))
			}
		}
		pkg.PrintSubtask("install prefix: " + layout.InstallPrefix)

		pkg.PrintTask("Toolchain")
		pkg.PrintSubtask("generator: " + layout.Generator)
		pkg.PrintSubtask("C compiler: " + layout.CCompiler)
		pkg.PrintSubtask("C++ compiler: " + layout.CXXCompiler)
		pkg.PrintSubtask("image repo: " + layout.ImageRepo)

		if len(layout.Env) > 0 {
			pkg.PrintTask("Environment")
			names := make([]string, 0, len(layout.Env))
			for name := range layout.Env {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				pkg.PrintSubtask(name + "=" + layout.Env[name])
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(envCmd)
}
