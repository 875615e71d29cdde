package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Installs the benchmark tool",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		helper := CmdHelper{}
		logger := helper.GetLogger()
		ctx := helper.GetContext()

		force, _ := cmd.Flags().GetBool("force")

		inst := helper.GetInstaller(ctx, true)

		var path string
		var err error
		if force {
			path, err = inst.Install(ctx)
		} else {
			path, err = inst.Ensure(ctx)
		}
		if err != nil {
			logger.Fatal("failed to install benchmark tool", zap.Error(err))
		}

		fmt.Printf("%s\n", path)
	},
}

func init() {
	rootCmd.AddCommand(installCmd)

	installCmd.Flags().Bool("force", false, "Reinstall even if the tool is already present")
}
