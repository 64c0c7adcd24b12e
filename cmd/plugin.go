package cmd

import (
	"terminus/cmd/self_ops"
)

func init() {
	self_ops.AddInstallCommand(rootCmd, f)
	self_ops.AddListCommand(rootCmd, f)
	self_ops.AddUninstallCommand(rootCmd, f)
	self_ops.AddHistoryCommand(rootCmd, f)
}
