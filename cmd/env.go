package cmd

import (
	"terminus/cmd/env_ops"
)

func init() {
	env_ops.AddCodeRebuildCommand(rootCmd, f)
}
