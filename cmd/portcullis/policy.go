package main

import (
	"github.com/spf13/cobra"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect capability policy behavior",
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(newPolicyExplainCmd())
}
