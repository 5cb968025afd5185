package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "caseline",
	Short: "Caseline test case management backend",
	Long:  "Caseline is a multi-tenant backend for managing test suites, cases, milestones, and test runs, with group-based access control, dual JWT/PAT authentication, and Jira issue creation for failed results.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; built-in defaults and CASELINE_* env vars apply without one)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
