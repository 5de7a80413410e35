package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is stamped by the build.
var Version = "dev"

// rootFlags holds flags shared across subcommands.
type rootFlags struct {
	configPath string
	debug      bool
}

// newRootCommand builds the voyager command tree.
func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "voyager",
		Short:         "Autonomous web-navigation task engine",
		Long:          "Voyager drives an autonomous web-navigation agent: it observes the browser,\nasks an LLM for the next actions, executes them, and judges the outcome\nuntil the task's goal is achieved or abandoned.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// Local development convenience; missing .env is fine.
			_ = godotenv.Load()
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config file")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	root.AddCommand(newRunCommand(flags))
	root.AddCommand(newVersionCommand())
	return root
}

// newVersionCommand reports the build version.
func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the voyager version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("voyager " + Version)
		},
	}
}
