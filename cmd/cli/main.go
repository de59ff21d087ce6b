package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/myrjola/surveycall/cmd/cli/calls"
	"github.com/myrjola/surveycall/cmd/cli/simulate"
	"github.com/myrjola/surveycall/cmd/cli/surveys"
	"github.com/spf13/cobra"
)

func init() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	rootCmd.PersistentFlags().String("sqlite-url", "", "SQLite URL, defaults to $SURVEYCALL_SQLITE_URL")
	rootCmd.PersistentFlags().Bool("verbose", false, "log debug output to stderr")
	rootCmd.AddGroup(surveys.Group)
	rootCmd.AddCommand(surveys.Command)
	rootCmd.AddGroup(calls.Group)
	rootCmd.AddCommand(calls.Command)
	rootCmd.AddGroup(simulate.Group)
	rootCmd.AddCommand(simulate.Command)
}

var rootCmd = &cobra.Command{
	Use:          "surveycall-cli",
	Long:         `Command line utilities for surveycall, the phone survey call engine`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
