package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the mailsweep application
var rootCmd = &cobra.Command{
	Use:   "mailsweep",
	Short: "Multi-account Gmail mailbox cleanup",
	Long: `mailsweep manages Google OAuth credentials for multiple Gmail accounts
and cleans up mailboxes: scan senders, unsubscribe from newsletters,
mark read, archive or delete mail in bulk.

It can run as:
  - An HTTP API server (default)
  - A standalone CLI tool (accounts, scan, unsubscribe)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailsweep version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAccountsCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newUnsubscribeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
