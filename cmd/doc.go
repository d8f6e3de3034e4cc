// Package cmd implements the command-line interface for mailsweep.
//
// This package provides the following commands:
//   - serve: Start the HTTP API and metrics servers
//   - accounts: Manage registered Gmail accounts (list, switch, remove, sign-in, sign-out)
//   - scan: Scan the mailbox and summarize senders
//   - unsubscribe: Unsubscribe from newsletter senders
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
