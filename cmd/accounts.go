package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/mailsweep/internal/auth"
	"github.com/teemow/mailsweep/internal/logging"
)

// cliResolver builds a credential resolver for one-shot CLI commands.
func cliResolver(dir string, debug bool) *auth.Resolver {
	level := "warn"
	if debug {
		level = "debug"
	}
	cfg := auth.DefaultConfig()
	cfg.Logger = logging.Setup(os.Stderr, "text", level)
	if dir != "" {
		cfg.Dir = dir
	}
	return auth.NewResolver(cfg)
}

func newAccountsCmd() *cobra.Command {
	var (
		dir   string
		debug bool
	)

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage registered Gmail accounts",
		Long: `Manage the registered Gmail accounts and the active selection.

Tokens live in per-account files next to the account registry
(accounts.json) in the state directory.`,
	}

	cmd.PersistentFlags().StringVar(&dir, "dir", "", "State directory for credentials and tokens. Can also use MAILSWEEP_DIR env var.")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := cliResolver(dir, debug)
			accounts, active := resolver.ListAccounts()
			if len(accounts) == 0 {
				fmt.Println("No accounts registered. Run 'mailsweep accounts sign-in' to add one.")
				return nil
			}
			for _, a := range accounts {
				marker := " "
				if a.Email == active {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, a.Email)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "switch EMAIL",
		Short: "Make an account the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := cliResolver(dir, debug)
			if err := resolver.SwitchActive(args[0]); err != nil {
				return err
			}
			fmt.Printf("Active account is now %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove EMAIL",
		Short: "Remove an account and delete its stored token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := cliResolver(dir, debug)
			if err := resolver.RemoveAccount(args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed account %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sign-in",
		Short: "Authorize a Gmail account and register it",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := cliResolver(dir, debug)
			return runSignIn(resolver)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sign-out",
		Short: "Remove the active account",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := cliResolver(dir, debug)
			removed, err := resolver.SignOut()
			if err != nil {
				return err
			}
			if removed == "" {
				fmt.Println("No account was signed in.")
				return nil
			}
			fmt.Printf("Signed out %s\n", removed)
			if accounts, active := resolver.ListAccounts(); len(accounts) > 0 {
				fmt.Printf("Active account is now %s\n", active)
			}
			return nil
		},
	})

	return cmd
}

// runSignIn starts the interactive authorization flow and blocks until it
// completes or the user interrupts.
func runSignIn(resolver *auth.Resolver) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, msg := resolver.Resolve(ctx)
	if client != nil {
		if email, ok := resolver.CurrentUser(); ok {
			fmt.Printf("Already signed in as %s\n", email)
			return nil
		}
		fmt.Println("Already signed in.")
		return nil
	}

	st := resolver.PendingAuthorization()
	if st.State != auth.StateAwaitingAuthorization && st.State != auth.StateExchangingCode &&
		st.State != auth.StateResolvingIdentity && st.State != auth.StateRegistering {
		// The flow never started, e.g. missing client secrets.
		return fmt.Errorf("%s", msg)
	}
	fmt.Println(msg)
	if st.AuthURL != "" {
		fmt.Printf("Authorization URL: %s\n", st.AuthURL)
	}

	// The flow runs on a background goroutine; poll until it settles.
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("sign-in interrupted")
		case <-ticker.C:
		}

		switch st := resolver.PendingAuthorization(); st.State {
		case auth.StateIdle:
			if email, ok := resolver.CurrentUser(); ok {
				fmt.Printf("Signed in as %s\n", email)
				return nil
			}
			return fmt.Errorf("sign-in did not register an account")
		case auth.StateFailed:
			if st.LastError != nil {
				return st.LastError
			}
			return fmt.Errorf("sign-in failed")
		}
	}
}
