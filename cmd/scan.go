package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/mailsweep/internal/auth"
	"github.com/teemow/mailsweep/internal/gmail"
	"github.com/teemow/mailsweep/internal/logging"
)

// cliGmailClient resolves an authorized Gmail client for one-shot commands.
// It returns an error carrying the resolver's user-facing message when no
// credential is available.
func cliGmailClient(ctx context.Context, resolver *auth.Resolver) (*gmail.Client, error) {
	httpClient, msg := resolver.Resolve(ctx)
	if httpClient == nil {
		return nil, fmt.Errorf("%s", msg)
	}
	return gmail.NewClient(ctx, httpClient, logging.DefaultLogger())
}

func newScanCmd() *cobra.Command {
	var (
		dir   string
		debug bool
		query string
		limit int64
		top   int
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the mailbox and summarize senders",
		Long: `Scan the active account's mailbox and print a per-sender summary,
ordered by message count. Senders advertising a List-Unsubscribe header
are marked so they can be fed to 'mailsweep unsubscribe'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			resolver := cliResolver(dir, debug)
			client, err := cliGmailClient(ctx, resolver)
			if err != nil {
				return err
			}

			scanner := gmail.NewScanner(client, gmail.NewTracker(), logging.DefaultLogger())
			result, err := scanner.Run(ctx, query, limit)
			if err != nil {
				return err
			}

			fmt.Printf("Scanned %d messages matching %q\n\n", result.Scanned, result.Query)
			senders := result.Senders
			if top > 0 && len(senders) > top {
				senders = senders[:top]
			}
			for _, s := range senders {
				fmt.Println(formatSenderLine(s))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "State directory for credentials and tokens. Can also use MAILSWEEP_DIR env var.")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&query, "query", gmail.DefaultScanQuery, "Gmail search query to scan")
	cmd.Flags().Int64Var(&limit, "limit", gmail.DefaultScanLimit, "Maximum number of messages to scan")
	cmd.Flags().IntVar(&top, "top", 25, "Number of senders to print (0 for all)")

	return cmd
}

// formatSenderLine renders one sender summary for terminal output.
func formatSenderLine(s gmail.SenderSummary) string {
	name := s.Name
	if name == "" {
		name = s.Email
	}
	mark := " "
	if s.HasUnsubscribe {
		mark = "U"
	}
	return fmt.Sprintf("%4d (%3d unread) %s %s <%s>", s.Count, s.Unread, mark, name, s.Email)
}
