package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/mailsweep/internal/gmail"
)

func newUnsubscribeCmd() *cobra.Command {
	var (
		dir   string
		debug bool
		label string
	)

	cmd := &cobra.Command{
		Use:   "unsubscribe [MESSAGE_ID...]",
		Short: "Unsubscribe from newsletter senders",
		Long: `Unsubscribe using the List-Unsubscribe header of the given messages.

HTTP one-click targets are invoked directly; mailto targets are reported
so the user can send the opt-out mail themselves.

With --label, every message carrying that Gmail label is processed and the
label is removed afterwards, from failures too, so nothing is swept twice.
The messages themselves stay in the mailbox.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && label == "" {
				return fmt.Errorf("provide message IDs or --label")
			}

			ctx, cancel := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			resolver := cliResolver(dir, debug)
			client, err := cliGmailClient(ctx, resolver)
			if err != nil {
				return err
			}

			var outcomes []gmail.UnsubscribeOutcome
			if label != "" {
				outcomes, err = client.ProcessUnsubscribeLabel(ctx, label)
				if err != nil {
					return err
				}
			}
			for _, id := range args {
				outcomes = append(outcomes, client.Unsubscribe(ctx, id))
			}

			failed := 0
			for _, o := range outcomes {
				fmt.Println(formatOutcomeLine(o))
				if !o.OK {
					failed++
				}
			}
			fmt.Printf("\n%d processed, %d failed\n", len(outcomes), failed)
			if failed > 0 {
				return fmt.Errorf("%d unsubscribe attempts failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "State directory for credentials and tokens. Can also use MAILSWEEP_DIR env var.")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&label, "label", "", "Process all messages carrying this Gmail label")

	return cmd
}

// formatOutcomeLine renders one unsubscribe outcome for terminal output.
func formatOutcomeLine(o gmail.UnsubscribeOutcome) string {
	status := "ok"
	if !o.OK {
		status = "failed"
	}
	line := fmt.Sprintf("%-6s %s", status, o.Sender)
	if o.Method != "" {
		line += " via " + o.Method
	}
	if o.Detail != "" {
		line += ": " + o.Detail
	}
	return line
}
