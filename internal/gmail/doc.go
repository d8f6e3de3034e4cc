// Package gmail provides a client for cleaning up a Gmail mailbox.
//
// This package offers the mailbox operations behind mailsweep:
//   - Scanning the inbox and grouping messages by sender
//   - Unsubscribing from senders via List-Unsubscribe (RFC 2369/8058)
//   - Bulk mark-read, archive, and trash by sender
//   - Exporting threads as plain text
//   - Label listing and lookup
//
// Authentication is not handled here: callers obtain an authorized
// *http.Client from the auth package and pass it to NewClient. That keeps
// this package free of credential lifecycle concerns and easy to exercise
// against recorded HTTP fixtures.
//
// Example usage:
//
//	httpClient, msg := resolver.Resolve(ctx)
//	if httpClient == nil {
//	    // a sign-in is in progress; surface msg to the user
//	    return
//	}
//	client, err := gmail.NewClient(ctx, httpClient, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := gmail.NewScanner(client, nil, nil).Run(ctx, "in:inbox", 500)
package gmail
