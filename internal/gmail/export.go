package gmail

import (
	"context"
	"fmt"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// exportSeparator divides messages in a text export.
var exportSeparator = strings.Repeat("=", 80)

// DefaultExportLimit bounds how many threads one export fetches by query.
const DefaultExportLimit = 50

// ThreadPreview is a lightweight view of a thread for search results.
type ThreadPreview struct {
	ID       string `json:"id"`
	From     string `json:"from,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Date     string `json:"date,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
	Messages int    `json:"messages"`
}

// SearchThreads returns previews of threads matching the query.
func (c *Client) SearchThreads(ctx context.Context, query string, max int64) ([]ThreadPreview, error) {
	if max <= 0 {
		max = DefaultExportLimit
	}
	threads, err := c.ListThreads(ctx, query, max)
	if err != nil {
		return nil, fmt.Errorf("failed to search threads: %w", err)
	}

	previews := make([]ThreadPreview, 0, len(threads))
	for _, t := range threads {
		full, err := c.GetThread(ctx, t.Id)
		if err != nil {
			return nil, err
		}
		previews = append(previews, previewThread(full))
	}
	return previews, nil
}

func previewThread(t *gmail.Thread) ThreadPreview {
	p := ThreadPreview{
		ID:       t.Id,
		Snippet:  t.Snippet,
		Messages: len(t.Messages),
	}
	if len(t.Messages) > 0 {
		first := t.Messages[0]
		p.From = HeaderValue(first, "From")
		p.Subject = HeaderValue(first, "Subject")
		p.Date = HeaderValue(first, "Date")
		if p.Snippet == "" {
			p.Snippet = first.Snippet
		}
	}
	return p
}

// ExportThreads renders threads as plain text, either an explicit ID list
// or up to max threads matching a query. Each message carries its From,
// Date, and Subject headers followed by the decoded body.
func (c *Client) ExportThreads(ctx context.Context, query string, ids []string, max int64) (string, error) {
	if len(ids) == 0 {
		if query == "" {
			return "", fmt.Errorf("either a query or thread IDs are required")
		}
		if max <= 0 {
			max = DefaultExportLimit
		}
		threads, err := c.ListThreads(ctx, query, max)
		if err != nil {
			return "", fmt.Errorf("failed to list threads: %w", err)
		}
		for _, t := range threads {
			ids = append(ids, t.Id)
		}
	}

	var b strings.Builder
	for i, id := range ids {
		thread, err := c.GetThread(ctx, id)
		if err != nil {
			return "", err
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(formatThread(thread))
	}
	return b.String(), nil
}

// formatThread renders one thread's messages in export form.
func formatThread(t *gmail.Thread) string {
	var b strings.Builder
	for _, msg := range t.Messages {
		b.WriteString(exportSeparator)
		b.WriteString("\n")
		b.WriteString("From: " + HeaderValue(msg, "From") + "\n")
		b.WriteString("Date: " + HeaderValue(msg, "Date") + "\n")
		b.WriteString("Subject: " + HeaderValue(msg, "Subject") + "\n")
		b.WriteString("\n")

		body := MessageBody(msg)
		if body == "" {
			body = msg.Snippet
		}
		b.WriteString(strings.TrimRight(body, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}
