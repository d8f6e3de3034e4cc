package gmail

import (
	"context"
	"fmt"
	"net/http"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/mailsweep/internal/logging"
)

// Client wraps the Gmail Users service for mailbox cleanup operations.
type Client struct {
	svc    *gmail.UsersService
	logger logging.Logger
}

// NewClient creates a Gmail client over an authorized HTTP client. The HTTP
// client carries the OAuth token; see the auth package for how it is
// resolved.
func NewClient(ctx context.Context, httpClient *http.Client, logger logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &Client{svc: svc.Users, logger: logger}, nil
}

// Profile returns the email address of the authorized account.
func (c *Client) Profile(ctx context.Context) (string, error) {
	profile, err := c.svc.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to fetch profile: %w", err)
	}
	return profile.EmailAddress, nil
}

// ListMessageIDs collects up to max message IDs matching the query.
func (c *Client) ListMessageIDs(ctx context.Context, q string, max int64) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		remaining := max - int64(len(ids))
		if remaining <= 0 {
			break
		}
		pageSize := remaining
		if pageSize > 500 {
			pageSize = 500
		}

		req := c.svc.Messages.List("me").Q(q).MaxResults(pageSize).Context(ctx)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		res, err := req.Do()
		if err != nil {
			return nil, err
		}
		for _, m := range res.Messages {
			ids = append(ids, m.Id)
		}
		if res.NextPageToken == "" || int64(len(ids)) >= max {
			break
		}
		pageToken = res.NextPageToken
	}

	if int64(len(ids)) > max {
		ids = ids[:max]
	}
	return ids, nil
}

// ListMessageIDsByLabel collects up to max message IDs carrying the label.
// Filtering by label ID rather than a label: query keeps label names with
// spaces or other special characters working.
func (c *Client) ListMessageIDsByLabel(ctx context.Context, labelID string, max int64) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		remaining := max - int64(len(ids))
		if remaining <= 0 {
			break
		}
		pageSize := remaining
		if pageSize > 500 {
			pageSize = 500
		}

		req := c.svc.Messages.List("me").LabelIds(labelID).MaxResults(pageSize).Context(ctx)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		res, err := req.Do()
		if err != nil {
			return nil, err
		}
		for _, m := range res.Messages {
			ids = append(ids, m.Id)
		}
		if res.NextPageToken == "" || int64(len(ids)) >= max {
			break
		}
		pageToken = res.NextPageToken
	}

	if int64(len(ids)) > max {
		ids = ids[:max]
	}
	return ids, nil
}

// ListThreads lists threads matching the query with pagination, fetching up
// to maxResults threads across multiple API calls.
func (c *Client) ListThreads(ctx context.Context, q string, maxResults int64) ([]*gmail.Thread, error) {
	var allThreads []*gmail.Thread
	pageToken := ""

	for {
		remaining := maxResults - int64(len(allThreads))
		if remaining <= 0 {
			break
		}

		// Gmail caps the page size at 100 for thread listings.
		pageSize := remaining
		if pageSize > 100 {
			pageSize = 100
		}

		req := c.svc.Threads.List("me").Q(q).MaxResults(pageSize).Context(ctx)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		res, err := req.Do()
		if err != nil {
			return nil, err
		}

		allThreads = append(allThreads, res.Threads...)

		if res.NextPageToken == "" || int64(len(allThreads)) >= maxResults {
			break
		}
		pageToken = res.NextPageToken
	}

	if int64(len(allThreads)) > maxResults {
		allThreads = allThreads[:maxResults]
	}
	return allThreads, nil
}

// GetThread retrieves a full Gmail thread with all its messages.
func (c *Client) GetThread(ctx context.Context, threadID string) (*gmail.Thread, error) {
	thread, err := c.svc.Threads.Get("me", threadID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get thread %s: %w", threadID, err)
	}
	return thread, nil
}

// batchModifyChunk is the Gmail API limit on IDs per batchModify call.
const batchModifyChunk = 1000

// BatchModify applies label changes to all given message IDs, chunking to
// stay within the API limit.
func (c *Client) BatchModify(ctx context.Context, ids []string, add, remove []string) error {
	for _, chunk := range chunkIDs(ids, batchModifyChunk) {
		err := c.svc.Messages.BatchModify("me", &gmail.BatchModifyMessagesRequest{
			Ids:            chunk,
			AddLabelIds:    add,
			RemoveLabelIds: remove,
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to modify messages: %w", err)
		}
	}
	return nil
}

// TrashMessages moves the given messages to the trash.
func (c *Client) TrashMessages(ctx context.Context, ids []string) (int, error) {
	trashed := 0
	for _, id := range ids {
		if _, err := c.svc.Messages.Trash("me", id).Context(ctx).Do(); err != nil {
			return trashed, fmt.Errorf("failed to trash message %s: %w", id, err)
		}
		trashed++
	}
	return trashed, nil
}

func chunkIDs(ids []string, size int) [][]string {
	if size <= 0 {
		return [][]string{ids}
	}
	var chunks [][]string
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}
