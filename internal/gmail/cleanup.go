package gmail

import (
	"context"
	"fmt"

	"github.com/teemow/mailsweep/internal/logging"
)

// senderQuery builds a Gmail search for one sender, optionally narrowed by
// an extra query fragment.
func senderQuery(sender, extra string) string {
	q := fmt.Sprintf("from:%s", sender)
	if extra != "" {
		q += " " + extra
	}
	return q
}

// cleanupLimit bounds how many messages a single bulk operation touches.
const cleanupLimit = 1000

// MarkReadBySender removes the UNREAD label from all unread messages of the
// given sender and returns how many were affected.
func (c *Client) MarkReadBySender(ctx context.Context, sender string) (int, error) {
	ids, err := c.ListMessageIDs(ctx, senderQuery(sender, "is:unread"), cleanupLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to list unread messages: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := c.BatchModify(ctx, ids, nil, []string{"UNREAD"}); err != nil {
		return 0, err
	}
	c.logger.Info("marked messages read",
		logging.KeyOperation, "gmail.mark_read",
		"count", len(ids))
	return len(ids), nil
}

// TrashBySender moves all of a sender's messages to the trash and returns
// how many were moved.
func (c *Client) TrashBySender(ctx context.Context, sender string) (int, error) {
	ids, err := c.ListMessageIDs(ctx, senderQuery(sender, ""), cleanupLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to list messages: %w", err)
	}
	trashed, err := c.TrashMessages(ctx, ids)
	if err != nil {
		return trashed, err
	}
	c.logger.Info("trashed messages",
		logging.KeyOperation, "gmail.delete_emails",
		"count", trashed)
	return trashed, nil
}

// ArchiveBySender removes the INBOX label from all of a sender's messages
// and returns how many were archived.
func (c *Client) ArchiveBySender(ctx context.Context, sender string) (int, error) {
	ids, err := c.ListMessageIDs(ctx, senderQuery(sender, "in:inbox"), cleanupLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to list inbox messages: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := c.BatchModify(ctx, ids, nil, []string{"INBOX"}); err != nil {
		return 0, err
	}
	c.logger.Info("archived messages",
		logging.KeyOperation, "gmail.archive",
		"count", len(ids))
	return len(ids), nil
}

// TrashByIDs moves an explicit set of messages to the trash.
func (c *Client) TrashByIDs(ctx context.Context, ids []string) (int, error) {
	return c.TrashMessages(ctx, ids)
}
