package gmail

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teemow/mailsweep/internal/logging"
)

// externalHTTPClient is used for unsubscribe requests to third-party
// endpoints. Timeouts are tight: an unsubscribe endpoint that hangs should
// not stall a label sweep.
var externalHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	},
}

// UnsubscribeInfo contains information about how to unsubscribe from a sender.
type UnsubscribeInfo struct {
	MessageID      string
	HasUnsubscribe bool
	OneClick       bool
	Methods        []UnsubscribeMethod
}

// UnsubscribeMethod represents a single unsubscribe method.
type UnsubscribeMethod struct {
	Type string // "mailto" or "http"
	URL  string
}

// UnsubscribeOutcome reports what happened for one message during an
// unsubscribe attempt.
type UnsubscribeOutcome struct {
	MessageID string `json:"message_id"`
	Sender    string `json:"sender,omitempty"`
	Method    string `json:"method,omitempty"`
	OK        bool   `json:"ok"`
	Detail    string `json:"detail,omitempty"`
}

// GetUnsubscribeInfo extracts List-Unsubscribe information from a message.
func (c *Client) GetUnsubscribeInfo(messageID string) (*UnsubscribeInfo, error) {
	msg, err := c.GetMessageMetadata(messageID, "List-Unsubscribe", "List-Unsubscribe-Post")
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	info := &UnsubscribeInfo{
		MessageID: messageID,
		Methods:   []UnsubscribeMethod{},
	}

	listUnsubscribe := HeaderValue(msg, "List-Unsubscribe")
	if listUnsubscribe == "" {
		return info, nil
	}

	info.HasUnsubscribe = true
	info.Methods = parseListUnsubscribe(listUnsubscribe)
	// RFC 8058: the endpoint accepts a bare POST, no confirmation page.
	info.OneClick = strings.Contains(
		strings.ToLower(HeaderValue(msg, "List-Unsubscribe-Post")), "one-click")

	return info, nil
}

// parseListUnsubscribe parses the List-Unsubscribe header value.
// Format: <mailto:unsub@example.com>, <https://example.com/unsub>
func parseListUnsubscribe(header string) []UnsubscribeMethod {
	var methods []UnsubscribeMethod

	parts := strings.Split(header, "<")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		endIdx := strings.Index(part, ">")
		if endIdx == -1 {
			continue
		}

		u := strings.TrimSpace(part[:endIdx])
		if strings.HasPrefix(u, "mailto:") {
			methods = append(methods, UnsubscribeMethod{Type: "mailto", URL: u})
		} else if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
			methods = append(methods, UnsubscribeMethod{Type: "http", URL: u})
		}
	}

	return methods
}

// ValidateExternalURL rejects unsubscribe URLs that would make the process
// call into itself or the local network. The header value comes from
// arbitrary senders and must be treated as hostile.
func ValidateExternalURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("URL has no host")
	}

	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") || strings.HasSuffix(lower, ".local") {
		return fmt.Errorf("refusing to call local host %q", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return fmt.Errorf("refusing to call non-public address %q", host)
		}
	}
	return nil
}

// UnsubscribeViaHTTP calls an unsubscribe endpoint. With oneClick set it
// sends the RFC 8058 POST; otherwise a plain GET, which many senders still
// expect.
func (c *Client) UnsubscribeViaHTTP(ctx context.Context, rawURL string, oneClick bool) error {
	if err := ValidateExternalURL(rawURL); err != nil {
		return err
	}

	var req *http.Request
	var err error
	if oneClick {
		body := strings.NewReader("List-Unsubscribe=One-Click")
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, rawURL, body)
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Some unsubscribe endpoints reject requests without a user agent.
	req.Header.Set("User-Agent", "mailsweep/1.0")

	resp, err := externalHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send unsubscribe request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("unsubscribe request failed with status %d", resp.StatusCode)
	}
	return nil
}

// Unsubscribe attempts to unsubscribe from the sender of messageID. HTTP
// methods are attempted in header order; a one-click POST falls back to a
// GET if the POST is rejected. Mailto-only senders cannot be handled
// automatically and are reported as such.
func (c *Client) Unsubscribe(ctx context.Context, messageID string) UnsubscribeOutcome {
	outcome := UnsubscribeOutcome{MessageID: messageID}

	info, err := c.GetUnsubscribeInfo(messageID)
	if err != nil {
		outcome.Detail = err.Error()
		return outcome
	}
	if msg, merr := c.GetMessageMetadata(messageID, "From"); merr == nil {
		_, outcome.Sender = ParseSender(HeaderValue(msg, "From"))
	}

	if !info.HasUnsubscribe {
		outcome.Detail = "no List-Unsubscribe header"
		return outcome
	}

	var mailto string
	for _, m := range info.Methods {
		if m.Type == "mailto" {
			if mailto == "" {
				mailto = m.URL
			}
			continue
		}

		if info.OneClick {
			if err := c.UnsubscribeViaHTTP(ctx, m.URL, true); err == nil {
				outcome.OK = true
				outcome.Method = "one-click"
				return outcome
			}
			c.logger.Debug("one-click unsubscribe failed, falling back to GET",
				"message_id", messageID)
		}
		if err := c.UnsubscribeViaHTTP(ctx, m.URL, false); err != nil {
			outcome.Detail = err.Error()
			continue
		}
		outcome.OK = true
		outcome.Method = "http"
		return outcome
	}

	if mailto != "" {
		outcome.Method = "mailto"
		outcome.Detail = "manual action required: " + mailto
	} else if outcome.Detail == "" {
		outcome.Detail = "no usable unsubscribe method"
	}
	return outcome
}

// DefaultUnsubscribeLabel is the label the sweep processes when none is
// given.
const DefaultUnsubscribeLabel = "Unsubscribe"

// ProcessUnsubscribeLabel sweeps every message carrying the label and
// attempts to unsubscribe. The label is removed from each processed message
// regardless of outcome, so a failed attempt is not re-swept forever; the
// messages themselves are left in place.
func (c *Client) ProcessUnsubscribeLabel(ctx context.Context, label string) ([]UnsubscribeOutcome, error) {
	if label == "" {
		label = DefaultUnsubscribeLabel
	}

	labelID, err := c.FindLabel(ctx, label)
	if err != nil {
		return nil, err
	}

	ids, err := c.ListMessageIDsByLabel(ctx, labelID, 200)
	if err != nil {
		return nil, fmt.Errorf("failed to list labeled messages: %w", err)
	}

	outcomes := make([]UnsubscribeOutcome, 0, len(ids))
	for _, id := range ids {
		outcome := c.Unsubscribe(ctx, id)
		outcomes = append(outcomes, outcome)
		c.logger.Info("processed labeled message",
			logging.KeyOperation, "gmail.process_unsubscribe_label",
			"message_id", id,
			logging.KeyStatus, statusOf(outcome.OK))
	}

	if len(ids) > 0 {
		if err := c.BatchModify(ctx, ids, nil, []string{labelID}); err != nil {
			c.logger.Warn("could not remove label from processed messages",
				logging.KeyOperation, "gmail.process_unsubscribe_label",
				"label", label,
				logging.KeyError, err.Error())
		}
	}
	return outcomes, nil
}

func statusOf(ok bool) string {
	if ok {
		return logging.StatusSuccess
	}
	return logging.StatusError
}
