package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// GetMessageMetadata retrieves only the headers of a Gmail message, which is
// much cheaper than a full fetch when the body is not needed.
func (c *Client) GetMessageMetadata(messageID string, headers ...string) (*gmail.Message, error) {
	req := c.svc.Messages.Get("me", messageID).Format("metadata")
	if len(headers) > 0 {
		req = req.MetadataHeaders(headers...)
	}
	msg, err := req.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}
	return msg, nil
}

// HeaderValue extracts a header value from a Gmail message. Header name
// matching is case-insensitive, as in RFC 5322.
func HeaderValue(m *gmail.Message, header string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, header) {
			return h.Value
		}
	}
	return ""
}

// MessageBody extracts the decoded text/plain body from a message, falling
// back to text/html when no plain part exists.
func MessageBody(m *gmail.Message) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	if body := findBody(m.Payload, "text/plain"); body != "" {
		return body
	}
	return findBody(m.Payload, "text/html")
}

func findBody(payload *gmail.MessagePart, mimeType string) string {
	var data string
	if payload.MimeType == mimeType && payload.Body != nil && payload.Body.Data != "" {
		data = payload.Body.Data
	} else {
		walkParts(payload, func(part *gmail.MessagePart) {
			if data == "" && part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
				data = part.Body.Data
			}
		})
	}
	if data == "" {
		return ""
	}
	return decodeBody(data)
}

// decodeBody decodes Gmail's base64url body data, tolerating standard
// base64 which some messages carry.
func decodeBody(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}

// walkParts recursively walks through message parts.
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}
	fn(part)
	for _, subpart := range part.Parts {
		walkParts(subpart, fn)
	}
}

// ParseSender splits an RFC 5322 From header into display name and address.
// "Jane Doe <jane@example.com>" yields ("Jane Doe", "jane@example.com"); a
// bare address yields an empty name.
func ParseSender(from string) (name, email string) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", ""
	}

	start := strings.LastIndex(from, "<")
	end := strings.LastIndex(from, ">")
	if start >= 0 && end > start {
		email = strings.TrimSpace(from[start+1 : end])
		name = strings.Trim(strings.TrimSpace(from[:start]), `"`)
		return name, email
	}
	return "", from
}
