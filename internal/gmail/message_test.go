package gmail

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	gmail "google.golang.org/api/gmail/v1"
)

func TestParseSender(t *testing.T) {
	tests := []struct {
		name      string
		from      string
		wantName  string
		wantEmail string
	}{
		{
			name:      "display name with address",
			from:      "Jane Doe <jane@example.com>",
			wantName:  "Jane Doe",
			wantEmail: "jane@example.com",
		},
		{
			name:      "quoted display name",
			from:      `"Doe, Jane" <jane@example.com>`,
			wantName:  "Doe, Jane",
			wantEmail: "jane@example.com",
		},
		{
			name:      "bare address",
			from:      "jane@example.com",
			wantName:  "",
			wantEmail: "jane@example.com",
		},
		{
			name:      "extra whitespace",
			from:      "  Newsletter  < news@example.com > ",
			wantName:  "Newsletter",
			wantEmail: "news@example.com",
		},
		{
			name:      "empty",
			from:      "",
			wantName:  "",
			wantEmail: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, email := ParseSender(tt.from)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantEmail, email)
		})
	}
}

func msgWithHeaders(headers map[string]string) *gmail.Message {
	payload := &gmail.MessagePart{}
	for k, v := range headers {
		payload.Headers = append(payload.Headers, &gmail.MessagePartHeader{Name: k, Value: v})
	}
	return &gmail.Message{Payload: payload}
}

func TestHeaderValue(t *testing.T) {
	msg := msgWithHeaders(map[string]string{
		"From":    "jane@example.com",
		"Subject": "hello",
	})

	assert.Equal(t, "jane@example.com", HeaderValue(msg, "From"))
	assert.Equal(t, "jane@example.com", HeaderValue(msg, "from"))
	assert.Equal(t, "hello", HeaderValue(msg, "SUBJECT"))
	assert.Empty(t, HeaderValue(msg, "Date"))
	assert.Empty(t, HeaderValue(nil, "From"))
	assert.Empty(t, HeaderValue(&gmail.Message{}, "From"))
}

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestMessageBodyPlainText(t *testing.T) {
	msg := &gmail.Message{Payload: &gmail.MessagePart{
		MimeType: "text/plain",
		Body:     &gmail.MessagePartBody{Data: b64("plain body")},
	}}
	assert.Equal(t, "plain body", MessageBody(msg))
}

func TestMessageBodyMultipartPrefersPlain(t *testing.T) {
	msg := &gmail.Message{Payload: &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "text/html",
				Body:     &gmail.MessagePartBody{Data: b64("<p>html body</p>")},
			},
			{
				MimeType: "text/plain",
				Body:     &gmail.MessagePartBody{Data: b64("plain body")},
			},
		},
	}}
	assert.Equal(t, "plain body", MessageBody(msg))
}

func TestMessageBodyFallsBackToHTML(t *testing.T) {
	msg := &gmail.Message{Payload: &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "text/html",
				Body:     &gmail.MessagePartBody{Data: b64("<p>html body</p>")},
			},
		},
	}}
	assert.Equal(t, "<p>html body</p>", MessageBody(msg))
}

func TestMessageBodyNestedParts(t *testing.T) {
	msg := &gmail.Message{Payload: &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{
						MimeType: "text/plain",
						Body:     &gmail.MessagePartBody{Data: b64("nested body")},
					},
				},
			},
		},
	}}
	assert.Equal(t, "nested body", MessageBody(msg))
}

func TestMessageBodyStandardBase64Tolerated(t *testing.T) {
	// These bytes encode to "++++" in standard base64, which the URL-safe
	// decoder rejects.
	raw := []byte{0xfb, 0xef, 0xbe}
	msg := &gmail.Message{Payload: &gmail.MessagePart{
		MimeType: "text/plain",
		Body:     &gmail.MessagePartBody{Data: base64.StdEncoding.EncodeToString(raw)},
	}}
	assert.Equal(t, string(raw), MessageBody(msg))
}

func TestMessageBodyEmpty(t *testing.T) {
	assert.Empty(t, MessageBody(nil))
	assert.Empty(t, MessageBody(&gmail.Message{}))
}
