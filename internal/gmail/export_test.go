package gmail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
)

func exportMessage(from, date, subject, body string) *gmail.Message {
	msg := msgWithHeaders(map[string]string{
		"From":    from,
		"Date":    date,
		"Subject": subject,
	})
	msg.Payload.MimeType = "text/plain"
	msg.Payload.Body = &gmail.MessagePartBody{Data: b64(body)}
	return msg
}

func TestFormatThread(t *testing.T) {
	thread := &gmail.Thread{
		Messages: []*gmail.Message{
			exportMessage("Jane <jane@example.com>", "Mon, 2 Jun 2025 10:00:00 +0000", "hello", "first message\n"),
			exportMessage("Bob <bob@example.com>", "Mon, 2 Jun 2025 11:00:00 +0000", "Re: hello", "second message"),
		},
	}

	out := formatThread(thread)

	assert.Equal(t, 2, strings.Count(out, exportSeparator))
	assert.Contains(t, out, "From: Jane <jane@example.com>\n")
	assert.Contains(t, out, "Date: Mon, 2 Jun 2025 10:00:00 +0000\n")
	assert.Contains(t, out, "Subject: hello\n")
	assert.Contains(t, out, "first message\n")
	assert.Contains(t, out, "Subject: Re: hello\n")
	assert.Contains(t, out, "second message\n")

	// Headers come before the body within each message block.
	assert.Less(t, strings.Index(out, "Subject: hello"), strings.Index(out, "first message"))
}

func TestFormatThreadFallsBackToSnippet(t *testing.T) {
	msg := msgWithHeaders(map[string]string{"From": "jane@example.com"})
	msg.Snippet = "snippet text"
	thread := &gmail.Thread{Messages: []*gmail.Message{msg}}

	out := formatThread(thread)
	assert.Contains(t, out, "snippet text")
}

func TestPreviewThread(t *testing.T) {
	thread := &gmail.Thread{
		Id:      "t1",
		Snippet: "thread snippet",
		Messages: []*gmail.Message{
			exportMessage("Jane <jane@example.com>", "Mon, 2 Jun 2025 10:00:00 +0000", "hello", "body"),
			exportMessage("Bob <bob@example.com>", "Mon, 2 Jun 2025 11:00:00 +0000", "Re: hello", "body"),
		},
	}

	p := previewThread(thread)
	assert.Equal(t, "t1", p.ID)
	assert.Equal(t, "Jane <jane@example.com>", p.From)
	assert.Equal(t, "hello", p.Subject)
	assert.Equal(t, "thread snippet", p.Snippet)
	assert.Equal(t, 2, p.Messages)
}

func TestPreviewThreadEmpty(t *testing.T) {
	p := previewThread(&gmail.Thread{Id: "t2"})
	assert.Equal(t, "t2", p.ID)
	assert.Empty(t, p.From)
	assert.Zero(t, p.Messages)
}

func TestChunkIDs(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}

	chunks := chunkIDs(ids, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, []string{"a", "b"}, chunks[0])
	assert.Equal(t, []string{"c", "d"}, chunks[1])
	assert.Equal(t, []string{"e"}, chunks[2])

	assert.Len(t, chunkIDs(ids, 10), 1)
	assert.Empty(t, chunkIDs(nil, 2))
}

func TestSenderQuery(t *testing.T) {
	assert.Equal(t, "from:news@example.com", senderQuery("news@example.com", ""))
	assert.Equal(t, "from:news@example.com is:unread", senderQuery("news@example.com", "is:unread"))
}
