package cmd

import (
	"testing"

	"github.com/teemow/mailsweep/internal/gmail"
)

func TestFormatSenderLine(t *testing.T) {
	tests := []struct {
		name     string
		summary  gmail.SenderSummary
		expected string
	}{
		{
			name: "named sender with unsubscribe",
			summary: gmail.SenderSummary{
				Name:           "Weekly News",
				Email:          "news@example.com",
				Count:          42,
				Unread:         7,
				HasUnsubscribe: true,
			},
			expected: "  42 (  7 unread) U Weekly News <news@example.com>",
		},
		{
			name: "nameless sender falls back to email",
			summary: gmail.SenderSummary{
				Email: "alerts@example.com",
				Count: 3,
			},
			expected: "   3 (  0 unread)   alerts@example.com <alerts@example.com>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatSenderLine(tt.summary); got != tt.expected {
				t.Errorf("formatSenderLine() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFormatOutcomeLine(t *testing.T) {
	tests := []struct {
		name     string
		outcome  gmail.UnsubscribeOutcome
		expected string
	}{
		{
			name: "http success",
			outcome: gmail.UnsubscribeOutcome{
				Sender: "news@example.com",
				Method: "http",
				OK:     true,
			},
			expected: "ok     news@example.com via http",
		},
		{
			name: "mailto needs manual action",
			outcome: gmail.UnsubscribeOutcome{
				Sender: "digest@example.com",
				Method: "mailto",
				OK:     false,
				Detail: "send opt-out mail to unsubscribe@example.com",
			},
			expected: "failed digest@example.com via mailto: send opt-out mail to unsubscribe@example.com",
		},
		{
			name: "no header",
			outcome: gmail.UnsubscribeOutcome{
				Sender: "boss@example.com",
				OK:     false,
				Detail: "no List-Unsubscribe header",
			},
			expected: "failed boss@example.com: no List-Unsubscribe header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatOutcomeLine(tt.outcome); got != tt.expected {
				t.Errorf("formatOutcomeLine() = %q, want %q", got, tt.expected)
			}
		})
	}
}
