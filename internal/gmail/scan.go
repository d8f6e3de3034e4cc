package gmail

import (
	"context"
	"sort"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailsweep/internal/logging"
)

// SenderSummary aggregates one sender's footprint in the mailbox.
type SenderSummary struct {
	Name           string   `json:"name,omitempty"`
	Email          string   `json:"email"`
	Count          int      `json:"count"`
	Unread         int      `json:"unread"`
	HasUnsubscribe bool     `json:"has_unsubscribe"`
	MessageIDs     []string `json:"-"`
	SampleSubject  string   `json:"sample_subject,omitempty"`
}

// ScanResult is the outcome of a mailbox scan, senders ordered by message
// count descending.
type ScanResult struct {
	Senders   []SenderSummary `json:"senders"`
	Scanned   int             `json:"scanned"`
	ScannedAt time.Time       `json:"scanned_at"`
	Query     string          `json:"query"`
}

// DefaultScanQuery targets mail sitting in the inbox.
const DefaultScanQuery = "in:inbox"

// DefaultScanLimit bounds how many messages a single scan inspects.
const DefaultScanLimit = 500

// Scanner walks the mailbox and groups messages by sender so the user can
// decide what to clean up in bulk.
type Scanner struct {
	client  *Client
	tracker *Tracker
	logger  logging.Logger
}

// NewScanner creates a scanner reporting progress into tracker.
func NewScanner(client *Client, tracker *Tracker, logger logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	if tracker == nil {
		tracker = NewTracker()
	}
	return &Scanner{client: client, tracker: tracker, logger: logger}
}

// Run scans up to limit messages matching query and aggregates them by
// sender. It reports progress through the tracker and records the result
// there as well as returning it.
func (s *Scanner) Run(ctx context.Context, query string, limit int64) (*ScanResult, error) {
	if query == "" {
		query = DefaultScanQuery
	}
	if limit <= 0 {
		limit = DefaultScanLimit
	}

	ids, err := s.client.ListMessageIDs(ctx, query, limit)
	if err != nil {
		s.tracker.Fail(err)
		return nil, err
	}
	s.tracker.SetTotal(len(ids))

	bySender := make(map[string]*SenderSummary)
	for _, id := range ids {
		msg, err := s.client.GetMessageMetadata(id, "From", "Subject", "List-Unsubscribe")
		if err != nil {
			s.tracker.Fail(err)
			return nil, err
		}
		s.aggregate(bySender, msg)
		s.tracker.Advance()
	}

	result := &ScanResult{
		Senders:   sortSenders(bySender),
		Scanned:   len(ids),
		ScannedAt: time.Now(),
		Query:     query,
	}
	s.tracker.Finish(result)
	s.logger.Info("mailbox scan finished",
		logging.KeyOperation, "gmail.scan",
		"scanned", result.Scanned,
		"senders", len(result.Senders))
	return result, nil
}

func (s *Scanner) aggregate(bySender map[string]*SenderSummary, msg *gmail.Message) {
	name, email := ParseSender(HeaderValue(msg, "From"))
	if email == "" {
		return
	}

	summary, ok := bySender[email]
	if !ok {
		summary = &SenderSummary{Name: name, Email: email}
		bySender[email] = summary
	}
	summary.Count++
	summary.MessageIDs = append(summary.MessageIDs, msg.Id)
	if summary.SampleSubject == "" {
		summary.SampleSubject = HeaderValue(msg, "Subject")
	}
	if HeaderValue(msg, "List-Unsubscribe") != "" {
		summary.HasUnsubscribe = true
	}
	for _, label := range msg.LabelIds {
		if label == "UNREAD" {
			summary.Unread++
			break
		}
	}
}

func sortSenders(bySender map[string]*SenderSummary) []SenderSummary {
	senders := make([]SenderSummary, 0, len(bySender))
	for _, s := range bySender {
		senders = append(senders, *s)
	}
	sort.Slice(senders, func(i, j int) bool {
		if senders[i].Count != senders[j].Count {
			return senders[i].Count > senders[j].Count
		}
		return senders[i].Email < senders[j].Email
	})
	return senders
}
