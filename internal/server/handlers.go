package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/teemow/mailsweep/internal/gmail"
	"github.com/teemow/mailsweep/internal/instrumentation"
)

// errorResponse is the JSON shape for error replies.
type errorResponse struct {
	Error string `json:"error"`
}

// authRequiredResponse tells the client sign-in is needed before the
// requested operation can run.
type authRequiredResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	PendingAuthURL string `json:"pendingAuthUrl,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeAuthRequired reports that no authorized client is available yet,
// including the pending authorization URL when a sign-in is under way.
func (s *APIServer) writeAuthRequired(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, authRequiredResponse{
		Status:         "auth_required",
		Message:        msg,
		PendingAuthURL: s.sc.Resolver().PendingAuthorization().AuthURL,
	})
}

// client resolves an authorized Gmail client or writes the auth-required
// response and returns nil.
func (s *APIServer) client(w http.ResponseWriter, _ *http.Request) *gmail.Client {
	client, msg := s.sc.GmailClient()
	if client == nil {
		s.writeAuthRequired(w, msg)
		return nil
	}
	return client
}

// recordOperation feeds the metrics recorder and audit logger after a
// mailbox operation. Both are optional.
func (s *APIServer) recordOperation(r *http.Request, operation, query string, affected int, err error) {
	email, _ := s.sc.Resolver().CurrentUser()
	if m := s.sc.Metrics(); m != nil {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
		}
		m.RecordGmailOperation(r.Context(), operation, status, 0)
		if err == nil && affected > 0 {
			m.RecordCleanupWithAccount(r.Context(), operation, email, affected)
		}
	}
	if al := s.sc.Audit(); al != nil {
		action := instrumentation.NewAction(operation).
			WithUser(email).
			WithOperation(operation, query).
			WithAffected(affected).
			WithSpanContext(r.Context()).
			Complete(err == nil, err)
		al.LogAction(action)
	}
}

// --- Account lifecycle ---

type accountsResponse struct {
	Accounts []string `json:"accounts"`
	Active   string   `json:"active,omitempty"`
}

func (s *APIServer) handleListAccounts(w http.ResponseWriter, _ *http.Request) {
	accounts, active := s.sc.Resolver().ListAccounts()
	emails := make([]string, 0, len(accounts))
	for _, a := range accounts {
		emails = append(emails, a.Email)
	}
	writeJSON(w, http.StatusOK, accountsResponse{Accounts: emails, Active: active})
}

type accountRequest struct {
	Email string `json:"email"`
}

func (s *APIServer) handleSwitchAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	if err := s.sc.Resolver().SwitchActive(req.Email); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active": req.Email})
}

func (s *APIServer) handleRemoveAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	if err := s.sc.Resolver().RemoveAccount(req.Email); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": req.Email})
}

func (s *APIServer) handleSignIn(w http.ResponseWriter, _ *http.Request) {
	client, msg := s.sc.GmailClient()
	if client != nil {
		email, _ := s.sc.Resolver().CurrentUser()
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Already signed in.",
			"email":   email,
		})
		return
	}

	writeJSON(w, http.StatusOK, authRequiredResponse{
		Status:         "auth_required",
		Message:        msg,
		PendingAuthURL: s.sc.Resolver().PendingAuthorization().AuthURL,
	})
}

func (s *APIServer) handleSignOut(w http.ResponseWriter, _ *http.Request) {
	email, err := s.sc.Resolver().SignOut()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": email})
}

func (s *APIServer) handleAuthStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sc.Resolver().Status())
}

func (s *APIServer) handleMe(w http.ResponseWriter, r *http.Request) {
	client := s.client(w, r)
	if client == nil {
		return
	}
	email, err := client.Profile(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": email})
}

// --- Mailbox operations ---

type scanRequest struct {
	Query string `json:"query,omitempty"`
	Limit int64  `json:"limit,omitempty"`
}

func (s *APIServer) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if r.ContentLength > 0 && !readJSON(w, r, &req) {
		return
	}

	client := s.client(w, r)
	if client == nil {
		return
	}

	tracker := s.sc.Tracker()
	if !tracker.TryStart(0) {
		writeError(w, http.StatusConflict, "Scan already running")
		return
	}

	scanner := gmail.NewScanner(client, tracker, s.sc.logger)
	// The scan outlives the request; it runs against the server context and
	// reports through the tracker.
	go func() {
		ctx, span := instrumentation.StartActionSpan(s.sc.Context(), instrumentation.OperationScan)
		defer span.End()

		start := time.Now()
		_, err := scanner.Run(ctx, req.Query, req.Limit)
		if err != nil {
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		if m := s.sc.Metrics(); m != nil {
			m.RecordScanDuration(ctx, time.Since(start))
			status := instrumentation.StatusSuccess
			if err != nil {
				status = instrumentation.StatusError
			}
			m.RecordGmailOperation(ctx, instrumentation.OperationScan, status, time.Since(start))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]bool{"started": true})
}

func (s *APIServer) handleScanStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sc.Tracker().Snapshot())
}

type unsubscribeRequest struct {
	MessageID string `json:"messageId"`
}

func (s *APIServer) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.MessageID == "" {
		writeError(w, http.StatusBadRequest, "messageId is required")
		return
	}

	client := s.client(w, r)
	if client == nil {
		return
	}

	ctx, span := instrumentation.StartGmailSpan(r.Context(), instrumentation.OperationUnsubscribe)
	outcome := client.Unsubscribe(ctx, req.MessageID)
	if outcome.OK {
		instrumentation.SetSpanSuccess(span)
	} else {
		instrumentation.SetSpanError(span, errors.New(outcome.Detail))
	}
	span.End()

	affected := 0
	if outcome.OK {
		affected = 1
	}
	s.recordOperation(r, instrumentation.OperationUnsubscribe, "", affected, nil)
	writeJSON(w, http.StatusOK, outcome)
}

type labelRequest struct {
	Label string `json:"label,omitempty"`
}

func (s *APIServer) handleProcessUnsubscribeLabel(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if r.ContentLength > 0 && !readJSON(w, r, &req) {
		return
	}

	client := s.client(w, r)
	if client == nil {
		return
	}

	outcomes, err := client.ProcessUnsubscribeLabel(r.Context(), req.Label)
	s.recordOperation(r, instrumentation.OperationUnsubscribe, "label:"+req.Label, len(outcomes), err)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
}

type senderRequest struct {
	Sender string   `json:"sender,omitempty"`
	IDs    []string `json:"ids,omitempty"`
}

func (s *APIServer) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	var req senderRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Sender == "" {
		writeError(w, http.StatusBadRequest, "sender is required")
		return
	}

	client := s.client(w, r)
	if client == nil {
		return
	}

	affected, err := client.MarkReadBySender(r.Context(), req.Sender)
	s.recordOperation(r, instrumentation.OperationMarkRead, "from:"+req.Sender, affected, err)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"affected": affected})
}

func (s *APIServer) handleDeleteEmails(w http.ResponseWriter, r *http.Request) {
	var req senderRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Sender == "" && len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "sender or ids is required")
		return
	}

	client := s.client(w, r)
	if client == nil {
		return
	}

	var affected int
	var err error
	query := "ids:" + strings.Join(req.IDs, ",")
	if req.Sender != "" {
		query = "from:" + req.Sender
		affected, err = client.TrashBySender(r.Context(), req.Sender)
	} else {
		affected, err = client.TrashByIDs(r.Context(), req.IDs)
	}
	s.recordOperation(r, instrumentation.OperationDelete, query, affected, err)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"affected": affected})
}

func (s *APIServer) handleArchive(w http.ResponseWriter, r *http.Request) {
	var req senderRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Sender == "" {
		writeError(w, http.StatusBadRequest, "sender is required")
		return
	}

	client := s.client(w, r)
	if client == nil {
		return
	}

	affected, err := client.ArchiveBySender(r.Context(), req.Sender)
	s.recordOperation(r, instrumentation.OperationArchive, "from:"+req.Sender, affected, err)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"affected": affected})
}

type exportRequest struct {
	Query string   `json:"query,omitempty"`
	IDs   []string `json:"ids,omitempty"`
	Limit int64    `json:"limit,omitempty"`
}

func (s *APIServer) handleExportThreads(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Query == "" && len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "query or ids is required")
		return
	}

	client := s.client(w, r)
	if client == nil {
		return
	}

	text, err := client.ExportThreads(r.Context(), req.Query, req.IDs, req.Limit)
	s.recordOperation(r, instrumentation.OperationExport, req.Query, len(req.IDs), err)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *APIServer) handleSearchThreads(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	client := s.client(w, r)
	if client == nil {
		return
	}

	threads, err := client.SearchThreads(r.Context(), req.Query, req.Limit)
	s.recordOperation(r, instrumentation.OperationSearch, req.Query, len(threads), err)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": threads})
}
