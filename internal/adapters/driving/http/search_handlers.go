package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/poller"
)

const (
	maxCallbackBytes = 1 << 20

	searchStartedMessage = "Your query is being processed by the AI system..."
	notReadyMessage      = "Results are not ready yet"
	retrievalFailed      = "Error retrieving results. Please try again."
)

// SearchRequest is the intake body
// @Description Free-text search submission
type SearchRequest struct {
	Query string `json:"query" example:"email automation for a small shop"`
	// SessionID is an optional client-proposed UUID
	SessionID string `json:"sessionId,omitempty" example:"4f0c2c1e-7d1a-4f55-9a55-2f3c7a0e9b11"`
	// Timestamp is the client submission time in unix milliseconds
	Timestamp     int64                 `json:"timestamp,omitempty" example:"1760400000000"`
	ClientContext *ClientContextRequest `json:"clientContext,omitempty"`
}

// ClientContextRequest is client-supplied context forwarded to the workflow
type ClientContextRequest struct {
	Source    string `json:"source,omitempty" example:"homepage"`
	UserAgent string `json:"userAgent,omitempty"`
	Locale    string `json:"locale,omitempty" example:"en-US"`
}

// SearchPreview is the coarse estimate shown while the search runs
type SearchPreview struct {
	EstimatedCount int      `json:"estimatedCount" example:"5"`
	Categories     []string `json:"categories"`
	ProcessingTime string   `json:"processingTime" example:"2-5 seconds"`
	Status         string   `json:"status" example:"processing"`
}

// SearchResponse is the intake acknowledgement
// @Description Immediate acknowledgement of a submitted search
type SearchResponse struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	// ResponseTime is the intake latency in milliseconds
	ResponseTime int64         `json:"responseTime" example:"42"`
	Preview      SearchPreview `json:"preview"`
	Dispatched   bool          `json:"dispatched"`
}

// PollResponse is returned by the poll endpoints
// @Description Result lookup for a session
type PollResponse struct {
	Found   bool                  `json:"found"`
	Data    *domain.ResultPayload `json:"data,omitempty"`
	Message string                `json:"message,omitempty" example:"Results are not ready yet"`
}

// SessionResponse is the public view of a search session
// @Description Search session status
type SessionResponse struct {
	SessionID   string               `json:"sessionId"`
	Query       string               `json:"query"`
	Status      domain.SessionStatus `json:"status" example:"waiting"`
	SubmittedAt time.Time            `json:"submittedAt"`
	Preview     *domain.Preview      `json:"preview,omitempty"`
	Dispatched  bool                 `json:"dispatched"`
	CompletedAt *time.Time           `json:"completedAt,omitempty"`
}

// CallbackResponse acknowledges a workflow callback
// @Description Callback acknowledgement
type CallbackResponse struct {
	Success    bool                `json:"success"`
	SessionID  string              `json:"sessionId"`
	TotalFound int                 `json:"totalFound"`
	Status     domain.ResultStatus `json:"status"`
}

// handleSearch godoc
// @Summary      Submit a search
// @Description  Creates a search session, dispatches the query to the workflow and returns immediately
// @Tags         Search
// @Accept       json
// @Produce      json
// @Param        request  body      SearchRequest  true  "Search query"
// @Success      200      {object}  SearchResponse
// @Failure      400      {object}  ErrorResponse  "Missing or oversized query"
// @Failure      409      {object}  ErrorResponse  "Session id already in use"
// @Failure      429      {object}  ErrorResponse  "Rate limited"
// @Failure      503      {object}  ErrorResponse  "Workflow unreachable"
// @Router       /search [post]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cc := domain.ClientContext{
		UserAgent: r.Header.Get("User-Agent"),
		ClientIP:  clientIP(r),
		Referer:   r.Header.Get("Referer"),
		Origin:    r.Header.Get("Origin"),
	}
	if req.ClientContext != nil {
		cc.Source = req.ClientContext.Source
		cc.Locale = req.ClientContext.Locale
		if req.ClientContext.UserAgent != "" {
			cc.UserAgent = req.ClientContext.UserAgent
		}
	}

	resp, err := s.intakeService.Submit(r.Context(), domain.SubmitRequest{
		Query:     req.Query,
		SessionID: req.SessionID,
		Timestamp: req.Timestamp,
		Context:   cc,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "please describe what you are looking for (up to 1000 characters)")
		case errors.Is(err, domain.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "this search was already submitted, please start a new search")
		case errors.Is(err, domain.ErrDispatchFailed):
			writeError(w, http.StatusServiceUnavailable, "search is temporarily unavailable, please try again")
		default:
			s.logger.Error("search submit failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to start the search, please try again")
		}
		return
	}

	categories := resp.Preview.Categories
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		SessionID:    resp.SessionID,
		Message:      searchStartedMessage,
		ResponseTime: resp.ResponseTime.Milliseconds(),
		Preview: SearchPreview{
			EstimatedCount: resp.Preview.EstimatedCount,
			Categories:     categories,
			ProcessingTime: "2-5 seconds",
			Status:         string(domain.SessionProcessing),
		},
		Dispatched: resp.Dispatched,
	})
}

// handleGetResults godoc
// @Summary      Poll for results
// @Description  Returns the stored recommendations for a session, found=false until the workflow has called back
// @Tags         Search
// @Produce      json
// @Param        sessionId  path      string  true  "Session ID"
// @Success      200        {object}  PollResponse
// @Failure      400        {object}  ErrorResponse  "Missing session id"
// @Failure      500        {object}  ErrorResponse  "Result store unavailable"
// @Router       /search/{sessionId}/results [get]
func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	s.writeResults(w, r, r.PathValue("sessionId"))
}

// handleLegacyGetResults serves GET /api/search-results?sessionId=
func (s *Server) handleLegacyGetResults(w http.ResponseWriter, r *http.Request) {
	s.writeResults(w, r, r.URL.Query().Get("sessionId"))
}

func (s *Server) writeResults(w http.ResponseWriter, r *http.Request, sessionID string) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	payload, found, err := s.resultService.Get(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("failed to read results", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, retrievalFailed)
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, PollResponse{Found: false, Message: notReadyMessage})
		return
	}

	writeJSON(w, http.StatusOK, PollResponse{Found: true, Data: payload})
}

// handleGetSession godoc
// @Summary      Get search session
// @Description  Returns the status of a search session
// @Tags         Search
// @Produce      json
// @Param        sessionId  path      string  true  "Session ID"
// @Success      200        {object}  SessionResponse
// @Failure      404        {object}  ErrorResponse  "Unknown or expired session"
// @Router       /search/{sessionId} [get]
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.intakeService.Session(r.Context(), r.PathValue("sessionId"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		SessionID:   session.ID,
		Query:       session.Query,
		Status:      session.Status,
		SubmittedAt: session.SubmittedAt,
		Preview:     session.Preview,
		Dispatched:  session.Dispatched,
		CompletedAt: session.CompletedAt,
	})
}

// handleSearchEvents godoc
// @Summary      Stream search progress
// @Description  Server-sent events: update events while waiting, then one completed or error event. Same budget as polling.
// @Tags         Search
// @Produce      text/event-stream
// @Param        sessionId  path   string  true   "Session ID"
// @Param        consumer   query  string  false  "Consumer key; a newer stream for the same consumer closes this one"
// @Success      200
// @Failure      404  {object}  ErrorResponse  "Unknown or expired session"
// @Router       /search/{sessionId}/events [get]
func (s *Server) handleSearchEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	if _, err := s.intakeService.Session(r.Context(), sessionID); err != nil {
		s.writeSessionError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// A consumer holds one stream at a time; opening another supersedes it
	consumer := r.URL.Query().Get("consumer")
	if consumer == "" {
		consumer = sessionID
	}

	var outcome poller.Outcome
	var delivered bool
	exited, err := s.streams.Start(r.Context(), consumer, sessionID,
		func(u poller.Update) {
			if u.State.IsTerminal() {
				return
			}
			writeEvent(w, "update", progressEvent{
				State:     u.State,
				Progress:  u.Progress,
				Attempt:   u.Attempt,
				ElapsedMs: u.Elapsed.Milliseconds(),
			})
			flusher.Flush()
		},
		func(o poller.Outcome) {
			outcome = o
			delivered = true
		})
	if err != nil {
		s.logger.Debug("event stream refused", "session_id", sessionID, "error", err)
		return
	}
	<-exited

	if !delivered {
		s.logger.Debug("event stream closed", "session_id", sessionID, "consumer", consumer)
		return
	}

	if outcome.State == domain.PollCompleted {
		writeEvent(w, "completed", PollResponse{Found: true, Data: outcome.Payload})
	} else {
		ev := failureEvent{Attempts: outcome.Attempts}
		if outcome.Err != nil {
			ev.Kind = outcome.Err.Kind
			ev.Message = outcome.Err.UserMessage()
		}
		writeEvent(w, "error", ev)
	}
	flusher.Flush()
}

type progressEvent struct {
	State     domain.PollState `json:"state"`
	Progress  int              `json:"progress"`
	Attempt   int              `json:"attempt"`
	ElapsedMs int64            `json:"elapsedMs"`
}

type failureEvent struct {
	Kind     domain.PollErrorKind `json:"kind"`
	Message  string               `json:"message"`
	Attempts int                  `json:"attempts"`
}

func writeEvent(w http.ResponseWriter, event string, data interface{}) {
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
}

// handleCallback godoc
// @Summary      Workflow callback
// @Description  Receives the recommendations for a session. Requires the callback token issued for that session.
// @Tags         Search
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.Callback  true  "Workflow results"
// @Success      200      {object}  CallbackResponse
// @Failure      400      {object}  ErrorResponse  "Invalid payload"
// @Failure      401      {object}  ErrorResponse  "Missing or invalid callback token"
// @Failure      403      {object}  ErrorResponse  "Token bound to another session"
// @Failure      404      {object}  ErrorResponse  "Unknown or expired session"
// @Router       /search/callback [post]
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.callbackTokens == nil {
		writeError(w, http.StatusServiceUnavailable, "callbacks are not configured")
		return
	}

	token := extractBearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing callback token")
		return
	}
	boundSession, err := s.callbackTokens.Verify(token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			writeError(w, http.StatusUnauthorized, "callback token expired")
			return
		}
		writeError(w, http.StatusUnauthorized, "invalid callback token")
		return
	}

	var cb domain.Callback
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCallbackBytes)).Decode(&cb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if cb.SessionID != boundSession {
		s.logger.Warn("callback token used for another session",
			"session_id", cb.SessionID,
			"token_session_id", boundSession,
		)
		writeError(w, http.StatusForbidden, "callback token is not valid for this session")
		return
	}

	payload, err := s.resultService.Accept(r.Context(), &cb)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid callback payload")
		case errors.Is(err, domain.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "unknown or expired session")
		default:
			s.logger.Error("failed to accept callback", "session_id", cb.SessionID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to store results")
		}
		return
	}

	writeJSON(w, http.StatusOK, CallbackResponse{
		Success:    true,
		SessionID:  payload.SessionID,
		TotalFound: payload.TotalFound,
		Status:     payload.Status,
	})
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "sessionId is required")
	case errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "unknown or expired session, please start a new search")
	default:
		s.logger.Error("failed to load session", "error", err)
		writeError(w, http.StatusInternalServerError, retrievalFailed)
	}
}
