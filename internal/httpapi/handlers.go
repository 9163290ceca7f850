package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"nexira/internal/conversation"
	"nexira/internal/store"
)

const defaultListLimit = 20

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

func limitParam(r *http.Request, def int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

type chatRequest struct {
	Message            string `json:"message"`
	FileContext        string `json:"file_context,omitempty"`
	WebSearch          string `json:"web_search,omitempty"`
	AutonomousResearch string `json:"autonomous_research,omitempty"`
	Feedback           string `json:"feedback,omitempty"`
}

// handleChat implements spec.md §6's POST /api/chat: the one request-path
// entrypoint into the Conversation Core.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, errMissingField("message"))
		return
	}

	response, confidence, cards, err := s.deps.Conversation.Exchange(r.Context(), req.Message, conversation.CollaboratorContext{
		WebSearch:          req.WebSearch,
		UploadedDocument:   req.FileContext,
		AutonomousResearch: req.AutonomousResearch,
		Feedback:           req.Feedback,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"response":    response,
		"confidence":  confidence,
		"ai_name":     s.deps.AIName,
		"personality": s.deps.Personality.Values(),
		"actions":     cards,
	})
}

// handleChatHistory implements GET /api/chat/history?limit=N.
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	limit := limitParam(r, defaultListLimit)
	msgs, err := s.deps.Store.RecentMessages(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": msgs, "total": len(msgs)})
}

type feedbackRequest struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
	Topic     string `json:"topic,omitempty"`
	Note      string `json:"note,omitempty"`
}

// handleFeedback implements POST /api/feedback. A "correction" records a
// Mistake the Conversation Core consults on future exchanges about the
// same topic; "positive"/"negative" are logged as an audit event only.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	switch req.Type {
	case "positive", "negative", "correction":
	default:
		respondError(w, http.StatusBadRequest, errBadValue("type"))
		return
	}

	ctx := r.Context()
	if req.Type == "correction" {
		if _, err := s.deps.Store.InsertMistake(ctx, store.Mistake{
			Topic:          req.Topic,
			Correction:     req.Note,
			BehavioralRule: req.Note,
		}); err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
	}
	if _, err := s.deps.Store.InsertActivityEvent(ctx, store.ActivityEvent{
		Type:  "feedback",
		Label: req.Type,
		Detail: req.Note,
		Extra: map[string]any{"message_id": req.MessageID},
	}); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handlePersonalityGet implements GET /api/personality.
func (s *Server) handlePersonalityGet(w http.ResponseWriter, r *http.Request) {
	values := s.deps.Personality.Values()
	traits := make([]map[string]any, 0, len(values))
	for name, v := range values {
		traits = append(traits, map[string]any{"name": name, "value": v})
	}
	respondJSON(w, http.StatusOK, map[string]any{"traits": traits, "ai_name": s.deps.AIName, "version": 1})
}

// handlePersonalityHistory implements GET /api/personality/history.
func (s *Server) handlePersonalityHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.deps.Store.PersonalityHistory(r.Context(), limitParam(r, 100))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"history": history})
}

// handlePersonalityReset implements POST /api/personality/reset.
func (s *Server) handlePersonalityReset(w http.ResponseWriter, r *http.Request) {
	changes, err := s.deps.Personality.Reset(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"changes": changes})
}

// handlePersonalityForceEvolve implements POST /api/personality/force-evolve.
func (s *Server) handlePersonalityForceEvolve(w http.ResponseWriter, r *http.Request) {
	changes, err := s.deps.Personality.ForceEvolve(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"changes": changes})
}

// handleStats implements GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	caps, err := s.deps.Store.CapabilitiesSnapshot(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, caps)
}

// handleJournal implements GET /api/journal, optionally filtered by
// ?type=daily_reflection|philosophical.
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := limitParam(r, defaultListLimit)
	entryType := r.URL.Query().Get("type")

	var (
		entries []store.JournalEntry
		err     error
	)
	if entryType != "" {
		entries, err = s.deps.Store.JournalEntriesByType(ctx, entryType, limit)
	} else {
		entries, err = s.deps.Store.RecentJournalEntries(ctx, limit)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleGoals implements GET /api/goals.
func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	active, err := s.deps.Store.ActiveGoals(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"goals": active})
}

// handleInterests implements GET /api/interests.
func (s *Server) handleInterests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	interests, err := s.deps.Store.TopInterests(ctx, limitParam(r, defaultListLimit))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	skills, err := s.deps.Store.SkillLevels(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"interests": interests, "skills": skills})
}

// handleCuriosity implements GET /api/curiosity.
func (s *Server) handleCuriosity(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Store.TopPendingCuriosityItems(r.Context(), limitParam(r, defaultListLimit))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleConsolidationRun implements POST /api/consolidation/run: an
// operator-triggered run outside the Scheduler's 3am tick, guarded by the
// same per-day idempotency the nightly job uses.
func (s *Server) handleConsolidationRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.deps.Consolidation.Run(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// handleBackupsList implements GET /api/backups.
func (s *Server) handleBackupsList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Backup.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"backups": entries})
}

// handleBackupsRun implements POST /api/backups/run: an operator-triggered
// backup outside the Scheduler's nightly offset.
func (s *Server) handleBackupsRun(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Backup.Run(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleSelfAwareness implements GET /api/self-awareness.
func (s *Server) handleSelfAwareness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	level, mean, n, err := s.deps.SelfAwareness.CurrentLevel(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	trend, err := s.deps.Store.RecentSelfAwarenessSamples(ctx, limitParam(r, 50))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"current": map[string]any{"level": level, "composite": mean, "samples": n},
		"trend":   trend,
	})
}

// handleThreads implements GET /api/threads.
func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.deps.Store.RecentThreads(r.Context(), limitParam(r, defaultListLimit))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"threads": threads})
}

// handleThread implements GET /api/threads/{id}. The Store indexes threads
// by id within RecentThreads; a single-row fetch filters client-side since
// thread counts are small enough that a dedicated query isn't warranted.
func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	threads, err := s.deps.Store.RecentThreads(r.Context(), 1000)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	for _, t := range threads {
		if t.ID == id {
			respondJSON(w, http.StatusOK, t)
			return
		}
	}
	respondError(w, http.StatusNotFound, errNotFound("thread"))
}

type emailTestRequest struct {
	To string `json:"to,omitempty"`
}

// handleEmailTest implements POST /api/email/test.
func (s *Server) handleEmailTest(w http.ResponseWriter, r *http.Request) {
	if s.deps.Mailer == nil {
		respondError(w, http.StatusServiceUnavailable, errNotConfigured("email"))
		return
	}
	var req emailTestRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := s.deps.Mailer.SendEmail(r.Context(), req.To, "Nexira test email", "<p>Test email from Nexira.</p>", "Test email from Nexira."); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleEmailSendSummary implements POST /api/email/send-summary.
func (s *Server) handleEmailSendSummary(w http.ResponseWriter, r *http.Request) {
	if s.deps.Mailer == nil {
		respondError(w, http.StatusServiceUnavailable, errNotConfigured("email"))
		return
	}
	if err := s.deps.Mailer.SendDailySummary(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleEmailLog implements GET /api/email/log.
func (s *Server) handleEmailLog(w http.ResponseWriter, r *http.Request) {
	events, err := s.deps.Store.RecentActivityEvents(r.Context(), limitParam(r, defaultListLimit))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	emailEvents := make([]store.ActivityEvent, 0, len(events))
	for _, e := range events {
		if e.Type == "email" {
			emailEvents = append(emailEvents, e)
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"log": emailEvents})
}

// handleActivityLog implements GET /api/activity/log.
func (s *Server) handleActivityLog(w http.ResponseWriter, r *http.Request) {
	events, err := s.deps.Store.RecentActivityEvents(r.Context(), limitParam(r, defaultListLimit))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

type activityLogRequest struct {
	Type   string         `json:"type"`
	Label  string         `json:"label"`
	Detail string         `json:"detail,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// handleActivityLogAppend implements POST /api/activity/log: a
// collaborator-initiated audit row (e.g. the transport layer logging a
// file upload), distinct from the rows engines write themselves.
func (s *Server) handleActivityLogAppend(w http.ResponseWriter, r *http.Request) {
	var req activityLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Type == "" {
		respondError(w, http.StatusBadRequest, errMissingField("type"))
		return
	}
	id, err := s.deps.Store.InsertActivityEvent(r.Context(), store.ActivityEvent{
		Type:   req.Type,
		Label:  req.Label,
		Detail: req.Detail,
		Extra:  req.Extra,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}
