// Package httpapi is the thin HTTP adapter spec.md §6 describes as an
// external collaborator boundary: it decodes JSON requests, calls straight
// through to the runtime's engines, and encodes their results back out. No
// business logic lives here — every invariant and side effect belongs to
// the engine being called. Grounded on the teacher's internal/webui
// ServeMux-with-method-patterns routing idiom.
package httpapi

import (
	"context"
	"net/http"

	"nexira/internal/backup"
	"nexira/internal/consolidation"
	"nexira/internal/conversation"
	"nexira/internal/curiosity"
	"nexira/internal/goals"
	"nexira/internal/interests"
	"nexira/internal/memory"
	"nexira/internal/personality"
	"nexira/internal/selfawareness"
	"nexira/internal/store"
)

// Mailer is the subset of *email.Sender the HTTP layer exposes directly
// (test/send-summary/log endpoints), kept as an interface so tests can
// supply a fake.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody, plainBody string) error
	SendDailySummary(ctx context.Context) error
	ShouldSendToday(ctx context.Context) bool
}

// Deps collects every engine the HTTP surface calls into. All fields are
// required except where a zero value degrades a single endpoint (e.g. a
// nil Mailer makes the email endpoints report 503).
type Deps struct {
	Store         *store.Store
	Conversation  *conversation.Engine
	Personality   *personality.Engine
	Memory        *memory.Engine
	Curiosity     *curiosity.Engine
	Interests     *interests.Engine
	Goals         *goals.Engine
	SelfAwareness *selfawareness.Engine
	Consolidation *consolidation.Engine
	Backup        *backup.Manager
	Mailer        Mailer
	AIName        string
}

// Server is the net/http.Handler serving spec.md §6's JSON API.
type Server struct {
	deps Deps
	mux  *http.ServeMux
}

// NewServer builds the Server and registers every route.
func NewServer(deps Deps) *Server {
	s := &Server{deps: deps, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/chat/history", s.handleChatHistory)
	s.mux.HandleFunc("POST /api/feedback", s.handleFeedback)

	s.mux.HandleFunc("GET /api/personality", s.handlePersonalityGet)
	s.mux.HandleFunc("GET /api/personality/history", s.handlePersonalityHistory)
	s.mux.HandleFunc("POST /api/personality/reset", s.handlePersonalityReset)
	s.mux.HandleFunc("POST /api/personality/force-evolve", s.handlePersonalityForceEvolve)

	s.mux.HandleFunc("GET /api/stats", s.handleStats)

	s.mux.HandleFunc("GET /api/journal", s.handleJournal)
	s.mux.HandleFunc("GET /api/goals", s.handleGoals)
	s.mux.HandleFunc("GET /api/interests", s.handleInterests)
	s.mux.HandleFunc("GET /api/curiosity", s.handleCuriosity)
	s.mux.HandleFunc("POST /api/consolidation/run", s.handleConsolidationRun)

	s.mux.HandleFunc("GET /api/backups", s.handleBackupsList)
	s.mux.HandleFunc("POST /api/backups/run", s.handleBackupsRun)

	s.mux.HandleFunc("GET /api/self-awareness", s.handleSelfAwareness)

	s.mux.HandleFunc("GET /api/threads", s.handleThreads)
	s.mux.HandleFunc("GET /api/threads/{id}", s.handleThread)

	s.mux.HandleFunc("POST /api/email/test", s.handleEmailTest)
	s.mux.HandleFunc("POST /api/email/send-summary", s.handleEmailSendSummary)
	s.mux.HandleFunc("GET /api/email/log", s.handleEmailLog)

	s.mux.HandleFunc("GET /api/activity/log", s.handleActivityLog)
	s.mux.HandleFunc("POST /api/activity/log", s.handleActivityLogAppend)
}
