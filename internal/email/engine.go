// Package email sends the Daily Summary described in spec.md §4.14,
// grounded on original_source/src/services/email_service.py: an SMTP
// multipart (plain+HTML) message composed from today's conversations,
// learnings, goals, personality movement, and completed curiosity research.
// Sending uses net/smtp directly — no third-party mail client appears
// anywhere in the example pack, so this is the one deliberately-stdlib
// corner of the runtime (see DESIGN.md).
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"nexira/internal/clock"
	"nexira/internal/secretbox"
	"nexira/internal/store"
)

const (
	summaryEmailType = "daily_summary"
	testEmailType    = "test"
	generalEmailType = "general"

	topHighlights   = 5
	topLearnings    = 5
	topGoals        = 6
	topMovedTraits  = 5
)

// Config tunes the Sender's connection and identity.
type Config struct {
	SMTPHost string
	SMTPPort int
	Username string
	Password string // may be "ENC:"-prefixed; decrypted via the Secret Box before login
	From     string // defaults to Username when empty

	Recipient  string
	DailyEnabled bool

	AIName   string
	UserName string
}

// Sender composes and delivers email, and logs every attempt so
// ShouldSendToday can detect a day that already succeeded.
type Sender struct {
	store *store.Store
	box   *secretbox.Box
	clock clock.Clock
	cfg   Config
}

// New constructs a Sender. box may be nil, in which case Password is used
// as-is (assumed already plaintext).
func New(s *store.Store, box *secretbox.Box, clk clock.Clock, cfg Config) *Sender {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.AIName == "" {
		cfg.AIName = "the AI"
	}
	if cfg.UserName == "" {
		cfg.UserName = "the collaborator"
	}
	return &Sender{store: s, box: box, clock: clk, cfg: cfg}
}

// password returns the configured SMTP password with any Secret-Box
// encryption removed.
func (s *Sender) password() string {
	if s.box == nil {
		return s.cfg.Password
	}
	return s.box.Decrypt(s.cfg.Password)
}

// recipient resolves the send-to address: the explicit recipient, falling
// back to the SMTP username, mirroring send_test_email's fallback chain.
func (s *Sender) recipient() string {
	if s.cfg.Recipient != "" {
		return s.cfg.Recipient
	}
	return s.cfg.Username
}

// SendEmail delivers a multipart/alternative message (plain + HTML) and
// logs the attempt regardless of outcome, mirroring _log_email's
// unconditional logging.
func (s *Sender) SendEmail(ctx context.Context, to, subject, htmlBody, plainBody string) error {
	sendErr := s.deliver(to, subject, htmlBody, plainBody)

	logEntry := store.EmailLog{
		Recipient: to,
		Subject:   subject,
		Type:      classifyEmailType(subject),
		Success:   sendErr == nil,
	}
	if sendErr != nil {
		logEntry.Error = sendErr.Error()
	}
	if _, err := s.store.InsertEmailLog(ctx, logEntry); err != nil {
		log.Error().Err(err).Msg("email: log send attempt")
	}
	return sendErr
}

func (s *Sender) deliver(to, subject, htmlBody, plainBody string) error {
	if s.cfg.SMTPHost == "" {
		return fmt.Errorf("email: smtp host not configured")
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.Username, s.password(), s.cfg.SMTPHost)

	boundary := "nexira-boundary-0x7f"
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(plainBody)
	msg.WriteString("\r\n\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	msg.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	msg.WriteString(htmlBody)
	msg.WriteString("\r\n\r\n")

	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	if s.cfg.SMTPPort == 465 {
		return sendImplicitTLS(addr, s.cfg.SMTPHost, auth, s.cfg.From, []string{to}, []byte(msg.String()))
	}
	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg.String()))
}

// sendImplicitTLS handles servers that expect TLS from the first byte
// (port 465), which net/smtp.SendMail does not support directly.
func sendImplicitTLS(addr, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return fmt.Errorf("email: tls dial: %w", err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("email: smtp client: %w", err)
	}
	defer c.Close()

	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("email: auth: %w", err)
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

func classifyEmailType(subject string) string {
	lower := strings.ToLower(subject)
	switch {
	case strings.Contains(lower, "daily summary"):
		return summaryEmailType
	case strings.Contains(lower, "test"):
		return testEmailType
	default:
		return generalEmailType
	}
}

// ShouldSendToday reports whether today's Daily Summary still needs to go
// out — true unless a successful send has already been logged today.
// Mirrors should_send_today()'s "default to sending" behavior on error.
func (s *Sender) ShouldSendToday(ctx context.Context) bool {
	n, err := s.store.EmailSentTodayCount(ctx, s.clock.Now(), summaryEmailType)
	if err != nil {
		log.Warn().Err(err).Msg("email: should-send-today check failed, defaulting to send")
		return true
	}
	return n == 0
}

// SendTestEmail delivers a short confirmation message to the resolved
// recipient, mirroring send_test_email.
func (s *Sender) SendTestEmail(ctx context.Context) error {
	subject := fmt.Sprintf("%s test email", s.cfg.AIName)
	plain := fmt.Sprintf("This is a test message from %s. If you're reading this, email delivery works.", s.cfg.AIName)
	html := fmt.Sprintf("<p>This is a test message from <strong>%s</strong>. If you're reading this, email delivery works.</p>", s.cfg.AIName)
	return s.SendEmail(ctx, s.recipient(), subject, html, plain)
}

// SendDailySummary composes and sends today's summary if daily email is
// enabled and a recipient is configured, mirroring send_daily_summary.
func (s *Sender) SendDailySummary(ctx context.Context) error {
	if !s.cfg.DailyEnabled {
		return nil
	}
	to := s.recipient()
	if to == "" {
		return fmt.Errorf("email: no recipient configured for daily summary")
	}
	subject, html, plain, err := s.ComposeDailySummary(ctx)
	if err != nil {
		return fmt.Errorf("email: compose daily summary: %w", err)
	}
	return s.SendEmail(ctx, to, subject, html, plain)
}

type summaryData struct {
	Date              string
	ConversationCount int
	Highlights        []string
	Learnings         []string
	Goals             []string
	TraitMoves        []string
	Researched        []string
}

// ComposeDailySummary assembles the subject/HTML/plain-text bodies for
// today's activity, mirroring compose_daily_summary's five sections:
// conversation highlights, top learnings, active goals, personality
// movement, and completed curiosity research.
func (s *Sender) ComposeDailySummary(ctx context.Context) (subject, html, plain string, err error) {
	now := s.clock.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	data := summaryData{Date: now.Format("2006-01-02")}

	msgs, err := s.store.MessagesSince(ctx, todayStart.Format("2006-01-02"))
	if err != nil {
		return "", "", "", fmt.Errorf("messages since: %w", err)
	}
	data.ConversationCount = len(msgs)
	data.Highlights = topMessagesByImportance(msgs, topHighlights)

	facts, err := s.store.SearchKnowledgeFacts(ctx, "", topLearnings)
	if err != nil {
		return "", "", "", fmt.Errorf("search knowledge facts: %w", err)
	}
	for _, f := range facts {
		data.Learnings = append(data.Learnings, fmt.Sprintf("%s: %s", f.Topic, f.Content))
	}

	goals, err := s.store.ActiveGoals(ctx)
	if err != nil {
		return "", "", "", fmt.Errorf("active goals: %w", err)
	}
	sort.Slice(goals, func(i, j int) bool { return goals[i].Progress > goals[j].Progress })
	if len(goals) > topGoals {
		goals = goals[:topGoals]
	}
	for _, g := range goals {
		data.Goals = append(data.Goals, fmt.Sprintf("%s — %.0f%%", g.Name, g.Progress*100))
	}

	changes, err := s.store.PersonalityHistory(ctx, 200)
	if err != nil {
		return "", "", "", fmt.Errorf("personality history: %w", err)
	}
	var todaysChanges []store.PersonalityChange
	for _, c := range changes {
		if !c.Timestamp.Before(todayStart) {
			todaysChanges = append(todaysChanges, c)
		}
	}
	sort.Slice(todaysChanges, func(i, j int) bool {
		return math.Abs(todaysChanges[i].New-todaysChanges[i].Old) > math.Abs(todaysChanges[j].New-todaysChanges[j].Old)
	})
	if len(todaysChanges) > topMovedTraits {
		todaysChanges = todaysChanges[:topMovedTraits]
	}
	for _, c := range todaysChanges {
		data.TraitMoves = append(data.TraitMoves, fmt.Sprintf("%s: %.2f -> %.2f (%s)", c.Trait, c.Old, c.New, c.Reason))
	}

	completed, err := s.store.CompletedCuriosityItemsSince(ctx, todayStart)
	if err != nil {
		return "", "", "", fmt.Errorf("completed curiosity items: %w", err)
	}
	for _, c := range completed {
		data.Researched = append(data.Researched, c.Topic)
	}

	subject = fmt.Sprintf("%s's Daily Summary — %s", s.cfg.AIName, data.Date)
	plain = renderPlain(data)
	html = renderHTML(data)
	return subject, html, plain, nil
}

func topMessagesByImportance(msgs []store.Message, n int) []string {
	sorted := make([]store.Message, len(msgs))
	copy(sorted, msgs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Importance > sorted[j].Importance })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]string, 0, len(sorted))
	for _, m := range sorted {
		snippet := m.Content
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		out = append(out, fmt.Sprintf("[%s] %s", m.Role, snippet))
	}
	return out
}

func renderPlain(d summaryData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily Summary for %s\n\n", d.Date)
	fmt.Fprintf(&b, "Conversations today: %d\n\n", d.ConversationCount)
	writePlainSection(&b, "Highlights", d.Highlights)
	writePlainSection(&b, "Top learnings", d.Learnings)
	writePlainSection(&b, "Active goals", d.Goals)
	writePlainSection(&b, "Personality movement", d.TraitMoves)
	writePlainSection(&b, "Researched today", d.Researched)
	return b.String()
}

func writePlainSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
	b.WriteString("\n")
}

func renderHTML(d summaryData) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family:sans-serif;max-width:640px">`)
	fmt.Fprintf(&b, `<h2>Daily Summary for %s</h2>`, d.Date)
	fmt.Fprintf(&b, `<p>Conversations today: <strong>%d</strong></p>`, d.ConversationCount)
	writeHTMLSection(&b, "Highlights", d.Highlights)
	writeHTMLSection(&b, "Top learnings", d.Learnings)
	writeHTMLSection(&b, "Active goals", d.Goals)
	writeHTMLSection(&b, "Personality movement", d.TraitMoves)
	writeHTMLSection(&b, "Researched today", d.Researched)
	b.WriteString(`</div>`)
	return b.String()
}

func writeHTMLSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, `<h3>%s</h3><ul>`, title)
	for _, item := range items {
		fmt.Fprintf(b, `<li>%s</li>`, item)
	}
	b.WriteString(`</ul>`)
}
