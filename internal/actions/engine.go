// Package actions implements the Action Pipeline (spec.md §4.13): it scans
// an assistant response for fenced code blocks, trigger phrases, and
// creative-writing content, dispatches each to the right side effect, and
// returns the response with every matched trigger line stripped from what
// the user sees. Grounded on the teacher's sandboxed `run_cli` tool
// (internal/tools/cli/exec.go, repurposed here via internal/sandbox's
// already-adapted primitives instead of copied wholesale) for code
// execution, and on original_source/src/services/image_gen_service.py's
// Ollama-unload/reload sequence for the GPU handoff around image
// generation.
package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"nexira/internal/config"
	"nexira/internal/conversation"
	"nexira/internal/sandbox"
	"nexira/internal/store"
)

// ImageGenerator dispatches an image-generation request to an external
// collaborator process (the Stable Diffusion pipeline in the original).
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (path string, err error)
}

// SocialPoster dispatches a Moltbook post to an external collaborator.
type SocialPoster interface {
	Post(ctx context.Context, title, body string) error
}

// Mailer sends an email. *email.Sender satisfies this structurally.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody, plainBody string) error
}

// emailCommitmentPhrases is the exact allow-list from ai_engine.py's email
// dispatch gate: a response must contain one of these verbatim before an
// email is ever sent automatically.
var emailCommitmentPhrases = []string{
	"I'll send the email now",
	"Sending the email",
	"Email sent",
	"I've sent the email",
}

var (
	codeBlockPattern = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)\\n(.*?)```")

	moltbookOneLine = regexp.MustCompile(`(?m)^MOLTBOOK_POST_NOW:\s*(.+?)\s*\|\s*(.+?)\s*$`)
	moltbookTitleOnly = regexp.MustCompile(`(?m)^MOLTBOOK_POST_NOW:\s*(.+?)\s*$`)
	imageGenTrigger   = regexp.MustCompile(`(?m)^IMAGE_GEN_NOW:\s*(.+?)\s*$`)
)

var clarifyingOpeners = []string{
	"could you", "can you", "what kind", "what would you like", "i need more",
	"do you want", "would you like", "what should", "who is it for",
}

var execBinaries = map[string]string{
	"python": "python3",
	"bash":   "bash",
	"node":   "node",
}

// Engine dispatches the Action Pipeline for one assistant response.
type Engine struct {
	store  *store.Store
	cfg    config.ActionsConfig
	http   *http.Client
	imager    ImageGenerator
	social    SocialPoster
	mailer    Mailer
	recipient string

	genMu sync.Mutex // serializes image generation against GPU use elsewhere
}

// New constructs an Engine. imager, social, and mailer may be nil, in which
// case their triggers are detected and logged but not dispatched. recipient
// is the single configured address the email trigger sends to (the same
// one the Daily Summary goes to).
func New(s *store.Store, cfg config.ActionsConfig, imager ImageGenerator, social SocialPoster, mailer Mailer, recipient string) *Engine {
	if cfg.MaxCodeBlocks <= 0 {
		cfg.MaxCodeBlocks = 3
	}
	if cfg.ExecTimeout <= 0 || cfg.ExecTimeout > 10*time.Second {
		cfg.ExecTimeout = 10 * time.Second
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = 2048
	}
	if len(cfg.ExecutableLangs) == 0 {
		cfg.ExecutableLangs = []string{"python", "bash", "node"}
	}
	return &Engine{
		store:     s,
		cfg:       cfg,
		http:      &http.Client{Timeout: 10 * time.Second},
		imager:    imager,
		social:    social,
		mailer:    mailer,
		recipient: recipient,
	}
}

// Run implements conversation.ActionRunner. It extracts and saves code
// blocks (executing allow-listed languages), dispatches trigger phrases,
// considers an email send, and persists any non-code creative output —
// in that order, mirroring spec.md §4.13's pipeline.
func (e *Engine) Run(ctx context.Context, message, response string) ([]conversation.ActionCard, string, error) {
	var cards []conversation.ActionCard
	visible := response

	blockCards := e.handleCodeBlocks(ctx, response)
	cards = append(cards, blockCards...)

	var moltbookCard *conversation.ActionCard
	visible, moltbookCard = e.handleMoltbookTrigger(ctx, visible)
	if moltbookCard != nil {
		cards = append(cards, *moltbookCard)
	}

	var imageCard *conversation.ActionCard
	visible, imageCard = e.handleImageTrigger(ctx, visible)
	if imageCard != nil {
		cards = append(cards, *imageCard)
	}

	if emailCard := e.handleEmailIntent(ctx, message, response); emailCard != nil {
		cards = append(cards, *emailCard)
	}

	e.handleCreativeOutput(ctx, message, response)

	return cards, visible, nil
}

// handleCodeBlocks extracts up to MaxCodeBlocks fenced code blocks, saves
// each as a CreativeOutput, and executes it if its language is allow-listed.
func (e *Engine) handleCodeBlocks(ctx context.Context, response string) []conversation.ActionCard {
	matches := codeBlockPattern.FindAllStringSubmatch(response, -1)
	if len(matches) > e.cfg.MaxCodeBlocks {
		matches = matches[:e.cfg.MaxCodeBlocks]
	}

	var cards []conversation.ActionCard
	for _, m := range matches {
		lang := strings.ToLower(strings.TrimSpace(m[1]))
		code := m[2]

		out := store.CreativeOutput{Kind: "code", Language: lang, Content: code}
		executed := false
		if e.languageAllowed(lang) {
			stdout, stderr, exitCode, err := e.execute(ctx, lang, code)
			out.Stdout, out.Stderr, out.ExitCode = stdout, stderr, exitCode
			out.Executed = err == nil
			executed = err == nil
			if err != nil {
				log.Warn().Err(err).Str("language", lang).Msg("actions: code execution failed")
			}
		}

		if _, err := e.store.InsertCreativeOutput(ctx, out); err != nil {
			log.Error().Err(err).Msg("actions: save code block")
		}

		cards = append(cards, conversation.ActionCard{
			Type:    "code",
			Label:   fmt.Sprintf("%s code block", orDefault(lang, "unlabeled")),
			Detail:  fmt.Sprintf("%d bytes, executed=%v", len(code), executed),
			Success: true,
		})
		e.logActivity(ctx, "code", lang, executed)
	}
	return cards
}

// ExecuteCode runs a single snippet through the same sandboxed interpreter
// execute uses, exported for external callers such as the MCP tool server
// (internal/mcpserver) that exposes this sandbox to agent clients outside
// the chat response path.
func (e *Engine) ExecuteCode(ctx context.Context, lang, code string) (stdout, stderr string, exitCode int, err error) {
	if !e.languageAllowed(lang) {
		return "", "", -1, fmt.Errorf("language %q is not in the allowed execution list", lang)
	}
	return e.execute(ctx, lang, code)
}

func (e *Engine) languageAllowed(lang string) bool {
	for _, allowed := range e.cfg.ExecutableLangs {
		if strings.EqualFold(allowed, lang) {
			return true
		}
	}
	return false
}

// execute runs code in a temp file via the mapped interpreter, capped at
// ExecTimeout and MaxOutputBytes, mirroring exec.go's ExecutorImpl.Run
// truncation/timeout shape but scoped to one source file instead of an
// arbitrary CLI invocation.
func (e *Engine) execute(ctx context.Context, lang, code string) (stdout, stderr string, exitCode int, err error) {
	binary, ok := execBinaries[lang]
	if !ok {
		return "", "", -1, fmt.Errorf("no interpreter mapped for %q", lang)
	}
	if sandbox.IsBinaryBlocked(binary, nil) {
		return "", "", -1, fmt.Errorf("interpreter %q is blocked", binary)
	}

	dir, err := os.MkdirTemp("", "nexira-action-*")
	if err != nil {
		return "", "", -1, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, "snippet"+extensionFor(lang))
	if err := os.WriteFile(file, []byte(code), 0o600); err != nil {
		return "", "", -1, fmt.Errorf("write snippet: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, e.cfg.ExecTimeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, binary, file)
	cmd.Dir = dir

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	exitCode = cmd.ProcessState.ExitCode()

	stdout = truncate(outBuf.String(), e.cfg.MaxOutputBytes)
	stderr = truncate(errBuf.String(), e.cfg.MaxOutputBytes)
	return stdout, stderr, exitCode, runErr
}

func extensionFor(lang string) string {
	switch lang {
	case "python":
		return ".py"
	case "node":
		return ".js"
	default:
		return ".sh"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n[TRUNCATED]"
}

// handleMoltbookTrigger recognizes MOLTBOOK_POST_NOW: <title> | <body>,
// dispatches the post, and strips the matched line from the visible reply.
// The one-line form is preferred; a title-only line followed by a body
// paragraph (terminated by a blank line or end of response) is the fallback.
func (e *Engine) handleMoltbookTrigger(ctx context.Context, response string) (string, *conversation.ActionCard) {
	if loc := moltbookOneLine.FindStringSubmatchIndex(response); loc != nil {
		title := response[loc[2]:loc[3]]
		body := response[loc[4]:loc[5]]
		return e.dispatchMoltbook(ctx, response, loc[0], loc[1], title, body)
	}

	loc := moltbookTitleOnly.FindStringSubmatchIndex(response)
	if loc == nil {
		return response, nil
	}
	title := response[loc[2]:loc[3]]
	rest := response[loc[1]:]
	rest = strings.TrimPrefix(rest, "\n")
	body, bodyEnd := rest, len(rest)
	if idx := strings.Index(rest, "\n\n"); idx >= 0 {
		body = rest[:idx]
		bodyEnd = idx
	}
	end := loc[1] + 1 + bodyEnd // +1 for the newline trimmed above
	if end > len(response) {
		end = len(response)
	}
	return e.dispatchMoltbook(ctx, response, loc[0], end, title, strings.TrimSpace(body))
}

func (e *Engine) dispatchMoltbook(ctx context.Context, response string, start, end int, title, body string) (string, *conversation.ActionCard) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	visible := strings.TrimSpace(response[:start] + response[end:])

	success := true
	detail := body
	if e.social != nil {
		if err := e.social.Post(ctx, title, body); err != nil {
			success = false
			detail = err.Error()
			log.Error().Err(err).Msg("actions: moltbook post failed")
		}
	} else {
		log.Debug().Msg("actions: moltbook trigger seen, no social collaborator configured")
	}

	e.logActivity(ctx, "moltbook", title, success)
	return visible, &conversation.ActionCard{Type: "moltbook", Label: title, Detail: detail, Success: success}
}

// handleImageTrigger recognizes IMAGE_GEN_NOW: <prompt> and dispatches it
// under genMu so no second image generation can start concurrently
// (spec.md §5's "no concurrent image generation" invariant), unloading the
// chat model's Ollama runtime first so VRAM is free for the image backend.
func (e *Engine) handleImageTrigger(ctx context.Context, response string) (string, *conversation.ActionCard) {
	loc := imageGenTrigger.FindStringSubmatchIndex(response)
	if loc == nil {
		return response, nil
	}
	prompt := strings.TrimSpace(response[loc[2]:loc[3]])
	visible := strings.TrimSpace(response[:loc[0]] + response[loc[1]:])

	success := true
	detail := prompt
	if e.imager != nil {
		e.genMu.Lock()
		e.unloadOllama(ctx)
		path, err := e.imager.Generate(ctx, prompt)
		e.genMu.Unlock()
		if err != nil {
			success = false
			detail = err.Error()
			log.Error().Err(err).Msg("actions: image generation failed")
		} else {
			detail = path
		}
	} else {
		log.Debug().Msg("actions: image trigger seen, no image collaborator configured")
	}

	e.logActivity(ctx, "image_gen", prompt, success)
	return visible, &conversation.ActionCard{Type: "image_gen", Label: "Generated image", Detail: detail, Success: success}
}

// unloadOllama asks the configured Ollama endpoint to drop the chat model
// from VRAM immediately (keep_alive: 0), mirroring
// image_gen_service.py's _unload_ollama. Best-effort: failures are logged,
// never propagated, matching the original's swallowed-exception behavior.
func (e *Engine) unloadOllama(ctx context.Context) {
	if e.cfg.OllamaURL == "" {
		return
	}
	body, _ := json.Marshal(map[string]any{
		"model":      e.cfg.ImageGenModelName,
		"keep_alive": 0,
	})
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.cfg.OllamaURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Msg("actions: build ollama unload request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.http.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("actions: ollama unload request failed")
		return
	}
	resp.Body.Close()
}

// handleEmailIntent sends an email only when the user's own message asked
// for one and the response contains one of the exact commitment phrases,
// mirroring ai_engine.py lines 401-404.
func (e *Engine) handleEmailIntent(ctx context.Context, message, response string) *conversation.ActionCard {
	if !strings.Contains(strings.ToLower(message), "email") {
		return nil
	}
	phrase := matchedCommitmentPhrase(response)
	if phrase == "" {
		return nil
	}
	if e.mailer == nil || e.recipient == "" {
		log.Debug().Msg("actions: email intent detected, no mailer or recipient configured")
		return nil
	}

	subject := "A note from your AI"
	plain := response
	html := "<p>" + response + "</p>"
	success := true
	detail := phrase
	if err := e.mailer.SendEmail(ctx, e.recipient, subject, html, plain); err != nil {
		success = false
		detail = err.Error()
		log.Error().Err(err).Msg("actions: email send failed")
	}

	e.logActivity(ctx, "email", phrase, success)
	return &conversation.ActionCard{Type: "email", Label: "Sent email", Detail: detail, Success: success}
}

func matchedCommitmentPhrase(response string) string {
	for _, phrase := range emailCommitmentPhrases {
		if strings.Contains(response, phrase) {
			return phrase
		}
	}
	return ""
}

// handleCreativeOutput persists long-form, non-code creative writing when
// the user explicitly asked for it and the response reads as content
// rather than a clarifying question, per spec.md §4.13's gating rule.
func (e *Engine) handleCreativeOutput(ctx context.Context, message, response string) {
	kind := requestedCreativeKind(message)
	if kind == "" {
		return
	}
	if !looksLikeContent(response) {
		return
	}
	out := store.CreativeOutput{Kind: kind, Content: response}
	if _, err := e.store.InsertCreativeOutput(ctx, out); err != nil {
		log.Error().Err(err).Msg("actions: save creative output")
	}
}

// creativeKinds is checked in this fixed order so a message mentioning more
// than one keyword resolves deterministically to the first one named.
var creativeKinds = []struct{ keyword, kind string }{
	{"story", "story"},
	{"poem", "poem"},
	{"essay", "essay"},
	{"letter", "letter"},
}

func requestedCreativeKind(message string) string {
	lower := strings.ToLower(message)
	for _, c := range creativeKinds {
		if strings.Contains(lower, c.keyword) {
			return c.kind
		}
	}
	return ""
}

func looksLikeContent(response string) bool {
	if len(response) < 400 {
		return false
	}
	if strings.Count(response, "?") >= 4 {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(response))
	for _, opener := range clarifyingOpeners {
		if strings.HasPrefix(lower, opener) {
			return false
		}
	}
	return true
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func (e *Engine) logActivity(ctx context.Context, eventType, label string, success bool) {
	if e.store == nil {
		return
	}
	if _, err := e.store.InsertActivityEvent(ctx, store.ActivityEvent{
		Type:  eventType,
		Label: label,
		Extra: map[string]any{"success": success},
	}); err != nil {
		log.Error().Err(err).Msg("actions: log activity event")
	}
}
