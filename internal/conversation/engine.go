package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"nexira/internal/clock"
	"nexira/internal/curiosity"
	"nexira/internal/goals"
	"nexira/internal/interests"
	"nexira/internal/llm"
	"nexira/internal/llmgate"
	"nexira/internal/memory"
	"nexira/internal/personality"
	"nexira/internal/selfawareness"
	"nexira/internal/store"
)

// ActionCard is a user-visible record of a dispatched side-effect (code
// run, image generation, social post) produced by the Action Pipeline.
type ActionCard struct {
	Type    string
	Label   string
	Detail  string
	Success bool
}

// ActionRunner dispatches the post-response parsing step (spec.md §4.13).
// It is intentionally a narrow interface so the Conversation Core can be
// built and tested before the Action Pipeline exists; a nil ActionRunner
// simply skips step 6's action dispatch. The user message is passed
// alongside the response because some triggers (the email commitment
// phrases) are only honored when the user's own message asked for them.
// Run returns the response text with any matched trigger lines (e.g.
// MOLTBOOK_POST_NOW:, IMAGE_GEN_NOW:) stripped, for display to the user.
type ActionRunner interface {
	Run(ctx context.Context, message, response string) (cards []ActionCard, visibleResponse string, err error)
}

// Engine is the Conversation Core: it owns the in-process EmotionalState
// and wires every other engine's read/write calls into one exchange.
type Engine struct {
	store       *store.Store
	gate        *llmgate.Gate
	clock       clock.Clock
	journal     journalDecryptor
	personality *personality.Engine
	memory      *memory.Engine
	curiosityEn *curiosity.Engine
	interestsEn *interests.Engine
	goalsEn     *goals.Engine
	awareness   *selfawareness.Engine
	actions     ActionRunner

	userName            string
	episodeBudgetTokens int

	emotional EmotionalState
}

// Config collects Engine's tunables; zero values fall back to spec.md's
// defaults.
type Config struct {
	UserName            string
	EpisodeBudgetTokens int
}

// New constructs the Conversation Core. actions may be nil until the
// Action Pipeline is wired in.
func New(
	s *store.Store,
	gate *llmgate.Gate,
	clk clock.Clock,
	journal journalDecryptor,
	personalityEn *personality.Engine,
	memoryEn *memory.Engine,
	curiosityEn *curiosity.Engine,
	interestsEn *interests.Engine,
	goalsEn *goals.Engine,
	awareness *selfawareness.Engine,
	actions ActionRunner,
	cfg Config,
) *Engine {
	userName := cfg.UserName
	if userName == "" {
		userName = "the collaborator"
	}
	budget := cfg.EpisodeBudgetTokens
	if budget <= 0 {
		budget = 3000
	}
	return &Engine{
		store:               s,
		gate:                gate,
		clock:               clk,
		journal:             journal,
		personality:         personalityEn,
		memory:              memoryEn,
		curiosityEn:         curiosityEn,
		interestsEn:         interestsEn,
		goalsEn:             goalsEn,
		awareness:           awareness,
		actions:             actions,
		userName:            userName,
		episodeBudgetTokens: budget,
		emotional:           defaultEmotionalState(),
	}
}

func (e *Engine) personalityPrompt() string {
	return personality.BehavioralInstructions(e.personality.Values())
}

// Exchange runs one full inbound-message cycle: name-selection branch (step
// 1), context build (step 2), system-prompt composition (step 3), the LLM
// call (step 4), confidence scoring (step 5), side-effect fan-out (step 6),
// Message persistence (step 7), and the (response, confidence, actions)
// return (step 8) — spec.md §4.10.
func (e *Engine) Exchange(ctx context.Context, message string, collab CollaboratorContext) (string, float64, []ActionCard, error) {
	id, err := loadIdentity(ctx, e.store)
	if err != nil {
		return "", 0, nil, fmt.Errorf("load identity: %w", err)
	}

	if detectNameRequest(message) && (!id.Named() || mentionsChangeOrRename(message)) {
		resp, err := e.requestNameSelection(ctx, id)
		if err != nil {
			return "", 0, nil, fmt.Errorf("name selection: %w", err)
		}
		return resp, 1.0, nil, nil
	}

	in, knowledge, mistakes, err := e.buildContext(ctx, message, id, collab)
	if err != nil {
		return "", 0, nil, fmt.Errorf("build context: %w", err)
	}

	traits := e.personality.Values()
	systemPrompt := composeSystemPrompt(in, traits, e.emotional)

	resp, err := e.gate.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: message},
	}, nil)
	if err != nil {
		return "", 0, nil, fmt.Errorf("llm gate chat: %w", err)
	}
	responseText := resp.Content

	mistakeTopics := make([]string, 0, len(mistakes))
	for _, m := range mistakes {
		mistakeTopics = append(mistakeTopics, m.Topic)
	}
	confidence := scoreConfidence(message, responseText, len(knowledge) > 0, len(in.recentMessages) > 0, mistakeTopics)

	actionCards, visibleText := e.fireSideEffects(ctx, message, responseText, collab)
	responseText = visibleText

	avgEmotion := averageEmotionalState(e.emotional)
	importance := scoreImportance(message, responseText, avgEmotion)
	now := e.clock.Now()
	if _, err := e.store.InsertMessage(ctx, store.Message{
		Timestamp:       now,
		Role:            "user",
		Content:         message,
		Importance:      importance,
		EmotionalWeight: avgEmotion,
		Platform:        "main_ui",
	}); err != nil {
		log.Error().Err(err).Msg("conversation: persist user message")
	}
	if _, err := e.store.InsertMessage(ctx, store.Message{
		Timestamp:       now,
		Role:            "assistant",
		Content:         responseText,
		Importance:      importance,
		EmotionalWeight: avgEmotion,
		Platform:        "main_ui",
	}); err != nil {
		log.Error().Err(err).Msg("conversation: persist assistant message")
	}

	return responseText, confidence, actionCards, nil
}

// fireSideEffects runs step 6's fan-out in order, recovering and logging
// any panic or error from each so one failing engine never fails the
// response — grounded on internal/agent.Engine.Run's background
// goroutine + recover pattern.
func (e *Engine) fireSideEffects(ctx context.Context, message, response string, collab CollaboratorContext) ([]ActionCard, string) {
	updateEmotionalState(e.emotional, message, collab.Feedback)

	safe := func(name string, fn func() error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("sideEffect", name).Msg("conversation: side-effect panicked")
			}
		}()
		if err := fn(); err != nil {
			log.Error().Err(err).Str("sideEffect", name).Msg("conversation: side-effect failed")
		}
	}

	safe("personality.evolve", func() error {
		if e.personality == nil {
			return nil
		}
		_, err := e.personality.Evolve(ctx, message, response)
		return err
	})
	safe("interests.process_exchange", func() error {
		if e.interestsEn == nil {
			return nil
		}
		e.interestsEn.ProcessExchange(ctx, message, response)
		return nil
	})
	safe("interests.observe_skill", func() error {
		if e.interestsEn == nil {
			return nil
		}
		_, err := e.interestsEn.ObserveSkill(ctx, message, 0.6)
		return err
	})
	safe("selfawareness.record", func() error {
		if e.awareness == nil {
			return nil
		}
		return e.awareness.Record(ctx, response)
	})
	safe("memory.maybe_summarize", func() error {
		if e.memory == nil {
			return nil
		}
		e.memory.MaybeSummarizeEpisode(ctx)
		return nil
	})
	safe("curiosity.process", func() error {
		if e.curiosityEn == nil {
			return nil
		}
		e.curiosityEn.Process(ctx, message, response)
		return nil
	})

	var cards []ActionCard
	visible := response
	safe("actions.run", func() error {
		if e.actions == nil {
			return nil
		}
		result, stripped, err := e.actions.Run(ctx, message, response)
		if err != nil {
			return err
		}
		cards = result
		visible = stripped
		return nil
	})

	return cards, visible
}

// mentionsChangeOrRename mirrors chat()'s second dispatch condition: even
// an already-named identity re-runs name selection if the message itself
// mentions changing or renaming.
func mentionsChangeOrRename(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "change") || strings.Contains(lower, "rename")
}
