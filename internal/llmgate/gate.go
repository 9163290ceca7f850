// Package llmgate is the sole choke point through which every other
// component issues LLM calls. It wraps an internal/llm.Provider selected by
// internal/llm/providers.Build, computes hardware-aware options from host
// probing, and strips reasoning-block markers from model output before
// handing it back (spec.md §4.3). The hardware options are exposed through
// Gate.HardwareOptions; they are not passed to the provider on any call.
package llmgate

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"nexira/internal/config"
	"nexira/internal/hostinfo"
	"nexira/internal/llm"
	"nexira/internal/llm/providers"
)

// reasoningBlock matches <think>...</think>/<reasoning>...</reasoning>
// spans some local models emit inline with their answer; the Gate strips
// these before content reaches any other component.
var reasoningBlock = regexp.MustCompile(`(?is)<(think|reasoning)>.*?</(think|reasoning)>`)

// Gate is the process-wide LLM access point.
type Gate struct {
	provider llm.Provider
	model    string

	mu   sync.Mutex
	opts HardwareOptions
}

// HardwareOptions are derived once at startup from host probing (a GPU-layer
// count, GPU presence, total RAM). Chat and ChatStream do not send them to
// the provider; they are only reported by Gate.HardwareOptions.
type HardwareOptions struct {
	GPULayers int
	HasGPU    bool
	TotalRAM  uint64
}

// Open builds a Gate from configuration, selecting a backend provider via
// providers.Build and probing host hardware for HardwareOptions.
func Open(cfg config.Config, httpClient *http.Client) (*Gate, error) {
	provider, err := providers.Build(cfg, httpClient)
	if err != nil {
		return nil, fmt.Errorf("build llm provider: %w", err)
	}

	opts := probeHardwareOptions(cfg.LLMClient.GPULayers)

	return &Gate{
		provider: provider,
		model:    resolveModel(cfg),
		opts:     opts,
	}, nil
}

func resolveModel(cfg config.Config) string {
	switch cfg.LLMClient.Provider {
	case "anthropic":
		return cfg.LLMClient.Anthropic.Model
	case "google":
		return cfg.LLMClient.Google.Model
	default:
		return cfg.LLMClient.OpenAI.Model
	}
}

// probeHardwareOptions inspects the host via hostinfo and derives a
// GPU-layer count: the configured count when it is non-zero; otherwise all
// layers (-1) if a GPU is present, and 0 if not.
func probeHardwareOptions(configuredLayers int) HardwareOptions {
	info, err := hostinfo.GetHostInfo()
	if err != nil {
		log.Warn().Err(err).Msg("llmgate: host probe failed, using configured defaults")
		return HardwareOptions{GPULayers: configuredLayers}
	}
	hasGPU := len(info.GPUs) > 0
	layers := configuredLayers
	if hasGPU && layers == 0 {
		layers = -1 // offload all layers
	}
	return HardwareOptions{
		GPULayers: layers,
		HasGPU:    hasGPU,
		TotalRAM:  info.Memory.Total,
	}
}

// HardwareOptions returns the options computed at Open time.
func (g *Gate) HardwareOptions() HardwareOptions {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.opts
}

// Chat issues one non-streaming call and strips reasoning-block markers
// from the returned content.
func (g *Gate) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema) (llm.Message, error) {
	resp, err := g.provider.Chat(ctx, msgs, tools, g.model)
	if err != nil {
		return llm.Message{}, fmt.Errorf("llmgate chat: %w", err)
	}
	resp.Content = stripReasoning(resp.Content)
	return resp, nil
}

// ChatStream issues a streaming call. Reasoning-block stripping for streamed
// deltas is the responsibility of the caller's StreamHandler, since the
// Gate cannot safely buffer an unbounded stream to scrub across chunk
// boundaries; non-streaming Chat is the integration point callers should
// prefer whenever the full reply is needed as one string.
func (g *Gate) ChatStream(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, h llm.StreamHandler) error {
	if err := g.provider.ChatStream(ctx, msgs, tools, g.model, h); err != nil {
		return fmt.Errorf("llmgate chat stream: %w", err)
	}
	return nil
}

func stripReasoning(content string) string {
	return strings.TrimSpace(reasoningBlock.ReplaceAllString(content, ""))
}
