package providers

import (
	"fmt"
	"net/http"

	"nexira/internal/config"
	"nexira/internal/llm"
	"nexira/internal/llm/anthropic"
	"nexira/internal/llm/google"
	openaillm "nexira/internal/llm/openai"
)

// Build constructs an llm.Provider based on the configured provider name.
// - openai: uses the OpenAI client
// - local: uses the OpenAI client against a self-hosted, OpenAI-API-shaped
//   base URL (e.g. llama.cpp or vLLM's Chat Completions endpoint)
// - anthropic/google: the respective native SDK client
func Build(cfg config.Config, httpClient *http.Client) (llm.Provider, error) {
	switch cfg.LLMClient.Provider {
	case "", "openai", "local":
		return openaillm.New(cfg.LLMClient.OpenAI, httpClient), nil
	case "anthropic":
		return anthropic.New(cfg.LLMClient.Anthropic, httpClient), nil
	case "google":
		return google.New(cfg.LLMClient.Google, httpClient)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLMClient.Provider)
	}
}
