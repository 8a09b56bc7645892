package models

import (
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/openai/openai-go/v2/shared"
)

// ChatCompletionRequest represents a chat completion request. It mirrors the
// OpenAI parameter surface the gateway passes through to Azure OpenAI, plus
// the stream flag. The model falls back to the configured default when empty.
type ChatCompletionRequest struct {
	// Messages comprising the conversation so far.
	Messages []openai.ChatCompletionMessageParamUnion `json:"messages,omitzero"`
	// Model deployment used to generate the response.
	Model shared.ChatModel `json:"model,omitzero"`
	// Number between -2.0 and 2.0 penalizing token frequency.
	FrequencyPenalty param.Opt[float64] `json:"frequency_penalty,omitzero"`
	// Upper bound for generated tokens, including reasoning tokens.
	MaxCompletionTokens param.Opt[int64] `json:"max_completion_tokens,omitzero"`
	// Deprecated older cap on generated tokens; kept for client compatibility.
	MaxTokens param.Opt[int64] `json:"max_tokens,omitzero"`
	// How many completion choices to generate.
	N param.Opt[int64] `json:"n,omitzero"`
	// Number between -2.0 and 2.0 penalizing token presence.
	PresencePenalty param.Opt[float64] `json:"presence_penalty,omitzero"`
	// Best-effort deterministic sampling seed.
	Seed param.Opt[int64] `json:"seed,omitzero"`
	// Sampling temperature between 0 and 2.
	Temperature param.Opt[float64] `json:"temperature,omitzero"`
	// Nucleus sampling probability mass.
	TopP param.Opt[float64] `json:"top_p,omitzero"`
	// Stable end-user identifier for abuse monitoring.
	User param.Opt[string] `json:"user,omitzero"`
	// Stream selects server-sent-events delivery.
	Stream bool `json:"stream,omitzero"`
}

// ToOpenAIParams converts the request into openai-go params, substituting the
// configured default model when the request leaves it empty.
func (r *ChatCompletionRequest) ToOpenAIParams(defaultModel string) openai.ChatCompletionNewParams {
	model := r.Model
	if model == "" {
		model = shared.ChatModel(defaultModel)
	}
	return openai.ChatCompletionNewParams{
		Messages:            r.Messages,
		Model:               model,
		FrequencyPenalty:    r.FrequencyPenalty,
		MaxCompletionTokens: r.MaxCompletionTokens,
		MaxTokens:           r.MaxTokens,
		N:                   r.N,
		PresencePenalty:     r.PresencePenalty,
		Seed:                r.Seed,
		Temperature:         r.Temperature,
		TopP:                r.TopP,
		User:                r.User,
	}
}
