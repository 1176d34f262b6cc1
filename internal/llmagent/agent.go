// Package llmagent is the narrow "pure analysis brain" boundary the
// orchestrator workflows call into (spec §9's external LLM agent boundary
// design note): a single Run(ctx, prompt) -> text call, with no tool
// loop attached. Grounded on original_source/services/sniper/agent's
// agno.Agent usages (xhs_trend.py, wechat_analyze.py), which deliberately
// strip tool-calling from the analysis agent and feed it pre-fetched data
// instead — "Agent 不再挂载 tools, 它现在只是一个纯粹的分析大脑". The
// underlying calls are made through internal/providers, the same
// multi-vendor client package the teacher's tool-calling internal/agent
// loop is built on; only the tool-loop machinery is left behind.
package llmagent

import (
	"context"

	"github.com/nextlevelbuilder/harvestgate/internal/apperr"
	"github.com/nextlevelbuilder/harvestgate/internal/providers"
)

// Agent runs a single-shot prompt against an LLM and returns its text
// response. It carries no conversation history and no tool definitions.
type Agent interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// ProviderAgent is the production Agent, backed by any providers.Provider.
type ProviderAgent struct {
	provider     providers.Provider
	model        string
	systemPrompt string
}

// New builds a ProviderAgent. systemPrompt may be empty for a bare planner.
func New(provider providers.Provider, model, systemPrompt string) *ProviderAgent {
	return &ProviderAgent{provider: provider, model: model, systemPrompt: systemPrompt}
}

func (a *ProviderAgent) Run(ctx context.Context, prompt string) (string, error) {
	if a.provider == nil {
		return "", apperr.Internal(nil)
	}

	var messages []providers.Message
	if a.systemPrompt != "" {
		messages = append(messages, providers.Message{Role: "system", Content: a.systemPrompt})
	}
	messages = append(messages, providers.Message{Role: "user", Content: prompt})

	resp, err := a.provider.Chat(ctx, providers.ChatRequest{
		Messages: messages,
		Model:    a.model,
	})
	if err != nil {
		return "", apperr.Internal(err)
	}
	return resp.Content, nil
}
