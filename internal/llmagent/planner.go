package llmagent

import (
	"context"
	"strings"

	"github.com/nextlevelbuilder/harvestgate/internal/providers"
)

// maxExpandedKeywords caps keyword fission at 3 terms across the
// {core, scene, pain-point} dimensions (spec §4.H trend-analysis step 2),
// grounded on xhs_trend.py's _generate_keywords prompt, which explicitly
// asks the planner for "3 个不同维度的搜索词（核心词、场景词、痛点词）".
const maxExpandedKeywords = 3

const keywordPlannerSystemPrompt = "你是一个关键词裂变助手，只返回逗号分隔的关键词字符串，不要输出其他内容。"

// Planner expands a single core keyword into a small set of search terms
// spanning distinct dimensions, used to widen a trend-analysis search before
// ranking and deduplicating results.
type Planner struct {
	agent Agent
}

// NewPlanner builds a Planner backed by provider/model. model may differ
// from the analysis agent's; cmd/serve.go passes the provider's default
// model, the same one it gives the analysis agent.
func NewPlanner(provider providers.Provider, model string) *Planner {
	return &Planner{agent: New(provider, model, keywordPlannerSystemPrompt)}
}

// NewPlannerFromAgent wraps an already-constructed Agent, for tests that
// stub the LLM boundary directly.
func NewPlannerFromAgent(agent Agent) *Planner {
	return &Planner{agent: agent}
}

// ExpandKeywords fissions coreKeyword into up to 3 search terms covering
// the core term itself, a usage-scene angle, and a pain-point angle.
func (p *Planner) ExpandKeywords(ctx context.Context, coreKeyword string) ([]string, error) {
	prompt := "请基于核心词「" + coreKeyword + "」融合这三个点，裂变出 3 个不同维度的搜索词（核心词、场景词、痛点词）。只返回逗号分隔的关键词字符串，不要其他内容。"

	resp, err := p.agent.Run(ctx, prompt)
	if err != nil {
		return nil, err
	}

	resp = strings.ReplaceAll(resp, "，", ",")
	parts := strings.Split(resp, ",")
	keywords := make([]string, 0, maxExpandedKeywords)
	for _, part := range parts {
		kw := strings.TrimSpace(part)
		if kw == "" {
			continue
		}
		keywords = append(keywords, kw)
		if len(keywords) == maxExpandedKeywords {
			break
		}
	}
	if len(keywords) == 0 {
		keywords = []string{coreKeyword}
	}
	return keywords, nil
}
