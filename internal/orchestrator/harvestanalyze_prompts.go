package orchestrator

import "fmt"

// AnalysisType selects one of the four analysis modes (spec §4.H
// harvest/analyze), grounded verbatim on wechat_analyze.py's
// WechatAnalyzeAgent.execute's analysis_type branch.
type AnalysisType string

const (
	AnalysisComprehensive AnalysisType = "comprehensive"
	AnalysisQuick         AnalysisType = "quick"
	AnalysisComparison    AnalysisType = "comparison"
	AnalysisTrend         AnalysisType = "trend"
)

var analysisPrompts = map[AnalysisType]string{
	AnalysisComprehensive: `Perform a thorough analysis of the following articles:

%s

Structure your report as:

1. Overview - subject matter and structure
2. Core arguments - the main thesis of each piece
3. Deep dive - target audience, structure and logic, writing style, value (informational, practical, shareable)
4. Recommendations - 3 to 5 concrete suggestions for improvement`,

	AnalysisQuick: `Give a quick, brief analysis of the following articles:

%s

Requirements:
1. Summarize the content in 3-5 sentences
2. Point out 1-2 highlights
3. Give 1 suggestion for improvement`,

	AnalysisComparison: `Compare the following articles:

%s

Compare along these dimensions:
1. Subject matter
2. Writing style
3. Structure
4. Strengths and weaknesses
5. Best-fit use cases`,

	AnalysisTrend: `Based on the following articles, analyze the content trend:

%s

Analyze:
1. How the subject matter is evolving
2. How the writing style is changing
3. Shifting viewpoints
4. A forecast of future direction`,
}

func promptFor(analysisType AnalysisType, articles string) string {
	tmpl, ok := analysisPrompts[analysisType]
	if !ok {
		tmpl = analysisPrompts[AnalysisComprehensive]
	}
	return fmt.Sprintf(tmpl, articles)
}
