package engine

import (
	"context"
	"fmt"
	"strings"
)

// Synthesize merges step results into the final answer. Zero
// successful results yield the apology; a single success is returned
// as-is; several successes go through one consolidation prompt. A
// failing consolidation call falls back to the last successful
// result, never to an error.
func (e *Engine) Synthesize(ctx context.Context, request string, results []StepResult) string {
	var successes []StepResult
	for _, r := range results {
		if !r.Failed() {
			successes = append(successes, r)
		}
	}

	if len(successes) == 0 {
		return Apology
	}
	if len(successes) == 1 {
		return successes[0].Output
	}

	prompt := buildSynthesisPrompt(request, successes)
	answer, err := e.client.Generate(ctx, prompt)
	if err != nil {
		e.logger.Warn("synthesis failed, returning last step result", "error", err)
		return successes[len(successes)-1].Output
	}
	return answer
}

func buildSynthesisPrompt(request string, results []StepResult) string {
	var b strings.Builder
	b.WriteString("다음은 사용자 요청을 처리한 여러 단계의 결과입니다.\n\n")
	fmt.Fprintf(&b, "사용자 원래 요청: %s\n\n", request)
	b.WriteString("단계별 결과:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "\n[%d단계 - %s]\n작업: %s\n결과: %s\n", r.Index+1, r.Skill, r.Task, r.Output)
	}
	b.WriteString(`
위 모든 단계의 결과를 종합하여 사용자의 원래 요청에 대한 최종 답변을 작성하세요.
- 모든 관련 정보를 포함하세요
- 명확하고 구조화된 형태로 제시하세요
- 사용자 요청과 같은 언어로 작성하세요`)
	return b.String()
}
