package knowledge

import (
	"context"
	"sort"
	"strings"
)

// StaticRetriever serves a fixed document set with keyword-overlap
// scoring. It stands in for the vector store in tests and in
// deployments without a qdrant instance.
type StaticRetriever struct {
	docs []Document
}

// NewStaticRetriever builds a retriever over the given documents.
func NewStaticRetriever(docs []Document) *StaticRetriever {
	return &StaticRetriever{docs: append([]Document(nil), docs...)}
}

// Retrieve scores each document by the number of query tokens it
// contains and returns the top matches.
func (r *StaticRetriever) Retrieve(ctx context.Context, query string, limit int) ([]Snippet, error) {
	tokens := strings.Fields(query)

	var snippets []Snippet
	for _, doc := range r.docs {
		haystack := doc.Title + " " + doc.Content
		var hits int
		for _, token := range tokens {
			if strings.Contains(haystack, token) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		snippets = append(snippets, Snippet{
			ID:       doc.ID,
			Title:    doc.Title,
			Content:  doc.Content,
			Category: doc.Category,
			Score:    float32(hits) / float32(len(tokens)),
		})
	}
	sort.SliceStable(snippets, func(i, j int) bool {
		return snippets[i].Score > snippets[j].Score
	})
	if limit > 0 && len(snippets) > limit {
		snippets = snippets[:limit]
	}
	return snippets, nil
}

// DefaultDocuments returns the built-in safety knowledge base used to
// seed a fresh deployment: action guides per event type plus core
// regulations.
func DefaultDocuments() []Document {
	return []Document{
		{
			ID:        "guide-no-helmet",
			Title:     "안전모 미착용 조치 가이드",
			Category:  "action_guide",
			EventType: "NO_HELMET",
			Content: "안전모 미착용 감지 시 조치: 1) 해당 작업자에게 즉시 작업 중지 지시 " +
				"2) 안전모 착용 확인 후 작업 재개 3) 반복 위반 시 안전 교육 실시. " +
				"관련 법규: 산업안전보건기준에 관한 규칙 제32조(보호구의 지급 등).",
		},
		{
			ID:        "guide-no-vest",
			Title:     "안전조끼 미착용 조치 가이드",
			Category:  "action_guide",
			EventType: "NO_SAFETY_VEST",
			Content: "안전조끼 미착용 감지 시 조치: 1) 작업자 호출 및 착용 지시 " +
				"2) 야간 또는 차량 통행 구역은 즉시 작업 중지 3) 예비 조끼 비치 상태 점검.",
		},
		{
			ID:        "guide-fall",
			Title:     "낙상 사고 대응 가이드",
			Category:  "action_guide",
			EventType: "FALL_DETECTED",
			Content: "낙상 감지 시 대응: 1) 즉시 현장 확인 및 부상자 상태 파악 " +
				"2) 의식 없는 경우 119 신고 및 응급처치 3) 사고 구역 통제 " +
				"4) 사고 경위 기록 및 재발 방지 대책 수립. " +
				"관련 법규: 산업안전보건법 제54조(중대재해 발생 시 사업주의 조치).",
		},
		{
			ID:        "guide-fire",
			Title:     "화재 위험 대응 가이드",
			Category:  "action_guide",
			EventType: "FIRE_HAZARD",
			Content: "화재 위험 감지 시 대응: 1) 발화원 및 인화물 즉시 확인 " +
				"2) 초기 진화 가능 시 소화기 사용, 불가 시 대피 방송 " +
				"3) 소방서 신고 4) 용접 등 화기 작업은 화기작업허가서 확인.",
		},
		{
			ID:        "guide-restricted",
			Title:     "통제구역 침입 조치 가이드",
			Category:  "action_guide",
			EventType: "RESTRICTED_AREA",
			Content: "통제구역 무단 출입 감지 시 조치: 1) 방송으로 즉시 퇴거 안내 " +
				"2) 출입 사유 확인 및 기록 3) 출입 통제 설비(펜스, 경고 표지) 점검.",
		},
		{
			ID:       "reg-helmet",
			Title:    "안전모 착용 규정",
			Category: "regulation",
			Content: "산업안전보건기준에 관한 규칙 제32조: 사업주는 물체가 떨어지거나 " +
				"날아올 위험 또는 근로자가 추락할 위험이 있는 작업에서 안전모를 지급하고 " +
				"착용하도록 하여야 한다. 작업자는 지급된 보호구를 착용할 의무가 있다.",
		},
		{
			ID:       "reg-education",
			Title:    "안전 교육 규정",
			Category: "regulation",
			Content: "산업안전보건법 제29조: 사업주는 소속 근로자에게 정기적으로 안전보건교육을 " +
				"실시하여야 한다. 신규 채용 시 및 작업 내용 변경 시 추가 교육을 실시한다.",
		},
	}
}
