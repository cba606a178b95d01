package models

type RoutingDecision string

const (
	RouteKnowledgeBase RoutingDecision = "knowledge_base"
	RouteWebSearch     RoutingDecision = "web_search"
)

type SolutionStep struct {
	Number      int    `json:"step_number"`
	Description string `json:"description"`
}

// Solution is the structured answer returned to the caller. It is not
// persisted; persistence happens on the feedback path.
type Solution struct {
	Answer            string          `json:"answer"`
	Steps             []SolutionStep  `json:"solution_steps"`
	Confidence        float64         `json:"confidence_score"`
	Sources           []string        `json:"sources"`
	RoutingDecision   RoutingDecision `json:"routing_decision"`
	Topic             string          `json:"topic"`
	UsedExternalTool  bool            `json:"used_external_tool"`
	RetrievalFallback bool            `json:"retrieval_fallback"`
}
