// Package capability holds the thin contracts the core pipeline calls
// through: text generation, embedding, and web search. Implementations live
// alongside; the pipeline itself never imports a vendor SDK.
package capability

import "context"

// GenerateOptions are scoped to a single Generate call. Guardrail
// classification runs cold (0.1), solution generation slightly warmer (0.3).
type GenerateOptions struct {
	SystemInstruction string
	Temperature       float64
}

type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type SearchResponse struct {
	// Answer is the provider's own summary, when it returns one.
	Answer  string         `json:"answer"`
	Results []SearchResult `json:"results"`
}

type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) (*SearchResponse, error)
}
