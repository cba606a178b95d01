package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"mathagent/pkg/config"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Keep word characters, punctuation, and math operators; drop the rest.
	unsafeContentRe = regexp.MustCompile(`[^\w\s.,!?:;()\[\]{}+\-*/=^<>%']`)
)

// TavilySearch is a WebSearcher backed by the Tavily REST API, with queries
// biased toward mathematical reference sites.
type TavilySearch struct {
	httpClient *http.Client
	config     *config.SearchConfig
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func NewTavilySearch(cfg *config.SearchConfig, logger *zap.Logger) *TavilySearch {
	return &TavilySearch{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		config:     cfg,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:     logger,
	}
}

func (t *TavilySearch) Search(ctx context.Context, query string, maxResults int) (*SearchResponse, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search rate limit wait: %w", err)
	}
	if maxResults <= 0 {
		maxResults = t.config.MaxResults
	}

	payload, err := json.Marshal(map[string]any{
		"api_key":         t.config.APIKey,
		"query":           enhanceMathQuery(query),
		"max_results":     maxResults,
		"search_depth":    "advanced",
		"include_answer":  true,
		"include_domains": t.config.IncludeDomains,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.config.BaseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var searchResp struct {
		Answer  string `json:"answer"`
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	out := &SearchResponse{Answer: searchResp.Answer}
	for _, r := range searchResp.Results {
		out.Results = append(out.Results, SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: cleanContent(r.Content),
			Score:   r.Score,
		})
	}

	t.logger.Debug("Web search completed",
		zap.String("query", query),
		zap.Int("results", len(out.Results)),
	)

	return out, nil
}

// enhanceMathQuery prefixes a mathematical context when the query carries
// none of its own.
func enhanceMathQuery(query string) string {
	lower := strings.ToLower(query)
	for _, kw := range []string{"math", "mathematics", "solve", "calculate", "formula"} {
		if strings.Contains(lower, kw) {
			return query
		}
	}
	return "mathematics: " + query
}

func cleanContent(content string) string {
	content = unsafeContentRe.ReplaceAllString(content, "")
	content = whitespaceRe.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}
