package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"mathagent/internal/capability"
	"mathagent/pkg/config"

	"go.uber.org/zap"
)

// maliciousPatterns catch injection attempts before the question reaches any
// model or store.
var maliciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)onerror=`),
	regexp.MustCompile(`(?i)eval\(`),
	regexp.MustCompile(`(?i)exec\(`),
	regexp.MustCompile(`(?i)__import__`),
}

var mathSymbolRe = regexp.MustCompile(`[+\-*/=^√∫∑<>≤≥≠%]|\d`)

// topicKeywords drives the fast-path topic detection. First match wins, in
// table order.
var topicKeywords = []struct {
	topic    string
	keywords []string
}{
	{"calculus", []string{"derivative", "integral", "limit", "differentiate", "integrate", "dx", "dy"}},
	{"algebra", []string{"equation", "solve for", "polynomial", "quadratic", "linear", "variable", "factor"}},
	{"geometry", []string{"triangle", "circle", "angle", "area", "perimeter", "volume", "rectangle", "polygon"}},
	{"trigonometry", []string{"sin", "cos", "tan", "sine", "cosine", "tangent", "radian"}},
	{"statistics", []string{"mean", "median", "mode", "standard deviation", "variance", "distribution"}},
	{"probability", []string{"probability", "chance", "odds", "random", "dice", "coin"}},
	{"number_theory", []string{"prime", "divisor", "gcd", "lcm", "modulo", "factorial"}},
	{"word_problem", []string{"how many", "how much", "if a train", "per hour", "total cost", "apples"}},
	{"arithmetic", []string{"add", "subtract", "multiply", "divide", "sum of", "difference of", "percent"}},
}

var refusalPhrases = []string{
	"i cannot help",
	"i can't help",
	"i am unable to",
	"i'm unable to",
	"as an ai",
	"i cannot answer",
}

var (
	tripleNewlineRe = regexp.MustCompile(`\n{3,}`)
	markupRe        = regexp.MustCompile(`<[^>]+>`)
	multiSpaceRe    = regexp.MustCompile(`[ \t]{2,}`)
)

// GuardrailVerdict is the outcome of one guardrail check. A rejected verdict
// carries a reason code; an accepted input verdict carries the detected topic
// and the sanitized question text.
type GuardrailVerdict struct {
	Accepted   bool
	Code       string
	Reason     string
	Topic      string
	Confidence float64
	Sanitized  string
}

// GuardrailService validates questions before processing and answers before
// delivery.
type GuardrailService struct {
	generator capability.TextGenerator
	config    *config.GuardrailsConfig
	logger    *zap.Logger
}

func NewGuardrailService(generator capability.TextGenerator, cfg *config.GuardrailsConfig, logger *zap.Logger) *GuardrailService {
	return &GuardrailService{
		generator: generator,
		config:    cfg,
		logger:    logger,
	}
}

// CheckInput runs the full input pipeline: length bounds, injection scan,
// sanitization, then mathematical classification. Classification tries a
// cheap keyword pass first and falls back to the LLM; if the LLM is
// unavailable the question is rejected rather than let through unchecked.
func (s *GuardrailService) CheckInput(ctx context.Context, question string) GuardrailVerdict {
	trimmed := strings.TrimSpace(question)

	// Bounds are in characters, not bytes.
	length := utf8.RuneCountInString(trimmed)
	if length < s.config.MinQuestionLength {
		return reject(RejectTooShort,
			fmt.Sprintf("question must be at least %d characters", s.config.MinQuestionLength))
	}
	if length > s.config.MaxQuestionLength {
		return reject(RejectTooLong,
			fmt.Sprintf("question must be at most %d characters", s.config.MaxQuestionLength))
	}

	for _, re := range maliciousPatterns {
		if re.MatchString(trimmed) {
			s.logger.Warn("Rejected question with suspicious pattern", zap.String("pattern", re.String()))
			return reject(RejectMalicious, "question contains potentially unsafe content")
		}
	}

	sanitized := sanitizeInput(trimmed)

	if topic, ok := detectTopic(sanitized); ok {
		return GuardrailVerdict{
			Accepted:   true,
			Topic:      topic,
			Confidence: keywordConfidence(topic),
			Sanitized:  sanitized,
		}
	}

	return s.classifyWithLLM(ctx, sanitized)
}

func (s *GuardrailService) classifyWithLLM(ctx context.Context, question string) GuardrailVerdict {
	prompt := fmt.Sprintf(`Classify the following question.

Question: %s

Respond with JSON only, no other text:
{"is_mathematical": true/false, "confidence": 0.0-1.0, "detected_topic": "one of: %s"}`,
		question, strings.Join(s.config.AllowedTopics, ", "))

	content, err := s.generator.Generate(ctx, prompt, capability.GenerateOptions{
		SystemInstruction: "You are a strict classifier for a mathematics service. Output only JSON.",
		Temperature:       0.1,
	})
	if err != nil {
		s.logger.Error("Question classification failed", zap.Error(err))
		return reject(RejectClassifierDown, "unable to verify the question is mathematical")
	}

	var parsed struct {
		IsMathematical bool    `json:"is_mathematical"`
		Confidence     float64 `json:"confidence"`
		DetectedTopic  string  `json:"detected_topic"`
	}
	raw := extractJSONObject(content)
	if raw == "" || json.Unmarshal([]byte(raw), &parsed) != nil {
		s.logger.Error("Unparseable classification response", zap.String("content", content))
		return reject(RejectClassifierDown, "unable to verify the question is mathematical")
	}

	if !parsed.IsMathematical {
		return reject(RejectNotMath, "only mathematical questions are supported")
	}
	if parsed.Confidence < s.config.ConfidenceThreshold {
		return reject(RejectLowConfidence,
			fmt.Sprintf("classification confidence %.2f is below the %.2f threshold",
				parsed.Confidence, s.config.ConfidenceThreshold))
	}

	return GuardrailVerdict{
		Accepted:   true,
		Topic:      s.normalizeTopic(parsed.DetectedTopic),
		Confidence: parsed.Confidence,
		Sanitized:  question,
	}
}

// CheckOutput validates a generated answer before delivery. A relevance
// failure from the model is tolerated with a reduced confidence: the answer
// itself was just generated successfully, so a transient check failure should
// not discard it.
func (s *GuardrailService) CheckOutput(ctx context.Context, question, answer string) GuardrailVerdict {
	trimmed := strings.TrimSpace(answer)
	if len(trimmed) < 10 {
		return reject(RejectUnsafeOutput, "generated answer is empty or too short")
	}

	lower := strings.ToLower(trimmed)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return reject(RejectUnsafeOutput, "model refused to answer the question")
		}
	}

	relevance, err := s.checkRelevance(ctx, question, trimmed)
	if err != nil {
		s.logger.Warn("Answer relevance check failed, delivering with reduced confidence", zap.Error(err))
		return GuardrailVerdict{Accepted: true, Confidence: 0.6, Sanitized: sanitizeOutput(trimmed)}
	}
	if relevance < s.config.ConfidenceThreshold {
		return reject(RejectIrrelevant,
			fmt.Sprintf("answer relevance %.2f is below the %.2f threshold", relevance, s.config.ConfidenceThreshold))
	}

	return GuardrailVerdict{
		Accepted:   true,
		Confidence: relevance,
		Sanitized:  sanitizeOutput(trimmed),
	}
}

func (s *GuardrailService) checkRelevance(ctx context.Context, question, answer string) (float64, error) {
	prompt := fmt.Sprintf(`Does the answer address the mathematical question?

Question: %s

Answer: %s

Respond with JSON only: {"is_relevant": true/false, "confidence": 0.0-1.0}`, question, answer)

	content, err := s.generator.Generate(ctx, prompt, capability.GenerateOptions{
		SystemInstruction: "You evaluate whether an answer addresses a question. Output only JSON.",
		Temperature:       0.1,
	})
	if err != nil {
		return 0, err
	}

	var parsed struct {
		IsRelevant bool    `json:"is_relevant"`
		Confidence float64 `json:"confidence"`
	}
	raw := extractJSONObject(content)
	if raw == "" {
		return 0, fmt.Errorf("no JSON in relevance response")
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return 0, fmt.Errorf("failed to parse relevance response: %w", err)
	}
	if !parsed.IsRelevant {
		return 0, nil
	}
	return parsed.Confidence, nil
}

// normalizeTopic maps the model's free-form topic to the allowed set,
// defaulting to general.
func (s *GuardrailService) normalizeTopic(topic string) string {
	topic = strings.ToLower(strings.TrimSpace(topic))
	for _, allowed := range s.config.AllowedTopics {
		if topic == allowed {
			return topic
		}
	}
	return "general"
}

// detectTopic is the keyword fast path. A keyword hit, or the presence of
// math symbols together with digits, classifies without an LLM round trip.
func detectTopic(question string) (string, bool) {
	lower := strings.ToLower(question)
	for _, entry := range topicKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.topic, true
			}
		}
	}
	if mathSymbolRe.MatchString(question) {
		return "general", true
	}
	return "", false
}

// keywordConfidence mirrors the two fast-path tiers: a named topic keyword
// is a stronger signal than bare symbols.
func keywordConfidence(topic string) float64 {
	if topic == "general" {
		return 0.85
	}
	return 0.9
}

// sanitizeInput strips markup and normalizes whitespace without touching
// the mathematical content.
func sanitizeInput(question string) string {
	question = markupRe.ReplaceAllString(question, " ")
	question = multiSpaceRe.ReplaceAllString(question, " ")
	return strings.TrimSpace(sanitizeUTF8(question))
}

func sanitizeOutput(answer string) string {
	answer = tripleNewlineRe.ReplaceAllString(answer, "\n\n")
	return strings.TrimSpace(sanitizeUTF8(answer))
}

func reject(code, reason string) GuardrailVerdict {
	return GuardrailVerdict{Accepted: false, Code: code, Reason: reason}
}
