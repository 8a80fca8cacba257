// Package llm adapts the OpenAI API to the narrow capability interfaces
// the query core consumes: date-range extraction, merchant extraction,
// intent gap filling, answer synthesis, and text embedding. Every method
// is a single blocking call with no retry; callers treat failures as "no
// information".
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/receiptiq/receiptiq/internal/query/engine"
	"github.com/receiptiq/receiptiq/internal/query/intent"
	"github.com/receiptiq/receiptiq/internal/query/temporal"
)

const (
	answerEvidenceLimit = 20
	dateLayout          = "2006-01-02"
)

// Client wraps one OpenAI connection for all language capabilities.
type Client struct {
	client     *openai.Client
	model      string
	embedModel openai.EmbeddingModel
	logger     *zap.Logger
}

// NewClient creates a client. model is used for completions, embedModel
// for embeddings.
func NewClient(apiKey, model, embedModel string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		client:     openai.NewClient(apiKey),
		model:      model,
		embedModel: openai.EmbeddingModel(embedModel),
		logger:     logger,
	}
}

type dateRangePayload struct {
	Found bool   `json:"found"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// ExtractDateRange asks the model for the date range a query refers to,
// relative to ref. Returns nil when the query has no temporal expression.
func (c *Client) ExtractDateRange(ctx context.Context, query string, ref time.Time) (*temporal.DateRange, error) {
	prompt := fmt.Sprintf(
		"Today's date is %s.\n"+
			"Determine the date range this receipt query refers to:\n%q\n\n"+
			"Respond with JSON: {\"found\": true, \"start\": \"YYYY-MM-DD\", \"end\": \"YYYY-MM-DD\"} "+
			"or {\"found\": false} if the query mentions no time period.",
		ref.Format(dateLayout), query)

	var payload dateRangePayload
	if err := c.completeJSON(ctx, "You resolve natural-language time expressions into exact date ranges.", prompt, &payload); err != nil {
		return nil, err
	}
	if !payload.Found {
		return nil, nil
	}
	start, err := time.ParseInLocation(dateLayout, payload.Start, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("bad start date %q: %w", payload.Start, err)
	}
	end, err := time.ParseInLocation(dateLayout, payload.End, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("bad end date %q: %w", payload.End, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("date range ends before it starts: %s > %s", payload.Start, payload.End)
	}
	return &temporal.DateRange{Start: start, End: end}, nil
}

type merchantsPayload struct {
	Merchants []string `json:"merchants"`
}

// ExtractMerchants asks the model for merchant names mentioned in the
// query. knownMerchants, when present, lets the model resolve aliases to
// canonical names.
func (c *Client) ExtractMerchants(ctx context.Context, query string, knownMerchants []string) ([]string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract the business or store names mentioned in this receipt query:\n%q\n\n", query)
	if len(knownMerchants) > 0 {
		fmt.Fprintf(&b, "Known merchants in the data: %s\n", strings.Join(knownMerchants, ", "))
		b.WriteString("Prefer the known spelling when the query clearly refers to one of them.\n")
	}
	b.WriteString("Return JSON: {\"merchants\": [\"Name\", ...]}. ")
	b.WriteString("Never include dates, amounts, or product categories; return an empty list if no merchant is named.")

	var payload merchantsPayload
	if err := c.completeJSON(ctx, "You extract merchant names from receipt questions.", b.String(), &payload); err != nil {
		return nil, err
	}
	return payload.Merchants, nil
}

type gapsPayload struct {
	Merchants   []string `json:"merchants"`
	DateStart   string   `json:"date_start"`
	DateEnd     string   `json:"date_end"`
	Aggregation string   `json:"aggregation"`
}

// FillIntentGaps extracts merchants, a date range, and an aggregation in
// one call, used when rule-based parsing produced none of them.
func (c *Client) FillIntentGaps(ctx context.Context, query string, ref time.Time) (*intent.Gaps, error) {
	prompt := fmt.Sprintf(
		"Today's date is %s.\n"+
			"Analyze this receipt query:\n%q\n\n"+
			"Return JSON with keys:\n"+
			"  merchants: list of store names mentioned (empty if none)\n"+
			"  date_start, date_end: \"YYYY-MM-DD\" bounds of the time period, or \"\" if none\n"+
			"  aggregation: one of \"sum\", \"average\", \"count\", or \"\" if no computation is asked for",
		ref.Format(dateLayout), query)

	var payload gapsPayload
	if err := c.completeJSON(ctx, "You turn receipt questions into structured search parameters.", prompt, &payload); err != nil {
		return nil, err
	}

	gaps := &intent.Gaps{Merchants: payload.Merchants}
	if payload.DateStart != "" && payload.DateEnd != "" {
		start, serr := time.ParseInLocation(dateLayout, payload.DateStart, time.UTC)
		end, eerr := time.ParseInLocation(dateLayout, payload.DateEnd, time.UTC)
		if serr == nil && eerr == nil && !end.Before(start) {
			gaps.DateRange = &temporal.DateRange{Start: start, End: end}
		}
	}
	switch intent.Aggregation(payload.Aggregation) {
	case intent.AggregationSum, intent.AggregationAverage, intent.AggregationCount:
		gaps.Aggregation = intent.Aggregation(payload.Aggregation)
	}
	return gaps, nil
}

// GenerateAnswer synthesizes the final answer from deduplicated evidence.
// When audit is present the model is told to cite its value verbatim.
func (c *Client) GenerateAnswer(ctx context.Context, query string, it intent.Intent, receipts []engine.ReceiptSummary, items []engine.ItemSummary, audit *engine.AuditResult) (string, error) {
	if len(receipts) > answerEvidenceLimit {
		receipts = receipts[:answerEvidenceLimit]
	}
	if len(items) > answerEvidenceLimit {
		items = items[:answerEvidenceLimit]
	}

	receiptJSON, err := json.Marshal(receipts)
	if err != nil {
		return "", fmt.Errorf("marshal receipts: %w", err)
	}
	itemJSON, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal items: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nReceipts:\n%s\n\nItems:\n%s\n", query, receiptJSON, itemJSON)
	if audit != nil {
		fmt.Fprintf(&b,
			"\nA verified %s over %d %s has already been computed: %s = %s.\n"+
				"State this exact figure in your answer. Do not recompute or round it differently.\n",
			audit.Aggregation, audit.Count, audit.Basis, audit.MetricField, audit.Value.String())
	}
	b.WriteString("\nAnswer the question in one or two sentences using only the evidence above.")

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You answer questions about personal receipts. Be concise and only cite the provided evidence.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: b.String(),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("answer generation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("answer generation: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// EmbedText returns the embedding vector for one text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: c.embedModel,
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding: empty response")
	}
	return resp.Data[0].Embedding, nil
}

// completeJSON runs one JSON-mode completion and unmarshals the content
// into out, salvaging a JSON object from surrounding prose if the model
// added any.
func (c *Client) completeJSON(ctx context.Context, system, prompt string, out interface{}) error {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("chat completion: empty response")
	}

	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), out); err == nil {
		return nil
	}
	salvaged, ok := salvageJSON(content)
	if !ok {
		c.logger.Warn("unparseable completion", zap.String("content", content))
		return fmt.Errorf("chat completion: no JSON object in response")
	}
	if err := json.Unmarshal([]byte(salvaged), out); err != nil {
		return fmt.Errorf("parse completion: %w", err)
	}
	return nil
}

// salvageJSON returns the first balanced JSON object embedded in s, for
// models that wrap their JSON in code fences or prose.
func salvageJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}
