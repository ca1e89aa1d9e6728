package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/familyhub/schoolmail-backend/internal/models"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 2000
	apiURL           = "https://api.anthropic.com/v1/messages"
	apiVersion       = "2023-06-01"
)

// AnalyzeRequest carries the email content and household context for
// one classification call.
type AnalyzeRequest struct {
	Subject    string
	FromName   string
	FromAddr   string
	ReceivedAt time.Time
	BodyText   string
	BodyHTML   string
	Children   []models.Child
}

// Client talks to the Anthropic messages API.
type Client struct {
	apiKey     string
	model      string
	maxTokens  int
	endpoint   string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithEndpoint overrides the API endpoint. Used by tests.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// NewClient creates a classification client.
func NewClient(apiKey, model string, opts ...Option) *Client {
	if model == "" {
		model = defaultModel
	}
	c := &Client{
		apiKey:     apiKey,
		model:      model,
		maxTokens:  defaultMaxTokens,
		endpoint:   apiURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiRequest is the Anthropic messages request body.
type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// apiResponse is the subset of the response we consume.
type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Analyze sends one classification request and strictly decodes the
// response. A transport failure returns a plain error; a response that
// is not valid JSON for the documented schema returns a *SchemaError,
// letting callers substitute DefaultAnalysis explicitly.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, error) {
	prompt := buildPrompt(req)

	body, err := json.Marshal(apiRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []apiMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling classification API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classification API status %d", resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, &SchemaError{Raw: string(respBody), Err: err}
	}

	var text string
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, &SchemaError{Raw: string(respBody), Err: fmt.Errorf("no text content in response")}
	}

	return decodeAnalysis(text)
}

// decodeAnalysis strictly parses the model's JSON answer.
func decodeAnalysis(text string) (*Analysis, error) {
	// Models occasionally wrap the object in a code fence; strip it
	// before the strict decode.
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var analysis Analysis
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&analysis); err != nil {
		return nil, &SchemaError{Raw: text, Err: err}
	}
	if analysis.Category == "" || analysis.Priority == "" {
		return nil, &SchemaError{Raw: text, Err: fmt.Errorf("missing required fields")}
	}

	analysis.normalize()
	return &analysis, nil
}

// buildPrompt renders the classification prompt with household context.
func buildPrompt(req AnalyzeRequest) string {
	var b strings.Builder

	names := make([]string, 0, len(req.Children))
	var childrenDesc strings.Builder
	for _, child := range req.Children {
		names = append(names, fmt.Sprintf("%q", child.Name))
		childrenDesc.WriteString("- " + child.Name)
		if child.Grade != "" {
			childrenDesc.WriteString(" (" + child.Grade + ")")
		}
		if child.Notes != "" {
			childrenDesc.WriteString(", " + child.Notes)
		}
		childrenDesc.WriteString("\n")
	}

	from := req.FromName
	if from == "" {
		from = req.FromAddr
	}

	body := req.BodyText
	if body == "" {
		body = stripHTML(req.BodyHTML)
	}
	if body == "" {
		body = "(No content)"
	}

	fmt.Fprintf(&b, "You are analyzing a school email for a family with %d %s:\n%s\n",
		len(req.Children), pluralChildren(len(req.Children)), childrenDesc.String())
	fmt.Fprintf(&b, "Analyze this email and extract structured information:\n\n")
	fmt.Fprintf(&b, "FROM: %s\nSUBJECT: %s\nDATE: %s\n\nEMAIL BODY:\n%s\n\n",
		from, req.Subject, req.ReceivedAt.Format("2006-01-02"), body)

	b.WriteString(`Return a JSON object with:
{
  "category": one of: school_notice, homework, event, permission, grade, behavior, sports, transportation, fundraising, other,
  "priority": "high", "medium", or "low",
  "action_required": true/false (does this require parent action?),
  "summary": "1-2 sentence summary of the email",
  "confidence_score": 0.0-1.0,
  "extracted_events": [
    {"title": "...", "description": "...", "event_type": "assignment, test, school_event, sports, meeting, holiday, deadline, other", "start_date": "YYYY-MM-DD" or "YYYY-MM-DD HH:mm", "end_date": optional, "all_day": true/false, "location": optional}
  ],
  "extracted_actions": [
    {"action_type": "deadline, rsvp, permission_form, payment, task, reminder, other", "action_text": "...", "due_date": optional "YYYY-MM-DD", "priority": "high", "medium", or "low"}
  ],
  "child_mentions": [
    {"child_name": one of: ` + strings.Join(names, ", ") + `, "relevance_type": "primary" (email is about this child), "mentioned", "shared" (applies to multiple kids), or "class_wide", "confidence": 0.0-1.0, "reasoning": "why this email relates to this child"}
  ]
}

Return ONLY the JSON object, no other text.`)

	return b.String()
}

func pluralChildren(n int) string {
	if n == 1 {
		return "child"
	}
	return "children"
}

// stripHTML is a minimal tag stripper for prompt building.
func stripHTML(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
