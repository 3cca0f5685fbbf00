// Package recommend generates relocation recommendations for a family
// profile through the Anthropic messages API.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/movewise/opportunity-cli/pkg/anthropic"
)

const defaultModel = "claude-sonnet-4-5-20250929"

const systemPrompt = `You advise families relocating within the United States.
Given an address, zip code, household income, and number of children,
recommend where the family should look. Respond with a single JSON object
and nothing else, with exactly these string fields:
"town", "school", "program", "demographic", "housing".`

// Profile is the family profile submitted for a recommendation.
type Profile struct {
	Address  string `json:"address"`
	Zip      string `json:"zip"`
	Income   int    `json:"income"`
	Children int    `json:"children"`
}

// Validate checks required fields.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Address) == "" && strings.TrimSpace(p.Zip) == "" {
		return eris.New("recommend: address or zip is required")
	}
	if p.Income < 0 {
		return eris.New("recommend: income must be non-negative")
	}
	if p.Children < 0 {
		return eris.New("recommend: children must be non-negative")
	}
	return nil
}

// Recommendation is the structured result returned to the client.
type Recommendation struct {
	Town        string `json:"town"`
	School      string `json:"school"`
	Program     string `json:"program"`
	Demographic string `json:"demographic"`
	Housing     string `json:"housing"`
}

// Generator produces recommendations.
type Generator struct {
	client anthropic.Client
	model  string
}

// GeneratorOption configures the Generator.
type GeneratorOption func(*Generator)

// WithModel overrides the model.
func WithModel(model string) GeneratorOption {
	return func(g *Generator) { g.model = model }
}

// NewGenerator creates a Generator over the given client.
func NewGenerator(client anthropic.Client, opts ...GeneratorOption) *Generator {
	g := &Generator{client: client, model: defaultModel}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate asks the model for a recommendation and parses the JSON reply.
func (g *Generator) Generate(ctx context.Context, profile Profile) (*Recommendation, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"Address: %s\nZip: %s\nAnnual household income: $%d\nChildren: %d",
		profile.Address, profile.Zip, profile.Income, profile.Children,
	)

	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: 1024,
		System:    systemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "recommend: generate")
	}
	resp.Usage.LogUsage(g.model, "recommend")

	rec, err := parseRecommendation(resp.Text())
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// parseRecommendation extracts the JSON object from the reply, tolerating
// surrounding prose or code fences.
func parseRecommendation(text string) (*Recommendation, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.Errorf("recommend: no JSON object in reply")
	}

	var rec Recommendation
	if err := json.Unmarshal([]byte(text[start:end+1]), &rec); err != nil {
		return nil, eris.Wrap(err, "recommend: parse reply")
	}
	if rec.Town == "" {
		return nil, eris.New("recommend: reply missing town")
	}
	return &rec, nil
}
