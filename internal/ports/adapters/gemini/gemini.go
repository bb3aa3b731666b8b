// Package gemini adapts the Gemini text service to the ScriptAnalyzer port.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/ricardomdn/broll/internal/types"
)

const defaultModel = "gemini-2.5-flash"

const segmentSystemInstruction = "You are a professional video editor. You choose the best " +
	"b-roll footage to illustrate the narration. You are not afraid to show humans, objects " +
	"or scenery when the script mentions them, to create rich visual storytelling."

const alternativeSystemInstruction = "You are a creative visual assistant. You output single " +
	"search strings matching the script context."

// defaultPolicy is the segmentation policy sent with every script. It can be
// replaced wholesale through the adapter config for other channel styles.
const defaultPolicy = `Segment this script strictly SENTENCE BY SENTENCE.
1. One sentence = one video clip. Do not group sentences together.
2. If a sentence is extremely short (under 3 words), combine it with the next one.
3. If a sentence is very long or complex, split it into two visual segments based on clauses.
4. The goal is a fast-paced video where the visual changes with every sentence.

For each segment provide 3 DISTINCT stock-footage search terms:
1. Match the subject: the visual must match the spoken words, even when that means
   showing a person or an object instead of the channel's usual subject.
2. Default to the channel subject for segments about feelings, instincts or general behavior.
3. English only.`

type Adapter struct {
	model  string
	policy string
}

// New builds an adapter. model and policy fall back to defaults when empty.
// The API key is deliberately not held here: every call takes it as a
// parameter so credentials stay pure call inputs.
func New(model, policy string) *Adapter {
	if model == "" {
		model = defaultModel
	}
	if policy == "" {
		policy = defaultPolicy
	}
	return &Adapter{model: model, policy: policy}
}

var segmentSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"text": {
				Type:        genai.TypeString,
				Description: "The single sentence or clause for this segment",
			},
			"search_terms": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "3 search terms: literal representation, contextual mood, broad",
			},
		},
		Required: []string{"text", "search_terms"},
	},
}

// Segment sends the whitespace-normalized script with the segmentation
// policy and parses the structured response. An empty model response yields
// an empty list; every other failure is a single classified error with no
// partial results.
func (a *Adapter) Segment(ctx context.Context, apiKey, script string) ([]types.RawSegment, error) {
	clean := NormalizeScript(script)
	if clean == "" {
		return nil, errors.New("script is empty")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(a.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(segmentSystemInstruction)}}
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = segmentSchema

	prompt := fmt.Sprintf("Analyze the following video script.\n\nSCRIPT:\n%q\n\n%s\n\nReturn the result as a JSON array.", clean, a.policy)

	res, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("script segmentation failed, check the Gemini API key and retry: %w", err)
	}

	text, err := extractText(res)
	if err != nil {
		return nil, fmt.Errorf("script segmentation failed, check the Gemini API key and retry: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	segs, err := ParseSegments(text)
	if err != nil {
		return nil, fmt.Errorf("script segmentation failed, check the Gemini API key and retry: %w", err)
	}
	return segs, nil
}

// AlternativeTerm asks for one replacement search term for a segment. It
// returns an empty string when the model produced nothing usable so the
// caller can keep the current term.
func (a *Adapter) AlternativeTerm(ctx context.Context, apiKey, text, currentTerm string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("create genai client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(a.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(alternativeSystemInstruction)}}

	prompt := fmt.Sprintf(`I need a NEW stock footage search term for a video script segment.

Original sentence: %q
Current search term: %q

Generate a completely different English search term that captures the essence of this
sentence. If the sentence mentions a specific object or human action, search for that
object or human. Max 4-5 words. Return ONLY the raw search term string.`, text, currentTerm)

	res, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate alternative term: %w", err)
	}
	out, err := extractText(res)
	if err != nil {
		return "", fmt.Errorf("generate alternative term: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// NormalizeScript collapses newlines and runs of whitespace to single spaces.
func NormalizeScript(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseSegments decodes the model's JSON array and drops entries without
// text or terms. The model occasionally returns fewer than 3 terms; those
// segments are kept with whatever terms exist.
func ParseSegments(raw string) ([]types.RawSegment, error) {
	var parsed []types.RawSegment
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}

	out := make([]types.RawSegment, 0, len(parsed))
	for _, seg := range parsed {
		seg.Text = strings.TrimSpace(seg.Text)
		terms := seg.SearchTerms[:0]
		for _, t := range seg.SearchTerms {
			if t = strings.TrimSpace(t); t != "" {
				terms = append(terms, t)
			}
		}
		seg.SearchTerms = terms
		if seg.Text == "" || len(seg.SearchTerms) == 0 {
			continue
		}
		out = append(out, seg)
	}
	return out, nil
}

func extractText(res *genai.GenerateContentResponse) (string, error) {
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini returned no content")
	}
	if textPart, ok := res.Candidates[0].Content.Parts[0].(genai.Text); ok {
		return string(textPart), nil
	}
	return "", errors.New("gemini response did not contain text")
}
