// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gemini wraps the official google.golang.org/genai SDK behind
// the small streaming surface the chat orchestrator needs: one streamed
// generation call yielding text deltas and tool calls, plus a
// non-streaming call for structured extraction jobs.
package gemini

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/kadirpekel/advisor/pkg/tool"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// Config contains configuration for the Gemini client.
type Config struct {
	// APIKey is the Google AI API key.
	APIKey string

	// Model is the model name.
	Model string

	// Temperature controls randomness (0-2).
	Temperature float64
}

// Request is one generation request.
type Request struct {
	// SystemInstruction is prepended as the system prompt.
	SystemInstruction string

	// Tools the model may call.
	Tools []tool.Definition

	// Contents is the full conversation so far, ending with the newest
	// user content.
	Contents []*genai.Content
}

// StreamEvent is one event from a streamed generation.
//
// Exactly one of TextDelta, Call and Final is meaningful. Final is sent
// once, last, and carries the aggregated model turn for appending to the
// conversation history.
type StreamEvent struct {
	TextDelta string
	Call      *tool.ToolCall
	Final     *genai.Content
}

// Client talks to the Gemini API.
type Client struct {
	client *genai.Client
	name   string
	config Config
}

// New creates a Gemini client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{client: client, name: cfg.Model, config: cfg}, nil
}

// Name returns the model identifier.
func (c *Client) Name() string {
	return c.name
}

// Stream performs one streamed generation. Thought parts are dropped;
// duplicate function calls within one stream are emitted once.
func (c *Client) Stream(ctx context.Context, req *Request) iter.Seq2[*StreamEvent, error] {
	return func(yield func(*StreamEvent, error) bool) {
		config := c.buildConfig(req)

		var textParts []string
		var callParts []*genai.Part
		emittedCallIDs := make(map[string]bool)

		for genResp, err := range c.client.Models.GenerateContentStream(ctx, c.name, req.Contents, config) {
			if err != nil {
				yield(nil, fmt.Errorf("Gemini streaming error: %w", err))
				return
			}
			if len(genResp.Candidates) == 0 || genResp.Candidates[0].Content == nil {
				continue
			}

			for _, part := range genResp.Candidates[0].Content.Parts {
				if part.Text != "" && !part.Thought {
					textParts = append(textParts, part.Text)
					if !yield(&StreamEvent{TextDelta: part.Text}, nil) {
						return
					}
				}

				if part.FunctionCall != nil {
					callID := part.FunctionCall.ID
					if callID == "" {
						// Gemini often leaves the ID empty; derive a
						// stable one so duplicates across chunks
						// collapse.
						callID = stableCallID(part.FunctionCall.Name, part.FunctionCall.Args)
					}
					if emittedCallIDs[callID] {
						continue
					}
					emittedCallIDs[callID] = true

					callParts = append(callParts, &genai.Part{FunctionCall: &genai.FunctionCall{
						ID:   callID,
						Name: part.FunctionCall.Name,
						Args: part.FunctionCall.Args,
					}})
					tc := &tool.ToolCall{
						ID:   callID,
						Name: part.FunctionCall.Name,
						Args: part.FunctionCall.Args,
					}
					if !yield(&StreamEvent{Call: tc}, nil) {
						return
					}
				}
			}
		}

		final := &genai.Content{Role: genai.RoleModel}
		if text := strings.Join(textParts, ""); text != "" {
			final.Parts = append(final.Parts, &genai.Part{Text: text})
		}
		final.Parts = append(final.Parts, callParts...)

		yield(&StreamEvent{Final: final}, nil)
	}
}

// Generate performs one non-streaming generation and returns the text.
// Used by the scraper for prerequisite-tree extraction with a JSON
// response type.
func (c *Client) Generate(ctx context.Context, systemInstruction, text string, jsonOutput bool) (string, error) {
	config := c.buildConfig(&Request{SystemInstruction: systemInstruction})
	if jsonOutput {
		config.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := c.client.Models.GenerateContent(ctx, c.name, contents, config)
	if err != nil {
		return "", fmt.Errorf("Gemini generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			out.WriteString(part.Text)
		}
	}
	return out.String(), nil
}

// buildConfig creates the generation config for a request.
func (c *Client) buildConfig(req *Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if req.SystemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: req.SystemInstruction}},
		}
	}
	if c.config.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(c.config.Temperature))
	}
	if len(req.Tools) > 0 {
		config.Tools = buildTools(req.Tools)
	}

	return config
}

// buildTools converts tool definitions to Gemini function declarations.
func buildTools(tools []tool.Definition) []*genai.Tool {
	var genaiTools []*genai.Tool
	for _, t := range tools {
		genaiTools = append(genaiTools, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  toGenaiSchema(t.Parameters),
				},
			},
		})
	}
	return genaiTools
}

// toGenaiSchema converts a JSON schema map to a Gemini schema.
func toGenaiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	s := &genai.Schema{}

	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}

	return s
}

// stableCallID derives a deterministic id from a call's name and args so
// the same call repeated across streaming chunks deduplicates.
func stableCallID(name string, args map[string]any) string {
	data, _ := json.Marshal(map[string]any{"name": name, "args": args})
	hash := sha256.Sum256(data)
	return fmt.Sprintf("advisor-%x", hash[:16])
}
