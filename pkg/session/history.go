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

package session

import (
	"encoding/json"

	"google.golang.org/genai"
)

// Content is one persisted chat turn. It intentionally carries only the
// part kinds that survive persistence: text, function calls and function
// responses. Provider-internal fields (thoughts, thought signatures,
// inline blobs) are dropped at the conversion boundary and never reach
// Redis.
type Content struct {
	Role  string  `json:"role"`
	Parts []*Part `json:"parts,omitempty"`
}

// Part is one persisted content part. At most one field is set.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

// FunctionCall mirrors a model-issued tool invocation.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse mirrors a tool result fed back to the model.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}

// FromGenai converts model history into the persisted form, discarding
// every part kind that must not be stored.
func FromGenai(contents []*genai.Content) []*Content {
	out := make([]*Content, 0, len(contents))
	for _, c := range contents {
		if c == nil {
			continue
		}
		converted := &Content{Role: c.Role}
		for _, p := range c.Parts {
			if p == nil || p.Thought {
				continue
			}
			switch {
			case p.Text != "":
				converted.Parts = append(converted.Parts, &Part{Text: p.Text})
			case p.FunctionCall != nil:
				converted.Parts = append(converted.Parts, &Part{FunctionCall: &FunctionCall{
					ID:   p.FunctionCall.ID,
					Name: p.FunctionCall.Name,
					Args: p.FunctionCall.Args,
				}})
			case p.FunctionResponse != nil:
				converted.Parts = append(converted.Parts, &Part{FunctionResponse: &FunctionResponse{
					ID:       p.FunctionResponse.ID,
					Name:     p.FunctionResponse.Name,
					Response: p.FunctionResponse.Response,
				}})
			}
		}
		if len(converted.Parts) > 0 {
			out = append(out, converted)
		}
	}
	return out
}

// ToGenai converts persisted history back into model contents.
func ToGenai(contents []*Content) []*genai.Content {
	out := make([]*genai.Content, 0, len(contents))
	for _, c := range contents {
		if c == nil {
			continue
		}
		converted := &genai.Content{Role: c.Role}
		for _, p := range c.Parts {
			if p == nil {
				continue
			}
			switch {
			case p.Text != "":
				converted.Parts = append(converted.Parts, &genai.Part{Text: p.Text})
			case p.FunctionCall != nil:
				converted.Parts = append(converted.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   p.FunctionCall.ID,
					Name: p.FunctionCall.Name,
					Args: p.FunctionCall.Args,
				}})
			case p.FunctionResponse != nil:
				converted.Parts = append(converted.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       p.FunctionResponse.ID,
					Name:     p.FunctionResponse.Name,
					Response: p.FunctionResponse.Response,
				}})
			}
		}
		if len(converted.Parts) > 0 {
			out = append(out, converted)
		}
	}
	return out
}

// MarshalHistory serializes persisted history to the Redis value format.
func MarshalHistory(history []*Content) ([]byte, error) {
	if history == nil {
		history = []*Content{}
	}
	return json.Marshal(history)
}

// UnmarshalHistory deserializes history; empty or malformed input yields
// an empty history so a corrupt session key never fails a request.
func UnmarshalHistory(data []byte) []*Content {
	if len(data) == 0 {
		return nil
	}
	var history []*Content
	if err := json.Unmarshal(data, &history); err != nil {
		return nil
	}
	return history
}
