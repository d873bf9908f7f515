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

// Package advisor drives one chat turn of the course-planning assistant.
//
// A turn loads the session's history and profile, binds the domain tools
// to that profile and the request's term, and runs a streaming
// tool-calling loop against the model: text deltas are forwarded to the
// client as they arrive, function calls are executed between model
// rounds, and make_schedule streams partial schedules to the client
// while it is still enumerating. When a round ends with no further
// function calls, history and profile are persisted and the turn is
// done.
package advisor

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"google.golang.org/genai"

	"github.com/kadirpekel/advisor/pkg/catalog"
	"github.com/kadirpekel/advisor/pkg/model/gemini"
	"github.com/kadirpekel/advisor/pkg/prereq"
	"github.com/kadirpekel/advisor/pkg/ratings"
	"github.com/kadirpekel/advisor/pkg/schedule"
	"github.com/kadirpekel/advisor/pkg/semantic"
	"github.com/kadirpekel/advisor/pkg/session"
	"github.com/kadirpekel/advisor/pkg/tool"
)

// maxToolRounds bounds the tool-calling loop so a model that keeps
// requesting tools cannot spin a request forever.
const maxToolRounds = 10

// Frame types on the wire.
const (
	FrameText     = "text"
	FrameSchedule = "schedule"
)

// Frame is one newline-delimited JSON object streamed to the client.
type Frame struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

// ChatRequest is one /chat invocation.
type ChatRequest struct {
	SessionID string `json:"sessionID"`
	Query     string `json:"query"`
	Term      string `json:"term"`

	// Attachments are base64-encoded gzip blobs of PDF files.
	Attachments []string `json:"attachments,omitempty"`
}

// Model is the streaming generation surface the orchestrator needs.
// *gemini.Client satisfies it.
type Model interface {
	Stream(ctx context.Context, req *gemini.Request) iter.Seq2[*gemini.StreamEvent, error]
}

// Sessions persists per-session chat state. *session.Store satisfies it.
type Sessions interface {
	Load(ctx context.Context, sessionID string) *session.State
	Save(ctx context.Context, sessionID string, history []*session.Content, profile *prereq.Profile) error
}

// Advisor wires the chat orchestrator to its collaborators. All fields
// are long-lived and shared across requests; per-request state (profile,
// tool bindings, schedule channel) is created inside Chat.
type Advisor struct {
	Catalog  *catalog.Store
	Index    *semantic.Index
	Ratings  *ratings.Store
	Sessions Sessions
	Model    Model

	// Prompt is the fixed system prompt appended after the serialized
	// user profile.
	Prompt string
}

// Chat runs one full chat turn, forwarding every output frame to sink in
// order. A sink error (typically a disconnected client) aborts the turn.
// State is persisted only after the model signals it is done.
func (a *Advisor) Chat(ctx context.Context, req *ChatRequest, sink func(Frame) error) error {
	state := a.Sessions.Load(ctx, req.SessionID)

	profileJSON, err := state.Profile.Marshal()
	if err != nil {
		return fmt.Errorf("failed to serialize profile: %w", err)
	}
	systemInstruction := fmt.Sprintf("User's current profile: %s.%s", profileJSON, a.Prompt)

	schedCh := make(chan schedule.Schedule, schedule.MaxSchedules)
	registry, err := a.newToolRegistry(state.Profile, req.Term, schedCh)
	if err != nil {
		return fmt.Errorf("failed to build tools: %w", err)
	}
	defs := registry.Definitions()

	contents := session.ToGenai(state.History)
	contents = append(contents, userContent(req))

	for round := 0; round < maxToolRounds; round++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var finalTurn *genai.Content
		for ev, err := range a.Model.Stream(ctx, &gemini.Request{
			SystemInstruction: systemInstruction,
			Tools:             defs,
			Contents:          contents,
		}) {
			if err != nil {
				return fmt.Errorf("model stream failed: %w", err)
			}
			switch {
			case ev.TextDelta != "":
				if err := sink(Frame{Type: FrameText, Content: ev.TextDelta}); err != nil {
					return err
				}
			case ev.Final != nil:
				finalTurn = ev.Final
			}
		}
		if finalTurn == nil || len(finalTurn.Parts) == 0 {
			break
		}
		contents = append(contents, finalTurn)

		calls := functionCalls(finalTurn)
		if len(calls) == 0 {
			break
		}

		responses := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			result, err := a.executeCall(ctx, registry, call, schedCh, sink)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Warn("Tool call failed", "tool", call.Name, "error", err)
				result = map[string]any{"error": err.Error()}
			}
			responses = append(responses, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       call.ID,
				Name:     call.Name,
				Response: result,
			}})
		}
		contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: responses})
	}

	if err := a.Sessions.Save(ctx, req.SessionID, session.FromGenai(contents), state.Profile); err != nil {
		slog.Warn("Failed to persist session", "session", req.SessionID, "error", err)
	}
	return nil
}

// executeCall resolves and runs one function call. make_schedule runs on
// a worker goroutine so partial schedules can be streamed to the client
// while enumeration is still in progress; every other tool runs inline.
func (a *Advisor) executeCall(ctx context.Context, registry *tool.Registry, call *tool.ToolCall, schedCh <-chan schedule.Schedule, sink func(Frame) error) (map[string]any, error) {
	t, ok := registry.Get(call.Name)
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", call.Name)
	}
	args := unwrapArgs(call.Args)

	if call.Name != makeScheduleName {
		return t.Call(ctx, args)
	}

	type callResult struct {
		result map[string]any
		err    error
	}
	done := make(chan callResult, 1)
	go func() {
		result, err := t.Call(ctx, args)
		done <- callResult{result, err}
	}()

	for {
		select {
		case s := <-schedCh:
			if err := sink(Frame{Type: FrameSchedule, Content: s}); err != nil {
				return nil, err
			}
		case r := <-done:
			// Drain schedules that landed after the tool returned.
			for {
				select {
				case s := <-schedCh:
					if err := sink(Frame{Type: FrameSchedule, Content: s}); err != nil {
						return nil, err
					}
				default:
					return r.result, r.err
				}
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// userContent builds the user turn: the query text plus any decoded PDF
// attachments. Attachments that fail to decode are dropped with a
// warning rather than failing the request.
func userContent(req *ChatRequest) *genai.Content {
	parts := []*genai.Part{{Text: req.Query}}
	for i, att := range req.Attachments {
		pdf, err := decodeAttachment(att)
		if err != nil {
			slog.Warn("Dropping undecodable attachment", "index", i, "error", err)
			continue
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{
			MIMEType: "application/pdf",
			Data:     pdf,
		}})
	}
	return &genai.Content{Role: genai.RoleUser, Parts: parts}
}

// decodeAttachment reverses the client encoding: base64 of a gzipped
// PDF.
func decodeAttachment(encoded string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("invalid gzip stream: %w", err)
	}
	defer zr.Close()

	pdf, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress attachment: %w", err)
	}
	return pdf, nil
}

// functionCalls extracts the function calls from a model turn.
func functionCalls(content *genai.Content) []*tool.ToolCall {
	var calls []*tool.ToolCall
	for _, p := range content.Parts {
		if p == nil || p.FunctionCall == nil {
			continue
		}
		calls = append(calls, &tool.ToolCall{
			ID:   p.FunctionCall.ID,
			Name: p.FunctionCall.Name,
			Args: p.FunctionCall.Args,
		})
	}
	return calls
}

// unwrapArgs removes the single-key {"args": {...}} envelope some model
// responses wrap around the real argument object.
func unwrapArgs(args map[string]any) map[string]any {
	if len(args) == 1 {
		if inner, ok := args["args"].(map[string]any); ok {
			return inner
		}
	}
	return args
}
