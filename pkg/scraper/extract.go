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

package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kadirpekel/advisor/pkg/prereq"
)

// noDescription is the placeholder stored for courses whose catalog page
// carries no description.
const noDescription = "No Description"

// Generator is the LLM surface structure extraction needs.
// *gemini.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, systemInstruction, text string, jsonOutput bool) (string, error)
}

// CourseStructure is the machine-readable requirement data extracted
// from a course description.
type CourseStructure struct {
	PrereqTree   *prereq.Node         `json:"prereq_tree"`
	CoreqTree    *prereq.Node         `json:"coreq_tree"`
	Restrictions []prereq.Restriction `json:"restrictions"`
}

// Extractor turns free-text course descriptions into requirement trees
// via an LLM prompted for JSON output.
type Extractor struct {
	model  Generator
	prompt string
}

// NewExtractor builds an extractor around the given model and the
// description-processing prompt template.
func NewExtractor(model Generator, prompt string) *Extractor {
	return &Extractor{model: model, prompt: prompt}
}

// Process extracts the course structure from one description. An empty
// or placeholder description yields empty structure without a model
// call.
func (e *Extractor) Process(ctx context.Context, description string) (*CourseStructure, error) {
	if description == "" || strings.EqualFold(description, noDescription) {
		return &CourseStructure{Restrictions: []prereq.Restriction{}}, nil
	}

	raw, err := e.model.Generate(ctx, "", e.prompt+"\n INPUT: "+description, true)
	if err != nil {
		return nil, fmt.Errorf("structure extraction failed: %w", err)
	}

	// Models occasionally emit JavaScript's undefined where JSON wants
	// null.
	clean := strings.ReplaceAll(raw, "undefined", "null")

	var structure CourseStructure
	if err := json.Unmarshal([]byte(clean), &structure); err != nil {
		return nil, fmt.Errorf("failed to parse extraction output: %w", err)
	}
	if structure.Restrictions == nil {
		structure.Restrictions = []prereq.Restriction{}
	}
	return &structure, nil
}
