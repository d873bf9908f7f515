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

// Package config loads the advisor's YAML configuration with
// ${ENV_VAR} expansion and .env file support.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full advisor configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Reranker RerankerConfig `yaml:"reranker"`
	Semantic SemanticConfig `yaml:"semantic"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	Prompts  PromptsConfig  `yaml:"prompts"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type RedisConfig struct {
	// Addr empty disables Redis: sessions become per-process, scrapes
	// persist to file only.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type GeminiConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type EmbedderConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

type RerankerConfig struct {
	// URL empty disables cross-encoder reranking; semantic queries
	// fall back to embedding similarity order.
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

type SemanticConfig struct {
	PersistPath string `yaml:"persist_path"`
	Compress    bool   `yaml:"compress"`
}

type ScraperConfig struct {
	BannerBaseURL  string `yaml:"banner_base_url"`
	CatalogBaseURL string `yaml:"catalog_base_url"`
	RMPBaseURL     string `yaml:"rmp_base_url"`

	TermFile      string `yaml:"term_file"`
	CatalogFile   string `yaml:"catalog_file"`
	LecturersFile string `yaml:"lecturers_file"`

	CourseInterval   Duration `yaml:"course_interval"`
	LecturerInterval Duration `yaml:"lecturer_interval"`

	CatalogURLs []string `yaml:"catalog_urls"`
}

type PromptsConfig struct {
	ChatbotFile    string `yaml:"chatbot_file"`
	ExtractionFile string `yaml:"extraction_file"`
}

// Load reads and expands the configuration file. An empty path yields
// the defaults with environment overrides only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		expanded, err := yaml.Marshal(ExpandEnvVarsInData(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to expand config: %w", err)
		}
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults fills unset fields. API keys come from the environment
// when the file leaves them out.
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":3001"
	}
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = os.Getenv("REDIS_ADDR")
	}
	if c.Embedder.Host == "" {
		c.Embedder.Host = os.Getenv("OLLAMA_HOST")
	}
	if c.Reranker.URL == "" {
		c.Reranker.URL = os.Getenv("RERANKER_URL")
	}
	if c.Semantic.PersistPath == "" {
		c.Semantic.PersistPath = "data/index"
	}
	if c.Scraper.RMPBaseURL == "" {
		c.Scraper.RMPBaseURL = os.Getenv("RMP_PROXY_URL")
	}
	if c.Scraper.TermFile == "" {
		c.Scraper.TermFile = "scrapers/currentTerm.txt"
	}
	if c.Scraper.CatalogFile == "" {
		c.Scraper.CatalogFile = "data/graph.json"
	}
	if c.Scraper.LecturersFile == "" {
		c.Scraper.LecturersFile = "data/lecturers.json"
	}
	if c.Prompts.ChatbotFile == "" {
		c.Prompts.ChatbotFile = "prompts/chatbot_prompt.txt"
	}
	if c.Prompts.ExtractionFile == "" {
		c.Prompts.ExtractionFile = "prompts/description_process_prompt.txt"
	}
}

// Validate rejects configurations that cannot possibly serve.
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini api key is required (set gemini.api_key or GEMINI_API_KEY)")
	}
	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		return fmt.Errorf("gemini temperature must be between 0 and 2, got %v", c.Gemini.Temperature)
	}
	return nil
}
