// Package advisor is the backend of a university course-planning
// assistant.
//
// The system combines a scraped course catalog (sections, titles,
// descriptions, machine-extracted prerequisite trees), instructor
// ratings, a semantic course index, and a tool-calling LLM into a
// streaming chat advisor. Students ask what they can take, what a
// course requires, or for a conflict-free schedule; the model answers
// through a fixed tool surface backed by the catalog.
//
// # Quick Start
//
// Install the server:
//
//	go install github.com/kadirpekel/advisor/cmd/advisor@latest
//
// Create a configuration (see config.example.yaml), set GEMINI_API_KEY,
// and start it:
//
//	advisor serve --config config.yaml
//
// The server listens on :3001 by default and exposes:
//
//   - POST /chat       streaming NDJSON chat
//   - POST /getprofs   instructor rating lookup
//   - GET  /getcourses full catalog snapshot
//
// One-shot scrape passes are available through the scraper command:
//
//	scraper sections --term 202690
//	scraper catalog
//	scraper lecturers
//
// See the package documentation under pkg/ for the individual
// components: catalog, prereq, schedule, semantic, advisor, scraper,
// server.
package advisor
