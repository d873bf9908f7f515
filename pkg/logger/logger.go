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

// Package logger configures the process-wide slog logger for the
// advisor binaries: colored level-prefixed output on terminals, plain
// text everywhere else, optional log file.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel converts a string log level. Unknown strings default to
// info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init installs the default logger. An empty file logs to stderr. The
// returned cleanup closes the log file, if any.
func Init(level, file string) (func(), error) {
	out := os.Stderr
	cleanup := func() {}

	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		cleanup = func() { _ = f.Close() }
	}

	minLevel := ParseLevel(level)
	var handler slog.Handler
	if isTerminal(out) {
		handler = &coloredHandler{out: out, minLevel: minLevel}
	} else {
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: minLevel})
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m"
	case level >= slog.LevelWarn:
		return "\033[33m"
	case level >= slog.LevelInfo:
		return "\033[36m"
	default:
		return "\033[90m"
	}
}

// coloredHandler prints "LEVEL message key=value" with the level
// colored by severity.
type coloredHandler struct {
	out      *os.File
	minLevel slog.Level
	attrs    []slog.Attr
}

func (h *coloredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *coloredHandler) Handle(_ context.Context, record slog.Record) error {
	var buf strings.Builder
	buf.WriteString(levelColor(record.Level))
	buf.WriteString(record.Level.String())
	buf.WriteString("\033[0m ")
	buf.WriteString(record.Message)

	write := func(a slog.Attr) {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
	}
	for _, a := range h.attrs {
		write(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})
	buf.WriteString("\n")

	_, err := h.out.WriteString(buf.String())
	return err
}

func (h *coloredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &coloredHandler{out: h.out, minLevel: h.minLevel, attrs: merged}
}

func (h *coloredHandler) WithGroup(string) slog.Handler {
	return h
}
