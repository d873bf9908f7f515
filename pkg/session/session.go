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

// Package session persists per-session chat state in Redis.
//
// Each session owns two keys: "<id>:history" (the serialized chat
// transcript) and "<id>:prereqs" (the user's academic profile). Reads are
// best-effort: a missing, unreachable or corrupt key deserializes to an
// empty history and a default profile so a broken session never blocks a
// chat request. Writes happen once per request, after the model turn
// completes; the two keys are written independently.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kadirpekel/advisor/pkg/prereq"
)

// State is the per-session state loaded at the start of a chat request.
type State struct {
	History []*Content
	Profile *prereq.Profile
}

// Store reads and writes session state.
type Store struct {
	rdb *redis.Client

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore returns a store backed by the given Redis client.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, locks: make(map[string]*sync.Mutex)}
}

// Lock returns the mutex owned by the given session. Callers that want
// to serialize concurrent requests for one session can hold it across
// the load-mutate-save cycle; otherwise the last writer wins.
func (s *Store) Lock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[sessionID] = m
	}
	return m
}

// NewID mints a fresh session identifier for clients that connect
// without one.
func NewID() string {
	return uuid.NewString()
}

// HistoryKey returns the Redis key holding a session's chat history.
func HistoryKey(sessionID string) string { return sessionID + ":history" }

// PrereqsKey returns the Redis key holding a session's profile.
func PrereqsKey(sessionID string) string { return sessionID + ":prereqs" }

// Load fetches a session's state. Every failure mode degrades to the
// empty state: new sessions, evicted keys, corrupt payloads and Redis
// outages all look the same to the caller.
func (s *Store) Load(ctx context.Context, sessionID string) *State {
	state := &State{Profile: prereq.NewProfile()}

	history, err := s.rdb.Get(ctx, HistoryKey(sessionID)).Bytes()
	switch {
	case err == nil:
		state.History = UnmarshalHistory(history)
	case !errors.Is(err, redis.Nil):
		slog.Warn("Failed to load session history, starting empty", "session", sessionID, "error", err)
	}

	prereqs, err := s.rdb.Get(ctx, PrereqsKey(sessionID)).Bytes()
	switch {
	case err == nil:
		state.Profile = prereq.UnmarshalProfile(prereqs)
	case !errors.Is(err, redis.Nil):
		slog.Warn("Failed to load session profile, using default", "session", sessionID, "error", err)
	}

	return state
}

// Save persists a session's state. The two keys are written independently
// so a failure on one does not roll back the other.
func (s *Store) Save(ctx context.Context, sessionID string, history []*Content, profile *prereq.Profile) error {
	var errs []error

	data, err := MarshalHistory(history)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to encode session history: %w", err))
	} else if err := s.rdb.Set(ctx, HistoryKey(sessionID), data, 0).Err(); err != nil {
		errs = append(errs, fmt.Errorf("failed to write session history: %w", err))
	}

	data, err = profile.Marshal()
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to encode session profile: %w", err))
	} else if err := s.rdb.Set(ctx, PrereqsKey(sessionID), data, 0).Err(); err != nil {
		errs = append(errs, fmt.Errorf("failed to write session profile: %w", err))
	}

	return errors.Join(errs...)
}
