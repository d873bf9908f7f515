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

package server

import (
	"context"
	"log/slog"

	"github.com/kadirpekel/advisor/pkg/scraper"
	"github.com/kadirpekel/advisor/pkg/semantic"
)

// SubscribeRefresh reloads the in-process catalog and rating mirrors
// when the scraper publishes a fresh snapshot. When an index is given,
// catalog updates also reconcile the semantic index. Blocks until ctx
// is cancelled; a no-op without Redis.
func (s *Server) SubscribeRefresh(ctx context.Context, index *semantic.Index) {
	if s.rdb == nil {
		return
	}

	sub := s.rdb.Subscribe(ctx, scraper.CourseUpdatesChannel, scraper.LecturerUpdatesChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Payload != scraper.RefreshPayload {
				continue
			}
			switch msg.Channel {
			case scraper.CourseUpdatesChannel:
				if err := s.catalog.LoadRedis(ctx, s.rdb); err != nil {
					slog.Warn("Failed to reload courses from redis", "error", err)
					continue
				}
				slog.Info("Reloaded course catalog", "courses", s.catalog.Len())
				if index != nil {
					if n, err := index.Reconcile(ctx, s.catalog); err != nil {
						slog.Warn("Semantic index reconcile failed", "error", err)
					} else if n > 0 {
						slog.Info("Semantic index updated", "reembedded", n)
					}
				}
			case scraper.LecturerUpdatesChannel:
				if err := s.ratings.LoadRedis(ctx, s.rdb); err != nil {
					slog.Warn("Failed to reload lecturers from redis", "error", err)
					continue
				}
				slog.Info("Reloaded lecturer ratings")
			}
		}
	}
}
