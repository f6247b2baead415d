// Copyright 2025 The LUCI Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dashboard assembles the per-team contest dashboard.
//
// Each sub-result (current round, round content, round timer, every signed
// dataset URL) is cached independently with its own TTL. Round settings
// change rarely, so 30s of staleness bounds load on the store; signed URLs
// are expensive to mint and valid for a fixed external duration, so they are
// cached almost up to that duration. The URL cache TTL is deliberately
// shorter than the URL validity, so a cached URL is never served past its
// real expiry.
//
// Phase 2 datasets are shared per pool (L or S) and revealed only inside a
// fixed window before round end. Withholding them outside the window is a
// deliberate gate, not an error.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/gae/service/datastore"

	"go.chromium.org/datasprint/internal/apierr"
	"go.chromium.org/datasprint/internal/gs"
	"go.chromium.org/datasprint/internal/model"
	"go.chromium.org/datasprint/internal/rounds"
	"go.chromium.org/datasprint/internal/ttlcache"
)

// Cache keys. Signed URL entries use signedURLKeyPrefix + storage path.
const (
	currentRoundKey    = "current_round"
	roundEndTimeKey    = "round_end_time"
	roundContentKeyFmt = "round_content_%d_%s"
	signedURLKeyPrefix = "signed_url_"
)

// Config carries the tunables of the assembly path.
type Config struct {
	// DatasetsBucket is the bucket holding pre-populated dataset objects.
	DatasetsBucket string

	// SettingsTTL bounds staleness of cached round settings and content.
	SettingsTTL time.Duration

	// SignedURLLifetime is the validity requested for minted signed URLs.
	SignedURLLifetime time.Duration

	// SignedURLTTL is how long minted URLs are cached. Must be shorter than
	// SignedURLLifetime.
	SignedURLTTL time.Duration

	// PhaseTwoWindow is how long before round end the Phase 2 datasets are
	// revealed.
	PhaseTwoWindow time.Duration
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		DatasetsBucket:    "datasets",
		SettingsTTL:       30 * time.Second,
		SignedURLLifetime: time.Hour,
		SignedURLTTL:      55 * time.Minute,
		PhaseTwoWindow:    45 * time.Minute,
	}
}

// Service assembles dashboards.
type Service struct {
	Cache *ttlcache.Cache
	GS    gs.Client
	Cfg   Config
}

// Dashboard is what a team should see right now.
type Dashboard struct {
	Round       int
	Title       string
	Description string
	Questions   []string

	// MainDatasets are the resolved signed URLs of the round's primary
	// datasets. Unresolvable entries are filtered out.
	MainDatasets []string

	// FinalDatasets are the resolved signed URLs of the Phase 2 datasets.
	// Empty outside the reveal window.
	FinalDatasets []string

	// EndTime is the raw round_end_time value, or "" if the timer is unset.
	EndTime string

	// DatasetName is the object name of the first primary dataset.
	DatasetName string

	// DatasetURL and FinalDatasetURL carry the first-slot URLs ("" when
	// unresolved) for clients predating the array fields.
	DatasetURL      string
	FinalDatasetURL string
}

// Assemble answers "what should this team see right now" for the given
// track.
//
// The track comes from the caller's verified claims and is not re-validated
// here.
func (s *Service) Assemble(ctx context.Context, track string) (*Dashboard, error) {
	round, err := s.currentRound(ctx)
	if err != nil {
		return nil, err
	}

	content, err := s.roundContent(ctx, round, track)
	if err != nil {
		return nil, err
	}

	timerValue, err := s.roundEndTime(ctx)
	if err != nil {
		return nil, err
	}

	mainPaths := []string{
		datasetPath(track, round, content.DatasetPrefix, 1),
		datasetPath(track, round, content.DatasetPrefix, 2),
	}

	pool := trackPool(track)
	finalPaths := []string{
		finalDatasetPath(pool, content.DatasetPrefix, 1),
		finalDatasetPath(pool, content.DatasetPrefix, 2),
	}

	d := &Dashboard{
		Round:       round,
		Title:       content.Title,
		Description: content.Description,
		Questions:   content.Questions,
		EndTime:     timerValue,
		DatasetName: lastPathElem(mainPaths[0]),
	}

	mainSlots := s.resolveURLs(ctx, mainPaths)
	d.MainDatasets = compact(mainSlots)
	d.DatasetURL = mainSlots[0]

	if s.phaseTwoOpen(ctx, timerValue) {
		finalSlots := s.resolveURLs(ctx, finalPaths)
		d.FinalDatasets = compact(finalSlots)
		d.FinalDatasetURL = finalSlots[0]
	}

	return d, nil
}

// currentRound resolves the current round number, caching it briefly.
func (s *Service) currentRound(ctx context.Context) (int, error) {
	if v, ok := s.Cache.Get(ctx, currentRoundKey); ok {
		return v.(int), nil
	}
	round, err := rounds.CurrentRound(ctx)
	if err != nil {
		return 0, apierr.Unavailable.Apply(err)
	}
	s.Cache.Set(ctx, currentRoundKey, round, s.Cfg.SettingsTTL)
	return round, nil
}

// roundContent resolves the round content for (round, track).
//
// Missing content is a user-visible NotFound, not retried and not cached.
func (s *Service) roundContent(ctx context.Context, round int, track string) (*model.RoundContent, error) {
	key := fmt.Sprintf(roundContentKeyFmt, round, track)
	if v, ok := s.Cache.Get(ctx, key); ok {
		return v.(*model.RoundContent), nil
	}

	content := &model.RoundContent{ID: model.RoundContentID(round, track)}
	switch err := datastore.Get(ctx, content); {
	case err == datastore.ErrNoSuchEntity:
		return nil, apierr.NotFound.Apply(errors.Fmt("no content for round %d track %q", round, track))
	case err != nil:
		return nil, apierr.Unavailable.Apply(errors.Fmt("reading round content: %w", err))
	}

	s.Cache.Set(ctx, key, content, s.Cfg.SettingsTTL)
	return content, nil
}

// roundEndTime resolves the raw timer value, "" meaning no timer.
//
// The empty string is cached too, so an unset timer does not defeat the
// cache.
func (s *Service) roundEndTime(ctx context.Context) (string, error) {
	if v, ok := s.Cache.Get(ctx, roundEndTimeKey); ok {
		return v.(string), nil
	}
	timerValue, err := rounds.RoundEndTime(ctx)
	if err != nil {
		return "", apierr.Unavailable.Apply(err)
	}
	s.Cache.Set(ctx, roundEndTimeKey, timerValue, s.Cfg.SettingsTTL)
	return timerValue, nil
}

// phaseTwoOpen reports whether the Phase 2 datasets should be revealed.
//
// The window opens strictly below PhaseTwoWindow seconds remaining. Without
// a timer, or with an unparseable one, the gate stays shut.
func (s *Service) phaseTwoOpen(ctx context.Context, timerValue string) bool {
	if timerValue == "" {
		return false
	}
	end, err := time.Parse(time.RFC3339, timerValue)
	if err != nil {
		logging.Warningf(ctx, "dashboard: unparseable round_end_time %q: %s", timerValue, err)
		return false
	}
	remaining := end.Sub(clock.Now(ctx)) / time.Second
	if remaining < 0 {
		remaining = 0
	}
	return remaining < s.Cfg.PhaseTwoWindow/time.Second
}

// resolveURLs resolves a signed URL per path, caching each one
// independently.
//
// The returned slice is slot-aligned with paths; a gateway failure for one
// path yields "" for that slot only. It is logged and does not abort the
// rest of the response.
func (s *Service) resolveURLs(ctx context.Context, paths []string) []string {
	urls := make([]string, len(paths))
	for i, path := range paths {
		url, err := s.signedURL(ctx, path)
		if err != nil {
			logging.Warningf(ctx, "dashboard: failed to sign %q: %s", path, err)
			continue
		}
		urls[i] = url
	}
	return urls
}

// compact filters out absent slots.
func compact(slots []string) []string {
	out := make([]string, 0, len(slots))
	for _, url := range slots {
		if url != "" {
			out = append(out, url)
		}
	}
	return out
}

func (s *Service) signedURL(ctx context.Context, path string) (string, error) {
	key := signedURLKeyPrefix + path
	if v, ok := s.Cache.Get(ctx, key); ok {
		return v.(string), nil
	}
	url, err := s.GS.SignedURL(ctx, s.Cfg.DatasetsBucket, path, clock.Now(ctx).Add(s.Cfg.SignedURLLifetime))
	if err != nil {
		return "", err
	}
	s.Cache.Set(ctx, key, url, s.Cfg.SignedURLTTL)
	return url, nil
}

// datasetPath builds a primary dataset path:
// {track}/round{N}/{prefix}_{track}_{slot}.csv
func datasetPath(track string, round int, prefix string, slot int) string {
	return fmt.Sprintf("%s/round%d/%s_%s_%d.csv", track, round, prefix, track, slot)
}

// finalDatasetPath builds a Phase 2 dataset path:
// Phase 2/{pool}/{prefix}_final_{pool}_{slot}.csv
func finalDatasetPath(pool, prefix string, slot int) string {
	return fmt.Sprintf("Phase 2/%s/%s_final_%s_%d.csv", pool, prefix, pool, slot)
}

// trackPool collapses a track identifier to its shared dataset pool: L*
// tracks share the L pool, everything else the S pool.
func trackPool(track string) string {
	if strings.HasPrefix(track, "L") {
		return "L"
	}
	return "S"
}

func lastPathElem(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
