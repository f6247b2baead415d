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

// Package rounds reads and mutates the round control settings.
//
// Reads here go straight to the datastore. Admin writes must be immediately
// visible, so nothing in this package touches the process cache; contestant
// paths that can tolerate staleness cache these values themselves.
package rounds

import (
	"context"
	"strconv"
	"time"

	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/gae/service/datastore"

	"go.chromium.org/datasprint/internal/model"
)

// DefaultRound is the round assumed when current_round was never set.
const DefaultRound = 1

// CurrentRound returns the current round number.
func CurrentRound(ctx context.Context) (int, error) {
	s := &model.SystemSetting{Key: model.SettingCurrentRound}
	switch err := datastore.Get(ctx, s); {
	case err == datastore.ErrNoSuchEntity:
		return DefaultRound, nil
	case err != nil:
		return 0, errors.Fmt("reading current_round: %w", err)
	}
	round, err := strconv.Atoi(s.Value)
	if err != nil {
		return 0, errors.Fmt("malformed current_round value %q: %w", s.Value, err)
	}
	return round, nil
}

// RoundEndTime returns the raw round_end_time setting, or "" if the timer is
// not set.
func RoundEndTime(ctx context.Context) (string, error) {
	s := &model.SystemSetting{Key: model.SettingRoundEndTime}
	switch err := datastore.Get(ctx, s); {
	case err == datastore.ErrNoSuchEntity:
		return "", nil
	case err != nil:
		return "", errors.Fmt("reading round_end_time: %w", err)
	}
	return s.Value, nil
}

// Initiate makes the given round the current one.
//
// Upsert semantics: creates the setting row if it does not exist yet.
func Initiate(ctx context.Context, round int) error {
	err := datastore.Put(ctx, &model.SystemSetting{
		Key:   model.SettingCurrentRound,
		Value: strconv.Itoa(round),
	})
	if err != nil {
		return errors.Fmt("initiating round %d: %w", round, err)
	}
	logging.Infof(ctx, "rounds: round %d initiated", round)
	return nil
}

// SetTimer sets the round end time to now + d and returns the stored value.
func SetTimer(ctx context.Context, d time.Duration) (string, error) {
	endTime := clock.Now(ctx).UTC().Add(d).Format(time.RFC3339)
	err := datastore.Put(ctx, &model.SystemSetting{
		Key:   model.SettingRoundEndTime,
		Value: endTime,
	})
	if err != nil {
		return "", errors.Fmt("setting round timer: %w", err)
	}
	logging.Infof(ctx, "rounds: timer set, round ends at %s", endTime)
	return endTime, nil
}

// StopTimer clears the round end time.
//
// Stopping an already-stopped timer is a success.
func StopTimer(ctx context.Context) error {
	err := datastore.Delete(ctx, &model.SystemSetting{Key: model.SettingRoundEndTime})
	switch {
	case err == datastore.ErrNoSuchEntity:
		return nil
	case err != nil:
		return errors.Fmt("stopping round timer: %w", err)
	}
	return nil
}
