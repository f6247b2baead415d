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

package rounds

import (
	"context"
	"testing"
	"time"

	"go.chromium.org/luci/common/clock/testclock"
	"go.chromium.org/luci/common/testing/ftt"
	"go.chromium.org/luci/common/testing/truth/assert"
	"go.chromium.org/luci/common/testing/truth/should"
	"go.chromium.org/luci/gae/impl/memory"
	"go.chromium.org/luci/gae/service/datastore"

	"go.chromium.org/datasprint/internal/model"
)

func TestRounds(t *testing.T) {
	t.Parallel()

	ftt.Run("Rounds", t, func(t *ftt.Test) {
		ctx := memory.Use(context.Background())
		datastore.GetTestable(ctx).AutoIndex(true)
		datastore.GetTestable(ctx).Consistent(true)
		ctx, tc := testclock.UseTime(ctx, testclock.TestRecentTimeUTC)

		t.Run("CurrentRound defaults to 1", func(t *ftt.Test) {
			round, err := CurrentRound(ctx)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, round, should.Equal(DefaultRound))
		})

		t.Run("Initiate then CurrentRound", func(t *ftt.Test) {
			assert.Loosely(t, Initiate(ctx, 3), should.BeNil)
			round, err := CurrentRound(ctx)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, round, should.Equal(3))

			t.Run("re-initiating overwrites", func(t *ftt.Test) {
				assert.Loosely(t, Initiate(ctx, 4), should.BeNil)
				round, err := CurrentRound(ctx)
				assert.Loosely(t, err, should.BeNil)
				assert.Loosely(t, round, should.Equal(4))
			})
		})

		t.Run("CurrentRound rejects a malformed value", func(t *ftt.Test) {
			assert.Loosely(t, datastore.Put(ctx, &model.SystemSetting{
				Key:   model.SettingCurrentRound,
				Value: "two",
			}), should.BeNil)
			_, err := CurrentRound(ctx)
			assert.Loosely(t, err, should.NotBeNil)
		})

		t.Run("SetTimer stores now + d as RFC3339 UTC", func(t *ftt.Test) {
			endTime, err := SetTimer(ctx, 2*time.Hour)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, endTime, should.Equal(tc.Now().UTC().Add(2*time.Hour).Format(time.RFC3339)))

			stored, err := RoundEndTime(ctx)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, stored, should.Equal(endTime))
		})

		t.Run("RoundEndTime is empty when unset", func(t *ftt.Test) {
			stored, err := RoundEndTime(ctx)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, stored, should.BeEmpty)
		})

		t.Run("StopTimer clears the timer", func(t *ftt.Test) {
			_, err := SetTimer(ctx, time.Hour)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, StopTimer(ctx), should.BeNil)

			stored, err := RoundEndTime(ctx)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, stored, should.BeEmpty)

			t.Run("stopping again is still a success", func(t *ftt.Test) {
				assert.Loosely(t, StopTimer(ctx), should.BeNil)
			})
		})
	})
}
