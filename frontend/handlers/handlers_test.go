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

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.chromium.org/luci/common/clock/testclock"
	"go.chromium.org/luci/common/testing/ftt"
	"go.chromium.org/luci/common/testing/truth/assert"
	"go.chromium.org/luci/common/testing/truth/should"
	"go.chromium.org/luci/gae/impl/memory"
	"go.chromium.org/luci/gae/service/datastore"
	"go.chromium.org/luci/server/router"
	"go.chromium.org/luci/server/secrets"
	"go.chromium.org/luci/server/secrets/testsecrets"

	"go.chromium.org/datasprint/internal/dashboard"
	"go.chromium.org/datasprint/internal/gs"
	"go.chromium.org/datasprint/internal/model"
	"go.chromium.org/datasprint/internal/rounds"
	"go.chromium.org/datasprint/internal/submission"
	"go.chromium.org/datasprint/internal/teamauth"
	"go.chromium.org/datasprint/internal/ttlcache"
)

func TestHandlers(t *testing.T) {
	t.Parallel()

	ftt.Run("With the API installed", t, func(t *ftt.Test) {
		ctx := memory.Use(context.Background())
		datastore.GetTestable(ctx).AutoIndex(true)
		datastore.GetTestable(ctx).Consistent(true)
		ctx, _ = testclock.UseTime(ctx, testclock.TestRecentTimeUTC)
		ctx = secrets.Use(ctx, &testsecrets.Store{})

		assert.Loosely(t, datastore.Put(ctx,
			&model.User{Username: "alice", Password: "hunter2", Role: model.RoleParticipant, TeamID: "t1"},
			&model.User{Username: "root", Password: "toor", Role: model.RoleAdmin},
			&model.Team{ID: "t1", TeamName: "Anglers", Group: "L1"},
			&model.RoundContent{
				ID:            model.RoundContentID(1, "L1"),
				Round:         1,
				Track:         "L1",
				Title:         "Exploration",
				DatasetPrefix: "intro",
			},
		), should.BeNil)

		fake := gs.NewFake()
		s := &Server{
			Dashboard: &dashboard.Service{
				Cache: ttlcache.New(),
				GS:    fake,
				Cfg:   dashboard.DefaultConfig(),
			},
			Submissions: &submission.Service{GS: fake, Bucket: "submissions"},
		}
		r := router.New()
		s.InstallHandlers(r)

		call := func(method, path, token string, body io.Reader, contentType string) (int, map[string]any) {
			req := httptest.NewRequest(method, path, body).WithContext(ctx)
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			if contentType != "" {
				req.Header.Set("Content-Type", contentType)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			resp := map[string]any{}
			if b := rec.Body.Bytes(); len(b) > 0 && b[0] == '{' {
				assert.Loosely(t, json.Unmarshal(b, &resp), should.BeNil)
			}
			return rec.Result().StatusCode, resp
		}

		mintToken := func(id *teamauth.Identity) string {
			tok, err := teamauth.GenerateToken(ctx, id)
			assert.Loosely(t, err, should.BeNil)
			return tok
		}
		aliceToken := mintToken(&teamauth.Identity{Username: "alice", Role: model.RoleParticipant, TeamID: "t1", Group: "L1"})
		adminToken := mintToken(&teamauth.Identity{Username: "root", Role: model.RoleAdmin})

		t.Run("health", func(t *ftt.Test) {
			status, resp := call("GET", "/api/health", "", nil, "")
			assert.Loosely(t, status, should.Equal(http.StatusOK))
			assert.Loosely(t, resp["status"], should.Equal("ok"))
		})

		t.Run("login", func(t *ftt.Test) {
			t.Run("succeeds with valid credentials", func(t *ftt.Test) {
				status, resp := call("POST", "/api/auth/login", "",
					strings.NewReader(`{"username": "alice", "password": "hunter2"}`), "application/json")
				assert.Loosely(t, status, should.Equal(http.StatusOK))
				assert.Loosely(t, resp["token"], should.NotBeEmpty)
				user := resp["user"].(map[string]any)
				assert.Loosely(t, user["teamId"], should.Equal("t1"))
				assert.Loosely(t, user["group"], should.Equal("L1"))
			})

			t.Run("rejects bad credentials", func(t *ftt.Test) {
				status, resp := call("POST", "/api/auth/login", "",
					strings.NewReader(`{"username": "alice", "password": "nope"}`), "application/json")
				assert.Loosely(t, status, should.Equal(http.StatusUnauthorized))
				assert.Loosely(t, resp["code"], should.Equal("UNAUTHENTICATED"))
			})

			t.Run("rejects a missing password", func(t *ftt.Test) {
				status, _ := call("POST", "/api/auth/login", "",
					strings.NewReader(`{"username": "alice"}`), "application/json")
				assert.Loosely(t, status, should.Equal(http.StatusBadRequest))
			})
		})

		t.Run("dashboard", func(t *ftt.Test) {
			t.Run("requires a token", func(t *ftt.Test) {
				status, resp := call("GET", "/api/dashboard", "", nil, "")
				assert.Loosely(t, status, should.Equal(http.StatusUnauthorized))
				assert.Loosely(t, resp["code"], should.Equal("UNAUTHENTICATED"))
			})

			t.Run("rejects a garbage token", func(t *ftt.Test) {
				status, _ := call("GET", "/api/dashboard", "garbage", nil, "")
				assert.Loosely(t, status, should.Equal(http.StatusUnauthorized))
			})

			t.Run("returns the assembled view", func(t *ftt.Test) {
				status, resp := call("GET", "/api/dashboard", aliceToken, nil, "")
				assert.Loosely(t, status, should.Equal(http.StatusOK))
				assert.Loosely(t, resp["round"], should.Equal(1.0))
				assert.Loosely(t, resp["title"], should.Equal("Exploration"))
				assert.Loosely(t, resp["taskDescription"], should.Equal("Round 1: Exploration"))
				assert.Loosely(t, resp["endTime"], should.BeNil)
				assert.Loosely(t, resp["datasetName"], should.Equal("intro_L1_1.csv"))
				assert.Loosely(t, resp["mainDatasets"], should.HaveLength(2))
				assert.Loosely(t, resp["finalDatasets"], should.HaveLength(0))
			})
		})

		t.Run("submit", func(t *ftt.Test) {
			buildForm := func(withFile bool) (io.Reader, string) {
				buf := &bytes.Buffer{}
				w := multipart.NewWriter(buf)
				if withFile {
					fw, err := w.CreateFormFile("file", "analysis.ipynb")
					assert.Loosely(t, err, should.BeNil)
					_, err = fw.Write([]byte("notebook"))
					assert.Loosely(t, err, should.BeNil)
				}
				assert.Loosely(t, w.WriteField("numericAnswer", "3.5"), should.BeNil)
				assert.Loosely(t, w.Close(), should.BeNil)
				return buf, w.FormDataContentType()
			}

			t.Run("accepts an artifact", func(t *ftt.Test) {
				body, contentType := buildForm(true)
				status, resp := call("POST", "/api/submit", aliceToken, body, contentType)
				assert.Loosely(t, status, should.Equal(http.StatusOK))
				assert.Loosely(t, resp["message"], should.Equal("Submission received!"))
				assert.Loosely(t, resp["url"], should.NotBeEmpty)
				assert.Loosely(t, fake.Objects, should.HaveLength(1))
			})

			t.Run("rejects a form without a file", func(t *ftt.Test) {
				body, contentType := buildForm(false)
				status, resp := call("POST", "/api/submit", aliceToken, body, contentType)
				assert.Loosely(t, status, should.Equal(http.StatusBadRequest))
				assert.Loosely(t, resp["code"], should.Equal("INVALID_ARGUMENT"))
				assert.Loosely(t, fake.Objects, should.HaveLength(0))
			})
		})

		t.Run("admin surface", func(t *ftt.Test) {
			t.Run("is closed to participants", func(t *ftt.Test) {
				status, resp := call("GET", "/api/admin/scores", aliceToken, nil, "")
				assert.Loosely(t, status, should.Equal(http.StatusForbidden))
				assert.Loosely(t, resp["code"], should.Equal("PERMISSION_DENIED"))
			})

			t.Run("scores", func(t *ftt.Test) {
				status, _ := call("POST", "/api/admin/scores", adminToken,
					strings.NewReader(`{"teamId": "t1", "field": "judges", "value": 9}`), "application/json")
				assert.Loosely(t, status, should.Equal(http.StatusOK))

				score := &model.Score{TeamID: "t1"}
				assert.Loosely(t, datastore.Get(ctx, score), should.BeNil)
				assert.Loosely(t, score.Judges, should.Equal(9.0))
				assert.Loosely(t, score.Total, should.Equal(9.0))

				t.Run("rejects an incomplete update", func(t *ftt.Test) {
					status, _ := call("POST", "/api/admin/scores", adminToken,
						strings.NewReader(`{"teamId": "t1"}`), "application/json")
					assert.Loosely(t, status, should.Equal(http.StatusBadRequest))
				})
			})

			t.Run("bulk scores select the round shape", func(t *ftt.Test) {
				status, resp := call("POST", "/api/admin/scores/bulk", adminToken,
					strings.NewReader(`{"updates": [{"teamId": "t1", "round1": 10, "round2": 5}]}`), "application/json")
				assert.Loosely(t, status, should.Equal(http.StatusOK))
				assert.Loosely(t, resp["count"], should.Equal(1.0))

				score := &model.Score{TeamID: "t1"}
				assert.Loosely(t, datastore.Get(ctx, score), should.BeNil)
				assert.Loosely(t, score.Total, should.Equal(15.0))
			})

			t.Run("round control", func(t *ftt.Test) {
				status, _ := call("POST", "/api/admin/round/initiate", adminToken,
					strings.NewReader(`{"round": 2}`), "application/json")
				assert.Loosely(t, status, should.Equal(http.StatusOK))

				round, err := rounds.CurrentRound(ctx)
				assert.Loosely(t, err, should.BeNil)
				assert.Loosely(t, round, should.Equal(2))

				t.Run("rejects a missing round number", func(t *ftt.Test) {
					status, _ := call("POST", "/api/admin/round/initiate", adminToken,
						strings.NewReader(`{}`), "application/json")
					assert.Loosely(t, status, should.Equal(http.StatusBadRequest))
				})
			})

			t.Run("timer control", func(t *ftt.Test) {
				status, resp := call("POST", "/api/admin/round/timer", adminToken,
					strings.NewReader(`{"action": "start", "durationHours": 2}`), "application/json")
				assert.Loosely(t, status, should.Equal(http.StatusOK))
				assert.Loosely(t, resp["endTime"], should.NotBeEmpty)

				status, _ = call("POST", "/api/admin/round/timer", adminToken,
					strings.NewReader(`{"action": "stop"}`), "application/json")
				assert.Loosely(t, status, should.Equal(http.StatusOK))

				endTime, err := rounds.RoundEndTime(ctx)
				assert.Loosely(t, err, should.BeNil)
				assert.Loosely(t, endTime, should.BeEmpty)

				t.Run("rejects an unknown action", func(t *ftt.Test) {
					status, _ := call("POST", "/api/admin/round/timer", adminToken,
						strings.NewReader(`{"action": "pause"}`), "application/json")
					assert.Loosely(t, status, should.Equal(http.StatusBadRequest))
				})
			})

			t.Run("settings", func(t *ftt.Test) {
				status, resp := call("GET", "/api/admin/settings", adminToken, nil, "")
				assert.Loosely(t, status, should.Equal(http.StatusOK))
				assert.Loosely(t, resp["currentRound"], should.Equal(1.0))
				assert.Loosely(t, resp["roundEndTime"], should.BeNil)
			})

			t.Run("members", func(t *ftt.Test) {
				req := httptest.NewRequest("GET", "/api/admin/members", nil).WithContext(ctx)
				req.Header.Set("Authorization", "Bearer "+adminToken)
				rec := httptest.NewRecorder()
				r.ServeHTTP(rec, req)
				assert.Loosely(t, rec.Result().StatusCode, should.Equal(http.StatusOK))

				var members []map[string]any
				assert.Loosely(t, json.Unmarshal(rec.Body.Bytes(), &members), should.BeNil)
				assert.Loosely(t, members, should.HaveLength(1))
				assert.Loosely(t, members[0]["username"], should.Equal("alice"))
				assert.Loosely(t, members[0]["teamName"], should.Equal("Anglers"))
			})
		})
	})
}
