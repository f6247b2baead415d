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
	"encoding/json"
	"net/http"
	"time"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/gae/service/datastore"
	"go.chromium.org/luci/server/router"

	"go.chromium.org/datasprint/internal/apierr"
	"go.chromium.org/datasprint/internal/model"
	"go.chromium.org/datasprint/internal/rounds"
	"go.chromium.org/datasprint/internal/scoring"
	"go.chromium.org/datasprint/internal/submission"
)

type scoreBody struct {
	Visualization float64 `json:"visualization"`
	Prediction    float64 `json:"prediction"`
	Feature       float64 `json:"feature"`
	Code          float64 `json:"code"`
	Judges        float64 `json:"judges"`

	Round1 float64 `json:"round1"`
	Round2 float64 `json:"round2"`
	Round3 float64 `json:"round3"`
	Round4 float64 `json:"round4"`

	Total float64 `json:"total"`
}

type teamScoreBody struct {
	TeamID   string     `json:"teamId"`
	TeamName string     `json:"teamName"`
	Group    string     `json:"group"`
	Scores   *scoreBody `json:"scores"`
}

func scoreToBody(s *model.Score) *scoreBody {
	if s == nil {
		return nil
	}
	return &scoreBody{
		Visualization: s.Visualization,
		Prediction:    s.Prediction,
		Feature:       s.Feature,
		Code:          s.Code,
		Judges:        s.Judges,
		Round1:        s.Round1,
		Round2:        s.Round2,
		Round3:        s.Round3,
		Round4:        s.Round4,
		Total:         s.Total,
	}
}

func handleGetScores(c *router.Context) {
	ctx := c.Request.Context()

	scores, err := scoring.List(ctx)
	if err != nil {
		writeErr(ctx, c.Writer, err)
		return
	}

	out := make([]teamScoreBody, len(scores))
	for i, ts := range scores {
		out[i] = teamScoreBody{
			TeamID:   ts.Team.ID,
			TeamName: ts.Team.TeamName,
			Group:    ts.Team.Group,
			Scores:   scoreToBody(ts.Score),
		}
	}
	writeJSON(ctx, c.Writer, http.StatusOK, out)
}

type updateScoreRequest struct {
	TeamID string   `json:"teamId"`
	Field  string   `json:"field"`
	Value  *float64 `json:"value"`
}

func handleUpdateScore(c *router.Context) {
	ctx := c.Request.Context()

	var req updateScoreRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		writeErr(ctx, c.Writer, apierr.InvalidArgument.Apply(errors.Fmt("decoding score update: %w", err)))
		return
	}
	if req.TeamID == "" || req.Field == "" || req.Value == nil {
		writeErr(ctx, c.Writer, apierr.InvalidArgument.Apply(errors.New("teamId, field and value are required")))
		return
	}

	score, err := scoring.SetField(ctx, req.TeamID, req.Field, *req.Value)
	if err != nil {
		writeErr(ctx, c.Writer, err)
		return
	}
	writeJSON(ctx, c.Writer, http.StatusOK, map[string]any{
		"success": true,
		"scores":  scoreToBody(score),
	})
}

// batchScoreEntry is one per-team entry of a bulk scoring request. Pointer
// fields distinguish "absent" from an explicit zero: the presence of any
// round sub-score selects the round-based shape for that team.
type batchScoreEntry struct {
	TeamID string `json:"teamId"`

	Visualization *float64 `json:"viz"`
	Prediction    *float64 `json:"pred"`
	Feature       *float64 `json:"feat"`
	Code          *float64 `json:"code"`
	Judges        *float64 `json:"judge"`

	Round1 *float64 `json:"round1"`
	Round2 *float64 `json:"round2"`
	Round3 *float64 `json:"round3"`
	Round4 *float64 `json:"round4"`
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func (e *batchScoreEntry) toUpdate() scoring.Update {
	u := scoring.Update{TeamID: e.TeamID}
	if e.Round1 != nil || e.Round2 != nil || e.Round3 != nil || e.Round4 != nil {
		u.Rounds = &scoring.RoundScores{
			Round1: deref(e.Round1),
			Round2: deref(e.Round2),
			Round3: deref(e.Round3),
			Round4: deref(e.Round4),
		}
		return u
	}
	if e.Visualization != nil || e.Prediction != nil || e.Feature != nil || e.Code != nil || e.Judges != nil {
		u.Criteria = &scoring.CriteriaScores{
			Visualization: deref(e.Visualization),
			Prediction:    deref(e.Prediction),
			Feature:       deref(e.Feature),
			Code:          deref(e.Code),
			Judges:        deref(e.Judges),
		}
	}
	return u
}

type batchScoresRequest struct {
	Updates []*batchScoreEntry `json:"updates"`
}

func handleBatchScores(c *router.Context) {
	ctx := c.Request.Context()

	var req batchScoresRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		writeErr(ctx, c.Writer, apierr.InvalidArgument.Apply(errors.Fmt("decoding bulk score update: %w", err)))
		return
	}
	if len(req.Updates) == 0 {
		writeErr(ctx, c.Writer, apierr.InvalidArgument.Apply(errors.New("no updates given")))
		return
	}

	updates := make([]scoring.Update, len(req.Updates))
	for i, e := range req.Updates {
		updates[i] = e.toUpdate()
	}

	applied, err := scoring.ApplyBatch(ctx, updates)
	if err != nil {
		writeErr(ctx, c.Writer, err)
		return
	}
	writeJSON(ctx, c.Writer, http.StatusOK, map[string]any{
		"success": true,
		"count":   applied,
	})
}

type submissionBody struct {
	TeamID        string          `json:"teamId"`
	Round         int             `json:"round"`
	ArtifactURL   string          `json:"artifactUrl"`
	NumericAnswer float64         `json:"numericAnswer"`
	Answers       json.RawMessage `json:"answers"`
	SubmittedAt   time.Time       `json:"submittedAt"`
}

func handleListSubmissions(c *router.Context) {
	ctx := c.Request.Context()

	subs, err := submission.List(ctx)
	if err != nil {
		writeErr(ctx, c.Writer, err)
		return
	}

	out := make([]submissionBody, len(subs))
	for i, sub := range subs {
		answers, err := sub.Answers.MarshalJSON()
		if err != nil {
			answers = []byte("{}")
		}
		out[i] = submissionBody{
			TeamID:        sub.TeamID,
			Round:         sub.Round,
			ArtifactURL:   sub.ArtifactURL,
			NumericAnswer: sub.NumericAnswer,
			Answers:       answers,
			SubmittedAt:   sub.SubmittedAt,
		}
	}
	writeJSON(ctx, c.Writer, http.StatusOK, out)
}

type memberBody struct {
	Username string `json:"username"`
	TeamID   string `json:"teamId"`
	TeamName string `json:"teamName"`
	Group    string `json:"group"`
}

func handleListMembers(c *router.Context) {
	ctx := c.Request.Context()

	var users []*model.User
	q := datastore.NewQuery("User").Eq("role", model.RoleParticipant)
	if err := datastore.GetAll(ctx, q, &users); err != nil {
		writeErr(ctx, c.Writer, apierr.Unavailable.Apply(errors.Fmt("listing members: %w", err)))
		return
	}

	teams := map[string]*model.Team{}
	out := make([]memberBody, len(users))
	for i, user := range users {
		out[i] = memberBody{Username: user.Username, TeamID: user.TeamID}
		if user.TeamID == "" {
			continue
		}
		team, ok := teams[user.TeamID]
		if !ok {
			team = &model.Team{ID: user.TeamID}
			switch err := datastore.Get(ctx, team); {
			case err == datastore.ErrNoSuchEntity:
				team = nil
			case err != nil:
				writeErr(ctx, c.Writer, apierr.Unavailable.Apply(errors.Fmt("reading team %q: %w", user.TeamID, err)))
				return
			}
			teams[user.TeamID] = team
		}
		if team != nil {
			out[i].TeamName = team.TeamName
			out[i].Group = team.Group
		}
	}
	writeJSON(ctx, c.Writer, http.StatusOK, out)
}

func handleGetSettings(c *router.Context) {
	ctx := c.Request.Context()

	round, err := rounds.CurrentRound(ctx)
	if err != nil {
		writeErr(ctx, c.Writer, apierr.Unavailable.Apply(err))
		return
	}
	endTime, err := rounds.RoundEndTime(ctx)
	if err != nil {
		writeErr(ctx, c.Writer, apierr.Unavailable.Apply(err))
		return
	}

	writeJSON(ctx, c.Writer, http.StatusOK, map[string]any{
		"currentRound": round,
		"roundEndTime": nullable(endTime),
	})
}

type initiateRoundRequest struct {
	Round *int `json:"round"`
}

func handleInitiateRound(c *router.Context) {
	ctx := c.Request.Context()

	var req initiateRoundRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		writeErr(ctx, c.Writer, apierr.InvalidArgument.Apply(errors.Fmt("decoding round initiation: %w", err)))
		return
	}
	if req.Round == nil || *req.Round < 1 {
		writeErr(ctx, c.Writer, apierr.InvalidArgument.Apply(errors.New("a positive round number is required")))
		return
	}

	if err := rounds.Initiate(ctx, *req.Round); err != nil {
		writeErr(ctx, c.Writer, apierr.Unavailable.Apply(err))
		return
	}
	writeJSON(ctx, c.Writer, http.StatusOK, map[string]any{
		"success": true,
		"round":   *req.Round,
	})
}

type roundTimerRequest struct {
	Action        string  `json:"action"`
	DurationHours float64 `json:"durationHours"`
}

func handleRoundTimer(c *router.Context) {
	ctx := c.Request.Context()

	var req roundTimerRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		writeErr(ctx, c.Writer, apierr.InvalidArgument.Apply(errors.Fmt("decoding timer request: %w", err)))
		return
	}

	switch req.Action {
	case "start":
		if req.DurationHours <= 0 {
			writeErr(ctx, c.Writer, apierr.InvalidArgument.Apply(errors.New("a positive durationHours is required")))
			return
		}
		d := time.Duration(req.DurationHours * float64(time.Hour))
		endTime, err := rounds.SetTimer(ctx, d)
		if err != nil {
			writeErr(ctx, c.Writer, apierr.Unavailable.Apply(err))
			return
		}
		writeJSON(ctx, c.Writer, http.StatusOK, map[string]any{
			"success": true,
			"endTime": endTime,
		})
	case "stop":
		if err := rounds.StopTimer(ctx); err != nil {
			writeErr(ctx, c.Writer, apierr.Unavailable.Apply(err))
			return
		}
		writeJSON(ctx, c.Writer, http.StatusOK, map[string]any{
			"success": true,
		})
	default:
		writeErr(ctx, c.Writer, apierr.InvalidArgument.Apply(errors.Fmt("unknown timer action %q", req.Action)))
	}
}
