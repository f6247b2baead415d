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

// Package scoring implements the admin scoring operations.
//
// All writes go straight to the datastore, bypassing the process cache:
// administrative writes must be immediately visible.
//
// A score record carries two coexisting shapes, criteria-based and
// round-based sub-scores. An update addresses exactly one shape, and the
// stored total is always recomputed server-side as the sum of the sub-scores
// of the shape being written. The total is never trusted from the caller.
package scoring

import (
	"context"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/gae/service/datastore"

	"go.chromium.org/datasprint/internal/apierr"
	"go.chromium.org/datasprint/internal/model"
)

// CriteriaScores is the criteria-based scoring shape.
type CriteriaScores struct {
	Visualization float64
	Prediction    float64
	Feature       float64
	Code          float64
	Judges        float64
}

// RoundScores is the round-based scoring shape.
type RoundScores struct {
	Round1 float64
	Round2 float64
	Round3 float64
	Round4 float64
}

// Update is one per-team scoring update.
//
// Exactly one of Criteria or Rounds must be set; when both are present,
// Rounds takes precedence. Absent sub-scores within the chosen shape are
// zeros.
type Update struct {
	TeamID   string
	Criteria *CriteriaScores
	Rounds   *RoundScores
}

// Apply upserts one team's score record.
//
// Creates the record if absent, otherwise merges the chosen shape into it,
// and recomputes the total from that shape.
func Apply(ctx context.Context, u Update) (*model.Score, error) {
	if u.TeamID == "" {
		return nil, apierr.InvalidArgument.Apply(errors.New("missing team ID"))
	}
	if u.Criteria == nil && u.Rounds == nil {
		return nil, apierr.InvalidArgument.Apply(errors.New("no scores to apply"))
	}

	score := &model.Score{TeamID: u.TeamID}
	err := datastore.RunInTransaction(ctx, func(ctx context.Context) error {
		switch err := datastore.Get(ctx, score); {
		case err == datastore.ErrNoSuchEntity:
			*score = model.Score{TeamID: u.TeamID}
		case err != nil:
			return errors.Fmt("reading score of team %q: %w", u.TeamID, err)
		}

		// Rounds takes precedence when both shapes are present.
		if u.Rounds != nil {
			score.Round1 = u.Rounds.Round1
			score.Round2 = u.Rounds.Round2
			score.Round3 = u.Rounds.Round3
			score.Round4 = u.Rounds.Round4
			score.Total = score.RoundTotal()
		} else {
			score.Visualization = u.Criteria.Visualization
			score.Prediction = u.Criteria.Prediction
			score.Feature = u.Criteria.Feature
			score.Code = u.Criteria.Code
			score.Judges = u.Criteria.Judges
			score.Total = score.CriteriaTotal()
		}

		return datastore.Put(ctx, score)
	}, nil)
	if err != nil {
		return nil, errors.Fmt("updating score of team %q: %w", u.TeamID, err)
	}
	return score, nil
}

// ApplyBatch applies each update independently.
//
// There is no cross-record transaction: a failure on one team's upsert does
// not prevent the others from succeeding. Returns the number of successful
// updates and a MultiError with one entry per failed update, or nil if all
// succeeded.
func ApplyBatch(ctx context.Context, updates []Update) (applied int, err error) {
	var merr errors.MultiError
	for _, u := range updates {
		if _, err := Apply(ctx, u); err != nil {
			merr = append(merr, err)
			continue
		}
		applied++
	}
	if len(merr) > 0 {
		return applied, merr
	}
	return applied, nil
}

// SetField sets a single criteria-based sub-score of a team and recomputes
// the total from the resulting criteria set.
//
// The remaining sub-scores keep their current values, defaulting to zero for
// a fresh record.
func SetField(ctx context.Context, teamID, field string, value float64) (*model.Score, error) {
	if teamID == "" {
		return nil, apierr.InvalidArgument.Apply(errors.New("missing team ID"))
	}

	score := &model.Score{TeamID: teamID}
	err := datastore.RunInTransaction(ctx, func(ctx context.Context) error {
		switch err := datastore.Get(ctx, score); {
		case err == datastore.ErrNoSuchEntity:
			*score = model.Score{TeamID: teamID}
		case err != nil:
			return errors.Fmt("reading score of team %q: %w", teamID, err)
		}

		switch field {
		case "visualization":
			score.Visualization = value
		case "prediction":
			score.Prediction = value
		case "feature":
			score.Feature = value
		case "code":
			score.Code = value
		case "judges":
			score.Judges = value
		default:
			return apierr.InvalidArgument.Apply(errors.Fmt("invalid score field %q", field))
		}
		score.Total = score.CriteriaTotal()

		return datastore.Put(ctx, score)
	}, nil)
	if err != nil {
		if apierr.InvalidArgument.In(err) {
			return nil, err
		}
		return nil, errors.Fmt("updating score of team %q: %w", teamID, err)
	}
	return score, nil
}

// TeamScore pairs a team with its score record, if any.
type TeamScore struct {
	Team  model.Team
	Score *model.Score
}

// List returns all teams with their score records, ordered by team name.
//
// Teams without a score record yet have a nil Score.
func List(ctx context.Context) ([]TeamScore, error) {
	var teams []*model.Team
	if err := datastore.GetAll(ctx, datastore.NewQuery("Team").Order("team_name"), &teams); err != nil {
		return nil, errors.Fmt("listing teams: %w", err)
	}

	out := make([]TeamScore, len(teams))
	for i, team := range teams {
		out[i].Team = *team
		score := &model.Score{TeamID: team.ID}
		switch err := datastore.Get(ctx, score); {
		case err == datastore.ErrNoSuchEntity:
			// Not scored yet.
		case err != nil:
			return nil, errors.Fmt("reading score of team %q: %w", team.ID, err)
		default:
			out[i].Score = score
		}
	}
	return out, nil
}
