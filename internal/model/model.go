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

// Package model contains the datastore entities of the contest state store.
//
// The store is accessed by key lookups and upserts only. All mutation goes
// through the admin services; the contestant serving path is read-mostly and
// sits behind the process cache.
package model

import (
	"fmt"
	"time"

	"go.chromium.org/luci/gae/service/datastore"
)

// Setting keys in the SystemSetting kind.
const (
	SettingCurrentRound = "current_round"
	SettingRoundEndTime = "round_end_time"
)

// User roles.
const (
	RoleAdmin       = "Admin"
	RoleParticipant = "Participant"
)

// SystemSetting is a single key/value pair controlling round state.
//
// Mutated only by admin operations; read by the contestant path through the
// cache.
type SystemSetting struct {
	_kind string `gae:"$kind,SystemSetting"`

	Key   string `gae:"$id"`
	Value string `gae:",noindex"`
}

// RoundContent is the per (round, track) description of a contest round.
//
// Immutable after creation by admin tooling.
type RoundContent struct {
	_kind string `gae:"$kind,RoundContent"`

	// ID is RoundContentID(Round, Track).
	ID string `gae:"$id"`

	Round int    `gae:"round"`
	Track string `gae:"track"`

	Title         string   `gae:"title,noindex"`
	Description   string   `gae:"description,noindex"`
	Questions     []string `gae:"questions,noindex"`
	DatasetPrefix string   `gae:"dataset_prefix,noindex"`
}

// RoundContentID builds the key of a RoundContent entity.
func RoundContentID(round int, track string) string {
	return fmt.Sprintf("%d|%s", round, track)
}

// Team is a contest team.
type Team struct {
	_kind string `gae:"$kind,Team"`

	ID string `gae:"$id"`

	TeamName string `gae:"team_name"`
	// Group is the team's track identifier, e.g. "L1" or "S2".
	Group string `gae:"group"`
}

// User is a login account, keyed by username.
type User struct {
	_kind string `gae:"$kind,User"`

	Username string `gae:"$id"`
	Password string `gae:"password,noindex"`
	Role     string `gae:"role"`
	TeamID   string `gae:"team_id"`
}

// Score is the single per-team score record.
//
// Two scoring shapes coexist on it: criteria-based sub-scores and round-based
// sub-scores. Total is never edited independently: it is recomputed on every
// write as the sum of whichever sub-score set the write populated.
type Score struct {
	_kind string `gae:"$kind,Score"`

	TeamID string `gae:"$id"`

	Visualization float64 `gae:"visualization_score,noindex"`
	Prediction    float64 `gae:"prediction_score,noindex"`
	Feature       float64 `gae:"feature_score,noindex"`
	Code          float64 `gae:"code_score,noindex"`
	Judges        float64 `gae:"judges_score,noindex"`

	Round1 float64 `gae:"round1_score,noindex"`
	Round2 float64 `gae:"round2_score,noindex"`
	Round3 float64 `gae:"round3_score,noindex"`
	Round4 float64 `gae:"round4_score,noindex"`

	Total float64 `gae:"total_score,noindex"`
}

// CriteriaTotal sums the criteria-based sub-scores.
func (s *Score) CriteriaTotal() float64 {
	return s.Visualization + s.Prediction + s.Feature + s.Code + s.Judges
}

// RoundTotal sums the round-based sub-scores.
func (s *Score) RoundTotal() float64 {
	return s.Round1 + s.Round2 + s.Round3 + s.Round4
}

// Submission is an append-only record of one uploaded artifact.
//
// Never updated or deleted by this service.
type Submission struct {
	_kind string `gae:"$kind,Submission"`

	ID int64 `gae:"$id"`

	TeamID        string        `gae:"team_id"`
	Round         int           `gae:"round"`
	ArtifactURL   string        `gae:"artifact_url,noindex"`
	NumericAnswer float64       `gae:"numeric_answer,noindex"`
	Answers       AnswersStruct `gae:"answers"`
	SubmittedAt   time.Time     `gae:"submitted_at"`
}

// NewSubmissionsQuery returns a query for all submissions, newest first.
func NewSubmissionsQuery() *datastore.Query {
	return datastore.NewQuery("Submission").Order("-submitted_at")
}
