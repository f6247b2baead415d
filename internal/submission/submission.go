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

// Package submission accepts uploaded contest artifacts.
//
// The current round is read directly from the store, never from the cache:
// which round a submission lands under must not depend on a stale value.
// Only a missing artifact or a failed upload aborts the operation; malformed
// optional metadata degrades to empty values.
package submission

import (
	"context"
	"fmt"
	"strconv"

	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/gae/service/datastore"

	"go.chromium.org/datasprint/internal/apierr"
	"go.chromium.org/datasprint/internal/gs"
	"go.chromium.org/datasprint/internal/model"
	"go.chromium.org/datasprint/internal/rounds"
)

// Service stores submission artifacts and records.
type Service struct {
	GS gs.Client

	// Bucket is the bucket receiving uploaded artifacts.
	Bucket string
}

// Request is one incoming submission.
type Request struct {
	TeamID      string
	Filename    string
	ContentType string
	Data        []byte

	// RawNumericAnswer is the optional numeric answer form value.
	RawNumericAnswer string

	// RawAnswers is the optional JSON-encoded structured answers payload.
	RawAnswers []byte
}

// Result describes an accepted submission.
type Result struct {
	// URL is the public URL of the stored artifact.
	URL string

	// Round is the round the submission was recorded under.
	Round int
}

// Submit stores the artifact and appends one submission record.
func (s *Service) Submit(ctx context.Context, req *Request) (*Result, error) {
	if len(req.Data) == 0 {
		return nil, apierr.InvalidArgument.Apply(errors.New("no file uploaded"))
	}

	round, err := rounds.CurrentRound(ctx)
	if err != nil {
		return nil, apierr.Unavailable.Apply(err)
	}

	// The timestamp keeps object names collision-free across re-submissions
	// of the same file.
	object := fmt.Sprintf("%s_round%d_%d_%s",
		req.TeamID, round, clock.Now(ctx).UnixMilli(), req.Filename)

	if err := s.GS.Upload(ctx, s.Bucket, object, req.ContentType, req.Data); err != nil {
		return nil, apierr.Unavailable.Apply(errors.Fmt("storing artifact: %w", err))
	}
	url := s.GS.PublicURL(s.Bucket, object)

	answers, err := model.ParseAnswers(req.RawAnswers)
	if err != nil {
		// Best effort: a malformed answers payload never fails a submission.
		logging.Warningf(ctx, "submission: dropping malformed answers from team %q: %s", req.TeamID, err)
		answers = model.AnswersStruct{}
	}

	numericAnswer := 0.0
	if req.RawNumericAnswer != "" {
		numericAnswer, err = strconv.ParseFloat(req.RawNumericAnswer, 64)
		if err != nil {
			logging.Warningf(ctx, "submission: dropping malformed numeric answer %q from team %q", req.RawNumericAnswer, req.TeamID)
			numericAnswer = 0
		}
	}

	sub := &model.Submission{
		TeamID:        req.TeamID,
		Round:         round,
		ArtifactURL:   url,
		NumericAnswer: numericAnswer,
		Answers:       answers,
		SubmittedAt:   clock.Now(ctx).UTC(),
	}
	if err := datastore.Put(ctx, sub); err != nil {
		return nil, apierr.Unavailable.Apply(errors.Fmt("recording submission: %w", err))
	}

	logging.Infof(ctx, "submission: team %q submitted %q for round %d", req.TeamID, req.Filename, round)
	return &Result{URL: url, Round: round}, nil
}

// List returns all submissions, newest first.
func List(ctx context.Context) ([]*model.Submission, error) {
	var subs []*model.Submission
	if err := datastore.GetAll(ctx, model.NewSubmissionsQuery(), &subs); err != nil {
		return nil, errors.Fmt("listing submissions: %w", err)
	}
	return subs, nil
}
