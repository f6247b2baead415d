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
	"fmt"
	"io"
	"net/http"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/server/router"

	"go.chromium.org/datasprint/internal/apierr"
	"go.chromium.org/datasprint/internal/submission"
	"go.chromium.org/datasprint/internal/teamauth"
)

// maxArtifactSize bounds the in-memory size of an uploaded artifact.
const maxArtifactSize = 32 << 20

type dashboardResponse struct {
	Round       int      `json:"round"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Questions   []string `json:"questions"`

	MainDatasets  []string `json:"mainDatasets"`
	FinalDatasets []string `json:"finalDatasets"`

	DatasetURL      *string `json:"datasetUrl"`
	DatasetName     string  `json:"datasetName"`
	FinalDatasetURL *string `json:"finalDatasetUrl"`

	TaskDescription string  `json:"taskDescription"`
	EndTime         *string `json:"endTime"`
}

func (s *Server) handleDashboard(c *router.Context) {
	ctx := c.Request.Context()

	id := teamauth.Current(ctx)
	if id.Group == "" {
		writeErr(ctx, c.Writer, apierr.Forbidden.Apply(errors.New("account has no track assignment")))
		return
	}

	d, err := s.Dashboard.Assemble(ctx, id.Group)
	if err != nil {
		writeErr(ctx, c.Writer, err)
		return
	}

	resp := &dashboardResponse{
		Round:           d.Round,
		Title:           d.Title,
		Description:     d.Description,
		Questions:       d.Questions,
		MainDatasets:    d.MainDatasets,
		FinalDatasets:   d.FinalDatasets,
		DatasetURL:      nullable(d.DatasetURL),
		DatasetName:     d.DatasetName,
		FinalDatasetURL: nullable(d.FinalDatasetURL),
		TaskDescription: fmt.Sprintf("Round %d: %s", d.Round, d.Title),
		EndTime:         nullable(d.EndTime),
	}
	if resp.Questions == nil {
		resp.Questions = []string{}
	}
	if resp.MainDatasets == nil {
		resp.MainDatasets = []string{}
	}
	if resp.FinalDatasets == nil {
		resp.FinalDatasets = []string{}
	}
	writeJSON(ctx, c.Writer, http.StatusOK, resp)
}

type submitResponse struct {
	Message string `json:"message"`
	URL     string `json:"url"`
	Round   int    `json:"round"`
}

func (s *Server) handleSubmit(c *router.Context) {
	ctx := c.Request.Context()
	id := teamauth.Current(ctx)

	if err := c.Request.ParseMultipartForm(maxArtifactSize); err != nil {
		writeErr(ctx, c.Writer, apierr.InvalidArgument.Apply(errors.Fmt("parsing multipart form: %w", err)))
		return
	}

	req := &submission.Request{
		TeamID:           id.TeamID,
		RawNumericAnswer: c.Request.FormValue("numericAnswer"),
		RawAnswers:       []byte(c.Request.FormValue("answers")),
	}

	// A missing file part is left for the service to reject, so all "no
	// artifact" submissions fail the same way.
	if file, hdr, err := c.Request.FormFile("file"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxArtifactSize))
		if err != nil {
			writeErr(ctx, c.Writer, apierr.InvalidArgument.Apply(errors.Fmt("reading uploaded file: %w", err)))
			return
		}
		req.Filename = hdr.Filename
		req.ContentType = hdr.Header.Get("Content-Type")
		req.Data = data
	}

	res, err := s.Submissions.Submit(ctx, req)
	if err != nil {
		writeErr(ctx, c.Writer, err)
		return
	}

	writeJSON(ctx, c.Writer, http.StatusOK, submitResponse{
		Message: "Submission received!",
		URL:     res.URL,
		Round:   res.Round,
	})
}
