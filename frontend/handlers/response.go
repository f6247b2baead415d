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
	"context"
	"encoding/json"
	"net/http"

	"go.chromium.org/luci/common/logging"

	"go.chromium.org/datasprint/internal/apierr"
)

// errorBody is the JSON shape of all failure responses.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Errorf(ctx, "failed to write response: %s", err)
	}
}

// writeErr maps the error's category to an HTTP status and writes the JSON
// error body.
func writeErr(ctx context.Context, w http.ResponseWriter, err error) {
	status := apierr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.Errorf(ctx, "request failed: %s", err)
	} else {
		logging.Warningf(ctx, "request rejected: %s", err)
	}
	writeJSON(ctx, w, status, errorBody{Error: err.Error(), Code: apierr.Category(err)})
}

// nullable turns "" into JSON null.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
