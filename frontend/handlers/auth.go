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

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/server/router"

	"go.chromium.org/datasprint/internal/apierr"
	"go.chromium.org/datasprint/internal/teamauth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginUser struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	TeamID   string `json:"teamId"`
	Group    string `json:"group"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  loginUser `json:"user"`
}

func handleLogin(c *router.Context) {
	ctx := c.Request.Context()

	var req loginRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		writeErr(ctx, c.Writer, apierr.InvalidArgument.Apply(errors.Fmt("decoding login request: %w", err)))
		return
	}
	if req.Username == "" || req.Password == "" {
		writeErr(ctx, c.Writer, apierr.InvalidArgument.Apply(errors.New("username and password are required")))
		return
	}

	token, id, err := teamauth.Login(ctx, req.Username, req.Password)
	if err != nil {
		writeErr(ctx, c.Writer, err)
		return
	}

	writeJSON(ctx, c.Writer, http.StatusOK, loginResponse{
		Token: token,
		User: loginUser{
			Username: id.Username,
			Role:     id.Role,
			TeamID:   id.TeamID,
			Group:    id.Group,
		},
	})
}
