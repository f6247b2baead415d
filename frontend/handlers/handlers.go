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

// Package handlers exposes the contest API over HTTP.
package handlers

import (
	"net/http"
	"time"

	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/server/router"

	"go.chromium.org/datasprint/internal/apierr"
	"go.chromium.org/datasprint/internal/dashboard"
	"go.chromium.org/datasprint/internal/submission"
	"go.chromium.org/datasprint/internal/teamauth"
)

// slowRequestThreshold is how long a request may take before it gets logged.
const slowRequestThreshold = time.Second

// Server carries the services behind the HTTP surface.
type Server struct {
	Dashboard   *dashboard.Service
	Submissions *submission.Service
}

// InstallHandlers installs the contest API routes.
func (s *Server) InstallHandlers(r *router.Router) {
	base := router.NewMiddlewareChain(logSlowRequests)
	authed := base.Extend(requireTeam)
	admin := authed.Extend(requireAdmin)

	r.GET("/api/health", base, handleHealth)
	r.POST("/api/auth/login", base, handleLogin)

	r.GET("/api/dashboard", authed, s.handleDashboard)
	r.POST("/api/submit", authed, s.handleSubmit)

	r.GET("/api/admin/scores", admin, handleGetScores)
	r.POST("/api/admin/scores", admin, handleUpdateScore)
	r.POST("/api/admin/scores/bulk", admin, handleBatchScores)
	r.GET("/api/admin/submissions", admin, handleListSubmissions)
	r.GET("/api/admin/members", admin, handleListMembers)
	r.GET("/api/admin/settings", admin, handleGetSettings)
	r.POST("/api/admin/round/initiate", admin, handleInitiateRound)
	r.POST("/api/admin/round/timer", admin, handleRoundTimer)
}

func handleHealth(c *router.Context) {
	writeJSON(c.Request.Context(), c.Writer, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "DataSprint backend is running",
	})
}

// logSlowRequests warns about requests that took suspiciously long.
func logSlowRequests(c *router.Context, next router.Handler) {
	ctx := c.Request.Context()
	start := clock.Now(ctx)
	next(c)
	if d := clock.Now(ctx).Sub(start); d > slowRequestThreshold {
		logging.Warningf(ctx, "slow request: %s %s took %s", c.Request.Method, c.Request.URL.Path, d)
	}
}

// requireTeam authenticates the bearer token and installs the resolved
// identity into the request context.
func requireTeam(c *router.Context, next router.Handler) {
	ctx := c.Request.Context()

	hdr := c.Request.Header.Get("Authorization")
	const scheme = "Bearer "
	if len(hdr) <= len(scheme) || hdr[:len(scheme)] != scheme {
		writeErr(ctx, c.Writer, apierr.Unauthorized.Apply(errors.New("missing bearer token")))
		return
	}

	id, err := teamauth.Authenticate(ctx, hdr[len(scheme):])
	if err != nil {
		writeErr(ctx, c.Writer, err)
		return
	}

	c.Request = c.Request.WithContext(teamauth.Use(ctx, id))
	next(c)
}

// requireAdmin rejects callers without the admin role. Must run after
// requireTeam.
func requireAdmin(c *router.Context, next router.Handler) {
	ctx := c.Request.Context()
	if id := teamauth.Current(ctx); id == nil || !id.IsAdmin() {
		writeErr(ctx, c.Writer, apierr.Forbidden.Apply(errors.New("admin access required")))
		return
	}
	next(c)
}
