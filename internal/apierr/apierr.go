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

// Package apierr defines the error categories surfaced by the contest API.
//
// Services tag errors with one of the categories below; the HTTP layer maps
// tags to status codes. Callers always get a stable machine-checkable
// category plus the human-readable message.
package apierr

import (
	"net/http"

	"go.chromium.org/luci/common/errors/errtag"
)

var (
	// NotFound marks errors caused by a missing entity, e.g. no round content
	// configured for the requested round and track.
	NotFound = errtag.Make("the requested entity was not found", true)

	// InvalidArgument marks errors caused by missing or malformed required
	// request fields. Rejected immediately, no retry.
	InvalidArgument = errtag.Make("the request is invalid", true)

	// Unavailable marks errors caused by a failed store or storage gateway
	// call on a critical path.
	Unavailable = errtag.Make("an upstream dependency is unavailable", true)

	// Unauthorized marks errors caused by missing or invalid credentials.
	Unauthorized = errtag.Make("the caller is not authenticated", true)

	// Forbidden marks errors caused by insufficient permissions.
	Forbidden = errtag.Make("the caller is not allowed to do this", true)
)

// HTTPStatus maps an error's category tag to an HTTP status code.
//
// Untagged errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case InvalidArgument.In(err):
		return http.StatusBadRequest
	case Unauthorized.In(err):
		return http.StatusUnauthorized
	case Forbidden.In(err):
		return http.StatusForbidden
	case NotFound.In(err):
		return http.StatusNotFound
	case Unavailable.In(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Category returns the stable category string for an error, for inclusion in
// JSON error bodies.
func Category(err error) string {
	switch {
	case InvalidArgument.In(err):
		return "INVALID_ARGUMENT"
	case Unauthorized.In(err):
		return "UNAUTHENTICATED"
	case Forbidden.In(err):
		return "PERMISSION_DENIED"
	case NotFound.In(err):
		return "NOT_FOUND"
	case Unavailable.In(err):
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}
