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

// Package teamauth mints and validates team session tokens.
//
// A successful login produces an HMAC-signed bearer token carrying the
// caller's claims: username, role, team and group (track). Handlers validate
// the token and stash the resolved identity in the request context; domain
// services read the claims from there and never re-validate them.
package teamauth

import (
	"context"
	"crypto/subtle"
	"time"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/gae/service/datastore"
	"go.chromium.org/luci/server/tokens"

	"go.chromium.org/datasprint/internal/apierr"
	"go.chromium.org/datasprint/internal/model"
)

// sessionToken is the token kind of team session tokens.
var sessionToken = tokens.TokenKind{
	Algo:       tokens.TokenAlgoHmacSHA256,
	Expiration: 24 * time.Hour,
	SecretKey:  "datasprint_session_tokens",
	Version:    1,
}

// Identity is the verified claim set of a logged-in caller.
type Identity struct {
	Username string
	Role     string
	TeamID   string
	// Group is the team's track identifier, e.g. "L1".
	Group string
}

// IsAdmin is true for administrator accounts.
func (id *Identity) IsAdmin() bool {
	return id.Role == model.RoleAdmin
}

// Login checks the credentials and mints a session token.
func Login(ctx context.Context, username, password string) (string, *Identity, error) {
	user := &model.User{Username: username}
	switch err := datastore.Get(ctx, user); {
	case err == datastore.ErrNoSuchEntity:
		return "", nil, apierr.Unauthorized.Apply(errors.New("invalid credentials"))
	case err != nil:
		return "", nil, apierr.Unavailable.Apply(errors.Fmt("reading user %q: %w", username, err))
	}
	if subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
		return "", nil, apierr.Unauthorized.Apply(errors.New("invalid credentials"))
	}

	id := &Identity{
		Username: user.Username,
		Role:     user.Role,
		TeamID:   user.TeamID,
	}
	if user.TeamID != "" {
		team := &model.Team{ID: user.TeamID}
		switch err := datastore.Get(ctx, team); {
		case err == datastore.ErrNoSuchEntity:
			// Account without a team row keeps an empty group.
		case err != nil:
			return "", nil, apierr.Unavailable.Apply(errors.Fmt("reading team %q: %w", user.TeamID, err))
		default:
			id.Group = team.Group
		}
	}

	tok, err := GenerateToken(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return tok, id, nil
}

// GenerateToken mints a session token carrying the identity's claims.
func GenerateToken(ctx context.Context, id *Identity) (string, error) {
	tok, err := sessionToken.Generate(ctx, nil, map[string]string{
		"username": id.Username,
		"role":     id.Role,
		"team_id":  id.TeamID,
		"group":    id.Group,
	}, 0)
	if err != nil {
		return "", errors.Fmt("minting session token: %w", err)
	}
	return tok, nil
}

// Authenticate validates a bearer token and returns the claims it carries.
func Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := sessionToken.Validate(ctx, token, nil)
	if err != nil {
		return nil, apierr.Unauthorized.Apply(errors.Fmt("bad session token: %w", err))
	}
	return &Identity{
		Username: claims["username"],
		Role:     claims["role"],
		TeamID:   claims["team_id"],
		Group:    claims["group"],
	}, nil
}

var identityKey = "datasprint.teamauth Identity"

// Use installs the identity into the context.
func Use(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, &identityKey, id)
}

// Current returns the identity installed into the context, or nil for an
// unauthenticated context.
func Current(ctx context.Context) *Identity {
	id, _ := ctx.Value(&identityKey).(*Identity)
	return id
}
