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

// Command datasprint implements the HTTP server backing the DataSprint
// contest: team dashboards, artifact submission and admin round control.
package main

import (
	"context"
	"flag"
	"time"

	"go.chromium.org/luci/server"
	"go.chromium.org/luci/server/gaeemulation"
	"go.chromium.org/luci/server/module"
	"go.chromium.org/luci/server/secrets"

	"go.chromium.org/datasprint/frontend/handlers"
	"go.chromium.org/datasprint/internal/dashboard"
	"go.chromium.org/datasprint/internal/gs"
	"go.chromium.org/datasprint/internal/submission"
	"go.chromium.org/datasprint/internal/ttlcache"
)

var (
	datasetsBucket = flag.String(
		"datasets-bucket",
		"datasets",
		"GCS bucket holding the pre-populated round datasets.",
	)
	submissionsBucket = flag.String(
		"submissions-bucket",
		"submissions",
		"GCS bucket receiving uploaded submission artifacts.",
	)
	signingAccount = flag.String(
		"signing-account",
		"",
		"Service account email used as GoogleAccessID when signing dataset URLs.",
	)
)

// cacheJanitorInterval is how often expired dashboard cache entries are
// swept.
const cacheJanitorInterval = 5 * time.Minute

func main() {
	modules := []module.Module{
		gaeemulation.NewModuleFromFlags(), // Datastore access.
		secrets.NewModuleFromFlags(),      // Needed for session tokens.
	}

	server.Main(nil, modules, func(srv *server.Server) error {
		gsClient, err := gs.NewClient(srv.Context, *signingAccount)
		if err != nil {
			return err
		}
		srv.RegisterCleanup(func(context.Context) {
			gsClient.Close()
		})

		cache := ttlcache.New()
		srv.RunInBackground("datasprint.cache-janitor", func(ctx context.Context) {
			cache.RunJanitor(ctx, cacheJanitorInterval)
		})

		cfg := dashboard.DefaultConfig()
		cfg.DatasetsBucket = *datasetsBucket

		s := &handlers.Server{
			Dashboard: &dashboard.Service{
				Cache: cache,
				GS:    gsClient,
				Cfg:   cfg,
			},
			Submissions: &submission.Service{
				GS:     gsClient,
				Bucket: *submissionsBucket,
			},
		}
		s.InstallHandlers(srv.Routes)
		return nil
	})
}
