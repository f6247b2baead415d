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

package gs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.chromium.org/luci/common/errors"
)

// FakeObject is an object stored in a Fake.
type FakeObject struct {
	ContentType string
	Data        []byte
}

// Fake is an in-memory Client for tests.
//
// It records uploads and counts signing calls per "bucket/object" path so
// tests can assert on signed URL reuse.
type Fake struct {
	mu sync.Mutex

	// Objects maps "bucket/object" to stored content.
	Objects map[string]FakeObject

	// SignCalls counts SignedURL invocations per "bucket/object".
	SignCalls map[string]int

	// SignErrs marks paths for which SignedURL fails.
	SignErrs map[string]bool

	// UploadErr, if set, makes all uploads fail.
	UploadErr error
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{
		Objects:   map[string]FakeObject{},
		SignCalls: map[string]int{},
		SignErrs:  map[string]bool{},
	}
}

func fakePath(bucket, object string) string {
	return bucket + "/" + object
}

func (f *Fake) SignedURL(ctx context.Context, bucket, object string, expiresAt time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := fakePath(bucket, object)
	f.SignCalls[path]++
	if f.SignErrs[path] {
		return "", errors.Fmt("signing %q: object unavailable", path)
	}
	return fmt.Sprintf("https://signed.example.com/%s?sig=%d", path, f.SignCalls[path]), nil
}

func (f *Fake) Upload(ctx context.Context, bucket, object, contentType string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.UploadErr != nil {
		return f.UploadErr
	}
	blob := make([]byte, len(data))
	copy(blob, data)
	f.Objects[fakePath(bucket, object)] = FakeObject{ContentType: contentType, Data: blob}
	return nil
}

func (f *Fake) PublicURL(bucket, object string) string {
	return fmt.Sprintf("https://storage.example.com/%s/%s", bucket, object)
}

func (f *Fake) Close() error {
	return nil
}
