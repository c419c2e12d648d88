/* Copyright 2025 Folio Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/folioapp/folio/pkg/assert"
	"github.com/folioapp/folio/pkg/cli/context"
	"github.com/pkg/errors"
)

func newTestCtx(server *httptest.Server) context.FolioCtx {
	return context.FolioCtx{
		APIEndpoint: server.URL,
		Version:     "test",
		SessionKey:  "someSessionKey",
		HTTPClient:  server.Client(),
	}
}

func TestPullChanges(t *testing.T) {
	var gotPath, gotQuery, gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SyncResult{
			Books: []BookRecord{{BookHash: "hash1", Title: "The Time Machine", UpdatedAt: 1700000001000}},
		})
	}))
	defer server.Close()

	ctx := newTestCtx(server)
	got, err := PullChanges(ctx, 1700000000000, KindBooks, "")
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, gotPath, "/api/sync", "path mismatch")
	assert.Equal(t, gotQuery, "since=1700000000000&type=books", "query mismatch")
	assert.Equal(t, gotAuth, "Bearer someSessionKey", "authorization mismatch")
	assert.Equal(t, len(got.Books), 1, "book count mismatch")
	assert.Equal(t, got.Books[0].BookHash, "hash1", "book hash mismatch")
}

func TestPullChangesRequiresSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("the request should not reach the server")
	}))
	defer server.Close()

	ctx := newTestCtx(server)
	ctx.SessionKey = ""

	_, err := PullChanges(ctx, 0, "", "")
	assert.NotEqual(t, err, nil, "expected an error")
}

func TestPushChanges(t *testing.T) {
	var gotData SyncData

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotData); err != nil {
			t.Fatal(err)
		}

		// the server re-stamps updated_at on acceptance
		ret := SyncResult{Books: []BookRecord{gotData.Books[0]}}
		ret.Books[0].UpdatedAt = 1700000002000

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ret)
	}))
	defer server.Close()

	ctx := newTestCtx(server)
	got, err := PushChanges(ctx, SyncData{
		Books: []BookRecord{{BookHash: "hash1", Title: "The Time Machine", UpdatedAt: 1700000001000}},
	})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, gotData.Books[0].BookHash, "hash1", "pushed hash mismatch")
	assert.Equal(t, got.Books[0].UpdatedAt, int64(1700000002000), "server timestamp mismatch")
}

func TestSigninInvalidLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	}))
	defer server.Close()

	ctx := newTestCtx(server)
	ctx.SessionKey = ""

	_, err := Signin(ctx, "alice@example.com", "wrong")
	assert.Equal(t, err, ErrInvalidLogin, "error mismatch")
}

func TestGetUploadGrantQuotaExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "storage quota exceeded", http.StatusForbidden)
	}))
	defer server.Close()

	ctx := newTestCtx(server)
	_, err := GetUploadGrant(ctx, "book.epub", 1024, "hash1")

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	assert.Equal(t, httpErr.IsQuotaExceeded(), true, "quota flag mismatch")
	assert.Equal(t, httpErr.Message, "storage quota exceeded", "message mismatch")
}

func TestHTTPErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "something went wrong", http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx := newTestCtx(server)
	_, err := PullChanges(ctx, 0, "", "")

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	assert.Equal(t, httpErr.StatusCode, http.StatusInternalServerError, "status mismatch")
	assert.Equal(t, httpErr.Message, "something went wrong", "message mismatch")
}
