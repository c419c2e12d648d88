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

package storage

import (
	gocontext "context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/folioapp/folio/pkg/assert"
	"github.com/folioapp/folio/pkg/cli/context"
	"github.com/pkg/errors"
)

// newTestServer fakes the grant endpoints and a signed blob endpoint backed
// by an in-memory object map
func newTestServer(t *testing.T, objects map[string][]byte) *httptest.Server {
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/api/storage/upload", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			FileName string `json:"file_name"`
			FileSize int64  `json:"file_size"`
			BookHash string `json:"book_hash"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatal(err)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"upload_url":"%s/blob/user-1/%s","file_key":"user-1/%s"}`, server.URL, payload.FileName, payload.FileName)
	})

	mux.HandleFunc("/api/storage/download", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("fileKey")
		if _, ok := objects[key]; !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"download_url":"%s/blob/%s"}`, server.URL, key)
	})

	mux.HandleFunc("/api/storage/delete", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			FileKey string `json:"file_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatal(err)
		}

		delete(objects, payload.FileKey)
	})

	mux.HandleFunc("/blob/", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path[len("/blob/"):]

		switch r.Method {
		case http.MethodPut:
			b, _ := io.ReadAll(r.Body)
			objects[key] = b
		case http.MethodGet:
			b, ok := objects[key]
			if !ok {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			w.Write(b)
		}
	})

	server = httptest.NewServer(mux)
	return server
}

func newTestStore(server *httptest.Server) Store {
	return NewStore(context.FolioCtx{
		APIEndpoint: server.URL,
		Version:     "test",
		SessionKey:  "someSessionKey",
		UserID:      "user-1",
		HTTPClient:  server.Client(),
	})
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	objects := map[string][]byte{}
	server := newTestServer(t, objects)
	defer server.Close()

	content := []byte("book content")
	localPath := filepath.Join(t.TempDir(), "book.epub")
	if err := os.WriteFile(localPath, content, 0644); err != nil {
		t.Fatal(err)
	}

	store := newTestStore(server)
	if err := store.UploadFile(gocontext.Background(), localPath, "book.epub", "hash1", nil); err != nil {
		t.Fatal(err)
	}

	assert.DeepEqual(t, objects["user-1/book.epub"], content, "stored object mismatch")

	destPath := filepath.Join(t.TempDir(), "fetched.epub")
	if err := store.DownloadFile(gocontext.Background(), "book.epub", destPath, nil); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, got, content, "downloaded content mismatch")
}

func TestDeleteFile(t *testing.T) {
	objects := map[string][]byte{"user-1/book.epub": []byte("content")}
	server := newTestServer(t, objects)
	defer server.Close()

	store := newTestStore(server)
	if err := store.DeleteFile("book.epub"); err != nil {
		t.Fatal(err)
	}

	_, ok := objects["user-1/book.epub"]
	assert.Equal(t, ok, false, "object should be removed")
}

func TestUploadQuotaExceeded(t *testing.T) {
	usage := int64(490 * 1024 * 1024)
	quota := int64(500 * 1024 * 1024)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprintf(w, `{"message":"storage quota exceeded","usage":%d,"quota":%d}`, usage, quota)
	}))
	defer server.Close()

	localPath := filepath.Join(t.TempDir(), "book.epub")
	if err := os.WriteFile(localPath, []byte("content"), 0644); err != nil {
		t.Fatal(err)
	}

	store := newTestStore(server)
	err := store.UploadFile(gocontext.Background(), localPath, "book.epub", "hash1", nil)

	var quotaErr *ErrQuotaExceeded
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	assert.Equal(t, quotaErr.Usage, usage, "usage should come from the rejection body")
	assert.Equal(t, quotaErr.Quota, quota, "quota should come from the rejection body")
}

func TestRequiresSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("the request should not reach the server")
	}))
	defer server.Close()

	store := newTestStore(server)
	store.Ctx.SessionKey = ""

	err := store.UploadFile(gocontext.Background(), "book.epub", "book.epub", "hash1", nil)
	assert.Equal(t, err, ErrNotAuthenticated, "upload error mismatch")

	err = store.DownloadFile(gocontext.Background(), "book.epub", "out.epub", nil)
	assert.Equal(t, err, ErrNotAuthenticated, "download error mismatch")

	err = store.DeleteFile("book.epub")
	assert.Equal(t, err, ErrNotAuthenticated, "delete error mismatch")
}
