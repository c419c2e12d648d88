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

package sync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/folioapp/folio/pkg/assert"
	"github.com/folioapp/folio/pkg/cli/client"
	"github.com/folioapp/folio/pkg/cli/consts"
	"github.com/folioapp/folio/pkg/cli/context"
	"github.com/folioapp/folio/pkg/cli/database"
	"github.com/pkg/errors"
)

// testServer fakes the sync endpoint. Pulls are answered with the canned
// per-kind results and pushes are echoed back re-stamped at stampAt.
type testServer struct {
	pulls   map[string]client.SyncResult
	stampAt int64
	pushed  []client.SyncData
}

func (s *testServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sync" {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")

		if r.Method == "GET" {
			kind := r.URL.Query().Get("type")
			json.NewEncoder(w).Encode(s.pulls[kind])
			return
		}

		var data client.SyncData
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.pushed = append(s.pushed, data)

		var echo client.SyncResult
		for _, b := range data.Books {
			b.UpdatedAt = s.stampAt
			echo.Books = append(echo.Books, b)
		}
		for _, c := range data.Configs {
			c.UpdatedAt = s.stampAt
			echo.Configs = append(echo.Configs, c)
		}
		for _, n := range data.Notes {
			n.UpdatedAt = s.stampAt
			echo.Notes = append(echo.Notes, n)
		}
		json.NewEncoder(w).Encode(echo)
	})
}

func newTestCtx(db *database.DB, serverURL string) context.FolioCtx {
	return context.FolioCtx{
		DB:          db,
		APIEndpoint: serverURL,
		SessionKey:  "someSessionKey",
		UserID:      "user-1",
		Version:     "0.1.0",
	}
}

func getTestWatermark(t *testing.T, db *database.DB, key string) int64 {
	var ret int64
	if err := database.GetSystem(db, key, &ret); err != nil {
		t.Fatal(errors.Wrapf(err, "getting watermark %s", key))
	}

	return ret
}

func TestDo(t *testing.T) {
	// set up
	db := database.InitTestDB(t)
	defer database.CloseTestDB(t, db)

	dirtyBook := database.Book{
		BookHash:  "a1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4",
		Title:     "Changed Locally",
		UpdatedAt: 5000,
		Dirty:     true,
	}
	if err := dirtyBook.Insert(db); err != nil {
		t.Fatal(errors.Wrap(err, "inserting the dirty book"))
	}

	server := &testServer{
		stampAt: 9000,
		pulls: map[string]client.SyncResult{
			client.KindBooks: {
				Books: []client.BookRecord{
					{BookHash: "b1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4", Title: "From Server", UpdatedAt: 7000},
				},
			},
			client.KindNotes: {
				Notes: []client.BookNoteRecord{
					{ID: "note-1", BookHash: "b1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4", Type: "bookmark", UpdatedAt: 6000},
				},
			},
		},
	}
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	ctx := newTestCtx(db, ts.URL)

	// execute
	if err := Do(ctx, false); err != nil {
		t.Fatal(errors.Wrap(err, "syncing"))
	}

	// test
	pulled, err := database.GetBook(db, "b1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4")
	if err != nil {
		t.Fatal(errors.Wrap(err, "getting the pulled book"))
	}
	assert.Equal(t, pulled.Title, "From Server", "pulled book title mismatch")
	assert.Equal(t, pulled.Dirty, false, "pulled book should not be dirty")

	note, err := database.GetBookNote(db, "b1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4", "note-1")
	if err != nil {
		t.Fatal(errors.Wrap(err, "getting the pulled note"))
	}
	assert.Equal(t, note.Type, "bookmark", "pulled note type mismatch")

	assert.Equal(t, len(server.pushed), 1, "push count mismatch")
	assert.Equal(t, len(server.pushed[0].Books), 1, "pushed book count mismatch")
	assert.Equal(t, server.pushed[0].Books[0].BookHash, dirtyBook.BookHash, "pushed book hash mismatch")

	echoed, err := database.GetBook(db, dirtyBook.BookHash)
	if err != nil {
		t.Fatal(errors.Wrap(err, "getting the pushed book"))
	}
	assert.Equal(t, echoed.UpdatedAt, int64(9000), "server timestamp should be applied to the pushed book")
	assert.Equal(t, echoed.Dirty, false, "pushed book should no longer be dirty")

	assert.Equal(t, getTestWatermark(t, db, consts.SystemLastSyncedBooks), int64(9000), "books watermark mismatch")
	assert.Equal(t, getTestWatermark(t, db, consts.SystemLastSyncedConfigs), int64(0), "configs watermark mismatch")
	assert.Equal(t, getTestWatermark(t, db, consts.SystemLastSyncedNotes), int64(6000), "notes watermark mismatch")
}

func TestDoNoChanges(t *testing.T) {
	// set up
	db := database.InitTestDB(t)
	defer database.CloseTestDB(t, db)

	server := &testServer{stampAt: 9000, pulls: map[string]client.SyncResult{}}
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	ctx := newTestCtx(db, ts.URL)

	// execute
	if err := Do(ctx, false); err != nil {
		t.Fatal(errors.Wrap(err, "syncing"))
	}

	// test
	assert.Equal(t, len(server.pushed), 0, "nothing should be pushed")
	assert.Equal(t, getTestWatermark(t, db, consts.SystemLastSyncedBooks), int64(0), "books watermark mismatch")
}

func TestDoFailedPush(t *testing.T) {
	// set up
	db := database.InitTestDB(t)
	defer database.CloseTestDB(t, db)

	dirtyBook := database.Book{
		BookHash:  "a1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4",
		Title:     "Changed Locally",
		UpdatedAt: 5000,
		Dirty:     true,
	}
	if err := dirtyBook.Insert(db); err != nil {
		t.Fatal(errors.Wrap(err, "inserting the dirty book"))
	}

	server := &testServer{
		stampAt: 9000,
		pulls: map[string]client.SyncResult{
			client.KindBooks: {
				Books: []client.BookRecord{
					{BookHash: "b1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4", Title: "From Server", UpdatedAt: 7000},
				},
			},
		},
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			http.Error(w, "transient failure", http.StatusInternalServerError)
			return
		}
		server.handler().ServeHTTP(w, r)
	}))
	defer ts.Close()

	ctx := newTestCtx(db, ts.URL)

	// execute
	err := Do(ctx, false)
	if err == nil {
		t.Fatal("a failed push should fail the session")
	}

	// test. The session rolled back: the pulled book was not kept, the local
	// change stays dirty and the watermark did not advance, so the next run
	// re-pulls and re-pushes the same delta.
	if _, err := database.GetBook(db, "b1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4"); err == nil {
		t.Fatal("the pulled book should not survive a failed session")
	}

	local, err := database.GetBook(db, dirtyBook.BookHash)
	if err != nil {
		t.Fatal(errors.Wrap(err, "getting the local book"))
	}
	assert.Equal(t, local.Dirty, true, "the local change should stay dirty")

	assert.Equal(t, getTestWatermark(t, db, consts.SystemLastSyncedBooks), int64(0), "books watermark mismatch")
}

func TestDoIdempotent(t *testing.T) {
	// set up
	db := database.InitTestDB(t)
	defer database.CloseTestDB(t, db)

	server := &testServer{
		stampAt: 9000,
		pulls: map[string]client.SyncResult{
			client.KindBooks: {
				Books: []client.BookRecord{
					{BookHash: "b1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4", Title: "From Server", UpdatedAt: 7000},
				},
			},
		},
	}
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	ctx := newTestCtx(db, ts.URL)

	// execute. The server keeps answering with the same records, as it would
	// if a sync was interrupted before the watermark advanced.
	if err := Do(ctx, false); err != nil {
		t.Fatal(errors.Wrap(err, "syncing"))
	}
	if err := Do(ctx, false); err != nil {
		t.Fatal(errors.Wrap(err, "syncing again"))
	}

	// test
	books, err := database.ListBooks(db, true)
	if err != nil {
		t.Fatal(errors.Wrap(err, "listing books"))
	}
	assert.Equal(t, len(books), 1, "replaying a pull should not duplicate records")
	assert.Equal(t, books[0].Title, "From Server", "book title mismatch")
	assert.Equal(t, len(server.pushed), 0, "nothing should be pushed")
}
