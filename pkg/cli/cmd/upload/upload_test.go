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

package upload

import (
	"testing"

	"github.com/folioapp/folio/pkg/assert"
	"github.com/folioapp/folio/pkg/cli/database"
	"github.com/pkg/errors"
)

func TestGetPending(t *testing.T) {
	// set up
	db := database.InitTestDB(t)
	defer database.CloseTestDB(t, db)

	pending := database.Book{BookHash: "a1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4", Title: "Pending", Format: "EPUB"}
	if err := pending.Insert(db); err != nil {
		t.Fatal(errors.Wrap(err, "inserting the pending book"))
	}

	uploaded := database.Book{BookHash: "b1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4", Title: "Uploaded", Format: "EPUB", UploadedAt: 1000}
	if err := uploaded.Insert(db); err != nil {
		t.Fatal(errors.Wrap(err, "inserting the uploaded book"))
	}

	deleted := database.Book{BookHash: "c1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4", Title: "Deleted", Format: "EPUB", DeletedAt: 1000}
	if err := deleted.Insert(db); err != nil {
		t.Fatal(errors.Wrap(err, "inserting the deleted book"))
	}

	// execute
	books, err := getPending(db)
	if err != nil {
		t.Fatal(errors.Wrap(err, "getting pending books"))
	}

	// test
	assert.Equal(t, len(books), 1, "pending count mismatch")
	assert.Equal(t, books[0].BookHash, pending.BookHash, "pending book mismatch")
}

func TestResolve(t *testing.T) {
	// set up
	db := database.InitTestDB(t)
	defer database.CloseTestDB(t, db)

	b1 := database.Book{BookHash: "a1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4", Title: "One", Format: "EPUB"}
	if err := b1.Insert(db); err != nil {
		t.Fatal(errors.Wrap(err, "inserting a book"))
	}
	b2 := database.Book{BookHash: "a9b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4", Title: "Two", Format: "EPUB"}
	if err := b2.Insert(db); err != nil {
		t.Fatal(errors.Wrap(err, "inserting a book"))
	}

	// a full fingerprint matches exactly
	got, err := resolve(db, b1.BookHash)
	if err != nil {
		t.Fatal(errors.Wrap(err, "resolving a full hash"))
	}
	assert.Equal(t, got.Title, "One", "full hash resolution mismatch")

	// an unambiguous prefix matches
	got, err = resolve(db, "a9b2")
	if err != nil {
		t.Fatal(errors.Wrap(err, "resolving a prefix"))
	}
	assert.Equal(t, got.Title, "Two", "prefix resolution mismatch")

	// an ambiguous prefix is an error
	if _, err = resolve(db, "a"); err == nil {
		t.Fatal("ambiguous prefix should be an error")
	}

	// an unknown prefix is an error
	if _, err = resolve(db, "ffff"); err == nil {
		t.Fatal("unknown prefix should be an error")
	}
}

func TestBookFilename(t *testing.T) {
	b := database.Book{BookHash: "a1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4", Format: "EPUB"}

	assert.Equal(t, bookFilename(b), "a1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4.epub", "filename mismatch")
}
