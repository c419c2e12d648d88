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

package fetch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/folioapp/folio/pkg/assert"
	"github.com/folioapp/folio/pkg/cli/context"
	"github.com/folioapp/folio/pkg/cli/database"
	"github.com/pkg/errors"
)

func TestGetMissing(t *testing.T) {
	// set up
	db := database.InitTestDB(t)
	defer database.CloseTestDB(t, db)

	booksDir := t.TempDir()
	ctx := context.FolioCtx{
		DB:    db,
		Paths: context.Paths{Books: booksDir},
	}

	present := database.Book{BookHash: "a1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4", Title: "Present", Format: "EPUB", UploadedAt: 1000}
	if err := present.Insert(db); err != nil {
		t.Fatal(errors.Wrap(err, "inserting the present book"))
	}
	if err := os.WriteFile(filepath.Join(booksDir, bookFilename(present)), []byte("book"), 0644); err != nil {
		t.Fatal(errors.Wrap(err, "writing the present file"))
	}

	missing := database.Book{BookHash: "b1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4", Title: "Missing", Format: "EPUB", UploadedAt: 1000}
	if err := missing.Insert(db); err != nil {
		t.Fatal(errors.Wrap(err, "inserting the missing book"))
	}

	neverUploaded := database.Book{BookHash: "c1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4", Title: "Local Only", Format: "EPUB"}
	if err := neverUploaded.Insert(db); err != nil {
		t.Fatal(errors.Wrap(err, "inserting the local-only book"))
	}

	// execute
	books, err := getMissing(ctx)
	if err != nil {
		t.Fatal(errors.Wrap(err, "getting missing books"))
	}

	// test
	assert.Equal(t, len(books), 1, "missing count mismatch")
	assert.Equal(t, books[0].BookHash, missing.BookHash, "missing book mismatch")
}
