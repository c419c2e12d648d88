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

package remove

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/folioapp/folio/pkg/assert"
	"github.com/folioapp/folio/pkg/cli/context"
	"github.com/folioapp/folio/pkg/cli/database"
	"github.com/folioapp/folio/pkg/clock"
	"github.com/pkg/errors"
)

func TestDo(t *testing.T) {
	// set up
	db := database.InitTestDB(t)
	defer database.CloseTestDB(t, db)

	book := database.Book{
		BookHash:  "a1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4",
		Format:    "EPUB",
		Title:     "The Trial",
		UpdatedAt: 2000,
	}
	if err := book.Insert(db); err != nil {
		t.Fatal(errors.Wrap(err, "inserting the book"))
	}

	config := database.BookConfig{
		BookHash:  book.BookHash,
		Location:  "epubcfi(/6/4!/4/2/1:0)",
		Progress:  "[12,300]",
		UpdatedAt: 2000,
	}
	if err := config.Insert(db); err != nil {
		t.Fatal(errors.Wrap(err, "inserting the config"))
	}

	note := database.BookNote{
		ID:        "note-1",
		BookHash:  book.BookHash,
		Type:      "annotation",
		CFI:       "epubcfi(/6/4!/4/2/1:0)",
		Note:      "a thought",
		UpdatedAt: 2000,
	}
	if err := note.Insert(db); err != nil {
		t.Fatal(errors.Wrap(err, "inserting the note"))
	}

	booksDir := t.TempDir()
	bookFile := filepath.Join(booksDir, "a1b2c3d4a1b2c3d4a1b2c3d4a1b2c3d4.epub")
	if err := os.WriteFile(bookFile, []byte("content"), 0644); err != nil {
		t.Fatal(errors.Wrap(err, "writing the book file"))
	}

	c := clock.NewMock()
	ctx := context.FolioCtx{
		DB:    db,
		Clock: c,
		Paths: context.Paths{Books: booksDir},
	}

	// execute
	if err := Do(ctx, book); err != nil {
		t.Fatal(errors.Wrap(err, "removing"))
	}

	// test
	nowMs := c.Now().UnixMilli()

	b, err := database.GetBook(db, book.BookHash)
	if err != nil {
		t.Fatal(errors.Wrap(err, "getting the book"))
	}
	assert.Equal(t, b.DeletedAt, nowMs, "book should be tombstoned")
	assert.Equal(t, b.Dirty, true, "tombstone should be queued for the push")

	// the config and notes are not cascaded; orphans are tolerated
	cfg, err := database.GetBookConfig(db, book.BookHash)
	if err != nil {
		t.Fatal(errors.Wrap(err, "getting the config"))
	}
	assert.Equal(t, cfg.DeletedAt, int64(0), "config should be left alone")
	assert.Equal(t, cfg.Dirty, false, "config should not be queued for the push")

	n, err := database.GetBookNote(db, book.BookHash, note.ID)
	if err != nil {
		t.Fatal(errors.Wrap(err, "getting the note"))
	}
	assert.Equal(t, n.DeletedAt, int64(0), "note should be left alone")

	if _, err := os.Stat(bookFile); !os.IsNotExist(err) {
		t.Fatal("book file should be removed from the library")
	}
}
