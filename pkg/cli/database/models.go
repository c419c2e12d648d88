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

package database

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Timestamps are int64 milliseconds since the epoch. A zero DeletedAt,
// UploadedAt or DownloadedAt means the timestamp is not set.

// Book is a library book record, identified by its content fingerprint
type Book struct {
	BookHash      string   `json:"book_hash"`
	Format        string   `json:"format"`
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	GroupID       string   `json:"group_id"`
	GroupName     string   `json:"group_name"`
	Tags          []string `json:"tags"`
	ProgressCur   int64    `json:"progress_cur"`
	ProgressTotal int64    `json:"progress_total"`
	CreatedAt     int64    `json:"created_at"`
	UpdatedAt     int64    `json:"updated_at"`
	DeletedAt     int64    `json:"deleted_at"`
	UploadedAt    int64    `json:"uploaded_at"`
	DownloadedAt  int64    `json:"downloaded_at"`
	Dirty         bool     `json:"dirty"`
}

// BookConfig is the per-book reading configuration, one-to-one with Book.
// SearchConfig and ViewSettings hold delta-encoded JSON (see the serializer package).
type BookConfig struct {
	BookHash     string `json:"book_hash"`
	Location     string `json:"location"`
	Progress     string `json:"progress"`
	SearchConfig string `json:"search_config"`
	ViewSettings string `json:"view_settings"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
	DeletedAt    int64  `json:"deleted_at"`
	Dirty        bool   `json:"dirty"`
}

// BookNote is a bookmark or annotation within a book
type BookNote struct {
	ID        string `json:"id"`
	BookHash  string `json:"book_hash"`
	Type      string `json:"type"`
	CFI       string `json:"cfi"`
	Text      string `json:"text"`
	Style     string `json:"style"`
	Color     string `json:"color"`
	Note      string `json:"note"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	DeletedAt int64  `json:"deleted_at"`
	Dirty     bool   `json:"dirty"`
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}

	b, err := json.Marshal(tags)
	if err != nil {
		return "", errors.Wrap(err, "marshalling tags")
	}

	return string(b), nil
}

func decodeTags(s string) ([]string, error) {
	if s == "" {
		return []string{}, nil
	}

	var ret []string
	if err := json.Unmarshal([]byte(s), &ret); err != nil {
		return nil, errors.Wrap(err, "unmarshalling tags")
	}

	return ret, nil
}

// Insert inserts a new book
func (b Book) Insert(db *DB) error {
	tags, err := encodeTags(b.Tags)
	if err != nil {
		return err
	}

	_, err = db.Exec(`INSERT INTO books
		(book_hash, format, title, author, group_id, group_name, tags, progress_cur, progress_total,
		created_at, updated_at, deleted_at, uploaded_at, downloaded_at, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.BookHash, b.Format, b.Title, b.Author, b.GroupID, b.GroupName, tags, b.ProgressCur, b.ProgressTotal,
		b.CreatedAt, b.UpdatedAt, b.DeletedAt, b.UploadedAt, b.DownloadedAt, b.Dirty)
	if err != nil {
		return errors.Wrapf(err, "inserting book %s", b.BookHash)
	}

	return nil
}

// Update updates the book with the given data
func (b Book) Update(db *DB) error {
	tags, err := encodeTags(b.Tags)
	if err != nil {
		return err
	}

	_, err = db.Exec(`UPDATE books SET format = ?, title = ?, author = ?, group_id = ?, group_name = ?,
		tags = ?, progress_cur = ?, progress_total = ?, created_at = ?, updated_at = ?, deleted_at = ?,
		uploaded_at = ?, downloaded_at = ?, dirty = ? WHERE book_hash = ?`,
		b.Format, b.Title, b.Author, b.GroupID, b.GroupName, tags, b.ProgressCur, b.ProgressTotal,
		b.CreatedAt, b.UpdatedAt, b.DeletedAt, b.UploadedAt, b.DownloadedAt, b.Dirty, b.BookHash)
	if err != nil {
		return errors.Wrapf(err, "updating book %s", b.BookHash)
	}

	return nil
}

// MarkDeleted sets the tombstone on the book and marks it dirty so the
// deletion propagates on the next push
func (b Book) MarkDeleted(db *DB, at int64) error {
	_, err := db.Exec("UPDATE books SET deleted_at = ?, updated_at = ?, dirty = ? WHERE book_hash = ?",
		at, at, true, b.BookHash)
	if err != nil {
		return errors.Wrapf(err, "marking book %s deleted", b.BookHash)
	}

	return nil
}

// Expunge hard-deletes the book row. Used only for records that were never
// pushed; synced records keep their tombstones.
func (b Book) Expunge(db *DB) error {
	_, err := db.Exec("DELETE FROM books WHERE book_hash = ?", b.BookHash)
	if err != nil {
		return errors.Wrap(err, "expunging a book locally")
	}

	return nil
}

// GetBook finds a book by its hash. Returns sql.ErrNoRows when absent.
func GetBook(db *DB, bookHash string) (Book, error) {
	var b Book
	var tags string

	err := db.QueryRow(`SELECT book_hash, format, title, author, group_id, group_name, tags,
		progress_cur, progress_total, created_at, updated_at, deleted_at, uploaded_at, downloaded_at, dirty
		FROM books WHERE book_hash = ?`, bookHash).
		Scan(&b.BookHash, &b.Format, &b.Title, &b.Author, &b.GroupID, &b.GroupName, &tags,
			&b.ProgressCur, &b.ProgressTotal, &b.CreatedAt, &b.UpdatedAt, &b.DeletedAt, &b.UploadedAt, &b.DownloadedAt, &b.Dirty)
	if err != nil {
		return b, err
	}

	b.Tags, err = decodeTags(tags)
	if err != nil {
		return b, errors.Wrapf(err, "decoding tags of book %s", bookHash)
	}

	return b, nil
}

// ListBooks returns books, ordered by title. Tombstoned books are excluded
// unless includeDeleted is set.
func ListBooks(db *DB, includeDeleted bool) ([]Book, error) {
	query := `SELECT book_hash, format, title, author, group_id, group_name, tags,
		progress_cur, progress_total, created_at, updated_at, deleted_at, uploaded_at, downloaded_at, dirty
		FROM books`
	if !includeDeleted {
		query += " WHERE deleted_at = 0"
	}
	query += " ORDER BY title"

	rows, err := db.Query(query)
	if err != nil {
		return nil, errors.Wrap(err, "querying books")
	}
	defer rows.Close()

	var ret []Book
	for rows.Next() {
		var b Book
		var tags string
		if err := rows.Scan(&b.BookHash, &b.Format, &b.Title, &b.Author, &b.GroupID, &b.GroupName, &tags,
			&b.ProgressCur, &b.ProgressTotal, &b.CreatedAt, &b.UpdatedAt, &b.DeletedAt, &b.UploadedAt, &b.DownloadedAt, &b.Dirty); err != nil {
			return nil, errors.Wrap(err, "scanning a book row")
		}

		b.Tags, err = decodeTags(tags)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding tags of book %s", b.BookHash)
		}

		ret = append(ret, b)
	}

	return ret, nil
}

// Insert inserts a new book config
func (c BookConfig) Insert(db *DB) error {
	_, err := db.Exec(`INSERT INTO book_configs
		(book_hash, location, progress, search_config, view_settings, created_at, updated_at, deleted_at, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.BookHash, c.Location, c.Progress, c.SearchConfig, c.ViewSettings, c.CreatedAt, c.UpdatedAt, c.DeletedAt, c.Dirty)
	if err != nil {
		return errors.Wrapf(err, "inserting config for book %s", c.BookHash)
	}

	return nil
}

// Update updates the book config with the given data
func (c BookConfig) Update(db *DB) error {
	_, err := db.Exec(`UPDATE book_configs SET location = ?, progress = ?, search_config = ?,
		view_settings = ?, created_at = ?, updated_at = ?, deleted_at = ?, dirty = ? WHERE book_hash = ?`,
		c.Location, c.Progress, c.SearchConfig, c.ViewSettings, c.CreatedAt, c.UpdatedAt, c.DeletedAt, c.Dirty, c.BookHash)
	if err != nil {
		return errors.Wrapf(err, "updating config for book %s", c.BookHash)
	}

	return nil
}

// GetBookConfig finds the config for a book. Returns sql.ErrNoRows when absent.
func GetBookConfig(db *DB, bookHash string) (BookConfig, error) {
	var c BookConfig

	err := db.QueryRow(`SELECT book_hash, location, progress, search_config, view_settings,
		created_at, updated_at, deleted_at, dirty FROM book_configs WHERE book_hash = ?`, bookHash).
		Scan(&c.BookHash, &c.Location, &c.Progress, &c.SearchConfig, &c.ViewSettings,
			&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt, &c.Dirty)

	return c, err
}

// Insert inserts a new book note
func (n BookNote) Insert(db *DB) error {
	_, err := db.Exec(`INSERT INTO book_notes
		(id, book_hash, type, cfi, text, style, color, note, created_at, updated_at, deleted_at, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.BookHash, n.Type, n.CFI, n.Text, n.Style, n.Color, n.Note, n.CreatedAt, n.UpdatedAt, n.DeletedAt, n.Dirty)
	if err != nil {
		return errors.Wrapf(err, "inserting note %s for book %s", n.ID, n.BookHash)
	}

	return nil
}

// Update updates the book note with the given data
func (n BookNote) Update(db *DB) error {
	_, err := db.Exec(`UPDATE book_notes SET type = ?, cfi = ?, text = ?, style = ?, color = ?, note = ?,
		created_at = ?, updated_at = ?, deleted_at = ?, dirty = ? WHERE book_hash = ? AND id = ?`,
		n.Type, n.CFI, n.Text, n.Style, n.Color, n.Note, n.CreatedAt, n.UpdatedAt, n.DeletedAt, n.Dirty, n.BookHash, n.ID)
	if err != nil {
		return errors.Wrapf(err, "updating note %s for book %s", n.ID, n.BookHash)
	}

	return nil
}

// MarkDeleted sets the tombstone on the note and marks it dirty
func (n BookNote) MarkDeleted(db *DB, at int64) error {
	_, err := db.Exec("UPDATE book_notes SET deleted_at = ?, updated_at = ?, dirty = ? WHERE book_hash = ? AND id = ?",
		at, at, true, n.BookHash, n.ID)
	if err != nil {
		return errors.Wrapf(err, "marking note %s deleted", n.ID)
	}

	return nil
}

// GetBookNote finds a note by its book hash and id. Returns sql.ErrNoRows when absent.
func GetBookNote(db *DB, bookHash, id string) (BookNote, error) {
	var n BookNote

	err := db.QueryRow(`SELECT id, book_hash, type, cfi, text, style, color, note,
		created_at, updated_at, deleted_at, dirty FROM book_notes WHERE book_hash = ? AND id = ?`, bookHash, id).
		Scan(&n.ID, &n.BookHash, &n.Type, &n.CFI, &n.Text, &n.Style, &n.Color, &n.Note,
			&n.CreatedAt, &n.UpdatedAt, &n.DeletedAt, &n.Dirty)

	return n, err
}
