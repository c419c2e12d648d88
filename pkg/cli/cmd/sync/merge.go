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
	"database/sql"

	"github.com/folioapp/folio/pkg/cli/client"
	"github.com/folioapp/folio/pkg/cli/database"
	"github.com/folioapp/folio/pkg/cli/log"
	"github.com/pkg/errors"
)

// Merge rules. Records carry millisecond timestamps and the server re-stamps
// updated_at whenever it accepts a change, so timestamps are comparable
// across client and server. An incoming record wins over the local copy when
// its updated_at is strictly greater; on a tie a dirty local record is kept,
// because the pending edit will win on push under the server's incoming-wins
// rule, while a clean local record takes the incoming copy so that replaying
// a pull is idempotent. A local record that is not dirty must never be newer
// than what the server sent; when it is, the record is skipped and the
// anomaly is logged rather than guessed at.

func tsValue(p *int64) int64 {
	if p == nil {
		return 0
	}

	return *p
}

func tsPtr(v int64) *int64 {
	if v == 0 {
		return nil
	}

	return &v
}

func toLocalBook(r client.BookRecord) database.Book {
	return database.Book{
		BookHash:      r.BookHash,
		Format:        r.Format,
		Title:         r.Title,
		Author:        r.Author,
		GroupID:       r.GroupID,
		GroupName:     r.GroupName,
		Tags:          r.Tags,
		ProgressCur:   r.ProgressCur,
		ProgressTotal: r.ProgressTotal,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		DeletedAt:     tsValue(r.DeletedAt),
		UploadedAt:    tsValue(r.UploadedAt),
		DownloadedAt:  tsValue(r.DownloadedAt),
	}
}

func toWireBook(b database.Book) client.BookRecord {
	return client.BookRecord{
		BookHash:      b.BookHash,
		Format:        b.Format,
		Title:         b.Title,
		Author:        b.Author,
		GroupID:       b.GroupID,
		GroupName:     b.GroupName,
		Tags:          b.Tags,
		ProgressCur:   b.ProgressCur,
		ProgressTotal: b.ProgressTotal,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
		DeletedAt:     tsPtr(b.DeletedAt),
		UploadedAt:    tsPtr(b.UploadedAt),
		DownloadedAt:  tsPtr(b.DownloadedAt),
	}
}

func toLocalConfig(r client.BookConfigRecord) database.BookConfig {
	return database.BookConfig{
		BookHash:     r.BookHash,
		Location:     r.Location,
		Progress:     r.Progress,
		SearchConfig: r.SearchConfig,
		ViewSettings: r.ViewSettings,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		DeletedAt:    tsValue(r.DeletedAt),
	}
}

func toWireConfig(c database.BookConfig) client.BookConfigRecord {
	return client.BookConfigRecord{
		BookHash:     c.BookHash,
		Location:     c.Location,
		Progress:     c.Progress,
		SearchConfig: c.SearchConfig,
		ViewSettings: c.ViewSettings,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		DeletedAt:    tsPtr(c.DeletedAt),
	}
}

func toLocalNote(r client.BookNoteRecord) database.BookNote {
	return database.BookNote{
		ID:        r.ID,
		BookHash:  r.BookHash,
		Type:      r.Type,
		CFI:       r.CFI,
		Text:      r.Text,
		Style:     r.Style,
		Color:     r.Color,
		Note:      r.Note,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		DeletedAt: tsValue(r.DeletedAt),
	}
}

func toWireNote(n database.BookNote) client.BookNoteRecord {
	return client.BookNoteRecord{
		ID:        n.ID,
		BookHash:  n.BookHash,
		Type:      n.Type,
		CFI:       n.CFI,
		Text:      n.Text,
		Style:     n.Style,
		Color:     n.Color,
		Note:      n.Note,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		DeletedAt: tsPtr(n.DeletedAt),
	}
}

// mergeBook merges one incoming book into the local database
func mergeBook(tx *database.DB, incoming client.BookRecord) error {
	local, err := database.GetBook(tx, incoming.BookHash)
	if err == sql.ErrNoRows {
		return toLocalBook(incoming).Insert(tx)
	} else if err != nil {
		return errors.Wrap(err, "finding the local book")
	}

	if incoming.UpdatedAt < local.UpdatedAt {
		if !local.Dirty {
			log.Errorf("book %s is clean but newer than the server copy. skipping.\n", local.BookHash)
		}

		// local wins; a dirty record will be pushed
		return nil
	}
	if incoming.UpdatedAt == local.UpdatedAt && local.Dirty {
		// the pending edit wins on push
		return nil
	}

	merged := toLocalBook(incoming)
	// local download state is not the server's concern
	if merged.DownloadedAt == 0 {
		merged.DownloadedAt = local.DownloadedAt
	}

	return merged.Update(tx)
}

// mergeConfig merges one incoming book config into the local database
func mergeConfig(tx *database.DB, incoming client.BookConfigRecord) error {
	local, err := database.GetBookConfig(tx, incoming.BookHash)
	if err == sql.ErrNoRows {
		return toLocalConfig(incoming).Insert(tx)
	} else if err != nil {
		return errors.Wrap(err, "finding the local book config")
	}

	if incoming.UpdatedAt < local.UpdatedAt {
		if !local.Dirty {
			log.Errorf("config for book %s is clean but newer than the server copy. skipping.\n", local.BookHash)
		}

		return nil
	}
	if incoming.UpdatedAt == local.UpdatedAt && local.Dirty {
		return nil
	}

	return toLocalConfig(incoming).Update(tx)
}

// mergeNote merges one incoming book note into the local database
func mergeNote(tx *database.DB, incoming client.BookNoteRecord) error {
	local, err := database.GetBookNote(tx, incoming.BookHash, incoming.ID)
	if err == sql.ErrNoRows {
		return toLocalNote(incoming).Insert(tx)
	} else if err != nil {
		return errors.Wrap(err, "finding the local note")
	}

	if incoming.UpdatedAt < local.UpdatedAt {
		if !local.Dirty {
			log.Errorf("note %s is clean but newer than the server copy. skipping.\n", local.ID)
		}

		return nil
	}
	if incoming.UpdatedAt == local.UpdatedAt && local.Dirty {
		return nil
	}

	return toLocalNote(incoming).Update(tx)
}

// mergeAll merges a pulled result set into the local database and returns the
// highest server timestamp seen
func mergeAll(tx *database.DB, result client.SyncResult) (int64, error) {
	var maxTS int64

	for _, b := range result.Books {
		if err := mergeBook(tx, b); err != nil {
			return 0, errors.Wrapf(err, "merging book %s", b.BookHash)
		}
		if b.UpdatedAt > maxTS {
			maxTS = b.UpdatedAt
		}
	}

	for _, c := range result.Configs {
		if err := mergeConfig(tx, c); err != nil {
			return 0, errors.Wrapf(err, "merging config for book %s", c.BookHash)
		}
		if c.UpdatedAt > maxTS {
			maxTS = c.UpdatedAt
		}
	}

	for _, n := range result.Notes {
		if err := mergeNote(tx, n); err != nil {
			return 0, errors.Wrapf(err, "merging note %s", n.ID)
		}
		if n.UpdatedAt > maxTS {
			maxTS = n.UpdatedAt
		}
	}

	return maxTS, nil
}

// getDirty collects the local records with changes not yet accepted by the
// server
func getDirty(tx *database.DB) (client.SyncData, error) {
	var ret client.SyncData

	books, err := getDirtyBooks(tx)
	if err != nil {
		return ret, errors.Wrap(err, "collecting dirty books")
	}
	ret.Books = books

	configs, err := getDirtyConfigs(tx)
	if err != nil {
		return ret, errors.Wrap(err, "collecting dirty configs")
	}
	ret.Configs = configs

	notes, err := getDirtyNotes(tx)
	if err != nil {
		return ret, errors.Wrap(err, "collecting dirty notes")
	}
	ret.Notes = notes

	return ret, nil
}

func getDirtyBooks(tx *database.DB) ([]client.BookRecord, error) {
	rows, err := tx.Query("SELECT book_hash FROM books WHERE dirty = ?", true)
	if err != nil {
		return nil, errors.Wrap(err, "querying dirty books")
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, errors.Wrap(err, "scanning a row")
		}
		hashes = append(hashes, hash)
	}

	var ret []client.BookRecord
	for _, hash := range hashes {
		b, err := database.GetBook(tx, hash)
		if err != nil {
			return nil, errors.Wrapf(err, "getting book %s", hash)
		}

		ret = append(ret, toWireBook(b))
	}

	return ret, nil
}

func getDirtyConfigs(tx *database.DB) ([]client.BookConfigRecord, error) {
	rows, err := tx.Query(`SELECT book_hash, location, progress, search_config, view_settings,
		created_at, updated_at, deleted_at FROM book_configs WHERE dirty = ?`, true)
	if err != nil {
		return nil, errors.Wrap(err, "querying dirty configs")
	}
	defer rows.Close()

	var ret []client.BookConfigRecord
	for rows.Next() {
		var c database.BookConfig
		if err := rows.Scan(&c.BookHash, &c.Location, &c.Progress, &c.SearchConfig, &c.ViewSettings,
			&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt); err != nil {
			return nil, errors.Wrap(err, "scanning a row")
		}

		ret = append(ret, toWireConfig(c))
	}

	return ret, nil
}

func getDirtyNotes(tx *database.DB) ([]client.BookNoteRecord, error) {
	rows, err := tx.Query(`SELECT id, book_hash, type, cfi, text, style, color, note,
		created_at, updated_at, deleted_at FROM book_notes WHERE dirty = ?`, true)
	if err != nil {
		return nil, errors.Wrap(err, "querying dirty notes")
	}
	defer rows.Close()

	var ret []client.BookNoteRecord
	for rows.Next() {
		var n database.BookNote
		if err := rows.Scan(&n.ID, &n.BookHash, &n.Type, &n.CFI, &n.Text, &n.Style, &n.Color, &n.Note,
			&n.CreatedAt, &n.UpdatedAt, &n.DeletedAt); err != nil {
			return nil, errors.Wrap(err, "scanning a row")
		}

		ret = append(ret, toWireNote(n))
	}

	return ret, nil
}

// applyEchoes overwrites pushed records with the authoritative copies the
// server returned and clears their dirty flags
func applyEchoes(tx *database.DB, result client.SyncResult) error {
	for _, b := range result.Books {
		local := toLocalBook(b)
		if err := local.Update(tx); err != nil {
			return errors.Wrapf(err, "applying book %s", b.BookHash)
		}
	}

	for _, c := range result.Configs {
		local := toLocalConfig(c)
		if err := local.Update(tx); err != nil {
			return errors.Wrapf(err, "applying config for book %s", c.BookHash)
		}
	}

	for _, n := range result.Notes {
		local := toLocalNote(n)
		if err := local.Update(tx); err != nil {
			return errors.Wrapf(err, "applying note %s", n.ID)
		}
	}

	return nil
}

// resultMaxes returns the highest server timestamp per record kind in a
// result set
func resultMaxes(result client.SyncResult) (books, configs, notes int64) {
	for _, b := range result.Books {
		if b.UpdatedAt > books {
			books = b.UpdatedAt
		}
	}
	for _, c := range result.Configs {
		if c.UpdatedAt > configs {
			configs = c.UpdatedAt
		}
	}
	for _, n := range result.Notes {
		if n.UpdatedAt > notes {
			notes = n.UpdatedAt
		}
	}

	return books, configs, notes
}
