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

package app

import (
	"encoding/json"

	"github.com/folioapp/folio/pkg/server/database"
	pkgErrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

// Record kinds accepted by the sync endpoint
const (
	KindBooks   = "books"
	KindConfigs = "configs"
	KindNotes   = "notes"
)

// BookRecord is a book as it travels on the wire
type BookRecord struct {
	BookHash      string   `json:"book_hash"`
	Format        string   `json:"format"`
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	GroupID       string   `json:"group_id,omitempty"`
	GroupName     string   `json:"group_name,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	ProgressCur   int64    `json:"progress_cur"`
	ProgressTotal int64    `json:"progress_total"`
	CreatedAt     int64    `json:"created_at"`
	UpdatedAt     int64    `json:"updated_at"`
	DeletedAt     *int64   `json:"deleted_at,omitempty"`
	UploadedAt    *int64   `json:"uploaded_at,omitempty"`
	DownloadedAt  *int64   `json:"downloaded_at,omitempty"`
}

// BookConfigRecord is a book configuration as it travels on the wire
type BookConfigRecord struct {
	BookHash     string `json:"book_hash"`
	Location     string `json:"location,omitempty"`
	Progress     string `json:"progress,omitempty"`
	SearchConfig string `json:"search_config,omitempty"`
	ViewSettings string `json:"view_settings,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
	DeletedAt    *int64 `json:"deleted_at,omitempty"`
}

// BookNoteRecord is a bookmark or annotation as it travels on the wire
type BookNoteRecord struct {
	ID        string `json:"id"`
	BookHash  string `json:"book_hash"`
	Type      string `json:"type"`
	CFI       string `json:"cfi"`
	Text      string `json:"text,omitempty"`
	Style     string `json:"style,omitempty"`
	Color     string `json:"color,omitempty"`
	Note      string `json:"note,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	DeletedAt *int64 `json:"deleted_at,omitempty"`
}

// SyncData is a pushed change set
type SyncData struct {
	Books   []BookRecord       `json:"books"`
	Configs []BookConfigRecord `json:"configs"`
	Notes   []BookNoteRecord   `json:"notes"`
}

// SyncResult is the authoritative server records for a pull or a push
type SyncResult struct {
	Books   []BookRecord       `json:"books"`
	Configs []BookConfigRecord `json:"configs"`
	Notes   []BookNoteRecord   `json:"notes"`
}

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

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}

	b, err := json.Marshal(tags)
	if err != nil {
		return "", pkgErrors.Wrap(err, "marshaling tags")
	}

	return string(b), nil
}

func decodeTags(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}

	var ret []string
	if err := json.Unmarshal([]byte(raw), &ret); err != nil {
		return nil, pkgErrors.Wrap(err, "unmarshaling tags")
	}
	if ret == nil {
		ret = []string{}
	}

	return ret, nil
}

func presentBook(b database.Book) (BookRecord, error) {
	tags, err := decodeTags(b.Tags)
	if err != nil {
		return BookRecord{}, err
	}

	return BookRecord{
		BookHash:      b.BookHash,
		Format:        b.Format,
		Title:         b.Title,
		Author:        b.Author,
		GroupID:       b.GroupID,
		GroupName:     b.GroupName,
		Tags:          tags,
		ProgressCur:   b.ProgressCur,
		ProgressTotal: b.ProgressTotal,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
		DeletedAt:     tsPtr(b.DeletedAt),
		UploadedAt:    tsPtr(b.UploadedAt),
		DownloadedAt:  tsPtr(b.DownloadedAt),
	}, nil
}

func presentConfig(c database.BookConfig) BookConfigRecord {
	return BookConfigRecord{
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

func presentNote(n database.BookNote) BookNoteRecord {
	return BookNoteRecord{
		ID:        n.NoteID,
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

// changedQuery scopes a query to one user's records changed at or after the
// given timestamp, tombstones included
func changedQuery(db *gorm.DB, userID int, since int64) *gorm.DB {
	return db.Where("user_id = ? AND (updated_at >= ? OR deleted_at >= ?)", userID, since, since)
}

// GetChanges returns the user's records changed at or after since. kind
// narrows the result to one record kind and book to one book; either may be
// empty.
func (a *App) GetChanges(user database.User, since int64, kind, book string) (SyncResult, error) {
	var ret SyncResult

	if kind == "" || kind == KindBooks {
		q := changedQuery(a.DB.Model(&database.Book{}), user.ID, since)
		if book != "" {
			q = q.Where("book_hash = ?", book)
		}

		var books []database.Book
		if err := q.Find(&books).Error; err != nil {
			return ret, pkgErrors.Wrap(err, "querying books")
		}

		for _, b := range books {
			rec, err := presentBook(b)
			if err != nil {
				return ret, pkgErrors.Wrapf(err, "presenting book %s", b.BookHash)
			}
			ret.Books = append(ret.Books, rec)
		}
	}

	if kind == "" || kind == KindConfigs {
		q := changedQuery(a.DB.Model(&database.BookConfig{}), user.ID, since)
		if book != "" {
			q = q.Where("book_hash = ?", book)
		}

		var configs []database.BookConfig
		if err := q.Find(&configs).Error; err != nil {
			return ret, pkgErrors.Wrap(err, "querying configs")
		}

		for _, c := range configs {
			ret.Configs = append(ret.Configs, presentConfig(c))
		}
	}

	if kind == "" || kind == KindNotes {
		q := changedQuery(a.DB.Model(&database.BookNote{}), user.ID, since)
		if book != "" {
			q = q.Where("book_hash = ?", book)
		}

		var notes []database.BookNote
		if err := q.Find(&notes).Error; err != nil {
			return ret, pkgErrors.Wrap(err, "querying notes")
		}

		for _, n := range notes {
			ret.Notes = append(ret.Notes, presentNote(n))
		}
	}

	return ret, nil
}

// applyBook merges one pushed book and returns the authoritative record.
// Acceptance re-stamps updated_at with the server clock so that timestamps
// are comparable across clients.
func (a *App) applyBook(tx *gorm.DB, user database.User, incoming BookRecord) (BookRecord, error) {
	tags, err := encodeTags(incoming.Tags)
	if err != nil {
		return BookRecord{}, err
	}

	var stored database.Book
	err = tx.Where("user_id = ? AND book_hash = ?", user.ID, incoming.BookHash).First(&stored).Error
	if pkgErrors.Is(err, gorm.ErrRecordNotFound) {
		stored = database.Book{UserID: user.ID, BookHash: incoming.BookHash}
	} else if err != nil {
		return BookRecord{}, pkgErrors.Wrap(err, "finding book")
	} else if incoming.UpdatedAt < stored.UpdatedAt && tsValue(incoming.DeletedAt) < stored.UpdatedAt {
		// the stored record is newer; echo it unchanged
		return presentBook(stored)
	}

	stored.Format = incoming.Format
	stored.Title = incoming.Title
	stored.Author = incoming.Author
	stored.GroupID = incoming.GroupID
	stored.GroupName = incoming.GroupName
	stored.Tags = tags
	stored.ProgressCur = incoming.ProgressCur
	stored.ProgressTotal = incoming.ProgressTotal
	stored.CreatedAt = incoming.CreatedAt
	stored.UpdatedAt = a.now()
	stored.DeletedAt = tsValue(incoming.DeletedAt)
	stored.UploadedAt = tsValue(incoming.UploadedAt)

	if err := tx.Save(&stored).Error; err != nil {
		return BookRecord{}, pkgErrors.Wrap(err, "saving book")
	}

	return presentBook(stored)
}

func (a *App) applyConfig(tx *gorm.DB, user database.User, incoming BookConfigRecord) (BookConfigRecord, error) {
	var stored database.BookConfig
	err := tx.Where("user_id = ? AND book_hash = ?", user.ID, incoming.BookHash).First(&stored).Error
	if pkgErrors.Is(err, gorm.ErrRecordNotFound) {
		stored = database.BookConfig{UserID: user.ID, BookHash: incoming.BookHash}
	} else if err != nil {
		return BookConfigRecord{}, pkgErrors.Wrap(err, "finding config")
	} else if incoming.UpdatedAt < stored.UpdatedAt && tsValue(incoming.DeletedAt) < stored.UpdatedAt {
		return presentConfig(stored), nil
	}

	stored.Location = incoming.Location
	stored.Progress = incoming.Progress
	stored.SearchConfig = incoming.SearchConfig
	stored.ViewSettings = incoming.ViewSettings
	stored.CreatedAt = incoming.CreatedAt
	stored.UpdatedAt = a.now()
	stored.DeletedAt = tsValue(incoming.DeletedAt)

	if err := tx.Save(&stored).Error; err != nil {
		return BookConfigRecord{}, pkgErrors.Wrap(err, "saving config")
	}

	return presentConfig(stored), nil
}

func (a *App) applyNote(tx *gorm.DB, user database.User, incoming BookNoteRecord) (BookNoteRecord, error) {
	var stored database.BookNote
	err := tx.Where("user_id = ? AND book_hash = ? AND note_id = ?", user.ID, incoming.BookHash, incoming.ID).First(&stored).Error
	if pkgErrors.Is(err, gorm.ErrRecordNotFound) {
		stored = database.BookNote{UserID: user.ID, BookHash: incoming.BookHash, NoteID: incoming.ID}
	} else if err != nil {
		return BookNoteRecord{}, pkgErrors.Wrap(err, "finding note")
	} else if incoming.UpdatedAt < stored.UpdatedAt && tsValue(incoming.DeletedAt) < stored.UpdatedAt {
		return presentNote(stored), nil
	}

	stored.Type = incoming.Type
	stored.CFI = incoming.CFI
	stored.Text = incoming.Text
	stored.Style = incoming.Style
	stored.Color = incoming.Color
	stored.Note = incoming.Note
	stored.CreatedAt = incoming.CreatedAt
	stored.UpdatedAt = a.now()
	stored.DeletedAt = tsValue(incoming.DeletedAt)

	if err := tx.Save(&stored).Error; err != nil {
		return BookNoteRecord{}, pkgErrors.Wrap(err, "saving note")
	}

	return presentNote(stored), nil
}

// ApplyChanges merges a pushed change set into the user's records and
// returns the post-merge authoritative records
func (a *App) ApplyChanges(user database.User, data SyncData) (SyncResult, error) {
	var ret SyncResult

	tx := a.DB.Begin()

	for _, rec := range data.Books {
		merged, err := a.applyBook(tx, user, rec)
		if err != nil {
			tx.Rollback()
			return ret, pkgErrors.Wrapf(err, "applying book %s", rec.BookHash)
		}
		ret.Books = append(ret.Books, merged)
	}

	for _, rec := range data.Configs {
		merged, err := a.applyConfig(tx, user, rec)
		if err != nil {
			tx.Rollback()
			return ret, pkgErrors.Wrapf(err, "applying config for book %s", rec.BookHash)
		}
		ret.Configs = append(ret.Configs, merged)
	}

	for _, rec := range data.Notes {
		merged, err := a.applyNote(tx, user, rec)
		if err != nil {
			tx.Rollback()
			return ret, pkgErrors.Wrapf(err, "applying note %s", rec.ID)
		}
		ret.Notes = append(ret.Notes, merged)
	}

	if err := tx.Commit().Error; err != nil {
		return ret, pkgErrors.Wrap(err, "committing transaction")
	}

	return ret, nil
}
