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
	"time"
)

// Model is the base model definition
type Model struct {
	ID        int       `gorm:"primaryKey" json:"-"`
	CreatedAt time.Time `json:"-" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"-" gorm:"autoUpdateTime"`
}

// User is a model for a user
type User struct {
	Model
	UUID         string `gorm:"index;type:text"`
	Email        string `gorm:"uniqueIndex"`
	Password     string `json:"-"`
	Plan         string `gorm:"default:free"`
	StorageUsage int64  `gorm:"default:0"`
	LastLoginAt  *time.Time
}

// Session represents a user session
type Session struct {
	Model
	UserID     int    `gorm:"index"`
	Key        string `gorm:"index"`
	LastUsedAt time.Time
	ExpiresAt  time.Time
}

// Record models carry the domain timestamps as Unix milliseconds, set by
// the application clock rather than by gorm. DeletedAt of zero means the
// record is live; a non-zero value is a tombstone that still syncs.

// Book is a book in a user's library
type Book struct {
	ID            int    `gorm:"primaryKey"`
	UserID        int    `gorm:"uniqueIndex:idx_books_user_hash"`
	BookHash      string `gorm:"uniqueIndex:idx_books_user_hash;type:text"`
	Format        string
	Title         string
	Author        string
	GroupID       string
	GroupName     string
	Tags          string
	ProgressCur   int64
	ProgressTotal int64
	CreatedAt     int64
	UpdatedAt     int64 `gorm:"index"`
	DeletedAt     int64 `gorm:"index;default:0"`
	UploadedAt    int64 `gorm:"default:0"`
	DownloadedAt  int64 `gorm:"default:0"`
}

// BookConfig is the reading state and per-book settings of a book
type BookConfig struct {
	ID           int    `gorm:"primaryKey"`
	UserID       int    `gorm:"uniqueIndex:idx_book_configs_user_hash"`
	BookHash     string `gorm:"uniqueIndex:idx_book_configs_user_hash;type:text"`
	Location     string
	Progress     string
	SearchConfig string
	ViewSettings string
	CreatedAt    int64
	UpdatedAt    int64 `gorm:"index"`
	DeletedAt    int64 `gorm:"index;default:0"`
}

// BookNote is a bookmark or annotation in a book
type BookNote struct {
	ID        int    `gorm:"primaryKey"`
	UserID    int    `gorm:"uniqueIndex:idx_book_notes_user_hash_note"`
	BookHash  string `gorm:"uniqueIndex:idx_book_notes_user_hash_note;type:text"`
	NoteID    string `gorm:"uniqueIndex:idx_book_notes_user_hash_note;type:text"`
	Type      string
	CFI       string
	Text      string
	Style     string
	Color     string
	Note      string
	CreatedAt int64
	UpdatedAt int64 `gorm:"index"`
	DeletedAt int64 `gorm:"index;default:0"`
}

// FileObject records a book file stored in the user's cloud storage
type FileObject struct {
	Model
	UserID    int    `gorm:"index"`
	BookHash  string `gorm:"index;type:text"`
	FileKey   string `gorm:"index;type:text"`
	FileSize  int64
	DeletedAt int64 `gorm:"index;default:0"`
}
