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

// Package consts provides definitions of constants
package consts

var (
	// FolioDirName is the name of the directory containing folio files
	FolioDirName = "folio"
	// FolioDBFileName is a filename for the folio SQLite database
	FolioDBFileName = "folio.db"
	// BooksDirName is the name of the directory holding book files and covers
	BooksDirName = "books"
	// ConfigFilename is the name of the config file
	ConfigFilename = "foliorc"

	// SystemSchema is the key for schema in the system table
	SystemSchema = "schema"
	// SystemLastSyncedBooks is the watermark for the last successful books pull
	SystemLastSyncedBooks = "last_synced_books"
	// SystemLastSyncedConfigs is the watermark for the last successful configs pull
	SystemLastSyncedConfigs = "last_synced_configs"
	// SystemLastSyncedNotes is the watermark for the last successful notes pull
	SystemLastSyncedNotes = "last_synced_notes"
	// SystemSessionKey is the session key
	SystemSessionKey = "session_token"
	// SystemSessionKeyExpiry is the timestamp at which the session key will expire
	SystemSessionKeyExpiry = "session_token_expiry"
	// SystemUserID is the id of the signed-in user
	SystemUserID = "user_id"
)
