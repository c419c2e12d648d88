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

package controllers

import (
	"net/http"

	"github.com/folioapp/folio/pkg/server/app"
	"github.com/folioapp/folio/pkg/server/context"
)

// NewStorage creates a new Storage controller
func NewStorage(app *app.App) *Storage {
	return &Storage{app: app}
}

// Storage is a controller for the file storage endpoints
type Storage struct {
	app *app.App
}

type uploadGrantPayload struct {
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	BookHash string `json:"book_hash"`
}

type downloadGrantResponse struct {
	DownloadURL string `json:"download_url"`
}

type deletePayload struct {
	FileKey string `json:"file_key"`
}

// GrantUpload handles POST /api/storage/upload
func (s *Storage) GrantUpload(w http.ResponseWriter, r *http.Request) {
	user := context.User(r.Context())

	var payload uploadGrantPayload
	if err := parseRequestData(r, &payload); err != nil {
		handleJSONError(w, err, "parsing payload")
		return
	}

	if payload.FileName == "" {
		handleJSONError(w, validationError("file_name is required"), "validating payload")
		return
	}
	if payload.FileSize <= 0 {
		handleJSONError(w, validationError("file_size must be positive"), "validating payload")
		return
	}

	grant, err := s.app.CreateUploadGrant(r.Context(), *user, payload.FileName, payload.FileSize, payload.BookHash)
	if err != nil {
		handleJSONError(w, err, "creating upload grant")
		return
	}

	respondJSON(w, http.StatusOK, grant)
}

// GrantDownload handles GET /api/storage/download
func (s *Storage) GrantDownload(w http.ResponseWriter, r *http.Request) {
	user := context.User(r.Context())

	fileKey := r.URL.Query().Get("fileKey")
	if fileKey == "" {
		handleJSONError(w, &queryParamError{key: "fileKey", value: "", message: "required"}, "parsing query")
		return
	}

	downloadURL, err := s.app.CreateDownloadGrant(r.Context(), *user, fileKey)
	if err != nil {
		handleJSONError(w, err, "creating download grant")
		return
	}

	respondJSON(w, http.StatusOK, downloadGrantResponse{DownloadURL: downloadURL})
}

// Delete handles DELETE /api/storage/delete
func (s *Storage) Delete(w http.ResponseWriter, r *http.Request) {
	user := context.User(r.Context())

	var payload deletePayload
	if err := parseRequestData(r, &payload); err != nil {
		handleJSONError(w, err, "parsing payload")
		return
	}

	if err := s.app.DeleteObject(r.Context(), *user, payload.FileKey); err != nil {
		handleJSONError(w, err, "deleting object")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
