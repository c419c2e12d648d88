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
	"net/url"
	"strconv"

	"github.com/folioapp/folio/pkg/server/app"
	"github.com/folioapp/folio/pkg/server/context"
)

// NewSync creates a new Sync controller
func NewSync(app *app.App) *Sync {
	return &Sync{app: app}
}

// Sync is a sync controller
type Sync struct {
	app *app.App
}

// parseGetSyncQuery parses the query string of a pull request. since is
// required; type and book are optional filters.
func parseGetSyncQuery(q url.Values) (int64, string, string, error) {
	sinceStr := q.Get("since")
	if sinceStr == "" {
		return 0, "", "", &queryParamError{
			key:     "since",
			value:   sinceStr,
			message: "required",
		}
	}

	since, err := strconv.ParseInt(sinceStr, 10, 64)
	if err != nil {
		return 0, "", "", &queryParamError{
			key:     "since",
			value:   sinceStr,
			message: "not a millisecond timestamp",
		}
	}

	kind := q.Get("type")
	switch kind {
	case "", app.KindBooks, app.KindConfigs, app.KindNotes:
	default:
		return 0, "", "", &queryParamError{
			key:     "type",
			value:   kind,
			message: "unknown record type",
		}
	}

	return since, kind, q.Get("book"), nil
}

// GetSync handles GET /api/sync
func (s *Sync) GetSync(w http.ResponseWriter, r *http.Request) {
	user := context.User(r.Context())

	since, kind, book, err := parseGetSyncQuery(r.URL.Query())
	if err != nil {
		handleJSONError(w, err, "parsing query")
		return
	}

	result, err := s.app.GetChanges(*user, since, kind, book)
	if err != nil {
		handleJSONError(w, err, "getting changes")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// PostSync handles POST /api/sync
func (s *Sync) PostSync(w http.ResponseWriter, r *http.Request) {
	user := context.User(r.Context())

	var data app.SyncData
	if err := parseRequestData(r, &data); err != nil {
		handleJSONError(w, err, "parsing payload")
		return
	}

	result, err := s.app.ApplyChanges(*user, data)
	if err != nil {
		handleJSONError(w, err, "applying changes")
		return
	}

	respondJSON(w, http.StatusOK, result)
}
