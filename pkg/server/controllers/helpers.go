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
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/folioapp/folio/pkg/server/app"
	"github.com/folioapp/folio/pkg/server/log"
	"github.com/pkg/errors"
)

// queryParamError is an error for an invalid query parameter
type queryParamError struct {
	key     string
	value   string
	message string
}

func (e *queryParamError) Error() string {
	return fmt.Sprintf("invalid query parameter %s=%q: %s", e.key, e.value, e.message)
}

// validationError is an error for an invalid request payload
type validationError string

func (e validationError) Error() string {
	return string(e)
}

// parseRequestData decodes a JSON request body into the given value
func parseRequestData(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return validationError(fmt.Sprintf("invalid json payload: %s", err))
	}

	return nil
}

// respondJSON sets the response content type and writes the payload
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.ErrorWrap(err, "encoding json response")
	}
}

// getStatusCode maps an application error to a http status code
func getStatusCode(err error) int {
	cause := errors.Cause(err)

	switch cause {
	case app.ErrLoginInvalid:
		return http.StatusUnauthorized
	case app.ErrEmailRequired, app.ErrPasswordTooShort, app.ErrDuplicateEmail:
		return http.StatusBadRequest
	case app.ErrObjectNotFound:
		return http.StatusNotFound
	case app.ErrObjectForbidden:
		return http.StatusForbidden
	}

	var quotaErr *app.ErrQuotaExceeded
	if errors.As(err, &quotaErr) {
		return http.StatusForbidden
	}

	var paramErr *queryParamError
	if errors.As(err, &paramErr) {
		return http.StatusBadRequest
	}

	var validationErr validationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

// quotaErrorResponse reports a quota rejection with the figures the client
// needs to show usage against quota
type quotaErrorResponse struct {
	Message string `json:"message"`
	Usage   int64  `json:"usage"`
	Quota   int64  `json:"quota"`
}

// handleJSONError logs the error and responds with the appropriate status.
// Quota rejections carry a JSON body with the usage figures; everything else
// is the error message as plain text.
func handleJSONError(w http.ResponseWriter, err error, msg string) {
	statusCode := getStatusCode(err)

	if statusCode >= 500 {
		log.WithFields(log.Fields{
			"statusCode": statusCode,
		}).ErrorWrap(err, msg)
	}

	var quotaErr *app.ErrQuotaExceeded
	if errors.As(err, &quotaErr) {
		respondJSON(w, statusCode, quotaErrorResponse{
			Message: quotaErr.Error(),
			Usage:   quotaErr.Usage,
			Quota:   quotaErr.Quota,
		})
		return
	}

	http.Error(w, err.Error(), statusCode)
}
