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
	"github.com/folioapp/folio/pkg/server/database"
	"github.com/folioapp/folio/pkg/server/log"
	mw "github.com/folioapp/folio/pkg/server/middleware"
	"github.com/pkg/errors"
)

// NewUsers creates a new Users controller
func NewUsers(app *app.App) *Users {
	return &Users{app: app}
}

// Users is a user controller
type Users struct {
	app *app.App
}

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is the response for a newly issued session
type SessionResponse struct {
	Key       string `json:"key"`
	ExpiresAt int64  `json:"expires_at"`
	UserID    string `json:"user_id"`
}

func (u *Users) respondWithSession(w http.ResponseWriter, status int, user database.User) {
	session, err := u.app.CreateSession(user)
	if err != nil {
		handleJSONError(w, err, "creating session")
		return
	}

	respondJSON(w, status, SessionResponse{
		Key:       session.Key,
		ExpiresAt: session.ExpiresAt.Unix(),
		UserID:    user.UUID,
	})
}

// Register handles register
func (u *Users) Register(w http.ResponseWriter, r *http.Request) {
	var payload credentialsPayload
	if err := parseRequestData(r, &payload); err != nil {
		handleJSONError(w, err, "parsing payload")
		return
	}

	user, err := u.app.CreateUser(payload.Email, payload.Password)
	if err != nil {
		handleJSONError(w, err, "creating user")
		return
	}

	log.WithFields(log.Fields{
		"user_id": user.ID,
	}).Info("user registered")

	u.respondWithSession(w, http.StatusCreated, user)
}

// Signin handles signin
func (u *Users) Signin(w http.ResponseWriter, r *http.Request) {
	var payload credentialsPayload
	if err := parseRequestData(r, &payload); err != nil {
		handleJSONError(w, err, "parsing payload")
		return
	}

	if payload.Email == "" || payload.Password == "" {
		handleJSONError(w, app.ErrLoginInvalid, "empty credentials")
		return
	}

	user, err := u.app.Authenticate(payload.Email, payload.Password)
	if err != nil {
		handleJSONError(w, err, "authenticating user")
		return
	}

	if err := u.app.TouchLastLoginAt(user, u.app.DB); err != nil {
		log.ErrorWrap(err, "touching last login")
	}

	u.respondWithSession(w, http.StatusOK, user)
}

// Signout handles signout
func (u *Users) Signout(w http.ResponseWriter, r *http.Request) {
	key := mw.GetCredential(r)
	if key != "" {
		if err := u.app.DeleteSession(key); err != nil {
			handleJSONError(w, errors.Wrap(err, "deleting session"), "signing out")
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
