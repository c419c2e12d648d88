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
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/folioapp/folio/pkg/server/app"
	"github.com/folioapp/folio/pkg/server/database"
	"github.com/pkg/errors"
)

// MustNewServer is a test utility function to initialize a new server
// with the given app
func MustNewServer(t *testing.T, a *app.App) *httptest.Server {
	t.Setenv("APP_ENV", "TEST")

	r, err := NewRouter(a, New(a))
	if err != nil {
		t.Fatal(errors.Wrap(err, "initializing router"))
	}

	return httptest.NewServer(r)
}

// MustSignIn is a test utility to create a session for the user
func MustSignIn(t *testing.T, a *app.App, user database.User) string {
	session, err := a.CreateSession(user)
	if err != nil {
		t.Fatal(errors.Wrap(err, "creating session"))
	}

	return session.Key
}

// HTTPDo makes a http request against a test server path
func HTTPDo(t *testing.T, server *httptest.Server, method, path, sessionKey, body string) *http.Response {
	req, err := http.NewRequest(method, server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(errors.Wrap(err, "constructing request"))
	}
	if sessionKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sessionKey))
	}

	res, err := server.Client().Do(req)
	if err != nil {
		t.Fatal(errors.Wrap(err, "making request"))
	}

	return res
}
