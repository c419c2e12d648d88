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
	mw "github.com/folioapp/folio/pkg/server/middleware"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

// Route represents a single route
type Route struct {
	Method    string
	Pattern   string
	Handler   http.HandlerFunc
	RateLimit bool
}

// NewAPIRoutes returns the api routes
func NewAPIRoutes(a *app.App, c *Controllers) []Route {
	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return mw.Auth(a.DB, a.Config.JWTSecret, next)
	}

	ret := []Route{
		{"POST", "/signin", c.Users.Signin, true},
		{"POST", "/signout", c.Users.Signout, true},

		// sync is chatty by nature; it is kept off the rate limit
		{"GET", "/sync", auth(c.Sync.GetSync), false},
		{"POST", "/sync", auth(c.Sync.PostSync), false},

		{"POST", "/storage/upload", auth(c.Storage.GrantUpload), true},
		{"GET", "/storage/download", auth(c.Storage.GrantDownload), true},
		{"DELETE", "/storage/delete", auth(c.Storage.Delete), true},
	}

	if !a.Config.DisableRegistration {
		ret = append(ret, Route{"POST", "/register", c.Users.Register, true})
	}

	return ret
}

// NewRouter creates and returns a new router
func NewRouter(a *app.App, c *Controllers) (http.Handler, error) {
	if err := a.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating the app parameters")
	}

	router := mux.NewRouter().StrictSlash(true)
	apiRouter := router.PathPrefix("/api").Subrouter()

	for _, route := range NewAPIRoutes(a, c) {
		apiRouter.
			Handle(route.Pattern, mw.ApplyLimit(route.Handler, route.RateLimit)).
			Methods(route.Method)
	}

	router.Handle("/health", mw.ApplyLimit(c.Health.Index, true)).Methods("GET")

	return mw.Logging(router), nil
}
