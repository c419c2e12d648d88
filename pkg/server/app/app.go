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
	"github.com/folioapp/folio/pkg/clock"
	"github.com/folioapp/folio/pkg/server/blob"
	"github.com/folioapp/folio/pkg/server/config"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	// ErrEmptyDB is an error for missing database connection in the app configuration
	ErrEmptyDB = errors.New("No database connection was provided")
	// ErrEmptyClock is an error for missing clock in the app configuration
	ErrEmptyClock = errors.New("No clock was provided")
	// ErrEmptyBlob is an error for missing blob store in the app configuration
	ErrEmptyBlob = errors.New("No blob store was provided")
)

// App is an application context
type App struct {
	DB     *gorm.DB
	Clock  clock.Clock
	Blob   blob.Store
	Config config.Config
}

// Validate validates the app configuration
func (a *App) Validate() error {
	if a.DB == nil {
		return ErrEmptyDB
	}
	if a.Clock == nil {
		return ErrEmptyClock
	}
	if a.Blob == nil {
		return ErrEmptyBlob
	}
	if a.Config.JWTSecret == "" {
		return config.ErrJWTSecretMissing
	}

	return nil
}

// now returns the current server time in Unix milliseconds
func (a *App) now() int64 {
	return a.Clock.Now().UnixMilli()
}
