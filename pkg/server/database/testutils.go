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
	"testing"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// InitTestDB opens an in-memory database with the schema loaded, for tests
func InitTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(errors.Wrap(err, "opening test database"))
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(errors.Wrap(err, "getting the underlying handle"))
	}
	// each pooled connection would get its own in-memory database
	sqlDB.SetMaxOpenConns(1)

	InitSchema(db)

	return db
}

// CloseTestDB closes the test database
func CloseTestDB(t *testing.T, db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(errors.Wrap(err, "getting the underlying handle"))
	}

	if err := sqlDB.Close(); err != nil {
		t.Fatal(errors.Wrap(err, "closing test database"))
	}
}
