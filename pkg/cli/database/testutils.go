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
	"database/sql"
	"testing"

	"github.com/pkg/errors"
)

// InitTestDB opens an in-memory database with the schema loaded, for tests
func InitTestDB(t *testing.T) *DB {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(errors.Wrap(err, "opening test database"))
	}
	// each pooled connection would get its own in-memory database
	db.handle.SetMaxOpenConns(1)

	if err := InitSchema(db); err != nil {
		t.Fatal(errors.Wrap(err, "running schema"))
	}

	return db
}

// CloseTestDB closes the test database
func CloseTestDB(t *testing.T, db *DB) {
	if err := db.Close(); err != nil {
		t.Fatal(errors.Wrap(err, "closing test database"))
	}
}

// MustExec executes the given SQL query and fails the test in case of any error
func MustExec(t *testing.T, message string, db *DB, query string, args ...interface{}) {
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("%s: executing sql: %s", message, err.Error())
	}
}

// MustScan scans the given row and fails the test in case of any error
func MustScan(t *testing.T, message string, row *sql.Row, args ...interface{}) {
	if err := row.Scan(args...); err != nil {
		t.Fatalf("%s: scanning a row: %s", message, err.Error())
	}
}
