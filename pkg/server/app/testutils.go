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
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/folioapp/folio/pkg/clock"
	"github.com/folioapp/folio/pkg/server/config"
	"github.com/folioapp/folio/pkg/server/database"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// FakeBlobStore records signing calls and signs deterministic URLs, for
// tests
type FakeBlobStore struct {
	PutKeys     []string
	GetKeys     []string
	DeletedKeys []string
}

// SignPut implements blob.Store
func (s *FakeBlobStore) SignPut(ctx context.Context, key string) (string, error) {
	s.PutKeys = append(s.PutKeys, key)
	return fmt.Sprintf("https://blob.test/put/%s", key), nil
}

// SignGet implements blob.Store
func (s *FakeBlobStore) SignGet(ctx context.Context, key string) (string, error) {
	s.GetKeys = append(s.GetKeys, key)
	return fmt.Sprintf("https://blob.test/get/%s", key), nil
}

// Delete implements blob.Store
func (s *FakeBlobStore) Delete(ctx context.Context, key string) error {
	s.DeletedKeys = append(s.DeletedKeys, key)
	return nil
}

// NewTestApp returns an app backed by an in-memory database, a mock clock
// and a fake blob store
func NewTestApp(t *testing.T) (*App, *FakeBlobStore, *clock.Mock) {
	db := database.InitTestDB(t)
	b := &FakeBlobStore{}

	// issued tokens must verify against the real clock, so the mock starts
	// at the present rather than a fixed date
	c := clock.NewMock()
	c.SetNow(time.Now().Truncate(time.Millisecond))

	a := &App{
		DB:     db,
		Clock:  c,
		Blob:   b,
		Config: config.Config{JWTSecret: "test-secret"},
	}

	return a, b, c
}

// CreateTestUser inserts a user for tests
func CreateTestUser(t *testing.T, a *App, email, plan string) database.User {
	user := database.User{
		UUID:  uuid.NewString(),
		Email: email,
		Plan:  plan,
	}
	if err := a.DB.Save(&user).Error; err != nil {
		t.Fatal(errors.Wrap(err, "creating test user"))
	}

	return user
}
