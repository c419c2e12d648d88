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

package token

import (
	"testing"
	"time"

	"github.com/folioapp/folio/pkg/assert"
	"github.com/folioapp/folio/pkg/server/database"
	"github.com/pkg/errors"
)

func TestIssueVerify(t *testing.T) {
	user := database.User{
		UUID:         "3b3fa8a2-7e10-4a62-b5d8-4a2a7a1b0c4f",
		Plan:         "plus",
		StorageUsage: 1024,
	}
	now := time.Now().Truncate(time.Second)

	signed, expiresAt, err := Issue("secret", user, now)
	if err != nil {
		t.Fatal(errors.Wrap(err, "issuing token"))
	}

	assert.Equal(t, expiresAt, now.Add(Lifetime), "expiry mismatch")

	claims, err := Verify("secret", signed)
	if err != nil {
		t.Fatal(errors.Wrap(err, "verifying token"))
	}

	assert.Equal(t, claims.UserUUID, user.UUID, "user uuid mismatch")
	assert.Equal(t, claims.Plan, "plus", "plan mismatch")
	assert.Equal(t, claims.StorageUsage, int64(1024), "storage usage mismatch")
	assert.Equal(t, claims.ExpiresAt.Unix(), expiresAt.Unix(), "claim expiry mismatch")
}

func TestVerifyWrongSecret(t *testing.T) {
	signed, _, err := Issue("secret", database.User{UUID: "u1"}, time.Now())
	if err != nil {
		t.Fatal(errors.Wrap(err, "issuing token"))
	}

	_, err = Verify("other", signed)
	assert.Equal(t, err, ErrInvalid, "error mismatch")
}

func TestVerifyGarbage(t *testing.T) {
	_, err := Verify("secret", "not-a-token")
	assert.Equal(t, err, ErrInvalid, "error mismatch")
}

func TestVerifyExpired(t *testing.T) {
	signed, _, err := Issue("secret", database.User{UUID: "u1"}, time.Now().Add(-2*Lifetime))
	if err != nil {
		t.Fatal(errors.Wrap(err, "issuing token"))
	}

	_, err = Verify("secret", signed)
	assert.Equal(t, err, ErrInvalid, "expired token should fail verification")
}
