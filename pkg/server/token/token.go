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

// Package token issues and verifies the session tokens handed to clients.
// A token is a signed JWT carrying the user's plan and storage usage so
// that clients can gate uploads without a round trip.
package token

import (
	"time"

	"github.com/folioapp/folio/pkg/server/database"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Lifetime is how long an issued session token stays valid
const Lifetime = 24 * 100 * time.Hour

// ErrInvalid is returned when a token fails verification
var ErrInvalid = errors.New("invalid token")

// Claims is the verified content of a session token
type Claims struct {
	UserUUID     string
	Plan         string
	StorageUsage int64
	ExpiresAt    time.Time
}

// Issue signs a session token for the given user
func Issue(secret string, user database.User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(Lifetime)

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":                 user.UUID,
		"plan":                user.Plan,
		"storage_usage_bytes": user.StorageUsage,
		"iat":                 now.Unix(),
		"exp":                 expiresAt.Unix(),
	})

	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "signing token")
	}

	return signed, expiresAt, nil
}

// Verify checks the signature and expiry of a session token and returns its
// claims
func Verify(secret, tokenStr string) (Claims, error) {
	parsed, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}

		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalid
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalid
	}

	var ret Claims
	if sub, ok := claims["sub"].(string); ok {
		ret.UserUUID = sub
	}
	if plan, ok := claims["plan"].(string); ok {
		ret.Plan = plan
	}
	if usage, ok := claims["storage_usage_bytes"].(float64); ok {
		ret.StorageUsage = int64(usage)
	}
	if exp, ok := claims["exp"].(float64); ok {
		ret.ExpiresAt = time.Unix(int64(exp), 0)
	}

	return ret, nil
}
