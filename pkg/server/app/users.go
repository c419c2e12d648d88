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
	"github.com/folioapp/folio/pkg/server/database"
	"github.com/folioapp/folio/pkg/server/token"
	"github.com/google/uuid"
	pkgErrors "github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrEmailRequired is an error for registering without an email
	ErrEmailRequired = pkgErrors.New("Email is required")
	// ErrPasswordTooShort is an error for registering with a short password
	ErrPasswordTooShort = pkgErrors.New("Password should be longer than 8 characters")
	// ErrDuplicateEmail is an error for registering with an email that is already in use
	ErrDuplicateEmail = pkgErrors.New("Duplicate email")
	// ErrLoginInvalid is an error for invalid credentials at login
	ErrLoginInvalid = pkgErrors.New("Wrong email and password combination")
)

// PlanFree is the plan given to new users
const PlanFree = "free"

// CreateUser creates a user
func (a *App) CreateUser(email, password string) (database.User, error) {
	if email == "" {
		return database.User{}, ErrEmailRequired
	}
	if len(password) < 8 {
		return database.User{}, ErrPasswordTooShort
	}

	tx := a.DB.Begin()

	var count int64
	if err := tx.Model(&database.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		tx.Rollback()
		return database.User{}, pkgErrors.Wrap(err, "counting user")
	}
	if count > 0 {
		tx.Rollback()
		return database.User{}, ErrDuplicateEmail
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		tx.Rollback()
		return database.User{}, pkgErrors.Wrap(err, "hashing password")
	}

	user := database.User{
		UUID:     uuid.NewString(),
		Email:    email,
		Password: string(hashedPassword),
		Plan:     PlanFree,
	}
	if err := tx.Save(&user).Error; err != nil {
		tx.Rollback()
		return database.User{}, pkgErrors.Wrap(err, "saving user")
	}

	if err := tx.Commit().Error; err != nil {
		return database.User{}, pkgErrors.Wrap(err, "committing transaction")
	}

	return user, nil
}

// Authenticate finds a user with the given credentials
func (a *App) Authenticate(email, password string) (database.User, error) {
	var user database.User
	err := a.DB.Where("email = ?", email).First(&user).Error
	if pkgErrors.Is(err, gorm.ErrRecordNotFound) {
		return user, ErrLoginInvalid
	} else if err != nil {
		return user, pkgErrors.Wrap(err, "finding user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return user, ErrLoginInvalid
	}

	return user, nil
}

// TouchLastLoginAt updates the last login timestamp
func (a *App) TouchLastLoginAt(user database.User, tx *gorm.DB) error {
	t := a.Clock.Now()
	if err := tx.Model(&user).Update("last_login_at", &t).Error; err != nil {
		return pkgErrors.Wrap(err, "updating last_login_at")
	}

	return nil
}

// CreateSession issues a session token for the user and records the session
func (a *App) CreateSession(user database.User) (database.Session, error) {
	key, expiresAt, err := token.Issue(a.Config.JWTSecret, user, a.Clock.Now())
	if err != nil {
		return database.Session{}, pkgErrors.Wrap(err, "issuing token")
	}

	session := database.Session{
		UserID:     user.ID,
		Key:        key,
		LastUsedAt: a.Clock.Now(),
		ExpiresAt:  expiresAt,
	}
	if err := a.DB.Save(&session).Error; err != nil {
		return database.Session{}, pkgErrors.Wrap(err, "saving session")
	}

	return session, nil
}

// DeleteSession deletes the session that matches the given key
func (a *App) DeleteSession(sessionKey string) error {
	if err := a.DB.Where("key = ?", sessionKey).Delete(&database.Session{}).Error; err != nil {
		return pkgErrors.Wrap(err, "deleting the session")
	}

	return nil
}
