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
	"path"

	"github.com/folioapp/folio/pkg/server/database"
	pkgErrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

// storageQuotas is the storage allowance per plan in bytes
var storageQuotas = map[string]int64{
	"free": 500 * 1024 * 1024,
	"plus": 2 * 1024 * 1024 * 1024,
	"pro":  10 * 1024 * 1024 * 1024,
}

// PlanQuota returns the storage quota for a plan. Unknown plans get the free
// quota.
func PlanQuota(plan string) int64 {
	if quota, ok := storageQuotas[plan]; ok {
		return quota
	}

	return storageQuotas["free"]
}

var (
	// ErrObjectNotFound is an error for a storage object that does not exist
	ErrObjectNotFound = pkgErrors.New("object not found")
	// ErrObjectForbidden is an error for a storage object owned by another user
	ErrObjectForbidden = pkgErrors.New("object belongs to another user")
)

// ErrQuotaExceeded is an error for an upload that would exceed the user's
// storage quota
type ErrQuotaExceeded struct {
	Usage int64
	Quota int64
}

func (e *ErrQuotaExceeded) Error() string {
	return fmt.Sprintf("storage quota exceeded (%d of %d bytes used)", e.Usage, e.Quota)
}

// UploadGrant is a minted permission to upload one file
type UploadGrant struct {
	UploadURL string `json:"upload_url"`
	FileKey   string `json:"file_key"`
	Usage     int64  `json:"usage"`
	Quota     int64  `json:"quota"`
}

// CreateUploadGrant admits an upload against the user's quota and signs a
// URL for it. An existing live object with the same key is reused rather
// than counted against the quota again.
func (a *App) CreateUploadGrant(ctx context.Context, user database.User, fileName string, fileSize int64, bookHash string) (UploadGrant, error) {
	// clients never choose their own key space
	fileKey := path.Join(user.UUID, fileName)
	quota := PlanQuota(user.Plan)

	tx := a.DB.Begin()

	var existing database.FileObject
	err := tx.Where("user_id = ? AND book_hash = ? AND file_key = ? AND deleted_at = 0", user.ID, bookHash, fileKey).
		First(&existing).Error
	if err != nil && !pkgErrors.Is(err, gorm.ErrRecordNotFound) {
		tx.Rollback()
		return UploadGrant{}, pkgErrors.Wrap(err, "finding file object")
	}

	usage := user.StorageUsage

	if pkgErrors.Is(err, gorm.ErrRecordNotFound) {
		if usage+fileSize > quota {
			tx.Rollback()
			return UploadGrant{}, &ErrQuotaExceeded{Usage: usage, Quota: quota}
		}

		obj := database.FileObject{
			UserID:   user.ID,
			BookHash: bookHash,
			FileKey:  fileKey,
			FileSize: fileSize,
		}
		if err := tx.Save(&obj).Error; err != nil {
			tx.Rollback()
			return UploadGrant{}, pkgErrors.Wrap(err, "saving file object")
		}

		usage += fileSize
		if err := tx.Model(&database.User{}).Where("id = ?", user.ID).
			Update("storage_usage", usage).Error; err != nil {
			tx.Rollback()
			return UploadGrant{}, pkgErrors.Wrap(err, "updating storage usage")
		}
	}

	if err := tx.Commit().Error; err != nil {
		return UploadGrant{}, pkgErrors.Wrap(err, "committing transaction")
	}

	uploadURL, err := a.Blob.SignPut(ctx, fileKey)
	if err != nil {
		return UploadGrant{}, pkgErrors.Wrap(err, "signing upload url")
	}

	return UploadGrant{
		UploadURL: uploadURL,
		FileKey:   fileKey,
		Usage:     usage,
		Quota:     quota,
	}, nil
}

// findOwnedObject looks up a live object by key and checks its ownership
func (a *App) findOwnedObject(user database.User, fileKey string) (database.FileObject, error) {
	var obj database.FileObject
	err := a.DB.Where("file_key = ? AND deleted_at = 0", fileKey).First(&obj).Error
	if pkgErrors.Is(err, gorm.ErrRecordNotFound) {
		return obj, ErrObjectNotFound
	} else if err != nil {
		return obj, pkgErrors.Wrap(err, "finding file object")
	}

	if obj.UserID != user.ID {
		return obj, ErrObjectForbidden
	}

	return obj, nil
}

// CreateDownloadGrant signs a URL for downloading the given object
func (a *App) CreateDownloadGrant(ctx context.Context, user database.User, fileKey string) (string, error) {
	if _, err := a.findOwnedObject(user, fileKey); err != nil {
		return "", err
	}

	downloadURL, err := a.Blob.SignGet(ctx, fileKey)
	if err != nil {
		return "", pkgErrors.Wrap(err, "signing download url")
	}

	return downloadURL, nil
}

// DeleteObject removes the object from the object storage, tombstones its
// record and releases its quota share
func (a *App) DeleteObject(ctx context.Context, user database.User, fileKey string) error {
	obj, err := a.findOwnedObject(user, fileKey)
	if err != nil {
		return err
	}

	if err := a.Blob.Delete(ctx, fileKey); err != nil {
		return pkgErrors.Wrap(err, "deleting the object")
	}

	tx := a.DB.Begin()

	if err := tx.Model(&database.FileObject{}).Where("id = ?", obj.ID).
		Update("deleted_at", a.now()).Error; err != nil {
		tx.Rollback()
		return pkgErrors.Wrap(err, "tombstoning file object")
	}

	usage := user.StorageUsage - obj.FileSize
	if usage < 0 {
		usage = 0
	}
	if err := tx.Model(&database.User{}).Where("id = ?", user.ID).
		Update("storage_usage", usage).Error; err != nil {
		tx.Rollback()
		return pkgErrors.Wrap(err, "updating storage usage")
	}

	if err := tx.Commit().Error; err != nil {
		return pkgErrors.Wrap(err, "committing transaction")
	}

	return nil
}
