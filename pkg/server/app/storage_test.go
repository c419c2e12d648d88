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

	"github.com/folioapp/folio/pkg/assert"
	"github.com/folioapp/folio/pkg/server/database"
	"github.com/pkg/errors"
)

func TestPlanQuota(t *testing.T) {
	assert.Equal(t, PlanQuota("free"), int64(500*1024*1024), "free quota mismatch")
	assert.Equal(t, PlanQuota("plus"), int64(2*1024*1024*1024), "plus quota mismatch")
	assert.Equal(t, PlanQuota("pro"), int64(10*1024*1024*1024), "pro quota mismatch")
	assert.Equal(t, PlanQuota("enterprise"), int64(500*1024*1024), "an unknown plan should get the free quota")
}

func TestCreateUploadGrant(t *testing.T) {
	a, blob, _ := NewTestApp(t)
	defer database.CloseTestDB(t, a.DB)

	user := CreateTestUser(t, a, "reader@example.com", "free")

	grant, err := a.CreateUploadGrant(context.Background(), user, "aaa1111122222333.epub", 1024, "aaa1111122222333")
	if err != nil {
		t.Fatal(errors.Wrap(err, "creating upload grant"))
	}

	wantKey := fmt.Sprintf("%s/aaa1111122222333.epub", user.UUID)
	assert.Equal(t, grant.FileKey, wantKey, "file key should be scoped to the user")
	assert.Equal(t, grant.UploadURL, fmt.Sprintf("https://blob.test/put/%s", wantKey), "upload url mismatch")
	assert.Equal(t, grant.Usage, int64(1024), "usage mismatch")
	assert.Equal(t, grant.Quota, int64(500*1024*1024), "quota mismatch")
	assert.Equal(t, len(blob.PutKeys), 1, "put key count mismatch")

	var after database.User
	if err := a.DB.Where("id = ?", user.ID).First(&after).Error; err != nil {
		t.Fatal(errors.Wrap(err, "finding user"))
	}
	assert.Equal(t, after.StorageUsage, int64(1024), "stored usage mismatch")
}

func TestCreateUploadGrantQuotaBoundary(t *testing.T) {
	a, _, _ := NewTestApp(t)
	defer database.CloseTestDB(t, a.DB)

	user := CreateTestUser(t, a, "reader@example.com", "free")
	user.StorageUsage = 490 * 1024 * 1024
	if err := a.DB.Save(&user).Error; err != nil {
		t.Fatal(errors.Wrap(err, "seeding usage"))
	}

	// 490 MiB used + 20 MiB would cross the 500 MiB line
	_, err := a.CreateUploadGrant(context.Background(), user, "aaa1111122222333.epub", 20*1024*1024, "aaa1111122222333")
	var quotaErr *ErrQuotaExceeded
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected a quota error, got %v", err)
	}
	assert.Equal(t, quotaErr.Usage, int64(490*1024*1024), "quota error usage mismatch")
	assert.Equal(t, quotaErr.Quota, int64(500*1024*1024), "quota error quota mismatch")

	// an upload that lands exactly on the quota is admitted
	grant, err := a.CreateUploadGrant(context.Background(), user, "bbb1111122222333.epub", 10*1024*1024, "bbb1111122222333")
	if err != nil {
		t.Fatal(errors.Wrap(err, "creating upload grant at the boundary"))
	}
	assert.Equal(t, grant.Usage, int64(500*1024*1024), "usage mismatch")
}

func TestCreateUploadGrantDedup(t *testing.T) {
	a, blob, _ := NewTestApp(t)
	defer database.CloseTestDB(t, a.DB)

	user := CreateTestUser(t, a, "reader@example.com", "free")

	if _, err := a.CreateUploadGrant(context.Background(), user, "aaa1111122222333.epub", 1024, "aaa1111122222333"); err != nil {
		t.Fatal(errors.Wrap(err, "creating upload grant"))
	}

	// reload so the second grant sees the updated usage
	if err := a.DB.Where("id = ?", user.ID).First(&user).Error; err != nil {
		t.Fatal(errors.Wrap(err, "reloading user"))
	}

	grant, err := a.CreateUploadGrant(context.Background(), user, "aaa1111122222333.epub", 1024, "aaa1111122222333")
	if err != nil {
		t.Fatal(errors.Wrap(err, "creating upload grant again"))
	}

	assert.Equal(t, grant.Usage, int64(1024), "a re-upload should not count against the quota again")
	assert.Equal(t, len(blob.PutKeys), 2, "both grants should sign an upload url")

	var count int64
	if err := a.DB.Model(&database.FileObject{}).Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
		t.Fatal(errors.Wrap(err, "counting file objects"))
	}
	assert.Equal(t, count, int64(1), "the existing file object should be reused")
}

func TestCreateDownloadGrant(t *testing.T) {
	a, blob, _ := NewTestApp(t)
	defer database.CloseTestDB(t, a.DB)

	user := CreateTestUser(t, a, "reader@example.com", "free")
	other := CreateTestUser(t, a, "other@example.com", "free")

	grant, err := a.CreateUploadGrant(context.Background(), user, "aaa1111122222333.epub", 1024, "aaa1111122222333")
	if err != nil {
		t.Fatal(errors.Wrap(err, "creating upload grant"))
	}

	url, err := a.CreateDownloadGrant(context.Background(), user, grant.FileKey)
	if err != nil {
		t.Fatal(errors.Wrap(err, "creating download grant"))
	}
	assert.Equal(t, url, fmt.Sprintf("https://blob.test/get/%s", grant.FileKey), "download url mismatch")
	assert.Equal(t, len(blob.GetKeys), 1, "get key count mismatch")

	_, err = a.CreateDownloadGrant(context.Background(), user, "no/such-key.epub")
	assert.Equal(t, err, ErrObjectNotFound, "unknown key error mismatch")

	_, err = a.CreateDownloadGrant(context.Background(), other, grant.FileKey)
	assert.Equal(t, err, ErrObjectForbidden, "foreign key error mismatch")
}

func TestDeleteObject(t *testing.T) {
	a, blob, _ := NewTestApp(t)
	defer database.CloseTestDB(t, a.DB)

	user := CreateTestUser(t, a, "reader@example.com", "free")

	grant, err := a.CreateUploadGrant(context.Background(), user, "aaa1111122222333.epub", 1024, "aaa1111122222333")
	if err != nil {
		t.Fatal(errors.Wrap(err, "creating upload grant"))
	}
	if err := a.DB.Where("id = ?", user.ID).First(&user).Error; err != nil {
		t.Fatal(errors.Wrap(err, "reloading user"))
	}

	if err := a.DeleteObject(context.Background(), user, grant.FileKey); err != nil {
		t.Fatal(errors.Wrap(err, "deleting object"))
	}

	assert.Equal(t, len(blob.DeletedKeys), 1, "deleted key count mismatch")
	assert.Equal(t, blob.DeletedKeys[0], grant.FileKey, "deleted key mismatch")

	var obj database.FileObject
	if err := a.DB.Where("file_key = ?", grant.FileKey).First(&obj).Error; err != nil {
		t.Fatal(errors.Wrap(err, "finding file object"))
	}
	assert.NotEqual(t, obj.DeletedAt, int64(0), "the file object should be tombstoned")

	var after database.User
	if err := a.DB.Where("id = ?", user.ID).First(&after).Error; err != nil {
		t.Fatal(errors.Wrap(err, "finding user"))
	}
	assert.Equal(t, after.StorageUsage, int64(0), "usage should be released")

	// a tombstoned object can no longer be fetched
	_, err = a.CreateDownloadGrant(context.Background(), user, grant.FileKey)
	assert.Equal(t, err, ErrObjectNotFound, "tombstoned key error mismatch")
}
