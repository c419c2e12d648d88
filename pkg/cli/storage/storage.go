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

// Package storage moves book files between the local library and the user's
// cloud storage. Every transfer is a two step dance: obtain a grant from the
// API, then stream the file against the signed URL in the grant.
package storage

import (
	gocontext "context"
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/folioapp/folio/pkg/cli/client"
	"github.com/folioapp/folio/pkg/cli/context"
	"github.com/folioapp/folio/pkg/cli/transfer"
	"github.com/pkg/errors"
)

// ErrNotAuthenticated is returned when an operation requires a session but
// none is present
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrQuotaExceeded is returned when an upload would exceed the storage quota
type ErrQuotaExceeded struct {
	Usage int64
	Quota int64
}

func (e *ErrQuotaExceeded) Error() string {
	return fmt.Sprintf("storage quota exceeded (%d of %d bytes used)", e.Usage, e.Quota)
}

// quotaError extracts the usage figures from a 403 rejection body so the
// caller can show usage against quota
func quotaError(httpErr *client.HTTPError) *ErrQuotaExceeded {
	var body struct {
		Usage int64 `json:"usage"`
		Quota int64 `json:"quota"`
	}
	// a body that is not the expected JSON still yields a quota error,
	// just without the figures
	json.Unmarshal([]byte(httpErr.Message), &body)

	return &ErrQuotaExceeded{Usage: body.Usage, Quota: body.Quota}
}

// Store moves files to and from the user's cloud storage
type Store struct {
	Ctx       context.FolioCtx
	Transport transfer.Transport
}

// NewStore returns a Store using the HTTP transport
func NewStore(ctx context.FolioCtx) Store {
	return Store{
		Ctx:       ctx,
		Transport: transfer.NewHTTPTransport(ctx.HTTPClient),
	}
}

func (s Store) checkSession() error {
	if s.Ctx.SessionKey == "" || s.Ctx.UserID == "" {
		return ErrNotAuthenticated
	}

	return nil
}

// fileKey resolves a library-relative path to the user-scoped object key
func (s Store) fileKey(remotePath string) string {
	return path.Join(s.Ctx.UserID, remotePath)
}

// UploadFile uploads the file at localPath to the remote path, reporting
// progress to fn. The upload is admitted against the storage quota server
// side; a rejection surfaces as ErrQuotaExceeded.
func (s Store) UploadFile(ctx gocontext.Context, localPath, remotePath, bookHash string, fn transfer.ProgressFn) error {
	if err := s.checkSession(); err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(err, "opening the file")
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "getting the file info")
	}

	grant, err := client.GetUploadGrant(s.Ctx, remotePath, fi.Size(), bookHash)
	if err != nil {
		var httpErr *client.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsQuotaExceeded() {
			return quotaError(httpErr)
		}
		return errors.Wrap(err, "getting an upload grant")
	}

	if err := s.Transport.Upload(ctx, grant.UploadURL, f, fi.Size(), fn); err != nil {
		return errors.Wrapf(err, "uploading %s", remotePath)
	}

	return nil
}

// DownloadFile downloads the remote path into localPath, reporting progress
// to fn
func (s Store) DownloadFile(ctx gocontext.Context, remotePath, localPath string, fn transfer.ProgressFn) error {
	if err := s.checkSession(); err != nil {
		return err
	}

	grant, err := client.GetDownloadGrant(s.Ctx, s.fileKey(remotePath))
	if err != nil {
		return errors.Wrap(err, "getting a download grant")
	}

	if err := transfer.DownloadFile(ctx, s.Transport, grant.DownloadURL, localPath, fn); err != nil {
		return errors.Wrapf(err, "downloading %s", remotePath)
	}

	return nil
}

// DeleteFile removes the remote path from the cloud storage
func (s Store) DeleteFile(remotePath string) error {
	if err := s.checkSession(); err != nil {
		return err
	}

	if err := client.DeleteBlob(s.Ctx, s.fileKey(remotePath)); err != nil {
		return errors.Wrapf(err, "deleting %s", remotePath)
	}

	return nil
}
