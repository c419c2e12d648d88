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

package upload

import (
	gocontext "context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/folioapp/folio/pkg/cli/access"
	"github.com/folioapp/folio/pkg/cli/context"
	"github.com/folioapp/folio/pkg/cli/database"
	"github.com/folioapp/folio/pkg/cli/fingerprint"
	"github.com/folioapp/folio/pkg/cli/infra"
	"github.com/folioapp/folio/pkg/cli/log"
	"github.com/folioapp/folio/pkg/cli/storage"
	"github.com/folioapp/folio/pkg/cli/transfer"
	"github.com/folioapp/folio/pkg/cli/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var example = `
 * Upload all book files not yet in the cloud storage
 folio upload

 * Upload one book by its hash
 folio upload d8f9a2b`

// NewCmd returns a new upload command
func NewCmd(ctx context.FolioCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "upload [hash]",
		Short:   "Upload book files to the cloud storage",
		Example: example,
		RunE:    newRun(ctx),
	}

	return cmd
}

func bookFilename(b database.Book) string {
	return fmt.Sprintf("%s.%s", b.BookHash, strings.ToLower(b.Format))
}

// getPending returns the books whose files have not been uploaded yet
func getPending(db *database.DB) ([]database.Book, error) {
	books, err := database.ListBooks(db, false)
	if err != nil {
		return nil, errors.Wrap(err, "listing books")
	}

	var ret []database.Book
	for _, b := range books {
		if b.UploadedAt == 0 {
			ret = append(ret, b)
		}
	}

	return ret, nil
}

// checkQuota rejects an upload that would exceed the storage quota without
// making a round trip. The server admits uploads authoritatively; a stale or
// unreadable session token simply skips the check.
func checkQuota(ctx context.FolioCtx, fileSize int64) error {
	plan, usage, quota, err := access.PlanData(ctx.SessionKey)
	if err != nil {
		log.Debug("skipping the local quota check: %v\n", err)
		return nil
	}

	if !access.Admit(usage, quota, fileSize) {
		return errors.Errorf("the file would exceed the storage quota of the %s plan (%d of %d bytes used)", plan, usage, quota)
	}

	return nil
}

// uploadOne uploads the file of one book and records the upload on the book
func uploadOne(ctx context.FolioCtx, store storage.Store, b database.Book, fn transfer.ProgressFn) error {
	filename := bookFilename(b)
	localPath := filepath.Join(ctx.Paths.Books, filename)

	fi, err := os.Stat(localPath)
	if err != nil {
		return errors.Wrapf(err, "looking up the file of book %s", fingerprint.ShortHash(b.BookHash))
	}

	if err := checkQuota(ctx, fi.Size()); err != nil {
		return err
	}

	if err := store.UploadFile(gocontext.Background(), localPath, filename, b.BookHash, fn); err != nil {
		return err
	}

	tx, err := ctx.DB.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning a transaction")
	}

	now := ctx.Clock.Now().UnixMilli()
	b.UploadedAt = now
	b.UpdatedAt = now
	b.Dirty = true
	if err := b.Update(tx); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "recording the upload")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}

	return nil
}

// Do uploads the files of the given books, reporting overall progress
func Do(ctx context.FolioCtx, books []database.Book) error {
	if len(books) == 0 {
		log.Info("nothing to upload\n")
		return nil
	}

	store := storage.NewStore(ctx)

	for i, b := range books {
		log.Infof("uploading %s %s\n", fingerprint.ShortHash(b.BookHash), b.Title)

		fn := transfer.BatchHandler(len(books), i, func(pct float64) {
			fmt.Printf("\r  %.0f%%", pct)
		})

		err := uploadOne(ctx, store, b, fn)
		fmt.Println()
		if err != nil {
			var quotaErr *storage.ErrQuotaExceeded
			if errors.As(err, &quotaErr) {
				return errors.Errorf("the server rejected the upload: %s of %s used",
					utils.FormatBytes(quotaErr.Usage), utils.FormatBytes(quotaErr.Quota))
			}

			return errors.Wrapf(err, "uploading book %s", fingerprint.ShortHash(b.BookHash))
		}
	}

	log.Successf("uploaded %d book(s)\n", len(books))

	return nil
}

// resolve finds the non-deleted book matching the given hash or hash prefix
func resolve(db *database.DB, hash string) (database.Book, error) {
	if fingerprint.IsFingerprint(hash) {
		b, err := database.GetBook(db, hash)
		if err != nil {
			return b, errors.Wrap(err, "finding the book")
		}

		return b, nil
	}

	books, err := database.ListBooks(db, false)
	if err != nil {
		return database.Book{}, errors.Wrap(err, "listing books")
	}

	var matches []database.Book
	for _, b := range books {
		if strings.HasPrefix(b.BookHash, hash) {
			matches = append(matches, b)
		}
	}

	if len(matches) == 0 {
		return database.Book{}, errors.Errorf("no book found for %s", hash)
	}
	if len(matches) > 1 {
		return database.Book{}, errors.Errorf("%s is ambiguous. %d books match", hash, len(matches))
	}

	return matches[0], nil
}

func newRun(ctx context.FolioCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if ctx.SessionKey == "" {
			return errors.New("not logged in")
		}

		var books []database.Book
		if len(args) > 0 {
			b, err := resolve(ctx.DB, args[0])
			if err != nil {
				return err
			}
			books = []database.Book{b}
		} else {
			pending, err := getPending(ctx.DB)
			if err != nil {
				return err
			}
			books = pending
		}

		return Do(ctx, books)
	}
}
