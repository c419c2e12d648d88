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

package fetch

import (
	gocontext "context"
	"fmt"
	"path/filepath"
	"strings"

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
 * Download all book files missing from the local library
 folio fetch

 * Download one book by its hash
 folio fetch d8f9a2b`

// NewCmd returns a new fetch command
func NewCmd(ctx context.FolioCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fetch [hash]",
		Short:   "Download book files from the cloud storage",
		Example: example,
		RunE:    newRun(ctx),
	}

	return cmd
}

func bookFilename(b database.Book) string {
	return fmt.Sprintf("%s.%s", b.BookHash, strings.ToLower(b.Format))
}

// getMissing returns the books that are in the cloud storage but whose files
// are absent from the local library
func getMissing(ctx context.FolioCtx) ([]database.Book, error) {
	books, err := database.ListBooks(ctx.DB, false)
	if err != nil {
		return nil, errors.Wrap(err, "listing books")
	}

	var ret []database.Book
	for _, b := range books {
		if b.UploadedAt == 0 {
			continue
		}

		ok, err := utils.FileExists(filepath.Join(ctx.Paths.Books, bookFilename(b)))
		if err != nil {
			return nil, errors.Wrapf(err, "checking the file of book %s", fingerprint.ShortHash(b.BookHash))
		}
		if !ok {
			ret = append(ret, b)
		}
	}

	return ret, nil
}

// fetchOne downloads the file of one book and records the download on the
// book. The download state is local bookkeeping, so the book stays clean.
func fetchOne(ctx context.FolioCtx, store storage.Store, b database.Book, fn transfer.ProgressFn) error {
	filename := bookFilename(b)
	localPath := filepath.Join(ctx.Paths.Books, filename)

	if err := store.DownloadFile(gocontext.Background(), filename, localPath, fn); err != nil {
		return err
	}

	tx, err := ctx.DB.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning a transaction")
	}

	b.DownloadedAt = ctx.Clock.Now().UnixMilli()
	if err := b.Update(tx); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "recording the download")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}

	return nil
}

// Do downloads the files of the given books, reporting overall progress
func Do(ctx context.FolioCtx, books []database.Book) error {
	if len(books) == 0 {
		log.Info("nothing to fetch\n")
		return nil
	}

	store := storage.NewStore(ctx)

	for i, b := range books {
		log.Infof("fetching %s %s\n", fingerprint.ShortHash(b.BookHash), b.Title)

		fn := transfer.BatchHandler(len(books), i, func(pct float64) {
			fmt.Printf("\r  %.0f%%", pct)
		})

		err := fetchOne(ctx, store, b, fn)
		fmt.Println()
		if err != nil {
			return errors.Wrapf(err, "fetching book %s", fingerprint.ShortHash(b.BookHash))
		}
	}

	log.Successf("fetched %d book(s)\n", len(books))

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
			missing, err := getMissing(ctx)
			if err != nil {
				return err
			}
			books = missing
		}

		return Do(ctx, books)
	}
}
