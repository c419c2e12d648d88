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

package remove

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/folioapp/folio/pkg/cli/context"
	"github.com/folioapp/folio/pkg/cli/database"
	"github.com/folioapp/folio/pkg/cli/fingerprint"
	"github.com/folioapp/folio/pkg/cli/infra"
	"github.com/folioapp/folio/pkg/cli/log"
	"github.com/folioapp/folio/pkg/cli/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var yesFlag bool

var example = `
 * Remove a book from the library by its hash prefix
 folio remove d41d8c9`

func preRun(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("Incorrect number of argument")
	}

	return nil
}

// NewCmd returns a new remove command
func NewCmd(ctx context.FolioCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove <book>",
		Short:   "Remove a book from the library",
		Aliases: []string{"rm", "d", "delete"},
		Example: example,
		PreRunE: preRun,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.BoolVarP(&yesFlag, "yes", "y", false, "remove the book without confirmation")

	return cmd
}

// resolveBook finds a single book whose hash starts with the given prefix
func resolveBook(db *database.DB, prefix string) (database.Book, error) {
	if fingerprint.IsFingerprint(prefix) {
		return database.GetBook(db, prefix)
	}

	rows, err := db.Query("SELECT book_hash FROM books WHERE book_hash LIKE ? AND deleted_at = 0", prefix+"%")
	if err != nil {
		return database.Book{}, errors.Wrap(err, "querying books")
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return database.Book{}, errors.Wrap(err, "scanning a row")
		}

		hashes = append(hashes, hash)
	}

	if len(hashes) == 0 {
		return database.Book{}, sql.ErrNoRows
	}
	if len(hashes) > 1 {
		return database.Book{}, errors.Errorf("ambiguous book %s: matches %s", prefix, strings.Join(hashes, ", "))
	}

	return database.GetBook(db, hashes[0])
}

// Do tombstones the book so the deletion propagates on the next sync. Its
// config and notes are left alone; orphans are tolerated and a reading
// position survives re-adding the same file. The book file is removed from
// the local library.
func Do(ctx context.FolioCtx, book database.Book) error {
	db := ctx.DB
	now := ctx.Clock.Now().UnixMilli()

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning a transaction")
	}

	if err := book.MarkDeleted(tx, now); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "marking the book deleted")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}

	filename := fmt.Sprintf("%s.%s", book.BookHash, strings.ToLower(book.Format))
	if err := os.Remove(filepath.Join(ctx.Paths.Books, filename)); err != nil && !os.IsNotExist(err) {
		log.Error(errors.Wrap(err, "removing the book file").Error())
	}

	return nil
}

func newRun(ctx context.FolioCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		book, err := resolveBook(ctx.DB, args[0])
		if errors.Cause(err) == sql.ErrNoRows {
			log.Errorf("book %s not found\n", args[0])
			return nil
		} else if err != nil {
			return errors.Wrap(err, "finding the book")
		}

		if !yesFlag {
			question := fmt.Sprintf("delete book %q", book.Title)
			confirmed, err := ui.Confirm(question, false)
			if err != nil {
				return errors.Wrap(err, "getting confirmation")
			}
			if !confirmed {
				log.Info("aborted\n")
				return nil
			}
		}

		if err := Do(ctx, book); err != nil {
			return errors.Wrap(err, "removing the book")
		}

		log.Successf("removed %s\n", book.Title)

		return nil
	}
}
