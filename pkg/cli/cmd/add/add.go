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

package add

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/folioapp/folio/pkg/cli/cmd/upload"
	"github.com/folioapp/folio/pkg/cli/context"
	"github.com/folioapp/folio/pkg/cli/database"
	"github.com/folioapp/folio/pkg/cli/fingerprint"
	"github.com/folioapp/folio/pkg/cli/infra"
	"github.com/folioapp/folio/pkg/cli/log"
	"github.com/folioapp/folio/pkg/cli/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var titleFlag string
var authorFlag string
var tagsFlag []string
var uploadFlag bool

var example = `
 * Add a book to the library
 folio add ./the-time-machine.epub

 * Provide metadata explicitly
 folio add ./the-time-machine.epub --title "The Time Machine" --author "H. G. Wells" --tag fiction`

// supported book file extensions
var supportedFormats = map[string]bool{
	"EPUB": true,
	"PDF":  true,
	"MOBI": true,
	"CBZ":  true,
	"FB2":  true,
	"FBZ":  true,
}

func preRun(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("Incorrect number of argument")
	}

	return nil
}

// NewCmd returns a new add command
func NewCmd(ctx context.FolioCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add <file>",
		Short:   "Add a book to the library",
		Aliases: []string{"a", "import"},
		Example: example,
		PreRunE: preRun,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.StringVar(&titleFlag, "title", "", "the title of the book (defaults to the file name)")
	f.StringVar(&authorFlag, "author", "", "the author of the book")
	f.StringSliceVar(&tagsFlag, "tag", nil, "a tag for the book. Can be repeated.")
	f.BoolVar(&uploadFlag, "upload", false, "also upload the book file to the cloud storage")

	return cmd
}

func getFormat(path string) (string, error) {
	ext := strings.TrimPrefix(strings.ToUpper(filepath.Ext(path)), ".")
	if !supportedFormats[ext] {
		return "", errors.Errorf("unsupported format %s", ext)
	}

	return ext, nil
}

func getTitle(path string) string {
	if titleFlag != "" {
		return titleFlag
	}

	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// libraryFilename is the canonical name of a book file inside the books dir
func libraryFilename(bookHash, format string) string {
	return fmt.Sprintf("%s.%s", bookHash, strings.ToLower(format))
}

// Do adds the book at the given path to the library and returns the book
func Do(ctx context.FolioCtx, path string) (database.Book, error) {
	format, err := getFormat(path)
	if err != nil {
		return database.Book{}, err
	}

	hash, err := fingerprint.PartialMD5File(path)
	if err != nil {
		return database.Book{}, errors.Wrap(err, "fingerprinting the file")
	}

	db := ctx.DB

	_, err = database.GetBook(db, hash)
	if err == nil {
		return database.Book{}, errors.Errorf("book %s already exists in the library", fingerprint.ShortHash(hash))
	} else if err != sql.ErrNoRows {
		return database.Book{}, errors.Wrap(err, "looking up the book")
	}

	dest := filepath.Join(ctx.Paths.Books, libraryFilename(hash, format))
	if err := utils.CopyFile(path, dest); err != nil {
		return database.Book{}, errors.Wrap(err, "copying the file into the library")
	}

	now := ctx.Clock.Now().UnixMilli()
	book := database.Book{
		BookHash:  hash,
		Format:    format,
		Title:     getTitle(path),
		Author:    authorFlag,
		Tags:      tagsFlag,
		CreatedAt: now,
		UpdatedAt: now,
		Dirty:     true,
	}

	tx, err := db.Begin()
	if err != nil {
		return database.Book{}, errors.Wrap(err, "beginning a transaction")
	}

	if err := book.Insert(tx); err != nil {
		tx.Rollback()
		return database.Book{}, errors.Wrap(err, "inserting the book")
	}

	config := database.BookConfig{
		BookHash:  hash,
		CreatedAt: now,
		UpdatedAt: now,
		Dirty:     true,
	}
	if err := config.Insert(tx); err != nil {
		tx.Rollback()
		return database.Book{}, errors.Wrap(err, "inserting the book config")
	}

	if err := tx.Commit(); err != nil {
		return database.Book{}, errors.Wrap(err, "committing transaction")
	}

	return book, nil
}

func newRun(ctx context.FolioCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		book, err := Do(ctx, args[0])
		if err != nil {
			return errors.Wrap(err, "adding the book")
		}

		log.Successf("added %s (%s)\n", book.Title, fingerprint.ShortHash(book.BookHash))

		if uploadFlag {
			if ctx.SessionKey == "" {
				return errors.New("not logged in")
			}

			return upload.Do(ctx, []database.Book{book})
		}

		return nil
	}
}
