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

package ls

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/folioapp/folio/pkg/cli/context"
	"github.com/folioapp/folio/pkg/cli/fingerprint"
	"github.com/folioapp/folio/pkg/cli/infra"
	"github.com/folioapp/folio/pkg/cli/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var example = `
 * List all books in the library
 folio ls`

// bookInfo is an information about the book to be printed on screen
type bookInfo struct {
	BookHash  string
	Title     string
	Author    string
	NoteCount int
	Dirty     bool
}

// NewCmd returns a new ls command
func NewCmd(ctx context.FolioCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ls",
		Short:   "List the books in the library",
		Aliases: []string{"l", "list"},
		Example: example,
		RunE:    newRun(ctx),
	}

	return cmd
}

func printBookLine(w io.Writer, info bookInfo) {
	var parts []string

	parts = append(parts, log.ColorYellow.Sprint(fingerprint.ShortHash(info.BookHash)))
	parts = append(parts, info.Title)
	if info.Author != "" {
		parts = append(parts, fmt.Sprintf("by %s", info.Author))
	}
	if info.NoteCount > 0 {
		parts = append(parts, log.ColorYellow.Sprintf("(%d)", info.NoteCount))
	}
	if info.Dirty {
		parts = append(parts, "*")
	}

	fmt.Fprintln(w, strings.Join(parts, " "))
}

func listBooks(ctx context.FolioCtx, w io.Writer) error {
	db := ctx.DB

	rows, err := db.Query(`SELECT books.book_hash, books.title, books.author, books.dirty, count(book_notes.id) note_count
	FROM books
	LEFT JOIN book_notes ON book_notes.book_hash = books.book_hash AND book_notes.deleted_at = 0
	WHERE books.deleted_at = 0
	GROUP BY books.book_hash
	ORDER BY books.title ASC;`)
	if err != nil {
		return errors.Wrap(err, "querying books")
	}
	defer rows.Close()

	infos := []bookInfo{}
	for rows.Next() {
		var info bookInfo
		err = rows.Scan(&info.BookHash, &info.Title, &info.Author, &info.Dirty, &info.NoteCount)
		if err != nil {
			return errors.Wrap(err, "scanning a row")
		}

		infos = append(infos, info)
	}

	for _, info := range infos {
		printBookLine(w, info)
	}

	return nil
}

func newRun(ctx context.FolioCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if err := listBooks(ctx, os.Stdout); err != nil {
			return errors.Wrap(err, "listing books")
		}

		return nil
	}
}
