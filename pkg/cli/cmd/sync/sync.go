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

package sync

import (
	"github.com/folioapp/folio/pkg/cli/client"
	"github.com/folioapp/folio/pkg/cli/consts"
	"github.com/folioapp/folio/pkg/cli/context"
	"github.com/folioapp/folio/pkg/cli/database"
	"github.com/folioapp/folio/pkg/cli/infra"
	"github.com/folioapp/folio/pkg/cli/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var example = `
  folio sync`

var isFullSync bool
var apiEndpointFlag string

// NewCmd returns a new sync command
func NewCmd(ctx context.FolioCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sync",
		Aliases: []string{"s"},
		Short:   "Sync the library with the server",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.BoolVarP(&isFullSync, "full", "f", false, "pull all records from the server instead of only those changed since the last sync.")
	f.StringVar(&apiEndpointFlag, "apiEndpoint", "", "API endpoint to connect to (defaults to value in config)")

	return cmd
}

// watermarkKeys maps each record kind to the system key holding its watermark
var watermarkKeys = map[string]string{
	client.KindBooks:   consts.SystemLastSyncedBooks,
	client.KindConfigs: consts.SystemLastSyncedConfigs,
	client.KindNotes:   consts.SystemLastSyncedNotes,
}

// kinds is the order in which record kinds are pulled. Books go first so that
// configs and notes always refer to a book the client already knows about.
var kinds = []string{client.KindBooks, client.KindConfigs, client.KindNotes}

func getWatermark(tx *database.DB, kind string) (int64, error) {
	var ret int64

	if err := database.GetSystem(tx, watermarkKeys[kind], &ret); err != nil {
		return ret, errors.Wrapf(err, "querying the %s watermark", kind)
	}

	return ret, nil
}

// pullKind pulls the server changes for one record kind and merges them into
// the local database. Returns the watermark to record for the kind.
func pullKind(ctx context.FolioCtx, tx *database.DB, kind string, since int64) (int64, error) {
	result, err := client.PullChanges(ctx, since, kind, "")
	if err != nil {
		return 0, errors.Wrapf(err, "pulling %s", kind)
	}

	log.Debug("pulled %d books, %d configs, %d notes for kind %s since %d\n",
		len(result.Books), len(result.Configs), len(result.Notes), kind, since)

	maxTS, err := mergeAll(tx, result)
	if err != nil {
		return 0, errors.Wrapf(err, "merging %s", kind)
	}

	if maxTS < since {
		maxTS = since
	}

	return maxTS, nil
}

// pushChanges sends the dirty local records to the server and applies the
// authoritative copies it echoes back. Returns the echoed result.
func pushChanges(ctx context.FolioCtx, tx *database.DB) (client.SyncResult, error) {
	var echoes client.SyncResult

	dirty, err := getDirty(tx)
	if err != nil {
		return echoes, errors.Wrap(err, "collecting local changes")
	}

	numDirty := len(dirty.Books) + len(dirty.Configs) + len(dirty.Notes)
	if numDirty == 0 {
		log.Debug("no local changes to send\n")
		return echoes, nil
	}

	log.Debug("sending %d books, %d configs, %d notes\n",
		len(dirty.Books), len(dirty.Configs), len(dirty.Notes))

	echoes, err = client.PushChanges(ctx, dirty)
	if err != nil {
		return echoes, errors.Wrap(err, "pushing changes")
	}

	if err := applyEchoes(tx, echoes); err != nil {
		return echoes, errors.Wrap(err, "applying the server copies")
	}

	return echoes, nil
}

// Do syncs the local library with the server. Records are pulled since the
// per-kind watermarks, merged, and local changes are pushed. Watermarks are
// written in the same transaction, so an interrupted sync is retried from the
// old watermarks and the merge makes the replay harmless.
func Do(ctx context.FolioCtx, fullSync bool) error {
	tx, err := ctx.DB.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning a transaction")
	}

	log.Info("resolving delta.")

	marks := map[string]int64{}
	for _, kind := range kinds {
		since, err := getWatermark(tx, kind)
		if err != nil {
			tx.Rollback()
			return err
		}
		if fullSync {
			since = 0
		}

		mark, err := pullKind(ctx, tx, kind, since)
		if err != nil {
			tx.Rollback()
			return err
		}
		marks[kind] = mark
	}

	log.Info("sending changes.")

	echoes, err := pushChanges(ctx, tx)
	if err != nil {
		tx.Rollback()
		return err
	}

	echoBooks, echoConfigs, echoNotes := resultMaxes(echoes)
	if echoBooks > marks[client.KindBooks] {
		marks[client.KindBooks] = echoBooks
	}
	if echoConfigs > marks[client.KindConfigs] {
		marks[client.KindConfigs] = echoConfigs
	}
	if echoNotes > marks[client.KindNotes] {
		marks[client.KindNotes] = echoNotes
	}

	for _, kind := range kinds {
		if err := database.UpdateSystem(tx, watermarkKeys[kind], marks[kind]); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "updating the %s watermark", kind)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}

	return nil
}

func newRun(ctx context.FolioCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if apiEndpointFlag != "" {
			ctx.APIEndpoint = apiEndpointFlag
		}

		if ctx.SessionKey == "" {
			return errors.New("not logged in")
		}

		if err := Do(ctx, isFullSync); err != nil {
			return err
		}

		log.Success("success\n")

		return nil
	}
}
