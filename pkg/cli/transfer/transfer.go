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

// Package transfer moves book files to and from signed blob URLs while
// reporting progress
package transfer

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/folioapp/folio/pkg/clock"
	"github.com/pkg/errors"
)

// ErrMissingContentLength is returned by a download when the server does not
// advertise the body size. Progress cannot be tracked without it.
var ErrMissingContentLength = errors.New("cannot track progress: Content-Length missing")

// Progress describes the state of a transfer at a point in time. Speed is the
// cumulative average in bytes per second since the transfer started.
type Progress struct {
	Transferred int64
	Total       int64
	Speed       float64
}

// ProgressFn receives progress updates during a transfer. It may be nil.
type ProgressFn func(p Progress)

// Transport moves a single file to or from a signed URL. Alternative
// runtimes provide their own implementation.
type Transport interface {
	Upload(ctx context.Context, url string, src io.Reader, size int64, fn ProgressFn) error
	Download(ctx context.Context, url string, dst io.Writer, fn ProgressFn) error
}

// HTTPTransport is a Transport that PUTs and GETs over plain HTTP
type HTTPTransport struct {
	Client *http.Client
	Clock  clock.Clock
}

// NewHTTPTransport returns an HTTPTransport using the given client
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	return &HTTPTransport{Client: client, Clock: clock.New()}
}

// tracker accumulates transferred bytes and emits progress updates
type tracker struct {
	clock       clock.Clock
	fn          ProgressFn
	total       int64
	transferred int64
	startedAt   int64
}

func newTracker(c clock.Clock, total int64, fn ProgressFn) *tracker {
	return &tracker{
		clock:     c,
		fn:        fn,
		total:     total,
		startedAt: c.Now().UnixMilli(),
	}
}

func (t *tracker) add(n int) {
	t.transferred += int64(n)

	if t.fn == nil {
		return
	}

	elapsed := float64(t.clock.Now().UnixMilli()-t.startedAt) / 1000
	var speed float64
	if elapsed > 0 {
		speed = float64(t.transferred) / elapsed
	}

	t.fn(Progress{Transferred: t.transferred, Total: t.total, Speed: speed})
}

// trackingReader reports progress as the body is consumed by the HTTP client
type trackingReader struct {
	r io.Reader
	t *tracker
}

func (tr *trackingReader) Read(p []byte) (int, error) {
	n, err := tr.r.Read(p)
	if n > 0 {
		tr.t.add(n)
	}

	return n, err
}

// Upload PUTs size bytes from src to the signed URL
func (t *HTTPTransport) Upload(ctx context.Context, url string, src io.Reader, size int64, fn ProgressFn) error {
	tr := newTracker(t.Clock, size, fn)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, &trackingReader{r: src, t: tr})
	if err != nil {
		return errors.Wrap(err, "constructing request")
	}
	req.ContentLength = size

	res, err := t.Client.Do(req)
	if err != nil {
		return errors.Wrap(err, "uploading file")
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return errors.Errorf("upload failed with status %d", res.StatusCode)
	}

	return nil
}

// Download GETs the signed URL and streams the body to dst. It fails with
// ErrMissingContentLength when the response carries no Content-Length.
func (t *HTTPTransport) Download(ctx context.Context, url string, dst io.Writer, fn ProgressFn) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "constructing request")
	}

	res, err := t.Client.Do(req)
	if err != nil {
		return errors.Wrap(err, "downloading file")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return errors.Errorf("download failed with status %d", res.StatusCode)
	}
	if res.ContentLength < 0 {
		return ErrMissingContentLength
	}

	tr := newTracker(t.Clock, res.ContentLength, fn)
	if _, err := io.Copy(dst, &trackingReader{r: res.Body, t: tr}); err != nil {
		return errors.Wrap(err, "writing file content")
	}

	return nil
}

// DownloadFile downloads the signed URL into the file at path, creating it
// with a temporary name first so a failed download never leaves a partial
// file behind
func DownloadFile(ctx context.Context, t Transport, url, path string, fn ProgressFn) error {
	tmp := path + ".part"

	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "creating the output file")
	}

	if err := t.Download(ctx, url, f, fn); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "closing the output file")
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "moving the file into place")
	}

	return nil
}

// BatchHandler scales per-file progress into an aggregate percentage across
// a batch of totalFiles files, completed of which are already done. The
// returned handler reports 0-100.
func BatchHandler(totalFiles, completed int, fn func(pct float64)) ProgressFn {
	return func(p Progress) {
		if fn == nil || totalFiles == 0 {
			return
		}

		var fraction float64
		if p.Total > 0 {
			fraction = float64(p.Transferred) / float64(p.Total)
		}

		fn((float64(completed) + fraction) / float64(totalFiles) * 100)
	}
}
