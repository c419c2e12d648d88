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

// Package fingerprint computes content fingerprints for book files. Instead of
// hashing the entire file, it hashes a fixed series of 1KiB windows at
// exponentially spaced offsets, so the cost stays constant regardless of the
// file size.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"regexp"

	"github.com/pkg/errors"
)

const windowSize = 1024

var regexFingerprint = regexp.MustCompile(`^[0-9a-f]{32}$`)

// PartialMD5 computes the fingerprint of the content readable through r.
// The window offsets are 0, then 1024<<(2*i) for i in [0, 10], clamped to
// size. Two files agree on the fingerprint iff they agree on every window.
func PartialMD5(r io.ReaderAt, size int64) (string, error) {
	h := md5.New()
	buf := make([]byte, windowSize)

	for i := -1; i <= 10; i++ {
		var start int64
		if i >= 0 {
			start = int64(windowSize) << (2 * i)
		}
		if start > size {
			start = size
		}
		if start >= size {
			break
		}

		end := start + windowSize
		if end > size {
			end = size
		}

		n, err := r.ReadAt(buf[:end-start], start)
		if err != nil && err != io.EOF {
			return "", errors.Wrap(err, "reading a window")
		}

		h.Write(buf[:n])
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// PartialMD5File computes the fingerprint of the file at the given path
func PartialMD5File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "opening the file")
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", errors.Wrap(err, "getting the file info")
	}

	ret, err := PartialMD5(f, fi.Size())
	if err != nil {
		return "", errors.Wrapf(err, "fingerprinting %s", path)
	}

	return ret, nil
}

// IsFingerprint checks if the given string is a valid fingerprint
func IsFingerprint(s string) bool {
	return regexFingerprint.MatchString(s)
}

// ShortHash returns the 7 character display form of a fingerprint. It is for
// presentation only and must never be used as an identifier.
func ShortHash(s string) string {
	if len(s) < 7 {
		return s
	}

	return s[:7]
}
