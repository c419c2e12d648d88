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

package fingerprint

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/folioapp/folio/pkg/assert"
)

func makeContent(n int) []byte {
	ret := make([]byte, n)
	for i := range ret {
		ret[i] = byte(i % 251)
	}

	return ret
}

func TestPartialMD5SmallFile(t *testing.T) {
	// files under 1KiB fit in the first window, so the fingerprint is the
	// plain md5 of the content
	content := []byte("It was a bright cold day in April")
	sum := md5.Sum(content)

	got, err := PartialMD5(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, got, hex.EncodeToString(sum[:]), "fingerprint mismatch")
}

func TestPartialMD5Empty(t *testing.T) {
	sum := md5.Sum(nil)

	got, err := PartialMD5(bytes.NewReader(nil), 0)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, got, hex.EncodeToString(sum[:]), "fingerprint mismatch")
}

func TestPartialMD5Windows(t *testing.T) {
	// a 5000 byte file is covered by the windows [0, 1024), [1024, 2048)
	// and [4096, 5000)
	content := makeContent(5000)

	h := md5.New()
	h.Write(content[0:2048])
	h.Write(content[4096:5000])
	expected := hex.EncodeToString(h.Sum(nil))

	got, err := PartialMD5(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, got, expected, "fingerprint mismatch")
}

func TestPartialMD5IgnoresUnsampledBytes(t *testing.T) {
	c1 := makeContent(5000)
	c2 := makeContent(5000)
	c2[3000] ^= 0xff

	f1, err := PartialMD5(bytes.NewReader(c1), int64(len(c1)))
	if err != nil {
		t.Fatal(err)
	}
	f2, err := PartialMD5(bytes.NewReader(c2), int64(len(c2)))
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, f1, f2, "fingerprints should agree outside the windows")

	c2[100] ^= 0xff
	f3, err := PartialMD5(bytes.NewReader(c2), int64(len(c2)))
	if err != nil {
		t.Fatal(err)
	}

	assert.NotEqual(t, f1, f3, "fingerprints should differ inside a window")
}

func TestPartialMD5File(t *testing.T) {
	content := makeContent(3000)
	path := filepath.Join(t.TempDir(), "book.epub")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	expected, err := PartialMD5(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatal(err)
	}

	got, err := PartialMD5File(path)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, got, expected, "fingerprint mismatch")
}

func TestIsFingerprint(t *testing.T) {
	testCases := []struct {
		input    string
		expected bool
	}{
		{input: "d41d8c98f00b204e9800998ecf8427e0", expected: true},
		{input: "D41D8C98F00B204E9800998ECF8427E0", expected: false},
		{input: "d41d8c98f00b204e9800998ecf8427e", expected: false},
		{input: "d41d8c98f00b204e9800998ecf8427e00", expected: false},
		{input: "g41d8c98f00b204e9800998ecf8427e0", expected: false},
		{input: "", expected: false},
	}

	for _, tc := range testCases {
		assert.Equal(t, IsFingerprint(tc.input), tc.expected, tc.input)
	}
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, ShortHash("d41d8c98f00b204e9800998ecf8427e0"), "d41d8c9", "short hash mismatch")
	assert.Equal(t, ShortHash("abc"), "abc", "short input should pass through")
}
