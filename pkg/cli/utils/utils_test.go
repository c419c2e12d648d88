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

package utils

import (
	"testing"

	"github.com/folioapp/folio/pkg/assert"
)

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		input    int64
		expected string
	}{
		{input: 0, expected: "0 B"},
		{input: 512, expected: "512 B"},
		{input: 1024, expected: "1.0 KB"},
		{input: 1536, expected: "1.5 KB"},
		{input: 490 * 1024 * 1024, expected: "490.0 MB"},
		{input: 2 * 1024 * 1024 * 1024, expected: "2.0 GB"},
	}

	for _, tc := range testCases {
		got := FormatBytes(tc.input)
		assert.Equal(t, got, tc.expected, "formatted size mismatch")
	}
}
