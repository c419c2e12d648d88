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

package dirs

import (
	"testing"

	"github.com/folioapp/folio/pkg/assert"
)

func TestCustomDirs(t *testing.T) {
	testCases := []struct {
		envKey   string
		envVal   string
		got      *string
		expected string
	}{
		{
			envKey:   envConfigHome,
			envVal:   "/tmp/folio-test/config",
			got:      &ConfigHome,
			expected: "/tmp/folio-test/config",
		},
		{
			envKey:   envDataHome,
			envVal:   "/tmp/folio-test/data",
			got:      &DataHome,
			expected: "/tmp/folio-test/data",
		},
		{
			envKey:   envCacheHome,
			envVal:   "/tmp/folio-test/cache",
			got:      &CacheHome,
			expected: "/tmp/folio-test/cache",
		},
	}

	for _, tc := range testCases {
		t.Setenv(tc.envKey, tc.envVal)

		Reload()

		assert.Equal(t, *tc.got, tc.expected, "result mismatch")
	}
}
