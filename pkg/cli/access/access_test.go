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

package access

import (
	"testing"

	"github.com/folioapp/folio/pkg/assert"
	"github.com/golang-jwt/jwt/v5"
)

func mustToken(t *testing.T, claims jwt.MapClaims) string {
	ret, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatal(err)
	}

	return ret
}

func TestPlanData(t *testing.T) {
	testCases := []struct {
		claims        jwt.MapClaims
		expectedPlan  Plan
		expectedUsage int64
		expectedQuota int64
	}{
		{
			claims:        jwt.MapClaims{"plan": "pro", "storage_usage_bytes": 1234567},
			expectedPlan:  PlanPro,
			expectedUsage: 1234567,
			expectedQuota: 10 * 1024 * 1024 * 1024,
		},
		{
			claims:        jwt.MapClaims{"plan": "plus"},
			expectedPlan:  PlanPlus,
			expectedUsage: 0,
			expectedQuota: 2 * 1024 * 1024 * 1024,
		},
		{
			claims:        jwt.MapClaims{"sub": "user-1"},
			expectedPlan:  PlanFree,
			expectedUsage: 0,
			expectedQuota: 500 * 1024 * 1024,
		},
		{
			claims:        jwt.MapClaims{"plan": "enterprise"},
			expectedPlan:  Plan("enterprise"),
			expectedUsage: 0,
			expectedQuota: 500 * 1024 * 1024,
		},
	}

	for _, tc := range testCases {
		plan, usage, quota, err := PlanData(mustToken(t, tc.claims))
		if err != nil {
			t.Fatal(err)
		}

		assert.Equal(t, plan, tc.expectedPlan, "plan mismatch")
		assert.Equal(t, usage, tc.expectedUsage, "usage mismatch")
		assert.Equal(t, quota, tc.expectedQuota, "quota mismatch")
	}
}

func TestPlanDataInvalidToken(t *testing.T) {
	_, _, _, err := PlanData("not-a-token")
	assert.NotEqual(t, err, nil, "expected an error")
}

func TestAdmit(t *testing.T) {
	mib := int64(1024 * 1024)
	quota := 500 * mib

	assert.Equal(t, Admit(490*mib, quota, 20*mib), false, "upload past the quota should be rejected")
	assert.Equal(t, Admit(490*mib, quota, 10*mib), true, "upload exactly at the quota should be admitted")
	assert.Equal(t, Admit(0, quota, 0), true, "empty file should be admitted")
}
