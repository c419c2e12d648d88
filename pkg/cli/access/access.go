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

// Package access reads plan and storage quota information out of session
// tokens. Tokens are decoded without signature verification; the server never
// trusts these claims for admission, they only let the client fail fast
// before attempting an upload that would be rejected.
package access

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Plan is a subscription plan name
type Plan string

// Subscription plans
const (
	PlanFree Plan = "free"
	PlanPlus Plan = "plus"
	PlanPro  Plan = "pro"
)

// Storage quotas in bytes per plan
var storageQuotas = map[Plan]int64{
	PlanFree: 500 * 1024 * 1024,
	PlanPlus: 2 * 1024 * 1024 * 1024,
	PlanPro:  10 * 1024 * 1024 * 1024,
}

// Quota returns the storage quota in bytes for the given plan. Unknown plans
// get the free quota.
func Quota(plan Plan) int64 {
	if q, ok := storageQuotas[plan]; ok {
		return q
	}

	return storageQuotas[PlanFree]
}

// PlanData decodes the plan, current storage usage and storage quota from a
// session token. A token without plan claims is treated as the free plan.
func PlanData(token string) (Plan, int64, int64, error) {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return "", 0, 0, errors.Wrap(err, "decoding token")
	}

	plan := PlanFree
	if v, ok := claims["plan"].(string); ok && v != "" {
		plan = Plan(v)
	}

	var usage int64
	if v, ok := claims["storage_usage_bytes"].(float64); ok {
		usage = int64(v)
	}

	return plan, usage, Quota(plan), nil
}

// Admit reports whether a file of the given size fits within the remaining
// quota
func Admit(usage, quota, fileSize int64) bool {
	return usage+fileSize <= quota
}
