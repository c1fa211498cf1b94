// Copyright © 2025 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package proposals

type CategoryStat struct {
	Count int     `json:"count"`
	Share float64 `json:"share"`
}

type Statistics struct {
	TotalCount           int                     `json:"totalCount"`
	TotalPublicValue     int64                   `json:"totalPublicValue"`
	VerifiedCount        int                     `json:"verifiedCount"`
	DistinctCreators     int                     `json:"distinctCreators"`
	VerifiedRatio        float64                 `json:"verifiedRatio"`
	CategoryDistribution map[string]CategoryStat `json:"categoryDistribution"`
}

// ComputeStatistics derives the display aggregates from the full
// (unfiltered) record set. Pure - no store access, no side effects.
// All ratios are 0 when the set is empty.
func ComputeStatistics(records []*ProposalRecord) *Statistics {
	stats := &Statistics{
		CategoryDistribution: map[string]CategoryStat{},
	}
	creators := map[string]bool{}
	categoryCounts := map[string]int{}
	for _, r := range records {
		stats.TotalCount++
		stats.TotalPublicValue += r.PublicAmountPrimary
		if r.IsVerified {
			stats.VerifiedCount++
		}
		creators[r.Creator] = true
		categoryCounts[r.Category]++
	}
	stats.DistinctCreators = len(creators)
	if stats.TotalCount > 0 {
		stats.VerifiedRatio = float64(stats.VerifiedCount) / float64(stats.TotalCount)
		for category, count := range categoryCounts {
			stats.CategoryDistribution[category] = CategoryStat{
				Count: count,
				Share: float64(count) / float64(stats.TotalCount),
			}
		}
	}
	return stats
}
