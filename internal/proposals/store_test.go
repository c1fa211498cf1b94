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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRecords() []*ProposalRecord {
	revealed := uint64(50)
	return []*ProposalRecord{
		{
			ID:                  "p1",
			Name:                "DeFi Yield",
			Description:         "stablecoin strategy",
			Creator:             "0xaaaa",
			PublicAmountPrimary: 100,
			Category:            "crypto",
			Status:              "active",
		},
		{
			ID:                  "p2",
			Name:                "NFT Fund",
			Description:         "generative art",
			Creator:             "0xbbbb",
			PublicAmountPrimary: 50,
			IsVerified:          true,
			RevealedAmount:      &revealed,
			Category:            "crypto",
			Status:              "active",
		},
		{
			ID:                  "p3",
			Name:                "Solar Farm",
			Description:         "renewable infrastructure",
			Creator:             "0xaaaa",
			PublicAmountPrimary: 200,
			Category:            "infrastructure",
			Status:              "completed",
		},
	}
}

func TestStoreReplaceAndSnapshot(t *testing.T) {
	s := NewStore()
	assert.Equal(t, 0, s.Len())

	s.Replace(testRecords())
	assert.Equal(t, 3, s.Len())

	snapshot := s.Snapshot()
	assert.Equal(t, []string{"p1", "p2", "p3"}, []string{snapshot[0].ID, snapshot[1].ID, snapshot[2].ID})

	// A snapshot is a copy - mutating it does not affect the store
	snapshot[0].Name = "changed"
	r, ok := s.Get("p1")
	assert.True(t, ok)
	assert.Equal(t, "DeFi Yield", r.Name)

	// Replace is a full swap, dropped ids disappear
	s.Replace(testRecords()[:1])
	assert.Equal(t, 1, s.Len())
	_, ok = s.Get("p2")
	assert.False(t, ok)

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Snapshot())
}

func TestStoreReplaceDuplicateIDs(t *testing.T) {
	s := NewStore()
	s.Replace([]*ProposalRecord{
		{ID: "p1", Name: "first"},
		{ID: "p1", Name: "second"},
	})
	assert.Equal(t, 1, s.Len())
	r, _ := s.Get("p1")
	assert.Equal(t, "second", r.Name)
}

func TestStoreGetMissing(t *testing.T) {
	s := NewStore()
	_, ok := s.Get("missing")
	assert.False(t, ok)
}

func TestApplyFiltersIdentity(t *testing.T) {
	s := NewStore()
	s.Replace(testRecords())

	// All-"all" constraints and empty search return the full set in order
	matched := s.ApplyFilters(Filter{Search: "", Category: FilterAll, Status: FilterAll})
	assert.Len(t, matched, 3)
	assert.Equal(t, "p1", matched[0].ID)
	assert.Equal(t, "p3", matched[2].ID)
}

func TestApplyFiltersSearchCaseInsensitive(t *testing.T) {
	s := NewStore()
	s.Replace(testRecords())

	matched := s.ApplyFilters(Filter{Search: "defi"})
	assert.Len(t, matched, 1)
	assert.Equal(t, "DeFi Yield", matched[0].Name)

	// Description matches too
	matched = s.ApplyFilters(Filter{Search: "ART"})
	assert.Len(t, matched, 1)
	assert.Equal(t, "NFT Fund", matched[0].Name)

	matched = s.ApplyFilters(Filter{Search: "nothing matches this"})
	assert.Empty(t, matched)
}

func TestApplyFiltersANDSemantics(t *testing.T) {
	s := NewStore()
	s.Replace(testRecords())

	matched := s.ApplyFilters(Filter{Category: "crypto", Status: "active"})
	assert.Len(t, matched, 2)

	matched = s.ApplyFilters(Filter{Category: "crypto", Status: "completed"})
	assert.Empty(t, matched)

	matched = s.ApplyFilters(Filter{Search: "farm", Category: "infrastructure"})
	assert.Len(t, matched, 1)
	assert.Equal(t, "p3", matched[0].ID)

	// Composing two narrow filters equals one filter with both predicates
	byCategory := s.ApplyFilters(Filter{Category: "crypto"})
	narrowed := []*ProposalRecord{}
	for _, r := range byCategory {
		if r.Status == "active" {
			narrowed = append(narrowed, r)
		}
	}
	combined := s.ApplyFilters(Filter{Category: "crypto", Status: "active"})
	assert.Equal(t, len(narrowed), len(combined))
	for i := range combined {
		assert.Equal(t, narrowed[i].ID, combined[i].ID)
	}
}

func TestComputeStatistics(t *testing.T) {
	stats := ComputeStatistics(testRecords()[:2])
	assert.Equal(t, 2, stats.TotalCount)
	assert.Equal(t, int64(150), stats.TotalPublicValue)
	assert.Equal(t, 1, stats.VerifiedCount)
	assert.Equal(t, 0.5, stats.VerifiedRatio)
	assert.Equal(t, 2, stats.DistinctCreators)
}

func TestComputeStatisticsDistribution(t *testing.T) {
	stats := ComputeStatistics(testRecords())
	assert.Equal(t, 3, stats.TotalCount)
	assert.Equal(t, 2, stats.DistinctCreators)
	assert.Equal(t, CategoryStat{Count: 2, Share: 2.0 / 3.0}, stats.CategoryDistribution["crypto"])
	assert.Equal(t, CategoryStat{Count: 1, Share: 1.0 / 3.0}, stats.CategoryDistribution["infrastructure"])

	// Shares sum to 1 when the set is non-empty
	var sum float64
	for _, cs := range stats.CategoryDistribution {
		sum += cs.Share
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestComputeStatisticsEmpty(t *testing.T) {
	stats := ComputeStatistics(nil)
	assert.Equal(t, 0, stats.TotalCount)
	assert.Equal(t, int64(0), stats.TotalPublicValue)
	assert.Zero(t, stats.VerifiedRatio)
	assert.Empty(t, stats.CategoryDistribution)
}
