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

// Package proposals holds the in-memory view of the pool's proposals for
// one session. The store is a cache of ledger state - it is only ever
// mutated by a full replacement from a reconciliation pass, never patched
// in place by the create or reveal paths.
package proposals

import (
	"strings"
	"sync"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
)

// FilterAll disables a category or status constraint
const FilterAll = "all"

type ProposalRecord struct {
	ID                    string                    `json:"id"`
	Name                  string                    `json:"name"`
	Description           string                    `json:"description"`
	Creator               string                    `json:"creator"`
	CreatedAt             *fftypes.FFTime           `json:"createdAt"`
	PublicAmountPrimary   int64                     `json:"publicAmountPrimary"`
	PublicAmountSecondary int64                     `json:"publicAmountSecondary"`
	ConfidentialHandle    ethtypes.HexBytes0xPrefix `json:"confidentialHandle"`
	IsVerified            bool                      `json:"isVerified"`
	// RevealedAmount is only set when IsVerified is true, and only from a
	// ledger-confirmed decryption
	RevealedAmount *uint64 `json:"revealedAmount,omitempty"`
	Category       string  `json:"category"`
	Status         string  `json:"status"`
}

type Filter struct {
	Search   string
	Category string
	Status   string
}

// Store is the session's authoritative cache of proposal records, in
// ledger enumeration order
type Store struct {
	lock    sync.RWMutex
	records map[string]*ProposalRecord
	order   []string
}

func NewStore() *Store {
	return &Store{
		records: map[string]*ProposalRecord{},
	}
}

// Replace swaps in a complete new record set atomically. Readers never
// observe a half-replaced store. Order of the supplied slice becomes the
// canonical order.
func (s *Store) Replace(records []*ProposalRecord) {
	newRecords := make(map[string]*ProposalRecord, len(records))
	newOrder := make([]string, 0, len(records))
	for _, r := range records {
		if _, exists := newRecords[r.ID]; !exists {
			newOrder = append(newOrder, r.ID)
		}
		newRecords[r.ID] = r
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.records = newRecords
	s.order = newOrder
}

func (s *Store) Clear() {
	s.Replace(nil)
}

func (s *Store) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.order)
}

func (s *Store) Get(id string) (*ProposalRecord, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false
	}
	rCopy := *r
	return &rCopy, true
}

// Snapshot returns a copy of all records in canonical order
func (s *Store) Snapshot() []*ProposalRecord {
	s.lock.RLock()
	defer s.lock.RUnlock()
	snapshot := make([]*ProposalRecord, len(s.order))
	for i, id := range s.order {
		rCopy := *s.records[id]
		snapshot[i] = &rCopy
	}
	return snapshot
}

// ApplyFilters returns the records matching all the active constraints,
// preserving canonical order. A search term matches case-insensitively
// against name or description. A category or status of "all" (or empty)
// matches everything.
func (s *Store) ApplyFilters(f Filter) []*ProposalRecord {
	matched := []*ProposalRecord{}
	for _, r := range s.Snapshot() {
		if matchesFilter(r, &f) {
			matched = append(matched, r)
		}
	}
	return matched
}

func matchesFilter(r *ProposalRecord, f *Filter) bool {
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(r.Name), term) &&
			!strings.Contains(strings.ToLower(r.Description), term) {
			return false
		}
	}
	if f.Category != "" && f.Category != FilterAll && r.Category != f.Category {
		return false
	}
	if f.Status != "" && f.Status != FilterAll && r.Status != f.Status {
		return false
	}
	return true
}
