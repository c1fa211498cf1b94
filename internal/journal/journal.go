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

// Package journal records every ledger-confirmed create and reveal
// operation this node performed, for audit and history views. The
// journal is write-behind local state - it is never consulted to decide
// proposal state, which always comes from reconciliation.
package journal

import (
	"context"

	"github.com/google/uuid"
	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/investdao/privpool/internal/msgs"
	"github.com/investdao/privpool/pkg/persistence"
)

type OpKind string

const (
	OpCreate OpKind = "create"
	OpReveal OpKind = "reveal"
)

type Entry struct {
	ID         string          `json:"id"          gorm:"column:id;primaryKey"`
	Kind       OpKind          `json:"kind"        gorm:"column:kind"`
	ProposalID string          `json:"proposalId"  gorm:"column:proposal_id"`
	Account    string          `json:"account"     gorm:"column:account"`
	TXHash     string          `json:"txHash"      gorm:"column:tx_hash"`
	Created    *fftypes.FFTime `json:"created"     gorm:"column:created"`
}

func (Entry) TableName() string {
	return "operation_journal"
}

type Journal interface {
	RecordOperation(ctx context.Context, entry *Entry) error
	ListByAccount(ctx context.Context, account string, limit int) ([]*Entry, error)
	ListByProposal(ctx context.Context, proposalID string) ([]*Entry, error)
}

type journal struct {
	p persistence.Persistence
}

func NewJournal(p persistence.Persistence) Journal {
	return &journal{p: p}
}

// RecordOperation assigns the entry id and timestamp, then inserts
func (j *journal) RecordOperation(ctx context.Context, entry *Entry) error {
	entry.ID = uuid.NewString()
	entry.Created = fftypes.Now()
	if err := j.p.DB().WithContext(ctx).Create(entry).Error; err != nil {
		return i18n.WrapError(ctx, err, msgs.MsgJournalWriteFailed)
	}
	return nil
}

func (j *journal) ListByAccount(ctx context.Context, account string, limit int) ([]*Entry, error) {
	var entries []*Entry
	q := j.p.DB().WithContext(ctx).
		Where("account = ?", account).
		Order("created DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgJournalQueryFailed)
	}
	return entries, nil
}

func (j *journal) ListByProposal(ctx context.Context, proposalID string) ([]*Entry, error) {
	var entries []*Entry
	err := j.p.DB().WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("created ASC").
		Find(&entries).Error
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgJournalQueryFailed)
	}
	return entries, nil
}
