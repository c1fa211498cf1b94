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

// Package orchestrator coordinates the FHE gateway, the pool contract and
// the proposal store to run the confidential proposal lifecycle. It is
// the only component that sequences the two trust boundaries - a proposal
// is never marked verified from anything but ledger-confirmed state,
// which the orchestrator only ever learns through reconciliation.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/investdao/privpool/internal/confutil"
	"github.com/investdao/privpool/internal/journal"
	"github.com/investdao/privpool/internal/msgs"
	"github.com/investdao/privpool/internal/notify"
	"github.com/investdao/privpool/internal/proposals"
	"github.com/investdao/privpool/pkg/fhe"
	"github.com/investdao/privpool/pkg/ledger"
	"github.com/investdao/privpool/pkg/signer"
)

type Config struct {
	DefaultCategory *string `json:"defaultCategory"`
	DefaultStatus   *string `json:"defaultStatus"`
}

var Defaults = &Config{
	DefaultCategory: confutil.P("crypto"),
	DefaultStatus:   confutil.P("active"),
}

type CreateProposalInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
}

// Session is one member's connected view of the pool - created on
// connect, torn down on disconnect. The account is nil for a read-only
// session, which can reconcile and filter but not create or reveal.
type Session struct {
	pool     ledger.InvestmentPool
	crypto   fhe.Gateway
	store    *proposals.Store
	notifier *notify.Notifier
	journal  journal.Journal
	account  *ethtypes.Address0xHex
	category string
	status   string

	lock   sync.RWMutex
	stats  *proposals.Statistics
	closed bool
}

// Connect checks the contract is reachable, then builds the session and
// runs the initial reconciliation so the store starts ledger-derived.
func Connect(ctx context.Context, pool ledger.InvestmentPool, crypto fhe.Gateway, notifier *notify.Notifier, jrnl journal.Journal, account *ethtypes.Address0xHex, conf *Config) (*Session, error) {
	available, err := pool.IsAvailable(ctx)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, i18n.NewError(ctx, msgs.MsgLedgerContractNotAvailable, pool.Address())
	}
	s := &Session{
		pool:     pool,
		crypto:   crypto,
		store:    proposals.NewStore(),
		notifier: notifier,
		journal:  jrnl,
		account:  account,
		category: confutil.StringNotEmpty(conf.DefaultCategory, *Defaults.DefaultCategory),
		status:   confutil.StringNotEmpty(conf.DefaultStatus, *Defaults.DefaultStatus),
		stats:    proposals.ComputeStatistics(nil),
	}
	if err := s.Reconcile(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Disconnect tears the session down. The store empties and all further
// operations fail as not connected.
func (s *Session) Disconnect(ctx context.Context) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.store.Clear()
	s.stats = proposals.ComputeStatistics(nil)
	log.L(ctx).Infof("session disconnected")
}

func (s *Session) checkWritable(ctx context.Context) error {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.closed || s.account == nil {
		return i18n.NewError(ctx, msgs.MsgOrchestratorNotConnected)
	}
	return nil
}

func newProposalID() string {
	return fmt.Sprintf("proposal-%d-%s", time.Now().UnixMilli(), uuid.NewString()[0:8])
}

// CreateProposal encrypts the amount, submits the proposal with its input
// proof, waits for ledger confirmation, and reconciles. On any failure
// before confirmation the store is untouched - the record only ever
// appears by being read back from the ledger.
func (s *Session) CreateProposal(ctx context.Context, input *CreateProposalInput) (id string, err error) {
	if err := s.checkWritable(ctx); err != nil {
		return "", err
	}
	if strings.TrimSpace(input.Name) == "" {
		return "", i18n.NewError(ctx, msgs.MsgOrchestratorNameRequired)
	}
	if input.Amount < 0 {
		return "", i18n.NewError(ctx, msgs.MsgOrchestratorAmountOutOfRange, input.Amount)
	}

	id = newProposalID()
	s.notifier.Notify(ctx, notify.Pending, "Encrypting proposal amount")
	ciphertext, err := s.crypto.Encrypt(ctx, uint64(input.Amount), s.pool.Address(), s.account)
	if err != nil {
		err = i18n.WrapError(ctx, err, msgs.MsgOrchestratorEncryptionFailed)
		s.notifier.Notify(ctx, notify.Error, "Encryption failed")
		return "", err
	}

	s.notifier.Notify(ctx, notify.Pending, "Submitting proposal, awaiting confirmation")
	receipt, err := s.pool.CreateProposal(ctx, &ledger.CreateProposalRequest{
		ProposalID:      id,
		Name:            input.Name,
		EncryptedAmount: ciphertext.Handle,
		InputProof:      ciphertext.Proof,
		PublicValue1:    fftypes.NewFFBigInt(input.Amount),
		PublicValue2:    fftypes.NewFFBigInt(0),
		Description:     input.Description,
	})
	if err != nil {
		if signer.IsRejected(err) {
			s.notifier.Notify(ctx, notify.Error, "Transaction cancelled by user")
		} else {
			s.notifier.Notify(ctx, notify.Error, "Proposal submission failed")
		}
		return "", err
	}

	s.recordOperation(ctx, journal.OpCreate, id, receipt)

	if err := s.Reconcile(ctx); err != nil {
		return "", err
	}
	s.notifier.Notify(ctx, notify.Success, "Proposal %s created", id)
	return id, nil
}

// RevealProposal runs the verified decryption of a proposal's
// confidential amount. Already-verified proposals short-circuit with the
// stored value and no network calls. Otherwise the current ciphertext
// handle is re-read from the ledger, a decryption session runs against
// the relayer, and its proof is pushed on-chain before the session
// reconciles and returns the clear value for that handle.
func (s *Session) RevealProposal(ctx context.Context, id string) (uint64, error) {
	record, ok := s.store.Get(id)
	if !ok {
		return 0, i18n.NewError(ctx, msgs.MsgOrchestratorProposalNotFound, id)
	}
	if record.IsVerified {
		if record.RevealedAmount == nil {
			return 0, i18n.NewError(ctx, msgs.MsgOrchestratorValueMissing, record.ConfidentialHandle)
		}
		return *record.RevealedAmount, nil
	}
	if err := s.checkWritable(ctx); err != nil {
		return 0, err
	}

	// The store is a cache - read the live handle
	handle, err := s.pool.GetEncryptedAmount(ctx, id)
	if err != nil {
		s.notifier.Notify(ctx, notify.Error, "Reveal failed")
		return 0, i18n.WrapError(ctx, err, msgs.MsgOrchestratorDecryptionFailed, id)
	}

	s.notifier.Notify(ctx, notify.Pending, "Requesting verified decryption")
	session, err := s.crypto.BeginDecryption(ctx, s.pool.Address(), []ethtypes.HexBytes0xPrefix{handle})
	if err != nil {
		s.notifier.Notify(ctx, notify.Error, "Reveal failed")
		return 0, i18n.WrapError(ctx, err, msgs.MsgOrchestratorDecryptionFailed, id)
	}

	var receipt *ledger.TransactionReceipt
	proof, err := session.Complete(ctx, func(ctx context.Context, clearValues []uint64, proof ethtypes.HexBytes0xPrefix) error {
		s.notifier.Notify(ctx, notify.Pending, "Submitting decryption proof, awaiting confirmation")
		receipt, err = s.pool.SubmitDecryptionProof(ctx, id, clearValues, proof)
		return err
	})
	if err != nil {
		if signer.IsRejected(err) {
			s.notifier.Notify(ctx, notify.Error, "Transaction cancelled by user")
		} else {
			s.notifier.Notify(ctx, notify.Error, "Reveal failed")
		}
		return 0, err
	}

	s.recordOperation(ctx, journal.OpReveal, id, receipt)

	if err := s.Reconcile(ctx); err != nil {
		return 0, err
	}

	value, ok := proof.ValueOf(handle)
	if !ok {
		return 0, i18n.NewError(ctx, msgs.MsgOrchestratorValueMissing, handle)
	}
	s.notifier.Notify(ctx, notify.Success, "Proposal %s verified", id)
	return value, nil
}

// Reconcile rebuilds the store from the ledger. Failure to list the ids
// aborts the pass leaving the previous contents in place. A failure on an
// individual record skips just that record. The swap at the end is
// atomic, and the aggregates recompute from the new set.
func (s *Session) Reconcile(ctx context.Context) error {
	ids, err := s.pool.GetAllProposalIds(ctx)
	if err != nil {
		return i18n.WrapError(ctx, err, msgs.MsgOrchestratorIDListFetchFailed)
	}
	records := make([]*proposals.ProposalRecord, 0, len(ids))
	for _, id := range ids {
		record, err := s.fetchRecord(ctx, id)
		if err != nil {
			log.L(ctx).Warnf("skipping proposal %s in reconciliation: %s", id, err)
			continue
		}
		records = append(records, record)
	}
	s.store.Replace(records)
	stats := proposals.ComputeStatistics(records)

	s.lock.Lock()
	s.stats = stats
	s.lock.Unlock()
	log.L(ctx).Debugf("reconciled %d/%d proposals", len(records), len(ids))
	return nil
}

func (s *Session) fetchRecord(ctx context.Context, id string) (*proposals.ProposalRecord, error) {
	data, err := s.pool.GetProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	handle, err := s.pool.GetEncryptedAmount(ctx, id)
	if err != nil {
		return nil, err
	}
	record := &proposals.ProposalRecord{
		ID:                 id,
		Name:               data.Name,
		Description:        data.Description,
		ConfidentialHandle: handle,
		IsVerified:         data.IsVerified,
		Category:           s.category,
		Status:             s.status,
	}
	if data.Creator != nil {
		record.Creator = data.Creator.String()
	}
	if data.CreatedAt != nil {
		record.CreatedAt = fftypes.UnixTime(data.CreatedAt.Int64())
	}
	if data.PublicValue1 != nil {
		record.PublicAmountPrimary = data.PublicValue1.Int64()
	}
	if data.PublicValue2 != nil {
		record.PublicAmountSecondary = data.PublicValue2.Int64()
	}
	if data.IsVerified && data.DecryptedValue != nil {
		revealed := data.DecryptedValue.Uint64()
		record.RevealedAmount = &revealed
	}
	return record, nil
}

func (s *Session) recordOperation(ctx context.Context, kind journal.OpKind, id string, receipt *ledger.TransactionReceipt) {
	if s.journal == nil {
		return
	}
	entry := &journal.Entry{
		Kind:       kind,
		ProposalID: id,
		Account:    s.account.String(),
	}
	if receipt != nil {
		entry.TXHash = receipt.TransactionHash.String()
	}
	// The ledger effect is already confirmed - a journal failure is logged,
	// never surfaced as an operation failure
	if err := s.journal.RecordOperation(ctx, entry); err != nil {
		log.L(ctx).Warnf("failed to journal %s of %s: %s", kind, id, err)
	}
}

// Proposals returns the current records in canonical order
func (s *Session) Proposals() []*proposals.ProposalRecord {
	return s.store.Snapshot()
}

func (s *Session) Filter(f proposals.Filter) []*proposals.ProposalRecord {
	return s.store.ApplyFilters(f)
}

// Statistics returns the aggregates from the last reconciliation
func (s *Session) Statistics() *proposals.Statistics {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.stats
}

// History lists this account's journaled operations, newest first
func (s *Session) History(ctx context.Context, limit int) ([]*journal.Entry, error) {
	if s.journal == nil || s.account == nil {
		return nil, nil
	}
	return s.journal.ListByAccount(ctx, s.account.String(), limit)
}
