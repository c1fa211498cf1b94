/*
 * Copyright © 2025 Kaleido, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
 * an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
 * specific language governing permissions and limitations under the License.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package fhe

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/investdao/privpool/internal/msgs"
)

// DecryptionProof is the relayer's completed output for one session - the
// clear values in handle order, and the proof the ledger verifies before
// accepting them.
type DecryptionProof struct {
	ClearValues []uint64
	Proof       ethtypes.HexBytes0xPrefix

	byHandle map[string]uint64
}

// NewDecryptionProof builds a proof from clear values in handle order
func NewDecryptionProof(handles []ethtypes.HexBytes0xPrefix, clearValues []uint64, proof ethtypes.HexBytes0xPrefix) *DecryptionProof {
	p := &DecryptionProof{
		ClearValues: clearValues,
		Proof:       proof,
		byHandle:    make(map[string]uint64, len(handles)),
	}
	for i, h := range handles {
		if i < len(clearValues) {
			p.byHandle[h.String()] = clearValues[i]
		}
	}
	return p
}

// ValueOf returns the clear value for one of the session's handles
func (p *DecryptionProof) ValueOf(handle ethtypes.HexBytes0xPrefix) (uint64, bool) {
	v, ok := p.byHandle[handle.String()]
	return v, ok
}

// DecryptionSession is one in-flight decryption. AwaitProof polls the
// relayer until the threshold protocol completes. Complete then pushes
// the result on-ledger through the supplied submit function and returns
// the proof it submitted - exactly once per session, a second call fails
// rather than re-submitting.
type DecryptionSession interface {
	ID() string
	Handles() []ethtypes.HexBytes0xPrefix
	AwaitProof(ctx context.Context) (*DecryptionProof, error)
	Complete(ctx context.Context, submit func(ctx context.Context, clearValues []uint64, proof ethtypes.HexBytes0xPrefix) error) (*DecryptionProof, error)
}

type decryptionSession struct {
	g         *gateway
	requestID string
	handles   []ethtypes.HexBytes0xPrefix

	lock      sync.Mutex
	proof     *DecryptionProof
	completed bool
}

type decryptStatusResponse struct {
	Status      string                    `json:"status"`
	ClearValues []uint64                  `json:"clearValues,omitempty"`
	Proof       ethtypes.HexBytes0xPrefix `json:"proof,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

const (
	decryptStatusPending  = "pending"
	decryptStatusComplete = "complete"
	decryptStatusFailed   = "failed"
)

func (s *decryptionSession) ID() string {
	return s.requestID
}

func (s *decryptionSession) Handles() []ethtypes.HexBytes0xPrefix {
	return s.handles
}

func (s *decryptionSession) AwaitProof(ctx context.Context) (*DecryptionProof, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.proof != nil {
		return s.proof, nil
	}

	var status decryptStatusResponse
	err := s.g.decryptRetry.Do(ctx, fmt.Sprintf("decryption %s", s.requestID), func(attempt int) (bool, error) {
		res, err := s.g.http.R().
			SetContext(ctx).
			SetResult(&status).
			Get(fmt.Sprintf("/v1/decrypt/%s", s.requestID))
		if err != nil || !res.IsSuccess() {
			return attempt < s.g.decryptAttempts, restErr(ctx, res, err, msgs.MsgFHEDecryptRequestFailed)
		}
		switch status.Status {
		case decryptStatusComplete:
			return false, nil
		case decryptStatusFailed:
			return false, i18n.NewError(ctx, msgs.MsgFHEDecryptFailed, s.requestID, status.Error)
		default:
			return attempt < s.g.decryptAttempts, i18n.NewError(ctx, msgs.MsgFHEDecryptTimeout, s.requestID)
		}
	})
	if err != nil {
		return nil, err
	}

	if len(status.ClearValues) < len(s.handles) {
		return nil, i18n.NewError(ctx, msgs.MsgFHEDecryptFailed, s.requestID, "clear value count mismatch")
	}
	// Clear values come back in handle order
	s.proof = NewDecryptionProof(s.handles, status.ClearValues, status.Proof)
	return s.proof, nil
}

func (s *decryptionSession) Complete(ctx context.Context, submit func(ctx context.Context, clearValues []uint64, proof ethtypes.HexBytes0xPrefix) error) (*DecryptionProof, error) {
	proof, err := s.AwaitProof(ctx)
	if err != nil {
		return nil, err
	}

	s.lock.Lock()
	if s.completed {
		s.lock.Unlock()
		return nil, i18n.NewError(ctx, msgs.MsgFHESessionAlreadyComplete, s.requestID)
	}
	s.completed = true
	s.lock.Unlock()

	if err := submit(ctx, proof.ClearValues, proof.Proof); err != nil {
		log.L(ctx).Errorf("proof submission for decryption %s failed: %s", s.requestID, err)
		return nil, err
	}
	return proof, nil
}
