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

package ledger

import (
	"context"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/investdao/privpool/internal/msgs"
)

// investmentPoolABI is the application surface of the pool contract. The
// encrypted amount travels as a ciphertext handle (bytes32) plus an input
// proof; the decryption path pushes clear values back with a second proof
// that the contract verifies before flipping the verified flag.
const investmentPoolABI = `[
	{
		"type": "function", "name": "isAvailable", "stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "available", "type": "bool"}]
	},
	{
		"type": "function", "name": "getAllProposalIds", "stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "ids", "type": "string[]"}]
	},
	{
		"type": "function", "name": "getProposal", "stateMutability": "view",
		"inputs": [{"name": "proposalId", "type": "string"}],
		"outputs": [
			{"name": "name", "type": "string"},
			{"name": "creator", "type": "address"},
			{"name": "publicValue1", "type": "uint256"},
			{"name": "publicValue2", "type": "uint256"},
			{"name": "description", "type": "string"},
			{"name": "isVerified", "type": "bool"},
			{"name": "decryptedValue", "type": "uint64"},
			{"name": "createdAt", "type": "uint256"}
		]
	},
	{
		"type": "function", "name": "getEncryptedAmount", "stateMutability": "view",
		"inputs": [{"name": "proposalId", "type": "string"}],
		"outputs": [{"name": "handle", "type": "bytes32"}]
	},
	{
		"type": "function", "name": "createProposal", "stateMutability": "nonpayable",
		"inputs": [
			{"name": "proposalId", "type": "string"},
			{"name": "name", "type": "string"},
			{"name": "encryptedAmount", "type": "bytes32"},
			{"name": "inputProof", "type": "bytes"},
			{"name": "publicValue1", "type": "uint256"},
			{"name": "publicValue2", "type": "uint256"},
			{"name": "description", "type": "string"}
		],
		"outputs": []
	},
	{
		"type": "function", "name": "verifyDecryption", "stateMutability": "nonpayable",
		"inputs": [
			{"name": "proposalId", "type": "string"},
			{"name": "clearValues", "type": "uint64[]"},
			{"name": "decryptionProof", "type": "bytes"}
		],
		"outputs": []
	}
]`

// ProposalData is the on-chain record for one proposal, as returned by
// getProposal
type ProposalData struct {
	Name           string                 `json:"name"`
	Creator        *ethtypes.Address0xHex `json:"creator"`
	PublicValue1   *fftypes.FFBigInt      `json:"publicValue1"`
	PublicValue2   *fftypes.FFBigInt      `json:"publicValue2"`
	Description    string                 `json:"description"`
	IsVerified     bool                   `json:"isVerified"`
	DecryptedValue *fftypes.FFBigInt      `json:"decryptedValue"`
	CreatedAt      *fftypes.FFBigInt      `json:"createdAt"`
}

type CreateProposalRequest struct {
	ProposalID      string                    `json:"proposalId"`
	Name            string                    `json:"name"`
	EncryptedAmount ethtypes.HexBytes0xPrefix `json:"encryptedAmount"`
	InputProof      ethtypes.HexBytes0xPrefix `json:"inputProof"`
	PublicValue1    *fftypes.FFBigInt         `json:"publicValue1"`
	PublicValue2    *fftypes.FFBigInt         `json:"publicValue2"`
	Description     string                    `json:"description"`
}

// InvestmentPool binds a Client to one deployed pool contract. The read
// operations work without a signing key. CreateProposal and
// SubmitDecryptionProof require one, and block until the transaction is
// confirmed (or rejected) on the ledger.
type InvestmentPool interface {
	Address() *ethtypes.Address0xHex
	IsAvailable(ctx context.Context) (bool, error)
	GetAllProposalIds(ctx context.Context) ([]string, error)
	GetProposal(ctx context.Context, proposalID string) (*ProposalData, error)
	GetEncryptedAmount(ctx context.Context, proposalID string) (ethtypes.HexBytes0xPrefix, error)
	CreateProposal(ctx context.Context, req *CreateProposalRequest) (*TransactionReceipt, error)
	SubmitDecryptionProof(ctx context.Context, proposalID string, clearValues []uint64, proof ethtypes.HexBytes0xPrefix) (*TransactionReceipt, error)
}

type investmentPool struct {
	ec         Client
	address    *ethtypes.Address0xHex
	signingKey string
	abiClient  ABIClient
}

// NewInvestmentPool binds the contract at the given address. signingKey is
// the wallet key identifier used for write operations, and may be empty
// for a read-only binding.
func NewInvestmentPool(ctx context.Context, ec Client, address *ethtypes.Address0xHex, signingKey string) (InvestmentPool, error) {
	abiClient, err := ec.ABIJSON(ctx, []byte(investmentPoolABI))
	if err != nil {
		return nil, err
	}
	return &investmentPool{
		ec:         ec,
		address:    address,
		signingKey: signingKey,
		abiClient:  abiClient,
	}, nil
}

func (p *investmentPool) Address() *ethtypes.Address0xHex {
	return p.address
}

func (p *investmentPool) fn(ctx context.Context, name string) (ABIFunctionClient, error) {
	return p.abiClient.Function(ctx, name)
}

func (p *investmentPool) IsAvailable(ctx context.Context) (bool, error) {
	fc, err := p.fn(ctx, "isAvailable")
	if err != nil {
		return false, err
	}
	var res struct {
		Available bool `json:"available"`
	}
	err = fc.R(ctx).
		To(p.address).
		Input(map[string]any{}).
		Output(&res).
		Call()
	if err != nil {
		return false, i18n.WrapError(ctx, err, msgs.MsgLedgerContractNotAvailable, p.address)
	}
	return res.Available, nil
}

func (p *investmentPool) GetAllProposalIds(ctx context.Context) ([]string, error) {
	fc, err := p.fn(ctx, "getAllProposalIds")
	if err != nil {
		return nil, err
	}
	var res struct {
		IDs []string `json:"ids"`
	}
	err = fc.R(ctx).
		To(p.address).
		Input(map[string]any{}).
		Output(&res).
		Call()
	if err != nil {
		return nil, err
	}
	return res.IDs, nil
}

func (p *investmentPool) GetProposal(ctx context.Context, proposalID string) (*ProposalData, error) {
	fc, err := p.fn(ctx, "getProposal")
	if err != nil {
		return nil, err
	}
	var res ProposalData
	err = fc.R(ctx).
		To(p.address).
		Input(map[string]any{"proposalId": proposalID}).
		Output(&res).
		Call()
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (p *investmentPool) GetEncryptedAmount(ctx context.Context, proposalID string) (ethtypes.HexBytes0xPrefix, error) {
	fc, err := p.fn(ctx, "getEncryptedAmount")
	if err != nil {
		return nil, err
	}
	var res struct {
		Handle ethtypes.HexBytes0xPrefix `json:"handle"`
	}
	err = fc.R(ctx).
		To(p.address).
		Input(map[string]any{"proposalId": proposalID}).
		Output(&res).
		Call()
	if err != nil {
		return nil, err
	}
	return res.Handle, nil
}

func (p *investmentPool) sendAndWait(ctx context.Context, rb ABIFunctionRequestBuilder) (*TransactionReceipt, error) {
	txHash, err := rb.SignAndSend()
	if err != nil {
		return nil, err
	}
	log.L(ctx).Infof("transaction %s submitted, waiting for confirmation", txHash)
	return p.ec.WaitForReceipt(ctx, txHash)
}

func (p *investmentPool) CreateProposal(ctx context.Context, req *CreateProposalRequest) (*TransactionReceipt, error) {
	fc, err := p.fn(ctx, "createProposal")
	if err != nil {
		return nil, err
	}
	return p.sendAndWait(ctx, fc.R(ctx).
		To(p.address).
		Signer(p.signingKey).
		Input(req))
}

func (p *investmentPool) SubmitDecryptionProof(ctx context.Context, proposalID string, clearValues []uint64, proof ethtypes.HexBytes0xPrefix) (*TransactionReceipt, error) {
	fc, err := p.fn(ctx, "verifyDecryption")
	if err != nil {
		return nil, err
	}
	receipt, err := p.sendAndWait(ctx, fc.R(ctx).
		To(p.address).
		Signer(p.signingKey).
		Input(map[string]any{
			"proposalId":      proposalID,
			"clearValues":     clearValues,
			"decryptionProof": proof,
		}))
	if err != nil {
		// A revert here means the ledger did not accept the proof, which
		// the caller reports differently from a transport failure
		if MapError(err) == ErrorReasonTransactionReverted {
			return receipt, i18n.WrapError(ctx, err, msgs.MsgLedgerProofRejected, proposalID)
		}
		return receipt, err
	}
	return receipt, nil
}
