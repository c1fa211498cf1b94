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
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-common/pkg/log"
	ffretry "github.com/hyperledger/firefly-common/pkg/retry"
	"github.com/hyperledger/firefly-signer/pkg/ethsigner"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/rpcbackend"
	"github.com/hyperledger/firefly-signer/pkg/secp256k1"
	"github.com/investdao/privpool/internal/confutil"
	"github.com/investdao/privpool/internal/msgs"
	"github.com/investdao/privpool/internal/retry"
	"github.com/investdao/privpool/internal/rpcclient"
	"github.com/investdao/privpool/pkg/signer"
)

// Client is the low level JSON/RPC connection to the base ledger. A client
// constructed without a wallet can only perform read operations, and is
// what the reconciliation path runs on.
type Client interface {
	Close()
	ChainID() int64
	CallContract(ctx context.Context, from *string, tx *ethsigner.Transaction, block string) (data ethtypes.HexBytes0xPrefix, err error)
	BuildRawTransaction(ctx context.Context, txVersion EthTXVersion, from string, tx *ethsigner.Transaction) (ethtypes.HexBytes0xPrefix, error)
	SendRawTransaction(ctx context.Context, rawTX ethtypes.HexBytes0xPrefix) (ethtypes.HexBytes0xPrefix, error)
	WaitForReceipt(ctx context.Context, txHash ethtypes.HexBytes0xPrefix) (*TransactionReceipt, error)

	ABIJSON(ctx context.Context, abiJSON []byte) (ABIClient, error)
	MustABIJSON(abiJSON []byte) ABIClient
}

type Config struct {
	HTTP              rpcclient.HTTPConfig `json:"http"`
	GasEstimateFactor *float64             `json:"gasEstimateFactor"`
	ReceiptPolling    retry.Config         `json:"receiptPolling"`
}

var Defaults = &Config{
	GasEstimateFactor: confutil.P(1.5),
	ReceiptPolling: retry.Config{
		InitialDelay: confutil.P("100ms"),
		MaxDelay:     confutil.P("2s"),
		Factor:       confutil.P(2.0),
		MaxAttempts:  confutil.P(10),
	},
}

type ethClient struct {
	chainID            int64
	gasEstimateFactor  float64
	rpc                rpcbackend.RPC
	wallet             signer.Wallet
	receiptRetry       *ffretry.Retry
	receiptMaxAttempts int
}

func NewClient(ctx context.Context, wallet signer.Wallet, conf *Config) (_ Client, err error) {
	rpcConf, err := rpcclient.ParseHTTPConfig(ctx, &conf.HTTP)
	if err != nil {
		return nil, err
	}
	return WrapRPCClient(ctx, wallet, rpcbackend.NewRPCClient(rpcConf), conf)
}

func WrapRPCClient(ctx context.Context, wallet signer.Wallet, rpc rpcbackend.RPC, conf *Config) (Client, error) {
	ec := &ethClient{
		wallet:             wallet,
		rpc:                rpc,
		gasEstimateFactor:  confutil.Float64Min(conf.GasEstimateFactor, 1.0, *Defaults.GasEstimateFactor),
		receiptRetry:       retry.New(&conf.ReceiptPolling, &Defaults.ReceiptPolling),
		receiptMaxAttempts: retry.MaxAttempts(&conf.ReceiptPolling, &Defaults.ReceiptPolling),
	}
	if err := ec.setupChainID(ctx); err != nil {
		return nil, err
	}
	return ec, nil
}

func (ec *ethClient) Close() {
	wsRPC, isWS := ec.rpc.(rpcbackend.WebSocketRPCClient)
	if isWS {
		wsRPC.Close()
	}
}

func (ec *ethClient) ChainID() int64 {
	return ec.chainID
}

func (ec *ethClient) setupChainID(ctx context.Context) error {
	var chainID ethtypes.HexUint64
	if rpcErr := ec.rpc.CallRPC(ctx, &chainID, "eth_chainId"); rpcErr != nil {
		log.L(ctx).Errorf("eth_chainId failed: %+v", rpcErr)
		return i18n.WrapError(ctx, rpcErr.Error(), msgs.MsgLedgerChainIDFailed)
	}
	ec.chainID = int64(chainID.Uint64())
	return nil
}

func (ec *ethClient) CallContract(ctx context.Context, from *string, tx *ethsigner.Transaction, block string) (data ethtypes.HexBytes0xPrefix, err error) {

	if from != nil && ec.wallet != nil {
		_, fromAddr, err := ec.wallet.ResolveKey(ctx, *from, signer.Algorithm_ECDSA_SECP256K1)
		if err != nil {
			return nil, err
		}
		tx.From = json.RawMessage(fmt.Sprintf(`"%s"`, fromAddr))
	}

	if rpcErr := ec.rpc.CallRPC(ctx, &data, "eth_call", tx, block); rpcErr != nil {
		log.L(ctx).Errorf("eth_call failed: %+v", rpcErr)
		return nil, rpcErr.Error()
	}

	return data, err
}

func (ec *ethClient) BuildRawTransaction(ctx context.Context, txVersion EthTXVersion, from string, tx *ethsigner.Transaction) (ethtypes.HexBytes0xPrefix, error) {
	if ec.wallet == nil {
		return nil, i18n.NewError(ctx, msgs.MsgLedgerMissingFrom)
	}
	keyHandle, fromAddr, err := ec.wallet.ResolveKey(ctx, from, signer.Algorithm_ECDSA_SECP256K1)
	if err != nil {
		return nil, err
	}
	tx.From = json.RawMessage(fmt.Sprintf(`"%s"`, fromAddr))

	// Trivial nonce management in the client - just query the current nonce for each TX
	if tx.Nonce == nil {
		if rpcErr := ec.rpc.CallRPC(ctx, &tx.Nonce, "eth_getTransactionCount", fromAddr, "latest"); rpcErr != nil {
			log.L(ctx).Errorf("eth_getTransactionCount(%s) failed: %+v", fromAddr, rpcErr)
			return nil, rpcErr.Error()
		}
	}

	if tx.GasLimit == nil {
		// Estimate gas before submission
		var gasEstimate ethtypes.HexInteger
		if rpcErr := ec.rpc.CallRPC(ctx, &gasEstimate, "eth_estimateGas", tx); rpcErr != nil {
			log.L(ctx).Errorf("eth_estimateGas failed: %+v", rpcErr)
			return nil, rpcErr.Error()
		}
		// Submission gets a bump on the estimation
		gasLimitFactored := new(big.Float).SetInt(gasEstimate.BigInt())
		gasLimitFactored = gasLimitFactored.Mul(gasLimitFactored, big.NewFloat(ec.gasEstimateFactor))
		gasLimit, _ := gasLimitFactored.Int(nil)
		tx.GasLimit = ethtypes.NewHexInteger(gasLimit)
	}

	// Sign
	var sigPayload *ethsigner.TransactionSignaturePayload
	switch txVersion {
	case EIP1559:
		sigPayload = tx.SignaturePayloadEIP1559(ec.chainID)
	case LEGACY_EIP155:
		sigPayload = tx.SignaturePayloadLegacyEIP155(ec.chainID)
	case LEGACY_ORIGINAL:
		sigPayload = tx.SignaturePayloadLegacyOriginal()
	default:
		return nil, i18n.NewError(ctx, msgs.MsgLedgerInvalidTXVersion, txVersion)
	}
	signature, err := ec.wallet.Sign(ctx, &signer.SignRequest{
		Algorithm: signer.Algorithm_ECDSA_SECP256K1,
		KeyHandle: keyHandle,
		Payload:   sigPayload.Bytes(),
	})
	var sig *secp256k1.SignatureData
	if err == nil {
		sig, err = secp256k1.DecodeCompactRSV(ctx, signature.Payload)
	}
	var rawTX []byte
	if err == nil {
		switch txVersion {
		case EIP1559:
			rawTX, err = tx.FinalizeEIP1559WithSignature(sigPayload, sig)
		case LEGACY_EIP155:
			rawTX, err = tx.FinalizeLegacyEIP155WithSignature(sigPayload, sig, ec.chainID)
		case LEGACY_ORIGINAL:
			rawTX, err = tx.FinalizeLegacyOriginalWithSignature(sigPayload, sig)
		}
	}
	if err != nil {
		log.L(ctx).Errorf("signing failed with keyHandle %s (addr=%s): %s", keyHandle, fromAddr, err)
		return nil, err
	}
	return rawTX, nil
}

func (ec *ethClient) SendRawTransaction(ctx context.Context, rawTX ethtypes.HexBytes0xPrefix) (ethtypes.HexBytes0xPrefix, error) {
	var txHash ethtypes.HexBytes0xPrefix
	if rpcErr := ec.rpc.CallRPC(ctx, &txHash, "eth_sendRawTransaction", rawTX); rpcErr != nil {
		log.L(ctx).Errorf("eth_sendRawTransaction failed: %+v", rpcErr)
		return nil, rpcErr.Error()
	}
	return txHash, nil
}

// WaitForReceipt polls for the transaction receipt until it appears, or
// the polling attempts are exhausted. A receipt with a zero status is a
// ledger-side revert and is returned as an error.
func (ec *ethClient) WaitForReceipt(ctx context.Context, txHash ethtypes.HexBytes0xPrefix) (*TransactionReceipt, error) {
	var receipt *TransactionReceipt
	err := ec.receiptRetry.Do(ctx, fmt.Sprintf("receipt %s", txHash), func(attempt int) (bool, error) {
		var r *TransactionReceipt
		if rpcErr := ec.rpc.CallRPC(ctx, &r, "eth_getTransactionReceipt", txHash); rpcErr != nil {
			return attempt < ec.receiptMaxAttempts, rpcErr.Error()
		}
		if r == nil {
			return attempt < ec.receiptMaxAttempts, i18n.NewError(ctx, msgs.MsgLedgerReceiptTimeout, txHash)
		}
		receipt = r
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if receipt.Status == nil || receipt.Status.BigInt().Sign() == 0 {
		return receipt, i18n.NewError(ctx, msgs.MsgLedgerTransactionReverted, txHash)
	}
	return receipt, nil
}
