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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperledger/firefly-signer/pkg/ethsigner"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/investdao/privpool/internal/confutil"
	"github.com/investdao/privpool/internal/retry"
	"github.com/investdao/privpool/internal/rpcclient"
	"github.com/investdao/privpool/pkg/signer"
	"github.com/stretchr/testify/assert"
)

const testWalletSeed = "7a30f3ea28db2a1d1f80cc5b2e0d0e31a47a4c1e9d9b9d0bb0191f0d45b5e1a7"

type mockEth struct {
	eth_chainId               func(ctx context.Context) (ethtypes.HexUint64, error)
	eth_call                  func(ctx context.Context, tx ethsigner.Transaction, block string) (ethtypes.HexBytes0xPrefix, error)
	eth_getTransactionCount   func(ctx context.Context, addr string, block string) (ethtypes.HexUint64, error)
	eth_estimateGas           func(ctx context.Context, tx ethsigner.Transaction) (ethtypes.HexInteger, error)
	eth_sendRawTransaction    func(ctx context.Context, rawTX ethtypes.HexBytes0xPrefix) (ethtypes.HexBytes0xPrefix, error)
	eth_getTransactionReceipt func(ctx context.Context, txHash ethtypes.HexBytes0xPrefix) (*TransactionReceipt, error)
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

func writeRPCResult(w http.ResponseWriter, id json.RawMessage, result any, err error) {
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      id,
			"error": map[string]any{
				"code":    -32000,
				"message": err.Error(),
			},
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
}

func newTestRPCServer(t *testing.T, mEth *mockEth) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req rpcRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		assert.NoError(t, err)
		switch req.Method {
		case "eth_chainId":
			if mEth.eth_chainId == nil {
				writeRPCResult(w, req.ID, ethtypes.HexUint64(1122334455), nil)
				return
			}
			chainID, err := mEth.eth_chainId(ctx)
			writeRPCResult(w, req.ID, chainID, err)
		case "eth_call":
			var tx ethsigner.Transaction
			var block string
			err := json.Unmarshal(req.Params[0], &tx)
			assert.NoError(t, err)
			err = json.Unmarshal(req.Params[1], &block)
			assert.NoError(t, err)
			data, err := mEth.eth_call(ctx, tx, block)
			writeRPCResult(w, req.ID, data, err)
		case "eth_getTransactionCount":
			var addr, block string
			err := json.Unmarshal(req.Params[0], &addr)
			assert.NoError(t, err)
			err = json.Unmarshal(req.Params[1], &block)
			assert.NoError(t, err)
			nonce, err := mEth.eth_getTransactionCount(ctx, addr, block)
			writeRPCResult(w, req.ID, nonce, err)
		case "eth_estimateGas":
			var tx ethsigner.Transaction
			err := json.Unmarshal(req.Params[0], &tx)
			assert.NoError(t, err)
			gas, err := mEth.eth_estimateGas(ctx, tx)
			writeRPCResult(w, req.ID, gas, err)
		case "eth_sendRawTransaction":
			var rawTX ethtypes.HexBytes0xPrefix
			err := json.Unmarshal(req.Params[0], &rawTX)
			assert.NoError(t, err)
			txHash, err := mEth.eth_sendRawTransaction(ctx, rawTX)
			writeRPCResult(w, req.ID, txHash, err)
		case "eth_getTransactionReceipt":
			var txHash ethtypes.HexBytes0xPrefix
			err := json.Unmarshal(req.Params[0], &txHash)
			assert.NoError(t, err)
			receipt, err := mEth.eth_getTransactionReceipt(ctx, txHash)
			writeRPCResult(w, req.ID, receipt, err)
		default:
			writeRPCResult(w, req.ID, nil, fmt.Errorf("unknown method %s", req.Method))
		}
	}))
}

func newTestClientAndServer(t *testing.T, mEth *mockEth) (ctx context.Context, ec *ethClient, done func()) {
	ctx = context.Background()

	server := newTestRPCServer(t, mEth)

	wallet, err := signer.NewWallet(ctx, &signer.Config{Seed: testWalletSeed})
	assert.NoError(t, err)

	iec, err := NewClient(ctx, wallet, &Config{
		HTTP: rpcclient.HTTPConfig{
			URL: server.URL,
		},
		ReceiptPolling: retry.Config{
			InitialDelay: confutil.P("1ms"),
			MaxDelay:     confutil.P("3ms"),
			MaxAttempts:  confutil.P(3),
		},
	})
	assert.NoError(t, err)
	ec = iec.(*ethClient)

	return ctx, ec, func() {
		ec.Close()
		server.Close()
	}
}

func TestNewClientBadURL(t *testing.T) {
	_, err := NewClient(context.Background(), nil, &Config{
		HTTP: rpcclient.HTTPConfig{URL: "wrong://type"},
	})
	assert.Regexp(t, "PP010200", err)
}

func TestNewClientChainIDFail(t *testing.T) {
	server := newTestRPCServer(t, &mockEth{
		eth_chainId: func(ctx context.Context) (ethtypes.HexUint64, error) {
			return 0, fmt.Errorf("pop")
		},
	})
	defer server.Close()
	_, err := NewClient(context.Background(), nil, &Config{
		HTTP: rpcclient.HTTPConfig{URL: server.URL},
	})
	assert.Regexp(t, "PP010201", err)
}

func TestChainID(t *testing.T) {
	_, ec, done := newTestClientAndServer(t, &mockEth{})
	defer done()
	assert.Equal(t, int64(1122334455), ec.ChainID())
}

func TestCallContractOK(t *testing.T) {
	ctx, ec, done := newTestClientAndServer(t, &mockEth{
		eth_call: func(ctx context.Context, tx ethsigner.Transaction, block string) (ethtypes.HexBytes0xPrefix, error) {
			assert.Equal(t, "latest", block)
			return ethtypes.MustNewHexBytes0xPrefix("0xfeedbeef"), nil
		},
	})
	defer done()

	to := ethtypes.MustNewAddress("0x84ed5aea4d9e32f60f13b9b5ff0e2abfa94f9799")
	data, err := ec.CallContract(ctx, nil, &ethsigner.Transaction{To: to}, "latest")
	assert.NoError(t, err)
	assert.Equal(t, "0xfeedbeef", data.String())
}

func TestCallContractWithSigner(t *testing.T) {
	ctx, ec, done := newTestClientAndServer(t, &mockEth{
		eth_call: func(ctx context.Context, tx ethsigner.Transaction, block string) (ethtypes.HexBytes0xPrefix, error) {
			assert.NotNil(t, tx.From)
			return ethtypes.MustNewHexBytes0xPrefix("0x"), nil
		},
	})
	defer done()

	from := "0'/0"
	to := ethtypes.MustNewAddress("0x84ed5aea4d9e32f60f13b9b5ff0e2abfa94f9799")
	_, err := ec.CallContract(ctx, &from, &ethsigner.Transaction{To: to}, "latest")
	assert.NoError(t, err)
}

func TestCallContractFail(t *testing.T) {
	ctx, ec, done := newTestClientAndServer(t, &mockEth{
		eth_call: func(ctx context.Context, tx ethsigner.Transaction, block string) (ethtypes.HexBytes0xPrefix, error) {
			return nil, fmt.Errorf("pop")
		},
	})
	defer done()

	_, err := ec.CallContract(ctx, nil, &ethsigner.Transaction{}, "latest")
	assert.Regexp(t, "pop", err)
}

func TestBuildAndSendRawTransactionEIP1559(t *testing.T) {
	var sentRawTX ethtypes.HexBytes0xPrefix
	ctx, ec, done := newTestClientAndServer(t, &mockEth{
		eth_getTransactionCount: func(ctx context.Context, addr string, block string) (ethtypes.HexUint64, error) {
			return 10, nil
		},
		eth_estimateGas: func(ctx context.Context, tx ethsigner.Transaction) (ethtypes.HexInteger, error) {
			return *ethtypes.NewHexIntegerU64(100000), nil
		},
		eth_sendRawTransaction: func(ctx context.Context, rawTX ethtypes.HexBytes0xPrefix) (ethtypes.HexBytes0xPrefix, error) {
			sentRawTX = rawTX
			return ethtypes.MustNewHexBytes0xPrefix("0x5513ef6312f27ce50d219f9d2c0c2b67"), nil
		},
	})
	defer done()

	to := ethtypes.MustNewAddress("0x84ed5aea4d9e32f60f13b9b5ff0e2abfa94f9799")
	rawTX, err := ec.BuildRawTransaction(ctx, EIP1559, "0'/0", &ethsigner.Transaction{
		To:   to,
		Data: ethtypes.MustNewHexBytes0xPrefix("0xdeadbeef"),
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, rawTX)

	txHash, err := ec.SendRawTransaction(ctx, rawTX)
	assert.NoError(t, err)
	assert.NotEmpty(t, txHash)
	assert.Equal(t, rawTX, sentRawTX)
}

func TestBuildRawTransactionLegacyVariants(t *testing.T) {
	ctx, ec, done := newTestClientAndServer(t, &mockEth{
		eth_getTransactionCount: func(ctx context.Context, addr string, block string) (ethtypes.HexUint64, error) {
			return 0, nil
		},
		eth_estimateGas: func(ctx context.Context, tx ethsigner.Transaction) (ethtypes.HexInteger, error) {
			return *ethtypes.NewHexIntegerU64(21000), nil
		},
	})
	defer done()

	to := ethtypes.MustNewAddress("0x84ed5aea4d9e32f60f13b9b5ff0e2abfa94f9799")
	for _, v := range []EthTXVersion{LEGACY_EIP155, LEGACY_ORIGINAL} {
		rawTX, err := ec.BuildRawTransaction(ctx, v, "0'/0", &ethsigner.Transaction{To: to})
		assert.NoError(t, err)
		assert.NotEmpty(t, rawTX)
	}

	_, err := ec.BuildRawTransaction(ctx, EthTXVersion("wrong"), "0'/0", &ethsigner.Transaction{To: to})
	assert.Regexp(t, "PP010208", err)
}

func TestBuildRawTransactionNoWallet(t *testing.T) {
	server := newTestRPCServer(t, &mockEth{})
	defer server.Close()

	ec, err := NewClient(context.Background(), nil, &Config{
		HTTP: rpcclient.HTTPConfig{URL: server.URL},
	})
	assert.NoError(t, err)

	_, err = ec.BuildRawTransaction(context.Background(), EIP1559, "0'/0", &ethsigner.Transaction{})
	assert.Regexp(t, "PP010209", err)
}

func TestBuildRawTransactionNonceFail(t *testing.T) {
	ctx, ec, done := newTestClientAndServer(t, &mockEth{
		eth_getTransactionCount: func(ctx context.Context, addr string, block string) (ethtypes.HexUint64, error) {
			return 0, fmt.Errorf("pop")
		},
	})
	defer done()

	_, err := ec.BuildRawTransaction(ctx, EIP1559, "0'/0", &ethsigner.Transaction{})
	assert.Regexp(t, "pop", err)
}

func TestBuildRawTransactionGasEstimateFail(t *testing.T) {
	ctx, ec, done := newTestClientAndServer(t, &mockEth{
		eth_getTransactionCount: func(ctx context.Context, addr string, block string) (ethtypes.HexUint64, error) {
			return 0, nil
		},
		eth_estimateGas: func(ctx context.Context, tx ethsigner.Transaction) (ethtypes.HexInteger, error) {
			return ethtypes.HexInteger{}, fmt.Errorf("pop")
		},
	})
	defer done()

	_, err := ec.BuildRawTransaction(ctx, EIP1559, "0'/0", &ethsigner.Transaction{})
	assert.Regexp(t, "pop", err)
}

func TestWaitForReceiptSuccess(t *testing.T) {
	attempts := 0
	ctx, ec, done := newTestClientAndServer(t, &mockEth{
		eth_getTransactionReceipt: func(ctx context.Context, txHash ethtypes.HexBytes0xPrefix) (*TransactionReceipt, error) {
			attempts++
			if attempts < 2 {
				// Not mined yet
				return nil, nil
			}
			return &TransactionReceipt{
				TransactionHash: txHash,
				Status:          ethtypes.NewHexIntegerU64(1),
				BlockNumber:     ethtypes.NewHexIntegerU64(12345),
			}, nil
		},
	})
	defer done()

	receipt, err := ec.WaitForReceipt(ctx, ethtypes.MustNewHexBytes0xPrefix("0xaabbccdd"))
	assert.NoError(t, err)
	assert.Equal(t, int64(12345), receipt.BlockNumber.BigInt().Int64())
	assert.Equal(t, 2, attempts)
}

func TestWaitForReceiptReverted(t *testing.T) {
	ctx, ec, done := newTestClientAndServer(t, &mockEth{
		eth_getTransactionReceipt: func(ctx context.Context, txHash ethtypes.HexBytes0xPrefix) (*TransactionReceipt, error) {
			return &TransactionReceipt{
				TransactionHash: txHash,
				Status:          ethtypes.NewHexIntegerU64(0),
			}, nil
		},
	})
	defer done()

	_, err := ec.WaitForReceipt(ctx, ethtypes.MustNewHexBytes0xPrefix("0xaabbccdd"))
	assert.Regexp(t, "PP010210", err)
}

func TestWaitForReceiptTimeout(t *testing.T) {
	attempts := 0
	ctx, ec, done := newTestClientAndServer(t, &mockEth{
		eth_getTransactionReceipt: func(ctx context.Context, txHash ethtypes.HexBytes0xPrefix) (*TransactionReceipt, error) {
			attempts++
			return nil, nil
		},
	})
	defer done()

	_, err := ec.WaitForReceipt(ctx, ethtypes.MustNewHexBytes0xPrefix("0xaabbccdd"))
	assert.Regexp(t, "PP010212", err)
	assert.Equal(t, 3, attempts)
}

func TestMapError(t *testing.T) {
	assert.Equal(t, ErrorReasonNonceTooLow, MapError(fmt.Errorf("RPC error: nonce too low")))
	assert.Equal(t, ErrorReasonInsufficientFunds, MapError(fmt.Errorf("insufficient funds for gas")))
	assert.Equal(t, ErrorKnownTransaction, MapError(fmt.Errorf("already known")))
	assert.Equal(t, ErrorReasonTransactionReverted, MapError(fmt.Errorf("execution reverted: bad proof")))
	assert.Equal(t, ErrorReason(""), MapError(fmt.Errorf("anything else")))
}
