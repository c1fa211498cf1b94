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

package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"testing"

	"github.com/investdao/privpool/internal/confutil"
	"github.com/investdao/privpool/internal/rpcclient"
	"github.com/investdao/privpool/pkg/config"
	"github.com/investdao/privpool/pkg/fhe"
	"github.com/investdao/privpool/pkg/ledger"
	"github.com/investdao/privpool/pkg/persistence"
	"github.com/investdao/privpool/pkg/signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testContract   = "0x05d936207F04D81a85881b72A0D17854Ee8BE45A"
	testWalletSeed = "7a30f3ea28db2a1d1f80cc5b2e0d0e31a47a4c1e9d9b9d0bb0191f0d45b5e1a7"

	// ABI encodings of the contract views the session hits on connect
	encodedTrue      = "0x0000000000000000000000000000000000000000000000000000000000000001"
	encodedFalse     = "0x0000000000000000000000000000000000000000000000000000000000000000"
	encodedEmptyList = "0x0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000000"
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// newTestRPCServer answers eth_chainId, then pops one canned result per
// eth_call in order
func newTestRPCServer(t *testing.T, chainIDOK bool, callResults ...string) *httptest.Server {
	calls := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		assert.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		response := map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
		}
		switch {
		case req.Method == "eth_chainId" && chainIDOK:
			response["result"] = "0x1"
		case req.Method == "eth_call" && calls < len(callResults):
			response["result"] = callResults[calls]
			calls++
		default:
			response["error"] = map[string]any{
				"code":    -32000,
				"message": fmt.Sprintf("pop: %s", req.Method),
			}
		}
		_ = json.NewEncoder(w).Encode(response)
	}))
}

func newTestConfig(server *httptest.Server) *config.PoolConfig {
	return &config.PoolConfig{
		Contract: testContract,
		Ledger: ledger.Config{
			HTTP: rpcclient.HTTPConfig{URL: server.URL},
		},
		Relayer: fhe.Config{
			HTTP: rpcclient.HTTPConfig{URL: "http://localhost:8546"},
		},
		Signer: signer.Config{Seed: testWalletSeed},
	}
}

func TestNewPoolAndConnect(t *testing.T) {
	ctx := context.Background()
	server := newTestRPCServer(t, true, encodedTrue, encodedEmptyList)
	defer server.Close()

	p, err := NewPool(ctx, newTestConfig(server))
	require.NoError(t, err)
	defer p.Stop()

	require.NotNil(t, p.Account())
	assert.NotNil(t, p.Notifier())
	assert.Nil(t, p.Session())

	session, err := p.Connect(ctx)
	require.NoError(t, err)
	assert.Len(t, session.Proposals(), 0)
	assert.Same(t, session, p.Session())

	// A second connect reuses the open session
	again, err := p.Connect(ctx)
	require.NoError(t, err)
	assert.Same(t, session, again)

	p.Disconnect(ctx)
	assert.Nil(t, p.Session())
}

func TestNewPoolReadOnly(t *testing.T) {
	ctx := context.Background()
	server := newTestRPCServer(t, true)
	defer server.Close()

	conf := newTestConfig(server)
	conf.Signer.Seed = ""
	p, err := NewPool(ctx, conf)
	require.NoError(t, err)
	defer p.Stop()

	assert.Nil(t, p.Account())
}

func TestConnectContractNotAvailable(t *testing.T) {
	ctx := context.Background()
	server := newTestRPCServer(t, true, encodedFalse)
	defer server.Close()

	p, err := NewPool(ctx, newTestConfig(server))
	require.NoError(t, err)
	defer p.Stop()

	_, err = p.Connect(ctx)
	assert.Regexp(t, "PP010213", err)
	assert.Nil(t, p.Session())
}

func TestNewPoolMissingContract(t *testing.T) {
	server := newTestRPCServer(t, true)
	defer server.Close()

	conf := newTestConfig(server)
	conf.Contract = ""
	_, err := NewPool(context.Background(), conf)
	assert.Regexp(t, "PP010603", err)
}

func TestNewPoolInvalidContract(t *testing.T) {
	server := newTestRPCServer(t, true)
	defer server.Close()

	conf := newTestConfig(server)
	conf.Contract = "wrong"
	_, err := NewPool(context.Background(), conf)
	assert.Regexp(t, "PP010604", err)
}

func TestNewPoolBadLogLevel(t *testing.T) {
	server := newTestRPCServer(t, true)
	defer server.Close()

	conf := newTestConfig(server)
	conf.Log.Level = confutil.P("wrong")
	_, err := NewPool(context.Background(), conf)
	assert.Regexp(t, "PP010602", err)
}

func TestNewPoolBadSeed(t *testing.T) {
	server := newTestRPCServer(t, true)
	defer server.Close()

	conf := newTestConfig(server)
	conf.Signer.Seed = "not a seed"
	_, err := NewPool(context.Background(), conf)
	assert.Regexp(t, "PP010302", err)
}

func TestNewPoolBadLedgerURL(t *testing.T) {
	server := newTestRPCServer(t, true)
	defer server.Close()

	conf := newTestConfig(server)
	conf.Ledger.HTTP.URL = ":::wrong"
	_, err := NewPool(context.Background(), conf)
	assert.Regexp(t, "PP010200", err)
}

func TestNewPoolBadRelayerURL(t *testing.T) {
	server := newTestRPCServer(t, true)
	defer server.Close()

	conf := newTestConfig(server)
	conf.Relayer.HTTP.URL = ":::wrong"
	_, err := NewPool(context.Background(), conf)
	assert.Regexp(t, "PP010200", err)
}

func TestNewPoolChainIDFails(t *testing.T) {
	server := newTestRPCServer(t, false)
	defer server.Close()

	_, err := NewPool(context.Background(), newTestConfig(server))
	assert.Regexp(t, "PP010201", err)
}

func TestNewPoolDBMissingURI(t *testing.T) {
	server := newTestRPCServer(t, true)
	defer server.Close()

	conf := newTestConfig(server)
	conf.DB.Type = persistence.TypeSQLite
	_, err := NewPool(context.Background(), conf)
	assert.Regexp(t, "PP010501", err)
}

func TestNewPoolWithJournalDB(t *testing.T) {
	server := newTestRPCServer(t, true)
	defer server.Close()

	conf := newTestConfig(server)
	conf.DB.Type = persistence.TypeSQLite
	conf.DB.SQLite.URI = path.Join(t.TempDir(), "journal.db")
	p, err := NewPool(context.Background(), conf)
	require.NoError(t, err)
	defer p.Stop()

	assert.NotNil(t, p.journal)
}
