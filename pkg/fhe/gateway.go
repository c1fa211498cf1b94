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

// Package fhe is the client to the FHE relayer, which performs the actual
// encryption and threshold decryption. The gateway never sees key shares -
// it exchanges plaintexts, ciphertext handles and proofs with the relayer
// over REST, and hands the proofs to the caller for on-ledger submission.
package fhe

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-common/pkg/log"
	ffretry "github.com/hyperledger/firefly-common/pkg/retry"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/investdao/privpool/internal/cache"
	"github.com/investdao/privpool/internal/confutil"
	"github.com/investdao/privpool/internal/msgs"
	"github.com/investdao/privpool/internal/retry"
	"github.com/investdao/privpool/internal/rpcclient"
	"golang.org/x/crypto/sha3"
)

type Config struct {
	HTTP           rpcclient.HTTPConfig `json:"http"`
	KeyCache       cache.Config         `json:"keyCache"`
	DecryptPolling retry.Config         `json:"decryptPolling"`
}

var Defaults = &Config{
	KeyCache: cache.Config{
		Capacity: confutil.P(16),
	},
	DecryptPolling: retry.Config{
		InitialDelay: confutil.P("250ms"),
		MaxDelay:     confutil.P("5s"),
		Factor:       confutil.P(2.0),
		MaxAttempts:  confutil.P(20),
	},
}

// Ciphertext is the result of encrypting one value - the handle the
// ledger stores, and the input proof it verifies at submission.
type Ciphertext struct {
	Handle ethtypes.HexBytes0xPrefix `json:"handle"`
	Proof  ethtypes.HexBytes0xPrefix `json:"proof"`
}

type Gateway interface {
	// Encrypt encrypts a single 64-bit value for the given contract, bound
	// to the submitting account
	Encrypt(ctx context.Context, value uint64, contract, account *ethtypes.Address0xHex) (*Ciphertext, error)
	// BeginDecryption opens a decryption session for the given ciphertext
	// handles. The relayer works asynchronously - the returned session is
	// polled for the clear values and the decryption proof.
	BeginDecryption(ctx context.Context, contract *ethtypes.Address0xHex, handles []ethtypes.HexBytes0xPrefix) (DecryptionSession, error)
}

type gateway struct {
	http            *resty.Client
	keyCache        cache.Cache[string, *keyMaterial]
	decryptRetry    *ffretry.Retry
	decryptAttempts int
}

func NewGateway(ctx context.Context, conf *Config) (Gateway, error) {
	httpClient, err := rpcclient.ParseHTTPConfig(ctx, &conf.HTTP)
	if err != nil {
		return nil, err
	}
	return &gateway{
		http:            httpClient,
		keyCache:        cache.NewCache[string, *keyMaterial](&conf.KeyCache, &Defaults.KeyCache),
		decryptRetry:    retry.New(&conf.DecryptPolling, &Defaults.DecryptPolling),
		decryptAttempts: retry.MaxAttempts(&conf.DecryptPolling, &Defaults.DecryptPolling),
	}, nil
}

func restErr(ctx context.Context, res *resty.Response, err error, msg i18n.ErrorMessageKey) error {
	if err != nil {
		return i18n.WrapError(ctx, err, msg)
	}
	log.L(ctx).Errorf("relayer returned [%d]: %s", res.StatusCode(), res.String())
	return i18n.NewError(ctx, msg)
}

type keyMaterial struct {
	KeyID     string `json:"keyId"`
	PublicKey string `json:"publicKey"`
}

func (g *gateway) publicKey(ctx context.Context, contract *ethtypes.Address0xHex) (*keyMaterial, error) {
	cacheKey := contract.String()
	if km, ok := g.keyCache.Get(cacheKey); ok {
		return km, nil
	}
	var km keyMaterial
	res, err := g.http.R().
		SetContext(ctx).
		SetResult(&km).
		Get(fmt.Sprintf("/v1/keys/%s", contract))
	if err != nil || !res.IsSuccess() {
		return nil, restErr(ctx, res, err, msgs.MsgFHEKeyFetchFailed)
	}
	g.keyCache.Set(cacheKey, &km)
	return &km, nil
}

type encryptRequest struct {
	KeyID           string `json:"keyId"`
	ContractAddress string `json:"contractAddress"`
	AccountAddress  string `json:"accountAddress"`
	Value           uint64 `json:"value"`
	Bits            int    `json:"bits"`
}

type encryptResponse struct {
	Ciphertext ethtypes.HexBytes0xPrefix `json:"ciphertext"`
	Proof      ethtypes.HexBytes0xPrefix `json:"proof"`
}

func (g *gateway) Encrypt(ctx context.Context, value uint64, contract, account *ethtypes.Address0xHex) (*Ciphertext, error) {
	km, err := g.publicKey(ctx, contract)
	if err != nil {
		return nil, err
	}
	var encRes encryptResponse
	res, err := g.http.R().
		SetContext(ctx).
		SetBody(&encryptRequest{
			KeyID:           km.KeyID,
			ContractAddress: contract.String(),
			AccountAddress:  account.String(),
			Value:           value,
			Bits:            64,
		}).
		SetResult(&encRes).
		Post("/v1/encrypt")
	if err != nil || !res.IsSuccess() {
		return nil, restErr(ctx, res, err, msgs.MsgFHEEncryptFailed)
	}
	handle := ciphertextHandle(encRes.Ciphertext)
	log.L(ctx).Debugf("encrypted %d-bit value to handle %s", 64, handle)
	return &Ciphertext{
		Handle: handle,
		Proof:  encRes.Proof,
	}, nil
}

// ciphertextHandle derives the 32-byte handle the ledger stores for a
// ciphertext - the keccak256 of the ciphertext bytes, matching the
// relayer's own derivation
func ciphertextHandle(ciphertext []byte) ethtypes.HexBytes0xPrefix {
	hash := sha3.NewLegacyKeccak256()
	hash.Write(ciphertext)
	return hash.Sum(nil)
}

type decryptRequest struct {
	ContractAddress string   `json:"contractAddress"`
	Handles         []string `json:"handles"`
}

type decryptResponse struct {
	RequestID string `json:"requestId"`
}

func (g *gateway) BeginDecryption(ctx context.Context, contract *ethtypes.Address0xHex, handles []ethtypes.HexBytes0xPrefix) (DecryptionSession, error) {
	if len(handles) == 0 {
		return nil, i18n.NewError(ctx, msgs.MsgFHENoHandles)
	}
	handleStrs := make([]string, len(handles))
	for i, h := range handles {
		handleStrs[i] = h.String()
	}
	var decRes decryptResponse
	res, err := g.http.R().
		SetContext(ctx).
		SetBody(&decryptRequest{
			ContractAddress: contract.String(),
			Handles:         handleStrs,
		}).
		SetResult(&decRes).
		Post("/v1/decrypt")
	if err != nil || !res.IsSuccess() {
		return nil, restErr(ctx, res, err, msgs.MsgFHEDecryptRequestFailed)
	}
	log.L(ctx).Infof("decryption session %s opened for %d handle(s)", decRes.RequestID, len(handles))
	return &decryptionSession{
		g:         g,
		requestID: decRes.RequestID,
		handles:   handles,
	}, nil
}
