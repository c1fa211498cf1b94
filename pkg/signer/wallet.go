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

package signer

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/secp256k1"
	"github.com/investdao/privpool/internal/confutil"
	"github.com/investdao/privpool/internal/msgs"
	"github.com/tyler-smith/go-bip39"
)

const Algorithm_ECDSA_SECP256K1 = "ecdsa:secp256k1"

type Config struct {
	// A 32 byte value hex encoded, or a BIP-39 mnemonic phrase
	Seed string `json:"seed"`
	// Prefix for BIP-32 derivation of all keys resolved through this wallet
	BIP44Prefix *string `json:"bip44Prefix"`
}

var Defaults = &Config{
	BIP44Prefix: confutil.P("m/44'/60'"),
}

type SignRequest struct {
	Algorithm string
	KeyHandle string
	Payload   []byte
}

type SignResponse struct {
	// Compact R/S/V encoding of the signature
	Payload []byte
}

// Approver is consulted before any signature is produced, modelling the
// wallet prompt of an interactive signer. A non-nil error declines the
// signing request without touching key material.
type Approver interface {
	Approve(ctx context.Context, keyHandle string, payload []byte) error
}

type Wallet interface {
	ResolveKey(ctx context.Context, identifier string, algorithm string) (keyHandle, verifier string, err error)
	Sign(ctx context.Context, req *SignRequest) (*SignResponse, error)
	SetApprover(a Approver) // optional, nil means auto-approve
	Close()
}

type hdWallet struct {
	bip44Prefix string
	hdKeyChain  *hdkeychain.ExtendedKey
	approver    Approver
}

func NewWallet(ctx context.Context, conf *Config) (_ Wallet, err error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(conf.Seed, "0x"))
	if err != nil || len(seed) != 32 {
		// Not a raw seed - it might be a mnemonic saved by a human into a secrets repository
		seed, err = bip39.NewSeedWithErrorChecking(conf.Seed, "")
		if err != nil {
			return nil, i18n.NewError(ctx, msgs.MsgSignerBadSeed)
		}
	}
	w := &hdWallet{
		bip44Prefix: confutil.StringNotEmpty(conf.BIP44Prefix, *Defaults.BIP44Prefix),
	}
	w.hdKeyChain, err = hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (w *hdWallet) SetApprover(a Approver) {
	w.approver = a
}

// IsRejected classifies whether an error anywhere in a signing chain came
// from an approver declining the transaction, as callers report that very
// differently from a genuine failure
func IsRejected(err error) bool {
	return err != nil && strings.Contains(err.Error(), "PP010301")
}

// The identifier is a BIP-44 path suffix below the configured prefix, such
// as "0'/0", so resolution is deterministic for a given seed.
func (w *hdWallet) ResolveKey(ctx context.Context, identifier string, algorithm string) (keyHandle, verifier string, err error) {
	if !strings.EqualFold(algorithm, Algorithm_ECDSA_SECP256K1) {
		return "", "", i18n.NewError(ctx, msgs.MsgSignerUnsupportedAlgo, algorithm)
	}
	keyHandle = w.bip44Prefix + "/" + strings.TrimPrefix(identifier, "/")
	kp, err := w.loadKeyPair(ctx, keyHandle)
	if err != nil {
		return "", "", err
	}
	return keyHandle, kp.Address.String(), nil
}

func (w *hdWallet) Sign(ctx context.Context, req *SignRequest) (*SignResponse, error) {
	if !strings.EqualFold(req.Algorithm, Algorithm_ECDSA_SECP256K1) {
		return nil, i18n.NewError(ctx, msgs.MsgSignerUnsupportedAlgo, req.Algorithm)
	}
	if w.approver != nil {
		if err := w.approver.Approve(ctx, req.KeyHandle, req.Payload); err != nil {
			return nil, i18n.WrapError(ctx, err, msgs.MsgSignerRejected, req.KeyHandle)
		}
	}
	kp, err := w.loadKeyPair(ctx, req.KeyHandle)
	if err != nil {
		return nil, err
	}
	sig, err := kp.Sign(req.Payload)
	if err != nil {
		return nil, err
	}
	return &SignResponse{Payload: sig.CompactRSV()}, nil
}

func (w *hdWallet) loadKeyPair(ctx context.Context, keyHandle string) (*secp256k1.KeyPair, error) {
	segments := strings.Split(keyHandle, "/")
	if len(segments) < 2 || segments[0] != "m" {
		return nil, i18n.NewError(ctx, msgs.MsgSignerDerivationInvalid, keyHandle)
	}
	pos := w.hdKeyChain
	for _, s := range segments[1:] {
		number, isHardened := strings.CutSuffix(s, "'")
		derivation, err := strconv.ParseUint(number, 10, 64)
		if err != nil {
			return nil, i18n.WrapError(ctx, err, msgs.MsgSignerDerivationInvalid, keyHandle)
		}
		if derivation >= 0x80000000 {
			return nil, i18n.NewError(ctx, msgs.MsgSignerDerivationTooLarge, derivation)
		}
		if isHardened {
			derivation += 0x80000000
		}
		if pos, err = pos.Derive(uint32(derivation)); err != nil {
			return nil, i18n.WrapError(ctx, err, msgs.MsgSignerDerivationInvalid, keyHandle)
		}
	}
	ecPrivKey, err := pos.ECPrivKey()
	if err != nil {
		return nil, err
	}
	pkBytes := ecPrivKey.Key.Bytes()
	return secp256k1.NewSecp256k1KeyPair(pkBytes[:])
}

func (w *hdWallet) Close() {
	// Key material is derived on demand and held only in volatile memory
}
