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

// Package pool assembles a running pool member from configuration - the
// signing wallet, the ledger client and contract binding, the FHE
// relayer gateway, the optional journal database, and the notifier. The
// orchestrator session is created on Connect and torn down on
// Disconnect, while the assembled components live for the process.
package pool

import (
	"context"
	"sync"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/investdao/privpool/internal/confutil"
	"github.com/investdao/privpool/internal/journal"
	"github.com/investdao/privpool/internal/msgs"
	"github.com/investdao/privpool/internal/notify"
	"github.com/investdao/privpool/internal/orchestrator"
	"github.com/investdao/privpool/pkg/config"
	"github.com/investdao/privpool/pkg/fhe"
	"github.com/investdao/privpool/pkg/ledger"
	"github.com/investdao/privpool/pkg/persistence"
	"github.com/investdao/privpool/pkg/signer"
)

type Pool struct {
	conf       *config.PoolConfig
	wallet     signer.Wallet
	ec         ledger.Client
	contract   ledger.InvestmentPool
	crypto     fhe.Gateway
	db         persistence.Persistence
	journal    journal.Journal
	notifier   *notify.Notifier
	signingKey string
	account    *ethtypes.Address0xHex

	lock    sync.Mutex
	session *orchestrator.Session
}

// NewPool builds all the components from the configuration. A config
// without a signer seed produces a read-only member that can reconcile
// and query but not create or reveal. The journal database is wired only
// when a db type is configured.
func NewPool(ctx context.Context, conf *config.PoolConfig) (_ *Pool, err error) {
	if err := config.SetupLogging(ctx, &conf.Log); err != nil {
		return nil, err
	}
	if conf.Contract == "" {
		return nil, i18n.NewError(ctx, msgs.MsgPoolMissingContract)
	}
	contractAddr, err := ethtypes.NewAddress(conf.Contract)
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgPoolInvalidContract, conf.Contract)
	}

	p := &Pool{
		conf:       conf,
		signingKey: confutil.StringNotEmpty(conf.SigningKey, *config.Defaults.SigningKey),
	}
	defer func() {
		if err != nil {
			p.Stop()
		}
	}()

	if conf.Signer.Seed != "" {
		if p.wallet, err = signer.NewWallet(ctx, &conf.Signer); err != nil {
			return nil, err
		}
		_, verifier, err := p.wallet.ResolveKey(ctx, p.signingKey, signer.Algorithm_ECDSA_SECP256K1)
		if err != nil {
			return nil, err
		}
		if p.account, err = ethtypes.NewAddress(verifier); err != nil {
			return nil, err
		}
	}

	if p.ec, err = ledger.NewClient(ctx, p.wallet, &conf.Ledger); err != nil {
		return nil, err
	}
	if p.contract, err = ledger.NewInvestmentPool(ctx, p.ec, contractAddr, p.signingKey); err != nil {
		return nil, err
	}
	if p.crypto, err = fhe.NewGateway(ctx, &conf.Relayer); err != nil {
		return nil, err
	}

	if conf.DB.Type != "" {
		if p.db, err = persistence.NewPersistence(ctx, &conf.DB); err != nil {
			return nil, err
		}
		p.journal = journal.NewJournal(p.db)
	}

	p.notifier = notify.NewNotifier(ctx, &conf.Notifications)
	log.L(ctx).Infof("pool member assembled for contract %s (chainId=%d)", contractAddr, p.ec.ChainID())
	return p, nil
}

// SetApprover installs the interactive approval hook on the wallet
func (p *Pool) SetApprover(a signer.Approver) {
	if p.wallet != nil {
		p.wallet.SetApprover(a)
	}
}

// Account is the member's resolved signing address, nil when read-only
func (p *Pool) Account() *ethtypes.Address0xHex {
	return p.account
}

func (p *Pool) Notifier() *notify.Notifier {
	return p.notifier
}

// Connect verifies the contract and opens the orchestrator session,
// running the initial reconciliation
func (p *Pool) Connect(ctx context.Context) (*orchestrator.Session, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.session != nil {
		return p.session, nil
	}
	session, err := orchestrator.Connect(ctx, p.contract, p.crypto, p.notifier, p.journal, p.account, &p.conf.Orchestrator)
	if err != nil {
		return nil, err
	}
	p.session = session
	return session, nil
}

// Session returns the connected session, or nil before Connect
func (p *Pool) Session() *orchestrator.Session {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.session
}

// Disconnect closes the orchestrator session, leaving the pool ready to
// connect again
func (p *Pool) Disconnect(ctx context.Context) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.session != nil {
		p.session.Disconnect(ctx)
		p.session = nil
	}
}

// Stop disconnects and releases all the underlying components
func (p *Pool) Stop() {
	p.Disconnect(context.Background())
	if p.notifier != nil {
		p.notifier.Close()
	}
	if p.db != nil {
		p.db.Close()
	}
	if p.ec != nil {
		p.ec.Close()
	}
	if p.wallet != nil {
		p.wallet.Close()
	}
}
