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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/investdao/privpool/internal/confutil"
	"github.com/investdao/privpool/pkg/config"
	"github.com/investdao/privpool/pkg/pool"
)

// Runs the pool member until interrupted, reconciling the proposal store
// against the ledger on an interval
func run(ctx context.Context, configFile string) error {
	var conf config.PoolConfig
	if err := config.ReadAndParseYAMLFile(ctx, configFile, &conf); err != nil {
		return err
	}

	p, err := pool.NewPool(ctx, &conf)
	if err != nil {
		return err
	}
	defer p.Stop()

	session, err := p.Connect(ctx)
	if err != nil {
		return err
	}
	defer p.Disconnect(ctx)
	stats := session.Statistics()
	log.L(ctx).Infof("connected: %d proposals (%d verified)", stats.TotalCount, stats.VerifiedCount)

	interval := confutil.DurationMin(conf.ReconcileInterval, 1*time.Second, confutil.Duration(config.Defaults.ReconcileInterval, 30*time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	for {
		select {
		case <-ticker.C:
			if err := session.Reconcile(ctx); err != nil {
				log.L(ctx).Warnf("reconciliation failed: %s", err)
			}
		case sig := <-signals:
			log.L(ctx).Infof("shutting down on %s", sig)
			return nil
		}
	}
}

func main() {
	configFile := flag.String("config", "pool.yaml", "path to the pool configuration file")
	flag.Parse()

	if err := run(context.Background(), *configFile); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
