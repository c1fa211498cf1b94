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

package config

import (
	"context"
	"os"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/investdao/privpool/internal/confutil"
	"github.com/investdao/privpool/internal/msgs"
	"github.com/investdao/privpool/internal/notify"
	"github.com/investdao/privpool/internal/orchestrator"
	"github.com/investdao/privpool/pkg/fhe"
	"github.com/investdao/privpool/pkg/ledger"
	"github.com/investdao/privpool/pkg/persistence"
	"github.com/investdao/privpool/pkg/signer"
	"github.com/sirupsen/logrus"
	"sigs.k8s.io/yaml" // because it supports JSON tags
)

type LogConfig struct {
	Level *string `json:"level"`
}

// PoolConfig is the root configuration of one pool member - the ledger
// connection, the FHE relayer, the signing wallet, and the optional
// operation journal database.
type PoolConfig struct {
	Log               LogConfig           `json:"log"`
	Contract          string              `json:"contract"`
	SigningKey        *string             `json:"signingKey"`
	ReconcileInterval *string             `json:"reconcileInterval"`
	Ledger            ledger.Config       `json:"ledger"`
	Relayer           fhe.Config          `json:"relayer"`
	Signer            signer.Config       `json:"signer"`
	DB                persistence.Config  `json:"db"`
	Notifications     notify.Config       `json:"notifications"`
	Orchestrator      orchestrator.Config `json:"orchestrator"`
}

var Defaults = &PoolConfig{
	SigningKey:        confutil.P("0'/0"),
	ReconcileInterval: confutil.P("30s"),
}

func ReadAndParseYAMLFile(ctx context.Context, filePath string, config interface{}) error {
	// Note we use the YAML parser (like Kubernetes) that handles json tags
	data, err := os.ReadFile(filePath)
	if err != nil {
		log.L(ctx).Errorf("failed to read file: %v", err)
		return i18n.WrapError(ctx, err, msgs.MsgConfigFileReadFailed, filePath)
	}

	err = yaml.Unmarshal(data, config)
	if err != nil {
		log.L(ctx).Errorf("failed to parse file: %v", err)
		return i18n.WrapError(ctx, err, msgs.MsgConfigFileParseFailed, filePath)
	}

	return nil
}

// SetupLogging validates and applies the configured log level
func SetupLogging(ctx context.Context, conf *LogConfig) error {
	level := confutil.StringNotEmpty(conf.Level, "info")
	if _, err := logrus.ParseLevel(level); err != nil {
		return i18n.NewError(ctx, msgs.MsgConfigInvalidLogLevel, level)
	}
	log.SetLevel(level)
	return nil
}
