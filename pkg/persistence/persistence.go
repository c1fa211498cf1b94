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

// Package persistence provides the SQL database used for the local
// operation journal. SQLite is the default for a single-member
// deployment, PostgreSQL for anything shared.
package persistence

import (
	"context"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/investdao/privpool/internal/msgs"
	"gorm.io/gorm"
)

type Persistence interface {
	DB() *gorm.DB
	Close()
}

const (
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
)

type Config struct {
	Type     string         `json:"type"`
	Postgres PostgresConfig `json:"postgres"`
	SQLite   SQLiteConfig   `json:"sqlite"`
}

type PostgresConfig struct {
	SQLDBConfig
}

type SQLiteConfig struct {
	SQLDBConfig
}

func NewPersistence(ctx context.Context, conf *Config) (Persistence, error) {
	var p *provider
	var err error
	switch conf.Type {
	case "", TypeSQLite: // default
		p, err = newSQLitePersistence(ctx, conf)
	case TypePostgres:
		p, err = newPostgresPersistence(ctx, conf)
	default:
		return nil, i18n.NewError(ctx, msgs.MsgPersistenceInvalidType, conf.Type)
	}
	// Do not box a nil provider into the interface
	if err != nil {
		return nil, err
	}
	return p, nil
}
