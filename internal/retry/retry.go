// Copyright © 2025 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retry

import (
	"time"

	ffretry "github.com/hyperledger/firefly-common/pkg/retry"
	"github.com/investdao/privpool/internal/confutil"
)

type Config struct {
	InitialDelay *string  `json:"initialDelay"`
	MaxDelay     *string  `json:"maxDelay"`
	Factor       *float64 `json:"factor"`
	MaxAttempts  *int     `json:"maxAttempts"`
}

var Defaults = &Config{
	InitialDelay: confutil.P("250ms"),
	MaxDelay:     confutil.P("10s"),
	Factor:       confutil.P(2.0),
	MaxAttempts:  confutil.P(0), // unlimited - callers bound via MaxAttempts() or ctx
}

// New builds a firefly-common retry from the pointer-field config,
// falling back to the supplied defaults.
func New(conf *Config, defs *Config) *ffretry.Retry {
	return &ffretry.Retry{
		InitialDelay: confutil.DurationMin(conf.InitialDelay, 1*time.Millisecond, confutil.Duration(defs.InitialDelay, 250*time.Millisecond)),
		MaximumDelay: confutil.DurationMin(conf.MaxDelay, 1*time.Millisecond, confutil.Duration(defs.MaxDelay, 10*time.Second)),
		Factor:       confutil.Float64Min(conf.Factor, 1.0, *defs.Factor),
	}
}

// MaxAttempts resolves the attempt bound for loops that must terminate
// even on a healthy backoff schedule.
func MaxAttempts(conf *Config, defs *Config) int {
	return confutil.IntMin(conf.MaxAttempts, 0, *defs.MaxAttempts)
}
