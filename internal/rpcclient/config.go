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

package rpcclient

import (
	"context"
	"net/url"

	"github.com/go-resty/resty/v2"
	"github.com/hyperledger/firefly-common/pkg/ffresty"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/investdao/privpool/internal/msgs"
)

type ConfigAuth struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type HTTPConfig struct {
	URL         string                 `json:"url"`
	HTTPHeaders map[string]interface{} `json:"httpHeaders"`
	Auth        ConfigAuth             `json:"auth"`
}

func ParseHTTPConfig(ctx context.Context, config *HTTPConfig) (*resty.Client, error) {
	u, err := url.Parse(config.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, i18n.WrapError(ctx, err, msgs.MsgLedgerInvalidHTTPURL, config.URL)
	}
	restyConf := ffresty.Config{
		URL: u.String(),
		HTTPConfig: ffresty.HTTPConfig{
			HTTPHeaders:  config.HTTPHeaders,
			AuthUsername: config.Auth.Username,
			AuthPassword: config.Auth.Password,
		},
	}
	return ffresty.NewWithConfig(ctx, restyConf), nil
}
