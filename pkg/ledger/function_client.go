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
	"math/big"
	"strconv"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethsigner"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/investdao/privpool/internal/msgs"
)

// ABIClient is bound to a single contract ABI, and resolves individual
// functions by name or full signature.
type ABIClient interface {
	ABI() abi.ABI
	Function(ctx context.Context, nameOrFullSig string) (_ ABIFunctionClient, err error)
	MustFunction(nameOrFullSig string) ABIFunctionClient
}

type ABIFunctionClient interface {
	R(ctx context.Context) ABIFunctionRequestBuilder
}

// ABIFunctionRequestBuilder assembles one call or transaction against a
// resolved function. Builders are single use and not safe for concurrent
// access.
type ABIFunctionRequestBuilder interface {
	TXVersion(EthTXVersion) ABIFunctionRequestBuilder
	Signer(string) ABIFunctionRequestBuilder
	To(*ethtypes.Address0xHex) ABIFunctionRequestBuilder
	GasLimit(*big.Int) ABIFunctionRequestBuilder
	BlockRef(blockRef BlockRef) ABIFunctionRequestBuilder
	Block(uint64) ABIFunctionRequestBuilder
	Input(any) ABIFunctionRequestBuilder
	Output(any) ABIFunctionRequestBuilder

	Call() (err error)
	CallJSON() (jsonData []byte, err error)
	RawTransaction() (rawTX ethtypes.HexBytes0xPrefix, err error)
	SignAndSend() (txHash ethtypes.HexBytes0xPrefix, err error)
}

type BlockRef string

const (
	LATEST    BlockRef = "latest"
	EARLIEST  BlockRef = "earliest"
	PENDING   BlockRef = "pending"
	SAFE      BlockRef = "safe"
	FINALIZED BlockRef = "finalized"
)

type abiClient struct {
	ec        *ethClient
	abi       abi.ABI
	functions map[string]*abi.Entry
}

type abiFunctionClient struct {
	ec        *ethClient
	signature string
	selector  []byte
	inputs    abi.TypeComponent
	outputs   abi.TypeComponent
}

type abiFunctionRequestBuilder struct {
	*abiFunctionClient
	ctx       context.Context
	txVersion EthTXVersion
	tx        ethsigner.Transaction
	block     string
	fromStr   *string
	input     any
	output    any
}

func (ec *ethClient) ABIJSON(ctx context.Context, abiJSON []byte) (ABIClient, error) {
	var a abi.ABI
	err := json.Unmarshal(abiJSON, &a)
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgLedgerInvalidABIJSON)
	}
	return ec.abiClient(ctx, a)
}

func (ec *ethClient) MustABIJSON(abiJSON []byte) ABIClient {
	abic, err := ec.ABIJSON(context.Background(), abiJSON)
	if err != nil {
		panic(err)
	}
	return abic
}

func (ec *ethClient) abiClient(ctx context.Context, a abi.ABI) (ABIClient, error) {
	functions := map[string]*abi.Entry{}
	for _, e := range a {
		s, err := e.SignatureCtx(ctx)
		if err != nil {
			return nil, err
		}
		if e.Name != "" && e.IsFunction() {
			// Unnamed outputs serialize under their positional index
			for i, o := range e.Outputs {
				if o.Name == "" {
					o.Name = strconv.Itoa(i)
				}
			}
			functions[e.Name] = e
			functions[s] = e
		}
	}
	return &abiClient{
		ec:        ec,
		abi:       a,
		functions: functions,
	}, nil
}

func (abic *abiClient) ABI() abi.ABI {
	return abic.abi
}

func (abic *abiClient) Function(ctx context.Context, nameOrFullSig string) (_ ABIFunctionClient, err error) {
	functionABI := abic.functions[nameOrFullSig]
	if functionABI == nil {
		return nil, i18n.NewError(ctx, msgs.MsgLedgerFunctionNotFound, nameOrFullSig)
	}
	fc := &abiFunctionClient{ec: abic.ec}
	fc.selector, err = functionABI.GenerateFunctionSelectorCtx(ctx)
	if err == nil {
		fc.signature, err = functionABI.SignatureCtx(ctx)
	}
	if err == nil {
		fc.inputs, err = functionABI.Inputs.TypeComponentTreeCtx(ctx)
	}
	if err == nil {
		fc.outputs, err = functionABI.Outputs.TypeComponentTreeCtx(ctx)
	}
	if err != nil {
		return nil, err
	}
	return fc, nil
}

func (abic *abiClient) MustFunction(nameOrFullSig string) ABIFunctionClient {
	fc, err := abic.Function(context.Background(), nameOrFullSig)
	if err != nil {
		panic(err)
	}
	return fc
}

func (fc *abiFunctionClient) R(ctx context.Context) ABIFunctionRequestBuilder {
	return &abiFunctionRequestBuilder{
		ctx:               ctx,
		txVersion:         EIP1559,
		abiFunctionClient: fc,
		block:             string(LATEST),
	}
}

func (rb *abiFunctionRequestBuilder) TXVersion(v EthTXVersion) ABIFunctionRequestBuilder {
	rb.txVersion = v
	return rb
}

func (rb *abiFunctionRequestBuilder) Signer(fromStr string) ABIFunctionRequestBuilder {
	rb.fromStr = &fromStr
	return rb
}

func (rb *abiFunctionRequestBuilder) To(to *ethtypes.Address0xHex) ABIFunctionRequestBuilder {
	rb.tx.To = to
	return rb
}

func (rb *abiFunctionRequestBuilder) GasLimit(gas *big.Int) ABIFunctionRequestBuilder {
	rb.tx.GasLimit = (*ethtypes.HexInteger)(gas)
	return rb
}

func (rb *abiFunctionRequestBuilder) BlockRef(blockRef BlockRef) ABIFunctionRequestBuilder {
	rb.block = string(blockRef)
	return rb
}

func (rb *abiFunctionRequestBuilder) Block(block uint64) ABIFunctionRequestBuilder {
	rb.block = "0x" + strconv.FormatUint(block, 16)
	return rb
}

func (rb *abiFunctionRequestBuilder) Input(input any) ABIFunctionRequestBuilder {
	rb.input = input
	return rb
}

func (rb *abiFunctionRequestBuilder) Output(output any) ABIFunctionRequestBuilder {
	rb.output = output
	return rb
}

func (rb *abiFunctionRequestBuilder) buildCallData() (err error) {
	if rb.input == nil {
		return i18n.NewError(rb.ctx, msgs.MsgLedgerMissingInput)
	}
	if rb.tx.To == nil {
		return i18n.NewError(rb.ctx, msgs.MsgLedgerMissingTo)
	}
	// Inputs can be supplied as a map, serialized JSON, or any struct that
	// marshals to the right shape
	var inputMap map[string]any
	switch input := rb.input.(type) {
	case map[string]any:
		inputMap = input
	case string:
		err = json.Unmarshal([]byte(input), &inputMap)
	case []byte:
		err = json.Unmarshal(input, &inputMap)
	default:
		var jsonInput []byte
		jsonInput, err = json.Marshal(rb.input)
		if err == nil {
			err = json.Unmarshal(jsonInput, &inputMap)
		}
	}
	var cv *abi.ComponentValue
	if err == nil {
		cv, err = rb.inputs.ParseExternalCtx(rb.ctx, inputMap)
	}
	var inputData []byte
	if err == nil {
		inputData, err = cv.EncodeABIDataCtx(rb.ctx)
	}
	if err != nil {
		return i18n.WrapError(rb.ctx, err, msgs.MsgLedgerInvalidInput, rb.signature)
	}
	rb.tx.Data = make([]byte, len(rb.selector)+len(inputData))
	copy(rb.tx.Data, rb.selector)
	copy(rb.tx.Data[len(rb.selector):], inputData)
	return nil
}

func (rb *abiFunctionRequestBuilder) Call() (err error) {
	if rb.output == nil {
		return i18n.NewError(rb.ctx, msgs.MsgLedgerMissingOutput)
	}
	jsonData, err := rb.CallJSON()
	if err == nil {
		err = json.Unmarshal(jsonData, rb.output)
	}
	return err
}

func (rb *abiFunctionRequestBuilder) CallJSON() (jsonData []byte, err error) {
	if rb.tx.Data == nil {
		if err := rb.buildCallData(); err != nil {
			return nil, err
		}
	}
	resData, err := rb.ec.CallContract(rb.ctx, rb.fromStr, &rb.tx, rb.block)
	if err != nil {
		return nil, err
	}
	cv, err := rb.outputs.DecodeABIDataCtx(rb.ctx, resData, 0)
	if err == nil {
		jsonData, err = StandardABISerializer().SerializeJSONCtx(rb.ctx, cv)
	}
	return jsonData, err
}

func (rb *abiFunctionRequestBuilder) RawTransaction() (rawTX ethtypes.HexBytes0xPrefix, err error) {
	if rb.tx.Data == nil {
		if err := rb.buildCallData(); err != nil {
			return nil, err
		}
	}
	if rb.fromStr == nil {
		return nil, i18n.NewError(rb.ctx, msgs.MsgLedgerMissingFrom)
	}
	return rb.ec.BuildRawTransaction(rb.ctx, rb.txVersion, *rb.fromStr, &rb.tx)
}

func (rb *abiFunctionRequestBuilder) SignAndSend() (txHash ethtypes.HexBytes0xPrefix, err error) {
	rawTX, err := rb.RawTransaction()
	if err != nil {
		return nil, err
	}
	return rb.ec.SendRawTransaction(rb.ctx, rawTX)
}
