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

package msgs

import (
	"fmt"
	"strings"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"golang.org/x/text/language"
)

const privpoolPrefix = "PP01"

var registered = false
var ffe = func(key, translation string, statusHint ...int) i18n.ErrorMessageKey {
	if !registered {
		i18n.RegisterPrefix(privpoolPrefix, "Private Pool Orchestrator")
		registered = true
	}
	if !strings.HasPrefix(key, privpoolPrefix) {
		panic(fmt.Errorf("must have prefix '%s': %s", privpoolPrefix, key))
	}
	return i18n.FFE(language.AmericanEnglish, key, translation, statusHint...)
}

var (

	// Orchestrator PP0101XX
	MsgOrchestratorNotConnected      = ffe("PP010100", "No connected signing identity for this session")
	MsgOrchestratorProposalNotFound  = ffe("PP010101", "Proposal not found: %s")
	MsgOrchestratorAmountOutOfRange  = ffe("PP010102", "Amount %d is outside the supported encrypted range")
	MsgOrchestratorEncryptionFailed  = ffe("PP010103", "Encryption of the proposal amount failed")
	MsgOrchestratorDecryptionFailed  = ffe("PP010104", "Verified decryption of proposal %s failed")
	MsgOrchestratorIDListFetchFailed = ffe("PP010105", "Failed to list proposal ids from the ledger")
	MsgOrchestratorValueMissing      = ffe("PP010106", "Decryption result is missing a clear value for handle %s")
	MsgOrchestratorNameRequired      = ffe("PP010107", "A proposal name is required")

	// Ledger client PP0102XX
	MsgLedgerInvalidHTTPURL       = ffe("PP010200", "Invalid HTTP URL: %s")
	MsgLedgerChainIDFailed        = ffe("PP010201", "Failed to query the chain ID")
	MsgLedgerFunctionNotFound     = ffe("PP010202", "Function %q not found on contract ABI")
	MsgLedgerInvalidABIJSON       = ffe("PP010203", "Contract ABI could not be parsed")
	MsgLedgerMissingTo            = ffe("PP010204", "Missing 'to' address for contract call")
	MsgLedgerMissingInput         = ffe("PP010205", "Missing input for contract call")
	MsgLedgerMissingOutput        = ffe("PP010206", "Missing output for contract call")
	MsgLedgerInvalidInput         = ffe("PP010207", "Invalid input data for function %s")
	MsgLedgerInvalidTXVersion     = ffe("PP010208", "Invalid transaction version %v")
	MsgLedgerMissingFrom          = ffe("PP010209", "Missing signer for transaction")
	MsgLedgerTransactionReverted  = ffe("PP010210", "Transaction %s reverted on the ledger")
	MsgLedgerProofRejected        = ffe("PP010211", "Decryption proof for proposal %s was rejected by the ledger")
	MsgLedgerReceiptTimeout       = ffe("PP010212", "Timed out waiting for receipt of transaction %s")
	MsgLedgerContractNotAvailable = ffe("PP010213", "Pool contract at %s is not available")

	// Signer PP0103XX
	MsgSignerRejected           = ffe("PP010301", "Signing request for key %q was rejected")
	MsgSignerBadSeed            = ffe("PP010302", "Wallet seed must be a 32 byte value or a BIP-39 mnemonic")
	MsgSignerDerivationInvalid  = ffe("PP010303", "Invalid key derivation path %q")
	MsgSignerDerivationTooLarge = ffe("PP010304", "Key derivation index %d too large")
	MsgSignerUnsupportedAlgo    = ffe("PP010305", "Unsupported signing algorithm %q")

	// FHE gateway PP0104XX
	MsgFHEKeyFetchFailed         = ffe("PP010400", "Failed to fetch encryption key material from the relayer")
	MsgFHEEncryptFailed          = ffe("PP010401", "FHE relayer failed to encrypt the input")
	MsgFHEDecryptRequestFailed   = ffe("PP010402", "FHE relayer rejected the decryption request")
	MsgFHEDecryptTimeout         = ffe("PP010403", "Timed out waiting for decryption %s to complete")
	MsgFHEDecryptFailed          = ffe("PP010404", "Decryption %s failed on the relayer: %s")
	MsgFHENoHandles              = ffe("PP010405", "At least one ciphertext handle is required")
	MsgFHESessionAlreadyComplete = ffe("PP010406", "Decryption session %s already completed")

	// Persistence PP0105XX
	MsgPersistenceInvalidType         = ffe("PP010500", "Invalid persistence type: %s")
	MsgPersistenceMissingURI          = ffe("PP010501", "Missing database connection URI")
	MsgPersistenceInitFailed          = ffe("PP010502", "Database init failed")
	MsgPersistenceMigrationFailed     = ffe("PP010503", "Database migration failed")
	MsgPersistenceMissingMigrationDir = ffe("PP010504", "Missing database migration directory for autoMigrate")

	// Pool assembly PP0106XX
	MsgConfigFileReadFailed  = ffe("PP010600", "Failed to read configuration file %s")
	MsgConfigFileParseFailed = ffe("PP010601", "Failed to parse configuration file %s")
	MsgConfigInvalidLogLevel = ffe("PP010602", "Invalid log level %q")
	MsgPoolMissingContract   = ffe("PP010603", "Missing pool contract address")
	MsgPoolInvalidContract   = ffe("PP010604", "Invalid pool contract address %q")

	// Journal PP0107XX
	MsgJournalWriteFailed = ffe("PP010700", "Failed to record operation in journal")
	MsgJournalQueryFailed = ffe("PP010701", "Failed to query operation journal")
)
