package models

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Operation kinds accepted by the engine.
const (
	OpGenesis = "genesis"

	OpTokenMint              = "token_mint"
	OpTokenTransfer          = "token_transfer"
	OpTokenApprove           = "token_approve"
	OpTokenIncreaseAllowance = "token_increase_allowance"

	OpStake                    = "stake"
	OpRedeem                   = "redeem"
	OpUpdateEndDate            = "update_end_date"
	OpUpdateMinStakeAmount     = "update_min_stake_amount"
	OpBlacklistAddress         = "blacklist_address"
	OpSetDepositContract       = "set_deposit_contract"
	OpReturnUnauthorizedTokens = "return_unauthorized_tokens"
	OpSetReward                = "set_reward"

	OpLedgerReceiveTokens = "ledger_receive_tokens"
	OpLedgerClaim         = "ledger_claim"
	OpLedgerRecoverTokens = "ledger_recover_tokens"

	OpGrantRole  = "grant_role"
	OpRevokeRole = "revoke_role"
)

// Operation is one committed, journaled state transition. Replaying the
// journal in sequence order rebuilds the exact engine state.
type Operation struct {
	Seq       uint64          `json:"seq"`
	Kind      string          `json:"kind"`
	Caller    common.Address  `json:"caller"`
	Timestamp uint64          `json:"timestamp"`
	Args      json.RawMessage `json:"args,omitempty"`
	Events    []EventRecord   `json:"events,omitempty"`
}

// EventRecord is an emitted event as stored for auditing.
type EventRecord struct {
	ID        uuid.UUID      `json:"id"`
	Seq       uint64         `json:"seq"`
	Type      string         `json:"type"`
	Address   common.Address `json:"address"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}
