package dto

// Amounts are decimal strings of token base units.

type NonceRequest struct {
	Address string `json:"address"`
}

type LoginRequest struct {
	Address   string `json:"address"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"` // 0x-prefixed 65 bytes
}

type AmountRequest struct {
	Amount string `json:"amount"`
}

type TransferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type ApproveRequest struct {
	Spender  string `json:"spender"` // address, or "pool" / "ledger"
	Amount   string `json:"amount"`
	Increase bool   `json:"increase"`
}

type EndDateRequest struct {
	StakingDateEnd int64 `json:"staking_date_end"`
}

type AddressRequest struct {
	Address string `json:"address"`
}

type RecoverRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type RewardRequest struct {
	Amount string `json:"amount"`
	Source string `json:"source,omitempty"` // mint / reserve
}

type RoleRequest struct {
	Target  string `json:"target"` // token / pool / ledger
	Role    string `json:"role"`   // MINTER_ROLE or 0x-prefixed role id
	Account string `json:"account"`
}
