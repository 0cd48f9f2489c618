package token

import (
	"math/big"
	"testing"

	"github.com/audt-staking/backend/internal/events"
	"github.com/audt-staking/backend/internal/models"
	"github.com/audt-staking/backend/internal/rbac"
	"github.com/audt-staking/backend/internal/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner   = common.HexToAddress("0x1000")
	holder1 = common.HexToAddress("0x1001")
	spender = common.HexToAddress("0x1002")
)

func newToken(t *testing.T) (*Ledger, *events.Buffer) {
	t.Helper()
	buf := &events.Buffer{}
	tok := New(state.New(), common.HexToAddress("0xa0d7"), "AUDT", buf.Emit)
	require.NoError(t, tok.Deploy(owner))
	buf.Reset()
	return tok, buf
}

func TestMintRequiresMinterRole(t *testing.T) {
	tok, buf := newToken(t)

	require.ErrorIs(t, tok.Mint(holder1, holder1, big.NewInt(10)), models.ErrUnauthorized)
	assert.Equal(t, 0, tok.TotalSupply().Sign())

	require.NoError(t, tok.Mint(owner, holder1, big.NewInt(10)))
	assert.Equal(t, "10", tok.BalanceOf(holder1).String())
	assert.Equal(t, "10", tok.TotalSupply().String())
	require.Len(t, buf.Events(), 1)
	assert.Equal(t, events.EventTransfer, buf.Events()[0].Type)
	assert.Equal(t, common.Address{}.Hex(), buf.Events()[0].Payload["from"])

	require.NoError(t, tok.Roles().GrantRole(owner, rbac.MinterRole, spender))
	require.NoError(t, tok.Mint(spender, spender, big.NewInt(1)))
}

func TestTransfer(t *testing.T) {
	tok, _ := newToken(t)
	require.NoError(t, tok.Mint(owner, holder1, big.NewInt(100)))

	tests := []struct {
		name   string
		amount *big.Int
		to     common.Address
		ok     bool
	}{
		{"full balance", big.NewInt(100), spender, true},
		{"exceeds balance", big.NewInt(101), spender, false},
		{"zero amount", big.NewInt(0), spender, false},
		{"zero recipient", big.NewInt(1), common.Address{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := tok.st
			cp := st.Checkpoint()
			defer st.RevertTo(cp)

			err := tok.Transfer(holder1, tt.to, tt.amount)
			if !tt.ok {
				require.ErrorIs(t, err, models.ErrTransferFailed)
				assert.Equal(t, "100", tok.BalanceOf(holder1).String())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, tok.BalanceOf(holder1).Sign())
			assert.Equal(t, tt.amount.String(), tok.BalanceOf(tt.to).String())
		})
	}
}

func TestTransferFromSpendsAllowance(t *testing.T) {
	tok, _ := newToken(t)
	require.NoError(t, tok.Mint(owner, holder1, big.NewInt(1000)))

	require.ErrorIs(t, tok.TransferFrom(spender, holder1, spender, big.NewInt(1)), models.ErrTransferFailed)

	require.NoError(t, tok.IncreaseAllowance(holder1, spender, big.NewInt(600)))
	require.NoError(t, tok.IncreaseAllowance(holder1, spender, big.NewInt(400)))
	assert.Equal(t, "1000", tok.Allowance(holder1, spender).String())

	require.NoError(t, tok.TransferFrom(spender, holder1, spender, big.NewInt(700)))
	assert.Equal(t, "300", tok.Allowance(holder1, spender).String())
	assert.Equal(t, "300", tok.BalanceOf(holder1).String())
	assert.Equal(t, "700", tok.BalanceOf(spender).String())

	require.NoError(t, tok.Approve(holder1, spender, big.NewInt(5000)))
	err := tok.TransferFrom(spender, holder1, spender, big.NewInt(301))
	require.ErrorIs(t, err, models.ErrTransferFailed, "allowance is not enough without balance")
	assert.Equal(t, "5000", tok.Allowance(holder1, spender).String())
}
