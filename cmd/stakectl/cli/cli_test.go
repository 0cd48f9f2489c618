package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"github.com/audt-staking/backend/internal/engine"
	"github.com/audt-staking/backend/internal/journal"
	"github.com/audt-staking/backend/internal/models"
	"github.com/audt-staking/backend/internal/rbac"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAddresses(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	out, err := run(t, "addresses", owner.Hex())
	require.NoError(t, err)

	var got engine.Addresses
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, engine.DeriveAddresses(owner), got)

	_, err = run(t, "addresses", "alice")
	require.Error(t, err)
}

func TestRoleID(t *testing.T) {
	out, err := run(t, "role-id", "minter_role")
	require.NoError(t, err)
	assert.Equal(t, rbac.MinterRole.Hex(), strings.TrimSpace(out))
}

func TestAuditAndExportLevelDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")
	owner := "0x00000000000000000000000000000000000000aa"
	t.Setenv("OWNER_ADDRESS", owner)
	t.Setenv("STAKING_END_DATE", "1700002000")
	t.Setenv("MINIMUM_STAKE", "1000")
	t.Setenv("OWNER_SUPPLY", "5000")
	t.Setenv("REDIS_URL", "")

	j, err := journal.OpenLevelDB(path)
	require.NoError(t, err)
	eng, err := engine.New(engine.Genesis{
		Owner:          common.HexToAddress(owner),
		Symbol:         "AUDT",
		StakingDateEnd: 1700002000,
		MinimumStake:   big.NewInt(1000),
		RewardAmount:   big.NewInt(0),
		RewardSource:   models.RewardSourceMint,
		OwnerSupply:    big.NewInt(5000),
		WireLedger:     true,
	}, engine.Options{Journal: j})
	require.NoError(t, err)
	require.NoError(t, eng.Open(context.Background()))
	require.NoError(t, j.Close())

	out, err := run(t, "audit", "--journal", "leveldb", "--leveldb-path", path)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"violations": null`)

	out, err = run(t, "export", "--journal", "leveldb", "--leveldb-path", path)
	require.NoError(t, err, out)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"kind":"genesis"`)
}
