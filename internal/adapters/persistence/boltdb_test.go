package persistence

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/boltdb/bolt"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/broker-engine/internal/ledger"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "data", "broker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCommitAndLoad(t *testing.T) {
	s := newTestStorage(t)
	token := solana.NewWallet().PublicKey()
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()
	contract := solana.NewWallet().PublicKey()

	require.NoError(t, s.Commit(&ledger.ChangeSet{
		Balances: []ledger.BalanceEntry{
			{Token: token, Holder: alice, Amount: big.NewInt(700)},
			{Token: token, Holder: bob, Amount: big.NewInt(300)},
		},
		Allowances: []ledger.AllowanceEntry{
			{Token: token, Owner: alice, Spender: bob, Amount: big.NewInt(50), Expiration: 100000},
		},
		Storage: []ledger.StorageEntry{
			{Contract: contract, Key: "settings", Value: []byte(`{"admin":"x"}`)},
			{Contract: contract, Key: "protocol/Comet", Value: []byte("true")},
		},
	}))

	cs, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, cs.Balances, 2)
	require.Len(t, cs.Allowances, 1)
	assert.Equal(t, uint32(100000), cs.Allowances[0].Expiration)
	assert.Equal(t, int64(50), cs.Allowances[0].Amount.Int64())
	assert.Len(t, cs.Storage, 2)

	// zero balances and nil storage values are removed
	require.NoError(t, s.Commit(&ledger.ChangeSet{
		Balances: []ledger.BalanceEntry{{Token: token, Holder: bob, Amount: new(big.Int)}},
		Storage:  []ledger.StorageEntry{{Contract: contract, Key: "protocol/Comet"}},
	}))

	cs, err = s.Load()
	require.NoError(t, err)
	require.Len(t, cs.Balances, 1)
	assert.Equal(t, alice, cs.Balances[0].Holder)
	require.Len(t, cs.Storage, 1)
	assert.Equal(t, "settings", cs.Storage[0].Key)
	assert.Equal(t, `{"admin":"x"}`, string(cs.Storage[0].Value))
}

func TestLedgerRoundTripThroughStorage(t *testing.T) {
	s := newTestStorage(t)
	token := solana.NewWallet().PublicKey()
	holder := solana.NewWallet().PublicKey()
	contract := solana.NewWallet().PublicKey()

	l := ledger.New()
	l.SetCommitter(s)
	err := l.Invoke(context.Background(), contract, nil, func(tx *ledger.Tx) error {
		if err := tx.Mint(token, holder, big.NewInt(1234)); err != nil {
			return err
		}
		return tx.Put("state", []byte{1, 2, 3})
	})
	require.NoError(t, err)

	cs, err := s.Load()
	require.NoError(t, err)

	assert.Equal(t, l.Sequence(), cs.Sequence)

	restored := ledger.New()
	restored.Restore(cs)
	assert.Equal(t, int64(1234), restored.Balance(token, holder).Int64())
	assert.Equal(t, uint32(2), restored.Sequence())

	var value []byte
	err = restored.View(context.Background(), contract, func(tx *ledger.Tx) error {
		value, _ = tx.Get("state")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, value)
}

func TestLoadSkipsCorruptRecords(t *testing.T) {
	s := newTestStorage(t)
	token := solana.NewWallet().PublicKey()
	holder := solana.NewWallet().PublicKey()

	require.NoError(t, s.Commit(&ledger.ChangeSet{
		Balances: []ledger.BalanceEntry{{Token: token, Holder: holder, Amount: big.NewInt(9)}},
	}))
	err := s.db.Update(func(btx *bolt.Tx) error {
		return btx.Bucket([]byte(BalancesBucket)).Put([]byte("garbage"), []byte("{not json"))
	})
	require.NoError(t, err)

	cs, err := s.Load()
	require.NoError(t, err)
	require.Len(t, cs.Balances, 1)
	assert.Equal(t, int64(9), cs.Balances[0].Amount.Int64())
}

func TestCommitEmptyIsNoop(t *testing.T) {
	s := newTestStorage(t)
	require.NoError(t, s.Commit(nil))
	require.NoError(t, s.Commit(&ledger.ChangeSet{}))

	cs, err := s.Load()
	require.NoError(t, err)
	assert.True(t, cs.Empty())
}
