package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/broker-engine/internal/domain"
)

func newAddress() Address {
	return solana.NewWallet().PublicKey()
}

func mint(t *testing.T, l *Ledger, token, to Address, amount int64) {
	t.Helper()
	err := l.Invoke(context.Background(), newAddress(), nil, func(tx *Tx) error {
		return tx.Mint(token, to, big.NewInt(amount))
	})
	require.NoError(t, err)
}

type recordingCommitter struct {
	sets []*ChangeSet
	err  error
}

func (c *recordingCommitter) Commit(cs *ChangeSet) error {
	if c.err != nil {
		return c.err
	}
	c.sets = append(c.sets, cs)
	return nil
}

func TestTransferBySigner(t *testing.T) {
	l := New()
	token, alice, bob, contract := newAddress(), newAddress(), newAddress(), newAddress()
	mint(t, l, token, alice, 100)

	err := l.Invoke(context.Background(), contract, []Address{alice}, func(tx *Tx) error {
		return tx.Transfer(token, alice, bob, big.NewInt(40))
	})
	require.NoError(t, err)

	assert.Equal(t, int64(60), l.Balance(token, alice).Int64())
	assert.Equal(t, int64(40), l.Balance(token, bob).Int64())
}

func TestTransferWithoutAuthorization(t *testing.T) {
	l := New()
	token, alice, bob, contract := newAddress(), newAddress(), newAddress(), newAddress()
	mint(t, l, token, alice, 100)

	err := l.Invoke(context.Background(), contract, nil, func(tx *Tx) error {
		return tx.Transfer(token, alice, bob, big.NewInt(40))
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, int64(100), l.Balance(token, alice).Int64())
}

func TestContractMovesOwnFunds(t *testing.T) {
	l := New()
	token, contract, bob := newAddress(), newAddress(), newAddress()
	mint(t, l, token, contract, 10)

	err := l.Invoke(context.Background(), contract, nil, func(tx *Tx) error {
		return tx.Transfer(token, contract, bob, big.NewInt(10))
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), l.Balance(token, bob).Int64())
}

func TestRollbackOnError(t *testing.T) {
	l := New()
	token, alice, bob, contract := newAddress(), newAddress(), newAddress(), newAddress()
	mint(t, l, token, alice, 100)

	boom := errors.New("boom")
	err := l.Invoke(context.Background(), contract, []Address{alice}, func(tx *Tx) error {
		if err := tx.Transfer(token, alice, bob, big.NewInt(70)); err != nil {
			return err
		}
		if err := tx.Put("state", []byte("dirty")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, int64(100), l.Balance(token, alice).Int64())
	assert.Equal(t, int64(0), l.Balance(token, bob).Int64())

	err = l.View(context.Background(), contract, func(tx *Tx) error {
		_, ok := tx.Get("state")
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestRollbackOnPanic(t *testing.T) {
	l := New()
	token, alice, bob, contract := newAddress(), newAddress(), newAddress(), newAddress()
	mint(t, l, token, alice, 100)

	err := l.Invoke(context.Background(), contract, []Address{alice}, func(tx *Tx) error {
		_ = tx.Transfer(token, alice, bob, big.NewInt(70))
		panic("backend exploded")
	})
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, int64(100), l.Balance(token, alice).Int64())
}

func TestInsufficientBalance(t *testing.T) {
	l := New()
	token, alice, bob, contract := newAddress(), newAddress(), newAddress(), newAddress()
	mint(t, l, token, alice, 5)

	err := l.Invoke(context.Background(), contract, []Address{alice}, func(tx *Tx) error {
		return tx.Transfer(token, alice, bob, big.NewInt(6))
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	err = l.Invoke(context.Background(), contract, []Address{alice}, func(tx *Tx) error {
		return tx.Transfer(token, alice, bob, big.NewInt(-1))
	})
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestTransferGrantIsScopedAndSingleUse(t *testing.T) {
	l := New()
	token, broker, pool := newAddress(), newAddress(), newAddress()
	mint(t, l, token, broker, 100)

	tests := []struct {
		name    string
		grant   Grant
		pulls   []int64
		wantErr bool
	}{
		{name: "exact grant", grant: TransferGrant(token, pool, big.NewInt(30)), pulls: []int64{30}},
		{name: "amount mismatch", grant: TransferGrant(token, pool, big.NewInt(30)), pulls: []int64{31}, wantErr: true},
		{name: "wrong recipient", grant: TransferGrant(token, broker, big.NewInt(30)), pulls: []int64{30}, wantErr: true},
		{name: "reused grant", grant: TransferGrant(token, pool, big.NewInt(30)), pulls: []int64{30, 30}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := l.Balance(token, broker)
			err := l.Invoke(context.Background(), broker, nil, func(tx *Tx) error {
				return tx.Call(pool, []Grant{tt.grant}, func() error {
					for _, amount := range tt.pulls {
						if err := tx.Transfer(token, broker, pool, big.NewInt(amount)); err != nil {
							return err
						}
					}
					return nil
				})
			})
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrUnauthorized)
				assert.Equal(t, before, l.Balance(token, broker))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestGrantRevokedAfterCall(t *testing.T) {
	l := New()
	token, broker, pool, other := newAddress(), newAddress(), newAddress(), newAddress()
	mint(t, l, token, broker, 100)

	err := l.Invoke(context.Background(), broker, nil, func(tx *Tx) error {
		if err := tx.Call(pool, []Grant{TransferGrant(token, pool, big.NewInt(10))}, func() error {
			return nil
		}); err != nil {
			return err
		}
		// a later call into another contract must not inherit the unused grant
		return tx.Call(other, nil, func() error {
			return tx.Call(pool, nil, func() error {
				return tx.Transfer(token, broker, pool, big.NewInt(10))
			})
		})
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, int64(100), l.Balance(token, broker).Int64())
}

func TestApproveAndTransferFrom(t *testing.T) {
	l := New()
	l.SetSequence(150)
	token, broker, pool := newAddress(), newAddress(), newAddress()
	mint(t, l, token, broker, 100)

	err := l.Invoke(context.Background(), broker, nil, func(tx *Tx) error {
		grant := ApproveGrant(token, pool, big.NewInt(25), 200000)
		return tx.Call(pool, []Grant{grant}, func() error {
			if err := tx.Approve(token, broker, pool, big.NewInt(25), 200000); err != nil {
				return err
			}
			return tx.TransferFrom(token, pool, broker, pool, big.NewInt(25))
		})
	})
	require.NoError(t, err)

	assert.Equal(t, int64(75), l.Balance(token, broker).Int64())
	assert.Equal(t, int64(25), l.Balance(token, pool).Int64())
	assert.Equal(t, int64(0), l.Allowance(token, broker, pool).Amount.Int64())
}

func TestTransferFromLimits(t *testing.T) {
	l := New()
	token, owner, spender := newAddress(), newAddress(), newAddress()
	mint(t, l, token, owner, 100)

	err := l.Invoke(context.Background(), spender, []Address{owner}, func(tx *Tx) error {
		return tx.Approve(token, owner, spender, big.NewInt(10), 5)
	})
	require.NoError(t, err)

	err = l.Invoke(context.Background(), spender, []Address{spender}, func(tx *Tx) error {
		return tx.TransferFrom(token, spender, owner, spender, big.NewInt(11))
	})
	assert.ErrorIs(t, err, ErrInsufficientAllowance)

	l.SetSequence(6)
	err = l.Invoke(context.Background(), spender, []Address{spender}, func(tx *Tx) error {
		return tx.TransferFrom(token, spender, owner, spender, big.NewInt(10))
	})
	assert.ErrorIs(t, err, ErrAllowanceExpired)

	err = l.Invoke(context.Background(), spender, []Address{owner}, func(tx *Tx) error {
		return tx.Approve(token, owner, spender, big.NewInt(10), 5)
	})
	assert.ErrorIs(t, err, ErrInvalidExpiration)
}

func TestRequireAuthDirectInvoker(t *testing.T) {
	l := New()
	broker, pool, stranger := newAddress(), newAddress(), newAddress()

	err := l.Invoke(context.Background(), broker, nil, func(tx *Tx) error {
		return tx.Call(pool, nil, func() error {
			if err := tx.RequireAuth(broker); err != nil {
				return err
			}
			return tx.RequireAuth(stranger)
		})
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSignerAuthStopsAtNestedCalls(t *testing.T) {
	l := New()
	token, alice, broker, pool := newAddress(), newAddress(), newAddress(), newAddress()
	mint(t, l, token, alice, 100)

	err := l.Invoke(context.Background(), broker, []Address{alice}, func(tx *Tx) error {
		if err := tx.Transfer(token, alice, broker, big.NewInt(10)); err != nil {
			return err
		}
		return tx.Call(pool, nil, func() error {
			return tx.Transfer(token, alice, pool, big.NewInt(50))
		})
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, int64(100), l.Balance(token, alice).Int64())

	// a grant from the signer's direct callee still reaches the nested frame
	err = l.Invoke(context.Background(), broker, []Address{alice}, func(tx *Tx) error {
		if err := tx.Transfer(token, alice, broker, big.NewInt(10)); err != nil {
			return err
		}
		return tx.Call(pool, []Grant{TransferGrant(token, pool, big.NewInt(10))}, func() error {
			return tx.Transfer(token, broker, pool, big.NewInt(10))
		})
	})
	require.NoError(t, err)
	assert.Equal(t, int64(90), l.Balance(token, alice).Int64())
	assert.Equal(t, int64(10), l.Balance(token, pool).Int64())
}

func TestStorageIsPerContract(t *testing.T) {
	l := New()
	a, b := newAddress(), newAddress()

	err := l.Invoke(context.Background(), a, nil, func(tx *Tx) error {
		if err := tx.Put("k", []byte("a")); err != nil {
			return err
		}
		return tx.Call(b, nil, func() error {
			_, ok := tx.Get("k")
			assert.False(t, ok)
			return tx.Put("k", []byte("b"))
		})
	})
	require.NoError(t, err)

	err = l.View(context.Background(), a, func(tx *Tx) error {
		v, ok := tx.Get("k")
		require.True(t, ok)
		assert.Equal(t, "a", string(v))
		return nil
	})
	require.NoError(t, err)
}

func TestCommitterReceivesChanges(t *testing.T) {
	l := New()
	c := &recordingCommitter{}
	l.SetCommitter(c)

	token, alice, contract := newAddress(), newAddress(), newAddress()
	mint(t, l, token, alice, 42)

	require.Len(t, c.sets, 1)
	require.Len(t, c.sets[0].Balances, 1)
	assert.Equal(t, int64(42), c.sets[0].Balances[0].Amount.Int64())

	// read-only calls do not reach the committer
	err := l.Invoke(context.Background(), contract, nil, func(tx *Tx) error {
		_ = tx.Balance(token, alice)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, c.sets, 1)
}

func TestCommitFailureReverts(t *testing.T) {
	l := New()
	c := &recordingCommitter{err: errors.New("disk full")}
	l.SetCommitter(c)

	token, alice := newAddress(), newAddress()
	err := l.Invoke(context.Background(), newAddress(), nil, func(tx *Tx) error {
		return tx.Mint(token, alice, big.NewInt(1))
	})
	require.Error(t, err)
	assert.Equal(t, int64(0), l.Balance(token, alice).Int64())
}

func TestRestore(t *testing.T) {
	l := New()
	token, alice, bob, contract := newAddress(), newAddress(), newAddress(), newAddress()

	l.Restore(&ChangeSet{
		Balances:   []BalanceEntry{{Token: token, Holder: alice, Amount: big.NewInt(7)}},
		Allowances: []AllowanceEntry{{Token: token, Owner: alice, Spender: bob, Amount: big.NewInt(3), Expiration: 9}},
		Storage:    []StorageEntry{{Contract: contract, Key: "k", Value: []byte("v")}},
	})

	assert.Equal(t, int64(7), l.Balance(token, alice).Int64())
	assert.Equal(t, uint32(9), l.Allowance(token, alice, bob).Expiration)
}

func TestSequenceAdvancesOnCommit(t *testing.T) {
	l := New()
	c := &recordingCommitter{}
	l.SetCommitter(c)
	token, alice, contract := newAddress(), newAddress(), newAddress()
	require.Equal(t, uint32(1), l.Sequence())

	mint(t, l, token, alice, 5)
	assert.Equal(t, uint32(2), l.Sequence())
	require.Len(t, c.sets, 1)
	assert.Equal(t, uint32(2), c.sets[0].Sequence)

	// reads, views and rollbacks leave it alone
	require.NoError(t, l.Invoke(context.Background(), contract, nil, func(tx *Tx) error {
		_ = tx.Balance(token, alice)
		return nil
	}))
	require.NoError(t, l.View(context.Background(), contract, func(tx *Tx) error {
		return tx.Mint(token, alice, big.NewInt(1))
	}))
	err := l.Invoke(context.Background(), contract, nil, func(tx *Tx) error {
		if err := tx.Mint(token, alice, big.NewInt(1)); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, uint32(2), l.Sequence())

	c.err = errors.New("disk full")
	err = l.Invoke(context.Background(), contract, nil, func(tx *Tx) error {
		return tx.Mint(token, alice, big.NewInt(1))
	})
	require.Error(t, err)
	assert.Equal(t, uint32(2), l.Sequence())

	// restoring never moves it backwards
	l.Restore(&ChangeSet{Sequence: 1})
	assert.Equal(t, uint32(2), l.Sequence())
	l.Restore(&ChangeSet{Sequence: 40})
	assert.Equal(t, uint32(40), l.Sequence())
}

func TestCancelledContext(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Invoke(ctx, newAddress(), nil, func(tx *Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
