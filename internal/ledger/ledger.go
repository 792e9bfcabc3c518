// Package ledger is the host environment the broker settles against: token
// balances, allowances, per-contract storage and call-scoped authorization.
// Every call runs as one journaled transaction that either commits fully or
// leaves no trace.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/metrics"
)

type Address = domain.Address

var (
	ErrInsufficientBalance   = errors.New("ledger: insufficient balance")
	ErrInsufficientAllowance = errors.New("ledger: insufficient allowance")
	ErrAllowanceExpired      = errors.New("ledger: allowance expired")
	ErrInvalidExpiration     = errors.New("ledger: expiration ledger is in the past")
	ErrNegativeAmount        = errors.New("ledger: negative amount")
	ErrNoFrame               = errors.New("ledger: no active call frame")
	ErrAborted               = errors.New("ledger: call aborted")
)

type balanceKey struct {
	token  Address
	holder Address
}

type allowanceKey struct {
	token   Address
	owner   Address
	spender Address
}

type storageKey struct {
	contract Address
	key      string
}

type Allowance struct {
	Amount     *big.Int
	Expiration uint32
}

// Committer receives the entries touched by a committed call.
type Committer interface {
	Commit(changes *ChangeSet) error
}

type Ledger struct {
	mu sync.Mutex

	balances   map[balanceKey]*big.Int
	allowances map[allowanceKey]Allowance
	storage    map[storageKey][]byte
	sequence   uint32

	committer Committer
}

func New() *Ledger {
	return &Ledger{
		balances:   make(map[balanceKey]*big.Int),
		allowances: make(map[allowanceKey]Allowance),
		storage:    make(map[storageKey][]byte),
		sequence:   1,
	}
}

func (l *Ledger) SetCommitter(c Committer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.committer = c
}

// Sequence advances by one for every committed call that wrote state.
func (l *Ledger) Sequence() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sequence
}

// SetSequence moves the ledger sequence used for allowance expiration.
func (l *Ledger) SetSequence(seq uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sequence = seq
}

// Invoke runs fn as contract, inside a single atomic transaction authorized
// by signers. Any error or panic reverts every write made during the call.
func (l *Ledger) Invoke(ctx context.Context, contract Address, signers []Address, fn func(tx *Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newTx(ctx, l, signers)
	defer func() {
		if r := recover(); r != nil {
			tx.revert()
			metrics.LedgerRollbacks.Inc()
			err = fmt.Errorf("%w: %v", ErrAborted, r)
		}
	}()

	if err = tx.Call(contract, nil, func() error { return fn(tx) }); err != nil {
		tx.revert()
		metrics.LedgerRollbacks.Inc()
		return err
	}

	if tx.touched() {
		next := l.sequence + 1
		if l.committer != nil {
			cs := tx.changes()
			cs.Sequence = next
			if cerr := l.committer.Commit(cs); cerr != nil {
				tx.revert()
				metrics.LedgerRollbacks.Inc()
				return fmt.Errorf("ledger: commit: %w", cerr)
			}
		}
		l.sequence = next
	}
	metrics.LedgerCommits.Inc()
	return nil
}

// View runs fn as contract and always discards its writes.
func (l *Ledger) View(ctx context.Context, contract Address, fn func(tx *Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newTx(ctx, l, nil)
	defer tx.revert()
	return tx.Call(contract, nil, func() error { return fn(tx) })
}

func (l *Ledger) Balance(token, holder Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceOf(balanceKey{token, holder})
}

func (l *Ledger) Allowance(token, owner, spender Address) Allowance {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.allowances[allowanceKey{token, owner, spender}]
	if !ok {
		return Allowance{Amount: new(big.Int)}
	}
	return Allowance{Amount: new(big.Int).Set(a.Amount), Expiration: a.Expiration}
}

// Restore loads previously committed entries without journaling them.
func (l *Ledger) Restore(cs *ChangeSet) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cs.Sequence > l.sequence {
		l.sequence = cs.Sequence
	}
	for _, b := range cs.Balances {
		l.balances[balanceKey{b.Token, b.Holder}] = new(big.Int).Set(b.Amount)
	}
	for _, a := range cs.Allowances {
		l.allowances[allowanceKey{a.Token, a.Owner, a.Spender}] = Allowance{
			Amount:     new(big.Int).Set(a.Amount),
			Expiration: a.Expiration,
		}
	}
	for _, s := range cs.Storage {
		if s.Value == nil {
			continue
		}
		l.storage[storageKey{s.Contract, s.Key}] = append([]byte(nil), s.Value...)
	}
}

func (l *Ledger) balanceOf(k balanceKey) *big.Int {
	if b, ok := l.balances[k]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}
