package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/hxuan190/broker-engine/internal/domain"
)

type Function uint8

const (
	FnTransfer Function = iota + 1
	FnApprove
)

func (f Function) String() string {
	switch f {
	case FnTransfer:
		return "transfer"
	case FnApprove:
		return "approve"
	default:
		return "unknown"
	}
}

// Grant is a single-use capability issued by the current contract for exactly
// one token call with exactly these arguments. It is revoked as soon as the
// call it was attached to returns.
type Grant struct {
	Token      Address
	Function   Function
	To         Address
	Amount     *big.Int
	Expiration uint32
}

func TransferGrant(token, to Address, amount *big.Int) Grant {
	return Grant{Token: token, Function: FnTransfer, To: to, Amount: new(big.Int).Set(amount)}
}

func ApproveGrant(token, spender Address, amount *big.Int, expiration uint32) Grant {
	return Grant{Token: token, Function: FnApprove, To: spender, Amount: new(big.Int).Set(amount), Expiration: expiration}
}

type invocation struct {
	token      Address
	function   Function
	from       Address
	to         Address
	amount     *big.Int
	expiration uint32
}

type grantSlot struct {
	Grant
	issuer Address
	used   bool
}

func (g *grantSlot) matches(inv invocation) bool {
	return !g.used &&
		g.issuer == inv.from &&
		g.Token == inv.token &&
		g.Function == inv.function &&
		g.To == inv.to &&
		g.Amount.Cmp(inv.amount) == 0 &&
		g.Expiration == inv.expiration
}

type frame struct {
	contract Address
	grants   []*grantSlot
}

// Tx is the handle a contract uses during one atomic call.
type Tx struct {
	ctx     context.Context
	ledger  *Ledger
	signers map[Address]struct{}
	frames  []*frame
	journal []journalEntry

	dirtyBalances   map[balanceKey]struct{}
	dirtyAllowances map[allowanceKey]struct{}
	dirtyStorage    map[storageKey]struct{}
}

func newTx(ctx context.Context, l *Ledger, signers []Address) *Tx {
	tx := &Tx{
		ctx:             ctx,
		ledger:          l,
		signers:         make(map[Address]struct{}, len(signers)),
		dirtyBalances:   make(map[balanceKey]struct{}),
		dirtyAllowances: make(map[allowanceKey]struct{}),
		dirtyStorage:    make(map[storageKey]struct{}),
	}
	for _, s := range signers {
		tx.signers[s] = struct{}{}
	}
	return tx
}

func (tx *Tx) Context() context.Context {
	return tx.ctx
}

func (tx *Tx) Sequence() uint32 {
	return tx.ledger.sequence
}

// Current returns the contract executing in the innermost frame.
func (tx *Tx) Current() Address {
	if len(tx.frames) == 0 {
		return Address{}
	}
	return tx.frames[len(tx.frames)-1].contract
}

// Call enters contract and runs fn. Grants are issued by the caller (the
// current contract) and only live until fn returns.
func (tx *Tx) Call(contract Address, grants []Grant, fn func() error) error {
	if err := tx.ctx.Err(); err != nil {
		return err
	}

	f := &frame{contract: contract}
	issuer := tx.Current()
	for _, g := range grants {
		f.grants = append(f.grants, &grantSlot{Grant: g, issuer: issuer})
	}

	tx.frames = append(tx.frames, f)
	defer func() { tx.frames = tx.frames[:len(tx.frames)-1] }()

	return fn()
}

// RequireAuth succeeds when addr directly invoked the current contract, or
// signed the call and the current contract is the invoked one or a contract
// it called directly.
func (tx *Tx) RequireAuth(addr Address) error {
	return tx.requireAuth(addr, nil)
}

func (tx *Tx) requireAuth(addr Address, inv *invocation) error {
	// deeper frames spend signer funds only through a grant
	if _, ok := tx.signers[addr]; ok && len(tx.frames) <= 2 {
		return nil
	}
	if n := len(tx.frames); n >= 2 && tx.frames[n-2].contract == addr {
		return nil
	}
	if inv != nil && tx.consumeGrant(*inv) {
		return nil
	}
	return fmt.Errorf("%w: missing authorization for %s", domain.ErrUnauthorized, addr)
}

func (tx *Tx) consumeGrant(inv invocation) bool {
	for i := len(tx.frames) - 1; i >= 0; i-- {
		for _, g := range tx.frames[i].grants {
			if g.matches(inv) {
				g.used = true
				return true
			}
		}
	}
	return false
}

func (tx *Tx) Balance(token, holder Address) *big.Int {
	return tx.ledger.balanceOf(balanceKey{token, holder})
}

// Transfer moves amount of token from -> to; from must authorize it.
func (tx *Tx) Transfer(token, from, to Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeAmount, amount)
	}
	return tx.Call(token, nil, func() error {
		inv := invocation{token: token, function: FnTransfer, from: from, to: to, amount: amount}
		if err := tx.requireAuth(from, &inv); err != nil {
			return err
		}
		return tx.move(token, from, to, amount)
	})
}

// Approve sets the allowance of spender over from's token balance.
func (tx *Tx) Approve(token, from, spender Address, amount *big.Int, expiration uint32) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeAmount, amount)
	}
	if amount.Sign() > 0 && expiration < tx.Sequence() {
		return fmt.Errorf("%w: %d < %d", ErrInvalidExpiration, expiration, tx.Sequence())
	}
	return tx.Call(token, nil, func() error {
		inv := invocation{token: token, function: FnApprove, from: from, to: spender, amount: amount, expiration: expiration}
		if err := tx.requireAuth(from, &inv); err != nil {
			return err
		}
		tx.setAllowance(allowanceKey{token, from, spender}, Allowance{Amount: new(big.Int).Set(amount), Expiration: expiration})
		return nil
	})
}

// TransferFrom spends spender's allowance over from's balance.
func (tx *Tx) TransferFrom(token, spender, from, to Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeAmount, amount)
	}
	return tx.Call(token, nil, func() error {
		if err := tx.requireAuth(spender, nil); err != nil {
			return err
		}

		key := allowanceKey{token, from, spender}
		current, ok := tx.ledger.allowances[key]
		if !ok || current.Amount.Cmp(amount) < 0 {
			return fmt.Errorf("%w: spender %s", ErrInsufficientAllowance, spender)
		}
		if current.Expiration < tx.Sequence() {
			return fmt.Errorf("%w: spender %s", ErrAllowanceExpired, spender)
		}
		tx.setAllowance(key, Allowance{
			Amount:     new(big.Int).Sub(current.Amount, amount),
			Expiration: current.Expiration,
		})
		return tx.move(token, from, to, amount)
	})
}

// Mint credits amount of token to holder. Only the host (genesis, tests) mints.
func (tx *Tx) Mint(token, to Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeAmount, amount)
	}
	k := balanceKey{token, to}
	next, err := domain.CheckedAdd(tx.ledger.balanceOf(k), amount)
	if err != nil {
		return err
	}
	tx.setBalance(k, next)
	return nil
}

func (tx *Tx) move(token, from, to Address, amount *big.Int) error {
	fromKey := balanceKey{token, from}
	fromBalance := tx.ledger.balanceOf(fromKey)
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, needs %s of %s", ErrInsufficientBalance, from, fromBalance, amount, token)
	}
	tx.setBalance(fromKey, fromBalance.Sub(fromBalance, amount))

	toKey := balanceKey{token, to}
	next, err := domain.CheckedAdd(tx.ledger.balanceOf(toKey), amount)
	if err != nil {
		return err
	}
	tx.setBalance(toKey, next)
	return nil
}

// Get reads the current contract's storage.
func (tx *Tx) Get(key string) ([]byte, bool) {
	v, ok := tx.ledger.storage[storageKey{tx.Current(), key}]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

// Put writes the current contract's storage.
func (tx *Tx) Put(key string, value []byte) error {
	if len(tx.frames) == 0 {
		return ErrNoFrame
	}
	k := storageKey{tx.Current(), key}
	prev, existed := tx.ledger.storage[k]
	tx.journal = append(tx.journal, storageChange{key: k, prev: prev, existed: existed})
	tx.ledger.storage[k] = append([]byte(nil), value...)
	tx.dirtyStorage[k] = struct{}{}
	return nil
}

func (tx *Tx) setBalance(k balanceKey, amount *big.Int) {
	prev, existed := tx.ledger.balances[k]
	tx.journal = append(tx.journal, balanceChange{key: k, prev: prev, existed: existed})
	tx.ledger.balances[k] = amount
	tx.dirtyBalances[k] = struct{}{}
}

func (tx *Tx) setAllowance(k allowanceKey, a Allowance) {
	prev, existed := tx.ledger.allowances[k]
	tx.journal = append(tx.journal, allowanceChange{key: k, prev: prev, existed: existed})
	tx.ledger.allowances[k] = a
	tx.dirtyAllowances[k] = struct{}{}
}

func (tx *Tx) revert() {
	for i := len(tx.journal) - 1; i >= 0; i-- {
		tx.journal[i].revert(tx.ledger)
	}
	tx.journal = nil
}

func (tx *Tx) touched() bool {
	return len(tx.journal) > 0
}

func (tx *Tx) changes() *ChangeSet {
	l := tx.ledger
	cs := &ChangeSet{}
	for k := range tx.dirtyBalances {
		cs.Balances = append(cs.Balances, BalanceEntry{Token: k.token, Holder: k.holder, Amount: l.balanceOf(k)})
	}
	for k := range tx.dirtyAllowances {
		a := l.allowances[k]
		cs.Allowances = append(cs.Allowances, AllowanceEntry{
			Token:      k.token,
			Owner:      k.owner,
			Spender:    k.spender,
			Amount:     new(big.Int).Set(a.Amount),
			Expiration: a.Expiration,
		})
	}
	for k := range tx.dirtyStorage {
		v, ok := l.storage[k]
		entry := StorageEntry{Contract: k.contract, Key: k.key}
		if ok {
			entry.Value = append([]byte(nil), v...)
		}
		cs.Storage = append(cs.Storage, entry)
	}
	return cs
}
