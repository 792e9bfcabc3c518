package ledger

import "math/big"

type journalEntry interface {
	revert(l *Ledger)
}

type balanceChange struct {
	key     balanceKey
	prev    *big.Int
	existed bool
}

func (c balanceChange) revert(l *Ledger) {
	if !c.existed {
		delete(l.balances, c.key)
		return
	}
	l.balances[c.key] = c.prev
}

type allowanceChange struct {
	key     allowanceKey
	prev    Allowance
	existed bool
}

func (c allowanceChange) revert(l *Ledger) {
	if !c.existed {
		delete(l.allowances, c.key)
		return
	}
	l.allowances[c.key] = c.prev
}

type storageChange struct {
	key     storageKey
	prev    []byte
	existed bool
}

func (c storageChange) revert(l *Ledger) {
	if !c.existed {
		delete(l.storage, c.key)
		return
	}
	l.storage[c.key] = c.prev
}

type BalanceEntry struct {
	Token  Address
	Holder Address
	Amount *big.Int
}

type AllowanceEntry struct {
	Token      Address
	Owner      Address
	Spender    Address
	Amount     *big.Int
	Expiration uint32
}

// StorageEntry is a contract storage record; a nil Value marks a deletion.
type StorageEntry struct {
	Contract Address
	Key      string
	Value    []byte
}

// ChangeSet lists the final value of every entry a committed call touched.
type ChangeSet struct {
	Balances   []BalanceEntry
	Allowances []AllowanceEntry
	Storage    []StorageEntry

	// Sequence after the call; zero leaves it unchanged.
	Sequence uint32
}

func (cs *ChangeSet) Empty() bool {
	return len(cs.Balances) == 0 && len(cs.Allowances) == 0 && len(cs.Storage) == 0 && cs.Sequence == 0
}
