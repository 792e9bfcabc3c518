package persistence

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/bytedance/sonic"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/broker-engine/internal/ledger"
	"github.com/hxuan190/broker-engine/internal/metrics"
)

const (
	BalancesBucket   = "balances"
	AllowancesBucket = "allowances"
	StorageBucket    = "storage"
	MetaBucket       = "meta"

	DefaultDBPath = "./data/broker-engine.db"
)

var buckets = []string{BalancesBucket, AllowancesBucket, StorageBucket, MetaBucket}

var sequenceKey = []byte("sequence")

type StoredBalance struct {
	Token  string `json:"token"`
	Holder string `json:"holder"`
	Amount string `json:"amount"`
}

type StoredAllowance struct {
	Token      string `json:"token"`
	Owner      string `json:"owner"`
	Spender    string `json:"spender"`
	Amount     string `json:"amount"`
	Expiration uint32 `json:"expiration"`
}

type StoredEntry struct {
	Contract string `json:"contract"`
	Key      string `json:"key"`
	Value    []byte `json:"value"`
}

// Storage keeps the committed ledger state in a bolt file. It implements
// ledger.Committer: every committed call lands in one bolt transaction.
type Storage struct {
	db     *bolt.DB
	dbPath string
}

func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", dbPath, err)
	}

	err = db.Update(func(btx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := btx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("[brokerStorage] opened database")

	return &Storage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func balanceKey(token, holder solana.PublicKey) []byte {
	return []byte(token.String() + ":" + holder.String())
}

func allowanceKey(token, owner, spender solana.PublicKey) []byte {
	return []byte(token.String() + ":" + owner.String() + ":" + spender.String())
}

func storageKey(contract solana.PublicKey, key string) []byte {
	return []byte(contract.String() + "/" + key)
}

// Commit writes the final value of every touched entry. Zero balances and
// nil storage values are deleted.
func (s *Storage) Commit(cs *ledger.ChangeSet) error {
	if cs == nil || cs.Empty() {
		return nil
	}

	err := s.db.Update(func(btx *bolt.Tx) error {
		balances := btx.Bucket([]byte(BalancesBucket))
		for _, b := range cs.Balances {
			key := balanceKey(b.Token, b.Holder)
			if b.Amount.Sign() == 0 {
				if err := balances.Delete(key); err != nil {
					return err
				}
				continue
			}
			data, err := sonic.Marshal(&StoredBalance{
				Token:  b.Token.String(),
				Holder: b.Holder.String(),
				Amount: b.Amount.String(),
			})
			if err != nil {
				return fmt.Errorf("failed to marshal balance: %w", err)
			}
			if err := balances.Put(key, data); err != nil {
				return err
			}
		}

		allowances := btx.Bucket([]byte(AllowancesBucket))
		for _, a := range cs.Allowances {
			data, err := sonic.Marshal(&StoredAllowance{
				Token:      a.Token.String(),
				Owner:      a.Owner.String(),
				Spender:    a.Spender.String(),
				Amount:     a.Amount.String(),
				Expiration: a.Expiration,
			})
			if err != nil {
				return fmt.Errorf("failed to marshal allowance: %w", err)
			}
			if err := allowances.Put(allowanceKey(a.Token, a.Owner, a.Spender), data); err != nil {
				return err
			}
		}

		storage := btx.Bucket([]byte(StorageBucket))
		for _, e := range cs.Storage {
			key := storageKey(e.Contract, e.Key)
			if e.Value == nil {
				if err := storage.Delete(key); err != nil {
					return err
				}
				continue
			}
			data, err := sonic.Marshal(&StoredEntry{
				Contract: e.Contract.String(),
				Key:      e.Key,
				Value:    e.Value,
			})
			if err != nil {
				return fmt.Errorf("failed to marshal storage entry: %w", err)
			}
			if err := storage.Put(key, data); err != nil {
				return err
			}
		}

		if cs.Sequence != 0 {
			var seq [4]byte
			binary.BigEndian.PutUint32(seq[:], cs.Sequence)
			if err := btx.Bucket([]byte(MetaBucket)).Put(sequenceKey, seq[:]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("[brokerStorage] FAILED to commit change set")
		return err
	}

	metrics.PersistenceWrites.WithLabelValues(BalancesBucket).Add(float64(len(cs.Balances)))
	metrics.PersistenceWrites.WithLabelValues(AllowancesBucket).Add(float64(len(cs.Allowances)))
	metrics.PersistenceWrites.WithLabelValues(StorageBucket).Add(float64(len(cs.Storage)))
	return nil
}

// Load reads the whole persisted state back as a change set for
// ledger.Restore. Corrupt records are skipped with a warning.
func (s *Storage) Load() (*ledger.ChangeSet, error) {
	cs := &ledger.ChangeSet{}
	skipped := 0

	err := s.db.View(func(btx *bolt.Tx) error {
		if seq := btx.Bucket([]byte(MetaBucket)).Get(sequenceKey); len(seq) == 4 {
			cs.Sequence = binary.BigEndian.Uint32(seq)
		}

		err := btx.Bucket([]byte(BalancesBucket)).ForEach(func(k, v []byte) error {
			entry, err := storedToBalance(v)
			if err != nil {
				log.Warn().Str("key", string(k)).Err(err).Msg("[brokerStorage] invalid balance, skipping")
				skipped++
				return nil
			}
			cs.Balances = append(cs.Balances, *entry)
			return nil
		})
		if err != nil {
			return err
		}

		err = btx.Bucket([]byte(AllowancesBucket)).ForEach(func(k, v []byte) error {
			entry, err := storedToAllowance(v)
			if err != nil {
				log.Warn().Str("key", string(k)).Err(err).Msg("[brokerStorage] invalid allowance, skipping")
				skipped++
				return nil
			}
			cs.Allowances = append(cs.Allowances, *entry)
			return nil
		})
		if err != nil {
			return err
		}

		return btx.Bucket([]byte(StorageBucket)).ForEach(func(k, v []byte) error {
			entry, err := storedToEntry(v)
			if err != nil {
				log.Warn().Str("key", string(k)).Err(err).Msg("[brokerStorage] invalid storage entry, skipping")
				skipped++
				return nil
			}
			cs.Storage = append(cs.Storage, *entry)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	log.Info().
		Int("balances", len(cs.Balances)).
		Int("allowances", len(cs.Allowances)).
		Int("storage", len(cs.Storage)).
		Uint32("sequence", cs.Sequence).
		Int("skipped", skipped).
		Msg("[brokerStorage] loaded state")
	return cs, nil
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

func storedToBalance(data []byte) (*ledger.BalanceEntry, error) {
	var stored StoredBalance
	if err := sonic.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	token, err := solana.PublicKeyFromBase58(stored.Token)
	if err != nil {
		return nil, err
	}
	holder, err := solana.PublicKeyFromBase58(stored.Holder)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(stored.Amount)
	if err != nil {
		return nil, err
	}
	return &ledger.BalanceEntry{Token: token, Holder: holder, Amount: amount}, nil
}

func storedToAllowance(data []byte) (*ledger.AllowanceEntry, error) {
	var stored StoredAllowance
	if err := sonic.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	token, err := solana.PublicKeyFromBase58(stored.Token)
	if err != nil {
		return nil, err
	}
	owner, err := solana.PublicKeyFromBase58(stored.Owner)
	if err != nil {
		return nil, err
	}
	spender, err := solana.PublicKeyFromBase58(stored.Spender)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(stored.Amount)
	if err != nil {
		return nil, err
	}
	return &ledger.AllowanceEntry{
		Token:      token,
		Owner:      owner,
		Spender:    spender,
		Amount:     amount,
		Expiration: stored.Expiration,
	}, nil
}

func storedToEntry(data []byte) (*ledger.StorageEntry, error) {
	var stored StoredEntry
	if err := sonic.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	contract, err := solana.PublicKeyFromBase58(stored.Contract)
	if err != nil {
		return nil, err
	}
	if stored.Value == nil {
		stored.Value = []byte{}
	}
	return &ledger.StorageEntry{Contract: contract, Key: stored.Key, Value: stored.Value}, nil
}
