package config

import (
	"fmt"
	"math/big"
	"os"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"

	"github.com/hxuan190/broker-engine/internal/domain"
)

// Genesis bootstraps an empty ledger: broker identity, protocol flags, LP
// pools with their initial reserves and plain token balances.
type Genesis struct {
	Broker    string           `yaml:"broker"`
	Admin     string           `yaml:"admin"`
	FeeToken  string           `yaml:"feeToken"`
	Protocols []string         `yaml:"protocols"`
	Pools     []GenesisPool    `yaml:"pools"`
	Balances  []GenesisBalance `yaml:"balances"`
}

type GenesisPool struct {
	Protocol string    `yaml:"protocol"`
	Address  string    `yaml:"address"`
	Tokens   [2]string `yaml:"tokens"`
	Reserves [2]string `yaml:"reserves"`

	// FeeBps falls back to the protocol default when zero.
	FeeBps uint32 `yaml:"feeBps"`

	// Amp only applies to AquaStable pools.
	Amp uint64 `yaml:"amp"`

	// MaxSpreadBps only applies to Phoenix pools.
	MaxSpreadBps int64 `yaml:"maxSpreadBps"`
}

type GenesisBalance struct {
	Token  string `yaml:"token"`
	Holder string `yaml:"holder"`
	Amount string `yaml:"amount"`
}

// Pool is a GenesisPool with every field parsed.
type Pool struct {
	Protocol     domain.Protocol
	Address      domain.Address
	Tokens       [2]domain.Address
	Reserves     []*big.Int
	FeeBps       uint32
	Amp          uint64
	MaxSpreadBps int64
}

type Balance struct {
	Token  domain.Address
	Holder domain.Address
	Amount *big.Int
}

func LoadGenesis(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	var g Genesis
	if err := yaml.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

func (g *Genesis) Validate() error {
	for _, field := range []struct{ name, value string }{
		{"broker", g.Broker},
		{"admin", g.Admin},
		{"feeToken", g.FeeToken},
	} {
		if _, err := solana.PublicKeyFromBase58(field.value); err != nil {
			return fmt.Errorf("genesis %s: %w", field.name, err)
		}
	}
	if _, err := g.EnabledProtocols(); err != nil {
		return err
	}
	if _, err := g.ParsedPools(); err != nil {
		return err
	}
	_, err := g.ParsedBalances()
	return err
}

func (g *Genesis) BrokerAddress() domain.Address {
	return solana.MustPublicKeyFromBase58(g.Broker)
}

func (g *Genesis) AdminAddress() domain.Address {
	return solana.MustPublicKeyFromBase58(g.Admin)
}

func (g *Genesis) FeeTokenAddress() domain.Address {
	return solana.MustPublicKeyFromBase58(g.FeeToken)
}

func (g *Genesis) EnabledProtocols() ([]domain.Protocol, error) {
	out := make([]domain.Protocol, 0, len(g.Protocols))
	for _, name := range g.Protocols {
		p, err := domain.ParseProtocol(name)
		if err != nil {
			return nil, fmt.Errorf("genesis protocols: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (g *Genesis) ParsedPools() ([]Pool, error) {
	out := make([]Pool, 0, len(g.Pools))
	seen := make(map[string]struct{}, len(g.Pools))
	for i, gp := range g.Pools {
		if _, dup := seen[gp.Address]; dup {
			return nil, fmt.Errorf("genesis pool %d: duplicate address %s", i, gp.Address)
		}
		seen[gp.Address] = struct{}{}

		p, err := gp.parse()
		if err != nil {
			return nil, fmt.Errorf("genesis pool %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (gp GenesisPool) parse() (Pool, error) {
	protocol, err := domain.ParseProtocol(gp.Protocol)
	if err != nil {
		return Pool{}, err
	}
	address, err := solana.PublicKeyFromBase58(gp.Address)
	if err != nil {
		return Pool{}, fmt.Errorf("address: %w", err)
	}
	p := Pool{
		Protocol:     protocol,
		Address:      address,
		Reserves:     make([]*big.Int, 2),
		FeeBps:       gp.FeeBps,
		Amp:          gp.Amp,
		MaxSpreadBps: gp.MaxSpreadBps,
	}
	for i := range gp.Tokens {
		if p.Tokens[i], err = solana.PublicKeyFromBase58(gp.Tokens[i]); err != nil {
			return Pool{}, fmt.Errorf("token %d: %w", i, err)
		}
		if p.Reserves[i], err = domain.ParseAmount(gp.Reserves[i]); err != nil {
			return Pool{}, fmt.Errorf("reserve %d: %w", i, err)
		}
		if p.Reserves[i].Sign() < 0 {
			return Pool{}, fmt.Errorf("reserve %d is negative", i)
		}
	}
	if p.Tokens[0] == p.Tokens[1] {
		return Pool{}, fmt.Errorf("pool tokens must differ")
	}
	return p, nil
}

func (g *Genesis) ParsedBalances() ([]Balance, error) {
	out := make([]Balance, 0, len(g.Balances))
	for i, gb := range g.Balances {
		token, err := solana.PublicKeyFromBase58(gb.Token)
		if err != nil {
			return nil, fmt.Errorf("genesis balance %d token: %w", i, err)
		}
		holder, err := solana.PublicKeyFromBase58(gb.Holder)
		if err != nil {
			return nil, fmt.Errorf("genesis balance %d holder: %w", i, err)
		}
		amount, err := domain.ParseAmount(gb.Amount)
		if err != nil {
			return nil, fmt.Errorf("genesis balance %d: %w", i, err)
		}
		if amount.Sign() <= 0 {
			return nil, fmt.Errorf("genesis balance %d must be positive", i)
		}
		out = append(out, Balance{Token: token, Holder: holder, Amount: amount})
	}
	return out, nil
}
