// Package engine wires the ledger, its persistence, the LP market and the
// broker into one runnable unit.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/broker-engine/internal/adapters/persistence"
	"github.com/hxuan190/broker-engine/internal/config"
	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/ledger"
	"github.com/hxuan190/broker-engine/internal/services"
	"github.com/hxuan190/broker-engine/internal/services/broker"
	"github.com/hxuan190/broker-engine/internal/services/market"
)

const ENGINE_SERVICE = "engine-service"

type Service struct {
	logger *services.ServiceLogger
	conf   *config.BrokerConfig

	ledger   *ledger.Ledger
	storage  *persistence.Storage
	registry *market.Registry
	broker   *broker.Service
	genesis  *config.Genesis
}

func (svc *Service) ID() string {
	return ENGINE_SERVICE
}

// New builds the engine. The broker address comes from the genesis file when
// one is configured.
func New(conf *config.BrokerConfig) (*Service, error) {
	svc := &Service{conf: conf, ledger: ledger.New()}
	svc.logger = services.NewServiceLogger(svc)

	var address domain.Address
	if conf.GenesisPath != "" {
		g, err := config.LoadGenesis(conf.GenesisPath)
		if err != nil {
			return nil, err
		}
		svc.genesis = g
		address = g.BrokerAddress()
	} else {
		var err error
		if address, err = solana.PublicKeyFromBase58(conf.BrokerAddress); err != nil {
			return nil, fmt.Errorf("engine: broker address: %w", err)
		}
	}

	svc.registry = market.NewRegistry(svc.ledger)
	svc.broker = broker.NewService(svc.ledger, address, svc.registry)
	return svc, nil
}

// Start restores the persisted ledger, attaches it as committer and applies
// the genesis file.
func (svc *Service) Start(ctx context.Context) error {
	if svc.conf.PersistenceEnabled {
		storage, err := persistence.NewStorage(svc.conf.DBPath)
		if err != nil {
			return err
		}
		cs, err := storage.Load()
		if err != nil {
			storage.Close()
			return err
		}
		svc.ledger.Restore(cs)
		svc.ledger.SetCommitter(storage)
		svc.storage = storage
	}

	if svc.genesis != nil {
		if err := svc.bootstrap(ctx, svc.genesis); err != nil {
			return err
		}
	}

	svc.logger.Info().
		Str("broker", svc.broker.Address().String()).
		Int("pools", svc.registry.Count()).
		Bool("persistence", svc.storage != nil).
		Msg("engine started")
	return nil
}

func (svc *Service) Stop() error {
	if svc.storage == nil {
		return nil
	}
	svc.ledger.SetCommitter(nil)
	return svc.storage.Close()
}

// bootstrap registers every genesis pool. Balances, seeding, init and
// protocol flags are applied only while the broker is still uninitialized.
func (svc *Service) bootstrap(ctx context.Context, g *config.Genesis) error {
	_, err := svc.broker.Settings(ctx)
	fresh := errors.Is(err, domain.ErrNotInitialized)
	if err != nil && !fresh {
		return err
	}

	if fresh {
		balances, err := g.ParsedBalances()
		if err != nil {
			return err
		}
		for _, b := range balances {
			err := svc.ledger.Invoke(ctx, b.Token, nil, func(tx *ledger.Tx) error {
				return tx.Mint(b.Token, b.Holder, b.Amount)
			})
			if err != nil {
				return fmt.Errorf("engine: genesis balance: %w", err)
			}
		}
	}

	pools, err := g.ParsedPools()
	if err != nil {
		return err
	}
	for _, p := range pools {
		backend, err := market.NewBackend(market.PoolSpec{
			Protocol:     p.Protocol,
			Address:      p.Address,
			Tokens:       p.Tokens,
			Reserves:     p.Reserves,
			FeeBps:       p.FeeBps,
			Amp:          p.Amp,
			MaxSpreadBps: p.MaxSpreadBps,
		})
		if err != nil {
			return err
		}
		seeded, err := svc.registry.Attach(ctx, backend, p.Reserves)
		if err != nil {
			return fmt.Errorf("engine: attach pool %s: %w", p.Address, err)
		}
		svc.logger.Debug().
			Str("pool", p.Address.String()).
			Str("protocol", p.Protocol.String()).
			Bool("seeded", seeded).
			Msg("pool attached")
	}

	if !fresh {
		return nil
	}

	admin := g.AdminAddress()
	if err := svc.broker.Init(ctx, admin, admin, g.FeeTokenAddress()); err != nil {
		return err
	}
	protocols, err := g.EnabledProtocols()
	if err != nil {
		return err
	}
	for _, p := range protocols {
		if err := svc.broker.EnableProtocol(ctx, admin, p, true); err != nil {
			return err
		}
	}
	return nil
}

func (svc *Service) Broker() *broker.Service {
	return svc.broker
}

func (svc *Service) Registry() *market.Registry {
	return svc.registry
}

func (svc *Service) Ledger() *ledger.Ledger {
	return svc.ledger
}
