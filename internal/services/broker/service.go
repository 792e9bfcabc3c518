// Package broker is the route execution and settlement engine. It pulls the
// trader's selling tokens, drives every route through the LP adapters,
// charges the fee and verifies the broker's balances before paying out.
package broker

import (
	"context"
	"fmt"
	"math/big"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/ledger"
	"github.com/hxuan190/broker-engine/internal/metrics"
	"github.com/hxuan190/broker-engine/internal/services"
	"github.com/hxuan190/broker-engine/internal/services/lpadapter"
)

const ServiceID = "broker-service"

type Address = domain.Address

type Service struct {
	ledger     *ledger.Ledger
	address    Address
	dispatcher *lpadapter.Dispatcher
	logger     *services.ServiceLogger
}

// NewService wires a broker living at address on l; resolver maps pool
// addresses to LP backends.
func NewService(l *ledger.Ledger, address Address, resolver lpadapter.Resolver) *Service {
	s := &Service{
		ledger:  l,
		address: address,
	}
	s.dispatcher = lpadapter.NewDispatcher(resolver, s)
	s.logger = services.NewServiceLogger(s)
	return s
}

func (s *Service) ID() string {
	return ServiceID
}

func (s *Service) Address() Address {
	return s.address
}

// IsProtocolEnabled implements lpadapter.ProtocolGate. Unset flags are disabled.
func (s *Service) IsProtocolEnabled(tx *ledger.Tx, p domain.Protocol) (bool, error) {
	return isProtocolEnabled(tx, p)
}

// Init stores the admin and the reference fee token. It runs once and must
// be authorized by admin.
func (s *Service) Init(ctx context.Context, caller, admin, feeToken Address) error {
	err := s.ledger.Invoke(ctx, s.address, []Address{caller}, func(tx *ledger.Tx) error {
		if err := tx.RequireAuth(admin); err != nil {
			return err
		}
		if _, err := loadSettings(tx); err == nil {
			return domain.ErrAlreadyInitialized
		}
		return storeSettings(tx, &Settings{Admin: admin, FeeToken: feeToken})
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("admin", admin.String()).Msg("init rejected")
		return err
	}
	s.logger.Info().
		Str("admin", admin.String()).
		Str("feeToken", feeToken.String()).
		Msg("broker initialized")
	return nil
}

func (s *Service) EnableProtocol(ctx context.Context, caller Address, protocol domain.Protocol, enabled bool) error {
	if !protocol.Valid() {
		return fmt.Errorf("%w: unknown protocol %d", domain.ErrInvalidPath, uint8(protocol))
	}
	err := s.ledger.Invoke(ctx, s.address, []Address{caller}, func(tx *ledger.Tx) error {
		if _, err := requireAdmin(tx); err != nil {
			return err
		}
		return setProtocolEnabled(tx, protocol, enabled)
	})
	if err != nil {
		return err
	}

	flag := 0.0
	if enabled {
		flag = 1
	}
	metrics.ProtocolEnabled.WithLabelValues(protocol.String()).Set(flag)
	s.logger.Info().
		Str("protocol", protocol.String()).
		Bool("enabled", enabled).
		Msg("protocol flag updated")
	return nil
}

// Withdraw moves accumulated tokens from the broker balance to dest.
func (s *Service) Withdraw(ctx context.Context, caller, dest, token Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("broker: withdraw amount must be positive")
	}
	err := s.ledger.Invoke(ctx, s.address, []Address{caller}, func(tx *ledger.Tx) error {
		if _, err := requireAdmin(tx); err != nil {
			return err
		}
		return tx.Transfer(token, s.address, dest, amount)
	})
	if err != nil {
		return err
	}
	s.logger.Info().
		Str("token", token.String()).
		Str("dest", dest.String()).
		Str("amount", amount.String()).
		Msg("fees withdrawn")
	return nil
}

func (s *Service) Settings(ctx context.Context) (*SettingsView, error) {
	var view *SettingsView
	err := s.ledger.View(ctx, s.address, func(tx *ledger.Tx) error {
		settings, err := loadSettings(tx)
		if err != nil {
			return err
		}
		view = &SettingsView{
			Admin:     settings.Admin,
			FeeToken:  settings.FeeToken,
			Protocols: make(map[string]bool, len(domain.AllProtocols)),
		}
		for _, p := range domain.AllProtocols {
			enabled, err := isProtocolEnabled(tx, p)
			if err != nil {
				return err
			}
			view.Protocols[p.String()] = enabled
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *Service) Balance(token, holder Address) *big.Int {
	return s.ledger.Balance(token, holder)
}
