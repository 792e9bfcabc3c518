package broker

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/ledger"
)

const (
	settingsKey       = "settings"
	protocolKeyPrefix = "protocol/"
)

// Settings is the admin-managed broker configuration kept in its contract storage.
type Settings struct {
	Admin    Address `json:"admin"`
	FeeToken Address `json:"feeToken"`
}

// SettingsView is the read-only snapshot served to clients.
type SettingsView struct {
	Admin     Address         `json:"admin"`
	FeeToken  Address         `json:"feeToken"`
	Protocols map[string]bool `json:"protocols"`
}

func protocolKey(p domain.Protocol) string {
	return protocolKeyPrefix + p.String()
}

func loadSettings(tx *ledger.Tx) (*Settings, error) {
	raw, ok := tx.Get(settingsKey)
	if !ok {
		return nil, domain.ErrNotInitialized
	}
	var s Settings
	if err := sonic.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("broker: decode settings: %w", err)
	}
	return &s, nil
}

func storeSettings(tx *ledger.Tx, s *Settings) error {
	raw, err := sonic.Marshal(s)
	if err != nil {
		return fmt.Errorf("broker: encode settings: %w", err)
	}
	return tx.Put(settingsKey, raw)
}

func isProtocolEnabled(tx *ledger.Tx, p domain.Protocol) (bool, error) {
	raw, ok := tx.Get(protocolKey(p))
	if !ok {
		return false, nil
	}
	var enabled bool
	if err := sonic.Unmarshal(raw, &enabled); err != nil {
		return false, fmt.Errorf("broker: decode protocol flag: %w", err)
	}
	return enabled, nil
}

func setProtocolEnabled(tx *ledger.Tx, p domain.Protocol, enabled bool) error {
	raw, err := sonic.Marshal(enabled)
	if err != nil {
		return err
	}
	return tx.Put(protocolKey(p), raw)
}

// requireAdmin fails with ErrNotInitialized before init and ErrUnauthorized
// unless the stored admin authorized the call.
func requireAdmin(tx *ledger.Tx) (*Settings, error) {
	s, err := loadSettings(tx)
	if err != nil {
		return nil, err
	}
	if err := tx.RequireAuth(s.Admin); err != nil {
		return nil, err
	}
	return s, nil
}
