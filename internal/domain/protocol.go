package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Protocol identifies the LP backend family a hop is executed against.
type Protocol uint8

const (
	ProtocolAquaConstant Protocol = iota
	ProtocolAquaStable
	ProtocolSoroswap
	ProtocolComet
	ProtocolPhoenix
)

var AllProtocols = []Protocol{
	ProtocolAquaConstant,
	ProtocolAquaStable,
	ProtocolSoroswap,
	ProtocolComet,
	ProtocolPhoenix,
}

func (p Protocol) String() string {
	switch p {
	case ProtocolAquaConstant:
		return "AquaConstant"
	case ProtocolAquaStable:
		return "AquaStable"
	case ProtocolSoroswap:
		return "Soroswap"
	case ProtocolComet:
		return "Comet"
	case ProtocolPhoenix:
		return "Phoenix"
	default:
		return "UNKNOWN"
	}
}

func (p Protocol) Valid() bool {
	return p <= ProtocolPhoenix
}

// ParseProtocol accepts either the protocol name (case-insensitive) or its numeric id.
func ParseProtocol(s string) (Protocol, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		p := Protocol(n)
		if !p.Valid() {
			return 0, fmt.Errorf("unknown protocol id: %d", n)
		}
		return p, nil
	}
	for _, p := range AllProtocols {
		if strings.EqualFold(p.String(), s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown protocol: %q", s)
}

func (p Protocol) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("unknown protocol id: %d", uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *Protocol) UnmarshalText(data []byte) error {
	parsed, err := ParseProtocol(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
