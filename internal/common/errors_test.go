package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hxuan190/broker-engine/internal/domain"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantBroker uint32
	}{
		{"unauthorized", fmt.Errorf("wrap: %w", domain.ErrUnauthorized), http.StatusForbidden, "FORBIDDEN", 32700},
		{"not initialized", domain.ErrNotInitialized, http.StatusConflict, "RESOURCE_CONFLICT", 32701},
		{"protocol disabled", domain.ErrProtocolDisabled, http.StatusBadRequest, "BAD_REQUEST", 32710},
		{"invalid path", fmt.Errorf("hop 2: %w", domain.ErrInvalidPath), http.StatusBadRequest, "BAD_REQUEST", 32711},
		{"unfeasible", domain.ErrUnfeasible, http.StatusUnprocessableEntity, "UNFEASIBLE", 32712},
		{"misconduct", domain.ErrMisconduct, http.StatusUnprocessableEntity, "MISCONDUCT", 32713},
		{"plain", errors.New("ledger: insufficient balance"), http.StatusBadRequest, "BAD_REQUEST", 0},
		{"http error passes through", HTTPErrorNotFound(""), http.StatusNotFound, "NOT_FOUND", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantBroker, got.BrokerCode)
		})
	}
}

func TestSetupLogger(t *testing.T) {
	assert.Equal(t, "debug", SetupLogger("DEBUG", "prod").String())
	assert.Equal(t, "info", SetupLogger("nonsense", "dev").String())
}
