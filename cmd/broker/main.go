package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/broker-engine/internal/common"
	"github.com/hxuan190/broker-engine/internal/config"
	"github.com/hxuan190/broker-engine/internal/engine"
	"github.com/hxuan190/broker-engine/internal/http"
)

// @title Broker Engine API
// @version 1.0-beta
// @description Atomic settlement of multi-route token swaps across liquidity pool protocols.
// @description
// @description ## - Features
// @description - **Multi-route swaps**: one selling token split over several paths into one buying token
// @description - **Multi-hop paths**: every hop goes through an enabled LP protocol
// @description - **Fees**: performance fee on profit above the estimate plus a flat fee, converted into the reference fee token
// @description - **Atomicity**: every balance is verified after execution; any failure rolls the whole swap back
// @description
// @description ## - Supported protocols
// @description | Protocol | Id | Curve |
// @description |-----|-----|------------|
// @description | **AquaConstant** | 0 | Constant product |
// @description | **AquaStable** | 1 | Stableswap |
// @description | **Soroswap** | 2 | Constant product, 0.3% fee |
// @description | **Comet** | 3 | Weighted pool |
// @description | **Phoenix** | 4 | Constant product with spread guard |
// @description
// @description ## - Authentication
// @description Swap and admin routes need `X-Wallet-Address`, `X-Timestamp` (unix seconds),
// @description a single-use `X-Nonce` and `X-Signature`: a base58 ed25519 signature over
// @description `timestamp + "." + nonce + "." + body`.
// @description
// @description ## - Usage Tips
// @description - Amounts are integers in base units, sent as strings
// @description - Fee shares are parts per thousand
// @description - Rate Limit: 10 requests/second (burst: 20) by default
// @description
// @BasePath /
// @schemes https http
// @tag.name swap
// @tag.description Execute and settle swaps
// @tag.name broker
// @tag.description Broker settings
// @tag.name admin
// @tag.description Admin-only operations, signed by the admin wallet
// @tag.name pools
// @tag.description Registered LP pools and reserves
// @tag.name balances
// @tag.description Token balances held in the ledger

func main() {
	// load env
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Error().Err(err).Msg("failed to load env")
		return
	}

	generalConf := &config.GeneralConfig{}
	brokerConf := &config.BrokerConfig{}
	if err := config.LoadAll(generalConf, brokerConf); err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return
	}
	common.SetupLogger(generalConf.LogLevel, generalConf.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := engine.New(brokerConf)
	if err != nil {
		log.Error().Err(err).Msg("failed to create engine")
		return
	}
	if err := eng.Start(ctx); err != nil {
		log.Error().Err(err).Msg("failed to start engine")
		return
	}

	server := http.NewHTTPService(generalConf, brokerConf, eng)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	log.Info().Msg("Shutting down services...")
	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	if err := eng.Stop(); err != nil {
		log.Error().Err(err).Msg("error closing engine")
	}
	log.Info().Msg("Shutdown complete")
}
