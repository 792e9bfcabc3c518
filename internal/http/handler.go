package http

import (
	"context"
	"fmt"
	gohttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/hxuan190/broker-engine/internal/config"
	"github.com/hxuan190/broker-engine/internal/engine"
	"github.com/hxuan190/broker-engine/internal/http/httputil"
	"github.com/hxuan190/broker-engine/internal/http/middlewares"
)

const (
	API_VERSION  = "v1"
	HTTP_SERVICE = "http-service"
)

type HTTPService struct {
	engine      *engine.Service
	rateLimiter *middlewares.RateLimiter
	server      *gohttp.Server
	conf        *config.GeneralConfig
	brokerConf  *config.BrokerConfig

	handlers []httputil.IHttpHandler
}

func NewHTTPService(conf *config.GeneralConfig, brokerConf *config.BrokerConfig, eng *engine.Service) *HTTPService {
	return &HTTPService{
		engine:      eng,
		rateLimiter: middlewares.NewRateLimiter(brokerConf.RateLimit, brokerConf.RateBurst),
		conf:        conf,
		brokerConf:  brokerConf,
		handlers: []httputil.IHttpHandler{
			NewSwapHandler(eng.Broker()),
			NewBrokerHandler(eng.Broker()),
			NewPoolHandler(eng.Registry()),
			NewBalanceHandler(eng.Broker()),
		},
	}
}

func (svc *HTTPService) ID() string {
	return HTTP_SERVICE
}

// Router builds the gin engine with every middleware and handler mounted.
func (svc *HTTPService) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	corsConf := cors.DefaultConfig()
	corsConf.AllowAllOrigins = true
	corsConf.AddAllowHeaders(middlewares.HeaderWallet, middlewares.HeaderTimestamp, middlewares.HeaderNonce, middlewares.HeaderSignature)
	r.Use(cors.New(corsConf))

	r.Use(middlewares.MetricsMiddleware())
	r.Use(svc.rateLimiter.RateLimitMiddleware())

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(gohttp.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// a timestamp stays acceptable for maxAge on either side of now
	nonces := middlewares.NewNonceCache(svc.brokerConf.NonceCapacity, 2*svc.brokerConf.SignatureMaxAge)
	signature := middlewares.SignatureMiddleware(svc.brokerConf.SignatureMaxAge, nonces)

	api := r.Group("api")
	pub := api.Group(API_VERSION)
	signed := api.Group(API_VERSION, signature)

	admin := api.Group(fmt.Sprintf("%s/admin", API_VERSION), signature)

	svc.setupHandlers(pub, signed, admin)
	return r
}

// Start blocks serving requests until Stop is called.
func (svc *HTTPService) Start() error {
	svc.server = &gohttp.Server{
		Addr:              svc.conf.HTTPHost + ":" + svc.conf.HTTPPort,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("host", svc.conf.HTTPHost).Str("port", svc.conf.HTTPPort).Msg("http server started")

	if err := svc.server.ListenAndServe(); err != nil && err != gohttp.ErrServerClosed {
		return err
	}

	return nil
}

func (svc *HTTPService) Stop() error {
	if svc.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := svc.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
		return err
	}
	log.Info().Msg("http server stopped gracefully")
	return nil
}

func (svc *HTTPService) setupHandlers(
	rootPub *gin.RouterGroup,
	rootSigned *gin.RouterGroup,
	rootAdmin *gin.RouterGroup,
) {
	for _, h := range svc.handlers {
		pub := rootPub.Group(h.Root())
		signed := rootSigned.Group(h.Root())
		admin := rootAdmin.Group(h.Root())
		h.SetRoutes(pub, signed, admin)
	}
}
