package http

import (
	"github.com/gin-gonic/gin"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/http/httputil"
	"github.com/hxuan190/broker-engine/internal/http/middlewares"
	"github.com/hxuan190/broker-engine/internal/services/broker"
)

// BrokerHandler serves the broker settings and the admin operations. Admin
// routes run as the signing wallet; the broker checks it is the admin.
type BrokerHandler struct {
	brokerSvc *broker.Service
}

func NewBrokerHandler(brokerSvc *broker.Service) *BrokerHandler {
	return &BrokerHandler{brokerSvc: brokerSvc}
}

func (h *BrokerHandler) SetRoutes(pub *gin.RouterGroup, signed *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("/settings", h.getSettings)

	admin.POST("/init", h.init)
	admin.POST("/protocols", h.setProtocol)
	admin.POST("/withdraw", h.withdraw)
}

func (h *BrokerHandler) Root() string {
	return "/broker"
}

type SettingsResponse struct {
	Broker    string          `json:"broker"`
	Admin     string          `json:"admin"`
	FeeToken  string          `json:"feeToken"`
	Protocols map[string]bool `json:"protocols"`
}

type InitRequest struct {
	Admin    string `json:"admin" binding:"required"`
	FeeToken string `json:"feeToken" binding:"required"`
}

type ProtocolRequest struct {
	Protocol string `json:"protocol" binding:"required" example:"Soroswap"`
	Enabled  bool   `json:"enabled"`
}

type WithdrawRequest struct {
	Dest   string `json:"dest" binding:"required"`
	Token  string `json:"token" binding:"required"`
	Amount string `json:"amount" binding:"required" example:"32826388"`
}

// @Summary Broker settings
// @Description Admin, reference fee token and the enable flag of every protocol.
// @Tags broker
// @Produce json
// @Success 200 {object} SettingsResponse
// @Failure 409 {object} httputil.Response "Broker not initialized"
// @Router /api/v1/broker/settings [get]
func (h *BrokerHandler) getSettings(c *gin.Context) {
	settings, err := h.brokerSvc.Settings(c.Request.Context())
	if err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.Success(c, SettingsResponse{
		Broker:    h.brokerSvc.Address().String(),
		Admin:     settings.Admin.String(),
		FeeToken:  settings.FeeToken.String(),
		Protocols: settings.Protocols,
	})
}

func signer(c *gin.Context) (domain.Address, bool) {
	wallet, ok := middlewares.WalletFromContext(c)
	if !ok {
		httputil.Unauthorized(c, "unsigned request")
	}
	return wallet, ok
}

// @Summary Initialize the broker
// @Description One-time setup of the admin and the reference fee token; must be signed by the admin.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body InitRequest true "Init request"
// @Success 200 {object} httputil.Response
// @Failure 403 {object} httputil.Response
// @Failure 409 {object} httputil.Response "Already initialized"
// @Router /api/v1/admin/broker/init [post]
func (h *BrokerHandler) init(c *gin.Context) {
	caller, ok := signer(c)
	if !ok {
		return
	}
	var req InitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	admin, err := parseAddress("admin", req.Admin)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	feeToken, err := parseAddress("feeToken", req.FeeToken)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	if err := h.brokerSvc.Init(c.Request.Context(), caller, admin, feeToken); err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.Success(c, gin.H{"admin": admin.String(), "feeToken": feeToken.String()})
}

// @Summary Enable or disable a protocol
// @Tags admin
// @Accept json
// @Produce json
// @Param request body ProtocolRequest true "Protocol flag"
// @Success 200 {object} httputil.Response
// @Failure 403 {object} httputil.Response
// @Router /api/v1/admin/broker/protocols [post]
func (h *BrokerHandler) setProtocol(c *gin.Context) {
	caller, ok := signer(c)
	if !ok {
		return
	}
	var req ProtocolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	protocol, err := domain.ParseProtocol(req.Protocol)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	if err := h.brokerSvc.EnableProtocol(c.Request.Context(), caller, protocol, req.Enabled); err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.Success(c, gin.H{"protocol": protocol.String(), "enabled": req.Enabled})
}

// @Summary Withdraw accumulated tokens
// @Tags admin
// @Accept json
// @Produce json
// @Param request body WithdrawRequest true "Withdraw request"
// @Success 200 {object} httputil.Response
// @Failure 400 {object} httputil.Response
// @Failure 403 {object} httputil.Response
// @Router /api/v1/admin/broker/withdraw [post]
func (h *BrokerHandler) withdraw(c *gin.Context) {
	caller, ok := signer(c)
	if !ok {
		return
	}
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	dest, err := parseAddress("dest", req.Dest)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	if err := h.brokerSvc.Withdraw(c.Request.Context(), caller, dest, token, amount); err != nil {
		httputil.Fail(c, err)
		return
	}
	httputil.Success(c, gin.H{"dest": dest.String(), "token": token.String(), "amount": amount.String()})
}
