package http

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/http/httputil"
	"github.com/hxuan190/broker-engine/internal/http/middlewares"
	"github.com/hxuan190/broker-engine/internal/services/broker"
)

// SwapHandler settles swap requests signed by the trader.
type SwapHandler struct {
	brokerSvc *broker.Service
}

func NewSwapHandler(brokerSvc *broker.Service) *SwapHandler {
	return &SwapHandler{brokerSvc: brokerSvc}
}

func (h *SwapHandler) SetRoutes(pub *gin.RouterGroup, signed *gin.RouterGroup, admin *gin.RouterGroup) {
	signed.POST("", h.swap)
}

func (h *SwapHandler) Root() string {
	return "/swap"
}

// SwapHandlerRequest is a batch of routes sharing a selling and a buying token.
// The trader is the wallet that signed the request.
type SwapHandlerRequest struct {
	// Selling token address
	Selling string `json:"selling" binding:"required" example:"So11111111111111111111111111111111111111112"`

	// Routes to execute; every path must end in the same token
	Routes []RouteDTO `json:"routes" binding:"required,min=1"`

	// Performance fee on profit above the estimate, parts per thousand
	VFee uint32 `json:"vfee" example:"150"`

	// Flat fee on the bought amount, parts per thousand
	FFee uint32 `json:"ffee" example:"10"`

	// Path converting the fee from the buying token into the fee token
	FeePath []PathStepDTO `json:"feePath"`
}

type SwapHandlerResponse struct {
	// Execution id, also present in the server logs
	ID string `json:"id" example:"5b0e7f0a-8a53-4f2e-9c5e-3f8f3f2b1c11"`

	// Selling token pulled from the trader
	SellingAmount string `json:"sellingAmount" example:"1000000000"`

	// Buying token paid to the trader, fee already deducted
	Bought string `json:"bought" example:"800679106"`

	// Fee retained by the broker
	ReceivedFee string `json:"receivedFee" example:"32826388"`
}

func (r *SwapHandlerRequest) toDomain(trader domain.Address) (*domain.SwapRequest, error) {
	selling, err := parseAddress("selling", r.Selling)
	if err != nil {
		return nil, err
	}
	req := &domain.SwapRequest{
		Selling: selling,
		Trader:  trader,
		VFee:    r.VFee,
		FFee:    r.FFee,
		Routes:  make([]domain.Route, 0, len(r.Routes)),
	}
	for i, dto := range r.Routes {
		route, err := dto.toDomain()
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
		req.Routes = append(req.Routes, route)
	}
	if req.FeePath, err = pathToDomain(r.FeePath); err != nil {
		return nil, fmt.Errorf("fee path: %w", err)
	}
	return req, nil
}

// @Summary Execute a swap
// @Description Pulls the selling amount from the signing wallet, executes every route through
// @Description the enabled LP protocols, charges the fee and pays the bought amount out.
// @Description The whole settlement is atomic: any failure leaves every balance untouched.
// @Description
// @Description **Authentication:** `X-Wallet-Address`, `X-Timestamp`, `X-Nonce` and `X-Signature`
// @Description (base58 ed25519 over `timestamp + "." + nonce + "." + body`). A nonce is accepted once.
// @Description
// @Description **Abort codes (brokerCode):**
// @Description - 32700: unauthorized
// @Description - 32701: not initialized
// @Description - 32710: protocol disabled
// @Description - 32711: invalid path
// @Description - 32712: unfeasible (below min)
// @Description - 32713: misconduct (balance verification failed)
// @Tags swap
// @Accept json
// @Produce json
// @Param request body SwapHandlerRequest true "Swap request"
// @Success 200 {object} SwapHandlerResponse
// @Failure 400 {object} httputil.Response "Invalid request"
// @Failure 401 {object} httputil.Response "Missing or invalid signature"
// @Failure 422 {object} httputil.Response "Unfeasible or misconduct"
// @Router /api/v1/swap [post]
func (h *SwapHandler) swap(c *gin.Context) {
	trader, ok := middlewares.WalletFromContext(c)
	if !ok {
		httputil.Unauthorized(c, "unsigned request")
		return
	}

	var body SwapHandlerRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		httputil.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	req, err := body.toDomain(trader)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	result, err := h.brokerSvc.Swap(c.Request.Context(), trader, req)
	if err != nil {
		httputil.Fail(c, err)
		return
	}

	httputil.Success(c, SwapHandlerResponse{
		ID:            result.ID,
		SellingAmount: result.SellingAmount.String(),
		Bought:        result.Bought.String(),
		ReceivedFee:   result.ReceivedFee.String(),
	})
}
