package http

import (
	"github.com/gin-gonic/gin"

	"github.com/hxuan190/broker-engine/internal/http/httputil"
	"github.com/hxuan190/broker-engine/internal/services/broker"
)

type BalanceHandler struct {
	brokerSvc *broker.Service
}

func NewBalanceHandler(brokerSvc *broker.Service) *BalanceHandler {
	return &BalanceHandler{brokerSvc: brokerSvc}
}

func (h *BalanceHandler) SetRoutes(pub *gin.RouterGroup, signed *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("/:token/:holder", h.getBalance)
}

func (h *BalanceHandler) Root() string {
	return "/balances"
}

type BalanceResponse struct {
	Token  string `json:"token"`
	Holder string `json:"holder"`
	Amount string `json:"amount" example:"800679106"`
}

// @Summary Token balance
// @Tags balances
// @Produce json
// @Param token path string true "Token address"
// @Param holder path string true "Holder address"
// @Success 200 {object} BalanceResponse
// @Failure 400 {object} httputil.Response
// @Router /api/v1/balances/{token}/{holder} [get]
func (h *BalanceHandler) getBalance(c *gin.Context) {
	token, err := parseAddress("token", c.Param("token"))
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}
	holder, err := parseAddress("holder", c.Param("holder"))
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	httputil.Success(c, BalanceResponse{
		Token:  token.String(),
		Holder: holder.String(),
		Amount: h.brokerSvc.Balance(token, holder).String(),
	})
}
