package http

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/hxuan190/broker-engine/internal/domain"
	"github.com/hxuan190/broker-engine/internal/http/httputil"
	"github.com/hxuan190/broker-engine/internal/services/market"
)

type PoolHandler struct {
	registry *market.Registry
}

func NewPoolHandler(registry *market.Registry) *PoolHandler {
	return &PoolHandler{registry: registry}
}

func (h *PoolHandler) SetRoutes(pub *gin.RouterGroup, signed *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("/list", h.listPools)
	pub.GET("/:address", h.getPool)
}

func (h *PoolHandler) Root() string {
	return "/pools"
}

// PoolInfo describes a registered LP backend and its live reserves
type PoolInfo struct {
	Address  string   `json:"address" example:"HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ"`
	Protocol string   `json:"protocol" example:"AquaConstant"`
	Tokens   []string `json:"tokens"`

	// Reserves in base units, same order as tokens
	Reserves []string `json:"reserves"`
	FeeBps   uint32   `json:"feeBps" example:"30"`
}

type PoolListResponse struct {
	Pools []PoolInfo `json:"pools"`
	Total int        `json:"total" example:"3"`
}

func toPoolInfo(info *domain.PoolInfo) PoolInfo {
	out := PoolInfo{
		Address:  info.Address.String(),
		Protocol: info.Protocol.String(),
		Tokens:   make([]string, 0, len(info.Tokens)),
		Reserves: make([]string, 0, len(info.Reserves)),
		FeeBps:   info.FeeBps,
	}
	for _, t := range info.Tokens {
		out.Tokens = append(out.Tokens, t.String())
	}
	for _, r := range info.Reserves {
		out.Reserves = append(out.Reserves, r.String())
	}
	return out
}

// @Summary List pools
// @Description Every registered LP pool ordered by address, optionally filtered by protocol.
// @Tags pools
// @Produce json
// @Param protocol query string false "Protocol name or id"
// @Success 200 {object} PoolListResponse
// @Failure 400 {object} httputil.Response
// @Router /api/v1/pools/list [get]
func (h *PoolHandler) listPools(c *gin.Context) {
	var filter *domain.Protocol
	if raw := c.Query("protocol"); raw != "" {
		p, err := domain.ParseProtocol(raw)
		if err != nil {
			httputil.BadRequest(c, err.Error())
			return
		}
		filter = &p
	}

	infos, err := h.registry.Pools(c.Request.Context(), filter)
	if err != nil {
		httputil.InternalError(c, err.Error())
		return
	}

	pools := make([]PoolInfo, 0, len(infos))
	for _, info := range infos {
		pools = append(pools, toPoolInfo(info))
	}
	httputil.Success(c, PoolListResponse{Pools: pools, Total: len(pools)})
}

// @Summary Get pool
// @Tags pools
// @Produce json
// @Param address path string true "Pool address"
// @Success 200 {object} PoolInfo
// @Failure 400 {object} httputil.Response
// @Failure 404 {object} httputil.Response
// @Router /api/v1/pools/{address} [get]
func (h *PoolHandler) getPool(c *gin.Context) {
	address, err := parseAddress("pool", c.Param("address"))
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	info, err := h.registry.Pool(c.Request.Context(), address)
	if err != nil {
		if errors.Is(err, market.ErrPoolNotFound) {
			httputil.NotFound(c, "pool not found")
			return
		}
		httputil.InternalError(c, err.Error())
		return
	}
	httputil.Success(c, toPoolInfo(info))
}
