package restapi

import (
	"net/http"

	"github.com/Frankramos181422/metamask-extension/internal/app/service"
	"github.com/Frankramos181422/metamask-extension/internal/domain/entity"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NetworkHandler serves the HTTP surface over the network controller.
type NetworkHandler struct {
	controller *service.NetworkController
	logger     *zap.Logger
}

// NewNetworkHandler creates a handler bound to controller.
func NewNetworkHandler(controller *service.NetworkController, logger *zap.Logger) *NetworkHandler {
	return &NetworkHandler{
		controller: controller,
		logger:     logger.Named("NetworkHandler"),
	}
}

// APIStatusResponse is the response body for the network status endpoint.
type APIStatusResponse struct {
	Provider       entity.ProviderConfiguration `json:"provider"`
	NetworkID      *entity.NetworkID            `json:"networkId"`
	NetworkStatus  entity.NetworkStatus         `json:"networkStatus"`
	NetworkDetails entity.NetworkDetails        `json:"networkDetails"`
}

// GetStatusHandler returns the derived network state.
func (h *NetworkHandler) GetStatusHandler(c *gin.Context) {
	state := h.controller.State()
	c.JSON(http.StatusOK, APIStatusResponse{
		Provider:       state.Provider,
		NetworkID:      state.NetworkID,
		NetworkStatus:  state.NetworkStatus,
		NetworkDetails: state.NetworkDetails,
	})
}

// GetStateHandler returns the full composite state snapshot.
func (h *NetworkHandler) GetStateHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.State())
}

// SetProviderTypeRequest selects a built-in network by shortname.
type SetProviderTypeRequest struct {
	Type entity.ProviderType `json:"type" binding:"required"`
}

// SetProviderTypeHandler switches to a built-in network.
func (h *NetworkHandler) SetProviderTypeHandler(c *gin.Context) {
	var req SetProviderTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.controller.SetProviderType(req.Type); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": h.controller.GetProviderConfig()})
}

// ActivateNetworkRequest selects a custom network by configuration id.
type ActivateNetworkRequest struct {
	ID string `json:"id" binding:"required"`
}

// ActivateNetworkHandler switches to a registered custom network.
func (h *NetworkHandler) ActivateNetworkHandler(c *gin.Context) {
	var req ActivateNetworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rpcURL, err := h.controller.SetActiveNetwork(req.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rpcUrl": rpcURL})
}

// ResetConnectionHandler re-applies the current configuration.
func (h *NetworkHandler) ResetConnectionHandler(c *gin.Context) {
	if err := h.controller.ResetConnection(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// RollbackHandler switches back to the previously active configuration.
func (h *NetworkHandler) RollbackHandler(c *gin.Context) {
	if err := h.controller.RollbackToPreviousProvider(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": h.controller.GetProviderConfig()})
}

// ListNetworksHandler returns the custom network registry.
func (h *NetworkHandler) ListNetworksHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"networkConfigurations": h.controller.GetNetworkConfigurations()})
}

// UpsertNetworkRequest adds or updates a custom network.
type UpsertNetworkRequest struct {
	RPCURL    string           `json:"rpcUrl" binding:"required"`
	ChainID   entity.ChainID   `json:"chainId" binding:"required"`
	Ticker    string           `json:"ticker" binding:"required"`
	Nickname  string           `json:"nickname"`
	RPCPrefs  *entity.RPCPrefs `json:"rpcPrefs"`
	SetActive bool             `json:"setActive"`
	Referrer  string           `json:"referrer" binding:"required"`
	Source    string           `json:"source" binding:"required"`
}

// UpsertNetworkHandler stores a custom network and optionally activates it.
func (h *NetworkHandler) UpsertNetworkHandler(c *gin.Context) {
	var req UpsertNetworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.controller.UpsertNetworkConfiguration(entity.NetworkConfiguration{
		RPCURL:   req.RPCURL,
		ChainID:  req.ChainID,
		Ticker:   req.Ticker,
		Nickname: req.Nickname,
		RPCPrefs: req.RPCPrefs,
	}, service.UpsertOptions{
		SetActive: req.SetActive,
		Referrer:  req.Referrer,
		Source:    req.Source,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// RemoveNetworkHandler deletes a custom network by id.
func (h *NetworkHandler) RemoveNetworkHandler(c *gin.Context) {
	h.controller.RemoveNetworkConfiguration(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// GetEIP1559Handler reports whether the active network supports EIP-1559.
func (h *NetworkHandler) GetEIP1559Handler(c *gin.Context) {
	supported, err := h.controller.GetEIP1559Compatibility(c.Request.Context())
	if err != nil {
		h.logger.Warn("EIP-1559 compatibility check failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"eip1559": supported})
}
