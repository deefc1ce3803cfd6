// internal/handlers/registry.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/agentvault/av-backend/internal/i18n"
	"github.com/agentvault/av-backend/internal/models"
	"github.com/agentvault/av-backend/internal/services"
	"github.com/agentvault/av-backend/internal/utils"
)

type RegistryHandler struct {
	registryService *services.RegistryService
}

func NewRegistryHandler(registryService *services.RegistryService) *RegistryHandler {
	return &RegistryHandler{
		registryService: registryService,
	}
}

type initializeRegistryRequest struct {
	Authority       string   `json:"authority" validate:"required,eth_address"`
	InitialPayments []string `json:"initial_payments" validate:"required"`
}

// POST /registry/initialize (admin)
func (h *RegistryHandler) Initialize(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	owner, ok := callerWallet(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req initializeRegistryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	payments := make([]models.Address, 0, len(req.InitialPayments))
	for _, t := range req.InitialPayments {
		payments = append(payments, models.NormalizeAddress(t))
	}

	state, err := h.registryService.Initialize(owner, models.NormalizeAddress(req.Authority), payments)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeyRegistryInitialized),
		"registry": state,
	})
}

type registerClassRequest struct {
	Name        string `json:"name" validate:"required"`
	Symbol      string `json:"symbol" validate:"required"`
	Capacity    uint64 `json:"capacity" validate:"required"`
	Description string `json:"description,omitempty"`
	BaseLocator string `json:"base_locator,omitempty"`
	MintPrice   uint64 `json:"mint_price" validate:"required"`
	RoyaltyBps  uint16 `json:"royalty_bps"`
}

// POST /registry/classes
func (h *RegistryHandler) RegisterClass(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	owner, ok := callerWallet(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req registerClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	class, err := h.registryService.RegisterClass(&services.RegisterClassRequest{
		Owner:       owner,
		Name:        req.Name,
		Symbol:      req.Symbol,
		Capacity:    req.Capacity,
		Description: req.Description,
		BaseLocator: req.BaseLocator,
		MintPrice:   req.MintPrice,
		RoyaltyBps:  req.RoyaltyBps,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyClassCreated),
		"class":   class,
	})
}

type paymentListRequest struct {
	Tokens []string `json:"tokens" validate:"required"`
}

// POST /registry/payments
func (h *RegistryHandler) SetPayments(c *gin.Context) {
	h.mutatePayments(c, h.registryService.SetPayments)
}

// DELETE /registry/payments
func (h *RegistryHandler) RemovePayments(c *gin.Context) {
	h.mutatePayments(c, h.registryService.RemovePayments)
}

func (h *RegistryHandler) mutatePayments(c *gin.Context, op func(models.Address, []models.Address) error) {
	lang := utils.GetLangFromContext(c)
	caller, ok := callerWallet(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req paymentListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	tokens := make([]models.Address, 0, len(req.Tokens))
	for _, t := range req.Tokens {
		tokens = append(tokens, models.NormalizeAddress(t))
	}

	if err := op(caller, tokens); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPaymentsUpdated),
	})
}

// GET /registry/payments
func (h *RegistryHandler) ListPayments(c *gin.Context) {
	tokens, err := h.registryService.ListPayments()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, gin.H{"tokens": tokens})
}

// GET /registry/payments/:token
func (h *RegistryHandler) IsPayable(c *gin.Context) {
	token := models.NormalizeAddress(c.Param("token"))
	payable, err := h.registryService.IsPayable(token)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, gin.H{"token": token, "payable": payable})
}

// GET /registry/resolve?name=&symbol=&capacity=
func (h *RegistryHandler) GetIssuer(c *gin.Context) {
	var query struct {
		Name     string `form:"name" binding:"required"`
		Symbol   string `form:"symbol" binding:"required"`
		Capacity uint64 `form:"capacity" binding:"required"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	issuer, err := h.registryService.GetIssuer(query.Name, query.Symbol, query.Capacity)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, gin.H{"issuer": issuer})
}

// GET /registry/classes
func (h *RegistryHandler) ListClasses(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	result, err := h.registryService.ListClasses(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.PaginatedResponse(c, *result)
}

// GET /registry
func (h *RegistryHandler) GetState(c *gin.Context) {
	state, err := h.registryService.State()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, state)
}
