// internal/handlers/class.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agentvault/av-backend/internal/i18n"
	"github.com/agentvault/av-backend/internal/models"
	"github.com/agentvault/av-backend/internal/services"
	"github.com/agentvault/av-backend/internal/utils"
)

// ClassHandler exposes one agent class's issuer operations: minting,
// trait updates, metadata and revenue withdrawal.
type ClassHandler struct {
	registryService *services.RegistryService
	issuerService   *services.IssuerService
	bankService     *services.TokenService
}

func NewClassHandler(registryService *services.RegistryService, issuerService *services.IssuerService, bankService *services.TokenService) *ClassHandler {
	return &ClassHandler{
		registryService: registryService,
		issuerService:   issuerService,
		bankService:     bankService,
	}
}

func classAddress(c *gin.Context) models.Address {
	return models.NormalizeAddress(c.Param("address"))
}

func parseLicenseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.BadRequestResponse(c, "Invalid license ID", nil)
		return 0, false
	}
	return id, true
}

// GET /classes/:address
func (h *ClassHandler) GetClass(c *gin.Context) {
	class, err := h.registryService.GetClass(classAddress(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, class)
}

type issueRequest struct {
	To           string `json:"to,omitempty" validate:"omitempty,eth_address"`
	PaymentToken string `json:"payment_token" validate:"required,eth_address"`
	Amount       uint64 `json:"amount,omitempty"`
}

// POST /classes/:address/issue
//
// The mint payment is taken from the caller's bank balance. Amount defaults
// to the class mint price; paying more is allowed, paying less fails.
func (h *ClassHandler) Issue(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	caller, ok := callerWallet(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	classID := classAddress(c)
	class, err := h.registryService.GetClass(classID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	to := caller
	if req.To != "" {
		to = models.NormalizeAddress(req.To)
	}

	amount := req.Amount
	if amount == 0 {
		amount = class.MintPrice
	}

	cb := &services.StandardMintCallback{
		Bank:   h.bankService,
		Payer:  caller,
		Class:  classID,
		Amount: amount,
	}

	licenseID, err := h.issuerService.Issue(classID, to, models.NormalizeAddress(req.PaymentToken), cb, nil)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":    i18n.T(lang, i18n.KeyLicenseIssued),
		"license_id": licenseID,
	})
}

// GET /classes/:address/licenses
func (h *ClassHandler) ListLicenses(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	result, err := h.issuerService.ListLicenses(classAddress(c), params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.PaginatedResponse(c, *result)
}

// GET /classes/:address/licenses/:id
func (h *ClassHandler) GetLicense(c *gin.Context) {
	id, ok := parseLicenseID(c)
	if !ok {
		return
	}

	license, err := h.issuerService.GetLicense(classAddress(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, license)
}

// GET /classes/:address/licenses/:id/metadata
func (h *ClassHandler) RenderMetadata(c *gin.Context) {
	id, ok := parseLicenseID(c)
	if !ok {
		return
	}

	doc, err := h.issuerService.RenderMetadata(classAddress(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, doc)
}

type updateTraitsRequest struct {
	Deployments uint64 `json:"deployments"`
	Yield       uint64 `json:"yield"`
	Status      uint8  `json:"status"`
}

// PUT /classes/:address/licenses/:id/traits
func (h *ClassHandler) UpdateTraits(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	caller, ok := callerWallet(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, ok := parseLicenseID(c)
	if !ok {
		return
	}

	var req updateTraitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	traits := models.Traits{
		Deployments: req.Deployments,
		Yield:       req.Yield,
		Status:      models.LicenseStatus(req.Status),
	}

	if err := h.issuerService.UpdateTraits(caller, classAddress(c), id, traits); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyTraitsUpdated),
	})
}

// PUT /classes/:address/base-locator
func (h *ClassHandler) UpdateBaseLocator(c *gin.Context) {
	caller, ok := callerWallet(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req struct {
		BaseLocator string `json:"base_locator" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "base_locator is required", nil)
		return
	}

	if err := h.issuerService.UpdateBaseLocator(caller, classAddress(c), req.BaseLocator); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"base_locator": req.BaseLocator})
}

type withdrawRequest struct {
	Token  string `json:"token" validate:"required,eth_address"`
	To     string `json:"to" validate:"required,eth_address"`
	Amount uint64 `json:"amount" validate:"required"`
}

// POST /classes/:address/withdraw
func (h *ClassHandler) Withdraw(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	caller, ok := callerWallet(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	err := h.issuerService.Withdraw(caller, classAddress(c),
		models.NormalizeAddress(req.Token), models.NormalizeAddress(req.To), req.Amount)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyFeesWithdrawn),
	})
}

// POST /classes/:address/transfer-ownership
func (h *ClassHandler) TransferOwnership(c *gin.Context) {
	caller, ok := callerWallet(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req struct {
		NewOwner string `json:"new_owner" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "new_owner is required", nil)
		return
	}

	err := h.issuerService.TransferClassOwnership(caller, classAddress(c), models.NormalizeAddress(req.NewOwner))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"new_owner": models.NormalizeAddress(req.NewOwner)})
}

// GET /classes/:address/balance/:token
func (h *ClassHandler) BalanceOf(c *gin.Context) {
	token := models.NormalizeAddress(c.Param("token"))
	amount, err := h.issuerService.BalanceOf(classAddress(c), token)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"token": token, "amount": amount})
}
