// internal/handlers/custody.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agentvault/av-backend/internal/i18n"
	"github.com/agentvault/av-backend/internal/models"
	"github.com/agentvault/av-backend/internal/services"
	"github.com/agentvault/av-backend/internal/utils"
)

// CustodyHandler exposes the escrow protocol. Deploy and stop payments are
// funded from the caller's bank balance through the standard callbacks.
type CustodyHandler struct {
	custodyService *services.CustodyService
	issuerService  *services.IssuerService
	bankService    *services.TokenService
}

func NewCustodyHandler(custodyService *services.CustodyService, issuerService *services.IssuerService, bankService *services.TokenService) *CustodyHandler {
	return &CustodyHandler{
		custodyService: custodyService,
		issuerService:  issuerService,
		bankService:    bankService,
	}
}

type initializeLedgerRequest struct {
	Registry string `json:"registry" validate:"required,eth_address"`
	Fee      uint64 `json:"fee"`
}

// POST /custody/initialize (admin)
func (h *CustodyHandler) Initialize(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	owner, ok := callerWallet(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req initializeLedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	state, err := h.custodyService.Initialize(owner, models.NormalizeAddress(req.Registry), req.Fee)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, state)
}

type escrowRequest struct {
	PaymentToken string `json:"payment_token" validate:"required,eth_address"`
	LicenseID    uint64 `json:"license_id" validate:"required"`
	Class        struct {
		Name     string `json:"name" validate:"required"`
		Symbol   string `json:"symbol" validate:"required"`
		Capacity uint64 `json:"capacity" validate:"required"`
	} `json:"class"`
	Traits struct {
		Deployments uint64 `json:"deployments"`
		Yield       uint64 `json:"yield"`
		Status      uint8  `json:"status"`
	} `json:"traits"`
}

func (r *escrowRequest) payload() *services.DeployData {
	return &services.DeployData{
		Class: models.ClassKey{
			Name:     r.Class.Name,
			Symbol:   r.Class.Symbol,
			Capacity: r.Class.Capacity,
		},
		Traits: models.Traits{
			Deployments: r.Traits.Deployments,
			Yield:       r.Traits.Yield,
			Status:      models.LicenseStatus(r.Traits.Status),
		},
	}
}

// POST /custody/deploy
func (h *CustodyHandler) Deploy(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	claimant, ok := callerWallet(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req escrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	state, err := h.custodyService.State()
	if err != nil {
		respondServiceError(c, err)
		return
	}

	payload := req.payload()
	classID := utils.DeriveClassAddress(payload.Class.Name, payload.Class.Symbol, payload.Class.Capacity)

	cb := &services.StandardDeployCallback{
		Bank:   h.bankService,
		Issuer: h.issuerService,
		Class:  classID,
		Ledger: state.Address,
		Fee:    state.Fee,
	}

	err = h.custodyService.Deploy(claimant, models.NormalizeAddress(req.PaymentToken), req.LicenseID, payload.Encode(), cb)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":    i18n.T(lang, i18n.KeyLicenseDeployed),
		"license_id": req.LicenseID,
		"class":      classID,
	})
}

// POST /custody/stop
func (h *CustodyHandler) Stop(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	claimant, ok := callerWallet(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req escrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	state, err := h.custodyService.State()
	if err != nil {
		respondServiceError(c, err)
		return
	}

	payload := req.payload()

	cb := &services.StandardStopCallback{
		Bank:   h.bankService,
		Ledger: state.Address,
		Fee:    state.Fee,
	}

	err = h.custodyService.Stop(claimant, models.NormalizeAddress(req.PaymentToken), req.LicenseID, payload.Encode(), cb)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":    i18n.T(lang, i18n.KeyLicenseStopped),
		"license_id": req.LicenseID,
	})
}

// PUT /custody/fee (owner)
func (h *CustodyHandler) SetFee(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	caller, ok := callerWallet(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req struct {
		Fee uint64 `json:"fee"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "fee is required", nil)
		return
	}

	if err := h.custodyService.SetFee(caller, req.Fee); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyFeeUpdated),
		"fee":     req.Fee,
	})
}

// POST /custody/withdraw (owner)
func (h *CustodyHandler) WithdrawFees(c *gin.Context) {
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

	err := h.custodyService.WithdrawFees(caller,
		models.NormalizeAddress(req.Token), models.NormalizeAddress(req.To), req.Amount)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyFeesWithdrawn),
	})
}

// GET /custody/deployments/:address/:id
func (h *CustodyHandler) GetDeployInfo(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.BadRequestResponse(c, "Invalid license ID", nil)
		return
	}

	record, err := h.custodyService.GetDeployInfo(models.NormalizeAddress(c.Param("address")), id)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	if record == nil {
		utils.NotFoundResponse(c, "custody")
		return
	}
	utils.SuccessResponse(c, record)
}

// GET /custody/claimants/:claimant/:address
func (h *CustodyHandler) GetClaimantLicenses(c *gin.Context) {
	ids, err := h.custodyService.GetClaimantLicenses(
		models.NormalizeAddress(c.Param("claimant")),
		models.NormalizeAddress(c.Param("address")))
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, gin.H{"license_ids": ids})
}

// GET /custody/balance/:token
func (h *CustodyHandler) BalanceOf(c *gin.Context) {
	token := models.NormalizeAddress(c.Param("token"))
	amount, err := h.custodyService.BalanceOf(token)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"token": token, "amount": amount})
}

// GET /custody/held/:address
func (h *CustodyHandler) HeldCount(c *gin.Context) {
	count, err := h.custodyService.HeldCount(models.NormalizeAddress(c.Param("address")))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"held": count})
}

// GET /custody/deployments
func (h *CustodyHandler) ListDeployments(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	result, err := h.custodyService.ListDeployments(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.PaginatedResponse(c, *result)
}

// GET /custody
func (h *CustodyHandler) GetState(c *gin.Context) {
	state, err := h.custodyService.State()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, state)
}
