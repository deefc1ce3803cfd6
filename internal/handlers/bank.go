// internal/handlers/bank.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/agentvault/av-backend/internal/i18n"
	"github.com/agentvault/av-backend/internal/models"
	"github.com/agentvault/av-backend/internal/services"
	"github.com/agentvault/av-backend/internal/utils"
)

// BankHandler exposes the fungible token bank backing every payment check.
type BankHandler struct {
	bankService *services.TokenService
}

func NewBankHandler(bankService *services.TokenService) *BankHandler {
	return &BankHandler{
		bankService: bankService,
	}
}

// GET /bank/balance/:token/:account
func (h *BankHandler) Balance(c *gin.Context) {
	token := models.NormalizeAddress(c.Param("token"))
	account := models.NormalizeAddress(c.Param("account"))

	amount, err := h.bankService.BalanceOf(nil, token, account)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"token": token, "account": account, "amount": amount})
}

// GET /bank/allowance/:token/:owner/:spender
func (h *BankHandler) Allowance(c *gin.Context) {
	token := models.NormalizeAddress(c.Param("token"))
	owner := models.NormalizeAddress(c.Param("owner"))
	spender := models.NormalizeAddress(c.Param("spender"))

	amount, err := h.bankService.Allowance(nil, token, owner, spender)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"token": token, "owner": owner, "spender": spender, "amount": amount})
}

type transferRequest struct {
	Token  string `json:"token" validate:"required,eth_address"`
	To     string `json:"to" validate:"required,eth_address"`
	Amount uint64 `json:"amount" validate:"required"`
}

// POST /bank/transfer
func (h *BankHandler) Transfer(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	caller, ok := callerWallet(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	err := h.bankService.Transfer(nil, models.NormalizeAddress(req.Token), caller,
		models.NormalizeAddress(req.To), req.Amount)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyTransferComplete),
	})
}

type approveRequest struct {
	Token   string `json:"token" validate:"required,eth_address"`
	Spender string `json:"spender" validate:"required,eth_address"`
	Amount  uint64 `json:"amount"`
}

// POST /bank/approve
func (h *BankHandler) Approve(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	caller, ok := callerWallet(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	err := h.bankService.Approve(nil, models.NormalizeAddress(req.Token), caller,
		models.NormalizeAddress(req.Spender), req.Amount)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyApprovalSet),
	})
}

type transferFromRequest struct {
	Token  string `json:"token" validate:"required,eth_address"`
	From   string `json:"from" validate:"required,eth_address"`
	To     string `json:"to" validate:"required,eth_address"`
	Amount uint64 `json:"amount" validate:"required"`
}

// POST /bank/transfer-from
func (h *BankHandler) TransferFrom(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	caller, ok := callerWallet(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req transferFromRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	err := h.bankService.TransferFrom(nil, models.NormalizeAddress(req.Token), caller,
		models.NormalizeAddress(req.From), models.NormalizeAddress(req.To), req.Amount)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyTransferComplete),
	})
}

type mintRequest struct {
	Token  string `json:"token" validate:"required,eth_address"`
	To     string `json:"to" validate:"required,eth_address"`
	Amount uint64 `json:"amount" validate:"required"`
}

// POST /bank/mint (admin)
func (h *BankHandler) Mint(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req mintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	err := h.bankService.Mint(nil, models.NormalizeAddress(req.Token), models.NormalizeAddress(req.To), req.Amount)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyTransferComplete),
	})
}
