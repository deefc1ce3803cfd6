// internal/handlers/common.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/agentvault/av-backend/internal/models"
	"github.com/agentvault/av-backend/internal/services"
	"github.com/agentvault/av-backend/internal/utils"
)

// respondServiceError maps service sentinel errors onto HTTP statuses. The
// error taxonomy is: argument errors and failed delta checks are 400/422,
// state conflicts 409, missing entities 404, authorization 403.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrClassNotFound),
		errors.Is(err, services.ErrNoSuchLicense),
		errors.Is(err, services.ErrNotDeployed):
		utils.ErrorResponse(c, 404, "NOT_FOUND", err.Error(), nil)

	case errors.Is(err, services.ErrNotOwner),
		errors.Is(err, services.ErrNotOperator):
		utils.ForbiddenResponse(c, err.Error())

	case errors.Is(err, services.ErrAlreadyExists),
		errors.Is(err, services.ErrAlreadyDeployed),
		errors.Is(err, services.ErrAlreadyInitialized),
		errors.Is(err, services.ErrReentrantCall):
		utils.ConflictResponse(c, err.Error())

	case errors.Is(err, services.ErrInsufficientPayment),
		errors.Is(err, services.ErrInsufficientFee),
		errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrNotReceived),
		errors.Is(err, services.ErrNotTransferred),
		errors.Is(err, services.ErrCapacityExceeded):
		utils.ErrorResponse(c, 422, "UNPROCESSABLE", err.Error(), nil)

	case errors.Is(err, services.ErrForeignContext),
		errors.Is(err, services.ErrNotInitialized):
		utils.ErrorResponse(c, 503, "UNAVAILABLE", err.Error(), nil)

	case errors.Is(err, services.ErrZeroIssuer),
		errors.Is(err, services.ErrEmptyList),
		errors.Is(err, services.ErrZeroOwner),
		errors.Is(err, services.ErrZeroToken),
		errors.Is(err, services.ErrZeroRecipient),
		errors.Is(err, services.ErrZeroPrice),
		errors.Is(err, services.ErrTooManyPayments),
		errors.Is(err, services.ErrRoyaltyOverflow),
		errors.Is(err, services.ErrInvalidCapacity),
		errors.Is(err, services.ErrNameTooShort),
		errors.Is(err, services.ErrSymbolTooShort),
		errors.Is(err, services.ErrNotPayable),
		errors.Is(err, services.ErrInvalidArgument):
		utils.BadRequestResponse(c, err.Error(), nil)

	default:
		utils.InternalErrorResponse(c, err.Error())
	}
}

// callerWallet resolves the authenticated caller's account address.
func callerWallet(c *gin.Context) (models.Address, bool) {
	wallet, ok := utils.GetWalletFromContext(c)
	if !ok || wallet == "" {
		return models.ZeroAddress, false
	}
	return models.NormalizeAddress(wallet), true
}
