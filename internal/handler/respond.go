package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bazaar-chat/internal/transport/httpdto"
	bazaar_errors "bazaar-chat/pkg/errors"
)

// respondError maps sentinel errors to HTTP statuses. Unknown errors become
// 500 without leaking their message.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, bazaar_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("not found", "NOT_FOUND"))
	case errors.Is(err, bazaar_errors.ErrForbidden):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("forbidden", "FORBIDDEN"))
	case errors.Is(err, bazaar_errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
	case errors.Is(err, bazaar_errors.ErrInvalidState):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse("invalid state transition", "INVALID_STATE"))
	case errors.Is(err, bazaar_errors.ErrExpired):
		c.JSON(http.StatusGone, httpdto.NewErrorResponse("offer expired", "EXPIRED"))
	case errors.Is(err, bazaar_errors.ErrValidation):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid input", "VALIDATION_ERROR"))
	case errors.Is(err, bazaar_errors.ErrConflict), errors.Is(err, bazaar_errors.ErrAlreadyExists):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse("conflict", "CONFLICT"))
	default:
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal error", "INTERNAL_ERROR"))
	}
}
