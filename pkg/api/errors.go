package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kwforge/pipeline/pkg/errtax"
	"github.com/kwforge/pipeline/pkg/store"
)

// respondError maps err to an HTTP status and writes the ErrorResponse
// envelope. errtax.Error carries its own Kind, which maps directly to a
// status; anything else (store.ErrNotFound, plain validation errors) is
// matched by sentinel or falls back to 500.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}

	var taxErr *errtax.Error
	if errors.As(err, &taxErr) {
		c.JSON(statusForKind(taxErr.Kind), ErrorResponse{Error: taxErr.Error(), Kind: string(taxErr.Kind)})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

func statusForKind(k errtax.Kind) int {
	switch k {
	case errtax.KindInputValidation:
		return http.StatusBadRequest
	case errtax.KindQuotaExceeded, errtax.KindBudgetExceeded:
		return http.StatusPaymentRequired
	case errtax.KindCircuitOpen:
		return http.StatusServiceUnavailable
	case errtax.KindTimeout:
		return http.StatusGatewayTimeout
	case errtax.KindCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
