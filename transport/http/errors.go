package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/vaultgate/core"
)

// statusFor maps an error kind to its HTTP status and a short kind label
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, core.ErrTxTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, core.ErrDecodeFailure):
		return http.StatusBadGateway, "decode"
	case errors.Is(err, core.ErrRemoteFailure):
		return http.StatusBadGateway, "remote"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(c *gin.Context, err error) {
	status, kind := statusFor(err)
	_ = c.Error(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Internal error"
	}
	c.JSON(status, gin.H{"error": msg, "kind": kind})
}
