package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ridesync/internal/domain/entities"
	"ridesync/internal/ledger"
)

// writeError maps ledger errors onto HTTP status codes. The HTTP client
// maps them back, so the pairs here are part of the wire contract.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	resp := ErrorResponse{Error: err.Error()}

	switch {
	case errors.Is(err, ledger.ErrTransactionReverted):
		status = http.StatusConflict
		resp.Reason = ledger.RevertReason(err)
	case errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrTransientRead):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusGatewayTimeout
	}

	c.JSON(status, resp)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}

// rideIDParam parses the :id path segment.
func rideIDParam(c *gin.Context) (entities.RideID, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, errors.New("invalid ride id"))
		return 0, false
	}
	return entities.RideID(id), true
}
