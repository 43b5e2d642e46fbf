package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridesync/internal/api/middleware"
	"ridesync/internal/chain"
	"ridesync/internal/domain/entities"
	"ridesync/internal/ledger"
)

type RideHandler struct {
	contract *chain.Contract
}

func NewRideHandler(contract *chain.Contract) *RideHandler {
	return &RideHandler{contract: contract}
}

// RequestRide handles POST /rides
func (h *RideHandler) RequestRide(c *gin.Context) {
	var req RequestRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	receipt, err := h.contract.RequestRide(c.Request.Context(), middleware.GetAccount(c), req.Origin, req.Destination, req.Fare)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

// GetRide handles GET /rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	id, ok := rideIDParam(c)
	if !ok {
		return
	}

	ride, err := h.contract.GetRide(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ride)
}

// ActiveRequests handles GET /rides and lists rides still in Requested.
func (h *RideHandler) ActiveRequests(c *gin.Context) {
	rides, err := h.contract.ActiveRequests(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if rides == nil {
		rides = []*entities.Ride{}
	}
	c.JSON(http.StatusOK, rides)
}

// AccountRides handles GET /accounts/:address/rides
func (h *RideHandler) AccountRides(c *gin.Context) {
	address := c.Param("address")
	ids, err := h.contract.AccountRides(c.Request.Context(), address)
	if err != nil {
		writeError(c, err)
		return
	}
	if ids == nil {
		ids = []entities.RideID{}
	}
	c.JSON(http.StatusOK, AccountRidesResponse{Account: address, Rides: ids})
}

// Accept handles POST /rides/:id/accept
func (h *RideHandler) Accept(c *gin.Context) {
	h.transition(c, h.contract.AcceptRide)
}

// Decline handles POST /rides/:id/decline
func (h *RideHandler) Decline(c *gin.Context) {
	h.transition(c, h.contract.DeclineRide)
}

// Start handles POST /rides/:id/start
func (h *RideHandler) Start(c *gin.Context) {
	h.transition(c, h.contract.StartRide)
}

// Complete handles POST /rides/:id/complete
func (h *RideHandler) Complete(c *gin.Context) {
	h.transition(c, h.contract.CompleteRide)
}

func (h *RideHandler) transition(c *gin.Context, submit func(context.Context, string, entities.RideID) (*ledger.Receipt, error)) {
	id, ok := rideIDParam(c)
	if !ok {
		return
	}

	receipt, err := submit(c.Request.Context(), middleware.GetAccount(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// Rate handles POST /rides/:id/rating
func (h *RideHandler) Rate(c *gin.Context) {
	id, ok := rideIDParam(c)
	if !ok {
		return
	}
	var req RateDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	receipt, err := h.contract.RateDriver(c.Request.Context(), middleware.GetAccount(c), id, req.Rating)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}
