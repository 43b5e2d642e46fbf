package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridesync/internal/api/middleware"
	"ridesync/internal/chain"
	"ridesync/internal/domain/entities"
)

// DriverHandler groups the driver registry endpoints: registration,
// availability, and advisory location.
type DriverHandler struct {
	contract *chain.Contract
}

func NewDriverHandler(contract *chain.Contract) *DriverHandler {
	return &DriverHandler{contract: contract}
}

// Register handles POST /drivers
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	receipt, err := h.contract.RegisterDriver(c.Request.Context(), middleware.GetAccount(c), req.Name, req.VehicleInfo, req.LicenseNumber)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

// GetDriver handles GET /drivers/:address
func (h *DriverHandler) GetDriver(c *gin.Context) {
	driver, err := h.contract.GetDriver(c.Request.Context(), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, driver)
}

// AvailableDrivers handles GET /drivers
func (h *DriverHandler) AvailableDrivers(c *gin.Context) {
	drivers, err := h.contract.AvailableDrivers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if drivers == nil {
		drivers = []*entities.Driver{}
	}
	c.JSON(http.StatusOK, drivers)
}

// SetAvailability handles PATCH /drivers/availability
func (h *DriverHandler) SetAvailability(c *gin.Context) {
	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	receipt, err := h.contract.SetDriverAvailability(c.Request.Context(), middleware.GetAccount(c), *req.Available)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// UpdateLocation handles PATCH /drivers/location. Coordinates travel as
// degrees and are stored as micro-degrees.
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	lat, lng := entities.NewLocation(*req.Lat, *req.Lng).Micro()
	receipt, err := h.contract.UpdateDriverLocation(c.Request.Context(), middleware.GetAccount(c), lat, lng)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}
