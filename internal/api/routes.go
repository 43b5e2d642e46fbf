// Package api is the ledger node's HTTP gateway. Reads are public;
// transactions carry the sending account in the Authorization header.
package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ridesync/internal/api/handlers"
	"ridesync/internal/api/middleware"
	"ridesync/internal/chain"
	"ridesync/pkg/logger"
)

type Router struct {
	contract      *chain.Contract
	rideHandler   *handlers.RideHandler
	driverHandler *handlers.DriverHandler
	eventHandler  *handlers.EventHandler
	origins       []string
	log           logrus.FieldLogger
}

func NewRouter(contract *chain.Contract, log logrus.FieldLogger) *Router {
	return &Router{
		contract:      contract,
		rideHandler:   handlers.NewRideHandler(contract),
		driverHandler: handlers.NewDriverHandler(contract),
		eventHandler:  handlers.NewEventHandler(contract.Events(), log),
		log:           logger.Component(log, "gateway"),
	}
}

// Engine builds a gin engine with the gateway's middleware and routes.
// WithAllowedOrigins limits cross-origin browser access to origins. Empty or
// "*" allows any origin, which is the default.
func (r *Router) WithAllowedOrigins(origins []string) *Router {
	r.origins = origins
	return r
}

func (r *Router) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), cors.New(corsConfig(r.origins)), middleware.RequestID(), middleware.RequestLogger(r.log))
	r.Setup(engine)
	return engine
}

func (r *Router) Setup(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		rides, err := r.contract.RideCount(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, handlers.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, handlers.HealthResponse{Status: "ok", Block: r.contract.BlockNumber(), Rides: rides})
	})

	// Reads
	engine.GET("/rides", r.rideHandler.ActiveRequests)
	engine.GET("/rides/:id", r.rideHandler.GetRide)
	engine.GET("/accounts/:address/rides", r.rideHandler.AccountRides)
	engine.GET("/drivers", r.driverHandler.AvailableDrivers)
	engine.GET("/drivers/:address", r.driverHandler.GetDriver)
	engine.GET("/events", r.eventHandler.Stream)

	// Transactions
	tx := engine.Group("/")
	tx.Use(middleware.AccountAuth())
	{
		tx.POST("/rides", r.rideHandler.RequestRide)
		tx.POST("/rides/:id/accept", r.rideHandler.Accept)
		tx.POST("/rides/:id/decline", r.rideHandler.Decline)
		tx.POST("/rides/:id/start", r.rideHandler.Start)
		tx.POST("/rides/:id/complete", r.rideHandler.Complete)
		tx.POST("/rides/:id/rating", r.rideHandler.Rate)

		tx.POST("/drivers", r.driverHandler.Register)
		tx.PATCH("/drivers/availability", r.driverHandler.SetAvailability)
		tx.PATCH("/drivers/location", r.driverHandler.UpdateLocation)
	}
}

// corsConfig lets browser clients send transactions: they need the
// Authorization header and read back the request ID.
func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AddAllowHeaders("Authorization", "X-Request-ID")
	cfg.AddExposeHeaders("X-Request-ID")
	return cfg
}
