// Package router defines how HTTP routes are registered for the API.
package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/raffle-number-reservation/internal/handler"
)

// RegisterRoutes registers routes that do not belong to the raffle API on
// the provided Echo instance.  Currently it exposes only a health check,
// used by load balancers and monitoring systems.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
}

// RegisterAPI registers the raffle endpoints.  The cache middleware applies
// to the public read path only – the admin dashboard re-fetches on every
// change event and must always see fresh state.  The limiter guards the
// three write endpoints.
func RegisterAPI(e *echo.Echo, h *handler.NumbersHandler, cache echo.MiddlewareFunc, limit echo.MiddlewareFunc) {
    api := e.Group("/api")
    api.GET("/numbers", h.GetNumbers, cache)
    api.GET("/populate", h.Populate)
    api.POST("/reserve-numbers", h.ReserveNumbers, limit)
    api.POST("/confirm-payment", h.ConfirmPayment, limit)
    api.POST("/clear-selection", h.ClearSelection, limit)

    admin := api.Group("/admin")
    admin.GET("/numbers", h.GetNumbers)
    admin.GET("/subscribe", h.Subscribe)
}
