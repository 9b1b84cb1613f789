package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Units        *inventory.UnitService
	Reservations *inventory.ReservationManager
	Transfers    *inventory.TransferCoordinator
	Claims       *inventory.ClaimProcessor
	Stock        *inventory.StockQueryService
	JWTSecret    string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Todas las rutas requieren Bearer Token; el operador del token queda en el libro mayor.
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	staff := RequireRole(RoleAdmin, RoleBodeguero)
	admin := RequireRole(RoleAdmin)

	// Units
	units := protected.Group("/units")
	unitHandler := NewUnitHandler(deps.Units)
	units.Post("/receive", staff, unitHandler.Receive)
	units.Get("/", unitHandler.List)
	units.Get("/:serial", unitHandler.Get)
	units.Get("/:serial/history", unitHandler.History)
	units.Post("/:serial/deliver", unitHandler.Deliver)
	units.Post("/:serial/damage", admin, unitHandler.Damage)
	units.Post("/:serial/reconcile", admin, unitHandler.Reconcile)

	// Stock
	stock := protected.Group("/stock")
	stockHandler := NewStockHandler(deps.Stock)
	stock.Get("/availability", stockHandler.Availability)
	stock.Get("/locations/:id", stockHandler.ByLocation)

	// Sales y reservas
	salesHandler := NewSalesHandler(deps.Units, deps.Reservations)
	protected.Post("/sales/withdraw", salesHandler.Withdraw)
	reservations := protected.Group("/reservations")
	reservations.Post("/", salesHandler.Reserve)
	reservations.Get("/:id", salesHandler.GetReservation)
	reservations.Delete("/:id", salesHandler.Release)

	// Transfers
	transfers := protected.Group("/transfers")
	transferHandler := NewTransferHandler(deps.Transfers)
	transfers.Post("/", staff, transferHandler.Initiate)
	transfers.Get("/stuck", staff, transferHandler.Stuck)
	transfers.Get("/:id", transferHandler.Get)
	transfers.Post("/:id/approve", admin, transferHandler.Approve)
	transfers.Post("/:id/dispatch", staff, transferHandler.Dispatch)
	transfers.Post("/:id/confirm", staff, transferHandler.Confirm)
	transfers.Post("/:id/cancel", staff, transferHandler.Cancel)
	transfers.Post("/:id/exclude", staff, transferHandler.Exclude)

	// Claims
	claims := protected.Group("/claims")
	claimHandler := NewClaimHandler(deps.Claims)
	claims.Post("/", claimHandler.File)
	claims.Get("/:id", claimHandler.Get)
	claims.Post("/:id/resolve", staff, claimHandler.Resolve)
}
