package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-seriales/internal/application/dto"
	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	"github.com/jhoicas/inventario-seriales/internal/infrastructure/lock"
	"github.com/jhoicas/inventario-seriales/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/inventario-seriales/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/inventario-seriales/pkg/jwt"
)

const (
	productID = "00000000-0000-0000-0000-0000000000a1"
	w1        = "W1"
	w2        = "W2"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type apiFixture struct {
	app   *fiber.App
	clock *clock
	admin string
	clerk string
}

// newAPI levanta el router completo sobre el almacén en memoria.
func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	store.AddProduct(&entity.Product{ID: productID, SKU: "TV55", Name: "Televisor 55"})
	store.AddWarehouse(&entity.Warehouse{ID: w1, Name: "Principal", IsActive: true})
	store.AddWarehouse(&entity.Warehouse{ID: w2, Name: "Sucursal", IsActive: true})

	clk := &clock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	engine := inventory.NewEngine(store, lock.NewKeyedMutex(), nil, nil,
		inventory.EngineOptions{MaxRetries: 3, Now: clk.Now})
	repos := store.Repos()
	units := inventory.NewUnitService(engine, repos, store.Catalog(), nil)
	reservations := inventory.NewReservationManager(engine, repos, inventory.ReservationOptions{DefaultTTL: time.Minute, MaxTTL: time.Hour}, nil)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Units:        units,
		Reservations: reservations,
		Transfers:    inventory.NewTransferCoordinator(engine, repos, store.Catalog(), inventory.TransferOptions{}, nil),
		Claims:       inventory.NewClaimProcessor(engine, units, repos, nil),
		Stock:        inventory.NewStockQueryService(store.Levels(), repos.Units, reservations, clk.Now),
		JWTSecret:    testJWTSecret,
	})
	return &apiFixture{
		app:   app,
		clock: clk,
		admin: tokenForRole(t, "admin"),
		clerk: tokenForRole(t, "vendedor"),
	}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (f *apiFixture) receive(t *testing.T, warehouse string, serials ...string) {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/units/receive", f.admin, map[string]any{
		"product_id": productID, "warehouse_id": warehouse, "serial_numbers": serials, "unit_cost": "1500",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func (f *apiFixture) unitStatus(t *testing.T, serial string) dto.UnitResponse {
	t.Helper()
	resp := f.do(t, http.MethodGet, "/api/units/"+serial, f.clerk, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[dto.UnitResponse](t, resp)
}

// ── Unidades ────────────────────────────────────────────────────────────────

func TestReceive_CreatesAvailableUnits(t *testing.T) {
	f := newAPI(t)
	resp := f.do(t, http.MethodPost, "/api/units/receive", f.admin, map[string]any{
		"product_id": productID, "warehouse_id": w1, "serial_numbers": []string{"sn-1", "SN-2"}, "unit_cost": "1500",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	units := decode[[]dto.UnitResponse](t, resp)
	require.Len(t, units, 2)
	assert.Equal(t, "SN-1", units[0].SerialNumber, "el serial se normaliza a mayúsculas")
	assert.Equal(t, "AVAILABLE", units[0].Status)

	u := f.unitStatus(t, "SN-2")
	assert.Equal(t, w1, u.WarehouseID)
}

func TestReceive_ClerkForbidden(t *testing.T) {
	f := newAPI(t)
	resp := f.do(t, http.MethodPost, "/api/units/receive", f.clerk, map[string]any{
		"product_id": productID, "warehouse_id": w1, "serial_numbers": []string{"SN-1"},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "vendedor no recibe mercancía")
}

func TestReceive_DuplicateSerial(t *testing.T) {
	f := newAPI(t)
	f.receive(t, w1, "SN-1")

	resp := f.do(t, http.MethodPost, "/api/units/receive", f.admin, map[string]any{
		"product_id": productID, "warehouse_id": w1, "serial_numbers": []string{"SN-1"},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "DUPLICATE", decode[dto.ErrorResponse](t, resp).Code)
}

func TestReceive_ValidationFields(t *testing.T) {
	f := newAPI(t)
	resp := f.do(t, http.MethodPost, "/api/units/receive", f.admin, map[string]any{"warehouse_id": w1})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, "VALIDATION", body.Code)
	assert.Equal(t, "required", body.Fields["ProductID"])
}

func TestGetUnit_NotFound(t *testing.T) {
	f := newAPI(t)
	resp := f.do(t, http.MethodGet, "/api/units/NO-EXISTE", f.clerk, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnits_RequireToken(t *testing.T) {
	f := newAPI(t)
	resp := f.do(t, http.MethodGet, "/api/units", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHistory_ListsMovementsInOrder(t *testing.T) {
	f := newAPI(t)
	f.receive(t, w1, "SN-1")
	resp := f.do(t, http.MethodPost, "/api/sales/withdraw", f.clerk, map[string]any{
		"serial_numbers": []string{"SN-1"}, "reference_type": "SALE", "reference_number": "FV-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/units/SN-1/history", f.clerk, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	h := decode[dto.UnitHistoryResponse](t, resp)
	require.Len(t, h.Movements, 2)
	assert.Equal(t, "RECEIVE", h.Movements[0].Type)
	assert.Equal(t, "WITHDRAW", h.Movements[1].Type)
	assert.Equal(t, "SOLD", h.Unit.Status)
}

func TestDamage_AdminOnly(t *testing.T) {
	f := newAPI(t)
	f.receive(t, w1, "SN-1")

	resp := f.do(t, http.MethodPost, "/api/units/SN-1/damage", f.clerk, map[string]any{"reason": "golpe"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/units/SN-1/damage", f.admin, map[string]any{"reason": "golpe"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "DAMAGED", decode[dto.UnitResponse](t, resp).Status)
}

// ── Ventas ──────────────────────────────────────────────────────────────────

func TestWithdraw_AllOrNothing(t *testing.T) {
	f := newAPI(t)
	f.receive(t, w1, "SN-1")

	resp := f.do(t, http.MethodPost, "/api/sales/withdraw", f.clerk, map[string]any{
		"serial_numbers": []string{"SN-1", "SN-404"}, "reference_type": "POS", "reference_number": "POS-1",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode[dto.BatchResponse](t, resp)
	require.Len(t, body.Failed, 1)
	assert.Equal(t, "SN-404", body.Failed[0].SerialNumber)
	assert.Equal(t, "AVAILABLE", f.unitStatus(t, "SN-1").Status, "sin allow_partial no se aplica nada")
}

func TestWithdraw_PartialReturns207(t *testing.T) {
	f := newAPI(t)
	f.receive(t, w1, "SN-1", "SN-2")
	resp := f.do(t, http.MethodPost, "/api/units/SN-2/damage", f.admin, map[string]any{"reason": "pantalla rota"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/sales/withdraw", f.clerk, map[string]any{
		"serial_numbers": []string{"SN-1", "SN-2"}, "reference_type": "SALE", "reference_number": "FV-9",
		"allow_partial": true,
	})
	assert.Equal(t, http.StatusMultiStatus, resp.StatusCode)
	body := decode[dto.BatchResponse](t, resp)
	assert.Equal(t, []string{"SN-1"}, body.Succeeded)
	require.Len(t, body.Failed, 1)
	assert.Equal(t, "SN-2", body.Failed[0].SerialNumber)
	assert.NotEmpty(t, body.Failed[0].Reason)
}

func TestWithdraw_AlreadySoldConflict(t *testing.T) {
	f := newAPI(t)
	f.receive(t, w1, "SN-1")
	sale := map[string]any{"serial_numbers": []string{"SN-1"}, "reference_type": "SALE", "reference_number": "FV-1"}

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/sales/withdraw", f.clerk, sale).StatusCode)
	resp := f.do(t, http.MethodPost, "/api/sales/withdraw", f.clerk, sale)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// ── Reservas ────────────────────────────────────────────────────────────────

func TestReservation_ExpiredWithdrawReturns410(t *testing.T) {
	f := newAPI(t)
	f.receive(t, w1, "SN-1", "SN-2")

	resp := f.do(t, http.MethodPost, "/api/reservations", f.clerk, map[string]any{
		"product_id": productID, "warehouse_id": w1, "quantity": 2, "ttl_seconds": 60,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	r := decode[dto.ReservationResponse](t, resp)
	assert.Len(t, r.UnitIDs, 2)
	assert.Equal(t, "RESERVED", f.unitStatus(t, "SN-1").Status)

	f.clock.Advance(2 * time.Minute)
	resp = f.do(t, http.MethodPost, "/api/sales/withdraw", f.clerk, map[string]any{
		"serial_numbers": []string{"SN-1"}, "reference_type": "POS", "reference_number": "POS-7",
		"reservation_id": r.ID,
	})
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Equal(t, "AVAILABLE", f.unitStatus(t, "SN-1").Status, "la reserva vencida libera sus unidades")

	resp = f.do(t, http.MethodGet, "/api/reservations/"+r.ID, f.clerk, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "EXPIRED", decode[dto.ReservationResponse](t, resp).Status)
}

func TestReservation_InsufficientStock(t *testing.T) {
	f := newAPI(t)
	f.receive(t, w1, "SN-1")

	resp := f.do(t, http.MethodPost, "/api/reservations", f.clerk, map[string]any{
		"product_id": productID, "warehouse_id": w1, "quantity": 3,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, "INSUFFICIENT_STOCK", body.Code)
	assert.Equal(t, "el stock cambió, intente de nuevo", body.Message)
}

func TestReservation_DefaultsToOperatorWarehouse(t *testing.T) {
	f := newAPI(t)
	f.receive(t, w2, "SN-9")
	seller := tokenFor(t, pkgjwt.Operator{ID: "vend-2", Role: "vendedor", WarehouseID: w2})

	resp := f.do(t, http.MethodPost, "/api/reservations", seller, map[string]any{
		"product_id": productID, "quantity": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	r := decode[dto.ReservationResponse](t, resp)
	assert.Equal(t, w2, r.WarehouseID)

	resp = f.do(t, http.MethodPost, "/api/reservations", f.clerk, map[string]any{
		"product_id": productID, "quantity": 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "sin bodega en el token ni en la solicitud")
}

func TestReservation_ReleaseTwice(t *testing.T) {
	f := newAPI(t)
	f.receive(t, w1, "SN-1")
	resp := f.do(t, http.MethodPost, "/api/reservations", f.clerk, map[string]any{
		"product_id": productID, "warehouse_id": w1, "quantity": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[dto.ReservationResponse](t, resp).ID

	first := f.do(t, http.MethodDelete, "/api/reservations/"+id, f.clerk, nil)
	require.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, 1, decode[dto.ReleaseResponse](t, first).Released)

	second := f.do(t, http.MethodDelete, "/api/reservations/"+id, f.clerk, nil)
	require.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, 0, decode[dto.ReleaseResponse](t, second).Released, "liberar dos veces no falla")
}

// ── Traslados ───────────────────────────────────────────────────────────────

func TestTransfer_InitiateAndConfirm(t *testing.T) {
	f := newAPI(t)
	f.receive(t, w1, "SN-1", "SN-2")

	resp := f.do(t, http.MethodPost, "/api/transfers", f.admin, map[string]any{
		"source_warehouse_id": w1, "target_warehouse_id": w2, "serial_numbers": []string{"SN-1", "SN-2"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tr := decode[dto.TransferResponse](t, resp)
	assert.Equal(t, "IN_TRANSIT", tr.Status)
	assert.Equal(t, "IN_TRANSIT", f.unitStatus(t, "SN-1").Status)

	resp = f.do(t, http.MethodPost, "/api/transfers/"+tr.ID+"/confirm", f.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "COMPLETED", decode[dto.TransferResponse](t, resp).Status)

	u := f.unitStatus(t, "SN-2")
	assert.Equal(t, "AVAILABLE", u.Status)
	assert.Equal(t, w2, u.WarehouseID)
}

func TestTransfer_SameWarehouseRejected(t *testing.T) {
	f := newAPI(t)
	resp := f.do(t, http.MethodPost, "/api/transfers", f.admin, map[string]any{
		"source_warehouse_id": w1, "target_warehouse_id": w1, "serial_numbers": []string{"SN-1"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ── Reclamos ────────────────────────────────────────────────────────────────

func TestClaim_FileAndResolve(t *testing.T) {
	f := newAPI(t)
	f.receive(t, w1, "SN-1")
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/sales/withdraw", f.clerk, map[string]any{
		"serial_numbers": []string{"SN-1"}, "reference_type": "SALE", "reference_number": "FV-3",
		"counterparty_ref": "Cliente A",
	}).StatusCode)

	resp := f.do(t, http.MethodPost, "/api/claims", f.clerk, map[string]any{
		"serial_number": "SN-1", "claim_type": "RETURN", "reason": "no enciende",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	claim := decode[dto.ClaimResponse](t, resp)
	assert.Equal(t, "OPEN", claim.Status)
	assert.Equal(t, "CLAIMED", f.unitStatus(t, "SN-1").Status)

	resp = f.do(t, http.MethodPost, "/api/claims/"+claim.ID+"/resolve", f.admin, map[string]any{
		"resolution": "REFUND_RESTOCK",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[dto.ResolveClaimResponse](t, resp)
	assert.Equal(t, "RESOLVED", out.Claim.Status)
	assert.Equal(t, "AVAILABLE", out.Unit.Status)

	again := f.do(t, http.MethodPost, "/api/claims/"+claim.ID+"/resolve", f.admin, map[string]any{
		"resolution": "REJECT",
	})
	assert.Equal(t, http.StatusConflict, again.StatusCode, "un reclamo resuelto no se resuelve otra vez")
}

// ── Stock ───────────────────────────────────────────────────────────────────

func TestAvailability(t *testing.T) {
	f := newAPI(t)
	f.receive(t, w1, "SN-1", "SN-2", "SN-3")
	f.receive(t, w2, "SN-4")
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/sales/withdraw", f.clerk, map[string]any{
		"serial_numbers": []string{"SN-3"}, "reference_type": "SALE", "reference_number": "FV-5",
	}).StatusCode)

	resp := f.do(t, http.MethodGet, "/api/stock/availability?product_id="+productID+"&warehouse_id="+w1, f.clerk, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	a := decode[dto.AvailabilityResponse](t, resp)
	assert.Equal(t, 2, a.Available)
	assert.Equal(t, 1, a.SoldInPeriod)
	assert.Equal(t, 3, a.Total)

	resp = f.do(t, http.MethodGet, "/api/stock/availability?product_id="+productID, f.clerk, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, decode[dto.AvailabilityResponse](t, resp).Available, "sin bodega agrega todas")

	resp = f.do(t, http.MethodGet, "/api/stock/availability?product_id="+productID+"&from=ayer", f.clerk, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStockByLocation(t *testing.T) {
	f := newAPI(t)
	f.receive(t, w2, "SN-1", "SN-2")

	resp := f.do(t, http.MethodGet, "/api/stock/locations/"+w2, f.clerk, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	levels := decode[[]dto.StockLevelResponse](t, resp)
	require.Len(t, levels, 1)
	assert.Equal(t, 2, levels[0].Available)
}
