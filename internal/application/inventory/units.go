package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	inv "github.com/jhoicas/inventario-seriales/internal/domain/inventory"
	"github.com/jhoicas/inventario-seriales/internal/domain/repository"
	"github.com/jhoicas/inventario-seriales/pkg/logger"
)

// maxReceiveQuantity tope de unidades por recepción con seriales generados.
const maxReceiveQuantity = 1000

// UnitService registro de unidades: recepción, consulta, venta, entrega, baja,
// historial y reconciliación contra el libro mayor.
type UnitService struct {
	engine  *Engine
	repos   Repos
	catalog Catalog
	log     *logger.Logger
}

// NewUnitService construye el servicio. repos son los repositorios fuera de transacción.
func NewUnitService(engine *Engine, repos Repos, catalog Catalog, log *logger.Logger) *UnitService {
	if log == nil {
		log = logger.Nop()
	}
	return &UnitService{engine: engine, repos: repos, catalog: catalog, log: log.Component("units")}
}

// ReceiveInput entrada para registrar unidades recibidas. Si SerialNumbers está vacío
// se generan Quantity seriales a partir del SKU del producto.
type ReceiveInput struct {
	ProductID       string
	LocationID      string
	SerialNumbers   []string
	Quantity        int
	UnitCost        decimal.Decimal
	ReferenceType   entity.ReferenceType // PURCHASE por defecto
	ReferenceNumber string
	Notes           string
	PerformedBy     string
}

// Receive crea las unidades en estado AVAILABLE con una entrada RECEIVE cada una.
// Todo o nada: un serial duplicado (en la solicitud o en el registro) rechaza la recepción.
func (s *UnitService) Receive(ctx context.Context, in ReceiveInput) ([]*entity.Unit, error) {
	if in.ProductID == "" || in.LocationID == "" {
		return nil, fmt.Errorf("producto y bodega son obligatorios: %w", domain.ErrInvalidInput)
	}
	if in.UnitCost.IsNegative() {
		return nil, fmt.Errorf("costo unitario negativo: %w", domain.ErrInvalidInput)
	}
	if in.ReferenceType == "" {
		in.ReferenceType = entity.ReferenceTypePurchase
	}
	if !in.ReferenceType.Valid() {
		return nil, fmt.Errorf("tipo de referencia %q: %w", in.ReferenceType, domain.ErrInvalidInput)
	}

	product, err := s.catalog.Products.GetByID(ctx, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, fmt.Errorf("producto %s: %w", in.ProductID, domain.ErrNotFound)
	}
	wh, err := s.catalog.Warehouses.GetByID(ctx, in.LocationID)
	if err != nil {
		return nil, fmt.Errorf("get warehouse: %w", err)
	}
	if wh == nil {
		return nil, fmt.Errorf("bodega %s: %w", in.LocationID, domain.ErrNotFound)
	}
	if !wh.IsActive {
		return nil, fmt.Errorf("bodega %s inactiva: %w", in.LocationID, domain.ErrInvalidInput)
	}

	serials, err := s.receiveSerials(ctx, in, product.SKU)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(serials))
	for i, sn := range serials {
		keys[i] = "serial:" + sn
	}
	var units []*entity.Unit
	err = s.engine.RunKeys(ctx, keys, func(w *Work) error {
		units = units[:0]
		ref := Ref{Type: in.ReferenceType, Number: in.ReferenceNumber, Notes: in.Notes, PerformedBy: in.PerformedBy}
		for _, sn := range serials {
			u := &entity.Unit{
				ID:           uuid.New().String(),
				SerialNumber: sn,
				ProductID:    in.ProductID,
				LocationID:   in.LocationID,
				UnitCost:     in.UnitCost,
			}
			if err := w.Receive(u, ref); err != nil {
				return err
			}
			units = append(units, u.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("product_id", in.ProductID).Str("location_id", in.LocationID).
		Int("units", len(units)).Msg("unidades recibidas")
	return units, nil
}

func (s *UnitService) receiveSerials(ctx context.Context, in ReceiveInput, sku string) ([]string, error) {
	if len(in.SerialNumbers) == 0 {
		if in.Quantity <= 0 || in.Quantity > maxReceiveQuantity {
			return nil, fmt.Errorf("cantidad a generar debe estar entre 1 y %d: %w", maxReceiveQuantity, domain.ErrInvalidInput)
		}
		now := s.engine.Now()
		out := make([]string, in.Quantity)
		for i := range out {
			out[i] = inv.GenerateSerial(sku, now)
		}
		return out, nil
	}

	seen := make(map[string]bool, len(in.SerialNumbers))
	var repeated []string
	out := make([]string, 0, len(in.SerialNumbers))
	for _, raw := range in.SerialNumbers {
		sn := inv.NormalizeSerial(raw)
		if sn == "" {
			return nil, fmt.Errorf("número de serie vacío: %w", domain.ErrInvalidInput)
		}
		if seen[sn] {
			repeated = append(repeated, sn)
			continue
		}
		seen[sn] = true
		out = append(out, sn)
	}
	if len(repeated) > 0 {
		return nil, fmt.Errorf("seriales repetidos en la solicitud: %s: %w", strings.Join(repeated, ", "), domain.ErrDuplicate)
	}
	var existing []string
	for _, sn := range out {
		u, err := s.repos.Units.GetBySerial(ctx, sn)
		if err != nil {
			return nil, fmt.Errorf("get unit by serial: %w", err)
		}
		if u != nil {
			existing = append(existing, sn)
		}
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("seriales ya registrados: %s: %w", strings.Join(existing, ", "), domain.ErrDuplicate)
	}
	return out, nil
}

// Get busca una unidad por id o por número de serie.
func (s *UnitService) Get(ctx context.Context, idOrSerial string) (*entity.Unit, error) {
	if strings.TrimSpace(idOrSerial) == "" {
		return nil, domain.ErrInvalidInput
	}
	if _, err := uuid.Parse(idOrSerial); err == nil {
		u, err := s.repos.Units.GetByID(ctx, idOrSerial)
		if err != nil {
			return nil, fmt.Errorf("get unit: %w", err)
		}
		if u != nil {
			return u, nil
		}
	}
	sn := inv.NormalizeSerial(idOrSerial)
	u, err := s.repos.Units.GetBySerial(ctx, sn)
	if err != nil {
		return nil, fmt.Errorf("get unit by serial: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("unidad %s: %w", sn, domain.ErrNotFound)
	}
	return u, nil
}

// List lista unidades por producto/bodega/estado, las más antiguas primero.
func (s *UnitService) List(ctx context.Context, f repository.UnitFilter) ([]*entity.Unit, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("estado %q: %w", f.Status, domain.ErrInvalidInput)
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repos.Units.List(ctx, f)
}

// resolved seriales normalizados de una solicitud por lote y su id de unidad.
type resolved struct {
	serials  []string          // encontrados, en el orden de la solicitud
	ids      map[string]string // serial -> id
	holds    map[string]string // id -> reserva, solo unidades RESERVED
	notFound []string
}

func (r resolved) unitIDs() []string {
	out := make([]string, 0, len(r.serials))
	for _, sn := range r.serials {
		out = append(out, r.ids[sn])
	}
	return out
}

// resolveSerials normaliza, elimina repetidos y resuelve cada serial a su unidad.
func resolveSerials(ctx context.Context, units repository.UnitRepository, raw []string) (resolved, error) {
	r := resolved{ids: make(map[string]string, len(raw))}
	seen := make(map[string]bool, len(raw))
	for _, s := range raw {
		sn := inv.NormalizeSerial(s)
		if sn == "" || seen[sn] {
			continue
		}
		seen[sn] = true
		u, err := units.GetBySerial(ctx, sn)
		if err != nil {
			return r, fmt.Errorf("get unit by serial: %w", err)
		}
		if u == nil {
			r.notFound = append(r.notFound, sn)
			continue
		}
		r.serials = append(r.serials, sn)
		r.ids[sn] = u.ID
		if u.Status == entity.UnitStatusReserved && u.ExternalReference != "" {
			if r.holds == nil {
				r.holds = make(map[string]string)
			}
			r.holds[u.ID] = u.ExternalReference
		}
	}
	if len(r.serials) == 0 && len(r.notFound) == 0 {
		return r, fmt.Errorf("sin números de serie: %w", domain.ErrInvalidInput)
	}
	return r, nil
}

// single ejecuta una transición sobre una sola unidad identificada por serial.
func (s *UnitService) single(ctx context.Context, serial string, action inv.Action, p inv.Params, ref Ref) (*entity.Unit, error) {
	u, err := s.Get(ctx, serial)
	if err != nil {
		return nil, err
	}
	var out *entity.Unit
	err = s.engine.Run(ctx, []string{u.ID}, func(w *Work) error {
		var err error
		out, err = w.Apply(u.ID, action, p, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Deliver marca una unidad vendida como entregada al cliente.
func (s *UnitService) Deliver(ctx context.Context, serial, counterpartyRef, performedBy string) (*entity.Unit, error) {
	u, err := s.single(ctx, serial, inv.ActionDeliver,
		inv.Params{CounterpartyRef: counterpartyRef},
		Ref{Type: entity.ReferenceTypeSale, PerformedBy: performedBy})
	if err != nil {
		return nil, err
	}
	s.log.Unit(u.SerialNumber).Info().Str("performed_by", performedBy).Msg("unidad entregada")
	return u, nil
}

// Damage baja administrativa desde cualquier estado; requiere motivo.
// Si la unidad está CLAIMED su reclamo abierto se cierra como WRITE_OFF en la misma transacción.
func (s *UnitService) Damage(ctx context.Context, serial, reason, performedBy string) (*entity.Unit, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("la baja requiere motivo: %w", domain.ErrInvalidInput)
	}
	u, err := s.Get(ctx, serial)
	if err != nil {
		return nil, err
	}
	var (
		out    *entity.Unit
		closed *entity.Claim
	)
	err = s.engine.Run(ctx, []string{u.ID}, func(w *Work) error {
		closed = nil
		var claim *entity.Claim
		if cur := w.Unit(u.ID); cur != nil && cur.Status == entity.UnitStatusClaimed {
			c, err := w.Repos.Claims.GetOpenByUnit(ctx, u.ID)
			if err != nil {
				return fmt.Errorf("get open claim: %w", err)
			}
			claim = c
		}
		var err error
		out, err = w.Apply(u.ID, inv.ActionDamage,
			inv.Params{Reason: reason},
			Ref{Type: entity.ReferenceTypeAdjustment, Notes: reason, PerformedBy: performedBy})
		if err != nil || claim == nil {
			return err
		}
		now := w.Now()
		res := entity.ClaimResolutionWriteOff
		claim.Resolution = &res
		claim.Status = entity.ClaimStatusResolved
		claim.Notes = reason
		claim.ResolvedAt = &now
		if performedBy != "" {
			claim.ProcessedBy = performedBy
		}
		if err := w.Repos.Claims.Update(ctx, claim); err != nil {
			return fmt.Errorf("update claim: %w", err)
		}
		closed = claim
		return nil
	})
	if err != nil {
		return nil, err
	}
	ev := s.log.Unit(out.SerialNumber).Warn().Str("reason", reason).Str("performed_by", performedBy)
	if closed != nil {
		ev = ev.Str("claim_number", closed.ClaimNumber)
	}
	ev.Msg("unidad dada de baja")
	return out, nil
}

// asBatch extrae el *domain.BatchError de err, si lo hay.
func asBatch(err error) *domain.BatchError {
	var be *domain.BatchError
	if errors.As(err, &be) {
		return be
	}
	return nil
}
