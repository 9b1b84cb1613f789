package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	inv "github.com/jhoicas/inventario-seriales/internal/domain/inventory"
	"github.com/jhoicas/inventario-seriales/pkg/logger"
)

// ClaimProcessor ciclo de vida de reclamos posventa sobre unidades vendidas.
type ClaimProcessor struct {
	engine *Engine
	units  *UnitService
	repos  Repos
	log    *logger.Logger
}

// NewClaimProcessor construye el procesador de reclamos.
func NewClaimProcessor(engine *Engine, units *UnitService, repos Repos, log *logger.Logger) *ClaimProcessor {
	if log == nil {
		log = logger.Nop()
	}
	return &ClaimProcessor{engine: engine, units: units, repos: repos, log: log.Component("claims")}
}

// FileClaimInput apertura de un reclamo.
type FileClaimInput struct {
	SerialNumber string
	ClaimType    entity.ClaimType
	Reason       string
	CustomerRef  string // por defecto el comprador registrado en la unidad
	ProcessedBy  string
}

// FileClaim SOLD -> CLAIMED. Una unidad tiene a lo sumo un reclamo abierto.
func (p *ClaimProcessor) FileClaim(ctx context.Context, in FileClaimInput) (*entity.Claim, error) {
	if !in.ClaimType.Valid() {
		return nil, fmt.Errorf("tipo de reclamo %q: %w", in.ClaimType, domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, fmt.Errorf("el reclamo requiere motivo: %w", domain.ErrInvalidInput)
	}
	u, err := p.units.Get(ctx, in.SerialNumber)
	if err != nil {
		return nil, err
	}

	var claim *entity.Claim
	err = p.engine.Run(ctx, []string{u.ID}, func(w *Work) error {
		open, err := w.Repos.Claims.GetOpenByUnit(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("get open claim: %w", err)
		}
		if open != nil {
			return fmt.Errorf("la unidad ya tiene el reclamo abierto %s: %w", open.ClaimNumber, domain.ErrDuplicate)
		}
		cur := w.Unit(u.ID)
		customer := in.CustomerRef
		if customer == "" {
			customer = cur.CounterpartyRef
		}
		now := w.Now()
		c := &entity.Claim{
			ID:          uuid.New().String(),
			ClaimNumber: inv.GenerateClaimNumber(now),
			UnitID:      u.ID,
			ClaimType:   in.ClaimType,
			Reason:      in.Reason,
			CustomerRef: customer,
			Status:      entity.ClaimStatusOpen,
			ProcessedBy: in.ProcessedBy,
			CreatedAt:   now,
		}
		if _, err := w.Apply(u.ID, inv.ActionFileClaim,
			inv.Params{ExternalReference: c.ID},
			Ref{Type: entity.ReferenceTypeClaim, Number: c.ClaimNumber, Notes: in.Reason, PerformedBy: in.ProcessedBy}); err != nil {
			return err
		}
		if err := w.Repos.Claims.Create(ctx, c); err != nil {
			return fmt.Errorf("create claim: %w", err)
		}
		claim = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Info().Str("claim_number", claim.ClaimNumber).Str("serial", u.SerialNumber).
		Str("claim_type", string(claim.ClaimType)).Msg("reclamo registrado")
	return claim.Clone(), nil
}

// ResolveClaimInput cierre de un reclamo.
type ResolveClaimInput struct {
	ClaimID     string
	Resolution  entity.ClaimResolution
	Notes       string
	ProcessedBy string
}

// resolutionAction acción y tipo de referencia del movimiento según la resolución.
func resolutionAction(r entity.ClaimResolution) (inv.Action, entity.ReferenceType) {
	switch r {
	case entity.ClaimResolutionExchange, entity.ClaimResolutionRefundRestock:
		return inv.ActionRestock, entity.ReferenceTypeReturn
	case entity.ClaimResolutionRepair:
		return inv.ActionRepair, entity.ReferenceTypeClaim
	default:
		return inv.ActionWriteOff, entity.ReferenceTypeAdjustment
	}
}

// ResolveClaim aplica el efecto de la resolución sobre la unidad:
// EXCHANGE/REFUND_RESTOCK la reintegran a stock en su bodega, REPAIR la devuelve al cliente
// (SOLD) y REJECT/WRITE_OFF la dan de baja. Resolver un reclamo ya resuelto falla.
func (p *ClaimProcessor) ResolveClaim(ctx context.Context, in ResolveClaimInput) (*entity.Unit, *entity.Claim, error) {
	if !in.Resolution.Valid() {
		return nil, nil, fmt.Errorf("resolución %q: %w", in.Resolution, domain.ErrInvalidInput)
	}
	c, err := p.Get(ctx, in.ClaimID)
	if err != nil {
		return nil, nil, err
	}
	action, refType := resolutionAction(in.Resolution)

	var (
		unit  *entity.Unit
		claim *entity.Claim
	)
	err = p.engine.Run(ctx, []string{c.UnitID}, func(w *Work) error {
		cur, err := w.Repos.Claims.GetByID(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("get claim: %w", err)
		}
		if cur == nil {
			return fmt.Errorf("reclamo %s: %w", c.ID, domain.ErrNotFound)
		}
		if cur.Status != entity.ClaimStatusOpen {
			return &domain.TransitionError{Subject: "claim", ID: cur.ClaimNumber, Action: "RESOLVE",
				Current: string(cur.Status), Expected: []string{string(entity.ClaimStatusOpen)}}
		}
		params := inv.Params{ExpectedReference: cur.ID, ExternalReference: cur.ID}
		if action == inv.ActionWriteOff {
			params.Reason = string(in.Resolution)
		}
		notes := string(in.Resolution)
		if in.Notes != "" {
			notes += ": " + in.Notes
		}
		unit, err = w.Apply(cur.UnitID, action, params,
			Ref{Type: refType, Number: cur.ClaimNumber, Notes: notes, PerformedBy: in.ProcessedBy})
		if err != nil {
			return err
		}
		now := w.Now()
		res := in.Resolution
		cur.Resolution = &res
		cur.Status = entity.ClaimStatusResolved
		cur.Notes = in.Notes
		cur.ResolvedAt = &now
		if in.ProcessedBy != "" {
			cur.ProcessedBy = in.ProcessedBy
		}
		if err := w.Repos.Claims.Update(ctx, cur); err != nil {
			return fmt.Errorf("update claim: %w", err)
		}
		claim = cur
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	p.log.Info().Str("claim_number", claim.ClaimNumber).Str("resolution", string(in.Resolution)).
		Str("serial", unit.SerialNumber).Str("status", string(unit.Status)).Msg("reclamo resuelto")
	return unit, claim.Clone(), nil
}

// Get devuelve el reclamo.
func (p *ClaimProcessor) Get(ctx context.Context, id string) (*entity.Claim, error) {
	c, err := p.repos.Claims.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("reclamo %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}
