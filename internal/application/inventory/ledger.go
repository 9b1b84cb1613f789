package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	inv "github.com/jhoicas/inventario-seriales/internal/domain/inventory"
)

// History devuelve los movimientos de la unidad en orden de commit.
func (s *UnitService) History(ctx context.Context, serial string) (*entity.Unit, []*entity.MovementEntry, error) {
	u, err := s.Get(ctx, serial)
	if err != nil {
		return nil, nil, err
	}
	var out []*entity.MovementEntry
	for m, err := range s.repos.Movements.History(ctx, u.ID) {
		if err != nil {
			return nil, nil, fmt.Errorf("read history: %w", err)
		}
		out = append(out, m)
	}
	return u, out, nil
}

// ReconcileResult resultado de comparar el registro con el libro mayor.
type ReconcileResult struct {
	Unit             *entity.Unit
	Repaired         bool
	PreviousStatus   entity.UnitStatus
	PreviousLocation string
}

// Reconcile reconstruye estado y ubicación desde el libro mayor y, si el registro
// difiere, lo reescribe (el libro mayor manda). Un libro mayor inválido no se corrige.
func (s *UnitService) Reconcile(ctx context.Context, serial string) (*ReconcileResult, error) {
	u, err := s.Get(ctx, serial)
	if err != nil {
		return nil, err
	}
	var res *ReconcileResult
	err = s.engine.Run(ctx, []string{u.ID}, func(w *Work) error {
		cur := w.Unit(u.ID)
		st, err := inv.Replay(w.Repos.Movements.History(ctx, u.ID))
		if err != nil {
			return fmt.Errorf("replay %s: %w", cur.SerialNumber, err)
		}
		res = &ReconcileResult{Unit: cur, PreviousStatus: cur.Status, PreviousLocation: cur.LocationID}
		if cur.Status == st.Status && cur.LocationID == st.LocationID {
			return nil
		}
		cur.Status = st.Status
		cur.LocationID = st.LocationID
		if st.Status == entity.UnitStatusAvailable {
			cur.CounterpartyRef = ""
			cur.ExternalReference = ""
			cur.SoldAt = nil
		}
		if err := w.Overwrite(cur); err != nil {
			return err
		}
		res.Unit = w.Unit(u.ID)
		res.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Repaired {
		s.log.Warn().Str("serial", res.Unit.SerialNumber).
			Str("from_status", string(res.PreviousStatus)).Str("to_status", string(res.Unit.Status)).
			Str("from_location", res.PreviousLocation).Str("to_location", res.Unit.LocationID).
			Msg("registro reconciliado con el libro mayor")
	}
	return res, nil
}
