package inventory

import (
	"fmt"
	"iter"

	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
)

// ReplayState estado de una unidad reconstruido desde su historial.
type ReplayState struct {
	Status       entity.UnitStatus
	LocationID   string
	Entries      int
	LastSequence int64
}

// Replay recorre la historia de una unidad en orden de commit y reconstruye su estado y
// ubicación. Cada paso se valida contra la máquina de estados: el primer movimiento debe
// ser RECEIVE y el estado origen de cada movimiento debe coincidir con el destino del anterior.
func Replay(history iter.Seq2[*entity.MovementEntry, error]) (ReplayState, error) {
	var st ReplayState
	for m, err := range history {
		if err != nil {
			return st, err
		}
		if st.Entries == 0 {
			if m.Type != entity.MovementTypeReceive || m.ToStatus != entity.UnitStatusAvailable {
				return st, fmt.Errorf("movimiento %s: la historia debe iniciar con RECEIVE: %w", m.ID, domain.ErrLedgerInconsistent)
			}
		} else {
			if m.Sequence <= st.LastSequence {
				return st, fmt.Errorf("movimiento %s: secuencia %d no creciente: %w", m.ID, m.Sequence, domain.ErrLedgerInconsistent)
			}
			if m.FromStatus != st.Status {
				return st, fmt.Errorf("movimiento %s: origen %s, estado reconstruido %s: %w",
					m.ID, m.FromStatus, st.Status, domain.ErrLedgerInconsistent)
			}
			if !MovementAllowed(m.FromStatus, m.ToStatus, m.Type) {
				return st, fmt.Errorf("movimiento %s: %s→%s (%s) no permitido: %w",
					m.ID, m.FromStatus, m.ToStatus, m.Type, domain.ErrLedgerInconsistent)
			}
		}
		st.Status = m.ToStatus
		st.LocationID = m.LocationID
		st.LastSequence = m.Sequence
		st.Entries++
	}
	if st.Entries == 0 {
		return st, fmt.Errorf("historia vacía: %w", domain.ErrNotFound)
	}
	return st, nil
}

// Slice adapta un slice de movimientos a la secuencia que consume Replay.
func Slice(entries []*entity.MovementEntry) iter.Seq2[*entity.MovementEntry, error] {
	return func(yield func(*entity.MovementEntry, error) bool) {
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}
