package repository

import (
	"context"
	"iter"

	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
)

// MovementRepository define el puerto del libro mayor de movimientos. Solo se agrega;
// nunca se actualiza ni se elimina una entrada.
type MovementRepository interface {
	// Append asigna la siguiente secuencia de la unidad y persiste la entrada.
	Append(ctx context.Context, entry *entity.MovementEntry) error
	// History recorre los movimientos de una unidad en orden de secuencia.
	History(ctx context.Context, unitID string) iter.Seq2[*entity.MovementEntry, error]
}
