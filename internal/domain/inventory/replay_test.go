package inventory_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	"github.com/jhoicas/inventario-seriales/internal/domain/inventory"
)

func mov(seq int64, mt entity.MovementType, from, to entity.UnitStatus, loc string) *entity.MovementEntry {
	return &entity.MovementEntry{
		ID: "m", UnitID: "u-1", Type: mt, Quantity: 1,
		FromStatus: from, ToStatus: to, LocationID: loc, Sequence: seq,
	}
}

func TestReplay_ReconstruyeEstadoYUbicacion(t *testing.T) {
	history := []*entity.MovementEntry{
		mov(1, entity.MovementTypeReceive, "", entity.UnitStatusAvailable, "W1"),
		mov(2, entity.MovementTypeTransferOut, entity.UnitStatusAvailable, entity.UnitStatusInTransit, "W1"),
		mov(3, entity.MovementTypeTransferIn, entity.UnitStatusInTransit, entity.UnitStatusAvailable, "W2"),
		mov(4, entity.MovementTypeWithdraw, entity.UnitStatusAvailable, entity.UnitStatusSold, "W2"),
		mov(5, entity.MovementTypeClaim, entity.UnitStatusSold, entity.UnitStatusClaimed, "W2"),
		mov(6, entity.MovementTypeReturn, entity.UnitStatusClaimed, entity.UnitStatusAvailable, "W2"),
	}
	st, err := inventory.Replay(inventory.Slice(history))
	require.NoError(t, err)
	assert.Equal(t, entity.UnitStatusAvailable, st.Status)
	assert.Equal(t, "W2", st.LocationID)
	assert.Equal(t, 6, st.Entries)
	assert.EqualValues(t, 6, st.LastSequence)
}

func TestReplay_RechazaHistoriasInvalidas(t *testing.T) {
	cases := []struct {
		name    string
		history []*entity.MovementEntry
	}{
		{
			name: "no inicia con RECEIVE",
			history: []*entity.MovementEntry{
				mov(1, entity.MovementTypeWithdraw, entity.UnitStatusAvailable, entity.UnitStatusSold, "W1"),
			},
		},
		{
			name: "doble venta",
			history: []*entity.MovementEntry{
				mov(1, entity.MovementTypeReceive, "", entity.UnitStatusAvailable, "W1"),
				mov(2, entity.MovementTypeWithdraw, entity.UnitStatusAvailable, entity.UnitStatusSold, "W1"),
				mov(3, entity.MovementTypeWithdraw, entity.UnitStatusSold, entity.UnitStatusSold, "W1"),
			},
		},
		{
			name: "origen no coincide",
			history: []*entity.MovementEntry{
				mov(1, entity.MovementTypeReceive, "", entity.UnitStatusAvailable, "W1"),
				mov(2, entity.MovementTypeClaim, entity.UnitStatusSold, entity.UnitStatusClaimed, "W1"),
			},
		},
		{
			name: "secuencia repetida",
			history: []*entity.MovementEntry{
				mov(1, entity.MovementTypeReceive, "", entity.UnitStatusAvailable, "W1"),
				mov(1, entity.MovementTypeReserve, entity.UnitStatusAvailable, entity.UnitStatusReserved, "W1"),
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := inventory.Replay(inventory.Slice(tc.history))
			assert.ErrorIs(t, err, domain.ErrLedgerInconsistent)
		})
	}
}

func TestReplay_HistoriaVacia(t *testing.T) {
	_, err := inventory.Replay(inventory.Slice(nil))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReplay_PropagaErrorDeLectura(t *testing.T) {
	boom := errors.New("conexión cerrada")
	seq := func(yield func(*entity.MovementEntry, error) bool) {
		if !yield(mov(1, entity.MovementTypeReceive, "", entity.UnitStatusAvailable, "W1"), nil) {
			return
		}
		yield(nil, boom)
	}
	_, err := inventory.Replay(seq)
	assert.ErrorIs(t, err, boom)
}
