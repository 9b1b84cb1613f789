package inventory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	"github.com/jhoicas/inventario-seriales/internal/domain/inventory"
)

func newUnit(status entity.UnitStatus) *entity.Unit {
	return &entity.Unit{
		ID:           "u-1",
		SerialNumber: "SN001",
		ProductID:    "p-1",
		LocationID:   "W1",
		UnitCost:     decimal.NewFromInt(100),
		Status:       status,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Tabla de transiciones: cada acción desde cada estado posible.
// ──────────────────────────────────────────────────────────────────────────────

func TestTransition_Tabla(t *testing.T) {
	all := []entity.UnitStatus{
		entity.UnitStatusAvailable, entity.UnitStatusReserved, entity.UnitStatusSold,
		entity.UnitStatusInTransit, entity.UnitStatusDelivered, entity.UnitStatusClaimed,
		entity.UnitStatusDamaged,
	}
	allowed := map[inventory.Action]map[entity.UnitStatus]entity.UnitStatus{
		inventory.ActionReserve:         {entity.UnitStatusAvailable: entity.UnitStatusReserved},
		inventory.ActionRelease:         {entity.UnitStatusReserved: entity.UnitStatusAvailable},
		inventory.ActionSell:            {entity.UnitStatusAvailable: entity.UnitStatusSold, entity.UnitStatusReserved: entity.UnitStatusSold},
		inventory.ActionDispatch:        {entity.UnitStatusAvailable: entity.UnitStatusInTransit},
		inventory.ActionReceiveTransfer: {entity.UnitStatusInTransit: entity.UnitStatusAvailable},
		inventory.ActionCancelTransfer:  {entity.UnitStatusInTransit: entity.UnitStatusAvailable},
		inventory.ActionFileClaim:       {entity.UnitStatusSold: entity.UnitStatusClaimed},
		inventory.ActionRestock:         {entity.UnitStatusClaimed: entity.UnitStatusAvailable},
		inventory.ActionWriteOff:        {entity.UnitStatusClaimed: entity.UnitStatusDamaged},
		inventory.ActionRepair:          {entity.UnitStatusClaimed: entity.UnitStatusSold},
		inventory.ActionDeliver:         {entity.UnitStatusSold: entity.UnitStatusDelivered},
	}

	for action, table := range allowed {
		for _, from := range all {
			u := newUnit(from)
			_, prev, err := inventory.Transition(u, action, inventory.Params{LocationID: "W2"})
			to, ok := table[from]
			if ok {
				require.NoError(t, err, "%s desde %s debe permitirse", action, from)
				assert.Equal(t, from, prev)
				assert.Equal(t, to, u.Status, "%s desde %s", action, from)
				continue
			}
			require.Error(t, err, "%s desde %s debe rechazarse", action, from)
			assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
			assert.Equal(t, from, u.Status, "un rechazo no debe mutar la unidad")
		}
	}
}

func TestTransition_DamageRequiereMotivo(t *testing.T) {
	u := newUnit(entity.UnitStatusSold)
	_, _, err := inventory.Transition(u, inventory.ActionDamage, inventory.Params{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, entity.UnitStatusSold, u.Status)

	_, _, err = inventory.Transition(u, inventory.ActionDamage, inventory.Params{Reason: "caída en bodega"})
	require.NoError(t, err)
	assert.Equal(t, entity.UnitStatusDamaged, u.Status)

	_, _, err = inventory.Transition(u, inventory.ActionDamage, inventory.Params{Reason: "otra vez"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "DAMAGED no vuelve a darse de baja")
}

func TestTransition_ErrorNombraEstadoActualYEsperado(t *testing.T) {
	u := newUnit(entity.UnitStatusSold)
	_, _, err := inventory.Transition(u, inventory.ActionSell, inventory.Params{})

	var te *domain.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "SOLD", te.Current)
	assert.ElementsMatch(t, []string{"AVAILABLE", "RESERVED"}, te.Expected)
	assert.Equal(t, "SN001", te.ID)
}

func TestTransition_ReferenciaEsperada(t *testing.T) {
	u := newUnit(entity.UnitStatusReserved)
	u.ExternalReference = "res-1"

	_, _, err := inventory.Transition(u, inventory.ActionSell, inventory.Params{ExpectedReference: "res-2"})
	require.ErrorIs(t, err, domain.ErrInvalidTransition, "otra reserva no puede vender la unidad")

	_, _, err = inventory.Transition(u, inventory.ActionSell, inventory.Params{
		ExpectedReference: "res-1",
		ExternalReference: "S-100",
		CounterpartyRef:   "Cliente A",
	})
	require.NoError(t, err)
	assert.Equal(t, "S-100", u.ExternalReference)
	assert.Equal(t, "Cliente A", u.CounterpartyRef)
}

func TestTransition_EfectosDeCampos(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	u := newUnit(entity.UnitStatusAvailable)
	_, _, err := inventory.Transition(u, inventory.ActionSell, inventory.Params{CounterpartyRef: "C", ExternalReference: "S-1", At: at})
	require.NoError(t, err)
	require.NotNil(t, u.SoldAt)
	assert.Equal(t, at, *u.SoldAt)
	assert.Equal(t, at, u.UpdatedAt)

	_, _, err = inventory.Transition(u, inventory.ActionFileClaim, inventory.Params{ExternalReference: "claim-1"})
	require.NoError(t, err)
	assert.Equal(t, "C", u.CounterpartyRef, "el reclamo conserva el comprador")

	_, _, err = inventory.Transition(u, inventory.ActionRestock, inventory.Params{})
	require.NoError(t, err)
	assert.Empty(t, u.CounterpartyRef, "AVAILABLE limpia contraparte")
	assert.Empty(t, u.ExternalReference, "AVAILABLE limpia referencia")
	assert.Nil(t, u.SoldAt)

	_, _, err = inventory.Transition(u, inventory.ActionDispatch, inventory.Params{ExternalReference: "tr-1"})
	require.NoError(t, err)
	assert.Equal(t, "W1", u.LocationID, "en tránsito la unidad sigue en origen")

	_, _, err = inventory.Transition(u, inventory.ActionReceiveTransfer, inventory.Params{LocationID: "W2"})
	require.NoError(t, err)
	assert.Equal(t, "W2", u.LocationID)
	assert.Empty(t, u.ExternalReference)
}

func TestTransition_CancelarTrasladoConservaUbicacion(t *testing.T) {
	u := newUnit(entity.UnitStatusInTransit)
	u.ExternalReference = "tr-1"
	_, _, err := inventory.Transition(u, inventory.ActionCancelTransfer, inventory.Params{LocationID: "W2"})
	require.NoError(t, err)
	assert.Equal(t, "W1", u.LocationID)
	assert.Equal(t, entity.UnitStatusAvailable, u.Status)
}

func TestMovementAllowed(t *testing.T) {
	assert.True(t, inventory.MovementAllowed(entity.UnitStatusAvailable, entity.UnitStatusSold, entity.MovementTypeWithdraw))
	assert.True(t, inventory.MovementAllowed(entity.UnitStatusClaimed, entity.UnitStatusSold, entity.MovementTypeAdjustment))
	assert.False(t, inventory.MovementAllowed(entity.UnitStatusSold, entity.UnitStatusSold, entity.MovementTypeWithdraw),
		"dos ventas seguidas no son una historia válida")
	assert.False(t, inventory.MovementAllowed(entity.UnitStatusDamaged, entity.UnitStatusDamaged, entity.MovementTypeAdjustment))
}
