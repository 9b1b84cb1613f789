package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
)

// Action transición con nombre que un llamador puede solicitar. Los llamadores nunca
// escriben un estado directamente.
type Action string

const (
	ActionReserve         Action = "RESERVE"
	ActionRelease         Action = "RELEASE"
	ActionSell            Action = "SELL"
	ActionDispatch        Action = "DISPATCH"
	ActionReceiveTransfer Action = "RECEIVE_TRANSFER"
	ActionCancelTransfer  Action = "CANCEL_TRANSFER"
	ActionFileClaim       Action = "FILE_CLAIM"
	ActionRestock         Action = "RESTOCK"
	ActionWriteOff        Action = "WRITE_OFF"
	ActionRepair          Action = "REPAIR"
	ActionDeliver         Action = "DELIVER"
	ActionDamage          Action = "DAMAGE"
)

// Rule regla de la máquina de estados: desde qué estados se permite la acción,
// a qué estado lleva y qué movimiento registra en el libro mayor.
type Rule struct {
	From           []entity.UnitStatus
	To             entity.UnitStatus
	Movement       entity.MovementType
	RequiresReason bool
}

// Allows indica si la regla acepta el estado dado como origen.
func (r Rule) Allows(s entity.UnitStatus) bool {
	for _, f := range r.From {
		if f == s {
			return true
		}
	}
	return false
}

var allStatusesButDamaged = []entity.UnitStatus{
	entity.UnitStatusAvailable, entity.UnitStatusReserved, entity.UnitStatusSold,
	entity.UnitStatusInTransit, entity.UnitStatusDelivered, entity.UnitStatusClaimed,
}

var rules = map[Action]Rule{
	ActionReserve: {
		From: []entity.UnitStatus{entity.UnitStatusAvailable}, To: entity.UnitStatusReserved,
		Movement: entity.MovementTypeReserve,
	},
	ActionRelease: {
		From: []entity.UnitStatus{entity.UnitStatusReserved}, To: entity.UnitStatusAvailable,
		Movement: entity.MovementTypeRelease,
	},
	ActionSell: {
		From: []entity.UnitStatus{entity.UnitStatusAvailable, entity.UnitStatusReserved}, To: entity.UnitStatusSold,
		Movement: entity.MovementTypeWithdraw,
	},
	ActionDispatch: {
		From: []entity.UnitStatus{entity.UnitStatusAvailable}, To: entity.UnitStatusInTransit,
		Movement: entity.MovementTypeTransferOut,
	},
	ActionReceiveTransfer: {
		From: []entity.UnitStatus{entity.UnitStatusInTransit}, To: entity.UnitStatusAvailable,
		Movement: entity.MovementTypeTransferIn,
	},
	ActionCancelTransfer: {
		From: []entity.UnitStatus{entity.UnitStatusInTransit}, To: entity.UnitStatusAvailable,
		Movement: entity.MovementTypeTransferIn,
	},
	ActionFileClaim: {
		From: []entity.UnitStatus{entity.UnitStatusSold}, To: entity.UnitStatusClaimed,
		Movement: entity.MovementTypeClaim,
	},
	ActionRestock: {
		From: []entity.UnitStatus{entity.UnitStatusClaimed}, To: entity.UnitStatusAvailable,
		Movement: entity.MovementTypeReturn,
	},
	ActionWriteOff: {
		From: []entity.UnitStatus{entity.UnitStatusClaimed}, To: entity.UnitStatusDamaged,
		Movement: entity.MovementTypeAdjustment,
	},
	ActionRepair: {
		From: []entity.UnitStatus{entity.UnitStatusClaimed}, To: entity.UnitStatusSold,
		Movement: entity.MovementTypeAdjustment,
	},
	ActionDeliver: {
		From: []entity.UnitStatus{entity.UnitStatusSold}, To: entity.UnitStatusDelivered,
		Movement: entity.MovementTypeDeliver,
	},
	ActionDamage: {
		From: allStatusesButDamaged, To: entity.UnitStatusDamaged,
		Movement: entity.MovementTypeAdjustment, RequiresReason: true,
	},
}

// RuleFor devuelve la regla de una acción.
func RuleFor(a Action) (Rule, bool) {
	r, ok := rules[a]
	return r, ok
}

// Params datos que acompañan una transición.
type Params struct {
	// ExpectedReference si no está vacío, la unidad debe tener exactamente esta
	// ExternalReference (reserva o traslado dueño de la unidad).
	ExpectedReference string
	LocationID        string // bodega destino en RECEIVE_TRANSFER
	CounterpartyRef   string
	ExternalReference string
	Reason            string
	At                time.Time
}

// Transition valida y aplica la acción sobre la unidad (muta u). Devuelve la regla aplicada
// y el estado anterior. Si el estado actual no está permitido devuelve *domain.TransitionError.
func Transition(u *entity.Unit, action Action, p Params) (Rule, entity.UnitStatus, error) {
	rule, ok := rules[action]
	if !ok {
		return Rule{}, "", fmt.Errorf("acción desconocida %q: %w", action, domain.ErrInvalidInput)
	}
	if rule.RequiresReason && strings.TrimSpace(p.Reason) == "" {
		return Rule{}, "", fmt.Errorf("%s requiere motivo: %w", action, domain.ErrInvalidInput)
	}
	from := u.Status
	if !rule.Allows(from) {
		return Rule{}, from, &domain.TransitionError{
			Subject:  "unit",
			ID:       u.SerialNumber,
			Action:   string(action),
			Current:  string(from),
			Expected: statusNames(rule.From),
		}
	}
	if p.ExpectedReference != "" && u.ExternalReference != p.ExpectedReference {
		return Rule{}, from, &domain.TransitionError{
			Subject:  "unit",
			ID:       u.SerialNumber,
			Action:   string(action),
			Current:  fmt.Sprintf("%s(%s)", from, u.ExternalReference),
			Expected: []string{fmt.Sprintf("%s(%s)", from, p.ExpectedReference)},
		}
	}

	switch action {
	case ActionReserve:
		u.CounterpartyRef = ""
		u.ExternalReference = p.ExternalReference
	case ActionSell:
		u.CounterpartyRef = p.CounterpartyRef
		u.ExternalReference = p.ExternalReference
		at := p.At
		u.SoldAt = &at
	case ActionDispatch:
		u.CounterpartyRef = p.CounterpartyRef
		u.ExternalReference = p.ExternalReference
	case ActionReceiveTransfer:
		if p.LocationID == "" {
			return Rule{}, from, fmt.Errorf("%s requiere bodega destino: %w", action, domain.ErrInvalidInput)
		}
		u.LocationID = p.LocationID
		u.CounterpartyRef = ""
		u.ExternalReference = ""
	case ActionRelease, ActionCancelTransfer, ActionRestock:
		u.CounterpartyRef = ""
		u.ExternalReference = ""
	case ActionFileClaim, ActionRepair:
		u.ExternalReference = p.ExternalReference
	case ActionWriteOff, ActionDamage:
		u.CounterpartyRef = ""
		u.ExternalReference = p.ExternalReference
	case ActionDeliver:
		if p.CounterpartyRef != "" {
			u.CounterpartyRef = p.CounterpartyRef
		}
	}
	u.Status = rule.To
	if u.Status == entity.UnitStatusAvailable || u.Status == entity.UnitStatusDamaged {
		u.SoldAt = nil
	}
	if !p.At.IsZero() {
		u.UpdatedAt = p.At
	}
	return rule, from, nil
}

// MovementAllowed indica si algún par (origen → destino) de la máquina de estados
// corresponde al tipo de movimiento dado. Lo usa la reconstrucción desde el libro mayor.
func MovementAllowed(from, to entity.UnitStatus, mt entity.MovementType) bool {
	for _, r := range rules {
		if r.To == to && r.Movement == mt && r.Allows(from) {
			return true
		}
	}
	return false
}

func statusNames(ss []entity.UnitStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}
