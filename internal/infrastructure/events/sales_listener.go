package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	"github.com/jhoicas/inventario-seriales/pkg/logger"
)

// MessageReader subconjunto de *kafka.Reader usado por el listener. El offset se
// confirma con CommitMessages solo cuando la venta quedó aplicada o es irrecuperable.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Withdrawer caso de uso que aplica la venta sobre las unidades.
type Withdrawer interface {
	Withdraw(ctx context.Context, in inventory.WithdrawInput) (*inventory.WithdrawResult, error)
}

// NewKafkaReader consumidor del tópico de ventas completadas dentro de un grupo.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// SaleCompletedEvent venta cerrada en POS o a crédito.
type SaleCompletedEvent struct {
	EventID   string      `json:"event_id"`
	EventType string      `json:"event_type"`
	Payload   SalePayload `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// SalePayload datos de la venta necesarios para retirar las unidades.
type SalePayload struct {
	SaleID        string   `json:"sale_id"`
	ReferenceType string   `json:"reference_type"` // SALE, POS o INSTALLMENT
	CustomerRef   string   `json:"customer_ref"`
	ReservationID string   `json:"reservation_id,omitempty"`
	SerialNumbers []string `json:"serial_numbers"`
	CashierID     string   `json:"cashier_id"`
}

// SalesListener consume SaleCompleted y retira las unidades vendidas.
type SalesListener struct {
	reader MessageReader
	uc     Withdrawer
	log    *logger.Logger
	// retryDelay pausa inicial tras un error; se duplica hasta maxRetryDelay.
	retryDelay    time.Duration
	maxRetryDelay time.Duration
}

// NewSalesListener construye el listener.
func NewSalesListener(reader MessageReader, uc Withdrawer, log *logger.Logger) *SalesListener {
	if log == nil {
		log = logger.Nop()
	}
	return &SalesListener{
		reader: reader, uc: uc, log: log.Component("sales_listener"),
		retryDelay: time.Second, maxRetryDelay: 30 * time.Second,
	}
}

// WithBackoff ajusta las pausas entre reintentos.
func (l *SalesListener) WithBackoff(initial, maxDelay time.Duration) *SalesListener {
	l.retryDelay, l.maxRetryDelay = initial, maxDelay
	return l
}

// Start bloquea hasta que ctx termine. Entrega al menos una vez: un mensaje cuyo
// retiro falla por un error transitorio se reintenta sin confirmar su offset.
func (l *SalesListener) Start(ctx context.Context) error {
	l.log.Info().Msg("iniciando listener de ventas")
	defer func() {
		if err := l.reader.Close(); err != nil {
			l.log.Warn().Err(err).Msg("error cerrando consumidor kafka")
		}
	}()
	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("deteniendo listener de ventas")
			return nil
		default:
		}
		msg, err := l.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.log.Info().Msg("deteniendo listener de ventas")
				return nil
			}
			l.log.Error().Err(err).Msg("error leyendo mensaje de kafka")
			if !l.sleep(ctx, l.retryDelay) {
				return nil
			}
			continue
		}
		if !l.process(ctx, msg) {
			l.log.Info().Msg("deteniendo listener de ventas")
			return nil
		}
	}
}

// process aplica el mensaje reintentando con espera creciente y confirma su offset.
// Devuelve false si ctx terminó antes; el mensaje queda sin confirmar y se relee.
func (l *SalesListener) process(ctx context.Context, msg kafka.Message) bool {
	delay := l.retryDelay
	for attempt := 1; ; attempt++ {
		err := l.Handle(ctx, msg.Value)
		if err == nil {
			break
		}
		l.log.Warn().Err(err).Int("attempt", attempt).Int64("offset", msg.Offset).Dur("retry_in", delay).
			Msg("venta no aplicada, se reintenta")
		if !l.sleep(ctx, delay) {
			return false
		}
		delay = min(delay*2, l.maxRetryDelay)
	}
	if err := l.reader.CommitMessages(ctx, msg); err != nil {
		// Sin commit la venta se vuelve a entregar y el retiro repetido falla como transición inválida.
		l.log.Error().Err(err).Int64("offset", msg.Offset).Msg("error confirmando offset")
	}
	return true
}

func (l *SalesListener) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Handle procesa un mensaje. Devuelve error solo si vale la pena reintentar
// (conflicto de concurrencia o falla de almacenamiento); los eventos inválidos y las
// ventas que el inventario rechaza se registran y se dan por procesados.
func (l *SalesListener) Handle(ctx context.Context, value []byte) error {
	var event SaleCompletedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.log.Error().Err(err).Msg("evento de venta inválido")
		return nil
	}
	if event.EventType != "SaleCompleted" {
		return nil
	}
	p := event.Payload
	refType := entity.ReferenceType(p.ReferenceType)
	if refType == "" {
		refType = entity.ReferenceTypePOS
	}
	performedBy := p.CashierID
	if performedBy == "" {
		performedBy = "system"
	}

	res, err := l.uc.Withdraw(ctx, inventory.WithdrawInput{
		SerialNumbers:   p.SerialNumbers,
		ReferenceType:   refType,
		ReferenceNumber: p.SaleID,
		CounterpartyRef: p.CustomerRef,
		PerformedBy:     performedBy,
		ReservationID:   p.ReservationID,
	})
	switch {
	case err == nil:
		l.log.Info().Str("sale_id", p.SaleID).Strs("serials", res.Succeeded).Msg("venta aplicada al inventario")
		return nil
	case domain.IsRetryable(err) || !rejected(err):
		return fmt.Errorf("venta %s: %w", p.SaleID, err)
	case errors.Is(err, domain.ErrInvalidTransition):
		// Entrega repetida de la misma venta o unidades ya no disponibles.
		l.log.Warn().Err(err).Str("sale_id", p.SaleID).Msg("venta no aplicada: unidades en estado inválido")
	default:
		l.log.Error().Err(err).Str("sale_id", p.SaleID).Msg("venta rechazada por el inventario")
	}
	return nil
}

// rejected errores de dominio que no cambian al reintentar.
func rejected(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidTransition, domain.ErrNotFound, domain.ErrInvalidInput,
		domain.ErrReservationExpired, domain.ErrDuplicate, domain.ErrInsufficientStock,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
