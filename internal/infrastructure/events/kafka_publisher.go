package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	"github.com/jhoicas/inventario-seriales/pkg/logger"
)

var (
	_ inventory.MovementPublisher = (*KafkaPublisher)(nil)
	_ inventory.MovementPublisher = (*LogPublisher)(nil)
)

// MovementEvent mensaje publicado por cada entrada confirmada del libro mayor.
type MovementEvent struct {
	EventID         string          `json:"event_id"`
	EventType       string          `json:"event_type"`
	UnitID          string          `json:"unit_id"`
	SerialNumber    string          `json:"serial_number"`
	ProductID       string          `json:"product_id"`
	LocationID      string          `json:"location_id"`
	MovementType    string          `json:"movement_type"`
	Quantity        int             `json:"quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	ReferenceType   string          `json:"reference_type"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	PerformedBy     string          `json:"performed_by,omitempty"`
	FromStatus      string          `json:"from_status,omitempty"`
	ToStatus        string          `json:"to_status"`
	Sequence        int64           `json:"sequence"`
	Timestamp       time.Time       `json:"timestamp"`
}

// NewMovementEvent convierte una entrada del libro mayor al mensaje publicado.
func NewMovementEvent(e *entity.MovementEntry) MovementEvent {
	return MovementEvent{
		EventID:         e.ID,
		EventType:       "UnitMovementRecorded",
		UnitID:          e.UnitID,
		SerialNumber:    e.SerialNumber,
		ProductID:       e.ProductID,
		LocationID:      e.LocationID,
		MovementType:    string(e.Type),
		Quantity:        e.Quantity,
		UnitCost:        e.UnitCost,
		ReferenceType:   string(e.ReferenceType),
		ReferenceNumber: e.ReferenceNumber,
		Notes:           e.Notes,
		PerformedBy:     e.PerformedBy,
		FromStatus:      string(e.FromStatus),
		ToStatus:        string(e.ToStatus),
		Sequence:        e.Sequence,
		Timestamp:       e.CreatedAt,
	}
}

// MessageWriter subconjunto de *kafka.Writer usado por el publicador.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publica los movimientos confirmados en el tópico del libro mayor.
// La clave del mensaje es el id de la unidad: el orden por unidad se conserva dentro de la partición.
type KafkaPublisher struct {
	w   MessageWriter
	log *logger.Logger
}

// NewKafkaWriter crea el writer del tópico con balanceo por hash de la clave.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// NewKafkaPublisher construye el publicador sobre w.
func NewKafkaPublisher(w MessageWriter, log *logger.Logger) *KafkaPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &KafkaPublisher{w: w, log: log.Component("kafka_publisher")}
}

func (p *KafkaPublisher) Publish(ctx context.Context, entries []*entity.MovementEntry) error {
	msgs := make([]kafka.Message, 0, len(entries))
	for _, e := range entries {
		value, err := json.Marshal(NewMovementEvent(e))
		if err != nil {
			return fmt.Errorf("marshal movement %s: %w", e.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.UnitID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte("UnitMovementRecorded")},
				{Key: "movement_type", Value: []byte(e.Type)},
			},
		})
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write kafka messages: %w", err)
	}
	p.log.Debug().Int("entries", len(msgs)).Msg("movimientos publicados")
	return nil
}

// Close cierra el writer subyacente.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// LogPublisher publicador sin broker: solo registra los movimientos en el log.
type LogPublisher struct {
	log *logger.Logger
}

// NewLogPublisher se usa cuando Kafka está deshabilitado.
func NewLogPublisher(log *logger.Logger) *LogPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &LogPublisher{log: log.Component("movements")}
}

func (p *LogPublisher) Publish(_ context.Context, entries []*entity.MovementEntry) error {
	for _, e := range entries {
		p.log.Debug().
			Str("serial", e.SerialNumber).
			Str("movement_type", string(e.Type)).
			Str("from", string(e.FromStatus)).
			Str("to", string(e.ToStatus)).
			Int64("sequence", e.Sequence).
			Msg("movimiento registrado")
	}
	return nil
}
