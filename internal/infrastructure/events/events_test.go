package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	"github.com/jhoicas/inventario-seriales/internal/infrastructure/events"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// ── Publicador ──────────────────────────────────────────────────────────────

func TestKafkaPublisher_KeyedByUnit(t *testing.T) {
	w := &fakeWriter{}
	p := events.NewKafkaPublisher(w, nil)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), []*entity.MovementEntry{
		{ID: "m1", UnitID: "u1", SerialNumber: "SN-1", Type: entity.MovementTypeReceive,
			ToStatus: entity.UnitStatusAvailable, UnitCost: decimal.NewFromInt(1500), Sequence: 1, CreatedAt: at},
		{ID: "m2", UnitID: "u2", SerialNumber: "SN-2", Type: entity.MovementTypeWithdraw,
			FromStatus: entity.UnitStatusAvailable, ToStatus: entity.UnitStatusSold, Sequence: 2, CreatedAt: at},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "u1", string(w.msgs[0].Key), "la clave es el id de la unidad")

	var ev events.MovementEvent
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &ev))
	assert.Equal(t, "SN-2", ev.SerialNumber)
	assert.Equal(t, "WITHDRAW", ev.MovementType)
	assert.Equal(t, "SOLD", ev.ToStatus)
	assert.Equal(t, int64(2), ev.Sequence)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	boom := errors.New("broker caído")
	p := events.NewKafkaPublisher(&fakeWriter{err: boom}, nil)

	err := p.Publish(context.Background(), []*entity.MovementEntry{{ID: "m1", UnitID: "u1"}})
	assert.ErrorIs(t, err, boom)
}

// ── Listener ────────────────────────────────────────────────────────────────

type fakeWithdrawer struct {
	mu    sync.Mutex
	calls []inventory.WithdrawInput
	err   error
	// failures se devuelven en orden antes de tener éxito.
	failures []error
}

func (f *fakeWithdrawer) Withdraw(_ context.Context, in inventory.WithdrawInput) (*inventory.WithdrawResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in)
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &inventory.WithdrawResult{Succeeded: in.SerialNumbers}, nil
}

func (f *fakeWithdrawer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// chanReader entrega mensajes desde un canal y bloquea hasta ctx cuando no hay más.
type chanReader struct {
	ch     chan kafka.Message
	uc     *fakeWithdrawer
	closed bool

	mu      sync.Mutex
	commits []int64
	// callsAtCommit llamadas a Withdraw vistas al confirmar cada offset.
	callsAtCommit []int
}

func (r *chanReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.ch:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.commits = append(r.commits, m.Offset)
		if r.uc != nil {
			r.callsAtCommit = append(r.callsAtCommit, r.uc.count())
		}
	}
	return nil
}

func (r *chanReader) committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.commits...)
}

func (r *chanReader) Close() error {
	r.closed = true
	return nil
}

func saleEvent(t *testing.T, eventType string) []byte {
	t.Helper()
	b, err := json.Marshal(events.SaleCompletedEvent{
		EventID:   "e1",
		EventType: eventType,
		Payload: events.SalePayload{
			SaleID:        "POS-42",
			CustomerRef:   "Cliente A",
			SerialNumbers: []string{"SN-1", "SN-2"},
			CashierID:     "caja-1",
		},
	})
	require.NoError(t, err)
	return b
}

func TestSalesListener_Handle(t *testing.T) {
	uc := &fakeWithdrawer{}
	l := events.NewSalesListener(&chanReader{}, uc, nil)

	require.NoError(t, l.Handle(context.Background(), saleEvent(t, "SaleCompleted")))

	require.Len(t, uc.calls, 1)
	in := uc.calls[0]
	assert.Equal(t, entity.ReferenceTypePOS, in.ReferenceType, "POS por defecto")
	assert.Equal(t, "POS-42", in.ReferenceNumber)
	assert.Equal(t, "caja-1", in.PerformedBy)
	assert.Equal(t, []string{"SN-1", "SN-2"}, in.SerialNumbers)
}

func TestSalesListener_IgnoresOtherEvents(t *testing.T) {
	uc := &fakeWithdrawer{}
	l := events.NewSalesListener(&chanReader{}, uc, nil)

	assert.NoError(t, l.Handle(context.Background(), saleEvent(t, "SaleVoided")))
	assert.NoError(t, l.Handle(context.Background(), []byte("{no es json")), "un evento ilegible no se reintenta")

	assert.Empty(t, uc.calls)
}

func TestSalesListener_RejectedSaleIsNotRetried(t *testing.T) {
	uc := &fakeWithdrawer{err: &domain.TransitionError{Subject: "unit", ID: "SN-1", Current: "SOLD"}}
	l := events.NewSalesListener(&chanReader{}, uc, nil)

	assert.NoError(t, l.Handle(context.Background(), saleEvent(t, "SaleCompleted")), "venta repetida")
	assert.Equal(t, 1, uc.count())
}

func TestSalesListener_TransientErrorsAreRetryable(t *testing.T) {
	for name, err := range map[string]error{
		"concurrencia":   fmt.Errorf("unidad SN-1: %w", domain.ErrConcurrentModification),
		"almacenamiento": errors.New("conexión rechazada"),
	} {
		t.Run(name, func(t *testing.T) {
			uc := &fakeWithdrawer{err: err}
			l := events.NewSalesListener(&chanReader{}, uc, nil)

			got := l.Handle(context.Background(), saleEvent(t, "SaleCompleted"))
			require.Error(t, got)
			assert.ErrorIs(t, got, err)
		})
	}
}

func TestSalesListener_CommitsAfterRetrySucceeds(t *testing.T) {
	uc := &fakeWithdrawer{failures: []error{fmt.Errorf("unidad SN-1: %w", domain.ErrConcurrentModification)}}
	r := &chanReader{ch: make(chan kafka.Message, 1), uc: uc}
	r.ch <- kafka.Message{Offset: 7, Value: saleEvent(t, "SaleCompleted")}
	l := events.NewSalesListener(r, uc, nil).WithBackoff(time.Millisecond, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	require.Eventually(t, func() bool { return len(r.committed()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 2, uc.count(), "el conflicto se reintenta")
	assert.Equal(t, []int64{7}, r.committed())
	assert.Equal(t, []int{2}, r.callsAtCommit, "el offset se confirma después de aplicar la venta")
}

func TestSalesListener_UncommittedOnShutdownWhileRetrying(t *testing.T) {
	uc := &fakeWithdrawer{err: errors.New("base de datos caída")}
	r := &chanReader{ch: make(chan kafka.Message, 1), uc: uc}
	r.ch <- kafka.Message{Offset: 3, Value: saleEvent(t, "SaleCompleted")}
	l := events.NewSalesListener(r, uc, nil).WithBackoff(time.Millisecond, 2*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	require.Eventually(t, func() bool { return uc.count() >= 3 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, r.committed(), "una venta sin aplicar no se confirma")
}

func TestSalesListener_StartStopsOnCancel(t *testing.T) {
	uc := &fakeWithdrawer{}
	r := &chanReader{ch: make(chan kafka.Message, 1)}
	r.ch <- kafka.Message{Value: saleEvent(t, "SaleCompleted")}
	l := events.NewSalesListener(r, uc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	require.Eventually(t, func() bool { return uc.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("el listener no se detuvo al cancelar el contexto")
	}
	assert.True(t, r.closed, "el consumidor se cierra al salir")
}
