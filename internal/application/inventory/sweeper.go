package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-seriales/pkg/logger"
)

// Sweeper libera periódicamente las reservas vencidas. Es opcional: Reserve, Withdraw,
// Availability y CheckAvailability liberan por su cuenta las vencidas que encuentran.
type Sweeper struct {
	manager  *ReservationManager
	interval time.Duration
	log      *logger.Logger
}

// NewSweeper construye el barrido. interval <= 0 lo deshabilita.
func NewSweeper(manager *ReservationManager, interval time.Duration, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.Nop()
	}
	return &Sweeper{manager: manager, interval: interval, log: log.Component("sweeper")}
}

// Start bloquea hasta que ctx termine.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.interval <= 0 {
		s.log.Info().Msg("barrido de reservas deshabilitado")
		return nil
	}
	s.log.Info().Dur("interval", s.interval).Msg("iniciando barrido de reservas")
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("deteniendo barrido de reservas")
			return nil
		case <-t.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce ejecuta una pasada del barrido.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	n, err := s.manager.ExpireDue(ctx, "", "")
	if err != nil {
		s.log.Error().Err(err).Msg("error liberando reservas vencidas")
	}
	if n > 0 {
		s.log.Info().Int("reservations", n).Msg("reservas vencidas liberadas")
	}
	return n
}
