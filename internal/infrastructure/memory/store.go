// Package memory implementa los puertos de persistencia en memoria con transacciones
// optimistas: cada transacción acumula sus escrituras y, al confirmar, verifica que las
// versiones leídas no hayan cambiado. Se usa en tests y con STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
)

var _ inventory.TxRunner = (*Store)(nil)

// Store estado confirmado. Los repositorios nunca entregan punteros internos: todo
// lo que sale o entra se clona.
type Store struct {
	mu           sync.RWMutex
	units        map[string]*entity.Unit
	order        []string // ids de unidades en orden de recepción
	serials      map[string]string
	movements    map[string][]*entity.MovementEntry
	reservations map[string]*entity.Reservation
	transfers    map[string]*entity.TransferBatch
	claims       map[string]*entity.Claim
	products     map[string]*entity.Product
	warehouses   map[string]*entity.Warehouse

	failMu     sync.Mutex
	failAppend error
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{
		units:        map[string]*entity.Unit{},
		serials:      map[string]string{},
		movements:    map[string][]*entity.MovementEntry{},
		reservations: map[string]*entity.Reservation{},
		transfers:    map[string]*entity.TransferBatch{},
		claims:       map[string]*entity.Claim{},
		products:     map[string]*entity.Product{},
		warehouses:   map[string]*entity.Warehouse{},
	}
}

// AddProduct registra un producto en el catálogo.
func (s *Store) AddProduct(p *entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	s.products[p.ID] = &c
}

// AddWarehouse registra una bodega en el directorio.
func (s *Store) AddWarehouse(w *entity.Warehouse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *w
	s.warehouses[w.ID] = &c
}

// FailNextAppend hace que el próximo Append devuelva err (pruebas de atomicidad).
func (s *Store) FailNextAppend(err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failAppend = err
}

func (s *Store) takeAppendFailure() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	err := s.failAppend
	s.failAppend = nil
	return err
}

// Repos repositorios fuera de transacción. Cada escritura se confirma de inmediato.
func (s *Store) Repos() inventory.Repos {
	return s.repos(nil)
}

// Catalog colaboradores de solo lectura.
func (s *Store) Catalog() inventory.Catalog {
	return inventory.Catalog{Products: &productRepo{s: s}, Warehouses: &warehouseRepo{s: s}}
}

// Levels repositorio de agregados de stock.
func (s *Store) Levels() *LevelRepo {
	return &LevelRepo{s: s}
}

func (s *Store) repos(t *tx) inventory.Repos {
	return inventory.Repos{
		Units:        &unitRepo{s: s, tx: t},
		Movements:    &movementRepo{s: s, tx: t},
		Reservations: &reservationRepo{s: s, tx: t},
		Transfers:    &transferRepo{s: s, tx: t},
		Claims:       &claimRepo{s: s, tx: t},
	}
}

// Run ejecuta fn con repositorios atados a una transacción nueva. Si fn falla las
// escrituras se descartan; si no, se confirman o se devuelve ErrConcurrentModification.
func (s *Store) Run(ctx context.Context, fn func(repos inventory.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := newTx()
	if err := fn(s.repos(t)); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) autocommit(fn func(t *tx) error) error {
	t := newTx()
	if err := fn(t); err != nil {
		return err
	}
	return s.commit(t)
}

// createdVersion marca en tx.*Base un registro creado en la transacción.
const createdVersion = -1

// tx escrituras pendientes de una transacción y la versión leída de cada registro.
type tx struct {
	units     map[string]*entity.Unit
	unitBase  map[string]int64
	newUnits  []string
	movements []*entity.MovementEntry

	reservations map[string]*entity.Reservation
	resBase      map[string]int64
	transfers    map[string]*entity.TransferBatch
	trBase       map[string]int64
	claims       map[string]*entity.Claim
	claimBase    map[string]int64
}

func newTx() *tx {
	return &tx{
		units:        map[string]*entity.Unit{},
		unitBase:     map[string]int64{},
		reservations: map[string]*entity.Reservation{},
		resBase:      map[string]int64{},
		transfers:    map[string]*entity.TransferBatch{},
		trBase:       map[string]int64{},
		claims:       map[string]*entity.Claim{},
		claimBase:    map[string]int64{},
	}
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validación completa antes de aplicar nada.
	for id, base := range t.unitBase {
		u := t.units[id]
		if base == createdVersion {
			if _, ok := s.serials[u.SerialNumber]; ok {
				return fmt.Errorf("serial %s: %w", u.SerialNumber, domain.ErrDuplicate)
			}
			continue
		}
		if cur, ok := s.units[id]; !ok || cur.Version != base {
			return fmt.Errorf("unit %s: %w", u.SerialNumber, domain.ErrConcurrentModification)
		}
	}
	next := map[string]int64{}
	for _, m := range t.movements {
		if _, ok := next[m.UnitID]; !ok {
			next[m.UnitID] = int64(len(s.movements[m.UnitID]))
		}
		next[m.UnitID]++
		if m.Sequence != next[m.UnitID] {
			return fmt.Errorf("movement sequence %s: %w", m.UnitID, domain.ErrConcurrentModification)
		}
	}
	if err := checkVersions(t.resBase, s.reservations, func(r *entity.Reservation) int64 { return r.Version }); err != nil {
		return fmt.Errorf("reservation: %w", err)
	}
	if err := checkVersions(t.trBase, s.transfers, func(b *entity.TransferBatch) int64 { return b.Version }); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if err := checkVersions(t.claimBase, s.claims, func(c *entity.Claim) int64 { return c.Version }); err != nil {
		return fmt.Errorf("claim: %w", err)
	}

	for _, id := range t.newUnits {
		s.order = append(s.order, id)
	}
	for id, u := range t.units {
		s.units[id] = u
		s.serials[u.SerialNumber] = id
	}
	for _, m := range t.movements {
		s.movements[m.UnitID] = append(s.movements[m.UnitID], m)
	}
	for id, r := range t.reservations {
		s.reservations[id] = r
	}
	for id, b := range t.transfers {
		s.transfers[id] = b
	}
	for id, c := range t.claims {
		s.claims[id] = c
	}
	return nil
}

func checkVersions[T any](base map[string]int64, rows map[string]T, version func(T) int64) error {
	for id, v := range base {
		cur, ok := rows[id]
		if v == createdVersion {
			if ok {
				return fmt.Errorf("%s: %w", id, domain.ErrDuplicate)
			}
			continue
		}
		if !ok || version(cur) != v {
			return fmt.Errorf("%s: %w", id, domain.ErrConcurrentModification)
		}
	}
	return nil
}

// stage registra una escritura pendiente. La primera vez se guarda la versión leída
// (o createdVersion); una segunda escritura en la misma tx debe partir de la pendiente.
func stage[T any](rows map[string]T, base map[string]int64, id string, expected int64, staged T, stagedVersion func(T) int64, committed func() (T, bool)) error {
	if prev, ok := rows[id]; ok {
		if stagedVersion(prev) != expected {
			return domain.ErrConcurrentModification
		}
		rows[id] = staged
		return nil
	}
	cur, ok := committed()
	if !ok {
		return domain.ErrNotFound
	}
	if stagedVersion(cur) != expected {
		return domain.ErrConcurrentModification
	}
	base[id] = expected
	rows[id] = staged
	return nil
}

func sortedIDs[T any](m map[string]T) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
