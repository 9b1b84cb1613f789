package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/pkg/logger"
)

var _ inventory.UnitLocker = (*RedisLocker)(nil)

// RedisOptions parámetros del locker distribuido.
type RedisOptions struct {
	Prefix  string        // prefijo de las claves, p. ej. "inv:lock:"
	TTL     time.Duration // vida máxima de un candado si el proceso muere
	Retries int           // intentos adicionales antes de ErrConcurrentModification
	Backoff time.Duration
}

// RedisLocker candados por clave con bsm/redislock.
type RedisLocker struct {
	client *redislock.Client
	opts   RedisOptions
	log    *logger.Logger
}

// NewRedisClient abre el cliente y verifica la conexión.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// NewRedisLocker construye el locker sobre un cliente ya conectado.
func NewRedisLocker(rdb redis.UniversalClient, opts RedisOptions, log *logger.Logger) *RedisLocker {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 50 * time.Millisecond
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RedisLocker{client: redislock.New(rdb), opts: opts, log: log.Component("redis-lock")}
}

// Lock obtiene las claves en orden. Si alguna no se obtiene tras los reintentos,
// libera las ya tomadas y devuelve ErrConcurrentModification (reintentable).
// Mientras se retienen, los candados se renuevan cada TTL/2. Si una renovación falla el
// candado puede vencer; el FOR UPDATE y la versión de cada fila siguen evitando la doble escritura.
func (l *RedisLocker) Lock(ctx context.Context, keys []string) (func(), error) {
	held := make([]*redislock.Lock, 0, len(keys))
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.opts.Backoff), l.opts.Retries),
	}
	for _, key := range keys {
		lk, err := l.client.Obtain(ctx, l.opts.Prefix+key, l.opts.TTL, opts)
		if err != nil {
			l.release(held)
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, fmt.Errorf("lock %s: %w", key, domain.ErrConcurrentModification)
			}
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		held = append(held, lk)
	}
	if len(held) == 0 {
		return func() {}, nil
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(held, stop, done)
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			l.release(held)
		})
	}, nil
}

func (l *RedisLocker) keepAlive(held []*redislock.Lock, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(l.opts.TTL / 2)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), l.opts.TTL/2)
		for _, lk := range held {
			if err := lk.Refresh(ctx, l.opts.TTL, nil); err != nil {
				l.log.Warn().Err(err).Str("key", lk.Key()).Msg("no se pudo renovar el candado")
			}
		}
		cancel()
	}
}

func (l *RedisLocker) release(held []*redislock.Lock) {
	// El ctx de la operación puede estar cancelado; la liberación no debe depender de él.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := len(held) - 1; i >= 0; i-- {
		if err := held[i].Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.Warn().Err(err).Str("key", held[i].Key()).Msg("no se pudo liberar el candado")
		}
	}
}
