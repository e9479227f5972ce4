// query — кэш результатов чтения в памяти процесса.
//
// Каждый ключ имеет не более одного запроса в полёте (singleflight).
// Результат сохраняется по принципу «последняя запись выигрывает», но только если
// ключ не был инвалидирован, пока запрос выполнялся: ответ, начатый до
// инвалидации, отдаётся вызывающему, но в кэш не попадает.
package query

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Key — ключ запроса: вид данных и его параметры.
type Key struct {
	Kind   string
	Params string
}

// NewKey собирает ключ из вида и параметров.
func NewKey(kind string, params ...any) Key {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprint(p)
	}

	return Key{Kind: kind, Params: strings.Join(parts, "/")}
}

func (k Key) String() string {
	if k.Params == "" {
		return k.Kind
	}
	return k.Kind + ":" + k.Params
}

type entry struct {
	value any
	at    time.Time
}

// Cache — кэш запросов. Нулевое значение непригодно, используйте New.
type Cache struct {
	staleAfter time.Duration
	now        func() time.Time
	group      singleflight.Group

	mu      sync.Mutex
	entries map[Key]entry
	gens    map[Key]uint64
}

// New создаёт кэш. Запись старше staleAfter перезапрашивается;
// staleAfter == 0 — каждый Fetch идёт в источник.
func New(staleAfter time.Duration) *Cache {
	return &Cache{
		staleAfter: staleAfter,
		now:        time.Now,
		entries:    make(map[Key]entry),
		gens:       make(map[Key]uint64),
	}
}

// Fetch возвращает свежий результат из кэша или вызывает fn.
// Конкурентные вызовы с одним ключом разделяют один вызов fn,
// который выполняется с контекстом первого из них.
// Остальные могут уйти по своему ctx, не дожидаясь общего вызова.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.staleAfter > 0 && c.now().Sub(e.at) < c.staleAfter {
		c.mu.Unlock()
		if v, ok := e.value.(T); ok {
			return v, nil
		}
		return zero, fmt.Errorf("query: cached %s has type %T", key, e.value)
	}
	gen := c.gens[key]
	c.gens[key] = gen
	c.mu.Unlock()

	ch := c.group.DoChan(key.String(), func() (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		c.store(key, gen, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("query: %s returned %T", key, res.Val)
		}
		return v, nil
	}
}

// Get возвращает закэшированное значение без обращения к источнику.
func Get[T any](c *Cache, key Key) (T, bool) {
	var zero T

	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()

	if !ok {
		return zero, false
	}

	v, ok := e.value.(T)
	if !ok {
		return zero, false
	}

	return v, true
}

// Invalidate сбрасывает записи и отвязывает запросы в полёте от кэша.
func (c *Cache) Invalidate(keys ...Key) {
	c.mu.Lock()
	for _, k := range keys {
		c.invalidateLocked(k)
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.group.Forget(k.String())
	}
}

// InvalidateKind сбрасывает все ключи указанного вида.
func (c *Cache) InvalidateKind(kind string) {
	c.mu.Lock()
	var keys []Key
	for k := range c.gens {
		if k.Kind == kind {
			keys = append(keys, k)
			c.invalidateLocked(k)
		}
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.group.Forget(k.String())
	}
}

func (c *Cache) invalidateLocked(k Key) {
	c.gens[k]++
	delete(c.entries, k)
}

// store сохраняет результат, если с начала запроса поколение ключа не менялось.
func (c *Cache) store(key Key, gen uint64, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[key] != gen {
		return
	}

	c.entries[key] = entry{value: v, at: c.now()}
}
