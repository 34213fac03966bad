package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the in-process Store implementation. Values live in a flat
// path → JSON map; each subscription gets its own dispatch goroutine so a slow
// handler never blocks writers or other subscribers.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string]json.RawMessage
	subs  map[*subscription]struct{}
	hooks []func(Change)
	now   func() time.Time
	seq   uint64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]json.RawMessage),
		subs: make(map[*subscription]struct{}),
		now:  time.Now,
	}
}

// OnChange registers a hook invoked after every committed local mutation.
// Replicated changes applied via ApplyReplica do not trigger hooks, which is
// what keeps the bridge from echoing remote changes back out.
func (s *MemoryStore) OnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *MemoryStore) Get(path string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[normalize(path)], nil
}

func (s *MemoryStore) GetChildren(path string) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.childrenLocked(normalize(path)), nil
}

func (s *MemoryStore) Write(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encode(value, s.now().UnixMilli())
	if err != nil {
		return err
	}
	s.commit([]mutation{{path: normalize(path), value: raw}}, true)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, path string, fields map[string]any) error {
	return s.BatchUpdate(ctx, map[string]map[string]any{path: fields})
}

func (s *MemoryStore) BatchUpdate(ctx context.Context, updates map[string]map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := s.now().UnixMilli()

	s.mu.Lock()
	muts := make([]mutation, 0, len(updates))
	for path, fields := range updates {
		path = normalize(path)
		merged := make(map[string]any)
		if existing, ok := s.data[path]; ok {
			if err := json.Unmarshal(existing, &merged); err != nil {
				s.mu.Unlock()
				return fmt.Errorf("update %s: existing value is not an object: %w", path, err)
			}
		}
		for k, v := range fields {
			merged[k] = resolveMarkers(v, now)
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		muts = append(muts, mutation{path: path, value: raw})
	}
	s.commitLocked(muts)
	s.mu.Unlock()

	s.runHooks(muts)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path = normalize(path)

	s.mu.Lock()
	if _, ok := s.data[path]; !ok {
		s.mu.Unlock()
		return nil
	}
	muts := []mutation{{path: path, deleted: true}}
	s.commitLocked(muts)
	s.mu.Unlock()

	s.runHooks(muts)
	return nil
}

// ApplyReplica installs a change that originated elsewhere (another server
// instance, or the archive at boot). Local subscribers are notified but
// OnChange hooks are not, so the change is never re-published or re-archived.
func (s *MemoryStore) ApplyReplica(path string, value json.RawMessage, deleted bool) {
	s.mu.Lock()
	s.commitLocked([]mutation{{path: normalize(path), value: value, deleted: deleted}})
	s.mu.Unlock()
}

func (s *MemoryStore) Subscribe(path string, fn ValueHandler) Subscription {
	sub := &subscription{store: s, path: normalize(path), leafFn: fn}
	sub.cond = sync.NewCond(&sub.mu)

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	sub.enqueue(s.data[sub.path])
	s.mu.Unlock()

	go sub.run()
	return sub
}

func (s *MemoryStore) SubscribeChildren(path string, fn ChildrenHandler) Subscription {
	sub := &subscription{store: s, path: normalize(path), childFn: fn}
	sub.cond = sync.NewCond(&sub.mu)

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	sub.enqueue(s.childrenLocked(sub.path))
	s.mu.Unlock()

	go sub.run()
	return sub
}

// NewID builds a push id: zero-padded hex millisecond prefix plus a local
// sequence number, so ids issued by one store sort in creation order even
// within the same millisecond, plus a random suffix against collisions
// between stores.
func (s *MemoryStore) NewID() string {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	return fmt.Sprintf("%012x%04x-%s", s.now().UnixMilli(), seq&0xffff, uuid.NewString()[:8])
}

func (s *MemoryStore) Connect() Conn {
	return &memoryConn{store: s, fallbacks: make(map[string]any)}
}

type mutation struct {
	path    string
	value   json.RawMessage
	deleted bool
}

func (s *MemoryStore) commit(muts []mutation, hooks bool) {
	s.mu.Lock()
	s.commitLocked(muts)
	s.mu.Unlock()
	if hooks {
		s.runHooks(muts)
	}
}

func (s *MemoryStore) commitLocked(muts []mutation) {
	for _, m := range muts {
		if m.deleted {
			delete(s.data, m.path)
		} else {
			s.data[m.path] = m.value
		}
	}
	for sub := range s.subs {
		for _, m := range muts {
			if sub.matchesLeaf(m.path) {
				sub.enqueue(s.data[m.path])
				break
			}
			if sub.matchesChildren(m.path) {
				sub.enqueue(s.childrenLocked(sub.path))
				break
			}
		}
	}
}

func (s *MemoryStore) runHooks(muts []mutation) {
	s.mu.Lock()
	hooks := make([]func(Change), len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	for _, m := range muts {
		c := Change{Path: m.path}
		if !m.deleted {
			c.Value = m.value
		}
		for _, fn := range hooks {
			fn(c)
		}
	}
}

func (s *MemoryStore) childrenLocked(path string) map[string]json.RawMessage {
	prefix := path + "/"
	children := make(map[string]json.RawMessage)
	for k, v := range s.data {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]
		if strings.Contains(rest, "/") {
			continue
		}
		children[rest] = v
	}
	return children
}

func (s *MemoryStore) remove(sub *subscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

// subscription carries its own FIFO queue and dispatch goroutine so delivery
// order per subscriber matches commit order.
type subscription struct {
	store   *MemoryStore
	path    string
	leafFn  ValueHandler
	childFn ChildrenHandler

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []any
	closed bool
}

func (sub *subscription) matchesLeaf(changed string) bool {
	return sub.leafFn != nil && sub.path == changed
}

func (sub *subscription) matchesChildren(changed string) bool {
	if sub.childFn == nil {
		return false
	}
	i := strings.LastIndexByte(changed, '/')
	return i >= 0 && changed[:i] == sub.path
}

func (sub *subscription) enqueue(item any) {
	sub.mu.Lock()
	if !sub.closed {
		sub.queue = append(sub.queue, item)
		sub.cond.Signal()
	}
	sub.mu.Unlock()
}

func (sub *subscription) run() {
	for {
		sub.mu.Lock()
		for len(sub.queue) == 0 && !sub.closed {
			sub.cond.Wait()
		}
		if sub.closed {
			sub.mu.Unlock()
			return
		}
		item := sub.queue[0]
		sub.queue = sub.queue[1:]
		sub.mu.Unlock()

		switch v := item.(type) {
		case json.RawMessage:
			sub.leafFn(v)
		case nil:
			sub.leafFn(nil)
		case map[string]json.RawMessage:
			sub.childFn(v)
		}
	}
}

func (sub *subscription) Cancel() {
	sub.store.remove(sub)
	sub.mu.Lock()
	sub.closed = true
	sub.queue = nil
	sub.cond.Broadcast()
	sub.mu.Unlock()
}

// memoryConn tracks disconnect fallbacks for one client connection. Values
// are kept unencoded so ServerTimestamp markers resolve when the fallback
// fires, not when it was registered.
type memoryConn struct {
	store *MemoryStore

	mu        sync.Mutex
	fallbacks map[string]any
	done      bool
}

func (c *memoryConn) OnDisconnectWrite(path string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return fmt.Errorf("realtime: connection already disconnected")
	}
	c.fallbacks[normalize(path)] = value
	return nil
}

func (c *memoryConn) CancelDisconnect(path string) {
	c.mu.Lock()
	delete(c.fallbacks, normalize(path))
	c.mu.Unlock()
}

func (c *memoryConn) Disconnect() {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	pending := c.fallbacks
	c.fallbacks = nil
	c.mu.Unlock()

	for path, value := range pending {
		// Fallbacks are best-effort; the write cannot fail on a live store.
		_ = c.store.Write(context.Background(), path, value)
	}
}

func normalize(path string) string {
	return strings.Trim(path, "/")
}

// encode marshals value after replacing ServerTimestamp markers with now.
func encode(value any, now int64) (json.RawMessage, error) {
	return json.Marshal(resolveMarkers(value, now))
}

func resolveMarkers(value any, now int64) any {
	switch v := value.(type) {
	case serverTimestamp:
		return now
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, vv := range v {
			out[k] = resolveMarkers(vv, now)
		}
		return out
	default:
		return value
	}
}
