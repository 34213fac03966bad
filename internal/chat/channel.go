package chat

import (
	"context"
	"encoding/json"
	"sync"

	"brandlink/backend/internal/realtime"
)

// Channel wraps the store behind an owner-scoped handle registry: every
// subscription made through a Channel is tracked, so the owner can tear all
// of them down in one call instead of relying on stray closures being
// collected.
type Channel struct {
	store realtime.Store
	conn  realtime.Conn

	mu     sync.Mutex
	subs   map[realtime.Subscription]struct{}
	closed bool
}

// NewChannel builds a Channel over store. conn may be nil for owners that
// never register disconnect fallbacks (aggregators, tests).
func NewChannel(store realtime.Store, conn realtime.Conn) *Channel {
	return &Channel{
		store: store,
		conn:  conn,
		subs:  make(map[realtime.Subscription]struct{}),
	}
}

// Subscribe watches a leaf value; the handle is tracked until unsubscribed.
func (c *Channel) Subscribe(path string, fn realtime.ValueHandler) realtime.Subscription {
	return c.track(func() realtime.Subscription { return c.store.Subscribe(path, fn) })
}

// SubscribeChildren watches a collection; the handle is tracked until unsubscribed.
func (c *Channel) SubscribeChildren(path string, fn realtime.ChildrenHandler) realtime.Subscription {
	return c.track(func() realtime.Subscription { return c.store.SubscribeChildren(path, fn) })
}

func (c *Channel) track(subscribe func() realtime.Subscription) realtime.Subscription {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return noopSubscription{}
	}
	sub := subscribe()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()
	return sub
}

// Unsubscribe cancels a handle. Safe to call more than once, and with
// handles this Channel never issued.
func (c *Channel) Unsubscribe(sub realtime.Subscription) {
	if sub == nil {
		return
	}
	c.mu.Lock()
	delete(c.subs, sub)
	c.mu.Unlock()
	sub.Cancel()
}

// Close cancels every live subscription made through this Channel.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for sub := range subs {
		sub.Cancel()
	}
}

func (c *Channel) Get(path string) (json.RawMessage, error) { return c.store.Get(path) }

func (c *Channel) GetChildren(path string) (map[string]json.RawMessage, error) {
	return c.store.GetChildren(path)
}

func (c *Channel) Write(ctx context.Context, path string, value any) error {
	return c.store.Write(ctx, path, value)
}

func (c *Channel) Update(ctx context.Context, path string, fields map[string]any) error {
	return c.store.Update(ctx, path, fields)
}

func (c *Channel) BatchUpdate(ctx context.Context, updates map[string]map[string]any) error {
	return c.store.BatchUpdate(ctx, updates)
}

func (c *Channel) Delete(ctx context.Context, path string) error {
	return c.store.Delete(ctx, path)
}

func (c *Channel) NewID() string { return c.store.NewID() }

// OnDisconnectWrite installs a server-side fallback write on the owning
// connection. No-op without a connection.
func (c *Channel) OnDisconnectWrite(path string, value any) error {
	if c.conn == nil {
		return nil
	}
	return c.conn.OnDisconnectWrite(path, value)
}

// CancelDisconnect removes a previously installed fallback.
func (c *Channel) CancelDisconnect(path string) {
	if c.conn != nil {
		c.conn.CancelDisconnect(path)
	}
}

type noopSubscription struct{}

func (noopSubscription) Cancel() {}
