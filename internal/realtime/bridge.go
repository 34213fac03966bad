package realtime

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// envelope is the wire format for one replicated change.
type envelope struct {
	Origin  string          `json:"origin"`
	Path    string          `json:"path"`
	Value   json.RawMessage `json:"value,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
}

// Bridge replicates MemoryStore changes between server instances over a Redis
// pub/sub channel. Every instance publishes its local mutations and applies
// everyone else's, so all stores converge on the same tree.
type Bridge struct {
	store   *MemoryStore
	rdb     *redis.Client
	channel string
	origin  string
}

// NewBridge wires the store's change feed to rdb. Run must be called before
// remote changes are received; publishing starts immediately.
func NewBridge(store *MemoryStore, rdb *redis.Client, channel string) *Bridge {
	b := &Bridge{
		store:   store,
		rdb:     rdb,
		channel: channel,
		origin:  uuid.New().String(),
	}
	store.OnChange(b.publish)
	return b
}

// Run subscribes to the replication channel and applies remote changes until
// ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	pubsub := b.rdb.Subscribe(ctx, b.channel)

	go func() {
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.Printf("ERROR: bridge: bad replication payload: %v", err)
					continue
				}
				if env.Origin == b.origin {
					continue
				}
				b.store.ApplyReplica(env.Path, env.Value, env.Deleted)
			}
		}
	}()
}

func (b *Bridge) publish(c Change) {
	env := envelope{
		Origin:  b.origin,
		Path:    c.Path,
		Value:   c.Value,
		Deleted: c.Value == nil,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		log.Printf("ERROR: bridge: marshal change for %s: %v", c.Path, err)
		return
	}
	if err := b.rdb.Publish(context.Background(), b.channel, payload).Err(); err != nil {
		log.Printf("ERROR: bridge: publish change for %s: %v", c.Path, err)
	}
}
