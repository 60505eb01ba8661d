package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"metalrates/internal/logger"
)

// DefaultChannel is the Redis pub/sub channel carrying snapshots.
const DefaultChannel = "metalrates:snapshots"

type envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Relay shares snapshots between server instances over Redis pub/sub.
// Publish sends to Redis; Run delivers everything on the channel, including
// this instance's own messages, to the local hub.
type Relay struct {
	client  *redis.Client
	channel string
	hub     *Hub

	ready     chan struct{}
	readyOnce sync.Once
}

func NewRelay(client *redis.Client, channel string, hub *Hub) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{client: client, channel: channel, hub: hub, ready: make(chan struct{})}
}

// Ready is closed once Redis has confirmed the first subscription. Messages
// published before that may never reach the local hub.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// Publish implements poller.Publisher. If Redis is unreachable the payload
// is delivered locally so this instance's clients still see it.
func (r *Relay) Publish(topic string, payload []byte) {
	msg, err := json.Marshal(envelope{Topic: topic, Payload: payload})
	if err != nil {
		logger.Error("relay: marshal %s: %v", topic, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		logger.Error("relay: publish %s: %v", topic, err)
		r.hub.Publish(topic, payload)
	}
}

// Run subscribes to the channel and forwards messages until ctx is canceled,
// resubscribing if the connection drops.
func (r *Relay) Run(ctx context.Context) {
	for {
		pubsub := r.client.Subscribe(ctx, r.channel)
		if err := r.confirm(ctx, pubsub); err != nil {
			_ = pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			logger.Error("relay: subscribe %s: %v", r.channel, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		r.readyOnce.Do(func() { close(r.ready) })
		ch := pubsub.Channel()

	recv:
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					logger.Error("relay: bad message on %s: %v", r.channel, err)
					continue
				}
				r.hub.Publish(env.Topic, env.Payload)
			}
		}
		_ = pubsub.Close()

		// Avoid tight loop if Redis connection drops
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// confirm blocks until Redis acknowledges the subscription.
func (r *Relay) confirm(ctx context.Context, pubsub *redis.PubSub) error {
	for {
		msg, err := pubsub.Receive(ctx)
		if err != nil {
			return err
		}
		if sub, ok := msg.(*redis.Subscription); ok && sub.Kind == "subscribe" {
			return nil
		}
	}
}
