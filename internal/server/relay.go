package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

const relayChannel = "cards:events"

// hubEvent is a change notification routed to the subscribers of one topic.
// Room events carry no payload; every subscriber gets its own view rendered
// at dispatch time. Video events carry the message to forward.
type hubEvent struct {
	Topic    string          `json:"topic"`
	Action   string          `json:"action"`
	Target   string          `json:"target,omitempty"`
	Exclude  string          `json:"exclude,omitempty"`
	SignalID string          `json:"signal_id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type relay interface {
	Publish(ctx context.Context, event hubEvent) error
}

// localRelay hands events straight to this process's hub.
type localRelay struct {
	hub *wsHub
}

func (r localRelay) Publish(_ context.Context, event hubEvent) error {
	r.hub.enqueue(event)
	return nil
}

// redisRelay fans events out to every replica over pub/sub. Each replica,
// this one included, delivers them from its subscription loop.
type redisRelay struct {
	client *redis.Client
	hub    *wsHub
}

func newRedisRelay(client *redis.Client, hub *wsHub) *redisRelay {
	return &redisRelay{client: client, hub: hub}
}

func (r *redisRelay) Publish(ctx context.Context, event hubEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, relayChannel, data).Err()
}

func (r *redisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, relayChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	log.Printf("relay subscribed channel=%s", relayChannel)
	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event hubEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("relay decode failed error=%v", err)
				continue
			}
			r.hub.enqueue(event)
		}
	}
}
