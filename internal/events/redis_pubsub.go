package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// historySuffix names the capped stream that keeps recent events of a channel.
const historySuffix = ":log"

// History serves recently published events, newest last.
type History interface {
	Recent(ctx context.Context, stream string, n int64) ([]Event, error)
}

type RedisPublisher struct {
	client *redis.Client
	retain int64 // approximate length of the history stream
	log    *zap.Logger
}

func NewRedisPublisher(client *redis.Client, retain int64, log *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, retain: retain, log: log}
}

// Publish fans event out on the channel and appends it to the channel history
// in one round trip.
func (p *RedisPublisher) Publish(ctx context.Context, stream string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	pipe := p.client.TxPipeline()
	pipe.Publish(ctx, stream, string(data))
	if p.retain > 0 {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: stream + historySuffix,
			MaxLen: p.retain,
			Approx: true,
			Values: map[string]any{"type": event.Type, "event": string(data)},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.Warn("failed to publish event", zap.String("stream", stream), zap.String("type", event.Type), zap.Error(err))
		return err
	}
	return nil
}

type RedisSubscriber struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisSubscriber(client *redis.Client, log *zap.Logger) *RedisSubscriber {
	return &RedisSubscriber{client: client, log: log}
}

func (s *RedisSubscriber) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	pubsub := s.client.Subscribe(ctx, stream)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					s.log.Error("failed to unmarshal event", zap.Error(err))
					continue
				}
				handler(event)
			}
		}
	}()

	return nil
}

func (s *RedisSubscriber) Recent(ctx context.Context, stream string, n int64) ([]Event, error) {
	msgs, err := s.client.XRevRangeN(ctx, stream+historySuffix, "+", "-", n).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		raw, _ := msgs[i].Values["event"].(string)
		var event Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			s.log.Warn("skipping malformed history entry", zap.String("id", msgs[i].ID), zap.Error(err))
			continue
		}
		out = append(out, event)
	}
	return out, nil
}
