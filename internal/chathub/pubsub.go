package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"chatgogo/minichat/internal/models"

	"github.com/redis/go-redis/v9"
)

// Broker fans chat messages out to every hub instance, including the
// publishing one.
type Broker interface {
	Publish(ctx context.Context, msg models.Message) error
	Subscribe(ctx context.Context) (<-chan models.Message, error)
	Close() error
}

// RedisBroker shares messages between server instances over Redis Pub/Sub.
type RedisBroker struct {
	Redis *redis.Client
	Topic string
}

func NewRedisBroker(rdb *redis.Client, topic string) *RedisBroker {
	return &RedisBroker{Redis: rdb, Topic: topic}
}

func (b *RedisBroker) Publish(ctx context.Context, msg models.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.Redis.Publish(ctx, b.Topic, payload).Err()
}

// Subscribe listens on the broadcast topic until ctx is done.
func (b *RedisBroker) Subscribe(ctx context.Context) (<-chan models.Message, error) {
	pubsub := b.Redis.Subscribe(ctx, b.Topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan models.Message)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var chatMsg models.Message
				if err := json.Unmarshal([]byte(msg.Payload), &chatMsg); err != nil {
					log.Printf("Error unmarshalling Redis message: %v", err)
					continue
				}
				select {
				case out <- chatMsg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *RedisBroker) Close() error {
	return b.Redis.Close()
}

var ErrBrokerClosed = errors.New("broker closed")

// LocalBroker delivers messages within one process. Publish never blocks:
// messages wait in an unbounded buffer until the subscriber takes them.
type LocalBroker struct {
	mu      sync.Mutex
	pending []models.Message
	wake    chan struct{}
	closed  bool
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{wake: make(chan struct{}, 1)}
}

func (b *LocalBroker) Publish(_ context.Context, msg models.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}
	b.pending = append(b.pending, msg)
	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

func (b *LocalBroker) Subscribe(ctx context.Context) (<-chan models.Message, error) {
	out := make(chan models.Message)
	go func() {
		defer close(out)
		for {
			b.mu.Lock()
			batch := b.pending
			b.pending = nil
			closed := b.closed
			b.mu.Unlock()

			for _, msg := range batch {
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
			if closed {
				return
			}
			if len(batch) > 0 {
				continue
			}
			select {
			case <-b.wake:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}
