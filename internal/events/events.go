package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	CardAdded   = "card.added"
	CardVoted   = "card.voted"
	CardMerged  = "card.merged"
	CardDeleted = "card.deleted"
	StepChanged = "step.changed"
)

// BoardEvent announces a change to a retro board so that connected clients
// can refetch without waiting for their next poll.
type BoardEvent struct {
	Type     string    `json:"type"`
	RitualID string    `json:"ritualId"`
	CardID   string    `json:"cardId,omitempty"`
	Step     string    `json:"step,omitempty"`
	Actor    string    `json:"actor,omitempty"`
	At       time.Time `json:"at"`
}

// ChannelName returns the pub/sub channel for one ritual's board.
func ChannelName(namespace, ritualID string) string {
	return fmt.Sprintf("%s:ritual:%s:events", namespace, ritualID)
}

// RedisBroker publishes and subscribes to board events over Redis pub/sub.
// Delivery is at-most-once; clients still poll for the authoritative state.
type RedisBroker struct {
	rdb       *redis.Client
	namespace string
}

func NewRedisBroker(opts *redis.Options, namespace string) (*RedisBroker, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}
	return &RedisBroker{
		rdb:       redis.NewClient(opts),
		namespace: namespace,
	}, nil
}

func (b *RedisBroker) Close() error {
	return b.rdb.Close()
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func (b *RedisBroker) Publish(ctx context.Context, evt BoardEvent) error {
	if evt.RitualID == "" {
		return fmt.Errorf("board event %s has no ritual id", evt.Type)
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal board event: %w", err)
	}
	if err := b.rdb.Publish(ctx, ChannelName(b.namespace, evt.RitualID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish board event: %w", err)
	}
	return nil
}

// Subscription is a live feed of one ritual's board events. Close must be
// called when done; cancelling the subscribe context also ends it.
type Subscription struct {
	events <-chan BoardEvent
	errors <-chan error
	cancel func()
	once   sync.Once
}

func (s *Subscription) Events() <-chan BoardEvent {
	return s.events
}

// Errors reports undecodable messages. The subscription skips them and
// keeps running.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so events
// published after it returns are not missed.
func (b *RedisBroker) Subscribe(ctx context.Context, ritualID string) (*Subscription, error) {
	pubsub := b.rdb.Subscribe(ctx, ChannelName(b.namespace, ritualID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to ritual %s: %w", ritualID, err)
	}

	eventsChan := make(chan BoardEvent, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var evt BoardEvent
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal board event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- evt:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancel,
	}, nil
}
