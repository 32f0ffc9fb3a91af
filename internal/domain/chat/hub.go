package chat

import (
	"context"
	"encoding/json"
	"expvar"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// EventType of a change feed event
type EventType string

const (
	EventMessageInserted   EventType = "message_inserted"
	EventMembershipChanged EventType = "membership_changed"
	EventMessageRead       EventType = "message_read"
)

// Redis channel shared by all instances
const eventsChannel = "chat:events"

const subscriberBuffer = 64

var (
	feedSubscribersGauge   = expvar.NewInt("chat_feed_subscribers")
	feedEventsSentTotal    = expvar.NewInt("chat_feed_events_sent_total")
	feedEventsDroppedTotal = expvar.NewInt("chat_feed_events_dropped_total")
)

// Event is a change notification. UserIDs lists the users whose
// conversation list is affected.
type Event struct {
	Type      EventType   `json:"type"`
	RoomID    uuid.UUID   `json:"room_id"`
	UserIDs   []uuid.UUID `json:"user_ids"`
	MessageID uuid.UUID   `json:"message_id,omitempty"`
	At        time.Time   `json:"at"`
}

// Filter scopes a subscription by room, by user, or both.
// A zero Filter receives every event.
type Filter struct {
	RoomID uuid.UUID
	UserID uuid.UUID
}

// Match reports whether the event falls under the filter
func (f Filter) Match(e Event) bool {
	if f.RoomID != uuid.Nil && f.RoomID != e.RoomID {
		return false
	}
	if f.UserID == uuid.Nil {
		return true
	}
	for _, id := range e.UserIDs {
		if id == f.UserID {
			return true
		}
	}
	return false
}

// EventExporter forwards events to downstream consumers
type EventExporter interface {
	Publish(ctx context.Context, key string, value []byte) error
}

type remoteEvent struct {
	Event            Event  `json:"event"`
	SenderInstanceID string `json:"sender_instance_id"`
}

type subscriber struct {
	filter Filter
	ch     chan Event
}

// Hub fans change events out to local subscribers and, through Redis
// Pub/Sub, to subscribers on other instances
type Hub struct {
	subscribers map[*subscriber]struct{}
	mu          sync.RWMutex

	redis    *redis.Client
	pubsub   *redis.PubSub
	exporter EventExporter

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc

	instanceID string
	publishFn  func(ctx context.Context, channel string, payload []byte) error
}

// NewHub creates a change feed hub. redisClient and exporter may be nil.
func NewHub(redisClient *redis.Client, exporter EventExporter) *Hub {
	return NewHubWithInstanceID(redisClient, exporter, uuid.NewString())
}

// NewHubWithInstanceID creates a hub with explicit instance identifier.
func NewHubWithInstanceID(redisClient *redis.Client, exporter EventExporter, instanceID string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		subscribers: make(map[*subscriber]struct{}),
		redis:       redisClient,
		exporter:    exporter,
		ctx:         ctx,
		cancel:      cancel,
		instanceID:  instanceID,
	}

	if redisClient != nil {
		h.pubsub = redisClient.Subscribe(ctx, eventsChannel)
		h.publishFn = func(ctx context.Context, channel string, payload []byte) error {
			return redisClient.Publish(ctx, channel, payload).Err()
		}
	}

	return h
}

// Run listens for events from other instances (call in goroutine)
func (h *Hub) Run() {
	if h.pubsub == nil {
		<-h.ctx.Done()
		return
	}

	ch := h.pubsub.Channel()
	for {
		select {
		case <-h.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.handleRemotePayload(msg.Payload)
		}
	}
}

func (h *Hub) handleRemotePayload(payload string) {
	var remote remoteEvent
	if err := json.Unmarshal([]byte(payload), &remote); err != nil {
		log.Warn().Err(err).Msg("Malformed chat event from Redis")
		return
	}
	if remote.SenderInstanceID == h.instanceID {
		return
	}
	h.dispatchLocal(remote.Event)
}

// OnChange subscribes to events matching filter. The channel is closed
// when ctx is done or the hub shuts down. Slow readers lose events.
func (h *Hub) OnChange(ctx context.Context, filter Filter) <-chan Event {
	sub := &subscriber{filter: filter, ch: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	feedSubscribersGauge.Add(1)

	go func() {
		select {
		case <-ctx.Done():
		case <-h.ctx.Done():
		}
		h.mu.Lock()
		delete(h.subscribers, sub)
		close(sub.ch)
		h.mu.Unlock()
		feedSubscribersGauge.Add(-1)
	}()

	return sub.ch
}

// Publish delivers the event locally, to other instances and to the exporter.
// It never blocks on a subscriber.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}
	log.Debug().Str("room_id", event.RoomID.String()).Str("event_type", string(event.Type)).Msg("Publishing chat event")

	h.dispatchLocal(event)

	if h.publishFn != nil {
		payload, err := json.Marshal(remoteEvent{Event: event, SenderInstanceID: h.instanceID})
		if err == nil {
			err = h.publishFn(h.ctx, eventsChannel, payload)
		}
		if err != nil {
			log.Error().Err(err).Str("channel", eventsChannel).Msg("Redis publish failed")
		}
	}

	if h.exporter != nil {
		data, err := json.Marshal(event)
		if err == nil {
			err = h.exporter.Publish(h.ctx, event.RoomID.String(), data)
		}
		if err != nil {
			log.Warn().Err(err).Str("room_id", event.RoomID.String()).Msg("Chat event export failed")
		}
	}
}

func (h *Hub) dispatchLocal(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers {
		if !sub.filter.Match(event) {
			continue
		}
		select {
		case sub.ch <- event:
			feedEventsSentTotal.Add(1)
		default:
			// Buffer full, skip this event
			feedEventsDroppedTotal.Add(1)
			log.Warn().Str("room_id", event.RoomID.String()).Msg("Chat feed subscriber buffer full")
		}
	}
}

// SubscriberCount returns number of local subscriptions
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Shutdown gracefully shuts down the hub
func (h *Hub) Shutdown() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}
}
