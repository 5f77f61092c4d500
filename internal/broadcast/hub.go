package broadcast

import (
	"log/slog"
	"sync"

	"github.com/anonroom/anonroom/internal/domain"
	"github.com/anonroom/anonroom/internal/metrics"
)

const (
	publishBuffer    = 256
	subscriberBuffer = 64
)

// Broadcaster is the room-scoped publish/subscribe abstraction. Delivery is
// at-most-once and best-effort: no replay, no cross-channel ordering, but
// per-channel delivery order matches publish order. The concrete transport is
// swappable behind this interface.
type Broadcaster interface {
	Subscribe(channel string) *Subscription
	Publish(channel string, event domain.Event)
}

// Subscription is a handle on one subscriber of one channel. Events arrive on
// C; Close detaches the subscriber and eventually closes C.
type Subscription struct {
	C chan domain.Event

	channel string
	hub     *Hub
	once    sync.Once
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s.channel, s)
	})
}

// Hub is the self-hosted single-process Broadcaster: one lazily created
// fan-out goroutine per channel, so per-channel delivery order follows
// publish order.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]*channelHub
	log      *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		channels: make(map[string]*channelHub),
		log:      log,
	}
}

func (h *Hub) Subscribe(channel string) *Subscription {
	sub := &Subscription{
		C:       make(chan domain.Event, subscriberBuffer),
		channel: channel,
		hub:     h,
	}
	h.getChannel(channel).register <- sub
	metrics.BroadcastSubscribers.Inc()
	return sub
}

// Publish is non-blocking relative to the caller: the event is queued on the
// channel's bounded buffer and dropped with a log line on backpressure. The
// triggering write has already succeeded and clients recover via fetch.
func (h *Hub) Publish(channel string, event domain.Event) {
	ch := h.getChannel(channel)
	select {
	case ch.publish <- event:
		metrics.BroadcastEventsTotal.Inc()
	default:
		metrics.BroadcastDroppedTotal.Inc()
		h.log.Warn("broadcast buffer full, dropping event",
			slog.String("channel", channel),
			slog.String("type", event.Type),
		)
	}
}

func (h *Hub) unsubscribe(channel string, sub *Subscription) {
	h.mu.RLock()
	ch := h.channels[channel]
	h.mu.RUnlock()
	if ch == nil {
		return
	}
	ch.unregister <- sub
}

func (h *Hub) getChannel(channel string) *channelHub {
	h.mu.RLock()
	ch := h.channels[channel]
	h.mu.RUnlock()
	if ch != nil {
		return ch
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	ch = h.channels[channel]
	if ch != nil {
		return ch
	}
	ch = newChannelHub()
	h.channels[channel] = ch
	go ch.run()
	return ch
}

type channelHub struct {
	subscribers map[*Subscription]bool
	register    chan *Subscription
	unregister  chan *Subscription
	publish     chan domain.Event
}

func newChannelHub() *channelHub {
	return &channelHub{
		subscribers: make(map[*Subscription]bool),
		register:    make(chan *Subscription),
		unregister:  make(chan *Subscription),
		publish:     make(chan domain.Event, publishBuffer),
	}
}

func (ch *channelHub) run() {
	for {
		select {
		case sub := <-ch.register:
			ch.subscribers[sub] = true
		case sub := <-ch.unregister:
			if _, ok := ch.subscribers[sub]; ok {
				delete(ch.subscribers, sub)
				close(sub.C)
				metrics.BroadcastSubscribers.Dec()
			}
		case event := <-ch.publish:
			for sub := range ch.subscribers {
				select {
				case sub.C <- event:
				default:
					// slow consumer, cut it loose rather than stall the room
					delete(ch.subscribers, sub)
					close(sub.C)
					metrics.BroadcastSubscribers.Dec()
					metrics.BroadcastDroppedTotal.Inc()
				}
			}
		}
	}
}
