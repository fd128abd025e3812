// Package sse streams vault mutations to HTTP subscribers as Server-Sent
// Events. Every frame carries an id, and a reconnecting client that sends
// Last-Event-ID gets the frames it missed from a bounded history.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/vaultkeeper/internal/noteservice"
)

const (
	defaultHistory   = 64
	defaultHeartbeat = 15 * time.Second
	clientBuffer     = 64
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the broker logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) {
		b.logger = logger
	}
}

// WithHistory sets how many recent frames are kept for replay.
// Zero disables replay.
func WithHistory(n int) Option {
	return func(b *Broker) {
		b.history = max(n, 0)
	}
}

// WithHeartbeat sets the interval of keep-alive comments on open streams.
// Zero disables them.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) {
		b.heartbeat = d
	}
}

type frame struct {
	id  uint64
	raw []byte
}

// membership is a join or leave request handled by the event loop.
// done is closed once the client set reflects it.
type membership struct {
	ch    chan []byte
	after uint64
	leave bool
	done  chan struct{}
}

// Broker fans vault events out to SSE clients.
//
// The client set, the id sequence and the history are owned by a single
// event loop goroutine.
type Broker struct {
	logger    *slog.Logger
	history   int
	heartbeat time.Duration

	memberCh  chan membership
	publishCh chan Event
	clients   atomic.Int64
	lastID    atomic.Uint64

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker and starts its event loop.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		logger:    slog.Default(),
		history:   defaultHistory,
		heartbeat: defaultHeartbeat,
		memberCh:  make(chan membership),
		publishCh: make(chan Event, 256),
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var recent []frame
	var seq uint64

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			b.clients.Store(0)
			return

		case m := <-b.memberCh:
			if m.leave {
				if _, ok := clients[m.ch]; ok {
					delete(clients, m.ch)
					close(m.ch)
				}
			} else {
				for _, f := range recent {
					if m.after > 0 && f.id > m.after {
						deliver(m.ch, f.raw)
					}
				}
				clients[m.ch] = struct{}{}
			}
			b.clients.Store(int64(len(clients)))
			close(m.done)

		case event := <-b.publishCh:
			payload, err := json.Marshal(event.Data)
			if err != nil {
				b.logger.Warn("sse: encode event", slog.String("type", event.Type), slog.String("error", err.Error()))
				continue
			}
			seq++
			f := frame{id: seq, raw: fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload)}
			b.lastID.Store(seq)

			if b.history > 0 {
				recent = append(recent, f)
				if len(recent) > b.history {
					recent = recent[len(recent)-b.history:]
				}
			}
			for ch := range clients {
				deliver(ch, f.raw)
			}
		}
	}
}

// deliver drops the frame when the client is too slow to keep up.
func deliver(ch chan []byte, raw []byte) {
	select {
	case ch <- raw:
	default:
	}
}

// Close stops the event loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client that only receives new frames.
func (b *Broker) Subscribe() chan []byte {
	return b.SubscribeAfter(0)
}

// SubscribeAfter adds a client and first replays retained frames whose id
// is greater than lastID. A lastID of 0 replays nothing.
func (b *Broker) SubscribeAfter(lastID uint64) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if !b.membership(membership{ch: ch, after: lastID}) {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.membership(membership{ch: ch, leave: true})
}

func (b *Broker) membership(m membership) bool {
	if b.closed.Load() {
		return false
	}
	m.done = make(chan struct{})
	select {
	case b.memberCh <- m:
	case <-b.stopped:
		return false
	}
	select {
	case <-m.done:
		return true
	case <-b.stopped:
		return false
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	return int(b.clients.Load())
}

// LastID returns the id of the most recent frame, 0 before the first one.
func (b *Broker) LastID() uint64 {
	return b.lastID.Load()
}

// Publish queues an event for all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishVaultEvent broadcasts a vault mutation as "note.<kind>".
// It matches noteservice.EventCallback.
func (b *Broker) PublishVaultEvent(ev noteservice.Event) {
	b.Publish(Event{Type: "note." + ev.Kind, Data: ev})
}

// ServeHTTP is the SSE endpoint handler (GET /events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var after uint64
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid Last-Event-ID", http.StatusBadRequest)
			return
		}
		after = id
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	clientID := uuid.NewString()
	ch := b.SubscribeAfter(after)
	defer b.Unsubscribe(ch)

	log := b.logger.With(slog.String("client_id", clientID))
	log.Debug("sse: client connected", slog.Uint64("last_event_id", after))
	defer log.Debug("sse: client disconnected")

	var tick <-chan time.Time
	if b.heartbeat > 0 {
		ticker := time.NewTicker(b.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
