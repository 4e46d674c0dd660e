// Package sse implements a Server-Sent Events broker that streams tree changes.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event types sent to clients.
const (
	TypeItemCreated    = "item.created"
	TypeItemUpdated    = "item.updated"
	TypeItemDeleted    = "item.deleted"
	TypeTreeLoaded     = "tree.loaded"
	TypeOutlineUpdated = "outline.updated"
)

var kindTypes = map[string]string{
	"created": TypeItemCreated,
	"updated": TypeItemUpdated,
	"deleted": TypeItemDeleted,
	"loaded":  TypeTreeLoaded,
}

// Event is one message on the stream. Tree scopes delivery: clients subscribed to another
// tree do not receive it, and an empty Tree reaches everyone.
type Event struct {
	Type string `json:"type"`
	Tree string `json:"-"`
	Data any    `json:"data"`
}

// TreeData is the payload of item and tree events.
type TreeData struct {
	Tree string `json:"tree"`
	Path string `json:"path,omitempty"`
}

type subscription struct {
	ch   chan []byte
	tree string
}

// Broker fans tree events out to SSE clients.
//
// A single loop goroutine owns the client set and the per-tree outline throttle; the public
// methods only talk to it over channels.
type Broker struct {
	outlineMin time.Duration
	keepAlive  time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker. outline.updated is sent at most once per outlineThrottle for
// each tree.
func NewBroker(outlineThrottle time.Duration) *Broker {
	if outlineThrottle <= 0 {
		outlineThrottle = 2 * time.Second
	}

	b := &Broker{
		outlineMin:    outlineThrottle,
		keepAlive:     25 * time.Second,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.loop()
	return b
}

func format(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("id: %s\nevent: %s\ndata: %s\n\n", uuid.NewString(), event.Type, payload)), nil
}

func (b *Broker) loop() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastOutline := make(map[string]time.Time)

	send := func(event Event) {
		raw, err := format(event)
		if err != nil {
			return
		}
		for ch, tree := range clients {
			if tree != "" && event.Tree != "" && tree != event.Tree {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; drop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.tree

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			send(event)
			if event.Tree == "" || !isChange(event.Type) {
				continue
			}
			now := time.Now()
			if now.Sub(lastOutline[event.Tree]) >= b.outlineMin {
				lastOutline[event.Tree] = now
				send(Event{Type: TypeOutlineUpdated, Tree: event.Tree, Data: TreeData{Tree: event.Tree}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

func isChange(typ string) bool {
	for _, t := range kindTypes {
		if t == typ {
			return true
		}
	}
	return false
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client. tree limits delivery to one tree; "" receives all of them.
func (b *Broker) Subscribe(tree string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, tree: tree}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish queues an event for delivery. Item and tree events on a named tree also produce
// a throttled outline.updated for that tree.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishTreeEvent maps a tree service change (created, updated, deleted or loaded) to its
// stream event. Unknown kinds are ignored.
func (b *Broker) PublishTreeEvent(tree, kind, path string) {
	typ, ok := kindTypes[kind]
	if !ok {
		return
	}
	b.Publish(Event{Type: typ, Tree: tree, Data: TreeData{Tree: tree, Path: path}})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events[?tree=name]).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("tree"))
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
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
