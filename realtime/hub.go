// Package realtime pushes order events to connected websocket clients.
// Clients join rooms (order:<id>, user:<id>, shop:<id>) and receive every
// event broadcast to those rooms.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"

	"marketplace-api/middlewares"
)

func OrderRoom(id int64) string { return "order:" + strconv.FormatInt(id, 10) }
func UserRoom(id int64) string  { return "user:" + strconv.FormatInt(id, 10) }
func ShopRoom(id int64) string  { return "shop:" + strconv.FormatInt(id, 10) }

// Envelope is one broadcast: a JSON payload and the rooms it goes to.
type Envelope struct {
	Rooms []string        `json:"rooms"`
	Data  json.RawMessage `json:"data"`
}

// Relay fans envelopes out to every instance of the service.
type Relay interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(ctx context.Context, deliver func(Envelope)) error
}

type Hub struct {
	rooms      map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan Envelope
	done       chan struct{}
	stopOnce   sync.Once
	relay      Relay
}

func NewHub(relay Relay) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Envelope, 64),
		done:       make(chan struct{}),
		relay:      relay,
	}
}

// Run owns the room table until ctx is cancelled or Stop is called. When a
// relay is configured it also delivers envelopes published by other instances.
func (h *Hub) Run(ctx context.Context) {
	if h.relay != nil {
		go func() {
			if err := h.relay.Subscribe(ctx, h.deliver); err != nil && ctx.Err() == nil {
				slog.Error("realtime relay stopped", slog.String("error", err.Error()))
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			h.Stop()
		case <-h.done:
			h.closeAll()
			return
		case c := <-h.register:
			for _, room := range c.rooms {
				if h.rooms[room] == nil {
					h.rooms[room] = make(map[*Client]struct{})
				}
				h.rooms[room][c] = struct{}{}
			}
			middlewares.TrackWebsocketConnection(1)
		case c := <-h.unregister:
			h.remove(c)
		case env := <-h.broadcast:
			// a client in several target rooms still gets one copy
			sent := make(map[*Client]struct{})
			for _, room := range env.Rooms {
				for c := range h.rooms[room] {
					if _, ok := sent[c]; ok {
						continue
					}
					sent[c] = struct{}{}
					select {
					case c.send <- env.Data:
					default:
						// slow consumer
						h.remove(c)
					}
				}
			}
		}
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) remove(c *Client) {
	found := false
	for _, room := range c.rooms {
		members := h.rooms[room]
		if _, ok := members[c]; !ok {
			continue
		}
		found = true
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if found {
		close(c.send)
		middlewares.TrackWebsocketConnection(-1)
	}
}

func (h *Hub) closeAll() {
	seen := make(map[*Client]struct{})
	for _, members := range h.rooms {
		for c := range members {
			seen[c] = struct{}{}
		}
	}
	for c := range seen {
		h.remove(c)
	}
}

// Join adds c to the hub. It returns false once the hub has stopped.
func (h *Hub) Join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast sends payload to rooms, through the relay when one is set so that
// clients held by other instances see it too.
func (h *Hub) Broadcast(ctx context.Context, payload any, rooms ...string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := Envelope{Rooms: rooms, Data: data}
	if h.relay != nil {
		return h.relay.Publish(ctx, env)
	}
	h.deliver(env)
	return nil
}

func (h *Hub) deliver(env Envelope) {
	select {
	case h.broadcast <- env:
	case <-h.done:
	}
}
