// Package notifier maintains the set of live websocket observers and fans task
// state changes out to them. Delivery is at-most-once per observer: a peer that
// errors on send is dropped and has to reconnect for a fresh snapshot.
package notifier

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jcallum/medley/internal/models"
)

// conn wraps a websocket connection with a write lock so snapshot unicasts and
// broadcasts never interleave frames on the same peer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// Notifier is the observer fan-out hub.
type Notifier struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]*conn
}

func New() *Notifier {
	return &Notifier{
		conns: map[*websocket.Conn]*conn{},
	}
}

// Connect adds an upgraded websocket connection to the live set.
func (n *Notifier) Connect(ws *websocket.Conn) {
	n.mu.Lock()
	n.conns[ws] = &conn{ws: ws}
	n.mu.Unlock()

	log.Debug().Str("peer", ws.RemoteAddr().String()).Msg("observer connected")
}

// ConnectWithSnapshot registers a connection and delivers its initial snapshot
// as one step. The connection joins the broadcast set with its write lock
// already held, so a concurrent broadcast blocks until the snapshot frame is on
// the wire; the snapshot itself is taken after registration, so no state change
// can fall between the two. A failed snapshot send tears the connection down.
func (n *Notifier) ConnectWithSnapshot(ws *websocket.Conn, snapshot func() []models.Task) error {
	c := &conn{ws: ws}
	c.mu.Lock()

	n.mu.Lock()
	n.conns[ws] = c
	n.mu.Unlock()

	err := ws.WriteJSON(models.NewSnapshotMessage(snapshot()))
	c.mu.Unlock()

	if err != nil {
		n.Disconnect(ws)
		return err
	}

	log.Debug().Str("peer", ws.RemoteAddr().String()).Msg("observer connected")
	return nil
}

// Disconnect removes a connection from the live set and closes it. Safe to call
// for a connection that was already dropped.
func (n *Notifier) Disconnect(ws *websocket.Conn) {
	n.mu.Lock()
	_, exists := n.conns[ws]
	delete(n.conns, ws)
	n.mu.Unlock()

	if !exists {
		return
	}

	_ = ws.Close()
	log.Debug().Str("peer", ws.RemoteAddr().String()).Msg("observer disconnected")
}

// Count returns the number of live observers.
func (n *Notifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.conns)
}

// Broadcast sends a message to every live observer in turn. Peers that fail the
// send are collected during iteration and dropped afterwards, exactly once.
func (n *Notifier) Broadcast(msg models.WireMessage) {
	n.mu.Lock()
	conns := make([]*conn, 0, len(n.conns))
	for _, c := range n.conns {
		conns = append(conns, c)
	}
	n.mu.Unlock()

	var dead []*websocket.Conn

	for _, c := range conns {
		if err := c.writeJSON(msg); err != nil {
			log.Debug().Err(err).Str("peer", c.ws.RemoteAddr().String()).
				Msg("dropping observer after failed send")
			dead = append(dead, c.ws)
		}
	}

	for _, ws := range dead {
		n.Disconnect(ws)
	}
}
