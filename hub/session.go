package hub

import (
	"pulsehub/protocol"
	"pulsehub/transport"
)

// session is one peer connection and its protocol state. The registered
// flag is only touched on the hub run loop.
type session struct {
	conn       *transport.Conn
	registered bool
}

// attach hands a fresh connection to the run loop and starts its read
// pump.
func (h *Hub) attach(conn *transport.Conn) {
	sess := &session{conn: conn}

	select {
	case h.attachCh <- sess:
	case <-h.stopCh:
		conn.Close()
		return
	}

	go h.readPump(sess)
}

// readPump forwards inbound frames to the run loop until the connection
// closes, then requests detach.
func (h *Hub) readPump(sess *session) {
	for data := range sess.conn.Recv() {
		select {
		case h.inCh <- inbound{sess: sess, data: data}:
		case <-h.stopCh:
			return
		}
	}

	select {
	case h.detachCh <- sess:
	case <-h.stopCh:
	}
}

// dispatch handles one inbound frame on the run loop.
func (h *Hub) dispatch(sess *session, data []byte) {
	msg, err := protocol.Parse(data)
	if err != nil {
		// Protocol-level failure: log and drop, connection state is
		// unchanged.
		h.log.Warn("dropping bad frame", map[string]interface{}{
			"remote": sess.conn.RemoteAddr(),
			"error":  err.Error(),
		})
		return
	}

	switch {
	case msg.Register != nil:
		h.handleRegister(sess, msg.Register)
	case msg.Heartbeat != nil:
		if !sess.registered {
			// Before registration only register is accepted.
			h.log.Debug("heartbeat before registration ignored", map[string]interface{}{
				"remote": sess.conn.RemoteAddr(),
			})
			return
		}
		h.handleHeartbeat(sess, msg.Heartbeat)
	default:
		h.log.Debug("unexpected message ignored", map[string]interface{}{
			"remote": sess.conn.RemoteAddr(),
			"type":   msg.Type(),
		})
	}
}

// handleRegister upserts the roster record, acknowledges, and broadcasts.
// A repeat register on the same connection behaves identically to the
// first.
func (h *Hub) handleRegister(sess *session, reg *protocol.Register) {
	id := reg.ID

	// A re-register on an already-bound connection must leave the
	// connection bound to exactly one record: an empty id resolves to the
	// record already held, a new id replaces it.
	if sess.registered {
		if prevID, ok := h.store.IDByOwner(sess.conn); ok {
			if id == "" {
				id = prevID
			} else if id != prevID {
				h.store.RemoveByOwner(sess.conn)
			}
		}
	}

	rec, displaced := h.store.Upsert(id, reg.Name, reg.Location, sess.conn)
	sess.registered = true

	// Another connection held this id: the new registration wins and the
	// old connection is closed so it does not linger as an unregistered
	// broadcast target.
	if displaced != nil {
		for other := range h.sessions {
			if other.conn == displaced {
				h.log.Warn("id re-registered from new connection", map[string]interface{}{
					"id":  rec.ID,
					"old": other.conn.RemoteAddr(),
					"new": sess.conn.RemoteAddr(),
				})
				delete(h.sessions, other)
				other.conn.Close()
				break
			}
		}
	}

	ack, err := protocol.NewRegistered(rec.ID, h.store.Len()).Marshal()
	if err == nil {
		sess.conn.Send(ack)
	}

	h.log.Info("peer registered", map[string]interface{}{
		"id":       rec.ID,
		"name":     rec.Name,
		"location": rec.Location,
		"platform": reg.Platform,
		"total":    h.store.Len(),
	})
	h.publishEvent(SubjectJoin, rec)
	h.broadcast()
}

// handleHeartbeat touches the record and acks unconditionally; the peer
// cannot tell from the ack whether it is still tracked.
func (h *Hub) handleHeartbeat(sess *session, hb *protocol.Heartbeat) {
	if h.store.Touch(hb.ID) {
		h.log.Debug("heartbeat", map[string]interface{}{"id": hb.ID})
	} else {
		h.log.Debug("heartbeat for unknown id", map[string]interface{}{"id": hb.ID})
	}

	ack, err := protocol.NewHeartbeatAck(h.store.Now().UnixMilli()).Marshal()
	if err == nil {
		sess.conn.Send(ack)
	}
}
