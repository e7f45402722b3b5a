package mqtt

import "log"

// bufferedMsg stores a serialized MQTT message for replay once the broker
// is reachable.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages while the broker is unreachable, oldest first.
// A retained message replaces any retained message already queued for the
// same topic, since the broker would only keep the last one. When full the
// oldest message is dropped.
// Not safe for concurrent use; the caller must synchronize.
type outbox struct {
	msgs     []bufferedMsg
	capacity int
	overflow bool // a message was dropped since the last drain
	dropped  int  // total messages dropped since creation
}

func newOutbox(capacity int) *outbox {
	return &outbox{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (o *outbox) push(msg bufferedMsg) {
	if msg.retained {
		for i, m := range o.msgs {
			if m.retained && m.topic == msg.topic {
				// Keep delivery order: the replacement goes to the back.
				o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
				o.msgs = append(o.msgs, msg)
				return
			}
		}
	}

	if len(o.msgs) == o.capacity {
		if !o.overflow {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", o.capacity)
			o.overflow = true
		}
		o.dropped++
		o.msgs = append(o.msgs[:0], o.msgs[1:]...)
	}
	o.msgs = append(o.msgs, msg)
}

func (o *outbox) drainAll() []bufferedMsg {
	if len(o.msgs) == 0 {
		return nil
	}
	result := make([]bufferedMsg, len(o.msgs))
	copy(result, o.msgs)
	o.msgs = o.msgs[:0]
	o.overflow = false
	return result
}

func (o *outbox) len() int {
	return len(o.msgs)
}
