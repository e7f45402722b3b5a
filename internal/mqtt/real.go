package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/launch-controller/internal/logic"
)

const (
	// bufferCapacity is how many events are held while the broker is unreachable.
	bufferCapacity = 256

	publishTimeout = 5 * time.Second
)

// RealPublisher publishes to an actual MQTT broker.
// It never blocks the caller on the broker: events published while
// disconnected are buffered and replayed, oldest first, on (re)connect.
// Countdown telemetry is not buffered; a stale countdown is useless.
type RealPublisher struct {
	client paho.Client

	mu            sync.Mutex
	buf           *outbox
	everConnected bool
}

// NewRealPublisher creates a publisher for the given broker and starts
// connecting in the background.
func NewRealPublisher(broker, clientID string) (*RealPublisher, error) {
	if broker == "" {
		return nil, fmt.Errorf("no broker configured")
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	p := &RealPublisher{buf: newOutbox(bufferCapacity)}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetConnectTimeout(10*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	// With ConnectRetry the token only completes once connected, so it is
	// not waited on.
	p.client.Connect()

	return p, nil
}

// onConnect replays buffered messages. Paho calls it on its own goroutine
// for the first connection and every reconnection.
func (p *RealPublisher) onConnect(_ paho.Client) {
	p.mu.Lock()
	pending := p.buf.drainAll()
	reconnect := p.everConnected
	p.everConnected = true
	p.mu.Unlock()

	log.Printf("mqtt: connected, replaying %d buffered messages", len(pending))

	// Publishing from inside the handler would block paho's router.
	go func() {
		for _, m := range pending {
			if err := p.send(m); err != nil {
				log.Printf("mqtt: replay to %s: %v", m.topic, err)
			}
		}
		if reconnect {
			if err := p.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err != nil {
				log.Printf("mqtt: publish reconnect: %v", err)
			}
		}
	}()
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Publish sends a controller event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 1: pad fire records should reach the broker
	return p.publishOrBuffer(bufferedMsg{topic: Topic, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	return p.publishOrBuffer(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// PublishCountdown sends a display value, or drops it while disconnected.
func (p *RealPublisher) PublishCountdown(c Countdown) error {
	if !p.IsConnected() {
		return nil
	}
	payload, err := FormatCountdownPayload(c)
	if err != nil {
		return fmt.Errorf("format countdown payload: %w", err)
	}

	// QoS 0, not retained
	p.client.Publish(TopicCountdown, 0, false, payload)
	return nil
}

// publishOrBuffer never waits for the broker; it is called from the
// control loop. Delivery failures are logged when the token completes.
func (p *RealPublisher) publishOrBuffer(m bufferedMsg) error {
	if !p.IsConnected() {
		p.mu.Lock()
		p.buf.push(m)
		p.mu.Unlock()
		return nil
	}
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	go func() {
		if err := wait(m.topic, token); err != nil {
			log.Printf("mqtt: %v", err)
		}
	}()
	return nil
}

func (p *RealPublisher) send(m bufferedMsg) error {
	return wait(m.topic, p.client.Publish(m.topic, m.qos, m.retained, m.payload))
}

func wait(topic string, token paho.Token) error {
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.mu.Lock()
	unsent, dropped := p.buf.len(), p.buf.dropped
	p.mu.Unlock()
	if unsent > 0 || dropped > 0 {
		log.Printf("mqtt: closing with %d unsent messages (%d dropped while offline)", unsent, dropped)
	}

	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
