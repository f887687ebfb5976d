package mqttclient

import (
	"context"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler processes one inbound message. Returning an error only logs
// it; a bad message must never take the subscription down.
type Handler func(topic string, msg mqtt.Message) error

// IConsumer subscribes to one or more topics and dispatches messages.
type IConsumer interface {
	Consume(ctx context.Context)
	SetHandler(h Handler)
}

// Consumer subscribes a set of topics at a fixed QoS with a shared
// handler.
type Consumer struct {
	client  mqtt.Client
	topics  []string
	qos     byte
	handler Handler
}

var _ IConsumer = (*Consumer)(nil)

func NewConsumer(client mqtt.Client, qos byte, handler Handler, topics ...string) *Consumer {
	return &Consumer{client: client, topics: topics, qos: qos, handler: handler}
}

func (c *Consumer) SetHandler(h Handler) { c.handler = h }

// Consume subscribes and blocks until ctx is cancelled, then
// unsubscribes.
func (c *Consumer) Consume(ctx context.Context) {
	for _, topic := range c.topics {
		topic := topic
		token := c.client.Subscribe(topic, c.qos, func(_ mqtt.Client, msg mqtt.Message) {
			if c.handler == nil {
				log.Printf("mqtt: no handler for topic %s", topic)
				return
			}
			if err := c.handler(msg.Topic(), msg); err != nil {
				log.Printf("mqtt: handler error on %s: %v", msg.Topic(), err)
			}
		})
		if token.Wait() && token.Error() != nil {
			log.Printf("mqtt: subscribe %s failed: %v", topic, token.Error())
			continue
		}
		log.Printf("mqtt: subscribed to %s", topic)
	}

	<-ctx.Done()

	for _, topic := range c.topics {
		c.client.Unsubscribe(topic).Wait()
	}
}
