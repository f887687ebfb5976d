package mqttclient

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher publishes messages with explicit QoS and retain flags.
type IPublisher interface {
	Publish(topic string, qos byte, retain bool, payload string) error
	Close()
}

type Publisher struct {
	client mqtt.Client
}

var _ IPublisher = (*Publisher)(nil)

func NewPublisher(client mqtt.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(topic string, qos byte, retain bool, payload string) error {
	token := p.client.Publish(topic, qos, retain, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", topic, token.Error())
	}
	return nil
}

func (p *Publisher) Close() {
	Close(p.client)
}
