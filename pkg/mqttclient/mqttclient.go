// Package mqttclient wraps the paho MQTT client with retrying
// connection setup, TLS and a last-will message.
package mqttclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	ClientID  string
	Keepalive time.Duration

	TLS      bool
	CACert   string
	CertFile string
	KeyFile  string

	// Last will, published retained by the broker on an ungraceful
	// disconnect. Empty WillTopic disables it.
	WillTopic   string
	WillPayload string
}

// NewConn connects to the broker, retrying with exponential backoff.
// The connection is closed when ctx is cancelled.
func NewConn(ctx context.Context, cfg *Config) (mqtt.Client, error) {
	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	connAddr := fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(connAddr)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	if cfg.Keepalive > 0 {
		opts.SetKeepAlive(cfg.Keepalive)
	}
	if cfg.WillTopic != "" {
		opts.SetWill(cfg.WillTopic, cfg.WillPayload, 1, true)
	}
	if cfg.TLS {
		tlsCfg, err := newTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("tls setup: %w", err)
		}
		opts.SetTLSConfig(tlsCfg)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	const maxRetries = 5

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("mqtt: connect to %s failed: %v", connAddr, token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries-1), ctx))
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}

	log.Printf("mqtt: connected to %s", connAddr)

	go func() {
		<-ctx.Done()
		if client.IsConnected() {
			client.Disconnect(250)
			log.Println("mqtt: connection closed")
		}
	}()

	return client, nil
}

func newTLSConfig(cfg *Config) (*tls.Config, error) {
	tlsCfg := &tls.Config{}
	if cfg.CACert != "" {
		pem, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CACert)
		}
		tlsCfg.RootCAs = pool
	}
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

// Close disconnects gracefully (after any pending publishes).
func Close(client mqtt.Client) {
	if client != nil && client.IsConnected() {
		client.Disconnect(500)
		log.Println("mqtt: disconnected")
	}
}
