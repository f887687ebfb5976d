package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/flora-home/flora/internal/config"
	"github.com/flora-home/flora/internal/daemon"
	"github.com/flora-home/flora/internal/hal"
	"github.com/flora-home/flora/internal/health"
	"github.com/flora-home/flora/internal/history"
	"github.com/flora-home/flora/internal/model"
	"github.com/flora-home/flora/pkg/mqttclient"
)

func main() {
	configDir := flag.String("config_dir", ".", "directory holding config.ini / config.ini.dist")
	flag.Parse()

	// Optional .env for MQTT_USERNAME / MQTT_PASSWORD overrides.
	_ = godotenv.Load()

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("florad: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "local"
	}

	statusTopic := cfg.MQTT.BaseTopicFlora + "/status"
	// The connection outlives ctx on purpose: the offline status must
	// still go out after the engine has shut down.
	client, err := mqttclient.NewConn(context.Background(), &mqttclient.Config{
		Host:        cfg.MQTT.Hostname,
		Port:        cfg.MQTT.Port,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		ClientID:    fmt.Sprintf("florad-%s", hostname),
		Keepalive:   cfg.MQTT.Keepalive,
		TLS:         cfg.MQTT.TLS,
		CACert:      cfg.MQTT.TLSCACert,
		CertFile:    cfg.MQTT.TLSCertFile,
		KeyFile:     cfg.MQTT.TLSKeyFile,
		WillTopic:   statusTopic,
		WillPayload: string(model.StatusDead),
	})
	if err != nil {
		log.Fatalf("florad: %v", err)
	}

	var rec *history.Recorder
	if cfg.Influx.Enabled() {
		rec = history.New(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket)
		log.Printf("florad: history recording to %s bucket %s", cfg.Influx.URL, cfg.Influx.Bucket)
	}

	d := daemon.New(cfg, client, mqttclient.NewPublisher(client), rec,
		hal.NewSimPump(), &hal.StaticTank{Lvl: model.TankOK})

	go health.Serve(ctx, cfg.Daemon.HTTPPort, client, rec, d.Ready)

	log.Printf("florad: started, %d sensors, daemon mode %v", len(cfg.MQTT.Sensors), cfg.Daemon.Enabled)
	if err := d.Run(ctx); err != nil {
		log.Printf("florad: %v", err)
	}
	mqttclient.Close(client)
}
