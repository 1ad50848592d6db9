package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MatusOllah/slogcolor"
	mqttserver "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/ezmesh/ezmesh/pkg/config"
	"github.com/ezmesh/ezmesh/pkg/meshcore"
	"github.com/ezmesh/ezmesh/pkg/meshcore/identity"
	"github.com/ezmesh/ezmesh/pkg/store"
	"github.com/ezmesh/ezmesh/pkg/transport"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ezmesh: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	opts := *slogcolor.DefaultOptions
	opts.Level = parseLogLevel(cfg.LogLevel)
	log := slog.New(slogcolor.NewHandler(os.Stderr, &opts))
	slog.SetDefault(log)

	kv, err := store.OpenSQLStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database %q: %w", cfg.Database.Path, err)
	}
	defer kv.Close()

	if cfg.MQTT.Embedded {
		broker, err := startEmbeddedBroker(cfg.MQTT.EmbeddedListen, log)
		if err != nil {
			return err
		}
		defer broker.Close()
		addr := cfg.MQTT.EmbeddedListen
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		cfg.MQTT.BrokerURL = "tcp://" + addr
	}

	engine, radio, err := buildEngine(cfg, kv, log)
	if err != nil {
		return err
	}
	defer radio.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.MeshSettings.TickInterval)
	defer ticker.Stop()

	log.Info("node running",
		"node_id", engine.Identity().FullID(),
		"name", engine.Identity().Name())

	for {
		select {
		case <-ticker.C:
			engine.Update()
		case s := <-sig:
			log.Info("shutting down", "signal", s.String())
			stats := engine.Stats()
			log.Info("final stats",
				"received", stats.Received,
				"transmitted", stats.Transmitted,
				"dropped", stats.Dropped,
				"crypto_failed", stats.CryptoFailed,
				"duplicates", stats.Duplicates,
				"rebroadcasts", stats.Rebroadcasts)
			return nil
		}
	}
}

func buildEngine(cfg *config.Configuration, kv store.KeyValueStore, log *slog.Logger) (*meshcore.Engine, *transport.MQTTTransport, error) {
	// Initializing the identity up front gives the transport a stable
	// per-node topic id; the engine reloads the same identity afterwards.
	id, err := identity.Init(kv)
	if err != nil {
		return nil, nil, err
	}

	radio, err := transport.NewMQTT(transport.MQTTOptions{
		BrokerURL:   cfg.MQTT.BrokerURL,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		MeshID:      id.FullID(),
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		Logger:      log,
	})
	if err != nil {
		return nil, nil, err
	}

	engine, err := meshcore.New(meshcore.Options{
		Radio:            radio,
		Store:            kv,
		Logger:           log,
		AnnounceInterval: cfg.MeshSettings.AnnounceInterval,
	})
	if err != nil {
		radio.Close()
		return nil, nil, err
	}

	if cfg.NodeName != "" {
		if err := engine.Identity().SetName(cfg.NodeName); err != nil {
			radio.Close()
			return nil, nil, err
		}
	}

	for _, chDef := range cfg.MeshSettings.Channels {
		if len(chDef.Key) > 0 {
			_, err = engine.JoinChannelWithKey(chDef.Name, chDef.Key)
		} else {
			_, err = engine.JoinChannel(chDef.Name, chDef.Password)
		}
		if err != nil {
			radio.Close()
			return nil, nil, fmt.Errorf("failed to join channel %q: %w", chDef.Name, err)
		}
	}

	return engine, radio, nil
}

func startEmbeddedBroker(listen string, log *slog.Logger) (*mqttserver.Server, error) {
	broker := mqttserver.New(&mqttserver.Options{InlineClient: false})
	if err := broker.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("failed to configure embedded broker: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: listen})
	if err := broker.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("failed to listen on %q: %w", listen, err)
	}

	go func() {
		if err := broker.Serve(); err != nil {
			log.Error("embedded broker stopped", "error", err)
		}
	}()

	log.Info("embedded mqtt broker started", "listen", listen)
	return broker, nil
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
