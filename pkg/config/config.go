// Package config loads the node daemon configuration from a yaml file and
// EZMESH_* environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// ChannelKey is a 16-byte channel key, hex encoded in config files.
type ChannelKey []byte

type Configuration struct {
	NodeName string
	LogLevel string
	Database struct {
		// Path to the sqlite database holding identity and channel state.
		Path string
	}
	MQTT         MQTTSettings
	MeshSettings MeshSettings
}

type MQTTSettings struct {
	// BrokerURL of an external broker, e.g. "tcp://localhost:1883". Ignored
	// when the embedded broker is enabled.
	BrokerURL string
	// Embedded starts an in-process broker instead of connecting out.
	Embedded bool
	// EmbeddedListen is the embedded broker's listen address.
	EmbeddedListen string
	TopicPrefix    string
	Username       string
	Password       string
}

type MeshSettings struct {
	// Channels to join at startup, in addition to the public channel.
	Channels []MeshChannelDef
	// AnnounceInterval between identity advertisements.
	AnnounceInterval time.Duration
	// TickInterval between engine update calls.
	TickInterval time.Duration
}

type MeshChannelDef struct {
	Name     string
	Password string
	// Key overrides password-based derivation with an explicit hex key.
	Key ChannelKey
}

// Load reads the configuration at path, applying defaults and environment
// overrides.
func Load(path string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ezmesh")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("loglevel", "info")
	v.SetDefault("database.path", "ezmesh.db")
	v.SetDefault("mqtt.brokerurl", "tcp://localhost:1883")
	v.SetDefault("mqtt.embeddedlisten", ":1883")
	v.SetDefault("mqtt.topicprefix", "meshcore")
	v.SetDefault("meshsettings.announceinterval", time.Minute)
	v.SetDefault("meshsettings.tickinterval", 10*time.Millisecond)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}

	var cfg Configuration
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		hexChannelKeyHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// hexChannelKeyHook decodes hex strings into ChannelKey values.
func hexChannelKeyHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(ChannelKey(nil)) {
			return data, nil
		}
		s := data.(string)
		if s == "" {
			return ChannelKey(nil), nil
		}
		key, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid hex channel key %q: %w", s, err)
		}
		if len(key) != 16 {
			return nil, fmt.Errorf("channel key must be 16 bytes, got %d", len(key))
		}
		return ChannelKey(key), nil
	}
}
