package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Feeds holds the per-field feed names published by the station firmware.
// Each name is joined with TopicPrefix to form the full subscription topic.
type Feeds struct {
	Temperature  string
	Humidity     string
	LightPercent string
	LightRaw     string
	DeviceTime   string
	Comfort      string
	SystemEvent  string
	Command      string
}

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	Driver          string
	DSN             string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// LogSQL routes sqlite connections through a statement-logging driver
	// shim. Debug aid, sqlite3 only.
	LogSQL bool

	MQTTBroker   string
	MQTTPort     int
	MQTTUsername string
	MQTTPassword string
	MQTTClientID string

	// TopicPrefix is prepended to every feed name, e.g. "user/feeds".
	// Defaults to "<MQTT_USERNAME>/feeds" when a username is set.
	TopicPrefix string

	Feeds Feeds

	// BufferTimeout is how long a partially filled reading buffer may sit
	// without new fragments before the stale session is flushed or discarded.
	BufferTimeout time.Duration
	// PartialFlush selects what happens to a stale session: persist what
	// arrived (true) or discard it with an error event (false).
	PartialFlush bool

	// StatsInterval is the period of the statistics aggregation task.
	// Zero disables the task.
	StatsInterval time.Duration
	// EventRetention prunes events older than this age. Zero keeps everything.
	EventRetention time.Duration
}

func LoadFromEnv() (Config, error) {
	appEnv := getenv("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(getenv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	httpAddr := getenv("HTTP_ADDR", ":8080")

	driver := getenv("DB_DRIVER", "sqlite3")
	switch driver {
	case "sqlite3", "postgres":
	default:
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q (allowed: sqlite3, postgres)", driver)
	}
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if driver == "postgres" && dsn == "" {
		return Config{}, fmt.Errorf("DB_DSN is required when DB_DRIVER is postgres")
	}
	path := getenv("SQLITE_PATH", "dev/sqlite/bridge.db")

	maxOpenConns, err := getenvInt("DB_MAX_OPEN_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := getenvInt("DB_MAX_IDLE_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := getenvDuration("DB_CONN_MAX_LIFETIME", 0)
	if err != nil {
		return Config{}, err
	}
	logSQL, err := getenvBool("DB_LOG_SQL", false)
	if err != nil {
		return Config{}, err
	}
	if logSQL && driver != "sqlite3" {
		return Config{}, fmt.Errorf("DB_LOG_SQL is only supported for the sqlite3 driver")
	}

	broker := getenv("MQTT_BROKER", "io.adafruit.com")
	port, err := getenvInt("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}
	if port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %d (allowed: 1-65535)", port)
	}
	username := strings.TrimSpace(os.Getenv("MQTT_USERNAME"))
	password := strings.TrimSpace(os.Getenv("MQTT_PASSWORD"))
	clientID := getenv("MQTT_CLIENT_ID", "ds8-bridge")

	prefix := strings.TrimSpace(os.Getenv("MQTT_TOPIC_PREFIX"))
	if prefix == "" && username != "" {
		prefix = username + "/feeds"
	}
	prefix = strings.Trim(prefix, "/")

	feeds := Feeds{
		Temperature:  getenv("FEED_TEMPERATURE", "sensor_temp"),
		Humidity:     getenv("FEED_HUMIDITY", "sensor_hum"),
		LightPercent: getenv("FEED_LIGHT_PCT", "sensor_ldr_pct"),
		LightRaw:     getenv("FEED_LIGHT_RAW", "sensor_ldr_raw"),
		DeviceTime:   getenv("FEED_DEVICE_TIME", "sensor_estado"),
		Comfort:      getenv("FEED_COMFORT", "sensor_comfort"),
		SystemEvent:  getenv("FEED_SYSTEM_EVENT", "system_event"),
		Command:      getenv("FEED_COMMAND", "comando_led"),
	}

	bufferTimeout, err := getenvDuration("BUFFER_TIMEOUT", 60*time.Second)
	if err != nil {
		return Config{}, err
	}
	if bufferTimeout <= 0 {
		return Config{}, fmt.Errorf("invalid BUFFER_TIMEOUT %s (must be positive)", bufferTimeout)
	}

	partialFlush, err := getenvBool("PARTIAL_FLUSH", true)
	if err != nil {
		return Config{}, err
	}

	statsInterval, err := getenvDuration("STATS_INTERVAL", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	if statsInterval < 0 {
		return Config{}, fmt.Errorf("invalid STATS_INTERVAL %s (must not be negative)", statsInterval)
	}

	eventRetention, err := getenvDuration("EVENT_RETENTION", 0)
	if err != nil {
		return Config{}, err
	}
	if eventRetention < 0 {
		return Config{}, fmt.Errorf("invalid EVENT_RETENTION %s (must not be negative)", eventRetention)
	}

	return Config{
		AppEnv:          appEnv,
		LogLevel:        level,
		HTTPAddr:        httpAddr,
		Driver:          driver,
		DSN:             dsn,
		Path:            path,
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: connMaxLifetime,
		LogSQL:          logSQL,
		MQTTBroker:      broker,
		MQTTPort:        port,
		MQTTUsername:    username,
		MQTTPassword:    password,
		MQTTClientID:    clientID,
		TopicPrefix:     prefix,
		Feeds:           feeds,
		BufferTimeout:   bufferTimeout,
		PartialFlush:    partialFlush,
		StatsInterval:   statsInterval,
		EventRetention:  eventRetention,
	}, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
