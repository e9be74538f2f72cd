package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the server and the bot client. Zero values
// are never used; Load always starts from Default.
type Config struct {
	UDPAddr     string
	HTTPAddr    string
	ServerAddr  string
	DatabaseURL string

	LogLevel string
	Dev      bool

	LobbyBroadcastInterval time.Duration
	SweepInterval          time.Duration
	StaleAfter             time.Duration
	RetryInterval          time.Duration
	RetryAttempts          int
	QueueCapacity          int
}

func Default() Config {
	return Config{
		UDPAddr:    ":7777",
		HTTPAddr:   ":8080",
		ServerAddr: "127.0.0.1:7777",

		LogLevel: "info",

		LobbyBroadcastInterval: time.Second,
		SweepInterval:          2 * time.Second,
		StaleAfter:             15 * time.Second,
		RetryInterval:          200 * time.Millisecond,
		RetryAttempts:          50,
		QueueCapacity:          4096,
	}
}

// Load reads an optional .env file (or the given files) into the process
// environment and then overlays ARTY_* variables on Default.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, which has the shape of os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	p := parser{lookup: lookup}

	p.str("ARTY_UDP_ADDR", &c.UDPAddr)
	p.str("ARTY_HTTP_ADDR", &c.HTTPAddr)
	p.str("ARTY_SERVER_ADDR", &c.ServerAddr)
	p.str("ARTY_DATABASE_URL", &c.DatabaseURL)
	p.str("ARTY_LOG_LEVEL", &c.LogLevel)
	p.boolean("ARTY_DEV", &c.Dev)
	p.duration("ARTY_LOBBY_BROADCAST_INTERVAL", &c.LobbyBroadcastInterval)
	p.duration("ARTY_SWEEP_INTERVAL", &c.SweepInterval)
	p.duration("ARTY_STALE_AFTER", &c.StaleAfter)
	p.duration("ARTY_RETRY_INTERVAL", &c.RetryInterval)
	p.integer("ARTY_RETRY_ATTEMPTS", &c.RetryAttempts)
	p.integer("ARTY_QUEUE_CAPACITY", &c.QueueCapacity)

	if p.err != nil {
		return Config{}, p.err
	}
	return c, nil
}

// parser keeps the first error so FromEnv reads as a flat list.
type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) get(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, ok := p.lookup(key)
	return v, ok && v != ""
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p *parser) boolean(key string, dst *bool) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = b
}

func (p *parser) duration(key string, dst *time.Duration) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	if d <= 0 {
		p.err = fmt.Errorf("%s: must be positive, got %s", key, d)
		return
	}
	*dst = d
}

func (p *parser) integer(key string, dst *int) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	if n < 0 {
		p.err = fmt.Errorf("%s: must not be negative, got %d", key, n)
		return
	}
	*dst = n
}
