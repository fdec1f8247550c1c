// Package poolconfig is the external configuration surface: yaml file
// loading (gopkg.in/yaml.v3), preset builders for common deployment
// tiers, and loud validation that rejects malformed or unrecognized
// values before a pool is ever started.
package poolconfig

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relaymesh/connpool/pool"
	"github.com/relaymesh/connpool/pool/cosmosadapter"
	"github.com/relaymesh/connpool/pool/ethadapter"
)

// Duration is a yaml-parseable duration. It accepts either a Go
// duration string ("5s", "250ms") or a bare integer, interpreted as
// milliseconds to match the ms-denominated timeout fields of the
// external configuration surface.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var ms int64
	if err := value.Decode(&ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("poolconfig: invalid duration %q", value.Value)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("poolconfig: invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// File is the yaml-tagged shape a pool configuration loads from on
// disk; it exists separately from pool.Config because the latter is
// the package's internal working type and should not carry
// serialization tags for a format pool itself has no opinion on.
//
// The protocol extension fields (ChainID, ThrottleLimit,
// ThrottleSlotInterval, AddressPrefix, GasPrice) are recognized keys
// per the configuration surface even though pool.Config itself is
// protocol-agnostic: they're carried through File so KnownFields
// decoding doesn't reject them, and are handed to the matching
// adapter's Config via EthereumConfig/CosmosConfig rather than folded
// into pool.Config.
type File struct {
	Name                      string         `yaml:"name"`
	Endpoints                 []FileEndpoint `yaml:"endpoints"`
	MaxConnectionsPerEndpoint int            `yaml:"max_connections_per_endpoint"`
	MinConnections            int            `yaml:"min_connections"`
	ConnectTimeout            Duration       `yaml:"connect_timeout"`
	IdleTimeout               Duration       `yaml:"idle_timeout"`
	HealthCheckInterval       Duration       `yaml:"health_check_interval"`
	ReapInterval              Duration       `yaml:"reap_interval"`
	CircuitBreakerThreshold   int            `yaml:"circuit_breaker_threshold"`
	CircuitBreakerTimeout     Duration       `yaml:"circuit_breaker_timeout"`
	MaxRetries                int            `yaml:"max_retries"`
	RetryDelay                Duration       `yaml:"retry_delay"`

	// ChainID is recognized by both protocol extensions: for Ethereum
	// it's parsed as a decimal EIP-155 chain id; for Cosmos it's used
	// verbatim as the network id string.
	ChainID string `yaml:"chain_id,omitempty"`

	// Ethereum extension.
	ThrottleLimit        int      `yaml:"throttle_limit,omitempty"`
	ThrottleSlotInterval Duration `yaml:"throttle_slot_interval,omitempty"`

	// Cosmos extension.
	AddressPrefix string `yaml:"address_prefix,omitempty"`
	GasPrice      string `yaml:"gas_price,omitempty"`
}

// FileEndpoint is one yaml-tagged endpoint entry.
type FileEndpoint struct {
	URL                 string   `yaml:"url"`
	Weight              int      `yaml:"weight"`
	MaxConnections      int      `yaml:"max_connections"`
	ConnectTimeout      Duration `yaml:"connect_timeout"`
	HealthCheckInterval Duration `yaml:"health_check_interval"`
}

// Load reads and parses a pool config file, validating it before
// returning.
func Load(path string) (pool.Config, error) {
	cfg, _, err := LoadFile(path)
	return cfg, err
}

// LoadFile is Load plus the raw File it parsed, for callers that need
// the protocol extension keys (EthereumConfig, CosmosConfig) alongside
// the validated pool.Config.
func LoadFile(path string) (pool.Config, File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pool.Config{}, File{}, fmt.Errorf("poolconfig: read %s: %w", path, err)
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // reject unrecognized keys loudly rather than silently ignoring a typo
	if err := dec.Decode(&f); err != nil {
		return pool.Config{}, File{}, fmt.Errorf("poolconfig: parse %s: %w", path, err)
	}
	cfg := f.toConfig()
	if err := Validate(cfg); err != nil {
		return pool.Config{}, File{}, fmt.Errorf("poolconfig: %s: %w", path, err)
	}
	return cfg, f, nil
}

// EthereumConfig builds an ethadapter.Config from the file's chain_id,
// throttle_limit and throttle_slot_interval keys. ChainID must parse as
// a decimal integer; an empty ChainID leaves the returned Config's
// ChainID nil, meaning CreateClient performs no chain-id check.
func (f File) EthereumConfig() (ethadapter.Config, error) {
	cfg := ethadapter.Config{
		RequestsPerSecond: float64(f.ThrottleLimit),
	}
	if f.ThrottleSlotInterval > 0 && f.ThrottleLimit > 0 {
		cfg.RequestsPerSecond = float64(f.ThrottleLimit) / time.Duration(f.ThrottleSlotInterval).Seconds()
	}
	if f.ChainID == "" {
		return cfg, nil
	}
	chainID, ok := new(big.Int).SetString(f.ChainID, 10)
	if !ok {
		return ethadapter.Config{}, fmt.Errorf("poolconfig: chain_id %q is not a valid decimal integer", f.ChainID)
	}
	cfg.ChainID = chainID
	return cfg, nil
}

// CosmosConfig builds a cosmosadapter.Config from the file's chain_id,
// address_prefix and gas_price keys.
func (f File) CosmosConfig() cosmosadapter.Config {
	return cosmosadapter.Config{
		ChainID:       f.ChainID,
		AddressPrefix: f.AddressPrefix,
		GasPrice:      f.GasPrice,
	}
}

func (f File) toConfig() pool.Config {
	endpoints := make([]pool.Endpoint, 0, len(f.Endpoints))
	for _, e := range f.Endpoints {
		endpoints = append(endpoints, pool.Endpoint{
			URL:                 e.URL,
			Weight:              e.Weight,
			MaxConnections:      e.MaxConnections,
			ConnectTimeout:      time.Duration(e.ConnectTimeout),
			HealthCheckInterval: time.Duration(e.HealthCheckInterval),
		})
	}
	return pool.Config{
		Name:                      f.Name,
		Endpoints:                 endpoints,
		MaxConnectionsPerEndpoint: f.MaxConnectionsPerEndpoint,
		MinConnections:            f.MinConnections,
		ConnectTimeout:            time.Duration(f.ConnectTimeout),
		IdleTimeout:               time.Duration(f.IdleTimeout),
		HealthCheckInterval:       time.Duration(f.HealthCheckInterval),
		ReapInterval:              time.Duration(f.ReapInterval),
		CircuitBreakerThreshold:   f.CircuitBreakerThreshold,
		CircuitBreakerTimeout:     time.Duration(f.CircuitBreakerTimeout),
		MaxRetries:                f.MaxRetries,
		RetryDelay:                time.Duration(f.RetryDelay),
	}
}
