package docstore

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/configor"
	"github.com/pkg/errors"

	"github.com/xdbsoft/docstore/rules"
)

// BatchPolicy tells how a batched write reacts to the failure of one item
type BatchPolicy string

const (
	// FailFast cancels the remaining items on the first failure and returns it.
	FailFast BatchPolicy = "failfast"
	// Settle runs every item and reports failures per item.
	Settle BatchPolicy = "settle"
)

// StoreConfig describes the database the services connect to
type StoreConfig struct {
	Backend  string `default:"memory" validate:"oneof=mongodb postgresql sqlite memory"`
	URI      string
	Database string

	// ConnectRetries is the number of extra connection attempts. Zero means a
	// failed connection is returned to the caller as is.
	ConnectRetries int    `validate:"gte=0"`
	RetryDelay     string `default:"200ms"`
	RetryMaxDelay  string `default:"5s"`
}

// CollectionDefinition binds a service to a collection
type CollectionDefinition struct {
	Name  string      `validate:"required"`
	Batch BatchPolicy `validate:"omitempty,oneof=failfast settle"`
	// Concurrency bounds the number of concurrent writes of a batch, zero
	// means unbounded.
	Concurrency int `validate:"gte=0"`
	Rules       []rules.Rule
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Addr                string `default:"0.0.0.0:9889"`
	OpenIDConnectIssuer string
	// UserInfo enables the userinfo endpoint lookup when the ID token lacks
	// the name or email claims.
	UserInfo bool
}

// Config contains all required information for the intialisation of docstore services
type Config struct {
	LogLevel    string `default:"info"`
	Store       StoreConfig
	Server      ServerConfig
	Collections []CollectionDefinition `validate:"unique=Name,dive"`
}

// LoadConfig reads the configuration files in order, applies defaults and
// DOCSTORE_ prefixed environment variables, then validates the result.
func LoadConfig(paths ...string) (*Config, error) {

	var cfg Config
	loader := configor.New(&configor.Config{ENVPrefix: "DOCSTORE"})
	if err := loader.Load(&cfg, paths...); err != nil {
		return nil, errors.Wrap(err, "unable to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration
func (cfg *Config) Validate() error {

	if err := validator.New().Struct(cfg); err != nil {
		return badRequest(errors.Wrap(err, "invalid configuration").Error())
	}

	if _, _, err := cfg.Store.retryDelays(); err != nil {
		return err
	}

	return nil
}

// Collection returns the definition of the named collection
func (cfg *Config) Collection(name string) (CollectionDefinition, bool) {
	for _, c := range cfg.Collections {
		if c.Name == name {
			return c, true
		}
	}
	return CollectionDefinition{}, false
}

func (s StoreConfig) retryDelays() (time.Duration, time.Duration, error) {

	delay, maxDelay := 200*time.Millisecond, 5*time.Second

	if len(s.RetryDelay) > 0 {
		d, err := time.ParseDuration(s.RetryDelay)
		if err != nil {
			return 0, 0, badRequest(errors.Wrap(err, "invalid Store.RetryDelay").Error())
		}
		delay = d
	}
	if len(s.RetryMaxDelay) > 0 {
		d, err := time.ParseDuration(s.RetryMaxDelay)
		if err != nil {
			return 0, 0, badRequest(errors.Wrap(err, "invalid Store.RetryMaxDelay").Error())
		}
		maxDelay = d
	}
	if maxDelay < delay {
		maxDelay = delay
	}

	return delay, maxDelay, nil
}
