/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"

	DEFAULT_WEBHOOK_QUEUE        = "tally_webhooks"
	DEFAULT_WEBHOOK_CONCURRENCY  = 10
	DEFAULT_MONITORING_PORT      = "5004"
	DEFAULT_LOCK_TTL_SEC         = 10
	DEFAULT_LOCK_WAIT_MS         = 5000
	DEFAULT_CONFLICT_RETRIES     = 3
	DEFAULT_STORAGE_ATTEMPTS     = 4
	DEFAULT_STORAGE_INTERVAL_MS  = 50
	DEFAULT_STORAGE_ELAPSED_MS   = 2000
	DEFAULT_RATE_LIMIT_CLEANUP_S = 10800
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"SSL"`
	Secure    bool   `json:"secure" envconfig:"SECURE"`
	SecretKey string `json:"secret_key" envconfig:"SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"SSL_EMAIL"`
	Port      string `json:"port" envconfig:"PORT"`
}

type DataSourceConfig struct {
	Dns          string `json:"dns" envconfig:"DNS"`
	MaxOpenConns int    `json:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns int    `json:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
	// Memory keeps ledgers in process memory when no DNS is set. Nothing
	// survives a restart.
	Memory bool `json:"memory" envconfig:"MEMORY"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"SKIP_TLS_VERIFY"`
}

// LedgerConfig tunes the concurrency and retry behaviour of ledger mutations.
type LedgerConfig struct {
	LockTTLSec               int `json:"lock_ttl_sec" envconfig:"LOCK_TTL_SEC"`
	LockWaitMs               int `json:"lock_wait_ms" envconfig:"LOCK_WAIT_MS"`
	MaxConflictRetries       int `json:"max_conflict_retries" envconfig:"MAX_CONFLICT_RETRIES"`
	StorageRetryMaxAttempts  int `json:"storage_retry_max_attempts" envconfig:"STORAGE_RETRY_MAX_ATTEMPTS"`
	StorageRetryInitialMs    int `json:"storage_retry_initial_ms" envconfig:"STORAGE_RETRY_INITIAL_MS"`
	StorageRetryMaxElapsedMs int `json:"storage_retry_max_elapsed_ms" envconfig:"STORAGE_RETRY_MAX_ELAPSED_MS"`
}

func (l LedgerConfig) LockTTL() time.Duration {
	return time.Duration(l.LockTTLSec) * time.Second
}

func (l LedgerConfig) LockWait() time.Duration {
	return time.Duration(l.LockWaitMs) * time.Millisecond
}

func (l LedgerConfig) StorageRetryInitialInterval() time.Duration {
	return time.Duration(l.StorageRetryInitialMs) * time.Millisecond
}

func (l LedgerConfig) StorageRetryMaxElapsed() time.Duration {
	return time.Duration(l.StorageRetryMaxElapsedMs) * time.Millisecond
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"RPS"`
	Burst              *int     `json:"burst" envconfig:"BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"WEBHOOK_URL"`
}

type WebhookConfig struct {
	Url     string            `json:"url" envconfig:"URL"`
	Headers map[string]string `json:"headers" envconfig:"HEADERS"`
}

type Notification struct {
	Slack   SlackWebhook  `json:"slack" envconfig:"SLACK"`
	Webhook WebhookConfig `json:"webhook" envconfig:"WEBHOOK"`
}

type QueueConfig struct {
	WebhookQueue   string `json:"webhook_queue" envconfig:"WEBHOOK_QUEUE"`
	Concurrency    int    `json:"concurrency" envconfig:"CONCURRENCY"`
	MonitoringPort string `json:"monitoring_port" envconfig:"MONITORING_PORT"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"PROJECT_NAME"`
	Server          ServerConfig     `json:"server" envconfig:"SERVER"`
	DataSource      DataSourceConfig `json:"data_source" envconfig:"DATA_SOURCE"`
	Redis           RedisConfig      `json:"redis" envconfig:"REDIS"`
	Ledger          LedgerConfig     `json:"ledger" envconfig:"LEDGER"`
	Notification    Notification     `json:"notification" envconfig:"NOTIFICATION"`
	Queue           QueueConfig      `json:"queue" envconfig:"QUEUE"`
	RateLimit       RateLimitConfig  `json:"rate_limit" envconfig:"RATE_LIMIT"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"ENABLE_TELEMETRY"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables, e.g. TALLY_REDIS_DNS
	err = envconfig.Process("tally", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called tally.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		cnf.ProjectName = "Tally Server"
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.SSL && cnf.Server.Email == "" {
		return errors.New("ssl email is required when ssl is enabled")
	}
	if cnf.Server.Secure && cnf.Server.SecretKey == "" {
		return errors.New("secret key is required when secure mode is enabled")
	}

	if cnf.DataSource.Dns == "" {
		if !cnf.DataSource.Memory {
			log.Println("Error: Data source DNS is empty. It's a required field.")
			return errors.New("data source DNS is required")
		}
		log.Println("Warning: Data source DNS is empty and memory mode is on. Ledgers will not survive a restart.")
	}
	if cnf.Redis.Dns == "" {
		log.Println("Warning: Redis DNS is empty. Using in-process locks and no webhook queue.")
	}

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	cnf.Ledger.addDefaults()

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = DEFAULT_WEBHOOK_QUEUE
	}
	if cnf.Queue.Concurrency <= 0 {
		cnf.Queue.Concurrency = DEFAULT_WEBHOOK_CONCURRENCY
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = DEFAULT_MONITORING_PORT
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := DEFAULT_RATE_LIMIT_CLEANUP_S
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

func (l *LedgerConfig) addDefaults() {
	if l.LockTTLSec <= 0 {
		l.LockTTLSec = DEFAULT_LOCK_TTL_SEC
	}
	if l.LockWaitMs <= 0 {
		l.LockWaitMs = DEFAULT_LOCK_WAIT_MS
	}
	if l.MaxConflictRetries <= 0 {
		l.MaxConflictRetries = DEFAULT_CONFLICT_RETRIES
	}
	if l.StorageRetryMaxAttempts <= 0 {
		l.StorageRetryMaxAttempts = DEFAULT_STORAGE_ATTEMPTS
	}
	if l.StorageRetryInitialMs <= 0 {
		l.StorageRetryInitialMs = DEFAULT_STORAGE_INTERVAL_MS
	}
	if l.StorageRetryMaxElapsedMs <= 0 {
		l.StorageRetryMaxElapsedMs = DEFAULT_STORAGE_ELAPSED_MS
	}
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
