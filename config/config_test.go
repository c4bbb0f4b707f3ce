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
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndAddDefaults(t *testing.T) {
	cnf := Configuration{DataSource: DataSourceConfig{Dns: "postgres://localhost/tally"}}

	err := cnf.validateAndAddDefaults()
	require.NoError(t, err)

	assert.Equal(t, "Tally Server", cnf.ProjectName)
	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.Equal(t, DEFAULT_WEBHOOK_QUEUE, cnf.Queue.WebhookQueue)
	assert.Equal(t, DEFAULT_CONFLICT_RETRIES, cnf.Ledger.MaxConflictRetries)
	assert.Equal(t, 10*time.Second, cnf.Ledger.LockTTL())
	assert.Equal(t, 5*time.Second, cnf.Ledger.LockWait())
	assert.Equal(t, 2*time.Second, cnf.Ledger.StorageRetryMaxElapsed())
	assert.Equal(t, 50*time.Millisecond, cnf.Ledger.StorageRetryInitialInterval())
	assert.Nil(t, cnf.RateLimit.RequestsPerSecond)
	require.NotNil(t, cnf.RateLimit.CleanupIntervalSec)
	assert.Equal(t, DEFAULT_RATE_LIMIT_CLEANUP_S, *cnf.RateLimit.CleanupIntervalSec)
}

func TestValidateAndAddDefaults_KeepsExplicitValues(t *testing.T) {
	rps := 10.0
	cnf := Configuration{
		Server:     ServerConfig{Port: " 8080 "},
		DataSource: DataSourceConfig{Dns: " postgres://localhost/tally "},
		Ledger:     LedgerConfig{MaxConflictRetries: 7},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: &rps,
		},
	}

	require.NoError(t, cnf.validateAndAddDefaults())
	assert.Equal(t, "8080", cnf.Server.Port)
	assert.Equal(t, 7, cnf.Ledger.MaxConflictRetries)
	assert.Equal(t, "postgres://localhost/tally", cnf.DataSource.Dns)
	require.NotNil(t, cnf.RateLimit.Burst)
	assert.Equal(t, 20, *cnf.RateLimit.Burst)
}

func TestValidateAndAddDefaults_Errors(t *testing.T) {
	cnf := Configuration{Server: ServerConfig{SSL: true}}
	assert.EqualError(t, cnf.validateAndAddDefaults(), "ssl email is required when ssl is enabled")

	cnf = Configuration{Server: ServerConfig{Secure: true}}
	assert.EqualError(t, cnf.validateAndAddDefaults(), "secret key is required when secure mode is enabled")

	cnf = Configuration{}
	assert.EqualError(t, cnf.validateAndAddDefaults(), "data source DNS is required")
}

func TestValidateAndAddDefaults_MemoryDataSource(t *testing.T) {
	cnf := Configuration{DataSource: DataSourceConfig{Memory: true}}
	require.NoError(t, cnf.validateAndAddDefaults())
	assert.Empty(t, cnf.DataSource.Dns)
	assert.True(t, cnf.DataSource.Memory)
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "tally.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	sampleConfig := Configuration{
		ProjectName: "Temp Project",
		DataSource: DataSourceConfig{
			Dns: "temp-dns",
		},
		Redis: RedisConfig{
			Dns: "temp-redis",
		},
	}
	require.NoError(t, json.NewEncoder(tmpFile).Encode(sampleConfig))
	tmpFile.Close()

	t.Setenv("TALLY_PROJECT_NAME", "Env Project")
	t.Setenv("TALLY_LEDGER_MAX_CONFLICT_RETRIES", "9")

	require.NoError(t, loadConfigFromFile(tmpFile.Name()))

	loadedConfig, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "Env Project", loadedConfig.ProjectName)
	assert.Equal(t, "temp-dns", loadedConfig.DataSource.Dns)
	assert.Equal(t, "temp-redis", loadedConfig.Redis.Dns)
	assert.Equal(t, 9, loadedConfig.Ledger.MaxConflictRetries)
}

func TestInitConfig_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("TALLY_REDIS_DNS", "localhost:6379")
	t.Setenv("TALLY_DATA_SOURCE_DNS", "postgres://localhost/tally")

	require.NoError(t, InitConfig("does-not-exist.json"))

	loadedConfig, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", loadedConfig.Redis.Dns)
	assert.Equal(t, DEFAULT_PORT, loadedConfig.Server.Port)
}

func TestMockConfig(t *testing.T) {
	MockConfig(&Configuration{ProjectName: "mock"})
	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "mock", cnf.ProjectName)
}
