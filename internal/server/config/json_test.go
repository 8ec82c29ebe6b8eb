package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_http":              "www.example:9000",
		"store_driver":                    "mongo",
		"mongo_uri":                       "mongodb://db:27017",
		"access_token_secret":             "a-secret",
		"refresh_token_secret":            "r-secret",
		"access_token_validity_duration":  "1m",
		"refresh_token_validity_duration": "72h",
		"cookie_secure":                   false,
		"s3_bucket":                       "bucket",
		"s3_public_base_url":              "https://cdn.example",
	})

	t.Run("loads from json and keeps unspecified keys", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-config", pathFlag}))

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrHTTP)
		assert.Equal(t, "mongo", cfg.StoreDriver)
		assert.Equal(t, "mongodb://db:27017", cfg.MongoURI)
		assert.Equal(t, "a-secret", cfg.AccessTokenSecret)
		assert.Equal(t, "r-secret", cfg.RefreshTokenSecret)
		assert.Equal(t, 1*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 72*time.Hour, cfg.RefreshTokenValidityDuration)
		assert.False(t, cfg.CookieSecure)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "https://cdn.example", cfg.S3PublicBaseURL)

		// not present in the file
		assert.Equal(t, ":50051", cfg.EndpointAddrGRPC)
		assert.Equal(t, 10, cfg.BcryptCost)
	})

	t.Run("no config flag → no changes", func(t *testing.T) {
		cfg := &Config{EndpointAddrHTTP: "defaults:1234", BcryptCost: 4}
		require.NoError(t, parseJson(cfg, nil))

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrHTTP)
		assert.Equal(t, 4, cfg.BcryptCost)
	})

	t.Run("flags override json", func(t *testing.T) {
		cfg, err := load([]string{"-c", pathFlag, "-a", ":7777"})
		require.NoError(t, err)
		assert.Equal(t, ":7777", cfg.EndpointAddrHTTP)
		assert.Equal(t, "mongo", cfg.StoreDriver)
	})

	t.Run("invalid JSON → error", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		cfg := &Config{}
		assert.Error(t, parseJson(cfg, []string{"-config", bad}))
	})

	t.Run("missing file → error", func(t *testing.T) {
		cfg := &Config{}
		assert.Error(t, parseJson(cfg, []string{"-c", filepath.Join(dir, "nope.json")}))
	})
}
