package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/tubeaccounts/internal/flagx"
	"github.com/dmitrijs2005/tubeaccounts/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations accept
// "15m"-style strings or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	StoreDriver                  string         `json:"store_driver"`
	DatabaseDSN                  string         `json:"database_dsn"`
	MongoURI                     string         `json:"mongo_uri"`
	MongoDatabase                string         `json:"mongo_database"`
	AccessTokenSecret            string         `json:"access_token_secret"`
	RefreshTokenSecret           string         `json:"refresh_token_secret"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	CookieSecure                 bool           `json:"cookie_secure"`
	CookieSameSite               string         `json:"cookie_same_site"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	S3PublicBaseURL              string         `json:"s3_public_base_url"`
	UploadDir                    string         `json:"upload_dir"`
	MaxUploadBytes               int64          `json:"max_upload_bytes"`
	LogLevel                     string         `json:"log_level"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:             c.EndpointAddrHTTP,
		EndpointAddrGRPC:             c.EndpointAddrGRPC,
		StoreDriver:                  c.StoreDriver,
		DatabaseDSN:                  c.DatabaseDSN,
		MongoURI:                     c.MongoURI,
		MongoDatabase:                c.MongoDatabase,
		AccessTokenSecret:            c.AccessTokenSecret,
		RefreshTokenSecret:           c.RefreshTokenSecret,
		AccessTokenValidityDuration:  timex.Duration{Duration: c.AccessTokenValidityDuration},
		RefreshTokenValidityDuration: timex.Duration{Duration: c.RefreshTokenValidityDuration},
		BcryptCost:                   c.BcryptCost,
		CookieSecure:                 c.CookieSecure,
		CookieSameSite:               c.CookieSameSite,
		S3RootUser:                   c.S3RootUser,
		S3RootPassword:               c.S3RootPassword,
		S3Bucket:                     c.S3Bucket,
		S3Region:                     c.S3Region,
		S3BaseEndpoint:               c.S3BaseEndpoint,
		S3PublicBaseURL:              c.S3PublicBaseURL,
		UploadDir:                    c.UploadDir,
		MaxUploadBytes:               c.MaxUploadBytes,
		LogLevel:                     c.LogLevel,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrHTTP = j.EndpointAddrHTTP
	c.EndpointAddrGRPC = j.EndpointAddrGRPC
	c.StoreDriver = j.StoreDriver
	c.DatabaseDSN = j.DatabaseDSN
	c.MongoURI = j.MongoURI
	c.MongoDatabase = j.MongoDatabase
	c.AccessTokenSecret = j.AccessTokenSecret
	c.RefreshTokenSecret = j.RefreshTokenSecret
	c.AccessTokenValidityDuration = j.AccessTokenValidityDuration.Duration
	c.RefreshTokenValidityDuration = j.RefreshTokenValidityDuration.Duration
	c.BcryptCost = j.BcryptCost
	c.CookieSecure = j.CookieSecure
	c.CookieSameSite = j.CookieSameSite
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.S3PublicBaseURL = j.S3PublicBaseURL
	c.UploadDir = j.UploadDir
	c.MaxUploadBytes = j.MaxUploadBytes
	c.LogLevel = j.LogLevel
}

// parseJson overlays the file named by -c/-config onto config. Keys missing
// from the file keep their current values. No flag means nothing to load.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}
	c.apply(config)
	return nil
}
