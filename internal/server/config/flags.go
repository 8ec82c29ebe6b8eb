package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/tubeaccounts/internal/flagx"
)

// parseFlags overlays command-line flags onto config.
//
//	-a string   HTTP bind address
//	-g string   gRPC health bind address
//	-m string   store driver: postgres | mongo | memory
//	-d string   PostgreSQL DSN
//	-o string   MongoDB URI
//	-n string   MongoDB database name
//	-s string   access token secret
//	-k string   refresh token secret
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-w int      bcrypt cost
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket
//	-l string   S3 region
//	-e string   S3 base endpoint
//	-x string   public base URL for uploaded objects
//	-f string   temporary upload directory
//
// Flags that are not listed here are ignored, so -c/-config can share argv.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.StoreDriver, "m", config.StoreDriver, "store driver (postgres, mongo, memory)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "PostgreSQL DSN")
	fs.StringVar(&config.MongoURI, "o", config.MongoURI, "MongoDB URI")
	fs.StringVar(&config.MongoDatabase, "n", config.MongoDatabase, "MongoDB database")
	fs.StringVar(&config.AccessTokenSecret, "s", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "k", config.RefreshTokenSecret, "refresh token secret")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	fs.IntVar(&config.BcryptCost, "w", config.BcryptCost, "bcrypt cost")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "l", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3PublicBaseURL, "x", config.S3PublicBaseURL, "public base URL of uploaded objects")
	fs.StringVar(&config.UploadDir, "f", config.UploadDir, "temporary upload directory")

	if err := flagx.ParseKnown(fs, args); err != nil {
		return err
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	return nil
}
