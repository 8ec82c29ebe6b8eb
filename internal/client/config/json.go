package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/tubeaccounts/internal/flagx"
	"github.com/dmitrijs2005/tubeaccounts/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals
// accept "3s"-style strings or integer nanoseconds.
type JsonConfig struct {
	ServerBaseURL       string         `json:"server_base_url"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
}

// parseJson overlays cfg with the file named by -c/-config. Keys missing
// from the file keep their current values.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	jc := JsonConfig{
		ServerBaseURL:       cfg.ServerBaseURL,
		RequestTimeout:      timex.Duration{Duration: cfg.RequestTimeout},
		OnlineCheckInterval: timex.Duration{Duration: cfg.OnlineCheckInterval},
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		return err
	}

	cfg.ServerBaseURL = jc.ServerBaseURL
	cfg.RequestTimeout = jc.RequestTimeout.Duration
	cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	return nil
}
