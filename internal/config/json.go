package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/serenoapp/syncstore/internal/flagx"
	"github.com/serenoapp/syncstore/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals use
// timex.Duration so the file can specify them as strings like "30s" or as
// integer nanoseconds.
type JsonConfig struct {
	DataDir       string         `json:"data_dir"`
	SyncInterval  timex.Duration `json:"sync_interval"`
	IdleInterval  timex.Duration `json:"idle_interval"`
	MaxTries      int            `json:"max_tries"`
	DeadLetterTTL timex.Duration `json:"dead_letter_ttl"`
}

// parseJson overlays cfg with values from the JSON file named by -c/-config.
// Absent file path means no JSON stage. Zero-valued fields in the file leave
// the earlier stage's value in place. Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
	if jc.SyncInterval.Duration > 0 {
		cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	}
	if jc.IdleInterval.Duration > 0 {
		cfg.IdleInterval = time.Duration(jc.IdleInterval.Duration)
	}
	if jc.MaxTries > 0 {
		cfg.MaxTries = jc.MaxTries
	}
	if jc.DeadLetterTTL.Duration > 0 {
		cfg.DeadLetterTTL = time.Duration(jc.DeadLetterTTL.Duration)
	}
}
