package marketfeed

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Mode selects the feed implementation: "sim", "remote" or "stream".
	Mode         string        `envconfig:"FEED_MODE" default:"sim"`
	BaseURL      string        `envconfig:"FEED_BASE_URL" default:""`
	StreamURL    string        `envconfig:"FEED_STREAM_URL" default:""`
	Timeout      time.Duration `envconfig:"FEED_TIMEOUT" default:"5s"`
	SimTicks     bool          `envconfig:"FEED_SIM_TICKS" default:"false"`
	TickInterval time.Duration `envconfig:"FEED_TICK_INTERVAL" default:"3s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
