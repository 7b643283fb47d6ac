package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Driver selects the gorm dialector: "sqlite" (default, local file DSN)
	// or "postgres" for deployments.
	Driver       string `envconfig:"DB_DRIVER" default:"sqlite"`
	DatabaseURL  string `envconfig:"DATABASE_URL" default:"papertrader.db"`
	GormLogLevel int    `envconfig:"GORM_LOG_LEVEL" default:"2"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
