package appconfig

import (
	"github.com/SaiNageswarS/go-api-boot/config"
)

type AppConfig struct {
	config.BootConfig `ini:",extends"`

	BackendURL string `ini:"backend_url"`
	StatePath  string `ini:"state_path"`
	ReportsDir string `ini:"reports_dir"`
	UserName   string `ini:"user_name"`

	HealthIntervalSeconds int `ini:"health_interval_seconds"`
}
