package providers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"profmon/internal/structures"
)

const AppName = "ProfileMonitor"

func setDefaults(v *viper.Viper) {
	v.SetDefault("schedule.interval", 90*time.Minute)
	v.SetDefault("schedule.jitterLow", 5*time.Minute)
	v.SetDefault("schedule.jitterHigh", 15*time.Minute)
	v.SetDefault("schedule.minDelay", 30*time.Second)
	v.SetDefault("schedule.intervalStep", 5*time.Minute)
	v.SetDefault("schedule.minInterval", 5*time.Minute)
	v.SetDefault("schedule.maxBackoff", 6*time.Hour)
	v.SetDefault("schedule.staggerJitter", 30*time.Second)
	v.SetDefault("schedule.livenessInterval", 30*time.Minute)
	v.SetDefault("schedule.maxConsecutiveErrors", 10)

	v.SetDefault("fetch.timeout", 2*time.Minute)
	v.SetDefault("fetch.pacingMin", time.Second)
	v.SetDefault("fetch.pacingMax", 4*time.Second)

	v.SetDefault("notify.changeLog", "data/changes.csv")
	v.SetDefault("notify.console.enabled", true)
	v.SetDefault("notify.webhook.timeout", 10*time.Second)
	v.SetDefault("notify.email.port", 587)
	v.SetDefault("notify.email.timeout", 30*time.Second)
	v.SetDefault("notify.sendTimeout", time.Minute)

	v.SetDefault("webServer.enabled", true)
	v.SetDefault("webServer.host", "127.0.0.1")
	v.SetDefault("webServer.port", 8090)

	v.SetDefault("persistence.driver", "file")
	v.SetDefault("persistence.dir", "data/state")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.mode", 0644)
	v.SetDefault("logger.dir", "data")

	v.SetDefault("cache.size", 16)
	v.SetDefault("cache.ttl", time.Hour)
}

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	v := viper.New()
	setDefaults(v)

	filename := filepath.Base(flags.ConfigPath)
	v.AddConfigPath(filepath.Dir(flags.ConfigPath))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")

	v.BindEnv("logger.level", "PROFMON_LOG_LEVEL")
	v.BindEnv("schedule.interval", "PROFMON_INTERVAL")
	v.BindEnv("fetch.baseURL", "PROFMON_FETCH_URL")
	v.BindEnv("fetch.sessionToken", "PROFMON_SESSION_TOKEN")
	v.BindEnv("notify.email.password", "PROFMON_SMTP_PASSWORD")
	v.BindEnv("notify.telegram.token", "PROFMON_TELEGRAM_TOKEN")
	v.BindEnv("notify.postgres.dsn", "PROFMON_POSTGRES_DSN")

	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = AppName
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
