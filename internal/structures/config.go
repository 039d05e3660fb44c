package structures

import "time"

type Server struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host" validate:"required"`
	Port    int    `yaml:"port" validate:"required|uint|min:1"`
}

type Persistence struct {
	Driver     string `yaml:"driver" validate:"required|in:file,sqlite"`
	Dir        string `yaml:"dir" validate:"required"`
	SqlitePath string `yaml:"sqlitePath"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required"`
}

// HourRange is an inclusive hour-of-day window. 0/0 disables the range.
type HourRange struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

type ScheduleConfig struct {
	Interval             time.Duration `yaml:"interval" validate:"required|min:1"`
	JitterLow            time.Duration `yaml:"jitterLow"`
	JitterHigh           time.Duration `yaml:"jitterHigh"`
	MinDelay             time.Duration `yaml:"minDelay"`
	IntervalStep         time.Duration `yaml:"intervalStep"`
	MinInterval          time.Duration `yaml:"minInterval"`
	MaxBackoff           time.Duration `yaml:"maxBackoff"`
	Hours                []HourRange   `yaml:"hours"`
	Stagger              time.Duration `yaml:"stagger"`
	StaggerJitter        time.Duration `yaml:"staggerJitter"`
	SerializeFetches     bool          `yaml:"serializeFetches"`
	LivenessInterval     time.Duration `yaml:"livenessInterval"`
	MaxConsecutiveErrors int           `yaml:"maxConsecutiveErrors"`
}

type FetchConfig struct {
	BaseURL         string        `yaml:"baseURL" validate:"required"`
	SessionToken    string        `yaml:"sessionToken"`
	Timeout         time.Duration `yaml:"timeout" validate:"required|min:1"`
	PacingMin       time.Duration `yaml:"pacingMin"`
	PacingMax       time.Duration `yaml:"pacingMax"`
	UserAgent       string        `yaml:"userAgent"`
	PicturesDir     string        `yaml:"picturesDir"`
	DetailedStories bool          `yaml:"detailedStories"`
}

type TargetConfig struct {
	Username string        `yaml:"username"`
	Interval time.Duration `yaml:"interval"`
	Stagger  time.Duration `yaml:"stagger"`
}

type ConsoleSinkConfig struct {
	Enabled bool     `yaml:"enabled"`
	Filter  []string `yaml:"filter"`
}

type EmailSinkConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Filter   []string      `yaml:"filter"`
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	To       []string      `yaml:"to"`
	Timeout  time.Duration `yaml:"timeout"`
}

type WebhookSinkConfig struct {
	Enabled bool          `yaml:"enabled"`
	Filter  []string      `yaml:"filter"`
	URL     string        `yaml:"url"`
	Secret  string        `yaml:"secret"`
	Timeout time.Duration `yaml:"timeout"`
}

type TelegramSinkConfig struct {
	Enabled bool     `yaml:"enabled"`
	Filter  []string `yaml:"filter"`
	Token   string   `yaml:"token"`
	ChatID  int64    `yaml:"chatID"`
}

type DashboardSinkConfig struct {
	Enabled bool     `yaml:"enabled"`
	Filter  []string `yaml:"filter"`
}

type PostgresSinkConfig struct {
	Enabled bool     `yaml:"enabled"`
	Filter  []string `yaml:"filter"`
	DSN     string   `yaml:"dsn"`
}

type NotifyConfig struct {
	ChangeLog   string              `yaml:"changeLog" validate:"required"`
	SendTimeout time.Duration       `yaml:"sendTimeout"`
	Console     ConsoleSinkConfig   `yaml:"console"`
	Email       EmailSinkConfig     `yaml:"email"`
	Webhook     WebhookSinkConfig   `yaml:"webhook"`
	Telegram    TelegramSinkConfig  `yaml:"telegram"`
	Dashboard   DashboardSinkConfig `yaml:"dashboard"`
	Postgres    PostgresSinkConfig  `yaml:"postgres"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	Schedule    ScheduleConfig `yaml:"schedule"`
	Fetch       FetchConfig    `yaml:"fetch"`
	Targets     []TargetConfig `yaml:"targets"`
	Notify      NotifyConfig   `yaml:"notify"`
	WebServer   Server         `yaml:"webServer"`
	Persistence Persistence    `yaml:"persistence"`
	Logger      LoggerConfig   `yaml:"logger"`
	Cache       CacheConfig    `yaml:"cache"`
	Metrics     MetricsConfig  `yaml:"metrics"`
}
