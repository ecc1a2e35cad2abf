package config

import (
	"time"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Web     WebConfig     `yaml:"web"`
	Sampler SamplerConfig `yaml:"sampler"`
	Camera  CameraConfig  `yaml:"camera"`
	Backend BackendConfig `yaml:"backend"`
	Events  EventsConfig  `yaml:"events"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Debug   DebugConfig   `yaml:"debug"`
}

type ServerConfig struct {
	IP   string     `yaml:"ip"`
	Port int        `yaml:"port"`
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig 控制接口鉴权
type AuthConfig struct {
	Enabled bool          `yaml:"enabled"`
	Secret  string        `yaml:"secret"`
	TTL     time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type WebConfig struct {
	Enabled   bool   `yaml:"enabled"`
	StaticDir string `yaml:"static_dir"`
	Websocket string `yaml:"websocket"`
}

// SamplerConfig 采样节奏配置
type SamplerConfig struct {
	Sensitivity int  `yaml:"sensitivity"`
	AutoStart   bool `yaml:"auto_start"`
}

// CameraConfig 摄像头来源配置
type CameraConfig struct {
	Type        string         `yaml:"type"`
	SnapshotURL string         `yaml:"snapshot_url"`
	Directory   string         `yaml:"directory"`
	Timeout     time.Duration  `yaml:"timeout"`
	Security    SecurityConfig `yaml:"security"`
}

type SecurityConfig struct {
	MaxFileSize    int64    `yaml:"max_file_size"`
	MaxPixels      int64    `yaml:"max_pixels"`
	MaxWidth       int      `yaml:"max_width"`
	MaxHeight      int      `yaml:"max_height"`
	AllowedFormats []string `yaml:"allowed_formats"`
	EnableDeepScan bool     `yaml:"enable_deep_scan"`
}

// BackendConfig 视觉模型配置
type BackendConfig struct {
	Type        string        `yaml:"type"`
	ModelName   string        `yaml:"model_name"`
	BaseURL     string        `yaml:"url"`
	APIKey      string        `yaml:"api_key"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// EventsConfig 事件日志存储配置
type EventsConfig struct {
	Driver   string            `yaml:"driver"`
	Capacity int               `yaml:"capacity"`
	Redis    EventsRedisConfig `yaml:"redis"`
	SQLite   EventsSQLiteStore `yaml:"sqlite"`
}

type EventsRedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Key      string `yaml:"key,omitempty"`
}

type EventsSQLiteStore struct {
	DSN string `yaml:"dsn,omitempty"`
}

// AlertsConfig 告警外发配置
type AlertsConfig struct {
	MQTT MQTTConfig `yaml:"mqtt"`
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Topic    string `yaml:"topic"`
	QoS      int    `yaml:"qos"`
}

// DebugConfig AI调试日志
type DebugConfig struct {
	Capacity int `yaml:"capacity"`
}
