package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8080,
			Auth: AuthConfig{
				Enabled: false,
				TTL:     24 * time.Hour,
			},
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Enabled:   true,
			StaticDir: "./web",
			Websocket: "ws://localhost:8080/ws",
		},
		Sampler: SamplerConfig{
			Sensitivity: 5,
			AutoStart:   false,
		},
		Camera: CameraConfig{
			Type:    "snapshot",
			Timeout: 5 * time.Second,
			Security: SecurityConfig{
				MaxFileSize:    5 * 1024 * 1024,
				MaxPixels:      16777216,
				MaxWidth:       4096,
				MaxHeight:      4096,
				AllowedFormats: []string{"jpeg", "jpg", "png", "webp", "gif"},
				EnableDeepScan: true,
			},
		},
		Backend: BackendConfig{
			Type:        "ollama",
			ModelName:   "llava",
			BaseURL:     "http://localhost:11434",
			Temperature: 0.1,
			MaxTokens:   512,
			Timeout:     30 * time.Second,
		},
		Events: EventsConfig{
			Driver:   "memory",
			Capacity: 50,
			Redis: EventsRedisConfig{
				Addr: "127.0.0.1:6379",
				Key:  "dronewatch:events",
			},
		},
		Alerts: AlertsConfig{
			MQTT: MQTTConfig{
				Enabled:  false,
				Broker:   "tcp://127.0.0.1:1883",
				ClientID: "dronewatch",
				Topic:    "dronewatch/alerts",
				QoS:      1,
			},
		},
		Debug: DebugConfig{
			Capacity: 100,
		},
	}
}
