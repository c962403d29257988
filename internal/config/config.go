package config

import (
	"encoding/base64"
	"fmt"
)

type Config struct {
	ServerAddr     string
	DatabaseURL    string
	SigningKey     []byte
	AllowedOrigins []string
	EventRate      float64
	EventBurst     int
}

const (
	defaultEventRate  = 10
	defaultEventBurst = 20
)

func NewConfig(serverAddr, databaseURL, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseURL:    databaseURL,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		EventRate:      defaultEventRate,
		EventBurst:     defaultEventBurst,
	}, nil
}
