package main

import (
	"strings"
	"time"
)

// Process roles.
const (
	RoleAll      = "all"
	RoleIngress  = "ingress"
	RoleConsumer = "consumer"
)

// appConfig holds process-level settings. Component settings live in the
// component packages and are loaded separately.
type appConfig struct {
	Role           string        `env:"APP_ROLE" envDefault:"all"`
	ServiceName    string        `env:"SERVICE_NAME" envDefault:"eventbridge"`
	Environment    string        `env:"APP_ENV" envDefault:"production"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	MetricsPath    string        `env:"METRICS_PATH" envDefault:"/metrics"`
	HandlerTimeout time.Duration `env:"HANDLER_TIMEOUT" envDefault:"30s"`
}

func (c appConfig) runsIngress() bool {
	role := strings.ToLower(strings.TrimSpace(c.Role))
	return role == RoleAll || role == RoleIngress
}

func (c appConfig) runsConsumer() bool {
	role := strings.ToLower(strings.TrimSpace(c.Role))
	return role == RoleAll || role == RoleConsumer
}
