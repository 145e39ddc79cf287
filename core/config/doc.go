// Package config loads environment variables into typed structs with caching.
// Each configuration type is parsed once and cached for subsequent calls.
//
// The package loads a .env file on first use (missing files are ignored) and
// uses caarlos0/env for parsing struct tags.
//
// Basic usage:
//
//	import "github.com/dmitrymomot/eventbridge/core/config"
//
//	type RedisConfig struct {
//		URL    string `env:"REDIS_URL,required"`
//		Stream string `env:"REDIS_STREAM" envDefault:"slack_events"`
//	}
//
//	func main() {
//		var cfg RedisConfig
//		if err := config.Load(&cfg); err != nil {
//			log.Fatal(err)
//		}
//
//		// Or panic on failure (useful for startup)
//		config.MustLoad(&cfg)
//	}
//
// # Caching Behavior
//
// Each configuration type is loaded only once per process lifetime. Different
// types are cached independently, so every package can declare its own Config
// and load it without coordinating with the others:
//
//	config.MustLoad(&server.Config{})
//	config.MustLoad(&ingress.Config{})
//	config.MustLoad(&consumer.Config{})
package config
