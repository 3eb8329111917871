package main

import (
	"go.uber.org/zap"

	gantry "gantry/lib"
	"gantry/lib/auth"
	"gantry/lib/cache"
	"gantry/lib/controllers"
)

func main() {
	log := gantry.Log()

	config, err := gantry.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	opts := []gantry.Option{gantry.WithConfig(config)}

	// Static JWT verification replaces OIDC discovery when AUTH_MODE=jwt,
	// e.g. behind a gateway that already issues tokens.
	if config.AuthMode() == "jwt" {
		switch {
		case config.AuthJWKSURL() != "":
			opts = append(opts, gantry.WithVerifier(auth.NewJWKSVerifier(config.AuthJWKSURL())))
		case config.AuthJWTSecret() != "":
			opts = append(opts, gantry.WithVerifier(auth.NewSecretVerifier([]byte(config.AuthJWTSecret()))))
		default:
			log.Warn("AUTH_MODE=jwt but no secret or JWKS URL configured, serving anonymous-only")
		}
	}

	if config.RedisURL() != "" {
		redisCache, err := cache.NewRedisCache(config.RedisURL())
		if err != nil {
			log.Warn("Redis unavailable, falling back to in-memory cache", zap.Error(err))
		} else {
			opts = append(opts, gantry.WithCache(redisCache))
		}
	}

	engine, err := gantry.NewEngine(opts...)
	if err != nil {
		log.Fatal("Failed to initialize engine", zap.Error(err))
	}

	if _, err := controllers.NewCounterController(engine); err != nil {
		log.Warn("Counter controller unavailable", zap.Error(err))
	}

	engine.Start()
}
