package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/config"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/kv"
	kvpg "github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/kv/postgres"
	kvredis "github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/kv/redis"
	kvsqlite "github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/kv/sqlite"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/localstate"
)

// NewKV opens the persistence driver named by cfg.KVDriver.
// "auto" and "" resolve to SQLite under the local data directory.
func NewKV(ctx context.Context, cfg *config.Config, log zerolog.Logger) (kv.KV, error) {
	driver := cfg.KVDriver
	if driver == "" || driver == "auto" {
		driver = "sqlite"
	}

	switch driver {
	case "memory":
		log.Warn().Msg("using in-memory kv; records will not survive restart")
		return kv.NewMemory(), nil
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			p, err := localstate.DBPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		s, err := kvsqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite kv %s: %w", path, err)
		}
		log.Info().Str("driver", driver).Str("path", path).Msg("kv opened")
		return s, nil
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("EVENTWATCH_POSTGRES_DSN is required when KV_DRIVER=postgres")
		}
		s, err := kvpg.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres kv: %w", err)
		}
		log.Info().Str("driver", driver).Msg("kv opened")
		return s, nil
	case "redis":
		s, err := kvredis.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("open redis kv: %w", err)
		}
		log.Info().Str("driver", driver).Str("addr", cfg.RedisAddr).Msg("kv opened")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown KV_DRIVER: %s", cfg.KVDriver)
	}
}
