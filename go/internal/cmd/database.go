package main

import (
	"context"
	"fmt"

	"github.com/mcdev12/quizclient/go/internal/dbconfig"
	"github.com/mcdev12/quizclient/go/internal/quiz/archive"
	"github.com/mcdev12/quizclient/go/internal/quiz/config"
	"github.com/mcdev12/quizclient/go/internal/quiz/session"
)

type archiveStore interface {
	session.Archiver
	Close() error
}

func setupArchive(ctx context.Context, cfg config.Config) (archiveStore, error) {
	if cfg.Archive.Backend == config.ArchiveRedis {
		return archive.OpenRedis(ctx, cfg.Archive.RedisURL, cfg.Archive.TTL)
	}

	dbConfig := dbconfig.NewConfigFromEnv()
	if err := archive.Migrate(dbConfig.DSN()); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", dbConfig.Redacted(), err)
	}
	return archive.Open(ctx, dbConfig)
}
