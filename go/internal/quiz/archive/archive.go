package archive

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizclient/go/internal/dbconfig"
	"github.com/mcdev12/quizclient/go/internal/quiz/archive/db"
	"github.com/mcdev12/quizclient/go/internal/quiz/machine"
	"github.com/mcdev12/quizclient/go/internal/sqlutil"
)

// Archive writes the final standings of hosted sessions to Postgres.
type Archive struct {
	db *sql.DB
}

// Open connects to the database described by cfg.
func Open(ctx context.Context, cfg dbconfig.Config) (*Archive, error) {
	database, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("database", cfg.Redacted()).Msg("connected to results archive")
	return New(database), nil
}

// New wraps an open database handle.
func New(database *sql.DB) *Archive {
	return &Archive{db: database}
}

// Save stores the session and every leaderboard row in one transaction and returns
// the generated session id.
func (a *Archive) Save(ctx context.Context, result machine.FinalResult) (uuid.UUID, error) {
	id := uuid.New()

	err := sqlutil.Run(ctx, a.db, func(tx *sql.Tx) *db.Queries { return db.New(tx) }, func(q *db.Queries) error {
		err := q.InsertSession(ctx, db.InsertSessionParams{
			ID:          id,
			Code:        result.Identity.Code,
			StartedAt:   sqlutil.ToSqlTime(result.Roster.StartedAt),
			EndedAt:     result.EndedAt,
			PlayerCount: int32(len(result.Leaderboard)),
			Snapshot:    sqlutil.ToNullRawMessage(result.Snapshot),
		})
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		for i, row := range result.Leaderboard {
			err := q.InsertResult(ctx, db.InsertResultParams{
				SessionID:       id,
				Rank:            int32(i + 1),
				ParticipantName: row.ParticipantName,
				Score:           int32(row.Score),
				Answered:        int32(row.Answered),
				Correct:         int32(row.Correct),
				AvatarRef:       sqlutil.ToSqlString(row.AvatarRef),
			})
			if err != nil {
				return fmt.Errorf("insert result for %s: %w", row.ParticipantName, err)
			}
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("archive session %s: %w", result.Identity.Code, err)
	}

	log.Info().
		Str("session_code", result.Identity.Code).
		Str("archive_id", id.String()).
		Int("players", len(result.Leaderboard)).
		Msg("session results archived")
	return id, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}
