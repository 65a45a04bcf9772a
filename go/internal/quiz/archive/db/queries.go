package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

const insertSession = `-- name: InsertSession :exec
INSERT INTO quiz_sessions (id, code, started_at, ended_at, player_count, snapshot)
VALUES ($1, $2, $3, $4, $5, $6)
`

type InsertSessionParams struct {
	ID          uuid.UUID
	Code        string
	StartedAt   sql.NullTime
	EndedAt     time.Time
	PlayerCount int32
	Snapshot    pqtype.NullRawMessage
}

func (q *Queries) InsertSession(ctx context.Context, arg InsertSessionParams) error {
	_, err := q.db.ExecContext(ctx, insertSession,
		arg.ID,
		arg.Code,
		arg.StartedAt,
		arg.EndedAt,
		arg.PlayerCount,
		arg.Snapshot,
	)
	return err
}

const insertResult = `-- name: InsertResult :exec
INSERT INTO quiz_results (session_id, rank, participant_name, score, answered, correct, avatar_ref)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

type InsertResultParams struct {
	SessionID       uuid.UUID
	Rank            int32
	ParticipantName string
	Score           int32
	Answered        int32
	Correct         int32
	AvatarRef       sql.NullString
}

func (q *Queries) InsertResult(ctx context.Context, arg InsertResultParams) error {
	_, err := q.db.ExecContext(ctx, insertResult,
		arg.SessionID,
		arg.Rank,
		arg.ParticipantName,
		arg.Score,
		arg.Answered,
		arg.Correct,
		arg.AvatarRef,
	)
	return err
}
