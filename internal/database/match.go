// internal/database/match.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jqwei/undercover/internal/archive"
)

// RecordMatch persists the final outcome of one game: a row in matches plus
// one row per roster entry in match_players. Idempotent on the match id so
// the archivist can safely retry a failed batch.
func RecordMatch(ctx context.Context, rec archive.MatchRecord) error {
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertMatch := `
			INSERT INTO matches (id, room_id, winner, good_word, evil_word, created_at, ended_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`
		if _, e := tx.Exec(ctx, upsertMatch,
			rec.MatchID, rec.RoomID, string(rec.Winner), rec.GoodWord, rec.EvilWord,
			time.Unix(rec.CreatedAt, 0), time.Unix(rec.EndedAt, 0),
		); e != nil {
			return e
		}

		for _, pl := range rec.Players {
			q := `
				INSERT INTO match_players (match_id, player_id, name, role, status)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (match_id, player_id)
				DO UPDATE SET name=$3, role=$4, status=$5
			`
			if _, e := tx.Exec(ctx, q, rec.MatchID, pl.ID, pl.Name, string(pl.Role), string(pl.Status)); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert match %s: %w", rec.MatchID, err)
	}
	return nil
}
