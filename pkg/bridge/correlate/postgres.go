// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

package correlate

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the durable Store used when edits and deletes must keep
// working across process restarts. One row per message timestamp; the
// origin timestamp is the primary key, so insert-once falls out of the
// uniqueness constraint.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

const schema = `CREATE TABLE IF NOT EXISTS messages (
	in_ts TEXT PRIMARY KEY,
	in_workspace TEXT NOT NULL,
	in_channel TEXT NOT NULL,
	out_workspace TEXT NOT NULL,
	out_channel TEXT NOT NULL,
	out_conversation TEXT NOT NULL,
	out_ts TEXT NOT NULL
)`

// NewPostgres connects to the given database and provisions the messages
// table if it does not exist yet.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open correlation database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to provision messages table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Get(ctx context.Context, ts string) (*Record, error) {
	var rec Record
	err := p.pool.QueryRow(ctx,
		`SELECT in_workspace, in_channel, out_workspace, out_channel, out_conversation, out_ts
		 FROM messages WHERE in_ts = $1`, ts).
		Scan(&rec.Workspace, &rec.Channel, &rec.PeerWorkspace, &rec.PeerChannel,
			&rec.PeerConversation, &rec.PeerTS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read correlation record: %w", err)
	}
	return &rec, nil
}

func (p *Postgres) Put(ctx context.Context, ts string, rec Record) (bool, error) {
	if ts == "" || !rec.Complete() {
		return false, nil
	}
	tag, err := p.pool.Exec(ctx, insertRecord, ts,
		rec.Workspace, rec.Channel, rec.PeerWorkspace, rec.PeerChannel,
		rec.PeerConversation, rec.PeerTS)
	if err != nil {
		return false, fmt.Errorf("failed to insert correlation record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const insertRecord = `INSERT INTO messages
	(in_ts, in_workspace, in_channel, out_workspace, out_channel, out_conversation, out_ts)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (in_ts) DO NOTHING`

func (p *Postgres) Delete(ctx context.Context, ts string) (bool, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var peerTS string
	err = tx.QueryRow(ctx, `SELECT out_ts FROM messages WHERE in_ts = $1`, ts).Scan(&peerTS)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up correlation record: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE in_ts = $1 OR in_ts = $2`, ts, peerTS); err != nil {
		return false, fmt.Errorf("failed to delete correlation pair: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit correlation delete: %w", err)
	}
	return true, nil
}

// Link inserts the forward and backward records in one transaction, so a
// concurrent edit or delete for the same message observes either the whole
// pair or nothing.
func (p *Postgres) Link(ctx context.Context, originTS, originConversation string, fwd Record) (bool, error) {
	if originTS == "" || originConversation == "" || !fwd.Complete() {
		return false, nil
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin link transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, insertRecord, originTS,
		fwd.Workspace, fwd.Channel, fwd.PeerWorkspace, fwd.PeerChannel,
		fwd.PeerConversation, fwd.PeerTS)
	if err != nil {
		return false, fmt.Errorf("failed to insert forward record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	bwd := fwd.reverse(originTS, originConversation)
	tag, err = tx.Exec(ctx, insertRecord, fwd.PeerTS,
		bwd.Workspace, bwd.Channel, bwd.PeerWorkspace, bwd.PeerChannel,
		bwd.PeerConversation, bwd.PeerTS)
	if err != nil {
		return false, fmt.Errorf("failed to insert backward record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit correlation pair: %w", err)
	}
	return true, nil
}
