// Package sqlstore implements storage.Driver on top of ent's dialect/sql
// builder. It is database-agnostic and is embedded by the sqlite and postgres
// drivers.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/papercomputeco/serenity/pkg/storage"
)

var entryColumns = []string{"id", "chat_id", "seq", "role", "message", "complete", "created_at"}

// Store provides storage operations using an ent SQL driver.
type Store struct {
	drv     *entsql.Driver
	dialect string
}

// Open wraps db with ent's SQL driver for the given dialect and creates the
// replay log tables.
func Open(ctx context.Context, dialectName string, db *sql.DB) (*Store, error) {
	s := &Store{
		drv:     entsql.OpenDB(dialectName, db),
		dialect: dialectName,
	}

	for _, stmt := range schema {
		if err := s.exec(ctx, s.drv, stmt, []any{}); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return s, nil
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

func (s *Store) Append(ctx context.Context, entry *storage.Entry) error {
	if entry == nil {
		return errors.New("cannot store nil entry")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	return s.withTx(ctx, func(tx dialect.Tx) error {
		last, err := s.lastSeq(ctx, tx, entry.ChatID)
		if err != nil {
			return err
		}
		entry.Seq = last + 1

		query, args := s.builder().Insert(entriesTable).
			Columns(entryColumns...).
			Values(entry.ID, entry.ChatID, entry.Seq, string(entry.Role), entry.Message, entry.Complete, entry.CreatedAt).
			Query()
		if err := s.exec(ctx, tx, query, args); err != nil {
			return fmt.Errorf("could not insert entry: %w", err)
		}
		return nil
	})
}

func (s *Store) UpdateEntry(ctx context.Context, chatID string, seq int, message string, complete bool) error {
	query, args := s.builder().Update(entriesTable).
		Set("message", message).
		Set("complete", complete).
		Where(entsql.And(entsql.EQ("chat_id", chatID), entsql.EQ("seq", seq))).
		Query()

	var res sql.Result
	if err := s.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("could not update entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not update entry: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{Key: fmt.Sprintf("%s/%d", chatID, seq)}
	}
	return nil
}

func (s *Store) Entries(ctx context.Context, chatID string) ([]storage.Entry, error) {
	query, args := s.builder().Select(entryColumns...).
		From(entsql.Table(entriesTable)).
		Where(entsql.EQ("chat_id", chatID)).
		OrderBy("seq").
		Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []storage.Entry
	for rows.Next() {
		var (
			e    storage.Entry
			role string
		)
		if err := rows.Scan(&e.ID, &e.ChatID, &e.Seq, &role, &e.Message, &e.Complete, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Role = storage.Role(role)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (s *Store) Clear(ctx context.Context) error {
	return s.withTx(ctx, func(tx dialect.Tx) error {
		for _, table := range []string{entriesTable, stateTable} {
			query, args := s.builder().Delete(table).Query()
			if err := s.exec(ctx, tx, query, args); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

func (s *Store) SetState(ctx context.Context, key, value string) error {
	query, args := s.builder().Insert(stateTable).
		Columns("key", "value").
		Values(key, value).
		OnConflict(entsql.ConflictColumns("key"), entsql.ResolveWithNewValues()).
		Query()

	if err := s.exec(ctx, s.drv, query, args); err != nil {
		return fmt.Errorf("failed to set state %s: %w", key, err)
	}
	return nil
}

func (s *Store) State(ctx context.Context, key string) (string, error) {
	query, args := s.builder().Select("value").
		From(entsql.Table(stateTable)).
		Where(entsql.EQ("key", key)).
		Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return "", fmt.Errorf("failed to get state %s: %w", key, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", err
		}
		return "", storage.NotFoundError{Key: key}
	}

	var value string
	if err := rows.Scan(&value); err != nil {
		return "", fmt.Errorf("failed to scan state %s: %w", key, err)
	}
	return value, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.drv.Close()
}

// lastSeq returns the highest seq in chatID, or 0 for an empty chat.
func (s *Store) lastSeq(ctx context.Context, q dialect.ExecQuerier, chatID string) (int, error) {
	query, args := s.builder().Select("seq").
		From(entsql.Table(entriesTable)).
		Where(entsql.EQ("chat_id", chatID)).
		OrderBy(entsql.Desc("seq")).
		Limit(1).
		Query()

	var rows entsql.Rows
	if err := q.Query(ctx, query, args, &rows); err != nil {
		return 0, fmt.Errorf("failed to read last entry: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, rows.Err()
	}

	var seq int
	if err := rows.Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to scan last entry: %w", err)
	}
	return seq, nil
}

func (s *Store) exec(ctx context.Context, q dialect.ExecQuerier, query string, args []any) error {
	var res sql.Result
	return q.Exec(ctx, query, args, &res)
}

func (s *Store) withTx(ctx context.Context, fn func(tx dialect.Tx) error) error {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
