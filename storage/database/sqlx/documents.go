package sqlxdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ilmlab/core"
)

const (
	getDocumentSQL = `SELECT fields FROM documents WHERE collection = ? AND id = ?`

	upsertDocumentSQL = `INSERT INTO documents (collection, id, fields, sort_value, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (collection, id) DO UPDATE
SET fields = excluded.fields, sort_value = excluded.sort_value, updated_at = excluded.updated_at`

	updateDocumentSQL = `UPDATE documents SET fields = ?, sort_value = ?, updated_at = ? WHERE collection = ? AND id = ?`

	rankDocumentsSQL = `SELECT id, fields FROM documents
WHERE collection = ? AND sort_value IS NOT NULL
ORDER BY sort_value DESC, id
LIMIT ?`
)

// DocumentStore keeps documents as JSON objects in the documents table.
// The numeric value of rankField is mirrored in sort_value so that documents can be ranked.
type DocumentStore struct {
	db        core.DB
	rankField string
	nowFunc   func() time.Time
}

type documentRow struct {
	ID     string `db:"id"`
	Fields string `db:"fields"`
}

// interface compliance checks
var (
	_ core.DocumentStore  = (*DocumentStore)(nil)
	_ core.DocumentRanker = (*DocumentStore)(nil)
)

func NewDocumentStore(db core.DB, rankField string) *DocumentStore {
	return &DocumentStore{db: db, rankField: rankField, nowFunc: time.Now}
}

func (s *DocumentStore) withTx(ctx context.Context, fn func(tx core.DBExecutor) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (s *DocumentStore) get(ctx context.Context, exec core.DBExecutor, coll, id string) (map[string]json.RawMessage, error) {
	var raw string
	if err := exec.GetContext(ctx, &raw, exec.Rebind(getDocumentSQL), coll, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrDocumentNotFound
		}
		return nil, errors.Wrap(err, "selecting document")
	}
	return decodeFields(raw)
}

func decodeFields(raw string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, errors.Wrap(err, "decoding document fields")
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	return fields, nil
}

func (s *DocumentStore) sortValue(fields map[string]json.RawMessage) sql.NullFloat64 {
	if s.rankField == "" {
		return sql.NullFloat64{}
	}
	v := core.ParseNumber(fields[s.rankField])
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func (s *DocumentStore) Get(ctx context.Context, coll, id string) (core.Document, error) {
	fields, err := s.get(ctx, s.db, coll, id)
	if err != nil {
		return core.Document{}, err
	}
	return core.Document{ID: id, Fields: fields}, nil
}

func (s *DocumentStore) Set(ctx context.Context, coll, id string, fields core.Fields, opts core.SetOptions) error {
	encoded, err := core.EncodeFields(fields)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx core.DBExecutor) error {
		var current map[string]json.RawMessage
		if opts.Merge {
			current, err = s.get(ctx, tx, coll, id)
			if err != nil && err != core.ErrDocumentNotFound {
				return err
			}
		}
		merged := core.MergeFields(current, encoded, opts.Merge)
		data, err := json.Marshal(merged)
		if err != nil {
			return errors.Wrap(err, "encoding document")
		}

		now := s.nowFunc().UTC()
		_, err = tx.ExecContext(ctx, tx.Rebind(upsertDocumentSQL), coll, id, string(data), s.sortValue(merged), now, now)
		return errors.Wrap(err, "upserting document")
	})
}

func (s *DocumentStore) Update(ctx context.Context, coll, id string, fields core.Fields) error {
	encoded, err := core.EncodeFields(fields)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx core.DBExecutor) error {
		current, err := s.get(ctx, tx, coll, id)
		if err != nil {
			return err
		}
		merged := core.MergeFields(current, encoded, true)
		data, err := json.Marshal(merged)
		if err != nil {
			return errors.Wrap(err, "encoding document")
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(updateDocumentSQL), string(data), s.sortValue(merged), s.nowFunc().UTC(), coll, id)
		return errors.Wrap(err, "updating document")
	})
}

// Rank only supports the rank field the store was created with.
func (s *DocumentStore) Rank(ctx context.Context, coll, field string, limit int) ([]core.Document, error) {
	if field == "" || field != s.rankField {
		return nil, core.ErrRankingUnsupported
	}
	if limit <= 0 {
		limit = math.MaxInt32
	}

	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(rankDocumentsSQL), coll, limit); err != nil {
		return nil, errors.Wrap(err, "ranking documents")
	}

	docs := make([]core.Document, 0, len(rows))
	for _, row := range rows {
		fields, err := decodeFields(row.Fields)
		if err != nil {
			return nil, errors.Wrapf(err, "document %q", row.ID)
		}
		docs = append(docs, core.Document{ID: row.ID, Fields: fields})
	}
	return docs, nil
}
