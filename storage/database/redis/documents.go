package redisdb

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/ilmlab/core"
)

// idField is set on every document hash so that documents without fields still exist.
const idField = "_id"

// DocumentStore keeps one hash per document (field -> JSON value).
// The numeric value of rankField is mirrored in a sorted set per collection.
type DocumentStore struct {
	rdb       *redis.Client
	prefix    string
	rankField string
}

// interface compliance checks
var (
	_ core.DocumentStore  = (*DocumentStore)(nil)
	_ core.DocumentRanker = (*DocumentStore)(nil)
)

// Connect opens a client to the configured server and pings it.
func Connect(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        conf.Redis.Address,
		Password:    conf.Redis.Password,
		DB:          conf.Redis.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping")
	}
	return rdb, nil
}

func NewDocumentStore(rdb *redis.Client, prefix, rankField string) *DocumentStore {
	return &DocumentStore{rdb: rdb, prefix: prefix, rankField: rankField}
}

func (s *DocumentStore) docKey(coll, id string) string {
	return s.prefix + "doc:" + coll + ":" + id
}

func (s *DocumentStore) rankKey(coll string) string {
	return s.prefix + "rank:" + coll + ":" + s.rankField
}

func hashValues(id string, fields map[string]json.RawMessage) []interface{} {
	vals := make([]interface{}, 0, 2*len(fields)+2)
	vals = append(vals, idField, id)
	for k, v := range fields {
		vals = append(vals, k, string(v))
	}
	return vals
}

func (s *DocumentStore) fromHash(id string, hash map[string]string) core.Document {
	fields := make(map[string]json.RawMessage, len(hash))
	for k, v := range hash {
		if k == idField {
			continue
		}
		fields[k] = json.RawMessage(v)
	}
	return core.Document{ID: id, Fields: fields}
}

// mirrorRank keeps the sorted set in line with the rank field of written fields.
// When replace is false and the field was not written, the sorted set is left as is.
func (s *DocumentStore) mirrorRank(ctx context.Context, p redis.Pipeliner, coll, id string, fields map[string]json.RawMessage, replace bool) {
	if s.rankField == "" {
		return
	}
	raw, ok := fields[s.rankField]
	if !ok && !replace {
		return
	}
	v := core.ParseNumber(raw)
	if math.IsNaN(v) {
		p.ZRem(ctx, s.rankKey(coll), id)
		return
	}
	p.ZAdd(ctx, s.rankKey(coll), redis.Z{Score: v, Member: id})
}

func (s *DocumentStore) Get(ctx context.Context, coll, id string) (core.Document, error) {
	hash, err := s.rdb.HGetAll(ctx, s.docKey(coll, id)).Result()
	if err != nil {
		return core.Document{}, errors.Wrap(err, "reading document hash")
	}
	if len(hash) == 0 {
		return core.Document{}, core.ErrDocumentNotFound
	}
	return s.fromHash(id, hash), nil
}

func (s *DocumentStore) Set(ctx context.Context, coll, id string, fields core.Fields, opts core.SetOptions) error {
	encoded, err := core.EncodeFields(fields)
	if err != nil {
		return err
	}

	key := s.docKey(coll, id)
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if !opts.Merge {
			p.Del(ctx, key)
		}
		p.HSet(ctx, key, hashValues(id, encoded)...)
		s.mirrorRank(ctx, p, coll, id, encoded, !opts.Merge)
		return nil
	})
	return errors.Wrap(err, "writing document hash")
}

func (s *DocumentStore) Update(ctx context.Context, coll, id string, fields core.Fields) error {
	encoded, err := core.EncodeFields(fields)
	if err != nil {
		return err
	}

	key := s.docKey(coll, id)
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return core.ErrDocumentNotFound
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, hashValues(id, encoded)...)
			s.mirrorRank(ctx, p, coll, id, encoded, false)
			return nil
		})
		return err
	}, key)
	if err == core.ErrDocumentNotFound {
		return err
	}
	return errors.Wrap(err, "updating document hash")
}

// Rank only supports the rank field the store was created with.
func (s *DocumentStore) Rank(ctx context.Context, coll, field string, limit int) ([]core.Document, error) {
	if field == "" || field != s.rankField {
		return nil, core.ErrRankingUnsupported
	}
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := s.rdb.ZRevRange(ctx, s.rankKey(coll), 0, stop).Result()
	if err != nil {
		return nil, errors.Wrap(err, "ranking documents")
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, s.docKey(coll, id))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading ranked documents")
	}

	docs := make([]core.Document, 0, len(ids))
	for i, id := range ids {
		hash := cmds[i].Val()
		if len(hash) == 0 {
			continue // removed since ranked
		}
		docs = append(docs, s.fromHash(id, hash))
	}
	return docs, nil
}
