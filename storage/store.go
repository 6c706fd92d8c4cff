package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/ilmlab/core"
	"github.com/trezcool/ilmlab/storage/database"
	inmemdb "github.com/trezcool/ilmlab/storage/database/inmem"
	redisdb "github.com/trezcool/ilmlab/storage/database/redis"
	sqlxdb "github.com/trezcool/ilmlab/storage/database/sqlx"
)

const redisPrefix = "ilmlab:"

// OpenDocumentStore connects the configured document store backend.
// SQL databases are created and migrated first. The returned func releases the connection.
func OpenDocumentStore(ctx context.Context, conf *core.Config, rankField string) (core.DocumentStore, func() error, error) {
	switch conf.DocumentStore {
	case core.StoreMemory:
		return inmemdb.NewDocumentStore(), func() error { return nil }, nil

	case core.StoreRedis:
		rdb, err := redisdb.Connect(ctx, conf)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connecting to redis")
		}
		return redisdb.NewDocumentStore(rdb, redisPrefix, rankField), rdb.Close, nil

	case core.StoreSQL, "":
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, nil, err
		}
		if err = database.Migrate(db, conf.Database.Engine); err != nil {
			_ = db.Close()
			return nil, nil, errors.Wrap(err, "migrating database")
		}
		return sqlxdb.NewDocumentStore(db, rankField), db.Close, nil

	default:
		return nil, nil, errors.Errorf("unsupported document store %q", conf.DocumentStore)
	}
}
