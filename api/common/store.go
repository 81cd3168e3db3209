package common

import (
	"context"
	"fmt"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/veridian-dash/veridian/lib/db"
	"github.com/veridian-dash/veridian/lib/db/engines/maple"
	"github.com/veridian-dash/veridian/lib/db/engines/postgres"
	"github.com/veridian-dash/veridian/lib/db/engines/s3"
	"github.com/veridian-dash/veridian/lib/db/engines/sqlite"
	"github.com/veridian-dash/veridian/lib/store"
	"github.com/veridian-dash/veridian/lib/store/dstore"
	"github.com/veridian-dash/veridian/lib/store/lstore"
)

var engineLog = logger.GetLogger("engine")

// OpenStore creates the store selected by the config. The local backends open their
// engine right away, so connection errors surface here and not on the first request.
func (c *StoreConfig) OpenStore(ctx context.Context) (store.IStore, error) {
	switch c.Backend {
	case BackendMemory, "":
		return lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }), nil

	case BackendSQLite:
		engine, err := sqlite.NewSQLiteDB(c.SQLitePath)
		if err != nil {
			return nil, err
		}
		return local(engine), nil

	case BackendPostgres:
		engine, err := postgres.NewPostgresDB(ctx, postgres.Options{
			DSN:     c.PostgresDSN,
			Table:   c.PostgresTable,
			Timeout: c.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return local(engine), nil

	case BackendS3:
		engine, err := s3.NewS3DB(ctx, s3.Config{
			Bucket:    c.S3Bucket,
			Prefix:    c.S3Prefix,
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			PathStyle: c.S3PathStyle,
			Timeout:   c.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return local(engine), nil

	case BackendRaft:
		raft := c.Raft
		if raft.Timeout == 0 {
			raft.Timeout = c.Timeout
		}
		return dstore.Start(raft, func() db.KVDB {
			return maple.NewMapleDB(&maple.DBOptions{DisableSweeper: true})
		})

	default:
		return nil, fmt.Errorf("unknown store backend %q (one of %v)", c.Backend, StoreBackends)
	}
}

// local wraps an already opened engine into a local store
func local(engine db.KVDB) store.IStore {
	engineLog.Infof("opened %s engine", engine.GetInfo().DbType)
	return lstore.NewLocalStore(func() db.KVDB { return engine })
}
