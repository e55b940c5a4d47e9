package inmemdb

import (
	"context"
	"sync"

	"github.com/mrdawstar/LinguaLab-sub000/core"
	"github.com/mrdawstar/LinguaLab-sub000/core/attendance"
	"github.com/mrdawstar/LinguaLab-sub000/core/lessonpkg"
	"github.com/mrdawstar/LinguaLab-sub000/core/school"
)

// DB is an in-memory store for tests and local runs.
// A transaction holds the store's lock for its whole duration, so transactions are serialized;
// an aborted transaction restores the tables as they were when it began.
type DB struct {
	mutex     sync.Mutex
	records   map[string]attendance.Record
	purchases map[string]lessonpkg.Purchase
	settings  map[string]school.Settings
}

var (
	_ core.Transactor = (*DB)(nil)
	_ core.Pinger     = (*DB)(nil)
)

func Open() *DB {
	return &DB{
		records:   make(map[string]attendance.Record),
		purchases: make(map[string]lessonpkg.Purchase),
		settings:  make(map[string]school.Settings),
	}
}

func (db *DB) PingContext(context.Context) error {
	return nil
}

func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if db.inTx(ctx) {
		return fn(ctx)
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	snap := db.snapshot()
	defer func() {
		if p := recover(); p != nil {
			db.restore(snap)
			panic(p)
		}
		if err != nil {
			db.restore(snap)
		}
	}()
	return fn(core.ContextWithTx(ctx, db))
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.restore(tables{
		records:   make(map[string]attendance.Record),
		purchases: make(map[string]lessonpkg.Purchase),
		settings:  make(map[string]school.Settings),
	})
}

func (db *DB) inTx(ctx context.Context) bool {
	tx, ok := core.TxFromContext(ctx).(*DB)
	return ok && tx == db
}

// lock acquires the store's lock unless ctx already carries one of its transactions.
func (db *DB) lock(ctx context.Context) func() {
	if db.inTx(ctx) {
		return func() {}
	}
	db.mutex.Lock()
	return db.mutex.Unlock
}

type tables struct {
	records   map[string]attendance.Record
	purchases map[string]lessonpkg.Purchase
	settings  map[string]school.Settings
}

func (db *DB) snapshot() tables {
	snap := tables{
		records:   make(map[string]attendance.Record, len(db.records)),
		purchases: make(map[string]lessonpkg.Purchase, len(db.purchases)),
		settings:  make(map[string]school.Settings, len(db.settings)),
	}
	for k, v := range db.records {
		snap.records[k] = v
	}
	for k, v := range db.purchases {
		snap.purchases[k] = v
	}
	for k, v := range db.settings {
		snap.settings[k] = v
	}
	return snap
}

func (db *DB) restore(snap tables) {
	db.records = snap.records
	db.purchases = snap.purchases
	db.settings = snap.settings
}
