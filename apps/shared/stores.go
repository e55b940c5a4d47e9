// Package shared holds the wiring used by every app binary.
package shared

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/mrdawstar/LinguaLab-sub000/core"
	"github.com/mrdawstar/LinguaLab-sub000/core/attendance"
	"github.com/mrdawstar/LinguaLab-sub000/core/lessonpkg"
	"github.com/mrdawstar/LinguaLab-sub000/core/school"
	"github.com/mrdawstar/LinguaLab-sub000/storage/database"
	inmemdb "github.com/mrdawstar/LinguaLab-sub000/storage/database/inmem"
	sqlxrepos "github.com/mrdawstar/LinguaLab-sub000/storage/database/sqlx"
)

// Stores bundles the repositories of the configured storage engine.
type Stores struct {
	Tx         core.Transactor
	Pinger     core.Pinger
	Attendance attendance.Repository
	Packages   lessonpkg.Repository
	Settings   school.Repository

	// SQL is nil for the memory engine.
	SQL *sql.DB
}

// Close releases the underlying database connections.
func (s *Stores) Close() error {
	if s.SQL == nil {
		return nil
	}
	return s.SQL.Close()
}

// OpenStores opens the storage engine named in conf.
// The postgres engine is migrated to the latest version when migrate is set.
func OpenStores(ctx context.Context, conf *core.Config, migrate bool) (*Stores, error) {
	switch conf.Database.Engine {
	case core.EngineMemory:
		return MemoryStores(inmemdb.Open()), nil

	case core.EnginePostgres:
		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err = database.Migrate(ctx, db.DB); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		repos := sqlxrepos.NewDB(db)
		return &Stores{
			Tx:         repos,
			Pinger:     repos,
			Attendance: sqlxrepos.NewAttendanceRepository(repos),
			Packages:   sqlxrepos.NewPackageRepository(repos),
			Settings:   sqlxrepos.NewSettingsRepository(repos),
			SQL:        db.DB,
		}, nil

	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
}

func MemoryStores(db *inmemdb.DB) *Stores {
	return &Stores{
		Tx:         db,
		Pinger:     db,
		Attendance: inmemdb.NewAttendanceRepository(db),
		Packages:   inmemdb.NewPackageRepository(db),
		Settings:   inmemdb.NewSettingsRepository(db),
	}
}
