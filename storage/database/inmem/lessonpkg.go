package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mrdawstar/LinguaLab-sub000/core"
	"github.com/mrdawstar/LinguaLab-sub000/core/lessonpkg"
)

type packageRepository struct {
	db *DB
}

var _ lessonpkg.Repository = (*packageRepository)(nil)

func NewPackageRepository(db *DB) lessonpkg.Repository {
	return &packageRepository{db: db}
}

func sortPurchases(ps []lessonpkg.Purchase) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].PurchaseDate.Equal(ps[j].PurchaseDate) {
			return ps[i].ID < ps[j].ID
		}
		return ps[i].PurchaseDate.Before(ps[j].PurchaseDate)
	})
}

func (repo *packageRepository) CreatePurchase(ctx context.Context, p lessonpkg.Purchase) (lessonpkg.Purchase, error) {
	defer repo.db.lock(ctx)()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	repo.db.purchases[p.ID] = p
	return p, nil
}

func (repo *packageRepository) GetPurchase(ctx context.Context, id string) (lessonpkg.Purchase, error) {
	defer repo.db.lock(ctx)()

	if p, ok := repo.db.purchases[id]; ok {
		return p, nil
	}
	return lessonpkg.Purchase{}, lessonpkg.ErrNotFound
}

func (repo *packageRepository) GetPurchaseForUpdate(ctx context.Context, id string) (lessonpkg.Purchase, error) {
	return repo.GetPurchase(ctx, id)
}

func (repo *packageRepository) QueryPurchases(ctx context.Context, filter lessonpkg.QueryFilter) ([]lessonpkg.Purchase, error) {
	defer repo.db.lock(ctx)()

	ps := make([]lessonpkg.Purchase, 0)
	for _, p := range repo.db.purchases {
		if filter.StudentID != "" && p.StudentID != filter.StudentID {
			continue
		}
		if filter.SchoolID != "" && p.SchoolID != filter.SchoolID {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, p.Status) {
			continue
		}
		ps = append(ps, p)
	}
	sortPurchases(ps)
	return ps, nil
}

func hasStatus(statuses []lessonpkg.Status, st lessonpkg.Status) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

func (repo *packageRepository) OldestAvailable(ctx context.Context, studentID string, at time.Time) (lessonpkg.Purchase, error) {
	defer repo.db.lock(ctx)()

	ps := make([]lessonpkg.Purchase, 0)
	for _, p := range repo.db.purchases {
		if p.StudentID == studentID && p.Available(at) {
			ps = append(ps, p)
		}
	}
	if len(ps) == 0 {
		return lessonpkg.Purchase{}, lessonpkg.ErrNotFound
	}
	sortPurchases(ps)
	return ps[0], nil
}

func (repo *packageRepository) CompareAndSwapUsage(ctx context.Context, prev, next lessonpkg.Purchase) (lessonpkg.Purchase, error) {
	defer repo.db.lock(ctx)()

	p, ok := repo.db.purchases[prev.ID]
	if !ok {
		return lessonpkg.Purchase{}, lessonpkg.ErrNotFound
	}
	if p.LessonsUsed != prev.LessonsUsed || p.Status != prev.Status {
		return lessonpkg.Purchase{}, core.ErrConflict
	}
	p.LessonsUsed = next.LessonsUsed
	p.Status = next.Status
	p.UpdatedAt = next.UpdatedAt
	repo.db.purchases[p.ID] = p
	return p, nil
}

func (repo *packageRepository) UpdatePurchase(ctx context.Context, p lessonpkg.Purchase) (lessonpkg.Purchase, error) {
	defer repo.db.lock(ctx)()

	orig, ok := repo.db.purchases[p.ID]
	if !ok {
		return lessonpkg.Purchase{}, lessonpkg.ErrNotFound
	}
	orig.LessonsTotal = p.LessonsTotal
	orig.LessonsUsed = p.LessonsUsed
	orig.Status = p.Status
	orig.ExpiresAt = p.ExpiresAt
	orig.UpdatedAt = p.UpdatedAt
	repo.db.purchases[p.ID] = orig
	return orig, nil
}

func (repo *packageRepository) DeletePurchase(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.purchases[id]; !ok {
		return lessonpkg.ErrNotFound
	}
	delete(repo.db.purchases, id)
	return nil
}

func (repo *packageRepository) ExpirePurchases(ctx context.Context, at time.Time) (int, error) {
	defer repo.db.lock(ctx)()

	var n int
	for id, p := range repo.db.purchases {
		if p.Status != lessonpkg.StatusExpired && p.IsExpiredAt(at) {
			p.Status = lessonpkg.StatusExpired
			p.UpdatedAt = at
			repo.db.purchases[id] = p
			n++
		}
	}
	return n, nil
}

func (repo *packageRepository) ExpireIdleExhausted(ctx context.Context, schoolID string, idleSince time.Time) (int, error) {
	defer repo.db.lock(ctx)()

	now := core.NowFunc()
	var n int
	for id, p := range repo.db.purchases {
		if p.SchoolID == schoolID && p.Status == lessonpkg.StatusExhausted && p.UpdatedAt.Before(idleSince) {
			p.Status = lessonpkg.StatusExpired
			p.UpdatedAt = now
			repo.db.purchases[id] = p
			n++
		}
	}
	return n, nil
}

func (repo *packageRepository) SchoolsWithExhausted(ctx context.Context) ([]string, error) {
	defer repo.db.lock(ctx)()

	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, p := range repo.db.purchases {
		if p.Status != lessonpkg.StatusExhausted {
			continue
		}
		if _, ok := seen[p.SchoolID]; !ok {
			seen[p.SchoolID] = struct{}{}
			ids = append(ids, p.SchoolID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
