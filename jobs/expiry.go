package jobs

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mrdawstar/LinguaLab-sub000/core"
)

const ExpiryJobName = "package_expiry"

type PackageExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// ExpiryJob marks expired the packages that are past due or idle for too long.
func ExpiryJob(expirer PackageExpirer, logger core.Logger) Job {
	return func(ctx context.Context) error {
		n, err := expirer.ExpireDue(ctx, core.NowFunc())
		packagesExpired.Add(float64(n))
		if err != nil {
			return errors.Wrap(err, "expiring packages")
		}
		if n > 0 {
			logger.Info("packages expired", map[string]interface{}{"count": n})
		}
		return nil
	}
}
