package bootstrap

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"intellidoc-backend/internal/shared/telemetry"
)

// ResetPurgeSchedule is how often expired password-reset tokens are cleared.
const ResetPurgeSchedule = "@every 15m"

// NewScheduler registers background jobs. The caller starts and stops it.
func NewScheduler(app *App) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(ResetPurgeSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := app.UsersService.PurgeExpiredResetTokens(ctx); err != nil {
			telemetry.Warn("jobs.reset_purge_failed", map[string]any{"error": err.Error()})
		}
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
