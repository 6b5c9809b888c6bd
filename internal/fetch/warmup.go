package fetch

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	warmupTimeout     = 20 * time.Second
	warmupParallelism = 4
)

// Warmup loads the team stats of each season into the cache. Failures are
// logged and counted; the number of seasons that could not be loaded is returned.
func (f *Fetcher) Warmup(ctx context.Context, seasons ...string) int {
	if len(seasons) == 0 {
		seasons = []string{f.defaultSeason}
	}

	var g errgroup.Group
	g.SetLimit(warmupParallelism)
	failed := make(chan string, len(seasons))

	for _, season := range seasons {
		season := season
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, warmupTimeout)
			defer cancel()

			teams, err := f.TeamStats(ctx, season)
			if err != nil {
				f.logger.Warn("failed to warm team stats", zap.String("season", season), zap.Error(err))
				failed <- season
				return nil
			}
			f.logger.Info("warmed team stats", zap.String("season", season), zap.Int("teams", len(teams)))
			return nil
		})
	}
	_ = g.Wait()
	close(failed)

	return len(failed)
}
