package sketchd

import (
	"context"
	"math"
	"time"

	"github.com/Borislavv/cmsketch/pkg/utils"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

const statsInterval = 5 * time.Second

func formatBytes(n int) string {
	return humanize.IBytes(uint64(n))
}

func comma(n uint64) string {
	if n > math.MaxInt64 {
		n = math.MaxInt64
	}
	return humanize.Comma(int64(n))
}

// runStatsLogger publishes the total weight to the meter and logs the ingest rate of each window.
func (s *Service[K]) runStatsLogger(ctx context.Context) {
	t := utils.NewTicker(ctx, statsInterval)
	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-t:
			last = s.logAndReset(last)
		}
	}
}

func (s *Service[K]) logAndReset(last uint64) uint64 {
	total := s.sketch.TotalWeight()
	s.meter.SetTotalWeight(total)

	added := total - last
	if total < last {
		added = total
	}
	if added == 0 {
		return total
	}
	rate := float64(added) / statsInterval.Seconds()

	logEvent := log.Info()
	if s.cfg.IsProd() {
		logEvent.
			Str("target", "sketch").
			Uint64("added", added).
			Uint64("totalWeight", total).
			Float64("perSecond", rate)
	}
	logEvent.Msgf("[sketch][5s] added %s (%.1f/s), total weight %s",
		comma(added), rate, comma(total))

	return total
}
