package service

import (
	"context"
	"math/rand"
	"time"

	"xnstat/internal/domain"
	"xnstat/internal/repository"
)

// OnlineChecker は LastActiveService が満たす。
type OnlineChecker interface {
	Check(ctx context.Context, player domain.WatchedPlayer) (domain.OnlineCheck, error)
}

// RunOnlinePoller は監視中プレイヤーの最終アクティブを interval ごとに記録する。
func RunOnlinePoller(
	ctx context.Context,
	interval time.Duration,
	playerDelayMax time.Duration,
	watchRepo repository.WatchRepository,
	checker OnlineChecker,
	logger PollLogger,
) {
	if interval <= 0 {
		return
	}
	logger.Infof("online poller start: interval=%s player_delay_max=%s", interval, playerDelayMax)
	runOnlinePollOnce(ctx, playerDelayMax, watchRepo, checker, logger)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnlinePollOnce(ctx, playerDelayMax, watchRepo, checker, logger)
		}
	}
}

func runOnlinePollOnce(
	ctx context.Context,
	playerDelayMax time.Duration,
	watchRepo repository.WatchRepository,
	checker OnlineChecker,
	logger PollLogger,
) {
	players, err := watchRepo.List(ctx)
	if err != nil {
		logger.Error("online poll list players: ", err)
		return
	}
	if len(players) == 0 {
		logger.Infof("online poll: no watched players")
		return
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for _, player := range players {
		if ctx.Err() != nil {
			return
		}
		check, err := checker.Check(ctx, player)
		if err != nil {
			logger.Error("online poll check: ", err)
		} else if !check.Known() {
			// 前回の記録を残す
			logger.Infof("online poll skipped: player=%s no planets found", player.PlayerName)
		} else if err := watchRepo.RecordCheck(ctx, check); err != nil {
			logger.Error("online poll record: ", err)
		} else {
			logger.Infof("online poll done: player=%s last_active=%d planets=%d", player.PlayerName, check.OnlineTime, check.NumPlanets)
		}
		jitterSleep(ctx, rng, playerDelayMax)
	}
}

func jitterSleep(ctx context.Context, rng *rand.Rand, max time.Duration) {
	if max <= 0 {
		return
	}
	delay := time.Duration(rng.Int63n(int64(max)))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
