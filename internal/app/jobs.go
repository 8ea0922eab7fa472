package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	sweepEvery := a.appConfig.Chat.SweepIntervalMin
	if sweepEvery <= 0 {
		sweepEvery = 10
	}
	_, err := a.sched.AddFunc("@every "+(time.Duration(sweepEvery)*time.Minute).String(), func() {
		a.SchedSweepSessions()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@daily", func() {
		a.SchedPruneChatHistory()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@every 10m", func() {
		a.SchedRecheckBackorders()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// SchedSweepSessions drops conversations idle beyond the TTL.
func (a *Application) SchedSweepSessions() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	a.chatManager.Sessions().Sweep()
}

// SchedPruneChatHistory removes conversation turns past the retention
// window.
func (a *Application) SchedPruneChatHistory() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	days := a.appConfig.Chat.HistoryRetDays
	if days <= 0 {
		days = 30
	}
	removed, err := a.chatlogs.DeleteOlderThan(context.Background(), days)
	if err != nil {
		zap.L().Error("chat history prune failed", zap.Error(err))
		return
	}
	if removed > 0 {
		zap.L().Info("pruned chat history", zap.Int64("rows", removed))
	}
}

// SchedRecheckBackorders promotes backorders that have become satisfiable.
func (a *Application) SchedRecheckBackorders() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	promoted, err := a.bulkManager.RecheckBackorders(context.Background(), 100)
	if err != nil {
		zap.L().Error("backorder recheck failed", zap.Error(err))
		return
	}
	if promoted > 0 {
		zap.L().Info("backorders promoted", zap.Int("count", promoted))
	}
}
