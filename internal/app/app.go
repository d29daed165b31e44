package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stratlab/internal/config"
	"stratlab/internal/gateway/notifier"
	"stratlab/internal/logger"
	"stratlab/internal/market"
	"stratlab/internal/scheduler"
	apihttp "stratlab/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 服务。
type App struct {
	cfg     *config.Config
	comp    *Components
	http    *apihttp.Server
	Summary *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.http == nil {
		return fmt.Errorf("http server not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	if sched := a.syncScheduler(); sched != nil {
		group.Go(func() error {
			sched.Run(ctx, a.syncOnce)
			return nil
		})
	}
	return group.Wait()
}

// syncScheduler 仅在配置了 sync.symbols 且外部源可用时返回调度器。
func (a *App) syncScheduler() *scheduler.AlignedScheduler {
	if !a.cfg.Sync.Enabled() || a.comp == nil || a.comp.Ingestor == nil {
		return nil
	}
	interval, ok := scheduler.ParseIntervalDuration(a.cfg.Sync.Interval)
	if !ok {
		return nil
	}
	s := scheduler.NewAlignedScheduler(interval, a.cfg.Sync.Offset())
	s.RunImmediately = a.cfg.Sync.RunOnStart
	return s
}

// syncOnce 把 sync.symbols 逐个补齐到今天；单个失败只记日志。
func (a *App) syncOnce(ctx context.Context) {
	to := market.Day(time.Now())
	from := to.AddDate(0, 0, -a.cfg.Sync.LookbackDays)
	failures := make(map[string]string)
	for _, sym := range a.cfg.Sync.Symbols {
		if ctx.Err() != nil {
			return
		}
		res, err := a.comp.Ingestor.Sync(ctx, sym, from, to)
		if err != nil {
			logger.Warnf("[sync] %s failed: %v", sym, err)
			failures[sym] = err.Error()
			continue
		}
		if !res.UpToDate {
			logger.Infof("[sync] %s wrote %d candles", res.Symbol, res.Written)
		}
	}
	if len(failures) == 0 || a.comp.Notifier == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := a.comp.Notifier.SendText(sendCtx, notifier.SyncFailure(failures, time.Now()).RenderMarkdown()); err != nil {
		logger.Warnf("[sync] failure alert not sent: %v", err)
	}
}

// Components 暴露已装配的依赖，供 CLI 子命令直接调用。
func (a *App) Components() *Components {
	if a == nil {
		return nil
	}
	return a.comp
}

// Close 释放存储句柄。
func (a *App) Close() error {
	if a == nil || a.comp == nil {
		return nil
	}
	var errs []error
	if a.comp.Results != nil {
		errs = append(errs, a.comp.Results.Close())
	}
	if a.comp.Candles != nil {
		errs = append(errs, a.comp.Candles.Close())
	}
	return errors.Join(errs...)
}
