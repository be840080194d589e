package app

import (
	"context"
	"errors"
	"time"

	"oil-price-watch/internal/alerting"
	"oil-price-watch/internal/detector"
)

// SimulateAlert 通过给定的新旧价格模拟一次告警流程。
func (a *App) SimulateAlert(ctx context.Context, oldPrice, newPrice float64) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	now := time.Now().UTC()
	cycle := now.Unix()
	previousCycle := cycle - 1
	delta := newPrice - oldPrice

	event := detector.ChangeEvent{
		Timestamp:    now,
		OldPrice:     &oldPrice,
		NewPrice:     newPrice,
		OldCycle:     &previousCycle,
		NewCycle:     cycle,
		Delta:        delta,
		DeltaPercent: delta / oldPrice * 100,
		Kind:         detector.KindUpdate,
	}

	note := alerting.Notification{
		Event:         event,
		Threshold:     a.Config.Monitor.ChangeThreshold,
		Channels:      a.Config.Alerting.Channels,
		AdditionalMsg: "(simulated)",
	}
	return notifier.Notify(ctx, note)
}
