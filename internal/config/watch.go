package config

import (
	"context"
	"os"
	"time"
)

// WatchSchedule reloads schedule.yaml on change and calls onUpdate with the
// latest config. It performs an initial load before entering the watch loop.
// Invalid edits are reported through onError and the previous config stays.
func WatchSchedule(ctx context.Context, path string, interval time.Duration, onUpdate func(*ScheduleConfig), onError func(error)) error {
	if path == "" {
		path = "configs/schedule.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	cfg, err := LoadScheduleConfig(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				lastMod = info.ModTime()
				cfg, err := LoadScheduleConfig(path)
				if err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				if onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}()

	return nil
}
