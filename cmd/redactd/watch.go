package main

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hyeonwoo/redactkit/observability"
)

// settleDelay is how long a file must stay quiet before it is considered
// fully written. Uploads via scp or network shares arrive in bursts of write
// events.
const settleDelay = 500 * time.Millisecond

// Run drains the inbox, then watches it until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.DrainInbox(ctx); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(d.cfg.Watch.Inbox); err != nil {
		return err
	}
	d.logger.Info("watching inbox", observability.String("dir", d.cfg.Watch.Inbox))

	pending := make(map[string]time.Time)
	tick := time.NewTicker(settleDelay / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isPDF(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				pending[ev.Name] = time.Now()
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				delete(pending, ev.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			d.logger.Warn("watcher error", observability.Error("err", err))
		case now := <-tick.C:
			for path, last := range pending {
				if now.Sub(last) < settleDelay {
					continue
				}
				delete(pending, path)
				if err := d.ProcessFile(ctx, path); err != nil {
					d.logger.Error("masking failed",
						observability.String("file", path),
						observability.Error("err", err))
				}
			}
		}
	}
}
