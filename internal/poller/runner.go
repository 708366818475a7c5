// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package poller

import (
	"context"
	"log/slog"
	"time"
)

// Run polls immediately and then on every tick of the interval until ctx is
// done. Each result is handed to report when it is non-nil. Units are polled
// one after another; a slow cycle delays the next tick instead of overlapping.
func (p *Poller) Run(ctx context.Context, report func(Result)) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		for _, res := range p.PollOnce(ctx) {
			if res.Err != nil {
				slog.Warn("Poll failed", "unit", res.Unit, "err", res.Err)
			} else {
				slog.Debug("Poll succeeded", "unit", res.Unit)
			}
			if report != nil {
				report(res)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
