package scheduler

/*
   Copyright 2018 Bruno Moura <brunotm@gmail.com>

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brunotm/flowmesh/actor"
)

// WaitInactive polls every actor's activity indicator until idleDuration has
// elapsed with no change, or timeout expires first (spec 4.5's
// wait_inactive(idleDuration, timeout)). Each actor is watched by its own
// goroutine fanned out through an errgroup; WaitInactive reports true only
// if every actor settles into quiescence before the shared timeout. Each
// actor's idle window is measured on its own and its watcher stops once it
// has seen one, so the windows of different actors need not overlap.
func WaitInactive(actors []*actor.Actor, idleDuration, timeout time.Duration) bool {
	if len(actors) == 0 {
		return true
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, a := range actors {
		a := a
		g.Go(func() error { return watchIdle(ctx, a, idleDuration) })
	}
	return g.Wait() == nil
}

var errNotIdle = context.DeadlineExceeded

func watchIdle(ctx context.Context, a *actor.Actor, idleDuration time.Duration) error {
	const pollInterval = time.Millisecond
	last := a.Activity()
	idleSince := time.Now()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if time.Since(idleSince) >= idleDuration {
			return nil
		}
		select {
		case <-ctx.Done():
			return errNotIdle
		case <-ticker.C:
			cur := a.Activity()
			if cur != last {
				last = cur
				idleSince = time.Now()
			}
		}
	}
}
