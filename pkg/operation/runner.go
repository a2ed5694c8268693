// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package operation

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/pkg/lock"
)

// DefaultLockTTL bounds how long a crashed run can block its identifier
const DefaultLockTTL = 15 * time.Minute

type result struct {
	out *Outcome
	err error
}

// 🏃 Runner executes workflows, holding the identifier's run lock for the duration
type Runner struct {
	locker lock.Locker
	ttl    time.Duration
	async  bool
}

// 🏗️ NewRunner creates a new runner. A nil locker never blocks.
func NewRunner(locker lock.Locker, ttl time.Duration, async bool) *Runner {
	if locker == nil {
		locker = lock.Noop{}
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Runner{
		locker: locker,
		ttl:    ttl,
		async:  async,
	}
}

// 🏃 Run executes wf for req
func (r *Runner) Run(ctx context.Context, wf Workflow, req Request) (*Outcome, error) {
	release, ok, err := r.locker.Acquire(ctx, req.ExternalID, r.ttl)
	if err != nil {
		return nil, errors.Errorf("acquiring run lock for %s: %w", req.ExternalID, err)
	}
	if !ok {
		out := newOutcome(wf.Mode(), req)
		out.skip("in progress")
		zerolog.Ctx(ctx).Info().Str("external_id", req.ExternalID).Msg("another run holds the lock, skipping")
		return out, nil
	}
	releaseLock := func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("external_id", req.ExternalID).Msg("releasing run lock")
		}
	}

	if r.async {
		return r.runAsync(ctx, wf, req, releaseLock)
	}
	defer releaseLock()
	return r.runSync(ctx, wf, req)
}

// 🔄 runSync runs a workflow synchronously
func (r *Runner) runSync(ctx context.Context, wf Workflow, req Request) (*Outcome, error) {
	return wf.Run(ctx, req)
}

// ⚡ runAsync returns as soon as ctx is cancelled; the workflow sees the same cancellation.
// The lock stays held until the workflow itself returns.
func (r *Runner) runAsync(ctx context.Context, wf Workflow, req Request, releaseLock func()) (*Outcome, error) {
	done := make(chan result, 1)

	go func() {
		out, err := wf.Run(ctx, req)
		releaseLock()
		done <- result{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.Errorf("run cancelled: %w", ctx.Err())
	case res := <-done:
		return res.out, res.err
	}
}
