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

package commands

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/drsholding/cmd/drsholding/opts"
	"github.com/walteh/drsholding/pkg/queue"
	"github.com/walteh/drsholding/pkg/task"
	"github.com/walteh/drsholding/pkg/telemetry"
	"github.com/walteh/drsholding/pkg/web"
)

// NewWorkerCmd creates the long-running queue worker
func NewWorkerCmd(opts *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume add_holdings tasks from the broker",
		Long: `Worker connects to the broker and processes add_holdings tasks until stopped.
It will:
1. Connect to the record store, the catalog and the broker
2. Mark itself ready and keep the heartbeat file fresh
3. Route each task to the api or dropbox workflow, or publish the continuation
4. Serve /healthz, /readyz and /records when health.listen is set`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := zerolog.Ctx(cmd.Context()).With().Str("command", "worker").Logger().WithContext(cmd.Context())
			return runWorker(ctx, opts)
		},
	}

	return cmd
}

func runWorker(ctx context.Context, o *opts.RootOpts) error {
	cfg := o.Config
	logger := zerolog.Ctx(ctx)

	if err := cfg.RequireBroker(); err != nil {
		return errors.Errorf("configuring broker: %w", err)
	}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		return errors.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			logger.Warn().Err(err).Msg("flushing traces")
		}
	}()

	store, err := o.OpenStore(ctx)
	if err != nil {
		return errors.Errorf("opening store: %w", err)
	}
	defer store.Close(context.WithoutCancel(ctx))

	locker, closeLocker, err := o.Locker(ctx)
	if err != nil {
		return err
	}
	defer closeLocker()

	var dispatcher task.Dispatcher
	if cfg.Features.RoutingEnabled {
		router, err := o.Router(ctx, store, locker)
		if err != nil {
			return err
		}
		dispatcher = router
	}

	publisher, err := queue.NewPublisher(ctx, cfg.Broker.URL)
	if err != nil {
		return errors.Errorf("connecting publisher: %w", err)
	}
	defer publisher.Close()

	handler, err := task.NewHandler(task.Options{
		Dispatcher:     dispatcher,
		Publisher:      publisher,
		PublishQueue:   cfg.Broker.PublishQueue,
		RoutingEnabled: cfg.Features.RoutingEnabled,
	})
	if err != nil {
		return errors.Errorf("creating task handler: %w", err)
	}

	consumer, err := queue.NewConsumer(queue.ConsumerOptions{
		URL:          cfg.Broker.URL,
		Queue:        cfg.Broker.ConsumeQueue,
		Concurrency:  cfg.Broker.Concurrency,
		DrainTimeout: cfg.DrainTimeout(),
	})
	if err != nil {
		return errors.Errorf("creating consumer: %w", err)
	}
	consumer.Handle(task.AddHoldings, handler.HandleMessage)

	probe := queue.NewProbe(cfg.Health.HeartbeatFile, cfg.Health.ReadinessFile, cfg.HeartbeatInterval())

	logger.Info().
		Str("config", cfg.String()).
		Str("queue", cfg.Broker.ConsumeQueue).
		Msg("starting worker")

	g, gctx := errgroup.WithContext(ctx)

	var srv *web.Server
	if cfg.Health.Listen != "" {
		srv, err = web.NewServer(gctx, store, probe)
		if err != nil {
			return errors.Errorf("creating http server: %w", err)
		}
	}

	g.Go(func() error {
		return probe.Run(gctx)
	})

	g.Go(func() error {
		return consumer.Run(gctx, func() {
			if err := probe.Ready(); err != nil {
				logger.Warn().Err(err).Msg("writing readiness file")
			}
		})
	})

	if srv != nil {
		g.Go(func() error {
			return srv.Serve(gctx, cfg.Health.Listen)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Errorf("worker stopped: %w", err)
	}

	logger.Info().Msg("worker stopped")
	return nil
}
