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

package opts

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/pkg/config"
	"github.com/walteh/drsholding/pkg/lock"
	"github.com/walteh/drsholding/pkg/marc"
	"github.com/walteh/drsholding/pkg/operation"
	"github.com/walteh/drsholding/pkg/provider"
	"github.com/walteh/drsholding/pkg/provider/alma"
	_ "github.com/walteh/drsholding/pkg/provider/dropbox"
	"github.com/walteh/drsholding/pkg/remote"
	"github.com/walteh/drsholding/pkg/state"
	"github.com/walteh/drsholding/pkg/workdir"
	"github.com/walteh/drsholding/templates"
)

// RootOpts contains shared options used by all commands
type RootOpts struct {
	Config     *config.Config
	UserLogger *UserLogger
}

// 💾 OpenStore connects to the configured record store
func (o *RootOpts) OpenStore(ctx context.Context) (state.Store, error) {
	cfg := o.Config.Store
	switch cfg.Driver {
	case config.DriverMongo:
		return state.NewMongoStore(ctx, state.MongoOptions{
			URL:        cfg.MongoURL,
			Database:   cfg.MongoDB,
			Collection: cfg.MongoCollection,
		})
	case config.DriverSQLite:
		return state.NewSQLiteStore(ctx, cfg.SQLitePath)
	}
	return nil, errors.Errorf("unknown store driver %q", cfg.Driver)
}

// 📚 Catalog builds the Alma client
func (o *RootOpts) Catalog() (remote.Catalog, error) {
	if err := o.Config.RequireCatalog(); err != nil {
		return nil, err
	}
	return alma.New(alma.Options{
		APIBase: o.Config.Alma.APIBase,
		APIKey:  o.Config.Alma.APIKey,
		SRUBase: o.Config.Alma.SRUBase,
	})
}

// 📦 DropboxOpener resolves the configured transport; the connection is made per run
func (o *RootOpts) DropboxOpener() (operation.DropboxOpener, error) {
	if err := o.Config.RequireDropbox(); err != nil {
		return nil, err
	}
	factory, err := provider.GetDropbox(o.Config.Dropbox.Transport)
	if err != nil {
		return nil, err
	}
	args := remote.DropboxArgs{
		Server:         o.Config.Dropbox.Server,
		User:           o.Config.Dropbox.User,
		PrivateKeyPath: o.Config.Dropbox.PrivateKeyPath,
		KnownHostsPath: o.Config.Dropbox.KnownHostsPath,
		Dir:            o.Config.Dropbox.Dir,
	}
	return func(ctx context.Context) (remote.Dropbox, error) {
		return factory(ctx, args)
	}, nil
}

// 📄 Template loads the configured record template, falling back to the built-in one
func (o *RootOpts) Template() (*marc.Document, error) {
	if o.Config.Alma.Template != "" {
		doc, err := marc.ParseFile(o.Config.Alma.Template)
		if err != nil {
			return nil, errors.Errorf("loading template %s: %w", o.Config.Alma.Template, err)
		}
		return doc, nil
	}
	doc, err := marc.Parse(templates.DRSHolding)
	if err != nil {
		return nil, errors.Errorf("parsing built-in template: %w", err)
	}
	return doc, nil
}

// 🔒 Locker connects to redis when configured. The returned close func is never nil.
func (o *RootOpts) Locker(ctx context.Context) (lock.Locker, func() error, error) {
	if o.Config.Lock.RedisAddr == "" {
		zerolog.Ctx(ctx).Debug().Msg("no redis configured, runs are not locked")
		return lock.Noop{}, func() error { return nil }, nil
	}
	r, err := lock.NewRedis(ctx, lock.RedisOptions{
		Addr:     o.Config.Lock.RedisAddr,
		Password: o.Config.Lock.RedisPassword,
		DB:       o.Config.Lock.RedisDB,
		Prefix:   "drsholding:",
	})
	if err != nil {
		return nil, nil, errors.Errorf("connecting to redis: %w", err)
	}
	return r, r.Close, nil
}

// 🚦 Router builds both workflows behind a router
func (o *RootOpts) Router(ctx context.Context, store state.Store, locker lock.Locker) (*operation.Router, error) {
	catalog, err := o.Catalog()
	if err != nil {
		return nil, errors.Errorf("configuring catalog: %w", err)
	}
	opener, err := o.DropboxOpener()
	if err != nil {
		return nil, errors.Errorf("configuring dropbox: %w", err)
	}
	tmpl, err := o.Template()
	if err != nil {
		return nil, err
	}

	wopts := operation.Options{
		Catalog:     catalog,
		Store:       store,
		Files:       workdir.New(o.Config.DataDir),
		OpenDropbox: opener,
		Template:    tmpl,
		JobCode:     o.Config.JobCode,
		URNPrefix:   o.Config.Alma.URNPrefix,
		Instance:    o.Config.Instance,
		TestBatch:   o.Config.Alma.TestBatch,
	}

	api, err := operation.NewAPIWorkflow(wopts)
	if err != nil {
		return nil, errors.Errorf("creating api workflow: %w", err)
	}
	dropbox, err := operation.NewDropboxWorkflow(wopts)
	if err != nil {
		return nil, errors.Errorf("creating dropbox workflow: %w", err)
	}

	return operation.NewRouter(operation.RouterOptions{
		Store:   store,
		API:     api,
		Dropbox: dropbox,
		Runner:  operation.NewRunner(locker, o.Config.LockTTL(), o.Config.Features.Async),
	})
}
