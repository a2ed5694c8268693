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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/walteh/drsholding/cmd/drsholding/commands"
	"github.com/walteh/drsholding/cmd/drsholding/opts"
	"github.com/walteh/drsholding/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// bootstrap logger until the config is read
	logger := log.NewLogger(os.Stderr, zerolog.WarnLevel, false)
	ctx = logger.WithContext(ctx)

	rootOpts := &opts.RootOpts{}

	rootCmd := &cobra.Command{
		Use:   "drsholding",
		Short: "Keep Alma holdings in step with DRS deposits",
		Long: `drsholding records the DRS preservation URN of each deposited thesis on its
Alma holding, either through the Alma API or through the import dropbox.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupRoot(cmd, rootOpts)
		},
	}

	addRootFlags(rootCmd)

	rootCmd.AddCommand(
		commands.NewWorkerCmd(rootOpts),
		commands.NewRunCmd(rootOpts),
		commands.NewStatusCmd(rootOpts),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ul := rootOpts.UserLogger
		if ul == nil {
			ul = opts.NewUserLogger(ctx)
		}
		ul.LogValidation(false, "Command failed", err)
		os.Exit(1)
	}
}
