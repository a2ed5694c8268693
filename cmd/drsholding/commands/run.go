package commands

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/cmd/drsholding/opts"
	"github.com/walteh/drsholding/pkg/log"
	"github.com/walteh/drsholding/pkg/operation"
)

type runFlags struct {
	externalID      string
	objectURN       string
	mode            string
	force           bool
	verbose         bool
	integrationTest bool
}

// NewRunCmd runs one holding sync without the broker
func NewRunCmd(opts *opts.RootOpts) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sync one thesis holding",
		Long: `Run synchronizes the holding of a single thesis.
With --mode auto the record store decides between the api and dropbox paths.`,
		Example: `  drsholding run --pqid 1234567890 --urn URN-3:HUL.DRS.OBJECT:100000000
  drsholding run --pqid 1234567890 --urn URN-3:HUL.DRS.OBJECT:100000000 --mode dropbox --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := zerolog.Ctx(cmd.Context()).With().Str("command", "run").Logger().WithContext(cmd.Context())
			return runOnce(ctx, opts, flags)
		},
	}

	cmd.Flags().StringVar(&flags.externalID, "pqid", "", "proquest identifier")
	cmd.Flags().StringVar(&flags.objectURN, "urn", "", "DRS object urn")
	cmd.Flags().StringVar(&flags.mode, "mode", "auto", "delivery path: auto, api or dropbox")
	cmd.Flags().BoolVar(&flags.force, "force", false, "skip the already-processed check")
	cmd.Flags().BoolVar(&flags.verbose, "verbose", false, "report passing checkpoints")
	cmd.Flags().BoolVar(&flags.integrationTest, "integration-test", false, "mark output as test output")
	_ = cmd.MarkFlagRequired("pqid")
	_ = cmd.MarkFlagRequired("urn")

	return cmd
}

func runOnce(ctx context.Context, o *opts.RootOpts, flags runFlags) error {
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

	router, err := o.Router(ctx, store, locker)
	if err != nil {
		return err
	}

	req := operation.Request{
		ExternalID:      flags.externalID,
		ObjectURN:       flags.objectURN,
		Force:           flags.force,
		Verbose:         flags.verbose,
		IntegrationTest: flags.integrationTest,
	}

	console := log.NewConsole(cmdOut, *zerolog.Ctx(ctx))
	ctx = log.NewContext(ctx, console)
	console.StartRun(ctx, log.RunOperation{ExternalID: req.ExternalID, Mode: flags.mode})
	defer console.EndRun(ctx)

	var out *operation.Outcome
	if flags.mode == "auto" {
		out, err = router.Dispatch(ctx, req)
	} else {
		out, err = router.Run(ctx, operation.Mode(flags.mode), req)
	}

	o.UserLogger.LogOutcome(out)
	summarize(console, out, err)
	if err != nil {
		return errors.Errorf("syncing %s: %w", req.ExternalID, err)
	}
	return nil
}

func summarize(c *log.Console, out *operation.Outcome, err error) {
	switch {
	case err != nil:
		c.Error(err.Error())
	case out == nil:
	case out.State == operation.StateSkipped:
		c.Warning(out.ExternalID + " skipped: " + out.Reason)
	default:
		c.Success(out.ExternalID + " " + string(out.Mode) + " sync completed")
	}
}
