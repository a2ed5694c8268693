package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/cmd/drsholding/opts"
	"github.com/walteh/drsholding/pkg/state"
)

// cmdOut receives console progress; tests swap it
var cmdOut io.Writer = os.Stdout

// NewStatusCmd creates a new status command
func NewStatusCmd(opts *opts.RootOpts) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "status <pqid>",
		Short: "Show the processing records of a thesis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := opts.OpenStore(ctx)
			if err != nil {
				return errors.Errorf("opening store: %w", err)
			}
			defer store.Close(ctx)

			records, err := store.Query(ctx, state.Query{ExternalID: args[0], Status: state.Status(status)})
			if err != nil {
				return errors.Errorf("querying records: %w", err)
			}
			if len(records) == 0 {
				opts.UserLogger.LogValidation(false, "no records for "+args[0], nil)
				return nil
			}

			opts.UserLogger.LogRecords(records)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only show records in this status")

	return cmd
}
