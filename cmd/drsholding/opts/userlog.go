package opts

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"

	"github.com/walteh/drsholding/pkg/operation"
	"github.com/walteh/drsholding/pkg/state"
)

// 📢 UserLogger provides user-friendly feedback for interactive commands
type UserLogger struct {
	log zerolog.Logger
}

// 🎯 NewUserLogger creates a new user logger
func NewUserLogger(ctx context.Context) *UserLogger {
	return &UserLogger{
		log: *zerolog.Ctx(ctx),
	}
}

// 📊 LogStateChange logs a change to the overall state
func (u *UserLogger) LogStateChange(description string) {
	pterm.Info.WithPrefix(pterm.Prefix{Text: "📦"}).Println(description)
	u.log.Info().Msg(description)
}

// 🔍 LogValidation logs validation results
func (u *UserLogger) LogValidation(valid bool, description string, err error) {
	if valid {
		pterm.Success.WithPrefix(pterm.Prefix{Text: "✅"}).Println(description)
		u.log.Info().Msg(description)
		return
	}
	if err != nil {
		pterm.Error.WithPrefix(pterm.Prefix{Text: "❌"}).Println(description)
		pterm.Error.Println(err)
		u.log.Error().Err(err).Msg(description)
		return
	}
	pterm.Warning.WithPrefix(pterm.Prefix{Text: "⚠️"}).Println(description)
	u.log.Warn().Msg(description)
}

// 📋 LogOutcome prints what a run did
func (u *UserLogger) LogOutcome(out *operation.Outcome) {
	if out == nil {
		return
	}

	var printer *pterm.PrefixPrinter
	switch out.State {
	case operation.StateCompleted:
		printer = pterm.Success.WithPrefix(pterm.Prefix{Text: "✅"})
	case operation.StateSkipped:
		printer = pterm.Warning.WithPrefix(pterm.Prefix{Text: "⏭️"})
	default:
		printer = pterm.Error.WithPrefix(pterm.Prefix{Text: "❌"})
	}

	msg := fmt.Sprintf("%s %s via %s", out.ExternalID, out.State, out.Mode)
	if out.Reason != "" {
		msg += fmt.Sprintf(" (%s)", out.Reason)
	}
	printer.Println(msg)

	rows := pterm.TableData{{"catalog updated", "transferred", "status recorded", "holding", "collection"}}
	rows = append(rows, []string{
		yesNo(out.CatalogUpdated),
		yesNo(out.Transferred),
		yesNo(out.StatusRecorded),
		orDash(out.HoldingID),
		orDash(out.CollectionFile),
	})
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

	u.log.Info().
		Str("external_id", out.ExternalID).
		Str("state", string(out.State)).
		Str("kind", out.Kind.String()).
		Msg("run finished")
}

// 🗂️ LogRecords prints store records as a table
func (u *UserLogger) LogRecords(records []state.Record) {
	rows := pterm.TableData{{"proquest id", "batch", "school", "status", "indash", "dropbox date"}}
	for _, r := range records {
		date := "-"
		if r.DropboxSubmission != nil {
			date = r.DropboxSubmission.Format(time.RFC3339)
		}
		rows = append(rows, []string{r.ExternalID, r.DirectoryID, orDash(r.School), orDash(string(r.Status)), yesNo(r.InDash), date})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	u.log.Debug().Int("count", len(records)).Msg("records listed")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
