package operation

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/pkg/state"
)

// 🛡️ Guard answers whether an identifier already reached a status
type Guard struct {
	store state.Store
}

func NewGuard(store state.Store) *Guard {
	return &Guard{store: store}
}

// AlreadyProcessed is true iff a record for externalID carries status. Store errors
// are returned as is; an unknown answer is never treated as "not processed".
func (g *Guard) AlreadyProcessed(ctx context.Context, externalID string, status state.Status) (bool, error) {
	records, err := g.store.Query(ctx, state.Query{ExternalID: externalID, Status: status})
	if err != nil {
		return false, errors.Errorf("checking %s for status %s: %w", externalID, status, err)
	}

	zerolog.Ctx(ctx).Info().
		Str("external_id", externalID).
		Str("status", string(status)).
		Int("count", len(records)).
		Msg("checked for processed records")

	return len(records) > 0, nil
}
