package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/pkg/failure"
	"github.com/walteh/drsholding/pkg/state"
	"github.com/walteh/drsholding/pkg/testutils"
)

func TestGuard_AlreadyProcessed(t *testing.T) {
	tests := []struct {
		name    string
		records []state.Record
		err     error
		want    bool
		wantErr bool
	}{
		{name: "no_records", records: nil, want: false},
		{name: "one_record", records: []state.Record{{ExternalID: "1"}}, want: true},
		{name: "several_records", records: []state.Record{{ExternalID: "1"}, {ExternalID: "1"}}, want: true},
		{name: "store_failure", err: errors.Errorf("querying records: %w", failure.ErrStore), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutils.Context(t)
			store := &testutils.MockStore{}
			store.On("Query", mock.Anything, state.Query{ExternalID: "1", Status: state.StatusDropboxSubmitted}).Return(tt.records, tt.err).Once()

			got, err := NewGuard(store).AlreadyProcessed(ctx, "1", state.StatusDropboxSubmitted)
			if tt.wantErr {
				require.Error(t, err, "store failure should propagate")
				assert.Equal(t, failure.KindStore, failure.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			store.AssertExpectations(t)
		})
	}
}
