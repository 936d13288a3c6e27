package frame

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestMapInsertErr(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{
			name:    "nil passes through",
			err:     nil,
			wantErr: nil,
		},
		{
			name:    "ordinal uniqueness violation maps to sentinel",
			err:     &pq.Error{Code: "23505", Constraint: "frames_video_ordinal_uq"},
			wantErr: ErrDuplicateFrameNumber,
		},
		{
			name:    "unrelated unique violation still maps",
			err:     &pq.Error{Code: "23505", Constraint: "some_other_key"},
			wantErr: ErrDuplicateFrameNumber,
		},
		{
			name:    "fk violation passes through unmapped",
			err:     &pq.Error{Code: "23503", Constraint: "frames_video_fk"},
			wantErr: nil, // checked separately below
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := mapInsertErr(tc.err)
			if tc.name == "fk violation passes through unmapped" {
				assert.False(t, errors.Is(got, ErrDuplicateFrameNumber))
				assert.Error(t, got)
				return
			}
			if tc.wantErr == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tc.wantErr)
		})
	}
}
