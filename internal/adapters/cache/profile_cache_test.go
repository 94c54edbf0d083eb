package cache

import (
	"context"
	"errors"
	"testing"

	"heelbid-auction-service/internal/domain/shared"
	"heelbid-auction-service/internal/ports/outbound/mock"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestProfileCache_GetByID(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mock.NewMockProfileRepository(ctrl)
	id := uuid.New()

	next.EXPECT().GetByID(gomock.Any(), id).Return(&shared.Profile{ID: id, Username: "dana"}, nil).Times(1)

	cache, err := NewProfileCache(next, 8)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		profile, err := cache.GetByID(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, "dana", profile.Username)
	}
}

func TestProfileCache_GetByIDMissDoesNotCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mock.NewMockProfileRepository(ctrl)
	id := uuid.New()

	next.EXPECT().GetByID(gomock.Any(), id).Return(nil, shared.ErrProfileNotFound).Times(2)

	cache, err := NewProfileCache(next, 0)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := cache.GetByID(context.Background(), id)
		require.ErrorIs(t, err, shared.ErrProfileNotFound)
	}
}

func TestProfileCache_Upsert(t *testing.T) {
	id := uuid.New()
	stored := &shared.Profile{ID: id, Username: "dana", DisplayName: "Dana"}

	tests := []struct {
		name      string
		incoming  *shared.Profile
		mockSetup func(next *mock.MockProfileRepository)
		wantErr   bool
	}{
		{
			name:     "same_names_skip_write",
			incoming: &shared.Profile{ID: id, DisplayName: "Dana"},
		},
		{
			name:     "changed_name_writes_through",
			incoming: &shared.Profile{ID: id, DisplayName: "Dana K."},
			mockSetup: func(next *mock.MockProfileRepository) {
				next.EXPECT().Upsert(gomock.Any(), &shared.Profile{ID: id, DisplayName: "Dana K."}).Return(nil)
				next.EXPECT().GetByID(gomock.Any(), id).Return(&shared.Profile{ID: id, Username: "dana", DisplayName: "Dana K."}, nil)
			},
		},
		{
			name:     "write_failure_is_returned",
			incoming: &shared.Profile{ID: id, Username: "dk"},
			mockSetup: func(next *mock.MockProfileRepository) {
				next.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			next := mock.NewMockProfileRepository(ctrl)

			cache, err := NewProfileCache(next, 8)
			require.NoError(t, err)
			cache.cache.Add(id, *stored)

			if tt.mockSetup != nil {
				tt.mockSetup(next)
			}

			err = cache.Upsert(context.Background(), tt.incoming)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			profile, err := cache.GetByID(context.Background(), id)
			require.NoError(t, err)
			require.Equal(t, "dana", profile.Username)
			if tt.incoming.DisplayName != "" {
				require.Equal(t, tt.incoming.DisplayName, profile.DisplayName)
			}
		})
	}
}
