package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"heelbid-auction-service/internal/adapters/identity"
	"heelbid-auction-service/internal/domain/auction"
	"heelbid-auction-service/internal/domain/bid"
	"heelbid-auction-service/internal/domain/notification"
	"heelbid-auction-service/internal/domain/shared"
	"heelbid-auction-service/internal/ports/inbound"
	"heelbid-auction-service/internal/ports/inbound/mock"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type services struct {
	auctions      *mock.MockAuctionService
	bids          *mock.MockBidService
	notifications *mock.MockNotificationService
}

func newTestRouter(t *testing.T) (http.Handler, services, string) {
	t.Helper()
	ctrl := gomock.NewController(t)
	s := services{
		auctions:      mock.NewMockAuctionService(ctrl),
		bids:          mock.NewMockBidService(ctrl),
		notifications: mock.NewMockNotificationService(ctrl),
	}

	verifier := identity.NewVerifier(identity.VerifierParams{Secret: "test-secret", Logger: zerolog.Nop()})
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, identity.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	router := NewRouter(RouterParams{
		Handlers: NewHandlers(HandlersParams{
			AuctionService:      s.auctions,
			BidService:          s.bids,
			NotificationService: s.notifications,
			Logger:              zerolog.Nop(),
		}),
		Authenticate: verifier.Middleware,
		Logger:       zerolog.Nop(),
	})
	return router, s, token
}

func do(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlePlaceBid(t *testing.T) {
	auctionID := uuid.New()
	path := "/api/auctions/" + auctionID.String() + "/bids"

	tests := []struct {
		name       string
		path       string
		body       string
		anonymous  bool
		mockSetup  func(s services)
		wantStatus int
		wantError  interface{}
	}{
		{
			name: "accepted",
			body: `{"amount": 20}`,
			mockSetup: func(s services) {
				s.bids.EXPECT().
					PlaceBid(gomock.Any(), inbound.PlaceBidRequest{AuctionID: auctionID, Amount: 20}).
					Return(&bid.Bid{ID: uuid.New(), ItemID: auctionID, Amount: 20}, nil)
			},
			wantStatus: http.StatusCreated,
			wantError:  nil,
		},
		{
			name:      "anonymous",
			body:      `{"amount": 20}`,
			anonymous: true,
			mockSetup: func(s services) {
				s.bids.EXPECT().PlaceBid(gomock.Any(), gomock.Any()).Return(nil, shared.ErrUnauthenticated)
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  shared.ErrUnauthenticated.Error(),
		},
		{
			name: "too_low",
			body: `{"amount": 5}`,
			mockSetup: func(s services) {
				s.bids.EXPECT().PlaceBid(gomock.Any(), gomock.Any()).Return(nil, shared.ErrBidTooLow)
			},
			wantStatus: http.StatusConflict,
			wantError:  shared.ErrBidTooLow.Error(),
		},
		{
			name: "closed",
			body: `{"amount": 50}`,
			mockSetup: func(s services) {
				s.bids.EXPECT().PlaceBid(gomock.Any(), gomock.Any()).Return(nil, shared.ErrAuctionClosed)
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  shared.ErrAuctionClosed.Error(),
		},
		{
			name:       "missing_amount",
			body:       `{}`,
			mockSetup:  func(s services) {},
			wantStatus: http.StatusBadRequest,
			wantError:  shared.ErrInvalidAmount.Error(),
		},
		{
			name:       "bad_auction_id",
			path:       "/api/auctions/not-a-uuid/bids",
			body:       `{"amount": 20}`,
			mockSetup:  func(s services) {},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request: invalid auction id",
		},
		{
			name: "store_failure_is_hidden",
			body: `{"amount": 20}`,
			mockSetup: func(s services) {
				s.bids.EXPECT().PlaceBid(gomock.Any(), gomock.Any()).
					Return(nil, shared.NewStoreError("insert bid", errors.New("pq: connection reset")))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, s, token := newTestRouter(t)
			tt.mockSetup(s)
			if tt.anonymous {
				token = ""
			}
			target := path
			if tt.path != "" {
				target = tt.path
			}

			rec := do(router, http.MethodPost, target, token, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Contains(t, body, "error")
			require.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestHandleSendNotification(t *testing.T) {
	recipient := uuid.New()

	tests := []struct {
		name       string
		body       string
		anonymous  bool
		mockSetup  func(s services)
		wantStatus int
		wantError  interface{}
	}{
		{
			name: "sent",
			body: `{"user_id":"` + recipient.String() + `","content":"Your auction ended"}`,
			mockSetup: func(s services) {
				s.notifications.EXPECT().Send(gomock.Any(), recipient, "Your auction ended").
					Return(&notification.Notification{ID: uuid.New(), UserID: recipient}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "anonymous",
			body:       `{"user_id":"` + recipient.String() + `","content":"hi"}`,
			anonymous:  true,
			mockSetup:  func(s services) {},
			wantStatus: http.StatusUnauthorized,
			wantError:  shared.ErrUnauthenticated.Error(),
		},
		{
			name:       "missing_recipient",
			body:       `{"content":"hi"}`,
			mockSetup:  func(s services) {},
			wantStatus: http.StatusBadRequest,
			wantError:  shared.ErrRecipientNeeded.Error(),
		},
		{
			name:       "missing_content",
			body:       `{"user_id":"` + recipient.String() + `"}`,
			mockSetup:  func(s services) {},
			wantStatus: http.StatusBadRequest,
			wantError:  shared.ErrEmptyContent.Error(),
		},
		{
			name: "blank_content",
			body: `{"user_id":"` + recipient.String() + `","content":"  "}`,
			mockSetup: func(s services) {
				s.notifications.EXPECT().Send(gomock.Any(), recipient, "  ").Return(nil, shared.ErrEmptyContent)
			},
			wantStatus: http.StatusBadRequest,
			wantError:  shared.ErrEmptyContent.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, s, token := newTestRouter(t)
			tt.mockSetup(s)
			if tt.anonymous {
				token = ""
			}

			rec := do(router, http.MethodPost, "/api/notifications", token, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestHandleAuctions(t *testing.T) {
	t.Run("list_defaults_to_ongoing", func(t *testing.T) {
		router, s, _ := newTestRouter(t)
		s.auctions.EXPECT().ListAuctions(gomock.Any(), auction.StateOngoing).Return([]*auction.Item{{ID: uuid.New(), Name: "Heels"}}, nil)

		rec := do(router, http.MethodGet, "/api/auctions", "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var items []auction.Item
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
		require.Len(t, items, 1)
	})

	t.Run("list_unknown_state", func(t *testing.T) {
		router, _, _ := newTestRouter(t)
		rec := do(router, http.MethodGet, "/api/auctions?state=paused", "", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get_with_current_price", func(t *testing.T) {
		router, s, _ := newTestRouter(t)
		item := &auction.Item{ID: uuid.New(), Name: "Heels", Price: 10}
		s.auctions.EXPECT().GetAuction(gomock.Any(), item.ID).Return(&inbound.AuctionDetail{
			Item: item,
			Bids: []*bid.Bid{{ID: uuid.New(), ItemID: item.ID, Amount: 25}},
		}, nil)

		rec := do(router, http.MethodGet, "/api/auctions/"+item.ID.String(), "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Item         auction.Item `json:"item"`
			Bids         []bid.Bid    `json:"bids"`
			CurrentPrice float64      `json:"current_price"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, item.ID, body.Item.ID)
		require.Len(t, body.Bids, 1)
		require.Equal(t, 25.0, body.CurrentPrice)
	})

	t.Run("get_missing", func(t *testing.T) {
		router, s, _ := newTestRouter(t)
		s.auctions.EXPECT().GetAuction(gomock.Any(), gomock.Any()).Return(nil, shared.ErrAuctionNotFound)

		rec := do(router, http.MethodGet, "/api/auctions/"+uuid.NewString(), "", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("create_validates_body", func(t *testing.T) {
		router, _, token := newTestRouter(t)
		rec := do(router, http.MethodPost, "/api/auctions", token, `{"name":"","price":0,"duration":0}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, shared.ErrInvalidRequest.Error(), body.Error)
		require.Contains(t, body.Details, "Name")
	})

	t.Run("create", func(t *testing.T) {
		router, s, token := newTestRouter(t)
		s.auctions.EXPECT().CreateAuction(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req inbound.CreateAuctionRequest) (*auction.Item, error) {
				return &auction.Item{ID: uuid.New(), Name: req.Name, Price: req.Price, Duration: req.Duration}, nil
			})

		rec := do(router, http.MethodPost, "/api/auctions", token,
			`{"name":"Heels","price":10,"start_time":"2026-03-01T12:00:00Z","duration":30}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("my_auctions_requires_identity", func(t *testing.T) {
		router, s, _ := newTestRouter(t)
		s.auctions.EXPECT().ListSellerAuctions(gomock.Any()).Return(nil, shared.ErrUnauthenticated)

		rec := do(router, http.MethodGet, "/api/me/auctions", "", "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects_bad_token", func(t *testing.T) {
		router, _, _ := newTestRouter(t)
		rec := do(router, http.MethodGet, "/api/me/auctions", "garbage", "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := do(router, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","service":"heelbid-auction-service"}`, rec.Body.String())
}
