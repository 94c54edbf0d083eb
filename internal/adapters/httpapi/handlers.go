package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"heelbid-auction-service/internal/domain/auction"
	"heelbid-auction-service/internal/domain/bid"
	"heelbid-auction-service/internal/domain/shared"
	"heelbid-auction-service/internal/ports/inbound"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Handlers serves the REST endpoints
type Handlers struct {
	auctionService      inbound.AuctionService
	bidService          inbound.BidService
	notificationService inbound.NotificationService
	validate            *validator.Validate
	logger              zerolog.Logger
}

type HandlersParams struct {
	AuctionService      inbound.AuctionService
	BidService          inbound.BidService
	NotificationService inbound.NotificationService
	Logger              zerolog.Logger
}

func NewHandlers(params HandlersParams) *Handlers {
	return &Handlers{
		auctionService:      params.AuctionService,
		bidService:          params.BidService,
		notificationService: params.NotificationService,
		validate:            validator.New(validator.WithRequiredStructEnabled()),
		logger:              params.Logger.With().Str("component", "http_handlers").Logger(),
	}
}

type placeBidBody struct {
	Amount *float64 `json:"amount" validate:"required"`
}

type sendNotificationBody struct {
	UserID  uuid.UUID `json:"user_id" validate:"required"`
	Content string    `json:"content" validate:"required"`
}

// auctionDetailResponse adds the current price floor to a listing
type auctionDetailResponse struct {
	*inbound.AuctionDetail
	CurrentPrice float64 `json:"current_price"`
}

// HandleCreateAuction handles POST /api/auctions
func (h *Handlers) HandleCreateAuction() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req inbound.CreateAuctionRequest
		if err := h.decode(r, &req); err != nil {
			writeError(w, h.logger, err)
			return
		}

		item, err := h.auctionService.CreateAuction(r.Context(), req)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	}
}

// HandleListAuctions handles GET /api/auctions?state=
func (h *Handlers) HandleListAuctions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := auction.StateOngoing
		if raw := r.URL.Query().Get("state"); raw != "" {
			parsed, ok := auction.ParseState(strings.ToLower(raw))
			if !ok {
				writeError(w, h.logger, shared.ErrInvalidState)
				return
			}
			state = parsed
		}

		items, err := h.auctionService.ListAuctions(r.Context(), state)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// HandleGetAuction handles GET /api/auctions/{id}
func (h *Handlers) HandleGetAuction() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auctionID, err := auctionIDParam(r)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}

		detail, err := h.auctionService.GetAuction(r.Context(), auctionID)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, auctionDetailResponse{AuctionDetail: detail, CurrentPrice: detail.CurrentPrice()})
	}
}

// HandlePlaceBid handles POST /api/auctions/{id}/bids
func (h *Handlers) HandlePlaceBid() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auctionID, err := auctionIDParam(r)
		if err != nil {
			writeJSON(w, statusFor(err), resultBody(err))
			return
		}

		var body placeBidBody
		if err := h.decode(r, &body); err != nil {
			if _, ok := err.(validator.ValidationErrors); ok {
				err = shared.ErrInvalidAmount
			}
			writeJSON(w, statusFor(err), resultBody(err))
			return
		}

		placed, err := h.bidService.PlaceBid(r.Context(), inbound.PlaceBidRequest{AuctionID: auctionID, Amount: *body.Amount})
		if err != nil {
			if statusFor(err) == http.StatusInternalServerError {
				h.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to place bid")
			}
			writeJSON(w, statusFor(err), resultBody(err))
			return
		}

		response := resultBody(nil)
		response["bid"] = placed
		writeJSON(w, http.StatusCreated, response)
	}
}

// HandleSendNotification handles POST /api/notifications
func (h *Handlers) HandleSendNotification() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.UserFromContext(r.Context()); !ok {
			writeJSON(w, http.StatusUnauthorized, resultBody(shared.ErrUnauthenticated))
			return
		}

		var body sendNotificationBody
		if err := h.decode(r, &body); err != nil {
			if _, ok := err.(validator.ValidationErrors); ok {
				err = shared.ErrInvalidRequest
				if body.UserID == uuid.Nil {
					err = shared.ErrRecipientNeeded
				} else if strings.TrimSpace(body.Content) == "" {
					err = shared.ErrEmptyContent
				}
			}
			writeJSON(w, statusFor(err), resultBody(err))
			return
		}

		if _, err := h.notificationService.Send(r.Context(), body.UserID, body.Content); err != nil {
			if statusFor(err) == http.StatusInternalServerError {
				h.logger.Error().Err(err).Str("user_id", body.UserID.String()).Msg("Failed to send notification")
			}
			writeJSON(w, statusFor(err), resultBody(err))
			return
		}
		writeJSON(w, http.StatusCreated, resultBody(nil))
	}
}

// HandleMyNotifications handles GET /api/me/notifications
func (h *Handlers) HandleMyNotifications() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := h.notificationService.List(r.Context())
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// HandleMyBids handles GET /api/me/bids, the listings the caller has bid on
func (h *Handlers) HandleMyBids() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.auctionService.ListBidderAuctions(r.Context())
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// HandleMyAuctions handles GET /api/me/auctions, the listings the caller sells
func (h *Handlers) HandleMyAuctions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.auctionService.ListSellerAuctions(r.Context())
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// HandleAuctionBids handles GET /api/auctions/{id}/bids
func (h *Handlers) HandleAuctionBids() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auctionID, err := auctionIDParam(r)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}

		bids, err := h.bidService.GetBids(r.Context(), auctionID)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		if bids == nil {
			bids = []*bid.Bid{}
		}
		writeJSON(w, http.StatusOK, bids)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "heelbid-auction-service"})
}

// decode reads a JSON body into dst and validates it
func (h *Handlers) decode(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidRequest, err)
	}
	return h.validate.Struct(dst)
}

func auctionIDParam(r *http.Request) (uuid.UUID, error) {
	auctionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid auction id", shared.ErrInvalidRequest)
	}
	return auctionID, nil
}
