package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"

	"github.com/ditznesia/otpstore/internal/auth"
	"github.com/ditznesia/otpstore/internal/catalog"
	"github.com/ditznesia/otpstore/internal/domain/announcements"
	"github.com/ditznesia/otpstore/internal/domain/orders"
	"github.com/ditznesia/otpstore/internal/domain/users"
	"github.com/ditznesia/otpstore/internal/domain/vouchers"
	"github.com/ditznesia/otpstore/internal/errmsg"
	"github.com/ditznesia/otpstore/internal/orderflow"
	"github.com/ditznesia/otpstore/internal/provider/otpclient"
	"github.com/ditznesia/otpstore/internal/server/models"
	"github.com/ditznesia/otpstore/internal/storage"
)

type Handlers struct {
	storage  storage.Storage
	flow     *orderflow.Service
	syncer   *catalog.Syncer
	provider *otpclient.Client
	log      *slog.Logger
	auth     *auth.JWTAuth
}

// NewHandlers returns a new Handlers instance.
func NewHandlers(store storage.Storage, flow *orderflow.Service, opts ...Option) *Handlers {
	handlers := &Handlers{
		storage: store,
		flow:    flow,
		log:     slog.New(&slog.JSONHandler{}),
		auth:    auth.NewJWTAuth([]byte("")),
	}

	for _, opt := range opts {
		opt(handlers)
	}

	return handlers
}

// Option is a functional option for Handlers.
type Option func(h *Handlers)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handlers) {
		h.log = logger
	}
}

func WithAuth(auth *auth.JWTAuth) Option {
	return func(h *Handlers) {
		h.auth = auth
	}
}

func WithSyncer(syncer *catalog.Syncer) Option {
	return func(h *Handlers) {
		h.syncer = syncer
	}
}

func WithProvider(client *otpclient.Client) Option {
	return func(h *Handlers) {
		h.provider = client
	}
}

type JSONResponse struct {
	Message any `json:"message,omitempty"`
	Error   any `json:"error,omitempty"`
}

func handleJSONResponse(w http.ResponseWriter, status int, resp any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func handleError(w http.ResponseWriter, err errmsg.HTTPError) {
	resp := &JSONResponse{
		Error: err.Error(),
	}

	w.Header().Set("content-type", "application/json")
	w.WriteHeader(err.Code)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// userIDFromContext reads the subject of the verified JWT.
func userIDFromContext(r *http.Request) (string, error) {
	token, _, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	return token.Subject(), nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, log *slog.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			log.Error("json.NewDecoder().Decode()", slog.Any("error", err))
			handleError(w, errmsg.ErrRequestPayloadEmpty)

			return false
		}

		log.Error("json.NewDecoder().Decode()", slog.Any("error", err))
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return false
	}

	defer r.Body.Close()

	return true
}

func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(r.Context()); err != nil {
		h.log.Error("storage.Ping", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}

func (h *Handlers) UserRegister(w http.ResponseWriter, r *http.Request) {
	var payload models.RegisterRequest

	if !decodeJSON(w, r, h.log, &payload) {
		return
	}

	user, err := users.NewUser(payload.Name, payload.Email, payload.Password)
	if err != nil {
		h.log.Error("users.NewUser()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusBadRequest, err))

		return
	}

	if err := h.storage.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			h.log.Error("storage.CreateUser()", slog.Any("error", err))
			handleError(w, errmsg.ErrUserAlreadyExists)

			return
		}

		h.log.Error("storage.CreateUser()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	token, err := h.auth.CreateJWTString(user.ID, user.Role)
	if err != nil {
		h.log.Error("auth.CreateJWTString()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: token})
}

func (h *Handlers) UserLogin(w http.ResponseWriter, r *http.Request) {
	var payload models.LoginRequest

	if !decodeJSON(w, r, h.log, &payload) {
		return
	}

	user, err := h.storage.GetUserByEmail(r.Context(), payload.Email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.log.Error("storage.GetUserByEmail()", slog.Any("error", err))
			handleError(w, errmsg.ErrUserCredentialsInvalid)

			return
		}

		h.log.Error("storage.GetUserByEmail()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	if err := user.CheckPassword(payload.Password); err != nil {
		h.log.Error("user.CheckPassword()", slog.Any("error", err))
		handleError(w, errmsg.ErrUserCredentialsInvalid)

		return
	}

	token, err := h.auth.CreateJWTString(user.ID, user.Role)
	if err != nil {
		h.log.Error("auth.CreateJWTString()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: token})
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	prods, err := h.storage.ListProducts(r.Context())
	if err != nil {
		h.log.Error("storage.ListProducts()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	resp := make([]models.ProductResponse, 0, len(prods))
	for _, product := range prods {
		resp = append(resp, models.ProductResponse{
			ID:       product.ID,
			Platform: product.Platform,
			Country:  product.Country,
			Price:    product.Price.InexactFloat64(),
			Stock:    product.Stock,
			Icon:     product.Icon,
			Flag:     product.Flag,
		})
	}

	handleJSONResponse(w, http.StatusOK, resp)
}

func (h *Handlers) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	anns, err := h.storage.ListAnnouncements(r.Context(), true)
	if err != nil {
		h.log.Error("storage.ListAnnouncements()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, announcementResponses(anns))
}

func announcementResponses(anns []*announcements.Announcement) []models.AnnouncementResponse {
	resp := make([]models.AnnouncementResponse, 0, len(anns))
	for _, ann := range anns {
		resp = append(resp, models.AnnouncementResponse{
			ID:        ann.ID,
			Title:     ann.Title,
			Content:   ann.Content,
			Kind:      string(ann.Kind),
			IsActive:  ann.IsActive,
			CreatedAt: ann.CreatedAt.Format(time.RFC3339),
		})
	}

	return resp
}

func (h *Handlers) GetUserBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		h.log.Error("jwtauth.FromContext()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	user, err := h.storage.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			handleError(w, errmsg.ErrUserNotFound)

			return
		}

		h.log.Error("storage.GetUser()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, models.BalanceResponse{
		Balance: user.Balance.InexactFloat64(),
	})
}

func orderResponse(order *orders.Order) models.OrderResponse {
	return models.OrderResponse{
		ID:          order.ID(),
		ServiceName: order.ServiceName(),
		Number:      order.Number(),
		Price:       order.Price().InexactFloat64(),
		Status:      order.Status().String(),
		OTPCode:     order.OTPCode(),
		CreatedAt:   order.CreatedAt().Format(time.RFC3339),
	}
}

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		h.log.Error("jwtauth.FromContext()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	var payload models.PlaceOrderRequest

	if !decodeJSON(w, r, h.log, &payload) {
		return
	}

	order, err := h.flow.Place(r.Context(), userID, payload.ProductID)
	if err != nil {
		var placementErr *orderflow.PlacementError

		switch {
		case errors.Is(err, storage.ErrProductNotFound):
			handleError(w, errmsg.ErrProductNotFound)

		case errors.Is(err, orderflow.ErrProductOutOfStock):
			handleError(w, errmsg.ErrProductOutOfStock)

		case errors.Is(err, orderflow.ErrInsufficientFunds):
			handleError(w, errmsg.ErrBalanceNotEnough)

		case errors.Is(err, orderflow.ErrPaymentFailed):
			h.log.Error("flow.Place()", slog.Any("error", err))
			handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, orderflow.ErrPaymentFailed))

		case errors.As(err, &placementErr):
			h.log.Error("flow.Place()", slog.Any("error", err))
			handleError(w, errmsg.NewHTTPError(http.StatusBadGateway, placementErr))

		default:
			h.log.Error("flow.Place()", slog.Any("error", err))
			handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))
		}

		return
	}

	handleJSONResponse(w, http.StatusCreated, orderResponse(order))
}

func (h *Handlers) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		h.log.Error("jwtauth.FromContext()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	userOrders, err := h.storage.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.log.Error("storage.GetOrdersByUser()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	if len(userOrders) == 0 {
		handleJSONResponse(w, http.StatusNoContent, []models.OrderResponse{})

		return
	}

	resp := make([]models.OrderResponse, 0, len(userOrders))
	for _, order := range userOrders {
		resp = append(resp, orderResponse(order))
	}

	handleJSONResponse(w, http.StatusOK, resp)
}

// CheckOrder re-applies the provider's reported state to one order: the
// manual "recheck status" action from the order history.
func (h *Handlers) CheckOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		h.log.Error("jwtauth.FromContext()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	order, err := h.flow.UserOrder(r.Context(), userID, chi.URLParam(r, "orderID"))
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			handleError(w, errmsg.ErrOrderNotFound)

			return
		}

		h.log.Error("flow.UserOrder()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	reconciled, outcome, err := h.flow.Reconcile(r.Context(), order)
	if err != nil {
		h.log.Error("flow.Reconcile()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusBadGateway, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, models.OrderActionResponse{
		Order:   orderResponse(reconciled),
		Outcome: outcome.String(),
	})
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		h.log.Error("jwtauth.FromContext()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	order, err := h.flow.UserOrder(r.Context(), userID, chi.URLParam(r, "orderID"))
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			handleError(w, errmsg.ErrOrderNotFound)

			return
		}

		h.log.Error("flow.UserOrder()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	cancelled, outcome, err := h.flow.Cancel(r.Context(), order)
	if err != nil {
		var rejectedErr *orderflow.CancelRejectedError

		if errors.As(err, &rejectedErr) {
			// Nothing was refunded; the client should recheck the status
			// before assuming anything about the rental.
			handleJSONResponse(w, http.StatusConflict, models.OrderActionResponse{
				Order:   orderResponse(cancelled),
				Outcome: outcome.String(),
				Message: rejectedErr.Error() + "; recheck the order status",
			})

			return
		}

		h.log.Error("flow.Cancel()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusBadGateway, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, models.OrderActionResponse{
		Order:   orderResponse(cancelled),
		Outcome: outcome.String(),
	})
}

func (h *Handlers) RedeemVoucher(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		h.log.Error("jwtauth.FromContext()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	var payload models.VoucherRedeemRequest

	if !decodeJSON(w, r, h.log, &payload) {
		return
	}

	amount, err := h.storage.RedeemVoucher(r.Context(), vouchers.NormalizeCode(payload.Code), userID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrVoucherNotFound):
			handleError(w, errmsg.ErrVoucherInvalid)

		case errors.Is(err, storage.ErrVoucherAlreadyUsed):
			handleError(w, errmsg.ErrVoucherAlreadyUsed)

		case errors.Is(err, storage.ErrUserNotFound):
			handleError(w, errmsg.ErrUserNotFound)

		default:
			h.log.Error("storage.RedeemVoucher()", slog.Any("error", err))
			handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))
		}

		return
	}

	user, err := h.storage.GetUser(r.Context(), userID)
	if err != nil {
		h.log.Error("storage.GetUser()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, models.VoucherRedeemResponse{
		Amount:  amount.InexactFloat64(),
		Balance: user.Balance.InexactFloat64(),
	})
}
