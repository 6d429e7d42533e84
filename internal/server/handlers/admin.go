package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ditznesia/otpstore/internal/domain/announcements"
	"github.com/ditznesia/otpstore/internal/domain/products"
	"github.com/ditznesia/otpstore/internal/domain/vouchers"
	"github.com/ditznesia/otpstore/internal/errmsg"
	"github.com/ditznesia/otpstore/internal/server/models"
	"github.com/ditznesia/otpstore/internal/storage"
)

func (h *Handlers) AdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var payload models.ProductRequest

	if !decodeJSON(w, r, h.log, &payload) {
		return
	}

	product, err := products.NewProduct(
		payload.Platform, payload.Country, payload.Price, payload.Stock,
		payload.CountryID, payload.ServiceCode,
	)
	if err != nil {
		h.log.Error("products.NewProduct()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusBadRequest, err))

		return
	}

	if err := h.storage.CreateProduct(r.Context(), product); err != nil {
		h.log.Error("storage.CreateProduct()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusCreated, &JSONResponse{Message: product.ID})
}

func (h *Handlers) AdminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	var payload models.ProductRequest

	if !decodeJSON(w, r, h.log, &payload) {
		return
	}

	product, err := h.storage.GetProduct(r.Context(), productID)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			handleError(w, errmsg.ErrProductNotFound)

			return
		}

		h.log.Error("storage.GetProduct()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	product.Platform = payload.Platform
	product.Country = payload.Country
	product.Price = payload.Price
	product.Stock = payload.Stock
	product.CountryID = payload.CountryID
	product.ServiceCode = payload.ServiceCode
	product.Icon = products.IconForPlatform(payload.Platform)
	product.Flag = products.FlagForCountry(payload.Country)

	if err := h.storage.UpdateProduct(r.Context(), product); err != nil {
		h.log.Error("storage.UpdateProduct()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}

func (h *Handlers) AdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.DeleteProduct(r.Context(), chi.URLParam(r, "productID")); err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			handleError(w, errmsg.ErrProductNotFound)

			return
		}

		h.log.Error("storage.DeleteProduct()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}

// AdminSyncProducts bulk-imports the provider price list for one country
// at cost plus markup. Re-syncing appends; duplicates are reviewed and
// deleted by the admin, not merged.
func (h *Handlers) AdminSyncProducts(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		handleError(w, errmsg.NewHTTPError(http.StatusServiceUnavailable, errors.New("catalog sync is not configured")))

		return
	}

	var payload models.SyncRequest

	if !decodeJSON(w, r, h.log, &payload) {
		return
	}

	if payload.CountryID == "" {
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return
	}

	created, err := h.syncer.Sync(r.Context(), payload.CountryID, payload.Markup)
	if err != nil {
		h.log.Error("syncer.Sync()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusBadGateway, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, models.SyncResponse{Created: created})
}

func (h *Handlers) AdminCreateVoucher(w http.ResponseWriter, r *http.Request) {
	var payload models.VoucherRequest

	if !decodeJSON(w, r, h.log, &payload) {
		return
	}

	voucher, err := vouchers.NewVoucher(payload.Code, payload.Amount)
	if err != nil {
		h.log.Error("vouchers.NewVoucher()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusBadRequest, err))

		return
	}

	if err := h.storage.CreateVoucher(r.Context(), voucher); err != nil {
		if errors.Is(err, storage.ErrVoucherAlreadyExists) {
			handleError(w, errmsg.NewHTTPError(http.StatusConflict, err))

			return
		}

		h.log.Error("storage.CreateVoucher()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusCreated, &JSONResponse{Message: voucher.ID})
}

func (h *Handlers) AdminListVouchers(w http.ResponseWriter, r *http.Request) {
	vchs, err := h.storage.ListVouchers(r.Context())
	if err != nil {
		h.log.Error("storage.ListVouchers()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	resp := make([]models.VoucherResponse, 0, len(vchs))
	for _, voucher := range vchs {
		resp = append(resp, models.VoucherResponse{
			ID:     voucher.ID,
			Code:   voucher.Code,
			Amount: voucher.Amount.InexactFloat64(),
			IsUsed: voucher.IsUsed,
		})
	}

	handleJSONResponse(w, http.StatusOK, resp)
}

func (h *Handlers) AdminDeleteVoucher(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.DeleteVoucher(r.Context(), chi.URLParam(r, "voucherID")); err != nil {
		if errors.Is(err, storage.ErrVoucherNotFound) {
			handleError(w, errmsg.ErrVoucherInvalid)

			return
		}

		h.log.Error("storage.DeleteVoucher()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}

func (h *Handlers) AdminCreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var payload models.AnnouncementRequest

	if !decodeJSON(w, r, h.log, &payload) {
		return
	}

	kind, err := announcements.ParseKind(payload.Kind)
	if err != nil {
		handleError(w, errmsg.NewHTTPError(http.StatusBadRequest, err))

		return
	}

	ann, err := announcements.NewAnnouncement(payload.Title, payload.Content, kind)
	if err != nil {
		h.log.Error("announcements.NewAnnouncement()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusBadRequest, err))

		return
	}

	if err := h.storage.CreateAnnouncement(r.Context(), ann); err != nil {
		h.log.Error("storage.CreateAnnouncement()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusCreated, &JSONResponse{Message: ann.ID})
}

func (h *Handlers) AdminListAnnouncements(w http.ResponseWriter, r *http.Request) {
	anns, err := h.storage.ListAnnouncements(r.Context(), false)
	if err != nil {
		h.log.Error("storage.ListAnnouncements()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, announcementResponses(anns))
}

func (h *Handlers) AdminDeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.DeleteAnnouncement(r.Context(), chi.URLParam(r, "announcementID")); err != nil {
		if errors.Is(err, storage.ErrAnnouncementNotFound) {
			handleError(w, errmsg.ErrAnnouncementNotFound)

			return
		}

		h.log.Error("storage.DeleteAnnouncement()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}

func (h *Handlers) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	usrs, err := h.storage.ListUsers(r.Context())
	if err != nil {
		h.log.Error("storage.ListUsers()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	resp := make([]models.UserResponse, 0, len(usrs))
	for _, user := range usrs {
		resp = append(resp, models.UserResponse{
			ID:      user.ID,
			Name:    user.Name,
			Email:   user.Email,
			Balance: user.Balance.InexactFloat64(),
			Role:    string(user.Role),
		})
	}

	handleJSONResponse(w, http.StatusOK, resp)
}

// AdminAdjustBalance applies a signed delta to a user's balance: manual
// deposits after a payment confirmation, or corrections.
func (h *Handlers) AdminAdjustBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var payload models.AdjustBalanceRequest

	if !decodeJSON(w, r, h.log, &payload) {
		return
	}

	balance, err := h.storage.AdjustUserBalance(r.Context(), userID, payload.Delta)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUserNotFound):
			handleError(w, errmsg.ErrUserNotFound)

		case errors.Is(err, storage.ErrBalanceNotEnough):
			handleError(w, errmsg.ErrBalanceNotEnough)

		default:
			h.log.Error("storage.AdjustUserBalance()", slog.Any("error", err))
			handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))
		}

		return
	}

	handleJSONResponse(w, http.StatusOK, models.BalanceResponse{Balance: balance.InexactFloat64()})
}

// AdminProviderBalance checks the reseller account balance held at the
// provider, the basic connectivity test of the dashboard.
func (h *Handlers) AdminProviderBalance(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		handleError(w, errmsg.NewHTTPError(http.StatusServiceUnavailable, errors.New("provider client is not configured")))

		return
	}

	saldo, err := h.provider.Balance(r.Context())
	if err != nil {
		h.log.Error("provider.Balance()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusBadGateway, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, models.ProviderBalanceResponse{Saldo: saldo.InexactFloat64()})
}
