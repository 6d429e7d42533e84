package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"

	"github.com/ditznesia/otpstore/internal/auth"
	"github.com/ditznesia/otpstore/internal/catalog"
	"github.com/ditznesia/otpstore/internal/domain/users"
	"github.com/ditznesia/otpstore/internal/errmsg"
	"github.com/ditznesia/otpstore/internal/orderflow"
	"github.com/ditznesia/otpstore/internal/provider/otpclient"
	"github.com/ditznesia/otpstore/internal/server/handlers"
	"github.com/ditznesia/otpstore/internal/storage"
)

type Options struct {
	log      *slog.Logger
	secret   []byte
	syncer   *catalog.Syncer
	provider *otpclient.Client
}

func NewRouter(store storage.Storage, flow *orderflow.Service, opts ...Option) chi.Router {
	r := chi.NewRouter()

	rOpts := Options{
		log:    slog.New(&slog.JSONHandler{}),
		secret: []byte(""),
	}

	for _, opt := range opts {
		opt(&rOpts)
	}

	tokenAuth := jwtauth.New("HS256", rOpts.secret, nil)

	r.Use(
		middleware.Recoverer,
		middleware.StripSlashes,
		middleware.Logger,
	)

	hOpts := []handlers.Option{
		handlers.WithLogger(rOpts.log),
		handlers.WithAuth(auth.NewJWTAuth(rOpts.secret)),
	}

	if rOpts.syncer != nil {
		hOpts = append(hOpts, handlers.WithSyncer(rOpts.syncer))
	}

	if rOpts.provider != nil {
		hOpts = append(hOpts, handlers.WithProvider(rOpts.provider))
	}

	h := handlers.NewHandlers(store, flow, hOpts...)

	r.Get("/ping", h.Ping)

	r.Group(func(r chi.Router) {
		r.Post("/api/user/register", h.UserRegister)
		r.Post("/api/user/login", h.UserLogin)
		r.Get("/api/products", h.ListProducts)
		r.Get("/api/announcements", h.ListAnnouncements)
	})

	r.Group(func(r chi.Router) {
		r.Use(
			jwtauth.Verifier(tokenAuth),
			jwtauth.Authenticator(tokenAuth),
		)

		r.Get("/api/user/balance", h.GetUserBalance)
		r.Post("/api/user/orders", h.PlaceOrder)
		r.Get("/api/user/orders", h.GetUserOrders)
		r.Post("/api/user/orders/{orderID}/check", h.CheckOrder)
		r.Post("/api/user/orders/{orderID}/cancel", h.CancelOrder)
		r.Post("/api/user/vouchers/redeem", h.RedeemVoucher)
	})

	r.Group(func(r chi.Router) {
		r.Use(
			jwtauth.Verifier(tokenAuth),
			jwtauth.Authenticator(tokenAuth),
			adminOnly,
		)

		r.Post("/api/admin/products", h.AdminCreateProduct)
		r.Put("/api/admin/products/{productID}", h.AdminUpdateProduct)
		r.Delete("/api/admin/products/{productID}", h.AdminDeleteProduct)
		r.Post("/api/admin/products/sync", h.AdminSyncProducts)

		r.Post("/api/admin/vouchers", h.AdminCreateVoucher)
		r.Get("/api/admin/vouchers", h.AdminListVouchers)
		r.Delete("/api/admin/vouchers/{voucherID}", h.AdminDeleteVoucher)

		r.Post("/api/admin/announcements", h.AdminCreateAnnouncement)
		r.Get("/api/admin/announcements", h.AdminListAnnouncements)
		r.Delete("/api/admin/announcements/{announcementID}", h.AdminDeleteAnnouncement)

		r.Get("/api/admin/users", h.AdminListUsers)
		r.Post("/api/admin/users/{userID}/balance", h.AdminAdjustBalance)

		r.Get("/api/admin/provider/balance", h.AdminProviderBalance)
	})

	return r
}

// adminOnly passes requests whose verified token carries the admin role
// claim. The claim is set at login time so a role change takes effect on
// the next token issue.
func adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

			return
		}

		role, _ := claims[auth.RoleClaim].(string)
		if role != string(users.RoleAdmin) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(errmsg.ErrAdminOnly.Code)

			_, _ = w.Write([]byte(`{"message":"` + errmsg.ErrAdminOnly.Error() + `"}`))

			return
		}

		next.ServeHTTP(w, r)
	})
}

type Option func(r *Options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.log = logger
	}
}

func WithSecret(secret []byte) Option {
	return func(o *Options) {
		o.secret = secret
	}
}

func WithSyncer(syncer *catalog.Syncer) Option {
	return func(o *Options) {
		o.syncer = syncer
	}
}

func WithProvider(client *otpclient.Client) Option {
	return func(o *Options) {
		o.provider = client
	}
}
