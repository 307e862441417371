package http

import (
	"net/http"

	"citybuilder/pkg/utils"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RouterOptions configures the cross-cutting parts of the router
type RouterOptions struct {
	CORSOrigins []string
	Limiter     *RateLimiter
	Metrics     http.Handler
}

// Router handles HTTP routing
type Router struct {
	handler *Handler
	opts    RouterOptions
	logger  *zap.Logger
}

// NewRouter creates a new HTTP router
func NewRouter(handler *Handler, opts RouterOptions, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		handler: handler,
		opts:    opts,
		logger:  logger,
	}
}

// Setup sets up the HTTP routes and wraps them in the middleware chain
func (rt *Router) Setup() http.Handler {
	h := rt.handler
	r := mux.NewRouter()

	r.HandleFunc("/", h.Root).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	if rt.opts.Metrics != nil {
		r.Handle("/metrics", rt.opts.Metrics).Methods(http.MethodGet)
	}
	r.HandleFunc("/catalog", h.Catalog).Methods(http.MethodGet)
	r.HandleFunc("/new_game", h.NewGame).Methods(http.MethodPost)

	city := r.PathPrefix("/city/{user_id}").Subrouter()
	city.HandleFunc("", h.GetCity).Methods(http.MethodGet)
	city.HandleFunc("/ledger", h.Ledger).Methods(http.MethodGet)
	city.HandleFunc("/place", h.Place).Methods(http.MethodPost)
	city.HandleFunc("/upgrade", h.Upgrade).Methods(http.MethodPost)
	city.HandleFunc("/demolish", h.Demolish).Methods(http.MethodPost)
	city.HandleFunc("/expand", h.Expand).Methods(http.MethodPost)
	city.Handle("/expand_gems", rt.shopGate(h.ExpandWithGems)).Methods(http.MethodPost)

	r.Handle("/shop/credit_gems", rt.shopGate(h.CreditGems)).Methods(http.MethodPost)

	dev := r.PathPrefix("/dev").Subrouter()
	dev.Handle("/reset/{user_id}", rt.devGate(h.DevReset)).Methods(http.MethodPost)
	dev.Handle("/grant/{user_id}", rt.devGate(h.DevGrant)).Methods(http.MethodPost)
	dev.Handle("/resources/{user_id}", rt.devGate(h.DevGrant)).Methods(http.MethodPost)
	dev.Handle("/wipe/{user_id}", rt.devGate(h.DevWipe)).Methods(http.MethodPost)
	dev.Handle("/world/set_radius/{user_id}", rt.hiddenDevGate(h.DevSetRadius)).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	return ApplyMiddleware(r,
		RecoveryMiddleware(rt.logger),
		rt.opts.Limiter.Middleware,
		CORSMiddleware(rt.opts.CORSOrigins),
		LoggingMiddleware(rt.logger),
		utils.RequestIDMiddleware,
	)
}

// devGate answers 403 while dev endpoints are disabled
func (rt *Router) devGate(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rt.handler.flags.DevEndpoints {
			errCtx := utils.NewErrorContext(r, nil, http.StatusForbidden, "DEV endpoints are disabled (set ALLOW_DEV_ENDPOINTS=1)")
			utils.RecordError(r, errCtx)
			utils.WriteError(w, errCtx)
			return
		}
		next(w, r)
	})
}

// hiddenDevGate answers 404 while dev endpoints are disabled
func (rt *Router) hiddenDevGate(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rt.handler.flags.DevEndpoints {
			notFound(w, r)
			return
		}
		next(w, r)
	})
}

// shopGate answers 404 while shop endpoints are disabled
func (rt *Router) shopGate(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rt.handler.flags.ShopEndpoints {
			notFound(w, r)
			return
		}
		next(w, r)
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	errCtx := utils.NewErrorContext(r, nil, http.StatusNotFound, "Not Found")
	utils.RecordError(r, errCtx)
	utils.WriteError(w, errCtx)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	errCtx := utils.NewErrorContext(r, nil, http.StatusMethodNotAllowed, "Method Not Allowed")
	utils.RecordError(r, errCtx)
	utils.WriteError(w, errCtx)
}
