package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"citybuilder/internal/domain"
	"citybuilder/pkg/utils"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader carries the client token of an idempotent operation
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayHeader is set on responses answered from the idempotency cache
	ReplayHeader = "Idempotent-Replay"

	maxBodyBytes = 1 << 20
)

// Flags are the feature switches reported by the status endpoint
type Flags struct {
	DevEndpoints  bool
	ShopEndpoints bool
	Unlimited     bool
	Unbounded     bool
	DefaultRadius int
}

// PingFunc checks a backing dependency
type PingFunc func(ctx context.Context) error

// Handler handles HTTP requests for the city, shop and dev operations
type Handler struct {
	cityUC domain.CityUseCase
	shopUC domain.ShopUseCase
	devUC  domain.DevUseCase
	ping   PingFunc
	flags  Flags
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	cityUC domain.CityUseCase,
	shopUC domain.ShopUseCase,
	devUC domain.DevUseCase,
	ping PingFunc,
	flags Flags,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cityUC: cityUC,
		shopUC: shopUC,
		devUC:  devUC,
		ping:   ping,
		flags:  flags,
		logger: logger,
	}
}

// Root reports that the service is running and which switches are on
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "City Builder Backend is running.",
		"timestamp": utils.EpochSeconds(utils.GetTimeNow()),
		"dev": map[string]any{
			"ALLOW_DEV_ENDPOINTS":      h.flags.DevEndpoints,
			"ENABLE_SHOP_ENDPOINTS":    h.flags.ShopEndpoints,
			"DEV_UNLIMITED_RESOURCES":  h.flags.Unlimited,
			"DEFAULT_WORLD_RADIUS":     h.flags.DefaultRadius,
			"DEV_DISABLE_WORLD_BOUNDS": h.flags.Unbounded,
		},
	})
}

// Healthz pings the state store
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			h.logger.Warn("Health check failed", zap.Error(err))
			h.writeError(w, r, err, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Catalog returns the building catalog
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cityUC.Catalog())
}

// NewGame creates a player
func (h *Handler) NewGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.cityUC.NewGame(r.Context(), req.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetCity returns the reconciled city
func (h *Handler) GetCity(w http.ResponseWriter, r *http.Request) {
	result, err := h.cityUC.GetCity(r.Context(), mux.Vars(r)["user_id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Ledger returns the newest ledger entries
func (h *Handler) Ledger(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, err, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	entries, err := h.cityUC.Ledger(r.Context(), userID, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "entries": entries})
}

// Place builds a new building
func (h *Handler) Place(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BuildingType string `json:"building_type"`
		X            *int   `json:"x"`
		Y            *int   `json:"y"`
		Rotation     *int   `json:"rotation"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.BuildingType == "" || req.X == nil || req.Y == nil {
		h.writeError(w, r, nil, http.StatusBadRequest, "building_type, x and y are required")
		return
	}

	result, err := h.cityUC.Place(r.Context(), mux.Vars(r)["user_id"], domain.PlaceCommand{
		Type:     req.BuildingType,
		X:        *req.X,
		Y:        *req.Y,
		Rotation: req.Rotation,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Upgrade starts a building upgrade
func (h *Handler) Upgrade(w http.ResponseWriter, r *http.Request) {
	buildingID, ok := h.buildingID(w, r)
	if !ok {
		return
	}

	result, err := h.cityUC.Upgrade(r.Context(), mux.Vars(r)["user_id"], buildingID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Demolish removes a building
func (h *Handler) Demolish(w http.ResponseWriter, r *http.Request) {
	buildingID, ok := h.buildingID(w, r)
	if !ok {
		return
	}

	result, err := h.cityUC.Demolish(r.Context(), mux.Vars(r)["user_id"], buildingID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Expand grows the world for gold
func (h *Handler) Expand(w http.ResponseWriter, r *http.Request) {
	steps, ok := h.steps(w, r)
	if !ok {
		return
	}

	result, err := h.cityUC.Expand(r.Context(), mux.Vars(r)["user_id"], steps)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ExpandWithGems grows the world for gems, once per Idempotency-Key
func (h *Handler) ExpandWithGems(w http.ResponseWriter, r *http.Request) {
	steps, ok := h.steps(w, r)
	if !ok {
		return
	}

	result, err := h.shopUC.ExpandWithGems(r.Context(), mux.Vars(r)["user_id"], steps, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if result.Replayed {
		w.Header().Set(ReplayHeader, "true")
	}
	writeJSON(w, http.StatusOK, result)
}

// CreditGems credits purchased gems, once per Idempotency-Key
func (h *Handler) CreditGems(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     string `json:"user_id"`
		Gems       int64  `json:"gems"`
		Provider   string `json:"provider"`
		PurchaseID string `json:"purchase_id"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.shopUC.CreditGems(r.Context(), domain.CreditGemsCommand{
		PlayerID:   req.UserID,
		Gems:       req.Gems,
		Provider:   req.Provider,
		PurchaseID: req.PurchaseID,
		Token:      r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if result.Replayed {
		w.Header().Set(ReplayHeader, "true")
	}
	writeJSON(w, http.StatusOK, result)
}

// DevReset recreates a player. wipe defaults to true.
func (h *Handler) DevReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Wipe *bool `json:"wipe"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	wipe := true
	if req.Wipe != nil {
		wipe = *req.Wipe
	}

	result, err := h.devUC.Reset(r.Context(), mux.Vars(r)["user_id"], wipe)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// DevGrant adds to or overwrites resources
func (h *Handler) DevGrant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Gold *float64 `json:"gold"`
		Wood *float64 `json:"wood"`
		Gems *int64   `json:"gems"`
		Mode string   `json:"mode"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.devUC.Grant(r.Context(), mux.Vars(r)["user_id"], domain.GrantCommand{
		Gold: req.Gold,
		Wood: req.Wood,
		Gems: req.Gems,
		Mode: req.Mode,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// DevWipe deletes a player's state
func (h *Handler) DevWipe(w http.ResponseWriter, r *http.Request) {
	result, err := h.devUC.Wipe(r.Context(), mux.Vars(r)["user_id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// DevSetRadius overwrites the world radius. The radius comes from the JSON
// body or the ?radius= query parameter.
func (h *Handler) DevSetRadius(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Radius *int `json:"radius"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Radius == nil {
		if raw := r.URL.Query().Get("radius"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				h.writeError(w, r, err, http.StatusBadRequest, "radius must be an integer")
				return
			}
			req.Radius = &n
		}
	}
	if req.Radius == nil {
		h.writeError(w, r, nil, http.StatusUnprocessableEntity, "radius is required (use JSON body or ?radius=...)")
		return
	}

	result, err := h.devUC.SetRadius(r.Context(), mux.Vars(r)["user_id"], *req.Radius)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) buildingID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		BuildingID string `json:"building_id"`
	}
	if !h.decode(w, r, &req) {
		return "", false
	}
	if strings.TrimSpace(req.BuildingID) == "" {
		h.writeError(w, r, nil, http.StatusBadRequest, "building_id is required")
		return "", false
	}
	return req.BuildingID, true
}

// steps reads an optional step count. Absent means one step.
func (h *Handler) steps(w http.ResponseWriter, r *http.Request) (int, bool) {
	var req struct {
		Steps *int `json:"steps"`
	}
	if !h.decode(w, r, &req) {
		return 0, false
	}
	if req.Steps == nil {
		return 1, true
	}
	return *req.Steps, true
}

// decode reads an optional JSON body into v. An empty body leaves v untouched.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	h.writeError(w, r, err, http.StatusBadRequest, "Invalid request body")
	return false
}

// fail maps a domain error to its status and writes it
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusOf(err)
	message := domain.MessageOf(err)
	if code == StatusClientClosedRequest {
		message = "Request canceled"
	}
	if code == http.StatusInternalServerError && domain.KindOf(err) == "" {
		h.logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", utils.GetRequestID(r.Context())),
			zap.Error(err),
		)
		message = "Internal Server Error"
	}
	h.writeError(w, r, err, code, message)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, code int, message string) {
	errCtx := utils.NewErrorContext(r, err, code, message)
	utils.RecordError(r, errCtx)
	utils.WriteError(w, errCtx)
}

// StatusClientClosedRequest is reported when the caller went away before the
// operation could finish, e.g. while waiting for the player lock.
const StatusClientClosedRequest = 499

// StatusOf maps an error to its HTTP status
func StatusOf(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return StatusClientClosedRequest
	}
	switch domain.KindOf(err) {
	case domain.KindLocked, domain.KindConflict:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidMutation, domain.KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
