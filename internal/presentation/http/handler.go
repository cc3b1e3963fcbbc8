package httppresentation

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	appcheckout "github.com/Zhima-Mochi/storefront-bot/internal/application/checkout"
	appinventory "github.com/Zhima-Mochi/storefront-bot/internal/application/inventory"
	appsales "github.com/Zhima-Mochi/storefront-bot/internal/application/sales"
	domcheckout "github.com/Zhima-Mochi/storefront-bot/internal/domain/checkout"
	domgiveaway "github.com/Zhima-Mochi/storefront-bot/internal/domain/giveaway"
	dominv "github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"
	domsales "github.com/Zhima-Mochi/storefront-bot/internal/domain/sales"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability/logctx"
	"github.com/Zhima-Mochi/storefront-bot/internal/pkg/apierror"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

const (
	componentHTTPHandler = "http_server"
	headerAdminToken     = "X-Admin-Token"
	headerActorID        = "X-Actor-ID"
	defaultActorID       = "api"

	maxBodyBytes = 8 << 20
)

type Inventory interface {
	ImportJSON(ctx context.Context, cmd appinventory.ImportJSONCommand) (dominv.MergeResult, error)
	ImportLines(ctx context.Context, cmd appinventory.ImportLinesCommand) (appinventory.ImportLinesResult, error)
	AddItems(ctx context.Context, cmd appinventory.AddItemsCommand) (appinventory.AddItemsResult, error)
	SetPrice(ctx context.Context, cmd appinventory.SetPriceCommand) error
	DeleteCategory(ctx context.Context, cmd appinventory.DeleteCategoryCommand) error
	Clear(ctx context.Context, cmd appinventory.ClearCommand) error
	Export(ctx context.Context) ([]byte, error)
	Snapshot(ctx context.Context) ([]dominv.Summary, error)
	SearchCards(ctx context.Context, cmd appinventory.SearchCommand) ([]dominv.CardListing, error)
}

type Checkout interface {
	Status(ctx context.Context, id string) (*domcheckout.Payment, error)
	Cancel(ctx context.Context, cmd appcheckout.CancelCommand) error
	ManualDelivery(ctx context.Context, cmd appcheckout.ManualDeliveryCommand) (appcheckout.ManualDeliveryResult, error)
	Resend(ctx context.Context, cmd appcheckout.ResendCommand) (string, error)
}

type Sales interface {
	Stats(ctx context.Context, q appsales.StatsQuery) (domsales.Stats, error)
}

type Giveaways interface {
	Start(ctx context.Context, d domgiveaway.Draft) (*domgiveaway.Giveaway, error)
	Finalize(ctx context.Context, messageID string) ([]string, error)
	Reroll(ctx context.Context, messageID string) ([]string, error)
}

// Config holds what the admin API is built from. Nil services leave their
// routes unmounted.
type Config struct {
	Inventory  Inventory
	Checkout   Checkout
	Sales      Sales
	Giveaways  Giveaways
	AdminToken string
	Metrics    http.Handler
	Logger     observability.Logger
	Telemetry  observability.Observability
}

type Handler struct {
	cfg     Config
	log     observability.Logger
	started time.Time
}

func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Handler{
		cfg:     cfg,
		log:     logger.With(observability.F("component", componentHTTPHandler)),
		started: time.Now(),
	}
}

// Router wires every route behind Observability → Recovery → CORS. Admin
// routes also require the admin token.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(ObservabilityMiddleware(h.log, h.cfg.Telemetry))
	r.Use(Recovery(h.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", headerRequestID, headerAdminToken, headerActorID},
		ExposedHeaders: []string{headerRequestID},
		MaxAge:         300,
	}))

	r.Get("/health", h.handleHealth)
	if h.cfg.Metrics != nil {
		r.Handle("/metrics", h.cfg.Metrics)
	}

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(h.requireAdmin)

		if h.cfg.Inventory != nil {
			r.Route("/inventory", func(r chi.Router) {
				r.Get("/", h.handleSnapshot)
				r.Delete("/", h.handleClear)
				r.Get("/export", h.handleExport)
				r.Post("/import", h.handleImportJSON)
				r.Post("/lines", h.handleImportLines)
				r.Post("/items", h.handleAddItems)
				r.Get("/cards", h.handleSearchCards)
				r.Put("/categories/{category}/price", h.handleSetPrice)
				r.Delete("/categories/{category}", h.handleDeleteCategory)
			})
		}
		if h.cfg.Checkout != nil {
			r.Get("/payments/{id}", h.handlePaymentStatus)
			r.Post("/payments/{id}/cancel", h.handleCancelPayment)
			r.Post("/deliveries", h.handleManualDelivery)
			r.Post("/deliveries/resend", h.handleResend)
		}
		if h.cfg.Sales != nil {
			r.Get("/sales/stats", h.handleSalesStats)
		}
		if h.cfg.Giveaways != nil {
			r.Post("/giveaways", h.handleStartGiveaway)
			r.Post("/giveaways/{id}/finalize", h.handleFinalizeGiveaway)
			r.Post("/giveaways/{id}/reroll", h.handleRerollGiveaway)
		}
	})
	return r
}

type actorKey struct{}

// requireAdmin checks the shared admin token and stores the calling admin's
// id on the context.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(headerAdminToken)
		if h.cfg.AdminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.AdminToken)) != 1 {
			apierror.Unauthorized("invalid or missing admin token").Write(w)
			return
		}
		actor := r.Header.Get(headerActorID)
		if actor == "" {
			actor = defaultActorID
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func actorFrom(ctx context.Context) string {
	if id, ok := ctx.Value(actorKey{}).(string); ok {
		return id
	}
	return defaultActorID
}

func adminActor(r *http.Request) domcheckout.Actor {
	return domcheckout.Actor{ID: actorFrom(r.Context()), Admin: true}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	})
}

type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	apierror.BadRequest(err.Error()).Write(w)
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := mapError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		h.requestLogger(r).Error("http_request_failed",
			observability.F("route", routeFromRequest(r)),
			observability.F("code", apiErr.Code),
			observability.Err(err),
		)
	}
	apiErr.Write(w)
}

func (h *Handler) requestLogger(r *http.Request) observability.Logger {
	return logctx.FromOr(r.Context(), h.log)
}
