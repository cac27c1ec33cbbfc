package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"snapline/internal/domain"
	"snapline/internal/engine"
	"snapline/internal/llm"
	"snapline/internal/reminder"
	"snapline/internal/schedule"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Notifier *reminder.Notifier
	Logger   *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"bad_request"`
	Message string         `json:"message" example:"release_date: invalid date \"2025-13-01\": expected YYYY-MM-DD"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Snapline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors are plain 400s.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))
	hcfg := huma.DefaultConfig("Snapline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerSchedule(group, cfg.Engine)
	registerGenerate(group, cfg.Engine)
	registerShootDays(group, cfg.Engine)
	registerCalendar(group, cfg.Engine)
	registerReminders(group, cfg.Engine, cfg.Notifier)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case errors.Is(err, schedule.ErrInvalidDate), errors.Is(err, engine.ErrInvalidInput):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	case errors.Is(err, engine.ErrGeneratorUnavailable):
		return newAPIError(http.StatusServiceUnavailable, "generator_unavailable", msg, nil)
	case errors.Is(err, engine.ErrRateLimited):
		return newAPIError(http.StatusTooManyRequests, "rate_limited", msg, nil)
	case errors.Is(err, llm.ErrInvalidOutput),
		errors.Is(err, engine.ErrEmptyStrategy),
		errors.Is(err, llm.ErrUnauthorized),
		errors.Is(err, llm.ErrTimeout),
		errors.Is(err, llm.ErrRetryExhausted):
		return newAPIError(http.StatusBadGateway, "bad_gateway", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusServiceUnavailable:
		return "generator_unavailable"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Snapline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerSchedule(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "schedule",
		Method:      http.MethodPost,
		Path:        "/schedule",
		Summary:     "Schedule a world's snapshots and shoot days",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ScheduleRequest `json:"body"`
	}) (*struct {
		Body PlanResponse `json:"body"`
	}, error) {
		plan, err := e.Schedule(ctx, input.Body.toPlanRequest())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PlanResponse `json:"body"`
		}{Body: planResponse(plan)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "schedule-batch",
		Method:      http.MethodPost,
		Path:        "/schedule/batch",
		Summary:     "Schedule several worlds concurrently",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body BatchScheduleRequest `json:"body"`
	}) (*struct {
		Body BatchScheduleResponse `json:"body"`
	}, error) {
		reqs := make([]engine.PlanRequest, len(input.Body.Worlds))
		for i, w := range input.Body.Worlds {
			reqs[i] = w.toPlanRequest()
		}
		plans, err := e.PlanWorlds(ctx, reqs)
		if err != nil {
			return nil, handleError(err)
		}
		out := BatchScheduleResponse{Plans: make([]PlanResponse, len(plans))}
		for i, p := range plans {
			out.Plans[i] = planResponse(p)
		}
		return &struct {
			Body BatchScheduleResponse `json:"body"`
		}{Body: out}, nil
	})
}

func registerGenerate(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "generate-snapshots",
		Method:      http.MethodPost,
		Path:        "/snapshots/generate",
		Summary:     "Generate and schedule a snapshot strategy",
		Errors:      []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		Body GenerateRequest `json:"body"`
	}) (*struct {
		Body engine.StrategyResult `json:"body"`
	}, error) {
		b := input.Body
		res, err := e.GenerateStrategy(ctx, llm.SnapshotBrief{
			WorldID:          b.WorldID,
			WorldName:        b.WorldName,
			ReleaseDate:      b.ReleaseDate,
			Color:            b.Color,
			VisualReferences: b.VisualReferences,
			ColorPalette:     b.ColorPalette,
		}, b.BlackoutDates)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.StrategyResult `json:"body"`
		}{Body: res}, nil
	})
}

func registerShootDays(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "group-shoot-days",
		Method:      http.MethodPost,
		Path:        "/shoot-days",
		Summary:     "Group dated snapshots into shoot days",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body GroupShootDaysRequest `json:"body"`
	}) (*struct {
		Body ShootDaysResponse `json:"body"`
	}, error) {
		days, err := e.GroupShootDays(ctx, input.Body.WorldID, mapSnapshots(input.Body.Snapshots))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ShootDaysResponse `json:"body"`
		}{Body: ShootDaysResponse{ShootDays: days}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reschedule-shoot-days",
		Method:      http.MethodPost,
		Path:        "/shoot-days/reschedule",
		Summary:     "Move shoot days off blackout dates",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body RescheduleRequest `json:"body"`
	}) (*struct {
		Body ShootDaysResponse `json:"body"`
	}, error) {
		days, err := e.Reschedule(ctx, mapShootDays(input.Body.ShootDays), input.Body.BlackoutDates)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ShootDaysResponse `json:"body"`
		}{Body: ShootDaysResponse{ShootDays: days}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "confirm-shoot-day",
		Method:      http.MethodPost,
		Path:        "/shoot-days/confirm",
		Summary:     "Confirm a shoot day",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ConfirmShootDayRequest `json:"body"`
	}) (*struct {
		Body domain.ShootDay `json:"body"`
	}, error) {
		day, err := e.ConfirmShootDay(input.Body.ShootDay.toDomain(), input.Body.UseSuggestedDate)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ShootDay `json:"body"`
		}{Body: day}, nil
	})
}
