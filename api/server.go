/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. CORS:       Cross-origin requests for frontend
  2. httplog:    Structured request logging (slog, ECS schema)
  3. CleanPath:  Normalizes double slashes
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Heartbeat:  GET /health liveness probe

ROUTE GROUPS:
  /api/employees/*      Employees, balances, entries, requests, summaries
  /api/entries/*        Entry update/delete by id
  /api/requests/*       Leave request decisions
  /api/rulesets/*       Working-time rulesets
  /api/holidays/*       Holiday calendar (incl. ICS import)
  /api/scenarios/*      Demo scenarios
  /api/admin/*          Rollover, database reset (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public and
  actor identity is body-carried. Put this behind a gateway before any
  real deployment.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

// NewLogger builds the process-wide structured logger. JSON to stdout,
// ECS field names so request logs and application logs share a schema.
func NewLogger(env string) *slog.Logger {
	logFormat := httplog.SchemaECS.Concise(env == "development")
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "timekeep"),
		slog.String("env", env),
	)
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))
	r.Use(chimiddleware.CleanPath)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Heartbeat("/health"))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Put("/{id}", h.UpdateEmployee)
			r.Delete("/{id}", h.DisableEmployee)
			r.Post("/{id}/enable", h.EnableEmployee)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/movements", h.ListMovements)
			r.Get("/{id}/entries", h.ListEntries)
			r.Post("/{id}/entries", h.SubmitEntry)
			r.Get("/{id}/requests", h.ListEmployeeRequests)
			r.Post("/{id}/requests", h.SubmitLeave)
			r.Get("/{id}/summary", h.GetSummary)
			r.Get("/{id}/summary/export", h.ExportSummary)
		})

		// Time entry routes
		r.Route("/entries", func(r chi.Router) {
			r.Put("/{id}", h.UpdateEntry)
			r.Delete("/{id}", h.DeleteEntry)
		})

		// Leave request decision routes
		r.Route("/requests", func(r chi.Router) {
			r.Get("/pending", h.ListPendingRequests)
			r.Post("/{id}/approve", h.ApproveRequest)
			r.Post("/{id}/reject", h.RejectRequest)
			r.Post("/{id}/cancel", h.CancelRequest)
		})

		// Ruleset routes
		r.Route("/rulesets", func(r chi.Router) {
			r.Get("/", h.ListRulesets)
			r.Get("/{id}", h.GetRuleset)
		})

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Post("/import", h.ImportHolidays)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/rollover", h.TriggerRollover)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	// Minimal index so a browser hitting the root sees something useful.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Timekeep</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Timekeep API</h1>
<p>Time and leave accounting engine.</p>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/employees">/api/employees</a> - List employees</li>
<li><a href="/api/requests/pending">/api/requests/pending</a> - Pending leave requests</li>
<li><a href="/api/rulesets">/api/rulesets</a> - Working-time rulesets</li>
<li><a href="/api/holidays">/api/holidays</a> - Holiday calendar</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
