package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskdeck/taskdeck/internal/apikey"
	"github.com/taskdeck/taskdeck/internal/apikeys"
	"github.com/taskdeck/taskdeck/internal/apperrors"
	"github.com/taskdeck/taskdeck/internal/audit"
	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/config"
	"github.com/taskdeck/taskdeck/internal/directory"
	"github.com/taskdeck/taskdeck/internal/intake"
	"github.com/taskdeck/taskdeck/internal/orgs"
	"github.com/taskdeck/taskdeck/internal/projects"
	"github.com/taskdeck/taskdeck/internal/tasks"
)

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(pool *pgxpool.Pool, cfg *config.Config, deps Deps) *chi.Mux {
	r := chi.NewRouter()

	isProduction := !cfg.IsDev()

	r.Use(middleware.RealIP)
	r.Use(apperrors.RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.Middleware(cfg.JWTSecret))

	auditor := audit.NewWriter(pool)

	// Health check routes (no authentication required)
	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(pool))

	// API routes - Authentication
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware())

		r.Post("/signup", auth.HandleSignup(pool, auditor, cfg.JWTSecret, cfg.SessionDays, isProduction))
		r.With(LoginRateLimitMiddleware()).Post("/login", auth.HandleLogin(pool, auditor, cfg.JWTSecret, cfg.SessionDays, isProduction))
		r.With(auth.RequireAuth).Post("/logout", auth.HandleLogout())
		r.With(auth.RequireAuth).Get("/me", auth.HandleMe(pool))
	})

	// API routes - Organizations (require authentication)
	r.Route("/api/v1/orgs", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware())
		r.Use(auth.RequireAuth)

		r.Post("/", orgs.HandleCreate(pool, auditor))
		r.Get("/", orgs.HandleList(pool))
		r.Get("/{org_id}", orgs.HandleGet(pool))

		// Invitations
		r.Post("/{org_id}/invites", orgs.HandleCreateInvite(pool, auditor))
		r.Get("/{org_id}/invites", orgs.HandleListInvites(pool))
		r.Delete("/{org_id}/invites/{invite_id}", orgs.HandleRevokeInvite(pool, auditor))

		// Members, roles and reporting lines
		r.Get("/{org_id}/members", directory.HandleListMembers(pool, deps.Cache))
		r.Put("/{org_id}/members/{user_id}/role", directory.HandleUpdateRole(pool, deps.Cache, auditor))
		r.Put("/{org_id}/members/{user_id}/reports-to", directory.HandleUpdateReportsTo(pool, deps.Cache, auditor))
		r.Get("/{org_id}/members/{user_id}/reports", directory.HandleListReports(pool, deps.Cache))
		r.Delete("/{org_id}/members/{user_id}", directory.HandleDeactivateMember(pool, deps.Cache, auditor))

		// Projects under organization
		r.Post("/{org_id}/projects", projects.HandleCreate(pool, auditor))
		r.Get("/{org_id}/projects", projects.HandleList(pool))
		r.Delete("/{org_id}/projects/{project_id}", projects.HandleDelete(pool))

		// API keys
		r.Post("/{org_id}/api-keys", apikeys.HandleCreate(pool, auditor))
		r.Get("/{org_id}/api-keys", apikeys.HandleList(pool))
		r.Delete("/{org_id}/api-keys/{key_id}", apikeys.HandleRevoke(pool, auditor))

		// Audit trail
		r.Get("/{org_id}/audit", orgs.HandleListAudit(pool))
	})

	// API routes - Invitation acceptance (authenticated, but org membership
	// is what the call establishes)
	r.Route("/api/v1/invites", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware())
		r.Use(auth.RequireAuth)

		r.Post("/accept", orgs.HandleAcceptInvite(pool, auditor))
	})

	// API routes - Tasks (require authentication and org membership)
	r.Route("/api/v1/tasks", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware())
		r.Use(auth.RequireAuth)
		r.Use(ActorMiddleware(pool, deps.Cache))

		r.Post("/", tasks.HandleCreateTask(deps.TaskService))
		r.Get("/", tasks.HandleListTasks(deps.TaskService))
		r.Get("/{task_id}", tasks.HandleGetTask(deps.TaskService))
		r.Get("/{task_id}/access", tasks.HandleGetAccess(deps.TaskService))
		r.Patch("/{task_id}", tasks.HandleUpdateTask(deps.TaskService))
		r.Put("/{task_id}/status", tasks.HandleUpdateStatus(deps.TaskService))
		r.Put("/{task_id}/assignees", tasks.HandleSetAssignees(deps.TaskService))
		r.Delete("/{task_id}", tasks.HandleDeleteTask(deps.TaskService))

		r.Get("/{task_id}/activity", tasks.HandleListActivity(deps.TaskService, deps.Activity))
		r.Post("/{task_id}/comments", tasks.HandleAddComment(deps.TaskService, deps.Activity))
	})

	// API routes - Intake (require API key authentication)
	r.Route("/api/v1/intake", func(r chi.Router) {
		batchLimits := intake.NewBatchLimits(cfg.MaxIntakeItems)

		r.With(
			apikey.RequireAPIKey(pool, apikeys.ScopeIntakeWrite),
			apikey.RateLimitByAPIKey(cfg.RateLimitRPM),
		).Post("/tasks", intake.HandleIntakeTasks(deps.Directory, deps.TaskService, batchLimits))
	})

	return r
}

// handleHealthz returns a simple liveness check
// Always returns 200 OK if the service is running
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadyz returns a readiness check that includes database connectivity
// Returns 200 OK if service is ready to accept traffic, 503 if not
func handleReadyz(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			apperrors.WriteServiceUnavailable(w, r, "Database connection failed")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "ready",
			"db":     "ok",
		})
	}
}
