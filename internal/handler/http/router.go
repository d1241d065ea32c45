package http

import (
	"log/slog"
	"os"

	"github.com/cmlabs-hris/attendance-engine/internal/config"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/user"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Attendance AttendanceHandler
	Day        DayHandler
	Evidence   EvidenceHandler
	Shift      ShiftHandler
	Geofence   GeofenceHandler
}

func NewRouter(cfg *config.Config, tokenAuth *jwtauth.JWTAuth, h Handlers) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(cfg.App.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "attendance-engine"),
		slog.String("version", cfg.App.Version),
		slog.String("env", cfg.App.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.App.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {

		// Device channel authenticates with its own credential
		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(cfg.Attendance.IngestTimeout))
			r.Use(middleware.DeviceRateLimit(cfg.RateLimit.DeviceIngestPerMinute))
			r.Post("/devices/ingest", h.Attendance.Ingest)
		})

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verify(tokenAuth, jwtauth.TokenFromHeader, jwtauth.TokenFromQuery))
			r.Use(middleware.AuthRequired)

			r.Route("/attendance", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionAttendanceClock))
					r.Use(chiMiddleware.Timeout(cfg.Attendance.IngestTimeout))
					r.Post("/clock-in", h.Attendance.ClockIn)
					r.Post("/clock-out", h.Attendance.ClockOut)
				})

				r.Route("/open-shift", func(r chi.Router) {
					r.Use(middleware.RequireAnyPermission(user.PermissionAttendanceViewOwn, user.PermissionAttendanceViewAll))
					r.Get("/", h.Attendance.OpenShift)
					r.Get("/stream", h.Attendance.OpenShiftStream)
				})

				r.With(middleware.RequirePermission(user.PermissionEvidenceView)).
					Get("/{record_id}/evidence", h.Evidence.ListByRecord)
			})

			r.Route("/attendance-days", func(r chi.Router) {
				r.Use(middleware.RequirePermission(user.PermissionAttendanceProcess))
				r.Post("/process", h.Day.Process)
				r.With(middleware.RequirePermission(user.PermissionAttendanceViewAll)).
					Post("/invalidate", h.Day.Invalidate)
			})

			r.With(middleware.RequirePermission(user.PermissionBiometricEnrol)).
				Post("/biometrics/enroll", h.Evidence.Enroll)

			r.With(middleware.RequirePermission(user.PermissionEvidenceView)).
				Get("/evidence/{id}/image", h.Evidence.Image)

			r.Route("/shifts", func(r chi.Router) {
				r.Use(middleware.RequirePermission(user.PermissionShiftManage))
				r.Post("/", h.Shift.Create)
				r.Put("/{id}", h.Shift.Update)
				r.Put("/{id}/assignments/{employee_id}", h.Shift.Assign)
			})

			r.Route("/geofence/settings", func(r chi.Router) {
				r.Use(middleware.RequirePermission(user.PermissionGeofenceManage))
				r.Get("/", h.Geofence.GetSettings)
				r.Put("/", h.Geofence.UpdateSettings)
			})
		})
	})
	return r
}
