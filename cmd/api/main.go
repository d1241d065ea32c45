package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/config"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/evidence"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	appHTTP "github.com/cmlabs-hris/attendance-engine/internal/handler/http"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/cron"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/events"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/faceapi"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/hikcloud"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/storage"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/supervisor"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/postgresql"
	attendanceService "github.com/cmlabs-hris/attendance-engine/internal/service/attendance"
	dayService "github.com/cmlabs-hris/attendance-engine/internal/service/day"
	evidenceService "github.com/cmlabs-hris/attendance-engine/internal/service/evidence"
	geofenceService "github.com/cmlabs-hris/attendance-engine/internal/service/geofence"
	"github.com/cmlabs-hris/attendance-engine/internal/service/hiksync"
	shiftService "github.com/cmlabs-hris/attendance-engine/internal/service/shift"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.App.LogLevel),
	})).With(
		slog.String("app", "attendance-engine"),
		slog.String("version", cfg.App.Version),
		slog.String("env", cfg.App.Env),
	)
	slog.SetDefault(logger)

	db, err := database.NewPostgreSQLDB(cfg.DatabaseURL(), database.PoolOptions{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		fmt.Println("Error connecting to database:", err)
		return
	}
	defer db.Close()

	fallback, err := shift.ParseWeekdays(cfg.Attendance.WorkingDaysFallback)
	if err != nil {
		log.Fatal("Invalid WORKING_DAYS_FALLBACK: ", err)
	}

	fileStorage, err := storage.NewLocalStorage(cfg.Storage.BasePath)
	if err != nil {
		log.Fatal("Failed to initialize local storage: ", err)
	}

	txManager := postgresql.NewTxManager(db)
	companyRepo := postgresql.NewCompanyRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	deviceRepo := postgresql.NewDeviceRepository(db)
	recordRepo := postgresql.NewAttendanceRepository(db)
	rawEventRepo := postgresql.NewRawEventRepository(db)
	dayRepo := postgresql.NewAttendanceDayRepository(db)
	leaveRepo := postgresql.NewLeaveRepository(db)
	shiftRepo := postgresql.NewShiftRepository(db)
	fenceRepo := postgresql.NewGeofenceRepository(db)
	settingsRepo := postgresql.NewGeofenceSettingsRepository(db)
	evidenceRepo := postgresql.NewEvidenceRepository(db)
	templateRepo := postgresql.NewBiometricTemplateRepository(db)

	var matcher evidence.Matcher = faceapi.HashMatcher{}
	if cfg.FaceAPI.URL != "" {
		matcher = faceapi.NewClient(cfg.FaceAPI.URL, cfg.FaceAPI.Threshold, cfg.FaceAPI.Timeout)
	} else {
		slog.Warn("FACE_API_URL not set, biometric matching falls back to exact hash comparison")
	}

	bus := events.NewBus(logger)
	defer bus.Close()
	hub := sse.NewHub()

	shiftSvc := shiftService.NewShiftService(shiftRepo, dayRepo, txManager, fallback)
	geofenceSvc := geofenceService.NewGeofenceService(fenceRepo, settingsRepo, companyRepo)
	evidenceSvc := evidenceService.NewEvidenceService(
		evidenceRepo,
		templateRepo,
		recordRepo,
		employeeRepo,
		matcher,
		fileStorage,
		txManager,
		cfg.Attendance.EvidenceListLimit,
	)
	ingestor := attendanceService.NewIngestor(
		recordRepo,
		rawEventRepo,
		dayRepo,
		deviceRepo,
		employeeRepo,
		companyRepo,
		txManager,
		attendanceService.Collaborators{
			Geofences:   geofenceSvc,
			Shifts:      shiftSvc,
			Evidence:    evidenceSvc,
			Notifier:    bus,
			Broadcaster: sse.NewOpenShiftBroadcaster(hub),
		},
		attendanceService.Config{
			DeviceGeofenceExempt: cfg.Attendance.DeviceGeofenceExempt,
			Timeout:              cfg.Attendance.IngestTimeout,
		},
	)
	tracker := attendanceService.NewTracker(recordRepo)
	aggregator := dayService.NewAggregator(
		dayRepo,
		recordRepo,
		leaveRepo,
		shiftSvc,
		employeeRepo,
		companyRepo,
		txManager,
		dayService.Config{
			Workers:      cfg.Attendance.ProcessWorkers,
			MaxRangeDays: cfg.Attendance.ProcessMaxRangeDays,
		},
	)

	var cloudSync cron.CloudSyncer
	if cfg.HikCloud.Enabled() {
		client := hikcloud.NewClient(hikcloud.Config{
			BaseURL:        cfg.HikCloud.BaseURL,
			AppKey:         cfg.HikCloud.AppKey,
			SecretKey:      cfg.HikCloud.SecretKey,
			PageSize:       cfg.HikCloud.PageSize,
			RequestsPerSec: cfg.HikCloud.RequestsPerS,
		})
		cloudSync = hiksync.NewSyncer(client, deviceRepo, employeeRepo, recordRepo, rawEventRepo, ingestor, cfg.HikCloud.Lookback)
	}

	scheduler := cron.NewScheduler()
	cron.NewAttendanceJobs(aggregator, companyRepo, recordRepo, cloudSync, cron.JobsConfig{
		ProcessHour:         cfg.Cron.ProcessHour,
		StaleOpenShiftAfter: cfg.Attendance.StaleOpenShiftAfter,
		CloudSyncInterval:   cfg.HikCloud.SyncInterval,
	}).RegisterJobs(scheduler)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret)
	router := appHTTP.NewRouter(cfg, JWTService.JWTAuth(), appHTTP.Handlers{
		Attendance: appHTTP.NewAttendanceHandler(ingestor, tracker, hub),
		Day:        appHTTP.NewDayHandler(aggregator),
		Evidence:   appHTTP.NewEvidenceHandler(evidenceSvc),
		Shift:      appHTTP.NewShiftHandler(shiftSvc),
		Geofence:   appHTTP.NewGeofenceHandler(geofenceSvc),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree(logger, supervisor.DefaultTreeConfig())
	tree.AddAPI(supervisor.NewHTTPService(server, 10*time.Second))
	tree.AddWorker(scheduler)
	tree.AddWorker(events.NewDayDirtyConsumer(bus, aggregator.HandleDayDirty))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Server running", "addr", server.Addr)
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Supervisor stopped", "error", err)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
