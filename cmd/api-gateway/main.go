package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/noah-isme/uni-enrollment-api/api/swagger"
	"github.com/noah-isme/uni-enrollment-api/internal/handler"
	"github.com/noah-isme/uni-enrollment-api/internal/models"
	"github.com/noah-isme/uni-enrollment-api/internal/repository"
	"github.com/noah-isme/uni-enrollment-api/internal/repository/memory"
	"github.com/noah-isme/uni-enrollment-api/internal/router"
	"github.com/noah-isme/uni-enrollment-api/internal/service"
	"github.com/noah-isme/uni-enrollment-api/internal/validation"
	"github.com/noah-isme/uni-enrollment-api/pkg/cache"
	"github.com/noah-isme/uni-enrollment-api/pkg/config"
	"github.com/noah-isme/uni-enrollment-api/pkg/database"
	"github.com/noah-isme/uni-enrollment-api/pkg/logger"
)

// @title University Enrollment API
// @version 1.0.0
// @description Course catalog with prerequisite graph and enrollment admission
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type userStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
}

type backend struct {
	store  repository.Store
	users  userStore
	pinger handler.Pinger
	close  func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer be.close()

	metrics := service.NewMetricsService()
	validate := validation.New()

	var cacheRepo service.CacheRepository
	if cfg.Catalog.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("catalog cache disabled", zap.Error(err))
		} else {
			defer client.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(client, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Catalog.CacheTTL, logr, cacheRepo != nil)

	authSvc := service.NewAuthService(be.users, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})
	catalogSvc := service.NewCatalogService(be.store, cacheSvc, metrics, validate, logr, cfg.Catalog.CacheTTL)
	enrollmentSvc := service.NewEnrollmentService(be.store, nil, metrics, validate, logr, service.EnrollmentConfig{
		PeriodLimit: cfg.Enrollment.PeriodLimit,
	})
	exportSvc := service.NewExportService(be.store, logr, nil, nil)

	engine := router.New(cfg, logr, authSvc, metrics, router.Handlers{
		Auth:        handler.NewAuthHandler(authSvc),
		Courses:     handler.NewCourseHandler(catalogSvc, exportSvc),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		Metrics:     handler.NewMetricsHandler(metrics, be.pinger),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openBackend(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*backend, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		store := memory.NewStore()
		users := memory.NewUserRepository()
		if cfg.Bootstrap.AdminPassword == "" {
			logr.Warn("in-memory store has no accounts; set BOOTSTRAP_ADMIN_PASSWORD to log in")
		} else if err := seedDemo(store, users, cfg.Bootstrap); err != nil {
			return nil, err
		}
		return &backend{store: store, users: users, close: func() {}}, nil
	default:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return &backend{
			store:  repository.NewSQLStore(db),
			users:  repository.NewUserRepository(db),
			pinger: db,
			close:  func() { _ = db.Close() },
		}, nil
	}
}

// seedDemo registers an administrator plus one teacher and one student account sharing the bootstrap password.
func seedDemo(store *memory.Store, users *memory.UserRepository, boot config.BootstrapConfig) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(boot.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}
	now := time.Now().UTC()
	teacherID, studentID := uuid.NewString(), uuid.NewString()

	store.AddTeacher(models.Teacher{ID: teacherID, Email: "teacher@campus.local", FullName: "Demo Teacher", Active: true, CreatedAt: now, UpdatedAt: now})
	store.AddStudent(models.Student{ID: studentID, NIM: "0000000001", FullName: "Demo Student", Email: "student@campus.local", Active: true, CreatedAt: now, UpdatedAt: now})

	accounts := []struct {
		email, name string
		role        models.UserRole
		subject     *string
	}{
		{boot.AdminEmail, "Administrator", models.RoleAdmin, nil},
		{"teacher@campus.local", "Demo Teacher", models.RoleTeacher, &teacherID},
		{"student@campus.local", "Demo Student", models.RoleStudent, &studentID},
	}
	for _, a := range accounts {
		users.Add(models.User{
			ID:           uuid.NewString(),
			Email:        a.email,
			PasswordHash: string(hash),
			FullName:     a.name,
			Role:         a.role,
			SubjectID:    a.subject,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return nil
}
