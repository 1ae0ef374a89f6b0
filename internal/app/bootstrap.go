package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"auth-roles-api/internal/auth"
	"auth-roles-api/internal/db"
	"auth-roles-api/internal/maintenance"
	"auth-roles-api/internal/observability"
	"auth-roles-api/internal/product"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := loadOrGenerateSecret(logger)
	if err != nil {
		return nil, err
	}

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development")); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))
	database.SetConnMaxIdleTime(envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10))

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	authRepo := auth.NewRepository(database)
	tokenService := auth.NewTokenService(jwtSecret, envMinutesOrDefault("TOKEN_TTL_MINUTES", 60), authRepo)
	hasher := auth.NewHasher()
	authService := auth.NewService(authRepo, tokenService, hasher)
	authHandler := auth.NewHandler(authService)

	if err := seedAdmin(context.Background(), authRepo, authService, logger); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	productRepo := product.NewRepository(database)
	productHandler := product.NewHandler(productRepo)

	cleanupHandler := maintenance.NewCleanupHandler(
		authRepo,
		logger,
		os.Getenv("CRON_SECRET"),
		envIntOrDefault("TOKEN_CLEANUP_BATCH_SIZE", 500),
	)

	loginLimiter := auth.NewLoginRateLimiter(
		envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", authHandler.Register)
	mux.Handle("POST /login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /logout", auth.RequireAuth(authService, http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /me", auth.RequireAuth(authService, http.HandlerFunc(authHandler.Me)))
	mux.Handle("GET /products", auth.RequireAuth(authService, http.HandlerFunc(productHandler.List)))
	mux.Handle("POST /products", auth.RequireAdmin(authService, http.HandlerFunc(productHandler.Create)))
	mux.Handle("GET /products/{id}", auth.RequireAdmin(authService, http.HandlerFunc(productHandler.Get)))
	mux.Handle("PATCH /products/{id}", auth.RequireAdmin(authService, http.HandlerFunc(productHandler.Update)))
	mux.Handle("DELETE /products/{id}", auth.RequireAdmin(authService, http.HandlerFunc(productHandler.Delete)))
	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(database))

	handler := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

// loadOrGenerateSecret prefers JWT_SECRET; without it a random secret is
// generated for the life of the process, so tokens do not survive a
// restart.
func loadOrGenerateSecret(logger *observability.Logger) ([]byte, error) {
	if secret := strings.TrimSpace(os.Getenv("JWT_SECRET")); secret != "" {
		return []byte(secret), nil
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate signing secret: %w", err)
	}

	logger.Warn("jwt_secret_generated", map[string]any{
		"detail": "JWT_SECRET is not set; tokens will not survive a restart",
	})

	return []byte(hex.EncodeToString(raw)), nil
}

// seedAdmin registers an admin account from env when the users table is
// empty, so a fresh deployment has a way in.
func seedAdmin(ctx context.Context, repo *auth.Repository, service *auth.Service, logger *observability.Logger) error {
	name := strings.TrimSpace(os.Getenv("ADMIN_NAME"))
	email := strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))
	password := strings.TrimSpace(os.Getenv("ADMIN_PASSWORD"))

	if name == "" && email == "" && password == "" {
		return nil
	}
	if name == "" || email == "" || password == "" {
		return fmt.Errorf("ADMIN_NAME, ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}

	count, err := repo.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	user, err := service.Register(ctx, auth.RegisterInput{
		Name:                 name,
		Role:                 auth.RoleAdmin.String(),
		Email:                email,
		Password:             password,
		PasswordConfirmation: password,
	})
	if err != nil {
		return err
	}

	logger.Info("admin_seeded", map[string]any{"user_id": user.ID})
	return nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
