package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/examprep/internal/auth"
	"github.com/pavelanni/examprep/internal/bank"
	"github.com/pavelanni/examprep/internal/exam"
	"github.com/pavelanni/examprep/internal/handler"
	appI18n "github.com/pavelanni/examprep/internal/i18n"
	"github.com/pavelanni/examprep/internal/model"
	"github.com/pavelanni/examprep/internal/report"
	"github.com/pavelanni/examprep/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examprep",
		Short: "Exam preparation server for postal customer agents",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), reportCmd(), explainCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `examprep --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func commonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "examprep.db", "SQLite database path")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func fontFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("font-path", "", "TrueType font with Arabic coverage for reports")
	f.String("font-url", "", "URL to fetch the report font from when no path is given")
	f.Duration("font-timeout", 10*time.Second, "Timeout for fetching the report font")
	f.Bool("require-arabic-font", false, "Fail instead of falling back to English reports without the Arabic font")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	commonFlags(cmd)
	fontFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringSliceP("questions", "q", nil, "Question bank files to import on startup (repeatable)")
	f.StringP("lang", "l", "ar", "Default language (ar, en)")
	f.String("jwt-secret", "", "HMAC secret for access tokens (or set EXAMPREP_JWT_SECRET)")
	f.Duration("token-ttl", auth.DefaultTTL, "Access token lifetime")
	f.StringSlice("cors-origins", []string{"http://localhost:3000"}, "Allowed CORS origins (repeatable)")
	f.Duration("exam-duration", exam.DefaultDuration, "Exam duration for exams that do not set one")
	f.Duration("session-retention", exam.DefaultRetention, "How long a completed exam session stays readable")
	f.String("admin-email", "admin@local", "Email of the seeded admin user")
	f.String("admin-password", "", "Initial admin password (or set EXAMPREP_ADMIN_PASSWORD)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
// A .env file in the working directory, if any, is loaded into the
// environment first.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMPREP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examprep")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examprep")
	v.AddConfigPath("/etc/examprep")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func reportConfig(v *viper.Viper) report.Config {
	return report.Config{
		FontPath:          v.GetString("font-path"),
		FontURL:           v.GetString("font-url"),
		FontTimeout:       v.GetDuration("font-timeout"),
		RequireArabicFont: v.GetBool("require-arabic-font"),
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedAdmin(ctx, db, v.GetString("admin-email"), v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	if _, err := bank.ImportFiles(ctx, db, v.GetStringSlice("questions")); err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	reports, err := report.New(ctx, reportConfig(v))
	if err != nil {
		return fmt.Errorf("init reports: %w", err)
	}

	secret := v.GetString("jwt-secret")
	if secret == "" {
		secret = randomSecret()
		slog.Warn("no jwt-secret configured, using a random one; tokens will not survive a restart")
	}
	tokens := auth.NewService(secret, v.GetDuration("token-ttl"))

	sessions := exam.NewRegistry(db, model.ExamConfig{
		DefaultDuration: v.GetDuration("exam-duration"),
		Retention:       v.GetDuration("session-retention"),
	})
	defer sessions.CloseAll()
	go sweepSessions(ctx, sessions, time.Minute)

	h := handler.New(db, sessions, tokens, reports)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   v.GetStringSlice("cors-origins"),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"lang", lang,
			"exam_duration", v.GetDuration("exam-duration"),
			"arabic_font", reports.HasArabicFont(),
			"cors_origins", v.GetStringSlice("cors-origins"),
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down", "sessions", sessions.Len())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func sweepSessions(ctx context.Context, sessions *exam.Registry, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sessions.Sweep()
		}
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func seedAdmin(ctx context.Context, db *store.Store, email, password string) error {
	count, err := db.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or EXAMPREP_ADMIN_PASSWORD env var")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(ctx, model.User{
		Email:        email,
		DisplayName:  "Administrator",
		PasswordHash: hash,
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "email", email)
	return nil
}
