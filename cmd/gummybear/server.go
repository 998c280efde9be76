package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/xtoazt/gummybear-sub000/pkg/api"
	"github.com/xtoazt/gummybear-sub000/pkg/audit"
	"github.com/xtoazt/gummybear-sub000/pkg/auth"
	"github.com/xtoazt/gummybear-sub000/pkg/components"
	"github.com/xtoazt/gummybear-sub000/pkg/config"
	"github.com/xtoazt/gummybear-sub000/pkg/deploy"
	"github.com/xtoazt/gummybear-sub000/pkg/directory"
	"github.com/xtoazt/gummybear-sub000/pkg/governance"
	"github.com/xtoazt/gummybear-sub000/pkg/ledger"
	"github.com/xtoazt/gummybear-sub000/pkg/messages"
	"github.com/xtoazt/gummybear-sub000/pkg/observability"
	"github.com/xtoazt/gummybear-sub000/pkg/repo"
	"github.com/xtoazt/gummybear-sub000/pkg/signal"

	_ "github.com/lib/pq" // Postgres Driver
)

//nolint:gocognit,gocyclo
func runServer() {
	fmt.Fprintf(os.Stdout, "%sGummyBear starting...%s\n", ColorBold+ColorBlue, ColorReset)
	ctx := context.Background()

	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		log.Fatalf("Failed to load policy profile: %v", err)
	}

	// Database (Infrastructure)
	var db *sql.DB
	if cfg.DatabaseURL == "" {
		fmt.Fprintf(os.Stdout, "ℹ️  DATABASE_URL not set. Falling back to %sLite Mode%s (SQLite).\n", ColorBold+ColorCyan, ColorReset)
		db, err = setupLiteMode()
		if err != nil {
			log.Fatalf("Failed to setup Lite Mode: %v", err)
		}
	} else {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("DB Ping failed: %v", err)
		}
		log.Println("[gummybear] postgres: connected")
	}

	// Stores
	users := directory.NewSQLStore(db)
	if err := users.Init(ctx); err != nil {
		log.Fatalf("Failed to init user directory: %v", err)
	}
	msgStore := messages.NewSQLStore(db)
	if err := msgStore.Init(ctx); err != nil {
		log.Fatalf("Failed to init message store: %v", err)
	}
	compStore := components.NewSQLStore(db)
	if err := compStore.Init(ctx); err != nil {
		log.Fatalf("Failed to init component store: %v", err)
	}
	changes := ledger.NewSQLStore(db)
	if err := changes.Init(ctx); err != nil {
		log.Fatalf("Failed to init pending change ledger: %v", err)
	}
	log.Println("[gummybear] stores: ready")

	// Code repository integration (optional)
	var repoClient repo.Client
	if cfg.GitHubConfigured() {
		repoClient = repo.NewGitHubClient(repo.GitHubConfig{
			Token: cfg.GitHubToken,
			Owner: cfg.GitHubOwner,
			Repo:  cfg.GitHubRepo,
		})
		log.Printf("[gummybear] github: %s/%s@%s", cfg.GitHubOwner, cfg.GitHubRepo, cfg.GitHubBranch)
	} else {
		fmt.Fprintf(os.Stdout, "ℹ️  GitHub integration not configured; modify_code and deploy are unavailable.\n")
	}

	// Deployment hook
	initialVersion := profile.InitialVersion
	if initialVersion == "" {
		initialVersion = "0.1.0"
	}
	versions, err := deploy.NewVersioned(initialVersion)
	if err != nil {
		log.Fatalf("Failed to init deployer: %v", err)
	}
	var deployer deploy.Deployer = versions
	if cfg.DeployWebhookURL != "" {
		deployer = deploy.NewWebhook(cfg.DeployWebhookURL, versions)
		log.Println("[gummybear] deploy: webhook configured")
	}

	// Audit trail: stdout for operators, memory store for evidence export.
	auditStore := audit.NewMemoryStore()
	auditLog := audit.Tee{audit.NewLogger(), auditStore}
	exporter := audit.NewExporter(auditStore)
	if cfg.AuditBucket != "" {
		uploader, upErr := audit.NewS3Uploader(ctx, audit.S3UploaderConfig{
			Bucket:   cfg.AuditBucket,
			Region:   cfg.AuditRegion,
			Endpoint: cfg.AuditEndpoint,
			Prefix:   "audit-packs/",
		})
		if upErr != nil {
			log.Printf("Audit uploader init (non-fatal, export stays local): %v", upErr)
		} else {
			exporter = exporter.WithUploader(uploader)
			log.Printf("[gummybear] audit: exporting packs to s3://%s", cfg.AuditBucket)
		}
	}

	// Risk advisor
	advisorExpr := profile.AdvisorExpression
	if advisorExpr == "" {
		advisorExpr = governance.DefaultAdvisorExpression
	}
	advisor, err := governance.NewAdvisor(advisorExpr)
	if err != nil {
		log.Fatalf("Failed to compile advisor expression: %v", err)
	}

	// Governance core
	core, err := governance.New(governance.Config{
		Users:           users,
		Messages:        msgStore,
		Components:      compStore,
		Repo:            repoClient,
		Deployer:        deployer,
		Changes:         changes,
		Audit:           auditLog,
		Logger:          logger.With("component", "governance"),
		Advisor:         advisor,
		AIActorID:       profile.AIActorID,
		RepoBranch:      cfg.GitHubBranch,
		ContextChannels: contextChannels(profile),
	})
	if err != nil {
		log.Fatalf("Failed to init governance core: %v", err)
	}
	log.Println("[gummybear] governance: ready")

	// Auth
	secret, err := loadOrGenerateSecret()
	if err != nil {
		log.Fatalf("Failed to init auth: %v", err)
	}
	tokens, err := auth.NewTokenManager(secret, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("Failed to init token manager: %v", err)
	}

	// Presence registry
	presenceTTL := signal.DefaultTTL
	if profile.PresenceTTLSeconds > 0 {
		presenceTTL = time.Duration(profile.PresenceTTLSeconds) * time.Second
	}
	var presence signal.Registry
	if cfg.RedisAddr != "" {
		presence = signal.NewRedisRegistry(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, presenceTTL)
		log.Printf("[gummybear] presence: redis at %s", cfg.RedisAddr)
	} else {
		presence = signal.NewMemoryRegistry(presenceTTL)
	}

	// HTTP layer
	server := api.NewServer(core, users, tokens, auditLog, logger.With("component", "api")).
		WithPresence(presence).
		WithExporter(exporter)
	mux := http.NewServeMux()
	server.Routes(mux)

	var handler http.Handler = mux
	handler = auth.NewMiddleware(tokens)(handler)
	limiter := api.NewGlobalRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	handler = limiter.Middleware(handler)
	handler = auth.CORSMiddleware(nil)(handler)
	handler = auth.RequestIDMiddleware(handler)

	// Observability (optional)
	if cfg.OTLPEnabled {
		obsCfg := observability.DefaultConfig()
		if cfg.OTLPEndpoint != "" {
			obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
		}
		provider, obsErr := observability.New(ctx, obsCfg)
		if obsErr != nil {
			log.Printf("Observability init (non-fatal, continuing without): %v", obsErr)
		} else {
			handler = provider.HTTPMiddleware(handler)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = provider.Shutdown(shutdownCtx)
			}()
		}
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[gummybear] ready: http://localhost:%s", cfg.Port)
		log.Println("[gummybear] press ctrl+c to stop")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("[gummybear] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[gummybear] shutdown error: %v", err)
	}
	_ = db.Close()
}

func contextChannels(profile *config.PolicyProfile) []governance.ChannelSpec {
	if len(profile.ContextChannels) == 0 {
		return nil
	}
	specs := make([]governance.ChannelSpec, 0, len(profile.ContextChannels))
	for _, ch := range profile.ContextChannels {
		specs = append(specs, governance.ChannelSpec{Name: ch.Name, Limit: ch.Limit})
	}
	return specs
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func runDoctorCmd(out, errOut io.Writer) int {
	cfg := config.Load()
	failures := 0

	check := func(ok bool, okMsg, warnMsg string) {
		if ok {
			fmt.Fprintf(out, "  %s✔%s %s\n", ColorGreen, ColorReset, okMsg)
		} else {
			fmt.Fprintf(out, "  %s✘%s %s\n", ColorYellow, ColorReset, warnMsg)
			failures++
		}
	}

	fmt.Fprintf(out, "%sGummyBear doctor%s\n", ColorBold+ColorBlue, ColorReset)
	check(cfg.DatabaseURL != "", "DATABASE_URL set (Postgres)", "DATABASE_URL not set; lite mode (SQLite) will be used")
	check(cfg.JWTSecret != "", "JWT_SECRET set", "JWT_SECRET not set; a dev secret will be generated")
	check(cfg.GitHubConfigured(), "GitHub integration configured", "GitHub integration not configured; modify_code and deploy are unavailable")
	check(cfg.RedisAddr != "", "Redis presence configured", "REDIS_ADDR not set; presence stays in process memory")

	if _, err := config.LoadProfile(cfg.ProfilePath); err != nil {
		fmt.Fprintf(errOut, "  %s✘%s policy profile: %v\n", ColorRed, ColorReset, err)
		return 1
	}
	fmt.Fprintf(out, "  %s✔%s policy profile OK\n", ColorGreen, ColorReset)

	if failures > 0 {
		fmt.Fprintf(out, "%d warning(s); the server will still run.\n", failures)
	}
	return 0
}
