package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/fleetway/fleetway/internal/config"
	"github.com/fleetway/fleetway/internal/http/handler"
	"github.com/fleetway/fleetway/internal/http/router"
	"github.com/fleetway/fleetway/internal/observability"
	"github.com/fleetway/fleetway/internal/repository"
	"github.com/fleetway/fleetway/internal/security"
	"github.com/fleetway/fleetway/internal/service"
)

// App owns every long-lived object: store, services, HTTP server, telemetry.
// Construction is explicit and ordered; there is no DI container.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *gorm.DB
	Redis         redis.UniversalClient
	Server        *http.Server
	Observability *observability.Runtime

	Sessions    repository.SessionRepository
	Credentials *service.CredentialService
	Groups      *service.GroupService
	TOTP        *service.TOTPService
	Tokens      *service.TokenService
	SessionSvc  *service.SessionService
	Auth        *service.AuthService
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, runtime *observability.Runtime) (*App, error) {
	db, err := repository.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repository.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	var redisClient redis.UniversalClient
	var abuse service.AuthAbuseGuard
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, login abuse guard disabled", "addr", cfg.RedisAddr, "error", err)
		}
		abuse = service.NewRedisAuthAbuseGuard(redisClient, "fleetway", service.DefaultAuthAbusePolicy())
	}

	hasher, err := security.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}
	jwtMgr := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSecret)

	accounts := repository.NewAccountRepository(db)
	groups := repository.NewGroupRepository(db)
	sessions := repository.NewSessionRepository(db)
	usedCodes := repository.NewBackupCodeRepository(db)

	credentialSvc := service.NewCredentialService(accounts, groups, sessions, hasher)
	groupSvc := service.NewGroupService(groups, accounts)
	totpSvc := service.NewTOTPService(accounts, usedCodes, groupSvc, hasher, cfg.TOTPIssuer)
	tokenSvc := service.NewTokenService(jwtMgr, sessions, cfg.TokenPepper, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.MaxSessionFamilies)
	sessionSvc := service.NewSessionService(sessions)
	authSvc := service.NewAuthService(credentialSvc, groupSvc, totpSvc, tokenSvc, abuse)

	cookies := handler.CookiePolicy{
		Secure:     !cfg.IsDevelopment(),
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}
	mux := router.NewRouter(router.Dependencies{
		AuthHandler:      handler.NewAuthHandler(authSvc, credentialSvc, tokenSvc, cookies),
		MFAHandler:       handler.NewMFAHandler(totpSvc),
		SessionHandler:   handler.NewSessionHandler(sessionSvc, tokenSvc),
		GroupHandler:     handler.NewGroupHandler(groupSvc),
		AccountHandler:   handler.NewAccountHandler(credentialSvc, groupSvc, tokenSvc),
		Verifier:         tokenSvc,
		Roles:            groupSvc,
		APIRateLimitRPM:  cfg.APIRateLimitRPM,
		AuthRateLimitRPM: cfg.AuthRateLimitRPM,
		EnableOTelHTTP:   cfg.OTELTracesEnabled,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	app := &App{
		Config:        cfg,
		Logger:        logger,
		DB:            db,
		Redis:         redisClient,
		Server:        server,
		Observability: runtime,
		Sessions:      sessions,
		Credentials:   credentialSvc,
		Groups:        groupSvc,
		TOTP:          totpSvc,
		Tokens:        tokenSvc,
		SessionSvc:    sessionSvc,
		Auth:          authSvc,
	}

	if cfg.IsDevelopment() {
		if err := app.provisionDevAdmin(); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// provisionDevAdmin seeds an elevated account on an empty development store
// so a fresh checkout can log in immediately.
func (a *App) provisionDevAdmin() error {
	accounts := repository.NewAccountRepository(a.DB)
	count, err := accounts.Count()
	if err != nil {
		return fmt.Errorf("count accounts: %w", err)
	}
	if count > 0 {
		return nil
	}
	password := "admin-dev-password"
	if _, err := a.Credentials.CreateAccount("admin", password, true); err != nil {
		return fmt.Errorf("provision dev admin: %w", err)
	}
	a.Logger.Warn("provisioned development admin account", "username", "admin", "password", password)
	return nil
}

// SweepExpiredSessions runs the expiry janitor until the context is canceled.
func (a *App) SweepExpiredSessions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := a.Sessions.CleanupExpired()
			if err != nil {
				a.Logger.Error("session sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				a.Logger.Info("session sweep", "removed", removed)
			}
		}
	}
}

func (a *App) Close(ctx context.Context) error {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Observability != nil {
		return a.Observability.Shutdown(ctx)
	}
	return nil
}
