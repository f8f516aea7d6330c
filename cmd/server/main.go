package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/taskhive/identity/accounts"
	accountrepofakes "github.com/taskhive/identity/accounts/repofakes"
	"github.com/taskhive/identity/audit"
	auditrepofakes "github.com/taskhive/identity/audit/repofakes"
	"github.com/taskhive/identity/auth"
	"github.com/taskhive/identity/internal/config"
	"github.com/taskhive/identity/internal/limiter"
	"github.com/taskhive/identity/internal/obs"
	"github.com/taskhive/identity/postgres"
	"github.com/taskhive/identity/server"
	"github.com/taskhive/identity/tenants"
	tenantrepofakes "github.com/taskhive/identity/tenants/repofakes"
	"github.com/taskhive/identity/token"
	"github.com/taskhive/identity/token/refresh"
	refreshrepofake "github.com/taskhive/identity/token/refresh/repofake"
)

const throttleWindow = time.Minute

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())
	obs.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := wire(ctx, c)
	if err != nil {
		return err
	}

	go janitor(ctx, deps.refreshManager, c)

	srv := &http.Server{
		Addr:    c.GetPort(),
		Handler: obs.Instrument(server.New(c, deps.authService, deps.issuer, deps.resolver)),
	}
	go listenAndServe(srv)
	waitForStopSignal()
	return shutdown(srv)
}

type dependencies struct {
	authService    *auth.Service
	issuer         *token.Issuer
	resolver       *tenants.Resolver
	refreshManager *refresh.Manager
}

func wire(ctx context.Context, c config.Config) (*dependencies, error) {
	var (
		accountRepo accounts.Repo
		refreshRepo refresh.Repo
		tenantRepo  tenants.Repo
		recorder    audit.Recorder
	)

	if dsn := c.GetPostgresDSN(); dsn != "" {
		db, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
		accountRepo = postgres.NewAccountRepo(db)
		refreshRepo = postgres.NewRefreshTokenRepo(db)
		tenantRepo = postgres.NewTenantRepo(db)
		recorder = postgres.NewAuditRecorder(db)
		log.Info().Msg("using postgres store")
	} else {
		accountRepo = accountrepofakes.NewFakeAccountRepo()
		refreshRepo = refreshrepofake.NewFakeRefreshTokenRepo()
		tenantRepo = tenantrepofakes.NewFakeTenantRepo()
		recorder = auditrepofakes.NewFakeRecorder()
		log.Warn().Msg("no POSTGRES_DSN set, using in-memory store")
	}

	signer := token.NewHMACSigner(c.GetSigningSecret())
	issuer := token.NewIssuer(signer,
		token.WithExpiry(c.GetAccessTokenExpiry()),
		token.WithIssuer(c.GetIssuer()),
		token.WithAudience(c.GetAudience()),
	)

	refreshManager := refresh.NewManager(refreshRepo,
		refresh.WithExpiry(c.GetRefreshTokenExpiry()),
		refresh.WithTokenLength(c.GetRefreshTokenLength()),
	)

	lockout := accounts.NewLockoutPolicy(accountRepo, c.GetLockoutThreshold(), c.GetLockoutCooldown())

	var options []auth.ServiceOption
	if c.GetEnableLoginThrottle() {
		options = append(options, auth.WithThrottle(buildThrottle(c)))
	}

	authService, err := auth.NewService(
		auth.Repos{Accounts: accountRepo, Tenants: tenantRepo},
		lockout, issuer, refreshManager, recorder,
		options...,
	)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	return &dependencies{
		authService:    authService,
		issuer:         issuer,
		resolver:       tenants.NewResolver(tenantRepo),
		refreshManager: refreshManager,
	}, nil
}

func buildThrottle(c config.Config) auth.Throttle {
	if addr := c.GetRedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		log.Info().Str("addr", addr).Msg("using redis login throttle")
		return limiter.NewRedisThrottle(client, 10, throttleWindow)
	}
	return limiter.NewLocalThrottle(10)
}

// janitor purges expired and long-revoked refresh rows on a ticker.
func janitor(ctx context.Context, manager *refresh.Manager, c config.Config) {
	ticker := time.NewTicker(c.GetJanitorInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := manager.Purge(ctx, c.GetRevokedRetention())
			if err != nil {
				log.Warn().Err(err).Msg("refresh token purge failed")
				continue
			}
			if purged > 0 {
				log.Info().Int64("purged", purged).Msg("refresh tokens purged")
			}
		}
	}
}

func listenAndServe(srv *http.Server) {
	log.Info().Str("addr", srv.Addr).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
