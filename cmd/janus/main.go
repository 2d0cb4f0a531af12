package main

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/janus/internal/audit"
	"github.com/dropDatabas3/janus/internal/cache"
	"github.com/dropDatabas3/janus/internal/config"
	"github.com/dropDatabas3/janus/internal/domain"
	httpserver "github.com/dropDatabas3/janus/internal/http"
	connect "github.com/dropDatabas3/janus/internal/http/controllers/connect"
	mw "github.com/dropDatabas3/janus/internal/http/middlewares"
	"github.com/dropDatabas3/janus/internal/http/router"
	"github.com/dropDatabas3/janus/internal/interaction"
	jwtx "github.com/dropDatabas3/janus/internal/jwt"
	"github.com/dropDatabas3/janus/internal/metrics"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/rate"
	"github.com/dropDatabas3/janus/internal/response"
	"github.com/dropDatabas3/janus/internal/session"
	"github.com/dropDatabas3/janus/internal/storage"
	"github.com/dropDatabas3/janus/internal/storage/grants"
	"github.com/dropDatabas3/janus/internal/validation"
	migrations "github.com/dropDatabas3/janus/migrations/postgres"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "janus",
		Short:         "OAuth2/OIDC provider",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), keysCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Arranca el server de protocolo",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "ruta al config YAML")
	return cmd
}

func runServe(configPath string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "warn: .env no cargado:", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logEnv := "dev"
	if cfg.App.Env == "prod" {
		logEnv = "prod"
	}
	logger.Init(logger.Config{
		Env:         logEnv,
		Level:       os.Getenv("LOG_LEVEL"),
		ServiceName: "janus",
		Version:     version,
	})
	defer logger.Sync()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Grant store según driver.
	store, closeStore, err := buildGrantStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("grant store: %w", err)
	}
	defer closeStore()

	// Cache compartida: decorators del catálogo + sesiones.
	cacheClient, err := buildCache(cfg)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cacheClient.Close()
	cacheOpts := cache.Options{TTL: cfg.Cache.TTL, NegativeTTL: cfg.Cache.NegativeTTL}

	// Catálogo estático del YAML, detrás de los decorators.
	var clientStore domain.ClientStore = cache.NewCachingClientStore(
		domain.NewInMemoryClientStore(cfg.Clients), cacheClient, cacheOpts)
	var resourceStore domain.ResourceStore = cache.NewCachingResourceStore(
		domain.NewInMemoryResourceStore(cfg.IdentityResources, cfg.APIScopes, cfg.APIResources), cacheClient, cacheOpts)
	var corsService domain.CORSOriginService = cache.NewCachingCORSOriginService(
		domain.NewClientCORSOriginService(cfg.Clients), cacheClient, cacheOpts)

	// Claves de firma.
	keystore, err := buildKeystore(cfg)
	if err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	issuer := jwtx.NewIssuer(cfg.Server.Issuer, keystore)

	sessions := session.NewManager(cacheClient, cfg.Session.CookieName, cfg.Session.TTL)

	auditor := audit.NewRecorder(audit.NewZapSink())
	defer auditor.Close()

	// Stores tipados sobre el grant store.
	codes := grants.NewAuthorizationCodeStore(store)
	refresh := grants.NewRefreshTokenStore(store)
	refTokens := grants.NewReferenceTokenStore(store)
	devices := grants.NewDeviceCodeStore(store)
	consents := grants.NewUserConsentStore(store)

	lifetimes := response.Lifetimes{
		AuthorizationCode: cfg.Lifetimes.AuthorizationCode,
		AccessToken:       cfg.Lifetimes.AccessToken,
		IdentityToken:     cfg.Lifetimes.IdentityToken,
		RefreshToken:      cfg.Lifetimes.RefreshToken,
		DeviceCode:        cfg.Lifetimes.DeviceCode,
		Consent:           cfg.Lifetimes.Consent,
	}

	pollLimiter, ipLimiter := buildLimiters(cfg)

	// Validators.
	clientValidator := validation.NewClientValidator(clientStore, auditor)
	clientValidator.Assertions = validation.NewClientAssertions(
		validation.NewJWTBearerAssertion(cfg.Server.Issuer))
	scopeValidator := validation.NewScopeValidator(resourceStore, nil)
	authorizeValidator := validation.NewAuthorizeValidator(clientStore, scopeValidator)
	tokenValidator := &validation.TokenValidator{
		Clients:    clientValidator,
		Scopes:     scopeValidator,
		Codes:      codes,
		Refresh:    refresh,
		Devices:    devices,
		Extensions: validation.NewExtensionGrants(),
		Poll:       pollLimiter,
	}
	deviceValidator := validation.NewDeviceAuthorizationValidator(clientValidator, scopeValidator)
	endSessionValidator := validation.NewEndSessionValidator(clientStore, issuer)
	introspectionValidator := validation.NewIntrospectionValidator(clientValidator, resourceStore)

	// Response generators.
	authorizeResponder := response.NewAuthorizeResponder(codes, issuer, lifetimes)
	tokenResponder := response.NewTokenResponder(issuer, refTokens, refresh, lifetimes, auditor)
	deviceResponder := response.NewDeviceResponder(devices, lifetimes, cfg.Server.VerificationURI, cfg.Device.Interval)

	interact := interaction.NewGenerator(consents)

	controllers := &connect.Controllers{
		Authorize:   connect.NewAuthorizeController(authorizeValidator, interact, authorizeResponder, sessions, cfg.Server.LoginURL, cfg.Server.ConsentURL),
		Token:       connect.NewTokenController(tokenValidator, tokenResponder),
		Device:      connect.NewDeviceAuthorizationController(deviceValidator, deviceResponder),
		EndSession:  connect.NewEndSessionController(endSessionValidator, clientStore, sessions, auditor),
		Introspect:  connect.NewIntrospectController(introspectionValidator, refTokens, refresh),
		Revoke:      connect.NewRevokeController(introspectionValidator, refTokens, refresh, auditor),
		Discovery:   connect.NewDiscoveryController(cfg.Server.Issuer, keystore, resourceStore),
		Interaction: connect.NewInteractionController(sessions, consents, devices, store, auditor, cfg.Lifetimes.Consent),
	}

	deps := router.Deps{
		Controllers: controllers,
		CORS:        mw.WithCORS(corsService),
		Metrics:     metrics.Register(nil),
	}
	if cfg.Rate.Enabled {
		deps.RateLimiter = ipLimiter
	}

	// Barrido periódico de grants vencidos.
	sweeper := storage.NewSweeper(store, cfg.Storage.Sweep.Interval)
	go sweeper.Run(ctx)

	// Los limiters en memoria barren sus ventanas viejas ellos mismos.
	for _, l := range []rate.Limiter{pollLimiter, ipLimiter} {
		if ml, ok := l.(*rate.MemoryLimiter); ok {
			go ml.Sweep(ctx)
		}
	}

	srv := httpserver.NewServer(cfg.Server.Addr, router.New(deps))
	log.Sugar().Infow("server listo",
		"addr", cfg.Server.Addr,
		"issuer", cfg.Server.Issuer,
		"storage", cfg.Storage.Driver,
		"version", version,
	)
	return srv.Start(ctx)
}

// buildGrantStore arma el GrantStore del driver configurado. El closer es
// no-op para memoria.
func buildGrantStore(ctx context.Context, cfg *config.Config) (storage.GrantStore, func(), error) {
	switch cfg.Storage.Driver {
	case "redis":
		host, port, err := splitAddr(cfg.Storage.Redis.Addr)
		if err != nil {
			return nil, nil, err
		}
		s, err := storage.NewRedisGrantStore(storage.RedisConfig{
			Host:   host,
			Port:   port,
			DB:     cfg.Storage.Redis.DB,
			Prefix: cfg.Storage.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return storage.NewPGGrantStore(pool), pool.Close, nil
	default:
		return storage.NewMemoryGrantStore(), func() {}, nil
	}
}

func buildCache(cfg *config.Config) (cache.Client, error) {
	ccfg := cache.Config{Driver: cfg.Cache.Kind, Prefix: cfg.Cache.Redis.Prefix}
	if cfg.Cache.Kind == "redis" {
		host, port, err := splitAddr(cfg.Cache.Redis.Addr)
		if err != nil {
			return nil, err
		}
		ccfg.Host, ccfg.Port, ccfg.DB = host, port, cfg.Cache.Redis.DB
	}
	return cache.New(ccfg)
}

// buildKeystore carga la clave de firma del archivo configurado, o genera una
// efímera si no hay archivo.
func buildKeystore(cfg *config.Config) (*jwtx.Keystore, error) {
	if cfg.Keys.File == "" {
		return jwtx.NewKeystore()
	}
	b, err := os.ReadFile(cfg.Keys.File)
	if err != nil {
		return nil, err
	}
	ks, err := jwtx.DecodeKeySet(b)
	if err != nil {
		return nil, fmt.Errorf("keys file %s: %w", cfg.Keys.File, err)
	}
	return jwtx.NewKeystoreWith(ks), nil
}

// buildLimiters arma el limiter de polling del device flow (1 hit por
// intervalo por device_code) y el limiter por IP. Con storage redis ambos van
// sobre Redis para que el límite sea consistente entre réplicas.
func buildLimiters(cfg *config.Config) (poll, ip rate.Limiter) {
	interval := time.Duration(cfg.Device.Interval) * time.Second
	if cfg.Storage.Driver == "redis" {
		host, port, err := splitAddr(cfg.Storage.Redis.Addr)
		if err == nil {
			client := redis.NewClient(&redis.Options{
				Addr: fmt.Sprintf("%s:%d", host, port),
				DB:   cfg.Storage.Redis.DB,
			})
			prefix := cfg.Storage.Redis.Prefix
			return rate.NewRedisLimiter(client, prefix+":poll:", 1, interval),
				rate.NewRedisLimiter(client, prefix+":ip:", cfg.Rate.MaxRequests, cfg.Rate.Window)
		}
	}
	return rate.NewMemoryLimiter(1, interval),
		rate.NewMemoryLimiter(cfg.Rate.MaxRequests, cfg.Rate.Window)
}

func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q", addr)
	}
	return host, port, nil
}

// migrateCmd aplica el schema de persisted grants embebido. Los archivos se
// ejecutan en orden lexicográfico; son idempotentes (IF NOT EXISTS).
func migrateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica el schema de persisted grants en PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				fmt.Fprintln(os.Stderr, "warn: .env no cargado:", err)
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Storage.DSN == "" {
				return fmt.Errorf("migrate: se requiere storage.dsn")
			}

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := pool.Ping(ctx); err != nil {
				return err
			}

			files, err := fs.Glob(migrations.FS, migrations.Dir+"/*.sql")
			if err != nil {
				return err
			}
			sort.Strings(files)
			for _, f := range files {
				sql, err := fs.ReadFile(migrations.FS, f)
				if err != nil {
					return err
				}
				if _, err := pool.Exec(ctx, string(sql)); err != nil {
					return fmt.Errorf("migrate %s: %w", f, err)
				}
				fmt.Println("aplicado:", f)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "ruta al config YAML")
	return cmd
}

func keysCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manejo de claves de firma",
	}
	gen := &cobra.Command{
		Use:   "generate",
		Short: "Genera una clave Ed25519 nueva y la escribe a disco",
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := jwtx.NewEd25519("key-" + time.Now().UTC().Format("20060102T150405Z"))
			if err != nil {
				return err
			}
			b, err := jwtx.EncodeKeySet(ks)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, b, 0o600); err != nil {
				return err
			}
			fmt.Printf("clave %s escrita en %s\n", ks.KID, out)
			return nil
		},
	}
	gen.Flags().StringVar(&out, "out", "keys.json", "archivo destino")
	cmd.AddCommand(gen)
	return cmd
}
