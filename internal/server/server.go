// Package server wires the configuration, store, identity gateway and the
// services into a gin engine and runs it until SIGINT or SIGTERM.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"kyri56xcaesar/taskhub/internal/authmw"
	"kyri56xcaesar/taskhub/internal/authz"
	"kyri56xcaesar/taskhub/internal/config"
	"kyri56xcaesar/taskhub/internal/logger"
	"kyri56xcaesar/taskhub/internal/mgroup"
	"kyri56xcaesar/taskhub/internal/mtask"
	"kyri56xcaesar/taskhub/internal/muser"
	"kyri56xcaesar/taskhub/internal/store"
)

// Deps are the collaborators the router is built from.
type Deps struct {
	Store     store.Store
	IdP       muser.IdentityProvider
	Signer    *authmw.Signer
	Roles     authz.RoleMap
	Federated muser.FederatedVerifier
}

func setCors(engine *gin.Engine, cfg config.Config) {
	corsconfig := cors.DefaultConfig()
	corsconfig.AllowOrigins = cfg.AllowedOrigins
	corsconfig.AllowMethods = cfg.AllowedMethods
	corsconfig.AllowHeaders = cfg.AllowedHeaders
	engine.Use(cors.New(corsconfig))
}

func setGinMode(mode string) {
	switch strings.ToLower(mode) {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "envgin":
		gin.SetMode(gin.EnvGinMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
}

// NewRouter builds the engine with every route mounted. Everything except
// /healthz, /register and /login requires a token.
func NewRouter(cfg config.Config, d Deps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), logger.Requests(log.Logger))
	setCors(engine, cfg)

	users := muser.NewService(d.Store, d.IdP, d.Signer, muser.Options{
		Roles:      d.Roles,
		BcryptCost: cfg.BcryptCost,
		Federated:  d.Federated,
	})
	userHandler := muser.NewHandler(users)

	root := engine.Group("/")
	{
		root.GET("/healthz", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "alive"})
		})
		userHandler.RegisterPublic(root)
	}

	authed := root.Group("/", authmw.RequireAuth(users))
	{
		mtask.NewHandler(mtask.NewService(d.Store, d.Store)).Register(authed)
		mgroup.NewHandler(mgroup.NewService(d.Store, d.Store, d.Store)).Register(authed)
		userHandler.RegisterAdmin(authed)
	}

	return engine
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		if cfg.AutoMigrate {
			log.Info().Msg("applying migrations...")
			if err := store.Migrate(cfg.PostgresURL(), false); err != nil {
				return nil, err
			}
		}
		return store.OpenPostgres(ctx, cfg.PostgresURL())
	case config.BackendMongo:
		return store.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	case config.BackendMemory:
		log.Warn().Msg("using the in-memory store, records are lost on exit")
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func identity(ctx context.Context, cfg config.Config) (muser.IdentityProvider, *authmw.Federated, error) {
	if !cfg.KCEnabled {
		return authmw.LocalProvider{}, nil, nil
	}

	base := cfg.KeycloakURL()
	kc := authmw.NewKeycloak(base, cfg.Realm, cfg.ClientID, cfg.ClientSecret)
	if err := kc.SelfTest(ctx); err != nil {
		return nil, nil, err
	}
	log.Info().Str("realm", cfg.Realm).Msg("keycloak reachable")

	if !cfg.KCFederated {
		return kc, nil, nil
	}
	fed, err := authmw.NewFederated(kc.JWKSURL(base), kc.Issuer(base), cfg.Audience)
	if err != nil {
		return nil, nil, fmt.Errorf("federated verifier: %w", err)
	}
	return kc, fed, nil
}

// InitAndServe loads the configuration at confPath and serves until the
// process is signalled.
func InitAndServe(confPath string) error {
	cfg := config.Load(confPath)
	logger.Init(cfg.LogFormat, cfg.Verbose)
	cfg.Report()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	setGinMode(cfg.ApiGinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	keys, err := cfg.SigningKeys()
	if err != nil {
		return err
	}
	signer, err := authmw.NewSigner(cfg.JWTKeyID, keys, time.Duration(cfg.JWTTTLMinutes)*time.Minute)
	if err != nil {
		return err
	}
	roles, err := cfg.LoadRoles()
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}

	idp, fed, err := identity(ctx, cfg)
	if err != nil {
		_ = st.Close(context.Background())
		return err
	}

	deps := Deps{Store: st, IdP: idp, Signer: signer, Roles: roles}
	if fed != nil {
		deps.Federated = fed
		defer fed.Close()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Ip, cfg.Port),
		Handler:           NewRouter(cfg, deps),
		ReadHeaderTimeout: time.Second * 5,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("store", cfg.StoreBackend).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()

	stop()
	log.Info().Msg("shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// close the store after in-flight requests are done
	if err := st.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("closing store")
	}

	log.Info().Msg("server exiting")
	return nil
}
