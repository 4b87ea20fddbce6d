package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/GrishaDaradjanovv/Dani/internal/cache"
	"github.com/GrishaDaradjanovv/Dani/internal/client"
	"github.com/GrishaDaradjanovv/Dani/internal/config"
	"github.com/GrishaDaradjanovv/Dani/internal/domain"
	rethttp "github.com/GrishaDaradjanovv/Dani/internal/http"
	"github.com/GrishaDaradjanovv/Dani/internal/poller"
	"github.com/GrishaDaradjanovv/Dani/internal/service"
	"github.com/GrishaDaradjanovv/Dani/internal/store"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotSignedIn = errors.New("not signed in, run `wellness login` first")
	ErrNotAdmin    = errors.New("this command needs an admin account")
)

// App holds the wired services every command uses.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	API      *client.Client
	Tokens   store.TokenStore
	Sessions *service.SessionService
	Cart     *service.CartService
	Catalog  *service.CatalogService
	Poller   *poller.Poller

	redis *redis.Client
}

func NewApp(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	api, err := client.New(client.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.RequestTimeout,
		Breaker: client.BreakerConfig{
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	app := &App{Config: cfg, Logger: logger, API: api}

	if cfg.RedisEnabled() {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	app.Tokens, err = newTokenStore(cfg, app.redis)
	if err != nil {
		return nil, err
	}

	var catalogCache cache.CatalogCache = cache.NoopCache{}
	if app.redis != nil {
		catalogCache = cache.NewRedisCache(app.redis, cfg.Cache.TTL)
	}

	app.Sessions = service.NewSessionService(api, app.Tokens, logger)
	api.UseCredentials(app.Sessions)
	app.Cart = service.NewCartService(api, service.CartConfig{OriginURL: cfg.OriginURL}, logger)
	app.Catalog = service.NewCatalogService(api, catalogCache, cfg.OriginURL, logger)
	app.Poller = poller.New(poller.Config{
		Interval:    cfg.Poll.Interval,
		MaxAttempts: cfg.Poll.MaxAttempts,
		Logger:      logger,
	})
	return app, nil
}

func newTokenStore(cfg config.Config, rdb *redis.Client) (store.TokenStore, error) {
	switch cfg.TokenStore {
	case config.TokenStoreMemory:
		return store.NewMemoryStore(), nil
	case config.TokenStoreRedis:
		if rdb == nil {
			return nil, config.ErrRedisNotConfigured
		}
		return store.NewRedisStore(rdb, cfg.TokenTTL), nil
	default:
		path := cfg.TokenFile
		if path == "" {
			var err error
			if path, err = store.DefaultFilePath(); err != nil {
				return nil, fmt.Errorf("locate token file: %w", err)
			}
		}
		return store.NewFileStore(path), nil
	}
}

func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

func (a *App) requireUser(ctx context.Context) (*domain.UserProfile, error) {
	sess := a.Sessions.CheckAuth(ctx)
	if !sess.Authenticated() {
		return nil, ErrNotSignedIn
	}
	return sess.User, nil
}

func (a *App) requireAdmin(ctx context.Context) error {
	user, err := a.requireUser(ctx)
	if err != nil {
		return err
	}
	if !user.IsAdmin {
		return ErrNotAdmin
	}
	return nil
}

// browserLoginURL is where the user signs in with the identity provider.
// The provider sends the browser back to the return server's dashboard with
// the session id in the fragment.
func (a *App) browserLoginURL() string {
	redirect := a.Config.OriginURL + service.DashboardPath
	return a.Config.AuthURL + "?redirect=" + url.QueryEscape(redirect)
}

func (a *App) returnHandler() *rethttp.ReturnHandler {
	return rethttp.NewReturnHandler(
		a.Sessions,
		a.Poller,
		poller.CheckoutStatusSource{API: a.API},
		poller.CartOrderSource{API: a.API},
		returnTimeout(a.Config),
		a.Logger,
	)
}

// awaitReturn runs the return server until an event matching match arrives
// or ctx ends. It returns only after the server has stopped.
func (a *App) awaitReturn(ctx context.Context, match func(rethttp.ReturnEvent) bool) (rethttp.ReturnEvent, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h := a.returnHandler()
	srv := rethttp.NewServer(rethttp.ServerConfig{
		Addr:         a.Config.ReturnAddr,
		WriteTimeout: returnTimeout(a.Config),
	}, rethttp.NewRouter(h), a.Logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndRun(ctx) }()

	for {
		select {
		case ev := <-h.Events():
			if !match(ev) {
				continue
			}
			// Shutdown drains the request that published ev, so the browser
			// still gets its answer.
			cancel()
			if err := <-errCh; err != nil {
				a.Logger.Warn("return server did not stop cleanly", "error", err)
			}
			return ev, nil
		case err := <-errCh:
			if err == nil {
				err = ctx.Err()
			}
			return rethttp.ReturnEvent{}, fmt.Errorf("return server: %w", err)
		case <-ctx.Done():
			<-errCh
			return rethttp.ReturnEvent{}, ctx.Err()
		}
	}
}

// returnTimeout bounds one return-server request; it covers a full payment
// poll with every attempt taking the whole request timeout.
func returnTimeout(cfg config.Config) time.Duration {
	return time.Duration(cfg.Poll.MaxAttempts)*(cfg.Poll.Interval+cfg.RequestTimeout) + 10*time.Second
}
