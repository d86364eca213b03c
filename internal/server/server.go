package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/chrisgscott/ellen/config"
	"github.com/chrisgscott/ellen/internal/chat"
	"github.com/chrisgscott/ellen/internal/docsearch"
	"github.com/chrisgscott/ellen/internal/newsindex"
	"github.com/chrisgscott/ellen/internal/store"
	"github.com/chrisgscott/ellen/provider"
	openai_provider "github.com/chrisgscott/ellen/provider/openai"
	"github.com/chrisgscott/ellen/provider/webhook"
)

func Run(cfg *appconfig.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()
	dsn := cfg.Databases.Postgres.DSN()
	_ = Migrate("file://migrations", dsn, "up", 0)

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Databases.Redis.Host != "" {
		rdb, err = store.Conn(ctx, cfg.Databases.Redis.Host, cfg.Databases.Redis.Port,
			cfg.Databases.Redis.Password, cfg.Databases.Redis.DB, cfg.Databases.Redis.Timeout)
		if err != nil {
			return err
		}
	}
	catalog := store.NewMaterialCache(rdb, st, cfg.Databases.Redis.TTL, baseLogger)

	searchLogger := log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)
	searcher := docsearch.NewSearcher(st, searchLogger, cfg.Search.ChunkLimit, cfg.Search.FallbackDocLimit)

	var backend provider.ChatBackend
	switch cfg.Chat.Backend {
	case "webhook":
		backend = webhook.New(cfg.Chat.WebhookURL, cfg.Chat.Timeout)
	default:
		if cfg.Providers.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY not configured (providers.openai.api_key)")
		}
		backend = openai_provider.New(
			cfg.Providers.OpenAI.APIKey,
			cfg.Providers.OpenAI.BaseURL,
			cfg.Providers.OpenAI.CompletionModel,
			cfg.Providers.OpenAI.Temperature,
			cfg.Providers.OpenAI.MaxTokens,
			cfg.Providers.OpenAI.Timeout,
			searcher, catalog,
			log.New(log.Writer(), "[OPENAI] ", log.LstdFlags),
		)
	}
	chatSvc := chat.NewService(st, backend, nil)

	idx, err := newsindex.New()
	if err != nil {
		return err
	}
	if items, err := st.ListNews(ctx, "", "", "", 200); err != nil {
		baseLogger.Printf("news index warmup skipped: %v", err)
	} else if err := idx.AddAll(items); err != nil {
		baseLogger.Printf("news index warmup: %v", err)
	}

	secret := cfg.General.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (general.jwt_secret)")
	}

	api := e.Group("/api")
	(&AuthHandler{Store: st, Secret: []byte(secret)}).Register(api.Group("/auth"))
	(&ChatHandler{Chat: chatSvc}).Register(api.Group("/chat"), []byte(secret))
	(&NewsHandler{Store: st, Index: idx, RelatedLimit: cfg.Search.RelatedLimit,
		Logger: log.New(log.Writer(), "[NEWS] ", log.LstdFlags)}).Register(api.Group("/news"), []byte(secret))
	(&SearchHandler{Searcher: searcher}).Register(api.Group("/search"), []byte(secret))
	(&MaterialsHandler{Catalog: catalog}).Register(api.Group("/materials"), []byte(secret))
	(&ThreadsHandler{Store: st}).Register(api.Group("/sessions"), api.Group("/threads"), []byte(secret))

	if addr == "" {
		addr = cfg.General.Listen
		if addr != "" && addr[0] != ':' {
			addr = ":" + addr
		}
		if addr == "" {
			addr = ":10002"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
