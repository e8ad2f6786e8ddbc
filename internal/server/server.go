package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/farshadkazemi/clarity/config"
	"github.com/farshadkazemi/clarity/internal/fetch"
	"github.com/farshadkazemi/clarity/internal/llm"
	"github.com/farshadkazemi/clarity/internal/pipeline"
	"github.com/farshadkazemi/clarity/internal/search"
	"github.com/farshadkazemi/clarity/internal/store"
)

// Run wires the pipeline and serves the HTTP API until the listener fails.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
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
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}
	searcher, err := search.NewWebSearcher(search.Provider(cfg.Search.Provider), cfg.Search.APIKey, cfg.Search.Timeout)
	if err != nil {
		return err
	}

	httpc := fetch.NewHTTPClient(cfg.Fetchers.Timeout)
	geo := fetch.NewGeoClient(cfg.Fetchers.GeocodingAPIKey, httpc)
	financial := fetch.NewFinancialClient(cfg.Fetchers.FinancialAPIKey, httpc)
	weather := fetch.NewWeatherClient(geo, httpc)

	var st pipeline.Store
	if cfg.Storage.Postgres.Configured() {
		dsn, err := cfg.Storage.Postgres.DSN()
		if err != nil {
			return err
		}
		pg, err := store.NewPostgres(ctx, dsn)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pg.Close()
		st = pg
	} else {
		baseLogger.Printf("postgres not configured, using in-memory store")
		st = store.NewMemory()
	}

	var cache pipeline.ContextCache
	if cfg.Storage.Redis.Addr != "" {
		rc := store.NewCache(cfg.Storage.Redis)
		if err := rc.Ping(ctx); err != nil {
			baseLogger.Printf("redis unreachable, context cache disabled: %v", err)
		} else {
			defer rc.Close()
			cache = rc
		}
	}

	scorer := pipeline.NewScorer(cfg.Scoring.TrustedDomains)
	pipe := pipeline.New(
		pipeline.NewDecomposer(provider, cfg.LLM.Routing.Decompose, cfg.Search.MaxSubQueries, nil),
		pipeline.NewAggregator(searcher, scorer, cfg.Search.MaxPerCall, cfg.Search.CurrentYearDup, nil),
		pipeline.NewClassifier(provider, cfg.LLM.Routing.Classify, geo, financial, weather, cfg.Fetchers.Timeout, nil),
		pipeline.NewSynthesizer(provider, cfg.LLM.Routing.Synthesize, cfg.Search.MaxResults, nil),
		st,
		cache,
		nil,
	)

	api := e.Group("/api")
	sh := &SearchHandler{Pipeline: pipe, Logger: log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)}
	sh.Register(api)
	ch := &ChatHandler{Pipeline: pipe}
	ch.Register(api)

	return e.Start(cfg.Server.Address)
}
