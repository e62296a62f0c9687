// Package server is the long-running HTTP mode. It wraps the same
// measurement engine the CLI uses and exposes it over REST plus a
// websocket live feed.
package server

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	log2 "github.com/rs/zerolog/log"
	"github.com/ziflex/lecho/v3"

	"github.com/saveenergy/netstrain/internal/config"
	"github.com/saveenergy/netstrain/internal/logging"
	"github.com/saveenergy/netstrain/internal/report"
	"github.com/saveenergy/netstrain/internal/run"
	"github.com/saveenergy/netstrain/pkg/types"
)

const storedRuns = 32

// RunFunc executes one measurement. Swappable so tests never spawn real
// subprocesses.
type RunFunc func(ctx context.Context, settings types.Settings, reporter report.Reporter, observer run.Observer) ([]types.PhaseReport, error)

// Server owns the HTTP surface. GET /report runs a measurement on
// demand, one at a time; concurrent requests get 409.
type Server struct {
	base    types.Settings
	version string

	echo    *echo.Echo
	hub     *Hub
	store   *runStore
	runFunc RunFunc
	busy    atomic.Bool
	log     zerolog.Logger
}

func New(base types.Settings, version string) *Server {
	s := &Server{
		base:    base,
		version: version,
		hub:     NewHub(),
		store:   newRunStore(storedRuns),
		log:     logging.Component("server"),
	}
	s.runFunc = func(ctx context.Context, settings types.Settings, reporter report.Reporter, observer run.Observer) ([]types.PhaseReport, error) {
		return run.New(settings, reporter, observer).Run(ctx)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger = lecho.From(log2.Logger)
	e.Use(middleware.Recover())

	e.GET("/healthz", s.handleHealth)
	e.GET("/report", s.handleReport)
	e.GET("/metrics", s.handleMetrics)
	e.GET("/runs", s.handleRuns)
	e.GET("/runs/:id", s.handleRun)
	e.GET("/live", s.handleLive)

	s.echo = e
	return s
}

// Start serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.log.Info().Str("addr", addr).Msg("http server starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Close()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "http shutdown")
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server")
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

// handleReport runs a measurement with the request's context, so a
// client that disconnects mid-run tears down the subprocesses.
func (s *Server) handleReport(c echo.Context) error {
	settings, err := s.settingsFromQuery(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if !s.busy.CompareAndSwap(false, true) {
		return echo.NewHTTPError(http.StatusConflict, types.ErrBusy().Error())
	}
	defer s.busy.Store(false)

	var buf bytes.Buffer
	reporter, err := report.New(settings.Format, &buf)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	reports, err := s.runFunc(c.Request().Context(), settings, reporter, s.hub.Broadcast)
	if err != nil {
		if types.IsContextError(err) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "measurement cancelled")
		}
		s.log.Error().Err(err).Msg("measurement failed")
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	if len(reports) > 0 {
		s.store.add(reports[0].RunID, reports)
	}
	return c.Blob(http.StatusOK, contentType(settings.Format), buf.Bytes())
}

// handleMetrics renders the latest completed run in prometheus
// exposition format. Scrapes never trigger a measurement.
func (s *Server) handleMetrics(c echo.Context) error {
	latest, ok := s.store.latest()
	if !ok {
		return c.String(http.StatusOK, "# no completed measurement\n")
	}

	var buf bytes.Buffer
	reporter, err := report.New(report.FormatPrometheus, &buf)
	if err != nil {
		return err
	}
	for _, rep := range latest.Reports {
		if err := reporter.Render(rep); err != nil {
			return err
		}
	}
	return c.Blob(http.StatusOK, contentType(report.FormatPrometheus), buf.Bytes())
}

func (s *Server) handleRuns(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.list())
}

func (s *Server) handleRun(c echo.Context) error {
	stored, ok := s.store.get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no such run")
	}
	return c.JSON(http.StatusOK, stored)
}

func (s *Server) handleLive(c echo.Context) error {
	return s.hub.Handle(c.Response(), c.Request())
}

// settingsFromQuery clones the server's base settings and applies the
// request's overrides.
func (s *Server) settingsFromQuery(c echo.Context) (types.Settings, error) {
	settings := s.base

	if hosts := c.QueryParam("hosts"); hosts != "" {
		settings.Hosts = config.SplitList(hosts)
	}
	if ping := c.QueryParam("ping"); ping != "" {
		settings.PingHost = ping
	}
	if raw := c.QueryParam("time"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil {
			return types.Settings{}, types.ErrInvalidConfig("time must be an integer", err)
		}
		settings.Duration = time.Duration(secs) * time.Second
	}
	if raw := c.QueryParam("number"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return types.Settings{}, types.ErrInvalidConfig("number must be an integer", err)
		}
		settings.Sessions = n
	}
	if format := c.QueryParam("format"); format != "" {
		settings.Format = format
	}
	if raw := c.QueryParam("phases"); raw != "" {
		phases, err := config.ParsePhases(config.SplitList(raw))
		if err != nil {
			return types.Settings{}, types.ErrInvalidConfig("bad phase selection", err)
		}
		settings.Phases = phases
	}

	if err := config.Validate(settings); err != nil {
		return types.Settings{}, err
	}
	return settings, nil
}

func contentType(format string) string {
	switch format {
	case report.FormatYAML:
		return "application/yaml"
	case report.FormatPrometheus:
		return "text/plain; version=0.0.4; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}
