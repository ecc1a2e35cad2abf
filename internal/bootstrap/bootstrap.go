package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/swaggo/swag"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	_ "dronewatch-server-go/docs"
	"dronewatch-server-go/internal/app/services"
	domainauth "dronewatch-server-go/internal/domain/auth"
	"dronewatch-server-go/internal/domain/camera"
	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/domain/detection/backend"
	"dronewatch-server-go/internal/domain/diagnostics"
	"dronewatch-server-go/internal/domain/eventbus"
	"dronewatch-server-go/internal/domain/events"
	domainimage "dronewatch-server-go/internal/domain/image"
	platformconfig "dronewatch-server-go/internal/platform/config"
	platformerrors "dronewatch-server-go/internal/platform/errors"
	platformlogging "dronewatch-server-go/internal/platform/logging"
	platformobservability "dronewatch-server-go/internal/platform/observability"
	platformstorage "dronewatch-server-go/internal/platform/storage"
	httptransport "dronewatch-server-go/internal/transport/http"
	httpvision "dronewatch-server-go/internal/transport/http/vision"
	httpwebapi "dronewatch-server-go/internal/transport/http/webapi"
	mqtttransport "dronewatch-server-go/internal/transport/mqtt"
	wstransport "dronewatch-server-go/internal/transport/ws"
)

const (
	shutdownTimeout     = 15 * time.Second
	httpShutdownTimeout = 10 * time.Second
)

const scalarHTML = `<!DOCTYPE html>
<html lang="en">
	<head>
		<meta charset="utf-8" />
		<title>Dronewatch API Reference</title>
		<meta name="viewport" content="width=device-width, initial-scale=1" />
	</head>
	<body>
		<script
			id="api-reference"
			data-url="/openapi.json"
			data-layout="modern"
			src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"
		></script>
	</body>
</html>`

// Options tunes Run.
type Options struct {
	// ConfigPath pins the config file; empty searches the default locations.
	ConfigPath string
	// Loader overrides the config loader (tests).
	Loader *platformconfig.Loader
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	options               Options
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	metrics               *platformobservability.Metrics
	bus                   *eventbus.Bus
	debugLog              *diagnostics.Log
	db                    *gorm.DB
	store                 events.Store
	pipeline              *domainimage.Pipeline
	backend               detection.Backend
	client                *detection.Client
	explainer             *detection.Explainer
	camera                camera.Camera
	monitor               *services.MonitorService
	tokens                *domainauth.AuthToken
	alerts                *mqtttransport.Publisher
	push                  *wstransport.Server
}

// Run 启动整个服务生命周期，负责加载配置、初始化依赖和优雅关停。
func Run(ctx context.Context, opts Options) error {
	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := &appState{options: opts}
	steps := InitGraph()
	if err := executeInitSteps(rootCtx, steps, state); err != nil {
		state.release(context.Background())
		return err
	}
	logger := state.logger
	logBootstrapGraph(steps, logger)

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if err := startServices(state, group, groupCtx); err != nil {
		cancel()
		_ = group.Wait()
		state.release(context.Background())
		return err
	}

	err := waitForShutdown(signalCtx, groupCtx, cancel, logger, group)

	releaseCtx, releaseCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer releaseCancel()
	state.release(releaseCtx)
	return err
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("BOOT", "init graph:")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag("BOOT", "  %s (%s)", step.ID, step.Title)
			continue
		}
		logger.InfoTag("BOOT", "  %s (%s) <- %s", step.ID, step.Title, strings.Join(step.DependsOn, ", "))
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph lists the init steps in execution order.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "eventbus:init",
			Title:     "Start event bus",
			DependsOn: []string{"logging:init-provider"},
			Execute:   initEventBusStep,
		},
		{
			ID:        "storage:init-events",
			Title:     "Open event store",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindStorage,
			Execute:   initEventStoreStep,
		},
		{
			ID:        "detection:init-client",
			Title:     "Initialise detection client",
			DependsOn: []string{"observability:setup-hooks", "eventbus:init"},
			Kind:      platformerrors.KindConfig,
			Execute:   initDetectionStep,
		},
		{
			ID:        "camera:init",
			Title:     "Initialise camera driver",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindConfig,
			Execute:   initCameraStep,
		},
		{
			ID:        "monitor:init",
			Title:     "Initialise monitor service",
			DependsOn: []string{"storage:init-events", "detection:init-client", "camera:init"},
			Execute:   initMonitorStep,
		},
		{
			ID:        "auth:init",
			Title:     "Initialise control API auth",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindConfig,
			Execute:   initAuthStep,
		},
		{
			ID:        "alerts:init-mqtt",
			Title:     "Connect MQTT alert publisher",
			DependsOn: []string{"eventbus:init"},
			Kind:      platformerrors.KindTransport,
			Execute:   initMQTTStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	loader := state.options.Loader
	if loader == nil {
		loader = platformconfig.NewLoader()
	}
	if state.options.ConfigPath != "" {
		loader = loader.WithPath(state.options.ConfigPath)
	}
	res, err := loader.Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "config:load", "failed to load config", err)
	}
	state.config = res.Config
	state.configPath = res.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}
	state.logger = logger
	logger.InfoTag("BOOT", "logging ready [%s] %s", state.config.Log.Level, state.configPath)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	cfg := platformobservability.Config{
		Enabled: strings.EqualFold(state.config.Log.Level, "debug"),
	}
	shutdown, err := platformobservability.Setup(ctx, cfg, state.logger.Slog())
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	state.metrics = platformobservability.NewMetrics()
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	state.bus = eventbus.New(eventbus.Options{Logger: state.logger})
	state.debugLog = diagnostics.NewLog(state.config.Debug.Capacity, state.bus, eventbus.TopicDebug)
	return nil
}

func initEventStoreStep(_ context.Context, state *appState) error {
	cfg := events.FromConfig(state.config.Events)
	deps := events.Dependencies{}
	if strings.EqualFold(cfg.Driver, events.DriverSQLite) {
		dsn := state.config.Events.SQLite.DSN
		if dsn == "" {
			dsn = platformstorage.MemoryDSN()
		}
		db, err := platformstorage.Open(dsn)
		if err != nil {
			return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-events", "failed to open sqlite", err)
		}
		state.db = db
		deps.SQLiteDB = db
	}

	store, err := events.New(cfg, deps)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-events", "failed to create event store", err)
	}
	state.store = store
	state.logger.InfoTag("BOOT", "event store ready: driver=%s capacity=%d", state.config.Events.Driver, state.config.Events.Capacity)
	return nil
}

func initDetectionStep(_ context.Context, state *appState) error {
	cfg := state.config.Backend
	be, err := backend.New(cfg, state.logger)
	if err != nil {
		return err
	}
	client, err := detection.NewClient(detection.Options{
		Backend:     be,
		Timeout:     cfg.Timeout,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Debug:       state.debugLog,
		Logger:      state.logger,
		Metrics:     state.metrics,
	})
	if err != nil {
		return err
	}
	state.backend = be
	state.client = client
	state.explainer = detection.NewExplainer(client)
	state.logger.InfoTag("BOOT", "detection backend ready: %s model=%s", be.Name(), cfg.ModelName)
	return nil
}

func initCameraStep(_ context.Context, state *appState) error {
	cam, err := camera.New(state.config.Camera, state.logger)
	if err != nil {
		return err
	}
	pipeline, err := domainimage.NewPipeline(domainimage.Options{
		Security: &state.config.Camera.Security,
		Logger:   state.logger,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "camera:init", "failed to build image pipeline", err)
	}
	state.camera = cam
	state.pipeline = pipeline
	return nil
}

func initMonitorStep(ctx context.Context, state *appState) error {
	monitor, err := services.NewMonitorService(services.MonitorOptions{
		Context:     ctx,
		Camera:      state.camera,
		Classifier:  state.client,
		Store:       state.store,
		Bus:         state.bus,
		Sensitivity: state.config.Sampler.Sensitivity,
		Logger:      state.logger,
		Metrics:     state.metrics,
	})
	if err != nil {
		return err
	}
	state.monitor = monitor
	return nil
}

func initAuthStep(_ context.Context, state *appState) error {
	auth := state.config.Server.Auth
	if !auth.Enabled {
		state.logger.WarnTag("BOOT", "control API auth disabled")
		return nil
	}
	tokens, err := domainauth.NewAuthToken(auth.Secret)
	if err != nil {
		return err
	}
	state.tokens = tokens.WithTTL(auth.TTL)
	return nil
}

func initMQTTStep(_ context.Context, state *appState) error {
	cfg := state.config.Alerts.MQTT
	if !cfg.Enabled {
		return nil
	}
	client, err := mqtttransport.Dial(cfg, state.logger)
	if err != nil {
		return err
	}
	publisher, err := mqtttransport.NewPublisher(client, cfg.Topic, cfg.QoS, state.logger)
	if err != nil {
		client.Disconnect(0)
		return err
	}
	if err := publisher.Attach(state.bus); err != nil {
		publisher.Close()
		return err
	}
	state.alerts = publisher
	return nil
}

// release tears down everything init created, in reverse dependency order.
func (s *appState) release(ctx context.Context) {
	logger := s.logger
	if s.monitor != nil {
		if err := s.monitor.Close(ctx); err != nil {
			logger.WarnTag("BOOT", "monitor did not stop cleanly: %v", err)
		}
	}
	if s.push != nil {
		s.push.Stop()
	}
	if s.alerts != nil {
		s.alerts.Close()
	}
	if s.bus != nil {
		s.bus.Stop()
	}
	if s.store != nil {
		if err := s.store.Close(ctx); err != nil {
			logger.WarnTag("BOOT", "event store close failed: %v", err)
		}
	}
	if s.db != nil {
		if err := platformstorage.Close(s.db); err != nil {
			logger.WarnTag("BOOT", "database close failed: %v", err)
		}
	}
	if s.observabilityShutdown != nil {
		if err := s.observabilityShutdown(ctx); err != nil {
			logger.WarnTag("BOOT", "observability shutdown failed: %v", err)
		}
	}
	if logger != nil {
		logger.InfoTag("BOOT", "resources released")
		_ = logger.Close()
	}
}

func waitForShutdown(
	ctx context.Context,
	groupCtx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	select {
	case <-ctx.Done():
		logger.InfoTag("BOOT", "shutdown requested: %v", context.Cause(ctx))
	case <-groupCtx.Done():
		logger.WarnTag("BOOT", "service exited: %v", context.Cause(groupCtx))
	}

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("BOOT", "service stopped with error: %v", err)
			return err
		}
		logger.InfoTag("BOOT", "all services stopped")
	case <-time.After(shutdownTimeout):
		logger.ErrorTag("BOOT", "shutdown timed out")
		return platformerrors.New(platformerrors.KindBootstrap, "shutdown", "shutdown timed out")
	}
	return nil
}

func startServices(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	handler, err := buildRouter(groupCtx, state)
	if err != nil {
		return err
	}
	if err := startHTTPServer(state, handler, g, groupCtx); err != nil {
		return err
	}

	if state.config.Sampler.AutoStart {
		if err := state.monitor.Start(groupCtx, state.config.Sampler.Sensitivity); err != nil {
			state.logger.WarnTag("BOOT", "auto start failed: %v", err)
		}
	}
	return nil
}

// buildRouter wires every HTTP and websocket route onto one gin engine.
func buildRouter(ctx context.Context, state *appState) (*gin.Engine, error) {
	config := state.config
	logger := state.logger

	var authMiddleware gin.HandlerFunc
	if state.tokens != nil {
		authMiddleware = httptransport.BearerAuth(state.tokens, logger)
	}
	staticRoot := ""
	if config.Web.Enabled {
		staticRoot = config.Web.StaticDir
	}
	router := httptransport.Build(httptransport.Options{
		Debug:          strings.EqualFold(config.Log.Level, "debug"),
		Logger:         logger,
		Metrics:        state.metrics,
		AuthMiddleware: authMiddleware,
		StaticRoot:     staticRoot,
	})

	webapiService, err := httpwebapi.NewService(httpwebapi.Options{
		Monitor:   state.monitor,
		Store:     state.store,
		Explainer: state.explainer,
		Debug:     state.debugLog,
		Logger:    logger,
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "webapi:new-service", "failed to create webapi service", err)
	}
	visionService, err := httpvision.NewService(state.monitor, state.pipeline, state.backend.Name(), logger)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "vision:new-service", "failed to create vision service", err)
	}
	webapiService.Register(ctx, router.API, router.Secured)
	visionService.Register(ctx, router.API, router.Secured)

	state.push = wstransport.NewServer(ctx, wstransport.ServerConfig{
		Greeter: func(ctx context.Context) (wstransport.Message, bool) {
			return wstransport.Message{Type: wstransport.TypeHello, Data: state.monitor.Status(ctx)}, true
		},
	}, state.bus, logger)
	if err := state.push.Start(); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "ws:start", "failed to subscribe push channel", err)
	}
	router.Engine.GET("/ws", gin.WrapF(state.push.Handler()))

	router.Engine.GET("/metrics", gin.WrapH(state.metrics.Handler()))

	router.Engine.GET("/openapi.json", func(c *gin.Context) {
		doc, err := swag.ReadDoc()
		if err != nil {
			logger.ErrorTag("HTTP", "render OpenAPI document failed: %v", err)
			httptransport.RespondError(c, http.StatusInternalServerError, "failed to generate openapi spec", gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	})

	router.Engine.GET("/docs", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(scalarHTML))
	})

	return router.Engine, nil
}

func startHTTPServer(state *appState, handler http.Handler, g *errgroup.Group, groupCtx context.Context) error {
	config := state.config
	logger := state.logger

	addr := net.JoinHostPort(config.Server.IP, strconv.Itoa(config.Server.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindTransport, "http:listen", "failed to listen on "+addr, err)
	}
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "listening on http://%s", listener.Addr())
		logger.InfoTag("HTTP", "API docs at http://%s/docs", listener.Addr())

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
			defer cancel()

			// hijacked websocket connections are not closed by Shutdown
			state.push.Stop()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "HTTP shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "HTTP server stopped")
			}
		}()

		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "HTTP server failed: %v", err)
			return err
		}
		return nil
	})
	return nil
}

// IssueToken signs a control API token with the configured secret.
func IssueToken(opts Options, subject string) (string, error) {
	state := &appState{options: opts}
	if err := loadConfigStep(context.Background(), state); err != nil {
		return "", err
	}
	if err := initAuthStep(context.Background(), state); err != nil {
		return "", err
	}
	if state.tokens == nil {
		return "", platformerrors.New(platformerrors.KindConfig, "auth:issue-token", "control API auth is disabled")
	}
	return state.tokens.GenerateToken(subject)
}
