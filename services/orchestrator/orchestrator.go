// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator provides the core orchestrator service for VarsityAssist.
//
// This package contains the main Orchestrator type that coordinates all
// components of the service: HTTP routing, the turn engine, the LLM client,
// the knowledge base, conversation storage, and observability infrastructure.
//
// # Enterprise Integration
//
// The orchestrator supports dependency injection via extensions.ServiceOptions,
// enabling deployments to provide custom implementations of:
//   - AuthProvider: Campus identity integration (SSO tokens, API keys)
//   - AuthzProvider: Role-based access control
//   - AuditLogger: Compliance audit logging
//
// # Usage
//
// Default (no-op extensions, every caller resolves to the demo student):
//
//	cfg := orchestrator.Config{Port: 12210}
//	svc, err := orchestrator.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Run()
//
// With a campus identity provider:
//
//	opts := &extensions.ServiceOptions{
//	    AuthProvider: campusSSO,
//	    AuditLogger:  complianceAudit,
//	}
//	svc, err := orchestrator.New(cfg, opts)
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/VarsityAI/VarsityAssist/pkg/extensions"
	"github.com/VarsityAI/VarsityAssist/services/llm"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/auth"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/datatypes"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/engine"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/intent"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/observability"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/retrieval"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/routes"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/store"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/synthesis"
	"github.com/VarsityAI/VarsityAssist/services/orchestrator/tools"
	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the orchestrator service.
//
// # Description
//
// Service abstracts the orchestrator lifecycle, enabling testing and
// alternative implementations. The interface follows the minimal surface
// area principle - only essential lifecycle methods are exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
//
// # Limitations
//
//   - No graceful shutdown method yet (planned for future)
//   - Run() blocks until server error
//
// # Assumptions
//
//   - Service is fully initialized before Run() is called
//   - Run() is called at most once per Service instance
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	//
	// # Outputs
	//
	//   - error: Non-nil if server fails to start or encounters fatal error
	//
	// # Assumptions
	//
	//   - Service was successfully created via New()
	//   - Port is available and not in use
	Run() error

	// Router returns the underlying Gin engine for testing.
	//
	// # Outputs
	//
	//   - *gin.Engine: The configured router with all routes registered
	//
	// # Assumptions
	//
	//   - Caller will not modify the router
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds orchestrator configuration options.
//
// # Description
//
// Config centralizes all configuration for the orchestrator service.
// Values can be populated from environment variables, config files,
// or programmatically for testing.
//
// # Required Fields
//
// None - all fields have sensible defaults.
//
// # Examples
//
//	// Minimal config (uses all defaults)
//	cfg := Config{}
//
//	// Full configuration
//	cfg := Config{
//	    Port:          12210,
//	    LLMBackend:    "openai",
//	    WeaviateURL:   "http://localhost:8080",
//	    RecordsURL:    "http://localhost:12260",
//	    OTelEndpoint:  "localhost:4317",
//	    DataDir:       "/var/lib/varsity/conversations",
//	    EnableMetrics: true,
//	}
type Config struct {
	// Port is the HTTP server port. Default: 12210
	Port int

	// LLMBackend specifies the LLM provider.
	// Valid values: "ollama", "openai"
	// Default: "ollama"
	LLMBackend string

	// WeaviateURL is the Weaviate knowledge base URL.
	// Default: "http://localhost:8080"
	WeaviateURL string

	// RecordsURL is the base URL of the student records service that
	// backs the tool catalog.
	// Default: "http://localhost:12260"
	RecordsURL string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "varsity-otel-collector:4317"
	OTelEndpoint string

	// DataDir is the directory for the conversation store.
	// Default: "./data/conversations"
	DataDir string

	// ToolTimeout bounds a single records-service invocation.
	// Default: tools.DefaultTimeout
	ToolTimeout time.Duration

	// EnableMetrics mounts the Prometheus /metrics endpoint and wires
	// turn metrics into the engine.
	EnableMetrics bool

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses GIN_MODE env var or "debug"
	GinMode string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Description
//
// service is the main implementation that coordinates:
//   - HTTP routing via Gin
//   - The turn engine (classification, retrieval, tools, synthesis)
//   - LLM client management
//   - Weaviate knowledge base access
//   - Badger-backed conversation storage
//   - OpenTelemetry tracing and Prometheus metrics
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New() returns.
//
// # Limitations
//
//   - No hot-reload of configuration
//   - Single LLM backend per instance
//
// # Assumptions
//
//   - All external services (LLM, Weaviate, records, OTel) are reachable
//     if configured
type service struct {
	config         Config
	opts           extensions.ServiceOptions
	router         *gin.Engine
	llmClient      llm.LLMClient
	weaviateClient *weaviate.Client
	store          *store.BadgerStore
	engine         *engine.Engine
	tracerCleanup  func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new orchestrator Service with the given configuration.
//
// # Description
//
// New initializes all orchestrator components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics (when enabled)
//  4. Creates the Weaviate client and ensures the knowledge base schema
//  5. Opens the Badger conversation store
//  6. Creates the LLM client based on backend type
//  7. Assembles the turn engine (classifier, searcher, tools, synthesizer)
//  8. Sets up HTTP routes with extension options
//
// If opts is nil, DefaultOptions() is used (no-op implementations). The
// no-op auth provider accepts any credential as the demo student, which
// is the expected mode for local development.
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//   - opts: Extension options for identity integration. May be nil.
//
// # Outputs
//
//   - Service: Ready-to-run orchestrator service
//   - error: Non-nil if initialization fails
//
// # Limitations
//
//   - Weaviate and the conversation store are required; without them no
//     turn can be answered or persisted
//
// # Assumptions
//
//   - Environment variables are set for LLM providers (API keys, URLs)
//   - Network is available for external service connections
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	if opts != nil {
		s.opts = *opts
	} else {
		s.opts = extensions.DefaultOptions()
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	// InitMetrics registers on the default Prometheus registry, so it
	// must run at most once per process.
	if s.config.EnableMetrics && observability.DefaultMetrics == nil {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus turn metrics")
	}

	if err := s.initWeaviate(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize Weaviate: %w", err)
	}

	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize conversation store: %w", err)
	}

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	if err := s.initEngine(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize turn engine: %w", err)
	}

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
// Cleanup is automatic on return.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting orchestrator server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for integration testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12210
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "ollama"
	}
	if cfg.WeaviateURL == "" {
		cfg.WeaviateURL = "http://localhost:8080"
	}
	if cfg.RecordsURL == "" {
		cfg.RecordsURL = "http://localhost:12260"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "varsity-otel-collector:4317"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data/conversations"
	}
	if cfg.ToolTimeout == 0 {
		cfg.ToolTimeout = tools.DefaultTimeout
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Description
//
// Sets up OTLP trace exporter to send spans to the configured collector.
//
// # Outputs
//
//   - func(context.Context): Cleanup function to call on shutdown
//   - error: Non-nil if tracer setup fails
//
// # Limitations
//
//   - Uses insecure gRPC connection (appropriate for internal networks)
//
// # Assumptions
//
//   - OTel collector is reachable at configured endpoint
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("varsity-orchestrator")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initWeaviate initializes the Weaviate knowledge base client.
//
// # Description
//
// Validates the configured URL, creates the client, and ensures the
// Document schema exists. Unlike observability, the knowledge base is
// not optional: every answering path reads from it.
//
// # Outputs
//
//   - error: Non-nil if the URL is invalid or client creation fails
//
// # Assumptions
//
//   - Weaviate server is running and accessible
func (s *service) initWeaviate() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	clientConf := weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	}

	s.weaviateClient, err = weaviate.NewClient(clientConf)
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	datatypes.EnsureWeaviateSchema(s.weaviateClient)
	slog.Info("Weaviate client initialized", "url", weaviateURL)

	return nil
}

// initStore opens the Badger-backed conversation store.
func (s *service) initStore() error {
	st, err := store.Open(store.DefaultConfig(s.config.DataDir))
	if err != nil {
		return err
	}
	s.store = st
	slog.Info("Conversation store opened", "dir", s.config.DataDir)
	return nil
}

// initLLMClient initializes the LLM provider client.
//
// # Description
//
// Creates the appropriate LLM client based on the configured backend type.
//
// # Outputs
//
//   - error: Non-nil if LLM client creation fails
//
// # Limitations
//
//   - Only supports: ollama, openai
//
// # Assumptions
//
//   - Required environment variables are set for the chosen provider
func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "ollama":
		s.llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to ollama", "backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewOllamaClient()
	}

	return err
}

// initEngine assembles the turn engine from its components.
//
// # Description
//
// Wires the keyword intent classifier, the Weaviate searcher, the tool
// catalog with its records-service invoker, and the LLM synthesizer into
// a single engine. Metrics are passed through only when enabled.
//
// # Outputs
//
//   - error: Non-nil if the tool catalog fails to load or a dependency
//     is missing
//
// # Assumptions
//
//   - Weaviate client, store, and LLM client are already initialized
func (s *service) initEngine() error {
	registry, err := tools.Load()
	if err != nil {
		return fmt.Errorf("failed to load tool catalog: %w", err)
	}

	invoker := tools.NewRecordsInvoker(registry, s.config.RecordsURL,
		tools.WithTimeout(s.config.ToolTimeout))

	var metrics *observability.TurnMetrics
	if s.config.EnableMetrics {
		metrics = observability.DefaultMetrics
	}

	eng, err := engine.New(engine.Options{
		Classifier:  intent.NewKeywordClassifier(),
		Searcher:    retrieval.NewWeaviateSearcher(s.weaviateClient),
		Planner:     tools.NewPlanner(),
		Invoker:     invoker,
		Synthesizer: synthesis.NewLLMSynthesizer(s.llmClient, slog.Default()),
		Store:       s.store,
		Metrics:     metrics,
		Audit:       s.opts.AuditLogger,
	})
	if err != nil {
		return err
	}

	s.engine = eng
	slog.Info("Turn engine initialized",
		"tools", len(registry.Names()),
		"records_url", s.config.RecordsURL,
	)
	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
//
// # Description
//
// Creates the Gin engine, applies middleware, and registers all routes.
// ServiceOptions supply the auth provider the resolver runs on and the
// authorization provider the transcript and escalation reads consult.
//
// # Assumptions
//
//   - All dependencies (engine, store, Weaviate) are initialized
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("varsity-orchestrator"))

	routes.SetupRoutes(s.router, routes.Options{
		Engine:        s.engine,
		Store:         s.store,
		Resolver:      auth.NewResolver(s.opts.AuthProvider),
		Weaviate:      s.weaviateClient,
		Authz:         s.opts.AuthzProvider,
		EnableMetrics: s.config.EnableMetrics,
	})
}

// cleanup releases all resources held by the service.
//
// # Description
//
// Called when Run() exits or on initialization failure.
// Closes the conversation store and shuts down the tracer.
func (s *service) cleanup() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Conversation store close error", "error", err)
		}
	}

	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
