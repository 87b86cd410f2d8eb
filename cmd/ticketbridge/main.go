package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mcpGoServer "github.com/mark3labs/mcp-go/server"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ticketbridge/ticketbridge/configs"
	"github.com/ticketbridge/ticketbridge/internal/adapter/inbound/mcphttp"
	"github.com/ticketbridge/ticketbridge/internal/adapter/inbound/mcpserver"
	"github.com/ticketbridge/ticketbridge/internal/adapter/outbound/ticketstore"
	"github.com/ticketbridge/ticketbridge/internal/adapter/outbound/toolregistry"
	"github.com/ticketbridge/ticketbridge/internal/domain"
	"github.com/ticketbridge/ticketbridge/internal/ticket"
	"github.com/ticketbridge/ticketbridge/internal/usecase"
)

func main() {
	// === Command Line Flags ===
	var transport string
	flag.StringVar(&transport, "transport", "sse", "Transport mode: sse or stdio")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === Configuration ===
	cfg, err := configs.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// === Logging ===
	logLevel := cfg.ParsedLogLevel()
	var logger *slog.Logger

	if transport == "stdio" {
		// In STDIO mode, log to file to avoid interfering with stdio communication.
		logFile, err := os.OpenFile("/tmp/ticketbridge.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: logLevel}))
		} else {
			logger = slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: logLevel}))
		}
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	}

	slog.SetDefault(logger)
	logger.Info("Logger initialized.", slog.String("level", logLevel.String()), slog.String("transport", transport))

	// === OpenTelemetry Initialization ===
	shutdownOtel, err := initOtelProvider(cfg)
	if err != nil {
		logger.Error("Failed to initialize OpenTelemetry.", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry TracerProvider.", slog.Any("error", err))
		}
	}()

	// === Ticket Store ===
	db, err := ticketstore.Open(cfg.DatabaseDSN)
	if err != nil {
		logger.Error("Failed to open ticket database.", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	store := ticketstore.New(db, logger)
	if err := store.Migrate(ctx); err != nil {
		logger.Error("Failed to migrate ticket schema.", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Ticket store ready.", slog.String("dsn", cfg.DatabaseDSN))

	// === Ticket Service & Tool Registration ===
	svc := ticket.NewService(store, logger)

	registry := toolregistry.New(logger)
	if err := ticket.RegisterTools(registry, svc); err != nil {
		logger.Error("Failed to register ticket tools.", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Ticket tools registered.", slog.Int("count", len(registry.List())))

	if err := seedTickets(ctx, cfg, svc, logger); err != nil {
		logger.Error("Failed to seed tickets.", slog.Any("error", err))
		os.Exit(1)
	}

	// === Use Cases ===
	executeUC := usecase.NewExecuteToolUseCase(registry, logger)
	describeUC := usecase.NewDescribeToolsUseCase(registry, logger)

	// === MCP Server (mark3labs/mcp-go) ===
	mcpSrv := mcpGoServer.NewMCPServer(cfg.ServerName, cfg.ServerVersion)
	mcpserver.RegisterAll(mcpSrv, describeUC, executeUC, logger)
	logger.Info("MCP server initialized.", slog.String("name", cfg.ServerName), slog.String("version", cfg.ServerVersion))

	// === Transport Mode Selection ===
	switch transport {
	case "stdio":
		logger.Info("Starting in STDIO mode")

		stdioServer := mcpGoServer.NewStdioServer(mcpSrv)
		if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil {
			logger.Error("STDIO server error", slog.Any("error", err))
			os.Exit(1)
		}

	case "sse":
		logger.Info("Starting in SSE mode")

		sseServer := mcpGoServer.NewSSEServer(mcpSrv, mcpGoServer.WithBaseURL("http://"+cfg.ListenAddr))

		// === HTTP API Server Setup ===
		apiMux := http.NewServeMux()
		handlers := mcphttp.NewHandlers(describeUC, executeUC, store, mcphttp.ServerInfo{
			Name:        cfg.ServerName,
			Version:     cfg.ServerVersion,
			Description: cfg.ServerDescription,
		}, logger)
		handlers.RegisterRoutes(apiMux)
		apiServer := &http.Server{
			Addr:         cfg.APIListenAddr,
			Handler:      apiMux,
			ReadTimeout:  cfg.ServerReadTimeout,
			WriteTimeout: cfg.ServerWriteTimeout,
			IdleTimeout:  cfg.ServerIdleTimeout,
		}
		go func() {
			logger.Info("HTTP API server starting.", slog.String("address", apiServer.Addr))
			if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP API server failed to start.", slog.Any("error", err))
				stop()
			}
		}()

		go func() {
			logger.Info("MCP SSE server starting.", slog.String("address", cfg.ListenAddr))
			if err := sseServer.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("MCP SSE server failed to start.", slog.Any("error", err))
				stop()
			}
		}()

		// Wait for interrupt signal.
		<-ctx.Done()

		// === Server Shutdown ===
		logger.Info("Shutting down servers...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP API server graceful shutdown failed.", slog.Any("error", err))
		}
		if err := sseServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("MCP SSE server graceful shutdown failed.", slog.Any("error", err))
		}

		logger.Info("Servers shut down gracefully.")

	default:
		logger.Error("Invalid transport mode", slog.String("transport", transport))
		os.Exit(1)
	}
}

// seedTickets preloads demo tickets from the config file into an empty store.
func seedTickets(ctx context.Context, cfg *configs.Config, svc *ticket.Service, logger *slog.Logger) error {
	if len(cfg.SeedTickets) == 0 {
		return nil
	}
	existing, err := svc.List(ctx, domain.TicketFilter{Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Debug("Store already has tickets, skipping seed.")
		return nil
	}
	for _, seed := range cfg.SeedTickets {
		_, err := svc.Create(ctx, ticket.CreateParams{
			Title:       seed.Title,
			Description: seed.Description,
			Priority:    domain.TicketPriority(seed.Priority),
			Category:    domain.TicketCategory(seed.Category),
			Assignee:    seed.Assignee,
			Reporter:    seed.Reporter,
			Tags:        seed.Tags,
		})
		if err != nil {
			return fmt.Errorf("failed to seed ticket %q: %w", seed.Title, err)
		}
	}
	logger.Info("Seeded tickets from config.", slog.Int("count", len(cfg.SeedTickets)))
	return nil
}

// initOtelProvider initializes the OpenTelemetry SDK and sets up the OTLP
// trace exporter. It returns a shutdown function to be called on exit.
func initOtelProvider(cfg *configs.Config) (func(context.Context) error, error) {
	ctx := context.Background()

	if cfg.OtelExporterOtlpEndpoint == "" {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, OpenTelemetry tracing disabled.")
		return func(context.Context) error { return nil }, nil
	}

	slog.Info("Initializing OTLP exporter.", slog.String("endpoint", cfg.OtelExporterOtlpEndpoint))

	grpcOpts := []grpc.DialOption{}
	if cfg.OtelExporterOtlpInsecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		slog.Warn("Using insecure connection for OTLP exporter.")
	} else {
		slog.Info("Using secure connection for OTLP exporter (assuming system CAs).")
	}

	conn, err := grpc.NewClient(cfg.OtelExporterOtlpEndpoint, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to OTLP endpoint: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServerName),
		),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(r),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	slog.Info("OpenTelemetry TracerProvider configured.")

	return func(ctx context.Context) error {
		providerErr := tp.Shutdown(ctx)
		connErr := conn.Close()
		return errors.Join(providerErr, connErr)
	}, nil
}
