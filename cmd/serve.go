package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/mailsweep/internal/auth"
	"github.com/teemow/mailsweep/internal/instrumentation"
	"github.com/teemow/mailsweep/internal/logging"
	"github.com/teemow/mailsweep/internal/server"
)

// serveOptions collects the serve command flags.
type serveOptions struct {
	debugMode    bool
	logFormat    string
	httpAddr     string
	dir          string
	webAuth      bool
	callbackHost string
	callbackPort int
	externalPort int
	// Metrics server configuration
	metricsEnabled bool
	metricsAddr    string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the mailsweep HTTP API server.

The server exposes account lifecycle endpoints (/api/accounts, /api/sign-in,
/api/sign-out, /api/auth/status, /api/me) and mailbox operations (/api/scan,
/api/unsubscribe, /api/mark-read, /api/delete-emails, /api/archive,
/api/export-threads, /api/search-threads).

OAuth Configuration:
  Client secrets are read from credentials.json in the state directory, or
  from the GOOGLE_CREDENTIALS env var. The first mailbox request without a
  stored token starts an interactive sign-in flow.

  Headless deployments:
    Use --web-auth (or MAILSWEEP_WEB_AUTH=true) so the callback listener
    binds all interfaces and the authorization URL is surfaced via
    /api/auth/status instead of opening a browser.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "json", "Log format: json or text")
	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", server.DefaultAPIAddr, "HTTP API server address")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "State directory for credentials and tokens. Can also use MAILSWEEP_DIR env var.")
	cmd.Flags().BoolVar(&opts.webAuth, "web-auth", false, "Headless OAuth mode: bind the callback listener on all interfaces and expose the authorization URL via the API instead of opening a browser. Can also use MAILSWEEP_WEB_AUTH env var.")
	cmd.Flags().StringVar(&opts.callbackHost, "callback-host", "", "Hostname used in the OAuth redirect URI. Can also use MAILSWEEP_CALLBACK_HOST env var.")
	cmd.Flags().IntVar(&opts.callbackPort, "callback-port", 0, "Port the local OAuth redirect listener binds to. Can also use MAILSWEEP_CALLBACK_PORT env var.")
	cmd.Flags().IntVar(&opts.externalPort, "external-port", 0, "Externally visible redirect port when a public port is forwarded to the callback port. Can also use MAILSWEEP_EXTERNAL_PORT env var.")

	// Metrics server flags
	cmd.Flags().BoolVar(&opts.metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(opts serveOptions) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	level := "info"
	if opts.debugMode {
		level = "debug"
	}
	logger := logging.Setup(os.Stderr, opts.logFormat, level)

	// Load metrics config from environment if not set via flags
	if !opts.metricsEnabled && os.Getenv("METRICS_ENABLED") == "true" {
		opts.metricsEnabled = true
	}
	if opts.metricsAddr == "" || opts.metricsAddr == server.DefaultMetricsAddr {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			opts.metricsAddr = addr
		}
	}

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error during instrumentation shutdown: %v", err)
		}
	}()

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if opts.metricsEnabled && provider.Enabled() {
		var err error
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    opts.metricsAddr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		// Wait for metrics server to be ready or fail
		select {
		case <-metricsReady:
			log.Printf("Metrics server started on %s", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}

	// Build the credential lifecycle from flags and environment
	authConfig := auth.DefaultConfig()
	authConfig.Logger = logger
	if opts.dir != "" {
		authConfig.Dir = opts.dir
	}
	if opts.webAuth {
		authConfig.WebAuth = true
	}
	if opts.callbackHost != "" {
		authConfig.CallbackHost = opts.callbackHost
	}
	if opts.callbackPort != 0 {
		authConfig.CallbackPort = opts.callbackPort
	}
	if opts.externalPort != 0 {
		authConfig.ExternalPort = opts.externalPort
	}
	// Feed OAuth lifecycle outcomes into the metrics catalog
	if provider.Enabled() {
		metrics := provider.Metrics()
		authConfig.OnFlowResult = func(result string) {
			metrics.RecordOAuthFlow(shutdownCtx, result)
		}
		authConfig.OnTokenRefresh = func(result string) {
			metrics.RecordOAuthTokenRefresh(shutdownCtx, result)
		}
	}
	resolver := auth.NewResolver(authConfig)

	serverContext := server.NewServerContext(shutdownCtx, resolver, logging.NewSlogAdapter(logger))

	// Set metrics and audit logger on server context for handler instrumentation
	if provider.Enabled() {
		serverContext.SetInstrumentation(provider.Metrics(),
			instrumentation.NewAuditLoggerWithConfig(nil, instrConfig.AuditLogging))
		if err := instrumentation.RegisterAccountsGauge(provider.Meter(), func(context.Context) int64 {
			accounts, _ := resolver.ListAccounts()
			return int64(len(accounts))
		}); err != nil {
			log.Printf("Warning: failed to register accounts gauge: %v", err)
		}
	}
	defer func() {
		// Shutdown metrics server first
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}
		if err := serverContext.Shutdown(); err != nil {
			log.Printf("Error during server context shutdown: %v", err)
		}
	}()

	apiServer := server.NewAPIServer(serverContext, opts.httpAddr)

	fmt.Printf("mailsweep API server starting on %s\n", apiServer.Addr())
	fmt.Printf("  API endpoints: /api/*\n")
	fmt.Printf("  Health endpoints: /healthz, /readyz\n")
	if opts.metricsEnabled && metricsServer != nil {
		fmt.Printf("  Metrics endpoint: %s/metrics\n", metricsServer.Addr())
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		fmt.Println("Shutdown signal received, stopping HTTP server...")
		stopCtx, stop := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer stop()
		if err := apiServer.Shutdown(stopCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		fmt.Println("HTTP server stopped normally")
	}

	fmt.Println("HTTP server gracefully stopped")
	return nil
}
