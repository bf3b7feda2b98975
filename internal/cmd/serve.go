package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/demolauncher/internal/errors"
	"github.com/3leaps/demolauncher/internal/observability"
	"github.com/3leaps/demolauncher/internal/server"
	"github.com/3leaps/demolauncher/internal/server/handlers"
	"github.com/3leaps/demolauncher/pkg/navigator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the browsing session over HTTP",
	Long: `Start an HTTP API over one shared browsing session.

Endpoints:
  GET  /health, /health/live, /health/ready, /health/startup
  GET  /version
  GET  /v1/sources            POST /v1/sources/{name}
  GET  /v1/listing            POST /v1/browse {"url": ...}
  POST /v1/descend {"name"}   POST /v1/back
  POST /v1/refresh            POST /v1/resolve {"name"}`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides server.host)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides server.port)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := currentConfig()

	host, port := cfg.Server.Host, cfg.Server.Port
	if serveHost != "" {
		host = serveHost
	}
	if cmd.Flags().Changed("port") {
		port = servePort
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	handlers.SetVersionInfo(handlers.VersionInfo{
		Version:   versionInfo.Version,
		Commit:    versionInfo.Commit,
		BuildDate: versionInfo.BuildDate,
	})
	handlers.InitHealthManager(versionInfo.Version)
	hm := handlers.GetHealthManager()
	hm.RegisterChecker("signal", signalHealthChecker{})
	if id := GetAppIdentity(); id != nil {
		hm.RegisterChecker("identity", identityHealthChecker{
			binaryName: id.BinaryName,
			envPrefix:  id.EnvPrefix,
			configName: id.ConfigName,
		})
	}
	hm.RegisterChecker("sources", sourcesHealthChecker{nav: a.nav})

	srv := server.New(host, port,
		server.WithNavigator(a.nav),
		server.WithLogger(observability.CLILogger.Named("http")),
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	observability.CLILogger.Info("Serving demolauncher API",
		zap.String("addr", srv.Addr()),
		zap.String("session_id", a.nav.SessionID()),
	)

	select {
	case err := <-errCh:
		if err != nil {
			return exitError(apperrors.ExitFailure, "Server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	observability.CLILogger.Info("Shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return exitError(apperrors.ExitFailure, "Graceful shutdown failed", err)
	}
	if err := <-errCh; err != nil {
		return exitError(apperrors.ExitFailure, "Server failed", err)
	}
	return nil
}

// signalHealthChecker reports healthy while the process handles signals.
type signalHealthChecker struct{}

func (signalHealthChecker) CheckHealth(context.Context) error { return nil }

// identityHealthChecker verifies the embedded app identity is complete.
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (c identityHealthChecker) CheckHealth(context.Context) error {
	switch {
	case c.binaryName == "":
		return errors.New("app identity: missing binary name")
	case c.envPrefix == "":
		return errors.New("app identity: missing env prefix")
	case c.configName == "":
		return errors.New("app identity: missing config name")
	}
	return nil
}

// sourcesHealthChecker verifies the session has at least one source.
type sourcesHealthChecker struct {
	nav *navigator.Navigator
}

func (c sourcesHealthChecker) CheckHealth(context.Context) error {
	if c.nav == nil {
		return errors.New("navigator not initialized")
	}
	if n := len(c.nav.Sources()); n == 0 {
		return fmt.Errorf("no sources configured")
	}
	return nil
}
