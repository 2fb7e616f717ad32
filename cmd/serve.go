package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/issuetracker/internal/api"
	webui "github.com/joescharf/issuetracker/internal/ui"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and web page",
	Long: `Start an HTTP server exposing /api/issues/{project} and the embedded
web page. By default it listens on port 3000. Use --port to change it.
SIGINT or SIGTERM drains in-flight requests before exiting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 3000, "port to listen on")
	serveCmd.Flags().Bool("strict-status", false, "use 4xx/5xx status codes for failures")
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("api.strict_status", serveCmd.Flags().Lookup("strict-status"))
}

// newServeHandler wires the issue service, API routes and web page.
func newServeHandler() (http.Handler, error) {
	svc, err := getService()
	if err != nil {
		return nil, err
	}

	page, err := webui.Handler()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize UI handler: %w", err)
	}

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := api.NewServer(svc, logger, api.Options{
		StrictStatus: viper.GetBool("api.strict_status"),
		UI:           page,
	})
	return srv.Router(), nil
}

func serveRun(ctx context.Context) error {
	handler, err := newServeHandler()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", viper.GetInt("port"))
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	ui.Info("Serving issue tracker at http://localhost%s", addr)
	logger.Info().Str("addr", addr).Str("driver", viper.GetString("store.driver")).Msg("server started")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
