package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mverkerk/opsboard/internal/config"
	"github.com/mverkerk/opsboard/internal/httpapi"
	"github.com/mverkerk/opsboard/internal/otel"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		addr     string
		dev      bool
		apiKey   string
		dbDriver string
		dbURL    string
		metrics  bool
		envFile  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Opsboard HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := loadEnvFile(envFile); err != nil {
					return err
				}
			}
			home := config.MustHomeFrom(cmd.Context())

			file, err := config.LoadFile(home)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg := config.Merge(config.File{
				Addr:     addr,
				APIKey:   apiKey,
				DBDriver: dbDriver,
				DBURL:    dbURL,
				Dev:      dev,
				Metrics:  metrics,
			}, file)
			if cfg.Addr == "" {
				cfg.Addr = ":3560"
			}
			if cfg.APIKey == "" {
				cfg.APIKey = os.Getenv("OPSBOARD_API_KEY")
			}

			opts := httpapi.ServerOptions{
				Home:     home,
				Addr:     cfg.Addr,
				Dev:      cfg.Dev,
				APIKey:   cfg.APIKey,
				DBDriver: cfg.DBDriver,
				DBURL:    cfg.DBURL,
			}

			if cfg.Metrics {
				handler, err := otel.InitMeterProvider(cmd.Context(), "opsboard")
				if err != nil {
					return fmt.Errorf("init metrics: %w", err)
				}
				opts.MetricsHandler = handler
				opts.UseOtelHTTP = true
			}

			app, err := httpapi.NewApp(opts)
			if err != nil {
				return err
			}

			if cfg.Metrics {
				st := app.Store
				err := otel.InitMetricsWithTaskCount(cmd.Context(), func() (int64, int64, int64, int64) {
					sum, err := st.Summary(context.Background(), nil)
					if err != nil {
						return 0, 0, 0, 0
					}
					return sum.NotStarted, sum.InProgress, sum.Completed, sum.Suspended
				})
				if err != nil {
					return fmt.Errorf("init metrics: %w", err)
				}
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Opsboard listening on %s (home %s)\n", cfg.Addr, home)

			errCh := make(chan error, 1)
			go func() {
				errCh <- app.Server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return app.Server.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default :3560, config: addr)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable dev mode (permissive CORS)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Require this API key on requests (or set OPSBOARD_API_KEY)")
	cmd.Flags().StringVar(&dbDriver, "db-driver", "", "Store driver: sqlite (default) or postgres")
	cmd.Flags().StringVar(&dbURL, "db-url", "", "DB connection string (for postgres; or set DATABASE_URL)")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Export OpenTelemetry metrics on /metrics")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Load env vars from file (KEY=VALUE per line) before starting")

	return cmd
}

func loadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		i := strings.Index(line, "=")
		if i <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		value := strings.TrimSpace(line[i+1:])
		if key != "" {
			_ = os.Setenv(key, value)
		}
	}
	return sc.Err()
}
