package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-optfactory"
	"github.com/goliatone/go-optfactory/pkg/activity"
	"github.com/goliatone/go-optfactory/pkg/evalmetrics"
	"github.com/goliatone/go-optfactory/pkg/httpapi"
	"github.com/goliatone/go-optfactory/pkg/reload"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(global *globalFlags) *cobra.Command {
	var (
		layers  layerFlags
		addr    string
		watch   bool
		swagger bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve resolved options over HTTP",
		Long: `serve resolves the layered options and exposes them over HTTP:

  GET    /options            current snapshot (?explicit=true for set values only)
  GET    /options/{path}     one value
  PUT    /options            replace the runtime override layer
  PATCH  /options            merge into the runtime override layer
  DELETE /options            clear the runtime override layer
  GET    /trace/{path}       where a value comes from
  GET    /schema             schema descriptors
  GET    /openapi.json       OpenAPI document for the /options routes
  GET    /swagger/           interactive documentation (--swagger)
  GET    /metrics            evaluation metrics`,
		Example: `  optfactory serve --schema schema.yaml -f values.yaml --addr :8080 --watch`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := prometheus.NewRegistry()
			collector := evalmetrics.NewWithRegistry(registry)

			factory, err := global.loadFactory(
				optfactory.WithEvaluatorLogger(global.evaluatorLogger(collector)),
				optfactory.WithActivityHooks(activity.Hooks{
					activity.Filter(activity.LogHook(log.Logger), activity.VerbLayerApplied),
				}),
			)
			if err != nil {
				return err
			}

			overrides := httpapi.NewOverrides()
			build := overrides.Stack(layers.stack)
			holder, err := reload.New(httpapi.Loader(factory, build),
				reload.WithLogger(log.Logger),
				reload.WithPaths(layers.files()...),
			)
			if err != nil {
				return err
			}
			defer holder.Close()

			ctx := cmd.Context()
			if watch {
				if err := holder.Watch(ctx); err != nil {
					return err
				}
			}

			server := &http.Server{
				Addr: addr,
				Handler: httpapi.NewRouter(httpapi.Config{
					Factory:   factory,
					Source:    holder,
					Overrides: overrides,
					Reload:    holder.Reload,
					Trace:     httpapi.Tracer(factory, build),
					Metrics:   registry,
					SwaggerUI: swagger,
					Logger:    log.Logger,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return serve(ctx, server)
		},
	}

	layers.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload when a values file changes")
	cmd.Flags().BoolVar(&swagger, "swagger", false, "serve the Swagger UI under /swagger/")

	return cmd
}

// serve runs server until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting http server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
