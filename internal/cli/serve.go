package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fluostack/fluostack/internal/api"
	"github.com/fluostack/fluostack/pkg/cache"
	"github.com/fluostack/fluostack/pkg/pipeline"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr      string // listen address
	redisAddr string // optional Redis cache backend
	redisDB   int    // Redis logical database
	noCache   bool   // disable artifact caching
}

// serveCommand creates the serve command, which runs the HTTP composition
// service.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP composition service",
		Long: `Serve exposes the composition pipeline over HTTP: clients upload planes
as multipart form files and download the composite PNG or the stack TIFF.

With --redis, artifacts are cached in Redis so multiple instances share
rendered results; otherwise the local file cache is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&opts.redisAddr, "redis", "", "Redis address (host:port) for shared caching")
	cmd.Flags().IntVar(&opts.redisDB, "redis-db", 0, "Redis logical database")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the artifact cache")

	return cmd
}

func (c *CLI) runServe(cmd *cobra.Command, opts *serveOpts) error {
	store, err := c.serveCache(cmd, opts)
	if err != nil {
		return err
	}

	runner := pipeline.NewRunner(store, nil, c.Logger)
	defer runner.Close()

	srv := api.NewServer(runner, c.Logger)
	printInfo("Serving on %s", opts.addr)
	return srv.ListenAndServe(cmd.Context(), opts.addr)
}

// serveCache selects the cache backend for the service: Redis when
// requested, the local file cache otherwise.
func (c *CLI) serveCache(cmd *cobra.Command, opts *serveOpts) (cache.Cache, error) {
	if opts.noCache {
		return cache.NewNullCache(), nil
	}
	if opts.redisAddr != "" {
		store, err := cache.NewRedisCache(cmd.Context(), cache.RedisConfig{
			Addr:     opts.redisAddr,
			Password: redisPassword(),
			DB:       opts.redisDB,
		})
		if err != nil {
			return nil, err
		}
		c.Logger.Info("using redis cache", "addr", opts.redisAddr, "db", opts.redisDB)
		return store, nil
	}
	store, err := newCache(false)
	if err != nil {
		printWarning("File cache unavailable, caching disabled: %v", err)
		return cache.NewNullCache(), nil
	}
	return store, nil
}

// redisPassword reads the Redis password from the environment so it never
// appears in process listings.
func redisPassword() string {
	return os.Getenv("FLUOSTACK_REDIS_PASSWORD")
}
