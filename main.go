package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/solorad/blog-api/pkg"
	"github.com/solorad/blog-api/pkg/config"
	"github.com/solorad/blog-api/pkg/fixtures"
	"github.com/solorad/blog-api/pkg/log"
	"github.com/solorad/blog-api/pkg/server"
	"github.com/solorad/blog-api/pkg/storage"
	"github.com/spf13/cobra"
)

var configFile string

func main() {
	defer log.Flush()

	rootCmd := &cobra.Command{
		Use:   "blog-api",
		Short: "Blog post REST API backed by a document store",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// glog reads its settings from the standard flag set
			return flag.CommandLine.Parse(nil)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(dropCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		log.Flush()
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API and gRPC health service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore(store)

			log.Infof("REST server is starting on %s", cfg.Listen)
			return server.New(store).ListenAndServe(ctx, cfg.Listen, cfg.ShutdownTimeout)
		},
	}
}

func seedCmd() *cobra.Command {
	var count int
	var seed int64
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert fake blog posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore(store)

			posts, err := fixtures.NewGenerator(seed).Seed(cmd.Context(), store, count)
			if err != nil {
				return err
			}
			log.Infof("Seeded %d posts", len(posts))
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d posts\n", len(posts))
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "Number of posts to insert")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 picks one)")
	return cmd
}

func dropCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to drop the database without --yes")
			}
			_, store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore(store)

			log.Warningf("Deleting database")
			return store.DropDatabase(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm dropping every post")
	return cmd
}

func openStore(ctx context.Context) (*config.Config, pkg.PostStore, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
	}
	return cfg, store, nil
}

func closeStore(store pkg.PostStore) {
	if err := store.Close(context.Background()); err != nil {
		log.Errorf("Error closing store: %v", err)
	}
}
