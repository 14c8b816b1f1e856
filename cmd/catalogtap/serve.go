package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/rendis/catalogtap/internal/devserver"
	"github.com/rendis/catalogtap/internal/engine/storage"
)

var (
	serveDB       string
	serveAddr     string
	serveSeed     bool
	serveCount    int
	serveSeedRand uint64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a fixture marketplace API backed by SQLite",
	Long: `Serve the four endpoints catalogtap consumes (location, categories,
products, producer ratings) from a SQLite file. With --seed the store is
filled with generated products across every region first.

When --token is set, requests must carry it as a bearer token.`,
	Example: `  catalogtap serve --seed
  CATALOGTAP_API_URL=http://localhost:8080 catalogtap browse --region valparaiso`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveDB, "db", "catalogtap-fixture.db", "SQLite file")
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().BoolVar(&serveSeed, "seed", false, "insert generated products, ratings and a consumer location")
	serveCmd.Flags().IntVar(&serveCount, "seed-count", 300, "number of products to generate")
	serveCmd.Flags().Uint64Var(&serveSeedRand, "seed-rand", 1, "random seed for generated data")
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := newLogger(cmd.ErrOrStderr(), log.InfoLevel).WithPrefix("serve")

	store, err := storage.NewStore(serveDB)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	if serveSeed {
		n, err := devserver.Seed(store, serveCount, serveSeedRand, devserver.DefaultLocation())
		if err != nil {
			return fmt.Errorf("seeding: %w", err)
		}
		logger.Info("seeded store", "products", n, "db", serveDB)
	}
	total, err := store.Count()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           devserver.NewRouter(store, devserver.Options{Token: token, Logger: logger}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", serveAddr, "products", total)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-cmd.Context().Done():
	}

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
