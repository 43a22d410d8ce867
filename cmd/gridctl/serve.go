package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnemet/propertygrid/database/gridstore"
	"github.com/gnemet/propertygrid/internal/dataservice"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the grid data API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := zap.S()

		registry, err := loadRegistry()
		if err != nil {
			return err
		}
		dbCfg, ok := cfg.DefaultDatabase()
		if !ok {
			return errors.New("serve needs a database entry in config")
		}
		db, err := gridstore.Open(dbCfg.ConnStr(), dbCfg.StoreOptions())
		if err != nil {
			return err
		}
		defer db.Close()

		if !debug {
			gin.SetMode(gin.ReleaseMode)
		}
		port, _ := cmd.Flags().GetString("port")
		if port == "" {
			port = cfg.Server.Port
		}

		svc := dataservice.New(registry, gridstore.New(db), dataservice.WithMaxPageSize(cfg.Grid.MaxPageSize))
		router := dataservice.NewRouter(svc, registry, dataservice.RouterConfig{
			CORSOrigins: cfg.Server.CORSOrigins,
			Token:       cfg.Server.Token,
			Pinger:      db,
		})

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       20 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Infow("HTTP server listening", "addr", srv.Addr, "tables", registry.Tables())
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case <-quit:
		}

		log.Info("Shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
		log.Info("Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "", "listen port (default from config)")
}
