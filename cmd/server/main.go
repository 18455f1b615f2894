package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Brownie44l1/garbage-classifier/internal/config"
	"github.com/Brownie44l1/garbage-classifier/internal/handlers"
	"github.com/Brownie44l1/garbage-classifier/internal/logger"
	"github.com/Brownie44l1/garbage-classifier/internal/model"
)

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the garbage classification upload UI and prediction API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(configPath); err != nil {
				return err
			}
			return run()
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVar(&configPath, "config", "", "configuration file (YAML)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Config
	log := logger.GetZapLogger()
	defer func() { _ = log.Sync() }()

	root := projectRoot()
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}

	opts := model.LoadOptions{
		Backbone: model.BackboneOptions{
			ModelPath:   resolve(cfg.Model.Backbone),
			LibraryPath: cfg.ONNX.LibraryPath,
			InputName:   cfg.Model.InputName,
			OutputName:  cfg.Model.OutputName,
			InputShape:  []int64{1, int64(cfg.Image.Size), int64(cfg.Image.Size), 3},
			OutputShape: cfg.Model.FeatureShape,
		},
		HeadPath:     resolve(cfg.Model.Head),
		MetadataPath: resolve(cfg.Model.Metadata),
		Threshold:    cfg.Predict.Threshold,
	}

	log.Info("loading model",
		zap.String("backbone", opts.Backbone.ModelPath),
		zap.String("head", opts.HeadPath),
		zap.String("metadata", opts.MetadataPath))

	cache := model.NewCache(func() (*model.Classifier, error) { return model.Load(opts) })
	defer cache.Close()

	if classifier, err := cache.Get(); err != nil {
		log.Error("model failed to load, predictions disabled", zap.Error(err))
	} else {
		log.Info("model loaded",
			zap.Strings("classes", classifier.Metadata.Classes),
			zap.Float32("threshold", classifier.Threshold()))
	}

	h := handlers.NewHandler(cache, log, cfg.Server.MaxUploadSize)
	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins([]string{"*"}),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type"}),
	)

	port := strconv.Itoa(cfg.Server.Port)
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           cors(handlers.NewRouter(h)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("server starting",
		zap.String("port", port),
		zap.Strings("endpoints", []string{
			"GET / - upload page",
			"POST /classify - classify from the upload form",
			"GET /health - health check",
			"POST /predict - raw tensor prediction",
			"POST /predict/image - predict from image upload",
		}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// projectRoot resolves relative artifact paths. Running from cmd/server
// points two levels up, like running from the repository root.
func projectRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if filepath.Base(wd) == "server" {
		return filepath.Join(wd, "../..")
	}
	return wd
}
