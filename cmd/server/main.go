package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hellzang/foodvision-api/internal/catalog"
	"github.com/hellzang/foodvision-api/internal/config"
	"github.com/hellzang/foodvision-api/internal/handlers"
	"github.com/hellzang/foodvision-api/internal/logging"
	"github.com/hellzang/foodvision-api/internal/model"
	"github.com/hellzang/foodvision-api/internal/pipeline"
	"github.com/hellzang/foodvision-api/internal/userlog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	classifier, err := model.NewClassifier(cfg.Model.Path, cfg.Model.Metadata)
	if err != nil {
		logging.Fatal().Err(err).Str("model", cfg.Model.Path).Msg("failed to load classifier")
	}
	defer classifier.Close()

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("catalog", cfg.Catalog.Path).Msg("failed to load food catalog")
	}

	// The label table and the model head must agree exactly; compensating
	// for a mismatch with index offsets hides real misconfiguration.
	if cat.Len() != classifier.NumClasses() {
		logging.Fatal().
			Int("catalog_entries", cat.Len()).
			Int("model_classes", classifier.NumClasses()).
			Msg("food catalog size does not match classifier output dimension")
	}

	store := userlog.NewStore(cfg.UserLog.Dir)
	p := pipeline.New(classifier, cat)
	handler := handlers.NewHandler(p, cat, store)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info().
			Str("addr", cfg.Addr()).
			Str("model", cfg.Model.Path).
			Int("foods", cat.Len()).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logging.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("shutdown did not complete cleanly")
	}
}
