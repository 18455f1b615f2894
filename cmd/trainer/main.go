package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Brownie44l1/garbage-classifier/internal/config"
	"github.com/Brownie44l1/garbage-classifier/internal/imageproc"
	"github.com/Brownie44l1/garbage-classifier/internal/logger"
	"github.com/Brownie44l1/garbage-classifier/internal/model"
	"github.com/Brownie44l1/garbage-classifier/internal/trainer"
)

func main() {
	var (
		configPath string
		dataDir    string
		epochs     int
	)

	cmd := &cobra.Command{
		Use:   "trainer",
		Short: "Train the garbage classification head on a directory-per-class dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(configPath); err != nil {
				return err
			}
			if cmd.Flags().Changed("data-dir") {
				config.Config.Train.DataDir = dataDir
			}
			if cmd.Flags().Changed("epochs") {
				if epochs <= 0 {
					return fmt.Errorf("--epochs must be positive, got %d", epochs)
				}
				config.Config.Train.Epochs = epochs
			}
			return run(cmd.Context())
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVar(&configPath, "config", "", "configuration file (YAML)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "dataset directory with one subdirectory per class")
	cmd.Flags().IntVar(&epochs, "epochs", 0, "number of passes over the training images")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.Config
	log := logger.GetZapLogger()
	defer func() { _ = log.Sync() }()

	size := int64(cfg.Image.Size)
	backbone, err := model.NewBackbone(model.BackboneOptions{
		ModelPath:   cfg.Model.Backbone,
		LibraryPath: cfg.ONNX.LibraryPath,
		InputName:   cfg.Model.InputName,
		OutputName:  cfg.Model.OutputName,
		InputShape:  []int64{1, size, size, 3},
		OutputShape: cfg.Model.FeatureShape,
	})
	if err != nil {
		return err
	}
	defer backbone.Close()

	log.Info("starting training",
		zap.String("data_dir", cfg.Train.DataDir),
		zap.Int("epochs", cfg.Train.Epochs),
		zap.Int("batch_size", cfg.Train.BatchSize))

	tr := trainer.New(backbone, trainer.Options{
		DataDir:         cfg.Train.DataDir,
		ImageSize:       cfg.Image.Size,
		Epochs:          cfg.Train.Epochs,
		BatchSize:       cfg.Train.BatchSize,
		ValidationSplit: cfg.Train.ValidationSplit,
		LearningRate:    cfg.Train.LearningRate,
		Dropout:         cfg.Train.Dropout,
		Seed:            cfg.Train.Seed,
		Augmentation: imageproc.Augmentation{
			Rotation:       cfg.Train.Rotation,
			WidthShift:     cfg.Train.WidthShift,
			HeightShift:    cfg.Train.HeightShift,
			HorizontalFlip: cfg.Train.HorizontalFlip,
		},
		HeadPath:     cfg.Model.Head,
		MetadataPath: cfg.Model.Metadata,
	}, log, os.Stdout)

	_, err = tr.Run(ctx)
	return err
}
