package config

import (
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"
)

// ServerConfig defines HTTP server configurations
type ServerConfig struct {
	Port          int   `koanf:"port"`
	Debug         bool  `koanf:"debug"`
	MaxUploadSize int64 `koanf:"maxuploadsize"`
}

// ModelConfig points at the persisted model artifacts.
type ModelConfig struct {
	Backbone     string  `koanf:"backbone"`
	Head         string  `koanf:"head"`
	Metadata     string  `koanf:"metadata"`
	InputName    string  `koanf:"inputname"`
	OutputName   string  `koanf:"outputname"`
	FeatureShape []int64 `koanf:"featureshape"`
}

// ONNXConfig related to the ONNX Runtime shared library
type ONNXConfig struct {
	LibraryPath string `koanf:"librarypath"`
}

// ImageConfig defines the model input geometry
type ImageConfig struct {
	Size int `koanf:"size"`
}

// PredictConfig defines how predictions are presented
type PredictConfig struct {
	Threshold float32 `koanf:"threshold"`
}

// TrainConfig defines the training run
type TrainConfig struct {
	DataDir         string  `koanf:"datadir"`
	Epochs          int     `koanf:"epochs"`
	BatchSize       int     `koanf:"batchsize"`
	ValidationSplit float64 `koanf:"validationsplit"`
	LearningRate    float64 `koanf:"learningrate"`
	Dropout         float64 `koanf:"dropout"`
	Seed            int64   `koanf:"seed"`
	Rotation        float64 `koanf:"rotation"`
	WidthShift      float64 `koanf:"widthshift"`
	HeightShift     float64 `koanf:"heightshift"`
	HorizontalFlip  bool    `koanf:"horizontalflip"`
}

// AppConfig defines
type AppConfig struct {
	Server  ServerConfig  `koanf:"server"`
	Model   ModelConfig   `koanf:"model"`
	ONNX    ONNXConfig    `koanf:"onnx"`
	Image   ImageConfig   `koanf:"image"`
	Predict PredictConfig `koanf:"predict"`
	Train   TrainConfig   `koanf:"train"`
}

// Config - Global variable to export
var Config AppConfig

// Defaults returns the built-in configuration values.
func Defaults() map[string]any {
	return map[string]any{
		"server.port":           8080,
		"server.debug":          false,
		"server.maxuploadsize":  10 << 20,
		"model.backbone":        "models/mobilenet_v2_features.onnx",
		"model.head":            "models/garbage_model.gob",
		"model.metadata":        "models/model_metadata.json",
		"model.inputname":       "input",
		"model.outputname":      "output",
		"model.featureshape":    []int64{1, 7, 7, 1280},
		"onnx.librarypath":      "",
		"image.size":            224,
		"predict.threshold":     0.6,
		"train.datadir":         "dataset",
		"train.epochs":          5,
		"train.batchsize":       32,
		"train.validationsplit": 0.2,
		"train.learningrate":    0.001,
		"train.dropout":         0.2,
		"train.seed":            0,
		"train.rotation":        20.0,
		"train.widthshift":      0.2,
		"train.heightshift":     0.2,
		"train.horizontalflip":  true,
	}
}

// Init - Assign global config to decoded config struct. An empty filePath
// skips the YAML layer.
func Init(filePath string) error {
	cfg, err := Load(filePath)
	if err != nil {
		return err
	}
	Config = *cfg
	return nil
}

// Load layers defaults, the optional YAML file and CFG_ environment
// variables, in that order.
func Load(filePath string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "loading defaults")
	}

	if filePath != "" {
		if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "loading config file %s", filePath)
		}
	}

	if err := k.Load(env.ProviderWithValue("CFG_", ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CFG_")), "_", ".")
		if strings.Contains(v, ",") {
			return key, strings.Split(strings.TrimSpace(v), ",")
		}
		return key, v
	}), nil); err != nil {
		return nil, errors.Wrap(err, "loading environment")
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfig is for custom validation rules for the configuration
func ValidateConfig(cfg *AppConfig) error {
	switch {
	case cfg.Image.Size <= 0:
		return errors.Errorf("image.size must be positive, got %d", cfg.Image.Size)
	case cfg.Predict.Threshold < 0 || cfg.Predict.Threshold > 1:
		return errors.Errorf("predict.threshold must be in [0,1], got %v", cfg.Predict.Threshold)
	case cfg.Train.Epochs <= 0:
		return errors.Errorf("train.epochs must be positive, got %d", cfg.Train.Epochs)
	case cfg.Train.BatchSize <= 0:
		return errors.Errorf("train.batchsize must be positive, got %d", cfg.Train.BatchSize)
	case cfg.Train.ValidationSplit < 0 || cfg.Train.ValidationSplit >= 1:
		return errors.Errorf("train.validationsplit must be in [0,1), got %v", cfg.Train.ValidationSplit)
	case cfg.Train.Dropout < 0 || cfg.Train.Dropout >= 1:
		return errors.Errorf("train.dropout must be in [0,1), got %v", cfg.Train.Dropout)
	case len(cfg.Model.FeatureShape) != 4:
		return errors.Errorf("model.featureshape must have 4 dimensions (NHWC), got %v", cfg.Model.FeatureShape)
	}
	return nil
}
