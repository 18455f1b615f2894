// Package trainer fits a softmax head on top of a frozen feature extractor.
package trainer

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Brownie44l1/garbage-classifier/internal/dataset"
	"github.com/Brownie44l1/garbage-classifier/internal/imageproc"
	"github.com/Brownie44l1/garbage-classifier/internal/model"
)

// minProb keeps log() finite when a probability underflows.
const minProb = 1e-7

type Options struct {
	DataDir         string
	ImageSize       int
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	LearningRate    float64
	Dropout         float64
	// Seed drives shuffling, augmentation, dropout and weight init. Zero
	// picks a time-based seed.
	Seed         int64
	Augmentation imageproc.Augmentation
	HeadPath     string
	MetadataPath string
}

// EpochStats mirrors the per-epoch line a Keras fit prints.
type EpochStats struct {
	Epoch       int
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
	Duration    time.Duration
}

type Result struct {
	Classes      []string
	ClassIndices map[string]int
	History      []EpochStats
	Head         *model.Head
	Metadata     *model.Metadata
}

type Trainer struct {
	opts      Options
	extractor model.FeatureExtractor
	logger    *zap.Logger
	out       io.Writer
	rng       *rand.Rand
}

// New returns a trainer that writes the class mapping to out.
func New(extractor model.FeatureExtractor, opts Options, logger *zap.Logger, out io.Writer) *Trainer {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Trainer{
		opts:      opts,
		extractor: extractor,
		logger:    logger,
		out:       out,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

type example struct {
	sample   dataset.Sample
	features []float32
}

// Run discovers the dataset, trains for the configured number of epochs and
// persists the head and its metadata.
func (t *Trainer) Run(ctx context.Context) (*Result, error) {
	in := t.extractor.InputShape()
	if len(in) != 4 || int(in[1]) != t.opts.ImageSize || int(in[2]) != t.opts.ImageSize {
		return nil, errors.Errorf("feature extractor expects input %v, images are %dx%d", in, t.opts.ImageSize, t.opts.ImageSize)
	}
	outShape := t.extractor.OutputShape()
	if len(outShape) != 4 {
		return nil, errors.Errorf("feature extractor output %v is not NHWC", outShape)
	}

	ds, err := dataset.Discover(t.opts.DataDir)
	if err != nil {
		return nil, err
	}
	train, validation := ds.Split(t.opts.ValidationSplit)
	if len(train) == 0 {
		return nil, errors.New("validation split left no training images")
	}

	t.logger.Info("dataset discovered",
		zap.String("dir", ds.Root),
		zap.Strings("classes", ds.Classes),
		zap.Int("train", len(train)),
		zap.Int("validation", len(validation)))

	head := model.NewHead(ds.Classes, int(outShape[3]), t.rng)

	valExamples, err := t.precompute(ctx, validation)
	if err != nil {
		return nil, err
	}

	wOpt := newAdam(len(head.Weights), t.opts.LearningRate)
	bOpt := newAdam(len(head.Bias), t.opts.LearningRate)

	var history []EpochStats
	for epoch := 1; epoch <= t.opts.Epochs; epoch++ {
		start := time.Now()
		loss, acc, err := t.trainEpoch(ctx, head, train, wOpt, bOpt)
		if err != nil {
			return nil, errors.Wrapf(err, "epoch %d", epoch)
		}
		valLoss, valAcc := evaluate(head, valExamples)

		stats := EpochStats{
			Epoch:       epoch,
			Loss:        loss,
			Accuracy:    acc,
			ValLoss:     valLoss,
			ValAccuracy: valAcc,
			Duration:    time.Since(start),
		}
		history = append(history, stats)

		t.logger.Info("epoch finished",
			zap.Int("epoch", epoch),
			zap.Int("epochs", t.opts.Epochs),
			zap.Float64("loss", loss),
			zap.Float64("accuracy", acc),
			zap.Float64("val_loss", valLoss),
			zap.Float64("val_accuracy", valAcc),
			zap.Duration("duration", stats.Duration))
	}

	metadata := &model.Metadata{
		InputShape:   in,
		OutputShape:  outShape,
		Classes:      ds.Classes,
		ClassIndices: ds.ClassIndices(),
		ImageSize:    t.opts.ImageSize,
		Epochs:       t.opts.Epochs,
		CreatedAt:    time.Now().UTC(),
	}

	if err := head.Save(t.opts.HeadPath); err != nil {
		return nil, errors.Wrap(err, "saving head")
	}
	if err := model.SaveMetadata(t.opts.MetadataPath, metadata); err != nil {
		return nil, errors.Wrap(err, "saving metadata")
	}
	t.logger.Info("model saved",
		zap.String("head", t.opts.HeadPath),
		zap.String("metadata", t.opts.MetadataPath))

	fmt.Fprintf(t.out, "Class indices: %v\n", metadata.ClassIndices)

	return &Result{
		Classes:      ds.Classes,
		ClassIndices: metadata.ClassIndices,
		History:      history,
		Head:         head,
		Metadata:     metadata,
	}, nil
}

// features loads, optionally augments and embeds one image.
func (t *Trainer) features(s dataset.Sample, augment bool) ([]float32, error) {
	tensor, err := dataset.LoadTensor(s.Path, t.opts.ImageSize)
	if err != nil {
		return nil, err
	}
	if augment && t.opts.Augmentation.Enabled() {
		tensor = t.opts.Augmentation.Augment(tensor, t.rng)
	}

	featureMap, err := t.extractor.Extract(tensor.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "extracting features from %s", s.Path)
	}
	return model.Pool(featureMap, t.extractor.OutputShape())
}

// precompute embeds un-augmented samples once; the backbone is frozen so
// their features never change.
func (t *Trainer) precompute(ctx context.Context, samples []dataset.Sample) ([]example, error) {
	examples := make([]example, 0, len(samples))
	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := t.features(s, false)
		if err != nil {
			return nil, err
		}
		examples = append(examples, example{sample: s, features: f})
	}
	return examples, nil
}

func (t *Trainer) trainEpoch(ctx context.Context, head *model.Head, train []dataset.Sample, wOpt, bOpt *adam) (float64, float64, error) {
	order := t.rng.Perm(len(train))
	numClasses, dim := head.NumClasses(), head.FeatureDim

	wGrad := make([]float64, len(head.Weights))
	bGrad := make([]float64, len(head.Bias))

	var totalLoss float64
	var correct int
	for start := 0; start < len(order); start += t.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		end := min(start+t.opts.BatchSize, len(order))

		clear(wGrad)
		clear(bGrad)
		for _, idx := range order[start:end] {
			s := train[idx]
			features, err := t.features(s, true)
			if err != nil {
				return 0, 0, err
			}
			features = t.dropout(features)

			probs := model.Softmax(head.Logits(features))
			totalLoss -= math.Log(math.Max(float64(probs[s.Label]), minProb))
			if pred, _ := model.ArgMax(probs); pred == s.Label {
				correct++
			}

			for k := 0; k < numClasses; k++ {
				delta := float64(probs[k])
				if k == s.Label {
					delta -= 1
				}
				bGrad[k] += delta
				row := wGrad[k*dim : (k+1)*dim]
				for j, x := range features {
					row[j] += delta * float64(x)
				}
			}
		}

		n := float64(end - start)
		for i := range wGrad {
			wGrad[i] /= n
		}
		for i := range bGrad {
			bGrad[i] /= n
		}
		wOpt.update(head.Weights, wGrad)
		bOpt.update(head.Bias, bGrad)
	}

	total := float64(len(train))
	return totalLoss / total, float64(correct) / total, nil
}

// dropout zeroes features with the configured rate and rescales survivors.
func (t *Trainer) dropout(features []float32) []float32 {
	rate := t.opts.Dropout
	if rate <= 0 {
		return features
	}
	scale := float32(1 / (1 - rate))
	out := make([]float32, len(features))
	for i, f := range features {
		if t.rng.Float64() >= rate {
			out[i] = f * scale
		}
	}
	return out
}

// evaluate returns mean cross-entropy and accuracy; both are zero for an
// empty set.
func evaluate(head *model.Head, examples []example) (float64, float64) {
	if len(examples) == 0 {
		return 0, 0
	}
	var loss float64
	var correct int
	for _, e := range examples {
		probs := model.Softmax(head.Logits(e.features))
		loss -= math.Log(math.Max(float64(probs[e.sample.Label]), minProb))
		if pred, _ := model.ArgMax(probs); pred == e.sample.Label {
			correct++
		}
	}
	n := float64(len(examples))
	return loss / n, float64(correct) / n
}
