package model

import (
	"sync"
)

// Loader builds a Classifier from persisted artifacts.
type Loader func() (*Classifier, error)

// Cache loads the classifier at most once per process. A failed load is
// remembered and returned on every later Get; there is no retry.
type Cache struct {
	once       sync.Once
	load       Loader
	classifier *Classifier
	err        error
}

func NewCache(load Loader) *Cache {
	return &Cache{load: load}
}

// Get returns the cached classifier, loading it on first use.
func (c *Cache) Get() (*Classifier, error) {
	c.once.Do(func() {
		c.classifier, c.err = c.load()
	})
	return c.classifier, c.err
}

func (c *Cache) Close() {
	if c.classifier != nil {
		c.classifier.Close()
	}
}

// LoadOptions locates every artifact the server needs.
type LoadOptions struct {
	Backbone     BackboneOptions
	HeadPath     string
	MetadataPath string
	Threshold    float32
}

// Load reads the manifest and head, then opens the backbone with the
// input shape the model was trained on.
func Load(opts LoadOptions) (*Classifier, error) {
	metadata, err := LoadMetadata(opts.MetadataPath)
	if err != nil {
		return nil, err
	}

	head, err := LoadHead(opts.HeadPath)
	if err != nil {
		return nil, err
	}

	backboneOpts := opts.Backbone
	if len(metadata.InputShape) > 0 {
		backboneOpts.InputShape = metadata.InputShape
	}
	if len(metadata.OutputShape) > 0 {
		backboneOpts.OutputShape = metadata.OutputShape
	}

	backbone, err := NewBackbone(backboneOpts)
	if err != nil {
		return nil, err
	}

	classifier, err := NewClassifier(backbone, head, *metadata, opts.Threshold)
	if err != nil {
		backbone.Close()
		return nil, err
	}
	return classifier, nil
}
