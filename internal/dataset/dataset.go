// Package dataset reads a directory-per-class image tree.
//
// The class index of every label is its position in the alphabetically
// sorted list of subdirectory names. The server relies on the same order
// through the metadata file the trainer writes, so nothing else may reorder
// Classes.
package dataset

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/garbage-classifier/internal/imageproc"
)

// MinClasses is the smallest number of classes a dataset may have.
const MinClasses = 2

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// Sample is one labeled image file.
type Sample struct {
	Path  string
	Label int
}

// Dataset is a discovered class tree.
type Dataset struct {
	Root    string
	Classes []string
	// Files holds the sorted image paths of each class, indexed like Classes.
	Files [][]string
}

// Discover scans root for class subdirectories and their image files.
func Discover(root string) (*Dataset, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "reading dataset directory %s", root)
	}

	var classes []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			classes = append(classes, e.Name())
		}
	}
	sort.Strings(classes)

	if len(classes) < MinClasses {
		return nil, errors.Errorf("dataset %s has %d class directories, need at least %d", root, len(classes), MinClasses)
	}

	ds := &Dataset{Root: root, Classes: classes, Files: make([][]string, len(classes))}
	for i, class := range classes {
		files, err := listImages(filepath.Join(root, class))
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, errors.Errorf("class %q has no image files", class)
		}
		ds.Files[i] = files
	}
	return ds, nil
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading class directory %s", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// ClassIndices maps every class name to its output index.
func (d *Dataset) ClassIndices() map[string]int {
	indices := make(map[string]int, len(d.Classes))
	for i, c := range d.Classes {
		indices[c] = i
	}
	return indices
}

// Len returns the total number of image files.
func (d *Dataset) Len() int {
	n := 0
	for _, files := range d.Files {
		n += len(files)
	}
	return n
}

// Split partitions every class independently: the first floor(split*n)
// files become validation samples, the rest training samples.
func (d *Dataset) Split(validationSplit float64) (train, validation []Sample) {
	for label, files := range d.Files {
		nVal := int(math.Floor(validationSplit * float64(len(files))))
		for i, path := range files {
			s := Sample{Path: path, Label: label}
			if i < nVal {
				validation = append(validation, s)
			} else {
				train = append(train, s)
			}
		}
	}
	return train, validation
}

// LoadImage decodes the image at path.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return img, nil
}

// LoadTensor decodes and preprocesses the image at path.
func LoadTensor(path string, size int) (*imageproc.Tensor, error) {
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	return imageproc.Preprocess(img, size), nil
}
