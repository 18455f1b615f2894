package dataset

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	img := image.NewNRGBA(image.Rect(0, 0, 12, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 12; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func makeTree(t *testing.T, counts map[string]int) string {
	t.Helper()
	root := t.TempDir()
	for class, n := range counts {
		require.NoError(t, os.MkdirAll(filepath.Join(root, class), 0o755))
		for i := 0; i < n; i++ {
			writePNG(t, filepath.Join(root, class, fmt.Sprintf("img_%02d.png", i)), color.White)
		}
	}
	return root
}

func TestDiscover_ClassIndices(t *testing.T) {
	root := makeTree(t, map[string]int{"B": 1, "A": 1})

	ds, err := Discover(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, ds.Classes)
	assert.Equal(t, map[string]int{"A": 0, "B": 1}, ds.ClassIndices())
	assert.Equal(t, 2, ds.Len())
}

func TestDiscover_IgnoresNonImagesAndHidden(t *testing.T) {
	root := makeTree(t, map[string]int{"glass": 2, "metal": 1})
	require.NoError(t, os.WriteFile(filepath.Join(root, "glass", "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "glass", ".DS_Store"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".cache"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("x"), 0o644))
	writePNG(t, filepath.Join(root, "metal", "UPPER.PNG"), color.Black)

	ds, err := Discover(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"glass", "metal"}, ds.Classes)
	assert.Len(t, ds.Files[0], 2)
	assert.Len(t, ds.Files[1], 2)
}

func TestDiscover_Errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := Discover(filepath.Join(t.TempDir(), "missing"))
		assert.Error(t, err)
	})

	t.Run("single class", func(t *testing.T) {
		_, err := Discover(makeTree(t, map[string]int{"paper": 3}))
		assert.Error(t, err)
	})

	t.Run("empty class", func(t *testing.T) {
		root := makeTree(t, map[string]int{"paper": 3})
		require.NoError(t, os.MkdirAll(filepath.Join(root, "trash"), 0o755))
		_, err := Discover(root)
		assert.Error(t, err)
	})
}

func TestSplit(t *testing.T) {
	ds, err := Discover(makeTree(t, map[string]int{"cardboard": 10, "glass": 4}))
	require.NoError(t, err)

	train, val := ds.Split(0.2)

	var valByLabel [2]int
	for _, s := range val {
		valByLabel[s.Label]++
	}
	assert.Equal(t, [2]int{2, 0}, valByLabel)
	assert.Len(t, train, 12)
	assert.Equal(t, ds.Files[0][0], val[0].Path)

	train, val = ds.Split(0)
	assert.Len(t, train, 14)
	assert.Empty(t, val)
}

func TestLoadTensor(t *testing.T) {
	root := makeTree(t, map[string]int{"a": 1, "b": 1})
	ds, err := Discover(root)
	require.NoError(t, err)

	tensor, err := LoadTensor(ds.Files[0][0], 16)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 16, 16, 3}, tensor.Shape)

	bad := filepath.Join(root, "a", "broken.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	_, err = LoadTensor(bad, 16)
	assert.Error(t, err)
}
