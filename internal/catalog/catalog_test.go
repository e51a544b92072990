package catalog

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/camtrap-metadata/internal/imaging"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{40, 80, 120, 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "b.png", 20, 10)
	writePNG(t, dir, "a.PNG", 30, 15)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_metadata.txt"), []byte("x: y\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.jpg"), []byte("not a jpeg"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755))

	c := New()
	n, err := c.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, c.Len())

	abs, _ := filepath.Abs(dir)
	assert.Equal(t, abs, c.Folder())

	names := []string{}
	for _, img := range c.Images() {
		names = append(names, img.Name)
	}
	assert.Equal(t, []string{"a.PNG", "b.png", "broken.jpg"}, names)

	first, err := c.Get(0)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, 30, first.Width)
	assert.Equal(t, 15, first.Height)
	assert.Equal(t, "png", first.Format)
	assert.Positive(t, first.FileSizeBytes)

	broken, err := c.Get(2)
	require.NoError(t, err)
	assert.Equal(t, 0, broken.Width)
	assert.Equal(t, int64(10), broken.FileSizeBytes)
}

func TestLoad_MissingFolderKeepsState(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png", 4, 4)

	c := New()
	_, err := c.Load(dir)
	require.NoError(t, err)

	_, err = c.Load(filepath.Join(dir, "nope"))
	assert.ErrorIs(t, err, ErrFolderNotFound)
	assert.Equal(t, 1, c.Len())

	file := filepath.Join(dir, "a.png")
	_, err = c.Load(file)
	assert.ErrorIs(t, err, ErrFolderNotFound)
	assert.Equal(t, 1, c.Len())
}

func TestLoad_ReplacesSnapshot(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writePNG(t, first, "a.png", 4, 4)
	writePNG(t, first, "b.png", 4, 4)
	writePNG(t, second, "c.png", 4, 4)

	cache := imaging.NewImageCache()
	c := New(WithCache(cache))
	_, err := c.Load(first)
	require.NoError(t, err)

	_, _, err = c.Open(1)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	n, err := c.Load(second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, cache.Len())

	_, ok := c.Lookup(filepath.Join(first, "a.png"))
	assert.False(t, ok)
	found, ok := c.Lookup(filepath.Join(second, "c.png"))
	assert.True(t, ok)
	assert.Equal(t, 0, found.Index)
}

func TestGet_OutOfRange(t *testing.T) {
	c := New()
	_, err := c.Get(0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	dir := t.TempDir()
	writePNG(t, dir, "a.png", 4, 4)
	_, err = c.Load(dir)
	require.NoError(t, err)

	_, err = c.Get(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = c.Get(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, _, err = c.Open(5)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png", 12, 6)

	c := New()
	_, err := c.Load(dir)
	require.NoError(t, err)

	entry, img, err := c.Open(0)
	require.NoError(t, err)
	assert.Equal(t, "a.png", entry.Name)
	assert.Equal(t, 12, img.Bounds().Dx())
}

func TestConcurrentLoadAndRead(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	for _, n := range []string{"a.png", "b.png"} {
		writePNG(t, first, n, 2, 2)
	}
	writePNG(t, second, "c.png", 2, 2)

	c := New()
	_, err := c.Load(first)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				c.Load(second)
			} else {
				c.Load(first)
			}
		}(i)
		go func() {
			defer wg.Done()
			images := c.Images()
			assert.Contains(t, []int{1, 2}, len(images))
		}()
	}
	wg.Wait()
}

func TestIsImage(t *testing.T) {
	for name, want := range map[string]bool{
		"a.jpg": true, "a.JPEG": true, "a.png": true, "a.Tif": true, "a.tiff": true,
		"a.txt": false, "a.backup": false, "a_metadata.txt": false, "jpg": false,
	} {
		assert.Equal(t, want, IsImage(name), name)
	}
}
