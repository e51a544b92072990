// Package catalog lists the images of one folder and serves them by index.
//
// A load builds a complete snapshot and swaps it in atomically, so readers
// always see either the previous folder or the new one, never a mix.
package catalog

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/camtrap-metadata/internal/imaging"
)

var (
	// ErrFolderNotFound is returned when the folder to load does not exist.
	ErrFolderNotFound = errors.New("folder not found")

	// ErrIndexOutOfRange is returned for an index outside the loaded folder.
	ErrIndexOutOfRange = errors.New("image index out of range")
)

// Extensions are the file types the catalog lists, compared case-insensitively.
var Extensions = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif"}

// Image describes one catalogued file.
type Image struct {
	Index         int    `json:"index"`
	Path          string `json:"path"`
	Name          string `json:"filename"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Format        string `json:"format,omitempty"`
}

type snapshot struct {
	folder string
	images []Image
	byPath map[string]int
}

// Catalog holds the current folder snapshot. It is safe for concurrent use.
type Catalog struct {
	current atomic.Pointer[snapshot]
	cache   *imaging.ImageCache
	log     logrus.FieldLogger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithCache shares an image cache with the catalog. The cache is cleared on
// every successful load.
func WithCache(c *imaging.ImageCache) Option {
	return func(cat *Catalog) { cat.cache = c }
}

// WithLogger sets the catalog's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(cat *Catalog) { cat.log = log }
}

// New creates an empty catalog.
func New(opts ...Option) *Catalog {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Catalog{log: discard}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = imaging.NewImageCache()
	}
	c.current.Store(&snapshot{byPath: map[string]int{}})
	return c
}

// Load scans folder (not recursively) and replaces the catalog with its
// images, sorted by path. On error the previous snapshot is kept.
func (c *Catalog) Load(folder string) (int, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve folder: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return 0, fmt.Errorf("%w: %s", ErrFolderNotFound, folder)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return 0, fmt.Errorf("failed to read folder: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImage(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(abs, entry.Name()))
	}
	sort.Strings(paths)

	snap := &snapshot{
		folder: abs,
		images: make([]Image, 0, len(paths)),
		byPath: make(map[string]int, len(paths)),
	}
	for i, p := range paths {
		img := Image{Index: i, Path: p, Name: filepath.Base(p)}
		if desc, err := imaging.Describe(p); err != nil {
			c.log.WithFields(logrus.Fields{"file": img.Name, "error": err}).Warn("could not read image header")
			if st, serr := os.Stat(p); serr == nil {
				img.FileSizeBytes = st.Size()
			}
		} else {
			img.FileSizeBytes = desc.FileSizeBytes
			img.Width = desc.Width
			img.Height = desc.Height
			img.Format = desc.Format
		}
		snap.images = append(snap.images, img)
		snap.byPath[p] = i
	}

	c.current.Store(snap)
	c.cache.Clear()

	c.log.WithFields(logrus.Fields{"folder": abs, "images": len(snap.images)}).Info("folder loaded")
	return len(snap.images), nil
}

// Get returns the image at index.
func (c *Catalog) Get(index int) (Image, error) {
	snap := c.current.Load()
	if index < 0 || index >= len(snap.images) {
		return Image{}, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(snap.images))
	}
	return snap.images[index], nil
}

// Lookup finds a catalogued image by path.
func (c *Catalog) Lookup(path string) (Image, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Image{}, false
	}
	snap := c.current.Load()
	i, ok := snap.byPath[abs]
	if !ok {
		return Image{}, false
	}
	return snap.images[i], true
}

// Open decodes the image at index through the shared cache.
func (c *Catalog) Open(index int) (Image, image.Image, error) {
	entry, err := c.Get(index)
	if err != nil {
		return Image{}, nil, err
	}
	img, err := c.cache.Load(entry.Path)
	if err != nil {
		return entry, nil, err
	}
	return entry, img, nil
}

// Images returns a copy of every catalogued image.
func (c *Catalog) Images() []Image {
	snap := c.current.Load()
	return append([]Image(nil), snap.images...)
}

// Len returns the number of catalogued images.
func (c *Catalog) Len() int {
	return len(c.current.Load().images)
}

// Folder returns the absolute path of the loaded folder, or "" before the
// first load.
func (c *Catalog) Folder() string {
	return c.current.Load().folder
}

// Cache returns the image cache used by Open.
func (c *Catalog) Cache() *imaging.ImageCache {
	return c.cache
}

// IsImage reports whether name has one of Extensions.
func IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
