package template

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/hupe1980/specfit/blobstore"
	"github.com/hupe1980/specfit/internal/cache"
	"github.com/hupe1980/specfit/internal/resource"
	"github.com/hupe1980/specfit/param"
	"golang.org/x/sync/errgroup"
)

// FileExt is the extension of grid blobs; the blob of setup "b" is "b.spft".
const FileExt = ".spft"

// DefaultCacheBytes bounds the interpolated-template cache of a Library.
const DefaultCacheBytes = 256 << 20

// Option configures a Library.
type Option func(*libraryOptions)

type libraryOptions struct {
	cacheBytes int64
	rc         *resource.Controller
}

// WithCacheBytes sets the capacity of the interpolated-template cache.
// 0 disables caching.
func WithCacheBytes(n int64) Option {
	return func(o *libraryOptions) { o.cacheBytes = n }
}

// WithResourceController charges cached templates against rc and throttles
// blob reads with its IO limit and load slots.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *libraryOptions) { o.rc = rc }
}

type cacheKey struct {
	setup  string
	params string
}

// Library is a Source over the grids of several setups.
// It is safe for concurrent use.
type Library struct {
	grids map[string]*Grid
	cache *cache.ShardedLRU[cacheKey, *Template]
}

// NewLibrary creates a Library from grids with distinct setups.
func NewLibrary(grids []*Grid, opts ...Option) (*Library, error) {
	o := libraryOptions{cacheBytes: DefaultCacheBytes}
	for _, fn := range opts {
		fn(&o)
	}

	l := &Library{grids: make(map[string]*Grid, len(grids))}
	for _, g := range grids {
		if _, dup := l.grids[g.setup]; dup {
			return nil, fmt.Errorf("%w: duplicate setup %q", ErrInvalidGrid, g.setup)
		}
		l.grids[g.setup] = g
	}
	if o.cacheBytes > 0 {
		l.cache = cache.NewShardedLRU[cacheKey, *Template](o.cacheBytes, (*Template).sizeBytes, o.rc)
	}
	return l, nil
}

// Load reads the grids of setups from store in parallel and returns a Library.
func Load(ctx context.Context, store blobstore.BlobStore, setups []string, opts ...Option) (*Library, error) {
	o := libraryOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	grids := make([]*Grid, len(setups))
	g, gctx := errgroup.WithContext(ctx)
	for i, setup := range setups {
		g.Go(func() error {
			if err := o.rc.AcquireLoad(gctx); err != nil {
				return err
			}
			defer o.rc.ReleaseLoad()

			grid, err := loadGrid(gctx, store, setup, o.rc)
			if err != nil {
				return err
			}
			if grid.setup != setup {
				return fmt.Errorf("%w: blob %q holds setup %q", ErrFormat, setup+FileExt, grid.setup)
			}
			grids[i] = grid
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewLibrary(grids, opts...)
}

func loadGrid(ctx context.Context, store blobstore.BlobStore, setup string, rc *resource.Controller) (*Grid, error) {
	name := setup + FileExt
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("template: open %q: %w", name, err)
	}
	defer blob.Close()

	var data []byte
	if rc == nil {
		data, err = blobstore.ReadAll(ctx, blob)
	} else {
		data, err = io.ReadAll(resource.NewRateLimitedReader(ctx, blobstore.Reader(ctx, blob), rc))
	}
	if err != nil {
		return nil, fmt.Errorf("template: read %q: %w", name, err)
	}

	grid, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("template: decode %q: %w", name, err)
	}
	return grid, nil
}

// Save encodes g and stores it as "<setup>.spft".
func Save(ctx context.Context, store blobstore.BlobStore, g *Grid, opts EncodeOptions) error {
	data, err := Encode(g, opts)
	if err != nil {
		return err
	}
	return store.Put(ctx, g.setup+FileExt, data)
}

// Setups returns the sorted setups served by the library.
func (l *Library) Setups() []string {
	out := make([]string, 0, len(l.grids))
	for s := range l.grids {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Grid returns the grid of setup.
func (l *Library) Grid(setup string) (*Grid, bool) {
	g, ok := l.grids[setup]
	return g, ok
}

// Space implements Source.
func (l *Library) Space(setup string) (param.Space, error) {
	g, ok := l.grids[setup]
	if !ok {
		return param.Space{}, fmt.Errorf("%w: %q", ErrUnknownSetup, setup)
	}
	return g.space, nil
}

// Lookup implements Source.
func (l *Library) Lookup(ctx context.Context, setup string, v param.Vector) (*Template, error) {
	g, ok := l.grids[setup]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSetup, setup)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.cache == nil {
		return g.interpolate(v)
	}

	key := cacheKey{setup: setup, params: vectorKey(v)}
	if t, ok := l.cache.Get(key); ok {
		return t, nil
	}
	t, err := g.interpolate(v)
	if err != nil {
		return nil, err
	}
	l.cache.Set(key, t)
	return t, nil
}

// CacheStats returns the hit and miss counts of the template cache.
func (l *Library) CacheStats() (hits, misses int64) {
	if l.cache == nil {
		return 0, 0
	}
	return l.cache.Stats()
}

// Purge empties the template cache.
func (l *Library) Purge() {
	if l.cache != nil {
		l.cache.Purge()
	}
}

func vectorKey(v param.Vector) string {
	b := make([]byte, 0, 8*len(v))
	for _, x := range v {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(x))
	}
	return string(b)
}
