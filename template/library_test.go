package template

import (
	"sync"
	"testing"

	"github.com/hupe1980/specfit/blobstore"
	"github.com/hupe1980/specfit/internal/resource"
	"github.com/hupe1980/specfit/param"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibrary_LoadFromStore(t *testing.T) {
	ctx := t.Context()
	store := blobstore.NewMemoryStore()
	for _, setup := range []string{"b", "r", "z"} {
		require.NoError(t, Save(ctx, store, newTestGrid(t, setup), EncodeOptions{Compression: CompressionZSTD}))
	}

	rc := resource.NewController(resource.Config{MaxConcurrentLoads: 2, IOLimitBytesPerSec: 1 << 30})
	lib, err := Load(ctx, store, []string{"b", "r", "z"}, WithResourceController(rc))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "r", "z"}, lib.Setups())

	space, err := lib.Space("r")
	require.NoError(t, err)
	assert.Equal(t, []string{"teff", "logg"}, space.Names())

	v := param.Vector{4750, 2.5}
	first, err := lib.Lookup(ctx, "z", v)
	require.NoError(t, err)
	second, err := lib.Lookup(ctx, "z", v)
	require.NoError(t, err)
	assert.Same(t, first, second)

	hits, misses := lib.CacheStats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Positive(t, rc.MemoryUsage())

	lib.Purge()
	assert.Zero(t, rc.MemoryUsage())
}

func TestLibrary_LoadLocal(t *testing.T) {
	ctx := t.Context()
	store := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, Save(ctx, store, newTestGrid(t, "b"), EncodeOptions{Compression: CompressionLZ4}))

	lib, err := Load(ctx, store, []string{"b"})
	require.NoError(t, err)
	g, ok := lib.Grid("b")
	require.True(t, ok)
	assert.Equal(t, 12, g.NumNodes())
}

func TestLibrary_Errors(t *testing.T) {
	ctx := t.Context()
	store := blobstore.NewMemoryStore()

	_, err := Load(ctx, store, []string{"b"})
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	data, err := Encode(newTestGrid(t, "r"), EncodeOptions{})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "b"+FileExt, data))
	_, err = Load(ctx, store, []string{"b"})
	assert.ErrorIs(t, err, ErrFormat)

	_, err = NewLibrary([]*Grid{newTestGrid(t, "b"), newTestGrid(t, "b")})
	assert.ErrorIs(t, err, ErrInvalidGrid)

	lib, err := NewLibrary([]*Grid{newTestGrid(t, "b")}, WithCacheBytes(0))
	require.NoError(t, err)
	_, err = lib.Lookup(ctx, "x", param.Vector{5000, 2})
	assert.ErrorIs(t, err, ErrUnknownSetup)
	_, err = lib.Space("x")
	assert.ErrorIs(t, err, ErrUnknownSetup)
	_, err = lib.Lookup(ctx, "b", param.Vector{9000, 2})
	assert.ErrorIs(t, err, ErrOutsideCoverage)
}

func TestLibrary_ConcurrentLookup(t *testing.T) {
	lib, err := NewLibrary([]*Grid{newTestGrid(t, "b")}, WithCacheBytes(1<<20))
	require.NoError(t, err)
	model := linearModel(newTestGrid(t, "b").Wavelength())

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := param.Vector{4000 + float64(i)*100, 1 + float64(i%3)}
			tpl, err := lib.Lookup(t.Context(), "b", v)
			if assert.NoError(t, err) {
				assert.InDeltaSlice(t, model(v), tpl.Flux, 1e-9)
			}
		}()
	}
	wg.Wait()
}
