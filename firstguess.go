package specfit

import (
	"context"
	"errors"
	"math"

	"github.com/hupe1980/specfit/param"
	"github.com/hupe1980/specfit/spectrum"
	"github.com/hupe1980/specfit/template"
)

// FirstGuessGrid is the coarse grid searched by FirstGuess.
type FirstGuessGrid struct {
	// Values lists candidate values per parameter name. Names the space
	// does not declare are ignored.
	Values map[string][]float64
	// Vsinis lists the rotation candidates; a nil entry means no rotation.
	Vsinis []*float64
}

// DefaultFirstGuessGrid returns a grid spanning typical stellar parameters.
func DefaultFirstGuessGrid() FirstGuessGrid {
	return FirstGuessGrid{
		Values: map[string][]float64{
			"logg":  {1, 2, 3, 4, 5},
			"teff":  {3000, 5000, 8000, 10000},
			"feh":   {-2, -1, 0},
			"alpha": {0},
		},
		Vsinis: []*float64{nil, Vsini(10), Vsini(100)},
	}
}

// FirstGuessResult is the best grid point of FirstGuess.
type FirstGuessResult struct {
	*GridResult
	Vsini *float64
}

// Guess converts the result into a starting point for Process.
func (r *FirstGuessResult) Guess(space param.Space) Guess {
	return Guess{
		Params:   space.ToMap(r.Params),
		Vsini:    r.Vsini,
		Velocity: r.Velocity,
	}
}

// FirstGuess runs FindBest over the Cartesian product of grid.Values for
// every vsini candidate, on the full [MinVel, MaxVel) range at VelStep0.
// Candidates outside the template coverage are skipped.
func (f *Fitter) FirstGuess(ctx context.Context, specs []*spectrum.Spectrum, grid FirstGuessGrid, res Resolution) (*FirstGuessResult, error) {
	ev, err := f.prepare(specs, res)
	if err != nil {
		return nil, err
	}

	values := make(map[string][]float64, ev.space.Len())
	for _, n := range ev.space.Names() {
		if v, ok := grid.Values[n]; ok {
			values[n] = v
		}
	}
	candidates, err := ev.space.Grid(values)
	if err != nil {
		return nil, translateError(err, specs[0].Name(), nil)
	}

	vectors := candidates[:0:0]
	for _, v := range candidates {
		covered := true
		for _, a := range ev.arms {
			if _, err := f.source.Lookup(ctx, a.spec.Name(), v); err != nil {
				if errors.Is(err, template.ErrOutsideCoverage) {
					covered = false
					break
				}
				return nil, translateError(err, a.spec.Name(), v)
			}
		}
		if covered {
			vectors = append(vectors, v)
		}
	}
	if len(vectors) == 0 {
		return nil, &TemplateLookupError{Setup: specs[0].Name(), cause: template.ErrOutsideCoverage}
	}

	vsinis := grid.Vsinis
	if len(vsinis) == 0 {
		vsinis = []*float64{nil}
	}

	vels := LinearGrid(f.cfg.MinVel, f.cfg.MaxVel, f.cfg.VelStep0)
	var best *FirstGuessResult
	bestChisq := math.Inf(1)
	for _, vsini := range vsinis {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := ev.findBest(ctx, vels, vectors, vsini)
		if err != nil {
			return nil, err
		}
		if r.Chisq < bestChisq {
			bestChisq = r.Chisq
			best = &FirstGuessResult{GridResult: r, Vsini: vsini}
		}
	}
	if best == nil {
		return nil, &LinearFitError{Arm: specs[0].Name(), Rank: -1}
	}
	return best, nil
}

// GridSeeder is a Seeder backed by FirstGuess.
type GridSeeder struct {
	Fitter *Fitter
	Grid   FirstGuessGrid
}

// Seed implements Seeder.
func (s GridSeeder) Seed(ctx context.Context, specs []*spectrum.Spectrum) (Guess, error) {
	r, err := s.Fitter.FirstGuess(ctx, specs, s.Grid, nil)
	if err != nil {
		return Guess{}, err
	}
	space, err := s.Fitter.Space(specs)
	if err != nil {
		return Guess{}, err
	}
	return r.Guess(space), nil
}
