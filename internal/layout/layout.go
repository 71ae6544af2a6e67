// Package layout assigns 2D coordinates to the collaboration graph with a
// ForceAtlas2-style force-directed simulation. Positions start from a seeded
// random placement, so a given graph and seed always produce the same layout.
package layout

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// Attribute names written onto each node.
const (
	AttrX = "x"
	AttrY = "y"
)

// Options tunes the simulation.
type Options struct {
	Iterations   int     `koanf:"iterations" env:"LAYOUT_ITERATIONS" envDefault:"100" validate:"gte=0"`
	Seed         uint64  `koanf:"seed" env:"LAYOUT_SEED" envDefault:"1"`
	ScalingRatio float64 `koanf:"scaling_ratio" env:"LAYOUT_SCALING_RATIO" envDefault:"10" validate:"gt=0"`
	Gravity      float64 `koanf:"gravity" env:"LAYOUT_GRAVITY" envDefault:"1" validate:"gte=0"`
	// MaxStep caps how far a node moves in one iteration.
	MaxStep float64 `koanf:"max_step" env:"LAYOUT_MAX_STEP" envDefault:"10" validate:"gt=0"`
}

// DefaultOptions returns the settings used by the publish pipeline.
func DefaultOptions() Options {
	return Options{
		Iterations:   100,
		Seed:         1,
		ScalingRatio: 10,
		Gravity:      1,
		MaxStep:      10,
	}
}

// Point is a node position.
type Point struct {
	X, Y float64
}

const (
	minDistance = 0.01
	// stepScale damps each iteration's net force into a move.
	stepScale = 0.1
)

// Compute returns one position per node, in node order. Edges that name
// an unknown node are ignored.
func Compute(nodes []types.Node, edges []types.Edge, opts Options) ([]Point, error) {
	if opts.Iterations < 0 {
		return nil, fmt.Errorf("layout: iterations must be >= 0, got %d", opts.Iterations)
	}
	if opts.ScalingRatio <= 0 || opts.MaxStep <= 0 {
		return nil, fmt.Errorf("layout: scaling ratio and max step must be positive")
	}

	n := len(nodes)
	pos := make([]Point, n)
	if n == 0 {
		return pos, nil
	}

	index := make(map[string]int, n)
	for i, nd := range nodes {
		index[nd.Key] = i
	}

	type link struct{ a, b int }
	links := make([]link, 0, len(edges))
	degree := make([]float64, n)
	for _, e := range edges {
		a, okA := index[e.Source]
		b, okB := index[e.Target]
		if !okA || !okB || a == b {
			continue
		}
		links = append(links, link{a, b})
		degree[a]++
		degree[b]++
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	for i := range pos {
		pos[i] = Point{X: rng.Float64(), Y: rng.Float64()}
	}

	disp := make([]Point, n)
	for it := 0; it < opts.Iterations; it++ {
		for i := range disp {
			disp[i] = Point{}
		}

		// Repulsion, scaled by (deg+1) of both ends.
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				dx := pos[i].X - pos[j].X
				dy := pos[i].Y - pos[j].Y
				d := math.Max(math.Hypot(dx, dy), minDistance)
				f := opts.ScalingRatio * (degree[i] + 1) * (degree[j] + 1) / (d * d)
				disp[i].X += dx * f
				disp[i].Y += dy * f
				disp[j].X -= dx * f
				disp[j].Y -= dy * f
			}
		}

		// Linear attraction along edges.
		for _, l := range links {
			dx := pos[l.a].X - pos[l.b].X
			dy := pos[l.a].Y - pos[l.b].Y
			disp[l.a].X -= dx
			disp[l.a].Y -= dy
			disp[l.b].X += dx
			disp[l.b].Y += dy
		}

		for i := range pos {
			// Gravity towards the origin.
			d := math.Max(math.Hypot(pos[i].X, pos[i].Y), minDistance)
			g := opts.Gravity * (degree[i] + 1) / d
			disp[i].X -= pos[i].X * g
			disp[i].Y -= pos[i].Y * g

			disp[i].X *= stepScale
			disp[i].Y *= stepScale
			step := math.Hypot(disp[i].X, disp[i].Y)
			if step > opts.MaxStep {
				scale := opts.MaxStep / step
				disp[i].X *= scale
				disp[i].Y *= scale
			}
			pos[i].X += disp[i].X
			pos[i].Y += disp[i].Y
		}
	}

	for i, p := range pos {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, fmt.Errorf("layout: node %s has non-finite position", nodes[i].Key)
		}
	}
	return pos, nil
}

// Apply computes the layout and returns copies of nodes with x and y set.
// The input nodes and their attribute maps are not modified.
func Apply(nodes []types.Node, edges []types.Edge, opts Options) ([]types.Node, error) {
	pos, err := Compute(nodes, edges, opts)
	if err != nil {
		return nil, err
	}
	out := make([]types.Node, len(nodes))
	for i, nd := range nodes {
		attrs := make(map[string]interface{}, len(nd.Attributes)+2)
		for k, v := range nd.Attributes {
			attrs[k] = v
		}
		attrs[AttrX] = pos[i].X
		attrs[AttrY] = pos[i].Y
		out[i] = types.Node{Key: nd.Key, Attributes: attrs}
	}
	return out, nil
}
