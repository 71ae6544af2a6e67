package portal

import (
	"fmt"
	"math/rand/v2"
)

var baseColors = []string{
	"#79a9bf",
	"#cfbd71",
	"#e189f7",
	"#75222",
	"#fa1257",
	"#ad5e3b",
	"#721283",
	"#bbcea0",
	"#ea2377",
	"#6b6440",
	"#ab5c19",
	"#e76a6d",
	"#fbab66",
	"#ac3594",
	"#62076",
	"#37c937",
	"#9c1348",
}

// BaseColors returns the fixed chart colours in order.
func BaseColors() []string {
	return append([]string(nil), baseColors...)
}

// Palette returns the chart colours for n labels: the fixed colours
// followed by random ones until there is at least one per label. A nil rng
// uses the global source.
func Palette(n int, rng *rand.Rand) []string {
	colors := BaseColors()
	for len(colors) < n {
		var v int
		if rng != nil {
			v = rng.IntN(0xffffff)
		} else {
			v = rand.IntN(0xffffff)
		}
		colors = append(colors, fmt.Sprintf("#%06x", v))
	}
	return colors
}
