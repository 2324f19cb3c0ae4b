package lines

import "github.com/harshasoftware/halohome-sub007/internal/ephemeris"

// baseRatings is the traditional weight of each body on each angle, 1
// (most challenging) to 5 (most beneficial), indexed [body][MC, IC, ASC, DSC].
var baseRatings = map[ephemeris.Body][4]int{
	ephemeris.Sun:       {5, 4, 5, 4},
	ephemeris.Moon:      {3, 5, 4, 4},
	ephemeris.Mercury:   {4, 3, 4, 4},
	ephemeris.Venus:     {5, 5, 5, 5},
	ephemeris.Mars:      {3, 2, 3, 2},
	ephemeris.Jupiter:   {5, 5, 5, 5},
	ephemeris.Saturn:    {2, 2, 1, 2},
	ephemeris.Uranus:    {2, 2, 3, 2},
	ephemeris.Neptune:   {2, 2, 2, 2},
	ephemeris.Pluto:     {3, 1, 2, 1},
	ephemeris.Chiron:    {3, 3, 3, 3},
	ephemeris.NorthNode: {4, 3, 4, 4},
}

// BaseRating returns the rating of a body's line on an angle. Unknown
// combinations are neutral.
func BaseRating(body ephemeris.Body, angle Angle) int {
	r, ok := baseRatings[body]
	if !ok || angle < MC || angle > DSC {
		return 3
	}
	return r[angle]
}

// AspectRating adjusts a base rating for an aspect line: harmonious
// aspects add one (max 5), the others subtract one (min 1).
func AspectRating(base int, kind AspectKind) int {
	if kind.Harmonious() {
		return min(base+1, 5)
	}
	return max(base-1, 1)
}
