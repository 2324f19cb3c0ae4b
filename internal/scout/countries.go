package scout

import (
	"cmp"
	"slices"
)

// GroupByCountry groups rankings by country. Cities within a country are
// sorted by benefit; countries are ordered by their best city's benefit,
// then by name.
func GroupByCountry(rs []Ranking) []RankedCountry {
	if len(rs) == 0 {
		return nil
	}

	index := make(map[string]int)
	var out []RankedCountry
	for _, r := range rs {
		i, ok := index[r.Candidate.Country]
		if !ok {
			i = len(out)
			index[r.Candidate.Country] = i
			out = append(out, RankedCountry{Country: r.Candidate.Country})
		}
		rc := &out[i]
		rc.Cities = append(rc.Cities, r)
		switch r.Nature {
		case Beneficial:
			rc.BeneficialCount++
		case Challenging:
			rc.ChallengingCount++
		}
	}

	for i := range out {
		slices.SortStableFunc(out[i].Cities, func(a, b Ranking) int {
			if o := cmp.Compare(b.Benefit, a.Benefit); o != 0 {
				return o
			}
			return cmp.Compare(a.Candidate.ID, b.Candidate.ID)
		})
	}
	slices.SortFunc(out, func(a, b RankedCountry) int {
		if o := cmp.Compare(b.Cities[0].Benefit, a.Cities[0].Benefit); o != 0 {
			return o
		}
		return cmp.Compare(a.Country, b.Country)
	})
	return out
}
