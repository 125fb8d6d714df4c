package domain

import "sort"

// SamplePoint is one candidate location drawn from a composite layer.
// Properties holds the per-band values at the point, keyed by band name.
type SamplePoint struct {
	Lon        float64            `json:"lon"`
	Lat        float64            `json:"lat"`
	Properties map[string]float64 `json:"properties"`
}

// SamplePool is the merged output of all sampling passes. Points keep pass
// order: primary first, then center, then edge strips.
type SamplePool struct {
	Points          []SamplePoint
	PassesCompleted int // number of sample sets that contributed points
}

// Selection is the winning candidate plus scan statistics.
type Selection struct {
	Point               SamplePoint
	CandidatesEvaluated int
}

// maxCandidates caps the score-ranked scan; candidates beyond the top 200
// never win in practice and skipping them keeps selection fast.
const maxCandidates = 200

// SelectOptimal ranks the pooled samples by score, descending, and returns
// the first of the top min(200, pool) candidates inside the boundary. The
// sort is stable, so equal scores keep their pool order and selection is
// deterministic for a given engine response.
func SelectOptimal(pool []SamplePoint, b Boundary) (Selection, error) {
	if len(pool) == 0 {
		return Selection{}, Errorf(KindNoValidSamples, "select", "no valid samples found")
	}

	ranked := make([]SamplePoint, len(pool))
	copy(ranked, pool)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Properties[BandScore] > ranked[j].Properties[BandScore]
	})

	limit := min(maxCandidates, len(ranked))
	for _, c := range ranked[:limit] {
		if b.Contains(c.Lon, c.Lat) {
			return Selection{Point: c, CandidatesEvaluated: limit}, nil
		}
	}
	return Selection{}, Errorf(KindNoValidLocation, "select", "no valid locations found within boundary")
}
