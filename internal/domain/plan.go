package domain

// SamplingPlan holds the resolution and sample budget chosen for a survey.
type SamplingPlan struct {
	ScaleMeters int
	SampleCount int
	Passes      int
	AreaKm2     float64
}

// PlanSampling maps boundary area to sampling parameters. Small areas get
// fine resolution and fewer passes; large areas trade resolution for an
// extra edge pass.
func PlanSampling(b Boundary) SamplingPlan {
	return planForArea(b.AreaKm2())
}

// planForArea picks the band for an area. Band edges are exclusive: an area
// of exactly 500 km² falls in the 750m band.
func planForArea(area float64) SamplingPlan {
	p := SamplingPlan{AreaKm2: area}
	switch {
	case area < 500:
		p.ScaleMeters, p.SampleCount, p.Passes = 500, 5000, 2
	case area < 2000:
		p.ScaleMeters, p.SampleCount, p.Passes = 750, 8000, 2
	case area < 10000:
		p.ScaleMeters, p.SampleCount, p.Passes = 1000, 12000, 3
	default:
		p.ScaleMeters, p.SampleCount, p.Passes = 1500, 15000, 3
	}
	return p
}
