// Package domain models power-plant site surveys over remote satellite and
// climate raster data.
//
// # Data Sources
//
// All raster data lives in a remote geospatial engine; the service never
// downloads imagery. Composites are described declaratively ([LayerSpec],
// [CombineSpec]) and evaluated server-side. The datasets in use:
//
//	MODIS/061/MCD12Q1           land cover classification (band LC_Type1),
//	                            used as the vegetation penalty layer.
//	ECMWF/ERA5_LAND/DAILY_AGGR  daily aggregated ERA5-Land reanalysis. Wind
//	                            surveys derive speed from the 10m u/v
//	                            components; solar surveys fall back to its
//	                            surface_net_solar_radiation_sum band.
//	NASA/POWER/DAILY_AGGR       primary solar dataset (ALLSKY_SFC_SW_DWN,
//	                            all-sky surface shortwave downward flux).
//	MODIS/061/MOD11A1           daytime land surface temperature
//	                            (LST_Day_1km), used by point estimates.
//	ECMWF/ERA5/DAILY            daily ERA5 reanalysis, used by wind point
//	                            estimates.
//
// # Date Handling
//
// Clients send dates in any of four formats, tried in order:
//
//	2006-01-02, 2006/01/02, 02-01-2006, 02/01/2006
//
// Year-first formats win ties, so "2023-03-15" is never read day-first.
// Normalized dates are always ISO-8601 (YYYY-MM-DD).
//
// # Boundary Conventions
//
// Boundaries are WGS-84 corner pairs. latMin >= latMax is rejected outright.
// lonMin > lonMax is tolerated when the implied span is under 180 degrees:
// the corners were almost certainly entered in the wrong order, so they are
// swapped. Wider inverted spans are kept as-is because they describe a
// legitimate antimeridian crossing.
//
// Area is approximated on a flat-earth projection:
//
//	|east-west| * |north-south| * 111.32*|cos(latCenter)| * 110.54  [km²]
//
// which is accurate enough to pick sampling parameters (see [PlanSampling]).
//
// # Scoring
//
// Every survey composite carries three bands: the plant's signal band
// (solar_value, wind_speed), the vegetation land-cover class, and
//
//	score = signal - vegetation * 0.05
//
// The vegetation term penalizes forested or cultivated cells so the
// selector prefers open terrain at equal signal strength.
//
// # Selection
//
// Pooled sample points are ranked by score, descending, with ties keeping
// their pool order. Only the top min(200, pool) candidates are scanned; the
// first one inside the requested boundary wins. Sample coordinates can fall
// slightly outside the boundary because the engine samples whole pixels, so
// the containment check is not redundant.
package domain
