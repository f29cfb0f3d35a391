package zone

import "github.com/A1taxi-Hosur/cust-app-sub001/internal/geo"

// Classify places p relative to the inner and outer rings. Inactive zones are
// ignored. Points exactly on a ring boundary count as inside it. With either
// ring missing the result is Unclassified, never an error: pricing continues
// without a deadhead surcharge.
func Classify(p geo.Coordinate, zones []Zone) Classification {
	inner, outer, ok := pick(zones)
	if !ok {
		return Unclassified
	}
	if geo.HaversineKm(p, inner.Center) <= inner.RadiusKm {
		return WithinInner
	}
	if geo.HaversineKm(p, outer.Center) <= outer.RadiusKm {
		return BetweenInnerAndOuter
	}
	return OutsideOuter
}

// Hub returns the dispatch hub, which is the center of the inner ring. ok is
// false when the service area is not configured.
func Hub(zones []Zone) (geo.Coordinate, bool) {
	inner, _, ok := pick(zones)
	if !ok {
		return geo.Coordinate{}, false
	}
	return inner.Center, true
}

func pick(zones []Zone) (inner, outer Zone, ok bool) {
	var haveInner, haveOuter bool
	for _, z := range zones {
		if !z.Active {
			continue
		}
		switch z.Name {
		case NameInner:
			inner, haveInner = z, true
		case NameOuter:
			outer, haveOuter = z, true
		}
	}
	return inner, outer, haveInner && haveOuter
}
