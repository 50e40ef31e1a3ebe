package domain

import (
	"math"
	"reflect"
	"time"

	"github.com/fryyyyy/zeekr-hass/internal/stats"
	"github.com/fryyyyy/zeekr-hass/internal/vehicle"
)

// Update is one completed refresh cycle: the merged per-VIN snapshots plus
// the bookkeeping consumers render as diagnostics.
type Update struct {
	Data     map[string]vehicle.Status
	Models   map[string]string
	PolledAt time.Time
	Stats    stats.Counts
}

// Changed reports whether cur's vehicle data differs from prev's enough to be
// worth transmitting. Poll timestamps and request counters tick every cycle
// and are ignored; small GPS jitter is tolerated so a parked car does not
// retrigger on every poll.
func Changed(prev, cur *Update) bool {
	if prev == nil && cur == nil {
		return false
	}
	if prev == nil || cur == nil {
		return true
	}
	if len(prev.Data) != len(cur.Data) {
		return true
	}

	for vin, c := range cur.Data {
		p, ok := prev.Data[vin]
		if !ok {
			return true
		}
		if statusChanged(p, c) {
			return true
		}
	}
	return false
}

func statusChanged(prev, cur vehicle.Status) bool {
	pLat, pLatOK := prev.Float("basicVehicleStatus", "position", "latitude")
	pLon, pLonOK := prev.Float("basicVehicleStatus", "position", "longitude")
	cLat, cLatOK := cur.Float("basicVehicleStatus", "position", "latitude")
	cLon, cLonOK := cur.Float("basicVehicleStatus", "position", "longitude")

	if pLatOK && pLonOK && cLatOK && cLonOK {
		const distThr = 10.0 // metres
		if haversineMeters(pLat, pLon, cLat, cLon) < distThr {
			prev = withoutPosition(prev)
			cur = withoutPosition(cur)
		}
	}

	return !reflect.DeepEqual(map[string]any(prev), map[string]any(cur))
}

// withoutPosition returns a copy with the position sub-document removed, so
// tolerated GPS jitter does not count as a change.
func withoutPosition(st vehicle.Status) vehicle.Status {
	out := make(vehicle.Status, len(st))
	for k, v := range st {
		out[k] = v
	}
	basic, ok := out["basicVehicleStatus"].(map[string]any)
	if !ok {
		return out
	}
	basicCopy := make(map[string]any, len(basic))
	for k, v := range basic {
		if k == "position" {
			continue
		}
		basicCopy[k] = v
	}
	out["basicVehicleStatus"] = basicCopy
	return out
}

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const r = 6371000.0 // Earth radius in metres
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	lat1Rad := toRad(lat1)
	lat2Rad := toRad(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return r * c
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
