package kpi

import (
	"math"
	"sort"

	"kpi-service/internal/model"
)

type pair struct {
	left  int64
	right int64
}

// outerJoin merges two count maps over the union of their keys. A key missing
// on one side reads as zero there.
func outerJoin[K comparable](left, right map[K]int64) map[K]pair {
	joined := make(map[K]pair, len(left)+len(right))
	for k, v := range left {
		p := joined[k]
		p.left = v
		joined[k] = p
	}
	for k, v := range right {
		p := joined[k]
		p.right = v
		joined[k] = p
	}
	return joined
}

// UnionJoin builds the zone table for one window, ordered by zone id.
func UnionJoin(orders, riders map[string]int64) []model.ZoneWindowAggregate {
	joined := outerJoin(orders, riders)
	zones := make([]string, 0, len(joined))
	for zone := range joined {
		zones = append(zones, zone)
	}
	sort.Strings(zones)

	result := make([]model.ZoneWindowAggregate, 0, len(zones))
	for _, zone := range zones {
		p := joined[zone]
		result = append(result, model.ZoneWindowAggregate{
			ZoneID:           zone,
			OrderCount:       p.left,
			UniqueRiderCount: p.right,
		})
	}
	return result
}

func Pressure(orders, riders int64) float64 {
	return Round(Ratio(orders, riders), 2)
}

func SupplyGap(table []model.ZoneWindowAggregate) []model.SupplyGap {
	result := make([]model.SupplyGap, 0, len(table))
	for _, row := range table {
		result = append(result, model.SupplyGap{
			ZoneID:   row.ZoneID,
			Orders:   row.OrderCount,
			Riders:   row.UniqueRiderCount,
			Gap:      row.OrderCount - row.UniqueRiderCount,
			Pressure: Pressure(row.OrderCount, row.UniqueRiderCount),
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Gap > result[j].Gap
	})
	return result
}

func TopZones(table []model.ZoneWindowAggregate, limit int) []model.ZonePressure {
	result := make([]model.ZonePressure, 0, len(table))
	for _, row := range table {
		result = append(result, model.ZonePressure{
			ZoneID:   row.ZoneID,
			Orders:   row.OrderCount,
			Riders:   row.UniqueRiderCount,
			Pressure: Pressure(row.OrderCount, row.UniqueRiderCount),
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Pressure > result[j].Pressure
	})
	if limit >= 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func FulfillmentRisk(table []model.ZoneWindowAggregate) []model.FulfillmentRisk {
	result := make([]model.FulfillmentRisk, 0, len(table))
	for _, row := range table {
		result = append(result, model.FulfillmentRisk{
			ZoneID: row.ZoneID,
			Orders: row.OrderCount,
			Riders: row.UniqueRiderCount,
			Risk:   Pressure(row.OrderCount, row.UniqueRiderCount),
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Risk > result[j].Risk
	})
	return result
}

// Reposition keeps zones whose gap is strictly above threshold.
func Reposition(table []model.ZoneWindowAggregate, threshold int64) []model.Reposition {
	result := make([]model.Reposition, 0)
	for _, row := range table {
		gap := row.OrderCount - row.UniqueRiderCount
		if gap <= threshold {
			continue
		}
		result = append(result, model.Reposition{
			ZoneID:       row.ZoneID,
			Orders:       row.OrderCount,
			Riders:       row.UniqueRiderCount,
			NeededRiders: gap,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].NeededRiders > result[j].NeededRiders
	})
	return result
}

// Acceleration is the fractional change from prev to now. With no previous
// demand it is 1 when there is demand now and 0 otherwise.
func Acceleration(now, prev int64) float64 {
	if prev > 0 {
		return float64(now-prev) / float64(prev)
	}
	if now > 0 {
		return 1.0
	}
	return 0.0
}

// Surge scores every zone seen in any of the three maps. The score is derived
// from unrounded acceleration and pressure.
func Surge(now, prev, riders map[string]int64) []model.SurgePrediction {
	orders := outerJoin(now, prev)
	supply := outerJoin(now, riders)

	zones := make([]string, 0, len(supply))
	for zone := range supply {
		zones = append(zones, zone)
	}
	for zone := range orders {
		if _, ok := supply[zone]; !ok {
			zones = append(zones, zone)
		}
	}
	sort.Strings(zones)

	result := make([]model.SurgePrediction, 0, len(zones))
	for _, zone := range zones {
		cur := orders[zone].left
		before := orders[zone].right
		available := supply[zone].right

		accel := Acceleration(cur, before)
		ratio := Ratio(cur, available)

		needed := cur - available
		if needed < 0 {
			needed = 0
		}

		result = append(result, model.SurgePrediction{
			ZoneID:                zone,
			OrdersNow:             cur,
			OrdersPrev:            before,
			Riders:                available,
			DemandAccelerationPct: Round(accel*100, 1),
			Pressure:              Round(ratio, 2),
			SurgeScore:            Round(math.Abs(accel)*ratio*10, 1),
			RidersNeeded:          needed,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].SurgeScore > result[j].SurgeScore
	})
	return result
}
