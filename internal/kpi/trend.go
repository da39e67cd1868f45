package kpi

import (
	"sort"
	"time"

	"kpi-service/internal/model"
)

// MinuteBucket floors t to the start of its UTC minute.
func MinuteBucket(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

func OrdersTrend(counts []model.ZoneBucketCount) []model.OrdersTrendPoint {
	merged := bucketMap(counts)

	result := make([]model.OrdersTrendPoint, 0, len(merged))
	for k, v := range merged {
		result = append(result, model.OrdersTrendPoint{Bucket: k.bucket, ZoneID: k.zone, Orders: v})
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Bucket.Equal(result[j].Bucket) {
			return result[i].Bucket.Before(result[j].Bucket)
		}
		return result[i].ZoneID < result[j].ZoneID
	})
	return result
}

type zoneBucket struct {
	zone   string
	bucket time.Time
}

func bucketMap(counts []model.ZoneBucketCount) map[zoneBucket]int64 {
	m := make(map[zoneBucket]int64, len(counts))
	for _, c := range counts {
		m[zoneBucket{zone: c.ZoneID, bucket: MinuteBucket(c.Bucket)}] += c.Count
	}
	return m
}

// PeakGap joins minute-bucketed orders and riders on (zone, bucket) and keeps
// the largest gap each zone reached. On equal gaps the earliest bucket wins.
func PeakGap(orders, riders []model.ZoneBucketCount) []model.PeakGap {
	joined := outerJoin(bucketMap(orders), bucketMap(riders))

	peaks := make(map[string]model.PeakGap)
	for k, p := range joined {
		gap := p.left - p.right
		best, ok := peaks[k.zone]
		if !ok || gap > best.PeakGap || (gap == best.PeakGap && k.bucket.Before(best.PeakBucket)) {
			peaks[k.zone] = model.PeakGap{ZoneID: k.zone, PeakGap: gap, PeakBucket: k.bucket}
		}
	}

	result := make([]model.PeakGap, 0, len(peaks))
	for _, p := range peaks {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].PeakGap != result[j].PeakGap {
			return result[i].PeakGap > result[j].PeakGap
		}
		return result[i].ZoneID < result[j].ZoneID
	})
	return result
}
