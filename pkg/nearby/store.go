// Package nearby is the geospatial pool of the proximity matching.
package nearby

import (
	"context"
	"errors"
	"math"
	"slices"
	"time"

	"github.com/layzeechat/layzee/pkg/network"
	"github.com/rs/xid"
)

var (
	ErrNoRecord = errors.New("no nearby record")
	ErrNoMatch  = errors.New("nobody nearby")
)

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lng) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

type Record struct {
	Id           network.Uid
	Point        Point
	LastActiveAt time.Time
	// Busy is set while the participant talks to a proximity partner.
	Busy bool
	// Claim is the token of the claim holding the record, empty when free.
	Claim string
}

// Store keeps the records of participants who joined the pool.
// Records older than the store TTL are gone for every operation.
type Store interface {
	// Upsert places the record of id at p and refreshes its activity time.
	// A new record is free, an existing one keeps its claim.
	Upsert(ctx context.Context, id network.Uid, p Point) error
	// Get returns the record of id or ErrNoRecord.
	Get(ctx context.Context, id network.Uid) (Record, error)
	// ClaimNearest finds the nearest free record within radius meters
	// from the record of id and puts both of them under one new claim.
	// The returned record of the partner carries the claim token.
	// It returns ErrNoRecord for unknown id and ErrNoMatch when nobody qualifies
	// or the record of id is busy itself. Records of exclude are never claimed.
	ClaimNearest(ctx context.Context, id network.Uid, radius float64, exclude ...network.Uid) (Record, error)
	// Release frees the records still held by the claim.
	Release(ctx context.Context, claim string) error
	// Remove deletes the record of id and returns it, ErrNoRecord if there was none.
	Remove(ctx context.Context, id network.Uid) (Record, error)
	// Expire deletes records inactive for longer than the TTL.
	Expire(ctx context.Context) (int, error)
	Close() error
}

func newClaim() string { return xid.New().String() }

const earthRadius = 6371000.0

// Distance returns the great-circle distance in meters.
func Distance(a, b Point) float64 {
	dLat := rad(b.Lat - a.Lat)
	dLng := rad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Lat))*math.Cos(rad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadius * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// bounds returns a lat/lng box that contains the circle around p.
func bounds(p Point, radius float64) (minLat, maxLat, minLng, maxLng float64) {
	dLat := radius / earthRadius * 180 / math.Pi
	minLat, maxLat = math.Max(p.Lat-dLat, -90), math.Min(p.Lat+dLat, 90)
	cos := math.Cos(rad(p.Lat))
	if cos < 1e-9 || maxLat >= 90 || minLat <= -90 {
		return minLat, maxLat, -180, 180
	}
	dLng := dLat / cos
	if dLng >= 180 {
		return minLat, maxLat, -180, 180
	}
	minLng, maxLng = p.Lng-dLng, p.Lng+dLng
	// not worth splitting the box at the antimeridian
	if minLng < -180 || maxLng > 180 {
		return minLat, maxLat, -180, 180
	}
	return minLat, maxLat, minLng, maxLng
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }

// nearest picks the closest candidate within radius, ties go to the older activity.
func nearest(from Record, radius float64, candidates []Record, exclude []network.Uid) (Record, bool) {
	var best Record
	bestDist := math.Inf(1)
	for _, c := range candidates {
		if c.Id == from.Id || c.Busy || slices.Contains(exclude, c.Id) {
			continue
		}
		d := Distance(from.Point, c.Point)
		if d > radius {
			continue
		}
		if d < bestDist || (d == bestDist && c.LastActiveAt.Before(best.LastActiveAt)) {
			best, bestDist = c, d
		}
	}
	return best, !math.IsInf(bestDist, 1)
}
