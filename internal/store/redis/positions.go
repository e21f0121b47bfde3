package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gosuda/shopdesk/internal/domain"
)

// DefaultNearbyLimit caps NearbyCouriers results when the caller passes 0.
const DefaultNearbyLimit = 20

// Positions caches each courier's last known position in a per-tenant GEO set,
// with the report time in a companion hash.
type Positions struct {
	client *redis.Client
}

func NewPositions(client *redis.Client) *Positions {
	return &Positions{client: client}
}

func geoKey(tenantID uuid.UUID) string {
	return "courier_geo:" + tenantID.String()
}

func seenKey(tenantID uuid.UUID) string {
	return "courier_seen:" + tenantID.String()
}

func (p *Positions) Set(ctx context.Context, tenantID, courierID uuid.UUID, pos domain.Position) error {
	member := courierID.String()
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.GeoAdd(ctx, geoKey(tenantID), &redis.GeoLocation{
			Name:      member,
			Longitude: pos.Lng,
			Latitude:  pos.Lat,
		})
		pipe.HSet(ctx, seenKey(tenantID), member, pos.RecordedAt.UTC().Unix())
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis.Positions.Set: %w", err)
	}
	return nil
}

// Get returns the cached position, or domain.ErrNotFound when the courier has
// never reported one.
func (p *Positions) Get(ctx context.Context, tenantID, courierID uuid.UUID) (*domain.Position, error) {
	member := courierID.String()
	pos, err := p.client.GeoPos(ctx, geoKey(tenantID), member).Result()
	if err != nil {
		return nil, fmt.Errorf("redis.Positions.Get: %w", err)
	}
	if len(pos) == 0 || pos[0] == nil {
		return nil, fmt.Errorf("redis.Positions.Get: %w", domain.ErrNotFound)
	}

	out := &domain.Position{Lat: pos[0].Latitude, Lng: pos[0].Longitude}
	seen, err := p.client.HGet(ctx, seenKey(tenantID), member).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("redis.Positions.Get: %w", err)
	default:
		if unix, perr := strconv.ParseInt(seen, 10, 64); perr == nil {
			out.RecordedAt = time.Unix(unix, 0).UTC()
		}
	}
	return out, nil
}

// Nearby returns couriers within radiusKm of the point, nearest first.
func (p *Positions) Nearby(ctx context.Context, tenantID uuid.UUID, lat, lng, radiusKm float64, limit int) ([]domain.NearbyCourier, error) {
	if limit <= 0 {
		limit = DefaultNearbyLimit
	}
	locs, err := p.client.GeoSearchLocation(ctx, geoKey(tenantID), &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis.Positions.Nearby: %w", err)
	}

	out := make([]domain.NearbyCourier, 0, len(locs))
	for _, l := range locs {
		id, err := uuid.Parse(l.Name)
		if err != nil {
			continue
		}
		out = append(out, domain.NearbyCourier{
			CourierID:  id,
			DistanceKm: l.Dist,
			Lat:        l.Latitude,
			Lng:        l.Longitude,
		})
	}
	return out, nil
}

// Remove drops a courier from the cache, e.g. when it is deleted.
func (p *Positions) Remove(ctx context.Context, tenantID, courierID uuid.UUID) error {
	member := courierID.String()
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, geoKey(tenantID), member)
		pipe.HDel(ctx, seenKey(tenantID), member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis.Positions.Remove: %w", err)
	}
	return nil
}
