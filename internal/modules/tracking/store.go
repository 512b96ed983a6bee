// README: Driver location store backed by Redis; hash per driver plus a GEO index of online drivers.
package tracking

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"mealdrop/internal/types"
)

var ErrNoLocation = errors.New("no location for driver")

const onlineGeoKey = "geo:drivers:online"

func locationKey(driverID types.ID) string {
	return "loc:driver:" + string(driverID)
}

type Store struct {
	redis *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{redis: client}
}

// Upsert replaces the driver's single live record, last write wins. The hash
// is deleted before the write so optional fields absent from this report do
// not survive from an earlier one. The hash expires recordTTL after the last
// report; the GEO index tracks online drivers only.
func (s *Store) Upsert(ctx context.Context, loc *DriverLocation) error {
	fields := map[string]any{
		"lat":          strconv.FormatFloat(loc.Position.Lat, 'f', -1, 64),
		"lng":          strconv.FormatFloat(loc.Position.Lng, 'f', -1, 64),
		"is_online":    boolField(loc.IsOnline),
		"last_updated": strconv.FormatInt(loc.LastUpdated.UnixMilli(), 10),
	}
	setOptFloat(fields, "heading", loc.Heading)
	setOptFloat(fields, "speed", loc.Speed)
	setOptFloat(fields, "accuracy", loc.Accuracy)
	setOptFloat(fields, "battery", loc.BatteryLevel)
	if loc.OrderID != nil {
		fields["order_id"] = string(*loc.OrderID)
	}

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, locationKey(loc.DriverID))
	pipe.HSet(ctx, locationKey(loc.DriverID), fields)
	pipe.Expire(ctx, locationKey(loc.DriverID), recordTTL)
	if loc.IsOnline {
		pipe.GeoAdd(ctx, onlineGeoKey, &redis.GeoLocation{
			Name:      string(loc.DriverID),
			Longitude: loc.Position.Lng,
			Latitude:  loc.Position.Lat,
		})
	} else {
		pipe.ZRem(ctx, onlineGeoKey, string(loc.DriverID))
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) Get(ctx context.Context, driverID types.ID) (*DriverLocation, error) {
	data, err := s.redis.HGetAll(ctx, locationKey(driverID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNoLocation
	}
	return parseLocation(driverID, data)
}

// MarkOffline keeps the final known position queryable until TTL expiry but
// removes the driver from the dispatchable set.
func (s *Store) MarkOffline(ctx context.Context, driverID types.ID) error {
	exists, err := s.redis.Exists(ctx, locationKey(driverID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNoLocation
	}
	pipe := s.redis.Pipeline()
	pipe.HSet(ctx, locationKey(driverID), "is_online", "0")
	pipe.ZRem(ctx, onlineGeoKey, string(driverID))
	_, err = pipe.Exec(ctx)
	return err
}

// OnlineWithin returns online drivers within radiusKm of the origin, closest
// first. GEO members whose hash has expired are pruned as they are found.
func (s *Store) OnlineWithin(ctx context.Context, origin types.Point, radiusKm float64) ([]Candidate, error) {
	names, err := s.redis.GeoSearch(ctx, onlineGeoKey, &redis.GeoSearchQuery{
		Longitude:  origin.Lng,
		Latitude:   origin.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, name := range names {
		driverID := types.ID(name)
		loc, err := s.Get(ctx, driverID)
		if errors.Is(err, ErrNoLocation) {
			_ = s.redis.ZRem(ctx, onlineGeoKey, name).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		if !loc.IsOnline {
			continue
		}
		out = append(out, Candidate{
			DriverID:   driverID,
			Position:   loc.Position,
			DistanceKm: haversineKm(origin.Lat, origin.Lng, loc.Position.Lat, loc.Position.Lng),
		})
	}
	sortByDistance(out, func(c Candidate) float64 { return c.DistanceKm })
	return out, nil
}

func parseLocation(driverID types.ID, data map[string]string) (*DriverLocation, error) {
	lat, err := strconv.ParseFloat(data["lat"], 64)
	if err != nil {
		return nil, err
	}
	lng, err := strconv.ParseFloat(data["lng"], 64)
	if err != nil {
		return nil, err
	}
	ms, err := strconv.ParseInt(data["last_updated"], 10, 64)
	if err != nil {
		return nil, err
	}

	loc := &DriverLocation{
		DriverID:    driverID,
		Position:    types.Point{Lat: lat, Lng: lng},
		IsOnline:    data["is_online"] == "1",
		LastUpdated: time.UnixMilli(ms),
	}
	loc.Heading = optFloat(data, "heading")
	loc.Speed = optFloat(data, "speed")
	loc.Accuracy = optFloat(data, "accuracy")
	loc.BatteryLevel = optFloat(data, "battery")
	if v, ok := data["order_id"]; ok && v != "" {
		id := types.ID(v)
		loc.OrderID = &id
	}
	return loc, nil
}

func setOptFloat(fields map[string]any, key string, v *float64) {
	if v != nil {
		fields[key] = strconv.FormatFloat(*v, 'f', -1, 64)
	}
}

func optFloat(data map[string]string, key string) *float64 {
	v, ok := data[key]
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
