// Package shipping converts a destination address and a shipping
// method into a monetary estimate. Distance is great-circle from a
// fixed origin, not routed driving distance; true route accuracy is a
// documented non-goal.
package shipping

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/redstick-goods/storefront/internal/commerce"
	"github.com/redstick-goods/storefront/internal/pkg/cache"
)

// Method is the closed enumeration of shipping methods. Anything else
// fails with commerce.ErrUnknownShippingMethod rather than silently
// defaulting.
type Method string

const (
	MethodStandard  Method = "standard"
	MethodExpress   Method = "express"
	MethodOvernight Method = "overnight"
)

// Rate is the per-method pricing, all in minor currency units:
// Base flat, Weight per pound, Distance per mile.
type Rate struct {
	Base     decimal.Decimal
	Weight   decimal.Decimal
	Distance decimal.Decimal
}

// rates matches the published rate card: standard $5.99 + $0.75/lb +
// $0.01/mi, express $9.99 + $1.25/lb + $0.03/mi, overnight $19.99 +
// $2.00/lb + $0.05/mi.
var rates = map[Method]Rate{
	MethodStandard:  {Base: decimal.NewFromInt(599), Weight: decimal.NewFromInt(75), Distance: decimal.NewFromInt(1)},
	MethodExpress:   {Base: decimal.NewFromInt(999), Weight: decimal.NewFromInt(125), Distance: decimal.NewFromInt(3)},
	MethodOvernight: {Base: decimal.NewFromInt(1999), Weight: decimal.NewFromInt(200), Distance: decimal.NewFromInt(5)},
}

// unitWeightLbs is the packed weight of one item (the 14x10x4 box).
const unitWeightLbs = 1

// Origin is the warehouse in Baton Rouge, LA.
var Origin = LatLng{Lat: 30.4515, Lng: -91.1871}

// LatLng is a geographic coordinate pair.
type LatLng struct {
	Lat float64
	Lng float64
}

// Address is the destination in field form; it is flattened to one
// freeform string for geocoding.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// Freeform renders the address the way the geocoder expects it.
func (a Address) Freeform() string {
	country := a.Country
	if country == "" {
		country = "USA"
	}
	return fmt.Sprintf("%s, %s, %s %s, %s", a.Street, a.City, a.State, a.ZipCode, country)
}

// Geocoder resolves a freeform address to candidate coordinates.
// An empty result set means the address is unknown.
type Geocoder interface {
	Search(ctx context.Context, freeform string) ([]LatLng, error)
}

// Quote is one priced shipping selection.
type Quote struct {
	DistanceMiles int64  `json:"distance_miles"`
	Cost          int64  `json:"cost"`
	Method        Method `json:"method"`
}

// Estimator prices shipping for a destination. The geocoder is called
// at most once per distinct destination within the cache TTL; method
// switches reuse the cached distance.
type Estimator struct {
	geo      Geocoder
	distance cache.Cache
	origin   LatLng
	ttl      time.Duration
}

func NewEstimator(geo Geocoder, distanceCache cache.Cache) *Estimator {
	return &Estimator{
		geo:      geo,
		distance: distanceCache,
		origin:   Origin,
		ttl:      30 * time.Minute,
	}
}

// Quote geocodes the destination (or reuses the cached distance) and
// prices the requested method.
func (e *Estimator) Quote(ctx context.Context, dest Address, method Method, quantity int64) (Quote, error) {
	miles, err := e.Distance(ctx, dest)
	if err != nil {
		return Quote{}, err
	}
	cost, err := Estimate(miles, method, quantity)
	if err != nil {
		return Quote{}, err
	}
	return Quote{DistanceMiles: miles, Cost: cost, Method: method}, nil
}

// Distance returns the whole-mile great-circle distance from the
// origin to the destination, geocoding at most once per address.
func (e *Estimator) Distance(ctx context.Context, dest Address) (int64, error) {
	key := e.distance.GenerateKey("distance", normalizeAddress(dest))

	if cached, err := e.distance.Get(ctx, key); err == nil && cached != "" {
		if miles, perr := strconv.ParseInt(cached, 10, 64); perr == nil {
			return miles, nil
		}
	}

	results, err := e.geo.Search(ctx, dest.Freeform())
	if err != nil {
		return 0, fmt.Errorf("shipping: geocode %q: %w", dest.Freeform(), err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("shipping: geocode %q: %w", dest.Freeform(), commerce.ErrAddressNotFound)
	}

	miles := int64(math.Round(haversineMiles(e.origin, results[0])))

	if err := e.distance.Set(ctx, key, strconv.FormatInt(miles, 10), e.ttl); err != nil {
		// A cache write failure only costs a future re-geocode.
		return miles, nil
	}
	return miles, nil
}

// Estimate prices a method for a distance and quantity:
// base + quantity*unitWeight*weightRate + distance*distanceRate,
// rounded half-up to the nearest minor unit.
func Estimate(distanceMiles int64, method Method, quantity int64) (int64, error) {
	rate, ok := rates[method]
	if !ok {
		return 0, fmt.Errorf("shipping: method %q: %w", method, commerce.ErrUnknownShippingMethod)
	}
	if distanceMiles < 0 || quantity < 0 {
		return 0, fmt.Errorf("shipping: negative distance or quantity: %w", commerce.ErrInvalidLineItem)
	}

	weight := decimal.NewFromInt(quantity * unitWeightLbs)
	miles := decimal.NewFromInt(distanceMiles)

	cost := rate.Base.
		Add(weight.Mul(rate.Weight)).
		Add(miles.Mul(rate.Distance))

	return cost.Round(0).IntPart(), nil
}

// haversineMiles is the great-circle distance between two points.
func haversineMiles(a, b LatLng) float64 {
	const earthRadiusKm = 6371
	const milesPerKm = 0.621371

	deg2rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := deg2rad(b.Lat - a.Lat)
	dLng := deg2rad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(a.Lat))*math.Cos(deg2rad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c * milesPerKm
}

// normalizeAddress builds a stable cache key from the address fields.
func normalizeAddress(a Address) string {
	parts := []string{a.Street, a.City, a.State, a.ZipCode, a.Country}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, "|")
}
