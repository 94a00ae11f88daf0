package georisk

import (
	"context"
	"strings"
	"sync"
)

// Geolocator resolves an IP address to an ISO 3166-1 alpha-2 country code.
// An empty code with a nil error means the country is unknown.
type Geolocator interface {
	Country(ctx context.Context, ip string) (string, error)
}

// EdgeGeolocator trusts the country the CDN edge resolved for the
// connecting client. It holds no database of its own; the edge already did
// the lookup before the request reached us.
type EdgeGeolocator struct{}

func (EdgeGeolocator) Country(_ context.Context, _ string) (string, error) {
	return "", nil
}

// StaticGeolocator maps IPs to countries from a fixed table. Used in tests
// and in deployments that pin the geo database at startup.
type StaticGeolocator struct {
	mu    sync.RWMutex
	table map[string]string
}

func NewStaticGeolocator(table map[string]string) *StaticGeolocator {
	normalized := make(map[string]string, len(table))
	for ip, cc := range table {
		normalized[ip] = strings.ToUpper(cc)
	}
	return &StaticGeolocator{table: normalized}
}

func (g *StaticGeolocator) Country(_ context.Context, ip string) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.table[ip], nil
}

func (g *StaticGeolocator) Set(ip, country string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.table[ip] = strings.ToUpper(country)
}
