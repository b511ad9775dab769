package probes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/baptistax/tunnelprobe/internal/netutil"
)

// GeoLookup resolves one address to a location record. Implemented by the
// HTTP service here and by the offline MaxMind reader in internal/geodb.
type GeoLookup interface {
	Lookup(ctx context.Context, address string) (GeoLocation, error)
}

// HTTPGeoService queries a geolocation service keyed by address path
// segment (the ip-api.com convention).
type HTTPGeoService struct {
	BaseURL string
	Client  *http.Client
}

func (g *HTTPGeoService) Lookup(ctx context.Context, address string) (GeoLocation, error) {
	base := g.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+url.PathEscape(address), nil)
	if err != nil {
		return GeoLocation{}, err
	}
	req.Header.Set("User-Agent", netutil.UserAgent)

	resp, err := g.Client.Do(req)
	if err != nil {
		return GeoLocation{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return GeoLocation{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return GeoLocation{}, fmt.Errorf("http status %d", resp.StatusCode)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return GeoLocation{}, fmt.Errorf("malformed geolocation body: %w", err)
	}
	if status := pickString(raw, "status"); status != "" && status != "success" {
		return GeoLocation{}, fmt.Errorf("geolocation refused: %s", pickString(raw, "message"))
	}

	return GeoLocation{
		Address:  address,
		Country:  pickString(raw, "country", "country_name"),
		City:     pickString(raw, "city", "town"),
		Lat:      pickFloat(raw, "lat", "latitude"),
		Lon:      pickFloat(raw, "lon", "longitude"),
		ISP:      pickString(raw, "isp", "org", "organization", "as_org"),
		Timezone: pickString(raw, "timezone", "time_zone", "tz"),
	}, nil
}
