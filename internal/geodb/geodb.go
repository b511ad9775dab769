// Package geodb provides offline address geolocation from MaxMind
// databases, as an alternative to the HTTP geolocation service for hosts
// that cannot or should not reach one.
package geodb

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/baptistax/tunnelprobe/internal/probes"
)

type DB struct {
	city *geoip2.Reader
	asn  *geoip2.Reader
}

// Open loads the city database and, when given, the ASN database. The ASN
// database only contributes the ISP field and is optional.
func Open(cityPath, asnPath string) (*DB, error) {
	city, err := geoip2.Open(cityPath)
	if err != nil {
		return nil, fmt.Errorf("open city database: %w", err)
	}

	db := &DB{city: city}
	if asnPath != "" {
		asn, err := geoip2.Open(asnPath)
		if err != nil {
			city.Close()
			return nil, fmt.Errorf("open asn database: %w", err)
		}
		db.asn = asn
	}
	return db, nil
}

func (d *DB) Lookup(_ context.Context, address string) (probes.GeoLocation, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return probes.GeoLocation{}, fmt.Errorf("invalid address %q", address)
	}

	record, err := d.city.City(ip)
	if err != nil {
		return probes.GeoLocation{}, err
	}

	loc := probes.GeoLocation{
		Address:  address,
		Country:  record.Country.Names["en"],
		City:     record.City.Names["en"],
		Lat:      record.Location.Latitude,
		Lon:      record.Location.Longitude,
		Timezone: record.Location.TimeZone,
	}

	if d.asn != nil {
		if asnRecord, err := d.asn.ASN(ip); err == nil {
			loc.ISP = asnRecord.AutonomousSystemOrganization
		}
	}

	return loc, nil
}

func (d *DB) Close() error {
	if d.asn != nil {
		_ = d.asn.Close()
	}
	return d.city.Close()
}
