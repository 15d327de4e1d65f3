// Package geo resolves a client IP to a country and city using a MaxMind
// City database.
package geo

import (
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type Location struct {
	Country string
	City    string
}

// Locator looks up an IP. Implementations return the zero Location when the
// address is unknown or unparsable.
type Locator interface {
	Lookup(ip string) Location
}

// Nop is used when no database is configured.
type Nop struct{}

func (Nop) Lookup(string) Location { return Location{} }

type MaxMind struct {
	reader *geoip2.Reader
}

func Open(path string) (*MaxMind, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open geoip database %s", path)
	}
	return &MaxMind{reader: r}, nil
}

func (m *MaxMind) Lookup(ip string) Location {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}
	}
	rec, err := m.reader.City(parsed)
	if err != nil {
		log.WithField("ip", ip).WithError(err).Debug("GeoIP lookup failed.")
		return Location{}
	}
	return Location{Country: rec.Country.IsoCode, City: rec.City.Names["en"]}
}

func (m *MaxMind) Close() error {
	return m.reader.Close()
}
