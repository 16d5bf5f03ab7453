// Package enrich implements the Enricher (component C5): GeoIP and
// User-Agent derived fields added to an already-transformed IndexedDocument.
// Both steps are best-effort -- lookup or parse failures are swallowed and
// never fail the document.
package enrich

import (
	"net"
	"strings"

	"github.com/mssola/user_agent"
	"github.com/oschwald/geoip2-golang"

	"github.com/sentrel/sentrel/internal/models"
)

// GeoReader is the subset of *geoip2.Reader the enricher depends on, so
// tests can substitute a fake without a real MaxMind database file.
type GeoReader interface {
	City(ip net.IP) (*geoip2.City, error)
}

// Enricher applies GeoIP and User-Agent enrichment to IndexedDocuments.
type Enricher struct {
	geo GeoReader
}

// New returns an Enricher. geo may be nil, in which case GeoIP enrichment
// is skipped entirely (mirrors the "enable_geoip=false" configuration path).
func New(geo GeoReader) *Enricher {
	return &Enricher{geo: geo}
}

// Enrich applies geo enrichment then user-agent enrichment, in that order,
// and returns the (mutated) document. Never fails.
func (e *Enricher) Enrich(doc models.IndexedDocument) models.IndexedDocument {
	doc = e.enrichGeo(doc)
	doc = enrichUserAgent(doc)
	return doc
}

func (e *Enricher) enrichGeo(doc models.IndexedDocument) models.IndexedDocument {
	if e.geo == nil || doc.User == nil || doc.User.IP == "" {
		return doc
	}
	if isPrivateOrLocal(doc.User.IP) {
		return doc
	}

	ip := net.ParseIP(doc.User.IP)
	if ip == nil {
		return doc
	}

	record, err := e.geo.City(ip)
	if err != nil || record == nil {
		return doc
	}

	geo := &models.Geo{
		CountryCode: record.Country.IsoCode,
		CountryName: record.Country.Names["en"],
		City:        record.City.Names["en"],
	}
	if len(record.Subdivisions) > 0 {
		geo.RegionName = record.Subdivisions[len(record.Subdivisions)-1].Names["en"]
	}
	if record.Location.Latitude != 0 || record.Location.Longitude != 0 {
		geo.Location = &models.GeoLocation{
			Lat: record.Location.Latitude,
			Lon: record.Location.Longitude,
		}
	}

	if geo.CountryCode != "" || geo.CountryName != "" || geo.City != "" || geo.RegionName != "" || geo.Location != nil {
		doc.Geo = geo
	}
	return doc
}

// isPrivateOrLocal implements the enricher's coarse private-address check.
// It deliberately treats the whole 172.0.0.0/8 range as private (matching
// the prefix-string check the prototype used, "172.") rather than the
// correct RFC1918 172.16.0.0/12 -- kept as-is because downstream config and
// dashboards were built against that coarser behavior.
func isPrivateOrLocal(ip string) bool {
	if ip == "" || ip == "localhost" {
		return true
	}
	switch {
	case strings.HasPrefix(ip, "10."),
		strings.HasPrefix(ip, "172."),
		strings.HasPrefix(ip, "192.168."),
		strings.HasPrefix(ip, "127."),
		strings.HasPrefix(ip, "::1"),
		strings.HasPrefix(ip, "fe80:"):
		return true
	}
	return false
}

// enrichUserAgent implements rule: only fill browser/os/device when not
// already present, parsing the User-Agent header captured from the source
// request at transform time.
func enrichUserAgent(doc models.IndexedDocument) models.IndexedDocument {
	if doc.Browser != nil && doc.OS != nil {
		return doc
	}
	if doc.RawUserAgent == "" {
		return doc
	}

	ua := user_agent.New(doc.RawUserAgent)

	if doc.Browser == nil {
		if name, version := ua.Browser(); name != "" {
			doc.Browser = &models.DocBrowser{Name: name, Version: version}
		}
	}

	if doc.OS == nil {
		if osInfo := ua.OSInfo(); osInfo.Name != "" {
			doc.OS = &models.DocOS{Name: osInfo.Name, Version: osInfo.Version}
		}
	}

	if doc.Device == nil {
		if ua.Mobile() {
			doc.Device = &models.DocDevice{Family: "Mobile"}
		}
	}

	return doc
}
