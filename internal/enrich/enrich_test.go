package enrich

import (
	"errors"
	"net"
	"testing"

	"github.com/oschwald/geoip2-golang"

	"github.com/sentrel/sentrel/internal/models"
)

type fakeGeoReader struct {
	city *geoip2.City
	err  error
}

func (f fakeGeoReader) City(ip net.IP) (*geoip2.City, error) {
	return f.city, f.err
}

func TestEnrichGeoSkippedWithoutReader(t *testing.T) {
	e := New(nil)
	doc := models.IndexedDocument{User: &models.DocUser{IP: "8.8.8.8"}}
	out := e.Enrich(doc)
	if out.Geo != nil {
		t.Fatalf("expected no geo without a reader, got %+v", out.Geo)
	}
}

func TestEnrichGeoSkippedForPrivateIP(t *testing.T) {
	e := New(fakeGeoReader{city: &geoip2.City{}})
	doc := models.IndexedDocument{User: &models.DocUser{IP: "192.168.1.5"}}
	out := e.Enrich(doc)
	if out.Geo != nil {
		t.Fatalf("expected private IP to skip geo lookup, got %+v", out.Geo)
	}
}

func TestEnrichGeoPopulatesFields(t *testing.T) {
	city := &geoip2.City{}
	city.Country.IsoCode = "US"
	city.Country.Names = map[string]string{"en": "United States"}
	city.City.Names = map[string]string{"en": "Mountain View"}
	city.Location.Latitude = 37.4
	city.Location.Longitude = -122.0

	e := New(fakeGeoReader{city: city})
	doc := models.IndexedDocument{User: &models.DocUser{IP: "8.8.8.8"}}
	out := e.Enrich(doc)

	if out.Geo == nil {
		t.Fatal("expected geo to be populated")
	}
	if out.Geo.CountryCode != "US" || out.Geo.CountryName != "United States" || out.Geo.City != "Mountain View" {
		t.Fatalf("unexpected geo: %+v", out.Geo)
	}
	if out.Geo.Location == nil || out.Geo.Location.Lat != 37.4 {
		t.Fatalf("unexpected location: %+v", out.Geo.Location)
	}
}

func TestEnrichGeoLookupErrorSwallowed(t *testing.T) {
	e := New(fakeGeoReader{err: errors.New("boom")})
	doc := models.IndexedDocument{User: &models.DocUser{IP: "8.8.8.8"}}
	out := e.Enrich(doc)
	if out.Geo != nil {
		t.Fatalf("expected nil geo on lookup error, got %+v", out.Geo)
	}
}

func TestEnrichUserAgentSkippedWhenAlreadyPresent(t *testing.T) {
	doc := models.IndexedDocument{
		Browser:      &models.DocBrowser{Name: "Chrome"},
		OS:           &models.DocOS{Name: "Linux"},
		RawUserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
	}
	out := enrichUserAgent(doc)
	if out.Browser.Name != "Chrome" {
		t.Fatalf("expected existing browser preserved, got %+v", out.Browser)
	}
}

func TestEnrichUserAgentParsesWhenMissing(t *testing.T) {
	doc := models.IndexedDocument{
		RawUserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	}
	out := enrichUserAgent(doc)
	if out.Browser == nil {
		t.Fatal("expected browser to be parsed")
	}
	if out.OS == nil {
		t.Fatal("expected os to be parsed")
	}
}

func TestEnrichUserAgentNoHeaderIsNoop(t *testing.T) {
	doc := models.IndexedDocument{}
	out := enrichUserAgent(doc)
	if out.Browser != nil || out.OS != nil {
		t.Fatalf("expected no enrichment without a user agent, got %+v", out)
	}
}

func TestIsPrivateOrLocal(t *testing.T) {
	cases := map[string]bool{
		"10.0.0.1":      true,
		"172.16.0.5":    true,
		"172.200.0.5":   true,
		"192.168.1.1":   true,
		"127.0.0.1":     true,
		"::1":           true,
		"fe80::1":       true,
		"localhost":     true,
		"8.8.8.8":       false,
		"203.0.113.195": false,
	}
	for ip, want := range cases {
		if got := isPrivateOrLocal(ip); got != want {
			t.Errorf("isPrivateOrLocal(%q) = %v, want %v", ip, got, want)
		}
	}
}
