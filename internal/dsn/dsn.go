// Package dsn implements DSN parsing and public-key authentication for the
// Sentry envelope/store protocol (component C3, the Authenticator).
package dsn

import (
	"crypto/subtle"
	"net/url"
	"strings"
)

// DSN is the parsed form of a Sentry client key, e.g.
// "https://publickey@host/project_id". The gateway never issues DSNs itself;
// it only needs to recognize the public key embedded in inbound requests.
type DSN struct {
	PublicKey string
	Host      string
	ProjectID string
}

// ParseDSN parses a Sentry DSN string into its components.
// Grounded on raven-go's Client.SetDSN, which uses stdlib net/url to split
// the embedded userinfo (public/secret key) from the host and project path.
func ParseDSN(raw string) (DSN, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return DSN{}, err
	}

	var publicKey string
	if u.User != nil {
		publicKey = u.User.Username()
	}

	projectID := ""
	path := strings.Trim(u.Path, "/")
	if idx := strings.LastIndex(path, "/"); idx != -1 {
		projectID = path[idx+1:]
	} else {
		projectID = path
	}

	return DSN{
		PublicKey: publicKey,
		Host:      u.Host,
		ProjectID: projectID,
	}, nil
}

// ExtractPublicKey returns the sentry_key extracted from an X-Sentry-Auth
// header value, falling back to a "sentry_key" query parameter.
//
// Header grammar: an optional case-insensitive "Sentry " prefix, followed by
// a comma- or whitespace-separated sequence of bare key=value tokens. No
// quoting is supported. Recognized-but-unused keys (sentry_version,
// sentry_client, sentry_secret, sentry_timestamp) are parsed and discarded.
func ExtractPublicKey(authHeader string, query url.Values) (string, bool) {
	if authHeader != "" {
		if key, ok := parseAuthHeader(authHeader); ok {
			return key, true
		}
	}
	if key := query.Get("sentry_key"); key != "" {
		return key, true
	}
	return "", false
}

func parseAuthHeader(header string) (string, bool) {
	rest := header
	if len(rest) >= 7 && strings.EqualFold(rest[:7], "Sentry ") {
		rest = rest[7:]
	}

	fields := strings.FieldsFunc(rest, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		if strings.TrimSpace(k) == "sentry_key" {
			key := strings.TrimSpace(v)
			if key != "" {
				return key, true
			}
		}
	}
	return "", false
}

// Policy governs whether an extracted public key is accepted.
type Policy struct {
	Required  bool
	AllowList []string
}

// Validate applies the authenticator's validation policy to an extracted
// key (present, ok=true) or its absence (ok=false).
//
//   - auth_required=false: always passes.
//   - auth_required=true, empty allow-list: passes if a non-empty key was present.
//   - auth_required=true, non-empty allow-list: key must match an allow-list
//     entry via constant-time comparison.
func (p Policy) Validate(key string, ok bool) bool {
	if !p.Required {
		return true
	}
	if !ok || key == "" {
		return false
	}
	if len(p.AllowList) == 0 {
		return true
	}
	for _, allowed := range p.AllowList {
		if subtle.ConstantTimeCompare([]byte(key), []byte(allowed)) == 1 {
			return true
		}
	}
	return false
}
