// Package models holds the data types shared across the ingestion pipeline:
// the raw envelope framing, the decoded event, and the canonical indexed
// document written to OpenSearch.
package models

// EnvelopeHeader is the first line of a Sentry envelope.
type EnvelopeHeader struct {
	EventID string                 `json:"event_id,omitempty"`
	DSN     string                 `json:"dsn,omitempty"`
	SentAt  string                 `json:"sent_at,omitempty"`
	SDK     map[string]interface{} `json:"sdk,omitempty"`
	Trace   map[string]interface{} `json:"trace,omitempty"`
}

// ItemType enumerates the recognized envelope item types.
type ItemType string

const (
	ItemEvent        ItemType = "event"
	ItemTransaction  ItemType = "transaction"
	ItemSession      ItemType = "session"
	ItemAttachment   ItemType = "attachment"
	ItemUserReport   ItemType = "user_report"
	ItemClientReport ItemType = "client_report"
	ItemUnknown      ItemType = "unknown"
)

// EnvelopeItem is one item of an envelope: a header plus its raw payload,
// exactly as received on the wire.
type EnvelopeItem struct {
	Type    ItemType
	Headers map[string]interface{}
	Payload []byte
}

// Envelope is the decoded result of parsing a Sentry envelope body.
type Envelope struct {
	Header EnvelopeHeader
	Items  []EnvelopeItem
}

// Events returns the payloads of items typed "event" or "transaction".
func (e Envelope) Events() [][]byte {
	var out [][]byte
	for _, item := range e.Items {
		if item.Type == ItemEvent || item.Type == ItemTransaction {
			out = append(out, item.Payload)
		}
	}
	return out
}

// Sessions returns the payloads of items typed "session".
func (e Envelope) Sessions() [][]byte {
	var out [][]byte
	for _, item := range e.Items {
		if item.Type == ItemSession {
			out = append(out, item.Payload)
		}
	}
	return out
}

// StackFrame is one frame of an exception stacktrace.
type StackFrame struct {
	Filename    string `json:"filename,omitempty"`
	Lineno      int    `json:"lineno,omitempty"`
	Function    string `json:"function,omitempty"`
	Module      string `json:"module,omitempty"`
	ContextLine string `json:"context_line,omitempty"`
}

// StackTrace holds the frames of an exception.
type StackTrace struct {
	Frames []StackFrame `json:"frames,omitempty"`
}

// ExceptionValue is one entry of RawEvent.Exception.Values.
type ExceptionValue struct {
	Type       string                 `json:"type,omitempty"`
	Value      string                 `json:"value,omitempty"`
	Module     string                 `json:"module,omitempty"`
	Stacktrace *StackTrace            `json:"stacktrace,omitempty"`
	Mechanism  map[string]interface{} `json:"mechanism,omitempty"`
}

// Exception wraps the list of exception values; SDKs emit a list to support
// exception chains, but only the first is used by the transformer.
type Exception struct {
	Values []ExceptionValue `json:"values,omitempty"`
}

// LogEntry carries a templated message and its positional parameters.
type LogEntry struct {
	Message string        `json:"message,omitempty"`
	Params  []interface{} `json:"params,omitempty"`
}

// EventUser is the user sub-object of a RawEvent.
type EventUser struct {
	ID        string `json:"id,omitempty"`
	Email     string `json:"email,omitempty"`
	Username  string `json:"username,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	Name      string `json:"name,omitempty"`
}

// EventRequest is the request sub-object of a RawEvent.
type EventRequest struct {
	URL         string                 `json:"url,omitempty"`
	Method      string                 `json:"method,omitempty"`
	Headers     map[string]interface{} `json:"headers,omitempty"`
	QueryString string                 `json:"query_string,omitempty"`
	Data        interface{}            `json:"data,omitempty"`
	Env         map[string]interface{} `json:"env,omitempty"`
}

// BrowserContext, OSContext, DeviceContext, RuntimeContext mirror the
// "contexts.*" sub-objects of a RawEvent that the transformer extracts.
type BrowserContext struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

type OSContext struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

type DeviceContext struct {
	Family string `json:"family,omitempty"`
	Model  string `json:"model,omitempty"`
	Brand  string `json:"brand,omitempty"`
}

type RuntimeContext struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// EventContexts groups the context sub-objects recognized by the transformer.
type EventContexts struct {
	Browser *BrowserContext `json:"browser,omitempty"`
	OS      *OSContext      `json:"os,omitempty"`
	Device  *DeviceContext  `json:"device,omitempty"`
	Runtime *RuntimeContext `json:"runtime,omitempty"`
}

// SDKInfo identifies the client SDK that produced an event.
type SDKInfo struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// RawEvent is the decoded JSON object of an event/transaction envelope item,
// or of a legacy /store/ body. All fields are optional; unrecognized
// top-level keys survive in Catchall for round-trip debugging.
type RawEvent struct {
	EventID     string                 `json:"event_id,omitempty"`
	Timestamp   interface{}            `json:"timestamp,omitempty"`
	Platform    string                 `json:"platform,omitempty"`
	Level       string                 `json:"level,omitempty"`
	Logger      string                 `json:"logger,omitempty"`
	Transaction string                 `json:"transaction,omitempty"`
	ServerName  string                 `json:"server_name,omitempty"`
	Release     string                 `json:"release,omitempty"`
	Dist        string                 `json:"dist,omitempty"`
	Environment string                 `json:"environment,omitempty"`
	Message     string                 `json:"message,omitempty"`
	LogEntry    *LogEntry              `json:"logentry,omitempty"`
	Exception   *Exception             `json:"exception,omitempty"`
	User        *EventUser             `json:"user,omitempty"`
	Request     *EventRequest          `json:"request,omitempty"`
	Contexts    *EventContexts         `json:"contexts,omitempty"`
	Tags        map[string]interface{} `json:"tags,omitempty"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
	Fingerprint []string               `json:"fingerprint,omitempty"`
	Breadcrumbs map[string]interface{} `json:"breadcrumbs,omitempty"`
	SDK         *SDKInfo               `json:"sdk,omitempty"`
	Modules     map[string]string      `json:"modules,omitempty"`

	// Catchall preserves unrecognized top-level keys so round-trip
	// debugging never silently loses data.
	Catchall map[string]interface{} `json:"-"`
}

// GeoLocation is a lat/lon pair.
type GeoLocation struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Geo holds the GeoIP-derived fields on an IndexedDocument.
type Geo struct {
	CountryCode string       `json:"country_code,omitempty"`
	CountryName string       `json:"country_name,omitempty"`
	RegionName  string       `json:"region_name,omitempty"`
	City        string       `json:"city,omitempty"`
	Location    *GeoLocation `json:"location,omitempty"`
}

// DocUser is the user sub-record of an IndexedDocument; the raw email never
// survives past the transformer (see EmailHash, I3).
type DocUser struct {
	ID        string `json:"id,omitempty"`
	EmailHash string `json:"email_hash,omitempty"`
	Username  string `json:"username,omitempty"`
	IP        string `json:"ip,omitempty"`
}

// DocBrowser, DocOS, DocDevice, DocRuntime mirror the enrichment outputs.
type DocBrowser struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

type DocOS struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

type DocDevice struct {
	Family string `json:"family,omitempty"`
	Model  string `json:"model,omitempty"`
	Brand  string `json:"brand,omitempty"`
}

type DocRuntime struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// DocRequest is the request sub-record copied onto an IndexedDocument.
type DocRequest struct {
	URL    string `json:"url,omitempty"`
	Method string `json:"method,omitempty"`
}

// IndexedDocument is the canonical document written to OpenSearch.
type IndexedDocument struct {
	Timestamp      string          `json:"@timestamp"`
	ReceivedAt     string          `json:"received_at"`
	EventID        string          `json:"event_id"`
	ProjectID      int             `json:"project_id"`
	Level          string          `json:"level,omitempty"`
	Platform       string          `json:"platform,omitempty"`
	Environment    string          `json:"environment,omitempty"`
	Release        string          `json:"release,omitempty"`
	Transaction    string          `json:"transaction,omitempty"`
	ServerName     string          `json:"server_name,omitempty"`
	Logger         string          `json:"logger,omitempty"`
	Message        string          `json:"message,omitempty"`
	ExceptionType  string          `json:"exception_type,omitempty"`
	ExceptionValue string          `json:"exception_value,omitempty"`
	Stacktrace     string          `json:"stacktrace,omitempty"`
	User           *DocUser        `json:"user,omitempty"`
	Geo            *Geo            `json:"geo,omitempty"`
	Browser        *DocBrowser     `json:"browser,omitempty"`
	OS             *DocOS          `json:"os,omitempty"`
	Device         *DocDevice      `json:"device,omitempty"`
	Runtime        *DocRuntime     `json:"runtime,omitempty"`
	Request        *DocRequest     `json:"request,omitempty"`
	SDK            *SDKInfo        `json:"sdk,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	Fingerprint    []string        `json:"fingerprint,omitempty"`

	// RawUserAgent carries the source request's User-Agent header through
	// to the enricher; it is never itself persisted to the document.
	RawUserAgent string `json:"-"`
}

// IngestionStats is the snapshot returned by GET /stats.
type IngestionStats struct {
	Indices []IndexStat `json:"indices"`
}

// IndexStat describes one time-sharded index's document count and size.
type IndexStat struct {
	Index        string `json:"index"`
	DocCount     int64  `json:"doc_count"`
	SizeBytes    int64  `json:"size_bytes"`
}
