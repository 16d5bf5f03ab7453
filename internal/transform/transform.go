// Package transform implements the Transformer (component C4): a pure
// function from a decoded RawEvent to the canonical IndexedDocument. It
// performs no I/O and is deterministic aside from the received_at wall
// clock and a generated event_id when the source omitted one.
package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sentrel/sentrel/internal/models"
	"github.com/sentrel/sentrel/internal/sentryevent"
)

// Transform normalizes a RawEvent into the canonical IndexedDocument for
// project projectID. envelopeHeaderID is the id carried on the envelope
// header, used as a fallback when the event itself has none (I1).
func Transform(event models.RawEvent, projectID int, envelopeHeaderID string) models.IndexedDocument {
	ts := sentryevent.NormalizeTimestamp(event.Timestamp)

	doc := models.IndexedDocument{
		Timestamp:  ts.Format("2006-01-02T15:04:05.000Z"),
		ReceivedAt: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		EventID:    sentryevent.EnsureEventID(event.EventID, envelopeHeaderID),
		ProjectID:  projectID,

		Level:       event.Level,
		Platform:    event.Platform,
		Environment: firstNonEmpty(event.Environment, "production"),
		Release:     event.Release,
		Transaction: event.Transaction,
		ServerName:  event.ServerName,
		Logger:      event.Logger,
	}

	doc.Message = extractMessage(event)

	if excType, excValue, ok := firstException(event); ok {
		doc.ExceptionType = excType
		doc.ExceptionValue = excValue
	}
	doc.Stacktrace = extractStacktrace(event)

	doc.User = transformUser(event.User)
	doc.Browser, doc.OS, doc.Device, doc.Runtime = extractContexts(event.Contexts)
	doc.Request = transformRequest(event.Request)
	doc.Tags = stringifyTags(event.Tags)
	doc.SDK = transformSDK(event.SDK)
	doc.Fingerprint = computeFingerprint(event, doc.ExceptionType)

	if event.Request != nil {
		doc.RawUserAgent = userAgentFromRequest(event.Request)
	}

	return doc
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// extractMessage implements rule 4: priority exception -> message -> logentry.
func extractMessage(event models.RawEvent) string {
	if excType, excValue, ok := firstException(event); ok {
		if excValue != "" {
			return fmt.Sprintf("%s: %s", excType, excValue)
		}
		return excType
	}

	if event.Message != "" {
		return event.Message
	}

	if event.LogEntry != nil && event.LogEntry.Message != "" {
		return formatLogEntry(event.LogEntry)
	}

	return "No message"
}

func formatLogEntry(entry *models.LogEntry) string {
	if !strings.Contains(entry.Message, "%s") || len(entry.Params) == 0 {
		return entry.Message
	}
	args := make([]interface{}, len(entry.Params))
	copy(args, entry.Params)

	formatted := sprintfPositional(entry.Message, args)
	return formatted
}

// sprintfPositional substitutes "%s" placeholders with the given params in
// order. On any failure (more placeholders than params) it falls back to
// the raw message, matching the Transformer's "on format failure, use the
// raw message" rule.
func sprintfPositional(message string, args []interface{}) string {
	var b strings.Builder
	argIdx := 0
	i := 0
	for i < len(message) {
		if i+1 < len(message) && message[i] == '%' && message[i+1] == 's' {
			if argIdx >= len(args) {
				return message
			}
			b.WriteString(fmt.Sprint(args[argIdx]))
			argIdx++
			i += 2
			continue
		}
		b.WriteByte(message[i])
		i++
	}
	return b.String()
}

func firstException(event models.RawEvent) (excType, excValue string, ok bool) {
	if event.Exception == nil || len(event.Exception.Values) == 0 {
		return "", "", false
	}
	v := event.Exception.Values[0]
	return v.Type, v.Value, true
}

// extractStacktrace implements rule 6: frames rendered in reverse order.
func extractStacktrace(event models.RawEvent) string {
	if event.Exception == nil || len(event.Exception.Values) == 0 {
		return ""
	}
	exc := event.Exception.Values[0]
	if exc.Stacktrace == nil || len(exc.Stacktrace.Frames) == 0 {
		return ""
	}

	var lines []string
	frames := exc.Stacktrace.Frames
	for i := len(frames) - 1; i >= 0; i-- {
		frame := frames[i]
		qualified := frame.Function
		if frame.Module != "" {
			qualified = frame.Module + "." + frame.Function
		}
		lines = append(lines, fmt.Sprintf(`  File "%s", line %d, in %s`, frame.Filename, frame.Lineno, qualified))
		if frame.ContextLine != "" {
			lines = append(lines, "    "+strings.TrimSpace(frame.ContextLine))
		}
	}
	return strings.Join(lines, "\n")
}

// transformUser implements rule 7, including the PII hash of I3.
func transformUser(user *models.EventUser) *models.DocUser {
	if user == nil {
		return nil
	}
	out := &models.DocUser{
		ID:       user.ID,
		Username: user.Username,
		IP:       user.IPAddress,
	}
	if user.Email != "" {
		out.EmailHash = hashEmail(user.Email)
	}
	if out.ID == "" && out.EmailHash == "" && out.Username == "" && out.IP == "" {
		return nil
	}
	return out
}

// hashEmail implements I3: first 16 hex chars of sha256(lower(email)).
func hashEmail(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(email)))
	return hex.EncodeToString(sum[:])[:16]
}

// extractContexts implements rule 8.
func extractContexts(contexts *models.EventContexts) (*models.DocBrowser, *models.DocOS, *models.DocDevice, *models.DocRuntime) {
	if contexts == nil {
		return nil, nil, nil, nil
	}

	var browser *models.DocBrowser
	if contexts.Browser != nil && (contexts.Browser.Name != "" || contexts.Browser.Version != "") {
		browser = &models.DocBrowser{Name: contexts.Browser.Name, Version: contexts.Browser.Version}
	}

	var os *models.DocOS
	if contexts.OS != nil && (contexts.OS.Name != "" || contexts.OS.Version != "") {
		os = &models.DocOS{Name: contexts.OS.Name, Version: contexts.OS.Version}
	}

	var device *models.DocDevice
	if contexts.Device != nil && (contexts.Device.Family != "" || contexts.Device.Model != "" || contexts.Device.Brand != "") {
		device = &models.DocDevice{Family: contexts.Device.Family, Model: contexts.Device.Model, Brand: contexts.Device.Brand}
	}

	var runtime *models.DocRuntime
	if contexts.Runtime != nil && (contexts.Runtime.Name != "" || contexts.Runtime.Version != "") {
		runtime = &models.DocRuntime{Name: contexts.Runtime.Name, Version: contexts.Runtime.Version}
	}

	return browser, os, device, runtime
}

// transformRequest implements rule 9.
func transformRequest(req *models.EventRequest) *models.DocRequest {
	if req == nil || (req.URL == "" && req.Method == "") {
		return nil
	}
	return &models.DocRequest{URL: req.URL, Method: req.Method}
}

// stringifyTags implements rule 10: verbatim, non-string values coerced.
func stringifyTags(tags map[string]interface{}) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'g', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// transformSDK implements rule 11.
func transformSDK(sdk *models.SDKInfo) *models.SDKInfo {
	if sdk == nil || (sdk.Name == "" && sdk.Version == "") {
		return nil
	}
	return &models.SDKInfo{Name: sdk.Name, Version: sdk.Version}
}

// computeFingerprint implements rule 12 / invariant I6.
func computeFingerprint(event models.RawEvent, exceptionType string) []string {
	if len(event.Fingerprint) > 0 {
		return event.Fingerprint
	}

	var components []string
	if exceptionType != "" {
		components = append(components, exceptionType)
	}
	if event.Transaction != "" {
		components = append(components, event.Transaction)
	} else if event.Logger != "" {
		components = append(components, event.Logger)
	}
	if event.Platform != "" {
		components = append(components, event.Platform)
	}

	if len(components) == 0 {
		return []string{"{{ default }}"}
	}
	return components
}

func userAgentFromRequest(req *models.EventRequest) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, "user-agent") {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
