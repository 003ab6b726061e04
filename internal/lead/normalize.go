// ABOUTME: Normalization of heterogeneous webhook rows into Lead values
// ABOUTME: Maps the field-name variants different automation flows emit

package lead

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field-name variants seen across automation flows, checked in order. Matching
// is case-insensitive after stripping underscores and spaces, so "full_name",
// "Full Name" and "fullName" all collapse to the same key.
var fieldAliases = map[string][]string{
	"id":      {"id", "rowid", "recordid"},
	"name":    {"name", "fullname", "leadname", "contactname"},
	"email":   {"email", "emailaddress", "mail"},
	"phone":   {"phone", "phonenumber", "tel", "telephone", "mobile"},
	"company": {"company", "companyname", "organization", "organisation"},
	"message": {"message", "notes", "comment", "comments", "description"},
	"source":  {"source", "leadsource", "channel", "utmsource"},
	"time":    {"submittedat", "createdat", "timestamp", "date", "created"},
}

// Normalize converts one webhook row into a Lead, tolerating the field-name
// and timestamp-format variants different flows produce. Unknown fields are
// ignored; missing fields stay zero.
func Normalize(row map[string]any) Lead {
	folded := make(map[string]string, len(row))
	for key, value := range row {
		folded[foldKey(key)] = stringify(value)
	}

	pick := func(canonical string) string {
		for _, alias := range fieldAliases[canonical] {
			if v, ok := folded[alias]; ok && v != "" {
				return v
			}
		}
		return ""
	}

	return Lead{
		ID:          pick("id"),
		Name:        pick("name"),
		Email:       pick("email"),
		Phone:       pick("phone"),
		Company:     pick("company"),
		Message:     pick("message"),
		Source:      pick("source"),
		SubmittedAt: parseTimestamp(pick("time")),
	}
}

// NormalizeAll converts a slice of webhook rows, dropping rows that carry
// neither a name nor an email (header rows, automation noise).
func NormalizeAll(rows []map[string]any) []Lead {
	leads := make([]Lead, 0, len(rows))
	for _, row := range rows {
		l := Normalize(row)
		if l.Name == "" && l.Email == "" {
			continue
		}
		leads = append(leads, l)
	}
	return leads
}

// foldKey lowercases a key and strips separators so naming-convention
// variants compare equal.
func foldKey(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, "_", "")
	key = strings.ReplaceAll(key, "-", "")
	key = strings.ReplaceAll(key, " ", "")
	return key
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		// JSON numbers decode as float64; render integers without a decimal
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

// parseTimestamp accepts the formats automation systems commonly emit:
// RFC3339, date-time without zone, bare dates, and epoch seconds or
// milliseconds. Unparseable input yields the zero time.
func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}

	if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// Heuristic: values this large are milliseconds
		if epoch > 1e12 {
			return time.UnixMilli(epoch).UTC()
		}
		return time.Unix(epoch, 0).UTC()
	}

	return time.Time{}
}
