package guard

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

const (
	maxUsernameLength = 50
	maxEmailLength    = 100
	maxPhoneLength    = 20
)

var (
	htmlTagPattern        = regexp.MustCompile(`<[^>]*>`)
	usernameRejectPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	phoneRejectPattern    = regexp.MustCompile(`[^0-9\s\-()+]`)
)

// StripHTMLTags removes tag-like substrings and keeps the text between them.
func StripHTMLTags(input string) string {
	return htmlTagPattern.ReplaceAllString(input, "")
}

func SanitizeUsername(username string) string {
	cleaned := usernameRejectPattern.ReplaceAllString(StripHTMLTags(username), "")
	return truncate(cleaned, maxUsernameLength)
}

func SanitizeEmail(email string) string {
	return truncate(StripHTMLTags(email), maxEmailLength)
}

func SanitizePhone(phone string) string {
	cleaned := phoneRejectPattern.ReplaceAllString(StripHTMLTags(phone), "")
	return truncate(cleaned, maxPhoneLength)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

// SanitizeUserRecord rebuilds a user record from untrusted input.
// raw may be a decoded JSON object, a UserRecord or raw JSON; anything else yields nil.
func SanitizeUserRecord(raw any) *UserRecord {
	fields, ok := asObject(raw)
	if !ok {
		return nil
	}

	record := &UserRecord{
		ID:       coerceID(fields["id"]),
		Username: SanitizeUsername(stringify(fields["username"])),
		Email:    SanitizeEmail(stringify(fields["email"])),
	}
	if truthy(fields["phone"]) {
		phone := SanitizePhone(stringify(fields["phone"]))
		record.Phone = &phone
	}
	if avatar, ok := fields["avatar"].(string); ok && avatar != "" {
		record.Avatar = &avatar
	}
	if status, ok := asNumber(fields["status"]); ok && status != 0 {
		value := int(status)
		record.Status = &value
	}
	if created, ok := fields["createdAt"].(string); ok {
		record.CreatedAt = created
	}
	if updated, ok := fields["updatedAt"].(string); ok {
		record.UpdatedAt = updated
	}
	return record
}

func asObject(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return v, true
	case json.RawMessage:
		return decodeObject(v)
	case []byte:
		return decodeObject(v)
	case UserRecord:
		return recordFields(&v)
	case *UserRecord:
		if v == nil {
			return nil, false
		}
		return recordFields(v)
	default:
		return nil, false
	}
}

func decodeObject(raw []byte) (map[string]any, bool) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, false
	}
	fields, ok := decoded.(map[string]any)
	return fields, ok
}

func recordFields(record *UserRecord) (map[string]any, bool) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, false
	}
	return decodeObject(raw)
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	default:
		return 0, false
	}
}

func coerceID(value any) int64 {
	n, ok := asNumber(value)
	if !ok {
		return 0
	}
	return int64(n)
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	default:
		if n, ok := asNumber(v); ok {
			return n != 0
		}
		return true
	}
}

// stringify renders value the way a loosely typed payload would be printed; falsy values become "".
func stringify(value any) string {
	if !truthy(value) {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
