package detector

import (
	"time"
)

// structuralType names the structural type of v using the vocabulary shared
// with schema authors: number, string, boolean, array, object, date, null.
func structuralType(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return "number"
	case time.Time:
		return "date"
	case string:
		if isDateString(t) {
			return "date"
		}
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return "object"
	}
}

// matchesType reports whether v satisfies the expected structural type.
// A date expectation accepts both time.Time and parseable date strings;
// a string expectation accepts any string, date-shaped or not.
func matchesType(expected string, v interface{}) bool {
	actual := structuralType(v)
	if actual == expected {
		return true
	}
	return expected == "string" && actual == "date" && isString(v)
}

func isString(v interface{}) bool {
	_, ok := v.(string)
	return ok
}

// isDateString reports whether s parses as an ISO date or timestamp.
func isDateString(s string) bool {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
