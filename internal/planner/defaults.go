package planner

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// InferDefaultValue guesses a safe substitute for a missing field from its
// name. The guesses are deliberately bland; a wrong-but-typed value keeps
// the workflow moving where a null would not.
func InferDefaultValue(fieldName string) interface{} {
	lower := strings.ToLower(fieldName)
	switch {
	case containsAny(lower, "date", "time", "timestamp", "_at"):
		return time.Now().UTC().Format(time.RFC3339)
	case containsAny(lower, "count", "amount", "total", "quantity", "num_", "budget", "limit"):
		return 0
	case containsAny(lower, "is_", "has_", "enabled", "active", "flag"):
		return true
	case strings.HasSuffix(lower, "_id") || lower == "id" || strings.HasSuffix(lower, "uuid"):
		return uuid.NewString()
	case containsAny(lower, "items", "list", "tags", "values", "entries"):
		return []interface{}{}
	case containsAny(lower, "name", "title", "label", "description"):
		return "unspecified"
	default:
		return ""
	}
}

// InferCoercion names the transformation from an actual structural type to
// the expected one. Empty string means no known coercion.
func InferCoercion(expectedType, actualType string) string {
	if expectedType == actualType {
		return ""
	}
	switch expectedType {
	case "number":
		return "toNumber"
	case "string":
		return "toString"
	case "boolean":
		return "toBoolean"
	case "array":
		return "toArray"
	case "object":
		return "toObject"
	case "date":
		return "toDate"
	default:
		return ""
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
