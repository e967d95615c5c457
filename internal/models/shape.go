package models

import "regexp"

// Literal values inside error messages vary per occurrence; the shape
// collapses them so structurally identical errors share one pattern key.
// UUIDs and timestamps must be replaced before bare numbers or their digit
// runs would be mangled piecewise.
var (
	uuidPattern      = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	timestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}([T ]\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?)?`)
	numberPattern    = regexp.MustCompile(`\d+(\.\d+)?`)
)

// MessageShape normalizes an error message into a pattern key component by
// replacing UUIDs, ISO timestamps and numbers with wildcards.
func MessageShape(message string) string {
	shape := uuidPattern.ReplaceAllString(message, "*")
	shape = timestampPattern.ReplaceAllString(shape, "*")
	shape = numberPattern.ReplaceAllString(shape, "*")
	return shape
}
