package query

import (
	"strconv"
	"strings"

	"github.com/noah-isme/krs-admin-api/internal/models"
)

// Field describes one allow-listed filterable column. CoerceIn restricts
// candidate values of `in` rules for enumerated fields; a nil CoerceIn lets
// the raw array through.
type Field struct {
	Column   string
	CoerceIn func(interface{}) (interface{}, bool)
}

// FieldMap maps logical field names to their physical columns.
type FieldMap map[string]Field

var likeEscaper = strings.NewReplacer("%", `\%`, "_", `\_`)

// EscapeLike neutralises pattern metacharacters in user input before it is
// embedded in an ILIKE pattern.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ApplyRules compiles the advanced filter rules into one composite predicate
// on b. Unknown fields, unknown operators, and rules whose value fails the
// operator's shape contract are dropped without error. Surviving rules are
// combined into a single group by logic (AND unless OR is requested).
func ApplyRules(b *Builder, rules []models.FilterRule, logic string, fields FieldMap) {
	if len(rules) == 0 {
		return
	}

	var parts []string
	for _, rule := range rules {
		field, ok := fields[rule.Field]
		if !ok {
			continue
		}
		cond, ok := compileRule(b, field, rule.Op, rule.Value)
		if !ok {
			continue
		}
		parts = append(parts, cond)
	}
	if len(parts) == 0 {
		return
	}

	joiner := " AND "
	if strings.ToUpper(logic) == "OR" {
		joiner = " OR "
	}
	b.Where("(" + strings.Join(parts, joiner) + ")")
}

func compileRule(b *Builder, field Field, op string, value interface{}) (string, bool) {
	switch op {
	case "contains":
		s, ok := value.(string)
		if !ok || s == "" {
			return "", false
		}
		return field.Column + " ILIKE " + b.Bind("%"+EscapeLike(s)+"%"), true

	case "startsWith":
		s, ok := value.(string)
		if !ok || s == "" {
			return "", false
		}
		return field.Column + " ILIKE " + b.Bind(EscapeLike(s)+"%"), true

	case "equals":
		if value == nil || value == "" {
			return "", false
		}
		return field.Column + " = " + b.Bind(value), true

	case "between":
		bounds, ok := value.([]interface{})
		if !ok || len(bounds) != 2 {
			return "", false
		}
		from, to := bounds[0], bounds[1]
		if from == nil || to == nil || from == "" || to == "" {
			return "", false
		}
		// Bounds are applied as given; an inverted range matches nothing.
		return field.Column + " BETWEEN " + b.Bind(from) + " AND " + b.Bind(to), true

	case "in":
		values, ok := value.([]interface{})
		if !ok || len(values) == 0 {
			return "", false
		}
		if field.CoerceIn != nil {
			coerced := make([]interface{}, 0, len(values))
			for _, v := range values {
				if cv, ok := field.CoerceIn(v); ok {
					coerced = append(coerced, cv)
				}
			}
			if len(coerced) == 0 {
				return "", false
			}
			values = coerced
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = b.Bind(v)
		}
		return field.Column + " IN (" + strings.Join(placeholders, ", ") + ")", true
	}

	return "", false
}

// SemesterIn coerces a candidate `in` element to the {1, 2} semester enum.
func SemesterIn(v interface{}) (interface{}, bool) {
	switch t := v.(type) {
	case float64:
		n := int(t)
		if models.ValidSemester(n) {
			return n, true
		}
	case int:
		if models.ValidSemester(t) {
			return t, true
		}
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err == nil && models.ValidSemester(n) {
			return n, true
		}
	}
	return nil, false
}

// StatusIn coerces a candidate `in` element to the enrollment status enum.
func StatusIn(v interface{}) (interface{}, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	status, ok := models.ParseStatus(s)
	if !ok {
		return nil, false
	}
	return status, true
}
