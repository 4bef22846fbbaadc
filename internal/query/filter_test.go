package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/krs-admin-api/internal/models"
)

var testFields = FieldMap{
	"student_name": {Column: "s.name"},
	"semester":     {Column: "e.semester", CoerceIn: SemesterIn},
	"status":       {Column: "e.status", CoerceIn: StatusIn},
	"credits":      {Column: "c.credits"},
}

func TestApplyRulesUnknownFieldAndOpDropped(t *testing.T) {
	b := NewBuilder()
	ApplyRules(b, []models.FilterRule{
		{Field: "no_such_field", Op: "equals", Value: "x"},
		{Field: "student_name", Op: "no_such_op", Value: "x"},
		{Field: "student_name", Op: "contains", Value: "jane"},
	}, "AND", testFields)

	assert.Equal(t, " WHERE (s.name ILIKE $1)", b.Clause())
	assert.Equal(t, []interface{}{"%jane%"}, b.Args())
}

func TestApplyRulesEscapesPatternMetacharacters(t *testing.T) {
	b := NewBuilder()
	ApplyRules(b, []models.FilterRule{
		{Field: "student_name", Op: "startsWith", Value: "100%_a"},
	}, "AND", testFields)

	require.Len(t, b.Args(), 1)
	assert.Equal(t, `100\%\_a%`, b.Args()[0])
}

func TestApplyRulesContainsRequiresNonEmptyString(t *testing.T) {
	for _, value := range []interface{}{"", nil, 42.0, []interface{}{"a"}} {
		b := NewBuilder()
		ApplyRules(b, []models.FilterRule{{Field: "student_name", Op: "contains", Value: value}}, "AND", testFields)
		assert.Equal(t, "", b.Clause(), "value %v should drop the rule", value)
	}
}

func TestApplyRulesEquals(t *testing.T) {
	b := NewBuilder()
	ApplyRules(b, []models.FilterRule{
		{Field: "student_name", Op: "equals", Value: "Jane"},
		{Field: "credits", Op: "equals", Value: nil},
		{Field: "credits", Op: "equals", Value: ""},
	}, "AND", testFields)

	assert.Equal(t, " WHERE (s.name = $1)", b.Clause())
	assert.Equal(t, []interface{}{"Jane"}, b.Args())
}

func TestApplyRulesBetweenKeepsBoundOrder(t *testing.T) {
	// Bounds are taken literally; [5,3] compiles to BETWEEN 5 AND 3.
	b := NewBuilder()
	ApplyRules(b, []models.FilterRule{
		{Field: "credits", Op: "between", Value: []interface{}{5.0, 3.0}},
	}, "AND", testFields)

	assert.Equal(t, " WHERE (c.credits BETWEEN $1 AND $2)", b.Clause())
	assert.Equal(t, []interface{}{5.0, 3.0}, b.Args())
}

func TestApplyRulesBetweenShapeContract(t *testing.T) {
	cases := []interface{}{
		[]interface{}{1.0},
		[]interface{}{1.0, 2.0, 3.0},
		[]interface{}{nil, 2.0},
		[]interface{}{"", 2.0},
		"1,2",
	}
	for _, value := range cases {
		b := NewBuilder()
		ApplyRules(b, []models.FilterRule{{Field: "credits", Op: "between", Value: value}}, "AND", testFields)
		assert.Equal(t, "", b.Clause(), "value %v should drop the rule", value)
	}
}

func TestApplyRulesInCoercesSemester(t *testing.T) {
	b := NewBuilder()
	ApplyRules(b, []models.FilterRule{
		{Field: "semester", Op: "in", Value: []interface{}{"1", "2", "x"}},
	}, "AND", testFields)

	assert.Equal(t, " WHERE (e.semester IN ($1, $2))", b.Clause())
	assert.Equal(t, []interface{}{1, 2}, b.Args())
}

func TestApplyRulesInDropsRuleWhenNoElementSurvives(t *testing.T) {
	b := NewBuilder()
	ApplyRules(b, []models.FilterRule{
		{Field: "semester", Op: "in", Value: []interface{}{"x"}},
		{Field: "status", Op: "in", Value: []interface{}{"bogus", 3.0}},
	}, "AND", testFields)

	assert.Equal(t, "", b.Clause())
	assert.Empty(t, b.Args())
}

func TestApplyRulesInCoercesStatus(t *testing.T) {
	b := NewBuilder()
	ApplyRules(b, []models.FilterRule{
		{Field: "status", Op: "in", Value: []interface{}{"approved", "BOGUS", "Draft"}},
	}, "AND", testFields)

	assert.Equal(t, " WHERE (e.status IN ($1, $2))", b.Clause())
	assert.Equal(t, []interface{}{models.EnrollmentStatusApproved, models.EnrollmentStatusDraft}, b.Args())
}

func TestApplyRulesInRawArrayForNonEnumeratedFields(t *testing.T) {
	b := NewBuilder()
	ApplyRules(b, []models.FilterRule{
		{Field: "credits", Op: "in", Value: []interface{}{2.0, 3.0}},
	}, "AND", testFields)

	assert.Equal(t, " WHERE (c.credits IN ($1, $2))", b.Clause())
	assert.Equal(t, []interface{}{2.0, 3.0}, b.Args())
}

func TestApplyRulesORCombinesWithinOneGroup(t *testing.T) {
	b := NewBuilder()
	b.Where("e.status = " + b.Bind("SUBMITTED"))
	ApplyRules(b, []models.FilterRule{
		{Field: "student_name", Op: "contains", Value: "a"},
		{Field: "credits", Op: "equals", Value: 3.0},
	}, "or", testFields)

	// The OR group stays inside one conjunct next to the quick filter.
	assert.Equal(t, " WHERE e.status = $1 AND (s.name ILIKE $2 OR c.credits = $3)", b.Clause())
}

func TestApplyRulesDefaultsToAND(t *testing.T) {
	b := NewBuilder()
	ApplyRules(b, []models.FilterRule{
		{Field: "student_name", Op: "contains", Value: "a"},
		{Field: "credits", Op: "equals", Value: 3.0},
	}, "bogus", testFields)

	assert.Equal(t, " WHERE (s.name ILIKE $1 AND c.credits = $2)", b.Clause())
}

func TestApplyRulesEmptyOrAllDroppedYieldsNoPredicate(t *testing.T) {
	b := NewBuilder()
	ApplyRules(b, nil, "AND", testFields)
	assert.Equal(t, "", b.Clause())

	b = NewBuilder()
	ApplyRules(b, []models.FilterRule{{Field: "ghost", Op: "equals", Value: "x"}}, "AND", testFields)
	assert.Equal(t, "", b.Clause())
}
