package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/fuzzopt/internal/errors"
)

func TestParseRule(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		antecedent  string
		consequents []string
		weight      float64
	}{
		{
			name:        "single proposition",
			text:        "if Temperature is Cold then Heater is High",
			antecedent:  "Temperature is Cold",
			consequents: []string{"Heater is High"},
			weight:      1,
		},
		{
			name:        "and binds tighter than or",
			text:        "if A is x or B is y and C is z then O is o",
			antecedent:  "(A is x or (B is y and C is z))",
			consequents: []string{"O is o"},
			weight:      1,
		},
		{
			name:        "and is left associative",
			text:        "if A is x and B is y and C is z then O is o",
			antecedent:  "((A is x and B is y) and C is z)",
			consequents: []string{"O is o"},
			weight:      1,
		},
		{
			name:        "or is left associative",
			text:        "if A is x or B is y or C is z then O is o",
			antecedent:  "((A is x or B is y) or C is z)",
			consequents: []string{"O is o"},
			weight:      1,
		},
		{
			name:        "parentheses override precedence",
			text:        "if (A is x or B is y) and C is z then O is o",
			antecedent:  "((A is x or B is y) and C is z)",
			consequents: []string{"O is o"},
			weight:      1,
		},
		{
			name:        "negation",
			text:        "if A is not x then O is o",
			antecedent:  "A is not x",
			consequents: []string{"O is o"},
			weight:      1,
		},
		{
			name:        "comma separated consequents",
			text:        "if A is x then O is o, P is p",
			antecedent:  "A is x",
			consequents: []string{"O is o", "P is p"},
			weight:      1,
		},
		{
			name:        "and separated consequents",
			text:        "if A is x then O is o and P is p",
			antecedent:  "A is x",
			consequents: []string{"O is o", "P is p"},
			weight:      1,
		},
		{
			name:        "weight",
			text:        "if A is x then O is o with 0.25",
			antecedent:  "A is x",
			consequents: []string{"O is o"},
			weight:      0.25,
		},
		{
			name:        "extra whitespace",
			text:        "  if\tA is x   then O is o \n",
			antecedent:  "A is x",
			consequents: []string{"O is o"},
			weight:      1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := ParseRule(tt.text)
			require.NoError(t, err)

			assert.Equal(t, tt.antecedent, rule.Antecedent.String())
			require.Len(t, rule.Consequents, len(tt.consequents))
			for i, c := range rule.Consequents {
				assert.Equal(t, tt.consequents[i], c.String())
			}
			assert.Equal(t, tt.weight, rule.Weight)
		})
	}
}

func TestParseRuleErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "missing if", text: "A is x then O is o"},
		{name: "missing then", text: "if A is x O is o"},
		{name: "missing consequent", text: "if A is x then"},
		{name: "missing is", text: "if A x then O is o"},
		{name: "dangling and", text: "if A is x and then O is o"},
		{name: "double connective", text: "if A is x or or B is y then O is o"},
		{name: "keyword as term", text: "if A is and then O is o"},
		{name: "unbalanced open", text: "if (A is x then O is o"},
		{name: "unbalanced close", text: "if A is x) then O is o"},
		{name: "trailing tokens", text: "if A is x then O is o P"},
		{name: "weight above one", text: "if A is x then O is o with 2"},
		{name: "weight missing", text: "if A is x then O is o with"},
		{name: "weight malformed", text: "if A is x then O is o with 0.1.2"},
		{name: "unknown character", text: "if A is x; then O is o"},
		{name: "upper case keyword", text: "IF A is x THEN O is o"},
		{name: "negated consequent", text: "if A is x then O is not o"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := ParseRule(tt.text)
			require.Error(t, err)
			assert.Nil(t, rule)
			assert.True(t, errors.Is(err, errors.ErrConfiguration), "got %v", err)
		})
	}
}

func TestRuleStringRoundTrip(t *testing.T) {
	rule, err := ParseRule("if A is x or B is not y and C is z then O is o, P is p with 0.5")
	require.NoError(t, err)

	again, err := ParseRule(rule.String())
	require.NoError(t, err)
	assert.Equal(t, rule.String(), again.String())
}
