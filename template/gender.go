package template

import (
	"fmt"
	"strings"

	"github.com/meemee/studio"
)

// Gender selects the set of gender-derived placeholder values.
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

// Placeholder names recognised by the resolver.
const (
	PlaceholderName              = "name"
	PlaceholderGender            = "gender"
	PlaceholderGenderText        = "gender_text"
	PlaceholderGenderChild       = "gender_child"
	PlaceholderGenderPronoun     = "gender_pronoun"
	PlaceholderGenderPossessive  = "gender_possessive"
	PlaceholderGenderObject      = "gender_object"
	PlaceholderGenderDescription = "gender_full_description"
)

// Placeholders lists every placeholder name the resolver fills.
var Placeholders = []string{
	PlaceholderName,
	PlaceholderGender,
	PlaceholderGenderText,
	PlaceholderGenderChild,
	PlaceholderGenderPronoun,
	PlaceholderGenderPossessive,
	PlaceholderGenderObject,
	PlaceholderGenderDescription,
}

// genderTables is computed once per variant.
var genderTables = map[Gender]Table{
	Male: {
		PlaceholderGender:            string(Male),
		PlaceholderGenderText:        "мальчик",
		PlaceholderGenderChild:       "boy",
		PlaceholderGenderPronoun:     "He",
		PlaceholderGenderPossessive:  "his",
		PlaceholderGenderObject:      "him",
		PlaceholderGenderDescription: "полный мальчик славянской национальности",
	},
	Female: {
		PlaceholderGender:            string(Female),
		PlaceholderGenderText:        "девочка",
		PlaceholderGenderChild:       "girl",
		PlaceholderGenderPronoun:     "She",
		PlaceholderGenderPossessive:  "her",
		PlaceholderGenderObject:      "her",
		PlaceholderGenderDescription: "полная девочка славянской национальности",
	},
}

// ParseGender validates a gender variant.
func ParseGender(s string) (Gender, error) {
	g := Gender(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := genderTables[g]; !ok {
		return "", fmt.Errorf("%w: %q", studio.ErrUnknownGender, s)
	}
	return g, nil
}

// NewTable returns the full replacement table for a display name and
// gender variant.
func NewTable(displayName string, g Gender) (Table, error) {
	base, ok := genderTables[g]
	if !ok {
		return nil, fmt.Errorf("%w: %q", studio.ErrUnknownGender, g)
	}
	t := make(Table, len(base)+1)
	for k, v := range base {
		t[k] = v
	}
	t[PlaceholderName] = displayName
	return t, nil
}
