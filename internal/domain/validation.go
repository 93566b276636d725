package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinNameLength is the minimum length (in runes) of a normalized name.
const MinNameLength = 3

// BgColors is the fixed set of card color tags.
var BgColors = []string{
	"white", "orange", "yellow", "lime", "emerald", "green",
	"cyan", "sky", "blue", "violet", "pink",
}

// IsBgColor reports whether c is one of BgColors.
func IsBgColor(c string) bool {
	for _, v := range BgColors {
		if v == c {
			return true
		}
	}
	return false
}

// NormalizeName trims the name, collapses inner whitespace and upper-cases the
// first letter of the name and of every segment that follows a '-' or '/'
// separator. Other letters keep their case.
func NormalizeName(name string) string {
	collapsed := strings.Join(strings.Fields(name), " ")

	var b strings.Builder
	b.Grow(len(collapsed))
	upperNext := true
	for _, r := range collapsed {
		switch {
		case r == '-' || r == '/':
			upperNext = true
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune(r)
		case upperNext && unicode.IsLetter(r):
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		default:
			upperNext = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

func validateName(field, name string) (string, error) {
	n := NormalizeName(name)
	if utf8.RuneCountInString(n) < MinNameLength {
		return "", &ErrValidation{Field: field, Message: "required, at least 3 characters"}
	}
	return n, nil
}

// ValidateEntryInput normalizes the name and checks the constraints of a
// budget or loan. It returns the normalized input.
func ValidateEntryInput(kind Kind, in EntryInput) (EntryInput, error) {
	if !kind.Valid() {
		return in, &ErrValidation{Field: "kind", Message: "unknown entry kind"}
	}
	name, err := validateName("name", in.Name)
	if err != nil {
		return in, err
	}
	in.Name = name
	if in.Capacity.IsNegative() {
		return in, &ErrValidation{Field: kind.CapacityField(), Message: "must not be negative"}
	}
	if !IsBgColor(in.BgColor) {
		return in, &ErrValidation{Field: "bgColor", Message: "unknown color"}
	}
	if kind == KindBudget {
		in.IsAgainst = false
	}
	return in, nil
}

// ValidateItemInput normalizes and checks a new child item.
func ValidateItemInput(in ItemInput) (ItemInput, error) {
	name, err := validateName("name", in.Name)
	if err != nil {
		return in, err
	}
	in.Name = name
	if in.Amount.IsNegative() {
		return in, &ErrValidation{Field: "amount", Message: "must not be negative"}
	}
	return in, nil
}

// ValidateItemUpdates returns the rows that carry an ID, normalized. Any
// invalid row rejects the whole batch.
func ValidateItemUpdates(items []ItemUpdate) ([]ItemUpdate, error) {
	out := make([]ItemUpdate, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.ID) == "" {
			continue
		}
		name, err := validateName("items.name", it.Name)
		if err != nil {
			return nil, err
		}
		if it.Amount.IsNegative() {
			return nil, &ErrValidation{Field: "items.amount", Message: "must not be negative"}
		}
		it.Name = name
		out = append(out, it)
	}
	return out, nil
}

// ValidateTodoName normalizes and checks a todo name.
func ValidateTodoName(name string) (string, error) {
	return validateName("name", name)
}
