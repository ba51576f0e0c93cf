package models

import (
	"fmt"
	"strings"
)

// Category is one of the fixed classification labels.
//
// The numeric value of each category is its position in the model's
// output vector. Reordering or adding categories is a breaking change that
// requires a retrained model exported with the same ordering.
type Category int

const (
	CategoryBudget Category = iota
	CategoryShopping
	CategoryReminder
	CategoryCalendar
	CategoryNote
	CategoryQuote
)

// CategoryCount is the number of categories and the required length of
// every score and probability vector.
const CategoryCount = 6

var categoryNames = [CategoryCount]string{
	CategoryBudget:   "budget",
	CategoryShopping: "shopping",
	CategoryReminder: "reminder",
	CategoryCalendar: "calendar",
	CategoryNote:     "note",
	CategoryQuote:    "quote",
}

// Categories returns all categories in index order.
func Categories() []Category {
	out := make([]Category, CategoryCount)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// CategoryFromIndex maps a model output position to its category.
func CategoryFromIndex(index int) (Category, error) {
	if index < 0 || index >= CategoryCount {
		return 0, &ClassificationError{
			Kind: ErrInvalidCategoryIndex,
			Op:   "category",
			Err:  fmt.Errorf("index %d outside [0,%d]", index, CategoryCount-1),
		}
	}
	return Category(index), nil
}

// ParseCategory resolves a category by name, ignoring case and surrounding
// whitespace. Model metadata uses upper-case names ("BUDGET").
func ParseCategory(name string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, n := range categoryNames {
		if n == key {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q (valid: %s)", name, strings.Join(categoryNames[:], ", "))
}

// Index returns the category's fixed position in score vectors.
func (c Category) Index() int {
	return int(c)
}

// Valid reports whether c is one of the registered categories.
func (c Category) Valid() bool {
	return c >= 0 && int(c) < CategoryCount
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// MarshalText encodes the category as its name, so it can be used as a
// JSON object key.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(categoryNames[c]), nil
}

// UnmarshalText decodes a category name.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
