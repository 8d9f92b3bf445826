package schema

import "fmt"

// Category identifies one of the fixed configuration domains.
type Category string

const (
	CategorySite    Category = "site"
	CategorySEO     Category = "seo"
	CategoryTheme   Category = "theme"
	CategoryContent Category = "content"
)

// Categories returns every known category in stable order.
func Categories() []Category {
	return []Category{CategorySite, CategorySEO, CategoryTheme, CategoryContent}
}

// ParseCategory converts a string into a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategorySite, CategorySEO, CategoryTheme, CategoryContent:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown config category %q", s)
}

// Valid reports whether the category is a member of the closed set.
func (c Category) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}

func (c Category) String() string {
	return string(c)
}
