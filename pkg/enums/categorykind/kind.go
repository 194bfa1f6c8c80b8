package categorykind

import "strings"

// Kind classifies a menu category at creation time. Station routing derives
// from the kind, never from the category's localized display name, so
// renaming a category cannot change where its items are prepared.
type Kind struct {
	Name string
}

func (k Kind) Code() string {
	return k.Name
}

func (k Kind) Label() string {
	if len(k.Name) == 0 {
		return ""
	}
	return strings.ToUpper(k.Name[:1]) + k.Name[1:]
}

type Enum struct {
	Food     Kind
	Beverage Kind
	Dessert  Kind
}

var Kinds = Enum{
	Food:     Kind{Name: "food"},
	Beverage: Kind{Name: "beverage"},
	Dessert:  Kind{Name: "dessert"},
}

var All = []Kind{
	Kinds.Food,
	Kinds.Beverage,
	Kinds.Dessert,
}

// ByName returns the kind for a given name, or nil if not found
func ByName(name string) *Kind {
	for _, k := range All {
		if k.Name == name {
			return &k
		}
	}
	return nil
}
