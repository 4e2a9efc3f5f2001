package catalog

// Subcategory is a leaf of the category tree.
type Subcategory struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CategoryID string `json:"categoryId"`
}

// Category groups subcategories.
type Category struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Subcategories []Subcategory `json:"subcategories"`
}

// CategoryAll selects every product in GetProductsByCategory.
const CategoryAll = "all"

var categories = []Category{
	{ID: "luxurious", Name: "Luxurious", Subcategories: []Subcategory{
		{ID: "luxury-formal", Name: "Formal Shoes", CategoryID: "luxurious"},
		{ID: "luxury-boots", Name: "Premium Boots", CategoryID: "luxurious"},
		{ID: "luxury-loafers", Name: "Designer Loafers", CategoryID: "luxurious"},
		{ID: "luxury-heels", Name: "Elegant Heels", CategoryID: "luxurious"},
	}},
	{ID: "classy", Name: "Classy", Subcategories: []Subcategory{
		{ID: "classy-oxford", Name: "Oxford Shoes", CategoryID: "classy"},
		{ID: "classy-flats", Name: "Classic Flats", CategoryID: "classy"},
		{ID: "classy-boots", Name: "Ankle Boots", CategoryID: "classy"},
		{ID: "classy-loafers", Name: "Penny Loafers", CategoryID: "classy"},
	}},
	{ID: "funky", Name: "Funky", Subcategories: []Subcategory{
		{ID: "funky-sneakers", Name: "Bold Sneakers", CategoryID: "funky"},
		{ID: "funky-boots", Name: "Statement Boots", CategoryID: "funky"},
		{ID: "funky-sandals", Name: "Unique Sandals", CategoryID: "funky"},
		{ID: "funky-platforms", Name: "Platform Shoes", CategoryID: "funky"},
	}},
}

// Categories returns a copy of the category tree.
func Categories() []Category {
	out := make([]Category, len(categories))
	for i, c := range categories {
		out[i] = c
		out[i].Subcategories = append([]Subcategory(nil), c.Subcategories...)
	}
	return out
}
