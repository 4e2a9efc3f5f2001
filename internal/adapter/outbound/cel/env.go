package cel

import (
	"path/filepath"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"

	"github.com/SoleStyle/solestyle/internal/domain/catalog"
)

// NewProductEnvironment creates a CEL environment for product filters. It includes:
//   - Product variables: id, name, price, original_price, discount, category, subcategory,
//     description, sizes, colors, in_stock, rating, reviews
//   - Custom functions: glob, has_size, has_color
//
// original_price is 0 and discount is 0 when the product has no original price.
func NewProductEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(),
		ext.Sets(),

		cel.Variable("id", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("price", cel.DoubleType),
		cel.Variable("original_price", cel.DoubleType),
		cel.Variable("discount", cel.DoubleType),
		cel.Variable("category", cel.StringType),
		cel.Variable("subcategory", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("sizes", cel.ListType(cel.StringType)),
		cel.Variable("colors", cel.ListType(cel.StringType)),
		cel.Variable("in_stock", cel.BoolType),
		cel.Variable("rating", cel.DoubleType),
		cel.Variable("reviews", cel.IntType),

		// glob: shell-style pattern match, e.g. glob("*boots", subcategory)
		cel.Function("glob",
			cel.Overload("glob_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(pattern, name ref.Val) ref.Val {
					p := pattern.Value().(string)
					n := name.Value().(string)
					matched, _ := filepath.Match(p, n)
					return types.Bool(matched)
				}),
			),
		),

		// has_size: exact size lookup, e.g. has_size(sizes, "9")
		cel.Function("has_size",
			cel.Overload("has_size_list_string",
				[]*cel.Type{cel.ListType(cel.StringType), cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(list, size ref.Val) ref.Val {
					return types.Bool(containsFold(list, size.Value().(string), false))
				}),
			),
		),

		// has_color: case-insensitive color lookup, e.g. has_color(colors, "black")
		cel.Function("has_color",
			cel.Overload("has_color_list_string",
				[]*cel.Type{cel.ListType(cel.StringType), cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(list, color ref.Val) ref.Val {
					return types.Bool(containsFold(list, color.Value().(string), true))
				}),
			),
		),
	)
}

func containsFold(list ref.Val, want string, fold bool) bool {
	native, err := list.ConvertToNative(stringSliceType)
	if err != nil {
		return false
	}
	for _, s := range native.([]string) {
		if s == want || (fold && strings.EqualFold(s, want)) {
			return true
		}
	}
	return false
}

// BuildActivation maps a product onto the environment's variables.
func BuildActivation(p catalog.Product) map[string]any {
	orig, discount := 0.0, 0.0
	if p.OriginalPrice != nil {
		orig = *p.OriginalPrice
		if orig > p.Price {
			discount = orig - p.Price
		}
	}
	sizes := p.Sizes
	if sizes == nil {
		sizes = []string{}
	}
	colors := p.Colors
	if colors == nil {
		colors = []string{}
	}
	return map[string]any{
		"id":             p.ID,
		"name":           p.Name,
		"price":          p.Price,
		"original_price": orig,
		"discount":       discount,
		"category":       p.Category,
		"subcategory":    p.Subcategory,
		"description":    p.Description,
		"sizes":          sizes,
		"colors":         colors,
		"in_stock":       p.InStock,
		"rating":         p.Rating,
		"reviews":        int64(p.Reviews),
	}
}
