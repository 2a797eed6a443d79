package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"

	"ingrevia/internal/logger"
	"ingrevia/internal/normalize"
	"ingrevia/internal/services"
)

const (
	CatalogSearchToolName      = "catalog_search"
	ProductIngredientsToolName = "product_ingredients"

	defaultToolLimit = 10
)

// CatalogQuery is the argument of the catalog_search tool
type CatalogQuery struct {
	Query    string `json:"query"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// CatalogMatch is one product returned by the catalog tools
type CatalogMatch struct {
	Brand       string   `json:"brand"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	HarmScore   float64  `json:"harm_score"`
	Link        string   `json:"link,omitempty"`
	Ingredients []string `json:"ingredients,omitempty"`
}

// CatalogSearchResult is the output of the catalog_search tool
type CatalogSearchResult struct {
	Total    int            `json:"total"`
	Products []CatalogMatch `json:"products"`
}

// IngredientQuery is the argument of the product_ingredients tool
type IngredientQuery struct {
	Name string `json:"name"`
}

// CatalogSearchTool finds products by name or brand, optionally within one category
func CatalogSearchTool(catalog *services.Catalog) (tool.InvokableTool, error) {
	return utils.InferTool(CatalogSearchToolName, "Search the cosmetics catalog by product name or brand",
		func(ctx context.Context, q CatalogQuery) (CatalogSearchResult, error) {
			logger.Debug().Str("query", q.Query).Str("category", q.Category).Msg("Searching catalog")

			category := normalize.CanonicalCategory(q.Category)
			limit := q.Limit
			if limit <= 0 {
				limit = defaultToolLimit
			}

			result := CatalogSearchResult{Products: []CatalogMatch{}}
			for _, rec := range catalog.SearchProducts(q.Query) {
				if category.Known() && rec.CanonicalCategory != category {
					continue
				}
				result.Total++
				if len(result.Products) < limit {
					result.Products = append(result.Products, CatalogMatch{
						Brand:     rec.Brand,
						Name:      rec.Name,
						Category:  string(rec.CanonicalCategory),
						Price:     rec.Price,
						HarmScore: rec.HarmScore,
						Link:      rec.Link,
					})
				}
			}
			return result, nil
		})
}

// ProductIngredientsTool returns the full ingredient list of the best name match
func ProductIngredientsTool(catalog *services.Catalog) (tool.InvokableTool, error) {
	return utils.InferTool(ProductIngredientsToolName, "Look up the full ingredient list of a product",
		func(ctx context.Context, q IngredientQuery) (CatalogMatch, error) {
			matches := catalog.SearchProducts(q.Name)
			if len(matches) == 0 {
				return CatalogMatch{}, fmt.Errorf("product %q not found", q.Name)
			}
			rec := matches[0]
			for _, m := range matches {
				if strings.EqualFold(strings.TrimSpace(m.Name), strings.TrimSpace(q.Name)) {
					rec = m
					break
				}
			}
			return CatalogMatch{
				Brand:       rec.Brand,
				Name:        rec.Name,
				Category:    string(rec.CanonicalCategory),
				Price:       rec.Price,
				HarmScore:   rec.HarmScore,
				Link:        rec.Link,
				Ingredients: rec.Ingredients,
			}, nil
		})
}

// CatalogTools returns every catalog tool
func CatalogTools(catalog *services.Catalog) ([]tool.BaseTool, error) {
	search, err := CatalogSearchTool(catalog)
	if err != nil {
		return nil, err
	}
	ingredients, err := ProductIngredientsTool(catalog)
	if err != nil {
		return nil, err
	}
	return []tool.BaseTool{search, ingredients}, nil
}

// RunCatalogSearch invokes the catalog_search tool with typed arguments
func RunCatalogSearch(ctx context.Context, t tool.InvokableTool, q CatalogQuery) (CatalogSearchResult, error) {
	var out CatalogSearchResult
	err := runTool(ctx, t, q, &out)
	return out, err
}

// RunProductIngredients invokes the product_ingredients tool with typed arguments
func RunProductIngredients(ctx context.Context, t tool.InvokableTool, name string) (CatalogMatch, error) {
	var out CatalogMatch
	err := runTool(ctx, t, IngredientQuery{Name: name}, &out)
	return out, err
}

func runTool(ctx context.Context, t tool.InvokableTool, args any, out any) error {
	in, err := sonic.MarshalString(args)
	if err != nil {
		return fmt.Errorf("failed to marshal tool arguments: %w", err)
	}
	raw, err := t.InvokableRun(ctx, in)
	if err != nil {
		return err
	}
	if err := sonic.UnmarshalString(raw, out); err != nil {
		return fmt.Errorf("failed to decode tool output: %w", err)
	}
	return nil
}
