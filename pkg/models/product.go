package models

// Product is a read-only snapshot of a product_table row.
type Product struct {
	ProductID      string   `json:"product_id" db:"product_id"`
	CategoryName   string   `json:"category_name" db:"category_name"`
	TotalSales     float64  `json:"total_sales" db:"total_sales"`
	InStock        bool     `json:"in_stock" db:"in_stock"`
	BoughtTogether []string `json:"bought_together,omitempty" db:"bought_together"`
}

// ProductIDs returns the ids of products in their current order.
func ProductIDs(products []Product) []string {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ProductID
	}
	return ids
}
