package model

// Category labels a transaction. Icons are display-only.
type Category struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// DefaultCategoryName is used when a record carries no usable category.
const DefaultCategoryName = "Others"
