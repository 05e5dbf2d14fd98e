package categories

import "github.com/talkcents/talkcents/internal/model"

// Defaults returns the categories every new installation starts with.
func Defaults() []model.Category {
	return []model.Category{
		{Name: "Food & Drinks", Icon: "🍔"},
		{Name: "Shopping", Icon: "🛍️"},
		{Name: "Transport", Icon: "🚃"},
		{Name: model.DefaultCategoryName, Icon: "🗂️"},
	}
}
