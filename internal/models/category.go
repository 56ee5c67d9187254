package models

// Category represents a transaction category. Budgets reference categories
// by name; the category set defines which names are valid for a user.
type Category struct {
	Base
	UserID      uint   `gorm:"not null;uniqueIndex:idx_user_category_name" json:"user_id"`
	Name        string `gorm:"not null;uniqueIndex:idx_user_category_name" json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}
