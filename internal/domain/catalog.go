package domain

import "time"

// Category groups a user's app links on the dashboard.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Apps      []App     `json:"apps"`
	CreatedAt time.Time `json:"createdAt"`
}

// App is a link to an external web application. It belongs to exactly one
// category of the same user.
type App struct {
	ID          string    `json:"id"`
	CategoryID  string    `json:"categoryId"`
	Name        string    `json:"name" validate:"required,max=100"`
	Icon        string    `json:"icon" validate:"max=2048"`
	URL         string    `json:"url" validate:"required,weburl"`
	Description string    `json:"description,omitempty" validate:"max=1000"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CategoryUpdate holds the mutable fields of a category.
// A nil Apps leaves the app list untouched; a non-nil Apps replaces it.
type CategoryUpdate struct {
	Name *string
	Apps *[]App
}

// NewCategory returns a category with an empty, non-nil app list.
func NewCategory(id, name string) *Category {
	return &Category{
		ID:        id,
		Name:      name,
		Apps:      []App{},
		CreatedAt: time.Now().UTC(),
	}
}
