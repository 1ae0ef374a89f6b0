package product

import "time"

type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateInput struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// UpdateInput carries a partial update: nil fields keep their stored
// value.
type UpdateInput struct {
	Name  *string  `json:"name"`
	Price *float64 `json:"price"`
}
