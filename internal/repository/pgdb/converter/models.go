package converter

import "time"

// ProductModel представляет запись таблицы products вместе с именем категории.
// Цена читается как текст (price::text), чтобы не терять точность NUMERIC.
type ProductModel struct {
	ID           string     `db:"id"`
	Name         string     `db:"name"`
	CategoryID   int64      `db:"category_id"`
	CategoryName string     `db:"category_name"`
	Price        string     `db:"price"`
	Description  string     `db:"description"`
	ImageURL     string     `db:"image_url"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at"`
	IsArchived   bool       `db:"is_archived"`
}

// CategoryModel представляет запись таблицы categories в PostgreSQL.
type CategoryModel struct {
	ID         int64      `db:"id"`
	Name       string     `db:"name"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  *time.Time `db:"updated_at"`
	IsArchived bool       `db:"is_archived"`
}
