package domain

import (
	"github.com/shopspring/decimal"
)

// Product описывает товар каталога. Идентификатор непрозрачен для ядра поиска.
type Product struct {
	ID          string
	Name        string
	Category    string
	Price       decimal.Decimal
	Description string
	ImageURL    string // http(s):// или s3://bucket/key
}

func NewProduct(id, name, category string, price decimal.Decimal, description, imageURL string) *Product {
	return &Product{
		ID:          id,
		Name:        name,
		Category:    category,
		Price:       price,
		Description: description,
		ImageURL:    imageURL,
	}
}
