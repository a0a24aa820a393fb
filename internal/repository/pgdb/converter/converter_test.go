package converter

import (
	"errors"
	"testing"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/shopspring/decimal"
)

func TestProductToEntity(t *testing.T) {
	product, err := ProductToEntity(&ProductModel{
		ID:           "sku-1",
		Name:         "Lamp",
		CategoryName: "Lighting",
		Price:        "1299.90",
		ImageURL:     "s3://product-images/sku-1.jpg",
	})
	if err != nil {
		t.Fatalf("ProductToEntity: %v", err)
	}

	if !product.Price.Equal(decimal.RequireFromString("1299.9")) {
		t.Errorf("price = %s", product.Price)
	}
	if product.Category != "Lighting" || product.ImageURL != "s3://product-images/sku-1.jpg" {
		t.Errorf("unexpected product: %+v", product)
	}
}

func TestProductToEntity_InvalidPrice(t *testing.T) {
	_, err := ProductToEntity(&ProductModel{ID: "sku-1", Price: "n/a"})
	if !errors.Is(err, e.ErrInvalidPrice) {
		t.Fatalf("err = %v, want ErrInvalidPrice", err)
	}
}

func TestProductToModel(t *testing.T) {
	product := domain.NewProduct("sku-2", "Chair", "Furniture", decimal.NewFromInt(50), "oak", "https://img/2.png")

	model := ProductToModel(product, 7)
	if model.Price != "50.00" || model.CategoryID != 7 || model.ID != "sku-2" {
		t.Fatalf("unexpected model: %+v", model)
	}
}

func TestArrProductToEntity_KeepsOrder(t *testing.T) {
	products, err := ArrProductToEntity([]ProductModel{
		{ID: "b", Price: "1"},
		{ID: "a", Price: "2"},
	})
	if err != nil {
		t.Fatalf("ArrProductToEntity: %v", err)
	}
	if products[0].ID != "b" || products[1].ID != "a" {
		t.Fatalf("order changed: %v", products)
	}
}
