// Package converter преобразует модели PostgreSQL в доменные сущности и обратно.
package converter

import (
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/shopspring/decimal"
)

// ProductToEntity преобразует запись products в доменный товар.
func ProductToEntity(model *ProductModel) (*domain.Product, error) {
	price, err := decimal.NewFromString(model.Price)
	if err != nil {
		return nil, e.Join(e.ErrInvalidPrice, err)
	}

	return domain.NewProduct(
		model.ID,
		model.Name,
		model.CategoryName,
		price,
		model.Description,
		model.ImageURL,
	), nil
}

// ProductToModel преобразует доменный товар в запись products.
func ProductToModel(entity *domain.Product, categoryID int64) *ProductModel {
	return &ProductModel{
		ID:           entity.ID,
		Name:         entity.Name,
		CategoryID:   categoryID,
		CategoryName: entity.Category,
		Price:        entity.Price.StringFixed(2),
		Description:  entity.Description,
		ImageURL:     entity.ImageURL,
	}
}

// ArrProductToEntity преобразует набор записей, сохраняя порядок.
func ArrProductToEntity(models []ProductModel) ([]domain.Product, error) {
	result := make([]domain.Product, 0, len(models))
	for i := range models {
		product, err := ProductToEntity(&models[i])
		if err != nil {
			return nil, e.Wrap("product "+models[i].ID, err)
		}
		result = append(result, *product)
	}

	return result, nil
}
