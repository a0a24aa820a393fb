package pgdb

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/tr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// ProductRepo реализует репозиторий товаров поверх PostgreSQL.
type ProductRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

// Upsert идемпотентно создаёт или обновляет товар по идентификатору.
// Запись обновляется только при изменении хотя бы одного поля. Возвращает true, если запись создана или изменена.
// Должен вызываться внутри транзакции.
func (p *ProductRepo) Upsert(ctx context.Context, product *domain.Product, categoryID int64) (bool, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	model := converter.ProductToModel(product, categoryID)

	// VALUES ($1, $2, $3, $4, $5, $6) id, name, category_id, price, description, image_url
	query := `
		INSERT INTO products (id, name, category_id, price, description, image_url)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			category_id = EXCLUDED.category_id,
			price = EXCLUDED.price,
			description = EXCLUDED.description,
			image_url = EXCLUDED.image_url,
			is_archived = false,
			updated_at = NOW()
		WHERE
			products.name IS DISTINCT FROM EXCLUDED.name OR
			products.category_id IS DISTINCT FROM EXCLUDED.category_id OR
			products.price IS DISTINCT FROM EXCLUDED.price OR
			products.description IS DISTINCT FROM EXCLUDED.description OR
			products.image_url IS DISTINCT FROM EXCLUDED.image_url OR
			products.is_archived
	`

	tag, err := tx.Exec(ctx, query,
		model.ID, model.Name, model.CategoryID, model.Price, model.Description, model.ImageURL,
	)
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return tag.RowsAffected() > 0, nil
}

// ListAll возвращает все активные товары каталога, упорядоченные по идентификатору.
func (p *ProductRepo) ListAll(ctx context.Context) ([]domain.Product, error) {
	query := `
		SELECT pr.id, pr.name, pr.category_id, cat.name, pr.price::text,
		       pr.description, pr.image_url, pr.created_at, pr.updated_at, pr.is_archived
		FROM products pr
		JOIN categories cat ON pr.category_id = cat.id
		WHERE NOT pr.is_archived
		ORDER BY pr.id
	`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	models := make([]converter.ProductModel, 0)
	for rows.Next() {
		var m converter.ProductModel
		if err := rows.Scan(
			&m.ID, &m.Name, &m.CategoryID, &m.CategoryName, &m.Price,
			&m.Description, &m.ImageURL, &m.CreatedAt, &m.UpdatedAt, &m.IsArchived,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		models = append(models, m)
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	products, err := converter.ArrProductToEntity(models)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return products, nil
}
