package pgdb

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/tr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// CategoryRepo реализует репозиторий категорий поверх PostgreSQL.
type CategoryRepo struct {
	pool *pgxpool.Pool
}

func NewCategoryRepo(pool *pgxpool.Pool) *CategoryRepo {
	return &CategoryRepo{pool: pool}
}

// Upsert идемпотентно создаёт категорию по имени и возвращает её идентификатор.
// Должен вызываться внутри транзакции.
func (c *CategoryRepo) Upsert(ctx context.Context, name string) (int64, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return 0, e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		INSERT INTO categories(name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET is_archived = false
		RETURNING id, name, created_at, updated_at, is_archived;
	`

	var model converter.CategoryModel
	if err := tx.QueryRow(ctx, query, name).
		Scan(
			&model.ID, &model.Name, &model.CreatedAt, &model.UpdatedAt, &model.IsArchived,
		); err != nil {
		return 0, e.Wrap(whereami.WhereAmI(), err)
	}

	return model.ID, nil
}
