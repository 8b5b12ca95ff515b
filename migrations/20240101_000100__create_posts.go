package migrations

import (
	"context"

	"db_schema_migrator/internal/migrate"
	"db_schema_migrator/internal/models"
)

func init() {
	migrate.Register("20240101_000100__create_posts",
		func(ctx context.Context, h *migrate.Handle) error {
			return h.CreateModel(ctx, &models.Post{}, models.Post{}.DefineTable)
		},
		func(ctx context.Context, h *migrate.Handle) error {
			return h.Drop(ctx, models.Post{}.TableName())
		},
	)
}
