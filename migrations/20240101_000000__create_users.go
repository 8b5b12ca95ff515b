package migrations

import (
	"context"

	"db_schema_migrator/internal/migrate"
	"db_schema_migrator/internal/models"
)

func init() {
	migrate.Register("20240101_000000__create_users",
		func(ctx context.Context, h *migrate.Handle) error {
			return h.CreateModel(ctx, &models.User{}, models.User{}.DefineTable)
		},
		func(ctx context.Context, h *migrate.Handle) error {
			return h.Drop(ctx, models.User{}.TableName())
		},
	)
}
