package api

import (
	"context"

	"github.com/soaringjerry/dronerecon/internal/idempotency"
	"github.com/soaringjerry/dronerecon/internal/services"
)

// Store is everything the HTTP layer needs from persistence. *db.Store satisfies it.
type Store interface {
	services.FlowStore
	services.ExportStore
	services.RecruitmentStore
	idempotency.Guard

	Ping(ctx context.Context) error
}
