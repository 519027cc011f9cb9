package ports

import (
	"context"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// Notifier reporta el resultado de un ciclo al operador.
type Notifier interface {
	Notify(ctx context.Context, report domain.CycleReport) error
}
