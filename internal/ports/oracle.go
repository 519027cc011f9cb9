package ports

import (
	"context"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// Oracle produce una estimación de probabilidad para la pregunta de un
// mercado. Es una caja negra: puede fallar o agotar el timeout, y el caller
// debe tratar cualquier fallo como "sin opinión" para ese mercado en este
// ciclo — nunca como error fatal.
type Oracle interface {
	Estimate(ctx context.Context, question string, marketPrice float64, description string) (domain.Estimate, error)
}
