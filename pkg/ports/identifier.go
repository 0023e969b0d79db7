package ports

import (
	"context"

	"github.com/aretw0/cardsort/pkg/domain"
)

// Identifier captures the card at the read station and recognizes it.
// It may take seconds. An explicit recognizer failure is returned as an Identification
// with Failure set; output that cannot be decoded is returned as domain.ErrIdentificationParse.
type Identifier interface {
	Identify(ctx context.Context) (domain.Identification, error)
}
