package provenance

import (
	"fmt"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/config"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"
)

// NewVerifierFromConfig creates a ProvenanceVerifier based on the provenance config type.
func NewVerifierFromConfig(cfg config.ProvenanceConfig) (shield.ProvenanceVerifier, error) {
	switch cfg.Type {
	case "c2patool":
		return NewC2PATool(cfg.C2PAToolPath), nil
	case "disabled":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, cfg.Type)
	}
}
