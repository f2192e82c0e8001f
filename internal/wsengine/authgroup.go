package wsengine

import "sync"

// AuthGroup serializes the handshake+identify phase across every engine
// instance sharing it (production and sandbox run concurrently in the
// same process but must not overlap IDENTIFY, per platform limits on
// concurrent identify).
type AuthGroup struct {
	mu sync.Mutex
}

// NewAuthGroup builds an empty AuthGroup.
func NewAuthGroup() *AuthGroup {
	return &AuthGroup{}
}
