package station

import "github.com/google/uuid"

// NewSourceID returns a random identifier for stations without a configured id.
func NewSourceID() string {
	return uuid.NewString()
}
