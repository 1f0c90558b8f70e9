package pipeline

import "github.com/google/uuid"

// IDSource hands out job IDs. Injectable so tests can pin them.
type IDSource interface {
	NextID() (string, error)
}

// UUIDSource generates random UUIDv4 job IDs.
type UUIDSource struct{}

func (UUIDSource) NextID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var _ IDSource = UUIDSource{}
