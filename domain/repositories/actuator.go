package repositories

import (
	"context"

	"github.com/Airegasm/SwellDreams-sub006/domain/entities"
)

// Actuator abstracts any plug driver brand. Implementations must accept
// descriptors for device keys they never saw registered.
type Actuator interface {
	TurnOn(ctx context.Context, descriptor entities.DeviceDescriptor) error
	TurnOff(ctx context.Context, descriptor entities.DeviceDescriptor) error
	GetState(ctx context.Context, descriptor entities.DeviceDescriptor) (entities.ActuationState, error)
}
