package endpoints

import "github.com/ryanmcguirecode/batchdesk/internal/api"

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Document endpoints
		&IngestEndpoint{},
		&GetDocumentEndpoint{},
		&AssignEndpoint{},

		// Batch endpoints
		&ListBatchesEndpoint{},
		&GetBatchEndpoint{},
		&AcquireEndpoint{},
		&ReleaseEndpoint{},
		&UnlockEndpoint{},
		&HeartbeatEndpoint{},
		&SaveProgressEndpoint{},
		&FinalizeEndpoint{},

		// Maintenance
		&SweepEndpoint{},
	}
}
