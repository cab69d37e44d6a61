package worker

import (
	"encoding/json"

	"github.com/nordkit/commerce-core/internal/domain"
)

func decodePayload(env domain.Envelope, out any) error {
	return json.Unmarshal(env.Payload, out)
}
