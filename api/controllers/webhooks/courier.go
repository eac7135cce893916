package webhooks

import (
	"io"
	"net/http"

	"github.com/threadkart/marketplace-backend/api/responses"
	courierwebhook "github.com/threadkart/marketplace-backend/internal/webhooks/courier"
	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
	"github.com/threadkart/marketplace-backend/pkg/logger"
)

// maxWebhookBody bounds carrier payload size.
const maxWebhookBody = 1 << 20

const carrierName = "courier"

// CourierWebhook ingests carrier status pushes. The carrier retries on
// non-2xx, so every delivery is acknowledged except structurally invalid
// JSON; internal failures are logged and acknowledged to stop retry storms.
func CourierWebhook(svc courierwebhook.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}

		outcome, err := svc.Handle(r.Context(), carrierName, body)
		if outcome == courierwebhook.OutcomeInvalid {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err != nil && logg != nil {
			logg.Error(logg.WithField(r.Context(), "outcome", outcome), "courier webhook processing failed", err)
		}

		responses.WriteSuccess(w, map[string]string{"outcome": outcome})
	}
}
