package withdrawals

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/threadkart/marketplace-backend/api/controllers"
	"github.com/threadkart/marketplace-backend/api/responses"
	"github.com/threadkart/marketplace-backend/api/validators"
	internalwithdrawals "github.com/threadkart/marketplace-backend/internal/withdrawals"
	"github.com/threadkart/marketplace-backend/pkg/db/models"
	"github.com/threadkart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
	"github.com/threadkart/marketplace-backend/pkg/logger"
	"github.com/threadkart/marketplace-backend/pkg/pagination"
)

func withdrawalCursor(wd models.Withdrawal) pagination.Cursor {
	return pagination.Cursor{CreatedAt: wd.CreatedAt, ID: wd.ID}
}

type requestPayload struct {
	AmountCents int64           `json:"amount_cents" validate:"required,gt=0"`
	Method      string          `json:"method" validate:"required"`
	Destination json.RawMessage `json:"destination" validate:"required"`
}

// Request opens a seller payout request against the available balance.
func Request(svc internalwithdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, _, err := controllers.CallerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req requestPayload
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePayoutMethod(strings.TrimSpace(req.Method))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout method"))
			return
		}

		withdrawal, err := svc.Request(r.Context(), internalwithdrawals.RequestInput{
			SellerID:    sellerID,
			AmountCents: req.AmountCents,
			Method:      method,
			Destination: req.Destination,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, withdrawal)
	}
}

// Mine lists the caller's withdrawal requests.
func Mine(svc internalwithdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, _, err := controllers.CallerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := controllers.PaginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForSeller(r.Context(), sellerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, controllers.PageOf(list, params, withdrawalCursor))
	}
}

// Balance returns the seller's withdrawable balance, net of open requests.
func Balance(svc internalwithdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, _, err := controllers.CallerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		available, err := svc.AvailableBalance(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"available_cents": available})
	}
}

// AdminList pages all withdrawal requests, optionally filtered by status.
func AdminList(svc internalwithdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := controllers.PaginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.WithdrawalStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseWithdrawalStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		list, err := svc.ListForAdmin(r.Context(), status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, controllers.PageOf(list, params, withdrawalCursor))
	}
}

type decisionPayload struct {
	Action string `json:"action" validate:"required,oneof=approve reject process"`
	Reason string `json:"reason" validate:"max=500"`
}

// AdminDecide applies an admin decision: approve, reject, or process
// (dispatch the payout).
func AdminDecide(svc internalwithdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, role, err := controllers.CallerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := controllers.ParseUUIDParam(r, "withdrawalId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req decisionPayload
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := internalwithdrawals.Actor{UserID: adminID, Role: role}
		switch req.Action {
		case "approve":
			withdrawal, err := svc.Approve(r.Context(), id, actor)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, withdrawal)
		case "reject":
			withdrawal, err := svc.Reject(r.Context(), id, validators.SanitizeString(req.Reason, 500), actor)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, withdrawal)
		case "process":
			withdrawal, err := svc.Process(r.Context(), id, actor)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, withdrawal)
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown action"))
		}
	}
}

// AdminPayoutStatus re-queries the payout provider and settles or reopens
// the withdrawal accordingly.
func AdminPayoutStatus(svc internalwithdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, role, err := controllers.CallerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := controllers.ParseUUIDParam(r, "withdrawalId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		withdrawal, err := svc.RefreshPayoutStatus(r.Context(), id, internalwithdrawals.Actor{UserID: adminID, Role: role})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, withdrawal)
	}
}
