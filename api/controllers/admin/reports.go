package admin

import (
	"net/http"
	"strings"

	"github.com/devmarket/ledger-core/api/controllers/dto"
	"github.com/devmarket/ledger-core/api/responses"
	"github.com/devmarket/ledger-core/api/validators"
	"github.com/devmarket/ledger-core/internal/escrow"
	"github.com/devmarket/ledger-core/pkg/enums"
	pkgerrors "github.com/devmarket/ledger-core/pkg/errors"
	"github.com/devmarket/ledger-core/pkg/logger"
)

type resolveBody struct {
	Resolution string `json:"resolution" validate:"required,oneof=resolved_refund resolved_release dismissed"`
	Notes      string `json:"notes" validate:"max=2000"`
}

// ListReports returns buyer reports, optionally filtered by status.
func ListReports(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var status *enums.ReportStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseReportStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = &parsed
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListReports(r.Context(), status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"reports":     dto.FromReports(page.Reports),
			"next_cursor": page.NextCursor,
		})
	}
}

func InvestigateReport(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := resolveIDs(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload notesBody
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.StartInvestigation(r.Context(), ids.target, ids.admin, payload.Notes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.FromReport(report))
	}
}

// ResolveReport closes a report. A refund reverses the buyer's payment.
func ResolveReport(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := resolveIDs(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload resolveBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resolution, err := enums.ParseReportStatus(payload.Resolution)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid resolution"))
			return
		}
		report, err := svc.ResolveReport(r.Context(), escrow.ResolveReportCommand{
			ReportID:   ids.target,
			AdminID:    ids.admin,
			Resolution: resolution,
			Notes:      payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.FromReport(report))
	}
}
