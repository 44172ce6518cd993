package enums

import "fmt"

// ReportStatus tracks a buyer dispute against a purchase.
type ReportStatus string

const (
	ReportStatusPending         ReportStatus = "pending"
	ReportStatusInvestigating   ReportStatus = "investigating"
	ReportStatusResolvedRefund  ReportStatus = "resolved_refund"
	ReportStatusResolvedRelease ReportStatus = "resolved_release"
	ReportStatusDismissed       ReportStatus = "dismissed"
)

var validReportStatuses = []ReportStatus{
	ReportStatusPending,
	ReportStatusInvestigating,
	ReportStatusResolvedRefund,
	ReportStatusResolvedRelease,
	ReportStatusDismissed,
}

// String implements fmt.Stringer.
func (r ReportStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReportStatus.
func (r ReportStatus) IsValid() bool {
	for _, candidate := range validReportStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReportStatus converts raw input into a ReportStatus.
func ParseReportStatus(value string) (ReportStatus, error) {
	for _, candidate := range validReportStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid report status %q", value)
}

// IsOpen reports whether the report still awaits an admin decision.
func (r ReportStatus) IsOpen() bool {
	return r == ReportStatusPending || r == ReportStatusInvestigating
}

// IsResolution reports whether the value is one of the terminal admin decisions.
func (r ReportStatus) IsResolution() bool {
	return r == ReportStatusResolvedRefund || r == ReportStatusResolvedRelease || r == ReportStatusDismissed
}
