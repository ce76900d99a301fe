package models

type Role string

const (
	RoleUser        Role = "USER"
	RoleAdmin       Role = "ADMIN"
	RoleLoanOfficer Role = "LOAN_OFFICER"
)

type Capability string

const (
	CapReviewLoans    Capability = "review_loans"
	CapViewAllLoans   Capability = "view_all_loans"
	CapOfficerReports Capability = "officer_reports"
	CapAdminReports   Capability = "admin_reports"
	CapManageStaff    Capability = "manage_staff"
	CapViewAudit      Capability = "view_audit"
)

var roleCapabilities = map[Role][]Capability{
	RoleUser:        nil,
	RoleLoanOfficer: {CapReviewLoans, CapViewAllLoans, CapOfficerReports},
	RoleAdmin: {
		CapReviewLoans, CapViewAllLoans, CapOfficerReports,
		CapAdminReports, CapManageStaff, CapViewAudit,
	},
}

func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

func (r Role) Can(c Capability) bool {
	for _, granted := range roleCapabilities[r] {
		if granted == c {
			return true
		}
	}
	return false
}
