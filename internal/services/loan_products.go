package services

import (
	"fmt"
	"time"

	"bankloan/internal/models"
	"bankloan/internal/money"
)

const (
	lumpSumDelay     = 7 * 24 * time.Hour
	firstTrancheWait = 30 * 24 * time.Hour
	nextTrancheWait  = 180 * 24 * time.Hour
	emiStartDelay    = 30 * 24 * time.Hour
	courseYear       = 365 * 24 * time.Hour
	moratoriumMonth  = 30 * 24 * time.Hour
)

// productPolicy holds the behaviour that differs between loan products. The
// state machine itself lives in LoanService and is shared by every product.
type productPolicy interface {
	validate(req ApplyRequest, details models.ProductDetails) error
	firstTranche(loan models.Loan, details models.ProductDetails, now time.Time) (int64, time.Time)
	standardTranche(loan models.Loan, details models.ProductDetails) int64
	// prepare drops fields the server derives before the details are stored.
	prepare(details models.ProductDetails) models.ProductDetails
	// activate returns the EMI start date and the details as they are kept
	// once the loan is fully disbursed.
	activate(details models.ProductDetails, now time.Time) (time.Time, models.ProductDetails)
}

func policyFor(product models.ProductType) (productPolicy, error) {
	switch product {
	case models.ProductGeneral:
		return generalPolicy{}, nil
	case models.ProductVehicle:
		return vehiclePolicy{}, nil
	case models.ProductStudent:
		return studentPolicy{}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidDetails, models.ErrUnknownProduct)
}

// singleShot disburses the full principal at once.
type singleShot struct{}

func (singleShot) firstTranche(loan models.Loan, _ models.ProductDetails, now time.Time) (int64, time.Time) {
	return loan.Principal, now
}

func (singleShot) standardTranche(loan models.Loan, _ models.ProductDetails) int64 {
	return loan.Principal
}

func (singleShot) prepare(details models.ProductDetails) models.ProductDetails {
	return details
}

func (singleShot) activate(details models.ProductDetails, now time.Time) (time.Time, models.ProductDetails) {
	return now.Add(emiStartDelay), details
}

type generalPolicy struct{ singleShot }

func (generalPolicy) validate(ApplyRequest, models.ProductDetails) error { return nil }

type vehiclePolicy struct{ singleShot }

func (vehiclePolicy) validate(req ApplyRequest, details models.ProductDetails) error {
	v := details.(models.VehicleDetails)
	if req.Principal > int64(v.Price-v.DownPayment) {
		return fmt.Errorf("%w: principal exceeds price less down payment", ErrInvalidLoanTerms)
	}
	return nil
}

type studentPolicy struct{}

func (studentPolicy) validate(req ApplyRequest, _ models.ProductDetails) error {
	if req.AccountNumber == "" {
		return ErrFundingAccount
	}
	return nil
}

func (p studentPolicy) firstTranche(loan models.Loan, details models.ProductDetails, now time.Time) (int64, time.Time) {
	s := details.(models.StudentDetails)
	if s.DisbursementType == models.DisburseLumpSum {
		return loan.Principal, now.Add(lumpSumDelay)
	}
	return p.standardTranche(loan, details), now.Add(firstTrancheWait)
}

func (studentPolicy) standardTranche(loan models.Loan, details models.ProductDetails) int64 {
	s := details.(models.StudentDetails)
	switch s.DisbursementType {
	case models.DisburseSemesterWise:
		return money.Split(loan.Principal, s.CourseDurationYears*2)
	case models.DisburseYearly:
		return money.Split(loan.Principal, s.CourseDurationYears)
	}
	return loan.Principal
}

func (studentPolicy) prepare(details models.ProductDetails) models.ProductDetails {
	s := details.(models.StudentDetails)
	s.CourseCompletion = nil
	return s
}

// activate records the expected course completion; EMIs begin after it and
// the moratorium.
func (studentPolicy) activate(details models.ProductDetails, now time.Time) (time.Time, models.ProductDetails) {
	s := details.(models.StudentDetails)
	completion := now.Add(time.Duration(s.CourseDurationYears) * courseYear)
	s.CourseCompletion = &completion
	return completion.Add(time.Duration(s.MoratoriumMonths) * moratoriumMonth), s
}

// nextTranche caps the product's standard tranche at what is still owed to
// the borrower.
func nextTranche(p productPolicy, loan models.Loan, details models.ProductDetails, now time.Time) (int64, time.Time) {
	remaining := loan.Principal - loan.DisbursedAmount
	amount := p.standardTranche(loan, details)
	if amount > remaining {
		amount = remaining
	}
	return amount, now.Add(nextTrancheWait)
}
