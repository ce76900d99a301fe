package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bankloan/internal/money"

	"github.com/shopspring/decimal"
)

type ProductType string

const (
	ProductGeneral ProductType = "GENERAL"
	ProductVehicle ProductType = "VEHICLE"
	ProductStudent ProductType = "STUDENT"
)

type LoanStatus string

const (
	LoanPending   LoanStatus = "PENDING"
	LoanApproved  LoanStatus = "APPROVED"
	LoanRejected  LoanStatus = "REJECTED"
	LoanDisbursed LoanStatus = "DISBURSED"
	LoanActive    LoanStatus = "ACTIVE"
	LoanClosed    LoanStatus = "CLOSED"
)

func (s LoanStatus) Valid() bool {
	switch s {
	case LoanPending, LoanApproved, LoanRejected, LoanDisbursed, LoanActive, LoanClosed:
		return true
	}
	return false
}

func (s LoanStatus) Terminal() bool {
	return s == LoanRejected || s == LoanClosed
}

type GeneralLoanType string

const (
	GeneralEducation GeneralLoanType = "EDUCATION"
	GeneralStudent   GeneralLoanType = "STUDENT"
	GeneralPersonal  GeneralLoanType = "PERSONAL"
)

type DisbursementType string

const (
	DisburseLumpSum      DisbursementType = "LUMP_SUM"
	DisburseSemesterWise DisbursementType = "SEMESTER_WISE"
	DisburseYearly       DisbursementType = "YEARLY"
)

type Loan struct {
	ID                     string          `db:"id" json:"id"`
	CustomerID             string          `db:"customer_id" json:"customer_id"`
	Product                ProductType     `db:"product" json:"product"`
	AccountID              *string         `db:"account_id" json:"account_id,omitempty"`
	Principal              int64           `db:"principal" json:"principal"`
	InterestRate           decimal.Decimal `db:"interest_rate" json:"interest_rate"`
	TenureMonths           int             `db:"tenure_months" json:"tenure_months"`
	EMI                    int64           `db:"emi" json:"emi"`
	Status                 LoanStatus      `db:"status" json:"status"`
	Outstanding            int64           `db:"outstanding" json:"outstanding"`
	DisbursedAmount        int64           `db:"disbursed_amount" json:"disbursed_amount"`
	NextDisbursementAmount *int64          `db:"next_disbursement_amount" json:"next_disbursement_amount,omitempty"`
	NextDisbursementDate   *time.Time      `db:"next_disbursement_date" json:"next_disbursement_date,omitempty"`
	AppliedAt              time.Time       `db:"applied_at" json:"applied_at"`
	ApprovedAt             *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	ApprovedBy             *string         `db:"approved_by" json:"approved_by,omitempty"`
	DisbursedAt            *time.Time      `db:"disbursed_at" json:"disbursed_at,omitempty"`
	EMIStartDate           *time.Time      `db:"emi_start_date" json:"emi_start_date,omitempty"`
	ClosedAt               *time.Time      `db:"closed_at" json:"closed_at,omitempty"`
	RejectionReason        *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
	RawDetails             []byte          `db:"details" json:"-"`
}

func (l Loan) Details() (ProductDetails, error) {
	return DecodeDetails(l.Product, l.RawDetails)
}

// Amount is a minor-unit value that travels in JSON as a two-decimal string,
// like every other amount in the API.
type Amount int64

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(money.FormatMinor(int64(a)))
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: amounts must be decimal strings", money.ErrInvalidAmount)
	}
	value, err := money.ParseMinor(raw)
	if err != nil {
		return err
	}
	*a = Amount(value)
	return nil
}

// ProductDetails is the product-specific payload of a loan. Exactly one
// concrete type exists per ProductType.
type ProductDetails interface {
	Product() ProductType
}

type GeneralDetails struct {
	LoanType GeneralLoanType `json:"loan_type" validate:"required,oneof=EDUCATION STUDENT PERSONAL"`
	Purpose  string          `json:"purpose,omitempty" validate:"max=500"`
}

func (GeneralDetails) Product() ProductType { return ProductGeneral }

type VehicleDetails struct {
	VehicleType    string `json:"vehicle_type" validate:"required,oneof=CAR MOTORCYCLE TRUCK OTHER"`
	Make           string `json:"make" validate:"required,max=100"`
	Model          string `json:"model" validate:"required,max=100"`
	Year           int    `json:"year" validate:"required,gte=1980,lte=2100"`
	Price          Amount `json:"price" validate:"gt=0"`
	DownPayment    Amount `json:"down_payment" validate:"gte=0,ltfield=Price"`
	MonthlyIncome  Amount `json:"monthly_income" validate:"gt=0"`
	EmploymentType string `json:"employment_type" validate:"required,oneof=SALARIED SELF_EMPLOYED BUSINESS OTHER"`
	IncomeProof    string `json:"income_proof,omitempty" validate:"max=255"`
}

func (VehicleDetails) Product() ProductType { return ProductVehicle }

type StudentDetails struct {
	CourseName          string           `json:"course_name" validate:"required,max=200"`
	InstitutionName     string           `json:"institution_name" validate:"required,max=200"`
	CourseDurationYears int              `json:"course_duration_years" validate:"gte=1,lte=10"`
	CourseFee           Amount           `json:"course_fee" validate:"gt=0"`
	AcademicYear        string           `json:"academic_year,omitempty" validate:"max=20"`
	StudentName         string           `json:"student_name" validate:"required,max=200"`
	StudentAge          int              `json:"student_age" validate:"gte=16,lte=60"`
	GuardianName        string           `json:"guardian_name,omitempty" validate:"max=200"`
	GuardianIncome      Amount           `json:"guardian_income,omitempty" validate:"gte=0"`
	CollateralProvided  bool             `json:"collateral_provided"`
	CollateralDetails   string           `json:"collateral_details,omitempty" validate:"required_if=CollateralProvided true,max=500"`
	MoratoriumMonths    int              `json:"moratorium_months" validate:"gte=0,lte=24"`
	DisbursementType    DisbursementType `json:"disbursement_type" validate:"required,oneof=LUMP_SUM SEMESTER_WISE YEARLY"`
	CourseCompletion    *time.Time       `json:"course_completion_date,omitempty"`
}

func (StudentDetails) Product() ProductType { return ProductStudent }

var ErrUnknownProduct = errors.New("unknown loan product")

func DecodeDetails(product ProductType, raw []byte) (ProductDetails, error) {
	var target ProductDetails
	switch product {
	case ProductGeneral:
		var d GeneralDetails
		if err := decodeRaw(raw, &d); err != nil {
			return nil, err
		}
		target = d
	case ProductVehicle:
		var d VehicleDetails
		if err := decodeRaw(raw, &d); err != nil {
			return nil, err
		}
		target = d
	case ProductStudent:
		var d StudentDetails
		if err := decodeRaw(raw, &d); err != nil {
			return nil, err
		}
		target = d
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProduct, product)
	}
	return target, nil
}

func EncodeDetails(d ProductDetails) ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

func decodeRaw(raw []byte, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
