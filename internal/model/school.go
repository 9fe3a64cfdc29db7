package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexString decodes a JSON string or number. The school API returns
// identifiers and codes as either.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the decoded text
func (f FlexString) String() string { return string(f) }

// Amount is a decimal quantity (money or score) sent as a JSON number or a
// numeric string such as "1200.00". Valid is false for null or "".
type Amount struct {
	Value float64
	Valid bool
}

// NewAmount creates a valid amount
func NewAmount(v float64) Amount {
	return Amount{Value: v, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			*a = Amount{}
			return nil
		}
		// Accept a decimal comma from hand-edited payloads
		if !strings.Contains(text, ".") {
			text = strings.Replace(text, ",", ".", 1)
		}
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %s", data)
	}
	*a = Amount{Value: v, Valid: true}
	return nil
}

// MarshalJSON implements json.Marshaler
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(a.Value, 'f', -1, 64)), nil
}

// School is the tenant issuing the documents (GET /school)
type School struct {
	ID            FlexString `json:"id"`
	Name          string     `json:"name"`
	Code          FlexString `json:"code"`
	City          string     `json:"city"`
	State         string     `json:"state,omitempty"`
	SignatureName string     `json:"signature_name"`
	Document      string     `json:"document,omitempty"` // CNPJ
	Address       string     `json:"address,omitempty"`
	Phone         string     `json:"phone,omitempty"`
}

// Installment statuses
const (
	InstallmentStatusOpen     = "open"
	InstallmentStatusPaid     = "paid"
	InstallmentStatusOverdue  = "overdue"
	InstallmentStatusCanceled = "canceled"
)

// Installment is one payment of a contract
type Installment struct {
	ID                  FlexString `json:"id"`
	Number              int        `json:"number"`
	DueDate             string     `json:"due_date"`
	Amount              Amount     `json:"amount"`
	Status              string     `json:"status,omitempty"`
	BoletoCode          string     `json:"boleto_code,omitempty"`
	PixCopyPaste        string     `json:"pix_copy_paste,omitempty"`
	PaymentInstructions string     `json:"payment_instructions,omitempty"`
	PaidAt              string     `json:"paid_at,omitempty"`
}

// Contract is a financial contract with its installments
// (GET /financial/contracts/{id})
type Contract struct {
	ID           FlexString    `json:"id"`
	StudentName  string        `json:"student_name"`
	PayerName    string        `json:"payer_name"`
	Description  string        `json:"description"`
	TotalAmount  Amount        `json:"total_amount"`
	StartDate    string        `json:"start_date,omitempty"`
	Template     string        `json:"template,omitempty"`
	Installments []Installment `json:"installments"`
}

// InstallmentByNumber finds an installment by its 1-based number. When
// numbers are missing from the payload, position in the list is used.
func (c *Contract) InstallmentByNumber(n int) (*Installment, bool) {
	for i := range c.Installments {
		if c.Installments[i].Number == n {
			return &c.Installments[i], true
		}
	}
	if n >= 1 && n <= len(c.Installments) && c.Installments[n-1].Number == 0 {
		return &c.Installments[n-1], true
	}
	return nil, false
}

// Gradebook describes the class and subject a gradebook belongs to
type Gradebook struct {
	ID        FlexString `json:"id"`
	Name      string     `json:"name"`
	ClassName string     `json:"class_name"`
	Subject   string     `json:"subject"`
	Period    string     `json:"period,omitempty"`
	Teacher   string     `json:"teacher,omitempty"`
}

// GradebookStudent is one row of a gradebook class report
type GradebookStudent struct {
	StudentID         FlexString `json:"student_id"`
	StudentName       string     `json:"student_name"`
	Score             Amount     `json:"score"`
	AbsencesGradebook int        `json:"absences_gradebook"`
	PresentCount      int        `json:"present_count"`
	AbsentCount       int        `json:"absent_count"`
	JustifiedCount    int        `json:"justified_count"`
}

// GradebookReport is a class report (GET /gradebooks/{id}/report)
type GradebookReport struct {
	Gradebook Gradebook          `json:"gradebook"`
	Students  []GradebookStudent `json:"students"`
}

// Student identifies the subject of a report card
type Student struct {
	ID         FlexString `json:"id"`
	Name       string     `json:"name"`
	ClassName  string     `json:"class_name"`
	Enrollment FlexString `json:"enrollment,omitempty"`
}

// Period is a grading term
type Period struct {
	ID   FlexString `json:"id"`
	Name string     `json:"name"`
}

// PeriodGrade is a subject's grade for one term
type PeriodGrade struct {
	PeriodID FlexString `json:"period_id"`
	Score    Amount     `json:"score"`
}

// SubjectResult is one subject row of a report card
type SubjectResult struct {
	Name         string        `json:"name"`
	Grades       []PeriodGrade `json:"grades"`
	AverageScore Amount        `json:"average_score"`
	Approved     *bool         `json:"approved"`
	Status       string        `json:"status"`
	Absences     int           `json:"absences,omitempty"`
}

// Grade returns the score recorded for period, if any
func (s SubjectResult) Grade(period FlexString) Amount {
	for _, g := range s.Grades {
		if g.PeriodID == period {
			return g.Score
		}
	}
	return Amount{}
}

// StudentReport is a full student report card
// (GET /students/{id}/report?year=)
type StudentReport struct {
	Student  Student         `json:"student"`
	Year     int             `json:"year"`
	Periods  []Period        `json:"periods"`
	Subjects []SubjectResult `json:"subjects"`
}

// Guardian is the person a financial statement is issued to
type Guardian struct {
	ID       FlexString `json:"id"`
	Name     string     `json:"name"`
	Document string     `json:"document,omitempty"` // CPF
	Email    string     `json:"email,omitempty"`
}

// StatementItem is one line of a guardian statement
type StatementItem struct {
	Description string `json:"description"`
	StudentName string `json:"student_name,omitempty"`
	DueDate     string `json:"due_date"`
	Amount      Amount `json:"amount"`
	Status      string `json:"status"`
	ReceivedAt  string `json:"received_at,omitempty"`
}

// GuardianStatement is a guardian's financial statement
// (GET /financial/guardians/{id}/statement)
type GuardianStatement struct {
	Guardian Guardian        `json:"guardian"`
	Items    []StatementItem `json:"items"`
}
