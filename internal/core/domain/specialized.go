package domain

import "time"

// IdentityRecord holds fields parsed from identity documents (DNI, passport,
// cedula). One row per document, owned by the identity extractor.
type IdentityRecord struct {
	DocumentID     string     `json:"document_id"`
	DocumentNumber string     `json:"document_number"`
	GivenNames     string     `json:"given_names,omitempty"`
	Surnames       string     `json:"surnames,omitempty"`
	Nationality    string     `json:"nationality,omitempty"`
	BirthDate      *time.Time `json:"birth_date,omitempty"`
	IssueDate      *time.Time `json:"issue_date,omitempty"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
	ExtractedAt    time.Time  `json:"extracted_at"`
}

// ContractRecord holds fields parsed from contracts and KYC forms.
type ContractRecord struct {
	DocumentID     string     `json:"document_id"`
	ContractNumber string     `json:"contract_number,omitempty"`
	ContractType   string     `json:"contract_type,omitempty"`
	PartyName      string     `json:"party_name,omitempty"`
	Amount         float64    `json:"amount,omitempty"`
	Currency       string     `json:"currency,omitempty"`
	InterestRate   float64    `json:"interest_rate,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	AccountNumber  string     `json:"account_number,omitempty"`
	ExtractedAt    time.Time  `json:"extracted_at"`
}

// FinancialRecord holds fields parsed from statements, payslips, invoices
// and receipts.
type FinancialRecord struct {
	DocumentID    string     `json:"document_id"`
	AccountNumber string     `json:"account_number,omitempty"`
	BankName      string     `json:"bank_name,omitempty"`
	Balance       float64    `json:"balance,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	StatementDate *time.Time `json:"statement_date,omitempty"`
	PeriodStart   *time.Time `json:"period_start,omitempty"`
	PeriodEnd     *time.Time `json:"period_end,omitempty"`
	ExtractedAt   time.Time  `json:"extracted_at"`
}
