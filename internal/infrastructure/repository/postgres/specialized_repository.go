package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
)

type SpecializedRecordRepository struct {
	db *sql.DB
}

func NewSpecializedRecordRepository(db *sql.DB) *SpecializedRecordRepository {
	return &SpecializedRecordRepository{db: db}
}

func (r *SpecializedRecordRepository) UpsertIdentity(ctx context.Context, rec *domain.IdentityRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO identity_records (document_id, document_number, given_names, surnames, nationality, birth_date, issue_date, expiry_date, extracted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (document_id) DO UPDATE SET
	document_number = EXCLUDED.document_number,
	given_names = EXCLUDED.given_names,
	surnames = EXCLUDED.surnames,
	nationality = EXCLUDED.nationality,
	birth_date = EXCLUDED.birth_date,
	issue_date = EXCLUDED.issue_date,
	expiry_date = EXCLUDED.expiry_date,
	extracted_at = EXCLUDED.extracted_at
`,
		rec.DocumentID, rec.DocumentNumber, rec.GivenNames, rec.Surnames, rec.Nationality,
		rec.BirthDate, rec.IssueDate, rec.ExpiryDate, rec.ExtractedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert identity record: %w", err)
	}
	return nil
}

func (r *SpecializedRecordRepository) UpsertContract(ctx context.Context, rec *domain.ContractRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO contract_records (document_id, contract_number, contract_type, party_name, amount, currency, interest_rate, start_date, end_date, account_number, extracted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (document_id) DO UPDATE SET
	contract_number = EXCLUDED.contract_number,
	contract_type = EXCLUDED.contract_type,
	party_name = EXCLUDED.party_name,
	amount = EXCLUDED.amount,
	currency = EXCLUDED.currency,
	interest_rate = EXCLUDED.interest_rate,
	start_date = EXCLUDED.start_date,
	end_date = EXCLUDED.end_date,
	account_number = EXCLUDED.account_number,
	extracted_at = EXCLUDED.extracted_at
`,
		rec.DocumentID, rec.ContractNumber, rec.ContractType, rec.PartyName, rec.Amount,
		rec.Currency, rec.InterestRate, rec.StartDate, rec.EndDate, rec.AccountNumber, rec.ExtractedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert contract record: %w", err)
	}
	return nil
}

func (r *SpecializedRecordRepository) UpsertFinancial(ctx context.Context, rec *domain.FinancialRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO financial_records (document_id, account_number, bank_name, balance, currency, statement_date, period_start, period_end, extracted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (document_id) DO UPDATE SET
	account_number = EXCLUDED.account_number,
	bank_name = EXCLUDED.bank_name,
	balance = EXCLUDED.balance,
	currency = EXCLUDED.currency,
	statement_date = EXCLUDED.statement_date,
	period_start = EXCLUDED.period_start,
	period_end = EXCLUDED.period_end,
	extracted_at = EXCLUDED.extracted_at
`,
		rec.DocumentID, rec.AccountNumber, rec.BankName, rec.Balance, rec.Currency,
		rec.StatementDate, rec.PeriodStart, rec.PeriodEnd, rec.ExtractedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert financial record: %w", err)
	}
	return nil
}

func (r *SpecializedRecordRepository) HasIdentity(ctx context.Context, clientID string) (bool, error) {
	return r.hasRecord(ctx, "identity_records", clientID)
}

func (r *SpecializedRecordRepository) HasContract(ctx context.Context, clientID string) (bool, error) {
	return r.hasRecord(ctx, "contract_records", clientID)
}

func (r *SpecializedRecordRepository) HasFinancial(ctx context.Context, clientID string) (bool, error) {
	return r.hasRecord(ctx, "financial_records", clientID)
}

func (r *SpecializedRecordRepository) hasRecord(ctx context.Context, table, clientID string) (bool, error) {
	// table names come from the three fixed callers above, never from input
	query := fmt.Sprintf(`
SELECT EXISTS (
	SELECT 1
	FROM %s rec
	JOIN documents d ON d.id = rec.document_id
	WHERE d.client_id = $1 AND d.status = $2
)`, table)

	var exists bool
	err := r.db.QueryRowContext(ctx, query, clientID, string(domain.StatusProcessed)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s presence: %w", table, err)
	}
	return exists, nil
}
