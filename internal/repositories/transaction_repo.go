package repositories

import (
	"context"

	"stitchmart/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*models.Transaction, error)
	GetByToken(ctx context.Context, token string) (*models.Transaction, error)
	// UpdateStatus only succeeds while the stored row is still pending.
	UpdateStatus(ctx context.Context, tx *models.Transaction) error
	ListByUser(ctx context.Context, userID uuid.UUID, status models.TransactionStatus) ([]*models.Transaction, error)
	ListRecent(ctx context.Context, status models.TransactionStatus, limit int) ([]*models.Transaction, error)
	Totals(ctx context.Context, status models.TransactionStatus) (int, decimal.Decimal, error)
}

const transactionColumns = `id, user_id, design_id, amount, status, payment_method, payment_id, token, payer_id, created_at, updated_at`

type transactionRepo struct {
	db DBTX
}

func NewTransactionRepo(db DBTX) TransactionRepository {
	return &transactionRepo{db: db}
}

func (r *transactionRepo) Create(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, design_id, amount, status, payment_method, payment_id, token, payer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, t.ID, t.UserID, t.DesignID, t.Amount, string(t.Status), t.PaymentMethod, t.PaymentID, t.Token, t.PayerID).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	return translate(err)
}

func (r *transactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *transactionRepo) GetByPaymentID(ctx context.Context, paymentID string) (*models.Transaction, error) {
	return r.getOne(ctx, `payment_id = $1`, paymentID)
}

func (r *transactionRepo) GetByToken(ctx context.Context, token string) (*models.Transaction, error) {
	return r.getOne(ctx, `token = $1`, token)
}

func (r *transactionRepo) getOne(ctx context.Context, cond string, arg interface{}) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + cond
	t, err := scanTransaction(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, translate(err)
	}
	return t, nil
}

func (r *transactionRepo) UpdateStatus(ctx context.Context, t *models.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $1, payment_id = $2, token = $3, payer_id = $4, updated_at = NOW()
		WHERE id = $5 AND status = $6
	`
	return expectOne(r.db.Exec(ctx, query, string(t.Status), t.PaymentID, t.Token, t.PayerID, t.ID, string(models.TransactionPending)))
}

func (r *transactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, status models.TransactionStatus) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC`
	return r.list(ctx, query, userID, string(status))
}

func (r *transactionRepo) ListRecent(ctx context.Context, status models.TransactionStatus, limit int) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, string(status), limit)
}

func (r *transactionRepo) list(ctx context.Context, query string, args ...interface{}) ([]*models.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := []*models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// Totals returns the number and summed amount of transactions in status.
func (r *transactionRepo) Totals(ctx context.Context, status models.TransactionStatus) (int, decimal.Decimal, error) {
	var count int
	var sum decimal.Decimal
	query := `SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM transactions WHERE status = $1`
	if err := r.db.QueryRow(ctx, query, string(status)).Scan(&count, &sum); err != nil {
		return 0, decimal.Zero, err
	}
	return count, sum, nil
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	t := &models.Transaction{}
	var status string
	err := row.Scan(&t.ID, &t.UserID, &t.DesignID, &t.Amount, &status, &t.PaymentMethod, &t.PaymentID, &t.Token, &t.PayerID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = models.TransactionStatus(status)
	return t, nil
}
