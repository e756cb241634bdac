package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nutriplan/nutriplan-backend/internal/models"
)

type DietRepository struct {
	db *sql.DB
}

func NewDietRepository(db *sql.DB) *DietRepository {
	return &DietRepository{db: db}
}

const dietColumns = `
id, user_id, prompt, ai_response, COALESCE(snapshot, '{}'), description,
COALESCE(payment_order_id, ''), payment_order_status,
COALESCE(pix_qr_code, ''), COALESCE(pix_qr_code_url, ''), pix_expires_at, amount_minor_units,
workflow_status, is_regenerated, COALESCE(regeneration_feedback, ''), regeneration_count,
COALESCE(original_diet_id, ''), COALESCE(archive_url, ''), created_at, updated_at`

func (r *DietRepository) Create(ctx context.Context, diet *models.DietRecord) error {
	if diet.ID == "" {
		diet.ID = uuid.NewString()
	}
	snapshot, err := json.Marshal(diet.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if diet.PaymentOrderStatus == "" {
		diet.PaymentOrderStatus = models.PaymentPending
	}
	if diet.WorkflowStatus == "" {
		diet.WorkflowStatus = models.WorkflowPending
	}

	const query = `
INSERT INTO diets (id, user_id, prompt, ai_response, snapshot, description,
    payment_order_id, payment_order_status, pix_qr_code, pix_qr_code_url, pix_expires_at, amount_minor_units,
    workflow_status, is_regenerated, regeneration_feedback, regeneration_count, original_diet_id)
VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?, NULLIF(?, ''), ?, NULLIF(?, ''))`
	regenerated := 0
	if diet.IsRegenerated {
		regenerated = 1
	}
	_, err = r.db.ExecContext(ctx, query,
		diet.ID, diet.UserID, diet.Prompt, diet.AIResponse, snapshot, diet.Description,
		diet.PaymentOrderID, diet.PaymentOrderStatus, diet.PixQRCode, diet.PixQRCodeURL, diet.PixExpiresAt, diet.AmountMinorUnits,
		diet.WorkflowStatus, regenerated, diet.RegenerationFeedback, diet.RegenerationCount, diet.OriginalDietID)
	if err != nil {
		return fmt.Errorf("insert diet: %w", err)
	}
	return nil
}

func (r *DietRepository) FindByID(ctx context.Context, id string) (*models.DietRecord, error) {
	query := `SELECT ` + dietColumns + ` FROM diets WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// FindByOrderID returns the root record for an order. Regenerated
// copies share the order id and are excluded here.
func (r *DietRepository) FindByOrderID(ctx context.Context, orderID string) (*models.DietRecord, error) {
	query := `SELECT ` + dietColumns + ` FROM diets WHERE payment_order_id = ? AND is_regenerated = 0 LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, orderID))
}

// FindByOrderAndUser requires both keys to match so one user can never
// read another user's record through an order id.
func (r *DietRepository) FindByOrderAndUser(ctx context.Context, orderID, userID string) (*models.DietRecord, error) {
	query := `SELECT ` + dietColumns + ` FROM diets WHERE payment_order_id = ? AND user_id = ? AND is_regenerated = 0 LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, orderID, userID))
}

func (r *DietRepository) LatestByUser(ctx context.Context, userID string) (*models.DietRecord, error) {
	query := `SELECT ` + dietColumns + ` FROM diets WHERE user_id = ? ORDER BY created_at DESC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID))
}

// AttachOrder links a freshly created gateway order to the record. The
// guard on payment_order_id IS NULL makes checkout idempotent: the
// second writer sees zero rows affected and must re-read the record.
func (r *DietRepository) AttachOrder(ctx context.Context, dietID string, order OrderLink) (bool, error) {
	const query = `
UPDATE diets SET payment_order_id = ?, payment_order_status = ?, pix_qr_code = ?, pix_qr_code_url = ?,
    pix_expires_at = ?, amount_minor_units = ?, workflow_status = ?, updated_at = NOW()
WHERE id = ? AND payment_order_id IS NULL`
	res, err := r.db.ExecContext(ctx, query,
		order.OrderID, order.Status, order.PixQRCode, order.PixQRCodeURL,
		order.PixExpiresAt, order.AmountMinorUnits, models.WorkflowProcessing, dietID)
	if err != nil {
		return false, fmt.Errorf("attach order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("attach order rows affected: %w", err)
	}
	return affected > 0, nil
}

type OrderLink struct {
	OrderID          string
	Status           models.PaymentStatus
	PixQRCode        string
	PixQRCodeURL     string
	PixExpiresAt     string
	AmountMinorUnits int
}

// SetAIResponse persists a generation result exactly once. Concurrent
// writers race on the ai_response = '' guard; the loser is a no-op and
// must re-read to report the winner's value.
func (r *DietRepository) SetAIResponse(ctx context.Context, dietID, response string) (bool, error) {
	if response == "" {
		return false, errors.New("ai response cannot be empty")
	}
	const query = `
UPDATE diets SET ai_response = ?, payment_order_status = ?, workflow_status = ?, updated_at = NOW()
WHERE id = ? AND ai_response = ''`
	res, err := r.db.ExecContext(ctx, query, response, models.PaymentPaid, models.WorkflowCompleted, dietID)
	if err != nil {
		return false, fmt.Errorf("set ai response: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ai response rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *DietRepository) UpdatePaymentStatus(ctx context.Context, dietID string, status models.PaymentStatus) error {
	const query = `UPDATE diets SET payment_order_status = ?, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, status, dietID); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

func (r *DietRepository) UpdateWorkflowStatus(ctx context.Context, dietID string, status models.WorkflowStatus) error {
	const query = `UPDATE diets SET workflow_status = ?, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, status, dietID); err != nil {
		return fmt.Errorf("update workflow status: %w", err)
	}
	return nil
}

// IncrementRegenerationCount bumps the quota counter on the root record
// only while it is still under the limit.
func (r *DietRepository) IncrementRegenerationCount(ctx context.Context, dietID string, limit int) (bool, error) {
	const query = `
UPDATE diets SET regeneration_count = regeneration_count + 1, updated_at = NOW()
WHERE id = ? AND regeneration_count < ?`
	res, err := r.db.ExecContext(ctx, query, dietID, limit)
	if err != nil {
		return false, fmt.Errorf("increment regeneration count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("regeneration rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *DietRepository) SetArchiveURL(ctx context.Context, dietID, url string) error {
	const query = `UPDATE diets SET archive_url = ?, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, url, dietID); err != nil {
		return fmt.Errorf("set archive url: %w", err)
	}
	return nil
}

func (r *DietRepository) scanOne(row *sql.Row) (*models.DietRecord, error) {
	var d models.DietRecord
	var snapshot []byte
	var regenerated int
	if err := row.Scan(
		&d.ID, &d.UserID, &d.Prompt, &d.AIResponse, &snapshot, &d.Description,
		&d.PaymentOrderID, &d.PaymentOrderStatus,
		&d.PixQRCode, &d.PixQRCodeURL, &d.PixExpiresAt, &d.AmountMinorUnits,
		&d.WorkflowStatus, &regenerated, &d.RegenerationFeedback, &d.RegenerationCount,
		&d.OriginalDietID, &d.ArchiveURL, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan diet: %w", err)
	}
	d.IsRegenerated = regenerated != 0
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &d.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
	}
	return &d, nil
}
