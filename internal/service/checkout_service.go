package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nutriplan/nutriplan-backend/internal/config"
	"github.com/nutriplan/nutriplan-backend/internal/membros"
	"github.com/nutriplan/nutriplan-backend/internal/models"
	"github.com/nutriplan/nutriplan-backend/internal/prompt"
	"github.com/nutriplan/nutriplan-backend/internal/repository"
)

// DietStore is the persistence contract the orchestrator depends on.
// *repository.DietRepository implements it.
type DietStore interface {
	Create(ctx context.Context, diet *models.DietRecord) error
	FindByID(ctx context.Context, id string) (*models.DietRecord, error)
	FindByOrderID(ctx context.Context, orderID string) (*models.DietRecord, error)
	FindByOrderAndUser(ctx context.Context, orderID, userID string) (*models.DietRecord, error)
	LatestByUser(ctx context.Context, userID string) (*models.DietRecord, error)
	AttachOrder(ctx context.Context, dietID string, order repository.OrderLink) (bool, error)
	SetAIResponse(ctx context.Context, dietID, response string) (bool, error)
	UpdatePaymentStatus(ctx context.Context, dietID string, status models.PaymentStatus) error
	UpdateWorkflowStatus(ctx context.Context, dietID string, status models.WorkflowStatus) error
	IncrementRegenerationCount(ctx context.Context, dietID string, limit int) (bool, error)
	SetArchiveURL(ctx context.Context, dietID, url string) error
}

// PaymentGateway is the order-creation and status-lookup contract.
// *membros.Client implements it.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req membros.CreateOrderRequest) (*membros.Order, error)
	GetOrder(ctx context.Context, orderID string) (*membros.Order, error)
}

// Generator produces the AI diet content. *GenerationService
// implements it.
type Generator interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, *models.StructuredDiet, error)
}

// Notifier receives operator alerts about orders that need manual
// follow-up.
type Notifier interface {
	Alert(ctx context.Context, text string)
}

// Archiver copies finished plans to long-term storage. May be nil.
type Archiver interface {
	ArchivePlan(ctx context.Context, dietID string, plan []byte) (string, error)
}

// CheckoutService is the state machine tying diet records, gateway
// orders and generation together. Per record the path is
// NoOrder -> OrderCreated -> PaymentConfirmed -> DietReady, with
// GenerationFailed reachable from PaymentConfirmed.
type CheckoutService struct {
	cfg       config.Config
	log       *slog.Logger
	diets     DietStore
	gateway   PaymentGateway
	generator Generator
	notifier  Notifier
	archiver  Archiver
}

func NewCheckoutService(cfg config.Config, log *slog.Logger, diets DietStore, gateway PaymentGateway, generator Generator, notifier Notifier, archiver Archiver) *CheckoutService {
	return &CheckoutService{
		cfg:       cfg,
		log:       log,
		diets:     diets,
		gateway:   gateway,
		generator: generator,
		notifier:  notifier,
		archiver:  archiver,
	}
}

// CheckoutResult is the payload returned to the client at checkout
// time. It never carries diet content.
type CheckoutResult struct {
	DietID           string
	OrderID          string
	Status           models.PaymentStatus
	PixQRCode        string
	PixQRCodeURL     string
	AmountMinorUnits int
	ExpiresAt        string
	Message          string
}

// StatusResult is the definite answer to a payment-status poll: one of
// not-paid / paid-processing / paid-ready / failed.
type StatusResult struct {
	Paid       bool
	Processing bool
	Ready      bool
	Status     models.PaymentStatus
	Message    string
	DietID     string
	AIResponse string
}

// StartDietRequest freezes the user's current intake, builds the
// prompt and persists a new pending record. Payment comes later.
func (s *CheckoutService) StartDietRequest(ctx context.Context, user *models.User) (*models.DietRecord, error) {
	snapshot := models.SnapshotFromUser(user)
	record := &models.DietRecord{
		UserID:      user.ID,
		Prompt:      prompt.Build(snapshot),
		Snapshot:    snapshot,
		Description: prompt.Description(snapshot.Gender, snapshot.Goal, snapshot.TrainingFreq),
	}
	if err := s.diets.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create diet record: %w", err)
	}
	s.log.Info("diet request created", "diet_id", record.ID, "user_id", user.ID)
	return record, nil
}

// LatestDiet returns the user's most recent record, or ErrNotFound.
func (s *CheckoutService) LatestDiet(ctx context.Context, userID string) (*models.DietRecord, error) {
	record, err := s.diets.LatestByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}
	return record, nil
}

// EnsureCheckout resolves (or creates) the diet record and guarantees
// it has exactly one gateway order. Re-entry with an existing order
// returns that order instead of creating a duplicate.
func (s *CheckoutService) EnsureCheckout(ctx context.Context, user *models.User, dietID string) (*CheckoutResult, error) {
	record, err := s.resolveRecord(ctx, user, dietID)
	if err != nil {
		return nil, err
	}

	if record.PaymentOrderID != "" {
		return s.reenterCheckout(ctx, record)
	}

	req := membros.CreateOrderRequest{
		PaymentMethod: "pix",
		Customer:      customerFromUser(user),
		Items: []membros.OrderItem{{
			Description: s.cfg.PlanDescription + " - " + record.Description,
			Quantity:    1,
			Amount:      s.cfg.PlanAmountMinorUnits,
		}},
		TotalAmount: s.cfg.PlanAmountMinorUnits,
	}

	order, err := s.gateway.CreateOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: create order: %v", ErrGatewayUnavailable, err)
	}

	status, ok := order.PaymentStatus()
	if !ok {
		status = models.PaymentPending
	}
	qrCode, qrCodeURL, expiresAt := order.PixDetails()
	// The gateway response is the authoritative amount, not whatever
	// the client or a webhook later claims.
	amount := order.TotalAmount
	if amount == 0 {
		amount = s.cfg.PlanAmountMinorUnits
	}

	attached, err := s.diets.AttachOrder(ctx, record.ID, repository.OrderLink{
		OrderID:          order.ID,
		Status:           status,
		PixQRCode:        qrCode,
		PixQRCodeURL:     qrCodeURL,
		PixExpiresAt:     expiresAt,
		AmountMinorUnits: amount,
	})
	if err != nil {
		return nil, err
	}
	if !attached {
		// A concurrent checkout won the attach; return its order.
		s.log.Info("checkout lost attach race, reusing stored order", "diet_id", record.ID)
		fresh, err := s.diets.FindByID(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		if fresh == nil || fresh.PaymentOrderID == "" {
			return nil, fmt.Errorf("diet %s lost order attach race but has no order", record.ID)
		}
		return resultFromRecord(fresh), nil
	}

	s.log.Info("checkout order created", "diet_id", record.ID, "order_id", order.ID, "amount", amount)
	return &CheckoutResult{
		DietID:           record.ID,
		OrderID:          order.ID,
		Status:           status,
		PixQRCode:        qrCode,
		PixQRCodeURL:     qrCodeURL,
		AmountMinorUnits: amount,
		ExpiresAt:        expiresAt,
	}, nil
}

func (s *CheckoutService) reenterCheckout(ctx context.Context, record *models.DietRecord) (*CheckoutResult, error) {
	order, err := s.gateway.GetOrder(ctx, record.PaymentOrderID)
	if err != nil {
		// Status unknown: keep local state and answer from it.
		s.log.Warn("gateway lookup failed on checkout re-entry, using cached order", "order_id", record.PaymentOrderID, "err", err)
		result := resultFromRecord(record)
		result.Message = "status do pagamento indisponível no momento, tente novamente"
		return result, nil
	}

	if status, ok := order.PaymentStatus(); ok && status != record.PaymentOrderStatus {
		if err := s.diets.UpdatePaymentStatus(ctx, record.ID, status); err != nil {
			return nil, err
		}
		record.PaymentOrderStatus = status
	}

	result := resultFromRecord(record)
	if qrCode, qrCodeURL, expiresAt := order.PixDetails(); qrCode != "" || qrCodeURL != "" {
		result.PixQRCode = qrCode
		result.PixQRCodeURL = qrCodeURL
		result.ExpiresAt = expiresAt
	}
	return result, nil
}

// CheckStatus answers a payment-status poll. When the gateway reports
// paid and no content exists yet, the poll itself triggers generation.
func (s *CheckoutService) CheckStatus(ctx context.Context, user *models.User, orderID string) (*StatusResult, error) {
	record, err := s.diets.FindByOrderAndUser(ctx, orderID, user.ID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}

	// Fast path: already paid and generated, no gateway round trip.
	if record.PaymentOrderStatus == models.PaymentPaid && record.HasAIResponse() {
		return s.readyResult(ctx, record), nil
	}

	order, err := s.gateway.GetOrder(ctx, orderID)
	if err != nil {
		// Transport failure is not a status; answer from local state.
		s.log.Warn("gateway status lookup failed", "order_id", orderID, "err", err)
		return &StatusResult{
			Paid:    record.PaymentOrderStatus == models.PaymentPaid,
			Status:  record.PaymentOrderStatus,
			Message: "não foi possível consultar o pagamento agora, tente novamente em instantes",
			DietID:  record.ID,
		}, nil
	}

	status, ok := order.PaymentStatus()
	if !ok {
		status = record.PaymentOrderStatus
	} else if status != record.PaymentOrderStatus {
		if err := s.diets.UpdatePaymentStatus(ctx, record.ID, status); err != nil {
			return nil, err
		}
		record.PaymentOrderStatus = status
	}

	switch status {
	case models.PaymentPaid:
		if record.HasAIResponse() {
			return s.readyResult(ctx, record), nil
		}
		fresh, err := s.GenerateForRecord(ctx, record)
		if err != nil {
			// Payment captured, content missing. Not an HTTP error;
			// the client should poll again.
			return &StatusResult{
				Paid:       true,
				Processing: true,
				Status:     models.PaymentPaid,
				Message:    "pagamento confirmado, seu plano está sendo gerado, tente novamente em instantes",
				DietID:     record.ID,
			}, nil
		}
		return s.readyResult(ctx, fresh), nil
	case models.PaymentFailed, models.PaymentCanceled:
		return &StatusResult{
			Status:  status,
			Message: "pagamento não aprovado (" + string(status) + "), gere um novo pedido",
			DietID:  record.ID,
		}, nil
	default:
		return &StatusResult{
			Status:  status,
			Message: "pagamento ainda não confirmado",
			DietID:  record.ID,
		}, nil
	}
}

// GenerateForRecord runs generation for a paid record and persists the
// result at most once. Both the polling path and the webhook call this;
// when they race, the conditional write picks the winner and the loser
// reports the stored value.
func (s *CheckoutService) GenerateForRecord(ctx context.Context, record *models.DietRecord) (*models.DietRecord, error) {
	// A client disconnecting mid-request must not abort an in-flight
	// generation for a paid order; it runs to completion and the result
	// is persisted regardless of which request triggered it.
	ctx = context.WithoutCancel(ctx)

	raw, _, err := s.generator.Generate(ctx, record.Prompt, ParamsFromSnapshot(record.Snapshot))
	if err != nil {
		s.log.Error("diet generation failed for paid order", "diet_id", record.ID, "order_id", record.PaymentOrderID, "err", err)
		if s.notifier != nil {
			s.notifier.Alert(ctx, fmt.Sprintf("Pedido pago sem dieta gerada: diet=%s order=%s erro=%v", record.ID, record.PaymentOrderID, err))
		}
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	wrote, err := s.diets.SetAIResponse(ctx, record.ID, raw)
	if err != nil {
		return nil, err
	}

	fresh, err := s.diets.FindByID(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, ErrNotFound
	}

	if wrote {
		s.log.Info("diet generated", "diet_id", record.ID, "order_id", record.PaymentOrderID)
		s.archive(ctx, fresh)
	} else {
		s.log.Info("generation race lost, keeping persisted plan", "diet_id", record.ID)
	}
	return fresh, nil
}

// HandlePaidOrder is the webhook-side terminal action: locate the
// record for a paid order and generate once. Returns the message the
// webhook should answer with.
func (s *CheckoutService) HandlePaidOrder(ctx context.Context, orderID string) (string, error) {
	record, err := s.diets.FindByOrderID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", ErrNotFound
	}

	if record.HasAIResponse() {
		return "plano já gerado para este pedido", nil
	}

	if record.PaymentOrderStatus != models.PaymentPaid {
		if err := s.diets.UpdatePaymentStatus(ctx, record.ID, models.PaymentPaid); err != nil {
			return "", err
		}
		record.PaymentOrderStatus = models.PaymentPaid
	}

	if _, err := s.GenerateForRecord(ctx, record); err != nil {
		return "", err
	}
	return "plano gerado com sucesso", nil
}

// Regenerate produces a revised plan from user feedback. The quota
// lives on the root record; the new record carries the payment linkage
// of its source so no second payment is needed.
func (s *CheckoutService) Regenerate(ctx context.Context, user *models.User, dietID, feedback string) (*models.DietRecord, error) {
	record, err := s.resolveRecord(ctx, user, dietID)
	if err != nil {
		return nil, err
	}

	if record.PaymentOrderStatus != models.PaymentPaid {
		return nil, ErrNotPaid
	}

	root := record
	if record.IsRegenerated && record.OriginalDietID != "" {
		root, err = s.diets.FindByID(ctx, record.OriginalDietID)
		if err != nil {
			return nil, err
		}
		if root == nil {
			return nil, ErrNotFound
		}
	}

	if root.RegenerationCount >= s.cfg.RegenerationLimit {
		return nil, ErrRegenerationQuota
	}

	// As with GenerateForRecord, a disconnect must not abort the
	// generation or lose the persisted result.
	ctx = context.WithoutCancel(ctx)

	enhanced := prompt.BuildRegeneration(record.Prompt, feedback)
	raw, _, err := s.generator.Generate(ctx, enhanced, ParamsFromSnapshot(record.Snapshot))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	// Claim the quota before persisting the new record; a concurrent
	// regeneration that loses this race is rejected.
	claimed, err := s.diets.IncrementRegenerationCount(ctx, root.ID, s.cfg.RegenerationLimit)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrRegenerationQuota
	}

	regenerated := &models.DietRecord{
		UserID:               record.UserID,
		Prompt:               enhanced,
		AIResponse:           raw,
		Snapshot:             record.Snapshot,
		Description:          record.Description,
		PaymentOrderID:       record.PaymentOrderID,
		PaymentOrderStatus:   record.PaymentOrderStatus,
		PixQRCode:            record.PixQRCode,
		PixQRCodeURL:         record.PixQRCodeURL,
		PixExpiresAt:         record.PixExpiresAt,
		AmountMinorUnits:     record.AmountMinorUnits,
		WorkflowStatus:       models.WorkflowCompleted,
		IsRegenerated:        true,
		RegenerationFeedback: strings.TrimSpace(feedback),
		OriginalDietID:       root.ID,
	}
	if err := s.diets.Create(ctx, regenerated); err != nil {
		return nil, err
	}

	s.log.Info("diet regenerated", "diet_id", regenerated.ID, "original_diet_id", root.ID)
	s.archive(ctx, regenerated)
	return regenerated, nil
}

func (s *CheckoutService) resolveRecord(ctx context.Context, user *models.User, dietID string) (*models.DietRecord, error) {
	if dietID == "" {
		record, err := s.diets.LatestByUser(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return record, nil
		}
		return s.StartDietRequest(ctx, user)
	}

	record, err := s.diets.FindByID(ctx, dietID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.UserID != user.ID {
		return nil, ErrNotFound
	}
	return record, nil
}

func (s *CheckoutService) readyResult(ctx context.Context, record *models.DietRecord) *StatusResult {
	if record.WorkflowStatus == models.WorkflowCompleted {
		if err := s.diets.UpdateWorkflowStatus(ctx, record.ID, models.WorkflowDelivered); err != nil {
			s.log.Warn("mark delivered failed", "diet_id", record.ID, "err", err)
		}
	}
	return &StatusResult{
		Paid:       true,
		Ready:      true,
		Status:     models.PaymentPaid,
		Message:    "plano pronto",
		DietID:     record.ID,
		AIResponse: record.AIResponse,
	}
}

func (s *CheckoutService) archive(ctx context.Context, record *models.DietRecord) {
	if s.archiver == nil || !record.HasAIResponse() {
		return
	}
	url, err := s.archiver.ArchivePlan(ctx, record.ID, []byte(record.AIResponse))
	if err != nil {
		s.log.Warn("plan archive failed", "diet_id", record.ID, "err", err)
		return
	}
	if err := s.diets.SetArchiveURL(ctx, record.ID, url); err != nil {
		s.log.Warn("store archive url failed", "diet_id", record.ID, "err", err)
	}
}

func resultFromRecord(record *models.DietRecord) *CheckoutResult {
	return &CheckoutResult{
		DietID:           record.ID,
		OrderID:          record.PaymentOrderID,
		Status:           record.PaymentOrderStatus,
		PixQRCode:        record.PixQRCode,
		PixQRCodeURL:     record.PixQRCodeURL,
		AmountMinorUnits: record.AmountMinorUnits,
		ExpiresAt:        record.PixExpiresAt,
	}
}

func customerFromUser(user *models.User) membros.Customer {
	phone := membros.FormatPhone(user.PhoneNumber)
	return membros.Customer{
		Name:         user.Name,
		Email:        user.Email,
		Document:     onlyDigits(user.CPF),
		DocumentType: "cpf",
		Type:         "individual",
		Phone:        &phone,
	}
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
