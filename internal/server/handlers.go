package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nutriplan/nutriplan-backend/internal/models"
	"github.com/nutriplan/nutriplan-backend/internal/service"
)

// generatePromptRequest carries the intake form. Numeric values arrive
// as strings and meal preferences as comma-separated lists; both quirks
// come from the web client and are normalized here.
type generatePromptRequest struct {
	Peso             string `json:"Peso"`
	Altura           string `json:"Altura"`
	Idade            string `json:"Idade"`
	Objetivo         string `json:"Objetivo"`
	Calorias         string `json:"Calorias"`
	Genero           string `json:"Genero"`
	Horarios         string `json:"Horarios"`
	NivelAtividade   string `json:"nivelAtividade"`
	Treino           string `json:"treino"`
	FrequenciaTreino string `json:"frequenciaTreino"`
	TipoAtividade    string `json:"tipoAtividade"`
	CafeDaManha      string `json:"cafeDaManha"`
	LancheDaManha    string `json:"lancheDaManha"`
	Almoco           string `json:"almoco"`
	LancheDaTarde    string `json:"lancheDaTarde"`
	Janta            string `json:"janta"`
	UsaWheyProtein   bool   `json:"usaWheyProtein"`
	UsaHipercalorico bool   `json:"usaHipercalorico"`
}

type intakeEcho struct {
	UserID            string   `json:"userId"`
	Peso              float64  `json:"peso"`
	Altura            float64  `json:"altura"`
	Idade             int      `json:"idade"`
	Objetivo          string   `json:"objetivo"`
	CaloriasDiarias   int      `json:"caloriasDiarias"`
	Genero            string   `json:"genero"`
	Horarios          string   `json:"horariosParaRefeicoes"`
	NivelAtividade    string   `json:"nivelAtividade"`
	PlanoTreino       string   `json:"planoTreino"`
	FrequenciaTreino  string   `json:"frequenciaTreino"`
	TipoAtividade     string   `json:"tipoAtividade"`
	CafeDaManha       []string `json:"cafeDaManha"`
	LancheDaManha     []string `json:"lancheDaManha"`
	Almoco            []string `json:"almoco"`
	LancheDaTarde     []string `json:"lancheDaTarde"`
	Janta             []string `json:"janta"`
}

func (s *Server) handleGeneratePrompt(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req generatePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	if err := applyIntake(user, req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.users.UpdateIntake(r.Context(), user); err != nil {
		s.log.Error("update intake", "user_id", user.ID, "err", err)
		s.writeError(w, http.StatusInternalServerError, "erro interno")
		return
	}

	record, err := s.checkout.StartDietRequest(r.Context(), user)
	if err != nil {
		s.log.Error("start diet request", "user_id", user.ID, "err", err)
		s.writeError(w, http.StatusInternalServerError, "erro interno")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"prompt":  record.Prompt,
		"dietId":  record.ID,
		"data":    echoFromUser(user),
	})
}

func (s *Server) handleLatestDiet(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	record, err := s.checkout.LatestDiet(r.Context(), user.ID)
	if err != nil {
		s.serviceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"dietId":        record.ID,
		"prompt":        record.Prompt,
		"description":   record.Description,
		"paymentStatus": record.PaymentOrderStatus,
		"hasPlan":       record.HasAIResponse(),
		"aiResponse":    record.AIResponse,
		"createdAt":     record.CreatedAt,
	})
}

type checkoutRequest struct {
	DietID string `json:"dietId"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	result, err := s.checkout.EnsureCheckout(r.Context(), user, strings.TrimSpace(req.DietID))
	if err != nil {
		s.serviceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"dietId":       result.DietID,
		"orderId":      result.OrderID,
		"status":       result.Status,
		"pixQrCode":    result.PixQRCode,
		"pixQrCodeUrl": result.PixQRCodeURL,
		"amount":       result.AmountMinorUnits,
		"expiresAt":    result.ExpiresAt,
		"message":      result.Message,
	})
}

func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if orderID == "" {
		s.writeError(w, http.StatusBadRequest, "orderId obrigatório")
		return
	}

	result, err := s.checkout.CheckStatus(r.Context(), user, orderID)
	if err != nil {
		s.serviceError(w, err)
		return
	}

	payload := map[string]any{
		"success":    true,
		"paid":       result.Paid,
		"processing": result.Processing,
		"ready":      result.Ready,
		"status":     result.Status,
		"message":    result.Message,
		"dietId":     result.DietID,
	}
	if result.Ready {
		payload["aiResponse"] = result.AIResponse
	}
	s.writeJSON(w, http.StatusOK, payload)
}

type regenerateRequest struct {
	DietID   string `json:"dietId"`
	Feedback string `json:"feedback"`
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req regenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	if strings.TrimSpace(req.Feedback) == "" {
		s.writeError(w, http.StatusBadRequest, "feedback obrigatório")
		return
	}

	record, err := s.checkout.Regenerate(r.Context(), user, strings.TrimSpace(req.DietID), req.Feedback)
	if err != nil {
		s.serviceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"dietId":         record.ID,
		"originalDietId": record.OriginalDietID,
		"aiResponse":     record.AIResponse,
	})
}

// applyIntake normalizes the raw form values onto the user profile.
// Enum values are reconciled at this boundary; anything unmapped is
// rejected before any state changes.
func applyIntake(user *models.User, req generatePromptRequest) error {
	weight, err := strconv.ParseFloat(strings.TrimSpace(req.Peso), 64)
	if err != nil || weight <= 0 {
		return errors.New("peso inválido")
	}
	height, err := strconv.ParseFloat(strings.TrimSpace(req.Altura), 64)
	if err != nil || height <= 0 {
		return errors.New("altura inválida")
	}
	age, err := strconv.Atoi(strings.TrimSpace(req.Idade))
	if err != nil || age <= 0 {
		return errors.New("idade inválida")
	}
	calories, err := strconv.Atoi(strings.TrimSpace(req.Calorias))
	if err != nil || calories <= 0 {
		return errors.New("meta de calorias inválida")
	}

	goal, err := models.ParseGoal(req.Objetivo)
	if err != nil {
		return err
	}
	gender, err := models.ParseGender(req.Genero)
	if err != nil {
		return err
	}
	schedule, err := models.ParseMealSchedule(req.Horarios)
	if err != nil {
		return err
	}
	activity, err := models.ParseActivityLevel(req.NivelAtividade)
	if err != nil {
		return err
	}
	plan, err := models.ParseTrainingPlan(req.Treino)
	if err != nil {
		return err
	}
	freq, err := models.ParseTrainingFrequency(req.FrequenciaTreino)
	if err != nil {
		return err
	}
	activityType, err := models.ParseActivityType(req.TipoAtividade)
	if err != nil {
		return err
	}

	breakfast := splitPreferences(req.CafeDaManha)
	lunch := splitPreferences(req.Almoco)
	dinner := splitPreferences(req.Janta)
	if len(breakfast) == 0 || len(lunch) == 0 || len(dinner) == 0 {
		return errors.New("café da manhã, almoço e jantar são obrigatórios")
	}

	user.Weight = weight
	user.Height = height
	user.Age = age
	user.Goal = goal
	user.DailyCalories = calories
	user.Gender = gender
	user.MealSchedule = schedule
	user.ActivityLevel = activity
	user.TrainingPlan = plan
	user.TrainingFreq = freq
	user.ActivityType = activityType
	user.Breakfast = breakfast
	user.MorningSnack = splitPreferences(req.LancheDaManha)
	user.Lunch = lunch
	user.AfternoonSnack = splitPreferences(req.LancheDaTarde)
	user.Dinner = dinner
	user.UsesWheyProtein = req.UsaWheyProtein
	user.UsesHypercaloric = req.UsaHipercalorico
	return nil
}

// splitPreferences turns "arroz, feijão, frango" into a trimmed list.
// An empty string means the slot is inactive.
func splitPreferences(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func echoFromUser(user *models.User) intakeEcho {
	return intakeEcho{
		UserID:           user.ID,
		Peso:             user.Weight,
		Altura:           user.Height,
		Idade:            user.Age,
		Objetivo:         string(user.Goal),
		CaloriasDiarias:  user.DailyCalories,
		Genero:           string(user.Gender),
		Horarios:         string(user.MealSchedule),
		NivelAtividade:   string(user.ActivityLevel),
		PlanoTreino:      string(user.TrainingPlan),
		FrequenciaTreino: string(user.TrainingFreq),
		TipoAtividade:    string(user.ActivityType),
		CafeDaManha:      user.Breakfast,
		LancheDaManha:    user.MorningSnack,
		Almoco:           user.Lunch,
		LancheDaTarde:    user.AfternoonSnack,
		Janta:            user.Dinner,
	}
}

func (s *Server) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "registro não encontrado")
	case errors.Is(err, service.ErrNotPaid):
		s.writeError(w, http.StatusBadRequest, "pagamento não confirmado para este plano")
	case errors.Is(err, service.ErrRegenerationQuota):
		s.writeError(w, http.StatusBadRequest, "limite de regenerações atingido")
	case errors.Is(err, service.ErrGatewayUnavailable):
		s.log.Error("payment gateway unavailable", "err", err)
		s.writeError(w, http.StatusInternalServerError, "gateway de pagamento indisponível")
	case errors.Is(err, service.ErrGenerationFailed):
		s.log.Error("generation failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, "falha na geração do plano")
	default:
		s.log.Error("handler error", "err", err)
		s.writeError(w, http.StatusInternalServerError, "erro interno")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}
