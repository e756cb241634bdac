package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nutriplan/nutriplan-backend/internal/models"
)

// systemPrompt fixes the output contract: a single JSON object with the
// five meal slots, snack slots null when inactive, three main and three
// alternative entries per active slot, and full macro accounting.
const systemPrompt = `Você é um nutricionista especialista e experiente, especializado no cardápio brasileiro com conhecimento científico atualizado em nutrição esportiva e metabolismo.

IMPORTANTE: Use EXCLUSIVAMENTE alimentos típicos do cardápio da rotina de um brasileiro.

Responda APENAS com um objeto JSON que siga exatamente este schema:
{
  "userParams": {"weight": number, "objective": "string", "trainingFrequency": "string", "activityType": "string", "wheyProtein": boolean, "hypercaloric": boolean, "proteinTarget": number, "proteinPerMeal": number, "tmb": number, "targetCalories": number},
  "macroDistribution": {
    "carbs": {"percentage": number, "grams": number, "calories": number},
    "protein": {"percentage": number, "grams": number, "calories": number},
    "fat": {"percentage": number, "grams": number, "calories": number}
  },
  "breakfast": {"main": [3 itens], "alternatives": [3 itens], "mealTotals": {"calories": number, "protein": number, "carbs": number, "fat": number}},
  "morningSnack": null OU a mesma estrutura de breakfast,
  "lunch": {mesma estrutura},
  "afternoonSnack": null OU a mesma estrutura,
  "dinner": {mesma estrutura},
  "dailyTotals": {"calories": number, "protein": number, "carbs": number, "fat": number},
  "scientificValidation": {"proteinPerKg": number, "proteinPerMealOk": boolean, "macroDistributionOk": boolean, "caloricBalanceOk": boolean, "trainingFrequencySupported": boolean, "carbsAdequateForFrequency": boolean},
  "notes": "string com orientações personalizadas"
}

Cada item de refeição é {"name": "string", "quantity": "string", "calories": number, "protein": number, "carbs": number, "fat": number}.

IMPORTANTE:
- Para cada refeição ativa: forneça um plano "main" com 3 itens e um plano "alternatives" com 3 itens substitutos de valor calórico similar
- Se morningSnack ou afternoonSnack não foram ativados pelo usuário, retorne null para esses campos
- Crie um plano alimentar completo para uma semana
- Base-se nas preferências alimentares fornecidas e distribua as calorias conforme o objetivo
- Proteína por objetivo: hipertrofia 1,6-2,2 g/kg; emagrecimento 2,0-2,5 g/kg; definição 2,5-3,5 g/kg; recomposição 2,0-2,8 g/kg
- Ajuste as calorias conforme a frequência de treino (maior frequência = mais calorias)
- Forneça quantidades específicas (ex: "150g", "1 xícara", "2 colheres")
- Responda sempre em português brasileiro`

// TextCompleter is the generation backend contract the service depends
// on.
type TextCompleter interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// GenerationParams are the inputs the fallback plan and the advisory
// validation are computed from.
type GenerationParams struct {
	Weight               float64
	Height               float64
	Age                  int
	Gender               models.Gender
	Goal                 models.Goal
	TrainingFreq         models.TrainingFrequency
	ActivityType         models.ActivityType
	TargetCalories       int
	WheyProtein          bool
	Hypercaloric         bool
	MorningSnackActive   bool
	AfternoonSnackActive bool
}

// ParamsFromSnapshot derives generation parameters from a frozen intake
// snapshot. Snack slots are active exactly when the corresponding
// preference list is non-empty.
func ParamsFromSnapshot(s models.IntakeSnapshot) GenerationParams {
	return GenerationParams{
		Weight:               s.Weight,
		Height:               s.Height,
		Age:                  s.Age,
		Gender:               s.Gender,
		Goal:                 s.Goal,
		TrainingFreq:         s.TrainingFreq,
		ActivityType:         s.ActivityType,
		TargetCalories:       s.DailyCalories,
		WheyProtein:          s.UsesWheyProtein,
		Hypercaloric:         s.UsesHypercaloric,
		MorningSnackActive:   len(s.MorningSnack) > 0,
		AfternoonSnackActive: len(s.AfternoonSnack) > 0,
	}
}

type GenerationService struct {
	log      *slog.Logger
	backend  TextCompleter
	attempts int
}

func NewGenerationService(log *slog.Logger, backend TextCompleter, attempts int) *GenerationService {
	if attempts < 1 {
		attempts = 1
	}
	return &GenerationService{
		log:      log,
		backend:  backend,
		attempts: attempts,
	}
}

// Generate obtains a structured diet for the prompt. Malformed output
// and backend errors are both retried up to the attempt bound. After
// exhaustion, shape failures degrade to the deterministic fallback plan
// so a paid order always ends with content; backend/transport failures
// surface to the caller, which decides how to report a paid-but-stuck
// order.
func (s *GenerationService) Generate(ctx context.Context, prompt string, params GenerationParams) (string, *models.StructuredDiet, error) {
	var lastErr error
	sawMalformed := false

	for attempt := 1; attempt <= s.attempts; attempt++ {
		raw, err := s.backend.Complete(ctx, systemPrompt, prompt)
		if err != nil {
			lastErr = err
			s.log.Error("generation backend call failed", "attempt", attempt, "err", err)
			continue
		}

		diet, err := decodeDiet([]byte(raw), params)
		if err != nil {
			lastErr = err
			sawMalformed = true
			s.log.Warn("malformed generation output", "attempt", attempt, "err", err)
			continue
		}

		s.validateScience(diet, params)
		return raw, diet, nil
	}

	if sawMalformed {
		s.log.Warn("all attempts produced malformed output, using fallback plan", "attempts", s.attempts, "err", lastErr)
		fallback := BuildFallback(params)
		raw, err := json.Marshal(fallback)
		if err != nil {
			return "", nil, fmt.Errorf("marshal fallback plan: %w", err)
		}
		return string(raw), fallback, nil
	}

	return "", nil, fmt.Errorf("generate diet after %d attempts: %w", s.attempts, lastErr)
}

// decodeDiet parses and shape-checks a backend response. The active
// snack slots must be present; inactive ones must be null.
func decodeDiet(raw []byte, params GenerationParams) (*models.StructuredDiet, error) {
	var diet models.StructuredDiet
	if err := json.Unmarshal(raw, &diet); err != nil {
		return nil, fmt.Errorf("parse diet json: %w", err)
	}

	required := []struct {
		name    string
		section *models.MealSection
	}{
		{"breakfast", diet.Breakfast},
		{"lunch", diet.Lunch},
		{"dinner", diet.Dinner},
	}
	for _, meal := range required {
		if meal.section == nil {
			return nil, fmt.Errorf("missing required meal %s", meal.name)
		}
		if err := checkSection(meal.name, meal.section); err != nil {
			return nil, err
		}
	}

	if params.MorningSnackActive && diet.MorningSnack == nil {
		return nil, fmt.Errorf("morningSnack is active but missing")
	}
	if diet.MorningSnack != nil {
		if err := checkSection("morningSnack", diet.MorningSnack); err != nil {
			return nil, err
		}
	}
	if params.AfternoonSnackActive && diet.AfternoonSnack == nil {
		return nil, fmt.Errorf("afternoonSnack is active but missing")
	}
	if diet.AfternoonSnack != nil {
		if err := checkSection("afternoonSnack", diet.AfternoonSnack); err != nil {
			return nil, err
		}
	}

	return &diet, nil
}

func checkSection(name string, section *models.MealSection) error {
	if len(section.Main) < 3 {
		return fmt.Errorf("meal %s must have at least 3 main items", name)
	}
	if len(section.Alternatives) < 3 {
		return fmt.Errorf("meal %s must have at least 3 alternative items", name)
	}
	return nil
}

// validateScience checks the backend's self-reported metrics against
// the expected ranges for the goal. Mismatches are logged, never
// rejected.
func (s *GenerationService) validateScience(diet *models.StructuredDiet, params GenerationParams) {
	min, max := proteinRangePerKg(params.Goal)
	perKg := diet.Validation.ProteinPerKg
	if perKg < min || perKg > max {
		s.log.Warn("protein outside scientific range",
			"protein_per_kg", perKg, "expected_min", min, "expected_max", max, "goal", params.Goal)
	}
	if !diet.Validation.MacroDistributionOk {
		s.log.Warn("macro distribution not optimized", "goal", params.Goal)
	}
	if !diet.Validation.TrainingFrequencySupported {
		s.log.Warn("calories not adequate for training frequency", "frequency", params.TrainingFreq)
	}
}

func proteinRangePerKg(goal models.Goal) (min, max float64) {
	switch goal {
	case models.GoalGainMuscle:
		return 1.6, 2.2
	case models.GoalLoseWeight:
		return 2.0, 2.5
	case models.GoalDefinition:
		return 2.5, 3.5
	case models.GoalRecomposition:
		return 2.0, 2.8
	default:
		return 1.6, 2.5
	}
}
