package service

import (
	"math"

	"github.com/nutriplan/nutriplan-backend/internal/models"
)

// BuildFallback constructs a placeholder diet purely from the intake
// parameters, with no backend call. It keeps the workflow moving when
// the backend repeatedly returns malformed output; the notes tell the
// user to review the plan with a professional.
func BuildFallback(params GenerationParams) *models.StructuredDiet {
	bmr := basalMetabolicRate(params)
	targetCalories := bmr + calorieAdjustment(params.Goal, params.TrainingFreq)
	if params.TargetCalories > 0 {
		targetCalories = float64(params.TargetCalories)
	}

	minProtein, _ := proteinRangePerKg(params.Goal)
	proteinTarget := math.Round(params.Weight * minProtein)
	proteinPerMeal := math.Round(params.Weight * 0.4)
	proteinPerKg := 0.0
	if params.Weight > 0 {
		proteinPerKg = round2(proteinTarget / params.Weight)
	}

	diet := &models.StructuredDiet{
		UserParams: models.DietUserParams{
			Weight:            params.Weight,
			Objective:         string(params.Goal),
			TrainingFrequency: string(params.TrainingFreq),
			ActivityType:      string(params.ActivityType),
			WheyProtein:       params.WheyProtein,
			Hypercaloric:      params.Hypercaloric,
			ProteinTarget:     proteinTarget,
			ProteinPerMeal:    proteinPerMeal,
			BMR:               bmr,
			TargetCalories:    targetCalories,
		},
		MacroDistribution: models.MacroDistribution{
			Carbs:   macroSplit(targetCalories, 45, 4),
			Protein: models.MacroSplit{Percentage: 30, Grams: proteinTarget, Calories: proteinTarget * 4},
			Fat:     macroSplit(targetCalories, 25, 9),
		},
		Breakfast: fallbackMeal("Café da Manhã"),
		Lunch:     fallbackMeal("Almoço"),
		Dinner:    fallbackMeal("Jantar"),
		DailyTotals: models.MealTotals{
			Calories: targetCalories,
			Protein:  proteinTarget,
			Carbs:    math.Round(targetCalories * 0.45 / 4),
			Fat:      math.Round(targetCalories * 0.25 / 9),
		},
		Validation: models.ScientificChecks{
			ProteinPerKg:               proteinPerKg,
			ProteinPerMealOk:           true,
			MacroDistributionOk:        true,
			CaloricBalanceOk:           true,
			TrainingFrequencySupported: true,
			CarbsAdequateForFrequency:  true,
		},
		Notes: "Dieta gerada com método de fallback. Consulte um nutricionista para ajustes personalizados.",
	}

	if params.MorningSnackActive {
		diet.MorningSnack = fallbackMeal("Lanche da Manhã")
	}
	if params.AfternoonSnackActive {
		diet.AfternoonSnack = fallbackMeal("Lanche da Tarde")
	}

	return diet
}

// basalMetabolicRate applies the Harris-Benedict equation, with the
// same defaults for missing height and age the intake form uses.
func basalMetabolicRate(params GenerationParams) float64 {
	weight := params.Weight
	height := params.Height
	if height <= 0 {
		height = 170
	}
	age := float64(params.Age)
	if age <= 0 {
		age = 30
	}

	if params.Gender == models.GenderFemale {
		return math.Round(447.593 + 9.247*weight + 3.098*height - 4.330*age)
	}
	return math.Round(88.362 + 13.397*weight + 4.799*height - 5.677*age)
}

// calorieAdjustment is the surplus or deficit applied to the basal rate
// for a goal at a given training frequency.
func calorieAdjustment(goal models.Goal, freq models.TrainingFrequency) float64 {
	adjustments := map[models.Goal]map[models.TrainingFrequency]float64{
		models.GoalGainMuscle: {
			models.Frequency2to3: 325, models.Frequency3to5: 400, models.Frequency5to7: 525,
		},
		models.GoalLoseWeight: {
			models.Frequency2to3: -325, models.Frequency3to5: -400, models.Frequency5to7: -450,
		},
		models.GoalDefinition: {
			models.Frequency2to3: -375, models.Frequency3to5: -500, models.Frequency5to7: -550,
		},
		models.GoalRecomposition: {
			models.Frequency2to3: 0, models.Frequency3to5: 0, models.Frequency5to7: 0,
		},
	}
	if byFreq, ok := adjustments[goal]; ok {
		return byFreq[freq]
	}
	return 0
}

func macroSplit(targetCalories, percentage, caloriesPerGram float64) models.MacroSplit {
	calories := math.Round(targetCalories * percentage / 100)
	return models.MacroSplit{
		Percentage: percentage,
		Grams:      math.Round(calories / caloriesPerGram),
		Calories:   calories,
	}
}

func fallbackMeal(name string) *models.MealSection {
	item := func(label string, calories, protein, carbs, fat float64) models.FoodItem {
		return models.FoodItem{
			Name:     label,
			Quantity: "1 porção",
			Calories: calories,
			Protein:  protein,
			Carbs:    carbs,
			Fat:      fat,
		}
	}
	return &models.MealSection{
		Main: []models.FoodItem{
			item(name+" Item 1", 200, 15, 20, 8),
			item(name+" Item 2", 150, 10, 15, 6),
			item(name+" Item 3", 100, 5, 10, 4),
		},
		Alternatives: []models.FoodItem{
			item(name+" Alternativa 1", 200, 15, 20, 8),
			item(name+" Alternativa 2", 150, 10, 15, 6),
			item(name+" Alternativa 3", 100, 5, 10, 4),
		},
		MealTotals: models.MealTotals{Calories: 450, Protein: 30, Carbs: 45, Fat: 18},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
