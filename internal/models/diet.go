package models

// FoodItem is one food entry in a meal plan. Protein/carbs/fat are
// present in the scientific contract and zero when the backend omits
// them.
type FoodItem struct {
	Name     string  `json:"name"`
	Quantity string  `json:"quantity"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein,omitempty"`
	Carbs    float64 `json:"carbs,omitempty"`
	Fat      float64 `json:"fat,omitempty"`
}

type MealTotals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// MealSection is one meal slot: three main entries plus three
// calorie-equivalent substitutes.
type MealSection struct {
	Main         []FoodItem `json:"main"`
	Alternatives []FoodItem `json:"alternatives"`
	MealTotals   MealTotals `json:"mealTotals"`
}

type MacroSplit struct {
	Percentage float64 `json:"percentage"`
	Grams      float64 `json:"grams"`
	Calories   float64 `json:"calories"`
}

type MacroDistribution struct {
	Carbs   MacroSplit `json:"carbs"`
	Protein MacroSplit `json:"protein"`
	Fat     MacroSplit `json:"fat"`
}

// DietUserParams echoes the inputs the backend computed the plan from.
type DietUserParams struct {
	Weight            float64 `json:"weight"`
	Objective         string  `json:"objective"`
	TrainingFrequency string  `json:"trainingFrequency"`
	ActivityType      string  `json:"activityType"`
	WheyProtein       bool    `json:"wheyProtein"`
	Hypercaloric      bool    `json:"hypercaloric"`
	ProteinTarget     float64 `json:"proteinTarget"`
	ProteinPerMeal    float64 `json:"proteinPerMeal"`
	BMR               float64 `json:"tmb"`
	TargetCalories    float64 `json:"targetCalories"`
}

// ScientificChecks is the backend's self-reported validation. It is
// advisory: out-of-range values are logged, never rejected.
type ScientificChecks struct {
	ProteinPerKg               float64 `json:"proteinPerKg"`
	ProteinPerMealOk           bool    `json:"proteinPerMealOk"`
	MacroDistributionOk        bool    `json:"macroDistributionOk"`
	CaloricBalanceOk           bool    `json:"caloricBalanceOk"`
	TrainingFrequencySupported bool    `json:"trainingFrequencySupported"`
	CarbsAdequateForFrequency  bool    `json:"carbsAdequateForFrequency"`
}

// StructuredDiet is the full generation contract: five meal slots, the
// snack slots nullable, plus aggregates and free-text notes. Breakfast,
// lunch and dinner are validated non-null after decoding.
type StructuredDiet struct {
	UserParams        DietUserParams    `json:"userParams"`
	MacroDistribution MacroDistribution `json:"macroDistribution"`
	Breakfast         *MealSection      `json:"breakfast"`
	MorningSnack      *MealSection      `json:"morningSnack"`
	Lunch             *MealSection      `json:"lunch"`
	AfternoonSnack    *MealSection      `json:"afternoonSnack"`
	Dinner            *MealSection      `json:"dinner"`
	DailyTotals       MealTotals        `json:"dailyTotals"`
	Validation        ScientificChecks  `json:"scientificValidation"`
	Notes             string            `json:"notes"`
}
