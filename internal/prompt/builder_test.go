package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriplan/nutriplan-backend/internal/models"
)

func sampleSnapshot() models.IntakeSnapshot {
	return models.IntakeSnapshot{
		Weight:         82,
		Height:         178,
		Age:            28,
		Goal:           models.GoalGainMuscle,
		DailyCalories:  3000,
		Gender:         models.GenderMale,
		MealSchedule:   "06:00-09:00-12:00-15:00-19:00",
		ActivityLevel:  models.ActivityModerate,
		TrainingPlan:   models.TrainingGym,
		TrainingFreq:   models.Frequency3to5,
		ActivityType:   models.ActivityTypeWeights,
		Breakfast:      []string{"ovos", "aveia"},
		MorningSnack:   []string{"banana"},
		Lunch:          []string{"arroz", "frango"},
		AfternoonSnack: []string{"iogurte"},
		Dinner:         []string{"batata doce", "carne"},
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	s := sampleSnapshot()
	first := Build(s)
	second := Build(s)
	assert.Equal(t, first, second)
}

func TestBuildIncludesAllIntakeFields(t *testing.T) {
	out := Build(sampleSnapshot())

	assert.Contains(t, out, "Peso: 82kg")
	assert.Contains(t, out, "Altura: 178cm")
	assert.Contains(t, out, "Idade: 28 anos")
	assert.Contains(t, out, "Meta de calorias: 3000 kcal/dia")
	assert.Contains(t, out, "Objetivo: ganhar massa muscular")
	assert.Contains(t, out, "Frequência de treino: 3-5 vezes por semana")
	assert.Contains(t, out, "Lanche da manhã: banana")
	assert.Contains(t, out, "Lanche da tarde: iogurte")
}

func TestBuildOmitsInactiveSnackSections(t *testing.T) {
	s := sampleSnapshot()
	s.MorningSnack = nil
	out := Build(s)

	assert.NotContains(t, out, "Lanche da manhã:")
	assert.Contains(t, out, "O lanche da manhã NÃO foi ativado: retorne null")
	// Afternoon snack stays active.
	assert.Contains(t, out, "Lanche da tarde: iogurte")
	assert.NotContains(t, out, "O lanche da tarde NÃO foi ativado")
}

func TestBuildSupplementSectionOnlyWhenUsed(t *testing.T) {
	s := sampleSnapshot()
	out := Build(s)
	assert.NotContains(t, out, "SUPLEMENTAÇÃO")

	s.UsesWheyProtein = true
	out = Build(s)
	require.Contains(t, out, "SUPLEMENTAÇÃO")
	assert.Contains(t, out, "Whey protein: Sim")
	assert.Contains(t, out, "Hipercalórico: Não")
}

func TestBuildRegenerationKeepsOriginalAndAppendsFeedback(t *testing.T) {
	original := Build(sampleSnapshot())
	out := BuildRegeneration(original, "menos carboidratos no jantar")

	assert.True(t, strings.HasPrefix(out, original))
	assert.Contains(t, out, "AJUSTES SOLICITADOS PELO USUÁRIO")
	assert.Contains(t, out, "menos carboidratos no jantar")
	assert.Contains(t, out, "mantenha a meta de calorias")
}

func TestDescription(t *testing.T) {
	tests := []struct {
		gender models.Gender
		goal   models.Goal
		freq   models.TrainingFrequency
		want   string
	}{
		{models.GenderMale, models.GoalGainMuscle, models.Frequency3to5, "Homem - Hipertrofia - 3-5x/semana"},
		{models.GenderFemale, models.GoalLoseWeight, models.Frequency2to3, "Mulher - Emagrecimento - 2-3x/semana"},
		{models.GenderFemale, models.GoalDefinition, models.Frequency5to7, "Mulher - Definição Muscular - 5-7x/semana"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Description(tt.gender, tt.goal, tt.freq))
	}
}
