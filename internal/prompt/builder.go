// Package prompt renders nutrition request text from a frozen intake
// snapshot. Rendering is a pure function: the same snapshot always
// produces byte-identical output.
package prompt

import (
	"strconv"
	"strings"

	"github.com/nutriplan/nutriplan-backend/internal/models"
)

// Build renders the generation prompt for a snapshot. Preference
// sections for snack slots are included only when the corresponding
// list is non-empty; the generation contract then expects null for the
// omitted slots.
func Build(s models.IntakeSnapshot) string {
	var b strings.Builder

	b.WriteString("Você é um nutricionista especializado em criar planos alimentares personalizados. ")
	b.WriteString("Com base nos dados fornecidos, crie um plano nutricional detalhado.\n\n")

	b.WriteString("DADOS DO USUÁRIO:\n")
	writeField(&b, "Peso", formatFloat(s.Weight)+"kg")
	writeField(&b, "Altura", formatFloat(s.Height)+"cm")
	writeField(&b, "Idade", formatInt(s.Age)+" anos")
	writeField(&b, "Gênero", string(s.Gender))
	writeField(&b, "Objetivo", string(s.Goal))
	writeField(&b, "Meta de calorias", formatInt(s.DailyCalories)+" kcal/dia")
	writeField(&b, "Nível de atividade", string(s.ActivityLevel))
	writeField(&b, "Tipo de treino", string(s.TrainingPlan))
	writeField(&b, "Frequência de treino", string(s.TrainingFreq)+" vezes por semana")
	writeField(&b, "Horários das refeições", string(s.MealSchedule))

	b.WriteString("\nPREFERÊNCIAS ALIMENTARES:\n")
	writeField(&b, "Café da manhã", strings.Join(s.Breakfast, ", "))
	if len(s.MorningSnack) > 0 {
		writeField(&b, "Lanche da manhã", strings.Join(s.MorningSnack, ", "))
	}
	writeField(&b, "Almoço", strings.Join(s.Lunch, ", "))
	if len(s.AfternoonSnack) > 0 {
		writeField(&b, "Lanche da tarde", strings.Join(s.AfternoonSnack, ", "))
	}
	writeField(&b, "Jantar", strings.Join(s.Dinner, ", "))

	if s.UsesWheyProtein || s.UsesHypercaloric {
		b.WriteString("\nSUPLEMENTAÇÃO:\n")
		writeField(&b, "Whey protein", yesNo(s.UsesWheyProtein))
		writeField(&b, "Hipercalórico", yesNo(s.UsesHypercaloric))
	}

	b.WriteString("\nINSTRUÇÕES:\n")
	b.WriteString("1. Crie um plano alimentar completo para uma semana\n")
	b.WriteString("2. Distribua as calorias adequadamente entre as refeições\n")
	b.WriteString("3. Considere o objetivo (ganhar peso, perder peso, manter peso)\n")
	b.WriteString("4. Inclua as preferências alimentares mencionadas\n")
	b.WriteString("5. Ajuste as porções conforme o nível de atividade física\n")
	b.WriteString("6. Forneça dicas nutricionais específicas para o objetivo\n")
	b.WriteString("7. Inclua informações sobre hidratação\n")
	if len(s.MorningSnack) == 0 {
		b.WriteString("8. O lanche da manhã NÃO foi ativado: retorne null para esse campo\n")
	}
	if len(s.AfternoonSnack) == 0 {
		b.WriteString("9. O lanche da tarde NÃO foi ativado: retorne null para esse campo\n")
	}
	b.WriteString("\nPor favor, forneça o plano alimentar estruturado e detalhado.")

	return b.String()
}

// BuildRegeneration extends an original prompt with user feedback. The
// explicit instruction keeps the calorie target and meal structure
// stable while varying the food choices.
func BuildRegeneration(originalPrompt, feedback string) string {
	var b strings.Builder
	b.WriteString(originalPrompt)
	b.WriteString("\n\nAJUSTES SOLICITADOS PELO USUÁRIO:\n")
	b.WriteString(strings.TrimSpace(feedback))
	b.WriteString("\n\nIMPORTANTE: mantenha a meta de calorias e a estrutura das refeições do plano original. ")
	b.WriteString("Varie APENAS as escolhas de alimentos conforme os ajustes acima.")
	return b.String()
}

// Description builds the short human label shown in order listings,
// e.g. "Homem - Hipertrofia - 3-5x/semana".
func Description(gender models.Gender, goal models.Goal, freq models.TrainingFrequency) string {
	genderText := "Pessoa"
	switch gender {
	case models.GenderMale:
		genderText = "Homem"
	case models.GenderFemale:
		genderText = "Mulher"
	}

	goalText := string(goal)
	switch goal {
	case models.GoalLoseWeight:
		goalText = "Emagrecimento"
	case models.GoalRecomposition:
		goalText = "Recomposição Corporal"
	case models.GoalGainMuscle:
		goalText = "Hipertrofia"
	case models.GoalDefinition:
		goalText = "Definição Muscular"
	}

	return genderText + " - " + goalText + " - " + string(freq) + "x/semana"
}

func writeField(b *strings.Builder, label, value string) {
	b.WriteString("- ")
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
}

func yesNo(v bool) string {
	if v {
		return "Sim"
	}
	return "Não"
}

func formatInt(v int) string {
	return strconv.Itoa(v)
}

// formatFloat renders weights and heights the way the intake form sends
// them: no trailing zeros.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
