package models

import (
	"fmt"
	"strings"
)

// Goal is the canonical nutrition objective. Input arrives in several
// free-string spellings across clients; ParseGoal is the single place
// where those are reconciled. Unmapped values are rejected.
type Goal string

const (
	GoalLoseWeight     Goal = "emagrecer"
	GoalRecomposition  Goal = "emagrecer+massa"
	GoalGainMuscle     Goal = "ganhar massa muscular"
	GoalDefinition     Goal = "definicao muscular + ganhar massa"
)

var goalAliases = map[string]Goal{
	"emagrecer":                         GoalLoseWeight,
	"emagrecimento":                     GoalLoseWeight,
	"perder peso":                       GoalLoseWeight,
	"emagrecer+massa":                   GoalRecomposition,
	"recomposicao":                      GoalRecomposition,
	"recomposicao corporal":             GoalRecomposition,
	"ganhar massa muscular":             GoalGainMuscle,
	"ganhar massa":                      GoalGainMuscle,
	"hipertrofia":                       GoalGainMuscle,
	"bulking":                           GoalGainMuscle,
	"definicao muscular + ganhar massa": GoalDefinition,
	"definicao muscular":                GoalDefinition,
	"definicao":                         GoalDefinition,
	"cutting":                           GoalDefinition,
}

func ParseGoal(raw string) (Goal, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if goal, ok := goalAliases[key]; ok {
		return goal, nil
	}
	return "", fmt.Errorf("unknown goal: %q", raw)
}

type Gender string

const (
	GenderMale   Gender = "m"
	GenderFemale Gender = "f"
)

func ParseGender(raw string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "m", "masculino", "male":
		return GenderMale, nil
	case "f", "feminino", "female":
		return GenderFemale, nil
	}
	return "", fmt.Errorf("unknown gender: %q", raw)
}

type ActivityLevel string

const (
	ActivitySedentary   ActivityLevel = "sedentario"
	ActivityLight       ActivityLevel = "leve"
	ActivityModerate    ActivityLevel = "moderado"
	ActivityIntense     ActivityLevel = "intenso"
	ActivityVeryIntense ActivityLevel = "muito_intenso"
)

func ParseActivityLevel(raw string) (ActivityLevel, error) {
	switch ActivityLevel(strings.ToLower(strings.TrimSpace(raw))) {
	case ActivitySedentary, ActivityLight, ActivityModerate, ActivityIntense, ActivityVeryIntense:
		return ActivityLevel(strings.ToLower(strings.TrimSpace(raw))), nil
	}
	return "", fmt.Errorf("unknown activity level: %q", raw)
}

type TrainingPlan string

const (
	TrainingGym  TrainingPlan = "academia"
	TrainingHome TrainingPlan = "casa"
	TrainingNone TrainingPlan = "nenhum"
)

func ParseTrainingPlan(raw string) (TrainingPlan, error) {
	switch TrainingPlan(strings.ToLower(strings.TrimSpace(raw))) {
	case TrainingGym, TrainingHome, TrainingNone:
		return TrainingPlan(strings.ToLower(strings.TrimSpace(raw))), nil
	}
	return "", fmt.Errorf("unknown training plan: %q", raw)
}

// TrainingFrequency buckets weekly workout counts the way the calorie
// adjustment tables expect them.
type TrainingFrequency string

const (
	Frequency2to3 TrainingFrequency = "2-3"
	Frequency3to5 TrainingFrequency = "3-5"
	Frequency5to7 TrainingFrequency = "5-7"
)

func ParseTrainingFrequency(raw string) (TrainingFrequency, error) {
	switch TrainingFrequency(strings.TrimSpace(raw)) {
	case Frequency2to3, Frequency3to5, Frequency5to7:
		return TrainingFrequency(strings.TrimSpace(raw)), nil
	case "1-3":
		// legacy bucket from an earlier intake form
		return Frequency2to3, nil
	}
	return "", fmt.Errorf("unknown training frequency: %q", raw)
}

type ActivityType string

const (
	ActivityTypeWeights ActivityType = "musculacao"
	ActivityTypeCardio  ActivityType = "cardio"
	ActivityTypeMixed   ActivityType = "misto"
)

func ParseActivityType(raw string) (ActivityType, error) {
	switch ActivityType(strings.ToLower(strings.TrimSpace(raw))) {
	case ActivityTypeWeights, ActivityTypeCardio, ActivityTypeMixed:
		return ActivityType(strings.ToLower(strings.TrimSpace(raw))), nil
	}
	return "", fmt.Errorf("unknown activity type: %q", raw)
}

// MealSchedule is one of the fixed five-meal timetables offered by the
// intake form, or "personalizado".
type MealSchedule string

const MealScheduleCustom MealSchedule = "personalizado"

var knownSchedules = map[MealSchedule]bool{
	MealScheduleCustom:                  true,
	"05:30-08:30-12:00-15:00-19:00":     true,
	"06:00-09:00-12:00-15:00-19:00":     true,
	"06:30-09:30-13:00-16:00-20:00":     true,
	"07:00-10:00-12:30-15:30-19:30":     true,
	"07:30-10:30-12:00-15:00-19:00":     true,
	"08:00-11:00-13:30-16:30-20:30":     true,
	"09:00-11:00-13:00-16:00-21:00":     true,
}

func ParseMealSchedule(raw string) (MealSchedule, error) {
	schedule := MealSchedule(strings.TrimSpace(raw))
	if knownSchedules[schedule] {
		return schedule, nil
	}
	return "", fmt.Errorf("unknown meal schedule: %q", raw)
}

// PaymentStatus mirrors the gateway's order status vocabulary. The local
// copy is only ever overwritten with a recognized value.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentCanceled PaymentStatus = "canceled"
)

func ParsePaymentStatus(raw string) (PaymentStatus, bool) {
	switch PaymentStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentCanceled:
		return PaymentStatus(strings.ToLower(strings.TrimSpace(raw))), true
	}
	return "", false
}

// IsTerminal reports whether the gateway will never move the order again.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentPaid || s == PaymentFailed || s == PaymentCanceled
}

// WorkflowStatus is the internal lifecycle of a diet record. It is owned
// by this service and tracked independently from PaymentStatus.
type WorkflowStatus string

const (
	WorkflowPending    WorkflowStatus = "pending"
	WorkflowProcessing WorkflowStatus = "processing"
	WorkflowCompleted  WorkflowStatus = "completed"
	WorkflowCancelled  WorkflowStatus = "cancelled"
	WorkflowDelivered  WorkflowStatus = "delivered"
)
