package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nutriplan/nutriplan-backend/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
id, COALESCE(name, ''), email, COALESCE(cpf, ''), COALESCE(phone_number, ''), COALESCE(token, ''),
weight, height, age, goal, daily_calories, gender, meal_schedule, activity_level, training_plan,
training_frequency, activity_type,
COALESCE(breakfast, '[]'), COALESCE(morning_snack, '[]'), COALESCE(lunch, '[]'),
COALESCE(afternoon_snack, '[]'), COALESCE(dinner, '[]'),
uses_whey_protein, uses_hypercaloric, created_at, updated_at`

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) FindByToken(ctx context.Context, token string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE token = ? LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, token))
}

// UpdateIntake persists the live nutritional intake for a user. Account
// fields (email, cpf, password) are owned by the account service and
// never written here.
func (r *UserRepository) UpdateIntake(ctx context.Context, user *models.User) error {
	breakfast, morningSnack, lunch, afternoonSnack, dinner, err := marshalPreferences(user)
	if err != nil {
		return err
	}

	const query = `
UPDATE users SET weight = ?, height = ?, age = ?, goal = ?, daily_calories = ?, gender = ?,
    meal_schedule = ?, activity_level = ?, training_plan = ?, training_frequency = ?, activity_type = ?,
    breakfast = ?, morning_snack = ?, lunch = ?, afternoon_snack = ?, dinner = ?,
    uses_whey_protein = ?, uses_hypercaloric = ?, updated_at = NOW()
WHERE id = ?`
	whey := 0
	if user.UsesWheyProtein {
		whey = 1
	}
	hyper := 0
	if user.UsesHypercaloric {
		hyper = 1
	}
	if _, err := r.db.ExecContext(ctx, query,
		user.Weight, user.Height, user.Age, user.Goal, user.DailyCalories, user.Gender,
		user.MealSchedule, user.ActivityLevel, user.TrainingPlan, user.TrainingFreq, user.ActivityType,
		breakfast, morningSnack, lunch, afternoonSnack, dinner,
		whey, hyper, user.ID,
	); err != nil {
		return fmt.Errorf("update intake: %w", err)
	}
	return nil
}

func marshalPreferences(user *models.User) (breakfast, morningSnack, lunch, afternoonSnack, dinner []byte, err error) {
	lists := []struct {
		name  string
		items []string
		out   *[]byte
	}{
		{"breakfast", user.Breakfast, &breakfast},
		{"morning snack", user.MorningSnack, &morningSnack},
		{"lunch", user.Lunch, &lunch},
		{"afternoon snack", user.AfternoonSnack, &afternoonSnack},
		{"dinner", user.Dinner, &dinner},
	}
	for _, l := range lists {
		items := l.items
		if items == nil {
			items = []string{}
		}
		b, merr := json.Marshal(items)
		if merr != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("marshal %s preferences: %w", l.name, merr)
		}
		*l.out = b
	}
	return breakfast, morningSnack, lunch, afternoonSnack, dinner, nil
}

func (r *UserRepository) scanOne(row *sql.Row) (*models.User, error) {
	var u models.User
	var breakfast, morningSnack, lunch, afternoonSnack, dinner []byte
	var whey, hyper int
	if err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.CPF, &u.PhoneNumber, &u.Token,
		&u.Weight, &u.Height, &u.Age, &u.Goal, &u.DailyCalories, &u.Gender,
		&u.MealSchedule, &u.ActivityLevel, &u.TrainingPlan, &u.TrainingFreq, &u.ActivityType,
		&breakfast, &morningSnack, &lunch, &afternoonSnack, &dinner,
		&whey, &hyper, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.UsesWheyProtein = whey != 0
	u.UsesHypercaloric = hyper != 0

	for _, pair := range []struct {
		raw []byte
		out *[]string
	}{
		{breakfast, &u.Breakfast},
		{morningSnack, &u.MorningSnack},
		{lunch, &u.Lunch},
		{afternoonSnack, &u.AfternoonSnack},
		{dinner, &u.Dinner},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.out); err != nil {
			return nil, fmt.Errorf("unmarshal meal preferences: %w", err)
		}
	}
	return &u, nil
}
