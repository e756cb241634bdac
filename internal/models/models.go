package models

import "time"

// User carries the account contact fields plus the live nutritional
// intake. Signup, password hashing and profile CRUD live in a separate
// service; this backend only reads and updates the intake portion.
type User struct {
	ID          string
	Name        string
	Email       string
	CPF         string
	PhoneNumber string
	Token       string

	Weight        float64
	Height        float64
	Age           int
	Goal          Goal
	DailyCalories int
	Gender        Gender
	MealSchedule  MealSchedule
	ActivityLevel ActivityLevel
	TrainingPlan  TrainingPlan
	TrainingFreq  TrainingFrequency
	ActivityType  ActivityType

	Breakfast      []string
	MorningSnack   []string
	Lunch          []string
	AfternoonSnack []string
	Dinner         []string

	UsesWheyProtein  bool
	UsesHypercaloric bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IntakeSnapshot is the frozen copy of the intake values a prompt was
// built from. It is serialized into the diet record so later edits to
// the live profile never change what a paid plan was generated for.
type IntakeSnapshot struct {
	Weight        float64           `json:"weight"`
	Height        float64           `json:"height"`
	Age           int               `json:"age"`
	Goal          Goal              `json:"goal"`
	DailyCalories int               `json:"dailyCalories"`
	Gender        Gender            `json:"gender"`
	MealSchedule  MealSchedule      `json:"mealSchedule"`
	ActivityLevel ActivityLevel     `json:"activityLevel"`
	TrainingPlan  TrainingPlan      `json:"trainingPlan"`
	TrainingFreq  TrainingFrequency `json:"trainingFrequency"`
	ActivityType  ActivityType      `json:"activityType"`

	Breakfast      []string `json:"breakfast"`
	MorningSnack   []string `json:"morningSnack"`
	Lunch          []string `json:"lunch"`
	AfternoonSnack []string `json:"afternoonSnack"`
	Dinner         []string `json:"dinner"`

	UsesWheyProtein  bool `json:"usesWheyProtein"`
	UsesHypercaloric bool `json:"usesHypercaloric"`
}

// SnapshotFromUser captures the intake portion of a user profile.
func SnapshotFromUser(u *User) IntakeSnapshot {
	return IntakeSnapshot{
		Weight:           u.Weight,
		Height:           u.Height,
		Age:              u.Age,
		Goal:             u.Goal,
		DailyCalories:    u.DailyCalories,
		Gender:           u.Gender,
		MealSchedule:     u.MealSchedule,
		ActivityLevel:    u.ActivityLevel,
		TrainingPlan:     u.TrainingPlan,
		TrainingFreq:     u.TrainingFreq,
		ActivityType:     u.ActivityType,
		Breakfast:        append([]string(nil), u.Breakfast...),
		MorningSnack:     append([]string(nil), u.MorningSnack...),
		Lunch:            append([]string(nil), u.Lunch...),
		AfternoonSnack:   append([]string(nil), u.AfternoonSnack...),
		Dinner:           append([]string(nil), u.Dinner...),
		UsesWheyProtein:  u.UsesWheyProtein,
		UsesHypercaloric: u.UsesHypercaloric,
	}
}

// DietRecord tracks one nutrition-plan request through payment and
// generation. Records are never deleted; a regeneration creates a new
// record pointing back at the root via OriginalDietID.
type DietRecord struct {
	ID       string
	UserID   string
	Prompt   string
	// AIResponse is empty until generation succeeds and is written at
	// most once per record.
	AIResponse  string
	Snapshot    IntakeSnapshot
	Description string

	PaymentOrderID     string
	PaymentOrderStatus PaymentStatus
	PixQRCode          string
	PixQRCodeURL       string
	PixExpiresAt       string
	AmountMinorUnits   int

	WorkflowStatus WorkflowStatus

	IsRegenerated        bool
	RegenerationFeedback string
	// RegenerationCount lives on the root record and is incremented
	// there, never on the regenerated copies.
	RegenerationCount int
	OriginalDietID    string

	ArchiveURL string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasAIResponse reports whether generation already completed for this
// record.
func (d *DietRecord) HasAIResponse() bool {
	return d.AIResponse != ""
}
