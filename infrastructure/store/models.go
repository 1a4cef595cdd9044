package store

import "time"

// Dimension tables.

type Language struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

func (Language) TableName() string { return "languages" }

type Topic struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

func (Topic) TableName() string { return "topics" }

type Difficulty struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

func (Difficulty) TableName() string { return "difficulties" }

// ExerciseInfo is the parent row every exercise has. LessonID groups the
// exercises produced by one generation call.
type ExerciseInfo struct {
	ID           int64     `gorm:"primaryKey"`
	ExerciseName string    `gorm:"column:exercise_name;not null"`
	LanguageID   int64     `gorm:"index:idx_exercise_combo,priority:1;not null"`
	DifficultyID int64     `gorm:"index:idx_exercise_combo,priority:2;not null"`
	TopicID      int64     `gorm:"index:idx_exercise_combo,priority:3;not null"`
	ExerciseType string    `gorm:"index:idx_exercise_combo,priority:4;not null"`
	LessonID     string    `gorm:"index;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (ExerciseInfo) TableName() string { return "exercises_info" }

// ConversationExercise is one turn of a dialogue.
type ConversationExercise struct {
	ID         int64  `gorm:"primaryKey"`
	ExerciseID int64  `gorm:"index;not null"`
	TurnOrder  int    `gorm:"not null"`
	Speaker    string `gorm:"not null"`
	Message    string `gorm:"not null"`
}

func (ConversationExercise) TableName() string { return "conversation_exercises" }

type ConversationSummary struct {
	ID         int64  `gorm:"primaryKey"`
	ExerciseID int64  `gorm:"uniqueIndex;not null"`
	Summary    string `gorm:"not null"`
}

func (ConversationSummary) TableName() string { return "conversation_summaries" }

// PairExercise is one word pair. Language1Content is English.
type PairExercise struct {
	ID               int64  `gorm:"primaryKey"`
	ExerciseID       int64  `gorm:"index;not null"`
	Language1Content string `gorm:"column:language_1_content;uniqueIndex:idx_pair_content;not null"`
	Language2Content string `gorm:"column:language_2_content;uniqueIndex:idx_pair_content;not null"`
}

func (PairExercise) TableName() string { return "pair_exercises" }

type TranslationExercise struct {
	ID               int64  `gorm:"primaryKey"`
	ExerciseID       int64  `gorm:"index;not null"`
	Language1Content string `gorm:"column:language_1_content;uniqueIndex:idx_translation_content;not null"`
	Language2Content string `gorm:"column:language_2_content;uniqueIndex:idx_translation_content;not null"`
}

func (TranslationExercise) TableName() string { return "translation_exercises" }

type FillInBlankExercise struct {
	ID            int64  `gorm:"primaryKey"`
	ExerciseID    int64  `gorm:"uniqueIndex;not null"`
	Sentence      string `gorm:"not null"`
	CorrectAnswer string `gorm:"not null"`
	Incorrect1    string `gorm:"column:incorrect_1;not null"`
	Incorrect2    string `gorm:"column:incorrect_2;not null"`
	BlankPosition int    `gorm:"not null"`
	Translation   string `gorm:"not null"`
}

func (FillInBlankExercise) TableName() string { return "fill_in_blank_exercises" }

// UserExerciseAttempt is written by the app, never by the pipeline. The table
// is created here so a fresh database is complete.
type UserExerciseAttempt struct {
	ID          int64 `gorm:"primaryKey"`
	ExerciseID  int64 `gorm:"index;not null"`
	Correct     bool
	AttemptedAt time.Time
}

func (UserExerciseAttempt) TableName() string { return "user_exercise_attempts" }

func allModels() []any {
	return []any{
		&Language{}, &Topic{}, &Difficulty{},
		&ExerciseInfo{},
		&ConversationExercise{}, &ConversationSummary{},
		&PairExercise{}, &TranslationExercise{}, &FillInBlankExercise{},
		&UserExerciseAttempt{},
	}
}
