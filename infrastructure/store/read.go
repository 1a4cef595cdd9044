package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/ahrav/go-lessonforge/internal/domain"
	"github.com/ahrav/go-lessonforge/internal/ports"
)

// StoredExercise is a persisted exercise rebuilt as a candidate.
type StoredExercise struct {
	ID        int64
	Name      string
	LessonID  string
	Candidate domain.Candidate
}

func comboScope(ids dimensionIDs, t domain.ExerciseType) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			"language_id = ? AND difficulty_id = ? AND topic_id = ? AND exercise_type = ?",
			ids.language, ids.difficulty, ids.topic, string(t),
		)
	}
}

// CountLessons returns the number of distinct lesson ids stored for combo.
func (s *SQLiteStore) CountLessons(ctx context.Context, combo domain.Combination) (int, error) {
	db, err := s.conn(ctx, "count_lessons")
	if err != nil {
		return 0, err
	}
	ids, ok, err := lookupDimensions(db, combo)
	if err != nil {
		return 0, ports.NewStoreError("count_lessons", "", err)
	}
	if !ok {
		return 0, nil
	}

	var n int64
	if err := db.Model(&ExerciseInfo{}).
		Scopes(comboScope(ids, combo.ExerciseType)).
		Distinct("lesson_id").
		Count(&n).Error; err != nil {
		return 0, ports.NewStoreError("count_lessons", "exercises_info", err)
	}
	return int(n), nil
}

// SampleExisting returns up to limit random exercises matching combo.
func (s *SQLiteStore) SampleExisting(ctx context.Context, combo domain.Combination, limit int) ([]domain.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	db, err := s.conn(ctx, "sample")
	if err != nil {
		return nil, err
	}
	ids, ok, err := lookupDimensions(db, combo)
	if err != nil {
		return nil, ports.NewStoreError("sample", "", err)
	}
	if !ok {
		return nil, nil
	}

	var infos []ExerciseInfo
	if err := db.Scopes(comboScope(ids, combo.ExerciseType)).
		Order("RANDOM()").
		Limit(limit).
		Find(&infos).Error; err != nil {
		return nil, ports.NewStoreError("sample", "exercises_info", err)
	}

	stored, err := loadCandidates(db, infos)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Candidate, 0, len(stored))
	for _, se := range stored {
		out = append(out, se.Candidate)
	}
	return out, nil
}

// LessonExercises returns every exercise sharing lessonID, in insert order.
func (s *SQLiteStore) LessonExercises(ctx context.Context, lessonID string) ([]StoredExercise, error) {
	db, err := s.conn(ctx, "lesson_exercises")
	if err != nil {
		return nil, err
	}
	var infos []ExerciseInfo
	if err := db.Where("lesson_id = ?", lessonID).Order("id").Find(&infos).Error; err != nil {
		return nil, ports.NewStoreError("lesson_exercises", "exercises_info", err)
	}
	return loadCandidates(db, infos)
}

// loadCandidates rebuilds candidates for infos, keeping their order.
func loadCandidates(db *gorm.DB, infos []ExerciseInfo) ([]StoredExercise, error) {
	byType := make(map[domain.ExerciseType][]int64)
	for _, info := range infos {
		t := domain.ExerciseType(info.ExerciseType)
		byType[t] = append(byType[t], info.ID)
	}

	cands := make(map[int64]domain.Candidate, len(infos))
	for t, ids := range byType {
		var err error
		switch t {
		case domain.ExerciseConversation:
			err = loadConversations(db, ids, cands)
		case domain.ExercisePairs:
			err = loadPairs(db, ids, cands)
		case domain.ExerciseTranslation:
			err = loadTranslations(db, ids, cands)
		case domain.ExerciseFillInBlank:
			err = loadFillInBlanks(db, ids, cands)
		}
		if err != nil {
			return nil, err
		}
	}

	out := make([]StoredExercise, 0, len(infos))
	for _, info := range infos {
		c, ok := cands[info.ID]
		if !ok {
			continue
		}
		out = append(out, StoredExercise{ID: info.ID, Name: info.ExerciseName, LessonID: info.LessonID, Candidate: c})
	}
	return out, nil
}

func loadConversations(db *gorm.DB, ids []int64, into map[int64]domain.Candidate) error {
	var turns []ConversationExercise
	if err := db.Where("exercise_id IN ?", ids).Order("exercise_id, turn_order").Find(&turns).Error; err != nil {
		return ports.NewStoreError("load", "conversation_exercises", err)
	}
	var summaries []ConversationSummary
	if err := db.Where("exercise_id IN ?", ids).Find(&summaries).Error; err != nil {
		return ports.NewStoreError("load", "conversation_summaries", err)
	}

	convs := make(map[int64]*domain.Conversation, len(ids))
	get := func(id int64) *domain.Conversation {
		c, ok := convs[id]
		if !ok {
			c = &domain.Conversation{}
			convs[id] = c
		}
		return c
	}
	for _, t := range turns {
		c := get(t.ExerciseID)
		c.Turns = append(c.Turns, domain.Turn{Speaker: t.Speaker, Message: t.Message})
	}
	for _, s := range summaries {
		get(s.ExerciseID).Summary = s.Summary
	}
	for id, c := range convs {
		into[id] = c
	}
	return nil
}

func loadPairs(db *gorm.DB, ids []int64, into map[int64]domain.Candidate) error {
	var rows []PairExercise
	if err := db.Where("exercise_id IN ?", ids).Order("exercise_id, id").Find(&rows).Error; err != nil {
		return ports.NewStoreError("load", "pair_exercises", err)
	}
	batches := make(map[int64]*domain.PairBatch)
	for _, r := range rows {
		b, ok := batches[r.ExerciseID]
		if !ok {
			b = &domain.PairBatch{}
			batches[r.ExerciseID] = b
			into[r.ExerciseID] = b
		}
		b.Pairs = append(b.Pairs, domain.Pair{English: r.Language1Content, Target: r.Language2Content})
	}
	return nil
}

func loadTranslations(db *gorm.DB, ids []int64, into map[int64]domain.Candidate) error {
	var rows []TranslationExercise
	if err := db.Where("exercise_id IN ?", ids).Find(&rows).Error; err != nil {
		return ports.NewStoreError("load", "translation_exercises", err)
	}
	for _, r := range rows {
		into[r.ExerciseID] = &domain.Translation{English: r.Language1Content, Target: r.Language2Content}
	}
	return nil
}

func loadFillInBlanks(db *gorm.DB, ids []int64, into map[int64]domain.Candidate) error {
	var rows []FillInBlankExercise
	if err := db.Where("exercise_id IN ?", ids).Find(&rows).Error; err != nil {
		return ports.NewStoreError("load", "fill_in_blank_exercises", err)
	}
	for _, r := range rows {
		into[r.ExerciseID] = &domain.FillInBlank{
			Sentence:      r.Sentence,
			CorrectAnswer: r.CorrectAnswer,
			Incorrect1:    r.Incorrect1,
			Incorrect2:    r.Incorrect2,
			BlankPosition: r.BlankPosition,
			Translation:   r.Translation,
		}
	}
	return nil
}
