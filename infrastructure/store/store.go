// Package store persists accepted exercises in SQLite through GORM.
//
// Each worker opens its own SQLiteStore; a handle holds a single connection
// and is not shared between goroutines. SQLite's own locking (WAL mode plus
// a busy timeout) serializes writers across handles.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/ahrav/go-lessonforge/internal/domain"
	"github.com/ahrav/go-lessonforge/internal/platform/logger"
	"github.com/ahrav/go-lessonforge/internal/ports"
)

var _ ports.ExerciseStore = (*SQLiteStore)(nil)

// SQLiteStore implements ports.ExerciseStore.
type SQLiteStore struct {
	db     *gorm.DB
	path   string
	log    *logger.Logger
	closed bool
}

type options struct {
	migrate bool
}

// Option configures Open.
type Option func(*options)

// WithoutMigration skips AutoMigrate. Worker handles use it once the schema
// was created by the handle opened at startup, so concurrent opens never race
// on CREATE TABLE.
func WithoutMigration() Option {
	return func(o *options) { o.migrate = false }
}

// Open connects to the database at path, creating it if needed.
func Open(path string, baseLog *logger.Logger, opts ...Option) (*SQLiteStore, error) {
	o := options{migrate: true}
	for _, opt := range opts {
		opt(&o)
	}

	gormLog := gormLogger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dsn := path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if o.migrate {
		if err := db.AutoMigrate(allModels()...); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("migrate %s: %w", path, err)
		}
	}

	return &SQLiteStore{db: db, path: path, log: baseLog.With("component", "store", "path", path)}, nil
}

// NewFactory returns a ports.StoreFactory that opens one handle per worker
// without re-running migrations.
func NewFactory(path string, baseLog *logger.Logger) ports.StoreFactory {
	return func(_ context.Context, workerID int) (ports.ExerciseStore, error) {
		s, err := Open(path, baseLog.With("worker", workerID), WithoutMigration())
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// DB exposes the underlying handle for tests and maintenance commands.
func (s *SQLiteStore) DB() *gorm.DB { return s.db }

// Close releases the connection. Closing twice is a no-op.
func (s *SQLiteStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// conn returns a context-bound session, or ports.ErrStoreClosed once the
// handle was closed.
func (s *SQLiteStore) conn(ctx context.Context, op string) (*gorm.DB, error) {
	if s.closed {
		return nil, ports.NewStoreError(op, "", ports.ErrStoreClosed)
	}
	return s.db.WithContext(ctx), nil
}

// ExerciseName builds the exercises_info name shared by every row of one
// lesson: <type>_<topic>_<level>_<language>_<lesson id prefix>.
func ExerciseName(combo domain.Combination, lessonID string) string {
	prefix := strings.ReplaceAll(lessonID, "-", "")
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	parts := []string{string(combo.ExerciseType), combo.Topic, combo.Level, combo.Language, prefix}
	for i, p := range parts {
		parts[i] = slug(p)
	}
	return strings.Join(parts, "_")
}

func slug(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}

// Insert writes c in one transaction. Dimension rows are created on demand.
// Pair and translation rows whose (language_1_content, language_2_content)
// already exist are skipped; when nothing novel remains the transaction is
// rolled back and the error wraps domain.ErrNothingInserted.
func (s *SQLiteStore) Insert(ctx context.Context, c domain.Candidate, combo domain.Combination, lessonID string) (int64, error) {
	if c == nil {
		return 0, ports.NewStoreError("insert", "", errors.New("nil candidate"))
	}
	if lessonID == "" {
		return 0, ports.NewStoreError("insert", "exercises_info", errors.New("lesson id is required"))
	}

	db, err := s.conn(ctx, "insert")
	if err != nil {
		return 0, err
	}

	var id int64
	err = db.Transaction(func(tx *gorm.DB) error {
		info, err := s.createInfo(tx, c, combo, lessonID)
		if err != nil {
			return err
		}
		if err := insertDetail(tx, info.ID, c); err != nil {
			return err
		}
		id = info.ID
		return nil
	})
	if err != nil {
		var se *ports.StoreError
		if errors.As(err, &se) {
			return 0, err
		}
		return 0, ports.NewStoreError("insert", "", err)
	}

	s.log.Debug("exercise inserted", "id", id, "lesson_id", lessonID, "combination", combo.Key())
	return id, nil
}

func (s *SQLiteStore) createInfo(tx *gorm.DB, c domain.Candidate, combo domain.Combination, lessonID string) (*ExerciseInfo, error) {
	dims, err := resolveDimensions(tx, combo)
	if err != nil {
		return nil, err
	}
	info := &ExerciseInfo{
		ExerciseName: ExerciseName(combo, lessonID),
		LanguageID:   dims.language,
		DifficultyID: dims.difficulty,
		TopicID:      dims.topic,
		ExerciseType: string(c.Type()),
		LessonID:     lessonID,
	}
	if err := tx.Create(info).Error; err != nil {
		return nil, ports.NewStoreError("insert", "exercises_info", err)
	}
	return info, nil
}

type dimensionIDs struct {
	language, difficulty, topic int64
}

func resolveDimensions(tx *gorm.DB, combo domain.Combination) (dimensionIDs, error) {
	lang := Language{Name: combo.Language}
	if err := tx.Where(Language{Name: combo.Language}).FirstOrCreate(&lang).Error; err != nil {
		return dimensionIDs{}, ports.NewStoreError("resolve", "languages", err)
	}
	diff := Difficulty{Name: combo.Level}
	if err := tx.Where(Difficulty{Name: combo.Level}).FirstOrCreate(&diff).Error; err != nil {
		return dimensionIDs{}, ports.NewStoreError("resolve", "difficulties", err)
	}
	topic := Topic{Name: combo.Topic}
	if err := tx.Where(Topic{Name: combo.Topic}).FirstOrCreate(&topic).Error; err != nil {
		return dimensionIDs{}, ports.NewStoreError("resolve", "topics", err)
	}
	return dimensionIDs{language: lang.ID, difficulty: diff.ID, topic: topic.ID}, nil
}

// lookupDimensions finds existing dimension ids without creating any. ok is
// false when one of them does not exist yet, meaning nothing is stored.
func lookupDimensions(tx *gorm.DB, combo domain.Combination) (dimensionIDs, bool, error) {
	var ids dimensionIDs
	for _, q := range []struct {
		model any
		name  string
		dst   *int64
	}{
		{&Language{}, combo.Language, &ids.language},
		{&Difficulty{}, combo.Level, &ids.difficulty},
		{&Topic{}, combo.Topic, &ids.topic},
	} {
		var found []int64
		if err := tx.Model(q.model).Where("name = ?", q.name).Limit(1).Pluck("id", &found).Error; err != nil {
			return ids, false, err
		}
		if len(found) == 0 {
			return ids, false, nil
		}
		*q.dst = found[0]
	}
	return ids, true, nil
}

func insertDetail(tx *gorm.DB, exerciseID int64, c domain.Candidate) error {
	switch v := c.(type) {
	case *domain.Conversation:
		rows := make([]ConversationExercise, 0, len(v.Turns))
		for i, turn := range v.Turns {
			rows = append(rows, ConversationExercise{ExerciseID: exerciseID, TurnOrder: i, Speaker: turn.Speaker, Message: turn.Message})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return ports.NewStoreError("insert", "conversation_exercises", err)
		}
		if err := tx.Create(&ConversationSummary{ExerciseID: exerciseID, Summary: v.Summary}).Error; err != nil {
			return ports.NewStoreError("insert", "conversation_summaries", err)
		}
		return nil

	case *domain.PairBatch:
		inserted := int64(0)
		for _, p := range v.Pairs {
			row := PairExercise{ExerciseID: exerciseID, Language1Content: p.English, Language2Content: p.Target}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if res.Error != nil {
				return ports.NewStoreError("insert", "pair_exercises", res.Error)
			}
			inserted += res.RowsAffected
		}
		if inserted == 0 {
			return ports.NewStoreError("insert", "pair_exercises", domain.ErrNothingInserted)
		}
		return nil

	case *domain.Translation:
		row := TranslationExercise{ExerciseID: exerciseID, Language1Content: v.English, Language2Content: v.Target}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return ports.NewStoreError("insert", "translation_exercises", res.Error)
		}
		if res.RowsAffected == 0 {
			return ports.NewStoreError("insert", "translation_exercises", domain.ErrNothingInserted)
		}
		return nil

	case *domain.FillInBlank:
		row := FillInBlankExercise{
			ExerciseID:    exerciseID,
			Sentence:      v.Sentence,
			CorrectAnswer: v.CorrectAnswer,
			Incorrect1:    v.Incorrect1,
			Incorrect2:    v.Incorrect2,
			BlankPosition: v.BlankPosition,
			Translation:   v.Translation,
		}
		if err := tx.Create(&row).Error; err != nil {
			return ports.NewStoreError("insert", "fill_in_blank_exercises", err)
		}
		return nil

	default:
		return fmt.Errorf("unsupported candidate %T", c)
	}
}
