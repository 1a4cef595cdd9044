package domain

import "strings"

// BlankMarker is the placeholder that marks the gap in a fill-in-blank sentence.
const BlankMarker = "_"

// Candidate is one parsed exercise awaiting validation. The concrete type is
// decided once by the parser; downstream stages switch on it and never
// re-inspect raw payloads.
//
// The interface is sealed: only the four shapes in this package implement it.
type Candidate interface {
	// Type reports which exercise shape the candidate carries.
	Type() ExerciseType
	// PrimaryText is the text the similarity filter compares.
	PrimaryText() string
	isCandidate()
}

// Turn is one line of a conversation.
type Turn struct {
	Speaker string `json:"speaker" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// Conversation is a short dialogue in the target language plus a summary.
type Conversation struct {
	Turns   []Turn `json:"conversation" validate:"min=2,max=8,dive"`
	Summary string `json:"conversation_summary" validate:"required"`
}

// Pair is one English / target-language word or phrase pair.
type Pair struct {
	English string `json:"english" validate:"required,maxwords=10"`
	Target  string `json:"target" validate:"required,maxwords=10"`
}

// PairBatch is a set of related word pairs that form one exercise.
type PairBatch struct {
	Pairs []Pair `json:"pairs" validate:"min=5,max=7,dive"`
}

// Translation is a full sentence with its target-language rendering.
type Translation struct {
	English string `json:"english" validate:"required"`
	Target  string `json:"target" validate:"required"`
}

// FillInBlank is a target-language sentence with a single gap and three
// answer options, one of which is correct.
type FillInBlank struct {
	Sentence      string `json:"sentence" validate:"required"`
	CorrectAnswer string `json:"correct_answer" validate:"required,maxwords=3"`
	Incorrect1    string `json:"incorrect_1" validate:"required,maxwords=3"`
	Incorrect2    string `json:"incorrect_2" validate:"required,maxwords=3"`
	BlankPosition int    `json:"blank_position" validate:"min=0"`
	Translation   string `json:"translation" validate:"required"`
}

func (*Conversation) Type() ExerciseType { return ExerciseConversation }
func (*PairBatch) Type() ExerciseType    { return ExercisePairs }
func (*Translation) Type() ExerciseType  { return ExerciseTranslation }
func (*FillInBlank) Type() ExerciseType  { return ExerciseFillInBlank }

// PrimaryText for a conversation is its summary, which names what the
// dialogue is about independent of phrasing.
func (c *Conversation) PrimaryText() string { return c.Summary }

// PrimaryText for a pair batch joins both sides of every pair.
func (p *PairBatch) PrimaryText() string {
	parts := make([]string, 0, len(p.Pairs)*2)
	for _, pair := range p.Pairs {
		parts = append(parts, pair.English, pair.Target)
	}
	return strings.Join(parts, " ")
}

func (t *Translation) PrimaryText() string { return t.English }
func (f *FillInBlank) PrimaryText() string { return f.Sentence }

func (*Conversation) isCandidate() {}
func (*PairBatch) isCandidate()    {}
func (*Translation) isCandidate()  {}
func (*FillInBlank) isCandidate()  {}

// Options returns the three answer options in presentation order.
func (f *FillInBlank) Options() []string {
	return []string{f.CorrectAnswer, f.Incorrect1, f.Incorrect2}
}

// CountWords returns the number of whitespace-separated words in s.
func CountWords(s string) int { return len(strings.Fields(s)) }
