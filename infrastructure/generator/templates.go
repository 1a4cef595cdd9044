package generator

import (
	"text/template"

	"github.com/ahrav/go-lessonforge/infrastructure/prompt"
	"github.com/ahrav/go-lessonforge/internal/domain"
)

const header = `You are writing {{.Language}} exercises for a language-learning app.
Learner level: {{.Level}}
Topic: {{.Topic}}
`

const footer = `
Respond with a JSON array only, with no commentary before or after it.
The array must contain between {{.MinItems}} and {{.MaxItems}} items and satisfy this JSON Schema:
{{.Schema}}
`

var templates = map[domain.ExerciseType]*template.Template{
	domain.ExerciseConversation: prompt.MustParse("conversation", header+`
Write short, natural dialogues in {{.Language}} between two or three people about the topic.
Each dialogue has 2 to 8 turns. Each turn has a "speaker" name and a "message" in {{.Language}}.
Use vocabulary and grammar a {{lower .Level}} learner can follow.
Add a "conversation_summary": one English sentence saying what the dialogue is about.
Every dialogue must cover a different situation.
`+footer),

	domain.ExercisePairs: prompt.MustParse("pairs", header+`
Produce one set of related vocabulary pairs for the topic.
Each item has an "English" word or short phrase and its "{{.TargetKey}}" equivalent.
Each side is at most 10 words. No pair may repeat another.
Prefer common, concrete words a {{lower .Level}} learner needs.
`+footer),

	domain.ExerciseTranslation: prompt.MustParse("translation", header+`
Write complete English sentences about the topic and translate each into {{.Language}}.
Each item has an "English" sentence and its "{{.TargetKey}}" translation.
Sentences should be useful in everyday situations and suited to a {{lower .Level}} learner.
Every sentence must be different in structure and vocabulary.
`+footer),

	domain.ExerciseFillInBlank: prompt.MustParse("fill_in_blank", header+`
Write {{.Language}} sentences about the topic, each with exactly one missing word shown as a single underscore: _
For each sentence give:
- "correct_answer": the word that fills the blank
- "incorrect_1" and "incorrect_2": plausible wrong options of the same word class
- "blank_position": zero-based index of the blank among the sentence's words
- "translation": the full English translation of the completed sentence, with no underscore
Exactly one option may fit the sentence. The three options must all differ and each be at most 3 words.
`+footer),
}

type promptData struct {
	Language  string
	Level     string
	Topic     string
	TargetKey string
	MinItems  int
	MaxItems  int
	Schema    string
}
