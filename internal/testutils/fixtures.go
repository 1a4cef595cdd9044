package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/ahrav/go-lessonforge/internal/domain"
)

// FrenchFoodPairs is a valid pairs generation response for
// (French, beginner, food), wrapped in a reasoning preamble.
const FrenchFoodPairs = `<think>Five common food words.</think>
Here are the pairs:
[
  {"English": "apple", "French": "pomme"},
  {"English": "bread", "French": "pain"},
  {"English": "cheese", "French": "fromage"},
  {"English": "water", "French": "eau"},
  {"English": "red wine", "French": "vin rouge"}
]`

// FrenchFoodPairsOverlap reuses most of the FrenchFoodPairs vocabulary.
const FrenchFoodPairsOverlap = `[
  {"English": "apple", "French": "pomme"},
  {"English": "bread", "French": "pain"},
  {"English": "cheese", "French": "fromage"},
  {"English": "water", "French": "eau"},
  {"English": "wine", "French": "vin"}
]`

// FrenchTravelPairs shares no words with the food pairs.
const FrenchTravelPairs = `[
  {"English": "train station", "French": "gare"},
  {"English": "ticket", "French": "billet"},
  {"English": "suitcase", "French": "valise"},
  {"English": "passport", "French": "passeport"},
  {"English": "airport", "French": "aéroport"}
]`

// FrenchFillInBlank is a valid single-item fill-in-blank response.
const FrenchFillInBlank = `[{"sentence": "Je mange une _ rouge", "correct_answer": "pomme",
  "incorrect_1": "voiture", "incorrect_2": "chaise", "blank_position": 3,
  "translation": "I eat a red apple"}]`

// FrenchFillInBlankDuplicateOption repeats the correct answer as a wrong option.
const FrenchFillInBlankDuplicateOption = `[{"sentence": "Je mange une _ rouge", "correct_answer": "pomme",
  "incorrect_1": "pomme", "incorrect_2": "voiture", "blank_position": 3,
  "translation": "I eat a red apple"}]`

// FrenchTranslations is a valid two-item translation response.
const FrenchTranslations = "```json\n" + `[
  {"English": "Where is the bakery?", "French": "Où est la boulangerie ?"},
  {"English": "I would like a coffee, please.", "French": "Je voudrais un café, s'il vous plaît."}
]` + "\n```"

// FrenchConversation is a valid single-dialogue conversation response.
const FrenchConversation = `[{"conversation": [
    {"speaker": "Marie", "message": "Bonjour, je voudrais une baguette."},
    {"speaker": "Boulanger", "message": "Voilà, un euro vingt."},
    {"speaker": "Marie", "message": "Merci, bonne journée !"}
  ],
  "conversation_summary": "Marie buys a baguette at the bakery"}]`

// Verdict builds a validation-model response for exercise type t with every
// axis set to pass except those listed in failing.
func Verdict(t domain.ExerciseType, score int, issues []string, failing ...string) string {
	v := map[string]any{}
	for _, axis := range append(append([]string{}, domain.CommonAxes...), domain.TypeAxes(t)...) {
		v[axis] = true
	}
	for _, axis := range failing {
		v[axis] = false
	}
	v["overall_quality_score"] = score
	if issues == nil {
		issues = []string{}
	}
	v["issues"] = issues

	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal verdict: %v", err))
	}
	return string(b)
}

// Combo returns a French beginner food combination of type t.
func Combo(t domain.ExerciseType) domain.Combination {
	return domain.Combination{Language: "French", Level: "beginner", Topic: "food", ExerciseType: t}
}
