package model

// QuestionImport is used for loading question banks from JSON or YAML.
type QuestionImport struct {
	Text        string         `json:"text" yaml:"text"`
	Explanation string         `json:"explanation" yaml:"explanation"`
	Answers     []AnswerImport `json:"answers" yaml:"answers"`
}

// AnswerImport is one option of an imported question.
type AnswerImport struct {
	Text    string `json:"text" yaml:"text"`
	Correct bool   `json:"correct" yaml:"correct"`
}

// ExamImport is the top-level structure of a question-bank file.
type ExamImport struct {
	Title       string           `json:"title" yaml:"title"`
	Description string           `json:"description" yaml:"description"`
	DurationSec int              `json:"duration_sec" yaml:"duration_sec"`
	Questions   []QuestionImport `json:"questions" yaml:"questions"`
}
