package models

import "time"

type Question struct {
	QuestionText   string   `json:"question_text"`
	Choices        []string `json:"choices"`
	CorrectAnswer  string   `json:"correct_answer"`
	AudioReference string   `json:"audio_file,omitempty"`
}

// HasAudio reports whether synthesized or uploaded audio is attached.
func (q Question) HasAudio() bool {
	return q.AudioReference != ""
}

type Quiz struct {
	ID        string     `json:"quiz_id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"created_at"`
}

// Clone returns a deep copy so callers never share the repository's slices.
func (q Quiz) Clone() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		out.Questions[i] = question.Clone()
	}
	return out
}

func (q Question) Clone() Question {
	out := q
	out.Choices = append([]string(nil), q.Choices...)
	return out
}
