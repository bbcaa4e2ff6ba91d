package models

type SynthesisStatus string

const (
	SynthesisReady  SynthesisStatus = "ready"
	SynthesisFailed SynthesisStatus = "failed"
)

// SynthesisResult is the outcome of one question's synthesis job.
type SynthesisResult struct {
	QuestionIndex int             `json:"question_index"`
	Status        SynthesisStatus `json:"status"`
	AudioFile     string          `json:"audio_file,omitempty"`
	Error         string          `json:"error,omitempty"`
}

func (r SynthesisResult) OK() bool {
	return r.Status == SynthesisReady
}
