package validator

import (
	"testing"

	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() model.GeneratePaperRequest {
	return model.GeneratePaperRequest{
		SubjectID:      1,
		PaperType:      "practice",
		PracticeType:   "full_syllabus",
		TotalQuestions: 10,
	}
}

func TestGeneratePaperRequestDistributions(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		mutate  func(r *model.GeneratePaperRequest)
		wantErr string
	}{
		{"defaults", func(r *model.GeneratePaperRequest) {}, ""},
		{"valid split", func(r *model.GeneratePaperRequest) {
			r.DifficultyDistribution = map[string]float64{"easy": 30, "medium": 50, "hard": 20}
			r.SourceDistribution = map[string]float64{"previous_year": 70, "ai_generated": 30}
		}, ""},
		{"sum below 100", func(r *model.GeneratePaperRequest) {
			r.DifficultyDistribution = map[string]float64{"easy": 30, "medium": 50, "hard": 10}
		}, "difficulty_distribution"},
		{"unknown key", func(r *model.GeneratePaperRequest) {
			r.SourceDistribution = map[string]float64{"textbook": 100}
		}, "source_distribution"},
		{"negative share", func(r *model.GeneratePaperRequest) {
			r.DifficultyDistribution = map[string]float64{"easy": -10, "medium": 90, "hard": 20}
		}, "difficulty_distribution"},
		{"bad paper type", func(r *model.GeneratePaperRequest) { r.PaperType = "final" }, "paper_type"},
		{"zero total", func(r *model.GeneratePaperRequest) { r.TotalQuestions = 0 }, "total_questions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := v.Struct(req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			fields := TranslateErrors(err)
			var matched bool
			for k := range fields {
				if k == tt.wantErr || len(k) > len(tt.wantErr) && k[:len(tt.wantErr)] == tt.wantErr {
					matched = true
				}
			}
			assert.True(t, matched, "fields: %v", fields)
		})
	}
}

func TestPercentSumMessage(t *testing.T) {
	req := validRequest()
	req.DifficultyDistribution = map[string]float64{"easy": 10, "medium": 10, "hard": 10}

	fields := TranslateErrors(New().Struct(req))
	assert.Equal(t, "difficulty_distribution percentages must add up to 100", fields["difficulty_distribution"])
}

func TestCreateQuestionRequestNeedsFourOptions(t *testing.T) {
	req := model.CreateQuestionRequest{
		ChapterID:     1,
		QuestionText:  "2 + 2 = ?",
		Options:       []string{"3", "4", "5"},
		CorrectOption: "B",
		Difficulty:    "easy",
		Source:        "previous_year",
	}
	err := New().Struct(req)
	require.Error(t, err)
	assert.Contains(t, TranslateErrors(err), "options")

	req.Options = append(req.Options, "6")
	assert.NoError(t, New().Struct(req))
}
