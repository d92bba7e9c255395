package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"github.com/stemsi/prepgen-backend/internal/database"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/repository"
	"github.com/stemsi/prepgen-backend/internal/service"
)

var seedOpts struct {
	subject  string
	code     string
	chapters int
	perCell  int
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a subject with chapters and verified questions for local development",
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

func init() {
	f := seedCmd.Flags()
	f.StringVar(&seedOpts.subject, "subject", "", "Subject name (required)")
	f.StringVar(&seedOpts.code, "code", "", "Subject code (defaults to the name's first letters)")
	f.IntVar(&seedOpts.chapters, "chapters", 5, "Number of chapters")
	f.IntVar(&seedOpts.perCell, "per-cell", 5, "Questions per chapter, difficulty and source")
	_ = seedCmd.MarkFlagRequired("subject")
}

func runSeed(cmd *cobra.Command, args []string) error {
	if seedOpts.chapters < 1 || seedOpts.perCell < 1 {
		return errors.New("--chapters and --per-cell must be positive")
	}
	code := seedOpts.code
	if code == "" {
		code = subjectCode(seedOpts.subject)
	}

	ctx, cancel := commandContext(cmd, 5*time.Minute)
	defer cancel()

	pool, err := connectPostgres(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb, err := connectRedis(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()

	chapterRepo := repository.NewChapterRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	subjects := service.NewSubjectService(repository.NewSubjectRepository(pool), chapterRepo, rdb, env.cfg, env.log)

	subject, err := subjects.Create(ctx, model.CreateSubjectRequest{Name: seedOpts.subject, Code: code})
	if err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	fmt.Printf("Created subject %s (%s) with ID %d\n", subject.Name, subject.Code, subject.ID)

	weight := 100 / float64(seedOpts.chapters)
	chapters := make([]*model.Chapter, 0, seedOpts.chapters)
	for i := 1; i <= seedOpts.chapters; i++ {
		ch, err := subjects.CreateChapter(ctx, subject.ID, model.ChapterRequest{
			Name:               fmt.Sprintf("Chapter %d", i),
			Weight:             weight,
			EstimatedQuestions: seedOpts.perCell * len(model.Difficulties) * len(model.Sources),
			Position:           i,
		})
		if err != nil {
			return fmt.Errorf("create chapter %d: %w", i, err)
		}
		chapters = append(chapters, ch)
	}

	questions := seedQuestions(subject.ID, chapters, seedOpts.perCell)
	err = database.WithTx(ctx, pool, func(tx pgx.Tx) error {
		repo := questionRepo.WithTx(tx)
		if _, err := repo.CreateBatch(ctx, questions); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
		ids := make([]uuid.UUID, len(questions))
		for i, q := range questions {
			ids[i] = q.ID
		}
		if _, err := repo.VerifyBatch(ctx, ids); err != nil {
			return fmt.Errorf("verify questions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Chapters were added after the catalogue was invalidated by subject creation.
	if _, err := subjects.WarmCatalogue(context.WithoutCancel(ctx)); err != nil {
		env.log.Warn().Err(err).Msg("Catalogue warm failed")
	}

	fmt.Printf("Seeded %d chapters and %d verified questions\n", len(chapters), len(questions))
	return nil
}

// seedQuestions builds perCell questions for every chapter, difficulty and
// source. Correct options rotate through A-D.
func seedQuestions(subjectID int, chapters []*model.Chapter, perCell int) []model.Question {
	questions := make([]model.Question, 0, len(chapters)*len(model.Difficulties)*len(model.Sources)*perCell)
	n := 0
	for _, ch := range chapters {
		for _, d := range model.Difficulties {
			for _, src := range model.Sources {
				for i := 1; i <= perCell; i++ {
					questions = append(questions, model.Question{
						ID:            uuid.New(),
						SubjectID:     subjectID,
						ChapterID:     ch.ID,
						QuestionText:  fmt.Sprintf("%s: %s %s question %d", ch.Name, d, src, i),
						Options:       []string{"Option A", "Option B", "Option C", "Option D"},
						CorrectOption: model.OptionLabels[n%len(model.OptionLabels)],
						Difficulty:    d,
						Source:        src,
						Marks:         1,
					})
					n++
				}
			}
		}
	}
	return questions
}

// subjectCode takes the leading letters of each word, e.g. "Organic Chemistry" → "OC".
// Single words use their first four letters.
func subjectCode(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
	if len(words) == 1 {
		w := []rune(words[0])
		if len(w) > 4 {
			w = w[:4]
		}
		return strings.ToUpper(string(w))
	}
	var b strings.Builder
	for _, w := range words {
		b.WriteRune(unicode.ToUpper([]rune(w)[0]))
	}
	return b.String()
}
