// Package generator assembles a question paper from the bank according to a
// GenerationConfig. Generation is a pure read: nothing is persisted here.
package generator

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"github.com/stemsi/prepgen-backend/internal/apperror"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/planner"
)

// DefaultMaxRelaxationPasses relaxes source, then difficulty, then chapter.
const DefaultMaxRelaxationPasses = 3

// Relaxation levels, least specific constraint first.
const (
	relaxNone = iota
	relaxSource
	relaxDifficulty
	relaxChapter
)

// Options tune the generator.
type Options struct {
	// MaxRelaxationPasses caps how many constraints may be dropped to backfill a short cell.
	// Negative means none; zero selects DefaultMaxRelaxationPasses.
	MaxRelaxationPasses int
	// IncludeUnverified adds a last pass that also admits unverified questions.
	IncludeUnverified bool
	// NewSeed draws seeds for randomized papers that do not carry one.
	// Nil uses math/rand/v2.
	NewSeed func() int64
}

// maxSeed keeps seeds exact in JSON numbers.
const maxSeed = 1<<53 - 1

// Generator composes papers from a QuestionSource.
type Generator struct {
	source QuestionSource
	opts   Options
}

// New creates a Generator.
func New(source QuestionSource, opts Options) *Generator {
	if opts.MaxRelaxationPasses == 0 {
		opts.MaxRelaxationPasses = DefaultMaxRelaxationPasses
	}
	if opts.MaxRelaxationPasses < 0 {
		opts.MaxRelaxationPasses = 0
	}
	if opts.MaxRelaxationPasses > relaxChapter {
		opts.MaxRelaxationPasses = relaxChapter
	}
	return &Generator{source: source, opts: opts}
}

// WithSource returns a copy of g reading from source, e.g. a transaction-bound repository.
func (g *Generator) WithSource(source QuestionSource) *Generator {
	return &Generator{source: source, opts: g.opts}
}

// Statistics summarises what was planned and what was achieved.
type Statistics struct {
	Requested           int                      `json:"requested"`
	Achieved            int                      `json:"achieved"`
	PlannedByDifficulty map[model.Difficulty]int `json:"planned_by_difficulty"`
	ByDifficulty        map[model.Difficulty]int `json:"by_difficulty"`
	PlannedBySource     map[model.Source]int     `json:"planned_by_source"`
	BySource            map[model.Source]int     `json:"by_source"`
	PlannedByChapter    map[int]int              `json:"planned_by_chapter"`
	ByChapter           map[int]int              `json:"by_chapter"`
	RelaxedPicks        int                      `json:"relaxed_picks"`
	UnverifiedPicks     int                      `json:"unverified_picks"`
	RelaxationPasses    int                      `json:"relaxation_passes"`
	TotalMarks          int                      `json:"total_marks"`
	Seed                int64                    `json:"seed,omitempty"`
}

// Result is the generation envelope. A shortfall is reported here, not as an error.
type Result struct {
	Success    bool             `json:"success"`
	Questions  []model.Question `json:"questions"`
	Statistics Statistics       `json:"statistics"`
	Error      string           `json:"error,omitempty"`
}

// Err converts a failed result into an *apperror.InsufficientDataError. It is nil on success.
func (r *Result) Err() error {
	if r.Success {
		return nil
	}
	return &apperror.InsufficientDataError{
		Requested: r.Statistics.Requested,
		Achieved:  r.Statistics.Achieved,
		Reason:    r.Error,
	}
}

// cell is one (chapter, difficulty, source) quota.
type cell struct {
	chapterID  int
	difficulty model.Difficulty
	source     model.Source
	quota      int
	filled     int
}

func (c *cell) short() int { return c.quota - c.filled }

// paper accumulates selected questions with id dedup.
type paper struct {
	questions []model.Question
	seen      map[uuid.UUID]struct{}
}

func (p *paper) excluded() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.seen))
	for _, q := range p.questions {
		ids = append(ids, q.ID)
	}
	return ids
}

// add appends unseen questions up to limit and returns the ones taken.
func (p *paper) add(qs []model.Question, limit int) []model.Question {
	var taken []model.Question
	for _, q := range qs {
		if len(taken) == limit {
			break
		}
		if _, dup := p.seen[q.ID]; dup {
			continue
		}
		p.seen[q.ID] = struct{}{}
		p.questions = append(p.questions, q)
		taken = append(taken, q)
	}
	return taken
}

// Generate builds a paper of cfg.TotalQuestions questions drawn from chapters.
// chapters are the chapters the paper may draw from, already resolved by the caller.
// Invalid configuration returns a *apperror.ConfigError; an unfillable bank
// returns a Result with Success false.
func (g *Generator) Generate(ctx context.Context, cfg model.GenerationConfig, chapters []model.Chapter) (*Result, error) {
	cells, stats, err := g.plan(cfg, chapters)
	if err != nil {
		return nil, err
	}
	if cfg.Randomize {
		if cfg.Seed <= 0 {
			cfg.Seed = g.newSeed()
		}
		stats.Seed = cfg.Seed
	}

	chapterIDs := make([]int, len(chapters))
	for i, ch := range chapters {
		chapterIDs[i] = ch.ID
	}

	p := &paper{seen: make(map[uuid.UUID]struct{}, cfg.TotalQuestions)}

	// Pass 0: every cell exactly.
	for _, c := range cells {
		if c.quota == 0 {
			continue
		}
		taken, err := g.fill(ctx, p, cfg, c, chapterIDs, relaxNone, false)
		if err != nil {
			return nil, err
		}
		c.filled += len(taken)
	}

	// Relaxation passes for short cells.
	for level := relaxSource; level <= g.opts.MaxRelaxationPasses && len(p.questions) < cfg.TotalQuestions; level++ {
		stats.RelaxationPasses++
		for _, c := range cells {
			if c.short() <= 0 {
				continue
			}
			taken, err := g.fill(ctx, p, cfg, c, chapterIDs, level, false)
			if err != nil {
				return nil, err
			}
			c.filled += len(taken)
			stats.RelaxedPicks += len(taken)
		}
	}

	if g.opts.IncludeUnverified && len(p.questions) < cfg.TotalQuestions {
		stats.RelaxationPasses++
		for _, c := range cells {
			if c.short() <= 0 {
				continue
			}
			taken, err := g.fill(ctx, p, cfg, c, chapterIDs, g.opts.MaxRelaxationPasses, true)
			if err != nil {
				return nil, err
			}
			c.filled += len(taken)
			stats.RelaxedPicks += len(taken)
			for _, q := range taken {
				if !q.IsVerified {
					stats.UnverifiedPicks++
				}
			}
		}
	}

	for _, q := range p.questions {
		stats.ByDifficulty[q.Difficulty]++
		stats.BySource[q.Source]++
		stats.ByChapter[q.ChapterID]++
		stats.TotalMarks += q.Marks
	}
	stats.Achieved = len(p.questions)

	if cfg.Randomize {
		shuffle(p.questions, cfg.Seed)
	}

	res := &Result{Questions: p.questions, Statistics: *stats}
	if stats.Achieved < cfg.TotalQuestions {
		res.Error = describeShortfall(cells, stats)
		return res, nil
	}
	res.Success = true
	return res, nil
}

// Quotas returns the planned counts Generate would try to fill, without touching the bank.
func (g *Generator) Quotas(cfg model.GenerationConfig, chapters []model.Chapter) (*Statistics, error) {
	_, stats, err := g.plan(cfg, chapters)
	return stats, err
}

func (g *Generator) plan(cfg model.GenerationConfig, chapters []model.Chapter) ([]*cell, *Statistics, error) {
	if cfg.TotalQuestions <= 0 {
		return nil, nil, apperror.NewConfig("total_questions", "must be positive, got %d", cfg.TotalQuestions)
	}
	if len(chapters) == 0 {
		return nil, nil, apperror.NewConfig("chapter_ids", "no chapters to draw from")
	}
	for _, ch := range chapters {
		if ch.SubjectID != cfg.SubjectID {
			return nil, nil, apperror.NewConfig("chapter_ids", "chapter %d does not belong to subject %d", ch.ID, cfg.SubjectID)
		}
	}

	diffBuckets, err := difficultyBuckets(cfg.DifficultyDistribution)
	if err != nil {
		return nil, nil, err
	}
	srcBuckets, err := sourceBuckets(cfg.SourceDistribution)
	if err != nil {
		return nil, nil, err
	}

	diffQuotas, err := planner.Plan(cfg.TotalQuestions, diffBuckets)
	if err != nil {
		return nil, nil, err
	}

	stats := &Statistics{
		Requested:           cfg.TotalQuestions,
		PlannedByDifficulty: make(map[model.Difficulty]int, len(model.Difficulties)),
		ByDifficulty:        make(map[model.Difficulty]int, len(model.Difficulties)),
		PlannedBySource:     make(map[model.Source]int, len(model.Sources)),
		BySource:            make(map[model.Source]int, len(model.Sources)),
		PlannedByChapter:    make(map[int]int, len(chapters)),
		ByChapter:           make(map[int]int, len(chapters)),
	}

	chBuckets := planner.ChapterBuckets(chapters)
	var cells []*cell
	for i, dq := range diffQuotas {
		d := model.Difficulties[i]
		stats.PlannedByDifficulty[d] = dq.Count

		srcQuotas, err := planner.Split(dq.Count, srcBuckets)
		if err != nil {
			return nil, nil, err
		}
		for j, sq := range srcQuotas {
			s := model.Sources[j]
			stats.PlannedBySource[s] += sq.Count

			chQuotas, err := planner.Split(sq.Count, chBuckets)
			if err != nil {
				return nil, nil, err
			}
			for k, cq := range chQuotas {
				id := chapters[k].ID
				stats.PlannedByChapter[id] += cq.Count
				cells = append(cells, &cell{chapterID: id, difficulty: d, source: s, quota: cq.Count})
			}
		}
	}
	return cells, stats, nil
}

func (g *Generator) fill(ctx context.Context, p *paper, cfg model.GenerationConfig, c *cell, chapterIDs []int, level int, unverified bool) ([]model.Question, error) {
	f := Filter{
		SubjectID:         cfg.SubjectID,
		ChapterIDs:        []int{c.chapterID},
		ExcludeIDs:        p.excluded(),
		Limit:             c.short(),
		Random:            cfg.Randomize,
		Seed:              cfg.Seed,
		IncludeUnverified: unverified,
	}
	if level < relaxSource {
		s := c.source
		f.Source = &s
	}
	if level < relaxDifficulty {
		d := c.difficulty
		f.Difficulty = &d
	}
	if level >= relaxChapter {
		f.ChapterIDs = chapterIDs
	}

	qs, err := g.source.Select(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("select questions for chapter %d %s/%s: %w", c.chapterID, c.difficulty, c.source, err)
	}
	return p.add(qs, f.Limit), nil
}

func (g *Generator) newSeed() int64 {
	if g.opts.NewSeed != nil {
		if seed := g.opts.NewSeed(); seed > 0 {
			return seed
		}
	}
	return rand.Int64N(maxSeed) + 1
}

// shuffle orders qs by a PCG stream derived from seed.
func shuffle(qs []model.Question, seed int64) {
	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	r.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
}

func difficultyBuckets(dist map[model.Difficulty]float64) ([]planner.Bucket, error) {
	for d := range dist {
		if !isDifficulty(d) {
			return nil, apperror.NewConfig("difficulty_distribution", "unknown difficulty %q", d)
		}
	}
	buckets := make([]planner.Bucket, len(model.Difficulties))
	for i, d := range model.Difficulties {
		buckets[i] = planner.Bucket{Label: string(d), Percent: dist[d]}
	}
	return buckets, nil
}

func sourceBuckets(dist map[model.Source]float64) ([]planner.Bucket, error) {
	for s := range dist {
		if !isSource(s) {
			return nil, apperror.NewConfig("source_distribution", "unknown source %q", s)
		}
	}
	var sum float64
	buckets := make([]planner.Bucket, len(model.Sources))
	for i, s := range model.Sources {
		buckets[i] = planner.Bucket{Label: string(s), Percent: dist[s]}
		sum += dist[s]
	}
	if math.Abs(sum-100) > planner.PercentTolerance {
		return nil, apperror.NewConfig("source_distribution", "percentages sum to %.2f, expected 100", sum)
	}
	return buckets, nil
}

func isDifficulty(d model.Difficulty) bool {
	for _, known := range model.Difficulties {
		if d == known {
			return true
		}
	}
	return false
}

func isSource(s model.Source) bool {
	for _, known := range model.Sources {
		if s == known {
			return true
		}
	}
	return false
}

func describeShortfall(cells []*cell, stats *Statistics) string {
	var short []string
	for _, c := range cells {
		if n := c.short(); n > 0 {
			short = append(short, fmt.Sprintf("chapter %d %s/%s short by %d", c.chapterID, c.difficulty, c.source, n))
		}
	}
	msg := fmt.Sprintf("only %d of %d questions available after %d relaxation passes",
		stats.Achieved, stats.Requested, stats.RelaxationPasses)
	if len(short) > 0 {
		msg += ": " + strings.Join(short, ", ")
	}
	return msg
}
