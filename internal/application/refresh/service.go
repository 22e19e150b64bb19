package refresh

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sms-hub/sms-dashboard/internal/domain/performance"
	"github.com/sms-hub/sms-dashboard/internal/domain/ranking"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
)

// Slice names reported in Snapshot.Degraded.
const (
	SliceStudents   = "students"
	SliceCourses    = "courses"
	SliceAttendance = "attendance"
	SliceTotals     = "totals"
)

var (
	// ErrStaleRefresh is returned when every view of a refresh lost to a newer one.
	ErrStaleRefresh = shared.NewDomainError("refresh", "Publish", shared.ErrConflict, "a newer refresh was already published")

	// ErrNoBoard is returned before the first successful refresh.
	ErrNoBoard = shared.NewDomainError("refresh", "Board", shared.ErrNotFound, "no board has been computed yet")
)

// BoardCache shares the latest board between replicas.
type BoardCache interface {
	SaveBoard(ctx context.Context, board *ranking.Board) error
	LoadBoard(ctx context.Context) (*ranking.Board, error)
}

// Config configures the Service.
type Config struct {
	// TotalsConcurrency bounds parallel total fetches. 1 fetches sequentially.
	TotalsConcurrency int

	// FetchTimeout bounds one refresh. Zero means none.
	FetchTimeout time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// DefaultTotalsConcurrency is used when Config.TotalsConcurrency is not positive.
const DefaultTotalsConcurrency = 4

// Service builds and publishes snapshots.
type Service struct {
	reader roster.Reader
	cache  BoardCache
	gens   *Generations
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewService creates a refresh service. cache may be nil.
func NewService(reader roster.Reader, cache BoardCache, cfg Config) *Service {
	if cfg.TotalsConcurrency <= 0 {
		cfg.TotalsConcurrency = DefaultTotalsConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		reader: reader,
		cache:  cache,
		gens:   NewGenerations(),
		cfg:    cfg,
		logger: cfg.Logger.With(slog.String("component", "refresh")),
	}
}

// Generations exposes the per-view counters.
func (s *Service) Generations() *Generations { return s.gens }

// Snapshot returns the latest published snapshot, or nil before the first refresh.
func (s *Service) Snapshot() *Snapshot { return s.current.Load() }

// Board returns the latest board, falling back to the shared cache.
func (s *Service) Board(ctx context.Context) (*ranking.Board, error) {
	if snap := s.current.Load(); snap != nil && snap.Board != nil {
		return snap.Board, nil
	}
	if s.cache != nil {
		board, err := s.cache.LoadBoard(ctx)
		if err != nil {
			s.logger.Warn("board cache read failed", slog.String("error", err.Error()))
		} else if board != nil {
			return board, nil
		}
	}
	return nil, ErrNoBoard
}

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH
// ══════════════════════════════════════════════════════════════════════════════

// Refresh fetches the given views, or every data view when none is given, and
// publishes the views whose tickets are still the newest. Failed slices are
// published empty and listed in Snapshot.Degraded. The board is recomputed
// from the merged snapshot.
func (s *Service) Refresh(ctx context.Context, views ...View) (*Snapshot, error) {
	views = normalizeViews(views)

	tickets := make(map[View]Ticket, len(views))
	for _, v := range views {
		tickets[v] = s.gens.Begin(v)
	}

	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}

	start := s.cfg.Now()
	res := s.fetch(ctx, views)

	s.mu.Lock()
	next := emptySnapshot()
	if cur := s.current.Load(); cur != nil {
		next = cur.clone()
	}

	accepted := 0
	for _, v := range views {
		t := tickets[v]
		if !s.gens.Publish(t) {
			s.logger.Debug("discarding stale refresh result",
				slog.String("view", string(v)),
				slog.Uint64("generation", t.Generation))
			continue
		}
		accepted++
		res.apply(v, next)
		next.Generations[v] = t.Generation
	}

	if accepted == 0 {
		s.mu.Unlock()
		return s.current.Load(), ErrStaleRefresh
	}

	next.TakenAt = s.cfg.Now()
	prevBoard := next.Board
	s.recompute(next)
	next.Movement = nil
	if !prevBoard.IsEmpty() {
		next.Movement = next.Board.Movement(prevBoard)
	}

	bt := s.gens.Begin(ViewBoard)
	s.gens.Publish(bt)
	next.Board.Generation = bt.Generation
	next.Generations[ViewBoard] = bt.Generation
	s.current.Store(next)
	s.mu.Unlock()

	s.logger.Info("dashboard refreshed",
		slog.Uint64("generation", bt.Generation),
		slog.Int("students", len(next.Students)),
		slog.Int("aggregates", len(next.Aggregates)),
		slog.Any("degraded", next.Degraded),
		slog.Duration("took", next.TakenAt.Sub(start)))

	for list, change := range next.Movement {
		s.logger.Info("leader list changed",
			slog.String("list", list),
			slog.Any("entered", change.Entered),
			slog.Any("left", change.Left))
	}

	if s.cache != nil {
		if err := s.cache.SaveBoard(ctx, next.Board); err != nil {
			s.logger.Warn("board cache write failed", slog.String("error", err.Error()))
		}
	}

	return next, nil
}

func normalizeViews(views []View) []View {
	if len(views) == 0 {
		return slices.Clone(DataViews)
	}
	out := make([]View, 0, len(views))
	for _, v := range DataViews {
		if slices.Contains(views, v) {
			out = append(out, v)
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// FETCH PLAN
// ══════════════════════════════════════════════════════════════════════════════

type fetchResult struct {
	students    []roster.Student
	studentsErr error
	courses     []roster.Course
	coursesErr  error
	attendance  []roster.AttendanceRecord
	attErr      error
	totals      map[roster.StudentID]int
	totalsErr   error
}

func (r *fetchResult) apply(v View, snap *Snapshot) {
	switch v {
	case ViewStudents:
		snap.Students = r.students
		snap.Courses = r.courses
		snap.markDegraded(SliceStudents, r.studentsErr != nil)
		snap.markDegraded(SliceCourses, r.coursesErr != nil)
	case ViewAttendance:
		snap.Attendance = r.attendance
		snap.markDegraded(SliceAttendance, r.attErr != nil)
	case ViewMarks:
		snap.Totals = r.totals
		snap.markDegraded(SliceTotals, r.totalsErr != nil)
	}
}

// fetch runs the slices of the requested views in parallel. A failed slice
// degrades to no data and never cancels its siblings.
func (s *Service) fetch(ctx context.Context, views []View) *fetchResult {
	res := &fetchResult{}
	wantStudents := slices.Contains(views, ViewStudents)
	wantMarks := slices.Contains(views, ViewMarks)

	var g errgroup.Group

	if wantStudents || wantMarks {
		g.Go(func() error {
			students, err := s.rosterForTotals(ctx, wantStudents)
			if wantStudents {
				res.students, res.studentsErr = students, err
				s.logSliceError(SliceStudents, err)
			}
			if wantMarks {
				res.totals, res.totalsErr = s.fetchTotals(ctx, students, err)
			}
			return nil
		})
	}

	if wantStudents {
		g.Go(func() error {
			res.courses, res.coursesErr = s.reader.ListCourses(ctx)
			s.logSliceError(SliceCourses, res.coursesErr)
			return nil
		})
	}

	if slices.Contains(views, ViewAttendance) {
		g.Go(func() error {
			res.attendance, res.attErr = s.reader.ListAttendance(ctx)
			s.logSliceError(SliceAttendance, res.attErr)
			return nil
		})
	}

	_ = g.Wait()
	return res
}

// rosterForTotals lists students when the students view is refreshed, or when
// there is no published roster to take ids from.
func (s *Service) rosterForTotals(ctx context.Context, fetch bool) ([]roster.Student, error) {
	if !fetch {
		if cur := s.current.Load(); cur != nil && len(cur.Students) > 0 {
			return cur.Students, nil
		}
	}
	return s.reader.ListStudents(ctx)
}

// fetchTotals requests every student's total with bounded parallelism.
// Students whose total fails are left out of the map.
func (s *Service) fetchTotals(ctx context.Context, students []roster.Student, rosterErr error) (map[roster.StudentID]int, error) {
	totals := make(map[roster.StudentID]int, len(students))
	if rosterErr != nil {
		s.logSliceError(SliceTotals, rosterErr)
		return totals, rosterErr
	}

	var (
		mu       sync.Mutex
		firstErr error
		failed   int
	)

	var g errgroup.Group
	g.SetLimit(s.cfg.TotalsConcurrency)
	for _, st := range students {
		g.Go(func() error {
			total, err := s.reader.TotalMarks(ctx, st.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				if firstErr == nil {
					firstErr = err
				}
				s.logger.Warn("total marks fetch failed",
					slog.Int64("student_id", int64(st.ID)),
					slog.String("error", err.Error()))
				return nil
			}
			totals[st.ID] = total
			return nil
		})
	}
	_ = g.Wait()

	if failed > 0 {
		s.logger.Warn("total marks partially unavailable",
			slog.Int("failed", failed),
			slog.Int("students", len(students)))
	}
	return totals, firstErr
}

func (s *Service) logSliceError(slice string, err error) {
	if err == nil {
		return
	}
	s.logger.Warn("slice fetch failed, degrading to no data",
		slog.String("slice", slice),
		slog.String("error", err.Error()))
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATION
// ══════════════════════════════════════════════════════════════════════════════

// recompute rebuilds aggregates and the board from the snapshot's raw slices.
func (s *Service) recompute(snap *Snapshot) {
	subjectCount := make(map[roster.CourseID]int, len(snap.Courses))
	for _, c := range snap.Courses {
		subjectCount[c.ID] = len(c.Subjects)
	}

	tallies := performance.TallyAttendance(snap.Attendance)
	attendancePct := make(map[roster.StudentID]float64, len(tallies))
	for _, t := range tallies {
		attendancePct[t.StudentID] = t.Percentage()
	}

	aggregates := make(map[roster.StudentID]performance.Aggregate, len(snap.Students))
	for _, st := range snap.Students {
		total, ok := snap.Totals[st.ID]
		if !ok {
			continue
		}
		count := 0
		if st.Course != nil {
			count = subjectCount[st.Course.ID]
			if count == 0 {
				count = len(st.Course.Subjects)
			}
		}
		agg := performance.FromParts(st.ID, attendancePct[st.ID], total, count)
		if err := agg.Check(); err != nil {
			s.logger.Warn("inconsistent aggregate",
				slog.Int64("student_id", int64(st.ID)),
				slog.Int("total", total),
				slog.Int("subjects", count))
		}
		aggregates[st.ID] = agg
	}
	snap.Aggregates = aggregates
	snap.Board = buildBoard(snap, tallies)
}

type candidate struct {
	student roster.Student
	agg     performance.Aggregate
}

func buildBoard(snap *Snapshot, tallies []performance.Tally) *ranking.Board {
	byID := make(map[roster.StudentID]roster.Student, len(snap.Students))
	evicted := 0
	candidates := make([]candidate, 0, len(snap.Aggregates))
	for _, st := range snap.Students {
		byID[st.ID] = st
		if st.IsEvicted() {
			evicted++
		}
		if agg, ok := snap.Aggregates[st.ID]; ok {
			candidates = append(candidates, candidate{student: st, agg: agg})
		}
	}

	// Prefer the roster's view of a student over the copy embedded in attendance.
	for i, t := range tallies {
		if st, ok := byID[t.StudentID]; ok {
			tallies[i].Student = st
		}
	}

	excludeCandidate := func(c candidate) bool { return ranking.IsEvicted(c.student) }
	describe := func(score func(candidate) float64) func(candidate) ranking.Standing {
		return func(c candidate) ranking.Standing {
			dept, _ := c.student.Department()
			return ranking.Standing{StudentID: c.student.ID, Name: c.student.DisplayName(), Department: dept, Score: score(c)}
		}
	}
	performanceScore := func(c candidate) float64 { return c.agg.PerformanceScore }
	totalMarks := func(c candidate) float64 { return float64(c.agg.TotalMarks) }

	performers := ranking.Rank(candidates, excludeCandidate, performanceScore, ranking.TopN)
	scorers := ranking.Rank(candidates, excludeCandidate, totalMarks, ranking.TopN)
	attenders := ranking.Rank(tallies,
		func(t performance.Tally) bool { return ranking.IsEvicted(t.Student) },
		performance.Tally.Percentage,
		ranking.TopN)

	return &ranking.Board{
		GeneratedAt: snap.TakenAt,
		TopPerformers: ranking.Standings(performers, describe(func(c candidate) float64 {
			return performance.RoundPercent(c.agg.PerformanceScore, 2)
		})),
		TopScorers: ranking.Standings(scorers, describe(totalMarks)),
		TopAttenders: ranking.Standings(attenders, func(t performance.Tally) ranking.Standing {
			dept, _ := t.Student.Department()
			return ranking.Standing{
				StudentID:  t.StudentID,
				Name:       t.Student.DisplayName(),
				Department: dept,
				Score:      performance.RoundPercent(t.Percentage(), 2),
			}
		}),
		StudentCount: len(snap.Students),
		EvictedCount: evicted,
		Degraded:     slices.Clone(snap.Degraded),
	}
}
