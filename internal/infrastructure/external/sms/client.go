package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
	"github.com/sms-hub/sms-dashboard/pkg/circuitbreaker"
	"github.com/sms-hub/sms-dashboard/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the records API client.
type ClientConfig struct {
	// BaseURL is the service root, e.g. http://localhost:8080. "/api" is appended.
	BaseURL string

	// Timeout is the per-request HTTP timeout. Zero means none.
	Timeout time.Duration

	// MaxAttempts includes the first attempt.
	MaxAttempts int

	// BreakerFailureThreshold consecutive transient failures open the circuit.
	BreakerFailureThreshold int

	// BreakerOpenTimeout is how long the circuit stays open before probing.
	BreakerOpenTimeout time.Duration

	RateLimiterConfig RateLimiterConfig

	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client

	Logger *slog.Logger

	// Debug logs every request.
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:                 baseURL,
		Timeout:                 10 * time.Second,
		MaxAttempts:             3,
		BreakerFailureThreshold: 5,
		BreakerOpenTimeout:      30 * time.Second,
		RateLimiterConfig:       DefaultRateLimiterConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the records API client. It implements roster.Reader and roster.Writer.
type Client struct {
	config         ClientConfig
	baseURL        string
	httpClient     *http.Client
	logger         *slog.Logger
	rateLimiter    *RateLimiter
	circuitBreaker *circuitbreaker.CircuitBreaker
	retrier        *retry.Retrier
	mapper         *Mapper
}

var (
	_ roster.Reader = (*Client)(nil)
	_ roster.Writer = (*Client)(nil)
)

// NewClient creates a new records API client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	logger := config.Logger.With(slog.String("component", "sms_client"))

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	c := &Client{
		config:      config,
		baseURL:     strings.TrimRight(config.BaseURL, "/") + "/api",
		httpClient:  httpClient,
		logger:      logger,
		rateLimiter: NewRateLimiter(config.RateLimiterConfig),
		mapper:      NewMapper(),
	}

	c.circuitBreaker = circuitbreaker.SMSAPIBreaker(
		config.BreakerFailureThreshold,
		config.BreakerOpenTimeout,
		isTransient,
		func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	)

	c.retrier = retry.SMSAPIRetrier(config.MaxAttempts,
		retry.WithRetryIf(isTransient),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			var rl *RateLimitError
			if errors.As(err, &rl) {
				c.rateLimiter.RecordRateLimitHit(rl.RetryAfter)
			}
			logger.Debug("retrying sms api request",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()))
		}),
	)

	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// ListStudents fetches every student.
func (c *Client) ListStudents(ctx context.Context) ([]roster.Student, error) {
	var dtos []StudentDTO
	if err := c.doRequest(ctx, http.MethodGet, "/students", nil, &dtos); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return c.mapper.StudentsFromDTOs(dtos), nil
}

// GetStudent fetches a single student by ID.
func (c *Client) GetStudent(ctx context.Context, id roster.StudentID) (*roster.Student, error) {
	var dto StudentDTO
	if err := c.doRequest(ctx, http.MethodGet, studentPath(id), nil, &dto); err != nil {
		return nil, c.notFound(fmt.Errorf("get student %d: %w", id, err), roster.ErrStudentNotFound)
	}
	s, err := c.mapper.StudentFromDTO(&dto)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateStudent posts a new student.
func (c *Client) CreateStudent(ctx context.Context, draft roster.StudentDraft) (*roster.Student, error) {
	var dto StudentDTO
	body := c.mapper.StudentRequestFromDraft(draft)
	if err := c.doRequest(ctx, http.MethodPost, "/students", body, &dto); err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}
	s, err := c.mapper.StudentFromDTO(&dto)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateStudent replaces a student's name and email. The records service keeps
// the course unchanged.
func (c *Client) UpdateStudent(ctx context.Context, id roster.StudentID, draft roster.StudentDraft) (*roster.Student, error) {
	var dto StudentDTO
	body := c.mapper.StudentRequestFromDraft(draft)
	if err := c.doRequest(ctx, http.MethodPut, studentPath(id), body, &dto); err != nil {
		return nil, c.notFound(fmt.Errorf("update student %d: %w", id, err), roster.ErrStudentNotFound)
	}
	s, err := c.mapper.StudentFromDTO(&dto)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func studentPath(id roster.StudentID) string {
	return "/students/" + strconv.FormatInt(int64(id), 10)
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// ListCourses fetches every course with its subjects.
func (c *Client) ListCourses(ctx context.Context) ([]roster.Course, error) {
	var dtos []CourseDTO
	if err := c.doRequest(ctx, http.MethodGet, "/courses", nil, &dtos); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return c.mapper.CoursesFromDTOs(dtos), nil
}

// GetCourse fetches one course.
func (c *Client) GetCourse(ctx context.Context, id roster.CourseID) (*roster.Course, error) {
	var dto CourseDTO
	path := "/courses/" + strconv.FormatInt(int64(id), 10)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &dto); err != nil {
		return nil, c.notFound(fmt.Errorf("get course %d: %w", id, err), roster.ErrCourseNotFound)
	}
	course := c.mapper.CourseFromDTO(dto)
	return &course, nil
}

// CreateCourse posts a course with its custom subjects.
func (c *Client) CreateCourse(ctx context.Context, name string, subjects []string) (*roster.Course, error) {
	var dto CourseDTO
	body := CourseRequestDTO{Name: name, Subjects: subjects}
	if err := c.doRequest(ctx, http.MethodPost, "/courses", body, &dto); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	course := c.mapper.CourseFromDTO(dto)
	return &course, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// ListAttendance fetches all attendance records.
func (c *Client) ListAttendance(ctx context.Context) ([]roster.AttendanceRecord, error) {
	var dtos []AttendanceDTO
	if err := c.doRequest(ctx, http.MethodGet, "/attendance", nil, &dtos); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return c.mapper.AttendanceFromDTOs(dtos), nil
}

// StudentAttendance fetches one student's records.
func (c *Client) StudentAttendance(ctx context.Context, id roster.StudentID) ([]roster.AttendanceRecord, error) {
	var dtos []AttendanceDTO
	path := "/attendance/student/" + strconv.FormatInt(int64(id), 10)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &dtos); err != nil {
		return nil, fmt.Errorf("student %d attendance: %w", id, err)
	}
	return c.mapper.AttendanceFromDTOs(dtos), nil
}

// SetAttendance flips one record.
func (c *Client) SetAttendance(ctx context.Context, id roster.AttendanceID, present bool) (*roster.AttendanceRecord, error) {
	params := url.Values{}
	params.Set("present", strconv.FormatBool(present))
	path := "/attendance/" + strconv.FormatInt(int64(id), 10) + "?" + params.Encode()

	var dto AttendanceDTO
	if err := c.doRequest(ctx, http.MethodPut, path, nil, &dto); err != nil {
		return nil, c.notFound(fmt.Errorf("set attendance %d: %w", id, err), roster.ErrAttendanceNotFound)
	}
	r := c.mapper.AttendanceFromDTO(dto)
	return &r, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MARKS OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// MarksDetail fetches one entry per subject of the student's course.
func (c *Client) MarksDetail(ctx context.Context, id roster.StudentID) (*roster.MarksDetail, error) {
	var dto MarksDetailDTO
	path := "/marks/student/" + strconv.FormatInt(int64(id), 10) + "/details"
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &dto); err != nil {
		return nil, c.notFound(fmt.Errorf("student %d marks: %w", id, err), roster.ErrStudentNotFound)
	}
	d, err := c.mapper.MarksDetailFromDTO(&dto)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// TotalMarks fetches the service-side total.
func (c *Client) TotalMarks(ctx context.Context, id roster.StudentID) (int, error) {
	var total int
	path := "/marks/student/" + strconv.FormatInt(int64(id), 10) + "/total"
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &total); err != nil {
		return 0, fmt.Errorf("student %d total: %w", id, err)
	}
	return total, nil
}

// UpdateMarks sends the bulk marks write.
func (c *Client) UpdateMarks(ctx context.Context, updates []roster.MarkUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	body := c.mapper.MarkUpdatesToDTO(updates)
	if err := c.doRequest(ctx, http.MethodPut, "/marks/bulk", body, nil); err != nil {
		return fmt.Errorf("update marks: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest runs one logical call through the breaker, the retrier and the
// rate limiter.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
	}

	err := c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return err
			}
			return c.doSingleRequest(ctx, method, path, payload, result)
		})
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return shared.WrapError("sms", "Request", shared.ErrServiceUnavailable, method+" "+path, err)
	default:
		return err
	}
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, method, path string, payload []byte, result any) error {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transportError{err: fmt.Errorf("read response: %w", err)}
	}

	if c.config.Debug {
		c.logger.Debug("sms api request",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.Duration("latency", time.Since(start)))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Method: method, Path: path, Message: http.StatusText(resp.StatusCode)}
		var body APIErrorDTO
		if json.Unmarshal(respBody, &body) == nil && (body.Message != "" || body.Error != "") {
			apiErr.Message = body.Describe()
		}
		return apiErr
	}

	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return shared.WrapError("sms", "Decode", shared.ErrExternalService, method+" "+path,
				fmt.Errorf("%w: %v", shared.ErrSMSAPIInvalidResponse, err))
		}
	}

	return nil
}

func parseRetryAfter(v string) time.Duration {
	const fallback = 5 * time.Second
	if v == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return fallback
}

// notFound swaps a 404 for the domain sentinel and keeps the original otherwise.
func (c *Client) notFound(err, sentinel error) error {
	if IsNotFound(err) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// ClientStatus is reported by the readiness endpoint.
type ClientStatus struct {
	RateLimiter    RateLimiterStatus       `json:"rate_limiter"`
	CircuitBreaker circuitbreaker.Snapshot `json:"circuit_breaker"`
}

// Status returns the current status of the client.
func (c *Client) Status() ClientStatus {
	return ClientStatus{
		RateLimiter:    c.rateLimiter.Status(),
		CircuitBreaker: c.circuitBreaker.Snapshot(),
	}
}

// Available reports whether calls are currently let through.
func (c *Client) Available() bool {
	return c.circuitBreaker.State() != circuitbreaker.StateOpen
}

// HealthCheck fails while the circuit breaker is open. It makes no request.
func (c *Client) HealthCheck(context.Context) error {
	if !c.Available() {
		return shared.ErrSMSAPIUnavailable
	}
	return nil
}

// Reset resets the rate limiter and circuit breaker.
func (c *Client) Reset() {
	c.rateLimiter.Reset()
	c.circuitBreaker.Reset()
}
