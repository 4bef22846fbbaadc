package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/krs-admin-api/internal/models"
	"github.com/noah-isme/krs-admin-api/internal/repository"
	appErrors "github.com/noah-isme/krs-admin-api/pkg/errors"
)

const (
	refModeExisting = "existing"
	refModeNew      = "new"
)

type enrollmentRepository interface {
	List(ctx context.Context, q models.EnrollmentListQuery) ([]models.EnrollmentRow, int, error)
	FindByID(ctx context.Context, id int64) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id int64) (*models.EnrollmentRow, error)
	Enroll(ctx context.Context, p repository.EnrollParams) (*models.EnrollmentReceipt, error)
	Update(ctx context.Context, id, studentID, courseID int64, academicYear string, semester int, status models.EnrollmentStatus) error
	Delete(ctx context.Context, id int64) error
}

type studentChecker interface {
	ExistsByID(ctx context.Context, id int64) (bool, error)
}

type courseChecker interface {
	ExistsByID(ctx context.Context, id int64) (bool, error)
}

// StudentRef selects or describes the student side of an enrollment write.
type StudentRef struct {
	Mode  string `json:"mode"`
	ID    int64  `json:"id"`
	NIM   string `json:"nim"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CourseRef selects or describes the course side of an enrollment write.
type CourseRef struct {
	Mode    string `json:"mode"`
	ID      int64  `json:"id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	Credits int    `json:"credits"`
}

// EnrollmentFields carries the enrollment attributes of a write request.
// Status is only honored on update.
type EnrollmentFields struct {
	AcademicYear string `json:"academic_year"`
	Semester     int    `json:"semester"`
	Status       string `json:"status"`
}

// CreateEnrollmentRequest is the atomic creation payload.
type CreateEnrollmentRequest struct {
	Student    StudentRef       `json:"student"`
	Course     CourseRef        `json:"course"`
	Enrollment EnrollmentFields `json:"enrollment"`
}

// UpdateEnrollmentRequest is the record-transition payload. The course must
// reference an existing row; student identity is immutable on update.
type UpdateEnrollmentRequest struct {
	Course     CourseRef        `json:"course"`
	Enrollment EnrollmentFields `json:"enrollment"`
}

// EnrollmentService orchestrates KRS listing and write workflows.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentChecker
	courses   courseChecker
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService. A nil metrics service
// disables query timing.
func NewEnrollmentService(repo enrollmentRepository, students studentChecker, courses courseChecker, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, courses: courses, validator: validate, metrics: metrics, logger: logger}
}

func (s *EnrollmentService) observeQuery(name string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveDBQuery(name, time.Since(start))
	}
}

// List returns one page of enrollments with pagination metadata. The total
// is computed over the full filter set, so it is stable across page sizes.
func (s *EnrollmentService) List(ctx context.Context, q models.EnrollmentListQuery) ([]models.EnrollmentRow, *models.PageMeta, error) {
	start := time.Now()
	rows, total, err := s.repo.List(ctx, q)
	s.observeQuery("enrollments_list", start)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return rows, models.NewPageMeta(q.Page, q.PageSize, total), nil
}

// Show returns the joined detail row for one enrollment.
func (s *EnrollmentService) Show(ctx context.Context, id int64) (*models.EnrollmentRow, error) {
	start := time.Now()
	row, err := s.repo.FindDetailByID(ctx, id)
	s.observeQuery("enrollment_detail", start)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return row, nil
}

// Create validates the payload strictly, then runs the atomic
// find-or-create-then-link transaction.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest) (*models.EnrollmentReceipt, error) {
	req.normalize()

	fields := map[string]string{}
	validateStudentRef(fields, req.Student, s.validator)
	validateCourseRef(fields, req.Course, true)
	validateEnrollmentFields(fields, req.Enrollment, false)
	if len(fields) > 0 {
		return nil, appErrors.Validation("invalid enrollment payload", fields)
	}

	params := repository.EnrollParams{
		AcademicYear: req.Enrollment.AcademicYear,
		Semester:     req.Enrollment.Semester,
	}

	// Existing-mode references are validated before the transaction opens.
	if req.Student.Mode == refModeExisting {
		ok, err := s.students.ExistsByID(ctx, req.Student.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student")
		}
		if !ok {
			return nil, appErrors.Validation("invalid enrollment payload", map[string]string{"student.id": "student not found"})
		}
		params.StudentID = req.Student.ID
	} else {
		params.Student = &models.StudentUpsert{NIM: req.Student.NIM, Name: req.Student.Name, Email: req.Student.Email}
	}

	if req.Course.Mode == refModeExisting {
		ok, err := s.courses.ExistsByID(ctx, req.Course.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate course")
		}
		if !ok {
			return nil, appErrors.Validation("invalid enrollment payload", map[string]string{"course.id": "course not found"})
		}
		params.CourseID = req.Course.ID
	} else {
		params.Course = &models.CourseUpsert{Code: req.Course.Code, Name: req.Course.Name, Credits: req.Course.Credits}
	}

	start := time.Now()
	receipt, err := s.repo.Enroll(ctx, params)
	s.observeQuery("enrollment_enroll", start)
	if err != nil {
		if appErr := knownError(err); appErr != nil {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.logger.Info("enrollment created",
		zap.Int64("enrollment_id", receipt.EnrollmentID),
		zap.Int64("student_id", receipt.StudentID),
		zap.Int64("course_id", receipt.CourseID))
	return receipt, nil
}

// Update applies a record transition, re-checking uniqueness against every
// other enrollment of the same student.
func (s *EnrollmentService) Update(ctx context.Context, id int64, req UpdateEnrollmentRequest) error {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	req.normalize()

	fields := map[string]string{}
	validateCourseRef(fields, req.Course, false)
	validateEnrollmentFields(fields, req.Enrollment, true)
	if len(fields) > 0 {
		return appErrors.Validation("invalid enrollment payload", fields)
	}

	ok, err := s.courses.ExistsByID(ctx, req.Course.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate course")
	}
	if !ok {
		return appErrors.Validation("invalid enrollment payload", map[string]string{"course.id": "course not found"})
	}

	status, _ := models.ParseStatus(req.Enrollment.Status)
	start := time.Now()
	err = s.repo.Update(ctx, id, current.StudentID, req.Course.ID, req.Enrollment.AcademicYear, req.Enrollment.Semester, status)
	s.observeQuery("enrollment_update", start)
	if err != nil {
		if appErr := knownError(err); appErr != nil {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}
	return nil
}

// Delete removes an enrollment.
func (s *EnrollmentService) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	err := s.repo.Delete(ctx, id)
	s.observeQuery("enrollment_delete", start)
	if err != nil {
		if appErr := knownError(err); appErr != nil {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	return nil
}

func (r *CreateEnrollmentRequest) normalize() {
	r.Student.Mode = strings.TrimSpace(strings.ToLower(r.Student.Mode))
	r.Student.NIM = strings.TrimSpace(r.Student.NIM)
	r.Student.Name = strings.TrimSpace(r.Student.Name)
	r.Student.Email = strings.TrimSpace(r.Student.Email)

	r.Course.Mode = strings.TrimSpace(strings.ToLower(r.Course.Mode))
	r.Course.Code = strings.ToUpper(strings.TrimSpace(r.Course.Code))
	r.Course.Name = strings.TrimSpace(r.Course.Name)

	r.Enrollment.AcademicYear = strings.TrimSpace(r.Enrollment.AcademicYear)
}

func (r *UpdateEnrollmentRequest) normalize() {
	r.Course.Mode = strings.TrimSpace(strings.ToLower(r.Course.Mode))
	r.Enrollment.AcademicYear = strings.TrimSpace(r.Enrollment.AcademicYear)
	r.Enrollment.Status = strings.ToUpper(strings.TrimSpace(r.Enrollment.Status))
}

func validateStudentRef(fields map[string]string, ref StudentRef, validate *validator.Validate) {
	switch ref.Mode {
	case refModeExisting:
		if ref.ID <= 0 {
			fields["student.id"] = "student id is required"
		}
	case refModeNew:
		if !models.ValidNIM(ref.NIM) {
			fields["student.nim"] = "nim must be 8 to 12 digits"
		}
		if len(ref.Name) < 3 || len(ref.Name) > 100 {
			fields["student.name"] = "name must be between 3 and 100 characters"
		}
		if err := validate.Var(ref.Email, "required,email,max=255"); err != nil {
			fields["student.email"] = "a valid email is required"
		}
	default:
		fields["student.mode"] = "mode must be existing or new"
	}
}

// validateCourseRef checks the course side; creation allows mode=new,
// update requires mode=existing.
func validateCourseRef(fields map[string]string, ref CourseRef, allowNew bool) {
	switch ref.Mode {
	case refModeExisting:
		if ref.ID <= 0 {
			fields["course.id"] = "course id is required"
		}
	case refModeNew:
		if !allowNew {
			fields["course.mode"] = "mode must be existing"
			return
		}
		if !models.ValidCourseCode(ref.Code) {
			fields["course.code"] = "code must match pattern like CS101"
		}
		if len(ref.Name) < 3 || len(ref.Name) > 120 {
			fields["course.name"] = "name must be between 3 and 120 characters"
		}
		if ref.Credits < 1 || ref.Credits > 6 {
			fields["course.credits"] = "credits must be between 1 and 6"
		}
	default:
		if allowNew {
			fields["course.mode"] = "mode must be existing or new"
		} else {
			fields["course.mode"] = "mode must be existing"
		}
	}
}

func validateEnrollmentFields(fields map[string]string, e EnrollmentFields, requireStatus bool) {
	if !models.ValidAcademicYear(e.AcademicYear) {
		fields["enrollment.academic_year"] = "academic year must match YYYY/YYYY"
	}
	if !models.ValidSemester(e.Semester) {
		fields["enrollment.semester"] = "semester must be 1 or 2"
	}
	if requireStatus {
		if _, ok := models.ParseStatus(e.Status); !ok {
			fields["enrollment.status"] = "status must be DRAFT, SUBMITTED, APPROVED or REJECTED"
		}
	}
}

// knownError passes through typed domain errors raised below the service.
func knownError(err error) *appErrors.Error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
