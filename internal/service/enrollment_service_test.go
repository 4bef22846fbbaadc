package service

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/krs-admin-api/internal/models"
	"github.com/noah-isme/krs-admin-api/internal/repository"
	appErrors "github.com/noah-isme/krs-admin-api/pkg/errors"
)

type fakeEnrollmentRepo struct {
	listRows  []models.EnrollmentRow
	listTotal int

	findByID     *models.Enrollment
	findByIDErr  error
	detail       *models.EnrollmentRow
	detailErr    error
	enrollParams *repository.EnrollParams
	enrollOut    *models.EnrollmentReceipt
	enrollErr    error

	updatedStudentID int64
	updatedCourseID  int64
	updatedStatus    models.EnrollmentStatus
	updateErr        error
	deleteErr        error
}

func (f *fakeEnrollmentRepo) List(_ context.Context, _ models.EnrollmentListQuery) ([]models.EnrollmentRow, int, error) {
	return f.listRows, f.listTotal, nil
}

func (f *fakeEnrollmentRepo) FindByID(_ context.Context, _ int64) (*models.Enrollment, error) {
	return f.findByID, f.findByIDErr
}

func (f *fakeEnrollmentRepo) FindDetailByID(_ context.Context, _ int64) (*models.EnrollmentRow, error) {
	return f.detail, f.detailErr
}

func (f *fakeEnrollmentRepo) Enroll(_ context.Context, p repository.EnrollParams) (*models.EnrollmentReceipt, error) {
	f.enrollParams = &p
	return f.enrollOut, f.enrollErr
}

func (f *fakeEnrollmentRepo) Update(_ context.Context, _, studentID, courseID int64, _ string, _ int, status models.EnrollmentStatus) error {
	f.updatedStudentID = studentID
	f.updatedCourseID = courseID
	f.updatedStatus = status
	return f.updateErr
}

func (f *fakeEnrollmentRepo) Delete(_ context.Context, _ int64) error {
	return f.deleteErr
}

type fakeChecker struct {
	exists   bool
	err      error
	askedFor int64
}

func (f *fakeChecker) ExistsByID(_ context.Context, id int64) (bool, error) {
	f.askedFor = id
	return f.exists, f.err
}

func newTestService(repo *fakeEnrollmentRepo, students, courses *fakeChecker) *EnrollmentService {
	return NewEnrollmentService(repo, students, courses, nil, nil, nil)
}

func validCreateRequest() CreateEnrollmentRequest {
	return CreateEnrollmentRequest{
		Student: StudentRef{Mode: "new", NIM: "20231234", Name: "Jane Doe", Email: "jane@x.edu"},
		Course:  CourseRef{Mode: "new", Code: "cs101", Name: "Intro to CS", Credits: 3},
		Enrollment: EnrollmentFields{
			AcademicYear: "2023/2024",
			Semester:     1,
		},
	}
}

func TestEnrollmentServiceListBuildsPageMeta(t *testing.T) {
	repo := &fakeEnrollmentRepo{listRows: make([]models.EnrollmentRow, 10), listTotal: 25}
	svc := newTestService(repo, &fakeChecker{}, &fakeChecker{})

	rows, meta, err := svc.List(context.Background(), models.EnrollmentListQuery{Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, rows, 10)
	assert.Equal(t, 2, meta.Page)
	assert.Equal(t, 10, meta.PageSize)
	assert.Equal(t, 25, meta.Total)
	assert.Equal(t, 3, meta.TotalPages)
}

func TestEnrollmentServiceShowNotFound(t *testing.T) {
	repo := &fakeEnrollmentRepo{detailErr: sql.ErrNoRows}
	svc := newTestService(repo, &fakeChecker{}, &fakeChecker{})

	_, err := svc.Show(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceCreateHappyPathNewIdentities(t *testing.T) {
	repo := &fakeEnrollmentRepo{
		enrollOut: &models.EnrollmentReceipt{EnrollmentID: 11, StudentID: 7, CourseID: 9, Status: models.EnrollmentStatusSubmitted},
	}
	svc := newTestService(repo, &fakeChecker{}, &fakeChecker{})

	receipt, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(11), receipt.EnrollmentID)

	require.NotNil(t, repo.enrollParams)
	require.NotNil(t, repo.enrollParams.Student)
	require.NotNil(t, repo.enrollParams.Course)
	assert.Equal(t, "20231234", repo.enrollParams.Student.NIM)
	// Course codes are normalized to upper case before persistence.
	assert.Equal(t, "CS101", repo.enrollParams.Course.Code)
	assert.Equal(t, "2023/2024", repo.enrollParams.AcademicYear)
	assert.Equal(t, 1, repo.enrollParams.Semester)
}

func TestEnrollmentServiceCreateExistingModeResolvesIDs(t *testing.T) {
	repo := &fakeEnrollmentRepo{
		enrollOut: &models.EnrollmentReceipt{EnrollmentID: 11, StudentID: 7, CourseID: 9, Status: models.EnrollmentStatusSubmitted},
	}
	students := &fakeChecker{exists: true}
	courses := &fakeChecker{exists: true}
	svc := newTestService(repo, students, courses)

	req := validCreateRequest()
	req.Student = StudentRef{Mode: "Existing ", ID: 7}
	req.Course = CourseRef{Mode: "existing", ID: 9}

	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(7), students.askedFor)
	assert.Equal(t, int64(9), courses.askedFor)
	assert.Equal(t, int64(7), repo.enrollParams.StudentID)
	assert.Equal(t, int64(9), repo.enrollParams.CourseID)
	assert.Nil(t, repo.enrollParams.Student)
	assert.Nil(t, repo.enrollParams.Course)
}

func TestEnrollmentServiceCreateCollectsAllValidationFailures(t *testing.T) {
	svc := newTestService(&fakeEnrollmentRepo{}, &fakeChecker{}, &fakeChecker{})

	req := CreateEnrollmentRequest{
		Student:    StudentRef{Mode: "new", NIM: "12", Name: "J", Email: "not-an-email"},
		Course:     CourseRef{Mode: "new", Code: "x", Name: "C", Credits: 9},
		Enrollment: EnrollmentFields{AcademicYear: "2023", Semester: 3},
	}

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	for _, key := range []string{
		"student.nim", "student.name", "student.email",
		"course.code", "course.name", "course.credits",
		"enrollment.academic_year", "enrollment.semester",
	} {
		assert.Contains(t, appErr.Fields, key)
	}
}

func TestEnrollmentServiceCreateRejectsUnknownModes(t *testing.T) {
	svc := newTestService(&fakeEnrollmentRepo{}, &fakeChecker{}, &fakeChecker{})

	req := validCreateRequest()
	req.Student.Mode = "upsert"
	req.Course.Mode = ""

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Contains(t, appErr.Fields, "student.mode")
	assert.Contains(t, appErr.Fields, "course.mode")
}

func TestEnrollmentServiceCreateExistingStudentMissing(t *testing.T) {
	svc := newTestService(&fakeEnrollmentRepo{}, &fakeChecker{exists: false}, &fakeChecker{exists: true})

	req := validCreateRequest()
	req.Student = StudentRef{Mode: "existing", ID: 404}

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Fields, "student.id")
}

func TestEnrollmentServiceCreatePassesThroughConflicts(t *testing.T) {
	conflict := appErrors.Conflict("enrollment", "enrollment already exists for this student, course, academic year and semester")
	repo := &fakeEnrollmentRepo{enrollErr: conflict}
	svc := newTestService(repo, &fakeChecker{}, &fakeChecker{})

	_, err := svc.Create(context.Background(), validCreateRequest())
	require.Error(t, err)
	assert.Equal(t, conflict, appErrors.FromError(err))
}

func TestEnrollmentServiceUpdateKeepsStudentImmutable(t *testing.T) {
	repo := &fakeEnrollmentRepo{
		findByID: &models.Enrollment{ID: 11, StudentID: 7, CourseID: 9},
	}
	courses := &fakeChecker{exists: true}
	svc := newTestService(repo, &fakeChecker{}, courses)

	err := svc.Update(context.Background(), 11, UpdateEnrollmentRequest{
		Course: CourseRef{Mode: "existing", ID: 12},
		Enrollment: EnrollmentFields{
			AcademicYear: "2023/2024",
			Semester:     2,
			Status:       "approved",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), repo.updatedStudentID)
	assert.Equal(t, int64(12), repo.updatedCourseID)
	assert.Equal(t, models.EnrollmentStatusApproved, repo.updatedStatus)
}

func TestEnrollmentServiceUpdateRejectsNewCourseMode(t *testing.T) {
	repo := &fakeEnrollmentRepo{findByID: &models.Enrollment{ID: 11, StudentID: 7}}
	svc := newTestService(repo, &fakeChecker{}, &fakeChecker{exists: true})

	err := svc.Update(context.Background(), 11, UpdateEnrollmentRequest{
		Course: CourseRef{Mode: "new", Code: "CS101", Name: "Intro", Credits: 3},
		Enrollment: EnrollmentFields{
			AcademicYear: "2023/2024",
			Semester:     1,
			Status:       "APPROVED",
		},
	})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Fields, "course.mode")
}

func TestEnrollmentServiceUpdateRequiresValidStatus(t *testing.T) {
	repo := &fakeEnrollmentRepo{findByID: &models.Enrollment{ID: 11, StudentID: 7}}
	svc := newTestService(repo, &fakeChecker{}, &fakeChecker{exists: true})

	err := svc.Update(context.Background(), 11, UpdateEnrollmentRequest{
		Course: CourseRef{Mode: "existing", ID: 9},
		Enrollment: EnrollmentFields{
			AcademicYear: "2023/2024",
			Semester:     1,
			Status:       "PENDING",
		},
	})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Fields, "enrollment.status")
}

func TestEnrollmentServiceUpdateNotFound(t *testing.T) {
	repo := &fakeEnrollmentRepo{findByIDErr: sql.ErrNoRows}
	svc := newTestService(repo, &fakeChecker{}, &fakeChecker{})

	err := svc.Update(context.Background(), 99, UpdateEnrollmentRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceRecordsQueryDurations(t *testing.T) {
	metrics := NewMetricsService()
	repo := &fakeEnrollmentRepo{
		enrollOut: &models.EnrollmentReceipt{EnrollmentID: 11, StudentID: 7, CourseID: 9, Status: models.EnrollmentStatusSubmitted},
	}
	svc := NewEnrollmentService(repo, &fakeChecker{}, &fakeChecker{}, nil, metrics, nil)

	_, _, err := svc.List(context.Background(), models.EnrollmentListQuery{Page: 1, PageSize: 10})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, req)

	body := w.Body.String()
	assert.Contains(t, body, `db_query_duration_seconds_count{query="enrollments_list"} 1`)
	assert.Contains(t, body, `db_query_duration_seconds_count{query="enrollment_enroll"} 1`)
}

func TestEnrollmentServiceDeletePassesThroughNotFound(t *testing.T) {
	notFound := appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	repo := &fakeEnrollmentRepo{deleteErr: notFound}
	svc := newTestService(repo, &fakeChecker{}, &fakeChecker{})

	err := svc.Delete(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
