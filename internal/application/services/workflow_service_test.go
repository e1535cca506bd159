package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/visionwell/vision-screening/backend/internal/application/services"
	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/domain/providers"
	"github.com/visionwell/vision-screening/backend/internal/domain/repositories"
	apperrors "github.com/visionwell/vision-screening/backend/pkg/errors"
)

// stubSessionRepo is an in-memory session store with failure injection.
type stubSessionRepo struct {
	mu         sync.Mutex
	sessions   map[string]*entities.ScreeningSession
	nextID     int
	createErrs int // fail this many Create calls before succeeding
	updateErrs int // fail this many Update calls before succeeding
	creates    int
	updates    int
	onGet      func(id string)
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{sessions: make(map[string]*entities.ScreeningSession)}
}

func (r *stubSessionRepo) Create(ctx context.Context, session *entities.ScreeningSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	// Like the real adapter, a failed create leaves the session id-less.
	if r.createErrs > 0 {
		r.createErrs--
		return fmt.Errorf("store temporarily unavailable")
	}
	r.nextID++
	session.ID = fmt.Sprintf("sess-%d", r.nextID)
	stored := *session
	r.sessions[session.ID] = &stored
	return nil
}

func (r *stubSessionRepo) Update(ctx context.Context, session *entities.ScreeningSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if r.updateErrs > 0 {
		r.updateErrs--
		return fmt.Errorf("store temporarily unavailable")
	}
	if _, ok := r.sessions[session.ID]; !ok {
		return apperrors.NewNotFoundError("session not found")
	}
	stored := *session
	r.sessions[session.ID] = &stored
	return nil
}

func (r *stubSessionRepo) GetByID(ctx context.Context, id string) (*entities.ScreeningSession, error) {
	if r.onGet != nil {
		r.onGet(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("session not found")
	}
	copied := *session
	return &copied, nil
}

func (r *stubSessionRepo) FindActiveByStudent(ctx context.Context, studentID string) (*entities.ScreeningSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.StudentID == studentID && !session.IsCompleted() {
			copied := *session
			return &copied, nil
		}
	}
	return nil, apperrors.NewNotFoundError("no active session")
}

func (r *stubSessionRepo) ListCompleted(ctx context.Context, filter repositories.SessionFilter) ([]*entities.ScreeningSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.ScreeningSession
	for _, session := range r.sessions {
		if session.IsCompleted() {
			copied := *session
			out = append(out, &copied)
		}
	}
	return out, nil
}

// seed stores a session directly, bypassing the service.
func (r *stubSessionRepo) seed(session *entities.ScreeningSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *session
	r.sessions[session.ID] = &stored
}

func (r *stubSessionRepo) stored(id string) *entities.ScreeningSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

// stubInventoryRepo records reservation traffic.
type stubInventoryRepo struct {
	mu         sync.Mutex
	reserved   []string
	released   []string
	delivered  []string
	outOfStock bool
}

func (r *stubInventoryRepo) GetFrame(ctx context.Context, code string) (*entities.GlassesFrame, error) {
	return &entities.GlassesFrame{Code: code, Stock: 1}, nil
}

func (r *stubInventoryRepo) ListFrames(ctx context.Context) ([]*entities.GlassesFrame, error) {
	return nil, nil
}

func (r *stubInventoryRepo) Reserve(ctx context.Context, sessionID, frameCode string) (*entities.FrameReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outOfStock {
		return nil, apperrors.NewValidationError("frame is out of stock")
	}
	r.reserved = append(r.reserved, frameCode)
	return &entities.FrameReservation{
		ID:        fmt.Sprintf("res-%d", len(r.reserved)),
		SessionID: sessionID,
		FrameCode: frameCode,
		Status:    entities.ReservationStatusReserved,
	}, nil
}

func (r *stubInventoryRepo) Release(ctx context.Context, reservationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, reservationID)
	return nil
}

func (r *stubInventoryRepo) MarkDelivered(ctx context.Context, reservationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = append(r.delivered, reservationID)
	return nil
}

// stubDirectory serves a single student and can be forced to fail.
type stubDirectory struct {
	student *entities.Student
	err     error
	calls   int
}

func (d *stubDirectory) GetStudent(ctx context.Context, id string) (*entities.Student, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	if d.student == nil || d.student.ID != id {
		return nil, apperrors.NewNotFoundError("student not found")
	}
	copied := *d.student
	return &copied, nil
}

func (d *stubDirectory) ListStudents(ctx context.Context, filter providers.StudentFilter) ([]*entities.Student, error) {
	if d.student == nil {
		return nil, nil
	}
	copied := *d.student
	return []*entities.Student{&copied}, nil
}

// stubRegistration counts lookups and creations.
type stubRegistration struct {
	mu       sync.Mutex
	patients map[string]*entities.Patient
	finds    int
	creates  int
	findErr  error
}

func newStubRegistration() *stubRegistration {
	return &stubRegistration{patients: make(map[string]*entities.Patient)}
}

func (p *stubRegistration) FindPatientByStudent(ctx context.Context, studentID string) (*entities.Patient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finds++
	if p.findErr != nil {
		return nil, p.findErr
	}
	patient, ok := p.patients[studentID]
	if !ok {
		return nil, apperrors.NewNotFoundError("no patient for student")
	}
	copied := *patient
	return &copied, nil
}

func (p *stubRegistration) CreatePatient(ctx context.Context, draft entities.PatientDraft) (*entities.Patient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creates++
	studentID := draft.StudentID
	patient := &entities.Patient{
		ID:        fmt.Sprintf("pat-%d", p.creates),
		StudentID: &studentID,
		FirstName: draft.FirstName,
		LastName:  draft.LastName,
		Phone:     draft.Phone,
		Email:     draft.Email,
	}
	p.patients[draft.StudentID] = patient
	copied := *patient
	return &copied, nil
}

type workflowFixture struct {
	repo      *stubSessionRepo
	inventory *stubInventoryRepo
	directory *stubDirectory
	provider  *stubRegistration
	svc       *services.WorkflowService
}

func newWorkflowFixture() *workflowFixture {
	repo := newStubSessionRepo()
	inventory := &stubInventoryRepo{}
	directory := &stubDirectory{student: &entities.Student{
		ID:        "stu-1",
		FirstName: "Amina",
		LastName:  "Okafor",
		School:    "Greenfield Primary",
		Grade:     "4",
	}}
	provider := newStubRegistration()

	svc := services.NewWorkflowService(
		repo,
		inventory,
		directory,
		services.NewRegistrationService(provider),
		services.NewPresenceService(nil),
	)
	return &workflowFixture{repo: repo, inventory: inventory, directory: directory, provider: provider, svc: svc}
}

// seedAt creates a session parked at the given step with enough captured
// data to pass that step's validation.
func (f *workflowFixture) seedAt(step entities.Step) *entities.ScreeningSession {
	session := &entities.ScreeningSession{
		ID:          "sess-seeded",
		OperatorID:  "op-1",
		StudentID:   "stu-1",
		CurrentStep: step,
		Status:      entities.SessionStatusInProgress,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	patientID := "pat-9"
	if step > entities.StepStudentRegistration {
		session.PatientID = &patientID
	}
	if step >= entities.StepParentConsent {
		session.StepData.Consent = &entities.ConsentData{Granted: true, GuardianName: "A. Parent"}
	}
	if step >= entities.StepVAScreening {
		session.StepData.Acuity = &entities.AcuityData{RightEye: "20/40", LeftEye: "20/30"}
	}
	if step >= entities.StepDoctorDiagnosis {
		session.StepData.Diagnosis = &entities.DiagnosisData{DoctorName: "Dr. Ade", Diagnosis: "myopia", NeedsGlasses: true}
	}
	if step >= entities.StepGlassesSelection {
		session.StepData.Glasses = &entities.GlassesData{FrameCode: "FR-102", LensType: "single_vision"}
	}
	if step >= entities.StepInventoryCheck {
		session.StepData.Inventory = &entities.InventoryData{ReservationID: "res-0", FrameCode: "FR-102", InStock: true}
	}
	if step >= entities.StepSchoolDelivery {
		session.StepData.Delivery = &entities.DeliveryData{Method: entities.DeliveryMethodSchool, SchoolContact: "Ms. Bello"}
	}
	f.repo.seed(session)
	return session
}

func TestWorkflowService_StartSession(t *testing.T) {
	f := newWorkflowFixture()

	session, err := f.svc.StartSession(context.Background(), "op-1")

	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, entities.StepAppointmentSchedule, session.CurrentStep)
	assert.Equal(t, entities.SessionStatusInProgress, session.Status)
	assert.NotNil(t, f.repo.stored(session.ID))
}

func TestWorkflowService_StartSession_RequiresOperator(t *testing.T) {
	f := newWorkflowFixture()

	_, err := f.svc.StartSession(context.Background(), "")

	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}

func TestWorkflowService_LoadSession_ResumesSavedStep(t *testing.T) {
	f := newWorkflowFixture()
	f.seedAt(entities.StepDoctorDiagnosis)

	session, err := f.svc.LoadSession(context.Background(), "sess-seeded")

	require.NoError(t, err)
	assert.Equal(t, entities.StepDoctorDiagnosis, session.CurrentStep)
	assert.Equal(t, "20/40", session.StepData.Acuity.RightEye)
}

func TestWorkflowService_Next_StaysInRange(t *testing.T) {
	f := newWorkflowFixture()
	f.seedAt(entities.StepSchoolDelivery)

	_, err := f.svc.Next(context.Background(), "sess-seeded")

	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
	assert.Equal(t, entities.StepSchoolDelivery, f.repo.stored("sess-seeded").CurrentStep)
}

func TestWorkflowService_Next_ValidationBlocksTransition(t *testing.T) {
	f := newWorkflowFixture()
	session := f.seedAt(entities.StepParentConsent)
	session.StepData.Consent = &entities.ConsentData{Granted: false}
	f.repo.seed(session)

	_, err := f.svc.Next(context.Background(), session.ID)

	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
	assert.Equal(t, entities.StepParentConsent, f.repo.stored(session.ID).CurrentStep)
}

func TestWorkflowService_Back_ThenNext_KeepsData(t *testing.T) {
	f := newWorkflowFixture()
	f.seedAt(entities.StepDoctorDiagnosis)

	back, err := f.svc.Back(context.Background(), "sess-seeded")
	require.NoError(t, err)
	assert.Equal(t, entities.StepVAScreening, back.CurrentStep)
	assert.NotNil(t, back.StepData.Diagnosis)

	forward, err := f.svc.Next(context.Background(), "sess-seeded")
	require.NoError(t, err)
	assert.Equal(t, entities.StepDoctorDiagnosis, forward.CurrentStep)
	assert.Equal(t, "myopia", forward.StepData.Diagnosis.Diagnosis)
}

func TestWorkflowService_Back_FromFirstStep(t *testing.T) {
	f := newWorkflowFixture()
	f.seedAt(entities.StepAppointmentSchedule)

	_, err := f.svc.Back(context.Background(), "sess-seeded")

	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}

func TestWorkflowService_RegistrationGate_BindsPatientOnce(t *testing.T) {
	f := newWorkflowFixture()
	session := f.seedAt(entities.StepStudentRegistration)
	session.PatientID = nil
	f.repo.seed(session)

	advanced, err := f.svc.Next(context.Background(), session.ID)

	require.NoError(t, err)
	require.NotNil(t, advanced.PatientID)
	assert.Equal(t, entities.StepVAScreening, advanced.CurrentStep)
	assert.Equal(t, 1, f.provider.creates)

	// A later pass through the gate for the same student finds the patient
	// instead of creating another.
	second := f.seedAt(entities.StepStudentRegistration)
	second.ID = "sess-second"
	second.PatientID = nil
	f.repo.seed(second)

	advanced2, err := f.svc.Next(context.Background(), "sess-second")
	require.NoError(t, err)
	assert.Equal(t, *advanced.PatientID, *advanced2.PatientID)
	assert.Equal(t, 1, f.provider.creates)
}

func TestWorkflowService_RegistrationGate_FailureLeavesStep(t *testing.T) {
	f := newWorkflowFixture()
	f.directory.err = apperrors.NewExternalError("directory unreachable", nil)
	session := f.seedAt(entities.StepStudentRegistration)
	session.PatientID = nil
	session.StepData.Registration = &entities.RegistrationData{Phone: "5551234"}
	f.repo.seed(session)

	_, err := f.svc.Next(context.Background(), session.ID)

	assert.Equal(t, apperrors.ErrorTypeExternal, apperrors.TypeOf(err))

	stored := f.repo.stored(session.ID)
	assert.Equal(t, entities.StepStudentRegistration, stored.CurrentStep)
	assert.Nil(t, stored.PatientID)
	assert.Equal(t, "5551234", stored.StepData.Registration.Phone)
	assert.Equal(t, 0, f.provider.creates)
}

func TestWorkflowService_RegistrationGate_SkippedWhenBound(t *testing.T) {
	f := newWorkflowFixture()
	session := f.seedAt(entities.StepStudentRegistration)
	patientID := "pat-existing"
	session.PatientID = &patientID
	f.repo.seed(session)

	advanced, err := f.svc.Next(context.Background(), session.ID)

	require.NoError(t, err)
	assert.Equal(t, "pat-existing", *advanced.PatientID)
	assert.Equal(t, 0, f.provider.finds)
	assert.Equal(t, 0, f.directory.calls)
}

func TestWorkflowService_JumpToConsent(t *testing.T) {
	f := newWorkflowFixture()
	session := f.seedAt(entities.StepAppointmentSchedule)
	session.StudentID = ""
	f.repo.seed(session)

	jumped, err := f.svc.JumpToConsent(context.Background(), session.ID, "stu-1")

	require.NoError(t, err)
	assert.Equal(t, entities.StepParentConsent, jumped.CurrentStep)
	assert.Equal(t, "stu-1", jumped.StudentID)
	assert.Nil(t, jumped.PatientID)
}

func TestWorkflowService_JumpToConsent_OnlyFromFirstStep(t *testing.T) {
	f := newWorkflowFixture()
	f.seedAt(entities.StepVAScreening)

	_, err := f.svc.JumpToConsent(context.Background(), "sess-seeded", "stu-2")

	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}

func TestWorkflowService_SelectStudent_ResetsSession(t *testing.T) {
	f := newWorkflowFixture()
	f.seedAt(entities.StepInventoryCheck)

	reset, err := f.svc.SelectStudent(context.Background(), "sess-seeded", "stu-2")

	require.NoError(t, err)
	assert.Equal(t, "stu-2", reset.StudentID)
	assert.Nil(t, reset.PatientID)
	assert.Equal(t, entities.StepParentConsent, reset.CurrentStep)
	assert.Equal(t, entities.StepData{}, reset.StepData)
	assert.Equal(t, []string{"res-0"}, f.inventory.released)
}

func TestWorkflowService_SelectStudent_SameStudentNoOp(t *testing.T) {
	f := newWorkflowFixture()
	f.seedAt(entities.StepInventoryCheck)

	session, err := f.svc.SelectStudent(context.Background(), "sess-seeded", "stu-1")

	require.NoError(t, err)
	assert.Equal(t, entities.StepInventoryCheck, session.CurrentStep)
	assert.NotNil(t, session.StepData.Glasses)
	assert.Empty(t, f.inventory.released)
}

func TestWorkflowService_CheckInventory_ReservesFrame(t *testing.T) {
	f := newWorkflowFixture()
	session := f.seedAt(entities.StepInventoryCheck)
	session.StepData.Inventory = nil
	f.repo.seed(session)

	checked, err := f.svc.CheckInventory(context.Background(), session.ID)

	require.NoError(t, err)
	require.NotNil(t, checked.StepData.Inventory)
	assert.True(t, checked.StepData.Inventory.InStock)
	assert.Equal(t, "FR-102", checked.StepData.Inventory.FrameCode)
	assert.Equal(t, []string{"FR-102"}, f.inventory.reserved)
}

func TestWorkflowService_CheckInventory_FrameChangeReleasesOld(t *testing.T) {
	f := newWorkflowFixture()
	session := f.seedAt(entities.StepInventoryCheck)
	session.StepData.Glasses.FrameCode = "FR-205"
	f.repo.seed(session)

	checked, err := f.svc.CheckInventory(context.Background(), session.ID)

	require.NoError(t, err)
	assert.Equal(t, []string{"res-0"}, f.inventory.released)
	assert.Equal(t, "FR-205", checked.StepData.Inventory.FrameCode)
}

func TestWorkflowService_CheckInventory_OutOfStock(t *testing.T) {
	f := newWorkflowFixture()
	f.inventory.outOfStock = true
	session := f.seedAt(entities.StepInventoryCheck)
	session.StepData.Inventory = nil
	f.repo.seed(session)

	_, err := f.svc.CheckInventory(context.Background(), session.ID)

	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
	assert.Nil(t, f.repo.stored(session.ID).StepData.Inventory)
}

func TestWorkflowService_Complete(t *testing.T) {
	f := newWorkflowFixture()
	f.seedAt(entities.StepSchoolDelivery)

	completed, err := f.svc.Complete(context.Background(), "sess-seeded")

	require.NoError(t, err)
	assert.Equal(t, entities.SessionStatusCompleted, completed.Status)
	assert.NotNil(t, completed.StepData.Delivery.DeliveredAt)
	assert.Equal(t, []string{"res-0"}, f.inventory.delivered)
}

func TestWorkflowService_Complete_Idempotent(t *testing.T) {
	f := newWorkflowFixture()
	session := f.seedAt(entities.StepSchoolDelivery)
	session.Status = entities.SessionStatusCompleted
	f.repo.seed(session)

	completed, err := f.svc.Complete(context.Background(), session.ID)

	require.NoError(t, err)
	assert.Equal(t, entities.SessionStatusCompleted, completed.Status)
	// The reservation is not closed twice.
	assert.Empty(t, f.inventory.delivered)
}

func TestWorkflowService_Complete_OnlyAtFinalStep(t *testing.T) {
	f := newWorkflowFixture()
	f.seedAt(entities.StepGlassesSelection)

	_, err := f.svc.Complete(context.Background(), "sess-seeded")

	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
	assert.Equal(t, entities.SessionStatusInProgress, f.repo.stored("sess-seeded").Status)
}

func TestWorkflowService_PersistRetriesTransientFailures(t *testing.T) {
	f := newWorkflowFixture()
	f.seedAt(entities.StepVAScreening)
	f.repo.updateErrs = 2

	session, err := f.svc.SaveStep(context.Background(), "sess-seeded", entities.StepData{
		Acuity: &entities.AcuityData{RightEye: "20/20", LeftEye: "20/20"},
	})

	require.NoError(t, err)
	assert.Equal(t, "20/20", session.StepData.Acuity.RightEye)
	assert.Equal(t, "20/20", f.repo.stored("sess-seeded").StepData.Acuity.RightEye)
}

func TestWorkflowService_PersistRetriesFailedCreate(t *testing.T) {
	f := newWorkflowFixture()
	f.repo.createErrs = 1

	session, err := f.svc.StartSession(context.Background(), "op-1")

	// The failed first insert must be retried as an insert, never as an
	// update against a row that was never written.
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, 2, f.repo.creates)
	assert.Equal(t, 0, f.repo.updates)
	assert.NotNil(t, f.repo.stored(session.ID))
}

func TestWorkflowService_SaveStep_IdempotentMerge(t *testing.T) {
	f := newWorkflowFixture()
	f.seedAt(entities.StepVAScreening)

	payload := entities.StepData{Acuity: &entities.AcuityData{RightEye: "20/40", LeftEye: "20/30"}}

	first, err := f.svc.SaveStep(context.Background(), "sess-seeded", payload)
	require.NoError(t, err)
	second, err := f.svc.SaveStep(context.Background(), "sess-seeded", payload)
	require.NoError(t, err)

	assert.Equal(t, first.StepData, second.StepData)
	assert.Equal(t, first.CurrentStep, second.CurrentStep)
}

func TestWorkflowService_SingleInFlightPerSession(t *testing.T) {
	f := newWorkflowFixture()
	f.seedAt(entities.StepVAScreening)

	entered := make(chan struct{})
	proceed := make(chan struct{})
	var once sync.Once
	f.repo.onGet = func(id string) {
		once.Do(func() {
			close(entered)
			<-proceed
		})
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Next(context.Background(), "sess-seeded")
		done <- err
	}()

	<-entered
	_, err := f.svc.Back(context.Background(), "sess-seeded")
	assert.Equal(t, apperrors.ErrorTypeConflict, apperrors.TypeOf(err))

	close(proceed)
	require.NoError(t, <-done)
}

func TestWorkflowService_FindActiveSession(t *testing.T) {
	f := newWorkflowFixture()
	f.seedAt(entities.StepVAScreening)

	session, err := f.svc.FindActiveSession(context.Background(), "stu-1")

	require.NoError(t, err)
	assert.Equal(t, "sess-seeded", session.ID)

	_, err = f.svc.FindActiveSession(context.Background(), "stu-unknown")
	assert.True(t, apperrors.IsNotFound(err))
}
