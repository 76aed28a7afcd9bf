package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dersly/backend/apperrors"
	config "github.com/dersly/backend/configs"
	"github.com/dersly/backend/meetings"
	"github.com/dersly/backend/models"
	"github.com/dersly/backend/notifications"
	"github.com/dersly/backend/payments"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type stubAppointmentStore struct {
	appointments map[uuid.UUID]*models.Appointment
	jobs         []*models.DeferredJob
	createErrs   []error
	createCalls  int
}

func newStubAppointmentStore() *stubAppointmentStore {
	return &stubAppointmentStore{appointments: make(map[uuid.UUID]*models.Appointment)}
}

func (s *stubAppointmentStore) Create(_ context.Context, appt *models.Appointment, jobs ...*models.DeferredJob) error {
	s.createCalls++
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return err
		}
	}
	appt.ID = uuid.New()
	s.appointments[appt.ID] = appt
	for _, job := range jobs {
		job.AppointmentID = appt.ID
		s.jobs = append(s.jobs, job)
	}
	return nil
}

func (s *stubAppointmentStore) GetByID(_ context.Context, id uuid.UUID) (*models.Appointment, error) {
	appt, ok := s.appointments[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return appt, nil
}

func (s *stubAppointmentStore) Transition(_ context.Context, id uuid.UUID, from string, updates map[string]interface{}, jobs ...*models.DeferredJob) (*models.Appointment, bool, error) {
	appt, ok := s.appointments[id]
	if !ok {
		return nil, false, apperrors.ErrNotFound
	}
	if appt.Status != from {
		return appt, false, nil
	}
	applyUpdates(appt, updates)
	for _, job := range jobs {
		job.AppointmentID = id
		s.jobs = append(s.jobs, job)
	}
	return appt, true, nil
}

func (s *stubAppointmentStore) UpdateFields(_ context.Context, id uuid.UUID, updates map[string]interface{}) error {
	appt, ok := s.appointments[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	applyUpdates(appt, updates)
	return nil
}

func (s *stubAppointmentStore) ListByStudent(_ context.Context, _ uuid.UUID) ([]models.Appointment, error) {
	return nil, nil
}

func (s *stubAppointmentStore) ListByTeacher(_ context.Context, _ uuid.UUID) ([]models.Appointment, error) {
	return nil, nil
}

func (s *stubAppointmentStore) jobsOfKind(kind string) []*models.DeferredJob {
	var out []*models.DeferredJob
	for _, j := range s.jobs {
		if j.Kind == kind {
			out = append(out, j)
		}
	}
	return out
}

func applyUpdates(a *models.Appointment, updates map[string]interface{}) {
	for k, v := range updates {
		switch k {
		case "status":
			a.Status = v.(string)
		case "payment_status":
			a.PaymentStatus = v.(string)
		case "started_at":
			t := v.(time.Time)
			a.StartedAt = &t
		case "completed_at":
			t := v.(time.Time)
			a.CompletedAt = &t
		case "cancelled_by":
			id := v.(uuid.UUID)
			a.CancelledBy = &id
		case "cancellation_reason":
			if r, ok := v.(*string); ok {
				a.CancellationReason = r
			}
		case "no_show":
			a.NoShow = v.(bool)
		case "no_show_notes":
			if n, ok := v.(*string); ok {
				a.NoShowNotes = n
			}
		case "teacher_feedback":
			f := v.(string)
			a.TeacherFeedback = &f
		case "gateway_payment_id":
			g := v.(string)
			a.GatewayPaymentID = &g
		case "meeting_id":
			m := v.(string)
			a.MeetingID = &m
		case "join_url":
			u := v.(string)
			a.JoinURL = &u
		case "receipt_url":
			r := v.(string)
			a.ReceiptURL = &r
		}
	}
}

type stubDirectory struct {
	teachers map[uuid.UUID]*models.Teacher
	subjects map[uuid.UUID]*models.Subject
	users    map[uuid.UUID]*models.User
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		teachers: make(map[uuid.UUID]*models.Teacher),
		subjects: make(map[uuid.UUID]*models.Subject),
		users:    make(map[uuid.UUID]*models.User),
	}
}

func (d *stubDirectory) GetTeacher(_ context.Context, id uuid.UUID) (*models.Teacher, error) {
	t, ok := d.teachers[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return t, nil
}

func (d *stubDirectory) GetSubject(_ context.Context, id uuid.UUID) (*models.Subject, error) {
	s, ok := d.subjects[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return s, nil
}

func (d *stubDirectory) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return u, nil
}

type stubChecker struct{ err error }

func (c *stubChecker) CheckBookable(_ context.Context, _ uuid.UUID, _ time.Time, _ int) error {
	return c.err
}

type stubCreditor struct {
	credits  []decimal.Decimal
	credited map[uuid.UUID]bool
	failures int
}

func (c *stubCreditor) CreditEarning(_ context.Context, _ uuid.UUID, appointmentID uuid.UUID, amount decimal.Decimal) (*models.WalletTransaction, error) {
	if c.failures > 0 {
		c.failures--
		return nil, errors.New("wallet row lock timeout")
	}
	if c.credited == nil {
		c.credited = make(map[uuid.UUID]bool)
	}
	if c.credited[appointmentID] {
		return nil, apperrors.ErrDuplicateEarning
	}
	c.credited[appointmentID] = true
	c.credits = append(c.credits, amount)
	return &models.WalletTransaction{ID: uuid.New(), Amount: amount}, nil
}

type stubGateway struct {
	session   *payments.CheckoutSession
	result    *payments.PaymentResult
	initErr   error
	refunds   []string
	refundErr error
}

func (g *stubGateway) InitializePayment(_ payments.CheckoutOrder) (*payments.CheckoutSession, error) {
	if g.initErr != nil {
		return nil, g.initErr
	}
	return g.session, nil
}

func (g *stubGateway) RetrieveResult(_ string) (*payments.PaymentResult, error) {
	return g.result, nil
}

func (g *stubGateway) Refund(paymentID string, _ decimal.Decimal) error {
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunds = append(g.refunds, paymentID)
	return nil
}

type stubMeetings struct {
	created int
	deleted []string
}

func (m *stubMeetings) CreateMeeting(_ string, _ time.Time, _ int) (*meetings.Meeting, error) {
	m.created++
	return &meetings.Meeting{MeetingID: "mtg-1", JoinURL: "https://rooms.example.com/mtg-1"}, nil
}

func (m *stubMeetings) DeleteMeeting(id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type fixture struct {
	svc       *AppointmentService
	store     *stubAppointmentStore
	directory *stubDirectory
	checker   *stubChecker
	creditor  *stubCreditor
	gateway   *stubGateway
	meetings  *stubMeetings
	now       time.Time
	teacherID uuid.UUID
	studentID uuid.UUID
	subjectID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:     newStubAppointmentStore(),
		directory: newStubDirectory(),
		checker:   &stubChecker{},
		creditor:  &stubCreditor{},
		gateway:   &stubGateway{session: &payments.CheckoutSession{Token: "tok-1", CheckoutFormContent: "<form/>"}},
		meetings:  &stubMeetings{},
		now:       time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
		teacherID: uuid.New(),
		studentID: uuid.New(),
		subjectID: uuid.New(),
	}

	branchID := uuid.New()
	f.directory.teachers[f.teacherID] = &models.Teacher{
		UserID:            f.teacherID,
		BranchID:          branchID,
		Status:            models.TeacherStatusApproved,
		HourlyRate:        decimal.NewFromInt(1000),
		CommissionPercent: decimal.NewFromInt(20),
	}
	f.directory.subjects[f.subjectID] = &models.Subject{ID: f.subjectID, BranchID: branchID}
	f.directory.users[f.studentID] = &models.User{ID: f.studentID, FullName: "A Student", Email: "student@example.com"}

	settings := config.Settings{
		CommissionPercent:         decimal.NewFromInt(20),
		BankTransferDeadlineHours: 24,
		ExpireGraceHours:          1,
		CancellationDeadlineHours: 12,
		MinBookingHours:           2,
		MaxBookingDays:            60,
		AutoCompleteDelayMinutes:  30,
		Timezone:                  time.UTC,
	}

	f.svc = NewAppointmentService(f.store, f.directory, f.checker, f.creditor, f.gateway, f.meetings, nil, settings)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) createInput(method string) CreateAppointmentInput {
	return CreateAppointmentInput{
		StudentID:       f.studentID,
		TeacherID:       f.teacherID,
		SubjectID:       f.subjectID,
		ScheduledAt:     f.now.Add(48 * time.Hour),
		DurationMinutes: 60,
		PaymentMethod:   method,
	}
}

func (f *fixture) seedAppointment(status, paymentStatus, method string, scheduledAt time.Time) *models.Appointment {
	appt := &models.Appointment{
		ID:              uuid.New(),
		OrderCode:       "APT-20260831-SEEDED",
		StudentID:       f.studentID,
		TeacherID:       f.teacherID,
		SubjectID:       f.subjectID,
		ScheduledAt:     scheduledAt,
		DurationMinutes: 60,
		Status:          status,
		PaymentStatus:   paymentStatus,
		PaymentMethod:   method,
		GrossAmount:     decimal.NewFromInt(1000),
		PlatformFee:     decimal.NewFromInt(200),
		TeacherEarning:  decimal.NewFromInt(800),
	}
	f.store.appointments[appt.ID] = appt
	return appt
}

func TestCreateComputesFeeSplit(t *testing.T) {
	f := newFixture(t)

	appt, _, err := f.svc.Create(context.Background(), f.createInput(models.PaymentMethodBankTransfer))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !appt.GrossAmount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("gross = %s, want 1000", appt.GrossAmount)
	}
	if !appt.PlatformFee.Equal(decimal.NewFromInt(200)) {
		t.Errorf("fee = %s, want 200", appt.PlatformFee)
	}
	if !appt.TeacherEarning.Equal(decimal.NewFromInt(800)) {
		t.Errorf("earning = %s, want 800", appt.TeacherEarning)
	}
	if !appt.PlatformFee.Add(appt.TeacherEarning).Equal(appt.GrossAmount) {
		t.Error("fee + earning != gross")
	}
}

func TestCreateBankTransferArmsExpiry(t *testing.T) {
	f := newFixture(t)

	appt, _, err := f.svc.Create(context.Background(), f.createInput(models.PaymentMethodBankTransfer))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantDeadline := f.now.Add(24 * time.Hour)
	if appt.PaymentDeadline == nil || !appt.PaymentDeadline.Equal(wantDeadline) {
		t.Fatalf("payment deadline = %v, want %v", appt.PaymentDeadline, wantDeadline)
	}

	expiries := f.store.jobsOfKind(models.JobExpireBankTransfer)
	if len(expiries) != 1 {
		t.Fatalf("expire jobs armed = %d, want 1", len(expiries))
	}
	if !expiries[0].RunAt.Equal(wantDeadline.Add(time.Hour)) {
		t.Errorf("expire job fires at %v, want deadline + 1h grace", expiries[0].RunAt)
	}
}

func TestCreateCardOpensCheckout(t *testing.T) {
	f := newFixture(t)

	appt, session, err := f.svc.Create(context.Background(), f.createInput(models.PaymentMethodCreditCard))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session == nil || session.Token != "tok-1" {
		t.Fatal("checkout session not returned")
	}
	if appt.PaymentDeadline != nil {
		t.Error("card payment must not get a transfer deadline")
	}
	if len(f.store.jobsOfKind(models.JobExpireBankTransfer)) != 0 {
		t.Error("card payment must not arm an expiry job")
	}
}

func TestCreateGatewayFailureKeepsAppointment(t *testing.T) {
	f := newFixture(t)
	f.gateway.initErr = context.DeadlineExceeded

	appt, session, err := f.svc.Create(context.Background(), f.createInput(models.PaymentMethodCreditCard))
	if !apperrors.IsGateway(err) {
		t.Fatalf("got %v, want gateway error", err)
	}
	if session != nil {
		t.Error("no session expected on gateway failure")
	}
	if appt == nil || appt.Status != models.AppointmentPendingPayment {
		t.Error("appointment must survive gateway failure in PENDING_PAYMENT")
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateAppointmentInput)
	}{
		{"duration too short", func(in *CreateAppointmentInput) { in.DurationMinutes = 20 }},
		{"duration too long", func(in *CreateAppointmentInput) { in.DurationMinutes = 200 }},
		{"unknown method", func(in *CreateAppointmentInput) { in.PaymentMethod = "CASH" }},
		{"too soon", func(in *CreateAppointmentInput) { in.ScheduledAt = f.now.Add(time.Hour) }},
		{"too far ahead", func(in *CreateAppointmentInput) { in.ScheduledAt = f.now.AddDate(0, 0, 61) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := f.createInput(models.PaymentMethodBankTransfer)
			tc.mutate(&input)
			if _, _, err := f.svc.Create(ctx, input); !apperrors.IsValidation(err) {
				t.Errorf("got %v, want validation error", err)
			}
		})
	}
}

func TestCreateRejectsUnapprovedTeacher(t *testing.T) {
	f := newFixture(t)
	f.directory.teachers[f.teacherID].Status = models.TeacherStatusPending

	if _, _, err := f.svc.Create(context.Background(), f.createInput(models.PaymentMethodBankTransfer)); !apperrors.IsValidation(err) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestCreateRejectsSubjectFromOtherBranch(t *testing.T) {
	f := newFixture(t)
	f.directory.subjects[f.subjectID].BranchID = uuid.New()

	if _, _, err := f.svc.Create(context.Background(), f.createInput(models.PaymentMethodBankTransfer)); !apperrors.IsValidation(err) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestCreateSurfacesSlotConflict(t *testing.T) {
	f := newFixture(t)
	f.checker.err = apperrors.ErrSlotTaken

	if _, _, err := f.svc.Create(context.Background(), f.createInput(models.PaymentMethodBankTransfer)); err != apperrors.ErrSlotTaken {
		t.Errorf("got %v, want ErrSlotTaken", err)
	}
	if f.store.createCalls != 0 {
		t.Error("create must be rejected before the insert")
	}
}

func TestCreateRegeneratesOrderCodeOnCollision(t *testing.T) {
	f := newFixture(t)
	f.store.createErrs = []error{apperrors.ErrDuplicateOrder}

	_, _, err := f.svc.Create(context.Background(), f.createInput(models.PaymentMethodBankTransfer))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.store.createCalls != 2 {
		t.Errorf("create calls = %d, want 2 (one retry)", f.store.createCalls)
	}
}

func TestConfirmPaymentArmsReminders(t *testing.T) {
	f := newFixture(t)
	scheduledAt := f.now.Add(48 * time.Hour) // 2026-09-02 10:00 UTC
	appt := f.seedAppointment(models.AppointmentPendingPayment, models.PaymentPending, models.PaymentMethodBankTransfer, scheduledAt)

	confirmed, err := f.svc.ConfirmPayment(context.Background(), appt.ID, "admin", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if confirmed.Status != models.AppointmentConfirmed {
		t.Errorf("status = %s, want CONFIRMED", confirmed.Status)
	}
	if confirmed.PaymentStatus != models.PaymentPaid {
		t.Errorf("payment status = %s, want PAID", confirmed.PaymentStatus)
	}

	reminders := f.store.jobsOfKind(models.JobReminder)
	if len(reminders) != 2 {
		t.Fatalf("reminders armed = %d, want 2", len(reminders))
	}
	wantMorning := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)
	wantHourBefore := scheduledAt.Add(-time.Hour)
	for _, r := range reminders {
		switch r.Payload {
		case models.ReminderMorningOf:
			if !r.RunAt.Equal(wantMorning) {
				t.Errorf("morning-of fires at %v, want %v", r.RunAt, wantMorning)
			}
		case models.ReminderOneHourBefore:
			if !r.RunAt.Equal(wantHourBefore) {
				t.Errorf("one-hour-before fires at %v, want %v", r.RunAt, wantHourBefore)
			}
		default:
			t.Errorf("unexpected reminder payload %q", r.Payload)
		}
	}

	if f.meetings.created != 1 {
		t.Errorf("meetings created = %d, want 1", f.meetings.created)
	}
}

func TestConfirmPaymentSkipsPastReminders(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(models.AppointmentPendingPayment, models.PaymentPending, models.PaymentMethodBankTransfer, f.now.Add(30*time.Minute))

	if _, err := f.svc.ConfirmPayment(context.Background(), appt.ID, "admin", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(f.store.jobsOfKind(models.JobReminder)); n != 0 {
		t.Errorf("reminders armed = %d, want 0 (fire times passed)", n)
	}
}

func TestConfirmPaymentDuplicateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(models.AppointmentConfirmed, models.PaymentPaid, models.PaymentMethodCreditCard, f.now.Add(48*time.Hour))

	confirmed, err := f.svc.ConfirmPayment(context.Background(), appt.ID, "gateway", "pay-9")
	if err != nil {
		t.Fatalf("duplicate confirm errored: %v", err)
	}
	if confirmed.Status != models.AppointmentConfirmed {
		t.Errorf("status = %s", confirmed.Status)
	}
}

func TestConfirmPaymentRejectedFromTerminal(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(models.AppointmentExpired, models.PaymentCancelled, models.PaymentMethodBankTransfer, f.now.Add(48*time.Hour))

	if _, err := f.svc.ConfirmPayment(context.Background(), appt.ID, "admin", ""); err != apperrors.ErrInvalidTransition {
		t.Errorf("got %v, want ErrInvalidTransition", err)
	}
}

func TestCancelCutoffBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// One second inside the window succeeds.
	early := f.seedAppointment(models.AppointmentConfirmed, models.PaymentPaid, models.PaymentMethodBankTransfer, f.now.Add(12*time.Hour+time.Second))
	if _, err := f.svc.Cancel(ctx, early.ID, f.studentID, "student", nil); err != nil {
		t.Errorf("cancel inside window failed: %v", err)
	}

	// Exactly at the cutoff fails.
	late := f.seedAppointment(models.AppointmentConfirmed, models.PaymentPaid, models.PaymentMethodBankTransfer, f.now.Add(12*time.Hour))
	if _, err := f.svc.Cancel(ctx, late.ID, f.studentID, "student", nil); err != apperrors.ErrDeadlineExceeded {
		t.Errorf("cancel at cutoff = %v, want ErrDeadlineExceeded", err)
	}
}

func TestCancelPendingPaymentAnytime(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(models.AppointmentPendingPayment, models.PaymentPending, models.PaymentMethodBankTransfer, f.now.Add(time.Hour))

	cancelled, err := f.svc.Cancel(context.Background(), appt.ID, f.studentID, "student", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != models.AppointmentCancelled {
		t.Errorf("status = %s, want CANCELLED", cancelled.Status)
	}
	if cancelled.PaymentStatus != models.PaymentCancelled {
		t.Errorf("payment status = %s, want CANCELLED", cancelled.PaymentStatus)
	}
}

func TestCancelForbiddenForStranger(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(models.AppointmentPendingPayment, models.PaymentPending, models.PaymentMethodBankTransfer, f.now.Add(48*time.Hour))

	if _, err := f.svc.Cancel(context.Background(), appt.ID, uuid.New(), "student", nil); err != apperrors.ErrForbidden {
		t.Errorf("got %v, want ErrForbidden", err)
	}
}

func TestCancelPaidCardRefunds(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(models.AppointmentConfirmed, models.PaymentPaid, models.PaymentMethodCreditCard, f.now.Add(48*time.Hour))
	payID := "pay-42"
	appt.GatewayPaymentID = &payID
	meetingID := "mtg-old"
	appt.MeetingID = &meetingID

	cancelled, err := f.svc.Cancel(context.Background(), appt.ID, f.studentID, "student", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.PaymentStatus != models.PaymentRefunded {
		t.Errorf("payment status = %s, want REFUNDED", cancelled.PaymentStatus)
	}
	if len(f.gateway.refunds) != 1 || f.gateway.refunds[0] != "pay-42" {
		t.Error("refund not issued against the original payment")
	}
	if len(f.meetings.deleted) != 1 || f.meetings.deleted[0] != "mtg-old" {
		t.Error("meeting not deleted on cancel")
	}
}

func TestMarkLessonStartedArmsAutoComplete(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(models.AppointmentConfirmed, models.PaymentPaid, models.PaymentMethodCreditCard, f.now)

	started, err := f.svc.MarkLessonStarted(context.Background(), appt.ID, f.teacherID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started.Status != models.AppointmentInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", started.Status)
	}
	if started.StartedAt == nil || !started.StartedAt.Equal(f.now) {
		t.Error("started_at not recorded")
	}

	autos := f.store.jobsOfKind(models.JobAutoComplete)
	if len(autos) != 1 {
		t.Fatalf("auto-complete jobs = %d, want 1", len(autos))
	}
	want := f.now.Add(60 * time.Minute).Add(30 * time.Minute)
	if !autos[0].RunAt.Equal(want) {
		t.Errorf("auto-complete fires at %v, want %v", autos[0].RunAt, want)
	}
}

func TestMarkLessonStartedOnlyFromConfirmed(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(models.AppointmentPendingPayment, models.PaymentPending, models.PaymentMethodCreditCard, f.now)

	if _, err := f.svc.MarkLessonStarted(context.Background(), appt.ID, f.teacherID); err != apperrors.ErrInvalidTransition {
		t.Errorf("got %v, want ErrInvalidTransition", err)
	}
}

func TestMarkNoShowRequiresScheduledStart(t *testing.T) {
	f := newFixture(t)
	future := f.seedAppointment(models.AppointmentConfirmed, models.PaymentPaid, models.PaymentMethodCreditCard, f.now.Add(time.Hour))

	if _, err := f.svc.MarkNoShow(context.Background(), future.ID, f.teacherID, nil); err != apperrors.ErrLessonNotStarted {
		t.Errorf("got %v, want ErrLessonNotStarted", err)
	}

	past := f.seedAppointment(models.AppointmentConfirmed, models.PaymentPaid, models.PaymentMethodCreditCard, f.now.Add(-time.Minute))
	marked, err := f.svc.MarkNoShow(context.Background(), past.ID, f.teacherID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if marked.Status != models.AppointmentNoShow || !marked.NoShow {
		t.Error("appointment not marked NO_SHOW")
	}
}

func TestSubmitFeedbackCompletesAndCredits(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(models.AppointmentInProgress, models.PaymentPaid, models.PaymentMethodCreditCard, f.now.Add(-time.Hour))

	completed, err := f.svc.SubmitFeedback(context.Background(), appt.ID, f.teacherID, "Great progress on derivatives")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completed.Status != models.AppointmentCompleted {
		t.Errorf("status = %s, want COMPLETED", completed.Status)
	}
	if len(f.creditor.credits) != 1 || !f.creditor.credits[0].Equal(decimal.NewFromInt(800)) {
		t.Errorf("credited %v, want one credit of 800", f.creditor.credits)
	}
}

func TestFeedbackCannotSkipInProgress(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(models.AppointmentConfirmed, models.PaymentPaid, models.PaymentMethodCreditCard, f.now.Add(-time.Hour))

	if _, err := f.svc.SubmitFeedback(context.Background(), appt.ID, f.teacherID, "Skipping straight to done"); err != apperrors.ErrInvalidTransition {
		t.Errorf("got %v, want ErrInvalidTransition", err)
	}
	if len(f.creditor.credits) != 0 {
		t.Error("earning credited without completion")
	}
}

func TestExpireBankTransferFiresOnce(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(models.AppointmentPendingPayment, models.PaymentPending, models.PaymentMethodBankTransfer, f.now.Add(48*time.Hour))
	deadline := f.now.Add(-time.Hour)
	appt.PaymentDeadline = &deadline

	if err := f.svc.ExpireBankTransfer(context.Background(), appt.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Status != models.AppointmentExpired {
		t.Errorf("status = %s, want EXPIRED", appt.Status)
	}
	if appt.PaymentStatus != models.PaymentCancelled {
		t.Errorf("payment status = %s, want CANCELLED", appt.PaymentStatus)
	}

	// Second firing is a no-op.
	if err := f.svc.ExpireBankTransfer(context.Background(), appt.ID); err != nil {
		t.Fatalf("re-run errored: %v", err)
	}
	if appt.Status != models.AppointmentExpired {
		t.Error("re-run changed state")
	}
}

func TestExpireBankTransferNoopBeforeDeadline(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(models.AppointmentPendingPayment, models.PaymentPending, models.PaymentMethodBankTransfer, f.now.Add(48*time.Hour))
	deadline := f.now.Add(time.Hour)
	appt.PaymentDeadline = &deadline

	if err := f.svc.ExpireBankTransfer(context.Background(), appt.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Status != models.AppointmentPendingPayment {
		t.Error("expired before the deadline")
	}
}

func TestExpireBankTransferNoopWhenPaid(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(models.AppointmentConfirmed, models.PaymentPaid, models.PaymentMethodBankTransfer, f.now.Add(48*time.Hour))
	deadline := f.now.Add(-time.Hour)
	appt.PaymentDeadline = &deadline

	if err := f.svc.ExpireBankTransfer(context.Background(), appt.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Status != models.AppointmentConfirmed {
		t.Error("paid appointment expired")
	}
}

func TestAutoCompleteIdempotent(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(models.AppointmentInProgress, models.PaymentPaid, models.PaymentMethodCreditCard, f.now.Add(-2*time.Hour))

	if err := f.svc.AutoComplete(context.Background(), appt.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Status != models.AppointmentCompleted {
		t.Errorf("status = %s, want COMPLETED", appt.Status)
	}

	if err := f.svc.AutoComplete(context.Background(), appt.ID); err != nil {
		t.Fatalf("re-run errored: %v", err)
	}
	if len(f.creditor.credits) != 1 {
		t.Errorf("credits = %d, want exactly 1 after double fire", len(f.creditor.credits))
	}
}

func TestAutoCompleteRetriesCreditAfterFailure(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(models.AppointmentInProgress, models.PaymentPaid, models.PaymentMethodCreditCard, f.now.Add(-2*time.Hour))
	f.creditor.failures = 1

	// The first firing completes the lesson but the credit fails; the error
	// keeps the job pending for another pass.
	if err := f.svc.AutoComplete(context.Background(), appt.ID); err == nil {
		t.Fatal("credit failure must surface so the job retries")
	}
	if appt.Status != models.AppointmentCompleted {
		t.Fatalf("status = %s, want COMPLETED after the first firing", appt.Status)
	}
	if len(f.creditor.credits) != 0 {
		t.Fatal("credit recorded despite the failure")
	}

	// The retry finds COMPLETED and settles the credit.
	if err := f.svc.AutoComplete(context.Background(), appt.ID); err != nil {
		t.Fatalf("retry errored: %v", err)
	}
	if len(f.creditor.credits) != 1 || !f.creditor.credits[0].Equal(decimal.NewFromInt(800)) {
		t.Errorf("credits = %v, want one credit of 800", f.creditor.credits)
	}

	// Further firings leave the ledger alone.
	if err := f.svc.AutoComplete(context.Background(), appt.ID); err != nil {
		t.Fatalf("third firing errored: %v", err)
	}
	if len(f.creditor.credits) != 1 {
		t.Errorf("credits = %d after third firing, want 1", len(f.creditor.credits))
	}
}

func TestSubmitFeedbackRetriesCreditAfterFailure(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(models.AppointmentInProgress, models.PaymentPaid, models.PaymentMethodCreditCard, f.now.Add(-time.Hour))
	f.creditor.failures = 1

	if _, err := f.svc.SubmitFeedback(context.Background(), appt.ID, f.teacherID, "Solid session, picked up limits quickly"); err == nil {
		t.Fatal("credit failure must surface")
	}
	if appt.Status != models.AppointmentCompleted {
		t.Fatalf("status = %s, want COMPLETED", appt.Status)
	}

	// Re-submitting against COMPLETED settles the credit.
	updated, err := f.svc.SubmitFeedback(context.Background(), appt.ID, f.teacherID, "Solid session, picked up limits quickly")
	if err != nil {
		t.Fatalf("retry errored: %v", err)
	}
	if updated.TeacherFeedback == nil {
		t.Error("feedback not recorded")
	}
	if len(f.creditor.credits) != 1 || !f.creditor.credits[0].Equal(decimal.NewFromInt(800)) {
		t.Errorf("credits = %v, want one credit of 800", f.creditor.credits)
	}
}

type recordingDispatcher struct {
	ch chan string
}

func (d *recordingDispatcher) Notify(kind string, _ []notifications.Recipient, _ map[string]string) {
	d.ch <- kind
}

func TestSendReminderNoopUnlessConfirmed(t *testing.T) {
	f := newFixture(t)
	dispatcher := &recordingDispatcher{ch: make(chan string, 4)}
	f.svc.notifier = dispatcher

	student := models.User{FullName: "A Student", Email: "student@example.com"}
	cancelled := f.seedAppointment(models.AppointmentCancelled, models.PaymentCancelled, models.PaymentMethodBankTransfer, f.now.Add(time.Hour))
	cancelled.Student = student
	inProgress := f.seedAppointment(models.AppointmentInProgress, models.PaymentPaid, models.PaymentMethodCreditCard, f.now.Add(-time.Minute))
	inProgress.Student = student

	if err := f.svc.SendReminder(context.Background(), cancelled.ID, models.ReminderOneHourBefore); err != nil {
		t.Fatalf("reminder for cancelled appointment errored: %v", err)
	}
	if err := f.svc.SendReminder(context.Background(), inProgress.ID, models.ReminderOneHourBefore); err != nil {
		t.Fatalf("reminder for started appointment errored: %v", err)
	}

	select {
	case kind := <-dispatcher.ch:
		t.Errorf("dispatched %s for a non-CONFIRMED appointment", kind)
	default:
	}
}

func TestSendReminderDispatchesWhenConfirmed(t *testing.T) {
	f := newFixture(t)
	dispatcher := &recordingDispatcher{ch: make(chan string, 1)}
	f.svc.notifier = dispatcher

	appt := f.seedAppointment(models.AppointmentConfirmed, models.PaymentPaid, models.PaymentMethodCreditCard, f.now.Add(time.Hour))
	appt.Student = models.User{FullName: "A Student", Email: "student@example.com"}

	if err := f.svc.SendReminder(context.Background(), appt.ID, models.ReminderMorningOf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case kind := <-dispatcher.ch:
		if kind != notifications.KindLessonReminder {
			t.Errorf("dispatched kind %s, want %s", kind, notifications.KindLessonReminder)
		}
	case <-time.After(time.Second):
		t.Fatal("reminder not dispatched for a confirmed appointment")
	}
}

func TestHandleGatewayCallbackConfirms(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(models.AppointmentPendingPayment, models.PaymentPending, models.PaymentMethodCreditCard, f.now.Add(48*time.Hour))
	f.gateway.result = &payments.PaymentResult{
		Status:         payments.ResultSuccess,
		PaymentID:      "pay-77",
		ConversationID: appt.ID.String(),
	}

	confirmed, err := f.svc.HandleGatewayCallback(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if confirmed.Status != models.AppointmentConfirmed {
		t.Errorf("status = %s, want CONFIRMED", confirmed.Status)
	}
	if confirmed.GatewayPaymentID == nil || *confirmed.GatewayPaymentID != "pay-77" {
		t.Error("gateway payment id not recorded")
	}
}

func TestHandleGatewayCallbackFailureLeavesPending(t *testing.T) {
	f := newFixture(t)
	appt := f.seedAppointment(models.AppointmentPendingPayment, models.PaymentPending, models.PaymentMethodCreditCard, f.now.Add(48*time.Hour))
	f.gateway.result = &payments.PaymentResult{Status: "failure", ConversationID: appt.ID.String()}

	if _, err := f.svc.HandleGatewayCallback(context.Background(), "tok-1"); !apperrors.IsValidation(err) {
		t.Fatalf("got %v, want validation error", err)
	}
	if appt.Status != models.AppointmentPendingPayment {
		t.Error("failed payment moved the appointment")
	}
}
