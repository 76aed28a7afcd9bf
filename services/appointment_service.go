package services

import (
	"context"
	"log"
	"time"

	"github.com/dersly/backend/apperrors"
	config "github.com/dersly/backend/configs"
	"github.com/dersly/backend/meetings"
	"github.com/dersly/backend/models"
	"github.com/dersly/backend/notifications"
	"github.com/dersly/backend/payments"
	"github.com/dersly/backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const orderCodeAttempts = 5

type appointmentStore interface {
	Create(ctx context.Context, appt *models.Appointment, jobs ...*models.DeferredJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	Transition(ctx context.Context, id uuid.UUID, from string, updates map[string]interface{}, jobs ...*models.DeferredJob) (*models.Appointment, bool, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]models.Appointment, error)
	ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.Appointment, error)
}

type directoryStore interface {
	GetTeacher(ctx context.Context, userID uuid.UUID) (*models.Teacher, error)
	GetSubject(ctx context.Context, id uuid.UUID) (*models.Subject, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type slotChecker interface {
	CheckBookable(ctx context.Context, teacherID uuid.UUID, startsAt time.Time, durationMinutes int) error
}

type earningCreditor interface {
	CreditEarning(ctx context.Context, teacherID, appointmentID uuid.UUID, amount decimal.Decimal) (*models.WalletTransaction, error)
}

// AppointmentService owns every appointment status transition. A transition
// is an UPDATE conditioned on the currently persisted status, so concurrent
// conflicting transitions resolve to exactly one winner. Notification and
// meeting-link side effects are best-effort and never roll a transition back.
type AppointmentService struct {
	store        appointmentStore
	directory    directoryStore
	availability slotChecker
	settlement   earningCreditor
	gateway      payments.Gateway
	meetings     meetings.Provider
	notifier     notifications.Dispatcher
	settings     config.Settings
	now          func() time.Time
}

func NewAppointmentService(
	store appointmentStore,
	directory directoryStore,
	availability slotChecker,
	settlement earningCreditor,
	gateway payments.Gateway,
	meetingProvider meetings.Provider,
	notifier notifications.Dispatcher,
	settings config.Settings,
) *AppointmentService {
	return &AppointmentService{
		store:        store,
		directory:    directory,
		availability: availability,
		settlement:   settlement,
		gateway:      gateway,
		meetings:     meetingProvider,
		notifier:     notifier,
		settings:     settings,
		now:          time.Now,
	}
}

type CreateAppointmentInput struct {
	StudentID       uuid.UUID
	TeacherID       uuid.UUID
	SubjectID       uuid.UUID
	ScheduledAt     time.Time
	DurationMinutes int
	PaymentMethod   string
	Note            *string
}

// Create runs the booking algorithm: eligibility checks, availability and
// conflict check, fee split snapshot, order code generation, and for bank
// transfers a payment deadline with an expiry job armed in the same
// transaction. For card payments it also opens a checkout session; a gateway
// failure leaves the appointment in PENDING_PAYMENT.
func (s *AppointmentService) Create(ctx context.Context, input CreateAppointmentInput) (*models.Appointment, *payments.CheckoutSession, error) {
	if input.DurationMinutes < 30 || input.DurationMinutes > 180 {
		return nil, nil, apperrors.NewValidation("duration_minutes", "duration must be between 30 and 180 minutes")
	}
	if input.PaymentMethod != models.PaymentMethodCreditCard && input.PaymentMethod != models.PaymentMethodBankTransfer {
		return nil, nil, apperrors.NewValidation("payment_method", "unknown payment method")
	}

	teacher, err := s.directory.GetTeacher(ctx, input.TeacherID)
	if err != nil {
		return nil, nil, err
	}
	if teacher.Status != models.TeacherStatusApproved {
		return nil, nil, apperrors.NewValidation("teacher_id", "teacher is not approved")
	}

	subject, err := s.directory.GetSubject(ctx, input.SubjectID)
	if err != nil {
		return nil, nil, err
	}
	if subject.BranchID != teacher.BranchID {
		return nil, nil, apperrors.NewValidation("subject_id", "subject does not belong to the teacher's branch")
	}

	now := s.now()
	if input.ScheduledAt.Before(now.Add(time.Duration(s.settings.MinBookingHours) * time.Hour)) {
		return nil, nil, apperrors.NewValidation("scheduled_at", "lessons must be booked further in advance")
	}
	if input.ScheduledAt.After(now.AddDate(0, 0, s.settings.MaxBookingDays)) {
		return nil, nil, apperrors.NewValidation("scheduled_at", "lessons cannot be booked that far ahead")
	}

	if err := s.availability.CheckBookable(ctx, input.TeacherID, input.ScheduledAt, input.DurationMinutes); err != nil {
		return nil, nil, err
	}

	gross, fee, earning := s.feeSplit(teacher)

	appt := &models.Appointment{
		StudentID:       input.StudentID,
		TeacherID:       input.TeacherID,
		SubjectID:       input.SubjectID,
		ScheduledAt:     input.ScheduledAt,
		DurationMinutes: input.DurationMinutes,
		Status:          models.AppointmentPendingPayment,
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   models.PaymentPending,
		GrossAmount:     gross,
		PlatformFee:     fee,
		TeacherEarning:  earning,
		Note:            input.Note,
	}

	var jobs []*models.DeferredJob
	if input.PaymentMethod == models.PaymentMethodBankTransfer {
		deadline := now.Add(time.Duration(s.settings.BankTransferDeadlineHours) * time.Hour)
		appt.PaymentDeadline = &deadline
		jobs = append(jobs, &models.DeferredJob{
			Kind:  models.JobExpireBankTransfer,
			RunAt: deadline.Add(time.Duration(s.settings.ExpireGraceHours) * time.Hour),
		})
	}

	if err := s.createWithUniqueCode(ctx, appt, jobs); err != nil {
		return nil, nil, err
	}

	if input.PaymentMethod == models.PaymentMethodCreditCard {
		student, err := s.directory.GetUser(ctx, input.StudentID)
		if err != nil {
			return appt, nil, err
		}
		session, err := s.gateway.InitializePayment(payments.CheckoutOrder{
			OrderCode:      appt.OrderCode,
			Amount:         appt.GrossAmount,
			BuyerName:      student.FullName,
			BuyerEmail:     student.Email,
			ConversationID: appt.ID.String(),
		})
		if err != nil {
			return appt, nil, &apperrors.GatewayError{Op: "initialize", Err: err}
		}
		return appt, session, nil
	}

	return appt, nil, nil
}

func (s *AppointmentService) createWithUniqueCode(ctx context.Context, appt *models.Appointment, jobs []*models.DeferredJob) error {
	for attempt := 0; attempt < orderCodeAttempts; attempt++ {
		appt.OrderCode = utils.GenerateOrderCode(s.now())
		err := s.store.Create(ctx, appt, jobs...)
		if err == nil {
			return nil
		}
		if err == apperrors.ErrDuplicateOrder {
			continue
		}
		return err
	}
	return apperrors.ErrDuplicateOrder
}

func (s *AppointmentService) feeSplit(teacher *models.Teacher) (gross, fee, earning decimal.Decimal) {
	gross = teacher.HourlyRate
	pct := teacher.CommissionPercent
	if !pct.IsPositive() {
		pct = s.settings.CommissionPercent
	}
	fee = gross.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)
	earning = gross.Sub(fee)
	return gross, fee, earning
}

// HandleGatewayCallback resolves a checkout token and, on success, drives the
// appointment to CONFIRMED. A duplicate callback for an already-confirmed
// appointment is answered with the appointment, not an error.
func (s *AppointmentService) HandleGatewayCallback(ctx context.Context, token string) (*models.Appointment, error) {
	result, err := s.gateway.RetrieveResult(token)
	if err != nil {
		return nil, &apperrors.GatewayError{Op: "retrieve", Err: err}
	}

	appointmentID, err := uuid.Parse(result.ConversationID)
	if err != nil {
		return nil, apperrors.NewValidation("conversation_id", "callback does not reference an appointment")
	}

	if result.Status != payments.ResultSuccess {
		log.Printf("⚠️ Payment for appointment %s reported %s", appointmentID, result.Status)
		return nil, apperrors.NewValidation("payment", "payment was not successful")
	}

	return s.ConfirmPayment(ctx, appointmentID, "gateway", result.PaymentID)
}

// ConfirmPayment performs PENDING_PAYMENT -> CONFIRMED. Source is "gateway"
// for card captures and "admin" for approved bank transfers. Reminder jobs
// are armed atomically with the transition; ones whose fire time has passed
// are simply not armed.
func (s *AppointmentService) ConfirmPayment(ctx context.Context, id uuid.UUID, source, gatewayPaymentID string) (*models.Appointment, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"status":         models.AppointmentConfirmed,
		"payment_status": models.PaymentPaid,
	}
	if gatewayPaymentID != "" {
		updates["gateway_payment_id"] = gatewayPaymentID
	}

	appt, won, err := s.store.Transition(ctx, id, models.AppointmentPendingPayment, updates, s.reminderJobs(current.ScheduledAt)...)
	if err != nil {
		return nil, err
	}
	if !won {
		if appt.Status == models.AppointmentConfirmed {
			return appt, nil
		}
		return nil, apperrors.ErrInvalidTransition
	}

	log.Printf("✅ Appointment %s confirmed via %s", appt.OrderCode, source)
	s.attachMeeting(ctx, appt)
	s.notifyParties(appt, notifications.KindBookingConfirmed, map[string]string{
		"order_code":   appt.OrderCode,
		"scheduled_at": appt.ScheduledAt.In(s.settings.Timezone).Format("Mon, 02 Jan 2006 15:04"),
		"join_url":     stringOrEmpty(appt.JoinURL),
	})
	return appt, nil
}

func (s *AppointmentService) reminderJobs(scheduledAt time.Time) []*models.DeferredJob {
	now := s.now()
	local := scheduledAt.In(s.settings.Timezone)
	morningOf := time.Date(local.Year(), local.Month(), local.Day(), 9, 0, 0, 0, s.settings.Timezone)
	oneHourBefore := scheduledAt.Add(-time.Hour)

	var jobs []*models.DeferredJob
	if morningOf.After(now) {
		jobs = append(jobs, &models.DeferredJob{
			Kind:    models.JobReminder,
			Payload: models.ReminderMorningOf,
			RunAt:   morningOf,
		})
	}
	if oneHourBefore.After(now) {
		jobs = append(jobs, &models.DeferredJob{
			Kind:    models.JobReminder,
			Payload: models.ReminderOneHourBefore,
			RunAt:   oneHourBefore,
		})
	}
	return jobs
}

func (s *AppointmentService) attachMeeting(ctx context.Context, appt *models.Appointment) {
	if s.meetings == nil {
		return
	}
	meeting, err := s.meetings.CreateMeeting(appt.Subject.Name, appt.ScheduledAt, appt.DurationMinutes)
	if err != nil {
		log.Printf("🔥 Failed to create meeting for appointment %s: %v", appt.OrderCode, err)
		return
	}
	if err := s.store.UpdateFields(ctx, appt.ID, map[string]interface{}{
		"meeting_id": meeting.MeetingID,
		"join_url":   meeting.JoinURL,
	}); err != nil {
		log.Printf("🔥 Failed to save meeting link for appointment %s: %v", appt.OrderCode, err)
		return
	}
	appt.MeetingID = &meeting.MeetingID
	appt.JoinURL = &meeting.JoinURL
}

// SubmitReceipt records the student's bank-transfer receipt for admin review.
func (s *AppointmentService) SubmitReceipt(ctx context.Context, id, studentID uuid.UUID, receiptURL string) (*models.Appointment, error) {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.StudentID != studentID {
		return nil, apperrors.ErrForbidden
	}
	if appt.Status != models.AppointmentPendingPayment || appt.PaymentMethod != models.PaymentMethodBankTransfer {
		return nil, apperrors.ErrInvalidTransition
	}

	if err := s.store.UpdateFields(ctx, id, map[string]interface{}{"receipt_url": receiptURL}); err != nil {
		return nil, err
	}
	appt.ReceiptURL = &receiptURL
	return appt, nil
}

// Cancel handles owner cancellation and admin rejection. PENDING_PAYMENT
// cancels freely; CONFIRMED only before the cancellation cutoff. Losing the
// race against a concurrent transition (say, an expiry job) is reported as an
// invalid transition, not a crash.
func (s *AppointmentService) Cancel(ctx context.Context, id, actorID uuid.UUID, actorRole string, reason *string) (*models.Appointment, error) {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	isOwner := appt.StudentID == actorID || appt.TeacherID == actorID
	if !isOwner && actorRole != "admin" {
		return nil, apperrors.ErrForbidden
	}

	switch appt.Status {
	case models.AppointmentPendingPayment:
		// cancellable at any time
	case models.AppointmentConfirmed:
		cutoff := appt.ScheduledAt.Add(-time.Duration(s.settings.CancellationDeadlineHours) * time.Hour)
		if !s.now().Before(cutoff) {
			return nil, apperrors.ErrDeadlineExceeded
		}
	default:
		return nil, apperrors.ErrInvalidTransition
	}

	wasPaid := appt.PaymentStatus == models.PaymentPaid
	updates := map[string]interface{}{
		"status":              models.AppointmentCancelled,
		"cancelled_by":        actorID,
		"cancellation_reason": reason,
	}
	if !wasPaid {
		updates["payment_status"] = models.PaymentCancelled
	}

	cancelled, won, err := s.store.Transition(ctx, id, appt.Status, updates)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, apperrors.ErrInvalidTransition
	}

	s.detachMeeting(cancelled)
	if wasPaid && appt.PaymentMethod == models.PaymentMethodCreditCard {
		s.refund(ctx, cancelled)
	}
	s.notifyParties(cancelled, notifications.KindBookingCancelled, map[string]string{
		"order_code": cancelled.OrderCode,
		"reason":     stringOrEmpty(reason),
	})
	return cancelled, nil
}

func (s *AppointmentService) detachMeeting(appt *models.Appointment) {
	if s.meetings == nil || appt.MeetingID == nil {
		return
	}
	if err := s.meetings.DeleteMeeting(*appt.MeetingID); err != nil {
		log.Printf("🔥 Failed to delete meeting for appointment %s: %v", appt.OrderCode, err)
	}
}

func (s *AppointmentService) refund(ctx context.Context, appt *models.Appointment) {
	if s.gateway == nil || appt.GatewayPaymentID == nil {
		return
	}
	if err := s.gateway.Refund(*appt.GatewayPaymentID, appt.GrossAmount); err != nil {
		log.Printf("🔥 Refund for appointment %s failed, payment stays PAID: %v", appt.OrderCode, err)
		return
	}
	if err := s.store.UpdateFields(ctx, appt.ID, map[string]interface{}{"payment_status": models.PaymentRefunded}); err != nil {
		log.Printf("🔥 Failed to record refund for appointment %s: %v", appt.OrderCode, err)
		return
	}
	appt.PaymentStatus = models.PaymentRefunded
}

// MarkLessonStarted performs CONFIRMED -> IN_PROGRESS and arms the
// auto-complete job relative to the actual start.
func (s *AppointmentService) MarkLessonStarted(ctx context.Context, id, teacherID uuid.UUID) (*models.Appointment, error) {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.TeacherID != teacherID {
		return nil, apperrors.ErrForbidden
	}

	now := s.now()
	autoCompleteAt := now.
		Add(time.Duration(appt.DurationMinutes) * time.Minute).
		Add(time.Duration(s.settings.AutoCompleteDelayMinutes) * time.Minute)

	started, won, err := s.store.Transition(ctx, id, models.AppointmentConfirmed,
		map[string]interface{}{
			"status":     models.AppointmentInProgress,
			"started_at": now,
		},
		&models.DeferredJob{Kind: models.JobAutoComplete, RunAt: autoCompleteAt},
	)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, apperrors.ErrInvalidTransition
	}
	return started, nil
}

// MarkNoShow is teacher-reported and only valid once the scheduled start has
// passed.
func (s *AppointmentService) MarkNoShow(ctx context.Context, id, teacherID uuid.UUID, notes *string) (*models.Appointment, error) {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.TeacherID != teacherID {
		return nil, apperrors.ErrForbidden
	}
	if appt.Status != models.AppointmentConfirmed && appt.Status != models.AppointmentInProgress {
		return nil, apperrors.ErrInvalidTransition
	}
	if s.now().Before(appt.ScheduledAt) {
		return nil, apperrors.ErrLessonNotStarted
	}

	marked, won, err := s.store.Transition(ctx, id, appt.Status, map[string]interface{}{
		"status":        models.AppointmentNoShow,
		"no_show":       true,
		"no_show_notes": notes,
	})
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, apperrors.ErrInvalidTransition
	}
	return marked, nil
}

// SubmitFeedback completes an in-progress lesson and credits the teacher's
// earning. Feedback on an already-completed lesson updates the notes and
// settles the credit if an earlier attempt failed.
func (s *AppointmentService) SubmitFeedback(ctx context.Context, id, teacherID uuid.UUID, feedback string) (*models.Appointment, error) {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.TeacherID != teacherID {
		return nil, apperrors.ErrForbidden
	}

	switch appt.Status {
	case models.AppointmentInProgress:
		return s.complete(ctx, appt, &feedback)
	case models.AppointmentCompleted:
		if err := s.store.UpdateFields(ctx, id, map[string]interface{}{"teacher_feedback": feedback}); err != nil {
			return nil, err
		}
		appt.TeacherFeedback = &feedback
		if err := s.creditEarning(ctx, appt); err != nil {
			return nil, err
		}
		return appt, nil
	default:
		return nil, apperrors.ErrInvalidTransition
	}
}

func (s *AppointmentService) complete(ctx context.Context, appt *models.Appointment, feedback *string) (*models.Appointment, error) {
	updates := map[string]interface{}{
		"status":       models.AppointmentCompleted,
		"completed_at": s.now(),
	}
	if feedback != nil {
		updates["teacher_feedback"] = *feedback
	}

	completed, won, err := s.store.Transition(ctx, appt.ID, models.AppointmentInProgress, updates)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, apperrors.ErrInvalidTransition
	}

	if err := s.creditEarning(ctx, completed); err != nil {
		// The transition stands; the returned error keeps the deferred job
		// pending so the next pass retries the credit against COMPLETED.
		return completed, err
	}
	return completed, nil
}

// creditEarning settles the teacher's earning for a completed lesson. The
// per-appointment EARNING constraint makes it safe to call on every retry;
// a duplicate means the credit already landed.
func (s *AppointmentService) creditEarning(ctx context.Context, appt *models.Appointment) error {
	_, err := s.settlement.CreditEarning(ctx, appt.TeacherID, appt.ID, appt.TeacherEarning)
	if err != nil && err != apperrors.ErrDuplicateEarning {
		log.Printf("🔥 Failed to credit earning for appointment %s: %v", appt.OrderCode, err)
		return err
	}
	return nil
}

// ExpireBankTransfer is the deferred-job path releasing unpaid bank-transfer
// slots. Any state other than an unpaid, past-deadline PENDING_PAYMENT makes
// it a no-op, which is how a stale job "cancels" itself.
func (s *AppointmentService) ExpireBankTransfer(ctx context.Context, id uuid.UUID) error {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		if err == apperrors.ErrNotFound {
			return nil
		}
		return err
	}

	if appt.Status != models.AppointmentPendingPayment ||
		appt.PaymentStatus != models.PaymentPending ||
		appt.PaymentMethod != models.PaymentMethodBankTransfer {
		return nil
	}
	if appt.PaymentDeadline == nil || s.now().Before(*appt.PaymentDeadline) {
		return nil
	}

	expired, won, err := s.store.Transition(ctx, id, models.AppointmentPendingPayment, map[string]interface{}{
		"status":         models.AppointmentExpired,
		"payment_status": models.PaymentCancelled,
	})
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	log.Printf("Appointment %s expired: bank transfer not received by deadline", expired.OrderCode)
	s.notifyParties(expired, notifications.KindBookingExpired, map[string]string{
		"order_code": expired.OrderCode,
	})
	return nil
}

// AutoComplete is the deferred-job path closing lessons nobody closed by
// hand. An IN_PROGRESS lesson is completed and credited; a COMPLETED one
// only re-attempts the credit; anything else is a no-op.
func (s *AppointmentService) AutoComplete(ctx context.Context, id uuid.UUID) error {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		if err == apperrors.ErrNotFound {
			return nil
		}
		return err
	}
	switch appt.Status {
	case models.AppointmentInProgress:
		_, err = s.complete(ctx, appt, nil)
		if err == apperrors.ErrInvalidTransition {
			return nil
		}
		return err
	case models.AppointmentCompleted:
		// A previous run won the transition but its credit failed; settle it
		// now instead of dropping the earning.
		return s.creditEarning(ctx, appt)
	default:
		return nil
	}
}

// SendReminder no-ops unless the appointment is still CONFIRMED, so
// reminders for cancelled or started lessons silently die.
func (s *AppointmentService) SendReminder(ctx context.Context, id uuid.UUID, variant string) error {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		if err == apperrors.ErrNotFound {
			return nil
		}
		return err
	}
	if appt.Status != models.AppointmentConfirmed {
		return nil
	}

	log.Printf("Sending %s reminder for appointment %s", variant, appt.OrderCode)
	s.notifyParties(appt, notifications.KindLessonReminder, map[string]string{
		"order_code":   appt.OrderCode,
		"scheduled_at": appt.ScheduledAt.In(s.settings.Timezone).Format("Mon, 02 Jan 2006 15:04"),
		"join_url":     stringOrEmpty(appt.JoinURL),
		"variant":      variant,
	})
	return nil
}

func (s *AppointmentService) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]models.Appointment, error) {
	return s.store.ListByStudent(ctx, studentID)
}

func (s *AppointmentService) ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.Appointment, error) {
	return s.store.ListByTeacher(ctx, teacherID)
}

func (s *AppointmentService) notifyParties(appt *models.Appointment, kind string, payload map[string]string) {
	recipients := []notifications.Recipient{}
	if appt.Student.Email != "" {
		recipients = append(recipients, notifications.Recipient{
			Name:  appt.Student.FullName,
			Email: appt.Student.Email,
		})
	}
	if appt.Teacher.User.Email != "" {
		recipients = append(recipients, notifications.Recipient{
			Name:  appt.Teacher.User.FullName,
			Email: appt.Teacher.User.Email,
		})
	}
	if len(recipients) == 0 {
		return
	}
	notifications.Dispatch(s.notifier, kind, recipients, payload)
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
