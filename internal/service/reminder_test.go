package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"projo/internal/cache"
	"projo/internal/models/task"
	"projo/internal/repository/task/inmemory"
	"projo/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNotifier считает отправки и умеет падать по адресату
type fakeNotifier struct {
	mtx     sync.Mutex
	sent    []sentMail
	failFor map[string]error
}

type sentMail struct {
	Recipient string
	Subject   string
	Body      string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{failFor: make(map[string]error)}
}

func (f *fakeNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	if err, ok := f.failFor[recipient]; ok {
		return err
	}
	f.sent = append(f.sent, sentMail{Recipient: recipient, Subject: subject, Body: body})
	return nil
}

func (f *fakeNotifier) sentTo(recipient string) []sentMail {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	mails := []sentMail{}
	for _, m := range f.sent {
		if m.Recipient == recipient {
			mails = append(mails, m)
		}
	}
	return mails
}

var _ service.Notifier = (*fakeNotifier)(nil)

func seedTask(t *testing.T, storage *inmemory.TaskStorage, opts ...task.TaskOption) *task.Task {
	t.Helper()
	ownerID := uuid.New()
	email := ownerID.String() + "@projo.local"
	created := task.New("Отчёт за квартал", "свести цифры", uuid.New(), ownerID, email, opts...)
	require.NoError(t, storage.Create(context.Background(), created))
	return created
}

// TestRunCustomReminderSweep_SendsOnce: повторный свип не шлёт второе письмо
func TestRunCustomReminderSweep_SendsOnce(t *testing.T) {
	storage := inmemory.NewTaskStorage()
	notifier := newFakeNotifier()
	svc := service.NewReminderService(storage, notifier, cache.Noop{}, 100)

	created := seedTask(t, storage, task.WithReminderTime(time.Now().Add(-time.Minute)))

	stats, err := svc.RunCustomReminderSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Checked)
	assert.Equal(t, 1, stats.Sent)

	// второй проход: флаг выставлен, задача не выбирается
	stats, err = svc.RunCustomReminderSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Checked)
	assert.Equal(t, 0, stats.Sent)

	mails := notifier.sentTo(created.OwnerEmail)
	require.Len(t, mails, 1)
	assert.Equal(t, "Task Reminder: "+created.Title, mails[0].Subject)
	assert.Contains(t, mails[0].Body, "Best regards,\nProjo Team")
}

// TestRunCustomReminderSweep_SelectionPredicate: свип выбирает только
// задачи с наступившим напоминанием, включёнными уведомлениями и без флага
func TestRunCustomReminderSweep_SelectionPredicate(t *testing.T) {
	storage := inmemory.NewTaskStorage()
	notifier := newFakeNotifier()
	svc := service.NewReminderService(storage, notifier, cache.Noop{}, 100)

	due := seedTask(t, storage, task.WithReminderTime(time.Now().Add(-time.Minute)))

	// напоминание в будущем
	seedTask(t, storage, task.WithReminderTime(time.Now().Add(time.Hour)))

	// напоминания выключены
	disabled := seedTask(t, storage, task.WithReminderTime(time.Now().Add(-time.Minute)))
	require.NoError(t, svc.DisableReminders(context.Background(), disabled.OwnerID, disabled.UUID))

	// без reminder_time вообще
	seedTask(t, storage)

	stats, err := svc.RunCustomReminderSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Checked)
	assert.Equal(t, 1, stats.Sent)
	assert.Len(t, notifier.sentTo(due.OwnerEmail), 1)
}

// TestRunCustomReminderSweep_FailureKeepsFlag: при сбое отправки флаг
// не выставляется и задача переизбирается следующим свипом
func TestRunCustomReminderSweep_FailureKeepsFlag(t *testing.T) {
	storage := inmemory.NewTaskStorage()
	notifier := newFakeNotifier()
	svc := service.NewReminderService(storage, notifier, cache.Noop{}, 100)

	created := seedTask(t, storage, task.WithReminderTime(time.Now().Add(-time.Minute)))
	notifier.failFor[created.OwnerEmail] = errors.New("smtp недоступен")

	stats, err := svc.RunCustomReminderSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Sent)

	// SMTP ожил, повторный свип досылает
	delete(notifier.failFor, created.OwnerEmail)
	stats, err = svc.RunCustomReminderSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
	assert.Len(t, notifier.sentTo(created.OwnerEmail), 1)
}

// TestRunCustomReminderSweep_FailureIsolation: сбой одной задачи
// не мешает остальным в том же проходе
func TestRunCustomReminderSweep_FailureIsolation(t *testing.T) {
	storage := inmemory.NewTaskStorage()
	notifier := newFakeNotifier()
	svc := service.NewReminderService(storage, notifier, cache.Noop{}, 100)

	broken := seedTask(t, storage, task.WithReminderTime(time.Now().Add(-time.Minute)))
	healthy := seedTask(t, storage, task.WithReminderTime(time.Now().Add(-time.Minute)))
	notifier.failFor[broken.OwnerEmail] = errors.New("ящик переполнен")

	stats, err := svc.RunCustomReminderSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Checked)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Failed)
	assert.Len(t, notifier.sentTo(healthy.OwnerEmail), 1)
}

// TestRunDeadlineReminderSweep тестирует классификацию TODAY/TOMORROW
func TestRunDeadlineReminderSweep(t *testing.T) {
	storage := inmemory.NewTaskStorage()
	notifier := newFakeNotifier()
	svc := service.NewReminderService(storage, notifier, cache.Noop{}, 100)

	today := seedTask(t, storage, task.WithDueDate(time.Now()))
	tomorrow := seedTask(t, storage, task.WithDueDate(time.Now().AddDate(0, 0, 1)))

	// дедлайн послезавтра в выборку не попадает
	seedTask(t, storage, task.WithDueDate(time.Now().AddDate(0, 0, 2)))

	stats, err := svc.RunDeadlineReminderSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Checked)
	assert.Equal(t, 2, stats.Sent)

	todayMails := notifier.sentTo(today.OwnerEmail)
	require.Len(t, todayMails, 1)
	assert.Equal(t, "Task Due TODAY: "+today.Title, todayMails[0].Subject)

	tomorrowMails := notifier.sentTo(tomorrow.OwnerEmail)
	require.Len(t, tomorrowMails, 1)
	assert.Equal(t, "Task Due TOMORROW: "+tomorrow.Title, tomorrowMails[0].Subject)

	// флаг дедлайна one-shot: второй проход пустой
	stats, err = svc.RunDeadlineReminderSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Checked)
}

// TestRunOverdueSweep тестирует переход в overdue и его необратимость
func TestRunOverdueSweep(t *testing.T) {
	storage := inmemory.NewTaskStorage()
	notifier := newFakeNotifier()
	svc := service.NewReminderService(storage, notifier, cache.Noop{}, 100)

	yesterday := time.Now().AddDate(0, 0, -1)

	late := seedTask(t, storage, task.WithDueDate(yesterday))
	completed := seedTask(t, storage, task.WithDueDate(yesterday), task.WithStatus(task.StatusCompleted))

	// дедлайн сегодня ещё не просрочка
	seedTask(t, storage, task.WithDueDate(time.Now()))

	stats, err := svc.RunOverdueSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Checked)
	assert.Equal(t, 1, stats.Sent)

	got, err := storage.GetByID(context.Background(), late.UUID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusOverdue, got.Status)

	untouched, err := storage.GetByID(context.Background(), completed.UUID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, untouched.Status)

	mails := notifier.sentTo(late.OwnerEmail)
	require.Len(t, mails, 1)
	assert.Equal(t, "OVERDUE Task: "+late.Title, mails[0].Subject)

	// повторный проход: задача уже overdue, писем больше нет
	stats, err = svc.RunOverdueSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Checked)
	assert.Len(t, notifier.sentTo(late.OwnerEmail), 1)
}

// TestRunOverdueSweep_NotifyFailureKeepsStatus: статус авторитетен,
// сбой письма его не откатывает
func TestRunOverdueSweep_NotifyFailureKeepsStatus(t *testing.T) {
	storage := inmemory.NewTaskStorage()
	notifier := newFakeNotifier()
	svc := service.NewReminderService(storage, notifier, cache.Noop{}, 100)

	late := seedTask(t, storage, task.WithDueDate(time.Now().AddDate(0, 0, -1)))
	notifier.failFor[late.OwnerEmail] = errors.New("smtp недоступен")

	stats, err := svc.RunOverdueSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)

	got, err := storage.GetByID(context.Background(), late.UUID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusOverdue, got.Status)
}

// TestSetCustomReminder тестирует установку напоминания и сброс sent-флага
func TestSetCustomReminder(t *testing.T) {
	storage := inmemory.NewTaskStorage()
	notifier := newFakeNotifier()
	svc := service.NewReminderService(storage, notifier, cache.Noop{}, 100)

	created := seedTask(t, storage, task.WithReminderTime(time.Now().Add(-time.Minute)))

	// первый цикл: напоминание отправлено, флаг выставлен
	_, err := svc.RunCustomReminderSweep(context.Background())
	require.NoError(t, err)
	require.Len(t, notifier.sentTo(created.OwnerEmail), 1)

	// пользователь ставит новое напоминание: флаг сбрасывается
	err = svc.SetCustomReminder(context.Background(), created.OwnerID, created.UUID, time.Now().Add(-time.Second))
	require.NoError(t, err)

	_, err = svc.RunCustomReminderSweep(context.Background())
	require.NoError(t, err)
	assert.Len(t, notifier.sentTo(created.OwnerEmail), 2)
}

// TestSetCustomReminder_Validation: нулевое время отклоняется
func TestSetCustomReminder_Validation(t *testing.T) {
	storage := inmemory.NewTaskStorage()
	svc := service.NewReminderService(storage, newFakeNotifier(), cache.Noop{}, 100)

	err := svc.SetCustomReminder(context.Background(), uuid.New(), uuid.New(), time.Time{})

	var busErr *service.BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, service.CodeValidation, busErr.Code)
}

// TestSetCustomReminder_ForeignOwner: чужая задача неотличима от несуществующей
func TestSetCustomReminder_ForeignOwner(t *testing.T) {
	storage := inmemory.NewTaskStorage()
	svc := service.NewReminderService(storage, newFakeNotifier(), cache.Noop{}, 100)

	created := seedTask(t, storage)
	err := svc.SetCustomReminder(context.Background(), uuid.New(), created.UUID, time.Now().Add(time.Hour))

	var busErr *service.BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, service.CodeNotFound, busErr.Code)
}

// TestDisableReminders: выключение убирает задачу из обоих свипов
func TestDisableReminders(t *testing.T) {
	storage := inmemory.NewTaskStorage()
	notifier := newFakeNotifier()
	svc := service.NewReminderService(storage, notifier, cache.Noop{}, 100)

	created := seedTask(t, storage,
		task.WithReminderTime(time.Now().Add(-time.Minute)),
		task.WithDueDate(time.Now()))

	require.NoError(t, svc.DisableReminders(context.Background(), created.OwnerID, created.UUID))

	_, err := svc.RunCustomReminderSweep(context.Background())
	require.NoError(t, err)
	_, err = svc.RunDeadlineReminderSweep(context.Background())
	require.NoError(t, err)

	assert.Empty(t, notifier.sentTo(created.OwnerEmail))
}

// TestSweep_BatchLimit: за один проход обрабатывается не больше batch_size
func TestSweep_BatchLimit(t *testing.T) {
	storage := inmemory.NewTaskStorage()
	notifier := newFakeNotifier()
	svc := service.NewReminderService(storage, notifier, cache.Noop{}, 2)

	for i := 0; i < 5; i++ {
		seedTask(t, storage, task.WithReminderTime(time.Now().Add(-time.Minute)))
	}

	stats, err := svc.RunCustomReminderSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Checked)

	// хвост добирают следующие проходы
	total := stats.Sent
	for i := 0; i < 4 && total < 5; i++ {
		stats, err = svc.RunCustomReminderSweep(context.Background())
		require.NoError(t, err)
		total += stats.Sent
	}
	assert.Equal(t, 5, total)
}
