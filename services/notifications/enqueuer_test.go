package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stock_alert_backend/models"
)

type fakeTaskStore struct {
	tasks []models.NotificationTask
	err   error
}

func (f *fakeTaskStore) CreateTask(ctx context.Context, task *models.NotificationTask) error {
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, *task)
	return nil
}

type fakePreferenceStore struct {
	prefs *models.UserPreference
	err   error
}

func (f *fakePreferenceStore) PreferencesForUser(ctx context.Context, userID uint) (*models.UserPreference, error) {
	return f.prefs, f.err
}

var enqueueNow = time.Date(2025, 6, 16, 11, 30, 0, 0, time.UTC)

func testEnqueuer(tasks *fakeTaskStore, prefs *fakePreferenceStore) *Enqueuer {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	e := NewEnqueuer(tasks, prefs, log)
	e.now = func() time.Time { return enqueueNow }
	return e
}

func channelsOf(tasks []models.NotificationTask) map[string]bool {
	channels := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		channels[task.Channel] = true
	}
	return channels
}

func TestEnqueueForAlert_FansOutPerPreferences(t *testing.T) {
	tests := []struct {
		name         string
		prefs        *models.UserPreference
		wantChannels []string
	}{
		{"all channels enabled", &models.UserPreference{EmailEnabled: true, SMSEnabled: true},
			[]string{models.ChannelInApp, models.ChannelEmail, models.ChannelSMS}},
		{"email only", &models.UserPreference{EmailEnabled: true},
			[]string{models.ChannelInApp, models.ChannelEmail}},
		{"everything disabled still gets in-app", &models.UserPreference{},
			[]string{models.ChannelInApp}},
		{"no preference row defaults to in-app", nil,
			[]string{models.ChannelInApp}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := &fakeTaskStore{}
			e := testEnqueuer(tasks, &fakePreferenceStore{prefs: tt.prefs})

			alert := &models.Alert{ID: 5, UserID: 2}
			if err := e.EnqueueForAlert(context.Background(), alert, "RSI above 70"); err != nil {
				t.Fatalf("EnqueueForAlert returned error: %v", err)
			}

			if len(tasks.tasks) != len(tt.wantChannels) {
				t.Fatalf("created %d tasks, want %d", len(tasks.tasks), len(tt.wantChannels))
			}
			got := channelsOf(tasks.tasks)
			for _, channel := range tt.wantChannels {
				if !got[channel] {
					t.Errorf("missing %s task", channel)
				}
			}
		})
	}
}

func TestEnqueueForAlert_TaskFields(t *testing.T) {
	tasks := &fakeTaskStore{}
	e := testEnqueuer(tasks, &fakePreferenceStore{})

	alert := &models.Alert{ID: 9, UserID: 4}
	if err := e.EnqueueForAlert(context.Background(), alert, "Volume spike on TCS"); err != nil {
		t.Fatalf("EnqueueForAlert returned error: %v", err)
	}

	if len(tasks.tasks) != 1 {
		t.Fatalf("created %d tasks, want 1", len(tasks.tasks))
	}
	task := tasks.tasks[0]
	if task.UserID != 4 || task.AlertID != 9 {
		t.Errorf("task identity wrong: %+v", task)
	}
	if task.Content != "Volume spike on TCS" {
		t.Errorf("Content = %q", task.Content)
	}
	if task.Status != models.NotificationPending {
		t.Errorf("Status = %q, want pending", task.Status)
	}
	if task.Attempts != 0 || task.MaxAttempts != models.DefaultMaxAttempts {
		t.Errorf("retry bookkeeping wrong: attempts=%d max=%d", task.Attempts, task.MaxAttempts)
	}
	if !task.ScheduledAt.Equal(enqueueNow) {
		t.Errorf("ScheduledAt = %v, want %v", task.ScheduledAt, enqueueNow)
	}
}

func TestEnqueueForAlert_MissingPreferenceRowIsTolerated(t *testing.T) {
	tasks := &fakeTaskStore{}
	e := testEnqueuer(tasks, &fakePreferenceStore{err: gorm.ErrRecordNotFound})

	if err := e.EnqueueForAlert(context.Background(), &models.Alert{ID: 1, UserID: 1}, "msg"); err != nil {
		t.Fatalf("record-not-found must not fail the fan-out, got %v", err)
	}
	if len(tasks.tasks) != 1 || tasks.tasks[0].Channel != models.ChannelInApp {
		t.Errorf("want a single in-app task, got %+v", tasks.tasks)
	}
}

func TestEnqueueForAlert_StoreErrorsPropagate(t *testing.T) {
	prefErr := errors.New("connection refused")
	e := testEnqueuer(&fakeTaskStore{}, &fakePreferenceStore{err: prefErr})
	if err := e.EnqueueForAlert(context.Background(), &models.Alert{}, "msg"); !errors.Is(err, prefErr) {
		t.Errorf("preference store error must propagate, got %v", err)
	}

	taskErr := errors.New("insert failed")
	e = testEnqueuer(&fakeTaskStore{err: taskErr}, &fakePreferenceStore{})
	if err := e.EnqueueForAlert(context.Background(), &models.Alert{}, "msg"); !errors.Is(err, taskErr) {
		t.Errorf("task store error must propagate, got %v", err)
	}
}
