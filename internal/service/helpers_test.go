package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-essay-api/internal/events"
	"github.com/noah-isme/gema-essay-api/internal/models"
	"github.com/noah-isme/gema-essay-api/pkg/ai"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// evaluatorStub answers per essay text; texts listed in failures return an error.
type evaluatorStub struct {
	mu       sync.Mutex
	result   ai.Result
	failures map[string]error
	calls    []string
}

func (e *evaluatorStub) Evaluate(_ context.Context, text string) (ai.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, text)
	if err, ok := e.failures[text]; ok {
		return ai.Result{}, err
	}
	return e.result, nil
}

type publisherStub struct {
	mu     sync.Mutex
	err    error
	events []events.FailureEvent
}

func (p *publisherStub) Publish(_ context.Context, _ string, event events.FailureEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func seedFailed(t *testing.T, db *gorm.DB, studentID uint, text string, retry int) models.Submission {
	t.Helper()
	require.NoError(t, db.Create(&models.Student{ID: studentID, StudentName: "Student"}).Error)
	submission := models.Submission{
		StudentID:     studentID,
		ComponentType: models.ComponentEssay,
		SubmitText:    text,
		Status:        models.SubmissionStatusFailed,
		RetryCount:    retry,
		TraceID:       fmt.Sprintf("trace-%d", studentID),
	}
	require.NoError(t, db.Omit("Student").Create(&submission).Error)
	return submission
}

func reload(t *testing.T, db *gorm.DB, id uint) models.Submission {
	t.Helper()
	var submission models.Submission
	require.NoError(t, db.First(&submission, id).Error)
	return submission
}
