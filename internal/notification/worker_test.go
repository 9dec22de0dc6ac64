package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"dob-backend/internal/model"
)

// mockSender is a mock implementation of the Sender interface.
type mockSender struct {
	mu    sync.Mutex
	sends []sentPush
	code  int
}

type sentPush struct {
	endpoint string
	payload  []byte
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	m.mu.Lock()
	m.sends = append(m.sends, sentPush{endpoint: sub.Endpoint, payload: payload})
	m.mu.Unlock()

	code := m.code
	if code == 0 {
		code = http.StatusCreated
	}
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(bytes.NewBufferString("")),
	}, nil
}

func (m *mockSender) sent() []sentPush {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentPush, len(m.sends))
	copy(out, m.sends)
	return out
}

func newTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Entry{}, &model.DeviceSubscription{}))
	return db
}

func testEntry(cpoID string) model.Entry {
	return model.Entry{
		ID:          uuid.NewString(),
		CPOID:       cpoID,
		EntryType:   model.EntryTypeAuto,
		EventType:   model.EventAssignmentStart,
		Description: "Assignment A-100 accepted",
		IsImmutable: true,
	}
}

func TestWorkerPool_PushesToOwnersDevicesOnly(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&model.DeviceSubscription{
		Endpoint: "https://push.example.com/own", CPOID: "cpo-1", P256DH: "k", Auth: "a",
	}).Error)
	require.NoError(t, db.Create(&model.DeviceSubscription{
		Endpoint: "https://push.example.com/other", CPOID: "cpo-2", P256DH: "k", Auth: "a",
	}).Error)

	wp := NewWorkerPool(1, db, &webpush.Options{})
	sender := &mockSender{}
	wp.sender = sender

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	wp.Publish(testEntry("cpo-1"))

	require.Eventually(t, func() bool {
		return len(sender.sent()) == 1
	}, time.Second, 10*time.Millisecond)

	sends := sender.sent()
	assert.Equal(t, "https://push.example.com/own", sends[0].endpoint)

	var payload pushPayload
	require.NoError(t, json.Unmarshal(sends[0].payload, &payload))
	assert.Equal(t, model.EventAssignmentStart, payload.EventType)
	assert.Equal(t, "Assignment A-100 accepted", payload.Description)
}

func TestWorkerPool_DeletesExpiredSubscription(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&model.DeviceSubscription{
		Endpoint: "https://push.example.com/expired", CPOID: "cpo-1", P256DH: "k", Auth: "a",
	}).Error)

	wp := NewWorkerPool(1, db, &webpush.Options{})
	sender := &mockSender{code: http.StatusGone}
	wp.sender = sender

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	wp.Publish(testEntry("cpo-1"))

	require.Eventually(t, func() bool {
		var count int64
		db.Model(&model.DeviceSubscription{}).Count(&count)
		return count == 0
	}, time.Second, 10*time.Millisecond)
}

func TestWorkerPool_NoSubscriptionsIsQuiet(t *testing.T) {
	db := newTestDB(t)

	wp := NewWorkerPool(1, db, &webpush.Options{})
	sender := &mockSender{}
	wp.sender = sender

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	wp.Publish(testEntry("cpo-1"))
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, sender.sent())
}
