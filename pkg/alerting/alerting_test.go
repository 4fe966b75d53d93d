package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antevus/ledger/pkg/chain"
)

func TestClassify_CleanResultNoAlert(t *testing.T) {
	_, ok := Classify(&chain.VerificationResult{Valid: true}, time.Now())
	assert.False(t, ok)

	_, ok = Classify(nil, time.Now())
	assert.False(t, ok)
}

func TestClassify_ChainBreakIsCritical(t *testing.T) {
	broken := int64(7)
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	alert, ok := Classify(&chain.VerificationResult{
		Valid:                 false,
		BrokenChainAtSequence: &broken,
		Errors:                []string{"sequence gap: expected 7, found 9"},
		StartSequence:         0,
		EndSequence:           20,
	}, now)

	require.True(t, ok)
	assert.Equal(t, SeverityCritical, alert.Severity)
	assert.Equal(t, now, alert.DetectedAt)
	require.NotNil(t, alert.BrokenChainAtSequence)
	assert.Equal(t, int64(7), *alert.BrokenChainAtSequence)
}

func TestClassify_ContentTamperIsHigh(t *testing.T) {
	alert, ok := Classify(&chain.VerificationResult{
		Valid:            false,
		TamperedEventIDs: []string{"evt-1", "evt-2"},
	}, time.Now())

	require.True(t, ok)
	assert.Equal(t, SeverityHigh, alert.Severity)
	assert.Nil(t, alert.BrokenChainAtSequence)
	assert.Len(t, alert.TamperedEventIDs, 2)
}

type recordingNotifier struct {
	alerts []Alert
	err    error
}

func (r *recordingNotifier) NotifyTamper(ctx context.Context, alert Alert) error {
	r.alerts = append(r.alerts, alert)
	return r.err
}

func TestMultiNotifier_DeliversToAllDespiteFailure(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("channel down")}
	working := &recordingNotifier{}

	multi := NewMultiNotifier(failing, working)
	err := multi.NotifyTamper(context.Background(), Alert{Severity: SeverityHigh})

	assert.Error(t, err)
	assert.Len(t, failing.alerts, 1)
	assert.Len(t, working.alerts, 1, "later channels still receive the alert")
}

func TestLogNotifier_NeverFails(t *testing.T) {
	broken := int64(3)
	err := NewLogNotifier(nil).NotifyTamper(context.Background(), Alert{
		Severity:              SeverityCritical,
		BrokenChainAtSequence: &broken,
	})
	assert.NoError(t, err)
}

type fakePublisher struct {
	channel string
	payload string
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	if b, ok := message.([]byte); ok {
		f.payload = string(b)
	}
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	}
	return cmd
}

func TestRedisPublisher_PublishesJSONAlert(t *testing.T) {
	fake := &fakePublisher{}
	pub := &RedisPublisher{client: fake, channel: "ledger:alerts"}

	alert := Alert{Severity: SeverityHigh, TamperedEventIDs: []string{"evt-9"}}
	require.NoError(t, pub.NotifyTamper(context.Background(), alert))

	assert.Equal(t, "ledger:alerts", fake.channel)

	var decoded Alert
	require.NoError(t, json.Unmarshal([]byte(fake.payload), &decoded))
	assert.Equal(t, alert.Severity, decoded.Severity)
	assert.Equal(t, alert.TamperedEventIDs, decoded.TamperedEventIDs)
}

func TestRedisPublisher_PropagatesPublishError(t *testing.T) {
	fake := &fakePublisher{err: errors.New("connection refused")}
	pub := &RedisPublisher{client: fake, channel: "ledger:alerts"}

	err := pub.NotifyTamper(context.Background(), Alert{Severity: SeverityCritical})
	assert.Error(t, err)
}
