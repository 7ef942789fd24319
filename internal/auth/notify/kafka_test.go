package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/opswell/gatekeep/internal/auth/domain"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaSink_Send(t *testing.T) {
	fw := &fakeWriter{}
	sink := NewKafkaSink(fw)

	userID := "01JF3V7A9QK2M8R4T6W0X1Y2Z3"
	alert := AlertFromEvent(domain.SecurityEvent{
		ID:        "01JF3V7B0000000000000000AA",
		Kind:      domain.EventTokenReuse,
		UserID:    &userID,
		Email:     "ops@example.com",
		IP:        "203.0.113.7",
		Detail:    "revoked token presented",
		RiskLevel: domain.RiskHigh,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})

	require.NoError(t, sink.Send(context.Background(), alert))
	require.Len(t, fw.msgs, 1)
	require.Equal(t, []byte("203.0.113.7"), fw.msgs[0].Key)

	var got Alert
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &got))
	require.Equal(t, domain.EventTokenReuse, got.Kind)
	require.Equal(t, domain.RiskHigh, got.RiskLevel)
	require.Equal(t, userID, got.UserID)
}

func TestKafkaSink_WriteFailure(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker unavailable")}
	sink := NewKafkaSink(fw)

	err := sink.Send(context.Background(), Alert{Kind: domain.EventBruteForce})
	require.Error(t, err)
}
