package report

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/warp/payments-engine/ledger"
)

func sampleAccounts() []ledger.Account {
	return []ledger.Account{
		{
			Client:    1,
			Available: decimal.RequireFromString("50"),
			Held:      decimal.Zero,
			Total:     decimal.RequireFromString("50"),
		},
		{
			Client:    2,
			Available: decimal.RequireFromString("0.1"),
			Held:      decimal.RequireFromString("2"),
			Total:     decimal.RequireFromString("2.1"),
			Locked:    true,
		},
	}
}

func TestCSVEmitter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EmitAll(context.Background(), NewCSV(&buf), sampleAccounts()))

	assert.Equal(t,
		"client,available,held,total,locked\n"+
			"1,50.0000,0.0000,50.0000,false\n"+
			"2,0.1000,2.0000,2.1000,true\n",
		buf.String())
}

func TestJSONLEmitter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EmitAll(context.Background(), NewJSONL(&buf), sampleAccounts()))

	assert.Equal(t,
		`{"client":1,"available":"50.0000","held":"0.0000","total":"50.0000","locked":false}`+"\n"+
			`{"client":2,"available":"0.1000","held":"2.0000","total":"2.1000","locked":true}`+"\n",
		buf.String())
}

func TestNew_Formats(t *testing.T) {
	var buf bytes.Buffer

	e, err := New(Options{Format: "csv"}, &buf)
	require.NoError(t, err)
	assert.IsType(t, &CSVEmitter{}, e)

	e, err = New(Options{Format: "jsonl"}, &buf)
	require.NoError(t, err)
	assert.IsType(t, &JSONLEmitter{}, e)

	_, err = New(Options{Format: "kafka"}, &buf)
	assert.ErrorContains(t, err, "broker")

	_, err = New(Options{Format: "xml"}, &buf)
	assert.ErrorContains(t, err, "unknown output format")
}

// =============================================================================
// KAFKA
// =============================================================================

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.Called(ctx, msgs).Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func TestKafkaEmitter_BatchesOnFlush(t *testing.T) {
	// GIVEN: Two accounts emitted
	// WHEN: Flushing
	// THEN: One batch with both messages, keyed by client id
	w := new(mockWriter)
	var sent []kafka.Message
	w.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).([]kafka.Message) }).
		Return(nil).Once()
	w.On("Close").Return(nil)

	e := newKafkaEmitter(w)
	ctx := context.Background()
	for _, acc := range sampleAccounts() {
		require.NoError(t, e.Emit(ctx, acc))
	}
	w.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)

	require.NoError(t, e.Flush(ctx))
	require.NoError(t, e.Flush(ctx))
	require.NoError(t, e.Close())

	require.Len(t, sent, 2)
	assert.Equal(t, "1", string(sent[0].Key))
	assert.JSONEq(t, `{"client":1,"available":"50.0000","held":"0.0000","total":"50.0000","locked":false}`, string(sent[0].Value))
	assert.Equal(t, "2", string(sent[1].Key))
	w.AssertExpectations(t)
}

func TestKafkaEmitter_WriteFailure(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("leader not available"))

	e := newKafkaEmitter(w)
	require.NoError(t, e.Emit(context.Background(), sampleAccounts()[0]))

	err := e.Flush(context.Background())
	assert.ErrorContains(t, err, "publish 1 accounts")
}

func TestNewKafka_RequiresTopic(t *testing.T) {
	_, err := NewKafka([]string{"localhost:9092"}, "")
	assert.Error(t, err)
}
