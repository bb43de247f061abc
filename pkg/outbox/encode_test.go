package outbox

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilffren/libronova/pkg/enums"
)

func TestEncodeDefaultsVersionAndTime(t *testing.T) {
	fixed := time.Date(2026, 3, 30, 9, 0, 0, 0, time.FixedZone("UTC-5", -5*3600))
	loanID := uuid.New()

	row, eventID, err := encode(DomainEvent{
		EventType:     enums.EventLoanReturned,
		AggregateType: enums.AggregateLoan,
		AggregateID:   loanID,
		Data:          map[string]string{"loan_id": loanID.String()},
	}, func() time.Time { return fixed })
	require.NoError(t, err)
	assert.Equal(t, loanID, row.AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	assert.Equal(t, eventID, envelope.EventID)
	assert.Equal(t, 1, envelope.Version)
	assert.True(t, envelope.OccurredAt.Equal(fixed))
	assert.Equal(t, time.UTC, envelope.OccurredAt.Location())
	assert.JSONEq(t, `{"loan_id":"`+loanID.String()+`"}`, string(envelope.Data))
}

func TestEncodeRejectsBadEvents(t *testing.T) {
	now := time.Now
	_, _, err := encode(DomainEvent{EventType: enums.EventLoanCreated, AggregateType: enums.AggregateLoan}, now)
	assert.True(t, errors.Is(err, errNoAggregate))

	_, _, err = encode(DomainEvent{EventType: "order_created", AggregateType: enums.AggregateLoan, AggregateID: uuid.New()}, now)
	assert.True(t, errors.Is(err, errUnknownEventKind))

	_, _, err = encode(DomainEvent{
		EventType:     enums.EventLoanCreated,
		AggregateType: enums.AggregateLoan,
		AggregateID:   uuid.New(),
		Data:          make(chan int),
	}, now)
	assert.Error(t, err)
}
