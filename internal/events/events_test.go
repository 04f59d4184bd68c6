package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	got []Event
	err error
}

func (r *recorder) Publish(_ context.Context, e Event) error {
	r.got = append(r.got, e)
	return r.err
}

func TestNew(t *testing.T) {
	e := New(EntityTransaction, ActionCreated, "tx-1", "u-1", []string{"u-1", "u-2"})

	assert.Equal(t, "transaction.created", e.Type)
	assert.Equal(t, "tx-1", e.ID)
	assert.Equal(t, []string{"u-1", "u-2"}, e.Audience)
	assert.False(t, e.At.IsZero())
}

func TestFanout_DeliversToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("broker down")
	a := &recorder{}
	b := &recorder{err: boom}
	c := &recorder{}

	err := Fanout{a, b, c}.Publish(context.Background(), New(EntityFamily, ActionJoined, "f-1", "u-1", nil))

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
	assert.Len(t, c.got, 1, "a failing publisher must not stop the rest")
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard{}.Publish(context.Background(), Event{}))
	assert.NoError(t, Fanout(nil).Publish(context.Background(), Event{}))
}
