package ws2812

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu           sync.Mutex
	configuredAt time.Time
	sentAt       []time.Time
	frames       []Frame
	configureErr error
	transmitErr  error
}

func (c *fakeChannel) Configure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configuredAt = time.Now()
	return c.configureErr
}

func (c *fakeChannel) Transmit(ctx context.Context, f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transmitErr != nil {
		return c.transmitErr
	}
	c.sentAt = append(c.sentAt, time.Now())
	c.frames = append(c.frames, f)
	return nil
}

func TestNew_WarmUpBeforeFirstTransmit(t *testing.T) {
	ch := &fakeChannel{}
	warmUp := 5 * time.Millisecond

	enc, err := New(ch, warmUp)
	require.NoError(t, err)
	require.NoError(t, enc.Show(context.Background(), Blue))

	require.Len(t, ch.sentAt, 1)
	assert.GreaterOrEqual(t, ch.sentAt[0].Sub(ch.configuredAt), warmUp)
}

func TestNew_ConfigureError(t *testing.T) {
	ch := &fakeChannel{configureErr: errors.New("no channel")}

	enc, err := New(ch, 0)
	assert.Error(t, err)
	assert.Nil(t, enc)
}

func TestShow(t *testing.T) {
	ch := &fakeChannel{}
	enc, err := New(ch, time.Microsecond)
	require.NoError(t, err)

	require.NoError(t, enc.Show(context.Background(), Red))
	assert.Equal(t, Red, enc.Color())
	require.Len(t, ch.frames, 1)
	assert.Equal(t, Encode(Red), ch.frames[0])
}

func TestShow_TransmitError(t *testing.T) {
	ch := &fakeChannel{}
	enc, err := New(ch, time.Microsecond)
	require.NoError(t, err)
	require.NoError(t, enc.Show(context.Background(), Green))

	ch.transmitErr = errors.New("channel busy")
	err = enc.Show(context.Background(), Red)
	assert.ErrorIs(t, err, ch.transmitErr)
	assert.Equal(t, Green, enc.Color(), "failed transmit keeps previous colour")
}
