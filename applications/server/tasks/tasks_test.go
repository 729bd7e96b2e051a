package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialOrder(t *testing.T) {
	var order []int
	r := Runner{OnDone: func(index int, err error) {
		require.NoError(t, err)
		order = append(order, index)
	}}

	var ran []string
	mk := func(name string) Task {
		return func(done func(error)) {
			ran = append(ran, name)
			done(nil)
		}
	}

	err := r.Sequential(context.Background(), []Task{mk("A"), mk("B"), mk("C")})

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, ran)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestSequentialEmpty(t *testing.T) {
	r := Runner{OnDone: func(int, error) { t.Fatal("no task should complete") }}
	assert.NoError(t, r.Sequential(context.Background(), nil))
}

func TestSequentialStopsOnFailure(t *testing.T) {
	boom := errors.New("boom")
	var ran []int

	mk := func(i int, err error) Task {
		return func(done func(error)) {
			ran = append(ran, i)
			done(err)
		}
	}

	r := Runner{}
	err := r.Sequential(context.Background(), []Task{
		mk(0, nil),
		mk(1, boom),
		mk(2, nil),
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, []int{0, 1}, ran, "task after the failing one must not start")
}

func TestSequentialContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	stuck := func(done func(error)) {
		go func() {
			time.Sleep(50 * time.Millisecond)
			done(nil)
		}()
	}

	cancel()
	r := Runner{}
	err := r.Sequential(ctx, []Task{stuck})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentFinishingOrder(t *testing.T) {
	// B completes before A even though A was submitted first.
	release := make(chan struct{})

	a := func(done func(error)) {
		go func() {
			<-release
			done(nil)
		}()
	}
	b := func(done func(error)) {
		done(nil)
	}

	var order []int
	r := Runner{OnDone: func(index int, err error) {
		require.NoError(t, err)
		order = append(order, index)
		if index == 1 {
			close(release)
		}
	}}

	err := r.Concurrent(context.Background(), []Task{a, b})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, order)
}

func TestConcurrentWaitsForAll(t *testing.T) {
	var pending int32 = 3

	mk := func() Task {
		return func(done func(error)) {
			go func() {
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&pending, -1)
				done(nil)
			}()
		}
	}

	r := Runner{}
	err := r.Concurrent(context.Background(), []Task{mk(), mk(), mk()})

	require.NoError(t, err)
	assert.Zero(t, atomic.LoadInt32(&pending), "aggregate completed before every task finished")
}

func TestConcurrentEmpty(t *testing.T) {
	r := Runner{}
	assert.NoError(t, r.Concurrent(context.Background(), nil))
}

func TestConcurrentPropagatesFailure(t *testing.T) {
	boom := errors.New("close failed")

	ok := func(done func(error)) { done(nil) }
	bad := func(done func(error)) { done(boom) }

	r := Runner{}
	err := r.Concurrent(context.Background(), []Task{ok, bad, ok})

	assert.ErrorIs(t, err, boom)
}
