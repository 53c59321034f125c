package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/marmos91/postmaster/internal/telemetry"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

func TestBus_PublishOrder(t *testing.T) {
	bus := NewBus()
	var got []string

	bus.Subscribe(DomainCreated, func(_ context.Context, ev Event) error {
		got = append(got, "first:"+ev.Object.ObjectName())
		return nil
	})
	bus.Subscribe(DomainCreated, func(_ context.Context, ev Event) error {
		got = append(got, "second:"+ev.Object.ObjectName())
		return nil
	})
	bus.Subscribe(DomainDeleted, func(context.Context, Event) error {
		t.Fatal("unrelated handler called")
		return nil
	})

	err := bus.Publish(context.Background(), Event{Name: DomainCreated, Object: &models.Domain{Name: "example.com"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"first:example.com", "second:example.com"}, got)
}

func TestBus_PublishNoHandlers(t *testing.T) {
	assert.NoError(t, NewBus().Publish(context.Background(), Event{Name: AliasCreated}))
}

func TestBus_ErrorsAreJoined(t *testing.T) {
	bus := NewBus()
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	calls := 0

	bus.Subscribe(MailboxDeleted, func(context.Context, Event) error { calls++; return errA })
	bus.Subscribe(MailboxDeleted, func(context.Context, Event) error { calls++; return nil })
	bus.Subscribe(MailboxDeleted, func(context.Context, Event) error { calls++; return errB })

	err := bus.Publish(context.Background(), Event{Name: MailboxDeleted})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "every handler runs")
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Contains(t, err.Error(), "MailboxDeleted handler")
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	sub := bus.Subscribe(ExtEnabled, func(context.Context, Event) error { calls++; return nil })
	other := bus.Subscribe(ExtEnabled, func(context.Context, Event) error { return nil })
	assert.Equal(t, 2, bus.HandlerCount(ExtEnabled))

	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)
	bus.Unsubscribe(Subscription{})
	assert.Equal(t, 1, bus.HandlerCount(ExtEnabled))

	require.NoError(t, bus.Publish(context.Background(), Event{Name: ExtEnabled}))
	assert.Zero(t, calls)

	bus.Unsubscribe(other)
	assert.Zero(t, bus.HandlerCount(ExtEnabled))
}

func TestBus_UnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus()
	var sub Subscription
	calls := 0
	sub = bus.Subscribe(AccountDeleted, func(context.Context, Event) error {
		calls++
		bus.Unsubscribe(sub)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), Event{Name: AccountDeleted}))
	require.NoError(t, bus.Publish(context.Background(), Event{Name: AccountDeleted}))
	assert.Equal(t, 1, calls)
}

func TestBus_Concurrent(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	count := 0
	bus.Subscribe(AliasModified, func(context.Context, Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = bus.Publish(context.Background(), Event{Name: AliasModified})
			bus.Subscribe(AliasCreated, func(context.Context, Event) error { return nil })
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, count)
	assert.Equal(t, 10, bus.HandlerCount(AliasCreated))
}

func TestEvent_ActorName(t *testing.T) {
	assert.Equal(t, "system", Event{}.ActorName())
	assert.Equal(t, "admin", Event{Actor: &models.Account{Username: "admin"}}.ActorName())
}

func TestBus_Observer(t *testing.T) {
	b := NewBus()
	b.Subscribe(DomainCreated, func(context.Context, Event) error { return errors.New("boom") })

	var seen []Name
	var failed []bool
	b.SetObserver(func(name Name, err error) {
		seen = append(seen, name)
		failed = append(failed, err != nil)
	})

	b.Emit(context.Background(), Event{Name: DomainCreated})
	b.Emit(context.Background(), Event{Name: DomainDeleted})
	assert.Equal(t, []Name{DomainCreated, DomainDeleted}, seen)
	assert.Equal(t, []bool{true, false}, failed)

	b.SetObserver(nil)
	b.Emit(context.Background(), Event{Name: DomainCreated})
	assert.Len(t, seen, 2)
}

func TestBus_PublishSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	telemetry.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { _, _ = telemetry.Init(context.Background(), telemetry.Config{}) })

	bus := NewBus()
	bus.Subscribe(DomainDeleted, func(context.Context, Event) error { return errors.New("transport busy") })

	err := bus.Publish(context.Background(), Event{Name: DomainDeleted})
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "event "+string(DomainDeleted), spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
