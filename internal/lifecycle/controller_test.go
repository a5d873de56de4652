package lifecycle

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/and161185/streamcheck/internal/catalog"
	"github.com/and161185/streamcheck/internal/errs"
	"github.com/and161185/streamcheck/internal/generator"
	"github.com/and161185/streamcheck/internal/metrics"
	"github.com/and161185/streamcheck/internal/transport"
	"github.com/and161185/streamcheck/internal/transport/mocks"
	"github.com/and161185/streamcheck/model"
	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testCatalog() catalog.Catalog {
	return catalog.Catalog{
		{Name: "EEG_A", Kind: model.Continuous, Type: "EEG", ChannelCount: 2, NominalRate: 100, Amplitude: 10},
		{Name: "EEG_B", Kind: model.Continuous, Type: "EEG", ChannelCount: 4, NominalRate: 50, Amplitude: 20},
		{Name: "Markers", Kind: model.Event, Type: "Markers", ChannelCount: 1,
			Vocabulary: []string{"Onset", "Response"}, Interval: model.IntervalMs{Min: 5, Max: 10}},
	}
}

func observed() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	return zap.New(core).Sugar(), logs
}

func TestController_StartAndStopAll(t *testing.T) {
	mem := transport.NewMemory()
	logger, logs := observed()
	reg := prometheus.NewRegistry()
	m := metrics.NewGenerator(reg)

	c := NewController(mem,
		WithLogger(logger),
		WithMetrics(m),
		WithGeneratorOptions(generator.WithRand(rand.New(rand.NewPCG(7, 7)))),
	)
	handles, err := c.Start(context.Background(), testCatalog())
	require.NoError(t, err)
	require.Len(t, handles, 3)

	require.Eventually(t, func() bool {
		for _, rs := range mem.Streams() {
			if len(rs.Samples) < 2 {
				return false
			}
		}
		return len(mem.Streams()) == 3
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 3.0, testutil.ToFloat64(m.StreamsRunning))

	require.NoError(t, c.StopAll(time.Second))

	for _, st := range c.Status() {
		require.Equal(t, StateStopped, st.State, st.Name)
		require.Empty(t, st.Error)
		require.Positive(t, st.Pushed)
	}
	require.Equal(t, 0.0, testutil.ToFloat64(m.StreamsRunning))
	require.Equal(t, 3, logs.FilterMessage("stream_started").Len())
	require.Equal(t, 3, logs.FilterMessage("stream_stopped").Len())

	for _, rs := range mem.Streams() {
		h, err := c.Handle(rs.Info.Name)
		require.NoError(t, err)
		require.Equal(t, uint64(len(rs.Samples)), h.Status().Pushed)
	}
}

func TestController_NoPushAfterStopAll(t *testing.T) {
	mem := transport.NewMemory()
	c := NewController(mem)
	_, err := c.Start(context.Background(), testCatalog())
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, c.StopAll(time.Second))

	count := func() int {
		n := 0
		for _, rs := range mem.Streams() {
			n += len(rs.Samples)
		}
		return n
	}
	before := count()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, before, count())

	require.NoError(t, c.StopAll(time.Second), "StopAll is idempotent")
}

func TestController_StopAllBeforeStart(t *testing.T) {
	c := NewController(transport.NewMemory())
	require.NoError(t, c.StopAll(time.Second))
	require.Empty(t, c.Status())

	_, err := c.Start(context.Background(), testCatalog())
	require.ErrorIs(t, err, errs.ErrStopped)
	require.NoError(t, c.StopAll(300*time.Millisecond))
	require.NoError(t, c.StopAll(0))
}

func TestController_AwaitDuringStart(t *testing.T) {
	c := NewController(transport.NewMemory())

	awaited := make(chan error, 1)
	go func() { awaited <- c.AwaitAllStopped(time.Second) }()

	_, err := c.Start(context.Background(), testCatalog())
	require.NoError(t, err)
	require.NoError(t, c.StopAll(time.Second))
	require.NoError(t, <-awaited)
	for _, st := range c.Status() {
		require.Equal(t, StateStopped, st.State)
	}
}

func TestController_StartTwice(t *testing.T) {
	c := NewController(transport.NewMemory())
	_, err := c.Start(context.Background(), testCatalog())
	require.NoError(t, err)
	defer func() { require.NoError(t, c.StopAll(time.Second)) }()

	_, err = c.Start(context.Background(), testCatalog())
	require.ErrorIs(t, err, errs.ErrAlreadyStarted)
}

func TestController_InvalidCatalog(t *testing.T) {
	cat := testCatalog()
	cat = append(cat, cat[0])

	c := NewController(transport.NewMemory())
	_, err := c.Start(context.Background(), cat)
	require.ErrorIs(t, err, errs.ErrCatalogInvalid)
	require.Empty(t, c.Handles())
}

func TestController_ParentContextCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewController(transport.NewMemory())
	_, err := c.Start(ctx, testCatalog())
	require.NoError(t, err)

	cancel()
	require.NoError(t, c.AwaitAllStopped(time.Second))
}

func TestController_FailingOutletIsIsolated(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	mem := transport.NewMemory()
	logger, logs := observed()

	broken := mocks.NewMockOutlet(ctrl)
	broken.EXPECT().Push(gomock.Any(), gomock.Any()).Return(errors.New("peer gone")).Times(1)
	broken.EXPECT().Close().Return(nil).Times(1)

	tr.EXPECT().CreateOutlet(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, info model.StreamInfo) (transport.Outlet, error) {
			switch info.Name {
			case "EEG_A":
				return broken, nil
			case "EEG_B":
				return nil, errors.New("refused")
			default:
				return mem.CreateOutlet(ctx, info)
			}
		}).Times(3)

	c := NewController(tr, WithLogger(logger))
	_, err := c.Start(context.Background(), testCatalog())
	require.NoError(t, err)

	a, err := c.Handle("EEG_A")
	require.NoError(t, err)
	b, err := c.Handle("EEG_B")
	require.NoError(t, err)
	<-a.Done()
	<-b.Done()

	require.ErrorIs(t, a.Err(), errs.ErrTransport)
	require.ErrorIs(t, b.Err(), errs.ErrTransport)
	require.Equal(t, StateFailed, a.Status().State)

	markers, err := c.Handle("Markers")
	require.NoError(t, err)
	require.False(t, markers.Stopped(), "siblings keep running")
	require.Equal(t, StateRunning, markers.Status().State)

	require.NoError(t, c.StopAll(time.Second))
	require.NoError(t, markers.Err())
	require.Equal(t, 2, logs.FilterMessage("stream_failed").Len())

	_, err = c.Handle("nope")
	require.ErrorIs(t, err, errs.ErrStreamNotFound)
}

func TestController_StuckOutletTimesOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	stuck := mocks.NewMockOutlet(ctrl)

	release := make(chan struct{})
	stuck.EXPECT().Push(gomock.Any(), gomock.Any()).DoAndReturn(func([]any, float64) error {
		<-release
		return nil
	}).AnyTimes()
	stuck.EXPECT().Close().Return(nil)
	tr.EXPECT().CreateOutlet(gomock.Any(), gomock.Any()).Return(stuck, nil)

	cat := catalog.Catalog{testCatalog()[0]}
	c := NewController(tr)
	_, err := c.Start(context.Background(), cat)
	require.NoError(t, err)

	err = c.StopAll(50 * time.Millisecond)
	require.ErrorIs(t, err, errs.ErrShutdownTimeout)
	var se *errs.ShutdownError
	require.ErrorAs(t, err, &se)
	require.Equal(t, []string{"EEG_A"}, se.Pending)

	close(release)
	require.NoError(t, c.AwaitAllStopped(0))
}
