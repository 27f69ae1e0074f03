package airquality

import (
	"context"
	"errors"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/i474232898/aqi-collector/internal/metrics"
)

type fakeProvider struct {
	reading Reading
	err     error
	calls   int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Fetch(ctx context.Context) (Reading, error) {
	p.calls++
	return p.reading, p.err
}

type recordingPublisher struct {
	got []Reading
	err error
}

func (p *recordingPublisher) Name() string { return "recording" }

func (p *recordingPublisher) Publish(ctx context.Context, r Reading) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish context has no deadline")
	}
	p.got = append(p.got, r)
	return p.err
}

func TestFetchAndStoreSuccess(t *testing.T) {
	reading := Reading{Value: 42, Category: CategoryGood, PrimaryFactor: "PM2.5", PollutantCode: "p2", CapturedAt: testNow}
	provider := &fakeProvider{reading: reading}
	st := &stubStore{}
	pub := &recordingPublisher{}

	svc := NewService(st, provider, ServiceOptions{Interval: 10 * time.Minute, Publishers: []Publisher{pub}})

	got, err := svc.FetchAndStore(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != reading {
		t.Fatalf("expected %+v, got %+v", reading, got)
	}
	if st.saves != 1 {
		t.Fatalf("expected reading to be cached once, got %d saves", st.saves)
	}
	if len(pub.got) != 1 || pub.got[0] != reading {
		t.Fatalf("expected reading to be published, got %+v", pub.got)
	}

	if !svc.Current(testNow.Add(5 * time.Minute)).Available() {
		t.Fatalf("expected fresh observation after successful fetch")
	}
	latest, err := svc.Latest()
	if err != nil || latest != reading {
		t.Fatalf("expected latest %+v, got %+v (%v)", reading, latest, err)
	}
}

func TestFetchAndStoreFailureKeepsCache(t *testing.T) {
	previous := Reading{Value: 10, Category: CategoryGood, PrimaryFactor: "PM10", CapturedAt: testNow}
	st := &stubStore{}
	st.SaveReading(previous)

	fetchErr := &FetchError{Kind: KindProtocol, Reason: "server_error", StatusCode: 502, Err: errors.New("bad gateway")}
	pub := &recordingPublisher{}
	svc := NewService(st, &fakeProvider{err: fetchErr}, ServiceOptions{Interval: time.Minute, LogErrors: true, Publishers: []Publisher{pub}})

	_, err := svc.FetchAndStore(context.Background())
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error to be returned, got %v", err)
	}
	if st.saves != 1 {
		t.Fatalf("cache must not be written on failure")
	}
	if len(pub.got) != 0 {
		t.Fatalf("nothing must be published on failure")
	}
	latest, _ := svc.Latest()
	if latest != previous {
		t.Fatalf("expected previous reading to survive, got %+v", latest)
	}
}

func TestFetchAndStorePublisherErrorIsIgnored(t *testing.T) {
	st := &stubStore{}
	pub := &recordingPublisher{err: errors.New("redis down")}
	svc := NewService(st, &fakeProvider{reading: Reading{Value: 1, CapturedAt: testNow}}, ServiceOptions{Interval: time.Minute, Publishers: []Publisher{pub}})

	if _, err := svc.FetchAndStore(context.Background()); err != nil {
		t.Fatalf("publisher failure must not fail the fetch cycle: %v", err)
	}
	if st.saves != 1 {
		t.Fatalf("expected reading to be cached")
	}
}

func TestFetchAndStoreWithoutProvider(t *testing.T) {
	svc := NewService(&stubStore{}, nil, ServiceOptions{Interval: time.Minute})

	_, err := svc.FetchAndStore(context.Background())
	if KindOf(err) != KindInternal {
		t.Fatalf("expected internal fault, got %v", err)
	}
}

func failureCount(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	if err := metrics.FetchAttempts.WithLabelValues("failure").Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestFetchAndStoreCancelledIsNotCounted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := &stubStore{}
	provider := &fakeProvider{err: &FetchError{Kind: KindTransport, Reason: "network", Err: context.Canceled}}
	svc := NewService(st, provider, ServiceOptions{Interval: time.Minute, LogErrors: true})

	before := failureCount(t)
	_, err := svc.FetchAndStore(ctx)
	if err == nil {
		t.Fatalf("expected the cancellation error to be returned")
	}
	if got := failureCount(t); got != before {
		t.Errorf("expected shutdown not to count as a failed attempt, counter went %v -> %v", before, got)
	}
	if st.saves != 0 {
		t.Errorf("cache must not be written on cancellation")
	}
}
