package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"SpaceDealScanner/internal/domain"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
	drained  bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakeConn) FlushTimeout(time.Duration) error { return nil }

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func TestPublishDealUsesSourceSlugSubject(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{}
	p := newDealPublisher(fc, "deals.", nil)

	rec := domain.DealRecord{URL: "https://x", Source: string(domain.SourceNASATechPort), IsRelevant: true, DealType: domain.DealContract}
	if err := p.PublishDeal(context.Background(), rec); err != nil {
		t.Fatalf("PublishDeal: %v", err)
	}

	if len(fc.subjects) != 1 || fc.subjects[0] != "deals.nasa-techport" {
		t.Fatalf("unexpected subjects: %v", fc.subjects)
	}
	var ev DealEvent
	if err := json.Unmarshal(fc.payloads[0], &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Deal.URL != "https://x" || ev.Deal.DealType != domain.DealContract || ev.PublishedAt.IsZero() {
		t.Fatalf("unexpected event: %+v", ev)
	}

	if err := p.Close(); err != nil || !fc.drained {
		t.Fatalf("expected drained connection, err=%v", err)
	}
}

func TestPublishDealWrapsErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("no responders")
	p := newDealPublisher(&fakeConn{err: boom}, "", nil)

	err := p.PublishDeal(context.Background(), domain.DealRecord{Source: "SNAPI"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if got := p.Subject(domain.DealRecord{}); got != "deals.unknown" {
		t.Fatalf("unexpected fallback subject %q", got)
	}
}
