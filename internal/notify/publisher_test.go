package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KaramelBytes/spendloom-cli/internal/analysis"
	"github.com/rabbitmq/amqp091-go"
)

type fakeChannel struct {
	declared  string
	kind      string
	published []amqp091.Publishing
	keys      []string
	failPub   error
	closed    bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	f.declared, f.kind = name, kind
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if f.failPub != nil {
		return f.failPub
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error { f.closed = true; return nil }

func sampleMessage() *AnalysisCompleted {
	res := &analysis.Result{
		Source:        "po.xlsx",
		BaseCurrency:  "AED",
		KPIs:          analysis.KPIs{Lines: 3, TotalSpend: 1651.5},
		Fragmentation: []analysis.FragmentationRow{{UniqueSuppliers: 3}},
		Concentration: []analysis.GroupConcentration{{MaterialGroup: "Steel", UniqueSuppliers: 7, RiskLevel: analysis.RiskHigh}},
		Insights:      []string{"a", "b", "c", "d"},
	}
	return NewAnalysisCompleted("run-1", res, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
}

func TestPublishSendsPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch, "spendloom", "analysis.completed", nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if ch.declared != "spendloom" || ch.kind != "direct" {
		t.Fatalf("exchange = %s/%s", ch.declared, ch.kind)
	}
	if err := p.Publish(context.Background(), sampleMessage()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(ch.published) != 1 || ch.keys[0] != "analysis.completed" {
		t.Fatalf("published = %+v", ch.published)
	}
	msg := ch.published[0]
	if msg.DeliveryMode != amqp091.Persistent || msg.ContentType != "application/json" || msg.MessageId != "run-1" {
		t.Fatalf("publishing = %+v", msg)
	}
	got, err := AnalysisCompletedFromJSON(msg.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RunID != "run-1" || got.FragmentedItems != 1 || len(got.HighRiskGroups) != 1 || got.HighRiskGroups[0] != "Steel" {
		t.Fatalf("message = %+v", got)
	}
	if err := p.Close(); err != nil || !ch.closed {
		t.Fatalf("close: %v closed=%v", err, ch.closed)
	}
}

func TestPublishWrapsError(t *testing.T) {
	boom := errors.New("boom")
	p, _ := newPublisher(&fakeChannel{failPub: boom}, "x", "y", nil)
	if err := p.Publish(context.Background(), sampleMessage()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	var _ Publisher = Nop{}
	var _ Publisher = p
}
