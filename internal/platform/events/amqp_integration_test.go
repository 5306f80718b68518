//go:build integration

package events

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

func dialBroker(t *testing.T) *amqp.Connection {
	t.Helper()
	url := os.Getenv("TEST_AMQP_URL")
	if url == "" {
		t.Skip("TEST_AMQP_URL not set")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		t.Fatalf("dial broker: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestAMQPPublisher_ConfirmsAfterAbandonedWait(t *testing.T) {
	conn := dialBroker(t)
	queue := "healthrecord-test-" + uuid.NewString()
	p, err := NewAMQP(conn, queue)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer p.Close()

	expired, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-expired.Done()
	if err := p.Publish(expired, Event{Type: TypeImportCompleted, PatientID: "p0"}); err == nil {
		t.Fatal("expected an error for an expired context")
	}

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			errs <- p.Publish(ctx, Event{Type: TypeExportCompleted, PatientID: fmt.Sprintf("p%d", i+1), OccurredAt: time.Now()})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("publish: %v", err)
		}
	}

	ch, err := conn.Channel()
	if err != nil {
		t.Fatalf("open channel: %v", err)
	}
	defer ch.Close()
	q, err := ch.QueueDeclarePassive(queue, true, false, false, false, nil)
	if err != nil {
		t.Fatalf("inspect queue: %v", err)
	}
	if q.Messages < n {
		t.Errorf("expected at least %d messages, got %d", n, q.Messages)
	}
	if _, err := ch.QueueDelete(queue, false, false, false); err != nil {
		t.Logf("delete queue: %v", err)
	}
}
