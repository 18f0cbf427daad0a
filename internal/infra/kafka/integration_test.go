//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	kafkatc "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/X-ROM/android-dalvik/internal/domain/execution"
	"github.com/X-ROM/android-dalvik/internal/testhelpers"
)

func TestPublisherPublishesToKafka(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping Kafka integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	kafkaContainer, err := kafkatc.Run(ctx, "confluentinc/confluent-local:7.7.0")
	if err != nil {
		t.Skipf("skipping Kafka integration test (requires Docker): %v", err)
	}
	t.Cleanup(func() {
		_ = kafkaContainer.Terminate(context.Background())
	})

	brokers, err := kafkaContainer.Brokers(ctx)
	if err != nil {
		t.Fatalf("failed to obtain bootstrap servers: %v", err)
	}
	if len(brokers) == 0 {
		t.Fatal("kafka provided zero bootstrap servers")
	}

	broker := brokers[0]
	topic := "test-results"

	if err := testhelpers.WaitForKafkaBroker(ctx, broker); err != nil {
		t.Fatalf("wait for broker: %v", err)
	}
	if err := testhelpers.EnsureKafkaTopic(ctx, broker, topic); err != nil {
		t.Fatalf("ensure topic: %v", err)
	}

	publisher, err := NewPublisher(PublisherConfig{
		Brokers: []string{broker},
		Topic:   topic,
	})
	if err != nil {
		t.Fatalf("NewPublisher failed: %v", err)
	}
	defer publisher.Close()

	run := execution.NewTestRun("java.util.FooTest", "FooTest", "/suite/FooTest.java")
	run.SetResult(execution.ResultSuccess, []string{"42 tests passed"})

	if err := publisher.PublishReport(ctx, run); err != nil {
		t.Fatalf("PublishReport returned error: %v", err)
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: []string{broker},
		Topic:   topic,
		GroupID: "integration-test",
	})
	t.Cleanup(func() {
		_ = reader.Close()
	})

	msgCtx, cancelRead := context.WithTimeout(ctx, 20*time.Second)
	defer cancelRead()

	msg, err := reader.ReadMessage(msgCtx)
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}

	var envelope reportEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}

	if envelope.QualifiedName != run.QualifiedName() {
		t.Fatalf("expected qualified name %q, got %q", run.QualifiedName(), envelope.QualifiedName)
	}
	if envelope.Result != execution.ResultSuccess {
		t.Fatalf("expected result %q, got %q", execution.ResultSuccess, envelope.Result)
	}
}
