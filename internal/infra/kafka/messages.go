package kafka

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/X-ROM/android-dalvik/internal/domain/execution"
)

const (
	messageTypeTest = "test"
	messageTypeDone = "done"
)

type testEnvelope struct {
	Type            string   `json:"type"`
	QualifiedName   string   `json:"qualified_name"`
	TestClass       string   `json:"test_class,omitempty"`
	SourcePath      string   `json:"source_path"`
	RunnerClasspath []string `json:"runner_classpath,omitempty"`
}

type reportEnvelope struct {
	QualifiedName string           `json:"qualified_name"`
	Result        execution.Result `json:"result"`
	Output        []string         `json:"output,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

func decodeTestMessage(msg kafkago.Message) (*execution.TestRun, error) {
	var envelope testEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	msgType := envelope.Type
	if msgType == "" {
		msgType = messageTypeTest
	}

	switch msgType {
	case messageTypeTest:
		return envelope.toTestRun(msg)
	case messageTypeDone:
		return nil, io.EOF
	default:
		return nil, fmt.Errorf("unknown message type %q", msgType)
	}
}

func (e testEnvelope) toTestRun(msg kafkago.Message) (*execution.TestRun, error) {
	if e.SourcePath == "" {
		return nil, fmt.Errorf("test message missing source_path")
	}

	qualifiedName := e.QualifiedName
	if qualifiedName == "" {
		qualifiedName = string(msg.Key)
	}
	if qualifiedName == "" {
		return nil, fmt.Errorf("test message missing qualified_name")
	}

	testClass := e.TestClass
	if testClass == "" {
		testClass = simpleClassName(qualifiedName)
	}

	run := execution.NewTestRun(qualifiedName, testClass, e.SourcePath)
	run.AddRunnerClasspath(execution.ClasspathOf(e.RunnerClasspath...))
	return run, nil
}

func simpleClassName(qualifiedName string) string {
	if idx := strings.LastIndexByte(qualifiedName, '.'); idx >= 0 {
		return qualifiedName[idx+1:]
	}
	return qualifiedName
}

func encodeReport(run *execution.TestRun) ([]byte, error) {
	payload, err := json.Marshal(reportEnvelope{
		QualifiedName: run.QualifiedName(),
		Result:        run.Result(),
		Output:        run.Output(),
		Timestamp:     time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return payload, nil
}
