package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/bryanwahyu/automaton-forensics/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/jobs"
)

// KafkaPublisher emits completion events supaya sistem downstream
// (case management, alerting) tidak perlu polling status endpoint.
type KafkaPublisher struct {
	analysisWriter *kafka.Writer
	batchWriter    *kafka.Writer
}

func NewKafkaPublisher(brokers []string, analysisTopic, batchTopic string) *KafkaPublisher {
	return &KafkaPublisher{
		analysisWriter: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        analysisTopic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
		},
		batchWriter: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        batchTopic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// AnalysisCompleted publishes a summary of one finished analysis.
// Key = document id supaya event satu dokumen masuk partition yang sama.
func (p *KafkaPublisher) AnalysisCompleted(ctx context.Context, res *analysis.AnalysisResult) error {
	payload, err := json.Marshal(map[string]any{
		"job_id":       res.JobID,
		"tenant_id":    res.TenantID,
		"document_id":  res.DocumentID,
		"format":       res.Format,
		"risk":         res.Risk,
		"confidence":   res.Confidence,
		"indicators":   len(res.Indicators),
		"completed_at": res.CompletedAt,
	})
	if err != nil {
		return err
	}
	return p.analysisWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(res.DocumentID),
		Value: payload,
	})
}

// BatchCompleted publishes the final counts of a finished batch
func (p *KafkaPublisher) BatchCompleted(ctx context.Context, st jobs.BatchStatus) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return p.batchWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(st.BatchID),
		Value: payload,
	})
}

func (p *KafkaPublisher) Close() error {
	if err := p.analysisWriter.Close(); err != nil {
		p.batchWriter.Close()
		return err
	}
	return p.batchWriter.Close()
}
