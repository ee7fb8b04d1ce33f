package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"intellidoc-backend/internal/bootstrap"
	"intellidoc-backend/internal/documents"
	"intellidoc-backend/internal/shared/config"
	"intellidoc-backend/internal/shared/metrics"
	"intellidoc-backend/internal/shared/telemetry"
	"intellidoc-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	if err := telemetry.Init(cfg.Env); err != nil {
		telemetry.Warn("telemetry.init_failed", map[string]any{"error": err.Error()})
	}
	cfg.SQSQueueURL = ""
	built, err := bootstrap.BuildWorker(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda.worker.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processBatch(ctx, app.DocumentsService, event), nil
}

// processBatch reports only retryable failures; malformed payloads and
// permanently failing documents are dropped so SQS does not redeliver them.
func processBatch(ctx context.Context, processor workerproc.Processor, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncReextractReceived()
		err := workerproc.HandleMessage(ctx, processor, record.Body)
		fields := map[string]any{"sqs_message_id": record.MessageId}
		switch {
		case err == nil:
			metrics.IncReextractCompleted()
		case workerproc.IsMalformed(err) || documents.IsPermanent(err):
			fields["error"] = err.Error()
			telemetry.Error("lambda.worker.unrecoverable", fields)
			metrics.IncReextractUnrecoverable()
		default:
			fields["error"] = err.Error()
			telemetry.Error("lambda.worker.failed", fields)
			metrics.IncReextractFailed()
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
