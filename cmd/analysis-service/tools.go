package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"textanalysis/internal/broker"
	"textanalysis/internal/config"
	"textanalysis/internal/dispatch"
	"textanalysis/internal/logger"
	"textanalysis/internal/store"
	"textanalysis/pkg/bootstrap"
	"textanalysis/pkg/cel"
	"textanalysis/pkg/models"
)

const runIDHeader = "x-run-id"

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Publish a few example messages to the input queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return sendExamples(ctx, cfg, log)
		},
	}
}

func exampleRecords(now time.Time) []models.RawRecord {
	ts := now.UTC().Format("2006-01-02T15:04:05.000000")
	return []models.RawRecord{
		{ID: "msg1", Type: "update", UserID: strPtr("u1"), Text: strPtr("Hello world"), Timestamp: strPtr(ts)},
		{ID: "msg2", Type: "delete", UserID: strPtr("u2"), Text: strPtr("Another comment"), Timestamp: strPtr(ts)},
		{ID: "msg3", Type: "delete"},
	}
}

func sendExamples(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	producer, err := broker.NewProducer(ctx, cfg.Broker, broker.NewSupervisor(cfg.Broker.Connect, log), log)
	if err != nil {
		return err
	}
	defer producer.Close()

	input, _ := broker.Queues(cfg.Broker)
	runID := uuid.NewString()

	for _, rec := range exampleRecords(time.Now()) {
		if err := publishRecord(ctx, producer, input, rec, runID); err != nil {
			return err
		}
	}

	log.Infow("All test messages sent", "destination", input, "run_id", runID)
	return nil
}

func publishRecord(ctx context.Context, producer broker.Producer, destination string, rec models.RawRecord, runID string) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode message %s: %w", rec.ID, err)
	}
	return producer.Publish(ctx, destination, broker.Message{
		Key:     rec.ID,
		Body:    body,
		Headers: map[string]string{runIDHeader: runID},
	})
}

type batchOptions struct {
	Size         int
	DeleteEvery  int
	Rate         float64
	PollInterval time.Duration
	Timeout      time.Duration
}

func defaultBatchOptions() batchOptions {
	return batchOptions{
		Size:         500,
		DeleteEvery:  5,
		PollInterval: 2 * time.Second,
		Timeout:      10 * time.Minute,
	}
}

func (o batchOptions) expectedUpdates() int {
	if o.DeleteEvery <= 0 {
		return o.Size
	}
	return o.Size - (o.Size+o.DeleteEvery-1)/o.DeleteEvery
}

type batchReport struct {
	RunID          string
	Published      int
	Expected       int
	Documents      int64
	OutputMessages int
}

func batchCmd() *cobra.Command {
	opts := defaultBatchOptions()

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the end-to-end batch check against a running service",
		Long: "Clears the collection, purges the output queue, publishes a batch of updates and deletes, " +
			"then waits until the store and the output queue hold one entry per update",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			report, err := runBatch(ctx, cfg, log, opts)
			if err != nil {
				return err
			}

			log.Infow("End-to-end batch check passed",
				"run_id", report.RunID,
				"published", report.Published,
				"documents", report.Documents,
				"output_messages", report.OutputMessages,
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Size, "size", opts.Size, "Number of messages to publish")
	cmd.Flags().IntVar(&opts.DeleteEvery, "delete-every", opts.DeleteEvery, "Every n-th message (starting with the first) is a delete")
	cmd.Flags().Float64Var(&opts.Rate, "rate", opts.Rate, "Publish rate in messages per second (0 = unlimited)")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll-interval", opts.PollInterval, "Interval between progress checks")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", opts.Timeout, "Give up waiting after this long")

	return cmd
}

func batchRecord(i, deleteEvery int, ts string) models.RawRecord {
	rec := models.RawRecord{
		ID:        fmt.Sprintf("msg_%d", i),
		UserID:    strPtr(fmt.Sprintf("user_%d", i%20)),
		Timestamp: strPtr(ts),
		Type:      string(models.ActionUpdate),
	}
	if deleteEvery > 0 && i%deleteEvery == 0 {
		rec.Type = string(models.ActionDelete)
		return rec
	}
	rec.Text = strPtr(fmt.Sprintf("Test message %d", i))
	return rec
}

func runBatch(ctx context.Context, cfg *config.Config, log logger.Logger, opts batchOptions) (batchReport, error) {
	report := batchReport{RunID: uuid.NewString(), Expected: opts.expectedUpdates()}
	input, output := broker.Queues(cfg.Broker)
	supervisor := broker.NewSupervisor(cfg.Broker.Connect, log)

	dbConnector := bootstrap.NewDatabaseConnector(cfg, log)
	mongoClient, err := dbConnector.InitMongoDB(ctx)
	if err != nil {
		return report, err
	}
	defer dbConnector.ShutdownDatabases(context.Background(), nil, mongoClient)

	repo := store.NewRepository(mongoClient.Database(cfg.Database.MongoDB.Database), cfg.Database.MongoDB.Collection)
	cleared, err := repo.DeleteAll(ctx)
	if err != nil {
		return report, err
	}
	log.Infow("MongoDB cleared", "deleted", cleared)

	var session *broker.Session
	if cfg.Broker.Type == "rabbitmq" {
		session = broker.NewSession("batch", cfg.Broker.RabbitMQ, supervisor, nil, log)
		if err := session.Connect(ctx); err != nil {
			return report, err
		}
		defer session.Close()

		purged, err := session.Purge(ctx, output)
		if err != nil {
			return report, err
		}
		log.Infow("Output queue purged", "queue", output, "purged", purged)
	}

	producer, err := broker.NewProducer(ctx, cfg.Broker, supervisor, log)
	if err != nil {
		return report, err
	}
	defer producer.Close()

	var limiter *rate.Limiter
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}

	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000000")
	for i := 0; i < opts.Size; i++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return report, err
			}
		}
		if err := publishRecord(ctx, producer, input, batchRecord(i, opts.DeleteEvery, ts), report.RunID); err != nil {
			return report, fmt.Errorf("failed to publish message %d: %w", i, err)
		}
		report.Published++
	}
	log.Infow("Batch published",
		"messages", report.Published,
		"updates", report.Expected,
		"deletes", report.Published-report.Expected,
	)

	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	report.Documents, err = pollUntil(waitCtx, opts.PollInterval, func(ctx context.Context) (int64, bool, error) {
		n, err := repo.Count(ctx)
		if err != nil {
			return 0, false, err
		}
		log.Infow("Waiting for documents", "documents", n, "expected", report.Expected)
		return n, n >= int64(report.Expected), nil
	})
	if err != nil {
		return report, fmt.Errorf("store holds %d/%d documents: %w", report.Documents, report.Expected, err)
	}

	if session == nil {
		log.Warnw("Output verification is only available for rabbitmq, skipping", "broker", cfg.Broker.Type)
		return report, nil
	}

	outputs, err := pollUntil(waitCtx, opts.PollInterval, func(ctx context.Context) (int64, bool, error) {
		n, err := session.MessageCount(ctx, output)
		if err != nil {
			return 0, false, err
		}
		log.Infow("Waiting for output messages", "messages", n, "expected", report.Expected)
		return int64(n), n >= report.Expected, nil
	})
	report.OutputMessages = int(outputs)
	if err != nil {
		return report, fmt.Errorf("output queue holds %d/%d messages: %w", outputs, report.Expected, err)
	}

	return report, nil
}

// pollUntil calls check every interval until it reports done, fails, or ctx
// ends. The last observed value is always returned.
func pollUntil(ctx context.Context, interval time.Duration, check func(ctx context.Context) (int64, bool, error)) (int64, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, done, err := check(ctx)
		if err != nil {
			return n, err
		}
		if done {
			return n, nil
		}

		select {
		case <-ctx.Done():
			return n, ctx.Err()
		case <-ticker.C:
		}
	}
}

func receiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "receive",
		Short: "Print processed messages from the output queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			pool := dispatch.New(dispatch.Options{Name: "receive", Workers: 1, QueueSize: 1}, log)

			consumerCfg := cfg.Broker
			if consumerCfg.Type == "kafka" {
				consumerCfg.Kafka.GroupID += "-receive"
			}
			consumer, err := broker.NewConsumer(ctx, consumerCfg, broker.NewSupervisor(cfg.Broker.Connect, log), pool, nil, log)
			if err != nil {
				return err
			}
			defer consumer.Close()

			_, output := broker.Queues(cfg.Broker)
			log.Infow("Waiting for processed messages", "source", output)

			err = consumer.Consume(ctx, output, func(ctx context.Context, msg broker.Message) error {
				var update models.UpdateRecord
				if err := json.Unmarshal(msg.Body, &update); err != nil {
					log.Warnw("Received undecodable message", "error", err, "body", string(msg.Body))
					return nil
				}
				log.Infow("Processed message received",
					"id", update.ID,
					"toxicity_score", update.ToxicityScore,
					"is_toxic", update.IsToxic,
					"processing_time", update.ProcessingTime,
					"processed_at", update.ProcessedAt,
				)
				return nil
			})

			drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Broker.Consumer.DrainTimeout)
			defer drainCancel()
			if drainErr := pool.Drain(drainCtx); drainErr != nil {
				log.Warnw("Receive pool did not drain", "error", drainErr)
			}
			return err
		},
	}
}

func strPtr(s string) *string { return &s }

func filtersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filters [expression]",
		Short: "List example publisher filters, or check an expression",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return checkFilter(cmd.OutOrStdout(), args[0])
			}
			return printFilterExamples(cmd.OutOrStdout())
		},
	}
}

func printFilterExamples(w io.Writer) error {
	names := make([]string, 0, len(cel.FilterExpressionExamples))
	for name := range cel.FilterExpressionExamples {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%s\n", name, cel.FilterExpressionExamples[name])
	}
	return tw.Flush()
}

func checkFilter(w io.Writer, expression string) error {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return err
	}
	if err := evaluator.ValidateFilterExpression(expression); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, "ok")
	return err
}
