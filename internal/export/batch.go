package export

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rezonia/isdoc-export/internal/isdoc"
	"github.com/rezonia/isdoc-export/internal/logger"
	"github.com/rezonia/isdoc-export/internal/model"
)

// Failure records one transaction that could not be exported
type Failure struct {
	TransactionID string `json:"transaction_id" yaml:"transaction_id" csv:"transaction_id"`
	Message       string `json:"message" yaml:"message" csv:"message"`
}

// BatchResult holds the successes and failures of a batch export, each in input order
type BatchResult struct {
	BatchID  string    `json:"batch_id" yaml:"batch_id"`
	Files    []File    `json:"files" yaml:"files"`
	Failures []Failure `json:"failures" yaml:"failures"`
}

// indexedOutcome keeps a worker result tied to its input position
type indexedOutcome struct {
	index int
	file  *File
	fail  *Failure
}

// ExportBatch exports every transaction for the same profile. A failing
// item is recorded and never stops the batch. The error is ErrNoTransactions
// for empty input and ErrNoExports when nothing succeeded; on cancellation
// the items finished so far are returned with ctx.Err().
func (e *Exporter) ExportBatch(ctx context.Context, txs []*model.Transaction, profile *model.Profile) (*BatchResult, error) {
	if len(txs) == 0 {
		return nil, model.ErrNoTransactions
	}
	if profile == nil {
		return nil, model.NewPreconditionError("profile", "user profile is required")
	}

	batchID := uuid.NewString()
	log := e.logger.With().Str(logger.FieldBatchID, batchID).Logger()
	start := time.Now()

	if e.metrics != nil {
		e.metrics.BatchSize.Observe(float64(len(txs)))
	}

	outcomes := make([]indexedOutcome, len(txs))
	done := e.run(ctx, txs, profile, outcomes)

	result := &BatchResult{
		BatchID:  batchID,
		Files:    []File{},
		Failures: []Failure{},
	}
	names := make(map[string]int)
	for i := range outcomes {
		if !done[i] {
			continue
		}
		switch o := outcomes[i]; {
		case o.file != nil:
			f := *o.file
			f.FileName = unique(names, f.FileName)
			result.Files = append(result.Files, f)
		case o.fail != nil:
			result.Failures = append(result.Failures, *o.fail)
		}
	}

	log.Info().
		Int(logger.FieldCount, len(txs)).
		Int("exported", len(result.Files)).
		Int("failed", len(result.Failures)).
		Dur(logger.FieldDuration, time.Since(start)).
		Msg("Batch export finished")

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if len(result.Files) == 0 {
		return result, model.ErrNoExports
	}
	return result, nil
}

// run fills outcomes and reports which positions were processed
func (e *Exporter) run(ctx context.Context, txs []*model.Transaction, profile *model.Profile, outcomes []indexedOutcome) []bool {
	done := make([]bool, len(txs))

	workers := e.concurrency
	if workers > len(txs) {
		workers = len(txs)
	}

	if workers <= 1 {
		for i, tx := range txs {
			if ctx.Err() != nil {
				break
			}
			outcomes[i] = e.one(ctx, i, tx, profile)
			done[i] = true
		}
		return done
	}

	jobs := make(chan int)
	results := make(chan indexedOutcome, len(txs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				results <- e.one(ctx, i, txs[i], profile)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range txs {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for o := range results {
		outcomes[o.index] = o
		done[o.index] = true
	}
	return done
}

func (e *Exporter) one(ctx context.Context, index int, tx *model.Transaction, profile *model.Profile) indexedOutcome {
	res, err := e.Export(ctx, tx, profile)
	if err != nil {
		id := ""
		if tx != nil {
			id = tx.ID
		}
		e.logger.Warn().Err(err).Str(logger.FieldTransactionID, id).Msg("Transaction export failed")
		return indexedOutcome{index: index, fail: &Failure{TransactionID: id, Message: failureMessage(err)}}
	}
	return indexedOutcome{index: index, file: &res.File}
}

func failureMessage(err error) string {
	var violation *model.StructuralViolation
	if errors.As(err, &violation) {
		return "Validation failed: " + strings.Join(violation.Messages, "; ")
	}
	return err.Error()
}

// unique suffixes repeated file names within one batch: a.isdoc, a-2.isdoc, ...
func unique(seen map[string]int, name string) string {
	seen[name]++
	n := seen[name]
	if n == 1 {
		return name
	}
	base := strings.TrimSuffix(name, isdoc.FileExtension)
	candidate := base + "-" + strconv.Itoa(n) + isdoc.FileExtension
	for seen[candidate] > 0 {
		n++
		candidate = base + "-" + strconv.Itoa(n) + isdoc.FileExtension
	}
	seen[name] = n
	seen[candidate] = 1
	return candidate
}
