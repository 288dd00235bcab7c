package export_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/isdoc-export/internal/assembler"
	"github.com/rezonia/isdoc-export/internal/export"
	"github.com/rezonia/isdoc-export/internal/logger"
	"github.com/rezonia/isdoc-export/internal/metrics"
	"github.com/rezonia/isdoc-export/internal/model"
	"github.com/rezonia/isdoc-export/internal/validator"
)

func profile() *model.Profile {
	return &model.Profile{
		BusinessName:    "Moje Firma s.r.o.",
		BusinessAddress: "Dlouhá 12, 110 00 Praha 1",
		BusinessIC:      "27082440",
		BusinessDIC:     "CZ27082440",
		BankAccount:     "2000145399",
		BankCode:        "0800",
	}
}

func transaction(id, invoiceNumber string) *model.Transaction {
	issued := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return &model.Transaction{
		ID:           id,
		Name:         "Konzultace",
		Merchant:     "Zákazník a.s.",
		Total:        12100,
		CurrencyCode: "CZK",
		IssuedAt:     &issued,
		Extra: map[string]any{
			"invoice_number":   invoiceNumber,
			"customer_name":    "Odběratel s.r.o.",
			"customer_address": "Masarykova 5, 602 00 Brno",
			"vat_rate":         "21",
			"line_items":       `[{"description":"Konzultace","quantity":1,"unit_price":100,"total":100,"vat_rate":21,"vat_amount":21}]`,
		},
	}
}

func malformed(id string) *model.Transaction {
	tx := transaction(id, "FV-BAD")
	tx.Extra["line_items"] = "[{not json"
	return tx
}

func newExporter(opts ...export.Option) *export.Exporter {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC))
	base := []export.Option{export.WithAssembler(assembler.New(assembler.WithClock(clock)))}
	return export.New(append(base, opts...)...)
}

func TestExport_Success(t *testing.T) {
	res, err := newExporter().Export(context.Background(), transaction("tx-1", "FV-2024-001"), profile())
	require.NoError(t, err)

	assert.Equal(t, "invoice_FV-2024-001.isdoc", res.File.FileName)
	assert.Equal(t, "tx-1", res.File.TransactionID)
	assert.Equal(t, "FV-2024-001", res.File.InvoiceID)
	assert.True(t, res.Validation.Valid)
	assert.Contains(t, string(res.File.Content), "<ID>FV-2024-001</ID>")
	assert.Equal(t, "FV-2024-001", res.Invoice.ID)
}

func TestExport_Preconditions(t *testing.T) {
	e := newExporter()

	_, err := e.Export(context.Background(), nil, profile())
	var precondition *model.PreconditionError
	assert.True(t, errors.As(err, &precondition))

	_, err = e.Export(context.Background(), transaction("tx-1", "FV-1"), nil)
	assert.True(t, errors.As(err, &precondition))
}

func TestExport_ValidationFailure(t *testing.T) {
	res, err := newExporter().Export(context.Background(), malformed("tx-bad"), profile())

	var violation *model.StructuralViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "FV-BAD", violation.InvoiceID)
	assert.Contains(t, violation.Messages, "Missing required element: InvoiceLines")

	// the rendered document is still available for inspection
	require.NotNil(t, res)
	assert.False(t, res.Validation.Valid)
	assert.Contains(t, string(res.File.Content), "<InvoiceLines/>")
}

func TestExport_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newExporter().Export(ctx, transaction("tx-1", "FV-1"), profile())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExport_CustomValidator(t *testing.T) {
	reject := validatorFunc(func(content []byte) *validator.Result {
		r := validator.NewResult("reject")
		r.AddError("always")
		return r
	})

	_, err := newExporter(export.WithValidator(reject)).Export(context.Background(), transaction("tx-1", "FV-1"), profile())
	var violation *model.StructuralViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, []string{"always"}, violation.Messages)
}

func TestExport_Metrics(t *testing.T) {
	m := metrics.New()
	e := newExporter(export.WithMetrics(m))

	_, err := e.Export(context.Background(), transaction("tx-1", "FV-1"), profile())
	require.NoError(t, err)
	_, err = e.Export(context.Background(), malformed("tx-2"), profile())
	require.Error(t, err)
	_, err = e.Export(context.Background(), nil, profile())
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportsTotal.WithLabelValues(metrics.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportsTotal.WithLabelValues(metrics.StatusInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportsTotal.WithLabelValues(metrics.StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailures.WithLabelValues("structural")))
}

func TestExport_LogsOneComponentPerLine(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: "debug", Format: "json", Output: &buf})

	_, err := export.New(export.WithLogger(log)).Export(context.Background(), malformed("tx-2"), profile())
	require.Error(t, err)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)

	components := map[string]bool{}
	for _, line := range lines {
		assert.Equal(t, 1, bytes.Count(line, []byte(`"component":`)), string(line))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		components[entry[logger.FieldComponent].(string)] = true
	}
	assert.True(t, components["lineitem"])
	assert.True(t, components["export"])
}

func TestFileName(t *testing.T) {
	tests := []struct {
		invoiceID string
		txID      string
		want      string
	}{
		{"FV-2024-001", "tx", "invoice_FV-2024-001.isdoc"},
		{"2024/001", "tx", "invoice_2024_001.isdoc"},
		{"Faktura č. 5", "tx", "invoice_Faktura_č._5.isdoc"},
		{"../../etc/passwd", "tx", "invoice_.._.._etc_passwd.isdoc"},
		{"", "tx-9", "invoice_tx-9.isdoc"},
		{"///", "", "invoice_unnamed.isdoc"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, export.FileName(tt.invoiceID, tt.txID))
		})
	}
}

func TestExportBatch_OneMalformed(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			txs := []*model.Transaction{
				transaction("tx-1", "FV-1"),
				malformed("tx-2"),
				transaction("tx-3", "FV-3"),
			}

			res, err := newExporter(export.WithConcurrency(workers)).ExportBatch(context.Background(), txs, profile())
			require.NoError(t, err)

			require.Len(t, res.Files, 2)
			assert.Equal(t, "invoice_FV-1.isdoc", res.Files[0].FileName)
			assert.Equal(t, "invoice_FV-3.isdoc", res.Files[1].FileName)

			require.Len(t, res.Failures, 1)
			assert.Equal(t, "tx-2", res.Failures[0].TransactionID)
			assert.Contains(t, res.Failures[0].Message, "Missing required element: InvoiceLines")

			assert.NotEmpty(t, res.BatchID)
		})
	}
}

func TestExportBatch_Errors(t *testing.T) {
	e := newExporter()

	_, err := e.ExportBatch(context.Background(), nil, profile())
	assert.ErrorIs(t, err, model.ErrNoTransactions)

	_, err = e.ExportBatch(context.Background(), []*model.Transaction{transaction("tx-1", "FV-1")}, nil)
	var precondition *model.PreconditionError
	assert.True(t, errors.As(err, &precondition))

	res, err := e.ExportBatch(context.Background(), []*model.Transaction{malformed("tx-1"), nil}, profile())
	assert.ErrorIs(t, err, model.ErrNoExports)
	require.NotNil(t, res)
	assert.Empty(t, res.Files)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, "tx-1", res.Failures[0].TransactionID)
	assert.Equal(t, "", res.Failures[1].TransactionID)
}

func TestExportBatch_DuplicateNames(t *testing.T) {
	txs := []*model.Transaction{
		transaction("tx-1", "FV-1"),
		transaction("tx-2", "FV-1"),
		transaction("tx-3", "FV-1"),
	}

	res, err := newExporter().ExportBatch(context.Background(), txs, profile())
	require.NoError(t, err)
	require.Len(t, res.Files, 3)
	assert.Equal(t, "invoice_FV-1.isdoc", res.Files[0].FileName)
	assert.Equal(t, "invoice_FV-1-2.isdoc", res.Files[1].FileName)
	assert.Equal(t, "invoice_FV-1-3.isdoc", res.Files[2].FileName)
}

func TestExportBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newExporter().ExportBatch(ctx, []*model.Transaction{transaction("tx-1", "FV-1")}, profile())
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Empty(t, res.Files)
	assert.Empty(t, res.Failures)
}

func TestExportBatch_Concurrent(t *testing.T) {
	var txs []*model.Transaction
	for i := 0; i < 40; i++ {
		txs = append(txs, transaction(fmt.Sprintf("tx-%d", i), fmt.Sprintf("FV-%d", i)))
	}

	res, err := newExporter(export.WithConcurrency(8)).ExportBatch(context.Background(), txs, profile())
	require.NoError(t, err)
	require.Len(t, res.Files, 40)
	for i, f := range res.Files {
		assert.Equal(t, fmt.Sprintf("tx-%d", i), f.TransactionID)
	}
}

func TestFailuresCSV(t *testing.T) {
	failures := []export.Failure{
		{TransactionID: "tx-1", Message: "Validation failed: Missing required element: InvoiceLines"},
		{TransactionID: "tx-2", Message: "precondition failed [profile]: user profile is required"},
	}

	var buf bytes.Buffer
	require.NoError(t, export.WriteFailuresCSV(&buf, failures))
	assert.Contains(t, buf.String(), "transaction_id,message\n")

	back, err := export.ReadFailuresCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, failures, back)
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	files := []export.File{
		{FileName: "invoice_A.isdoc", Content: []byte("<a/>")},
		{FileName: "invoice_B.isdoc", Content: []byte("<b/>")},
	}

	paths, err := export.WriteFiles(dir, files)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	content, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "<b/>", string(content))
}

type validatorFunc func(content []byte) *validator.Result

func (f validatorFunc) Name() string { return "func" }

func (f validatorFunc) Validate(_ context.Context, content []byte) (*validator.Result, error) {
	return f(content), nil
}
