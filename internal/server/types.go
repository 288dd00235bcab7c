package server

import (
	"github.com/rezonia/isdoc-export/internal/export"
	"github.com/rezonia/isdoc-export/internal/isdoc"
	"github.com/rezonia/isdoc-export/internal/model"
	"github.com/rezonia/isdoc-export/internal/validator"
)

// ExportRequest is the body of the export endpoint
type ExportRequest struct {
	Transaction *model.Transaction `json:"transaction"`
	Profile     *model.Profile     `json:"profile"`
}

// BatchRequest is the body of the batch export endpoint
type BatchRequest struct {
	Transactions []*model.Transaction `json:"transactions"`
	Profile      *model.Profile       `json:"profile"`
}

// ExportResponse is the response for the export endpoint
type ExportResponse struct {
	FileName      string            `json:"file_name"`
	TransactionID string            `json:"transaction_id"`
	InvoiceID     string            `json:"invoice_id"`
	Content       string            `json:"content"`
	Validation    *validator.Result `json:"validation"`
	Warnings      []string          `json:"warnings,omitempty"`
}

// BatchFile is one document in a batch response
type BatchFile struct {
	FileName      string `json:"file_name"`
	TransactionID string `json:"transaction_id"`
	InvoiceID     string `json:"invoice_id"`
	Content       string `json:"content"`
}

// BatchResponse is the response for the batch export endpoint
type BatchResponse struct {
	BatchID  string           `json:"batch_id"`
	Files    []BatchFile      `json:"files"`
	Failures []export.Failure `json:"failures"`
}

func newBatchResponse(res *export.BatchResult) BatchResponse {
	resp := BatchResponse{Files: []BatchFile{}, Failures: []export.Failure{}}
	if res == nil {
		return resp
	}
	resp.BatchID = res.BatchID
	resp.Failures = append(resp.Failures, res.Failures...)
	for _, f := range res.Files {
		resp.Files = append(resp.Files, BatchFile{
			FileName:      f.FileName,
			TransactionID: f.TransactionID,
			InvoiceID:     f.InvoiceID,
			Content:       string(f.Content),
		})
	}
	return resp
}

// ValidationResponse is the response for validate endpoint
type ValidationResponse struct {
	Valid     bool     `json:"valid"`
	Errors    []string `json:"errors,omitempty"`
	Validator string   `json:"validator"`
}

// InfoResponse is the response for info endpoint
type InfoResponse struct {
	*isdoc.Summary
	Size int `json:"size"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error    string   `json:"error"`
	Details  string   `json:"details,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}
