package grpc

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/tokendrop-backend/internal/domain"
	"github.com/simaogato/tokendrop-backend/internal/usecase/estimator"
)

// Request field names
const (
	fieldContent  = "content"
	fieldUploadID = "upload_id"
	fieldRunID    = "run_id"
	fieldLine     = "line"
	fieldAddress  = "address"
	fieldAmount   = "amount"
	fieldKey      = "key"
)

// requireString reads a non-empty string field
func requireString(req *structpb.Struct, name string) (string, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "missing field %s", name)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok || s.StringValue == "" {
		return "", status.Errorf(codes.InvalidArgument, "field %s must be a non-empty string", name)
	}
	return s.StringValue, nil
}

// optionalString reads a string field, returning "" when absent
func optionalString(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func requireUUID(req *structpb.Struct, name string) (uuid.UUID, error) {
	raw, err := requireString(req, name)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", name, err)
	}
	return id, nil
}

func requireLine(req *structpb.Struct) (int, error) {
	v, ok := req.GetFields()[fieldLine]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "missing field %s", fieldLine)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue < 1 || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, status.Errorf(codes.InvalidArgument, "field %s must be a positive integer", fieldLine)
	}
	return int(n.NumberValue), nil
}

func uploadToStruct(upload *domain.Upload) (*structpb.Struct, error) {
	m := map[string]any{
		fieldUploadID: upload.ID.String(),
		"report":      reportToMap(upload.Report),
		"validating":  upload.Validating,
		"updated_at":  upload.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if upload.ValidationError != "" {
		m["validation_error"] = upload.ValidationError
	}
	return structpb.NewStruct(m)
}

func reportToMap(report domain.ValidationReport) map[string]any {
	summary := report.Summary()
	return map[string]any{
		"total":           summary.Total,
		"valid":           summary.Valid,
		"invalid_address": summary.InvalidAddress,
		"invalid_amount":  summary.InvalidAmount,
		"duplicates":      summary.Duplicates,
		"total_amount":    report.TotalAmount.String(),
		"rows": map[string]any{
			"valid":           rowsToList(report.Valid),
			"invalid_address": rowsToList(report.InvalidAddress),
			"invalid_amount":  rowsToList(report.InvalidAmount),
			"duplicates":      rowsToList(report.Duplicates),
		},
	}
}

func rowsToList(rows []domain.ClassifiedRow) []any {
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		entry := map[string]any{
			fieldLine:     row.Row.LineNumber,
			"raw_address": row.Row.RawAddress,
			"raw_amount":  row.Row.RawAmount,
		}
		switch row.Class {
		case domain.RowClassValid:
			entry[fieldAddress] = row.Address.Canonical
			entry[fieldAmount] = row.Amount.String()
		case domain.RowClassDuplicate:
			entry[fieldAddress] = row.Address.Canonical
			entry["first_occurrence_line"] = row.FirstOccurrenceLine
		default:
			entry["reason"] = row.Reason
		}
		out = append(out, entry)
	}
	return out
}

func estimateToStruct(uploadID uuid.UUID, est *estimator.Estimate) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldUploadID:             uploadID.String(),
		"operations":              len(est.PerOp),
		"fee_rate":                est.FeeRate.PerUnit.String(),
		"buffer":                  est.Buffer.String(),
		"total_units":             fmt.Sprint(est.Total.Units),
		"total_cost":              est.Total.Value.String(),
		"total_units_with_buffer": fmt.Sprint(est.TotalWithBuffer.Units),
		"total_cost_with_buffer":  est.TotalWithBuffer.Value.String(),
	})
}

func runToMap(run domain.BatchRun) map[string]any {
	m := map[string]any{
		fieldRunID:         run.ID.String(),
		"status":           string(run.Status),
		"total":            run.Total,
		"completed":        run.Completed(),
		"unexecuted":       run.Unexecuted(),
		"batches_executed": run.BatchesExecuted,
		"success_rate":     run.SuccessRate().StringFixed(2),
		"total_cost":       run.TotalCost.String(),
		"successes":        outcomesToList(run.Successes),
		"failures":         outcomesToList(run.Failures),
	}
	if run.ParentRunID != nil {
		m["parent_run_id"] = run.ParentRunID.String()
	}
	if !run.StartedAt.IsZero() {
		m["started_at"] = run.StartedAt.UTC().Format(time.RFC3339Nano)
	}
	if !run.EndedAt.IsZero() {
		m["ended_at"] = run.EndedAt.UTC().Format(time.RFC3339Nano)
	}
	return m
}

func runToStruct(run domain.BatchRun) (*structpb.Struct, error) {
	return structpb.NewStruct(runToMap(run))
}

func outcomesToList(outcomes []domain.TransferOutcome) []any {
	out := make([]any, 0, len(outcomes))
	for _, o := range outcomes {
		entry := map[string]any{
			"operation_id": o.Operation.ID.String(),
			"recipient":    o.Operation.Recipient,
			fieldAmount:    o.Operation.Amount.String(),
			fieldLine:      o.Operation.SourceLine,
			"attempts":     o.AttemptsUsed,
		}
		if o.Receipt != nil {
			entry["tx_hash"] = o.Receipt.TxHash
			entry["fee"] = o.Receipt.Fee.String()
			entry["block_number"] = fmt.Sprint(o.Receipt.BlockNumber)
		} else {
			entry["reason"] = o.Reason
			entry["kind"] = string(o.Kind)
		}
		out = append(out, entry)
	}
	return out
}
