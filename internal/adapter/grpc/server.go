package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/tokendrop-backend/internal/domain"
	"github.com/simaogato/tokendrop-backend/internal/usecase/airdrop"
)

// Server implements the AirdropService gRPC server
type Server struct {
	AirdropService *airdrop.Service
}

// NewServer creates a new gRPC server instance
func NewServer(airdropService *airdrop.Service) *Server {
	return &Server{AirdropService: airdropService}
}

// UploadRecipients handles the UploadRecipients RPC
func (s *Server) UploadRecipients(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	content, err := requireString(req, fieldContent)
	if err != nil {
		return nil, err
	}

	upload, err := s.AirdropService.Upload(ctx, []byte(content))
	if err != nil {
		return nil, mapError(err)
	}
	return uploadToStruct(upload)
}

// EditRow handles the EditRow RPC
func (s *Server) EditRow(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uploadID, err := requireUUID(req, fieldUploadID)
	if err != nil {
		return nil, err
	}
	line, err := requireLine(req)
	if err != nil {
		return nil, err
	}

	// Empty values are passed through so the row re-validates as invalid.
	// The response carries the previous report with validating set; poll GetReport.
	upload, err := s.AirdropService.EditRow(ctx, uploadID, line, optionalString(req, fieldAddress), optionalString(req, fieldAmount))
	if err != nil {
		return nil, mapError(err)
	}
	return uploadToStruct(upload)
}

// RemoveRow handles the RemoveRow RPC
func (s *Server) RemoveRow(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uploadID, err := requireUUID(req, fieldUploadID)
	if err != nil {
		return nil, err
	}
	line, err := requireLine(req)
	if err != nil {
		return nil, err
	}

	upload, err := s.AirdropService.RemoveRow(ctx, uploadID, line)
	if err != nil {
		return nil, mapError(err)
	}
	return uploadToStruct(upload)
}

// GetReport handles the GetReport RPC
func (s *Server) GetReport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uploadID, err := requireUUID(req, fieldUploadID)
	if err != nil {
		return nil, err
	}

	upload, err := s.AirdropService.GetUpload(ctx, uploadID)
	if err != nil {
		return nil, mapError(err)
	}
	return uploadToStruct(upload)
}

// DiscardUpload handles the DiscardUpload RPC
func (s *Server) DiscardUpload(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uploadID, err := requireUUID(req, fieldUploadID)
	if err != nil {
		return nil, err
	}

	if err := s.AirdropService.DiscardUpload(ctx, uploadID); err != nil {
		return nil, mapError(err)
	}
	return structpb.NewStruct(map[string]any{fieldUploadID: uploadID.String()})
}

// ExportCleanList handles the ExportCleanList RPC
// With a key the list is published to the configured bucket; otherwise it is returned inline.
func (s *Server) ExportCleanList(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uploadID, err := requireUUID(req, fieldUploadID)
	if err != nil {
		return nil, err
	}

	if key := optionalString(req, fieldKey); key != "" {
		location, err := s.AirdropService.PublishCleanList(ctx, uploadID, key)
		if err != nil {
			return nil, mapError(err)
		}
		return structpb.NewStruct(map[string]any{fieldUploadID: uploadID.String(), "location": location})
	}

	data, err := s.AirdropService.ExportCleanList(ctx, uploadID)
	if err != nil {
		return nil, mapError(err)
	}
	return structpb.NewStruct(map[string]any{fieldUploadID: uploadID.String(), fieldContent: string(data)})
}

// EstimateCost handles the EstimateCost RPC
func (s *Server) EstimateCost(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uploadID, err := requireUUID(req, fieldUploadID)
	if err != nil {
		return nil, err
	}

	est, err := s.AirdropService.Estimate(ctx, uploadID)
	if err != nil {
		return nil, mapError(err)
	}
	return estimateToStruct(uploadID, est)
}

// StartRun handles the StartRun RPC
func (s *Server) StartRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uploadID, err := requireUUID(req, fieldUploadID)
	if err != nil {
		return nil, err
	}

	run, err := s.AirdropService.StartRun(ctx, uploadID)
	if err != nil {
		return nil, mapError(err)
	}
	return runToStruct(run)
}

// GetRun handles the GetRun RPC
func (s *Server) GetRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID, err := requireUUID(req, fieldRunID)
	if err != nil {
		return nil, err
	}

	run, err := s.AirdropService.GetRun(ctx, runID)
	if err != nil {
		return nil, mapError(err)
	}
	return runToStruct(run)
}

// ListRuns handles the ListRuns RPC
func (s *Server) ListRuns(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	runs, err := s.AirdropService.ListRuns(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	list := make([]any, 0, len(runs))
	for _, run := range runs {
		list = append(list, runToMap(run))
	}
	return structpb.NewStruct(map[string]any{"runs": list})
}

// CancelRun handles the CancelRun RPC
func (s *Server) CancelRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID, err := requireUUID(req, fieldRunID)
	if err != nil {
		return nil, err
	}

	run, accepted, err := s.AirdropService.CancelRun(ctx, runID)
	if err != nil {
		return nil, mapError(err)
	}
	return structpb.NewStruct(map[string]any{"accepted": accepted, "run": runToMap(run)})
}

// RetryFailed handles the RetryFailed RPC
func (s *Server) RetryFailed(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID, err := requireUUID(req, fieldRunID)
	if err != nil {
		return nil, err
	}

	run, err := s.AirdropService.RetryFailed(ctx, runID)
	if err != nil {
		return nil, mapError(err)
	}
	return runToStruct(run)
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var structural *domain.StructuralError
	var preflight *domain.PreflightError

	switch {
	case errors.As(err, &structural),
		errors.Is(err, domain.ErrInvalidPolicy),
		errors.Is(err, domain.ErrInvalidCostBuffer):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrUploadNotFound),
		errors.Is(err, domain.ErrRunNotFound),
		errors.Is(err, domain.ErrRowNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &preflight),
		errors.Is(err, domain.ErrNoValidRecipients),
		errors.Is(err, domain.ErrReportStale),
		errors.Is(err, domain.ErrRunNotTerminal),
		errors.Is(err, domain.ErrNothingToRetry),
		errors.Is(err, airdrop.ErrPublishingDisabled):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrCostEstimateFailed),
		errors.Is(err, domain.ErrNetworkUnreachable),
		errors.Is(err, airdrop.ErrShuttingDown):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	// Default to Internal error for unknown errors
	return status.Error(codes.Internal, err.Error())
}

var _ AirdropServiceServer = (*Server)(nil)
