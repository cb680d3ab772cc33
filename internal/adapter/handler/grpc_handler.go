package handler

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/core/service"
	"github.com/rl1809/batch-allocation/internal/port"
)

type GRPCHandler struct {
	allocationService *service.AllocationService
}

func NewGRPCHandler(allocationService *service.AllocationService) *GRPCHandler {
	return &GRPCHandler{allocationService: allocationService}
}

func (h *GRPCHandler) AddBatch(ctx context.Context, req *AddBatchRequest) (*AddBatchResponse, error) {
	var eta *time.Time
	if req.Eta != "" {
		t, err := time.Parse(etaLayout, req.Eta)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "eta must be YYYY-MM-DD")
		}
		eta = &t
	}

	batch, err := h.allocationService.AddBatch(ctx, req.Reference, req.Sku, int(req.Quantity), eta)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AddBatchResponse{Reference: batch.Reference}, nil
}

func (h *GRPCHandler) Allocate(ctx context.Context, req *AllocateRequest) (*AllocateResponse, error) {
	ref, err := h.allocationService.Allocate(ctx, req.RequestId, req.OrderId, req.Sku, int(req.Quantity))
	if err != nil {
		return nil, toStatus(err)
	}
	return &AllocateResponse{BatchRef: ref}, nil
}

func (h *GRPCHandler) Deallocate(ctx context.Context, req *DeallocateRequest) (*DeallocateResponse, error) {
	if err := h.allocationService.Deallocate(ctx, req.BatchRef, req.OrderId, req.Sku, int(req.Quantity)); err != nil {
		return nil, toStatus(err)
	}
	return &DeallocateResponse{}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrOutOfStock):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrDuplicateRequest), errors.Is(err, port.ErrBatchExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, port.ErrBatchNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrSKUBusy):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, domain.ErrInvalidOrderLine), errors.Is(err, domain.ErrInvalidBatch):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
