package grpc

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/dto"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/entity"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/reconciler"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/repository"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/service"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var providerLabels = map[string]string{
	entity.ProviderZAPI:    reconciler.ProviderZAPI,
	entity.ProviderBaileys: reconciler.ProviderBaileys,
}

type ChannelLookup interface {
	Get(ctx context.Context, id int64) (*entity.Channel, error)
}

type Server struct {
	channels   ChannelLookup
	reconciler service.StatusReconciler
	logger     logrus.FieldLogger
}

// NewServer constructs a gRPC server handler.
func NewServer(channels ChannelLookup, rec service.StatusReconciler, logger logrus.FieldLogger) *Server {
	return &Server{channels: channels, reconciler: rec, logger: logger}
}

// ReconcileStatus validates the request and applies it to the named messages.
func (s *Server) ReconcileStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := dto.FromStruct(req)
	if err := in.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	channel, err := s.channels.Get(ctx, in.ChannelID)
	if errors.Is(err, repository.ErrChannelNotFound) {
		return nil, status.Error(codes.NotFound, "channel not found")
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to load channel")
		return nil, status.Error(codes.Unavailable, "failed to load channel")
	}
	if channel.Provider != in.Provider {
		return nil, status.Error(codes.NotFound, "channel not found")
	}

	result, err := s.reconciler.Reconcile(ctx, reconciler.StatusEvent{
		ChannelID:   in.ChannelID,
		Provider:    providerLabels[in.Provider],
		ExternalIDs: in.IDs,
		Code:        in.Status,
		Error:       in.Error,
		Timestamp:   in.Timestamp,
	})
	switch {
	case errors.Is(err, reconciler.ErrInvalidEvent):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, reconciler.ErrConflict):
		return nil, status.Error(codes.Aborted, err.Error())
	case err != nil:
		s.logger.WithError(err).Error("Failed to reconcile status")
		return nil, status.Error(codes.Unavailable, "failed to reconcile status")
	}

	resp, err := structpb.NewStruct(map[string]interface{}{
		"updated":   toList(result.Updated),
		"annotated": toList(result.Annotated),
		"skipped":   toList(result.Skipped),
		"missing":   toList(result.Missing),
		"unmapped":  result.Unmapped,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return resp, nil
}

func toList(ids []string) []interface{} {
	out := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		out = append(out, id)
	}
	return out
}
