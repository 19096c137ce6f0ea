package grpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/entity"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/reconciler"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/repository"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeChannels struct {
	channels map[int64]*entity.Channel
	err      error
}

func (f *fakeChannels) Get(_ context.Context, id int64) (*entity.Channel, error) {
	if f.err != nil {
		return nil, f.err
	}
	ch, ok := f.channels[id]
	if !ok {
		return nil, repository.ErrChannelNotFound
	}
	return ch, nil
}

type fakeReconciler struct {
	events []reconciler.StatusEvent
	result reconciler.Result
	err    error
}

func (f *fakeReconciler) Reconcile(_ context.Context, event reconciler.StatusEvent) (reconciler.Result, error) {
	f.events = append(f.events, event)
	return f.result, f.err
}

func newServer(rec *fakeReconciler) *Server {
	logger, _ := test.NewNullLogger()
	channels := &fakeChannels{channels: map[int64]*entity.Channel{
		1: {ID: 1, Provider: entity.ProviderZAPI},
		2: {ID: 2, Provider: entity.ProviderBaileys},
	}}
	return NewServer(channels, rec, logger)
}

func mustStruct(t *testing.T, fields map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("structpb.NewStruct: %v", err)
	}
	return s
}

func TestReconcileStatusInvalid(t *testing.T) {
	t.Parallel()

	server := newServer(&fakeReconciler{})
	_, err := server.ReconcileStatus(context.Background(), &structpb.Struct{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestReconcileStatusRejectsFractionalChannelID(t *testing.T) {
	t.Parallel()

	rec := &fakeReconciler{}
	server := newServer(rec)
	_, err := server.ReconcileStatus(context.Background(), mustStruct(t, map[string]interface{}{
		"channel_id": 1.9,
		"provider":   "zapi",
		"ids":        []interface{}{"a"},
		"status":     "READ",
	}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	if len(rec.events) != 0 {
		t.Fatalf("expected no reconciliation, got %+v", rec.events)
	}
}

func TestReconcileStatusSuccess(t *testing.T) {
	t.Parallel()

	rec := &fakeReconciler{result: reconciler.Result{Updated: []string{"a"}, Missing: []string{"b"}}}
	server := newServer(rec)

	resp, err := server.ReconcileStatus(context.Background(), mustStruct(t, map[string]interface{}{
		"channel_id": 2,
		"provider":   "baileys",
		"ids":        []interface{}{"a", "b"},
		"status":     "4",
		"timestamp":  1700000000000,
	}))
	if err != nil {
		t.Fatalf("ReconcileStatus: %v", err)
	}

	if len(rec.events) != 1 {
		t.Fatalf("expected one event, got %d", len(rec.events))
	}
	ev := rec.events[0]
	if ev.Provider != reconciler.ProviderBaileys || ev.Code != "4" || ev.ChannelID != 2 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Timestamp == nil || *ev.Timestamp != 1700000000000 {
		t.Fatalf("unexpected timestamp: %v", ev.Timestamp)
	}

	fields := resp.GetFields()
	updated := fields["updated"].GetListValue().GetValues()
	if len(updated) != 1 || updated[0].GetStringValue() != "a" {
		t.Fatalf("unexpected updated: %v", fields["updated"])
	}
	if len(fields["missing"].GetListValue().GetValues()) != 1 {
		t.Fatalf("unexpected missing: %v", fields["missing"])
	}
	if fields["unmapped"].GetBoolValue() {
		t.Fatalf("expected unmapped=false")
	}
}

func TestReconcileStatusErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  map[string]interface{}
		err  error
		want codes.Code
	}{
		{
			name: "unknown channel",
			req:  map[string]interface{}{"channel_id": 9, "provider": "zapi", "ids": []interface{}{"a"}, "status": "READ"},
			want: codes.NotFound,
		},
		{
			name: "provider mismatch",
			req:  map[string]interface{}{"channel_id": 1, "provider": "baileys", "ids": []interface{}{"a"}, "status": "4"},
			want: codes.NotFound,
		},
		{
			name: "conflict",
			req:  map[string]interface{}{"channel_id": 1, "provider": "zapi", "ids": []interface{}{"a"}, "status": "READ"},
			err:  reconciler.ErrConflict,
			want: codes.Aborted,
		},
		{
			name: "storage failure",
			req:  map[string]interface{}{"channel_id": 1, "provider": "zapi", "ids": []interface{}{"a"}, "status": "READ"},
			err:  errors.New("db down"),
			want: codes.Unavailable,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			server := newServer(&fakeReconciler{err: tc.err})
			_, err := server.ReconcileStatus(context.Background(), mustStruct(t, tc.req))
			if status.Code(err) != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestStatusServiceOverBufconn(t *testing.T) {
	t.Parallel()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	rec := &fakeReconciler{result: reconciler.Result{Unmapped: true}}
	RegisterStatusServiceServer(srv, newServer(rec))
	go func() {
		_ = srv.Serve(lis)
	}()
	defer srv.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()

	client := NewStatusServiceClient(conn)
	resp, err := client.ReconcileStatus(context.Background(), mustStruct(t, map[string]interface{}{
		"channel_id": 1,
		"provider":   "ZAPI",
		"ids":        []interface{}{"x"},
		"status":     "WHATEVER",
	}))
	if err != nil {
		t.Fatalf("ReconcileStatus: %v", err)
	}
	if !resp.GetFields()["unmapped"].GetBoolValue() {
		t.Fatalf("expected unmapped=true, got %v", resp)
	}
	if len(rec.events) != 1 || rec.events[0].Provider != reconciler.ProviderZAPI {
		t.Fatalf("unexpected events: %+v", rec.events)
	}

	_, err = client.ReconcileStatus(context.Background(), &structpb.Struct{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument over the wire, got %v", err)
	}
}
