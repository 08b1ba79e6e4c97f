// Package api exposes the chatd store as the storechat.v1.Backend gRPC
// service and provides the client the chat engine uses to reach it.
package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/matheus3301/storechat/internal/logging"
	"github.com/matheus3301/storechat/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// maxHistory bounds FetchHistory regardless of the requested limit.
const maxHistory = 1000

// BackendService implements BackendServer over the chatd store.
type BackendService struct {
	db     *store.DB
	logger *zap.Logger
}

// NewBackendService creates a backend service backed by the store.
func NewBackendService(db *store.DB, logger *zap.Logger) *BackendService {
	return &BackendService{db: db, logger: logging.OrNop(logger)}
}

func (s *BackendService) ResolveIdentity(_ context.Context, req *ResolveIdentityRequest) (*Identity, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "name is required")
	}
	u, err := s.db.UpsertUser(name)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "upsert user: %v", err)
	}
	return &Identity{ID: u.ID, Name: u.Name}, nil
}

func (s *BackendService) EnsureConversation(_ context.Context, req *EnsureConversationRequest) (*Conversation, error) {
	if req.Key == "" || req.LocalUserID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "key and localUserId are required")
	}
	if req.CounterpartID == req.LocalUserID {
		return nil, grpcstatus.Error(codes.InvalidArgument, "counterpart must differ from local user")
	}
	c, err := s.db.EnsureConversation(req.Key, req.LocalUserID, req.CounterpartID)
	if err != nil {
		return nil, storeError("ensure conversation", err)
	}
	conv := conversationFromStore(c, req.LocalUserID)
	return &conv, nil
}

func (s *BackendService) FetchHistory(_ context.Context, req *FetchHistoryRequest) (*FetchHistoryResponse, error) {
	if req.Key == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "key is required")
	}
	limit := req.Limit
	if limit <= 0 || limit > maxHistory {
		limit = maxHistory
	}
	msgs, err := s.db.ListMessages(req.Key, limit)
	if err != nil {
		return nil, storeError("list messages", err)
	}
	resp := &FetchHistoryResponse{Messages: make([]Message, 0, len(msgs))}
	for i := range msgs {
		resp.Messages = append(resp.Messages, messageFromStore(&msgs[i]))
	}
	return resp, nil
}

func (s *BackendService) PersistMessage(_ context.Context, req *PersistMessageRequest) (*Message, error) {
	if req.Key == "" || req.AuthorID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "key and authorId are required")
	}
	if strings.TrimSpace(req.Body) == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "body is empty")
	}
	m, err := s.db.InsertMessage(req.Key, req.AuthorID, req.Body)
	if err != nil {
		return nil, storeError("insert message", err)
	}
	s.logger.Debug("message persisted", zap.String("key", m.ConversationKey), zap.String("id", m.ID))
	msg := messageFromStore(m)
	return &msg, nil
}

func (s *BackendService) MarkRead(_ context.Context, req *MarkReadRequest) (*MarkReadResponse, error) {
	if req.Key == "" || req.ReaderID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "key and readerId are required")
	}
	n, err := s.db.MarkRead(req.Key, req.ReaderID)
	if err != nil {
		return nil, storeError("mark read", err)
	}
	return &MarkReadResponse{ReadCount: int(n)}, nil
}

func (s *BackendService) ListConversations(_ context.Context, req *ListConversationsRequest) (*ListConversationsResponse, error) {
	if req.UserID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "userId is required")
	}
	convs, err := s.db.ListConversations(req.UserID, 0)
	if err != nil {
		return nil, storeError("list conversations", err)
	}
	resp := &ListConversationsResponse{Conversations: make([]Conversation, 0, len(convs))}
	for i := range convs {
		resp.Conversations = append(resp.Conversations, conversationFromStore(&convs[i], req.UserID))
	}
	return resp, nil
}

func storeError(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return grpcstatus.Errorf(codes.NotFound, "%s: %v", op, err)
	}
	return grpcstatus.Errorf(codes.Internal, "%s: %v", op, err)
}

// LoggingInterceptor logs every unary call at debug level and failures at warn.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	logger = logging.OrNop(logger)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("took", time.Since(start)),
		}
		if err != nil {
			logger.Warn("rpc failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("rpc", fields...)
		}
		return resp, err
	}
}
