package api

import (
	"context"
	"fmt"

	"github.com/matheus3301/storechat/internal/chat"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls the storechat.v1.Backend service. It satisfies
// history.Backend.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the backend at target. Extra options are appended after
// the insecure transport and JSON content-subtype defaults.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial backend: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) ResolveIdentity(ctx context.Context, name string) (chat.Identity, error) {
	var out Identity
	if err := c.conn.Invoke(ctx, fullMethod("ResolveIdentity"), &ResolveIdentityRequest{Name: name}, &out); err != nil {
		return chat.Identity{}, fmt.Errorf("resolve identity %q: %w", name, err)
	}
	return chat.Identity{ID: out.ID, Name: out.Name}, nil
}

func (c *Client) EnsureConversation(ctx context.Context, key, localUserID, counterpartID string) (chat.Conversation, error) {
	var out Conversation
	req := &EnsureConversationRequest{Key: key, LocalUserID: localUserID, CounterpartID: counterpartID}
	if err := c.conn.Invoke(ctx, fullMethod("EnsureConversation"), req, &out); err != nil {
		return chat.Conversation{}, fmt.Errorf("ensure conversation %s: %w", key, err)
	}
	return out.ToChat(), nil
}

func (c *Client) FetchHistory(ctx context.Context, key string, limit int) ([]chat.Record, error) {
	var out FetchHistoryResponse
	if err := c.conn.Invoke(ctx, fullMethod("FetchHistory"), &FetchHistoryRequest{Key: key, Limit: limit}, &out); err != nil {
		return nil, fmt.Errorf("fetch history %s: %w", key, err)
	}
	records := make([]chat.Record, 0, len(out.Messages))
	for _, m := range out.Messages {
		records = append(records, m.ToRecord())
	}
	return records, nil
}

func (c *Client) PersistMessage(ctx context.Context, key, authorID, body string) (chat.Record, error) {
	var out Message
	req := &PersistMessageRequest{Key: key, AuthorID: authorID, Body: body}
	if err := c.conn.Invoke(ctx, fullMethod("PersistMessage"), req, &out); err != nil {
		return chat.Record{}, fmt.Errorf("persist message in %s: %w", key, err)
	}
	return out.ToRecord(), nil
}

func (c *Client) MarkRead(ctx context.Context, key, readerID string) (int, error) {
	var out MarkReadResponse
	if err := c.conn.Invoke(ctx, fullMethod("MarkRead"), &MarkReadRequest{Key: key, ReaderID: readerID}, &out); err != nil {
		return 0, fmt.Errorf("mark read %s: %w", key, err)
	}
	return out.ReadCount, nil
}

func (c *Client) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	var out ListConversationsResponse
	if err := c.conn.Invoke(ctx, fullMethod("ListConversations"), &ListConversationsRequest{UserID: userID}, &out); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	convs := make([]chat.Conversation, 0, len(out.Conversations))
	for _, conv := range out.Conversations {
		convs = append(convs, conv.ToChat())
	}
	return convs, nil
}
