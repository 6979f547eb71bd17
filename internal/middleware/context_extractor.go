// internal/middleware/context_extractor.go
package middleware

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// ContextKey types for storing request metadata
type ContextKey string

const (
	ContextKeyIPAddress ContextKey = "ip_address"
	ContextKeyUserAgent ContextKey = "user_agent"
	ContextKeyUserID    ContextKey = "user_id"
	ContextKeyUserRole  ContextKey = "user_role"
)

// ClientInfo carries the request metadata extracted for logging.
type ClientInfo struct {
	UserID    string
	IPAddress string
	UserAgent string
}

// MetadataExtractorInterceptor extracts client metadata and adds it to context
type MetadataExtractorInterceptor struct{}

// NewMetadataExtractorInterceptor creates a new metadata extractor interceptor
func NewMetadataExtractorInterceptor() *MetadataExtractorInterceptor {
	return &MetadataExtractorInterceptor{}
}

// Unary returns a unary server interceptor for metadata extraction
func (m *MetadataExtractorInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		return handler(m.enrichContext(ctx), req)
	}
}

// Stream returns a stream server interceptor for metadata extraction
func (m *MetadataExtractorInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		stream grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		wrapped := &wrappedStream{
			ServerStream: stream,
			ctx:          m.enrichContext(stream.Context()),
		}
		return handler(srv, wrapped)
	}
}

func (m *MetadataExtractorInterceptor) enrichContext(ctx context.Context) context.Context {
	if p, ok := peer.FromContext(ctx); ok {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			ctx = context.WithValue(ctx, ContextKeyIPAddress, host)
		} else {
			ctx = context.WithValue(ctx, ContextKeyIPAddress, p.Addr.String())
		}
	}

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ua := md.Get("user-agent"); len(ua) > 0 {
			ctx = context.WithValue(ctx, ContextKeyUserAgent, ua[0])
		}
	}

	return ctx
}

type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}

// GetUserIDFromContext returns the authenticated user id, if any.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextKeyUserID).(string)
	return id, ok && id != ""
}

// GetUserRoleFromContext returns the authenticated user's role, if any.
func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(ContextKeyUserRole).(string)
	return role, ok && role != ""
}

// GetClientInfoFromContext collects logging metadata from the context.
func GetClientInfoFromContext(ctx context.Context) ClientInfo {
	info := ClientInfo{}
	if id, ok := GetUserIDFromContext(ctx); ok {
		info.UserID = id
	}
	if ip, ok := ctx.Value(ContextKeyIPAddress).(string); ok {
		info.IPAddress = ip
	}
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		info.UserAgent = ua
	}
	return info
}
