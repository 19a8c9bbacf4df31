package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
)

const staffRole = "staff"

// caller is the member on whose behalf the fronting app makes a request.
type caller struct {
	UserID   string
	UserName string
	Staff    bool
}

func callerFromContext(ctx context.Context) caller {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return caller{}
	}
	return caller{
		UserID:   firstValue(md, "x-user-id"),
		UserName: firstValue(md, "x-user-name"),
		Staff:    strings.EqualFold(firstValue(md, "x-user-role"), staffRole),
	}
}

func firstValue(md metadata.MD, key string) string {
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
