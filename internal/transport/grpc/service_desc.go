package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "coworking.v1.BookingService"

type BookingServiceServer interface {
	ListBookableRooms(ctx context.Context, req *ListBookableRoomsRequest) (*ListBookableRoomsResponse, error)
	ListRoomBookings(ctx context.Context, req *ListRoomBookingsRequest) (*ListRoomBookingsResponse, error)
	ListUserBookings(ctx context.Context, req *ListUserBookingsRequest) (*ListUserBookingsResponse, error)
	CreateBooking(ctx context.Context, req *CreateBookingRequest) (*CreateBookingResponse, error)
	CancelBooking(ctx context.Context, req *CancelBookingRequest) (*CancelBookingResponse, error)
	GetAvailability(ctx context.Context, req *GetAvailabilityRequest) (*GetAvailabilityResponse, error)
	ExpandRecurringEvent(ctx context.Context, req *ExpandRecurringEventRequest) (*ExpandRecurringEventResponse, error)
}

var BookingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListBookableRooms", Handler: unaryHandler("ListBookableRooms", BookingServiceServer.ListBookableRooms)},
		{MethodName: "ListRoomBookings", Handler: unaryHandler("ListRoomBookings", BookingServiceServer.ListRoomBookings)},
		{MethodName: "ListUserBookings", Handler: unaryHandler("ListUserBookings", BookingServiceServer.ListUserBookings)},
		{MethodName: "CreateBooking", Handler: unaryHandler("CreateBooking", BookingServiceServer.CreateBooking)},
		{MethodName: "CancelBooking", Handler: unaryHandler("CancelBooking", BookingServiceServer.CancelBooking)},
		{MethodName: "GetAvailability", Handler: unaryHandler("GetAvailability", BookingServiceServer.GetAvailability)},
		{MethodName: "ExpandRecurringEvent", Handler: unaryHandler("ExpandRecurringEvent", BookingServiceServer.ExpandRecurringEvent)},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&BookingServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler[Req, Resp any](
	method string,
	call func(BookingServiceServer, context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// BookingServiceClient calls the booking service with the JSON codec.
type BookingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingServiceClient(cc grpc.ClientConnInterface) *BookingServiceClient {
	return &BookingServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) ListBookableRooms(ctx context.Context, in *ListBookableRoomsRequest, opts ...grpc.CallOption) (*ListBookableRoomsResponse, error) {
	return invoke[ListBookableRoomsResponse](ctx, c.cc, "ListBookableRooms", in, opts)
}

func (c *BookingServiceClient) ListRoomBookings(ctx context.Context, in *ListRoomBookingsRequest, opts ...grpc.CallOption) (*ListRoomBookingsResponse, error) {
	return invoke[ListRoomBookingsResponse](ctx, c.cc, "ListRoomBookings", in, opts)
}

func (c *BookingServiceClient) ListUserBookings(ctx context.Context, in *ListUserBookingsRequest, opts ...grpc.CallOption) (*ListUserBookingsResponse, error) {
	return invoke[ListUserBookingsResponse](ctx, c.cc, "ListUserBookings", in, opts)
}

func (c *BookingServiceClient) CreateBooking(ctx context.Context, in *CreateBookingRequest, opts ...grpc.CallOption) (*CreateBookingResponse, error) {
	return invoke[CreateBookingResponse](ctx, c.cc, "CreateBooking", in, opts)
}

func (c *BookingServiceClient) CancelBooking(ctx context.Context, in *CancelBookingRequest, opts ...grpc.CallOption) (*CancelBookingResponse, error) {
	return invoke[CancelBookingResponse](ctx, c.cc, "CancelBooking", in, opts)
}

func (c *BookingServiceClient) GetAvailability(ctx context.Context, in *GetAvailabilityRequest, opts ...grpc.CallOption) (*GetAvailabilityResponse, error) {
	return invoke[GetAvailabilityResponse](ctx, c.cc, "GetAvailability", in, opts)
}

func (c *BookingServiceClient) ExpandRecurringEvent(ctx context.Context, in *ExpandRecurringEventRequest, opts ...grpc.CallOption) (*ExpandRecurringEventResponse, error) {
	return invoke[ExpandRecurringEventResponse](ctx, c.cc, "ExpandRecurringEvent", in, opts)
}
