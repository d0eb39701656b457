// Package rpc exposes the trivia command surface over gRPC.
//
// The Trivia service has a single unary method whose request and response
// are google.protobuf.Struct values:
//
//	trivia.v1.Trivia/Dispatch
//	  request:  {"channel_id": ..., "user_id": ..., "text": "...", "thread": false}
//	  response: {"handled": bool, "command": "...", "reply": "..."}
//
// IDs may be sent as JSON numbers or decimal strings; platform snowflake IDs
// exceed the precision of a double and should be sent as strings.
package rpc

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/ashureev/trivia-bot/internal/command"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "trivia.v1.Trivia"
	// DispatchMethod is the full method name of Dispatch.
	DispatchMethod = "/" + ServiceName + "/Dispatch"
)

// TriviaServer is the server API for the Trivia service.
type TriviaServer interface {
	Dispatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterTriviaServer registers srv on s.
func RegisterTriviaServer(s grpc.ServiceRegistrar, srv TriviaServer) {
	s.RegisterService(&triviaServiceDesc, srv)
}

var triviaServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TriviaServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Dispatch", Handler: dispatchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trivia/v1/trivia.proto",
}

func dispatchHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TriviaServer).Dispatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DispatchMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TriviaServer).Dispatch(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Dispatcher handles chat commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, req command.Request) command.Result
}

// Service implements TriviaServer on top of a command dispatcher.
type Service struct {
	dispatcher Dispatcher
}

// NewService creates a Trivia gRPC service.
func NewService(dispatcher Dispatcher) *Service {
	return &Service{dispatcher: dispatcher}
}

// Dispatch runs one chat line through the command surface.
func (s *Service) Dispatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	channelID, err := idField(fields, "channel_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	userID, err := idField(fields, "user_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res := s.dispatcher.Dispatch(ctx, command.Request{
		ChannelID: channelID,
		UserID:    userID,
		Text:      fields["text"].GetStringValue(),
		InThread:  fields["thread"].GetBoolValue(),
	})

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"handled": structpb.NewBoolValue(res.Handled),
		"command": structpb.NewStringValue(res.Command),
		"reply":   structpb.NewStringValue(res.Reply.Text()),
	}}, nil
}

// idField reads a positive integer ID sent as a whole number or a decimal
// string.
func idField(fields map[string]*structpb.Value, name string) (int64, error) {
	v, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("%s is required", name)
	}

	var id int64
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n != math.Trunc(n) || n >= math.MaxInt64 {
			return 0, fmt.Errorf("%s must be an integer", name)
		}
		id = int64(n)
	case *structpb.Value_StringValue:
		parsed, err := strconv.ParseInt(kind.StringValue, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", name)
		}
		id = parsed
	default:
		return 0, fmt.Errorf("%s must be a number or string", name)
	}

	if id <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return id, nil
}
