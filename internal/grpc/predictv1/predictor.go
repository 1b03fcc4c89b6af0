// Package predictv1 declares the mirador.predict.v1.Predictor gRPC service.
// Messages are google.protobuf.Struct documents so the service can be called
// with any generic gRPC client without shipping a schema.
package predictv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "mirador.predict.v1.Predictor"

const (
	Predictor_AddDataPoint_FullMethodName                  = "/" + ServiceName + "/AddDataPoint"
	Predictor_PredictSystemFailure_FullMethodName          = "/" + ServiceName + "/PredictSystemFailure"
	Predictor_PredictResourceExhaustion_FullMethodName     = "/" + ServiceName + "/PredictResourceExhaustion"
	Predictor_PredictPerformanceDegradation_FullMethodName = "/" + ServiceName + "/PredictPerformanceDegradation"
	Predictor_PredictMaintenanceNeeds_FullMethodName       = "/" + ServiceName + "/PredictMaintenanceNeeds"
	Predictor_ComprehensiveForecast_FullMethodName         = "/" + ServiceName + "/ComprehensiveForecast"
	Predictor_TrainModel_FullMethodName                    = "/" + ServiceName + "/TrainModel"
	Predictor_HealthCheck_FullMethodName                   = "/" + ServiceName + "/HealthCheck"
)

// PredictorServer is the server API for the Predictor service.
type PredictorServer interface {
	AddDataPoint(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PredictSystemFailure(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PredictResourceExhaustion(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PredictPerformanceDegradation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PredictMaintenanceNeeds(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ComprehensiveForecast(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TrainModel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	HealthCheck(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedPredictorServer can be embedded to keep forward compatibility.
type UnimplementedPredictorServer struct{}

func (UnimplementedPredictorServer) AddDataPoint(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method AddDataPoint not implemented")
}
func (UnimplementedPredictorServer) PredictSystemFailure(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method PredictSystemFailure not implemented")
}
func (UnimplementedPredictorServer) PredictResourceExhaustion(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method PredictResourceExhaustion not implemented")
}
func (UnimplementedPredictorServer) PredictPerformanceDegradation(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method PredictPerformanceDegradation not implemented")
}
func (UnimplementedPredictorServer) PredictMaintenanceNeeds(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method PredictMaintenanceNeeds not implemented")
}
func (UnimplementedPredictorServer) ComprehensiveForecast(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ComprehensiveForecast not implemented")
}
func (UnimplementedPredictorServer) TrainModel(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method TrainModel not implemented")
}
func (UnimplementedPredictorServer) HealthCheck(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method HealthCheck not implemented")
}

// RegisterPredictorServer attaches srv to the registrar.
func RegisterPredictorServer(s grpc.ServiceRegistrar, srv PredictorServer) {
	s.RegisterService(&Predictor_ServiceDesc, srv)
}

type unaryCall func(PredictorServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PredictorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PredictorServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Predictor_ServiceDesc is the grpc.ServiceDesc for the Predictor service.
var Predictor_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PredictorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AddDataPoint", Handler: unaryHandler(Predictor_AddDataPoint_FullMethodName, PredictorServer.AddDataPoint)},
		{MethodName: "PredictSystemFailure", Handler: unaryHandler(Predictor_PredictSystemFailure_FullMethodName, PredictorServer.PredictSystemFailure)},
		{MethodName: "PredictResourceExhaustion", Handler: unaryHandler(Predictor_PredictResourceExhaustion_FullMethodName, PredictorServer.PredictResourceExhaustion)},
		{MethodName: "PredictPerformanceDegradation", Handler: unaryHandler(Predictor_PredictPerformanceDegradation_FullMethodName, PredictorServer.PredictPerformanceDegradation)},
		{MethodName: "PredictMaintenanceNeeds", Handler: unaryHandler(Predictor_PredictMaintenanceNeeds_FullMethodName, PredictorServer.PredictMaintenanceNeeds)},
		{MethodName: "ComprehensiveForecast", Handler: unaryHandler(Predictor_ComprehensiveForecast_FullMethodName, PredictorServer.ComprehensiveForecast)},
		{MethodName: "TrainModel", Handler: unaryHandler(Predictor_TrainModel_FullMethodName, PredictorServer.TrainModel)},
		{MethodName: "HealthCheck", Handler: unaryHandler(Predictor_HealthCheck_FullMethodName, PredictorServer.HealthCheck)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mirador/predict/v1/predictor.proto",
}

// PredictorClient is the client API for the Predictor service.
type PredictorClient interface {
	AddDataPoint(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	PredictSystemFailure(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	PredictResourceExhaustion(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	PredictPerformanceDegradation(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	PredictMaintenanceNeeds(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ComprehensiveForecast(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	TrainModel(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	HealthCheck(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type predictorClient struct {
	cc grpc.ClientConnInterface
}

// NewPredictorClient wraps a client connection.
func NewPredictorClient(cc grpc.ClientConnInterface) PredictorClient {
	return &predictorClient{cc: cc}
}

func (c *predictorClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *predictorClient) AddDataPoint(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, Predictor_AddDataPoint_FullMethodName, in, opts)
}

func (c *predictorClient) PredictSystemFailure(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, Predictor_PredictSystemFailure_FullMethodName, in, opts)
}

func (c *predictorClient) PredictResourceExhaustion(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, Predictor_PredictResourceExhaustion_FullMethodName, in, opts)
}

func (c *predictorClient) PredictPerformanceDegradation(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, Predictor_PredictPerformanceDegradation_FullMethodName, in, opts)
}

func (c *predictorClient) PredictMaintenanceNeeds(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, Predictor_PredictMaintenanceNeeds_FullMethodName, in, opts)
}

func (c *predictorClient) ComprehensiveForecast(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, Predictor_ComprehensiveForecast_FullMethodName, in, opts)
}

func (c *predictorClient) TrainModel(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, Predictor_TrainModel_FullMethodName, in, opts)
}

func (c *predictorClient) HealthCheck(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, Predictor_HealthCheck_FullMethodName, in, opts)
}
