// Package adminserver exposes the admin gRPC service. The service
// descriptor and codec are written by hand against the adminpb wire
// messages, so there is no generated code anywhere on this surface.
package adminserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"

	"matchbox/api/adminpb"
	"matchbox/domain/types"
	"matchbox/marketdata"
)

// Codec marshals adminpb messages for grpc. Registered per-connection via
// ForceCodec / ForceServerCodec rather than globally.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(adminpb.Message)
	if !ok {
		return nil, fmt.Errorf("adminserver: cannot marshal %T", v)
	}
	return m.MarshalBinary()
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(adminpb.Message)
	if !ok {
		return fmt.Errorf("adminserver: cannot unmarshal into %T", v)
	}
	return m.UnmarshalBinary(data)
}

func (Codec) Name() string { return "adminpb" }

// StatsSource supplies the live numbers behind GetStats.
type StatsSource interface {
	StartUnix() int64
	OpenOrders(t types.TickerID) int
}

// Service answers the admin RPCs from the publisher's shadow books and a
// stats source.
type Service struct {
	shadow *marketdata.Shadow
	stats  StatsSource
}

func NewService(shadow *marketdata.Shadow, stats StatsSource) *Service {
	return &Service{shadow: shadow, stats: stats}
}

func (s *Service) GetDepth(_ context.Context, req *adminpb.DepthRequest) (*adminpb.DepthResponse, error) {
	if req.TickerID >= types.MaxTickers {
		return nil, fmt.Errorf("adminserver: ticker %d out of range", req.TickerID)
	}
	view := s.shadow.Depth(types.TickerID(req.TickerID), int(req.Levels))
	resp := &adminpb.DepthResponse{
		TickerID: req.TickerID,
		LastSeq:  uint64(view.LastSeq),
	}
	for _, l := range view.Bids {
		resp.Bids = append(resp.Bids, adminpb.DepthLevel{Price: int64(l.Price), Qty: int64(l.Qty), Orders: uint32(l.Orders)})
	}
	for _, l := range view.Asks {
		resp.Asks = append(resp.Asks, adminpb.DepthLevel{Price: int64(l.Price), Qty: int64(l.Qty), Orders: uint32(l.Orders)})
	}
	return resp, nil
}

func (s *Service) GetStats(context.Context, *adminpb.StatsRequest) (*adminpb.StatsResponse, error) {
	resp := &adminpb.StatsResponse{
		StartUnix: s.stats.StartUnix(),
		LastSeq:   uint64(s.shadow.LastSeq()),
	}
	for t := 0; t < types.MaxTickers; t++ {
		resp.OpenOrders = append(resp.OpenOrders, uint64(s.stats.OpenOrders(types.TickerID(t))))
	}
	return resp, nil
}

const serviceName = "matchbox.admin.Admin"

// Method paths used by the exctl client.
const (
	MethodGetDepth = "/" + serviceName + "/GetDepth"
	MethodGetStats = "/" + serviceName + "/GetStats"
)

func getDepthHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(adminpb.DepthRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).GetDepth(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetDepth}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Service).GetDepth(ctx, req.(*adminpb.DepthRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(adminpb.StatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).GetStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetStats}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Service).GetStats(ctx, req.(*adminpb.StatsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Service)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetDepth", Handler: getDepthHandler},
		{MethodName: "GetStats", Handler: getStatsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "matchbox/admin",
}

// Server wraps the grpc server and its listener.
type Server struct {
	grpc *grpc.Server
	addr string
	log  *slog.Logger
}

// New builds the admin server around a service instance.
func New(addr string, svc *Service, log *slog.Logger) *Server {
	gs := grpc.NewServer(grpc.ForceServerCodec(Codec{}))
	gs.RegisterService(&serviceDesc, svc)
	return &Server{grpc: gs, addr: addr, log: log.With("component", "admin")}
}

// Start binds and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("adminserver: listen %s: %w", s.addr, err)
	}
	go func() {
		s.log.Info("admin server listening", "addr", ln.Addr().String())
		if err := s.grpc.Serve(ln); err != nil {
			s.log.Error("admin server failed", "err", err)
		}
	}()
	return nil
}

// Stop drains in-flight RPCs and shuts down.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}
