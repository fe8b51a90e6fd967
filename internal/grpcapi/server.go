package grpcapi

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"quantbts/internal/backtest"
	"quantbts/internal/domain"
	"quantbts/internal/stats"
	"quantbts/internal/store"
	"quantbts/internal/strategy"
)

const (
	serviceName    = "quantbts.v1.Backtester"
	runMethod      = "/" + serviceName + "/Run"
	runBatchMethod = "/" + serviceName + "/RunBatch"
)

// backtester is the handler type checked by grpc.Server.RegisterService.
type backtester interface {
	Run(ctx context.Context, req RunRequest) (Reply, error)
}

var _ backtester = (*Server)(nil)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*backtester)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: runHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "RunBatch", Handler: runBatchHandler, ServerStreams: true},
	},
	Metadata: "quantbts/v1/backtester.proto",
}

// Server implements the Backtester gRPC service.
type Server struct {
	runner *backtest.Runner
	opts   stats.ReportOptions
	log    *slog.Logger
}

// NewServer creates a gRPC service backed by runner. opts carries the report
// parameters; a request benchmark replaces opts.Benchmark.
func NewServer(runner *backtest.Runner, opts stats.ReportOptions, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{runner: runner, opts: opts, log: log}
}

// RegisterGRPC registers the service on the given gRPC server instance.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// Run executes one job and computes its report.
func (s *Server) Run(ctx context.Context, req RunRequest) (Reply, error) {
	if req.End == 0 {
		req.End = 99991231
	}
	res, err := s.runner.Run(ctx, req.Job)
	if err != nil {
		return Reply{}, err
	}
	opts := s.opts
	if req.Benchmark != "" {
		if opts.Benchmark, err = s.runner.Benchmark(ctx, req.Benchmark, res); err != nil {
			return Reply{}, err
		}
	}
	return Reply{
		Strategy: res.Strategy,
		Symbol:   req.Symbol,
		Start:    res.Bars[0].Date,
		End:      res.Bars[len(res.Bars)-1].Date,
		Bars:     len(res.Bars),
		Trades:   res.NumTrades(),
		Report:   res.Stats.Report(opts),
	}, nil
}

// runBatch runs every job with the runner's parallelism and streams each
// reply as it completes. A failed job is reported in its reply and does not
// stop the others.
func (s *Server) runBatch(req BatchRequest, stream grpc.ServerStream) error {
	ctx := stream.Context()
	var mu sync.Mutex // grpc streams do not allow concurrent SendMsg

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.runner.MaxParallel())
	for i, job := range req.Jobs {
		g.Go(func() error {
			reply, err := s.Run(gctx, job)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				reply = Reply{Strategy: job.Strategy, Symbol: job.Symbol, Error: err.Error()}
			}
			reply.Index = i
			msg, err := encodeReply(reply)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return stream.SendMsg(msg)
		})
	}
	if err := g.Wait(); err != nil {
		return toStatus(err)
	}
	s.log.Info("grpc batch complete", "jobs", len(req.Jobs))
	return nil
}

func runHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	handle := func(ctx context.Context, req any) (any, error) {
		var r RunRequest
		if err := fromStruct(req.(*structpb.Struct), &r); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		reply, err := srv.(*Server).Run(ctx, r)
		if err != nil {
			return nil, toStatus(err)
		}
		return encodeReply(reply)
	}
	if interceptor == nil {
		return handle(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: runMethod}
	return interceptor(ctx, in, info, handle)
}

func runBatchHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	var req BatchRequest
	if err := fromStruct(in, &req); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return srv.(*Server).runBatch(req, stream)
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, store.ErrNotFound), errors.Is(err, domain.ErrEmptyBars):
		code = codes.NotFound
	case errors.Is(err, strategy.ErrUnknownStrategy),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidConfig):
		code = codes.InvalidArgument
	}
	return status.Error(code, err.Error())
}
