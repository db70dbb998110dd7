package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	posv1 "github.com/vladislavdragonenkov/pos/api/pos/v1"
)

type fakePointOfSaleClient struct {
	posv1.PointOfSaleClient

	commitFn func(context.Context, *posv1.CommitSaleRequest, ...grpc.CallOption) (*posv1.CommitSaleResponse, error)
	voidFn   func(context.Context, *posv1.VoidSaleRequest, ...grpc.CallOption) (*posv1.VoidSaleResponse, error)
}

func (f *fakePointOfSaleClient) CommitSale(ctx context.Context, req *posv1.CommitSaleRequest, opts ...grpc.CallOption) (*posv1.CommitSaleResponse, error) {
	if f.commitFn == nil {
		return nil, errors.New("unexpected CommitSale call")
	}
	return f.commitFn(ctx, req, opts...)
}

func (f *fakePointOfSaleClient) VoidSale(ctx context.Context, req *posv1.VoidSaleRequest, opts ...grpc.CallOption) (*posv1.VoidSaleResponse, error) {
	if f.voidFn == nil {
		return nil, errors.New("unexpected VoidSale call")
	}
	return f.voidFn(ctx, req, opts...)
}

func withCLIArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine

	os.Args = append([]string{"loadtest"}, args...)
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flag.CommandLine = fs

	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	fn()
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    loadMode
		wantErr string
	}{
		{name: "commit", input: "commit", want: modeCommit},
		{name: "commit-void", input: " commit-void ", want: modeCommitVoid},
		{name: "unsupported", input: "refund", wantErr: "unsupported mode"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseMode(tc.input)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("unexpected mode: got %q want %q", got, tc.want)
			}
		})
	}
}

func TestParseConfig(t *testing.T) {
	t.Run("count mode", func(t *testing.T) {
		withCLIArgs(t, []string{
			"-addr=127.0.0.1:50051",
			"-mode=commit",
			"-total=12",
			"-concurrency=3",
			"-connections=2",
			"-timeout=2s",
			"-void-rate=10",
			"-stock=50",
			"-quantity=2",
			"-method=card",
			"-output=/tmp/out.json",
		}, func() {
			cfg, err := parseConfig()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !cfg.totalSet {
				t.Fatalf("expected totalSet=true")
			}
			if cfg.mode != modeCommit || cfg.voidRate != 10 {
				t.Fatalf("unexpected mode config: %+v", cfg)
			}
			if cfg.total != 12 || cfg.concurrency != 3 || cfg.connections != 2 {
				t.Fatalf("unexpected numeric config: %+v", cfg)
			}
			if cfg.stock != 50 || cfg.quantity != 2 || cfg.productID != 0 {
				t.Fatalf("unexpected product config: %+v", cfg)
			}
			if cfg.method != "CARD" {
				t.Fatalf("expected upper-cased method, got %q", cfg.method)
			}
			if cfg.timeout != 2*time.Second {
				t.Fatalf("unexpected timeout: %s", cfg.timeout)
			}
		})
	})

	t.Run("duration mode", func(t *testing.T) {
		withCLIArgs(t, []string{"-duration=3s", "-concurrency=2", "-connections=1"}, func() {
			cfg, err := parseConfig()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.duration != 3*time.Second {
				t.Fatalf("unexpected duration: %s", cfg.duration)
			}
			if cfg.totalSet {
				t.Fatalf("expected totalSet=false when -total was not provided")
			}
		})
	})

	t.Run("validation errors", func(t *testing.T) {
		tests := []struct {
			name    string
			args    []string
			wantErr string
		}{
			{name: "invalid duration", args: []string{"-duration=bad"}, wantErr: "parse duration"},
			{name: "negative duration", args: []string{"-duration=-1s"}, wantErr: "duration must be >= 0"},
			{name: "invalid void rate", args: []string{"-void-rate=101"}, wantErr: "void-rate must be between 0 and 100"},
			{name: "empty total", args: []string{"-duration=0s", "-total=0"}, wantErr: "total must be > 0"},
			{name: "zero quantity", args: []string{"-quantity=0"}, wantErr: "quantity must be > 0"},
			{name: "negative stock", args: []string{"-stock=-1"}, wantErr: "stock must be >= 0"},
			{name: "blank method", args: []string{"-method= "}, wantErr: "method is required"},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				withCLIArgs(t, tc.args, func() {
					_, err := parseConfig()
					if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
						t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
					}
				})
			})
		}
	})
}

func TestDispatchJobs(t *testing.T) {
	t.Run("count mode", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(jobs, config{total: 5})

		var got []int
		for v := range jobs {
			got = append(got, v)
		}
		if !slices.Equal(got, []int{0, 1, 2, 3, 4}) {
			t.Fatalf("unexpected jobs sequence: %v", got)
		}
	})

	t.Run("duration with explicit max total", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(jobs, config{duration: time.Second, total: 3, totalSet: true})
		count := 0
		for range jobs {
			count++
		}
		if count != 3 {
			t.Fatalf("expected 3 jobs, got %d", count)
		}
	})
}

func TestCollector_InsufficientStockIsNotAFailure(t *testing.T) {
	c := newCollector()
	c.record("scenario", 10*time.Millisecond, codes.OK)
	c.record("scenario", 12*time.Millisecond, codes.FailedPrecondition)
	c.record("scenario", 20*time.Millisecond, codes.Internal)
	c.record("CommitSale", 15*time.Millisecond, codes.OK)

	snap, ok := c.snapshot("scenario")
	if !ok {
		t.Fatalf("scenario snapshot missing")
	}
	if snap.Calls != 3 || snap.Success != 2 || snap.Failed != 1 {
		t.Fatalf("unexpected scenario snapshot: %+v", snap)
	}
	if snap.Codes[codes.FailedPrecondition.String()] != 1 {
		t.Fatalf("unexpected codes: %+v", snap.Codes)
	}

	r := c.buildReport(time.Now(), 2*time.Second)
	if r.TotalScenarios != 3 || r.FailedScenarios != 1 {
		t.Fatalf("unexpected report totals: %+v", r)
	}
	if r.RPS <= 0 {
		t.Fatalf("expected positive rps, got %f", r.RPS)
	}
	if _, ok := r.Methods["CommitSale"]; !ok {
		t.Fatalf("expected CommitSale stats in report")
	}
}

func TestBuildStockCheck(t *testing.T) {
	counts := &tally{}
	counts.committed.Add(5)
	counts.voided.Add(2)
	counts.rejected.Add(4)

	check := buildStockCheck(7, 10, 4, 2, counts)
	if check.Expected != 4 || !check.Consistent {
		t.Fatalf("expected consistent stock, got %+v", check)
	}

	oversold := buildStockCheck(7, 10, 0, 4, counts)
	if oversold.Consistent {
		t.Fatalf("expected oversell to be reported, got %+v", oversold)
	}

	drifted := buildStockCheck(7, 10, 5, 2, counts)
	if drifted.Consistent {
		t.Fatalf("expected stock drift to be reported, got %+v", drifted)
	}
}

func TestUtilityFunctions(t *testing.T) {
	if got := grpcCode(nil); got != codes.OK {
		t.Fatalf("grpcCode(nil) = %s, want OK", got)
	}
	if got := grpcCode(status.Error(codes.Unavailable, "down")); got != codes.Unavailable {
		t.Fatalf("unexpected grpc code: %s", got)
	}
	if got := ratio(1, 4); got != 0.25 {
		t.Fatalf("ratio mismatch: %f", got)
	}
	if got := ratio(1, 0); got != 0 {
		t.Fatalf("ratio with zero total must be 0, got %f", got)
	}

	summary := buildLatencySummary([]float64{10, 20, 30, 40})
	if summary.P50 <= 0 || summary.P95 <= 0 || summary.Max != 40 {
		t.Fatalf("unexpected latency summary: %+v", summary)
	}

	if shouldVoidScenario(5, 0) || !shouldVoidScenario(5, 100) {
		t.Fatalf("unexpected void decision at the bounds")
	}
	if !shouldVoidScenario(105, 10) || shouldVoidScenario(115, 10) {
		t.Fatalf("unexpected void decision for 10%% rate")
	}

	if got := runTarget(config{total: 50}); got != "count:50" {
		t.Fatalf("unexpected run target: %s", got)
	}
	if got := runTarget(config{duration: 2 * time.Second, total: 10, totalSet: true}); got != "duration:2s,max-total:10" {
		t.Fatalf("unexpected capped duration run target: %s", got)
	}
}

func TestWriteJSONReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")

	sample := report{TotalScenarios: 2, SuccessScenarios: 2, Stock: &stockCheck{ProductID: 1, Consistent: true}}
	if err := writeJSONReport(path, sample); err != nil {
		t.Fatalf("writeJSONReport error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var decoded report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.TotalScenarios != 2 || decoded.Stock == nil || !decoded.Stock.Consistent {
		t.Fatalf("unexpected decoded report: %+v", decoded)
	}

	if err := writeJSONReport("../escape.json", sample); err == nil {
		t.Fatalf("expected error for path outside current directory")
	}
}

func TestRunScenario(t *testing.T) {
	product := posv1.Product{ID: 3, Price: decimal.RequireFromString("4.50")}
	runCfg := config{mode: modeCommitVoid, timeout: time.Second, quantity: 2, method: "CASH"}

	t.Run("commit and void", func(t *testing.T) {
		c := newCollector()
		counts := &tally{}
		client := &fakePointOfSaleClient{
			commitFn: func(ctx context.Context, req *posv1.CommitSaleRequest, _ ...grpc.CallOption) (*posv1.CommitSaleResponse, error) {
				mustHaveIdempotencyKey(t, ctx, "lt-commit-run-1-1")
				if len(req.Items) != 1 || req.Items[0].ProductID != 3 || req.Items[0].Quantity != 2 {
					t.Fatalf("unexpected items: %+v", req.Items)
				}
				if !req.Payments[0].Amount.Equal(decimal.RequireFromString("9")) {
					t.Fatalf("expected exact payment, got %s", req.Payments[0].Amount)
				}
				return &posv1.CommitSaleResponse{Sale: posv1.Sale{ID: "sale-1"}}, nil
			},
			voidFn: func(ctx context.Context, req *posv1.VoidSaleRequest, _ ...grpc.CallOption) (*posv1.VoidSaleResponse, error) {
				mustHaveIdempotencyKey(t, ctx, "lt-void-run-1-1")
				if req.ID != "sale-1" {
					t.Fatalf("unexpected sale id: %s", req.ID)
				}
				return &posv1.VoidSaleResponse{Sale: posv1.Sale{ID: req.ID, Status: "VOID"}}, nil
			},
		}

		if err := runScenario(client, runCfg, product, 1, "run-1", c, counts); err != nil {
			t.Fatalf("runScenario failed: %v", err)
		}
		if counts.committed.Load() != 1 || counts.voided.Load() != 1 {
			t.Fatalf("unexpected tally: committed=%d voided=%d", counts.committed.Load(), counts.voided.Load())
		}
		if _, ok := c.snapshot("VoidSale"); !ok {
			t.Fatalf("VoidSale metric missing")
		}
	})

	t.Run("insufficient stock", func(t *testing.T) {
		counts := &tally{}
		client := &fakePointOfSaleClient{
			commitFn: func(context.Context, *posv1.CommitSaleRequest, ...grpc.CallOption) (*posv1.CommitSaleResponse, error) {
				return nil, status.Error(codes.FailedPrecondition, "insufficient stock")
			},
		}
		err := runScenario(client, runCfg, product, 2, "run-2", newCollector(), counts)
		if status.Code(err) != codes.FailedPrecondition {
			t.Fatalf("expected FailedPrecondition, got %v", err)
		}
		if counts.rejected.Load() != 1 || counts.committed.Load() != 0 {
			t.Fatalf("unexpected tally after rejection")
		}
	})

	t.Run("empty sale id", func(t *testing.T) {
		client := &fakePointOfSaleClient{
			commitFn: func(context.Context, *posv1.CommitSaleRequest, ...grpc.CallOption) (*posv1.CommitSaleResponse, error) {
				return &posv1.CommitSaleResponse{}, nil
			},
		}
		err := runScenario(client, runCfg, product, 3, "run-3", newCollector(), &tally{})
		if err == nil || !strings.Contains(err.Error(), "empty sale id") {
			t.Fatalf("expected empty id error, got %v", err)
		}
	})
}

func TestPrintReport(t *testing.T) {
	r := report{
		TotalScenarios:   2,
		SuccessScenarios: 2,
		Methods: map[string]methodReport{
			"scenario":   {Calls: 2, Success: 2},
			"CommitSale": {Calls: 2, Success: 2},
		},
		Stock: &stockCheck{ProductID: 9, Initial: 2, Expected: 0, Committed: 2, Consistent: true},
	}

	out := captureStdout(t, func() {
		printReport(r, config{mode: modeCommit, total: 2})
	})

	for _, want := range []string{"Load test summary", "CommitSale", "consistent=true"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got: %s", want, out)
		}
	}
}

// stockServer — касса в памяти, достаточная для прогона main.
type stockServer struct {
	posv1.UnimplementedPointOfSaleServer

	mu    sync.Mutex
	stock int
	sales int
}

func (s *stockServer) CreateProduct(_ context.Context, req *posv1.CreateProductRequest) (*posv1.CreateProductResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock = int(req.Stock.IntPart())
	return &posv1.CreateProductResponse{Product: posv1.Product{ID: 1, Name: req.Name, Price: *req.Price, Stock: s.stock}}, nil
}

func (s *stockServer) GetProduct(context.Context, *posv1.GetProductRequest) (*posv1.GetProductResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &posv1.GetProductResponse{Product: posv1.Product{ID: 1, Price: decimal.NewFromInt(1), Stock: s.stock}}, nil
}

func (s *stockServer) CommitSale(_ context.Context, req *posv1.CommitSaleRequest) (*posv1.CommitSaleResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qty := req.Items[0].Quantity
	if qty > s.stock {
		return nil, status.Error(codes.FailedPrecondition, "insufficient stock")
	}
	s.stock -= qty
	s.sales++
	return &posv1.CommitSaleResponse{Sale: posv1.Sale{ID: "sale-" + strconv.Itoa(s.sales)}}, nil
}

func TestMainSmoke(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func(lis net.Listener) {
		if err := lis.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			t.Fatalf("close listener: %v", err)
		}
	}(lis)

	server := &stockServer{}
	srv := grpc.NewServer()
	posv1.RegisterPointOfSaleServer(srv, server)
	go func() {
		_ = srv.Serve(lis)
	}()
	defer srv.Stop()

	outPath := filepath.Join(t.TempDir(), "main-report.json")

	withCLIArgs(t, []string{
		"-addr=" + lis.Addr().String(),
		"-mode=commit",
		"-total=5",
		"-stock=3",
		"-concurrency=2",
		"-connections=1",
		"-timeout=2s",
		"-output=" + outPath,
	}, func() {
		main()
	})

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("expected report file from main: %v", err)
	}
	var decoded report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.Stock == nil || !decoded.Stock.Consistent {
		t.Fatalf("expected consistent stock check, got %+v", decoded.Stock)
	}
	if decoded.Stock.Committed != 3 || decoded.Stock.Rejected != 2 || decoded.Stock.Final != 0 {
		t.Fatalf("unexpected stock check: %+v", decoded.Stock)
	}
}

func mustHaveIdempotencyKey(t *testing.T, ctx context.Context, want string) {
	t.Helper()

	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatalf("missing outgoing metadata")
	}
	values := md.Get(idempotencyHeader)
	if len(values) != 1 || values[0] != want {
		t.Fatalf("unexpected idempotency key: got=%v want=%q", values, want)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = oldStdout

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read captured output: %v", err)
	}
	_ = r.Close()

	return string(data)
}
