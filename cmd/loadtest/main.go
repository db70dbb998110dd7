package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	posv1 "github.com/vladislavdragonenkov/pos/api/pos/v1"
)

const idempotencyHeader = "idempotency-key"

type loadMode string

const (
	modeCommit     loadMode = "commit"
	modeCommitVoid loadMode = "commit-void"
)

type config struct {
	addr        string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	voidRate    int
	productID   int64
	stock       int
	quantity    int
	method      string
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

// stockCheck сверяет остаток товара после прогона с числом проведённых и аннулированных продаж.
type stockCheck struct {
	ProductID  int64 `json:"product_id"`
	Initial    int   `json:"initial"`
	Final      int   `json:"final"`
	Expected   int   `json:"expected"`
	Committed  int64 `json:"committed"`
	Voided     int64 `json:"voided"`
	Rejected   int64 `json:"rejected"`
	Consistent bool  `json:"consistent"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
	Stock             *stockCheck             `json:"stock,omitempty"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{
		methods: make(map[string]*methodStats),
	}
}

// record учитывает вызов. FailedPrecondition при проведении — штатный отказ
// из-за нехватки остатка, он не считается ошибкой.
func (c *collector) record(method string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{
			codes: make(map[string]int64),
		}
		c.methods[method] = stats
	}

	stats.calls++
	if code == codes.OK || code == codes.FailedPrecondition {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[code.String()]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) snapshot(name string) (methodReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[name]
	if !ok {
		return methodReport{}, false
	}
	return stats.report(), true
}

func (s *methodStats) report() methodReport {
	codesCopy := make(map[string]int64, len(s.codes))
	for code, count := range s.codes {
		codesCopy[code] = count
	}
	return methodReport{
		Calls:     s.calls,
		Success:   s.success,
		Failed:    s.failed,
		ErrorRate: ratio(s.failed, s.calls),
		Codes:     codesCopy,
		LatencyMs: buildLatencySummary(s.latencies),
	}
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	if scenarioStats := c.methods["scenario"]; scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success
		result.FailedScenarios = scenarioStats.failed
		result.ErrorRate = ratio(scenarioStats.failed, scenarioStats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		result.Methods[name] = stats.report()
	}
	return result
}

// tally — счётчики исходов проведения для сверки остатка.
type tally struct {
	committed atomic.Int64
	voided    atomic.Int64
	rejected  atomic.Int64
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string
	var timeoutValue string
	var durationValue string

	flag.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m, 15m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.IntVar(&cfg.connections, "connections", 20, "number of gRPC client connections")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-RPC timeout")
	flag.StringVar(&modeValue, "mode", string(modeCommit), "load mode: commit | commit-void")
	flag.IntVar(&cfg.voidRate, "void-rate", 0, "void probability in percent for commit mode (0..100)")
	flag.Int64Var(&cfg.productID, "product-id", 0, "product to sell; 0 creates a dedicated product and checks its stock afterwards")
	flag.IntVar(&cfg.stock, "stock", 100, "initial stock of the dedicated product")
	flag.IntVar(&cfg.quantity, "quantity", 1, "units per sale")
	flag.StringVar(&cfg.method, "method", "CASH", "payment method")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode
	cfg.method = strings.ToUpper(strings.TrimSpace(cfg.method))

	switch {
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.voidRate < 0 || cfg.voidRate > 100:
		return cfg, errors.New("void-rate must be between 0 and 100")
	case cfg.productID < 0:
		return cfg, errors.New("product-id must be >= 0")
	case cfg.stock < 0:
		return cfg, errors.New("stock must be >= 0")
	case cfg.quantity <= 0:
		return cfg, errors.New("quantity must be > 0")
	case cfg.method == "":
		return cfg, errors.New("method is required")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeCommit:
		return modeCommit, nil
	case modeCommitVoid:
		return modeCommitVoid, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]posv1.PointOfSaleClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, posv1.NewPointOfSaleClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())

	product, initialStock, err := prepareProduct(clients[0], cfg, runID)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to prepare product: %v\n", err)
		os.Exit(1)
	}

	col := newCollector()
	counts := &tally{}
	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func(cli posv1.PointOfSaleClient) {
			defer wg.Done()
			for id := range jobs {
				_ = runScenario(cli, cfg, product, id, runID, col, counts)
			}
		}(clients[workerID%len(clients)])
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))
	if cfg.productID == 0 {
		check, checkErr := verifyStock(clients[0], cfg, product.ID, initialStock, counts)
		if checkErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to verify stock: %v\n", checkErr)
			os.Exit(1)
		}
		result.Stock = &check
	}

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 || (result.Stock != nil && !result.Stock.Consistent) {
		os.Exit(1)
	}
}

// prepareProduct создаёт отдельный товар под прогон или читает указанный.
func prepareProduct(client posv1.PointOfSaleClient, cfg config, runID string) (posv1.Product, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	if cfg.productID > 0 {
		resp, err := client.GetProduct(ctx, &posv1.GetProductRequest{ID: cfg.productID})
		if err != nil {
			return posv1.Product{}, 0, fmt.Errorf("get product %d: %w", cfg.productID, err)
		}
		return resp.Product, resp.Product.Stock, nil
	}

	price := decimal.NewFromInt(1)
	stock := decimal.NewFromInt(int64(cfg.stock))
	resp, err := client.CreateProduct(ctx, &posv1.CreateProductRequest{
		Name:     "loadtest-" + runID,
		Category: "Load",
		Price:    &price,
		Stock:    &stock,
	})
	if err != nil {
		return posv1.Product{}, 0, fmt.Errorf("create product: %w", err)
	}
	return resp.Product, resp.Product.Stock, nil
}

// verifyStock проверяет, что касса не продала больше, чем было на складе,
// и что остаток совпадает с проведёнными продажами.
func verifyStock(client posv1.PointOfSaleClient, cfg config, productID int64, initial int, counts *tally) (stockCheck, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	resp, err := client.GetProduct(ctx, &posv1.GetProductRequest{ID: productID})
	if err != nil {
		return stockCheck{}, fmt.Errorf("get product %d: %w", productID, err)
	}
	return buildStockCheck(productID, initial, resp.Product.Stock, cfg.quantity, counts), nil
}

func buildStockCheck(productID int64, initial, final, quantity int, counts *tally) stockCheck {
	committed := counts.committed.Load()
	voided := counts.voided.Load()
	sold := int(committed-voided) * quantity
	expected := initial - sold

	return stockCheck{
		ProductID:  productID,
		Initial:    initial,
		Final:      final,
		Expected:   expected,
		Committed:  committed,
		Voided:     voided,
		Rejected:   counts.rejected.Load(),
		Consistent: expected >= 0 && final == expected,
	}
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// runScenario проводит продажу с точной оплатой и, если нужно, аннулирует её.
func runScenario(
	client posv1.PointOfSaleClient,
	cfg config,
	product posv1.Product,
	index int,
	runID string,
	col *collector,
	counts *tally,
) error {
	scenarioStart := time.Now()
	scenarioCode := codes.OK
	defer func() {
		col.record("scenario", time.Since(scenarioStart), scenarioCode)
	}()

	amount := product.Price.Mul(decimal.NewFromInt(int64(cfg.quantity)))
	req := &posv1.CommitSaleRequest{
		Items:    []posv1.CartItem{{ProductID: product.ID, Quantity: cfg.quantity}},
		Payments: []posv1.Payment{{Method: cfg.method, Amount: amount}},
	}

	commitKey := fmt.Sprintf("lt-commit-%s-%d", runID, index)
	resp, err := callCommitSale(client, cfg.timeout, req, commitKey, col)
	if err != nil {
		scenarioCode = grpcCode(err)
		if scenarioCode == codes.FailedPrecondition {
			counts.rejected.Add(1)
		}
		return err
	}
	saleID := resp.Sale.ID
	if saleID == "" {
		scenarioCode = codes.Internal
		return errors.New("commit response returned empty sale id")
	}
	counts.committed.Add(1)

	if cfg.mode == modeCommitVoid || (cfg.mode == modeCommit && shouldVoidScenario(index, cfg.voidRate)) {
		voidKey := fmt.Sprintf("lt-void-%s-%d", runID, index)
		if err := callVoidSale(client, cfg.timeout, saleID, voidKey, col); err != nil {
			scenarioCode = grpcCode(err)
			return err
		}
		counts.voided.Add(1)
	}

	return nil
}

func callCommitSale(
	client posv1.PointOfSaleClient,
	timeout time.Duration,
	req *posv1.CommitSaleRequest,
	key string,
	col *collector,
) (*posv1.CommitSaleResponse, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, idempotencyHeader, key)

	resp, err := client.CommitSale(ctx, req)
	col.record("CommitSale", time.Since(start), grpcCode(err))
	return resp, err
}

func callVoidSale(
	client posv1.PointOfSaleClient,
	timeout time.Duration,
	saleID, key string,
	col *collector,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, idempotencyHeader, key)

	_, err := client.VoidSale(ctx, &posv1.VoidSaleRequest{ID: saleID})
	col.record("VoidSale", time.Since(start), grpcCode(err))
	return err
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}

func shouldVoidScenario(index, voidRate int) bool {
	if voidRate <= 0 {
		return false
	}
	if voidRate >= 100 {
		return true
	}
	return index%100 < voidRate
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	fmt.Println("Load test summary")
	fmt.Printf("mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Printf("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == "scenario" {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		fmt.Printf(
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}

	if s := result.Stock; s != nil {
		fmt.Printf("stock product=%d initial=%d final=%d expected=%d committed=%d voided=%d rejected=%d consistent=%t\n",
			s.ProductID, s.Initial, s.Final, s.Expected, s.Committed, s.Voided, s.Rejected, s.Consistent)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
