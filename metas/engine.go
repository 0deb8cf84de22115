package metas

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoPartitions is returned by Run when it has nothing to process.
var ErrNoPartitions = errors.New("no partitions to process")

// Partition is one batch of input. Rows may perform I/O; it is called once,
// from a single worker.
type Partition interface {
	Name() string
	Rows(ctx context.Context) ([]RawRow, error)
}

// SlicePartition is an in-memory Partition.
type SlicePartition struct {
	Label string
	Data  []RawRow
}

func (p SlicePartition) Name() string { return p.Label }

func (p SlicePartition) Rows(context.Context) ([]RawRow, error) { return p.Data, nil }

// Engine runs the map, combine and reduce phases over a set of partitions.
type Engine struct {
	Registry *Registry
	// Workers bounds concurrency in both parallel phases. Zero means
	// GOMAXPROCS.
	Workers        int
	IncludeOverall bool
	Logger         *zap.Logger
}

// Stats summarizes one run.
type Stats struct {
	Partitions       int
	FailedPartitions int
	Rows             int
	Courts           int
	Excluded         int
	MapDuration      time.Duration
	CombineDuration  time.Duration
	ReduceDuration   time.Duration
}

// Result is the output of Run.
type Result struct {
	Table       SummaryTable
	Diagnostics []Diagnostic
	Stats       Stats
}

type partitionSlot struct {
	result PartialResult
	err    error
	stack  []byte
}

// Run processes every partition. A partition that fails to load, or panics
// while aggregating, is excluded and reported as a diagnostic; the rest of the
// run is unaffected. The only error returned is ctx's.
func (e *Engine) Run(ctx context.Context, parts []Partition) (*Result, error) {
	if e.Registry == nil {
		return nil, errors.New("engine: nil registry")
	}
	if len(parts) == 0 {
		return nil, ErrNoPartitions
	}
	log := e.logger()
	fields := e.Registry.Fields()
	res := &Result{Stats: Stats{Partitions: len(parts)}}

	start := time.Now()
	slots := make([]partitionSlot, len(parts))
	g := new(errgroup.Group)
	g.SetLimit(e.workers())
	for i, p := range parts {
		i, p := i, p
		g.Go(func() error {
			slots[i] = aggregatePartition(ctx, p, fields)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Stats.MapDuration = time.Since(start)

	start = time.Now()
	comb := NewCombiner()
	for i, s := range slots {
		if s.err != nil {
			res.Stats.FailedPartitions++
			logFields := []zap.Field{zap.String("partition", parts[i].Name()), zap.Error(s.err)}
			if s.stack != nil {
				logFields = append(logFields, zap.ByteString("stack", s.stack))
			}
			log.Warn("partition excluded", logFields...)
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Kind:      KindPartitionFailed,
				Partition: parts[i].Name(),
				Detail:    s.err.Error(),
			})
			continue
		}
		res.Stats.Rows += s.result.Rows
		res.Diagnostics = append(res.Diagnostics, comb.Add(s.result)...)
	}
	records := comb.Records()
	for _, d := range comb.Diagnostics() {
		log.Info("branch conflict",
			zap.String("court", d.Court),
			zap.String("partition", d.Partition),
			zap.String("branch", d.Branch))
	}
	res.Diagnostics = append(res.Diagnostics, comb.Diagnostics()...)
	res.Stats.Courts = len(records)
	res.Stats.CombineDuration = time.Since(start)
	log.Debug("combined partitions",
		zap.Int("courts", len(records)),
		zap.Int("rows", res.Stats.Rows),
		zap.Duration("map", res.Stats.MapDuration),
		zap.Duration("combine", res.Stats.CombineDuration))

	start = time.Now()
	ev := Evaluator{Registry: e.Registry}
	metrics := make([]MetricRecord, len(records))
	evalDiags := make([][]Diagnostic, len(records))
	g = new(errgroup.Group)
	g.SetLimit(e.workers())
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			metrics[i], evalDiags[i] = ev.EvaluateCourt(rec)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, ds := range evalDiags {
		for _, d := range ds {
			if d.Kind == KindBranchNotRecognized {
				res.Stats.Excluded++
				log.Warn("branch not recognized",
					zap.String("court", records[i].Court),
					zap.String("branch", records[i].Branch))
			}
		}
		res.Diagnostics = append(res.Diagnostics, ds...)
	}
	res.Table = Assemble(metrics, e.Registry.Columns(), e.IncludeOverall)
	res.Stats.ReduceDuration = time.Since(start)
	log.Debug("evaluated courts",
		zap.Int("courts", len(records)),
		zap.Int("excluded", res.Stats.Excluded),
		zap.Duration("reduce", res.Stats.ReduceDuration))
	return res, nil
}

// aggregatePartition loads and aggregates one partition, turning a panic into
// an error so a single bad batch cannot take down its siblings.
func aggregatePartition(ctx context.Context, p Partition, fields []string) (slot partitionSlot) {
	defer func() {
		if r := recover(); r != nil {
			slot = partitionSlot{err: fmt.Errorf("panic: %v", r), stack: debug.Stack()}
		}
	}()
	if err := ctx.Err(); err != nil {
		return partitionSlot{err: err}
	}
	rows, err := p.Rows(ctx)
	if err != nil {
		return partitionSlot{err: fmt.Errorf("read: %w", err)}
	}
	return partitionSlot{result: Aggregate(p.Name(), rows, fields)}
}

func (e *Engine) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
