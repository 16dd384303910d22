package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/collector"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/config"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/logger"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/model"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/source"
)

// ErrPrecondition 目录不可用，整次运行中止
var ErrPrecondition = errors.New("directory is not reachable")

// Engine 核心处理引擎，按固定顺序逐个运行 Collector
type Engine struct {
	src        source.Source
	tiers      config.TierConfig
	collectors []collector.Collector
	now        func() time.Time
}

// Option 引擎选项
type Option func(*Engine)

// WithCollectors 替换默认的 Collector 列表
func WithCollectors(cs []collector.Collector) Option {
	return func(e *Engine) { e.collectors = cs }
}

// WithClock 替换时钟
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine 创建引擎实例
func NewEngine(cfg *config.Config, src source.Source, opts ...Option) *Engine {
	e := &Engine{
		src:        src,
		tiers:      cfg.Tiers,
		collectors: collector.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunOptions 运行选项
type RunOptions struct {
	RunID            string
	Title            string
	OutputRoot       string
	ProgressCallback func(status string, progress int)
}

// Run 执行一次清单采集，目录不可用时返回 ErrPrecondition，其余失败都记录在对应 Section 中
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*model.ReportDocument, error) {
	progress := func(status string, p int) {
		if opts.ProgressCallback != nil {
			opts.ProgressCallback(status, p)
		}
	}

	start := e.now()
	logger.Log.Infof("开始采集清单 [%s]，共 %d 个 Section", opts.RunID, len(e.collectors))
	progress("starting", 0)

	if err := source.Ping(ctx, e.src); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrecondition, err)
	}
	progress("directory reachable", 5)

	env := collector.NewEnv(e.src, start, e.tiers)
	doc := &model.ReportDocument{
		Meta: model.RunMeta{
			RunID:       opts.RunID,
			Title:       opts.Title,
			GeneratedAt: start,
			Timestamp:   model.RunTimestamp(start),
			OutputRoot:  opts.OutputRoot,
		},
	}

	total := len(e.collectors)
	for i, c := range e.collectors {
		s := runCollector(ctx, env, c)
		env.Add(s)
		doc.Sections = append(doc.Sections, s)
		logSection(s)
		progress(fmt.Sprintf("collected section: %s", s.Name), 5+(i+1)*90/total)
	}

	sort.SliceStable(doc.Sections, func(i, j int) bool {
		return doc.Sections[i].Ordinal < doc.Sections[j].Ordinal
	})

	if s, ok := doc.Section(model.SectionForest); ok && len(s.Records) > 0 {
		if f, ok := s.Records[0].(model.Forest); ok {
			doc.Meta.Forest = f.Name
		}
	}
	doc.Meta.Elapsed = e.now().Sub(start)

	logger.Log.Infof("清单采集完成: %d 条记录, %d 个 Section 失败, 耗时 %s",
		doc.RecordCount(), doc.FailedCount(), doc.Meta.Elapsed.Round(time.Millisecond))
	progress("completed", 100)
	return doc, nil
}

// runCollector 捕获 Collector 的错误与 panic，总是返回一个 Section
func runCollector(ctx context.Context, env *collector.Env, c collector.Collector) (s model.Section) {
	def := c.Def()
	defer func() {
		if r := recover(); r != nil {
			s = model.FailedSection(def, fmt.Errorf("collector panicked: %v", r))
		}
	}()

	res, err := c.Collect(ctx, env)
	if err != nil {
		return model.FailedSection(def, err)
	}
	return res.Section(def)
}

func logSection(s model.Section) {
	entry := logger.Log.WithFields(logrus.Fields{
		"ordinal": s.Ordinal,
		"section": s.Name,
		"records": len(s.Records),
	})
	switch s.State {
	case model.StatePopulated:
		entry.Info("Section 采集完成")
	case model.StatePartial:
		entry.Warnf("Section 部分采集: %s", s.Note)
	case model.StateEmpty:
		entry.Warnf("Section 无数据: %s", s.Note)
	default:
		entry.Errorf("Section 采集失败: %s", s.Note)
	}
}
