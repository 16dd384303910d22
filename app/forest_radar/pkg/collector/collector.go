// Package collector 每个清单领域一个 Collector，把数据源返回的原始属性映射为记录。
package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/config"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/logger"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/model"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/source"
)

// Result 一次采集的结果
type Result struct {
	Records []model.Record
	Note    string
	// Partial 部分对象未能采集，即使没有剩余记录也不能当作无数据
	Partial bool
}

// Section 转换为 Section，状态由 Partial 决定而不是 Note
func (r Result) Section(def model.SectionDef) model.Section {
	if r.Partial {
		return model.PartialSection(def, r.Records, r.Note)
	}
	return model.NewSection(def, r.Records, r.Note)
}

// Collector 采集一个领域
type Collector interface {
	Def() model.SectionDef
	Collect(ctx context.Context, env *Env) (Result, error)
}

// Env 同一次运行中所有 Collector 共享的上下文
type Env struct {
	Source source.Source
	Now    time.Time
	Tiers  config.TierConfig

	sections map[int]model.Section
}

// NewEnv 创建共享上下文
func NewEnv(src source.Source, now time.Time, tiers config.TierConfig) *Env {
	return &Env{Source: src, Now: now, Tiers: tiers, sections: make(map[int]model.Section)}
}

// Add 记录已完成的 Section，供后续 Collector 使用
func (e *Env) Add(s model.Section) {
	e.sections[s.Ordinal] = s
}

// Section 取已完成的 Section
func (e *Env) Section(ordinal int) (model.Section, bool) {
	s, ok := e.sections[ordinal]
	return s, ok
}

// DomainControllers 第 2 节采集到的域控，该节失败时返回错误
func (e *Env) DomainControllers() ([]model.DomainController, error) {
	s, ok := e.sections[model.SectionDomainControllers]
	if !ok {
		return nil, fmt.Errorf("domain controller inventory has not been collected")
	}
	if s.State == model.StateFailed {
		return nil, fmt.Errorf("domain controller inventory unavailable: %s", s.Note)
	}
	dcs := make([]model.DomainController, 0, len(s.Records))
	for _, r := range s.Records {
		if dc, ok := r.(model.DomainController); ok {
			dcs = append(dcs, dc)
		}
	}
	return dcs, nil
}

// query 执行一次查询并记录调试日志
func (e *Env) query(ctx context.Context, req *source.Request) ([]source.Attributes, error) {
	resp, err := e.Source.Query(ctx, req)
	if err != nil {
		return nil, err
	}
	logger.Log.WithField("query", req.String()).Debugf("返回 %d 条记录", len(resp.Records))
	return resp.Records, nil
}

// noDomainControllers 依赖域控列表的 Section 在没有域控时的说明
const noDomainControllers = "No domain controllers were discovered."

// notes 汇总部分失败的说明
type notes []string

func (n *notes) addf(format string, args ...any) {
	*n = append(*n, fmt.Sprintf(format, args...))
}

func (n notes) String() string {
	return strings.Join(n, "; ")
}

type funcCollector struct {
	def model.SectionDef
	fn  func(ctx context.Context, env *Env) (Result, error)
}

func (c funcCollector) Def() model.SectionDef { return c.def }

func (c funcCollector) Collect(ctx context.Context, env *Env) (Result, error) {
	return c.fn(ctx, env)
}

func newCollector(ordinal int, fn func(ctx context.Context, env *Env) (Result, error)) Collector {
	def, ok := model.Def(ordinal)
	if !ok {
		panic(fmt.Sprintf("collector: no section with ordinal %d", ordinal))
	}
	return funcCollector{def: def, fn: fn}
}

// Default 固定顺序的全部 Collector
func Default() []Collector {
	return []Collector{
		newCollector(model.SectionForest, collectForest),
		newCollector(model.SectionDomainControllers, collectDomainControllers),
		newCollector(model.SectionReplication, collectReplication),
		newCollector(model.SectionSites, collectSites),
		newCollector(model.SectionDNS, collectDNSZones),
		newCollector(model.SectionDHCP, collectDHCPScopes),
		newCollector(model.SectionTier0, tierCollector(model.Tier0)),
		newCollector(model.SectionTier1, tierCollector(model.Tier1)),
		newCollector(model.SectionTier2, tierCollector(model.Tier2)),
		newCollector(model.SectionServiceAccounts, collectServiceAccounts),
		newCollector(model.SectionMailServers, collectMailServers),
		newCollector(model.SectionPolicyObjects, collectPolicyObjects),
		newCollector(model.SectionFSMO, collectFSMORoles),
	}
}
