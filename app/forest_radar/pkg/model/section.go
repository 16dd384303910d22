package model

import (
	"errors"
	"time"
)

// Section 序号，决定文档顺序
const (
	SectionForest = iota + 1
	SectionDomainControllers
	SectionReplication
	SectionSites
	SectionDNS
	SectionDHCP
	SectionTier0
	SectionTier1
	SectionTier2
	SectionServiceAccounts
	SectionMailServers
	SectionPolicyObjects
	SectionFSMO
)

// SectionDef 固定的 Section 配置
type SectionDef struct {
	Ordinal int
	Name    string
	Kind    Kind
	// Dataset 导出时的数据集名称
	Dataset string
	// Exported 林信息与 FSMO 汇总只出现在文档中
	Exported bool
}

// Catalog 全部 Section，按序号排列
var Catalog = []SectionDef{
	{Ordinal: SectionForest, Name: "Forest Information", Kind: KindForest, Dataset: "Forest"},
	{Ordinal: SectionDomainControllers, Name: "Domain Controllers", Kind: KindDomainController, Dataset: "DomainControllers", Exported: true},
	{Ordinal: SectionReplication, Name: "Replication Health", Kind: KindReplication, Dataset: "Replication", Exported: true},
	{Ordinal: SectionSites, Name: "Sites and Subnets", Kind: KindSite, Dataset: "Sites", Exported: true},
	{Ordinal: SectionDNS, Name: "DNS Zones", Kind: KindDNSZone, Dataset: "DNSZones", Exported: true},
	{Ordinal: SectionDHCP, Name: "DHCP Scopes", Kind: KindDHCPScope, Dataset: "DHCPScopes", Exported: true},
	{Ordinal: SectionTier0, Name: "Tier 0 Privileged Accounts", Kind: KindTierAccount, Dataset: "Tier0Accounts", Exported: true},
	{Ordinal: SectionTier1, Name: "Tier 1 Privileged Accounts", Kind: KindTierAccount, Dataset: "Tier1Accounts", Exported: true},
	{Ordinal: SectionTier2, Name: "Tier 2 Privileged Accounts", Kind: KindTierAccount, Dataset: "Tier2Accounts", Exported: true},
	{Ordinal: SectionServiceAccounts, Name: "Service Accounts", Kind: KindServiceAccount, Dataset: "ServiceAccounts", Exported: true},
	{Ordinal: SectionMailServers, Name: "Exchange Servers", Kind: KindMailServer, Dataset: "MailServers", Exported: true},
	{Ordinal: SectionPolicyObjects, Name: "Group Policy Objects", Kind: KindPolicyObject, Dataset: "GroupPolicies", Exported: true},
	{Ordinal: SectionFSMO, Name: "FSMO Roles", Kind: KindFSMORole, Dataset: "FSMORoles"},
}

// Def 按序号查找 Section 配置
func Def(ordinal int) (SectionDef, bool) {
	for _, d := range Catalog {
		if d.Ordinal == ordinal {
			return d, true
		}
	}
	return SectionDef{}, false
}

// SectionState Section 的采集结果
type SectionState int

const (
	StatePopulated SectionState = iota
	// StatePartial 有记录，但部分对象未能采集，Note 说明缺失部分
	StatePartial
	// StateEmpty 查询成功但没有记录
	StateEmpty
	// StateFailed 采集失败，没有记录
	StateFailed
)

func (s SectionState) String() string {
	switch s {
	case StatePopulated:
		return "populated"
	case StatePartial:
		return "partial"
	case StateEmpty:
		return "empty"
	default:
		return "failed"
	}
}

// DefaultEmptyNote 采集器未说明原因时的空 Section 提示
const DefaultEmptyNote = "No records were returned."

// Section 一个清单领域的结果
type Section struct {
	SectionDef
	State   SectionState
	Records []Record
	Note    string
}

// NewSection 根据采集结果构建 Section
func NewSection(def SectionDef, records []Record, note string) Section {
	s := Section{SectionDef: def, Records: records, Note: note}
	switch {
	case len(records) == 0:
		s.State = StateEmpty
		s.Records = nil
		if s.Note == "" {
			s.Note = DefaultEmptyNote
		}
	case note != "":
		s.State = StatePartial
	default:
		s.State = StatePopulated
	}
	return s
}

// PartialSection 部分对象采集失败的 Section，没有剩余记录时同样是 StatePartial
func PartialSection(def SectionDef, records []Record, note string) Section {
	if note == "" {
		note = "Some objects could not be collected."
	}
	if len(records) == 0 {
		records = nil
	}
	return Section{SectionDef: def, State: StatePartial, Records: records, Note: note}
}

// FailedSection 采集失败的 Section，不携带任何记录
func FailedSection(def SectionDef, err error) Section {
	if err == nil {
		err = errors.New("collector failed without an error")
	}
	return Section{SectionDef: def, State: StateFailed, Note: err.Error()}
}

// Table 表格化视图，渲染与导出共用同一份
type Table struct {
	Columns []string
	Rows    [][]Cell
}

// Table 将记录投影为表格
func (s Section) Table() Table {
	t := Table{Columns: Columns(s.Kind), Rows: make([][]Cell, 0, len(s.Records))}
	for _, r := range s.Records {
		t.Rows = append(t.Rows, r.Cells())
	}
	return t
}

// RunMeta 运行元数据
type RunMeta struct {
	RunID       string
	Title       string
	Forest      string
	GeneratedAt time.Time
	// Timestamp 所有产物文件名中共用的运行时间戳
	Timestamp  string
	OutputRoot string
	Elapsed    time.Duration
}

// RunTimestamp 文件名使用的时间戳格式
func RunTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// ReportDocument 一次运行的完整结果
type ReportDocument struct {
	Meta     RunMeta
	Sections []Section
}

// Section 按序号取 Section
func (d *ReportDocument) Section(ordinal int) (Section, bool) {
	for _, s := range d.Sections {
		if s.Ordinal == ordinal {
			return s, true
		}
	}
	return Section{}, false
}

// Summary 统计全文档已分类单元格的状态分布
func (d *ReportDocument) Summary() StatusCounts {
	var c StatusCounts
	for _, s := range d.Sections {
		for _, r := range s.Records {
			for _, cell := range r.Cells() {
				c.add(cell)
			}
		}
	}
	return c
}

// RecordCount 全部记录数
func (d *ReportDocument) RecordCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Records)
	}
	return n
}

// FailedCount 失败的 Section 数
func (d *ReportDocument) FailedCount() int {
	n := 0
	for _, s := range d.Sections {
		if s.State == StateFailed {
			n++
		}
	}
	return n
}
