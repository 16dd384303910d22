package model

// HealthStatus 健康状态，只由 health 包根据原始字段计算得出
type HealthStatus int

const (
	Unknown HealthStatus = iota
	Healthy
	Warning
	Critical
)

func (s HealthStatus) String() string {
	switch s {
	case Healthy:
		return "Healthy"
	case Warning:
		return "Warning"
	case Critical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// Assessment 一个健康信号的判定结果
// Classified 为 false 时表示原始值无法识别，按原样展示
type Assessment struct {
	Status     HealthStatus
	Value      string
	Classified bool
}

// Cell 表格中的一个单元格，渲染与导出共用
type Cell struct {
	Value      string
	Status     HealthStatus
	Classified bool
}

// Cell 转换为表格单元格
func (a Assessment) Cell() Cell {
	return Cell{Value: a.Value, Status: a.Status, Classified: a.Classified}
}

// Plain 不带健康信号的普通单元格
func Plain(v string) Cell {
	return Cell{Value: v}
}

// StatusCounts 按状态统计已分类的单元格
type StatusCounts struct {
	Healthy  int
	Warning  int
	Critical int
	Unknown  int
}

func (c *StatusCounts) add(cell Cell) {
	if !cell.Classified {
		return
	}
	switch cell.Status {
	case Healthy:
		c.Healthy++
	case Warning:
		c.Warning++
	case Critical:
		c.Critical++
	default:
		c.Unknown++
	}
}
