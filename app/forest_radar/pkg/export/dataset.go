// Package export 把文档中的表格数据写入电子表格或逐数据集的 CSV 文件。
package export

import "github.com/iWorld-y/forest_radar/app/forest_radar/pkg/model"

// Dataset 一个导出数据集，值与 HTML 报告中的单元格一致
type Dataset struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Datasets 从文档中取出所有需要导出的 Section，失败或为空的 Section 只保留表头
func Datasets(doc *model.ReportDocument) []Dataset {
	var out []Dataset
	for _, s := range doc.Sections {
		if !s.Exported {
			continue
		}
		t := s.Table()
		d := Dataset{Name: s.Dataset, Columns: t.Columns, Rows: make([][]string, 0, len(t.Rows))}
		for _, row := range t.Rows {
			values := make([]string, len(row))
			for i, c := range row {
				values[i] = c.Value
			}
			d.Rows = append(d.Rows, values)
		}
		out = append(out, d)
	}
	return out
}
