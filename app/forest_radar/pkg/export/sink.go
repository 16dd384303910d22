package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Sink 一种导出方式
type Sink interface {
	Name() string
	// Available 探测该方式当前是否可用
	Available() error
	// Export 写入全部数据集，返回生成的文件
	Export(dir, timestamp string, datasets []Dataset) ([]string, error)
}

// 工作表名称上限
const maxSheetName = 31

// 列宽范围
const (
	minColWidth = 8
	maxColWidth = 80
)

// XLSXSink 单个工作簿，每个数据集一个工作表
type XLSXSink struct {
	BaseName string
}

// Ensure XLSXSink implements Sink
var _ Sink = (*XLSXSink)(nil)

func (s *XLSXSink) Name() string { return "xlsx" }

// Available 在内存中生成一个空工作簿
func (s *XLSXSink) Available() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("spreadsheet engine panicked: %v", r)
		}
	}()
	f := excelize.NewFile()
	defer f.Close()
	if _, err := f.WriteTo(io.Discard); err != nil {
		return fmt.Errorf("spreadsheet engine unavailable: %w", err)
	}
	return nil
}

func (s *XLSXSink) Export(dir, timestamp string, datasets []Dataset) ([]string, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.xlsx", s.BaseName, timestamp))
	if err := s.write(path, datasets); err != nil {
		// 不保留写了一半的工作簿
		_ = os.Remove(path)
		return nil, err
	}
	return []string{path}, nil
}

func (s *XLSXSink) write(path string, datasets []Dataset) error {
	if len(datasets) == 0 {
		return errors.New("no datasets to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	for i, d := range datasets {
		sheet := sheetName(d.Name)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("sheet %s: %w", sheet, err)
		}
		if err := writeSheet(f, sheet, d, header); err != nil {
			return fmt.Errorf("sheet %s: %w", sheet, err)
		}
	}
	f.SetActiveSheet(0)
	return f.SaveAs(path)
}

func writeSheet(f *excelize.File, sheet string, d Dataset, headerStyle int) error {
	widths := make([]int, len(d.Columns))
	measure := func(row []string) []any {
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = v
			if i < len(widths) {
				widths[i] = max(widths[i], utf8.RuneCountInString(v))
			}
		}
		return values
	}

	rows := append([][]string{d.Columns}, d.Rows...)
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return err
		}
		values := measure(row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, float64(min(max(w+2, minColWidth), maxColWidth))); err != nil {
			return err
		}
	}
	return nil
}

func sheetName(name string) string {
	r := []rune(name)
	if len(r) > maxSheetName {
		r = r[:maxSheetName]
	}
	return string(r)
}

// CSVSink 每个数据集一个 CSV 文件
type CSVSink struct {
	// Comma 分隔符，默认为逗号
	Comma rune
}

// Ensure CSVSink implements Sink
var _ Sink = (*CSVSink)(nil)

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Available() error { return nil }

func (s *CSVSink) Export(dir, timestamp string, datasets []Dataset) ([]string, error) {
	files := make([]string, 0, len(datasets))
	for _, d := range datasets {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", d.Name, timestamp))
		if err := s.write(path, d); err != nil {
			return files, fmt.Errorf("dataset %s: %w", d.Name, err)
		}
		files = append(files, path)
	}
	return files, nil
}

// write 写入失败时删除该文件，不留下半个数据集
func (s *CSVSink) write(path string, d Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.encode(f, d); err != nil {
		f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

func (s *CSVSink) encode(out io.Writer, d Dataset) error {
	w := csv.NewWriter(out)
	if s.Comma != 0 {
		w.Comma = s.Comma
	}
	if err := w.Write(d.Columns); err != nil {
		return err
	}
	return w.WriteAll(d.Rows)
}
