package export

import (
	"fmt"
	"os"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/config"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/logger"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/model"
)

// Result 一次导出的结果
type Result struct {
	Sink  string
	Files []string
	// FallbackReason 首选方式放弃的原因，未回退时为空
	FallbackReason string
}

// Exporter 按顺序选择第一个可用的导出方式，所有数据集都走同一种方式
type Exporter struct {
	sinks []Sink
}

// NewExporter 使用给定的导出方式，排在前面的优先
func NewExporter(sinks ...Sink) *Exporter {
	return &Exporter{sinks: sinks}
}

// New 根据配置的格式创建导出器，auto 为 xlsx 优先、csv 兜底
func New(format, baseName string) (*Exporter, error) {
	switch format {
	case config.FormatAuto, "":
		return NewExporter(&XLSXSink{BaseName: baseName}, &CSVSink{}), nil
	case config.FormatXLSX:
		return NewExporter(&XLSXSink{BaseName: baseName}), nil
	case config.FormatCSV:
		return NewExporter(&CSVSink{}), nil
	default:
		return nil, fmt.Errorf("unknown export format: %s", format)
	}
}

// Export 把文档的数据集写入 dir
func (e *Exporter) Export(dir string, doc *model.ReportDocument) (*Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	datasets := Datasets(doc)

	var reason string
	for i, sink := range e.sinks {
		err := sink.Available()
		if err == nil {
			var files []string
			files, err = sink.Export(dir, doc.Meta.Timestamp, datasets)
			if err == nil {
				logger.Log.Infof("导出方式: %s, 共 %d 个数据集, %d 个文件", sink.Name(), len(datasets), len(files))
				return &Result{Sink: sink.Name(), Files: files, FallbackReason: reason}, nil
			}
			removeAll(files)
		}

		if i == len(e.sinks)-1 {
			return nil, fmt.Errorf("%s export failed: %w", sink.Name(), err)
		}
		if reason == "" {
			reason = fmt.Sprintf("%s: %v", sink.Name(), err)
		}
		// 回退属于正常路径
		logger.Log.Infof("导出方式 %s 不可用, 改用 %s: %v", sink.Name(), e.sinks[i+1].Name(), err)
	}
	return nil, fmt.Errorf("no export sink configured")
}

func removeAll(files []string) {
	for _, f := range files {
		_ = os.Remove(f)
	}
}
