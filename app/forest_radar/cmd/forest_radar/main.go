package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/config"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/engine"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/export"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/logger"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/model"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/render"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/source/factory"
)

var version = "dev"

// exitError 带退出码的错误
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "forest_radar: %v\n", err)
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		outputDir   string
		format      string
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("forest_radar", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the YAML configuration file")
	flagSet.StringVarP(&outputDir, "output", "o", "", "output root directory (overrides output.dir)")
	flagSet.StringVar(&format, "format", "", "export format: auto, xlsx or csv (overrides export.format)")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("forest_radar %s\n", version)
		return nil
	}

	// 1. 加载配置
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("无法加载配置文件: %w", err)
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if format != "" {
		cfg.Export.Format = format
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	// 2. 初始化日志
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Printf("无法初始化日志文件: %v", err)
	}
	logger.Log.Info("启动森林雷达...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. 初始化数据源
	src, cleanup, err := factory.NewSource(cfg)
	if err != nil {
		return fmt.Errorf("数据源初始化失败: %w", err)
	}
	defer cleanup()

	renderer, err := render.New()
	if err != nil {
		return err
	}
	exporter, err := export.New(cfg.Export.Format, cfg.Report.BaseName)
	if err != nil {
		return err
	}

	// 4. 采集
	runID := uuid.NewString()
	doc, err := engine.NewEngine(cfg, src).Run(ctx, engine.RunOptions{
		RunID: runID,
		Title: cfg.Report.Title,
		ProgressCallback: func(status string, progress int) {
			logger.Log.Debugf("进度 %3d%%: %s", progress, status)
		},
	})
	if err != nil {
		if errors.Is(err, engine.ErrPrecondition) {
			logger.Log.Errorf("目录不可用，未生成任何报告: %v", err)
			return &exitError{code: 2, err: err}
		}
		return err
	}

	// 5. 输出，每次运行一个独立目录
	runDir := assignRunDir(doc, cfg.Output.Dir, cfg.Report.BaseName)
	htmlPath, err := renderer.WriteFile(runDir, cfg.Report.BaseName, doc)
	if err != nil {
		return fmt.Errorf("生成 HTML 失败: %w", err)
	}

	res, err := exporter.Export(runDir, doc)
	if err != nil {
		// 报告已经生成，导出失败不影响退出码
		logger.Log.Errorf("表格导出失败: %v", err)
	} else if res.FallbackReason != "" {
		logger.Log.Infof("已回退到 %s 导出 (%s)", res.Sink, res.FallbackReason)
	}

	summary := doc.Summary()
	logger.Log.Infof("✅ 清单生成完毕: %s (Healthy=%d, Warning=%d, Critical=%d, 失败 Section=%d/%d)",
		htmlPath, summary.Healthy, summary.Warning, summary.Critical, doc.FailedCount(), len(model.Catalog))
	return nil
}

// assignRunDir 本次运行的输出目录 {root}/{baseName}_{Timestamp}，同时写入文档元数据
func assignRunDir(doc *model.ReportDocument, root, baseName string) string {
	dir := filepath.Join(root, fmt.Sprintf("%s_%s", baseName, doc.Meta.Timestamp))
	doc.Meta.OutputRoot = dir
	return dir
}
