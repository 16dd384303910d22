// Package snapshot 从 YAML 快照文件回答查询。
// 用于离线清单（由其他工具导出的原始属性）以及测试。
//
// 文件格式:
//
//	queries:
//	  - kind: domain_controllers
//	    records:
//	      - HostName: DC01.corp.example.com
//	  - kind: replication
//	    target: DC01.corp.example.com
//	    error: "RPC server is unavailable"
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/source"
)

// File 快照文件结构
type File struct {
	// Unreachable 非空时 Ping 失败，模拟目录不可用
	Unreachable string  `yaml:"unreachable"`
	Queries     []Entry `yaml:"queries"`
}

// Entry 一次查询的记录结果
type Entry struct {
	Kind    source.Kind      `yaml:"kind"`
	Target  string           `yaml:"target"`
	Name    string           `yaml:"name"`
	Records []map[string]any `yaml:"records"`
	// Error 非空时该查询返回错误
	Error string `yaml:"error"`
}

type key struct {
	kind   source.Kind
	target string
	name   string
}

func keyOf(kind source.Kind, target, name string) key {
	// 目录中的名称不区分大小写
	return key{kind: kind, target: strings.ToLower(target), name: strings.ToLower(name)}
}

// Client 快照数据源
type Client struct {
	unreachable string
	entries     map[key]Entry
}

// Ensure Client implements source.Source
var _ source.Source = (*Client)(nil)

// Load 读取快照文件
func Load(path string) (*Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Parse(data)
}

// Parse 解析快照内容
func Parse(data []byte) (*Client, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return New(f)
}

// New 由内存中的快照构建数据源，重复的查询条目视为错误
func New(f File) (*Client, error) {
	c := &Client{unreachable: f.Unreachable, entries: make(map[key]Entry, len(f.Queries))}
	for i, e := range f.Queries {
		if e.Kind == "" {
			return nil, fmt.Errorf("snapshot query #%d: kind is required", i+1)
		}
		k := keyOf(e.Kind, e.Target, e.Name)
		if _, dup := c.entries[k]; dup {
			return nil, fmt.Errorf("snapshot query #%d: duplicate entry for %s", i+1, (&source.Request{Kind: e.Kind, Target: e.Target, Name: e.Name}).String())
		}
		c.entries[k] = e
	}
	return c, nil
}

// Query implements source.Source
func (c *Client) Query(_ context.Context, req *source.Request) (*source.Response, error) {
	e, ok := c.entries[keyOf(req.Kind, req.Target, req.Name)]
	if !ok {
		// 组按名称查找，不存在即零条记录
		if req.Kind == source.KindGroup {
			return &source.Response{}, nil
		}
		return nil, fmt.Errorf("%w: %s", source.ErrNoData, req.String())
	}
	if e.Error != "" {
		return nil, errors.New(e.Error)
	}

	records := make([]source.Attributes, 0, len(e.Records))
	for _, r := range e.Records {
		records = append(records, source.Attributes(r))
	}
	return &source.Response{Records: records}, nil
}

// Ping implements source.Pinger
func (c *Client) Ping(context.Context) error {
	if c.unreachable != "" {
		return fmt.Errorf("%w: %s", source.ErrUnreachable, c.unreachable)
	}
	return nil
}
