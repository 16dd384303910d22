package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体
type Config struct {
	Report      ReportConfig      `yaml:"report"`
	Output      OutputConfig      `yaml:"output"`
	Source      SourceConfig      `yaml:"source"`
	Tiers       TierConfig        `yaml:"tiers"`
	Export      ExportConfig      `yaml:"export"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
}

// ReportConfig 报告标题与文件名前缀
type ReportConfig struct {
	Title    string `yaml:"title"`
	BaseName string `yaml:"base_name"`
}

// OutputConfig 输出目录，每次运行在其下创建一个独立子目录
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// SourceConfig 数据源配置
type SourceConfig struct {
	// Provider 默认数据源: ldap, snapshot, http
	Provider string `yaml:"provider"`
	// Routes 按查询类型覆盖数据源，例如 replication: http
	Routes   map[string]string `yaml:"routes"`
	LDAP     LDAPConfig        `yaml:"ldap"`
	Snapshot SnapshotConfig    `yaml:"snapshot"`
	HTTP     HTTPConfig        `yaml:"http"`
}

// LDAPConfig LDAP 目录连接配置
type LDAPConfig struct {
	URL                string `yaml:"url"`
	BindDN             string `yaml:"bind_dn"`
	Password           string `yaml:"password"`
	BaseDN             string `yaml:"base_dn"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	Timeout            int    `yaml:"timeout"`
}

// SnapshotConfig 离线快照文件配置
type SnapshotConfig struct {
	Path string `yaml:"path"`
}

// HTTPConfig 采集代理 HTTP 接口配置
type HTTPConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	Timeout int    `yaml:"timeout"`
}

// TierConfig 各层级特权组名称，按顺序查询
type TierConfig struct {
	Tier0 []string `yaml:"tier0"`
	Tier1 []string `yaml:"tier1"`
	Tier2 []string `yaml:"tier2"`
}

// ExportConfig 表格导出配置
type ExportConfig struct {
	// Format auto 优先 xlsx，不可用时回退 csv
	Format string `yaml:"format"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig 查询限速配置
type ConcurrencyConfig struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
}

// 默认特权组，Tier2 没有通用的标准组名，需按组织自定义
var (
	DefaultTier0Groups = []string{
		"Enterprise Admins",
		"Schema Admins",
		"Domain Admins",
		"Administrators",
		"Account Operators",
		"Server Operators",
		"Backup Operators",
		"Print Operators",
	}
	DefaultTier1Groups = []string{
		"DnsAdmins",
		"DHCP Administrators",
		"Group Policy Creator Owners",
		"Hyper-V Administrators",
		"Server Admins",
	}
	DefaultTier2Groups = []string{
		"Helpdesk",
		"Workstation Admins",
		"Desktop Support",
	}
)

// Export formats
const (
	FormatAuto = "auto"
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

var validProviders = map[string]bool{"ldap": true, "snapshot": true, "http": true}

// LoadConfig 从指定路径加载配置，文件中的 ${VAR} 会先用环境变量展开
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse 解析 YAML 配置并补齐默认值
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults 补齐未配置的字段
func (c *Config) ApplyDefaults() {
	if c.Report.Title == "" {
		c.Report.Title = "Active Directory Inventory"
	}
	if c.Report.BaseName == "" {
		c.Report.BaseName = "AD_Inventory"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "output"
	}
	if c.Source.Provider == "" {
		c.Source.Provider = "ldap"
	}
	if c.Export.Format == "" {
		c.Export.Format = FormatAuto
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Tiers.Tier0 == nil {
		c.Tiers.Tier0 = append([]string(nil), DefaultTier0Groups...)
	}
	if c.Tiers.Tier1 == nil {
		c.Tiers.Tier1 = append([]string(nil), DefaultTier1Groups...)
	}
	if c.Tiers.Tier2 == nil {
		c.Tiers.Tier2 = append([]string(nil), DefaultTier2Groups...)
	}
}

// Validate 校验配置，返回所有问题
func (c *Config) Validate() error {
	var errs []error

	providers := []string{c.Source.Provider}
	for kind, p := range c.Source.Routes {
		if !validProviders[p] {
			errs = append(errs, fmt.Errorf("source.routes.%s: unknown provider %q", kind, p))
			continue
		}
		providers = append(providers, p)
	}
	if !validProviders[c.Source.Provider] {
		errs = append(errs, fmt.Errorf("source.provider: unknown provider %q", c.Source.Provider))
	}

	for _, p := range providers {
		switch p {
		case "ldap":
			if c.Source.LDAP.URL == "" {
				errs = append(errs, errors.New("source.ldap.url is required"))
			}
			if c.Source.LDAP.URL != "" && !strings.HasPrefix(c.Source.LDAP.URL, "ldap://") && !strings.HasPrefix(c.Source.LDAP.URL, "ldaps://") {
				errs = append(errs, fmt.Errorf("source.ldap.url: unsupported scheme in %q", c.Source.LDAP.URL))
			}
		case "snapshot":
			if c.Source.Snapshot.Path == "" {
				errs = append(errs, errors.New("source.snapshot.path is required"))
			}
		case "http":
			if c.Source.HTTP.BaseURL == "" {
				errs = append(errs, errors.New("source.http.base_url is required"))
			}
		}
	}

	switch c.Export.Format {
	case FormatAuto, FormatXLSX, FormatCSV:
	default:
		errs = append(errs, fmt.Errorf("export.format: unknown format %q", c.Export.Format))
	}

	if strings.ContainsAny(c.Report.BaseName, `/\:*?"<>|`) {
		errs = append(errs, fmt.Errorf("report.base_name: %q contains path characters", c.Report.BaseName))
	}

	return dedupe(errs)
}

func dedupe(errs []error) error {
	seen := make(map[string]bool, len(errs))
	var out []error
	for _, err := range errs {
		if seen[err.Error()] {
			continue
		}
		seen[err.Error()] = true
		out = append(out, err)
	}
	return errors.Join(out...)
}
