// Package ldapdir 通过 LDAP 直接读取 Active Directory。
//
// 目录中能读到的数据都在这里回答：林、域控、站点、特权组、账户、服务账户、
// Exchange、组策略、AD 集成的 DNS 区域和已授权的 DHCP 服务器。
// 复制状态、服务状态和 DHCP 作用域需要在服务器本地查询，返回 ErrUnsupported，
// 交给路由配置中的其他数据源。
package ldapdir

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/config"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/logger"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/source"
)

const pageSize = 500

// directory 执行一次 LDAP 搜索
type directory interface {
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
}

// pagedConn 子树与单层搜索使用分页，避免 AD 默认的 1000 条上限
type pagedConn struct {
	conn *ldap.Conn
}

func (p pagedConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	if req.Scope == ldap.ScopeBaseObject {
		return p.conn.Search(req)
	}
	return p.conn.SearchWithPaging(req, pageSize)
}

// rootDSE 命名上下文
type rootDSE struct {
	defaultNC      string
	configNC       string
	schemaNC       string
	rootDomainNC   string
	forestLevel    string
	serverHostName string
}

// Client LDAP 目录数据源
type Client struct {
	cfg      config.LDAPConfig
	conn     *ldap.Conn
	dir      directory
	root     *rootDSE
	lookupIP func(ctx context.Context, host string) ([]net.IP, error)
}

// Ensure Client implements source.Source
var _ source.Source = (*Client)(nil)

// NewClient 创建客户端，首次查询或 Ping 时才建立连接
func NewClient(cfg config.LDAPConfig) *Client {
	return &Client{cfg: cfg, lookupIP: lookupIPv4}
}

func (c *Client) timeout() time.Duration {
	if c.cfg.Timeout > 0 {
		return time.Duration(c.cfg.Timeout) * time.Second
	}
	return 30 * time.Second
}

// connect 拨号、绑定并读取 rootDSE
func (c *Client) connect(ctx context.Context) error {
	if c.dir != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := ldap.DialURL(c.cfg.URL,
		ldap.DialWithDialer(&net.Dialer{Timeout: c.timeout()}),
		ldap.DialWithTLSConfig(&tls.Config{InsecureSkipVerify: c.cfg.InsecureSkipVerify}), //nolint:gosec
	)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", source.ErrUnreachable, c.cfg.URL, err)
	}
	conn.SetTimeout(c.timeout())

	if c.cfg.BindDN != "" {
		if err := conn.Bind(c.cfg.BindDN, c.cfg.Password); err != nil {
			conn.Close()
			return fmt.Errorf("%w: bind as %s: %v", source.ErrUnreachable, c.cfg.BindDN, err)
		}
	}

	dir := pagedConn{conn: conn}
	root, err := readRootDSE(dir)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: %v", source.ErrUnreachable, err)
	}
	if c.cfg.BaseDN != "" {
		root.defaultNC = c.cfg.BaseDN
	}

	c.conn = conn
	c.dir = dir
	c.root = root
	logger.Log.WithField("server", root.serverHostName).Infof("已连接目录 %s", root.defaultNC)
	return nil
}

// Close 关闭连接
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.dir = nil
	}
}

// Ping implements source.Pinger
func (c *Client) Ping(ctx context.Context) error {
	return c.connect(ctx)
}

// Query implements source.Source
func (c *Client) Query(ctx context.Context, req *source.Request) (*source.Response, error) {
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		records []source.Attributes
		err     error
	)
	switch req.Kind {
	case source.KindForest:
		records, err = c.forest()
	case source.KindDomainControllers:
		records, err = c.domainControllers(ctx)
	case source.KindSites:
		records, err = c.sites()
	case source.KindGroup:
		records, err = c.group(req.Name)
	case source.KindGroupMembers:
		records, err = c.groupMembers(req.Target)
	case source.KindAccount:
		records, err = c.account(req.Target)
	case source.KindServiceAccounts:
		records, err = c.serviceAccounts()
	case source.KindMailServers:
		records, err = c.mailServers()
	case source.KindGPOs:
		records, err = c.gpos()
	case source.KindDNSZones:
		records, err = c.dnsZones()
	case source.KindDHCPServers:
		records, err = c.dhcpServers()
	default:
		return nil, fmt.Errorf("%w: ldap cannot answer %s", source.ErrUnsupported, req.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("ldap %s: %w", req.String(), err)
	}
	return &source.Response{Records: records}, nil
}

func readRootDSE(dir directory) (*rootDSE, error) {
	res, err := dir.Search(ldap.NewSearchRequest("", ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 0, false,
		"(objectClass=*)",
		[]string{"defaultNamingContext", "configurationNamingContext", "schemaNamingContext", "rootDomainNamingContext", "forestFunctionality", "dnsHostName"},
		nil))
	if err != nil {
		return nil, fmt.Errorf("read rootDSE: %w", err)
	}
	if len(res.Entries) == 0 {
		return nil, fmt.Errorf("read rootDSE: empty result")
	}
	e := res.Entries[0]
	root := &rootDSE{
		defaultNC:      e.GetAttributeValue("defaultNamingContext"),
		configNC:       e.GetAttributeValue("configurationNamingContext"),
		schemaNC:       e.GetAttributeValue("schemaNamingContext"),
		rootDomainNC:   e.GetAttributeValue("rootDomainNamingContext"),
		forestLevel:    e.GetAttributeValue("forestFunctionality"),
		serverHostName: e.GetAttributeValue("dnsHostName"),
	}
	if root.defaultNC == "" || root.configNC == "" {
		return nil, fmt.Errorf("read rootDSE: naming contexts missing, not an Active Directory server")
	}
	if root.rootDomainNC == "" {
		root.rootDomainNC = root.defaultNC
	}
	return root, nil
}

func lookupIPv4(ctx context.Context, host string) ([]net.IP, error) {
	return net.DefaultResolver.LookupIP(ctx, "ip4", host)
}
