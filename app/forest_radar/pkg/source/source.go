package source

import (
	"context"
	"errors"
)

// Kind 查询类型
type Kind string

const (
	KindForest            Kind = "forest"
	KindDomainControllers Kind = "domain_controllers"
	// KindReplication Target 为域控主机名
	KindReplication Kind = "replication"
	// KindServiceState Target 为主机名，Name 为服务名
	KindServiceState Kind = "service_state"
	KindSites        Kind = "sites"
	// KindDNSZones Target 为 DNS 服务器主机名
	KindDNSZones    Kind = "dns_zones"
	KindDHCPServers Kind = "dhcp_servers"
	// KindDHCPScopes Target 为 DHCP 服务器主机名
	KindDHCPScopes Kind = "dhcp_scopes"
	// KindGroup Name 为组名，组不存在时返回零条记录
	KindGroup Kind = "group"
	// KindGroupMembers Target 为组 DN，只返回直接成员
	KindGroupMembers Kind = "group_members"
	// KindAccount Target 为用户 DN
	KindAccount         Kind = "account"
	KindServiceAccounts Kind = "service_accounts"
	KindMailServers     Kind = "mail_servers"
	KindGPOs            Kind = "gpos"
)

// Kinds 全部查询类型
var Kinds = []Kind{
	KindForest, KindDomainControllers, KindReplication, KindServiceState,
	KindSites, KindDNSZones, KindDHCPServers, KindDHCPScopes, KindGroup,
	KindGroupMembers, KindAccount, KindServiceAccounts, KindMailServers, KindGPOs,
}

var (
	// ErrUnsupported 数据源无法回答该类查询
	ErrUnsupported = errors.New("query kind not supported by source")
	// ErrNoData 数据源中没有该查询的数据
	ErrNoData = errors.New("no data recorded for query")
	// ErrUnreachable 数据源不可用
	ErrUnreachable = errors.New("source unreachable")
	// ErrMalformed 返回的属性值类型或格式不正确
	ErrMalformed = errors.New("malformed attribute")
)

// Source 目录/网络服务的查询能力
type Source interface {
	Query(ctx context.Context, req *Request) (*Response, error)
}

// Pinger 可选接口，用于运行前检查数据源是否可用
type Pinger interface {
	Ping(ctx context.Context) error
}

// Request 通用查询请求
type Request struct {
	Kind   Kind
	Target string
	Name   string
}

func (r *Request) String() string {
	s := string(r.Kind)
	if r.Target != "" {
		s += " target=" + r.Target
	}
	if r.Name != "" {
		s += " name=" + r.Name
	}
	return s
}

// Response 通用查询响应
type Response struct {
	Records []Attributes
}

// Attributes 一条原始属性集合
type Attributes map[string]any

// Ping 数据源实现了 Pinger 时执行检查，否则视为可用
func Ping(ctx context.Context, src Source) error {
	if p, ok := src.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
