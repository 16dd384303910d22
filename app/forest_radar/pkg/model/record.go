package model

import (
	"strings"
	"time"
)

// Kind 记录类型，每个 Section 只包含一种
type Kind string

const (
	KindForest           Kind = "forest"
	KindDomainController Kind = "domain_controller"
	KindReplication      Kind = "replication"
	KindSite             Kind = "site"
	KindDNSZone          Kind = "dns_zone"
	KindDHCPScope        Kind = "dhcp_scope"
	KindTierAccount      Kind = "tier_account"
	KindServiceAccount   Kind = "service_account"
	KindMailServer       Kind = "mail_server"
	KindPolicyObject     Kind = "policy_object"
	KindFSMORole         Kind = "fsmo_role"
)

// NotApplicable 非用户主体的账户字段取值
const NotApplicable = "N/A"

// Record 一条清单记录，由 Collector 生成后不再修改
type Record interface {
	Kind() Kind
	// Cells 按 Columns(Kind()) 的顺序返回单元格
	Cells() []Cell
}

var columns = map[Kind][]string{
	KindForest:           {"Name", "ForestMode", "RootDomain", "Domains", "GlobalCatalogs", "Sites", "UPNSuffixes", "SchemaMaster", "DomainNamingMaster"},
	KindDomainController: {"HostName", "Site", "IPv4Address", "OperatingSystem", "OSVersion", "GlobalCatalog", "ReadOnly", "FSMORoles", "DNSService"},
	KindReplication:      {"Server", "Partner", "Partition", "LastAttempt", "LastSuccess", "ConsecutiveFailures", "LastResult"},
	KindSite:             {"Name", "Description", "Location", "Subnets", "DomainControllers"},
	KindDNSZone:          {"Server", "ZoneName", "ZoneType", "DsIntegrated", "ReverseLookup", "DynamicUpdate"},
	KindDHCPScope:        {"Server", "ScopeId", "Name", "SubnetMask", "StartRange", "EndRange", "LeaseDuration", "State"},
	KindTierAccount:      {"Tier", "GroupName", "MemberName", "AccountType", "Enabled", "LastLogon", "PasswordLastSet", "Note"},
	KindServiceAccount:   {"Name", "SamAccountName", "AccountType", "Enabled", "PasswordLastSet", "LastLogon", "ServicePrincipalNames", "Description"},
	KindMailServer:       {"Name", "Site", "Roles", "Version", "Build", "Edition"},
	KindPolicyObject:     {"DisplayName", "Id", "GpoStatus", "CreationTime", "ModificationTime"},
	KindFSMORole:         {"Role", "Scope", "Holder"},
}

// Columns 返回某类记录的字段名
func Columns(k Kind) []string {
	return append([]string(nil), columns[k]...)
}

// Forest 林级信息
type Forest struct {
	Name               string
	ForestMode         string
	RootDomain         string
	Domains            []string
	GlobalCatalogs     []string
	Sites              []string
	UPNSuffixes        []string
	SchemaMaster       string
	DomainNamingMaster string
}

func (Forest) Kind() Kind { return KindForest }

func (f Forest) Cells() []Cell {
	return []Cell{
		Plain(f.Name),
		Plain(f.ForestMode),
		Plain(f.RootDomain),
		Plain(JoinList(f.Domains)),
		Plain(JoinList(f.GlobalCatalogs)),
		Plain(JoinList(f.Sites)),
		Plain(JoinList(f.UPNSuffixes)),
		Plain(f.SchemaMaster),
		Plain(f.DomainNamingMaster),
	}
}

// DomainController 域控制器
type DomainController struct {
	HostName         string
	Site             string
	IPv4Address      string
	OperatingSystem  string
	OSVersion        string
	IsGlobalCatalog  bool
	IsReadOnly       bool
	FSMORoles        []string
	DNSServiceStatus string

	GlobalCatalog Assessment
	DNSService    Assessment
}

func (DomainController) Kind() Kind { return KindDomainController }

func (d DomainController) Cells() []Cell {
	return []Cell{
		Plain(d.HostName),
		Plain(d.Site),
		Plain(d.IPv4Address),
		Plain(d.OperatingSystem),
		Plain(d.OSVersion),
		d.GlobalCatalog.Cell(),
		Plain(FormatBool(d.IsReadOnly)),
		Plain(JoinList(d.FSMORoles)),
		d.DNSService.Cell(),
	}
}

// ReplicationLink 一条入站复制关系
type ReplicationLink struct {
	Server              string
	Partner             string
	Partition           string
	LastAttempt         time.Time
	LastSuccess         time.Time
	ConsecutiveFailures int
	LastResult          string

	Currency Assessment
	Failures Assessment
}

func (ReplicationLink) Kind() Kind { return KindReplication }

func (r ReplicationLink) Cells() []Cell {
	return []Cell{
		Plain(r.Server),
		Plain(r.Partner),
		Plain(r.Partition),
		Plain(FormatDate(r.LastAttempt)),
		r.Currency.Cell(),
		r.Failures.Cell(),
		Plain(r.LastResult),
	}
}

// Site 站点及其子网
type Site struct {
	Name              string
	Description       string
	Location          string
	Subnets           []string
	DomainControllers []string
}

func (Site) Kind() Kind { return KindSite }

func (s Site) Cells() []Cell {
	return []Cell{
		Plain(s.Name),
		Plain(s.Description),
		Plain(s.Location),
		Plain(JoinList(s.Subnets)),
		Plain(JoinList(s.DomainControllers)),
	}
}

// DNSZone DNS 区域
type DNSZone struct {
	Server        string
	ZoneName      string
	ZoneType      string
	DsIntegrated  bool
	ReverseLookup bool
	DynamicUpdate string
}

func (DNSZone) Kind() Kind { return KindDNSZone }

func (z DNSZone) Cells() []Cell {
	return []Cell{
		Plain(z.Server),
		Plain(z.ZoneName),
		Plain(z.ZoneType),
		Plain(FormatBool(z.DsIntegrated)),
		Plain(FormatBool(z.ReverseLookup)),
		Plain(z.DynamicUpdate),
	}
}

// DHCPScope DHCP 作用域
type DHCPScope struct {
	Server        string
	ScopeID       string
	Name          string
	SubnetMask    string
	StartRange    string
	EndRange      string
	LeaseDuration string
	State         string

	StateStatus Assessment
}

func (DHCPScope) Kind() Kind { return KindDHCPScope }

func (s DHCPScope) Cells() []Cell {
	return []Cell{
		Plain(s.Server),
		Plain(s.ScopeID),
		Plain(s.Name),
		Plain(s.SubnetMask),
		Plain(s.StartRange),
		Plain(s.EndRange),
		Plain(s.LeaseDuration),
		s.StateStatus.Cell(),
	}
}

// Tier 特权层级
type Tier string

const (
	Tier0 Tier = "Tier0"
	Tier1 Tier = "Tier1"
	Tier2 Tier = "Tier2"
)

// TierAccountEntry 特权组中的一个直接成员
// AccountType 为 "User" 时 Enabled/LastLogon/PasswordLastSet 才有值，否则均为 N/A
type TierAccountEntry struct {
	Tier            Tier
	GroupName       string
	MemberName      string
	AccountType     string
	Enabled         Assessment
	LastLogon       string
	PasswordLastSet string
	Note            string
}

func (TierAccountEntry) Kind() Kind { return KindTierAccount }

func (e TierAccountEntry) Cells() []Cell {
	return []Cell{
		Plain(string(e.Tier)),
		Plain(e.GroupName),
		Plain(e.MemberName),
		Plain(e.AccountType),
		e.Enabled.Cell(),
		Plain(e.LastLogon),
		Plain(e.PasswordLastSet),
		Plain(e.Note),
	}
}

// ServiceAccount 服务账户（gMSA、sMSA 或带 SPN 的用户）
type ServiceAccount struct {
	Name                  string
	SamAccountName        string
	AccountType           string
	Enabled               Assessment
	PasswordLastSet       time.Time
	LastLogon             time.Time
	ServicePrincipalNames []string
	Description           string
}

func (ServiceAccount) Kind() Kind { return KindServiceAccount }

func (a ServiceAccount) Cells() []Cell {
	return []Cell{
		Plain(a.Name),
		Plain(a.SamAccountName),
		Plain(a.AccountType),
		a.Enabled.Cell(),
		Plain(FormatDate(a.PasswordLastSet)),
		Plain(FormatDate(a.LastLogon)),
		Plain(JoinList(a.ServicePrincipalNames)),
		Plain(a.Description),
	}
}

// MailServer Exchange 服务器
type MailServer struct {
	Name    string
	Site    string
	Roles   string
	Version string
	Build   string
	Edition string
}

func (MailServer) Kind() Kind { return KindMailServer }

func (m MailServer) Cells() []Cell {
	return []Cell{
		Plain(m.Name),
		Plain(m.Site),
		Plain(m.Roles),
		Plain(m.Version),
		Plain(m.Build),
		Plain(m.Edition),
	}
}

// PolicyObject 组策略对象
type PolicyObject struct {
	DisplayName      string
	ID               string
	GpoStatus        string
	CreationTime     time.Time
	ModificationTime time.Time

	Status Assessment
}

func (PolicyObject) Kind() Kind { return KindPolicyObject }

func (p PolicyObject) Cells() []Cell {
	return []Cell{
		Plain(p.DisplayName),
		Plain(p.ID),
		p.Status.Cell(),
		Plain(FormatDate(p.CreationTime)),
		Plain(FormatDate(p.ModificationTime)),
	}
}

// FSMORole 操作主机角色
type FSMORole struct {
	Role   string
	Scope  string
	Holder Assessment
}

func (FSMORole) Kind() Kind { return KindFSMORole }

func (r FSMORole) Cells() []Cell {
	return []Cell{
		Plain(r.Role),
		Plain(r.Scope),
		r.Holder.Cell(),
	}
}

// FormatDate 日期统一格式化为 yyyy-MM-dd，零值表示从未发生
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	return t.Format("2006-01-02")
}

// FormatBool 与 PowerShell 输出保持一致
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// JoinList 多值字段以 "; " 连接
func JoinList(v []string) string {
	return strings.Join(v, "; ")
}
