package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/config"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/model"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/source"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/source/snapshot"
)

var now = time.Date(2026, 10, 13, 12, 0, 0, 0, time.UTC)

const inventory = `
queries:
  - kind: forest
    records:
      - Name: corp.example.com
        ForestMode: Windows2016Forest
        RootDomain: corp.example.com
        Domains: [corp.example.com]
        Sites: [HQ, Branch]
        SchemaMaster: DC01.corp.example.com
        DomainNamingMaster: DC01.corp.example.com
  - kind: domain_controllers
    records:
      - HostName: DC01.corp.example.com
        Site: HQ
        IPv4Address: 10.0.0.10
        OperatingSystem: Windows Server 2022 Datacenter
        IsGlobalCatalog: true
        OperationMasterRoles: [SchemaMaster, DomainNamingMaster, PDCEmulator, RIDMaster]
      - HostName: DC02.corp.example.com
        Site: Branch
        IsGlobalCatalog: false
        IsReadOnly: true
  - kind: service_state
    target: DC01.corp.example.com
    name: DNS
    records:
      - Status: Running
  - kind: service_state
    target: DC02.corp.example.com
    name: DNS
    error: "Cannot open Service Control Manager"
  - kind: replication
    target: DC01.corp.example.com
    records:
      - Partner: DC02.corp.example.com
        Partition: DC=corp,DC=example,DC=com
        LastReplicationSuccess: "2026-10-13T11:00:00Z"
        ConsecutiveReplicationFailures: 0
      - Partner: DC02.corp.example.com
        Partition: CN=Configuration,DC=corp,DC=example,DC=com
        LastReplicationSuccess: "2026-10-11T11:00:00Z"
        ConsecutiveReplicationFailures: 3
  - kind: replication
    target: DC02.corp.example.com
    error: "The RPC server is unavailable"
  - kind: sites
    records:
      - Name: HQ
        Subnets: [10.0.0.0/24]
      - Name: Branch
  - kind: dns_zones
    target: DC01.corp.example.com
    error: "DNS server not responding"
  - kind: dns_zones
    target: DC02.corp.example.com
    records:
      - ZoneName: corp.example.com
        ZoneType: Primary
        IsDsIntegrated: true
        DynamicUpdate: Secure
  - kind: dhcp_servers
    records:
      - DnsName: dhcp01.corp.example.com
      - DnsName: dhcp02.corp.example.com
  - kind: dhcp_scopes
    target: dhcp01.corp.example.com
    records:
      - ScopeId: 10.0.0.0
        Name: HQ LAN
        State: Active
      - ScopeId: 10.0.1.0
        Name: Guest
        State: Inactive
  - kind: dhcp_scopes
    target: dhcp02.corp.example.com
    error: "access denied"
  - kind: group
    name: Domain Admins
    records:
      - DistinguishedName: CN=Domain Admins,CN=Users,DC=corp,DC=example,DC=com
        Name: Domain Admins
  - kind: group_members
    target: CN=Domain Admins,CN=Users,DC=corp,DC=example,DC=com
    records:
      - Name: Alice
        ObjectClass: user
        DistinguishedName: CN=Alice,CN=Users,DC=corp,DC=example,DC=com
      - Name: Tier0 Operators
        ObjectClass: group
        DistinguishedName: CN=Tier0 Operators,CN=Users,DC=corp,DC=example,DC=com
      - Name: Bob
        ObjectClass: user
        DistinguishedName: CN=Bob,CN=Users,DC=corp,DC=example,DC=com
      - Name: BACKUP01$
        ObjectClass: computer
        DistinguishedName: CN=BACKUP01,CN=Computers,DC=corp,DC=example,DC=com
  - kind: group
    name: DnsAdmins
    records:
      - DistinguishedName: CN=DnsAdmins,CN=Users,DC=corp,DC=example,DC=com
  - kind: group_members
    target: CN=DnsAdmins,CN=Users,DC=corp,DC=example,DC=com
    records:
      - Name: Alice
        ObjectClass: user
        DistinguishedName: CN=Alice,CN=Users,DC=corp,DC=example,DC=com
  - kind: account
    target: CN=Alice,CN=Users,DC=corp,DC=example,DC=com
    records:
      - Enabled: true
        LastLogonDate: "2026-10-12T08:00:00Z"
        PasswordLastSet: "133730000000000000"
  - kind: account
    target: CN=Bob,CN=Users,DC=corp,DC=example,DC=com
    error: "insufficient access rights"
  - kind: service_accounts
    records:
      - Name: svc-sql
        SamAccountName: svc-sql$
        ObjectClass: msDS-GroupManagedServiceAccount
        Enabled: true
        ServicePrincipalNames: [MSSQLSvc/sql01.corp.example.com:1433]
  - kind: mail_servers
    records:
      - Name: EX01
        Site: HQ
        ServerRoles: 16439
        SerialNumber: Version 15.2 (Build 1118.7)
  - kind: gpos
    records:
      - DisplayName: Default Domain Policy
        Id: 31B2F340-016D-11D2-945F-00C04FB984F9
        GpoStatus: AllSettingsEnabled
        CreationTime: "20240102150405.0Z"
      - DisplayName: Kiosk Lockdown
        Id: 6AC1786C-016F-11D2-945F-00C04FB984F9
        GpoStatus: UserSettingsDisabled
`

func newEnv(t *testing.T, doc string) *Env {
	t.Helper()
	src, err := snapshot.Parse([]byte(doc))
	require.NoError(t, err)
	tiers := config.TierConfig{
		Tier0: []string{"Domain Admins", "Enterprise Admins"},
		Tier1: []string{"DnsAdmins"},
		Tier2: []string{"Helpdesk", "Desktop Support"},
	}
	return NewEnv(src, now, tiers)
}

// collectAll 按顺序运行全部 Collector，与编排器的行为一致
func collectAll(t *testing.T, env *Env) map[int]model.Section {
	t.Helper()
	out := make(map[int]model.Section)
	for _, c := range Default() {
		res, err := c.Collect(context.Background(), env)
		var s model.Section
		if err != nil {
			s = model.FailedSection(c.Def(), err)
		} else {
			s = res.Section(c.Def())
		}
		env.Add(s)
		out[s.Ordinal] = s
	}
	return out
}

func TestDefault_FixedOrder(t *testing.T) {
	collectors := Default()
	require.Len(t, collectors, len(model.Catalog))
	for i, c := range collectors {
		assert.Equal(t, i+1, c.Def().Ordinal)
		assert.Equal(t, model.Catalog[i].Name, c.Def().Name)
	}
}

func TestCollect_Inventory(t *testing.T) {
	sections := collectAll(t, newEnv(t, inventory))

	t.Run("forest", func(t *testing.T) {
		s := sections[model.SectionForest]
		require.Equal(t, model.StatePopulated, s.State)
		f := s.Records[0].(model.Forest)
		assert.Equal(t, "corp.example.com", f.Name)
		assert.Equal(t, []string{"HQ", "Branch"}, f.Sites)
	})

	t.Run("domain controllers", func(t *testing.T) {
		s := sections[model.SectionDomainControllers]
		require.Equal(t, model.StatePopulated, s.State)
		require.Len(t, s.Records, 2)

		dc1 := s.Records[0].(model.DomainController)
		assert.Equal(t, model.Healthy, dc1.DNSService.Status)
		assert.Equal(t, "Running", dc1.DNSServiceStatus)
		assert.Equal(t, model.Healthy, dc1.GlobalCatalog.Status)

		dc2 := s.Records[1].(model.DomainController)
		assert.Equal(t, model.Critical, dc2.DNSService.Status)
		assert.Equal(t, "Error: Cannot open Service Control Manager", dc2.DNSServiceStatus)
		assert.Equal(t, model.Critical, dc2.GlobalCatalog.Status)
		assert.True(t, dc2.IsReadOnly)
	})

	t.Run("replication is partial when one DC fails", func(t *testing.T) {
		s := sections[model.SectionReplication]
		require.Equal(t, model.StatePartial, s.State)
		assert.Contains(t, s.Note, "DC02.corp.example.com")
		require.Len(t, s.Records, 2)

		fresh := s.Records[0].(model.ReplicationLink)
		assert.Equal(t, model.Healthy, fresh.Currency.Status)
		assert.Equal(t, model.Healthy, fresh.Failures.Status)

		stale := s.Records[1].(model.ReplicationLink)
		assert.Equal(t, model.Warning, stale.Currency.Status)
		assert.Equal(t, model.Critical, stale.Failures.Status)
		assert.Equal(t, "3", stale.Failures.Value)
		// 导出的日期只保留 yyyy-MM-dd
		assert.Equal(t, "2026-10-11", stale.Currency.Value)
		assert.Regexp(t, `^(\d{4}-\d{2}-\d{2}|Never)$`, stale.Cells()[3].Value)
	})

	t.Run("sites list their domain controllers", func(t *testing.T) {
		s := sections[model.SectionSites]
		require.Equal(t, model.StatePopulated, s.State)
		assert.Equal(t, []string{"DC01.corp.example.com"}, s.Records[0].(model.Site).DomainControllers)
		assert.Equal(t, []string{"DC02.corp.example.com"}, s.Records[1].(model.Site).DomainControllers)
	})

	t.Run("DNS falls through to the next DC", func(t *testing.T) {
		s := sections[model.SectionDNS]
		require.Equal(t, model.StatePopulated, s.State)
		require.Len(t, s.Records, 1)
		assert.Equal(t, "DC02.corp.example.com", s.Records[0].(model.DNSZone).Server)
	})

	t.Run("DHCP", func(t *testing.T) {
		s := sections[model.SectionDHCP]
		require.Equal(t, model.StatePartial, s.State)
		assert.Contains(t, s.Note, "dhcp02.corp.example.com")
		require.Len(t, s.Records, 2)
		assert.Equal(t, model.Healthy, s.Records[0].(model.DHCPScope).StateStatus.Status)
		assert.Equal(t, model.Critical, s.Records[1].(model.DHCPScope).StateStatus.Status)
		assert.Equal(t, "Inactive", s.Records[1].(model.DHCPScope).StateStatus.Value)
	})

	t.Run("tier 2 without any configured group", func(t *testing.T) {
		s := sections[model.SectionTier2]
		require.Equal(t, model.StatePopulated, s.State)
		require.Len(t, s.Records, 1)
		e := s.Records[0].(model.TierAccountEntry)
		assert.Equal(t, NotFoundNote, e.Note)
		assert.Equal(t, "Helpdesk; Desktop Support", e.GroupName)
	})

	t.Run("service accounts", func(t *testing.T) {
		s := sections[model.SectionServiceAccounts]
		require.Len(t, s.Records, 1)
		a := s.Records[0].(model.ServiceAccount)
		assert.Equal(t, "gMSA", a.AccountType)
		assert.Equal(t, "Never", model.FormatDate(a.LastLogon))
	})

	t.Run("mail servers", func(t *testing.T) {
		m := sections[model.SectionMailServers].Records[0].(model.MailServer)
		assert.Equal(t, "Mailbox, ClientAccess", m.Roles)
		assert.Equal(t, "Exchange 2019", m.Version)
		assert.Equal(t, "1118.7", m.Build)
	})

	t.Run("policy objects", func(t *testing.T) {
		s := sections[model.SectionPolicyObjects]
		require.Len(t, s.Records, 2)
		assert.Equal(t, model.Healthy, s.Records[0].(model.PolicyObject).Status.Status)
		assert.Equal(t, model.Critical, s.Records[1].(model.PolicyObject).Status.Status)
		assert.Equal(t, "2024-01-02", model.FormatDate(s.Records[0].(model.PolicyObject).CreationTime))
	})

	t.Run("FSMO summary", func(t *testing.T) {
		s := sections[model.SectionFSMO]
		require.Len(t, s.Records, 5)
		schema := s.Records[0].(model.FSMORole)
		assert.Equal(t, "DC01.corp.example.com", schema.Holder.Value)
		infra := s.Records[4].(model.FSMORole)
		assert.Equal(t, "InfrastructureMaster", infra.Role)
		assert.Equal(t, model.Critical, infra.Holder.Status)
		assert.Equal(t, "Unassigned", infra.Holder.Value)
	})
}

func TestAggregateTier(t *testing.T) {
	env := newEnv(t, inventory)
	ctx := context.Background()

	t.Run("direct members in group then member order", func(t *testing.T) {
		records, err := AggregateTier(ctx, env.Source, model.Tier0, []string{"Domain Admins", "Enterprise Admins"})
		require.NoError(t, err)
		require.Len(t, records, 4)

		alice := records[0].(model.TierAccountEntry)
		assert.Equal(t, model.Tier0, alice.Tier)
		assert.Equal(t, "Domain Admins", alice.GroupName)
		assert.Equal(t, AccountTypeUser, alice.AccountType)
		assert.Equal(t, model.Healthy, alice.Enabled.Status)
		assert.Equal(t, "2026-10-12", alice.LastLogon)
		assert.Equal(t, "2024-10-10", alice.PasswordLastSet)

		nested := records[1].(model.TierAccountEntry)
		assert.Equal(t, AccountTypeGroup, nested.AccountType)
		assert.Equal(t, "Tier0 Operators", nested.MemberName)

		bob := records[2].(model.TierAccountEntry)
		assert.Equal(t, AccountTypeUnknown, bob.AccountType)
		assert.Contains(t, bob.Note, "insufficient access rights")

		computer := records[3].(model.TierAccountEntry)
		assert.Equal(t, "computer", computer.AccountType)
	})

	t.Run("only users carry account fields", func(t *testing.T) {
		records, err := AggregateTier(ctx, env.Source, model.Tier0, []string{"Domain Admins"})
		require.NoError(t, err)
		for _, r := range records {
			e := r.(model.TierAccountEntry)
			isUser := e.AccountType == AccountTypeUser
			for _, v := range []string{e.Enabled.Value, e.LastLogon, e.PasswordLastSet} {
				assert.Equal(t, isUser, v != model.NotApplicable, "%s %s", e.MemberName, v)
			}
		}
	})

	t.Run("no deduplication across tiers", func(t *testing.T) {
		t0, err := AggregateTier(ctx, env.Source, model.Tier0, []string{"Domain Admins"})
		require.NoError(t, err)
		t1, err := AggregateTier(ctx, env.Source, model.Tier1, []string{"DnsAdmins"})
		require.NoError(t, err)
		require.Len(t, t1, 1)
		assert.Equal(t, "Alice", t0[0].(model.TierAccountEntry).MemberName)
		assert.Equal(t, "Alice", t1[0].(model.TierAccountEntry).MemberName)
		assert.Equal(t, model.Tier1, t1[0].(model.TierAccountEntry).Tier)
		// 组记录没有 Name 时使用配置中的组名
		assert.Equal(t, "DnsAdmins", t1[0].(model.TierAccountEntry).GroupName)
	})

	t.Run("no configured group exists", func(t *testing.T) {
		records, err := AggregateTier(ctx, env.Source, model.Tier2, []string{"Helpdesk"})
		require.NoError(t, err)
		require.Len(t, records, 1)
		e := records[0].(model.TierAccountEntry)
		assert.Equal(t, model.NotApplicable, e.AccountType)
		assert.Equal(t, NotFoundNote, e.Note)
	})

	t.Run("empty configuration", func(t *testing.T) {
		records, err := AggregateTier(ctx, env.Source, model.Tier2, nil)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "(none configured)", records[0].(model.TierAccountEntry).GroupName)
	})
}

// failingSource 只回答林查询，其余全部失败
type failingSource struct {
	forest source.Source
}

func (f failingSource) Query(ctx context.Context, req *source.Request) (*source.Response, error) {
	if req.Kind == source.KindForest {
		return f.forest.Query(ctx, req)
	}
	return nil, errors.New("the server is not operational")
}

func TestCollect_NoDomainControllersReachable(t *testing.T) {
	snap, err := snapshot.Parse([]byte(inventory))
	require.NoError(t, err)
	tiers := config.TierConfig{Tier0: []string{"Domain Admins"}, Tier1: []string{"DnsAdmins"}, Tier2: []string{"Helpdesk"}}
	env := NewEnv(failingSource{forest: snap}, now, tiers)

	sections := collectAll(t, env)
	require.Len(t, sections, 13)
	assert.Equal(t, model.StatePopulated, sections[model.SectionForest].State)
	for ordinal := model.SectionDomainControllers; ordinal <= model.SectionFSMO; ordinal++ {
		s := sections[ordinal]
		assert.Contains(t, []model.SectionState{model.StateFailed, model.StateEmpty}, s.State, s.Name)
		assert.Empty(t, s.Records, s.Name)
		assert.NotEmpty(t, s.Note, s.Name)
	}
}

func TestCollect_ZeroDomainControllers(t *testing.T) {
	env := newEnv(t, `
queries:
  - kind: domain_controllers
    records: []
`)
	sections := collectAll(t, env)
	assert.Equal(t, model.StateEmpty, sections[model.SectionDomainControllers].State)
	for _, ordinal := range []int{model.SectionReplication, model.SectionDNS, model.SectionFSMO} {
		s := sections[ordinal]
		assert.Equal(t, model.StateEmpty, s.State)
		assert.Equal(t, noDomainControllers, s.Note)
	}
}

func TestCollect_NoDHCPServers(t *testing.T) {
	env := newEnv(t, `
queries:
  - kind: dhcp_servers
    records: []
`)
	_, err := collectDHCPScopes(context.Background(), env)
	assert.ErrorIs(t, err, errNoDHCPServers)
}

func TestCollect_ReplicationAllFail(t *testing.T) {
	env := newEnv(t, inventory)
	env.Add(model.NewSection(model.Catalog[1], []model.Record{
		model.DomainController{HostName: "DC02.corp.example.com"},
	}, ""))
	_, err := collectReplication(context.Background(), env)
	assert.ErrorContains(t, err, "The RPC server is unavailable")
}

func TestCollect_PartialWithoutRecords(t *testing.T) {
	env := newEnv(t, `
queries:
  - kind: replication
    target: DC01.corp.example.com
    error: The RPC server is unavailable
  - kind: replication
    target: DC02.corp.example.com
    records: []
  - kind: dhcp_servers
    records:
      - DnsName: dhcp01.corp.example.com
      - DnsName: dhcp02.corp.example.com
  - kind: dhcp_scopes
    target: dhcp01.corp.example.com
    error: Access is denied
  - kind: dhcp_scopes
    target: dhcp02.corp.example.com
    records: []
`)
	env.Add(model.NewSection(model.Catalog[1], []model.Record{
		model.DomainController{HostName: "DC01.corp.example.com"},
		model.DomainController{HostName: "DC02.corp.example.com"},
	}, ""))

	t.Run("replication", func(t *testing.T) {
		res, err := collectReplication(context.Background(), env)
		require.NoError(t, err)
		assert.True(t, res.Partial)

		s := res.Section(model.Catalog[2])
		assert.Equal(t, model.StatePartial, s.State)
		assert.Empty(t, s.Records)
		assert.Equal(t, "replication metadata unavailable for DC01.corp.example.com: The RPC server is unavailable", s.Note)
	})

	t.Run("dhcp", func(t *testing.T) {
		res, err := collectDHCPScopes(context.Background(), env)
		require.NoError(t, err)

		s := res.Section(model.Catalog[5])
		assert.Equal(t, model.StatePartial, s.State)
		assert.Empty(t, s.Records)
		assert.Contains(t, s.Note, "scopes unavailable for dhcp01.corp.example.com: Access is denied")
	})

	t.Run("successful empty query stays empty", func(t *testing.T) {
		res := Result{Note: noDomainControllers}
		s := res.Section(model.Catalog[2])
		assert.Equal(t, model.StateEmpty, s.State)
		assert.Equal(t, noDomainControllers, s.Note)
	})
}

func TestCollect_MalformedFailsSection(t *testing.T) {
	env := newEnv(t, `
queries:
  - kind: gpos
    records:
      - DisplayName: Broken
        CreationTime: yesterday
`)
	_, err := collectPolicyObjects(context.Background(), env)
	assert.ErrorIs(t, err, source.ErrMalformed)
}

func TestDecodeExchangeRoles(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"2", "Mailbox"},
		{"36", "ClientAccess, HubTransport"},
		{"54", "Mailbox, ClientAccess, UnifiedMessaging, HubTransport"},
		{"64", "EdgeTransport"},
		{"16385", "ClientAccess"},
		{"16439", "Mailbox, ClientAccess"},
		{"1", "1"},
		{"130", "130"},
		{"Mailbox", "Mailbox"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DecodeExchangeRoles(tt.raw), tt.raw)
	}
}

func TestDecodeExchangeVersion(t *testing.T) {
	product, build := DecodeExchangeVersion("Version 15.1 (Build 2507.6)")
	assert.Equal(t, "Exchange 2016", product)
	assert.Equal(t, "2507.6", build)

	product, build = DecodeExchangeVersion("Version 14.3 (Build 123.4)")
	assert.Equal(t, "Exchange 2010", product)
	assert.Equal(t, "123.4", build)

	product, build = DecodeExchangeVersion("Version 99.0")
	assert.Equal(t, "Version 99.0", product)
	assert.Equal(t, "", build)
}
