package ldapdir

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/logger"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/source"
)

// FSMO 角色，按固定顺序列出
var roleOrder = []string{"SchemaMaster", "DomainNamingMaster", "PDCEmulator", "RIDMaster", "InfrastructureMaster"}

func (c *Client) search(base string, scope int, filter string, attrs []string) ([]*ldap.Entry, error) {
	res, err := c.dir.Search(ldap.NewSearchRequest(base, scope, ldap.NeverDerefAliases, 0, 0, false, filter, attrs, nil))
	if err != nil {
		return nil, err
	}
	return res.Entries, nil
}

// searchOptional 容器不存在时返回零条记录，例如未部署 Exchange
func (c *Client) searchOptional(base string, scope int, filter string, attrs []string) ([]*ldap.Entry, error) {
	entries, err := c.search(base, scope, filter, attrs)
	if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
		return nil, nil
	}
	return entries, err
}

func (c *Client) sitesDN() string      { return "CN=Sites," + c.root.configNC }
func (c *Client) partitionsDN() string { return "CN=Partitions," + c.root.configNC }

// topology 站点下的服务器对象：DN -> 主机名，以及全局编录服务器集合
func (c *Client) topology() (map[string]string, map[string]bool, error) {
	servers, err := c.search(c.sitesDN(), ldap.ScopeWholeSubtree, "(objectClass=server)", []string{"dNSHostName"})
	if err != nil {
		return nil, nil, fmt.Errorf("read servers: %w", err)
	}
	hosts := make(map[string]string, len(servers))
	for _, e := range servers {
		hosts[normDN(e.DN)] = e.GetAttributeValue("dNSHostName")
	}

	dsas, err := c.search(c.sitesDN(), ldap.ScopeWholeSubtree, "(objectClass=nTDSDSA)", []string{"options"})
	if err != nil {
		return nil, nil, fmt.Errorf("read NTDS settings: %w", err)
	}
	gcs := make(map[string]bool)
	for _, e := range dsas {
		opts, _ := strconv.ParseInt(e.GetAttributeValue("options"), 10, 64)
		if opts&nTDSDSAOptIsGC != 0 {
			gcs[normDN(parentDN(e.DN))] = true
		}
	}
	return hosts, gcs, nil
}

// roleOwners 读取五个 FSMO 角色对象的 fSMORoleOwner，返回角色 -> 主机名
func (c *Client) roleOwners(hosts map[string]string) (map[string]string, error) {
	objects := map[string]string{
		"SchemaMaster":         c.root.schemaNC,
		"DomainNamingMaster":   c.partitionsDN(),
		"PDCEmulator":          c.root.defaultNC,
		"RIDMaster":            "CN=RID Manager$,CN=System," + c.root.defaultNC,
		"InfrastructureMaster": "CN=Infrastructure," + c.root.defaultNC,
	}

	owners := make(map[string]string, len(objects))
	for _, role := range roleOrder {
		entries, err := c.searchOptional(objects[role], ldap.ScopeBaseObject, "(objectClass=*)", []string{"fSMORoleOwner"})
		if err != nil {
			return nil, fmt.Errorf("read %s owner: %w", role, err)
		}
		if len(entries) == 0 {
			continue
		}
		owner := entries[0].GetAttributeValue("fSMORoleOwner")
		if owner == "" {
			continue
		}
		// 持有者是 NTDS Settings 对象，上一级才是服务器
		serverDN := parentDN(owner)
		if host := hosts[normDN(serverDN)]; host != "" {
			owners[role] = host
		} else {
			owners[role] = rdnValue(owner, 1)
		}
	}
	return owners, nil
}

func (c *Client) forest() ([]source.Attributes, error) {
	hosts, gcs, err := c.topology()
	if err != nil {
		return nil, err
	}
	owners, err := c.roleOwners(hosts)
	if err != nil {
		return nil, err
	}

	crossRefs, err := c.search(c.partitionsDN(), ldap.ScopeSingleLevel,
		fmt.Sprintf("(&(objectClass=crossRef)(systemFlags:%s:=%d))", matchBit, crossRefNTDSDomain),
		[]string{"dnsRoot"})
	if err != nil {
		return nil, fmt.Errorf("read partitions: %w", err)
	}
	var domains []string
	for _, e := range crossRefs {
		domains = append(domains, e.GetAttributeValue("dnsRoot"))
	}
	sort.Strings(domains)

	partitions, err := c.search(c.partitionsDN(), ldap.ScopeBaseObject, "(objectClass=*)", []string{"uPNSuffixes"})
	if err != nil {
		return nil, fmt.Errorf("read UPN suffixes: %w", err)
	}
	var upn []string
	if len(partitions) > 0 {
		upn = partitions[0].GetAttributeValues("uPNSuffixes")
	}

	siteEntries, err := c.search(c.sitesDN(), ldap.ScopeSingleLevel, "(objectClass=site)", []string{"cn"})
	if err != nil {
		return nil, fmt.Errorf("read sites: %w", err)
	}
	var sites []string
	for _, e := range siteEntries {
		sites = append(sites, e.GetAttributeValue("cn"))
	}
	sort.Strings(sites)

	var globalCatalogs []string
	for dn := range gcs {
		if h := hosts[dn]; h != "" {
			globalCatalogs = append(globalCatalogs, h)
		}
	}
	sort.Strings(globalCatalogs)

	root := dnsFromDN(c.root.rootDomainNC)
	return []source.Attributes{{
		source.FieldName:               root,
		source.FieldForestMode:         forestMode(c.root.forestLevel),
		source.FieldRootDomain:         root,
		source.FieldDomains:            domains,
		source.FieldGlobalCatalogs:     globalCatalogs,
		source.FieldSites:              sites,
		source.FieldUPNSuffixes:        upn,
		source.FieldSchemaMaster:       owners["SchemaMaster"],
		source.FieldDomainNamingMaster: owners["DomainNamingMaster"],
	}}, nil
}

func (c *Client) domainControllers(ctx context.Context) ([]source.Attributes, error) {
	entries, err := c.search(c.root.defaultNC, ldap.ScopeWholeSubtree,
		fmt.Sprintf("(&(objectCategory=computer)(|(userAccountControl:%[1]s:=%[2]d)(userAccountControl:%[1]s:=%[3]d)))", matchBit, uacServerTrust, uacPartialSecrets),
		[]string{"dNSHostName", "operatingSystem", "operatingSystemVersion", "serverReferenceBL", "userAccountControl"})
	if err != nil {
		return nil, err
	}
	hosts, gcs, err := c.topology()
	if err != nil {
		return nil, err
	}
	owners, err := c.roleOwners(hosts)
	if err != nil {
		return nil, err
	}

	records := make([]source.Attributes, 0, len(entries))
	for _, e := range entries {
		host := e.GetAttributeValue("dNSHostName")
		serverRef := e.GetAttributeValue("serverReferenceBL")

		var roles []string
		for _, role := range roleOrder {
			if owners[role] != "" && strings.EqualFold(owners[role], host) {
				roles = append(roles, role)
			}
		}

		ip := ""
		if addrs, err := c.lookupIP(ctx, host); err != nil {
			logger.Log.WithField("host", host).Debugf("解析域控地址失败: %v", err)
		} else if len(addrs) > 0 {
			ip = addrs[0].String()
		}

		records = append(records, source.Attributes{
			source.FieldHostName:             host,
			source.FieldSite:                 siteFromServerReference(serverRef),
			source.FieldIPv4Address:          ip,
			source.FieldOperatingSystem:      e.GetAttributeValue("operatingSystem"),
			source.FieldOSVersion:            e.GetAttributeValue("operatingSystemVersion"),
			source.FieldIsGlobalCatalog:      gcs[normDN(serverRef)],
			source.FieldIsReadOnly:           uac(e)&uacPartialSecrets != 0,
			source.FieldOperationMasterRoles: roles,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i][source.FieldHostName].(string) < records[j][source.FieldHostName].(string)
	})
	return records, nil
}

func (c *Client) sites() ([]source.Attributes, error) {
	entries, err := c.search(c.sitesDN(), ldap.ScopeSingleLevel, "(objectClass=site)", []string{"cn", "description", "location"})
	if err != nil {
		return nil, err
	}
	subnets, err := c.searchOptional("CN=Subnets,"+c.sitesDN(), ldap.ScopeSingleLevel, "(objectClass=subnet)", []string{"cn", "siteObject"})
	if err != nil {
		return nil, fmt.Errorf("read subnets: %w", err)
	}
	bySite := make(map[string][]string)
	for _, e := range subnets {
		site := normDN(e.GetAttributeValue("siteObject"))
		bySite[site] = append(bySite[site], e.GetAttributeValue("cn"))
	}

	records := make([]source.Attributes, 0, len(entries))
	for _, e := range entries {
		nets := bySite[normDN(e.DN)]
		sort.Strings(nets)
		records = append(records, source.Attributes{
			source.FieldName:        e.GetAttributeValue("cn"),
			source.FieldDescription: e.GetAttributeValue("description"),
			source.FieldLocation:    e.GetAttributeValue("location"),
			source.FieldSubnets:     nets,
		})
	}
	return records, nil
}

func (c *Client) group(name string) ([]source.Attributes, error) {
	escaped := ldap.EscapeFilter(name)
	entries, err := c.search(c.root.defaultNC, ldap.ScopeWholeSubtree,
		fmt.Sprintf("(&(objectClass=group)(|(cn=%s)(sAMAccountName=%s)))", escaped, escaped),
		[]string{"cn"})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	e := entries[0]
	return []source.Attributes{{
		source.FieldDistinguishedName: e.DN,
		source.FieldName:              e.GetAttributeValue("cn"),
	}}, nil
}

// groupMembers 只返回直接成员，嵌套组不展开。先按 member 属性的目录顺序，
// 再追加以该组为主要组的账户，后者不会出现在 member 中
func (c *Client) groupMembers(groupDN string) ([]source.Attributes, error) {
	dns, sid, err := c.memberDNs(groupDN)
	if err != nil {
		return nil, err
	}
	records := make([]source.Attributes, 0, len(dns))
	for _, dn := range dns {
		m, err := c.member(dn)
		if err != nil {
			return nil, fmt.Errorf("resolve member %s: %w", dn, err)
		}
		records = append(records, m)
	}

	rid, ok := sidRID(sid)
	if !ok {
		return records, nil
	}
	entries, err := c.search(c.root.defaultNC, ldap.ScopeWholeSubtree,
		fmt.Sprintf("(primaryGroupID=%d)", rid), []string{"cn", "objectClass"})
	if err != nil {
		return nil, fmt.Errorf("read primary group members: %w", err)
	}
	for _, e := range entries {
		records = append(records, memberAttributes(e.DN, e))
	}
	return records, nil
}

// memberDNs 读取组对象的 member 属性，超过服务器上限时按区间分段读取
func (c *Client) memberDNs(groupDN string) ([]string, []byte, error) {
	var (
		dns []string
		sid []byte
	)
	attr := "member"
	for {
		entries, err := c.search(groupDN, ldap.ScopeBaseObject, "(objectClass=*)", []string{attr, "objectSid"})
		if err != nil {
			return nil, nil, err
		}
		if len(entries) == 0 {
			return nil, nil, fmt.Errorf("group %s not found", groupDN)
		}
		e := entries[0]
		if sid == nil {
			sid = e.GetRawAttributeValue("objectSid")
		}
		values, next := memberRange(e)
		dns = append(dns, values...)
		if next < 0 {
			return dns, sid, nil
		}
		attr = fmt.Sprintf("member;range=%d-*", next)
	}
}

// memberRange 返回本次读到的成员和下一区间的起点，读完时为 -1
func memberRange(e *ldap.Entry) ([]string, int) {
	for _, a := range e.Attributes {
		name := strings.ToLower(a.Name)
		if name == "member" {
			return a.Values, -1
		}
		bounds, ok := strings.CutPrefix(name, "member;range=")
		if !ok {
			continue
		}
		_, end, _ := strings.Cut(bounds, "-")
		last, err := strconv.Atoi(end)
		if err != nil {
			// 区间上限为 *，已是最后一段
			return a.Values, -1
		}
		return a.Values, last + 1
	}
	return nil, -1
}

// member 解析单个成员；对象在本域之外无法读取时只保留 DN 中的名称
func (c *Client) member(dn string) (source.Attributes, error) {
	entries, err := c.searchOptional(dn, ldap.ScopeBaseObject, "(objectClass=*)", []string{"cn", "objectClass"})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		logger.Log.Warnf("无法读取组成员 %s，类型未知", dn)
		return memberAttributes(dn, nil), nil
	}
	return memberAttributes(dn, entries[0]), nil
}

func memberAttributes(dn string, e *ldap.Entry) source.Attributes {
	if e == nil {
		return source.Attributes{
			source.FieldName:              rdnValue(dn, 0),
			source.FieldObjectClass:       "",
			source.FieldDistinguishedName: dn,
		}
	}
	name := e.GetAttributeValue("cn")
	if name == "" {
		name = rdnValue(dn, 0)
	}
	return source.Attributes{
		source.FieldName:              name,
		source.FieldObjectClass:       mostSpecificClass(e),
		source.FieldDistinguishedName: dn,
	}
}

func (c *Client) account(dn string) ([]source.Attributes, error) {
	entries, err := c.search(dn, ldap.ScopeBaseObject, "(objectClass=*)",
		[]string{"userAccountControl", "lastLogonTimestamp", "pwdLastSet"})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("account %s not found", dn)
	}
	e := entries[0]
	return []source.Attributes{{
		source.FieldEnabled:         accountEnabled(e),
		source.FieldLastLogon:       e.GetAttributeValue("lastLogonTimestamp"),
		source.FieldPasswordLastSet: e.GetAttributeValue("pwdLastSet"),
	}}, nil
}

func (c *Client) serviceAccounts() ([]source.Attributes, error) {
	entries, err := c.search(c.root.defaultNC, ldap.ScopeWholeSubtree,
		"(|(objectClass=msDS-GroupManagedServiceAccount)(objectClass=msDS-ManagedServiceAccount)(&(objectCategory=person)(objectClass=user)(servicePrincipalName=*)(!(sAMAccountName=krbtgt))))",
		[]string{"cn", "sAMAccountName", "objectClass", "userAccountControl", "pwdLastSet", "lastLogonTimestamp", "servicePrincipalName", "description"})
	if err != nil {
		return nil, err
	}
	records := make([]source.Attributes, 0, len(entries))
	for _, e := range entries {
		records = append(records, source.Attributes{
			source.FieldName:                  e.GetAttributeValue("cn"),
			source.FieldSamAccountName:        e.GetAttributeValue("sAMAccountName"),
			source.FieldObjectClass:           mostSpecificClass(e),
			source.FieldEnabled:               accountEnabled(e),
			source.FieldPasswordLastSet:       e.GetAttributeValue("pwdLastSet"),
			source.FieldLastLogon:             e.GetAttributeValue("lastLogonTimestamp"),
			source.FieldServicePrincipalNames: e.GetAttributeValues("servicePrincipalName"),
			source.FieldDescription:           e.GetAttributeValue("description"),
		})
	}
	return records, nil
}

func (c *Client) mailServers() ([]source.Attributes, error) {
	entries, err := c.searchOptional("CN=Microsoft Exchange,CN=Services,"+c.root.configNC, ldap.ScopeWholeSubtree,
		"(objectClass=msExchExchangeServer)",
		[]string{"cn", "msExchCurrentServerRoles", "serialNumber", "msExchServerSite"})
	if err != nil {
		return nil, err
	}
	records := make([]source.Attributes, 0, len(entries))
	for _, e := range entries {
		records = append(records, source.Attributes{
			source.FieldName:         e.GetAttributeValue("cn"),
			source.FieldSite:         rdnValue(e.GetAttributeValue("msExchServerSite"), 0),
			source.FieldServerRoles:  e.GetAttributeValue("msExchCurrentServerRoles"),
			source.FieldSerialNumber: e.GetAttributeValue("serialNumber"),
		})
	}
	return records, nil
}

func (c *Client) gpos() ([]source.Attributes, error) {
	entries, err := c.search("CN=Policies,CN=System,"+c.root.defaultNC, ldap.ScopeSingleLevel,
		"(objectClass=groupPolicyContainer)",
		[]string{"displayName", "cn", "flags", "whenCreated", "whenChanged"})
	if err != nil {
		return nil, err
	}
	records := make([]source.Attributes, 0, len(entries))
	for _, e := range entries {
		records = append(records, source.Attributes{
			source.FieldDisplayName:      e.GetAttributeValue("displayName"),
			source.FieldID:               trimBraces(e.GetAttributeValue("cn")),
			source.FieldGpoStatus:        gpoStatus(e.GetAttributeValue("flags")),
			source.FieldCreationTime:     e.GetAttributeValue("whenCreated"),
			source.FieldModificationTime: e.GetAttributeValue("whenChanged"),
		})
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i][source.FieldDisplayName].(string) < records[j][source.FieldDisplayName].(string)
	})
	return records, nil
}

// dnsZones 读取 AD 集成区域，域分区、林分区以及旧式 System 容器
func (c *Client) dnsZones() ([]source.Attributes, error) {
	containers := []string{
		"CN=MicrosoftDNS,DC=DomainDnsZones," + c.root.defaultNC,
		"CN=MicrosoftDNS,DC=ForestDnsZones," + c.root.rootDomainNC,
		"CN=MicrosoftDNS,CN=System," + c.root.defaultNC,
	}
	var records []source.Attributes
	for _, base := range containers {
		entries, err := c.searchOptional(base, ldap.ScopeSingleLevel, "(objectClass=dnsZone)", []string{"name", "dnsProperty"})
		if err != nil {
			return nil, fmt.Errorf("read zones in %s: %w", base, err)
		}
		for _, e := range entries {
			name := e.GetAttributeValue("name")
			if systemZone(name) {
				continue
			}
			records = append(records, source.Attributes{
				source.FieldZoneName:      name,
				source.FieldZoneType:      "Primary",
				source.FieldDsIntegrated:  true,
				source.FieldReverseLookup: reverseZone(name),
				source.FieldDynamicUpdate: dynamicUpdate(e.GetRawAttributeValues("dnsProperty")),
			})
		}
	}
	return records, nil
}

// dhcpServers 目录中已授权的 DHCP 服务器
func (c *Client) dhcpServers() ([]source.Attributes, error) {
	entries, err := c.searchOptional("CN=NetServices,CN=Services,"+c.root.configNC, ldap.ScopeSingleLevel,
		"(objectClass=dHCPClass)", []string{"cn"})
	if err != nil {
		return nil, err
	}
	var records []source.Attributes
	for _, e := range entries {
		name := e.GetAttributeValue("cn")
		if name == "" || name == "DhcpRoot" {
			continue
		}
		records = append(records, source.Attributes{source.FieldDNSName: name})
	}
	return records, nil
}
