package ldapdir

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/health"
)

// userAccountControl 标志位
const (
	uacAccountDisable   = 0x2
	uacServerTrust      = 0x2000
	uacPartialSecrets   = 0x4000000
	nTDSDSAOptIsGC      = 0x1
	crossRefNTDSDomain  = 0x2
	dnsPropertyAllowUpd = 0x2
)

// matchBit LDAP_MATCHING_RULE_BIT_AND
const matchBit = "1.2.840.113556.1.4.803"

// dnsFromDN DC=corp,DC=example,DC=com -> corp.example.com
func dnsFromDN(dn string) string {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return ""
	}
	var labels []string
	for _, rdn := range parsed.RDNs {
		for _, a := range rdn.Attributes {
			if strings.EqualFold(a.Type, "DC") {
				labels = append(labels, a.Value)
			}
		}
	}
	return strings.Join(labels, ".")
}

// rdnValue 返回第 i 个 RDN 的值，0 为最左侧
func rdnValue(dn string, i int) string {
	parsed, err := ldap.ParseDN(dn)
	if err != nil || i >= len(parsed.RDNs) || len(parsed.RDNs[i].Attributes) == 0 {
		return ""
	}
	return parsed.RDNs[i].Attributes[0].Value
}

// parentDN 去掉最左侧的 RDN
func parentDN(dn string) string {
	for i := 0; i < len(dn); i++ {
		switch dn[i] {
		case '\\':
			i++
		case ',':
			return strings.TrimSpace(dn[i+1:])
		}
	}
	return ""
}

// normDN 用于比较的 DN 形式
func normDN(dn string) string {
	return strings.ToLower(strings.ReplaceAll(dn, ", ", ","))
}

// siteFromServerReference CN=DC01,CN=Servers,CN=<Site>,CN=Sites,... 中的站点名
func siteFromServerReference(dn string) string {
	return rdnValue(dn, 2)
}

var forestModes = map[string]string{
	"0":  "Windows2000Forest",
	"1":  "Windows2003InterimForest",
	"2":  "Windows2003Forest",
	"3":  "Windows2008Forest",
	"4":  "Windows2008R2Forest",
	"5":  "Windows2012Forest",
	"6":  "Windows2012R2Forest",
	"7":  "Windows2016Forest",
	"10": "Windows2025Forest",
}

// forestMode 林功能级别，未知值原样返回
func forestMode(level string) string {
	if m, ok := forestModes[level]; ok {
		return m
	}
	return level
}

// gpoStatus flags 属性转换为 GpoStatus 名称
func gpoStatus(flags string) string {
	switch strings.TrimSpace(flags) {
	case "", "0":
		return health.GpoAllSettingsEnabled
	case "1":
		return health.GpoUserSettingsDisabled
	case "2":
		return health.GpoComputerSettingsDisabled
	case "3":
		return health.GpoAllSettingsDisabled
	default:
		return flags
	}
}

func uac(e *ldap.Entry) int64 {
	v, err := strconv.ParseInt(e.GetAttributeValue("userAccountControl"), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// accountEnabled ACCOUNTDISABLE 位未设置即启用
func accountEnabled(e *ldap.Entry) bool {
	return uac(e)&uacAccountDisable == 0
}

// mostSpecificClass objectClass 按继承顺序返回，最后一个最具体
func mostSpecificClass(e *ldap.Entry) string {
	classes := e.GetAttributeValues("objectClass")
	if len(classes) == 0 {
		return ""
	}
	return classes[len(classes)-1]
}

// dynamicUpdate 解析 dnsProperty 中的 DSPROPERTY_ZONE_ALLOW_UPDATE
//
//	DataLength(4) NameLength(4) Flag(4) Version(4) Id(4) Data(DataLength)
func dynamicUpdate(props [][]byte) string {
	for _, p := range props {
		if len(p) < 20 {
			continue
		}
		dataLen := binary.LittleEndian.Uint32(p[0:4])
		id := binary.LittleEndian.Uint32(p[16:20])
		if id != dnsPropertyAllowUpd || dataLen < 1 || len(p) < 21 {
			continue
		}
		switch p[20] {
		case 0:
			return "None"
		case 1:
			return "NonsecureAndSecure"
		case 2:
			return "Secure"
		default:
			return strconv.Itoa(int(p[20]))
		}
	}
	return ""
}

// reverseZone in-addr.arpa 与 ip6.arpa 为反向查找区域
func reverseZone(name string) bool {
	n := strings.ToLower(strings.TrimSuffix(name, "."))
	return strings.HasSuffix(n, ".in-addr.arpa") || strings.HasSuffix(n, ".ip6.arpa")
}

// systemZone 目录中保留的内部区域
func systemZone(name string) bool {
	return name == "RootDNSServers" || strings.HasPrefix(name, "..")
}

// trimBraces {GUID} -> GUID
func trimBraces(s string) string {
	return strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")
}

// sidRID 二进制 objectSid 的最后一个子授权即 RID
//
//	Revision(1) SubAuthorityCount(1) IdentifierAuthority(6) SubAuthority(4*n)
func sidRID(sid []byte) (uint32, bool) {
	if len(sid) < 12 {
		return 0, false
	}
	n := int(sid[1])
	if n == 0 || len(sid) != 8+4*n {
		return 0, false
	}
	return binary.LittleEndian.Uint32(sid[len(sid)-4:]), true
}
