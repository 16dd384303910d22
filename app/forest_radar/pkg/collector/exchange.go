package collector

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/model"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/source"
)

// Exchange 2013 及以后版本使用的组合角色值
var exchangeCompositeRoles = map[int]string{
	16385: "ClientAccess",
	16439: "Mailbox, ClientAccess",
}

// Exchange 2007/2010 的角色位
var exchangeRoleBits = []struct {
	bit  int
	name string
}{
	{2, "Mailbox"},
	{4, "ClientAccess"},
	{16, "UnifiedMessaging"},
	{32, "HubTransport"},
	{64, "EdgeTransport"},
}

// DecodeExchangeRoles msExchCurrentServerRoles 转换为角色名，无法识别的值原样返回
func DecodeExchangeRoles(raw string) string {
	raw = strings.TrimSpace(raw)
	code, err := strconv.Atoi(raw)
	if err != nil {
		return raw
	}
	if name, ok := exchangeCompositeRoles[code]; ok {
		return name
	}

	var names []string
	rest := code
	for _, r := range exchangeRoleBits {
		if code&r.bit != 0 {
			names = append(names, r.name)
			rest &^= r.bit
		}
	}
	if len(names) == 0 || rest != 0 {
		return raw
	}
	return strings.Join(names, ", ")
}

// 版本前缀按从具体到宽泛排列
var exchangeVersions = []struct {
	prefix  string
	product string
}{
	{"Version 15.2", "Exchange 2019"},
	{"Version 15.1", "Exchange 2016"},
	{"Version 15.0", "Exchange 2013"},
	{"Version 14", "Exchange 2010"},
	{"Version 8", "Exchange 2007"},
}

var buildPattern = regexp.MustCompile(`\(Build ([0-9.]+)\)`)

// DecodeExchangeVersion serialNumber 转换为产品名与内部版本号，产品无法识别时返回原始值
func DecodeExchangeVersion(serial string) (product, build string) {
	serial = strings.TrimSpace(serial)
	if m := buildPattern.FindStringSubmatch(serial); m != nil {
		build = m[1]
	}
	for _, v := range exchangeVersions {
		if strings.HasPrefix(serial, v.prefix) {
			return v.product, build
		}
	}
	return serial, build
}

func collectMailServers(ctx context.Context, env *Env) (Result, error) {
	rows, err := env.query(ctx, &source.Request{Kind: source.KindMailServers})
	if err != nil {
		return Result{}, err
	}

	records := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		r := source.Read(row)
		version, build := DecodeExchangeVersion(r.String(source.FieldSerialNumber))
		m := model.MailServer{
			Name:    r.String(source.FieldName),
			Site:    r.String(source.FieldSite),
			Roles:   DecodeExchangeRoles(r.String(source.FieldServerRoles)),
			Version: version,
			Build:   build,
			Edition: r.String(source.FieldEdition),
		}
		if err := r.Err(); err != nil {
			return Result{}, err
		}
		records = append(records, m)
	}
	return Result{Records: records}, nil
}
