package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/config"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/health"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/model"
	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/source"
)

// 成员类型
const (
	AccountTypeUser    = "User"
	AccountTypeGroup   = "group"
	AccountTypeUnknown = "Unknown"
)

// NotFoundNote 层级内配置的组一个都不存在时的说明
const NotFoundNote = "Not found - customize configuration"

func tierCollector(tier model.Tier) func(ctx context.Context, env *Env) (Result, error) {
	return func(ctx context.Context, env *Env) (Result, error) {
		records, err := AggregateTier(ctx, env.Source, tier, tierGroups(env.Tiers, tier))
		if err != nil {
			return Result{}, err
		}
		return Result{Records: records}, nil
	}
}

func tierGroups(cfg config.TierConfig, tier model.Tier) []string {
	switch tier {
	case model.Tier0:
		return cfg.Tier0
	case model.Tier1:
		return cfg.Tier1
	default:
		return cfg.Tier2
	}
}

// AggregateTier 解析一个层级下所有配置的特权组，每个直接成员一条记录。
// 不存在的组跳过；嵌套组只列出不展开；用户账户解析失败时该成员记为 Unknown。
// 一个组都不存在时返回一条说明记录。
func AggregateTier(ctx context.Context, src source.Source, tier model.Tier, groups []string) ([]model.Record, error) {
	var (
		records []model.Record
		found   int
	)
	for _, name := range groups {
		resp, err := src.Query(ctx, &source.Request{Kind: source.KindGroup, Name: name})
		if err != nil {
			return nil, fmt.Errorf("resolve group %s: %w", name, err)
		}
		if len(resp.Records) == 0 {
			continue
		}
		found++

		g := source.Read(resp.Records[0])
		groupDN := g.String(source.FieldDistinguishedName)
		groupName := g.String(source.FieldName)
		if err := g.Err(); err != nil {
			return nil, fmt.Errorf("resolve group %s: %w", name, err)
		}
		if groupName == "" {
			groupName = name
		}
		if groupDN == "" {
			groupDN = name
		}

		members, err := src.Query(ctx, &source.Request{Kind: source.KindGroupMembers, Target: groupDN})
		if err != nil {
			return nil, fmt.Errorf("enumerate members of %s: %w", groupName, err)
		}
		for _, m := range members.Records {
			records = append(records, memberEntry(ctx, src, tier, groupName, m))
		}
	}

	if found == 0 {
		return []model.Record{notFoundEntry(tier, groups)}, nil
	}
	return records, nil
}

func memberEntry(ctx context.Context, src source.Source, tier model.Tier, groupName string, member source.Attributes) model.TierAccountEntry {
	m := source.Read(member)
	entry := model.TierAccountEntry{
		Tier:            tier,
		GroupName:       groupName,
		MemberName:      m.String(source.FieldName),
		Enabled:         health.Unclassified(model.NotApplicable),
		LastLogon:       model.NotApplicable,
		PasswordLastSet: model.NotApplicable,
	}
	class := m.String(source.FieldObjectClass)
	dn := m.String(source.FieldDistinguishedName)
	if err := m.Err(); err != nil {
		entry.AccountType = AccountTypeUnknown
		entry.Note = "Error: " + err.Error()
		return entry
	}

	switch {
	case strings.EqualFold(class, "user"):
	case strings.EqualFold(class, "group"):
		entry.AccountType = AccountTypeGroup
		return entry
	case class == "":
		entry.AccountType = AccountTypeUnknown
		return entry
	default:
		entry.AccountType = class
		return entry
	}

	resp, err := src.Query(ctx, &source.Request{Kind: source.KindAccount, Target: dn})
	if err == nil && len(resp.Records) == 0 {
		err = fmt.Errorf("account %s not found", dn)
	}
	if err != nil {
		entry.AccountType = AccountTypeUnknown
		entry.Note = "Error: " + err.Error()
		return entry
	}

	a := source.Read(resp.Records[0])
	enabled := a.Bool(source.FieldEnabled)
	lastLogon := a.Time(source.FieldLastLogon)
	pwdLastSet := a.Time(source.FieldPasswordLastSet)
	if err := a.Err(); err != nil {
		entry.AccountType = AccountTypeUnknown
		entry.Note = "Error: " + err.Error()
		return entry
	}

	entry.AccountType = AccountTypeUser
	entry.Enabled = health.Flag(enabled)
	entry.LastLogon = model.FormatDate(lastLogon)
	entry.PasswordLastSet = model.FormatDate(pwdLastSet)
	return entry
}

func notFoundEntry(tier model.Tier, groups []string) model.TierAccountEntry {
	configured := model.JoinList(groups)
	if configured == "" {
		configured = "(none configured)"
	}
	return model.TierAccountEntry{
		Tier:            tier,
		GroupName:       configured,
		MemberName:      model.NotApplicable,
		AccountType:     model.NotApplicable,
		Enabled:         health.Unclassified(model.NotApplicable),
		LastLogon:       model.NotApplicable,
		PasswordLastSet: model.NotApplicable,
		Note:            NotFoundNote,
	}
}
