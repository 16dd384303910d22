// Package health 将原始字段映射为健康状态。
// 全部是纯函数，无法识别的原始值按原样透传，不会报错。
package health

import (
	"strconv"
	"strings"
	"time"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/model"
)

// ReplicationStaleAfter 距上次成功复制超过该时长视为 Warning
const ReplicationStaleAfter = 24 * time.Hour

// ReplicationCurrency 复制时效：24 小时内 Healthy，否则 Warning，不会升级为 Critical
func ReplicationCurrency(lastSuccess, now time.Time) model.Assessment {
	value := model.FormatDate(lastSuccess)
	if !lastSuccess.IsZero() && now.Sub(lastSuccess) < ReplicationStaleAfter {
		return classified(model.Healthy, value)
	}
	return classified(model.Warning, value)
}

// ReplicationFailures 连续失败次数：0 为 Healthy，否则 Critical，次数原样保留
func ReplicationFailures(count int) model.Assessment {
	value := strconv.Itoa(count)
	if count == 0 {
		return classified(model.Healthy, value)
	}
	return classified(model.Critical, value)
}

// ServiceState 服务状态：只有 "Running" 是 Healthy，其余（包括查询出错）均为 Critical
func ServiceState(state string, err error) model.Assessment {
	if err != nil {
		return classified(model.Critical, "Error: "+err.Error())
	}
	if state == "Running" {
		return classified(model.Healthy, state)
	}
	if state == "" {
		state = "Unknown"
	}
	return classified(model.Critical, state)
}

// Flag 布尔标志：true 为 Healthy，false 为 Critical
func Flag(v bool) model.Assessment {
	if v {
		return classified(model.Healthy, model.FormatBool(v))
	}
	return classified(model.Critical, model.FormatBool(v))
}

// DHCPScopeState 作用域状态："Active" 为 Healthy，其余为 Critical
func DHCPScopeState(state string) model.Assessment {
	if state == "Active" {
		return classified(model.Healthy, state)
	}
	return classified(model.Critical, state)
}

// GPO 状态取值
const (
	GpoAllSettingsEnabled       = "AllSettingsEnabled"
	GpoUserSettingsDisabled     = "UserSettingsDisabled"
	GpoComputerSettingsDisabled = "ComputerSettingsDisabled"
	GpoAllSettingsDisabled      = "AllSettingsDisabled"
)

// GPOStatus 完全启用为 Healthy，任意部分禁用为 Critical，其他值不分类透传
func GPOStatus(status string) model.Assessment {
	switch {
	case status == GpoAllSettingsEnabled:
		return classified(model.Healthy, status)
	case strings.HasSuffix(status, "Disabled"):
		return classified(model.Critical, status)
	default:
		return Unclassified(status)
	}
}

// RoleHolder FSMO 角色有持有者为 Healthy，无人持有为 Critical
func RoleHolder(holder string) model.Assessment {
	if holder == "" {
		return classified(model.Critical, "Unassigned")
	}
	return classified(model.Healthy, holder)
}

// Unclassified 原始值原样展示
func Unclassified(raw string) model.Assessment {
	return model.Assessment{Status: model.Unknown, Value: raw}
}

func classified(status model.HealthStatus, value string) model.Assessment {
	return model.Assessment{Status: status, Value: value, Classified: true}
}
