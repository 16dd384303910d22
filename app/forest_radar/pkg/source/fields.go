package source

// 各类查询返回的规范字段名，所有数据源都按这些名称填充 Attributes
const (
	// forest
	FieldName               = "Name"
	FieldForestMode         = "ForestMode"
	FieldRootDomain         = "RootDomain"
	FieldDomains            = "Domains"
	FieldGlobalCatalogs     = "GlobalCatalogs"
	FieldSites              = "Sites"
	FieldUPNSuffixes        = "UPNSuffixes"
	FieldSchemaMaster       = "SchemaMaster"
	FieldDomainNamingMaster = "DomainNamingMaster"

	// domain_controllers
	FieldHostName             = "HostName"
	FieldSite                 = "Site"
	FieldIPv4Address          = "IPv4Address"
	FieldOperatingSystem      = "OperatingSystem"
	FieldOSVersion            = "OperatingSystemVersion"
	FieldIsGlobalCatalog      = "IsGlobalCatalog"
	FieldIsReadOnly           = "IsReadOnly"
	FieldOperationMasterRoles = "OperationMasterRoles"

	// replication
	FieldPartner             = "Partner"
	FieldPartition           = "Partition"
	FieldLastAttempt         = "LastReplicationAttempt"
	FieldLastSuccess         = "LastReplicationSuccess"
	FieldConsecutiveFailures = "ConsecutiveReplicationFailures"
	FieldLastResult          = "LastReplicationResult"

	// service_state
	FieldStatus = "Status"

	// sites
	FieldDescription = "Description"
	FieldLocation    = "Location"
	FieldSubnets     = "Subnets"

	// dns_zones
	FieldZoneName      = "ZoneName"
	FieldZoneType      = "ZoneType"
	FieldDsIntegrated  = "IsDsIntegrated"
	FieldReverseLookup = "IsReverseLookupZone"
	FieldDynamicUpdate = "DynamicUpdate"

	// dhcp_servers / dhcp_scopes
	FieldDNSName       = "DnsName"
	FieldScopeID       = "ScopeId"
	FieldSubnetMask    = "SubnetMask"
	FieldStartRange    = "StartRange"
	FieldEndRange      = "EndRange"
	FieldLeaseDuration = "LeaseDuration"
	FieldState         = "State"

	// group / group_members / account / service_accounts
	FieldDistinguishedName     = "DistinguishedName"
	FieldObjectClass           = "ObjectClass"
	FieldSamAccountName        = "SamAccountName"
	FieldEnabled               = "Enabled"
	FieldLastLogon             = "LastLogonDate"
	FieldPasswordLastSet       = "PasswordLastSet"
	FieldServicePrincipalNames = "ServicePrincipalNames"

	// mail_servers
	FieldServerRoles  = "ServerRoles"
	FieldSerialNumber = "SerialNumber"
	FieldEdition      = "Edition"

	// gpos
	FieldDisplayName      = "DisplayName"
	FieldID               = "Id"
	FieldGpoStatus        = "GpoStatus"
	FieldCreationTime     = "CreationTime"
	FieldModificationTime = "ModificationTime"
)
