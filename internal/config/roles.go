package config

import (
	"fmt"

	"github.com/spf13/viper"

	"kyri56xcaesar/taskhub/internal/authz"
)

// LoadRoles merges ADMIN_EMAILS/MASTER_EMAILS with the YAML file named by
// ROLES_FILE, if any. The file looks like:
//
//	admins:
//	  - root@example.com
//	masters:
//	  - lead@example.com
func (cfg Config) LoadRoles() (authz.RoleMap, error) {
	roles := authz.RoleMap{
		Admins:  append([]string(nil), cfg.AdminEmails...),
		Masters: append([]string(nil), cfg.MasterEmails...),
	}
	if cfg.RolesFile == "" {
		return roles, nil
	}

	v := viper.New()
	v.SetConfigFile(cfg.RolesFile)
	v.SetConfigType("yaml")
	v.SetDefault("admins", []string{})
	v.SetDefault("masters", []string{})
	if err := v.ReadInConfig(); err != nil {
		return authz.RoleMap{}, fmt.Errorf("read roles file: %w", err)
	}

	roles.Admins = append(roles.Admins, v.GetStringSlice("admins")...)
	roles.Masters = append(roles.Masters, v.GetStringSlice("masters")...)
	return roles, nil
}
