package rbac

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Roles []roleEntry `yaml:"roles"`
}

type roleEntry struct {
	Role        string   `yaml:"role"`
	DisplayName string   `yaml:"display_name"`
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
	Inherits    []string `yaml:"inherits"`
}

// LoadCatalog decodes YAML role definitions and validates them like
// NewCatalog. Unknown permission tokens are an error, not silently dropped.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("rbac: decode catalog: %w", err)
	}
	defs := make([]RoleDefinition, 0, len(file.Roles))
	for _, entry := range file.Roles {
		role, err := ParseRole(entry.Role)
		if err != nil {
			return nil, err
		}
		perms, rejected := ParsePermissions(entry.Permissions)
		if len(rejected) > 0 {
			return nil, fmt.Errorf("rbac: role %s: %w: %v", role, ErrUnknownPermission, rejected)
		}
		inherits := make([]Role, 0, len(entry.Inherits))
		for _, raw := range entry.Inherits {
			parent, err := ParseRole(raw)
			if err != nil {
				return nil, err
			}
			inherits = append(inherits, parent)
		}
		defs = append(defs, RoleDefinition{
			Role:        role,
			DisplayName: entry.DisplayName,
			Description: entry.Description,
			Permissions: perms,
			Inherits:    inherits,
		})
	}
	return NewCatalog(defs...)
}

// LoadCatalogFile reads a catalog from path. An empty path yields the
// default catalog.
func LoadCatalogFile(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rbac: open catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}
