package cache

import "github.com/google/uuid"

const keySeparator = "-"

// Key builds the cache key for a tenant-scoped query.
// An empty discriminator yields the bare tenant id.
func Key(tenantID uuid.UUID, discriminator string) string {
	if discriminator == "" {
		return tenantID.String()
	}
	return tenantID.String() + keySeparator + discriminator
}

// TenantPrefix returns the prefix shared by all of a tenant's partitions
func TenantPrefix(tenantID uuid.UUID) string {
	return tenantID.String() + keySeparator
}
