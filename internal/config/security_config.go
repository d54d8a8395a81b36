// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic   SecurityLevel = iota // No authentication
	SecurityMember                        // Any valid token, owner checks happen in the handler
	SecurityPayments                      // Payment webhook relay token required
	SecurityAdmin                         // Admin token required
)

// RouteSecurityConfig maps "METHOD path-template" for HTTP routes, or the full
// method name for gRPC, to the required security level
var RouteSecurityConfig = map[string]SecurityLevel{
	"GET /healthz": SecurityPublic,

	// Orders - payment relay only
	"POST /api/v1/orders/paid": SecurityPayments,

	// Users - member (self) or admin
	"GET /api/v1/users/{id}/ledger":      SecurityMember,
	"GET /api/v1/users/{id}/wallet":      SecurityMember,
	"GET /api/v1/users/{id}/eligibility": SecurityMember,

	// Admin
	"POST /api/v1/admin/pool/distribute":      SecurityAdmin,
	"GET /api/v1/admin/pool":                  SecurityAdmin,
	"POST /api/v1/admin/ledger/{id}/reverse":  SecurityAdmin,
	"GET /api/v1/admin/orders/{id}/settlement": SecurityAdmin,
	"POST /api/v1/admin/matrix/place":          SecurityAdmin,

	// gRPC
	"/grpc.health.v1.Health/Check":                                 SecurityPublic,
	"/grpc.health.v1.Health/Watch":                                 SecurityPublic,
	"/grpc.reflection.v1.ServerReflection/ServerReflectionInfo":      SecurityAdmin,
	"/grpc.reflection.v1alpha.ServerReflection/ServerReflectionInfo": SecurityAdmin,
}

// GetSecurityLevel returns the security level for a given route
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := RouteSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown routes
	return SecurityAdmin
}
