package storage

import (
	"strings"

	"github.com/google/uuid"

	"github.com/gosuda/shopdesk/internal/domain"
)

type Kind string

const (
	KindProductImage Kind = "products"
	KindPOAttachment Kind = "purchase-orders"
)

const maxExtensionLength = 8

var contentTypes = map[Kind]map[string]string{
	KindProductImage: {
		"image/jpeg": "jpg",
		"image/png":  "png",
		"image/webp": "webp",
		"image/gif":  "gif",
	},
	KindPOAttachment: {
		"application/pdf": "pdf",
		"image/jpeg":      "jpg",
		"image/png":       "png",
		"text/csv":        "csv",
	},
}

// Extension returns the file extension for contentType, or a validation error
// when the kind does not accept it.
func Extension(kind Kind, contentType string) (string, error) {
	allowed, ok := contentTypes[kind]
	if !ok {
		return "", domain.Invalid("kind", "unknown object kind "+string(kind))
	}
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	ext, ok := allowed[ct]
	if !ok {
		return "", domain.Invalid("content_type", contentType+" is not accepted for "+string(kind))
	}
	return ext, nil
}

// NewKey builds tenants/<tenant>/<kind>/<uuid>.<ext>.
func NewKey(tenantID uuid.UUID, kind Kind, ext string) string {
	return tenantPrefix(tenantID) + string(kind) + "/" + uuid.NewString() + "." + ext
}

// OwnedBy reports whether key lives under the tenant's prefix for kind.
func OwnedBy(tenantID uuid.UUID, kind Kind, key string) bool {
	rest, ok := strings.CutPrefix(key, tenantPrefix(tenantID)+string(kind)+"/")
	if !ok {
		return false
	}
	name, ext, ok := strings.Cut(rest, ".")
	if !ok || ext == "" || len(ext) > maxExtensionLength || strings.ContainsAny(ext, "/.") {
		return false
	}
	_, err := uuid.Parse(name)
	return err == nil
}

func tenantPrefix(tenantID uuid.UUID) string {
	return "tenants/" + tenantID.String() + "/"
}
