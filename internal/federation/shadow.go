// Package federation provides the cross-repository trust layer: shadow
// requirements (hash-verified partial views of external requirements),
// grant delegations with roles and constraints, the authorization
// decision function, and the append-only audit trail behind it.
package federation

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/rtmx-ai/rtmx/internal/rtm"
)

// Visibility is the access level of a cross-repo requirement view.
type Visibility string

const (
	VisibilityFull     Visibility = "full"      // full access to requirement details
	VisibilityShadow   Visibility = "shadow"    // status, hash, dependencies only
	VisibilityHashOnly Visibility = "hash_only" // hash for verification only
)

// ShadowRequirement is a partial view of a requirement in an external
// repository. The content hash is the verification anchor across trust
// boundaries: repositories agree a requirement is unchanged by comparing
// hashes, never by exchanging the text.
type ShadowRequirement struct {
	ReqID              string              `json:"req_id"`
	ExternalRepo       string              `json:"external_repo"`
	ShadowHash         string              `json:"shadow_hash"`
	Status             rtm.Status          `json:"status"`
	Visibility         Visibility          `json:"visibility"`
	VerifiedAt         time.Time           `json:"verified_at"`
	CachedDependencies map[string]struct{} `json:"cached_dependencies"`
}

// ContentHash derives the 16-hex-digit shadow hash for a requirement:
// a truncated SHA-256 over "id:status:text".
func ContentHash(req *rtm.Requirement) string {
	content := req.ReqID + ":" + string(req.Status) + ":" + req.RequirementText
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// NewShadow builds a shadow view of a full requirement for sharing across
// a trust boundary. An empty visibility defaults to shadow; hash_only
// visibility clears the cached dependency set.
func NewShadow(req *rtm.Requirement, externalRepo string, visibility Visibility) *ShadowRequirement {
	if visibility == "" {
		visibility = VisibilityShadow
	}
	shadow := &ShadowRequirement{
		ReqID:        req.ReqID,
		ExternalRepo: externalRepo,
		ShadowHash:   ContentHash(req),
		Status:       req.Status,
		Visibility:   visibility,
		VerifiedAt:   time.Now(),
	}
	if visibility != VisibilityHashOnly {
		shadow.CachedDependencies = make(map[string]struct{}, len(req.Dependencies))
		for dep := range req.Dependencies {
			shadow.CachedDependencies[dep] = struct{}{}
		}
	} else {
		shadow.CachedDependencies = make(map[string]struct{})
	}
	return shadow
}

// IsAccessible reports whether requirement details are visible.
func (s *ShadowRequirement) IsAccessible() bool {
	return s.Visibility == VisibilityFull
}

// IsVerifiable reports whether the shadow carries a hash to verify against.
func (s *ShadowRequirement) IsVerifiable() bool {
	return s.ShadowHash != ""
}

// FullRef returns the cross-repo reference string for this shadow.
func (s *ShadowRequirement) FullRef() string {
	return s.ExternalRepo + ":" + s.ReqID
}

// Verify recomputes the content hash of a requirement and compares it to
// the shadow's anchor, refreshing VerifiedAt on a match.
func (s *ShadowRequirement) Verify(req *rtm.Requirement) bool {
	if !s.IsVerifiable() {
		return false
	}
	if ContentHash(req) != s.ShadowHash {
		return false
	}
	s.VerifiedAt = time.Now()
	return true
}
