package policy

// PermissionGate enforces that a tool invocation's declared required
// permissions are all present in the allowed set computed for its
// component (spec §4.7, scenario 6: "Permission denied").
type PermissionGate struct {
	defaultAllow map[string]bool
	allow        map[string]map[string]bool // component_id -> allowed set
}

// NewPermissionGate builds a gate from the document's `policies.permissions`
// block: `default_allow` (a string list applied to every component) and
// `allow` (a map of component id to an additional per-component string
// list). An absent block denies every permission, the conservative
// default.
func NewPermissionGate(cfg map[string]interface{}) (*PermissionGate, error) {
	gate := &PermissionGate{defaultAllow: map[string]bool{}, allow: map[string]map[string]bool{}}
	if cfg == nil {
		return gate, nil
	}

	defaultAllow, err := stringListField(cfg, "default_allow")
	if err != nil {
		return nil, newErr(ErrRLPolicyParam, "$/policies/permissions/default_allow", "%v", err)
	}
	for _, p := range defaultAllow {
		gate.defaultAllow[p] = true
	}

	if rawAllow, ok := cfg["allow"].(map[string]interface{}); ok {
		for componentID, raw := range rawAllow {
			list, err := stringListField(map[string]interface{}{"allow": raw}, "allow")
			if err != nil {
				return nil, newErr(ErrRLPolicyParam, "$/policies/permissions/allow/"+componentID, "%v", err)
			}
			set := make(map[string]bool, len(list))
			for _, p := range list {
				set[p] = true
			}
			gate.allow[componentID] = set
		}
	}

	return gate, nil
}

// Check computes allowed = default_allow ∪ allow[componentID] and verifies
// required ⊆ allowed, returning the missing permissions and, if any, an
// ERR_TOOL_PERMISSION_DENIED error.
func (g *PermissionGate) Check(componentID string, required []string) ([]string, error) {
	var missing []string
	perComponent := g.allow[componentID]
	for _, p := range required {
		if g.defaultAllow[p] || perComponent[p] {
			continue
		}
		missing = append(missing, p)
	}
	if len(missing) > 0 {
		return missing, newErr(ErrToolPermDenied, "", "component %q missing required permissions: %v", componentID, missing)
	}
	return nil, nil
}
