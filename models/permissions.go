package models

// VaultAction is an authorization-relevant operation on a vault.
type VaultAction string

const (
	ActionUploadContent   VaultAction = "upload_content"   // upload media / write notes
	ActionApproveMedia    VaultAction = "approve_media"    // approve pending uploads
	ActionModerateContent VaultAction = "moderate_content" // delete or restore others' content directly
	ActionManageMembers   VaultAction = "manage_members"   // change roles, remove members
	ActionUpdateVault     VaultAction = "update_vault"     // edit vault settings
	ActionDeleteVault     VaultAction = "delete_vault"
)

// rolePolicy encodes the role × action matrix in one place so it stays
// auditable. Ownership exceptions (an uploader may always delete, restore
// or re-caption their own content) and the last-admin rule for leaving are
// handled at the call sites, since they depend on the target, not the role.
var rolePolicy = map[Role]map[VaultAction]bool{
	RoleAdmin: {
		ActionUploadContent:   true,
		ActionApproveMedia:    true,
		ActionModerateContent: true,
		ActionManageMembers:   true,
		ActionUpdateVault:     true,
		ActionDeleteVault:     true,
	},
	RoleMember: {
		ActionUploadContent: true,
	},
	RoleReadOnly: {},
}

// RoleCan reports whether a role may perform an action on its vault.
func RoleCan(role Role, action VaultAction) bool {
	return rolePolicy[role][action]
}
