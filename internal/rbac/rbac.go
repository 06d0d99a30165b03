package rbac

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInsufficientRole indicates the actor's role does not grant the operation.
var ErrInsufficientRole = errors.New("rbac: insufficient role")

// Role is one of the fixed set of actor roles. Roles are not user-defined at
// runtime; the capability table below is the single authorization source for
// both the core and any interface layer.
type Role string

const (
	RoleAdmin              Role = "admin"
	RoleAssetManager       Role = "asset_manager"
	RoleProcurementOfficer Role = "procurement_officer"
	RoleMaintenanceManager Role = "maintenance_manager"
	RoleITAssetManager     Role = "it_asset_manager"
	RoleDepartmentHead     Role = "department_head"
	RoleAuditor            Role = "auditor"
	RoleFinance            Role = "finance"
	RoleDisposalOfficer    Role = "disposal_officer"
	RoleEmployee           Role = "employee"
	RoleViewer             Role = "viewer"
)

// Roles lists every known role.
var Roles = []Role{
	RoleAdmin,
	RoleAssetManager,
	RoleProcurementOfficer,
	RoleMaintenanceManager,
	RoleITAssetManager,
	RoleDepartmentHead,
	RoleAuditor,
	RoleFinance,
	RoleDisposalOfficer,
	RoleEmployee,
	RoleViewer,
}

// ParseRole normalizes raw input into a known role.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(raw)))
	for _, known := range Roles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// Operation identifies one guarded lifecycle command.
type Operation string

const (
	OpCreateAsset           Operation = "asset.create"
	OpUpdateAssetFinancials Operation = "asset.financials.update"
	OpRecomputeValuation    Operation = "asset.valuation.recompute"
	OpAllocateAsset         Operation = "allocation.create"
	OpCheckInAllocation     Operation = "allocation.checkin"
	OpTransferAllocation    Operation = "allocation.transfer"
	OpScheduleMaintenance   Operation = "maintenance.schedule"
	OpStartMaintenance      Operation = "maintenance.start"
	OpCompleteMaintenance   Operation = "maintenance.complete"
	OpCancelMaintenance     Operation = "maintenance.cancel"
	OpCreateProcurement     Operation = "procurement.create"
	OpApproveProcurement    Operation = "procurement.approve"
	OpRejectProcurement     Operation = "procurement.reject"
	OpMarkInProcurement     Operation = "procurement.start"
	OpCompleteProcurement   Operation = "procurement.complete"
	OpInitiateDisposal      Operation = "disposal.initiate"
	OpApproveDisposal       Operation = "disposal.approve"
	OpRejectDisposal        Operation = "disposal.reject"
	OpRetireAsset           Operation = "disposal.retire"
	OpViewAssets            Operation = "asset.view"
	OpViewFinancials        Operation = "asset.financials.view"
)

// Operations lists the closed enumeration of guarded operations.
var Operations = []Operation{
	OpCreateAsset,
	OpUpdateAssetFinancials,
	OpRecomputeValuation,
	OpAllocateAsset,
	OpCheckInAllocation,
	OpTransferAllocation,
	OpScheduleMaintenance,
	OpStartMaintenance,
	OpCompleteMaintenance,
	OpCancelMaintenance,
	OpCreateProcurement,
	OpApproveProcurement,
	OpRejectProcurement,
	OpMarkInProcurement,
	OpCompleteProcurement,
	OpInitiateDisposal,
	OpApproveDisposal,
	OpRejectDisposal,
	OpRetireAsset,
	OpViewAssets,
	OpViewFinancials,
}

// ReadOnly reports whether the operation never mutates state.
func ReadOnly(op Operation) bool {
	return op == OpViewAssets || op == OpViewFinancials
}

var capabilities = map[Role]map[Operation]struct{}{
	RoleAssetManager: grant(
		OpCreateAsset, OpUpdateAssetFinancials, OpRecomputeValuation,
		OpAllocateAsset, OpCheckInAllocation, OpTransferAllocation,
		OpInitiateDisposal,
		OpViewAssets, OpViewFinancials,
	),
	RoleProcurementOfficer: grant(
		OpCreateProcurement, OpMarkInProcurement, OpCompleteProcurement,
		OpViewAssets,
	),
	RoleMaintenanceManager: grant(
		OpScheduleMaintenance, OpStartMaintenance, OpCompleteMaintenance,
		OpCancelMaintenance,
		OpViewAssets,
	),
	RoleITAssetManager: grant(
		OpCreateAsset, OpAllocateAsset, OpCheckInAllocation,
		OpTransferAllocation, OpScheduleMaintenance,
		OpViewAssets,
	),
	RoleDepartmentHead: grant(
		OpCreateProcurement, OpApproveProcurement, OpRejectProcurement,
		OpViewAssets, OpViewFinancials,
	),
	RoleAuditor: grant(
		OpViewAssets, OpViewFinancials,
	),
	RoleFinance: grant(
		OpUpdateAssetFinancials, OpRecomputeValuation,
		OpViewAssets, OpViewFinancials,
	),
	RoleDisposalOfficer: grant(
		OpInitiateDisposal, OpApproveDisposal, OpRejectDisposal, OpRetireAsset,
		OpViewAssets,
	),
	RoleEmployee: grant(
		OpCreateProcurement,
		OpViewAssets,
	),
	RoleViewer: grant(
		OpViewAssets, OpViewFinancials,
	),
}

func grant(ops ...Operation) map[Operation]struct{} {
	set := make(map[Operation]struct{}, len(ops))
	for _, op := range ops {
		set[op] = struct{}{}
	}
	return set
}

// Allowed reports whether the role may perform the operation.
func Allowed(role Role, op Operation) bool {
	if role == RoleAdmin {
		return true
	}
	_, ok := capabilities[role][op]
	return ok
}

// Authorize is the single authorization choke point. It returns nil when the
// role may perform the operation and ErrInsufficientRole (wrapped with the
// denial context) otherwise. It never has side effects.
func Authorize(role Role, op Operation) error {
	if Allowed(role, op) {
		return nil
	}
	return fmt.Errorf("%w: role %s may not perform %s", ErrInsufficientRole, role, op)
}

// OperationsFor returns the sorted capability list for a role. Interface
// layers use this to hide unavailable actions; the core still enforces every
// call through Authorize.
func OperationsFor(role Role) []Operation {
	var ops []Operation
	for _, op := range Operations {
		if Allowed(role, op) {
			ops = append(ops, op)
		}
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}
