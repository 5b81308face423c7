package tasks

import "github.com/imamik/calcifer/internal/inventory"

// PrimaryKey marks the control-plane host that runs kubeadm init.
const PrimaryKey = "primary_control_plane"

// MarkPrimary flags the control-plane host with the smallest name as
// primary and all others as secondary. Inventories keep hosts sorted by
// name, so this does not depend on the order hosts were declared in.
func MarkPrimary(inv *inventory.Inventory) {
	for i, h := range inv.Filter(inventory.GroupControlPlane, "") {
		h.Set(PrimaryKey, i == 0)
	}
}

// isPrimary treats an unmarked host as primary.
func isPrimary(h *inventory.Host) bool {
	v, ok := h.Get(PrimaryKey)
	if !ok {
		return true
	}
	b, _ := v.(bool)
	return b
}
