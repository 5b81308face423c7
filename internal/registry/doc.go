// Package registry maps goals to ordered task chains per inventory group.
//
// A registry is assembled once at startup, sealed, and then only read by the
// engine:
//
//	reg := registry.New(registry.DefaultOrder)
//	_ = reg.Register("INIT", inventory.GroupControlPlane, tasks...)
//	reg.Seal()
package registry
