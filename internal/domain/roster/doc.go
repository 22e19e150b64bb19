// Package roster holds the institution's records as the dashboard sees them:
// students, courses with their subjects, attendance records and mark entries.
//
// # Lifecycle
//
// The records service has no eviction flag. It appends the marker " (evicted)"
// to the student's name instead. The dashboard never carries that marker around:
//
//	name, lifecycle := roster.ParseWireName("Asha Raman (evicted)")
//	// name == "Asha Raman", lifecycle == roster.LifecycleEvicted
//
// Business rules compare Student.Lifecycle. The marker is re-attached only when a
// student is written back, by Student.WireName and StudentDraft.WireName.
//
// # Ownership
//
// Values returned by a Reader are snapshots. Anything that mutates mark entries
// (the edit session) works on MarksDetail.Clone, never on the fetched value.
package roster
