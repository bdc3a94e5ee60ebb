package model

// Actor identifies who is performing a reservation or booking operation.
// ID doubles as the ledger holder value: "user:<id>" for authenticated
// customers and staff, "guest:<token>" for anonymous sessions.
type Actor struct {
	ID    string // holder identifier stored on leases
	Guest bool   // anonymous session; may only start from AVAILABLE
	Staff bool   // employee-assisted flows; may book directly from AVAILABLE
}
