// Package share implements the diff-and-simulate engine and the bulk
// re-encryption orchestrator behind every access-list change: aggregate the
// permission changes per access-controlled object (ACO), dry-run them on the
// server to learn which users need a freshly encrypted secret, then decrypt
// once per resource and re-encrypt per new recipient.
package share

// ACO types accepted by the sharing endpoints.
const (
	ACOTypeResource = "resource"
	ACOTypeFolder   = "folder"
	ACOTypeGroup    = "group"
)

// Resource is one access-controlled secret with its current ciphertext,
// addressed to the caller.
type Resource struct {
	ID         string
	Ciphertext string
}

// ACO is an access-controlled object together with the resources it governs.
// A plain resource ACO lists exactly itself.
type ACO struct {
	Type      string
	ID        string
	Resources []Resource
}

// Change is one permission change targeting an ACO. AROForeignKey is the
// user or group gaining, changing or losing access.
type Change struct {
	ACOType       string
	ACOForeignKey string
	AROForeignKey string
	Operation     string // create, update, delete
}

// NeededSecret states that UserID lacks an encrypted copy of ResourceID's
// secret after a simulated change.
type NeededSecret struct {
	ResourceID string
	UserID     string
}

// SecretRecord is a wire-ready secret: the resource's plaintext re-encrypted
// for one user and signed by the caller.
type SecretRecord struct {
	ResourceID string
	UserID     string
	Ciphertext string
}

// ACOChanges pairs an ACO with the changes targeting it.
type ACOChanges struct {
	ACO     ACO
	Changes []Change
}

// ACOResult reports the commit outcome for one ACO. Err is nil on success;
// Secrets holds the records submitted with the commit either way, so a
// caller can retry a failed ACO without redoing the cryptography.
type ACOResult struct {
	ACOID   string
	Secrets []SecretRecord
	Err     error
}
