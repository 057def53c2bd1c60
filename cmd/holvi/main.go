// Holvi - Bucket Lifecycle Reconciliation Engine
// Provision. Watch. Restore.
package main

func main() {
	Execute()
}
