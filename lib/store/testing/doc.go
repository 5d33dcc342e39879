// Package testing provides a standardised conformance suite for
// implementations of the store.IStore and store.ILockStore interfaces.
//
// Example usage:
//
//	storetesting.RunIStoreTests(t, "MyStore", func() store.IStore {
//		return NewMyStore()
//	}, storetesting.Capabilities{OptimisticConflicts: true})
package testing
