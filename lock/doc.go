// Package lock provides distributed mutual exclusion over the shared
// key-value store.
//
// A lease is a conditional write: TryAcquire succeeds only if no live
// lease exists for the key (set-if-absent, or compare-and-set over an
// expired lease). It never blocks: contention returns false and the
// caller drops the work, because a concurrent worker already owns it.
// Release and Renew compare the holder first, so a slow worker whose
// lease was reclaimed cannot clobber the new holder's lock.
//
// Lease TTLs double as the timeout mechanism for stuck workers; there is
// no separate watchdog.
package lock
